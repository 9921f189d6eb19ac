// Package ranking computes the time-decaying hotness score used to order
// pinned posts within a room.
package ranking

import (
	"math"
	"time"
)

// Tuning constants carried over unchanged from the original system. Their
// derivation is unspecified; do not retune.
const (
	// epochSeconds is the fixed reference instant the pin timestamp is
	// measured against.
	epochSeconds = 1134028003

	// normalization divides the pin-age term.
	normalization = 45000.0
)

// Thresholds for pin-state transitions.
const (
	// DemotionThreshold is the vote aggregate at or below which a pinned
	// post is automatically unpinned.
	DemotionThreshold = -4

	// FlagThreshold is the flag count above which a post is removed and
	// its author temporarily banned.
	FlagThreshold = 4
)

// Hotness computes the ranking score for a pinned post from its vote
// aggregate and pin timestamp:
//
//	sign(score) * log10(max(|score|, 1)) + pinAgeSeconds/normalization
//
// rounded to 7 decimal places. It is a pure, deterministic function of
// its inputs: the same aggregate and timestamp always yield the same
// score.
func Hotness(score int64, pinnedAt time.Time) float64 {
	var sign float64
	switch {
	case score > 0:
		sign = 1
	case score < 0:
		sign = -1
	}
	order := math.Log10(math.Max(math.Abs(float64(score)), 1))
	seconds := float64(pinnedAt.Unix() - epochSeconds)
	return round7(sign*order + seconds/normalization)
}

// ShouldDemote reports whether a vote aggregate mandates automatic
// unpinning.
func ShouldDemote(score int64, threshold int64) bool {
	return score <= threshold
}

func round7(v float64) float64 {
	return math.Round(v*1e7) / 1e7
}
