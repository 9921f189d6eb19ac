// Package textproc turns raw user-submitted text into safe rendered HTML
// plus structured side data (reply target, mentions, onebox kind).
//
// Rule order is significant: escaping always happens before any HTML is
// synthesized, so a later rule can never re-interpret text an earlier
// rule emitted as literal markup.
package textproc

import (
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"lanes/internal/models"
)

// OneboxKind classifies the rich preview emitted for a bare media link.
type OneboxKind int

// Onebox kinds.
const (
	OneboxNone OneboxKind = iota
	OneboxImage
	OneboxVideo
)

// Processed is the result of rendering one raw message.
type Processed struct {
	HTML     string
	ReplyTo  uint   // 0 when the message is not a reply
	Mentions []string
	Onebox   OneboxKind
}

// DefaultVideoHosts are the video-sharing domains recognized for video
// oneboxes when no explicit list is configured.
var DefaultVideoHosts = []string{"youtube.com", "youtu.be", "vimeo.com"}

var (
	replyMarkerRe = regexp.MustCompile(`^:(\d+) `)
	mentionRe     = regexp.MustCompile(`^@([A-Za-z0-9_]+)`)
	imageExtRe    = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif)$`)
	vimeoIDRe     = regexp.MustCompile(`^/(\d+)$`)
)

// substitution is one ordered markdown rule. Rules run sequentially, each
// on the output of the previous one, inside Process only; the table itself
// is immutable and safe for concurrent reuse.
type substitution struct {
	pattern *regexp.Regexp
	replace func(match []string) string
}

var substitutions = []substitution{
	// (a) markdown links; invalid targets render as nofollow anchors
	{regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`), func(m []string) string {
		if validateLink(m[2]) {
			return `<a href="` + m[2] + `">` + m[1] + `</a>`
		}
		return `<a href="` + m[2] + `" rel="nofollow">` + m[1] + `</a>`
	}},
	// (b) bold
	{regexp.MustCompile(`\*\*(.+?)\*\*`), tagReplace("strong")},
	{regexp.MustCompile(`__(.+?)__`), tagReplace("strong")},
	// (c) emphasis
	{regexp.MustCompile(`\*(.+?)\*`), tagReplace("em")},
	{regexp.MustCompile(`_(.+?)_`), tagReplace("em")},
	// (d) strikethrough
	{regexp.MustCompile(`---(.+?)---`), tagReplace("del")},
	// (e) blockquote; the > is already escaped at this point
	{regexp.MustCompile(`(^|<br/>)&gt; ?([^<]*)`), func(m []string) string {
		return m[1] + "<blockquote>" + m[2] + "</blockquote>"
	}},
	// (f) inline code
	{regexp.MustCompile("`([^`]+)`"), tagReplace("code")},
}

func tagReplace(tag string) func([]string) string {
	return func(m []string) string {
		return "<" + tag + ">" + m[1] + "</" + tag + ">"
	}
}

// Processor renders raw messages. The zero value is not usable; construct
// with New.
type Processor struct {
	videoHosts map[string]struct{}
}

// New returns a Processor recognizing the given video-sharing hosts for
// oneboxes. An empty list falls back to DefaultVideoHosts.
func New(videoHosts []string) *Processor {
	if len(videoHosts) == 0 {
		videoHosts = DefaultVideoHosts
	}
	hosts := make(map[string]struct{}, len(videoHosts))
	for _, h := range videoHosts {
		hosts[strings.ToLower(h)] = struct{}{}
	}
	return &Processor{videoHosts: hosts}
}

// Process renders one raw message. It is a pure function of its input:
// no shared state is read or written.
func (p *Processor) Process(raw string) (*Processed, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, models.NewEmptyMessageError()
	}

	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.TrimRight(text, "\n ")

	out := &Processed{}

	// Reply marker: strip `:<digits> ` and re-prepend it verbatim at the end.
	prefix := ""
	if m := replyMarkerRe.FindStringSubmatch(text); m != nil {
		id, err := strconv.ParseUint(m[1], 10, 32)
		if err == nil {
			out.ReplyTo = uint(id)
			prefix = m[0]
			text = text[len(m[0]):]
		}
	}

	out.Mentions = scanMentions(text)

	if body, ok := codeBlock(text); ok {
		out.HTML = prefix + "<pre>" + html.EscapeString(body) + "</pre>"
		return out, nil
	}

	trimmed := strings.TrimSpace(text)
	if !strings.ContainsAny(trimmed, " \t\n") {
		if box, kind := p.onebox(trimmed); kind != OneboxNone {
			out.HTML = prefix + box
			out.Onebox = kind
			return out, nil
		}
	}

	rendered := html.EscapeString(text)
	rendered = strings.ReplaceAll(rendered, "\n", "<br/>")
	for _, sub := range substitutions {
		rendered = sub.pattern.ReplaceAllStringFunc(rendered, func(s string) string {
			return sub.replace(sub.pattern.FindStringSubmatch(s))
		})
	}

	out.HTML = prefix + rendered
	return out, nil
}

// scanMentions collects distinct @identifiers in token order. Resolution
// against known users is the caller's job; unknown names are dropped
// there, not here.
func scanMentions(text string) []string {
	var mentions []string
	seen := map[string]struct{}{}
	for _, token := range strings.Fields(text) {
		if !strings.HasPrefix(token, "@") {
			continue
		}
		m := mentionRe.FindStringSubmatch(token)
		if m == nil {
			continue
		}
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		mentions = append(mentions, m[1])
	}
	return mentions
}

// codeBlock reports whether every non-blank line is indented by at least
// four spaces and, if so, returns the text with that indent stripped.
func codeBlock(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	indented := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !strings.HasPrefix(line, "    ") {
			return "", false
		}
		indented = true
	}
	if !indented {
		return "", false
	}
	stripped := make([]string, len(lines))
	for i, line := range lines {
		stripped[i] = strings.TrimPrefix(line, "    ")
	}
	return strings.Join(stripped, "\n"), true
}

// onebox renders a bare media link as an embedded preview, or returns
// OneboxNone so the token falls through to markdown rendering.
func (p *Processor) onebox(token string) (string, OneboxKind) {
	u, ok := parseLink(token)
	if !ok {
		return "", OneboxNone
	}
	safe := html.EscapeString(token)
	if imageExtRe.MatchString(u.Path) {
		return `<div class="onebox"><a href="` + safe + `"><img src="` + safe + `"/></a></div>`, OneboxImage
	}
	if embed, ok := p.videoEmbed(u); ok {
		return `<div class="onebox onebox-video"><iframe src="` + html.EscapeString(embed) + `" allowfullscreen></iframe></div>`, OneboxVideo
	}
	return "", OneboxNone
}

// videoEmbed extracts the video id for recognized hosts and returns the
// player URL.
func (p *Processor) videoEmbed(u *url.URL) (string, bool) {
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	if _, ok := p.videoHosts[host]; !ok {
		return "", false
	}
	switch host {
	case "youtube.com":
		if id := u.Query().Get("v"); id != "" {
			return "https://www.youtube.com/embed/" + id, true
		}
	case "youtu.be":
		if id := strings.Trim(u.Path, "/"); id != "" && !strings.Contains(id, "/") {
			return "https://www.youtube.com/embed/" + id, true
		}
	case "vimeo.com":
		if m := vimeoIDRe.FindStringSubmatch(u.Path); m != nil {
			return "https://player.vimeo.com/video/" + m[1], true
		}
	}
	return "", false
}

// parseLink validates a candidate link: http/https scheme and a host with
// at least one dot.
func parseLink(token string) (*url.URL, bool) {
	u, err := url.Parse(token)
	if err != nil {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if !strings.Contains(u.Hostname(), ".") {
		return nil, false
	}
	return u, true
}

func validateLink(token string) bool {
	_, ok := parseLink(token)
	return ok
}
