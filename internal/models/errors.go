package models

import (
	"errors"
	"fmt"
)

// DenyReason classifies authorization denials.
type DenyReason string

// Authorization denial reasons.
const (
	DenyBanned        DenyReason = "banned"
	DenyNotMember     DenyReason = "not_member"
	DenyPrivateRoom   DenyReason = "private_room"
	DenyRateLimited   DenyReason = "rate_limited"
	DenyNotAuthor     DenyReason = "not_author"
	DenySelfVote      DenyReason = "self_vote"
	DenyAlreadyVoted  DenyReason = "already_voted"
	DenyAlreadyPinned DenyReason = "already_pinned"
)

// DeniedError is returned when the moderation gate refuses an action.
type DeniedError struct {
	Reason  DenyReason
	Message string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("denied (%s): %s", e.Reason, e.Message)
}

// NewDeniedError returns a DeniedError with the given reason.
func NewDeniedError(reason DenyReason, message string) *DeniedError {
	return &DeniedError{Reason: reason, Message: message}
}

// RejectReason classifies input rejections from the text processor.
type RejectReason string

// Input rejection reasons.
const (
	RejectEmptyMessage  RejectReason = "empty_message"
	RejectInvalidStatus RejectReason = "invalid_status"
)

// RejectedError is returned when raw input fails validation before any
// state is touched.
type RejectedError struct {
	Reason  RejectReason
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected (%s): %s", e.Reason, e.Message)
}

// NewEmptyMessageError returns the rejection for blank input.
func NewEmptyMessageError() *RejectedError {
	return &RejectedError{Reason: RejectEmptyMessage, Message: "message is empty"}
}

// NewInvalidStatusError returns the rejection for a presence value
// outside the enum.
func NewInvalidStatusError(value int) *RejectedError {
	return &RejectedError{Reason: RejectInvalidStatus, Message: fmt.Sprintf("invalid presence status %d", value)}
}

// ConflictKind classifies uniqueness conflicts on append-only facts.
type ConflictKind string

// Conflict kinds.
const (
	ConflictDuplicateVote ConflictKind = "duplicate_vote"
	ConflictDuplicateFlag ConflictKind = "duplicate_flag"
)

// ConflictError is returned when an append-only fact already exists for
// its unique key. The stored aggregate is unchanged.
type ConflictError struct {
	Kind ConflictKind
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s", e.Kind)
}

// NewConflictError returns a ConflictError of the given kind.
func NewConflictError(kind ConflictKind) *ConflictError {
	return &ConflictError{Kind: kind}
}

// NotFoundError is returned when a referenced post, room or user does not
// exist.
type NotFoundError struct {
	Resource string
	ID       interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %v not found", e.Resource, e.ID)
}

// NewNotFoundError returns a NotFoundError for the resource and id.
func NewNotFoundError(resource string, id interface{}) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// StoreError wraps an opaque persistence failure. It aborts the pipeline
// before publish and is retryable by the caller.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store failure: %v", e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// WrapStoreError wraps err as a StoreError unless it already carries one
// of the typed outcomes above.
func WrapStoreError(err error) error {
	if err == nil {
		return nil
	}
	var denied *DeniedError
	var rejected *RejectedError
	var conflict *ConflictError
	var notFound *NotFoundError
	var store *StoreError
	if errors.As(err, &denied) || errors.As(err, &rejected) ||
		errors.As(err, &conflict) || errors.As(err, &notFound) || errors.As(err, &store) {
		return err
	}
	return &StoreError{Err: err}
}

// DeniedReason extracts the denial reason when err is a DeniedError.
func DeniedReason(err error) (DenyReason, bool) {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied.Reason, true
	}
	return "", false
}
