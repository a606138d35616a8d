package types

import (
	"errors"
	"fmt"
)

// CustomError carries an HTTP status code alongside the message so the
// global fiber error handler can map it directly.
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

// Domain sentinel errors. Services return these (usually wrapped with %w)
// and the HTTP layer maps them to status codes.
var (
	// ErrRuleNotFound is returned when a numbering rule id does not exist.
	ErrRuleNotFound = errors.New("asset number rule not found")

	// ErrAllocationConflict is returned after the allocator has exhausted
	// its retries against concurrent writers for the same scope key.
	ErrAllocationConflict = errors.New("asset number allocation conflict: retries exhausted")

	// ErrDuplicateNumber is returned when a manually supplied asset number
	// collides with an existing track record.
	ErrDuplicateNumber = errors.New("asset number already allocated")

	// ErrFlowNotFound is returned when a flow id does not exist.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrFlowNotBound is returned when a lifecycle event has no flow
	// configured; callers fall back to force completion.
	ErrFlowNotBound = errors.New("no flow bound for lifecycle event")

	// ErrFormNotFound is returned when a form id does not exist.
	ErrFormNotFound = errors.New("form not found")

	// ErrInvalidTransition is returned for decisions against a form that
	// already reached a terminal status.
	ErrInvalidTransition = errors.New("form is terminal: no further decisions accepted")

	// ErrUnauthorized is returned when the acting user is not an eligible
	// approver for the form's current node.
	ErrUnauthorized = errors.New("actor is not an eligible approver for the current node")

	// ErrDuplicateDecision is returned when the same actor decides the
	// same node of the same form twice.
	ErrDuplicateDecision = errors.New("decision already recorded for this actor and node")
)

// FormatError reports a bad numbering formula. It is raised at rule save
// time so misconfigured templates never reach the allocator.
type FormatError struct {
	Formula string
	Token   string
	Reason  string
}

func (e *FormatError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("invalid formula %q: unknown token %q", e.Formula, e.Token)
	}
	return fmt.Sprintf("invalid formula %q: %s", e.Formula, e.Reason)
}
