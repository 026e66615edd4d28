package service

import (
	"errors"
	"fmt"
)

// Kind classifies a failure in a way callers can act on. Transport layers
// map kinds to status codes; the message is for humans.
type Kind string

const (
	KindNotFound                   Kind = "NotFound"
	KindForbidden                  Kind = "Forbidden"
	KindNeedsSubscription          Kind = "NeedsSubscription"
	KindInsufficientTokens         Kind = "InsufficientTokens"
	KindVotingNotOpen              Kind = "VotingNotOpen"
	KindDuplicateVote              Kind = "DuplicateVote"
	KindIllegalTransition          Kind = "IllegalTransition"
	KindExternalServiceUnavailable Kind = "ExternalServiceUnavailable"
	KindInvalid                    Kind = "Invalid"
	KindConflict                   Kind = "Conflict"
	KindSubmissionClosed           Kind = "SubmissionClosed"
)

// Error is a business-rule failure. Infrastructure failures are returned
// as plain wrapped errors and have no Kind.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

func errf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" when err is not a business-rule
// failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool { return err != nil && KindOf(err) == k }
