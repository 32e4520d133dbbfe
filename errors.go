package newsvote

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable classification carried by every domain
// error. The HTTP layer maps kinds to status codes; clients decide from the
// kind whether an operation is worth retrying.
type ErrorKind string

const (
	// KindValidation means the caller's input was malformed. Correct the
	// input before retrying.
	KindValidation ErrorKind = "validation"

	// KindNotFound means the referenced article does not exist.
	KindNotFound ErrorKind = "not_found"

	// KindNotVotable means the article has reached a terminal state and
	// accepts no further votes. Never retryable.
	KindNotVotable ErrorKind = "article_not_votable"

	// KindDuplicateVote means this voter already has a counted vote on the
	// article. The earlier vote stands; retrying changes nothing.
	KindDuplicateVote ErrorKind = "duplicate_vote"

	// KindStorageUnavailable means the backing store failed transiently.
	// Safe to retry with backoff.
	KindStorageUnavailable ErrorKind = "storage_unavailable"
)

// Error is a domain error with a stable kind and a human-readable message.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a domain error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind and message to an underlying error.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain. Errors that are not domain
// errors report as storage_unavailable, the only kind we are willing to
// blame on infrastructure.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindStorageUnavailable
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
