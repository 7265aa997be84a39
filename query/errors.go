package query

import (
	"errors"
	"fmt"
)

// Kind classifies a query failure.
type Kind int

const (
	// EmbeddingFailure means the query image could not be embedded.
	EmbeddingFailure Kind = iota + 1
	// IndexUnavailable means no archive is loaded.
	IndexUnavailable
	// EmptyResult means the query was valid but nothing matched.
	EmptyResult
)

func (k Kind) String() string {
	switch k {
	case EmbeddingFailure:
		return "embedding_failure"
	case IndexUnavailable:
		return "index_unavailable"
	case EmptyResult:
		return "empty_result"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Reason qualifies an EmptyResult.
type Reason string

const (
	// ReasonFiltered means candidates existed but none carried an allowed tag.
	ReasonFiltered Reason = "filtered"
	// ReasonArchiveEmpty means the archive holds no images.
	ReasonArchiveEmpty Reason = "archive_empty"
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrEmbeddingFailure = errors.New("query: embedding failure")
	ErrIndexUnavailable = errors.New("query: index unavailable")
	ErrEmptyResult      = errors.New("query: empty result")
)

// Error is the typed condition returned by Engine.Search.
type Error struct {
	Kind   Kind
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case EmbeddingFailure:
		msg = "query: could not embed image"
	case IndexUnavailable:
		msg = "query: archive not available, build it first"
	case EmptyResult:
		if e.Reason == ReasonFiltered {
			msg = "query: no matches found with current filters"
		} else {
			msg = "query: archive is empty"
		}
	default:
		msg = "query: " + e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrEmbeddingFailure:
		return e.Kind == EmbeddingFailure
	case ErrIndexUnavailable:
		return e.Kind == IndexUnavailable
	case ErrEmptyResult:
		return e.Kind == EmptyResult
	}
	return false
}

// KindOf returns the Kind carried by err, or zero when err is not a query error.
func KindOf(err error) Kind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return 0
}

// ReasonOf returns the EmptyResult reason carried by err, if any.
func ReasonOf(err error) Reason {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Reason
	}
	return ""
}
