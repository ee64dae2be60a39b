package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration   = errors.New("configuration error")
	ErrValidation      = errors.New("validation error")
	ErrRequest         = errors.New("request error")
	ErrNoTask          = errors.New("no search task created")
	ErrSearchFailed    = errors.New("search failed")
	ErrSearchCancelled = errors.New("search cancelled")
	ErrTimeout         = errors.New("timeout")
	ErrMalformedRecord = errors.New("malformed record")
	ErrPublish         = errors.New("publish failure")
	ErrTransient       = errors.New("transient failure")
)

// Failure kinds persisted with each run.
const (
	KindNone            = ""
	KindConfiguration   = "configuration"
	KindRequest         = "request"
	KindNoTask          = "no_task"
	KindSearchFailed    = "search_failed"
	KindSearchCancelled = "search_cancelled"
	KindTimeout         = "timeout"
	KindInterrupted     = "interrupted"
	KindUnknown         = "unknown"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureKind maps a fatal run error to the stable label stored in run history.
// Cancellation is checked before the search markers so an interrupted poll is
// not reported as a backend failure.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.Canceled):
		return KindInterrupted
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrValidation):
		return KindConfiguration
	case errors.Is(err, ErrNoTask):
		return KindNoTask
	case errors.Is(err, ErrSearchCancelled):
		return KindSearchCancelled
	case errors.Is(err, ErrSearchFailed):
		return KindSearchFailed
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrRequest):
		return KindRequest
	default:
		return KindUnknown
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
