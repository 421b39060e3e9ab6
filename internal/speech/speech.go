// Package speech wraps the text-to-speech collaborator and the narration
// flow that consults the audio cache before paying for a generation.
package speech

import (
	"context"
	"errors"

	"github.com/containerd/errdefs"
)

// ErrEmptyText is returned when there is nothing to narrate.
var ErrEmptyText = errors.New("no text to narrate")

// Generator turns text into an audio artifact. Failures are classified with
// errdefs kinds so callers can tell rate limits from bad credentials.
type Generator interface {
	Generate(ctx context.Context, text string) ([]byte, error)
}

// Failure reasons reported to the UI.
const (
	ReasonRateLimited  = "rate_limited"
	ReasonUnauthorized = "unauthorized"
	ReasonNotFound     = "not_found"
	ReasonInvalid      = "invalid"
	ReasonUnavailable  = "unavailable"
	ReasonUnknown      = "unknown"
)

// Reason maps a generation error to a stable, user-actionable reason.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errdefs.IsResourceExhausted(err):
		return ReasonRateLimited
	case errdefs.IsUnauthorized(err), errdefs.IsPermissionDenied(err):
		return ReasonUnauthorized
	case errdefs.IsNotFound(err):
		return ReasonNotFound
	case errors.Is(err, ErrEmptyText), errdefs.IsInvalidArgument(err):
		return ReasonInvalid
	case errdefs.IsUnavailable(err), errors.Is(err, context.DeadlineExceeded):
		return ReasonUnavailable
	default:
		return ReasonUnknown
	}
}
