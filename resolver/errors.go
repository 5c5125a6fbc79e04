package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingURL is returned synchronously by Resolve, before any fetch is
// attempted, when no tile map URL was supplied.
var ErrMissingURL = errors.New("url option is required")

// UnsupportedProfileError signals a capabilities document declaring a profile
// this resolver cannot map to a tiling scheme.
type UnsupportedProfileError struct {
	Profile string
}

func (e *UnsupportedProfileError) Error() string {
	return fmt.Sprintf("unsupported TMS profile %q, expected one of: %s",
		e.Profile, strings.Join(KnownProfiles(), ", "))
}

// RetryPolicy decides whether a failed resolution attempt may retry the whole
// capabilities fetch. attempt counts completed attempts, starting at 0.
type RetryPolicy interface {
	ShouldRetry(err error, attempt uint) bool
}

// MaxRetries grants a fixed number of retries regardless of the error.
type MaxRetries uint

func (m MaxRetries) ShouldRetry(_ error, attempt uint) bool {
	return attempt < uint(m)
}
