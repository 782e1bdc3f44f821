package host

import (
	"errors"
	"fmt"
)

var (
	// ErrChallengeUnavailable is returned when no challenge solver is configured
	ErrChallengeUnavailable = errors.New("challenge solver unavailable")

	// ErrNoCookieMaterial is returned when a solver succeeds without cookies
	ErrNoCookieMaterial = errors.New("challenge produced no cookie material")
)

// ArgumentError reports a guest call with unusable arguments
type ArgumentError struct {
	Function string
	Message  string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Function, e.Message)
}

// Code implements sandbox.Coder
func (e *ArgumentError) Code() string {
	return "invalid_argument"
}

// ChallengeError reports a failed challenge resolution
type ChallengeError struct {
	URL string
	Err error
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("challenge for %s failed: %v", e.URL, e.Err)
}

func (e *ChallengeError) Unwrap() error {
	return e.Err
}

// Code implements sandbox.Coder
func (e *ChallengeError) Code() string {
	if errors.Is(e.Err, ErrChallengeUnavailable) {
		return "challenge_unavailable"
	}
	return "challenge_failed"
}
