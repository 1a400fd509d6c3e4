package entity

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrThrottled means the cooldown window is still active; the caller
	// should retry after the wait reported by ThrottledError.
	ErrThrottled = errors.New("challenge: issuance throttled")

	// ErrNoActiveChallenge means no outstanding challenge exists for the
	// subject and purpose; the caller should issue a new one.
	ErrNoActiveChallenge = errors.New("challenge: no active challenge")

	// ErrExpired means the challenge deadline passed; terminal.
	ErrExpired = errors.New("challenge: code expired")

	// ErrExhausted means the attempt limit was reached; terminal.
	ErrExhausted = errors.New("challenge: attempts exhausted")

	// ErrIncorrectCode means the candidate did not match; recoverable
	// within the remaining attempts reported by IncorrectCodeError.
	ErrIncorrectCode = errors.New("challenge: incorrect code")

	// ErrDeliveryFailed means the code could not reach the subject.
	ErrDeliveryFailed = errors.New("challenge: delivery failed")

	// ErrStoreUnavailable means the persistence layer failed.
	ErrStoreUnavailable = errors.New("challenge: store unavailable")
)

// ThrottledError carries the remaining cooldown wait.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("challenge: issuance throttled, retry after %s", e.RetryAfter)
}

func (e *ThrottledError) Is(target error) bool {
	return target == ErrThrottled
}

// IncorrectCodeError carries how many attempts can still fail before the
// challenge is exhausted.
type IncorrectCodeError struct {
	Remaining int32
}

func (e *IncorrectCodeError) Error() string {
	return fmt.Sprintf("challenge: incorrect code, %d attempts remaining", e.Remaining)
}

func (e *IncorrectCodeError) Is(target error) bool {
	return target == ErrIncorrectCode
}
