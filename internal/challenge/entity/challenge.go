package entity

import "time"

// Challenge is a single issued verification code bound to a subject and
// a purpose. The plaintext code is never stored, only its hash.
type Challenge struct {
	ID        int64
	SubjectID string
	Purpose   Purpose
	CodeHash  string
	Attempts  int32
	Consumed  bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the challenge's deadline has passed at the
// given instant.
func (c Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Active reports whether the challenge can still accept verification
// attempts at the given instant.
func (c Challenge) Active(now time.Time, maxAttempts int32) bool {
	return !c.Consumed && c.Attempts < maxAttempts && !c.Expired(now)
}
