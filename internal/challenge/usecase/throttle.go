package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/sendratama/otpgate/internal/challenge/entity"
	"github.com/sendratama/otpgate/internal/pkg/clock"
	"github.com/sendratama/otpgate/internal/pkg/goerror"
)

// ThrottleGuard enforces a minimum spacing between successive issuances
// for the same (subject, purpose) pair.
//
// This is the advisory fast path; the store re-checks the cooldown inside
// CreateAndSupersede's atomic unit, which closes the race between two
// concurrent Issue calls that both pass this check.
type ThrottleGuard struct {
	store    ChallengeStore
	clock    clock.Clocker
	cooldown time.Duration
}

func NewThrottleGuard(store ChallengeStore, clk clock.Clocker, cooldown time.Duration) *ThrottleGuard {
	return &ThrottleGuard{
		store:    store,
		clock:    clk,
		cooldown: cooldown,
	}
}

// Allow reports whether a new challenge may be issued now, and if not,
// how long the caller has to wait.
func (g *ThrottleGuard) Allow(ctx context.Context, subjectID string, purpose entity.Purpose) (bool, time.Duration, error) {
	if g.cooldown <= 0 {
		return true, 0, nil
	}

	last, err := g.store.LastCreatedAt(ctx, subjectID, purpose)
	if errors.Is(err, goerror.ErrNotFound) {
		return true, 0, nil
	}
	if err != nil {
		return false, 0, err
	}

	elapsed := g.clock.Now().Sub(last)
	if elapsed >= g.cooldown {
		return true, 0, nil
	}
	return false, g.cooldown - elapsed, nil
}
