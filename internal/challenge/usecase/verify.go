package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sendratama/otpgate/internal/challenge/entity"
	"github.com/sendratama/otpgate/internal/pkg/goerror"
)

type VerifyInput struct {
	SubjectID string `validate:"required,max=64"`
	Purpose   entity.Purpose
	Code      string `validate:"required,numeric,min=4,max=10"`
}

type VerifyOutput struct {
	ChallengeID int64
	Attempts    int32
}

// Verify checks a candidate code against the outstanding challenge for the
// subject and purpose. The attempt counter is persisted before the hash
// comparison so that attempts survive a crash between the two steps. The
// candidate code itself is never logged.
func (s *Usecase) Verify(ctx context.Context, in VerifyInput) (*VerifyOutput, error) {
	ctx, span := s.startSpan(ctx, "Verify")
	defer span.End()

	in.SubjectID = strings.TrimSpace(in.SubjectID)
	in.Code = strings.TrimSpace(in.Code)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}
	if in.Purpose.IsUnknown() {
		return nil, goerror.NewInvalidInput(nil, "purpose", "purpose is not recognized")
	}

	sctx, cancel := s.storeCtx(ctx)
	ch, err := s.store.FetchActive(sctx, in.SubjectID, in.Purpose)
	cancel()
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, noActiveChallengeErr()
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch active challenge",
			"subject_id", in.SubjectID, "purpose", in.Purpose.String(), "error", err)
		return nil, s.storeErr(err)
	}

	now := s.clock.Now()
	if ch.Expired(now) {
		s.consume(ctx, ch.ID)
		slog.WarnContext(ctx, "verification on expired challenge",
			"challenge_id", ch.ID, "subject_id", in.SubjectID, "purpose", in.Purpose.String())
		return nil, goerror.NewBusinessWrap(entity.ErrExpired,
			"This code has expired, request a new one", goerror.CodeGone)
	}

	if ch.Attempts >= s.opts.MaxAttempts {
		s.consume(ctx, ch.ID)
		return nil, exhaustedErr()
	}

	sctx, cancel = s.storeCtx(ctx)
	updated, err := s.store.IncrementAttemptsAndFetch(sctx, ch.ID)
	cancel()
	if err != nil {
		slog.ErrorContext(ctx, "failed to increment challenge attempts",
			"challenge_id", ch.ID, "error", err)
		return nil, s.storeErr(err)
	}

	if s.hasher.Verify(updated.CodeHash, in.Code) {
		sctx, cancel = s.storeCtx(ctx)
		err = s.store.MarkConsumed(sctx, updated.ID)
		cancel()
		if err != nil {
			// Success must not be reported while the challenge is still
			// active in the store.
			slog.ErrorContext(ctx, "failed to consume verified challenge",
				"challenge_id", updated.ID, "error", err)
			return nil, s.storeErr(err)
		}

		if err := s.repoMsg.PublishChallengeConsumed(ctx, ChallengeConsumedEvent{
			ChallengeID: updated.ID,
			SubjectID:   updated.SubjectID,
			Purpose:     updated.Purpose,
			Attempts:    updated.Attempts,
		}); err != nil {
			slog.WarnContext(ctx, "failed to publish challenge consumed", "challenge_id", updated.ID, "error", err)
		}

		return &VerifyOutput{
			ChallengeID: updated.ID,
			Attempts:    updated.Attempts,
		}, nil
	}

	if updated.Attempts >= s.opts.MaxAttempts {
		// The final allowed try failed; report exhaustion rather than a
		// generic mismatch so the caller knows to re-issue.
		s.consume(ctx, updated.ID)
		slog.WarnContext(ctx, "challenge attempts exhausted",
			"challenge_id", updated.ID, "subject_id", in.SubjectID, "purpose", in.Purpose.String())
		return nil, exhaustedErr()
	}

	remaining := s.opts.MaxAttempts - updated.Attempts - 1
	return nil, incorrectCodeErr(remaining)
}

// consume is a best-effort transition to the terminal state; the caller's
// result does not depend on it succeeding.
func (s *Usecase) consume(ctx context.Context, id int64) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.store.MarkConsumed(sctx, id); err != nil {
		slog.ErrorContext(ctx, "failed to mark challenge consumed", "challenge_id", id, "error", err)
	}
}

func noActiveChallengeErr() error {
	return goerror.NewBusinessWrap(entity.ErrNoActiveChallenge,
		"No active verification code found, request a new one", goerror.CodeNotFound)
}

func exhaustedErr() error {
	return goerror.NewBusinessWrap(entity.ErrExhausted,
		"Too many failed attempts, request a new code", goerror.CodeTooManyRequest)
}

func incorrectCodeErr(remaining int32) error {
	return goerror.NewBusinessFields(
		&entity.IncorrectCodeError{Remaining: remaining},
		"Incorrect verification code",
		goerror.CodeUnauthorized,
		map[string]string{"remaining_attempts": strconv.FormatInt(int64(remaining), 10)},
	)
}
