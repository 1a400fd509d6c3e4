package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sendratama/otpgate/internal/challenge/entity"
	"github.com/sendratama/otpgate/internal/pkg/goerror"
	"github.com/sendratama/otpgate/internal/pkg/idempotency"
)

type IssueInput struct {
	SubjectID   string `validate:"required,max=64"`
	Purpose     entity.Purpose
	Destination string `validate:"required,min=3,max=255"`

	// IdempotencyKey, when set, makes retried requests replay-safe.
	IdempotencyKey string `validate:"omitempty,max=128"`
}

type IssueOutput struct {
	ChallengeID int64
	ExpiresAt   time.Time
	ResendAfter time.Duration
}

// Issue creates a new verification challenge for the subject and purpose,
// superseding any outstanding one, and delivers the code out of band. The
// plaintext code never leaves this call path and is never logged.
func (s *Usecase) Issue(ctx context.Context, in IssueInput) (*IssueOutput, error) {
	ctx, span := s.startSpan(ctx, "Issue")
	defer span.End()

	in.SubjectID = strings.TrimSpace(in.SubjectID)
	in.Destination = strings.TrimSpace(in.Destination)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}
	if in.Purpose.IsUnknown() {
		return nil, goerror.NewInvalidInput(nil, "purpose", "purpose is not recognized")
	}

	if in.IdempotencyKey == "" {
		return s.issue(ctx, in)
	}

	var out *IssueOutput
	err := s.idemp.Exec(ctx, "challenge:issue:"+in.IdempotencyKey, func(ctx context.Context) error {
		var ierr error
		out, ierr = s.issue(ctx, in)
		return ierr
	}, idempotency.WithStateTTL(s.opts.ttlFor(in.Purpose)))

	switch {
	case errors.Is(err, idempotency.ErrInProgress), errors.Is(err, idempotency.ErrCompleted):
		return nil, goerror.NewBusiness("This request was already processed", goerror.CodeConflict)
	case errors.Is(err, idempotency.ErrFailed):
		return nil, goerror.NewBusiness("A previous attempt with this key failed, use a new idempotency key", goerror.CodeConflict)
	case err != nil:
		return nil, err
	}

	return out, nil
}

func (s *Usecase) issue(ctx context.Context, in IssueInput) (*IssueOutput, error) {
	sctx, cancel := s.storeCtx(ctx)
	ok, retryAfter, err := s.guard.Allow(sctx, in.SubjectID, in.Purpose)
	cancel()
	if err != nil {
		slog.ErrorContext(ctx, "failed to check issuance cooldown",
			"subject_id", in.SubjectID, "purpose", in.Purpose.String(), "error", err)
		return nil, s.storeErr(err)
	}
	if !ok {
		return nil, throttledErr(retryAfter)
	}

	code, err := s.generator.Generate(s.opts.CodeLength)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate verification code", "error", err)
		return nil, goerror.NewServer(err)
	}

	hashed, err := s.hasher.Hash(code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash verification code", "error", err)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()
	ch := entity.Challenge{
		ID:        s.uid.Generate(),
		SubjectID: in.SubjectID,
		Purpose:   in.Purpose,
		CodeHash:  string(hashed),
		ExpiresAt: now.Add(s.opts.ttlFor(in.Purpose)),
		CreatedAt: now,
	}

	sctx, cancel = s.storeCtx(ctx)
	err = s.store.CreateAndSupersede(sctx, ch, s.opts.Cooldown)
	cancel()

	var thr *entity.ThrottledError
	if errors.As(err, &thr) {
		return nil, throttledErr(thr.RetryAfter)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to create challenge",
			"subject_id", in.SubjectID, "purpose", in.Purpose.String(), "error", err)
		return nil, s.storeErr(err)
	}

	dctx, cancel := context.WithTimeout(ctx, s.opts.DeliveryTimeout)
	err = s.notifier.Deliver(dctx, Delivery{
		ChallengeID: ch.ID,
		SubjectID:   ch.SubjectID,
		Destination: in.Destination,
		Code:        code,
		Purpose:     ch.Purpose,
		ExpiresAt:   ch.ExpiresAt,
	})
	cancel()
	if err != nil {
		// The created row is left to expire naturally; from the caller's
		// perspective no challenge was issued.
		slog.ErrorContext(ctx, "failed to deliver verification code",
			"challenge_id", ch.ID, "purpose", in.Purpose.String(), "error", err)
		return nil, goerror.NewBusinessWrap(
			fmt.Errorf("%w: %w", entity.ErrDeliveryFailed, err),
			"We could not deliver your verification code. Please try again.",
			goerror.CodeDependency,
		)
	}

	if err := s.repoMsg.PublishChallengeIssued(ctx, ChallengeIssuedEvent{
		ChallengeID: ch.ID,
		SubjectID:   ch.SubjectID,
		Purpose:     ch.Purpose,
		ExpiresAt:   ch.ExpiresAt,
	}); err != nil {
		slog.WarnContext(ctx, "failed to publish challenge issued", "challenge_id", ch.ID, "error", err)
	}

	return &IssueOutput{
		ChallengeID: ch.ID,
		ExpiresAt:   ch.ExpiresAt,
		ResendAfter: s.opts.Cooldown,
	}, nil
}

func (s *Usecase) storeErr(err error) error {
	return goerror.NewServer(fmt.Errorf("%w: %w", entity.ErrStoreUnavailable, err))
}

func throttledErr(retryAfter time.Duration) error {
	seconds := int64(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}

	return goerror.NewBusinessFields(
		&entity.ThrottledError{RetryAfter: retryAfter},
		"Please wait before requesting a new code",
		goerror.CodeTooManyRequest,
		map[string]string{"retry_after_seconds": strconv.FormatInt(seconds, 10)},
	)
}
