package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/sendratama/otpgate/internal/pkg/goerror"
	"go.uber.org/atomic"
)

type PurgeInput struct {
	// RetentionMinutes overrides the configured retention window when
	// positive; terminal rows older than the window are deleted.
	RetentionMinutes int32 `validate:"omitempty,min=0,max=10080"`
}

type PurgeOutput struct {
	Deleted int64
}

const purgeBatchLimit = int32(1000)

// Purge removes expired and terminal challenges older than the retention
// window. Advisory only; correctness of Issue and Verify never depends on
// it having run.
func (s *Usecase) Purge(ctx context.Context, in PurgeInput) (*PurgeOutput, error) {
	ctx, span := s.startSpan(ctx, "Purge")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	retention := s.opts.Retention
	if in.RetentionMinutes > 0 {
		retention = time.Duration(in.RetentionMinutes) * time.Minute
	}

	olderThan := s.clock.Now().Add(-retention)

	var total int64
	for {
		sctx, cancel := s.storeCtx(ctx)
		deleted, err := s.store.PurgeExpired(sctx, olderThan, purgeBatchLimit)
		cancel()
		if err != nil {
			slog.ErrorContext(ctx, "failed to purge expired challenges", "error", err)
			return nil, s.storeErr(err)
		}

		total += deleted
		if deleted < int64(purgeBatchLimit) {
			break
		}
	}

	if total > 0 {
		slog.InfoContext(ctx, "purged expired challenges", "deleted", total)
	}

	return &PurgeOutput{Deleted: total}, nil
}

// Sweeper periodically purges expired challenges in the background.
type Sweeper struct {
	uc       *Usecase
	interval time.Duration

	// Runs and Deleted expose sweep counters for tests and health checks.
	Runs    atomic.Int64
	Deleted atomic.Int64
}

func NewSweeper(uc *Usecase, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Sweeper{
		uc:       uc,
		interval: interval,
	}
}

// Start launches the sweep loop on the usecase's goroutine manager. It
// stops when ctx is canceled.
func (w *Sweeper) Start(ctx context.Context) {
	w.uc.goroutine.Go(ctx, func(ctx context.Context) error {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				out, err := w.uc.Purge(ctx, PurgeInput{})
				if err != nil {
					slog.WarnContext(ctx, "challenge sweep failed", "error", err)
					continue
				}
				w.Runs.Inc()
				w.Deleted.Add(out.Deleted)
			}
		}
	})
}
