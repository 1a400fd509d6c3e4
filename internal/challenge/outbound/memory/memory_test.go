package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sendratama/otpgate/internal/challenge/entity"
	"github.com/sendratama/otpgate/internal/challenge/outbound/memory"
	"github.com/sendratama/otpgate/internal/pkg/goerror"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func challengeAt(id int64, created time.Time) entity.Challenge {
	return entity.Challenge{
		ID:        id,
		SubjectID: "user-1",
		Purpose:   entity.PurposeLogin,
		CodeHash:  "hash",
		ExpiresAt: created.Add(10 * time.Minute),
		CreatedAt: created,
	}
}

func TestCreateAndSupersede(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	if err := s.CreateAndSupersede(ctx, challengeAt(1, base), 0); err != nil {
		t.Fatalf("create first: %v", err)
	}
	if err := s.CreateAndSupersede(ctx, challengeAt(2, base.Add(time.Minute)), 0); err != nil {
		t.Fatalf("create second: %v", err)
	}

	active, err := s.FetchActive(ctx, "user-1", entity.PurposeLogin)
	if err != nil {
		t.Fatalf("fetch active: %v", err)
	}
	if active.ID != 2 {
		t.Fatalf("active id = %d, want 2", active.ID)
	}

	// The superseded row is consumed, not deleted.
	last, err := s.LastCreatedAt(ctx, "user-1", entity.PurposeLogin)
	if err != nil {
		t.Fatalf("last created at: %v", err)
	}
	if !last.Equal(base.Add(time.Minute)) {
		t.Fatalf("last created at = %v, want %v", last, base.Add(time.Minute))
	}
}

func TestCreateCooldown(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	if err := s.CreateAndSupersede(ctx, challengeAt(1, base), time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := s.CreateAndSupersede(ctx, challengeAt(2, base.Add(20*time.Second)), time.Minute)
	var thr *entity.ThrottledError
	if !errors.As(err, &thr) {
		t.Fatalf("expected ThrottledError, got %v", err)
	}
	if thr.RetryAfter != 40*time.Second {
		t.Fatalf("retry after = %v, want 40s", thr.RetryAfter)
	}

	if err := s.CreateAndSupersede(ctx, challengeAt(3, base.Add(61*time.Second)), time.Minute); err != nil {
		t.Fatalf("create after cooldown: %v", err)
	}
}

func TestIncrementAndConsume(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	if err := s.CreateAndSupersede(ctx, challengeAt(1, base), 0); err != nil {
		t.Fatalf("create: %v", err)
	}

	for want := int32(1); want <= 3; want++ {
		ch, err := s.IncrementAttemptsAndFetch(ctx, 1)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if ch.Attempts != want {
			t.Fatalf("attempts = %d, want %d", ch.Attempts, want)
		}
	}

	if err := s.MarkConsumed(ctx, 1); err != nil {
		t.Fatalf("mark consumed: %v", err)
	}
	// Idempotent.
	if err := s.MarkConsumed(ctx, 1); err != nil {
		t.Fatalf("mark consumed twice: %v", err)
	}

	if _, err := s.FetchActive(ctx, "user-1", entity.PurposeLogin); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("expected not found after consume, got %v", err)
	}

	if _, err := s.IncrementAttemptsAndFetch(ctx, 99); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
}

func TestPurgeExpired(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	if err := s.CreateAndSupersede(ctx, challengeAt(1, base), 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	fresh := challengeAt(2, base.Add(time.Hour))
	fresh.SubjectID = "user-2"
	if err := s.CreateAndSupersede(ctx, fresh, 0); err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	deleted, err := s.PurgeExpired(ctx, base.Add(30*time.Minute), 100)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}

	if _, err := s.FetchActive(ctx, "user-2", entity.PurposeLogin); err != nil {
		t.Fatalf("fresh challenge should survive: %v", err)
	}
}

func TestConcurrentIncrements(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	if err := s.CreateAndSupersede(ctx, challengeAt(1, base), 0); err != nil {
		t.Fatalf("create: %v", err)
	}

	const workers = 50
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.IncrementAttemptsAndFetch(ctx, 1); err != nil {
				t.Errorf("increment: %v", err)
			}
		}()
	}
	wg.Wait()

	ch, err := s.IncrementAttemptsAndFetch(ctx, 1)
	if err != nil {
		t.Fatalf("final increment: %v", err)
	}
	if ch.Attempts != workers+1 {
		t.Fatalf("attempts = %d, want %d", ch.Attempts, workers+1)
	}
}

func TestConcurrentCreateSamePair(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.CreateAndSupersede(ctx, challengeAt(int64(i+1), base), time.Minute)
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		var thr *entity.ThrottledError
		switch {
		case err == nil:
			created++
		case errors.As(err, &thr):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Fatalf("created = %d, want exactly 1 within the cooldown window", created)
	}
}
