package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/sendratama/otpgate/internal/challenge/entity"
	"github.com/sendratama/otpgate/internal/challenge/outbound/memory"
	"github.com/sendratama/otpgate/internal/challenge/usecase"
	"github.com/sendratama/otpgate/internal/pkg/goroutine"
	"github.com/sendratama/otpgate/internal/pkg/instrument"
	"github.com/sendratama/otpgate/internal/pkg/validator"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeUID struct{ n int64 }

func (u *fakeUID) Generate() int64 {
	u.n++
	return u.n
}

type fakeGenerator struct{ code string }

func (g *fakeGenerator) Generate(int) (string, error) { return g.code, nil }

type fakeHasher struct{}

func (fakeHasher) Hash(plaintext string) ([]byte, error) { return []byte("h:" + plaintext), nil }

func (fakeHasher) Verify(hashed, plaintext string) bool { return hashed == "h:"+plaintext }

type captureNotifier struct {
	deliveries []usecase.Delivery
	err        error
}

func (n *captureNotifier) Deliver(_ context.Context, d usecase.Delivery) error {
	if n.err != nil {
		return n.err
	}
	n.deliveries = append(n.deliveries, d)
	return nil
}

type captureMessaging struct {
	issued   []usecase.ChallengeIssuedEvent
	consumed []usecase.ChallengeConsumedEvent
}

func (m *captureMessaging) PublishChallengeIssued(_ context.Context, msg usecase.ChallengeIssuedEvent) error {
	m.issued = append(m.issued, msg)
	return nil
}

func (m *captureMessaging) PublishChallengeConsumed(_ context.Context, msg usecase.ChallengeConsumedEvent) error {
	m.consumed = append(m.consumed, msg)
	return nil
}

type env struct {
	uc       *usecase.Usecase
	clock    *fakeClock
	store    *memory.Store
	notifier *captureNotifier
	msg      *captureMessaging
}

func newTestEngine(t *testing.T, opts usecase.Options) *env {
	t.Helper()

	v10, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}

	e := &env{
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		store:    memory.NewStore(),
		notifier: &captureNotifier{},
		msg:      &captureMessaging{},
	}

	e.uc = usecase.New(usecase.Dependency{
		Store:         e.store,
		Notifier:      e.notifier,
		RepoMessaging: e.msg,
		Generator:     &fakeGenerator{code: "123456"},
		Hasher:        fakeHasher{},
		Validator:     v10,
		UID:           &fakeUID{},
		Clock:         e.clock,
		Instrument:    instrument.NewNoop(),
		Goroutine:     goroutine.NewManager(4),
		Options:       opts,
	})

	return e
}

func issueInput() usecase.IssueInput {
	return usecase.IssueInput{
		SubjectID:   "user-1",
		Purpose:     entity.PurposeLogin,
		Destination: "user@example.com",
	}
}

func verifyInput(code string) usecase.VerifyInput {
	return usecase.VerifyInput{
		SubjectID: "user-1",
		Purpose:   entity.PurposeLogin,
		Code:      code,
	}
}

func TestIssueAndVerify(t *testing.T) {
	e := newTestEngine(t, usecase.Options{})
	ctx := context.Background()

	out, err := e.uc.Issue(ctx, issueInput())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if out.ChallengeID == 0 {
		t.Fatal("expected non-zero challenge id")
	}
	if want := e.clock.now.Add(10 * time.Minute); !out.ExpiresAt.Equal(want) {
		t.Fatalf("expires at = %v, want %v", out.ExpiresAt, want)
	}
	if out.ResendAfter != time.Minute {
		t.Fatalf("resend after = %v, want %v", out.ResendAfter, time.Minute)
	}
	if len(e.notifier.deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(e.notifier.deliveries))
	}
	if d := e.notifier.deliveries[0]; d.Code != "123456" || d.Destination != "user@example.com" {
		t.Fatalf("unexpected delivery %+v", d)
	}
	if len(e.msg.issued) != 1 {
		t.Fatalf("issued events = %d, want 1", len(e.msg.issued))
	}

	vout, err := e.uc.Verify(ctx, verifyInput("123456"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if vout.ChallengeID != out.ChallengeID {
		t.Fatalf("challenge id = %d, want %d", vout.ChallengeID, out.ChallengeID)
	}
	if vout.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", vout.Attempts)
	}
	if len(e.msg.consumed) != 1 {
		t.Fatalf("consumed events = %d, want 1", len(e.msg.consumed))
	}

	// A consumed challenge must not be verifiable again.
	if _, err := e.uc.Verify(ctx, verifyInput("123456")); !errors.Is(err, entity.ErrNoActiveChallenge) {
		t.Fatalf("expected no active challenge, got %v", err)
	}
}

func TestIssueCooldown(t *testing.T) {
	e := newTestEngine(t, usecase.Options{})
	ctx := context.Background()

	if _, err := e.uc.Issue(ctx, issueInput()); err != nil {
		t.Fatalf("issue: %v", err)
	}

	e.clock.advance(30 * time.Second)
	_, err := e.uc.Issue(ctx, issueInput())
	if !errors.Is(err, entity.ErrThrottled) {
		t.Fatalf("expected throttled, got %v", err)
	}

	var gerr interface{ Fields() map[string]string }
	if !errors.As(err, &gerr) {
		t.Fatalf("expected error with fields, got %T", err)
	}
	if got := gerr.Fields()["retry_after_seconds"]; got != "30" {
		t.Fatalf("retry_after_seconds = %q, want 30", got)
	}

	e.clock.advance(31 * time.Second)
	if _, err := e.uc.Issue(ctx, issueInput()); err != nil {
		t.Fatalf("issue after cooldown: %v", err)
	}
}

func TestIssueSupersedesOutstanding(t *testing.T) {
	e := newTestEngine(t, usecase.Options{})
	ctx := context.Background()

	first, err := e.uc.Issue(ctx, issueInput())
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}

	e.clock.advance(2 * time.Minute)
	second, err := e.uc.Issue(ctx, issueInput())
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}
	if first.ChallengeID == second.ChallengeID {
		t.Fatal("expected a fresh challenge id")
	}

	vout, err := e.uc.Verify(ctx, verifyInput("123456"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if vout.ChallengeID != second.ChallengeID {
		t.Fatalf("verified challenge %d, want the superseding one %d", vout.ChallengeID, second.ChallengeID)
	}
}

func TestVerifyExpired(t *testing.T) {
	e := newTestEngine(t, usecase.Options{})
	ctx := context.Background()

	if _, err := e.uc.Issue(ctx, issueInput()); err != nil {
		t.Fatalf("issue: %v", err)
	}

	e.clock.advance(10 * time.Minute)
	if _, err := e.uc.Verify(ctx, verifyInput("123456")); !errors.Is(err, entity.ErrExpired) {
		t.Fatalf("expected expired, got %v", err)
	}

	// Expiry consumes the challenge; the next failure mode is no-active.
	if _, err := e.uc.Verify(ctx, verifyInput("123456")); !errors.Is(err, entity.ErrNoActiveChallenge) {
		t.Fatalf("expected no active challenge, got %v", err)
	}
}

func TestVerifyWrongCodeCountdown(t *testing.T) {
	e := newTestEngine(t, usecase.Options{})
	ctx := context.Background()

	if _, err := e.uc.Issue(ctx, issueInput()); err != nil {
		t.Fatalf("issue: %v", err)
	}

	for i, want := range []int32{3, 2, 1, 0} {
		_, err := e.uc.Verify(ctx, verifyInput("000000"))
		if !errors.Is(err, entity.ErrIncorrectCode) {
			t.Fatalf("try %d: expected incorrect code, got %v", i+1, err)
		}

		var ice *entity.IncorrectCodeError
		if !errors.As(err, &ice) {
			t.Fatalf("try %d: expected IncorrectCodeError, got %T", i+1, err)
		}
		if ice.Remaining != want {
			t.Fatalf("try %d: remaining = %d, want %d", i+1, ice.Remaining, want)
		}
	}

	if _, err := e.uc.Verify(ctx, verifyInput("000000")); !errors.Is(err, entity.ErrExhausted) {
		t.Fatalf("expected exhausted, got %v", err)
	}

	// Exhaustion is terminal even for the correct code.
	if _, err := e.uc.Verify(ctx, verifyInput("123456")); !errors.Is(err, entity.ErrNoActiveChallenge) {
		t.Fatalf("expected no active challenge, got %v", err)
	}
}

func TestVerifyNoChallenge(t *testing.T) {
	e := newTestEngine(t, usecase.Options{})

	if _, err := e.uc.Verify(context.Background(), verifyInput("123456")); !errors.Is(err, entity.ErrNoActiveChallenge) {
		t.Fatalf("expected no active challenge, got %v", err)
	}
}

func TestIssueDeliveryFailure(t *testing.T) {
	e := newTestEngine(t, usecase.Options{})
	e.notifier.err = errors.New("smtp: connection refused")
	ctx := context.Background()

	_, err := e.uc.Issue(ctx, issueInput())
	if !errors.Is(err, entity.ErrDeliveryFailed) {
		t.Fatalf("expected delivery failed, got %v", err)
	}
	if len(e.msg.issued) != 0 {
		t.Fatalf("issued events = %d, want 0", len(e.msg.issued))
	}

	// The created row stays until it expires, so a retry inside the
	// cooldown window is throttled.
	e.clock.advance(10 * time.Second)
	if _, err := e.uc.Issue(ctx, issueInput()); !errors.Is(err, entity.ErrThrottled) {
		t.Fatalf("expected throttled, got %v", err)
	}
}

func TestIssueTTLOverride(t *testing.T) {
	e := newTestEngine(t, usecase.Options{
		TTLOverrides: map[entity.Purpose]time.Duration{
			entity.PurposeLogin: 5 * time.Minute,
		},
	})
	ctx := context.Background()

	out, err := e.uc.Issue(ctx, issueInput())
	if err != nil {
		t.Fatalf("issue login: %v", err)
	}
	if want := e.clock.now.Add(5 * time.Minute); !out.ExpiresAt.Equal(want) {
		t.Fatalf("login expires at = %v, want %v", out.ExpiresAt, want)
	}

	in := issueInput()
	in.SubjectID = "user-2"
	in.Purpose = entity.PurposeRegistration
	out, err = e.uc.Issue(ctx, in)
	if err != nil {
		t.Fatalf("issue registration: %v", err)
	}
	if want := e.clock.now.Add(10 * time.Minute); !out.ExpiresAt.Equal(want) {
		t.Fatalf("registration expires at = %v, want %v", out.ExpiresAt, want)
	}
}

func TestIssueRejectsUnknownPurpose(t *testing.T) {
	e := newTestEngine(t, usecase.Options{})

	in := issueInput()
	in.Purpose = entity.PurposeUnknown
	if _, err := e.uc.Issue(context.Background(), in); err == nil {
		t.Fatal("expected an error for unknown purpose")
	}
}

func TestPurge(t *testing.T) {
	e := newTestEngine(t, usecase.Options{Retention: time.Hour})
	ctx := context.Background()

	if _, err := e.uc.Issue(ctx, issueInput()); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := e.uc.Verify(ctx, verifyInput("123456")); err != nil {
		t.Fatalf("verify: %v", err)
	}

	out, err := e.uc.Purge(ctx, usecase.PurgeInput{})
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if out.Deleted != 0 {
		t.Fatalf("deleted = %d, want 0 before retention elapses", out.Deleted)
	}

	e.clock.advance(2 * time.Hour)
	out, err = e.uc.Purge(ctx, usecase.PurgeInput{})
	if err != nil {
		t.Fatalf("purge after retention: %v", err)
	}
	if out.Deleted != 1 {
		t.Fatalf("deleted = %d, want 1", out.Deleted)
	}
}

func TestPlaintextCodeNeverLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(prev)

	e := newTestEngine(t, usecase.Options{})
	ctx := context.Background()

	if _, err := e.uc.Issue(ctx, issueInput()); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := e.uc.Verify(ctx, verifyInput("000000")); err == nil {
		t.Fatal("expected incorrect code")
	}
	if _, err := e.uc.Verify(ctx, verifyInput("123456")); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if strings.Contains(buf.String(), "123456") {
		t.Fatalf("log output leaked the plaintext code: %s", buf.String())
	}
}

func TestParseTTLOverrides(t *testing.T) {
	got := usecase.ParseTTLOverrides([]string{
		"login:5", " second_factor:3", "bogus:2", "registration:-1", "password_recovery:x",
	})
	want := map[entity.Purpose]time.Duration{
		entity.PurposeLogin:        5 * time.Minute,
		entity.PurposeSecondFactor: 3 * time.Minute,
	}

	if len(got) != len(want) {
		t.Fatalf("overrides = %v, want %v", got, want)
	}
	for p, d := range want {
		if got[p] != d {
			t.Fatalf("override for %s = %v, want %v", p, got[p], d)
		}
	}

	if usecase.ParseTTLOverrides(nil) != nil {
		t.Fatal("expected nil for empty input")
	}
}
