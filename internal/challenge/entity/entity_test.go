package entity_test

import (
	"errors"
	"testing"
	"time"

	"github.com/sendratama/otpgate/internal/challenge/entity"
)

func TestPurposeRoundTrip(t *testing.T) {
	purposes := []entity.Purpose{
		entity.PurposeRegistration,
		entity.PurposeLogin,
		entity.PurposePasswordRecovery,
		entity.PurposeEmailChange,
		entity.PurposePhoneChange,
		entity.PurposeSecondFactor,
	}

	for _, p := range purposes {
		if p.IsUnknown() {
			t.Fatalf("%s should be known", p)
		}
		if got := entity.PurposeFromString(p.String()); got != p {
			t.Fatalf("round trip %s = %s", p, got)
		}
	}

	if !entity.PurposeFromString("nope").IsUnknown() {
		t.Fatal("unrecognized name should map to unknown")
	}
	if !entity.PurposeUnknown.IsUnknown() {
		t.Fatal("zero value should be unknown")
	}
}

func TestChallengeLifecyclePredicates(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ch := entity.Challenge{
		ID:        1,
		SubjectID: "user-1",
		Purpose:   entity.PurposeLogin,
		ExpiresAt: now.Add(10 * time.Minute),
		CreatedAt: now,
	}

	if ch.Expired(now) {
		t.Fatal("fresh challenge should not be expired")
	}
	if !ch.Expired(now.Add(10 * time.Minute)) {
		t.Fatal("challenge should expire exactly at its deadline")
	}

	if !ch.Active(now, 5) {
		t.Fatal("fresh challenge should be active")
	}

	ch.Attempts = 5
	if ch.Active(now, 5) {
		t.Fatal("challenge at the attempt limit should be inactive")
	}

	ch.Attempts = 0
	ch.Consumed = true
	if ch.Active(now, 5) {
		t.Fatal("consumed challenge should be inactive")
	}
}

func TestErrorIdentity(t *testing.T) {
	thr := &entity.ThrottledError{RetryAfter: 40 * time.Second}
	if !errors.Is(thr, entity.ErrThrottled) {
		t.Fatal("ThrottledError should match ErrThrottled")
	}

	ice := &entity.IncorrectCodeError{Remaining: 2}
	if !errors.Is(ice, entity.ErrIncorrectCode) {
		t.Fatal("IncorrectCodeError should match ErrIncorrectCode")
	}
	if errors.Is(ice, entity.ErrThrottled) {
		t.Fatal("IncorrectCodeError should not match ErrThrottled")
	}
}
