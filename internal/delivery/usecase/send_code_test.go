package usecase_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sendratama/otpgate/internal/delivery/usecase"
	"github.com/sendratama/otpgate/internal/pkg/instrument"
	"github.com/sendratama/otpgate/internal/pkg/mail"
	"github.com/sendratama/otpgate/internal/pkg/validator"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type captureMail struct {
	sent []mail.Message
}

func (m *captureMail) Send(_ context.Context, msg mail.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

func newWorker(t *testing.T) (*usecase.Usecase, *captureMail, *fakeClock) {
	t.Helper()

	v10, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}

	mailer := &captureMail{}
	clk := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	uc := usecase.New(usecase.Dependency{
		RepoMail:   mailer,
		Validator:  v10,
		Clock:      clk,
		Instrument: instrument.NewNoop(),
	})

	return uc, mailer, clk
}

func sendInput(clk *fakeClock) usecase.SendCodeInput {
	return usecase.SendCodeInput{
		ChallengeID: 7,
		SubjectID:   "user-1",
		Purpose:     "login",
		Destination: "user@example.com",
		Code:        "123456",
		ExpiresAt:   clk.now.Add(10 * time.Minute),
	}
}

func TestSendCode(t *testing.T) {
	uc, mailer, clk := newWorker(t)

	if err := uc.SendCode(context.Background(), sendInput(clk)); err != nil {
		t.Fatalf("send code: %v", err)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(mailer.sent))
	}

	msg := mailer.sent[0]
	if msg.To[0] != "user@example.com" {
		t.Fatalf("to = %q", msg.To[0])
	}
	if msg.Subject != "Your sign-in code" {
		t.Fatalf("subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.TextBody, "123456") {
		t.Fatal("text body should contain the code")
	}
	if !strings.Contains(msg.TextBody, "10 minutes") {
		t.Fatalf("text body should name the expiry window, got %q", msg.TextBody)
	}
}

func TestSendCodeSkipsExpired(t *testing.T) {
	uc, mailer, clk := newWorker(t)

	in := sendInput(clk)
	in.ExpiresAt = clk.now.Add(-time.Minute)

	if err := uc.SendCode(context.Background(), in); err != nil {
		t.Fatalf("send code: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("sent = %d, want 0 for an expired challenge", len(mailer.sent))
	}
}

func TestSendCodeValidatesInput(t *testing.T) {
	uc, mailer, clk := newWorker(t)

	in := sendInput(clk)
	in.Destination = ""

	if err := uc.SendCode(context.Background(), in); err == nil {
		t.Fatal("expected a validation error")
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("sent = %d, want 0", len(mailer.sent))
	}
}
