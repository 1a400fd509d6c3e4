package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sendratama/otpgate/internal/pkg/goerror"
	"github.com/sendratama/otpgate/internal/pkg/mail"
)

type SendCodeInput struct {
	ChallengeID int64  `validate:"required"`
	SubjectID   string `validate:"required,max=64"`
	Purpose     string `validate:"required,max=32"`
	Destination string `validate:"required,min=3,max=255"`
	Code        string `validate:"required,min=4,max=10"`
	ExpiresAt   time.Time
}

// SendCode emails the verification code. A challenge already past its
// deadline is skipped rather than delivered late.
func (s *Usecase) SendCode(ctx context.Context, in SendCodeInput) error {
	ctx, span := s.startSpan(ctx, "SendCode")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	remaining := in.ExpiresAt.Sub(s.clock.Now())
	if remaining <= 0 {
		slog.WarnContext(ctx, "skipping delivery of expired challenge",
			"challenge_id", in.ChallengeID, "purpose", in.Purpose)
		return nil
	}

	mins := int(remaining.Round(time.Minute).Minutes())
	if mins < 1 {
		mins = 1
	}

	msg := mail.Message{
		To:      []string{in.Destination},
		Subject: subjectFor(in.Purpose),
		TextBody: fmt.Sprintf(
			"Your verification code is %s. It expires in %d minutes.\n\nIf you did not request this code, you can ignore this message.\n",
			in.Code, mins),
		HTMLBody: fmt.Sprintf(
			`<p>Your verification code is:</p><p style="font-size:24px;font-weight:bold;letter-spacing:4px">%s</p><p>It expires in %d minutes. If you did not request this code, you can ignore this message.</p>`,
			in.Code, mins),
	}

	if err := s.repoMail.Send(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "failed to send verification email",
			"challenge_id", in.ChallengeID, "purpose", in.Purpose, "error", err)
		return err
	}

	return nil
}

func subjectFor(purpose string) string {
	switch purpose {
	case "registration":
		return "Confirm your registration"
	case "login":
		return "Your sign-in code"
	case "password_recovery":
		return "Reset your password"
	case "email_change":
		return "Confirm your new email address"
	case "phone_change":
		return "Confirm your new phone number"
	case "second_factor":
		return "Your two-factor code"
	default:
		return "Your verification code"
	}
}
