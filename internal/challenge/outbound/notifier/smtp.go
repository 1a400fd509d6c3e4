// Package notifier implements the delivery channels for verification
// codes: direct SMTP and a message-queue hand-off to the delivery worker.
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/sendratama/otpgate/internal/challenge/entity"
	"github.com/sendratama/otpgate/internal/challenge/usecase"
	"github.com/sendratama/otpgate/internal/pkg/instrument"
	"github.com/sendratama/otpgate/internal/pkg/mail"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/codes"
)

// SMTP sends the code by email synchronously. Transient SMTP failures are
// retried with a capped fibonacci backoff inside the caller's deadline.
type SMTP struct {
	client     mail.Mail
	ins        instrument.Instrumentation
	maxRetries uint64
}

func NewSMTP(client mail.Mail, ins instrument.Instrumentation) *SMTP {
	return &SMTP{client: client, ins: ins, maxRetries: 2}
}

func (s *SMTP) Deliver(ctx context.Context, d usecase.Delivery) error {
	ctx, span := s.ins.Tracer("challenge.outbound.notifier").Start(ctx, "SMTP.Deliver")
	defer span.End()

	msg := mail.Message{
		To:       []string{d.Destination},
		Subject:  subjectFor(d.Purpose),
		TextBody: textBody(d),
		HTMLBody: htmlBody(d),
	}

	b := retry.NewFibonacci(250 * time.Millisecond)
	b = retry.WithCappedDuration(2*time.Second, b)
	b = retry.WithMaxRetries(s.maxRetries, b)

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := s.client.Send(ctx, msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func subjectFor(p entity.Purpose) string {
	switch p {
	case entity.PurposeRegistration:
		return "Confirm your registration"
	case entity.PurposeLogin:
		return "Your sign-in code"
	case entity.PurposePasswordRecovery:
		return "Reset your password"
	case entity.PurposeEmailChange:
		return "Confirm your new email address"
	case entity.PurposePhoneChange:
		return "Confirm your new phone number"
	case entity.PurposeSecondFactor:
		return "Your two-factor code"
	default:
		return "Your verification code"
	}
}

func textBody(d usecase.Delivery) string {
	mins := int(time.Until(d.ExpiresAt).Round(time.Minute).Minutes())
	if mins < 1 {
		mins = 1
	}
	return fmt.Sprintf("Your verification code is %s. It expires in %d minutes.\n\nIf you did not request this code, you can ignore this message.\n", d.Code, mins)
}

func htmlBody(d usecase.Delivery) string {
	mins := int(time.Until(d.ExpiresAt).Round(time.Minute).Minutes())
	if mins < 1 {
		mins = 1
	}
	return fmt.Sprintf(`<p>Your verification code is:</p><p style="font-size:24px;font-weight:bold;letter-spacing:4px">%s</p><p>It expires in %d minutes. If you did not request this code, you can ignore this message.</p>`, d.Code, mins)
}
