package inbound

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sendratama/otpgate/internal/delivery/usecase"
	"github.com/sendratama/otpgate/internal/pkg/instrument"
	"github.com/sendratama/otpgate/internal/pkg/messaging"
	"github.com/sendratama/otpgate/internal/pkg/uid"
	"github.com/sendratama/otpgate/internal/shared/event"
)

const keyOfCorrelationID string = "cID"

type uc interface {
	SendCode(ctx context.Context, in usecase.SendCodeInput) error
}

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, headers []messaging.Header) context.Context {
	for i := range headers {
		if headers[i].Key == keyOfCorrelationID {
			return instrument.SetCorrelationID(ctx, string(headers[i].Value))
		}
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

// SendVerificationEmail handles a queued delivery request. The payload
// carries the plaintext code, so the body is never written to the log.
func (h *MQHandler) SendVerificationEmail(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg.Headers())

	ctx, span := h.ins.Tracer("delivery.inbound.mq").Start(ctx, "SendVerificationEmail")
	defer span.End()

	var payload event.ChallengeDeliveryRequestedMessage
	if err := json.Unmarshal(msg.Body(), &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse delivery request", "error", err)
		return nil
	}

	slog.InfoContext(ctx, "consume: challenge delivery request",
		"challenge_id", payload.ChallengeID, "purpose", payload.Purpose)

	if err := h.uc.SendCode(ctx, usecase.SendCodeInput{
		ChallengeID: payload.ChallengeID,
		SubjectID:   payload.SubjectID,
		Purpose:     payload.Purpose,
		Destination: payload.Destination,
		Code:        payload.Code,
		ExpiresAt:   time.Unix(payload.ExpiresAt, 0),
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume delivery request",
			"challenge_id", payload.ChallengeID, "error", err)
		return err
	}

	return nil
}
