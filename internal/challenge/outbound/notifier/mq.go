package notifier

import (
	"context"
	"encoding/json"

	"github.com/sendratama/otpgate/internal/challenge/usecase"
	"github.com/sendratama/otpgate/internal/pkg/instrument"
	"github.com/sendratama/otpgate/internal/pkg/messaging"
	"github.com/sendratama/otpgate/internal/shared/event"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

// MQ hands the delivery off to the background worker through the broker.
// Delivery then succeeds as soon as the broker accepts the message.
type MQ struct {
	client messaging.Messaging
	ins    instrument.Instrumentation
}

func NewMQ(client messaging.Messaging, ins instrument.Instrumentation) *MQ {
	return &MQ{client: client, ins: ins}
}

func (m *MQ) Deliver(ctx context.Context, d usecase.Delivery) error {
	ctx, span := m.ins.Tracer("challenge.outbound.notifier").Start(ctx, "MQ.Deliver")
	defer span.End()

	body, err := json.Marshal(event.ChallengeDeliveryRequestedMessage{
		ChallengeID: d.ChallengeID,
		SubjectID:   d.SubjectID,
		Purpose:     d.Purpose.String(),
		Destination: d.Destination,
		Code:        d.Code,
		ExpiresAt:   d.ExpiresAt.Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if _, err := m.client.Publish(ctx, event.ChallengeDeliveryRequestedDestination, messaging.OutgoingMessage{
		Body:    body,
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte(cID)}},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
