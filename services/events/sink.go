package events

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/mailfold/mailfold/dto"
	"github.com/mailfold/mailfold/interfaces"
	"github.com/mailfold/mailfold/internal/models"
	"github.com/mailfold/mailfold/internal/tracing"
)

// EventSink forwards each newly observed message to RabbitMQ as a
// MessageReceived event.
type EventSink struct {
	publisher *RabbitMQPublisher
}

func NewEventSink(publisher *RabbitMQPublisher) interfaces.MessageSink {
	return &EventSink{publisher: publisher}
}

func (s *EventSink) Deliver(ctx context.Context, envelope models.MessageEnvelope) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EventSink.Deliver")
	defer span.Finish()
	tracing.TagComponentSink(span)
	tracing.TagAccount(span, envelope.AccountID)
	span.SetTag("uid", envelope.UID)

	message := dto.MessageReceived{
		AccountID: envelope.AccountID,
		UID:       envelope.UID,
		ArrivalAt: envelope.ArrivalAt,
		From:      envelope.From,
		Subject:   envelope.Subject,
		Size:      envelope.Size,
		Flags:     envelope.Flags,
	}

	if err := s.publisher.PublishMessageReceivedEvent(ctx, message); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
