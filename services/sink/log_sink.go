package sink

import (
	"context"
	"strings"

	"github.com/mailfold/mailfold/interfaces"
	"github.com/mailfold/mailfold/internal/logger"
	"github.com/mailfold/mailfold/internal/models"
)

// LogSink is the default sink: one log line per newly observed message.
type LogSink struct {
	log logger.Logger
}

func NewLogSink(log logger.Logger) interfaces.MessageSink {
	return &LogSink{log: log}
}

func (s *LogSink) Deliver(ctx context.Context, envelope models.MessageEnvelope) error {
	s.log.Infof("[%s] New message uid=%d from=%s subject=%q arrived=%s",
		envelope.AccountID,
		envelope.UID,
		strings.Join(envelope.From, ","),
		envelope.Subject,
		envelope.ArrivalAt.Format("2006-01-02T15:04:05Z07:00"),
	)
	return nil
}
