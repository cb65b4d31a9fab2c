package notification

import (
	"context"

	"go.uber.org/zap"
)

// ZapSink writes every event to the structured log.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Deliver(_ context.Context, event Event) error {
	s.logger.Info("notification",
		zap.String("event", event.Name),
		zap.String("event_id", event.ID),
		zap.String("account_id", event.AccountID),
		zap.Any("payload", event.Payload),
	)
	return nil
}
