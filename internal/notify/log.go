package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes messages to the log instead of a carrier. Used when no
// carrier account is configured, e.g. local development.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSender{log: log.Named("notify")}
}

func (s *LogSender) Send(ctx context.Context, phone, text string) error {
	s.log.Info("message (log only)", zap.String("to", phone), zap.String("text", text))
	return nil
}
