package email

import (
	"context"

	"go.uber.org/zap"

	"userdeck/internal/review"
)

type eventSource interface {
	Subscribe(buffer int) (<-chan review.Event, func())
	View() review.View
}

type arrivalsSender interface {
	SendArrivals(message string, pending int) error
}

// Notifier mails reviewers on every arrivals event.
type Notifier struct {
	source eventSource
	sender arrivalsSender
	logger *zap.Logger
}

func NewNotifier(source eventSource, sender arrivalsSender, logger *zap.Logger) *Notifier {
	return &Notifier{source: source, sender: sender, logger: logger}
}

// Run subscribes before returning control to the loop and stops when ctx is cancelled.
// Send failures are logged and dropped.
func (n *Notifier) Run(ctx context.Context) {
	events, cancel := n.source.Subscribe(8)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			if event.Kind != review.EventArrivals {
				continue
			}
			pending := len(n.source.View().Pending)
			if err := n.sender.SendArrivals(event.Message(), pending); err != nil {
				n.logger.Warn("arrivals email failed", zap.Int("count", event.Count), zap.Error(err))
				continue
			}
			n.logger.Info("arrivals email sent", zap.Int("count", event.Count), zap.Int("pending", pending))
		}
	}
}
