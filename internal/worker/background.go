package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/service"
)

// Background owns the event consumers running beside the HTTP server:
// notification stubs and, when configured, the broker forwarder.
type Background struct {
	notifications *service.NotificationService
	forwarder     *EventForwarder
	logger        *zap.Logger
}

// StartBackground subscribes notifications and the optional forwarder to d.
// Either consumer may be nil.
func StartBackground(d events.Dispatcher, notifications *service.NotificationService, forwarder *EventForwarder, logger *zap.Logger) *Background {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifications != nil {
		notifications.RegisterHandlers()
	}
	if forwarder != nil {
		forwarder.Start(d)
	}
	return &Background{notifications: notifications, forwarder: forwarder, logger: logger}
}

// Shutdown drains the forwarder and logs what the consumers handled.
func (b *Background) Shutdown(ctx context.Context) error {
	if b.notifications != nil {
		emails, webhooks := b.notifications.Sent()
		b.logger.Info("notification stubs sent", zap.Int64("emails", emails), zap.Int64("webhooks", webhooks))
	}
	if b.forwarder == nil {
		return nil
	}
	err := b.forwarder.Stop(ctx)
	delivered, dropped, failed := b.forwarder.Stats()
	b.logger.Info("event forwarder stopped",
		zap.Int64("delivered", delivered), zap.Int64("dropped", dropped), zap.Int64("failed", failed))
	return err
}
