package service

import (
	"context"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
)

type channel uint8

const (
	channelEmail channel = 1 << iota
	channelWebhook
)

// notificationRoutes lists the lifecycle events that notify and where.
var notificationRoutes = map[events.EventType]channel{
	events.EventTicketCreated:       channelEmail | channelWebhook,
	events.EventTicketStatusChanged: channelWebhook,
	events.EventTicketReopened:      channelEmail | channelWebhook,
	events.EventTicketAssigned:      channelWebhook,
	events.EventTicketFirstResponse: channelEmail,
	events.EventTicketResolved:      channelEmail | channelWebhook,
}

// Notice is the content a stub delivers for one event.
type Notice struct {
	Type       events.EventType
	TenantID   int64
	Ticket     string
	Summary    string
	From       *string
	To         *string
	Status     domain.TicketStatus
	Priority   domain.TicketPriority
	AssignedTo *string
}

func noticeFrom(event events.Event) Notice {
	return Notice{
		Type:       event.Type,
		TenantID:   event.TenantID,
		Ticket:     event.Identifier,
		Summary:    event.Payload.Description,
		From:       event.Payload.OldValue,
		To:         event.Payload.NewValue,
		Status:     event.Payload.Status,
		Priority:   event.Payload.Priority,
		AssignedTo: event.Payload.AssignedTo,
	}
}

func (n Notice) fields() []zap.Field {
	return []zap.Field{
		zap.String("event_type", string(n.Type)),
		zap.Int64("tenant_id", n.TenantID),
		zap.String("ticket", n.Ticket),
		zap.String("summary", n.Summary),
		zap.Stringp("from", n.From),
		zap.Stringp("to", n.To),
		zap.String("status", string(n.Status)),
		zap.String("priority", string(n.Priority)),
		zap.Stringp("assigned_to", n.AssignedTo),
	}
}

// NotificationService turns ticket lifecycle events into email and webhook
// notices. Delivery is stubbed: notices are logged and counted. A channel
// without configuration (empty sender or URL) is skipped.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig

	emails   atomic.Int64
	webhooks atomic.Int64
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to every routed event type.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for eventType := range notificationRoutes {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

// Sent reports how many email and webhook notices were emitted.
func (n *NotificationService) Sent() (emails, webhooks int64) {
	return n.emails.Load(), n.webhooks.Load()
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	route, ok := notificationRoutes[event.Type]
	if !ok {
		return nil
	}
	notice := noticeFrom(event)
	if route&channelEmail != 0 {
		n.sendEmailStub(ctx, notice)
	}
	if route&channelWebhook != 0 {
		n.sendWebhookStub(ctx, notice)
	}
	return nil
}

// sendEmailStub logs the notice with the sender address. Every Notice field
// is reported.
func (n *NotificationService) sendEmailStub(_ context.Context, notice Notice) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.emails.Add(1)
	n.logger.Info("email notice", append(notice.fields(), zap.String("from_address", n.cfg.EmailFrom))...)
}

// sendWebhookStub logs the notice with the target URL.
func (n *NotificationService) sendWebhookStub(_ context.Context, notice Notice) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.webhooks.Add(1)
	n.logger.Info("webhook notice", append(notice.fields(), zap.String("url", n.cfg.WebhookURL))...)
}
