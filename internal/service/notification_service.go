package service

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/cassette-service/internal/config"
	"github.com/spec-kit/cassette-service/internal/events"
)

// Channel is a notification sink.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelWebhook Channel = "webhook"
)

type notificationRoute struct {
	level    zapcore.Level
	channels []Channel
}

// notificationRoutes maps each event to its log level and sinks. Rejected
// reconciliations and replacements reach people; status changes only feed
// the webhook.
var notificationRoutes = map[events.EventType]notificationRoute{
	events.EventTicketStatusChanged:      {zapcore.InfoLevel, []Channel{ChannelWebhook}},
	events.EventTicketReconciled:         {zapcore.InfoLevel, []Channel{ChannelWebhook}},
	events.EventReconcileRejected:        {zapcore.WarnLevel, []Channel{ChannelEmail}},
	events.EventCassetteStatusChanged:    {zapcore.InfoLevel, []Channel{ChannelWebhook}},
	events.EventCassetteReplaced:         {zapcore.InfoLevel, []Channel{ChannelEmail, ChannelWebhook}},
	events.EventRepairStatusChanged:      {zapcore.InfoLevel, []Channel{ChannelWebhook}},
	events.EventMaintenanceStatusChanged: {zapcore.InfoLevel, []Channel{ChannelWebhook}},
}

// NotificationService turns domain events into outbound notifications. The
// senders are stubs that log what would be delivered.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     orDefault(logger),
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

// Channels lists the configured sinks an event would be sent to.
func (n *NotificationService) Channels(eventType events.EventType) []Channel {
	var out []Channel
	for _, ch := range notificationRoutes[eventType].channels {
		if n.target(ch) != "" {
			out = append(out, ch)
		}
	}
	return out
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	route, ok := notificationRoutes[event.Type]
	if !ok {
		return nil
	}
	if ce := n.logger.Check(route.level, string(event.Type)); ce != nil {
		ce.Write(
			zap.String("entity_id", event.EntityID),
			zap.String("ticket_id", event.TicketID),
			zap.Any("payload", event.Payload))
	}
	for _, ch := range n.Channels(event.Type) {
		n.send(ctx, ch, event)
	}
	return nil
}

func (n *NotificationService) target(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return strings.TrimSpace(n.cfg.EmailFrom)
	case ChannelWebhook:
		return strings.TrimSpace(n.cfg.WebhookURL)
	}
	return ""
}

func (n *NotificationService) send(_ context.Context, ch Channel, event events.Event) {
	n.logger.Debug("notification stub",
		zap.String("channel", string(ch)),
		zap.String("target", n.target(ch)),
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))
}
