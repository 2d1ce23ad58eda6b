package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/clinic-queue/internal/config"
	"github.com/spec-kit/clinic-queue/internal/domain"
	"github.com/spec-kit/clinic-queue/internal/events"
	"github.com/spec-kit/clinic-queue/internal/ratelimit"
)

// NotificationService turns queue events into outbound patient messages.
// Delivery is best-effort: a failed or skipped notification never affects
// the ticket itself.
type NotificationService struct {
	dispatcher events.Dispatcher
	limiter    ratelimit.Limiter
	logger     *zap.Logger
	cfg        config.NotificationConfig
	queueCfg   config.QueueConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, limiter ratelimit.Limiter, logger *zap.Logger, cfg config.NotificationConfig, queueCfg config.QueueConfig) *NotificationService {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &NotificationService{
		dispatcher: dispatcher,
		limiter:    limiter,
		logger:     logger,
		cfg:        cfg,
		queueCfg:   queueCfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventPromoted, n.handlePromoted)
	n.dispatcher.Subscribe(events.EventNoShow, n.handleDeparture)
	n.dispatcher.Subscribe(events.EventCanceled, n.handleDeparture)
	n.dispatcher.Subscribe(events.EventDone, n.handleDone)
}

// handlePromoted tells the ticket holder they are next.
func (n *NotificationService) handlePromoted(ctx context.Context, event events.Event) error {
	if event.Contact == "" || event.Channel == domain.ChannelKiosk {
		return nil
	}
	body := fmt.Sprintf("%s: ticket %s, you're next! Please come to the front desk.", n.cfg.ClinicName, event.Code)
	n.deliver(ctx, event, body)
	return nil
}

// handleDeparture starts the rejoin cooldown when one is configured.
func (n *NotificationService) handleDeparture(ctx context.Context, event events.Event) error {
	if cooldown := n.queueCfg.RejoinCooldown(); cooldown > 0 && event.Contact != "" {
		n.limiter.StartCooldown(ctx, event.Contact, cooldown)
	}
	return nil
}

func (n *NotificationService) handleDone(ctx context.Context, event events.Event) error {
	if event.Contact == "" || event.Channel == domain.ChannelKiosk {
		return nil
	}
	body := fmt.Sprintf("%s: ticket %s complete. Thank you for visiting.", n.cfg.ClinicName, event.Code)
	n.deliver(ctx, event, body)
	return nil
}

// deliver hands the message to the outbound provider. The provider webhook
// is a stub here; the real sender is an external worker consuming the event
// stream.
func (n *NotificationService) deliver(ctx context.Context, event events.Event, body string) {
	n.logger.Info("notification",
		zap.String("event_type", string(event.Type)),
		zap.String("code", event.Code),
		zap.String("channel", string(event.Channel)),
		zap.String("body", body))
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("forwarding notification to provider webhook",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("code", event.Code))
}
