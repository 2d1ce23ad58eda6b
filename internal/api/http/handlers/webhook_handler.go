package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-queue/internal/config"
	"github.com/spec-kit/clinic-queue/internal/domain"
	"github.com/spec-kit/clinic-queue/internal/ratelimit"
	"github.com/spec-kit/clinic-queue/internal/service"
	"github.com/spec-kit/clinic-queue/pkg/util"
)

// WebhookHandler translates inbound provider messages (Twilio form posts)
// into queue operations. The reply body is sent back as the visible message.
// Supported commands: JOIN [note], STATUS, LEAVE, HELP.
type WebhookHandler struct {
	queue   *service.QueueService
	limiter ratelimit.Limiter
	cfg     config.QueueConfig
}

// NewWebhookHandler constructs handler.
func NewWebhookHandler(queue *service.QueueService, limiter ratelimit.Limiter, cfg config.QueueConfig) *WebhookHandler {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &WebhookHandler{queue: queue, limiter: limiter, cfg: cfg}
}

// SMS POST /webhooks/sms.
func (h *WebhookHandler) SMS(c *fiber.Ctx) error {
	return h.inbound(c, domain.ChannelSMS)
}

// WhatsApp POST /webhooks/whatsapp.
func (h *WebhookHandler) WhatsApp(c *fiber.Ctx) error {
	return h.inbound(c, domain.ChannelWhatsApp)
}

// DeliveryStatus POST /webhooks/whatsapp/status. Provider delivery receipts
// are acknowledged and otherwise ignored.
func (h *WebhookHandler) DeliveryStatus(c *fiber.Ctx) error {
	return c.SendString("OK")
}

func (h *WebhookHandler) inbound(c *fiber.Ctx, channel domain.Channel) error {
	contact := strings.TrimSpace(c.FormValue("From"))
	text := strings.TrimSpace(c.FormValue("Body"))
	if contact == "" {
		return reply(c, "Missing sender address.")
	}

	window := time.Duration(h.cfg.JoinRateWindowSeconds) * time.Second
	if !h.limiter.Allow(c.UserContext(), string(channel), contact, h.cfg.JoinRateLimit, window) {
		return reply(c, "Too many requests. Please wait a few minutes before trying again.")
	}

	command, arg := splitCommand(text)
	switch command {
	case "join":
		return h.join(c, channel, contact, arg)
	case "status":
		return h.status(c, contact)
	case "leave":
		return h.leave(c, contact)
	case "help":
		return reply(c, helpText)
	default:
		return reply(c, "Unknown command. Send HELP for usage.")
	}
}

func (h *WebhookHandler) join(c *fiber.Ctx, channel domain.Channel, contact, note string) error {
	if h.limiter.InCooldown(c.UserContext(), contact) {
		return reply(c, "Please wait a little before rejoining the queue.")
	}
	ticket, err := h.queue.Join(c.UserContext(), service.JoinInput{
		Contact: contact,
		Note:    note,
		Channel: channel,
	})
	if util.HasCode(err, util.CodeDuplicateActiveTicket) {
		if current, statusErr := h.queue.StatusOf(c.UserContext(), contact); statusErr == nil {
			return reply(c, fmt.Sprintf("You already have ticket %s. Position #%d. ETA %d min.",
				current.Code, current.Position, current.ETAMinutes))
		}
		return reply(c, "You already have an active ticket. Reply STATUS to check it.")
	}
	if err != nil {
		return reply(c, unavailableText)
	}
	return reply(c, fmt.Sprintf("Your ticket is %s. Position #%d. ETA %d min. Reply STATUS anytime.",
		ticket.Code, ticket.Position, ticket.ETAMinutes))
}

func (h *WebhookHandler) status(c *fiber.Ctx, contact string) error {
	ticket, err := h.queue.StatusOf(c.UserContext(), contact)
	if util.HasCode(err, util.CodeNoActiveTicket) {
		return reply(c, noTicketText)
	}
	if err != nil {
		return reply(c, unavailableText)
	}
	switch ticket.Status {
	case domain.TicketStatusNext:
		return reply(c, fmt.Sprintf("Ticket %s: you're next! Please come to the front desk.", ticket.Code))
	case domain.TicketStatusInRoom:
		return reply(c, fmt.Sprintf("Ticket %s: you're being seen now.", ticket.Code))
	default:
		return reply(c, fmt.Sprintf("Ticket %s. Position #%d. ETA %d min.", ticket.Code, ticket.Position, ticket.ETAMinutes))
	}
}

func (h *WebhookHandler) leave(c *fiber.Ctx, contact string) error {
	ticket, err := h.queue.Leave(c.UserContext(), contact)
	if util.HasCode(err, util.CodeNoActiveTicket) {
		return reply(c, noTicketText)
	}
	if err != nil {
		return reply(c, unavailableText)
	}
	return reply(c, fmt.Sprintf("Ticket %s canceled. Thank you.", ticket.Code))
}

const (
	noTicketText    = "No active ticket. Reply JOIN to enter the queue."
	unavailableText = "Service temporarily unavailable. Please try again later."
	helpText        = "Commands:\n" +
		"JOIN [note] - join the queue with an optional note (e.g., fever).\n" +
		"STATUS - check your current position and ETA.\n" +
		"LEAVE - cancel your ticket.\n" +
		"HELP - show this message."
)

func splitCommand(text string) (string, string) {
	fields := strings.SplitN(strings.TrimSpace(text), " ", 2)
	command := strings.ToLower(strings.TrimSpace(fields[0]))
	arg := ""
	if len(fields) > 1 {
		arg = strings.TrimSpace(fields[1])
	}
	return command, arg
}

func reply(c *fiber.Ctx, text string) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(text)
}
