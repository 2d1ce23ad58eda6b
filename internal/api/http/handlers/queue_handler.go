package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-queue/internal/api/dto"
	"github.com/spec-kit/clinic-queue/internal/domain"
	"github.com/spec-kit/clinic-queue/internal/service"
	"github.com/spec-kit/clinic-queue/pkg/util"
)

// QueueHandler exposes the JSON queue API used by the kiosk and other
// first-party clients.
type QueueHandler struct {
	queue *service.QueueService
}

// NewQueueHandler constructs handler.
func NewQueueHandler(queue *service.QueueService) *QueueHandler {
	return &QueueHandler{queue: queue}
}

// Join POST /queue/join.
func (h *QueueHandler) Join(c *fiber.Ctx) error {
	var req dto.JoinRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	channel := req.Channel
	if channel == "" {
		channel = domain.ChannelKiosk
	}
	switch channel {
	case domain.ChannelSMS, domain.ChannelWhatsApp, domain.ChannelKiosk:
	default:
		return util.NewValidationError("unknown channel", fiber.Map{"channel": channel})
	}

	ticket, err := h.queue.Join(c.UserContext(), service.JoinInput{
		Contact: req.Contact,
		Note:    req.Note,
		Channel: channel,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromQueuedTicket(ticket)})
}

// Status GET /queue/status/:contact.
func (h *QueueHandler) Status(c *fiber.Ctx) error {
	contact := strings.TrimSpace(c.Params("contact"))
	if contact == "" {
		return util.NewValidationError("contact required", nil)
	}
	ticket, err := h.queue.StatusOf(c.UserContext(), contact)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromQueuedTicket(ticket)})
}

// Leave POST /queue/leave.
func (h *QueueHandler) Leave(c *fiber.Ctx) error {
	var req dto.LeaveRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Contact) == "" {
		return util.NewValidationError("contact required", nil)
	}
	ticket, err := h.queue.Leave(c.UserContext(), req.Contact)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}
