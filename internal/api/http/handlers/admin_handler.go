package handlers

import (
	"bufio"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/clinic-queue/internal/api/dto"
	"github.com/spec-kit/clinic-queue/internal/auth"
	"github.com/spec-kit/clinic-queue/internal/config"
	"github.com/spec-kit/clinic-queue/internal/domain"
	"github.com/spec-kit/clinic-queue/internal/hub"
	"github.com/spec-kit/clinic-queue/internal/service"
	"github.com/spec-kit/clinic-queue/pkg/util"
)

// adminActions maps staff verbs to target statuses.
var adminActions = map[string]domain.TicketStatus{
	"promote": domain.TicketStatusNext,
	"urgent":  domain.TicketStatusUrgent,
	"in_room": domain.TicketStatusInRoom,
	"done":    domain.TicketStatusDone,
	"no_show": domain.TicketStatusNoShow,
	"cancel":  domain.TicketStatusCanceled,
}

// AdminHandler serves the staff dashboard: login, board reads, ticket
// actions, and the live event stream.
type AdminHandler struct {
	queue  *service.QueueService
	board  *service.BoardService
	tokens *auth.TokenManager
	hub    *hub.Hub
	logger *zap.Logger
	cfg    config.AuthConfig
}

// NewAdminHandler constructs handler.
func NewAdminHandler(queue *service.QueueService, board *service.BoardService, tokens *auth.TokenManager, liveHub *hub.Hub, logger *zap.Logger, cfg config.AuthConfig) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{queue: queue, board: board, tokens: tokens, hub: liveHub, logger: logger, cfg: cfg}
}

// Login POST /admin/login. Exchanges the staff passcode for a session token.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req dto.AdminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if err := auth.ComparePasscode(h.cfg.AdminPasscodeHash, req.Passcode); err != nil {
		return util.NewUnauthorized("invalid passcode")
	}

	token, expiresAt, err := h.tokens.GenerateToken()
	if err != nil {
		h.logger.Error("token generation failed", zap.Error(err))
		return util.NewInternalError(nil)
	}
	return c.JSON(fiber.Map{"data": dto.TokenResponse{Token: token, ExpiresAt: expiresAt}})
}

// Board GET /admin/board.
func (h *AdminHandler) Board(c *fiber.Ctx) error {
	board, err := h.board.Snapshot(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": board})
}

// Action POST /admin/action. Applies a staff transition and returns the
// resulting board so the dashboard can repaint in one round trip.
func (h *AdminHandler) Action(c *fiber.Ctx) error {
	var req dto.AdminActionRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	target, ok := adminActions[req.Action]
	if !ok {
		return util.NewValidationError("unknown action", fiber.Map{"action": req.Action})
	}
	if req.Code == "" {
		return util.NewValidationError("ticket code required", nil)
	}

	ticket, err := h.queue.Advance(c.UserContext(), req.Code, target)
	if err != nil {
		return err
	}
	board, err := h.board.Snapshot(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"ticket": dto.FromTicket(ticket),
		"board":  board,
	}})
}

// Events GET /admin/events. Server-sent event stream of queue updates with a
// periodic heartbeat so intermediaries keep the connection open.
func (h *AdminHandler) Events(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	client := h.hub.Register(uuid.NewString())
	logger := h.logger

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer h.hub.Unregister(client)

		heartbeat := time.NewTicker(25 * time.Second)
		defer heartbeat.Stop()

		if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case payload, ok := <-client.Send:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					logger.Debug("event stream closed", zap.String("client", client.ID))
					return
				}
			case <-heartbeat.C:
				if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}
