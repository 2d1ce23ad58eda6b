package dto

import (
	"time"

	"github.com/spec-kit/clinic-queue/internal/domain"
)

// JoinRequest payload.
type JoinRequest struct {
	Contact string         `json:"contact"`
	Note    string         `json:"note"`
	Channel domain.Channel `json:"channel"`
}

// LeaveRequest payload.
type LeaveRequest struct {
	Contact string `json:"contact"`
}

// TicketResponse is the public shape of a ticket with its derived fields.
type TicketResponse struct {
	Code       string              `json:"code"`
	Status     domain.TicketStatus `json:"status"`
	Note       string              `json:"note,omitempty"`
	Channel    domain.Channel      `json:"channel"`
	Position   int                 `json:"position,omitempty"`
	ETAMinutes int                 `json:"eta_minutes,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// FromQueuedTicket maps a ranked ticket.
func FromQueuedTicket(ticket domain.QueuedTicket) TicketResponse {
	resp := FromTicket(ticket.Ticket)
	resp.Position = ticket.Position
	resp.ETAMinutes = ticket.ETAMinutes
	return resp
}

// FromTicket maps a bare ticket.
func FromTicket(ticket domain.Ticket) TicketResponse {
	return TicketResponse{
		Code:      ticket.Code,
		Status:    ticket.Status,
		Note:      ticket.Note,
		Channel:   ticket.Channel,
		CreatedAt: ticket.CreatedAt,
		UpdatedAt: ticket.UpdatedAt,
	}
}

// AdminLoginRequest payload.
type AdminLoginRequest struct {
	Passcode string `json:"passcode"`
}

// TokenResponse carries an issued session token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AdminActionRequest performs a staff transition on a ticket.
type AdminActionRequest struct {
	Action string `json:"action"`
	Code   string `json:"code"`
}
