package events

import (
	"time"

	"github.com/spec-kit/clinic-queue/internal/domain"
)

// EventType tags a queue state change.
type EventType string

const (
	EventJoined        EventType = "joined"
	EventPromoted      EventType = "promoted"
	EventDone          EventType = "done"
	EventNoShow        EventType = "no_show"
	EventCanceled      EventType = "canceled"
	EventStatusChanged EventType = "status_changed"
)

// TypeForTransition maps a committed transition to its event tag.
func TypeForTransition(to domain.TicketStatus) EventType {
	switch to {
	case domain.TicketStatusNext:
		return EventPromoted
	case domain.TicketStatusDone:
		return EventDone
	case domain.TicketStatusNoShow:
		return EventNoShow
	case domain.TicketStatusCanceled:
		return EventCanceled
	default:
		return EventStatusChanged
	}
}

// Event is emitted after a ticket mutation commits. Consumers (notification
// worker, live dashboard feed) receive it best-effort and at-least-once;
// events for the same ticket arrive in commit order.
type Event struct {
	ID         string              `json:"id"`
	Type       EventType           `json:"type"`
	Code       string              `json:"code"`
	Contact    string              `json:"contact,omitempty"`
	Channel    domain.Channel      `json:"channel,omitempty"`
	FromStatus domain.TicketStatus `json:"from_status,omitempty"`
	ToStatus   domain.TicketStatus `json:"to_status"`
	Position   int                 `json:"position,omitempty"`
	ETAMinutes int                 `json:"eta_minutes,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}
