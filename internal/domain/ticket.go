package domain

import "time"

// TicketStatus enumerates lifecycle states for queue tickets.
type TicketStatus string

const (
	TicketStatusWaiting  TicketStatus = "waiting"
	TicketStatusUrgent   TicketStatus = "urgent"
	TicketStatusNext     TicketStatus = "next"
	TicketStatusInRoom   TicketStatus = "in_room"
	TicketStatusDone     TicketStatus = "done"
	TicketStatusNoShow   TicketStatus = "no_show"
	TicketStatusCanceled TicketStatus = "canceled"
)

// IsTerminal reports whether no further transition is permitted.
func (s TicketStatus) IsTerminal() bool {
	switch s {
	case TicketStatusDone, TicketStatusNoShow, TicketStatusCanceled:
		return true
	}
	return false
}

// IsActive reports whether the status counts against the one-ticket-per-contact rule.
func (s TicketStatus) IsActive() bool {
	return !s.IsTerminal()
}

// Queued reports whether the ticket holds a board position. Only waiting and
// urgent tickets are ranked; next and in_room have already been called.
func (s TicketStatus) Queued() bool {
	return s == TicketStatusWaiting || s == TicketStatusUrgent
}

// Channel identifies where a ticket was registered from. Informational only.
type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelKiosk    Channel = "kiosk"
)

// MaxNoteLength bounds the free-text note carried on a ticket.
const MaxNoteLength = 200

// Ticket is a single place in the clinic line.
type Ticket struct {
	Code      string
	Contact   string
	Status    TicketStatus
	Note      string
	Channel   Channel
	Seq       int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// QueuedTicket is a ticket annotated with its derived rank and estimate.
// Position and ETA are never stored; they are recomputed on every read.
type QueuedTicket struct {
	Ticket
	Position   int
	ETAMinutes int
}

// Transition is one append-only entry in a ticket's status history.
type Transition struct {
	Code       string
	FromStatus TicketStatus
	ToStatus   TicketStatus
	At         time.Time
	// WaitedSeconds is set when a ticket enters the room: elapsed time
	// between creation and being taken in.
	WaitedSeconds int64
}

// ServiceTimeSample is the elapsed in_room duration of one completed ticket.
type ServiceTimeSample struct {
	Duration   time.Duration
	RecordedAt time.Time
}
