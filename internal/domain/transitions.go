package domain

// allowedTransitions is the single source of truth for ticket lifecycle
// legality. Every caller (webhook, kiosk, admin) goes through CanTransition,
// so all channels enforce identical rules.
var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusWaiting:  {TicketStatusNext, TicketStatusUrgent, TicketStatusNoShow, TicketStatusCanceled},
	TicketStatusUrgent:   {TicketStatusNext, TicketStatusNoShow, TicketStatusCanceled},
	TicketStatusNext:     {TicketStatusInRoom, TicketStatusNoShow, TicketStatusCanceled},
	TicketStatusInRoom:   {TicketStatusDone, TicketStatusCanceled},
	TicketStatusDone:     {},
	TicketStatusNoShow:   {},
	TicketStatusCanceled: {},
}

// CanTransition reports whether a ticket may move from one status to another.
func CanTransition(from, to TicketStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
