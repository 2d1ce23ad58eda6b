// Package ranking derives board positions and wait estimates from the live
// ticket set. It is pure: no store access, no clock reads. Callers recompute
// the full ranking after every mutation instead of patching it incrementally,
// so removals from the middle of the line can never leave gaps behind.
package ranking

import (
	"sort"
	"time"

	"github.com/spec-kit/clinic-queue/internal/domain"
)

// Order sorts the queued (waiting/urgent) tickets into their service order:
// urgent tickets first, each group by creation time ascending, sequence
// number breaking exact-timestamp ties. Tickets in other statuses are
// ignored. The input slice is not modified.
func Order(tickets []domain.Ticket) []domain.Ticket {
	queued := make([]domain.Ticket, 0, len(tickets))
	for _, ticket := range tickets {
		if ticket.Status.Queued() {
			queued = append(queued, ticket)
		}
	}
	sort.SliceStable(queued, func(i, j int) bool {
		a, b := queued[i], queued[j]
		if a.Status != b.Status {
			return a.Status == domain.TicketStatusUrgent
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Seq < b.Seq
	})
	return queued
}

// Rank assigns a contiguous 1..N position to every queued ticket and derives
// its ETA from the average service time. Returns an empty slice for an empty
// waiting set.
func Rank(tickets []domain.Ticket, avgService time.Duration) []domain.QueuedTicket {
	ordered := Order(tickets)
	ranked := make([]domain.QueuedTicket, 0, len(ordered))
	for i, ticket := range ordered {
		position := i + 1
		ranked = append(ranked, domain.QueuedTicket{
			Ticket:     ticket,
			Position:   position,
			ETAMinutes: ETAMinutes(position, avgService),
		})
	}
	return ranked
}

// Find returns the ranked entry for the given code, if it is queued.
func Find(ranked []domain.QueuedTicket, code string) (domain.QueuedTicket, bool) {
	for _, entry := range ranked {
		if entry.Code == code {
			return entry, true
		}
	}
	return domain.QueuedTicket{}, false
}

// ETAMinutes estimates the wait for the ticket at the given 1-based position.
func ETAMinutes(position int, avgService time.Duration) int {
	if position < 1 || avgService < 0 {
		return 0
	}
	return int((time.Duration(position) * avgService).Minutes())
}

// AverageService returns the mean of the supplied service-time samples, or
// fallback when none have been recorded yet.
func AverageService(samples []domain.ServiceTimeSample, fallback time.Duration) time.Duration {
	if len(samples) == 0 {
		return fallback
	}
	var total time.Duration
	for _, sample := range samples {
		total += sample.Duration
	}
	return total / time.Duration(len(samples))
}
