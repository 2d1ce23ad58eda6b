// Package store defines the durable record of tickets, their append-only
// transition history, and the rolling service-time samples feeding wait
// estimates. Implementations must serialize Update bodies: the whole
// read-validate-write sequence of a queue operation runs as one atomic unit.
package store

import (
	"context"

	"github.com/spec-kit/clinic-queue/internal/domain"
)

// ReadTx is a consistent point-in-time view of the queue.
type ReadTx interface {
	TicketByCode(ctx context.Context, code string) (domain.Ticket, error)
	// ActiveByContact returns the contact's single non-terminal ticket,
	// or ErrNoActiveTicket.
	ActiveByContact(ctx context.Context, contact string) (domain.Ticket, error)
	ListByStatus(ctx context.Context, statuses ...domain.TicketStatus) ([]domain.Ticket, error)
	// RecentTransitions returns history entries, most recent first.
	RecentTransitions(ctx context.Context, limit int) ([]domain.Transition, error)
	// RecentSamples returns up to n service-time samples, most recent first.
	RecentSamples(ctx context.Context, n int) ([]domain.ServiceTimeSample, error)
}

// Tx extends a read view with mutations. A failure before the enclosing
// Update commits leaves the store unchanged.
type Tx interface {
	ReadTx
	// InsertTicket persists a new ticket, allocating its unique code and
	// sequence number atomically.
	InsertTicket(ctx context.Context, ticket *domain.Ticket) error
	// UpdateStatus moves a ticket to a new status, stamping UpdatedAt.
	UpdateStatus(ctx context.Context, code string, to domain.TicketStatus) (domain.Ticket, error)
	AppendTransition(ctx context.Context, rec domain.Transition) error
	AppendSample(ctx context.Context, sample domain.ServiceTimeSample) error
}

// TicketStore is the durable queue record.
type TicketStore interface {
	// Update runs fn atomically. Concurrent Updates never interleave.
	Update(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn against a consistent read-only snapshot.
	View(ctx context.Context, fn func(tx ReadTx) error) error
}
