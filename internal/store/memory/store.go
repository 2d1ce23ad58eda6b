// Package memory provides a mutex-serialized in-process TicketStore. It
// backs the test suite and lets the service run without a database DSN.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spec-kit/clinic-queue/internal/domain"
	"github.com/spec-kit/clinic-queue/internal/store"
)

// maxSamples bounds the retained service-time history; RecentSamples windows
// further on top of this.
const maxSamples = 256

// Store keeps the whole queue in memory. One mutex covers every Update, so
// read-validate-write sequences are atomic by construction.
type Store struct {
	mu          sync.RWMutex
	tickets     map[string]domain.Ticket
	transitions []domain.Transition
	samples     []domain.ServiceTimeSample
	seq         int64
	now         func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		tickets: make(map[string]domain.Ticket),
		now:     time.Now,
	}
}

// NewWithClock returns a store using the supplied clock. Tests use this to
// make timestamps deterministic.
func NewWithClock(now func() time.Time) *Store {
	s := New()
	s.now = now
	return s
}

// Update runs fn under the write lock. Mutations are staged on a shadow
// transaction and applied only when fn succeeds, so a failed operation
// leaves the store unchanged.
func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrTransient, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:   s,
		staged:  make(map[string]domain.Ticket),
		nextSeq: s.seq,
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// View runs fn under the read lock.
func (s *Store) View(ctx context.Context, fn func(tx store.ReadTx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrTransient, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memTx{store: s, readOnly: true})
}

// memTx implements store.Tx. Staged writes shadow the committed maps until
// commit.
type memTx struct {
	store       *Store
	readOnly    bool
	staged      map[string]domain.Ticket
	transitions []domain.Transition
	samples     []domain.ServiceTimeSample
	nextSeq     int64
}

func (t *memTx) get(code string) (domain.Ticket, bool) {
	if !t.readOnly {
		if ticket, ok := t.staged[code]; ok {
			return ticket, true
		}
	}
	ticket, ok := t.store.tickets[code]
	return ticket, ok
}

func (t *memTx) each(fn func(domain.Ticket)) {
	for code, ticket := range t.store.tickets {
		if !t.readOnly {
			if staged, ok := t.staged[code]; ok {
				ticket = staged
			}
		}
		fn(ticket)
	}
	if !t.readOnly {
		for code, ticket := range t.staged {
			if _, committed := t.store.tickets[code]; !committed {
				fn(ticket)
			}
		}
	}
}

func (t *memTx) TicketByCode(_ context.Context, code string) (domain.Ticket, error) {
	ticket, ok := t.get(code)
	if !ok {
		return domain.Ticket{}, store.ErrTicketNotFound
	}
	return ticket, nil
}

func (t *memTx) ActiveByContact(_ context.Context, contact string) (domain.Ticket, error) {
	if contact == "" {
		return domain.Ticket{}, store.ErrNoActiveTicket
	}
	var found domain.Ticket
	var ok bool
	t.each(func(ticket domain.Ticket) {
		if ticket.Contact == contact && ticket.Status.IsActive() {
			found, ok = ticket, true
		}
	})
	if !ok {
		return domain.Ticket{}, store.ErrNoActiveTicket
	}
	return found, nil
}

func (t *memTx) ListByStatus(_ context.Context, statuses ...domain.TicketStatus) ([]domain.Ticket, error) {
	var result []domain.Ticket
	t.each(func(ticket domain.Ticket) {
		for _, status := range statuses {
			if ticket.Status == status {
				result = append(result, ticket)
				return
			}
		}
	})
	return result, nil
}

func (t *memTx) RecentTransitions(_ context.Context, limit int) ([]domain.Transition, error) {
	all := t.store.transitions
	if !t.readOnly {
		all = append(append([]domain.Transition{}, all...), t.transitions...)
	}
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	result := make([]domain.Transition, 0, limit)
	for i := len(all) - 1; i >= len(all)-limit; i-- {
		result = append(result, all[i])
	}
	return result, nil
}

func (t *memTx) RecentSamples(_ context.Context, n int) ([]domain.ServiceTimeSample, error) {
	all := t.store.samples
	if !t.readOnly {
		all = append(append([]domain.ServiceTimeSample{}, all...), t.samples...)
	}
	if n <= 0 || n > len(all) {
		n = len(all)
	}
	result := make([]domain.ServiceTimeSample, 0, n)
	for i := len(all) - 1; i >= len(all)-n; i-- {
		result = append(result, all[i])
	}
	return result, nil
}

func (t *memTx) InsertTicket(_ context.Context, ticket *domain.Ticket) error {
	if t.readOnly {
		return fmt.Errorf("insert on read-only view")
	}
	t.nextSeq++
	ticket.Seq = t.nextSeq
	ticket.Code = fmt.Sprintf("Q%03d", t.nextSeq)
	now := t.store.now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	t.staged[ticket.Code] = *ticket
	return nil
}

func (t *memTx) UpdateStatus(_ context.Context, code string, to domain.TicketStatus) (domain.Ticket, error) {
	if t.readOnly {
		return domain.Ticket{}, fmt.Errorf("update on read-only view")
	}
	ticket, ok := t.get(code)
	if !ok {
		return domain.Ticket{}, store.ErrTicketNotFound
	}
	ticket.Status = to
	ticket.UpdatedAt = t.store.now()
	t.staged[code] = ticket
	return ticket, nil
}

func (t *memTx) AppendTransition(_ context.Context, rec domain.Transition) error {
	if t.readOnly {
		return fmt.Errorf("append on read-only view")
	}
	t.transitions = append(t.transitions, rec)
	return nil
}

func (t *memTx) AppendSample(_ context.Context, sample domain.ServiceTimeSample) error {
	if t.readOnly {
		return fmt.Errorf("append on read-only view")
	}
	t.samples = append(t.samples, sample)
	return nil
}

func (t *memTx) commit() {
	for code, ticket := range t.staged {
		t.store.tickets[code] = ticket
	}
	t.store.transitions = append(t.store.transitions, t.transitions...)
	t.store.samples = append(t.store.samples, t.samples...)
	if excess := len(t.store.samples) - maxSamples; excess > 0 {
		t.store.samples = append([]domain.ServiceTimeSample{}, t.store.samples[excess:]...)
	}
	t.store.seq = t.nextSeq
}
