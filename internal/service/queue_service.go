package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/clinic-queue/internal/config"
	"github.com/spec-kit/clinic-queue/internal/domain"
	"github.com/spec-kit/clinic-queue/internal/events"
	"github.com/spec-kit/clinic-queue/internal/observability"
	"github.com/spec-kit/clinic-queue/internal/ranking"
	"github.com/spec-kit/clinic-queue/internal/store"
	"github.com/spec-kit/clinic-queue/pkg/util"
)

// QueueService is the ticket lifecycle engine. Every channel (webhook,
// kiosk, admin) funnels through its operations, so the transition rules hold
// no matter where a request came from. Each operation is one atomic store
// update; events are published only after the mutation commits.
type QueueService struct {
	store     store.TicketStore
	publisher events.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
	cfg       config.QueueConfig
}

// QueueDependencies bundles collaborators for the queue service.
type QueueDependencies struct {
	Store     store.TicketStore
	Publisher events.Publisher
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Config    config.QueueConfig
}

// JoinInput describes a join request.
type JoinInput struct {
	Contact string
	Note    string
	Channel domain.Channel
}

// NewQueueService constructs the engine.
func NewQueueService(deps QueueDependencies) *QueueService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueService{
		store:     deps.Store,
		publisher: deps.Publisher,
		logger:    logger,
		metrics:   deps.Metrics,
		cfg:       deps.Config,
	}
}

// Join registers a contact at the back of the line. Fails with
// DUPLICATE_ACTIVE_TICKET when the contact already holds a non-terminal
// ticket.
func (s *QueueService) Join(ctx context.Context, input JoinInput) (domain.QueuedTicket, error) {
	contact := strings.TrimSpace(input.Contact)
	note := strings.TrimSpace(input.Note)
	if len(note) > domain.MaxNoteLength {
		note = note[:domain.MaxNoteLength]
	}
	channel := input.Channel
	if channel == "" {
		channel = domain.ChannelSMS
	}

	var result domain.QueuedTicket
	err := s.withRetry(ctx, "join", func() error {
		return s.store.Update(ctx, func(tx store.Tx) error {
			if contact != "" {
				_, err := tx.ActiveByContact(ctx, contact)
				if err == nil {
					return util.NewDuplicateActiveTicket(contact)
				}
				if !errors.Is(err, store.ErrNoActiveTicket) {
					return err
				}
			}

			ticket := domain.Ticket{
				Contact: contact,
				Status:  domain.TicketStatusWaiting,
				Note:    note,
				Channel: channel,
			}
			if err := tx.InsertTicket(ctx, &ticket); err != nil {
				// Lost a concurrent-join race on the partial unique index.
				if errors.Is(err, store.ErrDuplicateActiveTicket) {
					return util.NewDuplicateActiveTicket(contact)
				}
				return err
			}
			if err := tx.AppendTransition(ctx, domain.Transition{
				Code:     ticket.Code,
				ToStatus: domain.TicketStatusWaiting,
				At:       ticket.CreatedAt,
			}); err != nil {
				return err
			}

			ranked, err := s.ranked(ctx, tx)
			if err != nil {
				return err
			}
			entry, ok := ranking.Find(ranked, ticket.Code)
			if !ok {
				entry = domain.QueuedTicket{Ticket: ticket, Position: len(ranked)}
			}
			result = entry
			return nil
		})
	})
	if err != nil {
		return domain.QueuedTicket{}, err
	}

	s.publish(ctx, events.Event{
		Type:       events.EventJoined,
		Code:       result.Code,
		Contact:    result.Contact,
		Channel:    result.Channel,
		ToStatus:   domain.TicketStatusWaiting,
		Position:   result.Position,
		ETAMinutes: result.ETAMinutes,
		Timestamp:  result.CreatedAt,
	})
	return result, nil
}

// Advance moves a ticket to a target status per the transition table.
// Entering the room records the wait so far; completing the visit records a
// service-time sample for future ETAs.
func (s *QueueService) Advance(ctx context.Context, code string, target domain.TicketStatus) (domain.Ticket, error) {
	var (
		updated    domain.Ticket
		from       domain.TicketStatus
		position   int
		etaMinutes int
	)
	err := s.withRetry(ctx, "advance", func() error {
		return s.store.Update(ctx, func(tx store.Tx) error {
			ticket, err := tx.TicketByCode(ctx, code)
			if errors.Is(err, store.ErrTicketNotFound) {
				return util.NewTicketNotFound(code)
			}
			if err != nil {
				return err
			}
			if ticket.Status.IsTerminal() {
				return util.NewAlreadyTerminal(ticket.Code, ticket.Status)
			}
			if !domain.CanTransition(ticket.Status, target) {
				return util.NewInvalidTransition(ticket.Status, target)
			}

			from = ticket.Status
			updated, err = tx.UpdateStatus(ctx, code, target)
			if err != nil {
				return err
			}

			rec := domain.Transition{
				Code:       code,
				FromStatus: from,
				ToStatus:   target,
				At:         updated.UpdatedAt,
			}
			if target == domain.TicketStatusInRoom {
				rec.WaitedSeconds = int64(updated.UpdatedAt.Sub(ticket.CreatedAt) / time.Second)
			}
			if err := tx.AppendTransition(ctx, rec); err != nil {
				return err
			}

			if from == domain.TicketStatusInRoom && target == domain.TicketStatusDone {
				sample := domain.ServiceTimeSample{
					Duration:   updated.UpdatedAt.Sub(ticket.UpdatedAt),
					RecordedAt: updated.UpdatedAt,
				}
				if err := tx.AppendSample(ctx, sample); err != nil {
					return err
				}
			}

			position, etaMinutes = 0, 0
			if target.Queued() {
				ranked, err := s.ranked(ctx, tx)
				if err != nil {
					return err
				}
				if entry, ok := ranking.Find(ranked, code); ok {
					position, etaMinutes = entry.Position, entry.ETAMinutes
				}
			}
			return nil
		})
	})
	if err != nil {
		return domain.Ticket{}, err
	}

	s.publish(ctx, events.Event{
		Type:       events.TypeForTransition(target),
		Code:       updated.Code,
		Contact:    updated.Contact,
		Channel:    updated.Channel,
		FromStatus: from,
		ToStatus:   target,
		Position:   position,
		ETAMinutes: etaMinutes,
		Timestamp:  updated.UpdatedAt,
	})
	return updated, nil
}

// Leave cancels the contact's active ticket. Fails with NO_ACTIVE_TICKET
// when the contact is not in line.
func (s *QueueService) Leave(ctx context.Context, contact string) (domain.Ticket, error) {
	var (
		updated domain.Ticket
		from    domain.TicketStatus
	)
	err := s.withRetry(ctx, "leave", func() error {
		return s.store.Update(ctx, func(tx store.Tx) error {
			active, err := tx.ActiveByContact(ctx, strings.TrimSpace(contact))
			if errors.Is(err, store.ErrNoActiveTicket) {
				return util.NewNoActiveTicket()
			}
			if err != nil {
				return err
			}
			if !domain.CanTransition(active.Status, domain.TicketStatusCanceled) {
				return util.NewInvalidTransition(active.Status, domain.TicketStatusCanceled)
			}

			from = active.Status
			updated, err = tx.UpdateStatus(ctx, active.Code, domain.TicketStatusCanceled)
			if err != nil {
				return err
			}
			return tx.AppendTransition(ctx, domain.Transition{
				Code:       active.Code,
				FromStatus: from,
				ToStatus:   domain.TicketStatusCanceled,
				At:         updated.UpdatedAt,
			})
		})
	})
	if err != nil {
		return domain.Ticket{}, err
	}

	s.publish(ctx, events.Event{
		Type:       events.EventCanceled,
		Code:       updated.Code,
		Contact:    updated.Contact,
		Channel:    updated.Channel,
		FromStatus: from,
		ToStatus:   domain.TicketStatusCanceled,
		Timestamp:  updated.UpdatedAt,
	})
	return updated, nil
}

// StatusOf returns the contact's active ticket with its derived position and
// ETA. Tickets already called (next, in_room) report position zero.
func (s *QueueService) StatusOf(ctx context.Context, contact string) (domain.QueuedTicket, error) {
	var result domain.QueuedTicket
	err := s.withRetry(ctx, "status", func() error {
		return s.store.View(ctx, func(tx store.ReadTx) error {
			active, err := tx.ActiveByContact(ctx, strings.TrimSpace(contact))
			if errors.Is(err, store.ErrNoActiveTicket) {
				return util.NewNoActiveTicket()
			}
			if err != nil {
				return err
			}

			result = domain.QueuedTicket{Ticket: active}
			if active.Status.Queued() {
				ranked, err := s.ranked(ctx, tx)
				if err != nil {
					return err
				}
				if entry, ok := ranking.Find(ranked, active.Code); ok {
					result = entry
				}
			}
			return nil
		})
	})
	if err != nil {
		return domain.QueuedTicket{}, err
	}
	return result, nil
}

// ranked recomputes the full board ranking from the live waiting set and the
// rolling service-time average.
func (s *QueueService) ranked(ctx context.Context, tx store.ReadTx) ([]domain.QueuedTicket, error) {
	queued, err := tx.ListByStatus(ctx, domain.TicketStatusWaiting, domain.TicketStatusUrgent)
	if err != nil {
		return nil, err
	}
	samples, err := tx.RecentSamples(ctx, s.cfg.SampleWindow)
	if err != nil {
		return nil, err
	}
	avg := ranking.AverageService(samples, s.cfg.DefaultService())
	return ranking.Rank(queued, avg), nil
}

// withRetry retries transient store failures a bounded number of times.
// Business-rule rejections pass through untouched.
func (s *QueueService) withRetry(ctx context.Context, op string, fn func() error) error {
	retries := s.cfg.StoreRetries
	if retries < 0 {
		retries = 0
	}
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			s.record(op, nil)
			return nil
		}
		if !errors.Is(err, store.ErrTransient) || attempt >= retries {
			break
		}
		s.logger.Warn("retrying queue operation",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 50 * time.Millisecond):
			continue
		}
		break
	}
	if errors.Is(err, store.ErrTransient) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		err = util.NewTransientStoreFailure(err)
	}
	s.record(op, err)
	return err
}

// publish emits the event after commit. A publish failure is logged and
// counted, never surfaced: the mutation is already the source of truth.
func (s *QueueService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		if s.metrics != nil {
			s.metrics.RecordPublishFailure(string(event.Type))
		}
		s.logger.Warn("event publish failed",
			zap.String("event_type", string(event.Type)),
			zap.String("code", event.Code),
			zap.Error(err))
	}
}

func (s *QueueService) record(op string, err error) {
	if s.metrics != nil {
		s.metrics.RecordOperation(op, err)
	}
}
