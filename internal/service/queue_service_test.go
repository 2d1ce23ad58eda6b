package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/clinic-queue/internal/config"
	"github.com/spec-kit/clinic-queue/internal/domain"
	"github.com/spec-kit/clinic-queue/internal/events"
	"github.com/spec-kit/clinic-queue/internal/observability"
	"github.com/spec-kit/clinic-queue/internal/store"
	"github.com/spec-kit/clinic-queue/internal/store/memory"
	"github.com/spec-kit/clinic-queue/pkg/util"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) record(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event{}, r.events...)
}

type testEnv struct {
	service  *QueueService
	store    *memory.Store
	clock    *fakeClock
	recorder *eventRecorder
	metrics  *observability.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := newFakeClock()
	memStore := memory.NewWithClock(clock.Now)
	dispatcher := events.NewInMemoryDispatcher()
	recorder := &eventRecorder{}
	dispatcher.SubscribeAll(recorder.record)
	metrics := observability.NewMetrics()

	svc := NewQueueService(QueueDependencies{
		Store:     memStore,
		Publisher: dispatcher,
		Metrics:   metrics,
		Config: config.QueueConfig{
			DefaultServiceMinutes: 12,
			SampleWindow:          20,
			StoreRetries:          1,
			RecentActivity:        5,
		},
	})
	return &testEnv{service: svc, store: memStore, clock: clock, recorder: recorder, metrics: metrics}
}

func (e *testEnv) mustJoin(t *testing.T, contact string) domain.QueuedTicket {
	t.Helper()
	ticket, err := e.service.Join(context.Background(), JoinInput{Contact: contact, Channel: domain.ChannelSMS})
	if err != nil {
		t.Fatalf("join %s: %v", contact, err)
	}
	return ticket
}

func (e *testEnv) mustAdvance(t *testing.T, code string, target domain.TicketStatus) domain.Ticket {
	t.Helper()
	ticket, err := e.service.Advance(context.Background(), code, target)
	if err != nil {
		t.Fatalf("advance %s to %s: %v", code, target, err)
	}
	return ticket
}

func TestJoinAssignsContiguousPositions(t *testing.T) {
	env := newTestEnv(t)

	for i, contact := range []string{"555-0100", "555-0101", "555-0102"} {
		ticket := env.mustJoin(t, contact)
		wantPos := i + 1
		if ticket.Position != wantPos {
			t.Fatalf("contact %s: position=%d, want %d", contact, ticket.Position, wantPos)
		}
		if ticket.ETAMinutes != wantPos*12 {
			t.Fatalf("contact %s: eta=%d, want %d", contact, ticket.ETAMinutes, wantPos*12)
		}
	}
}

func TestJoinRejectsDuplicateActive(t *testing.T) {
	env := newTestEnv(t)
	env.mustJoin(t, "555-0100")

	_, err := env.service.Join(context.Background(), JoinInput{Contact: "555-0100"})
	if !util.HasCode(err, util.CodeDuplicateActiveTicket) {
		t.Fatalf("expected DUPLICATE_ACTIVE_TICKET, got %v", err)
	}
}

func TestRejoinAfterLeave(t *testing.T) {
	env := newTestEnv(t)
	first := env.mustJoin(t, "555-0100")

	if _, err := env.service.Leave(context.Background(), "555-0100"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	second := env.mustJoin(t, "555-0100")
	if second.Code == first.Code {
		t.Fatalf("rejoin reused code %s", first.Code)
	}
	if second.Position != 1 {
		t.Fatalf("rejoin position=%d, want 1", second.Position)
	}
}

func TestAdvanceUnknownCode(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Advance(context.Background(), "Q999", domain.TicketStatusNext)
	if !util.HasCode(err, util.CodeTicketNotFound) {
		t.Fatalf("expected TICKET_NOT_FOUND, got %v", err)
	}
}

func TestAdvanceTerminalTicket(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.mustJoin(t, "555-0100")
	env.mustAdvance(t, ticket.Code, domain.TicketStatusCanceled)

	// A terminal ticket reports ALREADY_TERMINAL even for targets the
	// transition table would otherwise never allow.
	for _, target := range []domain.TicketStatus{domain.TicketStatusNext, domain.TicketStatusDone, domain.TicketStatusWaiting} {
		_, err := env.service.Advance(context.Background(), ticket.Code, target)
		if !util.HasCode(err, util.CodeAlreadyTerminal) {
			t.Fatalf("target %s: expected ALREADY_TERMINAL, got %v", target, err)
		}
	}
}

func TestAdvanceRejectsInvalidTransition(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.mustJoin(t, "555-0100")

	cases := []struct {
		name   string
		target domain.TicketStatus
	}{
		{"waiting to done", domain.TicketStatusDone},
		{"waiting to in_room", domain.TicketStatusInRoom},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.service.Advance(context.Background(), ticket.Code, tc.target)
			if !util.HasCode(err, util.CodeInvalidTransition) {
				t.Fatalf("expected INVALID_TRANSITION, got %v", err)
			}
		})
	}
}

func TestUrgentAtFrontKeepsPosition(t *testing.T) {
	env := newTestEnv(t)
	first := env.mustJoin(t, "555-0100")
	env.clock.Advance(time.Minute)
	env.mustJoin(t, "555-0101")

	env.mustAdvance(t, first.Code, domain.TicketStatusUrgent)

	status, err := env.service.StatusOf(context.Background(), "555-0100")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Position != 1 {
		t.Fatalf("front ticket marked urgent moved to position %d", status.Position)
	}
}

func TestUrgentMovesAhead(t *testing.T) {
	env := newTestEnv(t)
	first := env.mustJoin(t, "555-0100")
	env.clock.Advance(time.Minute)
	second := env.mustJoin(t, "555-0101")

	env.mustAdvance(t, second.Code, domain.TicketStatusUrgent)

	status, err := env.service.StatusOf(context.Background(), "555-0101")
	if err != nil {
		t.Fatalf("status urgent: %v", err)
	}
	if status.Position != 1 || status.ETAMinutes != 12 {
		t.Fatalf("urgent ticket position=%d eta=%d, want 1/12", status.Position, status.ETAMinutes)
	}

	status, err = env.service.StatusOf(context.Background(), "555-0100")
	if err != nil {
		t.Fatalf("status displaced: %v", err)
	}
	if status.Position != 2 || status.ETAMinutes != 24 {
		t.Fatalf("displaced ticket position=%d eta=%d, want 2/24 (code %s)", status.Position, status.ETAMinutes, first.Code)
	}
}

func TestServiceSampleFeedsETA(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.mustJoin(t, "555-0100")

	env.mustAdvance(t, ticket.Code, domain.TicketStatusNext)
	env.clock.Advance(2 * time.Minute)
	env.mustAdvance(t, ticket.Code, domain.TicketStatusInRoom)
	env.clock.Advance(8 * time.Minute)
	env.mustAdvance(t, ticket.Code, domain.TicketStatusDone)

	ctx := context.Background()
	_ = env.store.View(ctx, func(tx store.ReadTx) error {
		samples, err := tx.RecentSamples(ctx, 20)
		if err != nil {
			return err
		}
		if len(samples) != 1 {
			t.Fatalf("expected one service-time sample, got %d", len(samples))
		}
		if samples[0].Duration != 8*time.Minute {
			t.Fatalf("sample duration=%v, want 8m", samples[0].Duration)
		}
		return nil
	})

	next := env.mustJoin(t, "555-0101")
	if next.ETAMinutes != 8 {
		t.Fatalf("eta=%d, want 8 from the recorded sample", next.ETAMinutes)
	}
}

func TestRoomEntryRecordsWait(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.mustJoin(t, "555-0100")

	env.clock.Advance(90 * time.Second)
	env.mustAdvance(t, ticket.Code, domain.TicketStatusNext)
	env.clock.Advance(30 * time.Second)
	env.mustAdvance(t, ticket.Code, domain.TicketStatusInRoom)

	ctx := context.Background()
	_ = env.store.View(ctx, func(tx store.ReadTx) error {
		recent, err := tx.RecentTransitions(ctx, 1)
		if err != nil {
			return err
		}
		if len(recent) != 1 || recent[0].ToStatus != domain.TicketStatusInRoom {
			t.Fatalf("expected in_room transition, got %+v", recent)
		}
		if recent[0].WaitedSeconds != 120 {
			t.Fatalf("waited=%d, want 120", recent[0].WaitedSeconds)
		}
		return nil
	})
}

func TestLeaveWithoutActiveTicket(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Leave(context.Background(), "555-0100")
	if !util.HasCode(err, util.CodeNoActiveTicket) {
		t.Fatalf("expected NO_ACTIVE_TICKET, got %v", err)
	}
}

func TestStatusAfterPromotionReportsNoPosition(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.mustJoin(t, "555-0100")
	env.mustAdvance(t, ticket.Code, domain.TicketStatusNext)

	status, err := env.service.StatusOf(context.Background(), "555-0100")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != domain.TicketStatusNext {
		t.Fatalf("status=%s, want next", status.Status)
	}
	if status.Position != 0 || status.ETAMinutes != 0 {
		t.Fatalf("called ticket position=%d eta=%d, want 0/0", status.Position, status.ETAMinutes)
	}
}

func TestEventsFollowCommitOrder(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.mustJoin(t, "555-0100")

	env.mustAdvance(t, ticket.Code, domain.TicketStatusUrgent)
	env.mustAdvance(t, ticket.Code, domain.TicketStatusNext)
	env.mustAdvance(t, ticket.Code, domain.TicketStatusInRoom)
	env.mustAdvance(t, ticket.Code, domain.TicketStatusDone)

	want := []events.EventType{
		events.EventJoined,
		events.EventStatusChanged,
		events.EventPromoted,
		events.EventStatusChanged,
		events.EventDone,
	}
	got := env.recorder.all()
	if len(got) != len(want) {
		t.Fatalf("recorded %d events, want %d", len(got), len(want))
	}
	for i, event := range got {
		if event.Type != want[i] {
			t.Fatalf("event[%d]=%s, want %s", i, event.Type, want[i])
		}
		if event.Code != ticket.Code {
			t.Fatalf("event[%d] code=%s, want %s", i, event.Code, ticket.Code)
		}
		if event.ID == "" {
			t.Fatalf("event[%d] has no id", i)
		}
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, events.Event) error {
	return errors.New("broker unavailable")
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	metrics := observability.NewMetrics()
	svc := NewQueueService(QueueDependencies{
		Store:     memory.New(),
		Publisher: failingPublisher{},
		Metrics:   metrics,
		Config:    config.QueueConfig{DefaultServiceMinutes: 12, SampleWindow: 20},
	})

	ticket, err := svc.Join(context.Background(), JoinInput{Contact: "555-0100"})
	if err != nil {
		t.Fatalf("join should succeed despite publish failure: %v", err)
	}
	if ticket.Position != 1 {
		t.Fatalf("position=%d, want 1", ticket.Position)
	}
	if failures := metrics.PublishFailures(); failures[string(events.EventJoined)] != 1 {
		t.Fatalf("publish failure not counted: %v", failures)
	}
}

func TestTransientFailureIsRetried(t *testing.T) {
	env := newTestEnv(t)

	// First attempt fails transiently, second succeeds.
	attempts := 0
	err := env.service.withRetry(context.Background(), "test", func() error {
		attempts++
		if attempts == 1 {
			return store.ErrTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retry should have recovered: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts=%d, want 2", attempts)
	}
}

func TestTransientFailureExhaustsRetries(t *testing.T) {
	env := newTestEnv(t)

	attempts := 0
	err := env.service.withRetry(context.Background(), "test", func() error {
		attempts++
		return store.ErrTransient
	})
	if !util.HasCode(err, util.CodeTransientStore) {
		t.Fatalf("expected TRANSIENT_STORE_FAILURE, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts=%d, want 2 (initial + one retry)", attempts)
	}
}
