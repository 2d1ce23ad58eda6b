package events

import (
	"context"
	"errors"
	"testing"

	"github.com/spec-kit/clinic-queue/internal/domain"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var typed, all []Event
	d.Subscribe(EventJoined, func(_ context.Context, e Event) error {
		typed = append(typed, e)
		return nil
	})
	d.SubscribeAll(func(_ context.Context, e Event) error {
		all = append(all, e)
		return nil
	})

	_ = d.Publish(context.Background(), Event{Type: EventJoined, Code: "Q001"})
	_ = d.Publish(context.Background(), Event{Type: EventDone, Code: "Q001"})

	if len(typed) != 1 || typed[0].Code != "Q001" {
		t.Fatalf("typed subscriber got %v", typed)
	}
	if len(all) != 2 {
		t.Fatalf("catch-all subscriber expected 2 events, got %d", len(all))
	}
}

func TestDispatcherContinuesPastHandlerError(t *testing.T) {
	d := NewInMemoryDispatcher()

	var delivered bool
	d.Subscribe(EventCanceled, func(context.Context, Event) error {
		return errors.New("handler failure")
	})
	d.Subscribe(EventCanceled, func(context.Context, Event) error {
		delivered = true
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventCanceled}); err != nil {
		t.Fatalf("publish returned error: %v", err)
	}
	if !delivered {
		t.Fatal("second handler should run despite the first failing")
	}
}

func TestTypeForTransition(t *testing.T) {
	cases := []struct {
		to   domain.TicketStatus
		want EventType
	}{
		{domain.TicketStatusNext, EventPromoted},
		{domain.TicketStatusDone, EventDone},
		{domain.TicketStatusNoShow, EventNoShow},
		{domain.TicketStatusCanceled, EventCanceled},
		{domain.TicketStatusUrgent, EventStatusChanged},
		{domain.TicketStatusInRoom, EventStatusChanged},
	}
	for _, tt := range cases {
		if got := TypeForTransition(tt.to); got != tt.want {
			t.Fatalf("TypeForTransition(%q)=%q, want %q", tt.to, got, tt.want)
		}
	}
}

func TestFanoutKeepsPublishingAfterFailure(t *testing.T) {
	var second bool
	failing := publisherFunc(func(context.Context, Event) error { return errors.New("down") })
	ok := publisherFunc(func(context.Context, Event) error { second = true; return nil })

	err := Fanout(failing, nil, ok).Publish(context.Background(), Event{Type: EventJoined})
	if err == nil {
		t.Fatal("expected the failure to be reported")
	}
	if !second {
		t.Fatal("later publishers should still receive the event")
	}
}

type publisherFunc func(context.Context, Event) error

func (f publisherFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }
