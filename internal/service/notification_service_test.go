package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/clinic-queue/internal/config"
	"github.com/spec-kit/clinic-queue/internal/domain"
	"github.com/spec-kit/clinic-queue/internal/events"
)

type fakeLimiter struct {
	mu        sync.Mutex
	cooldowns map[string]time.Duration
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{cooldowns: make(map[string]time.Duration)}
}

func (f *fakeLimiter) Allow(context.Context, string, string, int, time.Duration) bool { return true }

func (f *fakeLimiter) StartCooldown(_ context.Context, contact string, window time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cooldowns[contact] = window
}

func (f *fakeLimiter) InCooldown(_ context.Context, contact string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.cooldowns[contact]
	return ok
}

func TestDepartureStartsRejoinCooldown(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	limiter := newFakeLimiter()
	svc := NewNotificationService(dispatcher, limiter, zap.NewNop(),
		config.NotificationConfig{ClinicName: "Test Clinic"},
		config.QueueConfig{RejoinCooldownSeconds: 600})
	svc.RegisterHandlers()

	ctx := context.Background()
	_ = dispatcher.Publish(ctx, events.Event{
		Type:    events.EventNoShow,
		Code:    "Q001",
		Contact: "555-0100",
	})

	if window := limiter.cooldowns["555-0100"]; window != 10*time.Minute {
		t.Fatalf("cooldown=%v, want 10m", window)
	}
}

func TestNoCooldownWhenDisabled(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	limiter := newFakeLimiter()
	svc := NewNotificationService(dispatcher, limiter, zap.NewNop(),
		config.NotificationConfig{ClinicName: "Test Clinic"},
		config.QueueConfig{RejoinCooldownSeconds: 0})
	svc.RegisterHandlers()

	_ = dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventCanceled,
		Code:    "Q001",
		Contact: "555-0100",
	})

	if limiter.InCooldown(context.Background(), "555-0100") {
		t.Fatal("cooldown started while disabled")
	}
}

func TestKioskTicketsSkipNotifications(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	svc := NewNotificationService(dispatcher, newFakeLimiter(), zap.NewNop(),
		config.NotificationConfig{ClinicName: "Test Clinic"},
		config.QueueConfig{})
	svc.RegisterHandlers()

	// Events for kiosk tickets and empty contacts must not panic or attempt
	// delivery. Behavior is observable only as absence of errors here.
	ctx := context.Background()
	_ = dispatcher.Publish(ctx, events.Event{Type: events.EventPromoted, Code: "Q001", Channel: domain.ChannelKiosk})
	_ = dispatcher.Publish(ctx, events.Event{Type: events.EventDone, Code: "Q002"})
}
