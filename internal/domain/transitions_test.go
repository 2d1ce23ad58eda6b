package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from  TicketStatus
		to    TicketStatus
		valid bool
	}{
		{TicketStatusWaiting, TicketStatusNext, true},
		{TicketStatusWaiting, TicketStatusUrgent, true},
		{TicketStatusWaiting, TicketStatusNoShow, true},
		{TicketStatusWaiting, TicketStatusCanceled, true},
		{TicketStatusWaiting, TicketStatusInRoom, false},
		{TicketStatusWaiting, TicketStatusDone, false},
		{TicketStatusUrgent, TicketStatusNext, true},
		{TicketStatusUrgent, TicketStatusNoShow, true},
		{TicketStatusUrgent, TicketStatusCanceled, true},
		{TicketStatusUrgent, TicketStatusWaiting, false},
		{TicketStatusUrgent, TicketStatusInRoom, false},
		{TicketStatusNext, TicketStatusInRoom, true},
		{TicketStatusNext, TicketStatusNoShow, true},
		{TicketStatusNext, TicketStatusCanceled, true},
		{TicketStatusNext, TicketStatusDone, false},
		{TicketStatusNext, TicketStatusWaiting, false},
		{TicketStatusInRoom, TicketStatusDone, true},
		{TicketStatusInRoom, TicketStatusCanceled, true},
		{TicketStatusInRoom, TicketStatusNoShow, false},
		{TicketStatusDone, TicketStatusWaiting, false},
		{TicketStatusDone, TicketStatusNext, false},
		{TicketStatusNoShow, TicketStatusWaiting, false},
		{TicketStatusCanceled, TicketStatusWaiting, false},
	}

	for _, tt := range cases {
		if got := CanTransition(tt.from, tt.to); got != tt.valid {
			t.Fatalf("CanTransition(%q, %q)=%v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := []TicketStatus{TicketStatusDone, TicketStatusNoShow, TicketStatusCanceled}
	for _, status := range terminal {
		if !status.IsTerminal() {
			t.Fatalf("%q should be terminal", status)
		}
		if status.IsActive() {
			t.Fatalf("%q should not be active", status)
		}
	}

	active := []TicketStatus{TicketStatusWaiting, TicketStatusUrgent, TicketStatusNext, TicketStatusInRoom}
	for _, status := range active {
		if status.IsTerminal() {
			t.Fatalf("%q should not be terminal", status)
		}
	}
}

func TestQueuedStatuses(t *testing.T) {
	if !TicketStatusWaiting.Queued() || !TicketStatusUrgent.Queued() {
		t.Fatal("waiting and urgent tickets hold board positions")
	}
	for _, status := range []TicketStatus{TicketStatusNext, TicketStatusInRoom, TicketStatusDone, TicketStatusNoShow, TicketStatusCanceled} {
		if status.Queued() {
			t.Fatalf("%q should not hold a board position", status)
		}
	}
}
