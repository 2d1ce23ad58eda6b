package service

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/clinic-queue/internal/config"
	"github.com/spec-kit/clinic-queue/internal/domain"
)

func newBoardEnv(t *testing.T) (*testEnv, *BoardService) {
	t.Helper()
	env := newTestEnv(t)
	board := NewBoardService(env.store, env.service, nil, nil, config.QueueConfig{
		DefaultServiceMinutes: 12,
		SampleWindow:          20,
		RecentActivity:        5,
	})
	return env, board
}

func TestSnapshotGroupsByStatus(t *testing.T) {
	env, boardSvc := newBoardEnv(t)

	inRoom := env.mustJoin(t, "555-0100")
	env.clock.Advance(time.Minute)
	called := env.mustJoin(t, "555-0101")
	env.clock.Advance(time.Minute)
	waiting := env.mustJoin(t, "555-0102")

	env.mustAdvance(t, inRoom.Code, domain.TicketStatusNext)
	env.mustAdvance(t, inRoom.Code, domain.TicketStatusInRoom)
	env.mustAdvance(t, called.Code, domain.TicketStatusNext)

	board, err := boardSvc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	if len(board.Waiting) != 1 || board.Waiting[0].Code != waiting.Code {
		t.Fatalf("waiting=%+v, want only %s", board.Waiting, waiting.Code)
	}
	if board.Waiting[0].Position != 1 {
		t.Fatalf("waiting position=%d, want 1", board.Waiting[0].Position)
	}
	if len(board.Called) != 1 || board.Called[0].Code != called.Code {
		t.Fatalf("called=%+v, want only %s", board.Called, called.Code)
	}
	if len(board.InRoom) != 1 || board.InRoom[0].Code != inRoom.Code {
		t.Fatalf("in_room=%+v, want only %s", board.InRoom, inRoom.Code)
	}
	if board.Stats.WaitingCount != 1 {
		t.Fatalf("waiting_count=%d, want 1", board.Stats.WaitingCount)
	}
	if board.GeneratedAt.IsZero() {
		t.Fatal("generated_at not set")
	}
}

func TestSnapshotRecentActivityBounded(t *testing.T) {
	env := newTestEnv(t)
	boardSvc := NewBoardService(env.store, env.service, nil, nil, config.QueueConfig{
		DefaultServiceMinutes: 12,
		SampleWindow:          20,
		RecentActivity:        2,
	})

	ticket := env.mustJoin(t, "555-0100")
	env.mustAdvance(t, ticket.Code, domain.TicketStatusNext)
	env.mustAdvance(t, ticket.Code, domain.TicketStatusInRoom)
	env.mustAdvance(t, ticket.Code, domain.TicketStatusDone)

	board, err := boardSvc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(board.Recent) != 2 {
		t.Fatalf("recent=%d entries, want 2", len(board.Recent))
	}
	// Most recent first.
	if board.Recent[0].ToStatus != domain.TicketStatusDone {
		t.Fatalf("recent[0]=%s, want done", board.Recent[0].ToStatus)
	}
	if board.Recent[1].ToStatus != domain.TicketStatusInRoom {
		t.Fatalf("recent[1]=%s, want in_room", board.Recent[1].ToStatus)
	}
}

func TestSnapshotStatsUseSampledAverage(t *testing.T) {
	env, boardSvc := newBoardEnv(t)

	ticket := env.mustJoin(t, "555-0100")
	env.mustAdvance(t, ticket.Code, domain.TicketStatusNext)
	env.mustAdvance(t, ticket.Code, domain.TicketStatusInRoom)
	env.clock.Advance(6 * time.Minute)
	env.mustAdvance(t, ticket.Code, domain.TicketStatusDone)

	board, err := boardSvc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if board.Stats.AvgServiceMinutes != 6 {
		t.Fatalf("avg_service_minutes=%d, want 6", board.Stats.AvgServiceMinutes)
	}
}

func TestSnapshotDefaultAverageWithoutSamples(t *testing.T) {
	env, boardSvc := newBoardEnv(t)
	env.mustJoin(t, "555-0100")

	board, err := boardSvc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if board.Stats.AvgServiceMinutes != 12 {
		t.Fatalf("avg_service_minutes=%d, want fallback 12", board.Stats.AvgServiceMinutes)
	}
}
