package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/clinic-queue/internal/config"
	"github.com/spec-kit/clinic-queue/internal/domain"
	"github.com/spec-kit/clinic-queue/internal/events"
	"github.com/spec-kit/clinic-queue/internal/ranking"
	"github.com/spec-kit/clinic-queue/internal/store"
)

const boardCacheKey = "board_data"

// Board is a consistent point-in-time view of the queue for staff tooling.
type Board struct {
	Waiting     []BoardEntry     `json:"waiting"`
	Called      []BoardEntry     `json:"called"`
	InRoom      []BoardEntry     `json:"in_room"`
	Recent      []RecentActivity `json:"recent"`
	Stats       BoardStats       `json:"stats"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// BoardEntry is one ticket row on the board.
type BoardEntry struct {
	Code       string              `json:"code"`
	Status     domain.TicketStatus `json:"status"`
	Note       string              `json:"note,omitempty"`
	Channel    domain.Channel      `json:"channel"`
	Position   int                 `json:"position,omitempty"`
	ETAMinutes int                 `json:"eta_minutes,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// RecentActivity is one entry of the bounded transition-history view.
type RecentActivity struct {
	Code       string              `json:"code"`
	FromStatus domain.TicketStatus `json:"from_status,omitempty"`
	ToStatus   domain.TicketStatus `json:"to_status"`
	At         time.Time           `json:"at"`
}

// BoardStats summarizes the line.
type BoardStats struct {
	WaitingCount      int `json:"waiting_count"`
	AvgServiceMinutes int `json:"avg_service_minutes"`
}

// BoardService assembles the read-only queue board. The snapshot is taken in
// a single store view, so no row can mix pre- and post-mutation ranks. A
// short-lived Redis cache absorbs dashboard polling; it is dropped whenever
// the queue changes.
type BoardService struct {
	store  store.TicketStore
	queue  *QueueService
	cache  *redis.Client
	logger *zap.Logger
	cfg    config.QueueConfig
}

// NewBoardService constructs the aggregator. cache may be nil.
func NewBoardService(tickets store.TicketStore, queue *QueueService, cache *redis.Client, logger *zap.Logger, cfg config.QueueConfig) *BoardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoardService{store: tickets, queue: queue, cache: cache, logger: logger, cfg: cfg}
}

// RegisterInvalidation drops the cached board on every queue event.
func (b *BoardService) RegisterInvalidation(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.SubscribeAll(func(ctx context.Context, _ events.Event) error {
		b.invalidate(ctx)
		return nil
	})
}

// Snapshot returns the current board, serving the cache when it is fresh.
func (b *BoardService) Snapshot(ctx context.Context) (Board, error) {
	if board, ok := b.cached(ctx); ok {
		return board, nil
	}

	var board Board
	err := b.store.View(ctx, func(tx store.ReadTx) error {
		ranked, err := b.queue.ranked(ctx, tx)
		if err != nil {
			return err
		}
		board.Waiting = make([]BoardEntry, 0, len(ranked))
		for _, entry := range ranked {
			board.Waiting = append(board.Waiting, boardEntry(entry.Ticket, entry.Position, entry.ETAMinutes))
		}

		called, err := tx.ListByStatus(ctx, domain.TicketStatusNext)
		if err != nil {
			return err
		}
		for _, ticket := range called {
			board.Called = append(board.Called, boardEntry(ticket, 0, 0))
		}

		inRoom, err := tx.ListByStatus(ctx, domain.TicketStatusInRoom)
		if err != nil {
			return err
		}
		for _, ticket := range inRoom {
			board.InRoom = append(board.InRoom, boardEntry(ticket, 0, 0))
		}

		recent, err := tx.RecentTransitions(ctx, b.cfg.RecentActivity)
		if err != nil {
			return err
		}
		board.Recent = make([]RecentActivity, 0, len(recent))
		for _, rec := range recent {
			board.Recent = append(board.Recent, RecentActivity{
				Code:       rec.Code,
				FromStatus: rec.FromStatus,
				ToStatus:   rec.ToStatus,
				At:         rec.At,
			})
		}

		samples, err := tx.RecentSamples(ctx, b.cfg.SampleWindow)
		if err != nil {
			return err
		}
		avg := ranking.AverageService(samples, b.cfg.DefaultService())
		board.Stats = BoardStats{
			WaitingCount:      len(ranked),
			AvgServiceMinutes: int(avg.Minutes()),
		}
		board.GeneratedAt = time.Now()
		return nil
	})
	if err != nil {
		return Board{}, err
	}

	b.cacheBoard(ctx, board)
	return board, nil
}

func boardEntry(ticket domain.Ticket, position, eta int) BoardEntry {
	return BoardEntry{
		Code:       ticket.Code,
		Status:     ticket.Status,
		Note:       ticket.Note,
		Channel:    ticket.Channel,
		Position:   position,
		ETAMinutes: eta,
		CreatedAt:  ticket.CreatedAt,
		UpdatedAt:  ticket.UpdatedAt,
	}
}

func (b *BoardService) cached(ctx context.Context) (Board, bool) {
	if b.cache == nil || b.cfg.BoardCacheTTL() <= 0 {
		return Board{}, false
	}
	raw, err := b.cache.Get(ctx, boardCacheKey).Bytes()
	if err != nil {
		return Board{}, false
	}
	var board Board
	if err := json.Unmarshal(raw, &board); err != nil {
		return Board{}, false
	}
	return board, true
}

func (b *BoardService) cacheBoard(ctx context.Context, board Board) {
	if b.cache == nil || b.cfg.BoardCacheTTL() <= 0 {
		return
	}
	raw, err := json.Marshal(board)
	if err != nil {
		return
	}
	if err := b.cache.Set(ctx, boardCacheKey, raw, b.cfg.BoardCacheTTL()).Err(); err != nil {
		b.logger.Debug("board cache write failed", zap.Error(err))
	}
}

func (b *BoardService) invalidate(ctx context.Context) {
	if b.cache == nil {
		return
	}
	if err := b.cache.Del(ctx, boardCacheKey).Err(); err != nil {
		b.logger.Debug("board cache invalidation failed", zap.Error(err))
	}
}
