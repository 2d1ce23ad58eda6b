// Package postgres implements the ticket store on a pgx connection pool.
// Queue mutations run inside a transaction that row-locks the tickets they
// touch, so concurrent operations on overlapping ticket sets serialize at
// the database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/clinic-queue/internal/domain"
	"github.com/spec-kit/clinic-queue/internal/store"
)

const ticketColumns = "code, seq, contact, status, note, channel, created_at, updated_at"

// Store is a pgx-backed TicketStore.
type Store struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// New wraps the pool. timeout bounds every Update/View; zero disables the
// bound.
func New(pool *pgxpool.Pool, timeout time.Duration) *Store {
	return &Store{pool: pool, timeout: timeout}
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Update runs fn in a transaction with row locks on every ticket it reads.
func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapErr(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&pgTx{tx: tx, locking: true}); err != nil {
		return err
	}
	return mapErr(tx.Commit(ctx))
}

// View runs fn in a repeatable-read transaction, giving the board a single
// consistent snapshot.
func (s *Store) View(ctx context.Context, fn func(tx store.ReadTx) error) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return mapErr(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return mapErr(tx.Commit(ctx))
}

type pgTx struct {
	tx      pgx.Tx
	locking bool
}

func (t *pgTx) lockClause() string {
	if t.locking {
		return " FOR UPDATE"
	}
	return ""
}

func (t *pgTx) TicketByCode(ctx context.Context, code string) (domain.Ticket, error) {
	query := fmt.Sprintf("SELECT %s FROM tickets WHERE code=$1%s", ticketColumns, t.lockClause())
	ticket, err := scanTicket(t.tx.QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Ticket{}, store.ErrTicketNotFound
	}
	return ticket, mapErr(err)
}

func (t *pgTx) ActiveByContact(ctx context.Context, contact string) (domain.Ticket, error) {
	if contact == "" {
		return domain.Ticket{}, store.ErrNoActiveTicket
	}
	query := fmt.Sprintf(`SELECT %s FROM tickets
        WHERE contact=$1 AND status IN ('waiting','urgent','next','in_room')
        ORDER BY created_at DESC LIMIT 1%s`, ticketColumns, t.lockClause())
	ticket, err := scanTicket(t.tx.QueryRow(ctx, query, contact))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Ticket{}, store.ErrNoActiveTicket
	}
	return ticket, mapErr(err)
}

func (t *pgTx) ListByStatus(ctx context.Context, statuses ...domain.TicketStatus) ([]domain.Ticket, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = status
	}
	query := fmt.Sprintf("SELECT %s FROM tickets WHERE status IN (%s) ORDER BY created_at, seq%s",
		ticketColumns, strings.Join(placeholders, ","), t.lockClause())

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		result = append(result, ticket)
	}
	return result, mapErr(rows.Err())
}

func (t *pgTx) RecentTransitions(ctx context.Context, limit int) ([]domain.Transition, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
        SELECT code, from_status, to_status, at, waited_seconds
        FROM ticket_transitions ORDER BY at DESC, id DESC LIMIT $1`
	rows, err := t.tx.Query(ctx, query, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []domain.Transition
	for rows.Next() {
		var rec domain.Transition
		if err := rows.Scan(&rec.Code, &rec.FromStatus, &rec.ToStatus, &rec.At, &rec.WaitedSeconds); err != nil {
			return nil, mapErr(err)
		}
		result = append(result, rec)
	}
	return result, mapErr(rows.Err())
}

func (t *pgTx) RecentSamples(ctx context.Context, n int) ([]domain.ServiceTimeSample, error) {
	if n <= 0 {
		n = 20
	}
	const query = `
        SELECT duration_seconds, recorded_at
        FROM service_time_samples ORDER BY recorded_at DESC, id DESC LIMIT $1`
	rows, err := t.tx.Query(ctx, query, n)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []domain.ServiceTimeSample
	for rows.Next() {
		var seconds int64
		var sample domain.ServiceTimeSample
		if err := rows.Scan(&seconds, &sample.RecordedAt); err != nil {
			return nil, mapErr(err)
		}
		sample.Duration = time.Duration(seconds) * time.Second
		result = append(result, sample)
	}
	return result, mapErr(rows.Err())
}

func (t *pgTx) InsertTicket(ctx context.Context, ticket *domain.Ticket) error {
	// Code allocation rides on a sequence, so concurrent joins can never
	// collide.
	const query = `
        INSERT INTO tickets (code, seq, contact, status, note, channel)
        SELECT 'Q' || lpad(n.v::text, 3, '0'), n.v, $1, $2, $3, $4
        FROM (SELECT nextval('ticket_code_seq') AS v) n
        RETURNING code, seq, created_at, updated_at`
	err := t.tx.QueryRow(ctx, query,
		ticket.Contact,
		ticket.Status,
		ticket.Note,
		ticket.Channel,
	).Scan(&ticket.Code, &ticket.Seq, &ticket.CreatedAt, &ticket.UpdatedAt)
	if isUniqueViolation(err) {
		return store.ErrDuplicateActiveTicket
	}
	return mapErr(err)
}

func (t *pgTx) UpdateStatus(ctx context.Context, code string, to domain.TicketStatus) (domain.Ticket, error) {
	query := fmt.Sprintf("UPDATE tickets SET status=$2, updated_at=NOW() WHERE code=$1 RETURNING %s", ticketColumns)
	ticket, err := scanTicket(t.tx.QueryRow(ctx, query, code, to))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Ticket{}, store.ErrTicketNotFound
	}
	return ticket, mapErr(err)
}

func (t *pgTx) AppendTransition(ctx context.Context, rec domain.Transition) error {
	const query = `
        INSERT INTO ticket_transitions (code, from_status, to_status, at, waited_seconds)
        VALUES ($1,$2,$3,$4,$5)`
	_, err := t.tx.Exec(ctx, query, rec.Code, rec.FromStatus, rec.ToStatus, rec.At, rec.WaitedSeconds)
	return mapErr(err)
}

func (t *pgTx) AppendSample(ctx context.Context, sample domain.ServiceTimeSample) error {
	const query = `
        INSERT INTO service_time_samples (duration_seconds, recorded_at)
        VALUES ($1,$2)`
	_, err := t.tx.Exec(ctx, query, int64(sample.Duration/time.Second), sample.RecordedAt)
	return mapErr(err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (domain.Ticket, error) {
	var ticket domain.Ticket
	err := row.Scan(
		&ticket.Code,
		&ticket.Seq,
		&ticket.Contact,
		&ticket.Status,
		&ticket.Note,
		&ticket.Channel,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
	return ticket, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// mapErr folds timeouts and lock contention into ErrTransient so the service
// layer can retry them.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", store.ErrTransient, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03": // serialization failure, deadlock, lock not available
			return fmt.Errorf("%w: %v", store.ErrTransient, err)
		}
	}
	return err
}
