package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/clinic-queue/internal/domain"
	"github.com/spec-kit/clinic-queue/internal/store"
)

func TestInsertAllocatesUniqueCodes(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	codes := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, func(tx store.Tx) error {
				ticket := domain.Ticket{Status: domain.TicketStatusWaiting}
				if err := tx.InsertTicket(ctx, &ticket); err != nil {
					return err
				}
				codes <- ticket.Code
				return nil
			})
		}()
	}
	wg.Wait()
	close(codes)

	seen := make(map[string]bool)
	for code := range codes {
		if code == "" {
			t.Fatal("allocated an empty code")
		}
		if seen[code] {
			t.Fatalf("code %s allocated twice", code)
		}
		seen[code] = true
	}
	if len(seen) != 50 {
		t.Fatalf("expected 50 codes, got %d", len(seen))
	}
}

func TestFailedUpdateLeavesStoreUnchanged(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.Update(ctx, func(tx store.Tx) error {
		ticket := domain.Ticket{Contact: "555-0100", Status: domain.TicketStatusWaiting}
		if err := tx.InsertTicket(ctx, &ticket); err != nil {
			return err
		}
		return store.ErrTransient
	})
	if err == nil {
		t.Fatal("expected the staged error to surface")
	}

	_ = s.View(ctx, func(tx store.ReadTx) error {
		if _, err := tx.ActiveByContact(ctx, "555-0100"); err != store.ErrNoActiveTicket {
			t.Fatalf("rolled-back insert still visible: %v", err)
		}
		return nil
	})
}

func TestUpdateStatusStampsUpdatedAt(t *testing.T) {
	current := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s := NewWithClock(func() time.Time { return current })
	ctx := context.Background()

	var code string
	_ = s.Update(ctx, func(tx store.Tx) error {
		ticket := domain.Ticket{Status: domain.TicketStatusWaiting}
		if err := tx.InsertTicket(ctx, &ticket); err != nil {
			return err
		}
		code = ticket.Code
		return nil
	})

	current = current.Add(5 * time.Minute)
	_ = s.Update(ctx, func(tx store.Tx) error {
		updated, err := tx.UpdateStatus(ctx, code, domain.TicketStatusNext)
		if err != nil {
			return err
		}
		if !updated.UpdatedAt.Equal(current) {
			t.Fatalf("UpdatedAt=%v, want %v", updated.UpdatedAt, current)
		}
		return nil
	})
}

func TestRecentSamplesWindow(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = s.Update(ctx, func(tx store.Tx) error {
		for i := 1; i <= 5; i++ {
			sample := domain.ServiceTimeSample{
				Duration:   time.Duration(i) * time.Minute,
				RecordedAt: time.Now(),
			}
			if err := tx.AppendSample(ctx, sample); err != nil {
				return err
			}
		}
		return nil
	})

	_ = s.View(ctx, func(tx store.ReadTx) error {
		samples, err := tx.RecentSamples(ctx, 3)
		if err != nil {
			return err
		}
		if len(samples) != 3 {
			t.Fatalf("expected 3 samples, got %d", len(samples))
		}
		if samples[0].Duration != 5*time.Minute {
			t.Fatalf("expected most recent sample first, got %v", samples[0].Duration)
		}
		return nil
	})
}

func TestCanceledContactCanRejoin(t *testing.T) {
	s := New()
	ctx := context.Background()

	var code string
	_ = s.Update(ctx, func(tx store.Tx) error {
		ticket := domain.Ticket{Contact: "555-0101", Status: domain.TicketStatusWaiting}
		if err := tx.InsertTicket(ctx, &ticket); err != nil {
			return err
		}
		code = ticket.Code
		return nil
	})

	_ = s.Update(ctx, func(tx store.Tx) error {
		_, err := tx.UpdateStatus(ctx, code, domain.TicketStatusCanceled)
		return err
	})

	_ = s.View(ctx, func(tx store.ReadTx) error {
		if _, err := tx.ActiveByContact(ctx, "555-0101"); err != store.ErrNoActiveTicket {
			t.Fatalf("terminal ticket should not count as active: %v", err)
		}
		return nil
	})
}
