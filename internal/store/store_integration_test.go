//go:build integration

package store

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/clerk/internal/returns"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func testRecord(key string) returns.Record {
	return returns.Record{
		Product:      "Integration TV",
		Store:        "Test Store",
		PurchaseDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		ReturnDate:   time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC),
		Price:        returns.MustParseAmount("3300"),
		Currency:     "NTD",
		Reason:       "not working",
		DedupKey:     key,
	}
}

func TestIntegration_InsertIfAbsent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	key := "integration-" + uuid.NewString()
	t.Cleanup(func() {
		s.pool.Exec(ctx, "DELETE FROM returns WHERE dedup_key = $1", key)
	})

	first, inserted, err := s.InsertIfAbsent(ctx, testRecord(key))
	if err != nil {
		t.Fatalf("InsertIfAbsent failed: %v", err)
	}
	if !inserted {
		t.Fatal("expected first insert to write")
	}
	if first.Seq == 0 || first.CreatedAt.IsZero() {
		t.Errorf("expected server-assigned seq and created_at, got %d %v", first.Seq, first.CreatedAt)
	}

	again, inserted, err := s.InsertIfAbsent(ctx, testRecord(key))
	if err != nil {
		t.Fatalf("second InsertIfAbsent failed: %v", err)
	}
	if inserted {
		t.Fatal("expected second insert to be rejected")
	}
	if again.ID != first.ID {
		t.Errorf("expected existing record %s, got %s", first.ID, again.ID)
	}

	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Price != returns.MustParseAmount("3300") {
		t.Errorf("expected price 3300.00, got %s", got.Price)
	}
	if !got.PurchaseDate.Equal(testRecord(key).PurchaseDate) {
		t.Errorf("expected purchase date 2025-03-01, got %v", got.PurchaseDate)
	}
}

func TestIntegration_ConcurrentInsertSameKey(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	key := "integration-" + uuid.NewString()
	t.Cleanup(func() {
		s.pool.Exec(ctx, "DELETE FROM returns WHERE dedup_key = $1", key)
	})

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.InsertIfAbsent(ctx, testRecord(key))
			if err != nil {
				t.Errorf("InsertIfAbsent: %v", err)
				return
			}
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if inserted != 1 {
		t.Fatalf("expected exactly one insert, got %d", inserted)
	}
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM returns WHERE dedup_key = $1", key).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected one row, got %d", n)
	}
}

func TestIntegration_GetMissing(t *testing.T) {
	s := setupTestStore(t)
	if _, err := s.Get(context.Background(), "no-such-key"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
