package service

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemorySessionStore_ConsumeIsSingleUse(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	if err := store.StoreRefresh(ctx, "jti-1", "u1", time.Hour); err != nil {
		t.Fatalf("store refresh: %v", err)
	}

	userID, found, err := store.ConsumeRefresh(ctx, "jti-1")
	if err != nil {
		t.Fatalf("consume refresh: %v", err)
	}
	if !found || userID != "u1" {
		t.Fatalf("expected first consume to succeed, got found=%v user=%q", found, userID)
	}

	_, found, err = store.ConsumeRefresh(ctx, "jti-1")
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if found {
		t.Fatalf("expected second consume to miss")
	}
}

func TestMemorySessionStore_ConcurrentConsumeOnlyOneWins(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	if err := store.StoreRefresh(ctx, "jti-race", "u1", time.Hour); err != nil {
		t.Fatalf("store refresh: %v", err)
	}

	const attempts = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, found, _ := store.ConsumeRefresh(ctx, "jti-race"); found {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one winner, got %d", count)
	}
}

func TestMemorySessionStore_ExpiredRefreshIsGone(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	if err := store.StoreRefresh(ctx, "jti-old", "u1", -time.Minute); err != nil {
		t.Fatalf("store refresh: %v", err)
	}
	if _, found, _ := store.ConsumeRefresh(ctx, "jti-old"); found {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestMemorySessionStore_RevocationMarkerMonotonic(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	if err := store.MarkRevoked(ctx, "u1", 100); err != nil {
		t.Fatalf("mark revoked: %v", err)
	}
	// Una escritura con un timestamp menor no retrocede el marcador.
	if err := store.MarkRevoked(ctx, "u1", 50); err != nil {
		t.Fatalf("mark revoked: %v", err)
	}

	at, found, err := store.RevokedAt(ctx, "u1")
	if err != nil {
		t.Fatalf("revoked at: %v", err)
	}
	if !found || at != 100 {
		t.Fatalf("expected marker 100, got found=%v at=%d", found, at)
	}

	if err := store.MarkRevoked(ctx, "u1", 200); err != nil {
		t.Fatalf("mark revoked: %v", err)
	}
	at, _, _ = store.RevokedAt(ctx, "u1")
	if at != 200 {
		t.Fatalf("expected marker to advance to 200, got %d", at)
	}
}

func TestMemorySessionStore_RevokedAtAbsent(t *testing.T) {
	store := NewMemorySessionStore()
	if _, found, _ := store.RevokedAt(context.Background(), "nobody"); found {
		t.Fatalf("expected no marker for unknown user")
	}
}
