package hold

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"vetdesk/backend/internal/clock"
)

func TestSweeperNotifiesOnExpiry(t *testing.T) {
	clk := clock.NewManual(testBase)
	s := NewStore(clk, time.Minute)
	key := testKey(t, uuid.New(), "2025-06-01", "10:00")

	var mu sync.Mutex
	var expired []Hold
	sw := NewSweeper(s, clk, time.Hour, func(h Hold) {
		mu.Lock()
		expired = append(expired, h)
		mu.Unlock()
	}, nil)

	if _, err := s.Reserve(key, "customer-a", 30, 0); err != nil {
		t.Fatalf("Reserve error: %v", err)
	}

	sw.Sweep()
	mu.Lock()
	if len(expired) != 0 {
		mu.Unlock()
		t.Fatalf("sweep before expiry notified %d holds", len(expired))
	}
	mu.Unlock()

	clk.Advance(time.Minute + time.Second)
	sw.Sweep()

	mu.Lock()
	defer mu.Unlock()
	if len(expired) != 1 {
		t.Fatalf("notified %d holds, want 1", len(expired))
	}
	if expired[0].Key != key {
		t.Fatalf("notified %v, want %v", expired[0].Key, key)
	}
}

func TestSweeperLoopStops(t *testing.T) {
	clk := clock.NewManual(testBase)
	s := NewStore(clk, time.Minute)

	sw := NewSweeper(s, clk, time.Millisecond, nil, nil)
	sw.Start()

	done := make(chan struct{})
	go func() {
		sw.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return")
	}
}
