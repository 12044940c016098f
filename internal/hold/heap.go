package hold

import (
	"time"

	"github.com/google/uuid"

	"vetdesk/backend/internal/domain"
)

// expiryItem is a scheduled eviction. Items are never removed when a hold is
// extended or released; the sweep compares versions and drops stale ones.
type expiryItem struct {
	at      time.Time
	key     domain.SlotKey
	id      uuid.UUID
	version uint64
}

type expiryHeap []expiryItem

func (h expiryHeap) Len() int           { return len(h) }
func (h expiryHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h expiryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *expiryHeap) Push(x any)        { *h = append(*h, x.(expiryItem)) }

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
