package hold

import (
	"container/heap"
	"sync"
	"time"

	"github.com/google/uuid"

	"vetdesk/backend/internal/clock"
	"vetdesk/backend/internal/domain"
)

// Hold is a temporary, non-committing claim on a slot key. It improves UX
// only; the durable unique index decides who actually gets the slot.
type Hold struct {
	ReservationID   uuid.UUID
	Key             domain.SlotKey
	HolderID        string
	DurationMinutes int
	CreatedAt       time.Time
	ExpiresAt       time.Time
	Extensions      int
}

type entry struct {
	hold    Hold
	ttl     time.Duration
	version uint64
}

const shardCount = 16

type shard struct {
	mu    sync.Mutex
	byKey map[domain.SlotKey]*entry
}

// Store is the authoritative in-process map from slot key to the single
// active hold on that key. Access to one key is serialized by its shard
// mutex; keys on different shards proceed in parallel.
type Store struct {
	clock      clock.Clock
	defaultTTL time.Duration

	shards [shardCount]shard

	idMu sync.RWMutex
	ids  map[uuid.UUID]domain.SlotKey

	heapMu sync.Mutex
	expiry expiryHeap
}

func NewStore(clk clock.Clock, defaultTTL time.Duration) *Store {
	s := &Store{
		clock:      clk,
		defaultTTL: defaultTTL,
		ids:        make(map[uuid.UUID]domain.SlotKey),
	}
	for i := range s.shards {
		s.shards[i].byKey = make(map[domain.SlotKey]*entry)
	}
	return s
}

func (s *Store) shardFor(key domain.SlotKey) *shard {
	h := uint32(2166136261)
	for _, b := range []byte(key.String()) {
		h ^= uint32(b)
		h *= 16777619
	}
	return &s.shards[h%shardCount]
}

// Reserve grants a hold on key for holderID. Reserving a key the same holder
// already holds refreshes the deadline instead of failing. A non-positive ttl
// falls back to the store default.
func (s *Store) Reserve(key domain.SlotKey, holderID string, durationMinutes int, ttl time.Duration) (Hold, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := s.clock.Now()
	if e, ok := sh.byKey[key]; ok {
		if e.hold.ExpiresAt.After(now) {
			if e.hold.HolderID != holderID {
				return Hold{}, ErrSlotTaken
			}
			e.hold.ExpiresAt = now.Add(ttl)
			e.ttl = ttl
			e.version++
			s.pushExpiry(e)
			return e.hold, nil
		}
		s.removeLocked(sh, key, e)
	}

	e := &entry{
		hold: Hold{
			ReservationID:   uuid.New(),
			Key:             key,
			HolderID:        holderID,
			DurationMinutes: durationMinutes,
			CreatedAt:       now,
			ExpiresAt:       now.Add(ttl),
		},
		ttl:     ttl,
		version: 1,
	}
	sh.byKey[key] = e
	s.idMu.Lock()
	s.ids[e.hold.ReservationID] = key
	s.idMu.Unlock()
	s.pushExpiry(e)
	return e.hold, nil
}

// Extend refreshes the deadline of an existing unexpired hold and returns
// the refreshed hold. Only the holder may extend; anyone else gets
// ErrNotHolder. An expired hold is removed and returned alongside
// ErrHoldExpired so the caller can announce the slot as free; the client
// must re-reserve.
func (s *Store) Extend(reservationID uuid.UUID, holderID string) (Hold, error) {
	key, ok := s.lookupKey(reservationID)
	if !ok {
		return Hold{}, ErrHoldNotFound
	}

	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.byKey[key]
	if !ok || e.hold.ReservationID != reservationID {
		return Hold{}, ErrHoldNotFound
	}
	now := s.clock.Now()
	if !e.hold.ExpiresAt.After(now) {
		removed := e.hold
		s.removeLocked(sh, key, e)
		return removed, ErrHoldExpired
	}
	if e.hold.HolderID != holderID {
		return Hold{}, ErrNotHolder
	}

	e.hold.ExpiresAt = now.Add(e.ttl)
	e.hold.Extensions++
	e.version++
	s.pushExpiry(e)
	return e.hold, nil
}

// Release drops the hold. Releasing a missing hold is a no-op and returns
// nil; releasing someone else's live hold fails. The removed hold is
// returned so the caller can announce the slot as free, including when the
// hold had already expired and was still waiting for the sweep.
func (s *Store) Release(reservationID uuid.UUID, holderID string) (*Hold, error) {
	key, ok := s.lookupKey(reservationID)
	if !ok {
		return nil, nil
	}

	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.byKey[key]
	if !ok || e.hold.ReservationID != reservationID {
		return nil, nil
	}
	now := s.clock.Now()
	if !e.hold.ExpiresAt.After(now) {
		removed := e.hold
		s.removeLocked(sh, key, e)
		return &removed, nil
	}
	if e.hold.HolderID != holderID {
		return nil, ErrNotHolder
	}

	removed := e.hold
	s.removeLocked(sh, key, e)
	return &removed, nil
}

// Clear removes whatever hold sits on key, regardless of holder. The winner
// of the durable commit always wins over any hold.
func (s *Store) Clear(key domain.SlotKey) (*Hold, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.byKey[key]
	if !ok {
		return nil, false
	}
	removed := e.hold
	live := e.hold.ExpiresAt.After(s.clock.Now())
	s.removeLocked(sh, key, e)
	return &removed, live
}

// Peek returns the live hold on key, if any.
func (s *Store) Peek(key domain.SlotKey) (Hold, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.byKey[key]
	if !ok || !e.hold.ExpiresAt.After(s.clock.Now()) {
		return Hold{}, false
	}
	return e.hold, true
}

// ActiveOn returns all live holds for one vet and day, for the bulk resync a
// client gets on subscribe.
func (s *Store) ActiveOn(vetID uuid.UUID, day domain.Day) []Hold {
	now := s.clock.Now()
	var out []Hold
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for key, e := range sh.byKey {
			if key.VetID == vetID && key.Day == day && e.hold.ExpiresAt.After(now) {
				out = append(out, e.hold)
			}
		}
		sh.mu.Unlock()
	}
	return out
}

// SweepExpired drains every hold whose deadline passed and returns them.
// Heap entries carry the version the hold had when scheduled, so a hold
// extended after the entry was pushed is skipped rather than evicted.
func (s *Store) SweepExpired(now time.Time) []Hold {
	s.heapMu.Lock()
	var due []expiryItem
	for s.expiry.Len() > 0 && !s.expiry[0].at.After(now) {
		due = append(due, heap.Pop(&s.expiry).(expiryItem))
	}
	s.heapMu.Unlock()

	var expired []Hold
	for _, item := range due {
		sh := s.shardFor(item.key)
		sh.mu.Lock()
		e, ok := sh.byKey[item.key]
		if ok && e.hold.ReservationID == item.id && e.version == item.version && !e.hold.ExpiresAt.After(now) {
			expired = append(expired, e.hold)
			s.removeLocked(sh, item.key, e)
		}
		sh.mu.Unlock()
	}
	return expired
}

func (s *Store) lookupKey(reservationID uuid.UUID) (domain.SlotKey, bool) {
	s.idMu.RLock()
	key, ok := s.ids[reservationID]
	s.idMu.RUnlock()
	return key, ok
}

// removeLocked expects the shard mutex to be held.
func (s *Store) removeLocked(sh *shard, key domain.SlotKey, e *entry) {
	delete(sh.byKey, key)
	s.idMu.Lock()
	delete(s.ids, e.hold.ReservationID)
	s.idMu.Unlock()
}

func (s *Store) pushExpiry(e *entry) {
	s.heapMu.Lock()
	heap.Push(&s.expiry, expiryItem{
		at:      e.hold.ExpiresAt,
		key:     e.hold.Key,
		id:      e.hold.ReservationID,
		version: e.version,
	})
	s.heapMu.Unlock()
}
