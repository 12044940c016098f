package live

import (
	"sync"

	"github.com/google/uuid"

	"vetdesk/backend/internal/domain"
)

// Session is one live connection viewing a room. Send must not block; slow
// consumers drop events rather than stalling the fan-out.
type Session interface {
	ID() string
	ActorID() string
	Send(Event)
}

type roomKey struct {
	VetID uuid.UUID
	Day   domain.Day
}

// Registry tracks which sessions watch which (vet, day) room. Rooms are
// created on first subscribe and torn down when the last member leaves.
type Registry struct {
	mu    sync.RWMutex
	rooms map[roomKey]map[Session]struct{}
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[roomKey]map[Session]struct{})}
}

func (r *Registry) Subscribe(vetID uuid.UUID, day domain.Day, s Session) {
	key := roomKey{VetID: vetID, Day: day}
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[key]
	if !ok {
		members = make(map[Session]struct{})
		r.rooms[key] = members
	}
	members[s] = struct{}{}
}

func (r *Registry) Unsubscribe(vetID uuid.UUID, day domain.Day, s Session) {
	key := roomKey{VetID: vetID, Day: day}
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[key]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(r.rooms, key)
	}
}

// Members returns a snapshot of the room so callers fan out without holding
// the registry lock.
func (r *Registry) Members(vetID uuid.UUID, day domain.Day) []Session {
	key := roomKey{VetID: vetID, Day: day}
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[key]
	if !ok {
		return nil
	}
	out := make([]Session, 0, len(members))
	for s := range members {
		out = append(out, s)
	}
	return out
}

// RoomCount reports how many rooms currently exist.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
