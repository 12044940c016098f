package live

import (
	"log/slog"

	"github.com/google/uuid"

	"vetdesk/backend/internal/domain"
)

// Broadcaster fans out state-change events to every session in a room.
// Delivery is at-most-once; a missed event is recovered by the bulk resync
// on resubscribe, never by retries.
type Broadcaster struct {
	registry *Registry
	log      *slog.Logger
}

func NewBroadcaster(registry *Registry, log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{
		registry: registry,
		log:      log.With(slog.String("component", "live.broadcaster")),
	}
}

// Broadcast delivers ev to every member of the (vetID, day) room.
func (b *Broadcaster) Broadcast(vetID uuid.UUID, day domain.Day, ev Event) {
	members := b.registry.Members(vetID, day)
	for _, s := range members {
		s.Send(ev)
	}
	b.log.Debug(
		"broadcast",
		slog.String("event", string(ev.Type())),
		slog.String("vet_id", vetID.String()),
		slog.String("day", string(day)),
		slog.Int("recipients", len(members)),
	)
}

// BroadcastReserved delivers a slot:reserved event with the isOwn flag set
// per recipient: true only for the holder's own sessions.
func (b *Broadcaster) BroadcastReserved(vetID uuid.UUID, day domain.Day, holderID string, ev SlotReserved) {
	members := b.registry.Members(vetID, day)
	for _, s := range members {
		out := ev
		out.IsOwn = s.ActorID() == holderID
		s.Send(out)
	}
	b.log.Debug(
		"broadcast reserved",
		slog.String("vet_id", vetID.String()),
		slog.String("day", string(day)),
		slog.String("reservation_id", ev.ReservationID.String()),
		slog.Int("recipients", len(members)),
	)
}
