package hold

import (
	"log/slog"
	"sync"
	"time"

	"vetdesk/backend/internal/clock"
)

// Sweeper periodically drains expired holds from the store and hands them to
// the notify callback so the room can be told the slot is free again. The
// interval should sit well below the hold TTL.
type Sweeper struct {
	store    *Store
	clock    clock.Clock
	interval time.Duration
	notify   func(Hold)
	log      *slog.Logger

	stopOnce sync.Once
	done     chan struct{}
	stopped  chan struct{}
}

func NewSweeper(store *Store, clk clock.Clock, interval time.Duration, notify func(Hold), log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		store:    store,
		clock:    clk,
		interval: interval,
		notify:   notify,
		log:      log.With(slog.String("component", "hold.sweeper")),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go s.run()
}

func (s *Sweeper) run() {
	defer close(s.stopped)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep runs one pass. Exposed so tests and shutdown paths can force a drain
// without waiting for the ticker.
func (s *Sweeper) Sweep() {
	expired := s.store.SweepExpired(s.clock.Now())
	for _, h := range expired {
		s.log.Debug(
			"hold expired",
			slog.String("reservation_id", h.ReservationID.String()),
			slog.String("slot", h.Key.String()),
			slog.String("holder_id", h.HolderID),
		)
		if s.notify != nil {
			s.notify(h)
		}
	}
}

// Stop halts the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	<-s.stopped
}
