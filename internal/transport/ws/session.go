package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"vetdesk/backend/internal/domain"
	"vetdesk/backend/internal/live"
)

const (
	outboundBuffer = 32
	writeTimeout   = 5 * time.Second
)

type roomRef struct {
	vetID uuid.UUID
	day   domain.Day
}

// session is one WebSocket connection. Events queue on a buffered channel
// drained by a single writer goroutine; a full queue drops the event rather
// than stalling a broadcast — resync on resubscribe recovers the view.
type session struct {
	id   string
	conn *websocket.Conn
	log  *slog.Logger

	mu      sync.Mutex
	actorID string
	rooms   map[roomRef]struct{}

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, customerID string, log *slog.Logger) *session {
	id := uuid.NewString()
	actorID := customerID
	if actorID == "" {
		actorID = id
	}
	return &session{
		id:      id,
		conn:    conn,
		log:     log.With(slog.String("connection_id", id)),
		actorID: actorID,
		rooms:   make(map[roomRef]struct{}),
		out:     make(chan []byte, outboundBuffer),
		done:    make(chan struct{}),
	}
}

func (s *session) ID() string { return s.id }

func (s *session) ActorID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actorID
}

// setActor pins the holder identity to a durable customer id so a
// reconnecting client keeps ownership of its holds.
func (s *session) setActor(customerID string) {
	if customerID == "" {
		return
	}
	s.mu.Lock()
	s.actorID = customerID
	s.mu.Unlock()
}

func (s *session) Send(ev live.Event) {
	payload, err := live.Encode(ev)
	if err != nil {
		s.log.Warn("event encode failed", slog.Any("err", err), slog.String("event", string(ev.Type())))
		return
	}
	select {
	case s.out <- payload:
	case <-s.done:
	default:
		s.log.Warn("slow consumer, dropping event", slog.String("event", string(ev.Type())))
	}
}

func (s *session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case payload := <-s.out:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := s.conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				s.close()
				return
			}
		}
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *session) trackRoom(ref roomRef) {
	s.mu.Lock()
	s.rooms[ref] = struct{}{}
	s.mu.Unlock()
}

func (s *session) forgetRoom(ref roomRef) {
	s.mu.Lock()
	delete(s.rooms, ref)
	s.mu.Unlock()
}

func (s *session) joinedRooms() []roomRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]roomRef, 0, len(s.rooms))
	for ref := range s.rooms {
		out = append(out, ref)
	}
	return out
}
