package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"vetdesk/backend/internal/domain"
	"vetdesk/backend/internal/hold"
	"vetdesk/backend/internal/live"
)

// AvailabilityReader supplies the bulk snapshot sent on (re)subscribe.
type AvailabilityReader interface {
	DayAvailability(ctx context.Context, vetID uuid.UUID, day domain.Day) ([]domain.ClockTime, []hold.Hold, error)
}

// Handler upgrades connections and routes the live-hold protocol. A client
// disconnect leaves its holds in place; only TTL expiry or an explicit
// release frees a slot.
type Handler struct {
	registry  *live.Registry
	broadcast *live.Broadcaster
	holds     *hold.Store
	avail     AvailabilityReader
	origins   []string
	log       *slog.Logger
}

func NewHandler(
	registry *live.Registry,
	broadcast *live.Broadcaster,
	holds *hold.Store,
	avail AvailabilityReader,
	origins []string,
	log *slog.Logger,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		registry:  registry,
		broadcast: broadcast,
		holds:     holds,
		avail:     avail,
		origins:   origins,
		log:       log.With(slog.String("component", "ws.handler")),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.log.Warn("websocket accept failed", slog.Any("err", err))
		return
	}

	sess := newSession(conn, r.URL.Query().Get("customerId"), h.log)
	defer h.teardown(sess, conn)

	ctx := r.Context()
	go sess.writeLoop(ctx)

	// Connecting straight into a room is allowed via query params.
	if vetID, day, ok := parseRoomParams(r.URL.Query().Get("vetId"), r.URL.Query().Get("date")); ok {
		h.subscribe(ctx, sess, vetID, day)
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				h.log.Debug("connection read ended", slog.Any("err", err), slog.String("connection_id", sess.ID()))
			}
			return
		}
		h.dispatch(ctx, sess, data)
	}
}

func (h *Handler) teardown(sess *session, conn *websocket.Conn) {
	for _, ref := range sess.joinedRooms() {
		h.registry.Unsubscribe(ref.vetID, ref.day, sess)
	}
	sess.close()
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Handler) dispatch(ctx context.Context, sess *session, data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		sess.Send(reservationError(codeInvalidInput))
		return
	}

	switch msg.Type {
	case msgSubscribe:
		vetID, day, ok := parseRoomParams(msg.VetID, msg.Date)
		if !ok {
			sess.Send(reservationError(codeInvalidInput))
			return
		}
		sess.setActor(msg.CustomerID)
		h.subscribe(ctx, sess, vetID, day)

	case msgUnsubscribe:
		vetID, day, ok := parseRoomParams(msg.VetID, msg.Date)
		if !ok {
			sess.Send(reservationError(codeInvalidInput))
			return
		}
		h.registry.Unsubscribe(vetID, day, sess)
		sess.forgetRoom(roomRef{vetID: vetID, day: day})

	case msgReserve:
		h.reserve(ctx, sess, msg)

	case msgRelease:
		h.release(sess, msg)

	case msgExtend:
		h.extend(sess, msg)

	default:
		sess.Send(reservationError(codeInvalidInput))
	}
}

func (h *Handler) subscribe(ctx context.Context, sess *session, vetID uuid.UUID, day domain.Day) {
	h.registry.Subscribe(vetID, day, sess)
	sess.trackRoom(roomRef{vetID: vetID, day: day})

	booked, holds, err := h.avail.DayAvailability(ctx, vetID, day)
	if err != nil {
		h.log.Warn(
			"availability snapshot failed",
			slog.Any("err", err),
			slog.String("vet_id", vetID.String()),
			slog.String("day", string(day)),
		)
		return
	}

	snapshot := live.AvailabilityChanged{
		Reservations: make([]live.ReservationState, 0, len(holds)),
		BookedTimes:  booked,
	}
	actor := sess.ActorID()
	for _, hl := range holds {
		snapshot.Reservations = append(snapshot.Reservations, live.ReservationState{
			ReservationID: hl.ReservationID,
			Time:          hl.Key.Start,
			ExpiresAt:     hl.ExpiresAt,
			IsOwn:         hl.HolderID == actor,
		})
	}
	sess.Send(snapshot)
}

func (h *Handler) reserve(ctx context.Context, sess *session, msg clientMessage) {
	vetID, day, ok := parseRoomParams(msg.VetID, msg.Date)
	if !ok {
		sess.Send(reservationError(codeInvalidInput))
		return
	}
	start, err := domain.ParseClockTime(msg.Time)
	if err != nil {
		sess.Send(reservationError(codeInvalidInput))
		return
	}
	sess.setActor(msg.CustomerID)
	actor := sess.ActorID()

	// A scheduled appointment blocks new holds on its slot until it is
	// cancelled. On a lookup failure the hold is still granted; the durable
	// unique index decides commits either way.
	booked, _, err := h.avail.DayAvailability(ctx, vetID, day)
	if err != nil {
		h.log.Warn(
			"booked-slot lookup failed",
			slog.Any("err", err),
			slog.String("vet_id", vetID.String()),
			slog.String("day", string(day)),
		)
	}
	for _, t := range booked {
		if t == start {
			sess.Send(reservationError(codeSlotTaken))
			return
		}
	}

	key := domain.SlotKey{VetID: vetID, Day: day, Start: start}
	granted, err := h.holds.Reserve(key, actor, msg.Duration, 0)
	if err != nil {
		if errors.Is(err, hold.ErrSlotTaken) {
			sess.Send(reservationError(codeSlotTaken))
			return
		}
		sess.Send(reservationError(codeInvalidInput))
		return
	}

	h.broadcast.BroadcastReserved(vetID, day, actor, live.SlotReserved{
		ReservationID: granted.ReservationID,
		Time:          granted.Key.Start,
		ExpiresAt:     granted.ExpiresAt,
	})
}

func (h *Handler) release(sess *session, msg clientMessage) {
	id, err := uuid.Parse(msg.ReservationID)
	if err != nil {
		sess.Send(reservationError(codeInvalidInput))
		return
	}

	removed, err := h.holds.Release(id, sess.ActorID())
	if err != nil {
		if errors.Is(err, hold.ErrNotHolder) {
			sess.Send(reservationError(codeNotHolder))
			return
		}
		sess.Send(reservationError(codeInvalidInput))
		return
	}
	if removed == nil {
		// Already gone; releasing twice is fine.
		return
	}

	h.broadcast.Broadcast(removed.Key.VetID, removed.Key.Day, live.SlotReleased{
		ReservationID: removed.ReservationID,
		Time:          removed.Key.Start,
	})
}

func (h *Handler) extend(sess *session, msg clientMessage) {
	id, err := uuid.Parse(msg.ReservationID)
	if err != nil {
		sess.Send(reservationError(codeInvalidInput))
		return
	}

	refreshed, err := h.holds.Extend(id, sess.ActorID())
	if err != nil {
		switch {
		case errors.Is(err, hold.ErrHoldNotFound):
			sess.Send(reservationError(codeHoldNotFound))
		case errors.Is(err, hold.ErrHoldExpired):
			// The extend surfaced an expiry the sweeper had not reached yet;
			// tell the room before the holder is told to re-reserve.
			h.broadcast.Broadcast(refreshed.Key.VetID, refreshed.Key.Day, live.SlotReleased{
				ReservationID: refreshed.ReservationID,
				Time:          refreshed.Key.Start,
			})
			sess.Send(reservationError(codeHoldExpired))
		case errors.Is(err, hold.ErrNotHolder):
			sess.Send(reservationError(codeNotHolder))
		default:
			sess.Send(reservationError(codeInvalidInput))
		}
		return
	}

	sess.Send(live.ReservationExtended{ReservationID: id, ExpiresAt: refreshed.ExpiresAt})
}

func parseRoomParams(vetID, date string) (uuid.UUID, domain.Day, bool) {
	id, err := uuid.Parse(vetID)
	if err != nil {
		return uuid.Nil, "", false
	}
	day, err := domain.ParseDay(date)
	if err != nil {
		return uuid.Nil, "", false
	}
	return id, day, true
}
