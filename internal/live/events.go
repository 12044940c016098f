package live

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"vetdesk/backend/internal/domain"
)

type EventType string

const (
	EventSlotReserved        EventType = "slot:reserved"
	EventSlotReleased        EventType = "slot:released"
	EventSlotBooked          EventType = "slot:booked"
	EventSlotCancelled       EventType = "slot:cancelled"
	EventReservationError    EventType = "reservation:error"
	EventReservationExtended EventType = "reservation:extended"
	EventAvailabilityChanged EventType = "availability:changed"
)

// Event is the closed set of server-to-client messages. Delivery is
// best-effort; clients must never treat these as the source of truth.
type Event interface {
	Type() EventType
}

type SlotReserved struct {
	ReservationID uuid.UUID        `json:"reservationId"`
	Time          domain.ClockTime `json:"time"`
	ExpiresAt     time.Time        `json:"expiresAt"`
	IsOwn         bool             `json:"isOwn"`
}

func (SlotReserved) Type() EventType { return EventSlotReserved }

type SlotReleased struct {
	ReservationID uuid.UUID        `json:"reservationId"`
	Time          domain.ClockTime `json:"time"`
}

func (SlotReleased) Type() EventType { return EventSlotReleased }

type SlotBooked struct {
	Time domain.ClockTime `json:"time"`
}

func (SlotBooked) Type() EventType { return EventSlotBooked }

type SlotCancelled struct {
	Time domain.ClockTime `json:"time"`
}

func (SlotCancelled) Type() EventType { return EventSlotCancelled }

type ReservationError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	MessageAr string `json:"messageAr"`
}

func (ReservationError) Type() EventType { return EventReservationError }

type ReservationExtended struct {
	ReservationID uuid.UUID `json:"reservationId"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

func (ReservationExtended) Type() EventType { return EventReservationExtended }

// ReservationState is one live hold inside the bulk resync snapshot.
type ReservationState struct {
	ReservationID uuid.UUID        `json:"reservationId"`
	Time          domain.ClockTime `json:"time"`
	ExpiresAt     time.Time        `json:"expiresAt"`
	IsOwn         bool             `json:"isOwn"`
}

type AvailabilityChanged struct {
	Reservations []ReservationState `json:"reservations"`
	BookedTimes  []domain.ClockTime `json:"bookedTimes"`
}

func (AvailabilityChanged) Type() EventType { return EventAvailabilityChanged }

type envelope struct {
	Type EventType `json:"type"`
	Data Event     `json:"data"`
}

// Encode wraps an event in its wire envelope.
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(envelope{Type: ev.Type(), Data: ev})
}
