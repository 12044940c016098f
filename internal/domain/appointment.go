package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Appointment is the durable booked record. The partial unique index on
// (vet_id, day, start_time) for scheduled rows is the sole arbiter of
// whether a slot is taken.
type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID              uuid.UUID         `bun:"id,pk,type:uuid"`
	VetID           uuid.UUID         `bun:"vet_id,notnull,type:uuid"`
	PetID           uuid.UUID         `bun:"pet_id,notnull,type:uuid"`
	VisitType       string            `bun:"visit_type,notnull"`
	Day             Day               `bun:"day,notnull"`
	StartTime       ClockTime         `bun:"start_time,notnull"`
	DurationMinutes int               `bun:"duration_minutes,notnull"`
	Reason          string            `bun:"reason"`
	Status          AppointmentStatus `bun:"status,notnull"`
	ActorID         string            `bun:"actor_id,notnull"`
	CreatedAt       time.Time         `bun:"created_at,notnull"`
	UpdatedAt       time.Time         `bun:"updated_at,notnull"`
}

func (a *Appointment) SlotKey() SlotKey {
	return SlotKey{VetID: a.VetID, Day: a.Day, Start: a.StartTime}
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}
