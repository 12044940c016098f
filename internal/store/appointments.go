package store

import (
	"context"

	"github.com/google/uuid"

	"vetdesk/backend/internal/domain"
)

type AppointmentRepository interface {
	// Create persists an appointment. A scheduled row already occupying the
	// slot surfaces as ErrConflict; an idempotent retry with the same ID and
	// identical fields returns the existing row.
	Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	BookedTimes(ctx context.Context, vetID uuid.UUID, day domain.Day) ([]domain.ClockTime, error)
	Cancel(ctx context.Context, actorID string, id uuid.UUID) (domain.Appointment, error)
}

type VetRepository interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Vet, error)
	ListQualified(ctx context.Context, visitType string) ([]domain.Vet, error)
}
