package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"vetdesk/backend/internal/domain"
	"vetdesk/backend/internal/store"
)

const slotUniqueConstraint = "appointments_slot_unique"

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

func (r *AppointmentRepo) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	_, err := r.db.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == slotUniqueConstraint {
				return domain.Appointment{}, store.ErrConflict
			}
			// Primary-key collision: an idempotency-keyed retry. Re-read and
			// make sure it really is the same request.
			var existing domain.Appointment
			selectErr := r.db.NewSelect().
				Model(&existing).
				Where("id = ?", m.ID).
				Limit(1).
				Scan(ctx)
			if selectErr != nil {
				return domain.Appointment{}, err
			}
			if existing.VetID != appt.VetID ||
				existing.PetID != appt.PetID ||
				existing.Day != appt.Day ||
				existing.StartTime != appt.StartTime ||
				existing.VisitType != appt.VisitType {
				return domain.Appointment{}, store.ErrIdempotencyConflict
			}
			return existing, nil
		}
		return domain.Appointment{}, err
	}
	return m, nil
}

func (r *AppointmentRepo) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var m domain.Appointment
	err := r.db.NewSelect().
		Model(&m).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return m, nil
}

func (r *AppointmentRepo) BookedTimes(ctx context.Context, vetID uuid.UUID, day domain.Day) ([]domain.ClockTime, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Column("start_time").
		Where("vet_id = ?", vetID).
		Where("day = ?", day).
		Where("status = ?", domain.AppointmentStatusScheduled).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ClockTime, 0, len(rows))
	for _, a := range rows {
		out = append(out, a.StartTime)
	}
	return out, nil
}

func (r *AppointmentRepo) Cancel(ctx context.Context, actorID string, id uuid.UUID) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var m domain.Appointment
		err := tx.NewSelect().
			Model(&m).
			Where("id = ?", id).
			Limit(1).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return err
		}
		if m.ActorID != actorID || m.Status != domain.AppointmentStatusScheduled {
			return store.ErrNotFound
		}

		m.Status = domain.AppointmentStatusCancelled
		_, err = tx.NewUpdate().
			Model(&m).
			Column("status", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}
