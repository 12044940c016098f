package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"vetdesk/backend/internal/domain"
	"vetdesk/backend/internal/hold"
	"vetdesk/backend/internal/live"
	"vetdesk/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// ConflictError reports a commit that lost the race for its slot, with
// substitute slots the caller can offer instead.
type ConflictError struct {
	Key          domain.SlotKey
	Alternatives []Alternative
}

func (e *ConflictError) Error() string {
	return "slot " + e.Key.String() + " already booked"
}

// HoldDirectory is the soft-lock view the coordinator consults. Holds never
// gate a commit; the durable unique index does.
type HoldDirectory interface {
	Peek(key domain.SlotKey) (hold.Hold, bool)
	Clear(key domain.SlotKey) (*hold.Hold, bool)
	ActiveOn(vetID uuid.UUID, day domain.Day) []hold.Hold
}

// Announcer pushes state changes to every live viewer of a room.
type Announcer interface {
	Broadcast(vetID uuid.UUID, day domain.Day, ev live.Event)
}

// Notifier is the downstream trigger fired after a successful commit.
// Delivery itself is out of scope here.
type Notifier interface {
	BookingConfirmed(ctx context.Context, appt domain.Appointment)
}

// NopNotifier satisfies Notifier when no downstream pipeline is wired.
type NopNotifier struct{}

func (NopNotifier) BookingConfirmed(context.Context, domain.Appointment) {}

type Service struct {
	appts    store.AppointmentRepository
	vets     store.VetRepository
	holds    HoldDirectory
	announce Announcer
	notify   Notifier
	suggest  *Suggester
	log      *slog.Logger
}

func NewService(
	appts store.AppointmentRepository,
	vets store.VetRepository,
	holds HoldDirectory,
	announce Announcer,
	notify Notifier,
	suggest *Suggester,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	if notify == nil {
		notify = NopNotifier{}
	}
	return &Service{
		appts:    appts,
		vets:     vets,
		holds:    holds,
		announce: announce,
		notify:   notify,
		suggest:  suggest,
		log:      log.With(slog.String("component", "booking.service")),
	}
}

type BookInput struct {
	PetID           uuid.UUID
	VetID           uuid.UUID
	VisitType       string
	Date            string
	Time            string
	DurationMinutes int
	Reason          string
	ActorID         string
	IdempotencyKey  string
}

const maxDurationMinutes = 240

// Book finalizes a booking against the durable schedule. A prior hold is
// never required; correctness comes from the storage-level unique index
// alone. On a lost race the returned error is a *ConflictError carrying
// alternatives that are neither booked nor held at suggestion time.
func (s *Service) Book(ctx context.Context, in BookInput) (domain.Appointment, error) {
	if in.VetID == uuid.Nil {
		return domain.Appointment{}, validationError("vet_id is required")
	}
	if in.PetID == uuid.Nil {
		return domain.Appointment{}, validationError("pet_id is required")
	}
	if in.ActorID == "" {
		return domain.Appointment{}, validationError("actor_id is required")
	}
	visitType := strings.TrimSpace(in.VisitType)
	if visitType == "" {
		return domain.Appointment{}, validationError("visit_type is required")
	}

	day, err := domain.ParseDay(in.Date)
	if err != nil {
		return domain.Appointment{}, validationError("appointment_date must be YYYY-MM-DD")
	}
	start, err := domain.ParseClockTime(in.Time)
	if err != nil {
		return domain.Appointment{}, validationError("appointment_time must be HH:MM")
	}

	vet, err := s.vets.Get(ctx, in.VetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, validationError("unknown vet")
		}
		return domain.Appointment{}, err
	}
	if !vet.Qualified(visitType) {
		return domain.Appointment{}, validationError("vet does not handle this visit type")
	}

	duration := in.DurationMinutes
	if duration == 0 {
		duration = vet.SlotMinutes
	}
	if duration <= 0 || duration > maxDurationMinutes {
		return domain.Appointment{}, validationError("invalid duration")
	}
	if start.Minutes() < vet.WorkStart.Minutes() || start.Minutes()+duration > vet.WorkEnd.Minutes() {
		return domain.Appointment{}, validationError("time is outside the vet's working hours")
	}

	appt := domain.Appointment{
		VetID:           in.VetID,
		PetID:           in.PetID,
		VisitType:       visitType,
		Day:             day,
		StartTime:       start,
		DurationMinutes: duration,
		Reason:          strings.TrimSpace(in.Reason),
		Status:          domain.AppointmentStatusScheduled,
		ActorID:         in.ActorID,
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return domain.Appointment{}, validationError("idempotency_key too long")
		}
		appt.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("vetdesk:book:"+in.ActorID+":"+key))
	}

	created, err := s.appts.Create(ctx, appt)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			slotKey := appt.SlotKey()
			alts, altErr := s.suggest.Suggest(ctx, vet, day, start, duration, visitType)
			if altErr != nil {
				s.log.Warn(
					"alternative lookup failed",
					slog.Any("err", altErr),
					slog.String("slot", slotKey.String()),
				)
				alts = nil
			}
			s.log.Info(
				"booking conflict",
				slog.String("slot", slotKey.String()),
				slog.String("actor_id", in.ActorID),
				slog.Int("alternatives", len(alts)),
			)
			return domain.Appointment{}, &ConflictError{Key: slotKey, Alternatives: alts}
		}
		return domain.Appointment{}, err
	}

	// The hard commit wins over any soft lock, no matter who held it.
	slotKey := created.SlotKey()
	if cleared, live := s.holds.Clear(slotKey); live {
		s.log.Info(
			"hold cleared by commit",
			slog.String("slot", slotKey.String()),
			slog.String("holder_id", cleared.HolderID),
			slog.String("actor_id", in.ActorID),
		)
	}
	s.announce.Broadcast(created.VetID, created.Day, live.SlotBooked{Time: created.StartTime})
	s.notify.BookingConfirmed(ctx, created)

	s.log.Info(
		"appointment booked",
		slog.String("appointment_id", created.ID.String()),
		slog.String("slot", slotKey.String()),
		slog.String("actor_id", in.ActorID),
	)
	return created, nil
}

// Cancel voids a scheduled appointment owned by actorID and tells the room
// the slot is open again.
func (s *Service) Cancel(ctx context.Context, actorID string, id uuid.UUID) (domain.Appointment, error) {
	if actorID == "" {
		return domain.Appointment{}, validationError("actor_id is required")
	}
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}

	cancelled, err := s.appts.Cancel(ctx, actorID, id)
	if err != nil {
		return domain.Appointment{}, err
	}

	s.announce.Broadcast(cancelled.VetID, cancelled.Day, live.SlotCancelled{Time: cancelled.StartTime})
	s.log.Info(
		"appointment cancelled",
		slog.String("appointment_id", cancelled.ID.String()),
		slog.String("slot", cancelled.SlotKey().String()),
		slog.String("actor_id", actorID),
	)
	return cancelled, nil
}

// DayAvailability returns the booked times and live holds for one vet and
// day, used for the bulk resync a client gets on (re)subscribe.
func (s *Service) DayAvailability(ctx context.Context, vetID uuid.UUID, day domain.Day) ([]domain.ClockTime, []hold.Hold, error) {
	if vetID == uuid.Nil {
		return nil, nil, validationError("vet_id is required")
	}
	booked, err := s.appts.BookedTimes(ctx, vetID, day)
	if err != nil {
		return nil, nil, err
	}
	return booked, s.holds.ActiveOn(vetID, day), nil
}
