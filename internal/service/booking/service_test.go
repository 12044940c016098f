package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"vetdesk/backend/internal/clock"
	"vetdesk/backend/internal/domain"
	"vetdesk/backend/internal/hold"
	"vetdesk/backend/internal/live"
	"vetdesk/backend/internal/store"
)

type fakeApptRepo struct {
	createFn      func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	getFn         func(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	bookedTimesFn func(ctx context.Context, vetID uuid.UUID, day domain.Day) ([]domain.ClockTime, error)
	cancelFn      func(ctx context.Context, actorID string, id uuid.UUID) (domain.Appointment, error)
}

func (f *fakeApptRepo) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if f.createFn == nil {
		panic("Create not configured")
	}
	return f.createFn(ctx, appt)
}

func (f *fakeApptRepo) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if f.getFn == nil {
		panic("Get not configured")
	}
	return f.getFn(ctx, id)
}

func (f *fakeApptRepo) BookedTimes(ctx context.Context, vetID uuid.UUID, day domain.Day) ([]domain.ClockTime, error) {
	if f.bookedTimesFn == nil {
		return nil, nil
	}
	return f.bookedTimesFn(ctx, vetID, day)
}

func (f *fakeApptRepo) Cancel(ctx context.Context, actorID string, id uuid.UUID) (domain.Appointment, error) {
	if f.cancelFn == nil {
		panic("Cancel not configured")
	}
	return f.cancelFn(ctx, actorID, id)
}

type fakeVetRepo struct {
	getFn           func(ctx context.Context, id uuid.UUID) (domain.Vet, error)
	listQualifiedFn func(ctx context.Context, visitType string) ([]domain.Vet, error)
}

func (f *fakeVetRepo) Get(ctx context.Context, id uuid.UUID) (domain.Vet, error) {
	if f.getFn == nil {
		panic("Get not configured")
	}
	return f.getFn(ctx, id)
}

func (f *fakeVetRepo) ListQualified(ctx context.Context, visitType string) ([]domain.Vet, error) {
	if f.listQualifiedFn == nil {
		return nil, nil
	}
	return f.listQualifiedFn(ctx, visitType)
}

type fakeAnnouncer struct {
	events []live.Event
}

func (f *fakeAnnouncer) Broadcast(vetID uuid.UUID, day domain.Day, ev live.Event) {
	f.events = append(f.events, ev)
}

type fakeNotifier struct {
	confirmed []domain.Appointment
}

func (f *fakeNotifier) BookingConfirmed(_ context.Context, appt domain.Appointment) {
	f.confirmed = append(f.confirmed, appt)
}

var testBase = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func testVet(id uuid.UUID) domain.Vet {
	return domain.Vet{
		ID:          id,
		Name:        "Dr. Salem",
		NameAr:      "د. سالم",
		WorkStart:   "09:00",
		WorkEnd:     "18:00",
		SlotMinutes: 30,
		VisitTypes:  []string{"checkup", "vaccination"},
	}
}

type fixture struct {
	svc      *Service
	appts    *fakeApptRepo
	vets     *fakeVetRepo
	holds    *hold.Store
	announce *fakeAnnouncer
	notify   *fakeNotifier
	clk      *clock.Manual
}

func newFixture(vetID uuid.UUID) *fixture {
	clk := clock.NewManual(testBase)
	holds := hold.NewStore(clk, 5*time.Minute)
	appts := &fakeApptRepo{}
	vets := &fakeVetRepo{
		getFn: func(_ context.Context, id uuid.UUID) (domain.Vet, error) {
			if id != vetID {
				return domain.Vet{}, store.ErrNotFound
			}
			return testVet(vetID), nil
		},
	}
	announce := &fakeAnnouncer{}
	notify := &fakeNotifier{}
	suggester := NewSuggester(appts, vets, holds, DefaultAlternativeLimit)
	svc := NewService(appts, vets, holds, announce, notify, suggester, nil)
	return &fixture{svc: svc, appts: appts, vets: vets, holds: holds, announce: announce, notify: notify, clk: clk}
}

func validInput(vetID uuid.UUID) BookInput {
	return BookInput{
		PetID:     uuid.New(),
		VetID:     vetID,
		VisitType: "checkup",
		Date:      "2025-06-01",
		Time:      "10:00",
		Reason:    "annual",
		ActorID:   "customer-b",
	}
}

func TestBookValidation(t *testing.T) {
	vetID := uuid.New()
	f := newFixture(vetID)

	cases := []struct {
		name   string
		mutate func(*BookInput)
	}{
		{"missing vet", func(in *BookInput) { in.VetID = uuid.Nil }},
		{"missing pet", func(in *BookInput) { in.PetID = uuid.Nil }},
		{"missing actor", func(in *BookInput) { in.ActorID = "" }},
		{"missing visit type", func(in *BookInput) { in.VisitType = "  " }},
		{"bad date", func(in *BookInput) { in.Date = "01/06/2025" }},
		{"bad time", func(in *BookInput) { in.Time = "10am" }},
		{"before working hours", func(in *BookInput) { in.Time = "08:00" }},
		{"past working hours", func(in *BookInput) { in.Time = "17:45" }},
		{"unqualified visit type", func(in *BookInput) { in.VisitType = "surgery" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput(vetID)
			tc.mutate(&in)
			_, err := f.svc.Book(context.Background(), in)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
		})
	}
}

func TestBookSucceedsWithoutAnyHold(t *testing.T) {
	vetID := uuid.New()
	f := newFixture(vetID)
	f.appts.createFn = func(_ context.Context, appt domain.Appointment) (domain.Appointment, error) {
		appt.ID = uuid.New()
		appt.CreatedAt = testBase
		return appt, nil
	}

	appt, err := f.svc.Book(context.Background(), validInput(vetID))
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if appt.Status != domain.AppointmentStatusScheduled {
		t.Fatalf("status = %s, want scheduled", appt.Status)
	}
	if appt.DurationMinutes != 30 {
		t.Fatalf("duration = %d, want vet default 30", appt.DurationMinutes)
	}
	if len(f.announce.events) != 1 || f.announce.events[0].Type() != live.EventSlotBooked {
		t.Fatalf("announcements = %v, want one slot:booked", f.announce.events)
	}
	if len(f.notify.confirmed) != 1 {
		t.Fatalf("notifier called %d times, want 1", len(f.notify.confirmed))
	}
}

func TestBookClearsCompetingHold(t *testing.T) {
	vetID := uuid.New()
	f := newFixture(vetID)
	f.appts.createFn = func(_ context.Context, appt domain.Appointment) (domain.Appointment, error) {
		appt.ID = uuid.New()
		return appt, nil
	}

	day, _ := domain.ParseDay("2025-06-01")
	start, _ := domain.ParseClockTime("10:00")
	key := domain.SlotKey{VetID: vetID, Day: day, Start: start}
	if _, err := f.holds.Reserve(key, "customer-a", 30, 0); err != nil {
		t.Fatalf("Reserve error: %v", err)
	}

	// customer-b commits directly, never having held the slot.
	if _, err := f.svc.Book(context.Background(), validInput(vetID)); err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if _, held := f.holds.Peek(key); held {
		t.Fatalf("losing hold survived the commit")
	}
}

func TestBookConflictReturnsAlternatives(t *testing.T) {
	vetID := uuid.New()
	f := newFixture(vetID)
	booked, _ := domain.ParseClockTime("10:00")
	f.appts.createFn = func(_ context.Context, appt domain.Appointment) (domain.Appointment, error) {
		return domain.Appointment{}, store.ErrConflict
	}
	f.appts.bookedTimesFn = func(_ context.Context, _ uuid.UUID, _ domain.Day) ([]domain.ClockTime, error) {
		return []domain.ClockTime{booked}, nil
	}

	_, err := f.svc.Book(context.Background(), validInput(vetID))
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want *ConflictError", err)
	}
	if len(conflict.Alternatives) == 0 {
		t.Fatalf("expected alternatives")
	}
	for _, alt := range conflict.Alternatives {
		if alt.Day == "2025-06-01" && alt.Time == booked {
			t.Fatalf("alternatives include the contested slot")
		}
		if alt.LabelEn == "" || alt.LabelAr == "" {
			t.Fatalf("alternative missing bilingual labels: %+v", alt)
		}
	}
	if len(f.announce.events) != 0 {
		t.Fatalf("conflict broadcast events: %v", f.announce.events)
	}
}

func TestBookIdempotencyKeyPinsID(t *testing.T) {
	vetID := uuid.New()
	f := newFixture(vetID)
	var gotID uuid.UUID
	f.appts.createFn = func(_ context.Context, appt domain.Appointment) (domain.Appointment, error) {
		gotID = appt.ID
		return appt, nil
	}

	in := validInput(vetID)
	in.IdempotencyKey = "retry-42"
	if _, err := f.svc.Book(context.Background(), in); err != nil {
		t.Fatalf("Book error: %v", err)
	}
	first := gotID
	if first == uuid.Nil {
		t.Fatalf("idempotency key did not pin the appointment id")
	}

	if _, err := f.svc.Book(context.Background(), in); err != nil {
		t.Fatalf("second Book error: %v", err)
	}
	if gotID != first {
		t.Fatalf("id changed across retries: %s vs %s", first, gotID)
	}
}

func TestCancelBroadcasts(t *testing.T) {
	vetID := uuid.New()
	f := newFixture(vetID)
	apptID := uuid.New()
	day, _ := domain.ParseDay("2025-06-01")
	start, _ := domain.ParseClockTime("10:00")
	f.appts.cancelFn = func(_ context.Context, actorID string, id uuid.UUID) (domain.Appointment, error) {
		if actorID != "customer-b" || id != apptID {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{
			ID:        apptID,
			VetID:     vetID,
			Day:       day,
			StartTime: start,
			Status:    domain.AppointmentStatusCancelled,
		}, nil
	}

	appt, err := f.svc.Cancel(context.Background(), "customer-b", apptID)
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if appt.Status != domain.AppointmentStatusCancelled {
		t.Fatalf("status = %s, want cancelled", appt.Status)
	}
	if len(f.announce.events) != 1 || f.announce.events[0].Type() != live.EventSlotCancelled {
		t.Fatalf("announcements = %v, want one slot:cancelled", f.announce.events)
	}
}

func TestDayAvailabilityIncludesHolds(t *testing.T) {
	vetID := uuid.New()
	f := newFixture(vetID)
	booked, _ := domain.ParseClockTime("09:00")
	f.appts.bookedTimesFn = func(_ context.Context, _ uuid.UUID, _ domain.Day) ([]domain.ClockTime, error) {
		return []domain.ClockTime{booked}, nil
	}

	day, _ := domain.ParseDay("2025-06-01")
	start, _ := domain.ParseClockTime("10:00")
	if _, err := f.holds.Reserve(domain.SlotKey{VetID: vetID, Day: day, Start: start}, "customer-a", 30, 0); err != nil {
		t.Fatalf("Reserve error: %v", err)
	}

	times, holds, err := f.svc.DayAvailability(context.Background(), vetID, day)
	if err != nil {
		t.Fatalf("DayAvailability error: %v", err)
	}
	if len(times) != 1 || times[0] != booked {
		t.Fatalf("booked = %v, want [09:00]", times)
	}
	if len(holds) != 1 || holds[0].HolderID != "customer-a" {
		t.Fatalf("holds = %v, want customer-a's hold", holds)
	}
}
