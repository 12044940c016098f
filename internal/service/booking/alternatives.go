package booking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"vetdesk/backend/internal/domain"
	"vetdesk/backend/internal/store"
)

const DefaultAlternativeLimit = 6

// sameDayOffsets is how far the search fans out around the requested time
// before widening to adjacent days and other vets.
var sameDayOffsets = []int{-30, 30, -60, 60, -90, 90}

var adjacentDayOffsets = []int{1, -1, 2, -2}

// Alternative is a substitute slot offered when a commit loses its race.
type Alternative struct {
	Day     domain.Day
	Time    domain.ClockTime
	VetID   uuid.UUID
	VetName string
	LabelEn string
	LabelAr string
}

// Suggester proposes nearby free slots: same day first, then the same time
// on adjacent days, then other vets qualified for the visit type. Booked and
// actively-held slots are never offered.
type Suggester struct {
	appts store.AppointmentRepository
	vets  store.VetRepository
	holds HoldDirectory
	limit int
}

func NewSuggester(appts store.AppointmentRepository, vets store.VetRepository, holds HoldDirectory, limit int) *Suggester {
	if limit <= 0 {
		limit = DefaultAlternativeLimit
	}
	return &Suggester{appts: appts, vets: vets, holds: holds, limit: limit}
}

type candidate struct {
	alt       Alternative
	deltaMins int
	sameDay   bool
	sameVet   bool
}

func (s *Suggester) Suggest(ctx context.Context, vet domain.Vet, day domain.Day, at domain.ClockTime, durationMinutes int, visitType string) ([]Alternative, error) {
	lookup := newAvailabilityLookup(s.appts, s.holds)

	var cands []candidate

	// Same vet, same day, fanning out in time.
	for _, off := range sameDayOffsets {
		m := at.Minutes() + off
		if m < vet.WorkStart.Minutes() || m+durationMinutes > vet.WorkEnd.Minutes() {
			continue
		}
		t := domain.ClockTimeFromMinutes(m)
		free, err := lookup.free(ctx, vet.ID, day, t)
		if err != nil {
			return nil, err
		}
		if !free {
			continue
		}
		cands = append(cands, candidate{
			alt: Alternative{
				Day:     day,
				Time:    t,
				VetID:   vet.ID,
				VetName: vet.Name,
				LabelEn: fmt.Sprintf("Same day at %s", t),
				LabelAr: fmt.Sprintf("نفس اليوم الساعة %s", t),
			},
			deltaMins: abs(off),
			sameDay:   true,
			sameVet:   true,
		})
	}

	// Same vet, same time, adjacent days.
	if len(cands) < s.limit {
		for _, dayOff := range adjacentDayOffsets {
			other := day.AddDays(dayOff)
			free, err := lookup.free(ctx, vet.ID, other, at)
			if err != nil {
				return nil, err
			}
			if !free {
				continue
			}
			cands = append(cands, candidate{
				alt: Alternative{
					Day:     other,
					Time:    at,
					VetID:   vet.ID,
					VetName: vet.Name,
					LabelEn: fmt.Sprintf("%s at %s", other.Time().Format("Mon 2 Jan"), at),
					LabelAr: fmt.Sprintf("يوم %s %s الساعة %s", arabicWeekday(other.Time().Weekday()), other, at),
				},
				deltaMins: abs(dayOff) * 24 * 60,
				sameVet:   true,
			})
		}
	}

	// Other vets qualified for the visit type, same day and time.
	if len(cands) < s.limit {
		others, err := s.vets.ListQualified(ctx, visitType)
		if err != nil {
			return nil, err
		}
		for _, other := range others {
			if other.ID == vet.ID {
				continue
			}
			if at.Minutes() < other.WorkStart.Minutes() || at.Minutes()+durationMinutes > other.WorkEnd.Minutes() {
				continue
			}
			free, err := lookup.free(ctx, other.ID, day, at)
			if err != nil {
				return nil, err
			}
			if !free {
				continue
			}
			nameAr := other.NameAr
			if nameAr == "" {
				nameAr = other.Name
			}
			cands = append(cands, candidate{
				alt: Alternative{
					Day:     day,
					Time:    at,
					VetID:   other.ID,
					VetName: other.Name,
					LabelEn: fmt.Sprintf("With %s at %s", other.Name, at),
					LabelAr: fmt.Sprintf("مع %s الساعة %s", nameAr, at),
				},
				sameDay: true,
			})
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.deltaMins != b.deltaMins {
			return a.deltaMins < b.deltaMins
		}
		if a.sameDay != b.sameDay {
			return a.sameDay
		}
		if a.sameVet != b.sameVet {
			return a.sameVet
		}
		return false
	})

	if len(cands) > s.limit {
		cands = cands[:s.limit]
	}
	out := make([]Alternative, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.alt)
	}
	return out, nil
}

// availabilityLookup memoizes booked times per (vet, day) for one Suggest
// call so adjacent candidates don't re-query the schedule.
type availabilityLookup struct {
	appts  store.AppointmentRepository
	holds  HoldDirectory
	booked map[string]map[domain.ClockTime]struct{}
}

func newAvailabilityLookup(appts store.AppointmentRepository, holds HoldDirectory) *availabilityLookup {
	return &availabilityLookup{
		appts:  appts,
		holds:  holds,
		booked: make(map[string]map[domain.ClockTime]struct{}),
	}
}

func (l *availabilityLookup) free(ctx context.Context, vetID uuid.UUID, day domain.Day, at domain.ClockTime) (bool, error) {
	cacheKey := vetID.String() + "|" + string(day)
	times, ok := l.booked[cacheKey]
	if !ok {
		booked, err := l.appts.BookedTimes(ctx, vetID, day)
		if err != nil {
			return false, err
		}
		times = make(map[domain.ClockTime]struct{}, len(booked))
		for _, t := range booked {
			times[t] = struct{}{}
		}
		l.booked[cacheKey] = times
	}
	if _, taken := times[at]; taken {
		return false, nil
	}
	if _, held := l.holds.Peek(domain.SlotKey{VetID: vetID, Day: day, Start: at}); held {
		return false, nil
	}
	return true, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

var arabicWeekdays = map[time.Weekday]string{
	time.Sunday:    "الأحد",
	time.Monday:    "الاثنين",
	time.Tuesday:   "الثلاثاء",
	time.Wednesday: "الأربعاء",
	time.Thursday:  "الخميس",
	time.Friday:    "الجمعة",
	time.Saturday:  "السبت",
}

func arabicWeekday(d time.Weekday) string {
	return arabicWeekdays[d]
}
