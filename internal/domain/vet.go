package domain

import (
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Vet holds the working window the suggester searches within. WorkStart and
// WorkEnd bound the bookable day; SlotMinutes is the grid the vet's calendar
// is divided into.
type Vet struct {
	bun.BaseModel `bun:"table:vets"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	Name        string    `bun:"name,notnull"`
	NameAr      string    `bun:"name_ar"`
	WorkStart   ClockTime `bun:"work_start,notnull"`
	WorkEnd     ClockTime `bun:"work_end,notnull"`
	SlotMinutes int       `bun:"slot_minutes,notnull"`
	VisitTypes  []string  `bun:"visit_types,array"`
}

// Qualified reports whether the vet handles the given visit type. An empty
// visit type list means the vet takes any visit.
func (v Vet) Qualified(visitType string) bool {
	if len(v.VisitTypes) == 0 {
		return true
	}
	for _, t := range v.VisitTypes {
		if t == visitType {
			return true
		}
	}
	return false
}
