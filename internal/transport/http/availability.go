package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"vetdesk/backend/internal/domain"
	"vetdesk/backend/internal/hold"
	"vetdesk/backend/internal/service/booking"
)

// AvailabilityReader is the minimal interface for the day snapshot.
type AvailabilityReader interface {
	DayAvailability(ctx context.Context, vetID uuid.UUID, day domain.Day) ([]domain.ClockTime, []hold.Hold, error)
}

// HandleAvailability handles GET /vets/{vetId}/availability?date=YYYY-MM-DD.
func HandleAvailability(svc AvailabilityReader, log *slog.Logger) http.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "http.availability"))

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		vetID, ok := parseAvailabilityPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		day, err := domain.ParseDay(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidInput, "date must be YYYY-MM-DD")
			return
		}

		booked, holds, err := svc.DayAvailability(r.Context(), vetID, day)
		if err != nil {
			var vErr *booking.ValidationError
			if errors.As(err, &vErr) {
				writeError(w, http.StatusBadRequest, codeInvalidInput, vErr.Error())
				return
			}
			log.Error("availability lookup failed", slog.Any("err", err), slog.String("vet_id", vetID.String()))
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		resp := availabilityResponse{
			VetID:        vetID.String(),
			Date:         string(day),
			BookedTimes:  make([]string, 0, len(booked)),
			Reservations: make([]reservationDTO, 0, len(holds)),
		}
		for _, t := range booked {
			resp.BookedTimes = append(resp.BookedTimes, string(t))
		}
		for _, h := range holds {
			resp.Reservations = append(resp.Reservations, reservationDTO{
				ReservationID: h.ReservationID.String(),
				Time:          string(h.Key.Start),
				ExpiresAt:     h.ExpiresAt,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func parseAvailabilityPath(path string) (uuid.UUID, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "vets" || parts[2] != "availability" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

type reservationDTO struct {
	ReservationID string    `json:"reservationId"`
	Time          string    `json:"time"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

type availabilityResponse struct {
	VetID        string           `json:"vetId"`
	Date         string           `json:"date"`
	BookedTimes  []string         `json:"bookedTimes"`
	Reservations []reservationDTO `json:"reservations"`
}
