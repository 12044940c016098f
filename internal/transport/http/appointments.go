package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"vetdesk/backend/internal/domain"
	"vetdesk/backend/internal/service/booking"
	"vetdesk/backend/internal/store"
)

const (
	idempotencyHeader = "Idempotency-Key"
	actorHeader       = "X-Actor-Id"
)

const (
	conflictMessageEn = "That slot was just booked by someone else. Here are some alternatives."
	conflictMessageAr = "تم حجز هذا الموعد للتو من قبل شخص آخر. إليك بعض البدائل."
)

// Booker is the minimal interface needed to commit a booking.
type Booker interface {
	Book(ctx context.Context, in booking.BookInput) (domain.Appointment, error)
}

// Canceller is the minimal interface needed to cancel an appointment.
type Canceller interface {
	Cancel(ctx context.Context, actorID string, id uuid.UUID) (domain.Appointment, error)
}

// HandleBook returns the handler for the stateless commit call. The caller
// does not need to hold the slot first.
func HandleBook(svc Booker, log *slog.Logger) http.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "http.book"))

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		actorID := strings.TrimSpace(r.Header.Get(actorHeader))
		if actorID == "" {
			writeError(w, http.StatusBadRequest, codeActorRequired, "actor identity is required")
			return
		}

		var req bookRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		petID, err := uuid.Parse(req.PetID)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidInput, "pet_id must be a UUID")
			return
		}
		vetID, err := uuid.Parse(req.VetID)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidInput, "vet_id must be a UUID")
			return
		}

		appt, err := svc.Book(r.Context(), booking.BookInput{
			PetID:           petID,
			VetID:           vetID,
			VisitType:       req.VisitType,
			Date:            req.AppointmentDate,
			Time:            req.AppointmentTime,
			DurationMinutes: req.DurationMinutes,
			Reason:          req.Reason,
			ActorID:         actorID,
			IdempotencyKey:  r.Header.Get(idempotencyHeader),
		})
		if err != nil {
			var conflict *booking.ConflictError
			if errors.As(err, &conflict) {
				writeJSON(w, http.StatusConflict, toConflictResponse(conflict))
				return
			}
			if errors.Is(err, store.ErrIdempotencyConflict) {
				writeError(w, http.StatusConflict, codeIdempotencyConflict, "idempotency key already used for a different booking")
				return
			}
			var vErr *booking.ValidationError
			if errors.As(err, &vErr) {
				writeError(w, http.StatusBadRequest, codeInvalidInput, vErr.Error())
				return
			}
			log.Error("booking failed", slog.Any("err", err), slog.String("actor_id", actorID))
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

// HandleCancelAppointment handles DELETE /appointments/{id}.
func HandleCancelAppointment(svc Canceller, log *slog.Logger) http.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "http.cancel"))

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		id, ok := parseAppointmentPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		actorID := strings.TrimSpace(r.Header.Get(actorHeader))
		if actorID == "" {
			writeError(w, http.StatusBadRequest, codeActorRequired, "actor identity is required")
			return
		}

		appt, err := svc.Cancel(r.Context(), actorID, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, codeNotFound, "appointment not found")
				return
			}
			var vErr *booking.ValidationError
			if errors.As(err, &vErr) {
				writeError(w, http.StatusBadRequest, codeInvalidInput, vErr.Error())
				return
			}
			log.Error("cancel failed", slog.Any("err", err), slog.String("appointment_id", id.String()))
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func parseAppointmentPath(path string) (uuid.UUID, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] != "appointments" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

type bookRequest struct {
	PetID           string `json:"petId"`
	VetID           string `json:"vetId"`
	VisitType       string `json:"visitType"`
	AppointmentDate string `json:"appointmentDate"`
	AppointmentTime string `json:"appointmentTime"`
	DurationMinutes int    `json:"durationMinutes,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

type appointmentResponse struct {
	ID              string    `json:"id"`
	PetID           string    `json:"petId"`
	VetID           string    `json:"vetId"`
	VisitType       string    `json:"visitType"`
	AppointmentDate string    `json:"appointmentDate"`
	AppointmentTime string    `json:"appointmentTime"`
	DurationMinutes int       `json:"durationMinutes"`
	Reason          string    `json:"reason"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toAppointmentResponse(a domain.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:              a.ID.String(),
		PetID:           a.PetID.String(),
		VetID:           a.VetID.String(),
		VisitType:       a.VisitType,
		AppointmentDate: string(a.Day),
		AppointmentTime: string(a.StartTime),
		DurationMinutes: a.DurationMinutes,
		Reason:          a.Reason,
		Status:          string(a.Status),
		CreatedAt:       a.CreatedAt,
	}
}

type alternativeDTO struct {
	Date    string `json:"date"`
	Time    string `json:"time"`
	LabelEn string `json:"labelEn"`
	LabelAr string `json:"labelAr"`
	VetID   string `json:"vetId"`
	VetName string `json:"vetName"`
}

type conflictResponse struct {
	Error        string           `json:"error"`
	ErrorEn      string           `json:"errorEn"`
	Code         string           `json:"code"`
	Alternatives []alternativeDTO `json:"alternatives"`
}

func toConflictResponse(conflict *booking.ConflictError) conflictResponse {
	alts := make([]alternativeDTO, 0, len(conflict.Alternatives))
	for _, a := range conflict.Alternatives {
		alts = append(alts, alternativeDTO{
			Date:    string(a.Day),
			Time:    string(a.Time),
			LabelEn: a.LabelEn,
			LabelAr: a.LabelAr,
			VetID:   a.VetID.String(),
			VetName: a.VetName,
		})
	}
	return conflictResponse{
		Error:        conflictMessageAr,
		ErrorEn:      conflictMessageEn,
		Code:         codeBookingConflict,
		Alternatives: alts,
	}
}
