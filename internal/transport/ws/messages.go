package ws

import "vetdesk/backend/internal/live"

const (
	msgSubscribe   = "subscribe"
	msgUnsubscribe = "unsubscribe"
	msgReserve     = "reserve"
	msgRelease     = "release"
	msgExtend      = "extend"
)

// clientMessage is the single decode target for everything a client can
// send; which fields matter depends on Type.
type clientMessage struct {
	Type          string `json:"type"`
	VetID         string `json:"vetId,omitempty"`
	Date          string `json:"date,omitempty"`
	Time          string `json:"time,omitempty"`
	Duration      int    `json:"duration,omitempty"`
	CustomerID    string `json:"customerId,omitempty"`
	ReservationID string `json:"reservationId,omitempty"`
}

const (
	codeSlotTaken    = "SLOT_TAKEN"
	codeHoldNotFound = "HOLD_NOT_FOUND"
	codeHoldExpired  = "HOLD_EXPIRED"
	codeNotHolder    = "NOT_HOLDER"
	codeInvalidInput = "INVALID_INPUT"
)

var errorTexts = map[string][2]string{
	codeSlotTaken:    {"This slot is currently held by another customer.", "هذا الموعد محجوز مؤقتاً من قبل عميل آخر."},
	codeHoldNotFound: {"Reservation not found. Please reserve again.", "الحجز غير موجود. يرجى الحجز مرة أخرى."},
	codeHoldExpired:  {"Reservation expired. Please reserve again.", "انتهت صلاحية الحجز. يرجى الحجز مرة أخرى."},
	codeNotHolder:    {"This reservation belongs to another customer.", "هذا الحجز يخص عميلاً آخر."},
	codeInvalidInput: {"Invalid request.", "طلب غير صالح."},
}

func reservationError(code string) live.ReservationError {
	texts := errorTexts[code]
	return live.ReservationError{Code: code, Message: texts[0], MessageAr: texts[1]}
}
