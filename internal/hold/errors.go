package hold

import "errors"

var (
	ErrSlotTaken    = errors.New("slot already held")
	ErrHoldNotFound = errors.New("hold not found")
	ErrHoldExpired  = errors.New("hold expired")
	ErrNotHolder    = errors.New("hold owned by another actor")
)
