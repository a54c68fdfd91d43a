package booking

import "errors"

var (
	ErrTooSoon                 = errors.New("appointments must be booked at least 12 hours in advance")
	ErrValidationFailed        = errors.New("invalid booking request")
	ErrSlotMismatch            = errors.New("schedule slot does not match the selected barber")
	ErrNoStaffAvailable        = errors.New("no barbers or staff found for this salon")
	ErrStaffNotFound           = errors.New("staff member not found in salon roster")
	ErrInvalidSalonHours       = errors.New("salon hours are malformed")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)
