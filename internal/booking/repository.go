package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSalonNotFound       = errors.New("salon not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrSlotExists          = errors.New("slot already exists for this barber and time")
	ErrSlotInUse           = errors.New("slot is reserved and cannot be deleted")
	ErrSlotNotReserved     = errors.New("slot is not reserved")
	ErrAlreadyBooked       = errors.New("this time slot is already booked")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// SlotStore is the only authority on slot identity and reservation state.
// Every mutation is a single conditional operation in the backing store.
type SlotStore interface {
	// MaterializeOrFetch returns the slot for key, creating it free if absent.
	// Concurrent callers for the same key all observe the same record.
	MaterializeOrFetch(ctx context.Context, key SlotKey, endTime string) (*Slot, error)

	// ReserveIfFree flips a free slot to reserved. A reserved slot, or one that
	// would overlap another reservation of the same barber, yields ErrAlreadyBooked.
	ReserveIfFree(ctx context.Context, id uuid.UUID) (*Slot, error)

	// Release sets the slot free and clears its appointment link. Idempotent.
	Release(ctx context.Context, id uuid.UUID) error

	// ReleaseHeldBy releases the slot only while it is reserved for
	// appointmentID or for nobody. uuid.Nil releases only unlinked reservations.
	ReleaseHeldBy(ctx context.Context, id, appointmentID uuid.UUID) (bool, error)

	AttachAppointment(ctx context.Context, slotID, appointmentID uuid.UUID) error
	DeleteSlot(ctx context.Context, id uuid.UUID) error

	GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error)
	CreateSlot(ctx context.Context, key SlotKey, endTime string) (*Slot, error)
	ListSlots(ctx context.Context, filter SlotFilter) ([]Slot, error)

	// ListReservations returns every reserved interval of the salon on date.
	ListReservations(ctx context.Context, salonID uuid.UUID, date time.Time) ([]Reservation, error)

	// FindOrphanedReservations returns reserved slots with no appointment link
	// that were reserved before the cutoff.
	FindOrphanedReservations(ctx context.Context, reservedBefore time.Time) ([]Slot, error)
}

type AppointmentStore interface {
	CreateAppointment(ctx context.Context, in NewAppointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error)

	// Conditional transitions: ErrAppointmentNotFound when the row is missing
	// or no longer in the from state.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to PaymentStatus) (*Appointment, error)
	// MarkCancelled moves a scheduled appointment to cancelled and voids a
	// pending payment in the same write.
	MarkCancelled(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// FindActiveAppointmentForSlot returns the newest non-cancelled
	// appointment referencing the slot.
	FindActiveAppointmentForSlot(ctx context.Context, slotID uuid.UUID) (*Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}

// Directory is the read-only view of salons and their people.
type Directory interface {
	GetSalonHours(ctx context.Context, salonID uuid.UUID) (*SalonHours, error)
	ListBarbers(ctx context.Context, salonID uuid.UUID) ([]Barber, error)
	ListActiveStaff(ctx context.Context, salonID uuid.UUID) ([]SalonStaff, error)
}

type Notifier interface {
	BookingConfirmed(ctx context.Context, c Confirmation) error
}
