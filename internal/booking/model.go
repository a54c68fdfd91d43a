package booking

import (
	"time"

	"github.com/google/uuid"
)

const (
	// BookingBuffer is the minimum lead time between now and an appointment start.
	BookingBuffer = 12 * time.Hour
	// SlotDuration is the length of every generated window and virtual slot.
	SlotDuration = 2 * time.Hour
	// WindowStep is how far the generator advances between window starts.
	WindowStep = time.Hour

	MaxNotesLength = 500
)

type SlotState string

const (
	SlotFree     SlotState = "free"
	SlotReserved SlotState = "reserved"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no-show"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentRefunded  PaymentStatus = "refunded"
)

type Segment string

const (
	SegmentMorning   Segment = "Morning"
	SegmentAfternoon Segment = "Afternoon"
	SegmentEvening   Segment = "Evening"
)

// SalonHours is read from the salon directory; both times are "HH:MM" wall
// clock in the salon zone and may be empty when the salon never set them.
type SalonHours struct {
	SalonID     uuid.UUID
	OpeningTime string
	ClosingTime string
}

type Barber struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	SalonID         uuid.UUID
	FirstName       string
	LastName        string
	Specialty       string
	ExperienceYears int
	Rating          float64
	TotalReviews    int
}

type SalonStaff struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	SalonID   uuid.UUID
	BarberID  *uuid.UUID // set when the staff profile belongs to a barber
	FirstName string
	LastName  string
	IsActive  bool
}

// SlotKey is the composite identity of a slot. Date carries only the calendar
// day; see DateOf.
type SlotKey struct {
	BarberID  uuid.UUID
	SalonID   uuid.UUID
	Date      time.Time
	StartTime string
}

type Slot struct {
	ID            uuid.UUID
	BarberID      uuid.UUID
	SalonID       uuid.UUID
	Date          time.Time
	DayOfWeek     string
	StartTime     string
	EndTime       string
	State         SlotState
	AppointmentID *uuid.UUID
	ReservedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (s *Slot) IsReserved() bool {
	return s.State == SlotReserved
}

func (s *Slot) Key() SlotKey {
	return SlotKey{BarberID: s.BarberID, SalonID: s.SalonID, Date: s.Date, StartTime: s.StartTime}
}

// StartsAt returns the instant the slot begins in the salon zone.
func (s *Slot) StartsAt(loc *time.Location) (time.Time, error) {
	return At(s.Date, s.StartTime, loc)
}

// Reservation is one reserved interval of a staff member on a given day.
type Reservation struct {
	StaffID   uuid.UUID
	StartTime string
	EndTime   string
}

type Appointment struct {
	ID            uuid.UUID
	CustomerID    uuid.UUID
	BarberID      uuid.UUID
	SalonID       uuid.UUID
	ServiceID     uuid.UUID
	SlotID        uuid.UUID
	ScheduledAt   time.Time
	Status        AppointmentStatus
	PaymentStatus PaymentStatus
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type NewAppointment struct {
	CustomerID  uuid.UUID
	BarberID    uuid.UUID
	SalonID     uuid.UUID
	ServiceID   uuid.UUID
	SlotID      uuid.UUID
	ScheduledAt time.Time
	Notes       string
}

// Window is a bookable interval produced by the generator. It is never stored;
// Selector is what a client sends back to book it.
type Window struct {
	Date           time.Time
	StartTime      string
	EndTime        string
	Segment        Segment
	AvailableStaff []StaffMember
	Selector       string
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	SlotID        *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type SlotFilter struct {
	BarberID *uuid.UUID
	SalonID  *uuid.UUID
	Date     *time.Time
	State    *SlotState
}

type AppointmentFilter struct {
	CustomerID *uuid.UUID
	BarberID   *uuid.UUID
	SalonID    *uuid.UUID
	Limit      int
	Offset     int
}

// Confirmation is handed to the notifier once a booking commits.
type Confirmation struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	BarberID      uuid.UUID `json:"barber_id"`
	SalonID       uuid.UUID `json:"salon_id"`
	ServiceID     uuid.UUID `json:"service_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Notes         string    `json:"notes,omitempty"`
}
