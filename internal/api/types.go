package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/salon-slot-booking/internal/booking"
)

type BookAppointmentRequest struct {
	CustomerID      string `json:"customer_id"`
	BarberID        string `json:"barber_id"`
	SalonID         string `json:"salon_id"`
	ServiceID       string `json:"service_id"`
	SlotID          string `json:"slot_id"` // slot uuid or "virtual-HH:MM"
	AppointmentDate string `json:"appointment_date"`
	AppointmentTime string `json:"appointment_time"`
	Notes           string `json:"notes"`
}

type CreateSlotRequest struct {
	BarberID  string `json:"barber_id"`
	SalonID   string `json:"salon_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type AppointmentResponse struct {
	ID            uuid.UUID `json:"id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	BarberID      uuid.UUID `json:"barber_id"`
	SalonID       uuid.UUID `json:"salon_id"`
	ServiceID     uuid.UUID `json:"service_id"`
	SlotID        uuid.UUID `json:"slot_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type SlotResponse struct {
	ID            uuid.UUID  `json:"id"`
	BarberID      uuid.UUID  `json:"barber_id"`
	SalonID       uuid.UUID  `json:"salon_id"`
	Date          string     `json:"date"`
	DayOfWeek     string     `json:"day_of_week"`
	StartTime     string     `json:"start_time"`
	EndTime       string     `json:"end_time"`
	State         string     `json:"state"`
	IsBooked      bool       `json:"is_booked"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
}

type WindowResponse struct {
	Date           string                `json:"date"`
	StartTime      string                `json:"start_time"`
	EndTime        string                `json:"end_time"`
	Segment        string                `json:"segment"`
	SlotID         string                `json:"slot_id"`
	AvailableStaff []booking.StaffMember `json:"available_staff"`
}

type WindowsResponse struct {
	SalonID uuid.UUID        `json:"salon_id"`
	Date    string           `json:"date"`
	Windows []WindowResponse `json:"windows"`
}

type AvailabilityResponse struct {
	Available bool           `json:"available"`
	Conflicts []SlotResponse `json:"conflicts"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		CustomerID:    a.CustomerID,
		BarberID:      a.BarberID,
		SalonID:       a.SalonID,
		ServiceID:     a.ServiceID,
		SlotID:        a.SlotID,
		ScheduledAt:   a.ScheduledAt,
		Status:        string(a.Status),
		PaymentStatus: string(a.PaymentStatus),
		Notes:         a.Notes,
		CreatedAt:     a.CreatedAt,
	}
}

func toSlotResponse(s booking.Slot) SlotResponse {
	return SlotResponse{
		ID:            s.ID,
		BarberID:      s.BarberID,
		SalonID:       s.SalonID,
		Date:          s.Date.Format(booking.DateFormat),
		DayOfWeek:     s.DayOfWeek,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		State:         string(s.State),
		IsBooked:      s.IsReserved(),
		AppointmentID: s.AppointmentID,
	}
}

func toWindowResponse(w booking.Window) WindowResponse {
	return WindowResponse{
		Date:           w.Date.Format(booking.DateFormat),
		StartTime:      w.StartTime,
		EndTime:        w.EndTime,
		Segment:        string(w.Segment),
		SlotID:         w.Selector,
		AvailableStaff: w.AvailableStaff,
	}
}
