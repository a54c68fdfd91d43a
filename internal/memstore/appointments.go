package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/hackgods/salon-slot-booking/internal/booking"
)

func (s *Store) CreateAppointment(_ context.Context, in booking.NewAppointment) (*booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failCreate; err != nil {
		s.failCreate = nil
		return nil, err
	}
	if _, ok := s.salons[in.SalonID]; !ok {
		return nil, fmt.Errorf("%w: violates appointments_salon_id_fkey", booking.ErrValidationFailed)
	}

	now := s.now()
	a := &booking.Appointment{
		ID:            uuid.New(),
		CustomerID:    in.CustomerID,
		BarberID:      in.BarberID,
		SalonID:       in.SalonID,
		ServiceID:     in.ServiceID,
		SlotID:        in.SlotID,
		ScheduledAt:   in.ScheduledAt,
		Status:        booking.StatusScheduled,
		PaymentStatus: booking.PaymentPending,
		Notes:         in.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.appointments[a.ID] = a
	s.apptOrder = append(s.apptOrder, a.ID)
	return cloneAppointment(a), nil
}

func (s *Store) GetAppointmentByID(_ context.Context, id uuid.UUID) (*booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok {
		return nil, booking.ErrAppointmentNotFound
	}
	return cloneAppointment(a), nil
}

func (s *Store) ListAppointments(_ context.Context, f booking.AppointmentFilter) ([]booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []booking.Appointment{}
	for _, id := range s.apptOrder {
		a := s.appointments[id]
		if f.CustomerID != nil && a.CustomerID != *f.CustomerID {
			continue
		}
		if f.BarberID != nil && a.BarberID != *f.BarberID {
			continue
		}
		if f.SalonID != nil && a.SalonID != *f.SalonID {
			continue
		}
		matched = append(matched, *cloneAppointment(a))
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ScheduledAt.After(matched[j].ScheduledAt) })

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return []booking.Appointment{}, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

func (s *Store) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to booking.AppointmentStatus) (*booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok || a.Status != from {
		return nil, booking.ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = s.now()
	return cloneAppointment(a), nil
}

func (s *Store) UpdatePaymentStatus(_ context.Context, id uuid.UUID, from, to booking.PaymentStatus) (*booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok || a.PaymentStatus != from {
		return nil, booking.ErrAppointmentNotFound
	}
	a.PaymentStatus = to
	a.UpdatedAt = s.now()
	return cloneAppointment(a), nil
}

func (s *Store) MarkCancelled(_ context.Context, id uuid.UUID) (*booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok || a.Status != booking.StatusScheduled {
		return nil, booking.ErrAppointmentNotFound
	}
	a.Status = booking.StatusCancelled
	if a.PaymentStatus == booking.PaymentPending {
		a.PaymentStatus = booking.PaymentCancelled
	}
	a.UpdatedAt = s.now()
	return cloneAppointment(a), nil
}

func (s *Store) FindActiveAppointmentForSlot(_ context.Context, slotID uuid.UUID) (*booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.apptOrder) - 1; i >= 0; i-- {
		a := s.appointments[s.apptOrder[i]]
		if a.SlotID == slotID && a.Status != booking.StatusCancelled {
			return cloneAppointment(a), nil
		}
	}
	return nil, booking.ErrAppointmentNotFound
}

func (s *Store) InsertEvent(_ context.Context, ev booking.EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failEvents != nil {
		return s.failEvents
	}
	s.nextEventID++
	ev.ID = s.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	s.events = append(s.events, ev)
	return nil
}

// Directory

func (s *Store) GetSalonHours(_ context.Context, salonID uuid.UUID) (*booking.SalonHours, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.salons[salonID]
	if !ok {
		return nil, booking.ErrSalonNotFound
	}
	return &h, nil
}

func (s *Store) ListBarbers(_ context.Context, salonID uuid.UUID) ([]booking.Barber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]booking.Barber{}, s.barbers[salonID]...), nil
}

func (s *Store) ListActiveStaff(_ context.Context, salonID uuid.UUID) ([]booking.SalonStaff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []booking.SalonStaff{}
	for _, st := range s.staff[salonID] {
		if st.IsActive {
			result = append(result, st)
		}
	}
	return result, nil
}

var (
	_ booking.SlotStore        = (*Store)(nil)
	_ booking.AppointmentStore = (*Store)(nil)
	_ booking.Directory        = (*Store)(nil)
)
