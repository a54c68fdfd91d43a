// Package memstore keeps slots, appointments and the salon directory in
// process memory. Every operation runs under one mutex, which gives the same
// conditional-write guarantees the Postgres store gets from single statements.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/salon-slot-booking/internal/booking"
)

type slotKey struct {
	barberID  uuid.UUID
	salonID   uuid.UUID
	date      string
	startTime string
}

type Store struct {
	mu sync.Mutex

	salons       map[uuid.UUID]booking.SalonHours
	barbers      map[uuid.UUID][]booking.Barber
	staff        map[uuid.UUID][]booking.SalonStaff
	slots        map[uuid.UUID]*booking.Slot
	slotsByKey   map[slotKey]uuid.UUID
	appointments map[uuid.UUID]*booking.Appointment
	apptOrder    []uuid.UUID
	events       []booking.EventLog
	nextEventID  int64

	failCreate error
	failAttach error
	failEvents error

	now func() time.Time
}

func New() *Store {
	return &Store{
		salons:       make(map[uuid.UUID]booking.SalonHours),
		barbers:      make(map[uuid.UUID][]booking.Barber),
		staff:        make(map[uuid.UUID][]booking.SalonStaff),
		slots:        make(map[uuid.UUID]*booking.Slot),
		slotsByKey:   make(map[slotKey]uuid.UUID),
		appointments: make(map[uuid.UUID]*booking.Appointment),
		now:          time.Now,
	}
}

// SetClock replaces the clock used for reserved_at and timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Seeding

func (s *Store) AddSalon(h booking.SalonHours) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.salons[h.SalonID] = h
}

func (s *Store) AddBarber(b booking.Barber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.barbers[b.SalonID] = append(s.barbers[b.SalonID], b)
}

func (s *Store) AddStaff(st booking.SalonStaff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staff[st.SalonID] = append(s.staff[st.SalonID], st)
}

// Failure injection

// FailNextCreate makes the next CreateAppointment return err.
func (s *Store) FailNextCreate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreate = err
}

// FailNextAttach makes the next AttachAppointment return err.
func (s *Store) FailNextAttach(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAttach = err
}

// FailEvents makes every InsertEvent return err until called with nil.
func (s *Store) FailEvents(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failEvents = err
}

func (s *Store) Events() []booking.EventLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]booking.EventLog(nil), s.events...)
}

func keyOf(k booking.SlotKey) slotKey {
	return slotKey{barberID: k.BarberID, salonID: k.SalonID, date: k.Date.Format(booking.DateFormat), startTime: k.StartTime}
}

func cloneSlot(sl *booking.Slot) *booking.Slot {
	c := *sl
	if sl.AppointmentID != nil {
		id := *sl.AppointmentID
		c.AppointmentID = &id
	}
	if sl.ReservedAt != nil {
		t := *sl.ReservedAt
		c.ReservedAt = &t
	}
	return &c
}

func cloneAppointment(a *booking.Appointment) *booking.Appointment {
	c := *a
	return &c
}

// Slots

func (s *Store) newSlot(key booking.SlotKey, endTime string) (*booking.Slot, error) {
	start, err := booking.ParseClock(key.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", booking.ErrValidationFailed, err)
	}
	end, err := booking.ParseClock(endTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", booking.ErrValidationFailed, err)
	}
	if end <= start {
		return nil, fmt.Errorf("%w: end time must be after start time", booking.ErrValidationFailed)
	}
	if _, ok := s.salons[key.SalonID]; !ok {
		return nil, fmt.Errorf("%w: unknown salon", booking.ErrValidationFailed)
	}

	now := s.now()
	date := booking.DateOf(key.Date)
	sl := &booking.Slot{
		ID:        uuid.New(),
		BarberID:  key.BarberID,
		SalonID:   key.SalonID,
		Date:      date,
		DayOfWeek: date.Weekday().String(),
		StartTime: booking.FormatClock(start),
		EndTime:   booking.FormatClock(end),
		State:     booking.SlotFree,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return sl, nil
}

func (s *Store) insert(sl *booking.Slot) {
	s.slots[sl.ID] = sl
	s.slotsByKey[keyOf(sl.Key())] = sl.ID
}

func (s *Store) MaterializeOrFetch(_ context.Context, key booking.SlotKey, endTime string) (*booking.Slot, error) {
	start, err := booking.NormalizeClock(key.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", booking.ErrValidationFailed, err)
	}
	key.StartTime = start
	key.Date = booking.DateOf(key.Date)

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.slotsByKey[keyOf(key)]; ok {
		return cloneSlot(s.slots[id]), nil
	}
	sl, err := s.newSlot(key, endTime)
	if err != nil {
		return nil, err
	}
	s.insert(sl)
	return cloneSlot(sl), nil
}

func (s *Store) CreateSlot(_ context.Context, key booking.SlotKey, endTime string) (*booking.Slot, error) {
	start, err := booking.NormalizeClock(key.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", booking.ErrValidationFailed, err)
	}
	key.StartTime = start
	key.Date = booking.DateOf(key.Date)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slotsByKey[keyOf(key)]; ok {
		return nil, booking.ErrSlotExists
	}
	sl, err := s.newSlot(key, endTime)
	if err != nil {
		return nil, err
	}
	s.insert(sl)
	return cloneSlot(sl), nil
}

func (s *Store) GetSlot(_ context.Context, id uuid.UUID) (*booking.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[id]
	if !ok {
		return nil, booking.ErrSlotNotFound
	}
	return cloneSlot(sl), nil
}

// overlapsReservation reports whether sl would overlap another reserved slot
// of the same barber on the same day.
func (s *Store) overlapsReservation(sl *booking.Slot) bool {
	start, _ := booking.ParseClock(sl.StartTime)
	end, _ := booking.ParseClock(sl.EndTime)
	for _, other := range s.slots {
		if other.ID == sl.ID || !other.IsReserved() || other.BarberID != sl.BarberID || !other.Date.Equal(sl.Date) {
			continue
		}
		os, _ := booking.ParseClock(other.StartTime)
		oe, _ := booking.ParseClock(other.EndTime)
		if os < end && oe > start {
			return true
		}
	}
	return false
}

func (s *Store) ReserveIfFree(_ context.Context, id uuid.UUID) (*booking.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[id]
	if !ok {
		return nil, booking.ErrSlotNotFound
	}
	if sl.IsReserved() || s.overlapsReservation(sl) {
		return nil, booking.ErrAlreadyBooked
	}
	now := s.now()
	sl.State = booking.SlotReserved
	sl.ReservedAt = &now
	sl.UpdatedAt = now
	return cloneSlot(sl), nil
}

func (s *Store) free(sl *booking.Slot) {
	sl.State = booking.SlotFree
	sl.AppointmentID = nil
	sl.ReservedAt = nil
	sl.UpdatedAt = s.now()
}

func (s *Store) Release(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[id]
	if !ok {
		return booking.ErrSlotNotFound
	}
	s.free(sl)
	return nil
}

func (s *Store) ReleaseHeldBy(_ context.Context, id, appointmentID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[id]
	if !ok || !sl.IsReserved() {
		return false, nil
	}
	if sl.AppointmentID != nil && *sl.AppointmentID != appointmentID {
		return false, nil
	}
	s.free(sl)
	return true, nil
}

func (s *Store) AttachAppointment(_ context.Context, slotID, appointmentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failAttach; err != nil {
		s.failAttach = nil
		return err
	}
	sl, ok := s.slots[slotID]
	if !ok {
		return booking.ErrSlotNotFound
	}
	if !sl.IsReserved() {
		return booking.ErrSlotNotReserved
	}
	id := appointmentID
	sl.AppointmentID = &id
	sl.UpdatedAt = s.now()
	return nil
}

func (s *Store) DeleteSlot(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[id]
	if !ok {
		return booking.ErrSlotNotFound
	}
	if sl.IsReserved() {
		return booking.ErrSlotInUse
	}
	delete(s.slots, id)
	delete(s.slotsByKey, keyOf(sl.Key()))
	return nil
}

func (s *Store) ListSlots(_ context.Context, f booking.SlotFilter) ([]booking.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []booking.Slot{}
	for _, sl := range s.slots {
		if f.BarberID != nil && sl.BarberID != *f.BarberID {
			continue
		}
		if f.SalonID != nil && sl.SalonID != *f.SalonID {
			continue
		}
		if f.Date != nil && !sl.Date.Equal(booking.DateOf(*f.Date)) {
			continue
		}
		if f.State != nil && sl.State != *f.State {
			continue
		}
		result = append(result, *cloneSlot(sl))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		if result[i].StartTime != result[j].StartTime {
			return result[i].StartTime < result[j].StartTime
		}
		return result[i].BarberID.String() < result[j].BarberID.String()
	})
	return result, nil
}

func (s *Store) ListReservations(_ context.Context, salonID uuid.UUID, date time.Time) ([]booking.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := booking.DateOf(date)
	result := []booking.Reservation{}
	for _, sl := range s.slots {
		if sl.SalonID != salonID || !sl.Date.Equal(day) || !sl.IsReserved() {
			continue
		}
		result = append(result, booking.Reservation{StaffID: sl.BarberID, StartTime: sl.StartTime, EndTime: sl.EndTime})
	}
	return result, nil
}

func (s *Store) FindOrphanedReservations(_ context.Context, reservedBefore time.Time) ([]booking.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []booking.Slot{}
	for _, sl := range s.slots {
		if !sl.IsReserved() || sl.AppointmentID != nil || sl.ReservedAt == nil || !sl.ReservedAt.Before(reservedBefore) {
			continue
		}
		result = append(result, *cloneSlot(sl))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ReservedAt.Before(*result[j].ReservedAt) })
	return result, nil
}
