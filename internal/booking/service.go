package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/salon-slot-booking/internal/config"
	"github.com/hackgods/salon-slot-booking/internal/metrics"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentStatus    = "APPOINTMENT_STATUS_CHANGED"
	EventPaymentConfirmed     = "PAYMENT_CONFIRMED"
	EventSlotCompensated      = "SLOT_RELEASED_COMPENSATION"
	EventSlotLinkFailed       = "SLOT_LINK_FAILED"
	EventOrphanRelinked       = "ORPHAN_RESERVATION_RELINKED"
	EventOrphanReleased       = "ORPHAN_RESERVATION_RELEASED"
	EventSlotCreated          = "SLOT_CREATED"
	EventSlotDeleted          = "SLOT_DELETED"

	defaultListLimit = 20
	maxListLimit     = 100
)

type Service struct {
	slots    SlotStore
	appts    AppointmentStore
	dir      Directory
	cfg      config.Config
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	inflight sync.WaitGroup
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now; tests use it to pin the booking buffer.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(slots SlotStore, appts AppointmentStore, dir Directory, cfg config.Config, opts ...Option) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 3 * time.Second
	}
	s := &Service{
		slots:  slots,
		appts:  appts,
		dir:    dir,
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wait blocks until every in-flight confirmation dispatch has returned.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// Location is the salon wall-clock zone that appointment dates and times are read in.
func (s *Service) Location() *time.Location {
	return s.cfg.Location
}

// ListAvailableWindows returns the bookable windows of a salon day, optionally
// narrowed to a single staff member.
func (s *Service) ListAvailableWindows(ctx context.Context, salonID uuid.UUID, date time.Time, staffID uuid.UUID) ([]Window, error) {
	hours, err := s.dir.GetSalonHours(ctx, salonID)
	if err != nil {
		if errors.Is(err, ErrSalonNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load salon hours: %w", err)
	}

	roster, err := s.Roster(ctx, salonID)
	if err != nil {
		return nil, err
	}
	if len(roster) == 0 {
		return nil, ErrNoStaffAvailable
	}
	if staffID != uuid.Nil {
		member, ok := findStaff(roster, staffID)
		if !ok {
			return nil, ErrStaffNotFound
		}
		roster = []StaffMember{member}
	}

	reserved, err := s.slots.ListReservations(ctx, salonID, date)
	if err != nil {
		return nil, fmt.Errorf("load reservations: %w", err)
	}

	return GenerateWindows(GenerateInput{
		Hours:    hours,
		Date:     date,
		Now:      s.now(),
		Location: s.cfg.Location,
		Roster:   roster,
		Reserved: reserved,
	})
}

// Roster returns the merged barbers and generic stylists of a salon.
func (s *Service) Roster(ctx context.Context, salonID uuid.UUID) ([]StaffMember, error) {
	barbers, err := s.dir.ListBarbers(ctx, salonID)
	if err != nil {
		return nil, fmt.Errorf("load barbers: %w", err)
	}
	staff, err := s.dir.ListActiveStaff(ctx, salonID)
	if err != nil {
		return nil, fmt.Errorf("load salon staff: %w", err)
	}
	return MergeRoster(barbers, staff), nil
}

type CreateSlotRequest struct {
	BarberID  uuid.UUID
	SalonID   uuid.UUID
	Date      time.Time
	StartTime string
	EndTime   string
}

// CreateSlot stores a free slot ahead of time for a rostered staff member.
func (s *Service) CreateSlot(ctx context.Context, req CreateSlotRequest) (*Slot, error) {
	if req.BarberID == uuid.Nil || req.SalonID == uuid.Nil {
		return nil, fmt.Errorf("%w: barber_id and salon_id are required", ErrValidationFailed)
	}
	if req.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrValidationFailed)
	}

	if _, err := s.dir.GetSalonHours(ctx, req.SalonID); err != nil {
		if errors.Is(err, ErrSalonNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load salon: %w", err)
	}
	roster, err := s.Roster(ctx, req.SalonID)
	if err != nil {
		return nil, err
	}
	if _, ok := findStaff(roster, req.BarberID); !ok {
		return nil, ErrStaffNotFound
	}

	start, err := NormalizeClock(req.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	key := SlotKey{BarberID: req.BarberID, SalonID: req.SalonID, Date: DateOf(req.Date), StartTime: start}

	slot, err := s.slots.CreateSlot(ctx, key, req.EndTime)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, EventSlotCreated, nil, &slot.ID, map[string]any{
		"barber_id":  slot.BarberID.String(),
		"date":       slot.Date.Format(DateFormat),
		"start_time": slot.StartTime,
	})
	return slot, nil
}

func (s *Service) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	if err := s.slots.DeleteSlot(ctx, id); err != nil {
		return err
	}
	s.logEvent(ctx, EventSlotDeleted, nil, &id, map[string]any{})
	return nil
}

func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.slots.GetSlot(ctx, id)
}

func (s *Service) ListSlots(ctx context.Context, filter SlotFilter) ([]Slot, error) {
	slots, err := s.slots.ListSlots(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

type Availability struct {
	Available bool
	Conflicts []Slot
}

// CheckAvailability reports whether a barber has no reservation overlapping
// [startTime, endTime) on date.
func (s *Service) CheckAvailability(ctx context.Context, barberID uuid.UUID, date time.Time, startTime, endTime string) (*Availability, error) {
	start, err := ParseClock(startTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	end, err := ParseClock(endTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	if end <= start {
		return nil, fmt.Errorf("%w: end time must be after start time", ErrValidationFailed)
	}

	day := DateOf(date)
	reserved := SlotReserved
	slots, err := s.slots.ListSlots(ctx, SlotFilter{BarberID: &barberID, Date: &day, State: &reserved})
	if err != nil {
		return nil, fmt.Errorf("list barber slots: %w", err)
	}

	result := &Availability{Available: true, Conflicts: []Slot{}}
	for _, slot := range slots {
		ss, err := ParseClock(slot.StartTime)
		if err != nil {
			continue
		}
		se, err := ParseClock(slot.EndTime)
		if err != nil {
			continue
		}
		if overlaps(ss, se, start, end) {
			result.Available = false
			result.Conflicts = append(result.Conflicts, slot)
		}
	}
	return result, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appts.GetAppointmentByID(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	appts, err := s.appts.ListAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// ConfirmPayment marks a pending payment paid. Paying twice is a no-op.
func (s *Service) ConfirmPayment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	updated, err := s.appts.UpdatePaymentStatus(ctx, id, PaymentPending, PaymentPaid)
	if err == nil {
		s.logEvent(ctx, EventPaymentConfirmed, &updated.ID, &updated.SlotID, map[string]any{})
		return updated, nil
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, fmt.Errorf("confirm payment: %w", err)
	}

	current, err := s.appts.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.PaymentStatus == PaymentPaid {
		return current, nil
	}
	return nil, ErrInvalidStatusTransition
}

// UpdateStatus closes out a scheduled appointment as completed or no-show.
// The slot stays reserved: the time was used.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	switch to {
	case StatusCompleted, StatusNoShow:
	case StatusCancelled:
		if err := s.CancelAppointment(ctx, id); err != nil {
			return nil, err
		}
		return s.appts.GetAppointmentByID(ctx, id)
	default:
		return nil, fmt.Errorf("%w: unsupported status %q", ErrValidationFailed, to)
	}

	updated, err := s.appts.UpdateAppointmentStatus(ctx, id, StatusScheduled, to)
	if err != nil {
		if !errors.Is(err, ErrAppointmentNotFound) {
			return nil, fmt.Errorf("update appointment status: %w", err)
		}
		current, gerr := s.appts.GetAppointmentByID(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		if current.Status == to {
			return current, nil
		}
		return nil, ErrInvalidStatusTransition
	}

	s.logEvent(ctx, EventAppointmentStatus, &updated.ID, &updated.SlotID, map[string]any{
		"from": string(StatusScheduled),
		"to":   string(to),
	})
	return updated, nil
}

// logEvent writes an audit record. Failures are logged and never surface.
func (s *Service) logEvent(ctx context.Context, eventType string, appointmentID, slotID *uuid.UUID, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("marshal event payload", slog.String("event", eventType), slog.Any("error", err))
		data = nil
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		SlotID:        slotID,
		Payload:       data,
		CreatedAt:     s.now(),
	}
	if err := s.appts.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("insert event log", slog.String("event", eventType), slog.Any("error", err))
	}
}
