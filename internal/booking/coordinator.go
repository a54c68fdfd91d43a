package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const compensationTimeout = 5 * time.Second

type BookingState string

const (
	StateValidatingRequest   BookingState = "validating_request"
	StateResolvingSlot       BookingState = "resolving_slot"
	StateReservingSlot       BookingState = "reserving_slot"
	StateCreatingAppointment BookingState = "creating_appointment"
	StateLinkingSlot         BookingState = "linking_slot"
	StateCommitted           BookingState = "committed"
	StateRolledBack          BookingState = "rolled_back"
	StateRejected            BookingState = "rejected"
)

type BookingRequest struct {
	CustomerID  uuid.UUID
	BarberID    uuid.UUID
	SalonID     uuid.UUID
	ServiceID   uuid.UUID
	Selector    string
	ScheduledAt time.Time
	Notes       string
}

// attempt tracks one booking as it moves through the state machine.
type attempt struct {
	state  BookingState
	slotID uuid.UUID
	log    *slog.Logger
}

func (a *attempt) enter(state BookingState) {
	a.state = state
	a.log.Debug("booking state", slog.String("state", string(state)))
}

// BookAppointment turns a selector into a scheduled appointment. At most one
// concurrent caller can win a given slot; losers get ErrAlreadyBooked. A
// failure after the reservation releases the slot before returning.
func (s *Service) BookAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	att := &attempt{
		state: StateValidatingRequest,
		log: s.logger.With(
			slog.String("barber_id", req.BarberID.String()),
			slog.String("salon_id", req.SalonID.String()),
			slog.String("selector", req.Selector),
		),
	}

	appt, err := s.book(ctx, att, req)
	if err != nil {
		s.metrics.BookingOutcome(outcomeLabel(att.state, err))
		return nil, err
	}
	s.metrics.BookingOutcome(string(StateCommitted))
	return appt, nil
}

func (s *Service) book(ctx context.Context, att *attempt, req BookingRequest) (*Appointment, error) {
	sel, err := s.validate(req)
	if err != nil {
		return nil, att.reject(err)
	}

	att.enter(StateResolvingSlot)
	slot, err := s.resolveSlot(ctx, req, sel)
	if err != nil {
		return nil, att.reject(err)
	}
	att.slotID = slot.ID

	att.enter(StateReservingSlot)
	slot, err = s.slots.ReserveIfFree(ctx, slot.ID)
	if err != nil {
		if errors.Is(err, ErrAlreadyBooked) || errors.Is(err, ErrSlotNotFound) {
			return nil, att.reject(err)
		}
		return nil, att.reject(fmt.Errorf("reserve slot: %w", err))
	}

	if slot.BarberID != req.BarberID || slot.SalonID != req.SalonID {
		s.compensate(ctx, att, "slot_mismatch")
		return nil, att.rollback(ErrSlotMismatch)
	}

	att.enter(StateCreatingAppointment)
	appt, err := s.appts.CreateAppointment(ctx, NewAppointment{
		CustomerID:  req.CustomerID,
		BarberID:    req.BarberID,
		SalonID:     req.SalonID,
		ServiceID:   req.ServiceID,
		SlotID:      slot.ID,
		ScheduledAt: req.ScheduledAt,
		Notes:       req.Notes,
	})
	if err != nil {
		s.compensate(ctx, att, "create_failed")
		if errors.Is(err, ErrValidationFailed) {
			return nil, att.rollback(err)
		}
		return nil, att.rollback(fmt.Errorf("create appointment: %w", err))
	}

	att.enter(StateLinkingSlot)
	if err := s.slots.AttachAppointment(ctx, slot.ID, appt.ID); err != nil {
		// The reservation already guards the slot; the sweeper repairs the link.
		att.log.Error("link slot to appointment",
			slog.String("slot_id", slot.ID.String()),
			slog.String("appointment_id", appt.ID.String()),
			slog.Any("error", err),
		)
		s.logEvent(ctx, EventSlotLinkFailed, &appt.ID, &slot.ID, map[string]any{"error": err.Error()})
	}

	att.enter(StateCommitted)
	s.logEvent(ctx, EventAppointmentBooked, &appt.ID, &slot.ID, map[string]any{
		"customer_id":  appt.CustomerID.String(),
		"barber_id":    appt.BarberID.String(),
		"scheduled_at": appt.ScheduledAt,
		"selector":     sel.String(),
	})
	att.log.Info("appointment booked",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("slot_id", slot.ID.String()),
	)

	s.dispatchConfirmation(ctx, appt)
	return appt, nil
}

func (s *Service) validate(req BookingRequest) (Selector, error) {
	switch {
	case req.CustomerID == uuid.Nil:
		return Selector{}, fmt.Errorf("%w: customer_id is required", ErrValidationFailed)
	case req.BarberID == uuid.Nil:
		return Selector{}, fmt.Errorf("%w: barber_id is required", ErrValidationFailed)
	case req.SalonID == uuid.Nil:
		return Selector{}, fmt.Errorf("%w: salon_id is required", ErrValidationFailed)
	case req.ServiceID == uuid.Nil:
		return Selector{}, fmt.Errorf("%w: service_id is required", ErrValidationFailed)
	case req.ScheduledAt.IsZero():
		return Selector{}, fmt.Errorf("%w: appointment date and time are required", ErrValidationFailed)
	case len([]rune(req.Notes)) > MaxNotesLength:
		return Selector{}, fmt.Errorf("%w: notes exceed %d characters", ErrValidationFailed, MaxNotesLength)
	}

	sel, err := ParseSelector(req.Selector)
	if err != nil {
		return Selector{}, err
	}

	if req.ScheduledAt.Before(s.now().Add(BookingBuffer)) {
		return Selector{}, ErrTooSoon
	}
	return sel, nil
}

// resolveSlot maps the selector to a stored slot, materializing virtual
// windows. ScheduledAt must equal the slot's start, and the buffer is enforced
// on that start before any write.
func (s *Service) resolveSlot(ctx context.Context, req BookingRequest, sel Selector) (*Slot, error) {
	loc := s.cfg.Location
	cutoff := s.now().Add(BookingBuffer)

	if sel.Virtual {
		date := DateOf(req.ScheduledAt.In(loc))
		startsAt, err := At(date, sel.StartTime, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}
		if err := matchesSlotStart(req.ScheduledAt, startsAt, loc); err != nil {
			return nil, err
		}
		if startsAt.Before(cutoff) {
			return nil, ErrTooSoon
		}

		key := SlotKey{BarberID: req.BarberID, SalonID: req.SalonID, Date: date, StartTime: sel.StartTime}
		slot, err := s.slots.MaterializeOrFetch(ctx, key, sel.EndTime)
		if err != nil {
			if errors.Is(err, ErrValidationFailed) {
				return nil, err
			}
			return nil, fmt.Errorf("materialize slot: %w", err)
		}
		s.metrics.Materialized()
		return slot, nil
	}

	slot, err := s.slots.GetSlot(ctx, sel.SlotID)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load slot: %w", err)
	}
	startsAt, err := slot.StartsAt(loc)
	if err != nil {
		return nil, fmt.Errorf("slot %s: %w", slot.ID, err)
	}
	if err := matchesSlotStart(req.ScheduledAt, startsAt, loc); err != nil {
		return nil, err
	}
	if startsAt.Before(cutoff) {
		return nil, ErrTooSoon
	}
	return slot, nil
}

// matchesSlotStart ties the appointment time to the slot it reserves.
func matchesSlotStart(scheduledAt, startsAt time.Time, loc *time.Location) error {
	if scheduledAt.Equal(startsAt) {
		return nil
	}
	return fmt.Errorf("%w: appointment time %s does not match slot start %s",
		ErrValidationFailed, scheduledAt.In(loc).Format(TimeFormat), startsAt.In(loc).Format(TimeFormat))
}

// compensate releases the attempt's reservation. It runs detached from the
// caller's cancellation so an aborted request still frees the slot.
func (s *Service) compensate(ctx context.Context, att *attempt, reason string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	s.metrics.Compensation(reason)
	if err := s.slots.Release(cctx, att.slotID); err != nil {
		att.log.Error("release slot during compensation",
			slog.String("slot_id", att.slotID.String()),
			slog.String("reason", reason),
			slog.Any("error", err),
		)
		return
	}
	slotID := att.slotID
	s.logEvent(cctx, EventSlotCompensated, nil, &slotID, map[string]any{"reason": reason})
}

func (a *attempt) reject(err error) error {
	a.enter(StateRejected)
	a.log.Info("booking rejected", slog.Any("error", err))
	return err
}

func (a *attempt) rollback(err error) error {
	a.enter(StateRolledBack)
	a.log.Warn("booking rolled back", slog.String("slot_id", a.slotID.String()), slog.Any("error", err))
	return err
}

func outcomeLabel(state BookingState, err error) string {
	switch {
	case errors.Is(err, ErrTooSoon):
		return "too_soon"
	case errors.Is(err, ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, ErrSlotNotFound):
		return "slot_not_found"
	case errors.Is(err, ErrAlreadyBooked):
		return "already_booked"
	case errors.Is(err, ErrSlotMismatch):
		return "slot_mismatch"
	case state == StateRolledBack:
		return string(StateRolledBack)
	default:
		return "error"
	}
}

func (s *Service) dispatchConfirmation(ctx context.Context, appt *Appointment) {
	if s.notifier == nil {
		return
	}
	c := Confirmation{
		AppointmentID: appt.ID,
		CustomerID:    appt.CustomerID,
		BarberID:      appt.BarberID,
		SalonID:       appt.SalonID,
		ServiceID:     appt.ServiceID,
		ScheduledAt:   appt.ScheduledAt,
		Notes:         strings.TrimSpace(appt.Notes),
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("notifier panicked", slog.String("appointment_id", c.AppointmentID.String()), slog.Any("panic", r))
			}
		}()

		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
		defer cancel()
		if err := s.notifier.BookingConfirmed(nctx, c); err != nil {
			s.logger.Warn("send booking confirmation",
				slog.String("appointment_id", c.AppointmentID.String()),
				slog.Any("error", err),
			)
		}
	}()
}

// CancelAppointment cancels a scheduled appointment and frees its slot.
// Cancelling twice succeeds; completed and no-show appointments cannot be cancelled.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) error {
	appt, err := s.appts.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("load appointment: %w", err)
	}

	switch appt.Status {
	case StatusCancelled:
		return nil
	case StatusScheduled:
	default:
		return ErrInvalidStatusTransition
	}

	released, err := s.slots.ReleaseHeldBy(ctx, appt.SlotID, appt.ID)
	if err != nil && !errors.Is(err, ErrSlotNotFound) {
		return fmt.Errorf("release slot: %w", err)
	}

	if _, err := s.appts.MarkCancelled(ctx, appt.ID); err != nil {
		if !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("cancel appointment: %w", err)
		}
		current, gerr := s.appts.GetAppointmentByID(ctx, id)
		if gerr == nil && current.Status == StatusCancelled {
			return nil
		}
		return ErrInvalidStatusTransition
	}

	s.logEvent(ctx, EventAppointmentCancelled, &appt.ID, &appt.SlotID, map[string]any{
		"slot_released": released,
	})
	return nil
}
