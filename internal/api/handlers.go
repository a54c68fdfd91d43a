package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/salon-slot-booking/internal/booking"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	svc    *booking.Service
	logger *slog.Logger
}

func (h *handlers) listWindows(w http.ResponseWriter, r *http.Request) {
	salonID, ok := pathUUID(w, r, "salonID", "invalid_salon_id")
	if !ok {
		return
	}

	date, err := booking.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}

	staffID := uuid.Nil
	if raw := r.URL.Query().Get("staff_id"); raw != "" {
		if staffID, err = uuid.Parse(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_staff_id", "staff_id must be a valid UUID")
			return
		}
	}

	windows, err := h.svc.ListAvailableWindows(r.Context(), salonID, date, staffID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := WindowsResponse{SalonID: salonID, Date: date.Format(booking.DateFormat), Windows: make([]WindowResponse, 0, len(windows))}
	for _, win := range windows {
		resp.Windows = append(resp.Windows, toWindowResponse(win))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var req BookAppointmentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	fields := []struct {
		name string
		raw  string
		dst  *uuid.UUID
	}{
		{"customer_id", req.CustomerID, new(uuid.UUID)},
		{"barber_id", req.BarberID, new(uuid.UUID)},
		{"salon_id", req.SalonID, new(uuid.UUID)},
		{"service_id", req.ServiceID, new(uuid.UUID)},
	}
	for _, f := range fields {
		id, err := uuid.Parse(f.raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_"+f.name, f.name+" must be a valid UUID")
			return
		}
		*f.dst = id
	}

	date, err := booking.ParseDate(req.AppointmentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_date", err.Error())
		return
	}
	scheduledAt, err := booking.At(date, req.AppointmentTime, h.svc.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_time", err.Error())
		return
	}

	appt, err := h.svc.BookAppointment(r.Context(), booking.BookingRequest{
		CustomerID:  *fields[0].dst,
		BarberID:    *fields[1].dst,
		SalonID:     *fields[2].dst,
		ServiceID:   *fields[3].dst,
		Selector:    req.SlotID,
		ScheduledAt: scheduledAt,
		Notes:       req.Notes,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "invalid_appointment_id")
	if !ok {
		return
	}
	appt, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	var filter booking.AppointmentFilter
	var ok bool
	q := r.URL.Query()

	if filter.CustomerID, ok = queryUUID(w, q.Get("customer_id"), "customer_id"); !ok {
		return
	}
	if filter.BarberID, ok = queryUUID(w, q.Get("barber_id"), "barber_id"); !ok {
		return
	}
	if filter.SalonID, ok = queryUUID(w, q.Get("salon_id"), "salon_id"); !ok {
		return
	}
	if filter.Limit, ok = queryInt(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if filter.Offset, ok = queryInt(w, q.Get("offset"), "offset"); !ok {
		return
	}

	appts, err := h.svc.ListAppointments(r.Context(), filter)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	resp := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		resp = append(resp, toAppointmentResponse(&appts[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "invalid_appointment_id")
	if !ok {
		return
	}
	if err := h.svc.CancelAppointment(r.Context(), id); err != nil {
		h.handleError(w, r, err)
		return
	}
	appt, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "invalid_appointment_id")
	if !ok {
		return
	}
	appt, err := h.svc.ConfirmPayment(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "invalid_appointment_id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	appt, err := h.svc.UpdateStatus(r.Context(), id, booking.AppointmentStatus(req.Status))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) listSlots(w http.ResponseWriter, r *http.Request) {
	var filter booking.SlotFilter
	var ok bool
	q := r.URL.Query()

	if filter.BarberID, ok = queryUUID(w, q.Get("barber_id"), "barber_id"); !ok {
		return
	}
	if filter.SalonID, ok = queryUUID(w, q.Get("salon_id"), "salon_id"); !ok {
		return
	}
	if raw := q.Get("date"); raw != "" {
		date, err := booking.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		filter.Date = &date
	}
	if raw := q.Get("state"); raw != "" {
		state := booking.SlotState(raw)
		if state != booking.SlotFree && state != booking.SlotReserved {
			writeError(w, http.StatusBadRequest, "invalid_state", "state must be free or reserved")
			return
		}
		filter.State = &state
	}

	slots, err := h.svc.ListSlots(r.Context(), filter)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	resp := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		resp = append(resp, toSlotResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "invalid_slot_id")
	if !ok {
		return
	}
	slot, err := h.svc.GetSlot(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotResponse(*slot))
}

func (h *handlers) createSlot(w http.ResponseWriter, r *http.Request) {
	var req CreateSlotRequest
	if !decodeBody(w, r, &req) {
		return
	}
	barberID, err := uuid.Parse(req.BarberID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_barber_id", "barber_id must be a valid UUID")
		return
	}
	salonID, err := uuid.Parse(req.SalonID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_salon_id", "salon_id must be a valid UUID")
		return
	}
	date, err := booking.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}

	slot, err := h.svc.CreateSlot(r.Context(), booking.CreateSlotRequest{
		BarberID:  barberID,
		SalonID:   salonID,
		Date:      date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSlotResponse(*slot))
}

func (h *handlers) deleteSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "invalid_slot_id")
	if !ok {
		return
	}
	if err := h.svc.DeleteSlot(r.Context(), id); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) checkAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	barberID, err := uuid.Parse(q.Get("barber_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_barber_id", "barber_id must be a valid UUID")
		return
	}
	date, err := booking.ParseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}

	result, err := h.svc.CheckAvailability(r.Context(), barberID, date, q.Get("start_time"), q.Get("end_time"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	resp := AvailabilityResponse{Available: result.Available, Conflicts: make([]SlotResponse, 0, len(result.Conflicts))}
	for _, s := range result.Conflicts {
		resp.Conflicts = append(resp.Conflicts, toSlotResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleError maps domain errors onto HTTP statuses. Anything unrecognised is
// logged and answered with an opaque 500.
func (h *handlers) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, booking.ErrTooSoon):
		writeError(w, http.StatusBadRequest, "too_soon", err.Error())
	case errors.Is(err, booking.ErrValidationFailed):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, booking.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrSalonNotFound):
		writeError(w, http.StatusNotFound, "salon_not_found", err.Error())
	case errors.Is(err, booking.ErrStaffNotFound):
		writeError(w, http.StatusNotFound, "staff_not_found", err.Error())
	case errors.Is(err, booking.ErrNoStaffAvailable):
		writeError(w, http.StatusNotFound, "no_staff_available", err.Error())
	case errors.Is(err, booking.ErrAlreadyBooked):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	case errors.Is(err, booking.ErrSlotInUse):
		writeError(w, http.StatusConflict, "slot_in_use", err.Error())
	case errors.Is(err, booking.ErrSlotExists):
		writeError(w, http.StatusConflict, "slot_exists", err.Error())
	case errors.Is(err, booking.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		h.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", GetRequestID(r.Context())),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func pathUUID(w http.ResponseWriter, r *http.Request, param, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, param+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func queryUUID(w http.ResponseWriter, raw, name string) (*uuid.UUID, bool) {
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return nil, false
	}
	return &id, true
}

func queryInt(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", fmt.Sprintf("could not parse JSON: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
