package booking_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/salon-slot-booking/internal/booking"
	"github.com/hackgods/salon-slot-booking/internal/config"
	"github.com/hackgods/salon-slot-booking/internal/logging"
	"github.com/hackgods/salon-slot-booking/internal/memstore"
	"github.com/hackgods/salon-slot-booking/internal/metrics"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []booking.Confirmation
	err   error
}

func (n *recordingNotifier) BookingConfirmed(_ context.Context, c booking.Confirmation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, c)
	return n.err
}

func (n *recordingNotifier) Calls() []booking.Confirmation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]booking.Confirmation(nil), n.calls...)
}

type fixture struct {
	store     *memstore.Store
	svc       *booking.Service
	clock     *testClock
	metrics   *metrics.Metrics
	salonID   uuid.UUID
	barberID  uuid.UUID
	stylistID uuid.UUID
	day       time.Time
}

func newFixture(t *testing.T, opts ...booking.Option) *fixture {
	t.Helper()

	f := &fixture{
		store:     memstore.New(),
		clock:     &testClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)},
		metrics:   metrics.New(),
		salonID:   uuid.New(),
		barberID:  uuid.New(),
		stylistID: uuid.New(),
		day:       time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
	}
	f.store.SetClock(f.clock.Now)
	f.store.AddSalon(booking.SalonHours{SalonID: f.salonID, OpeningTime: "09:00", ClosingTime: "19:00"})
	f.store.AddBarber(booking.Barber{ID: f.barberID, UserID: uuid.New(), SalonID: f.salonID, FirstName: "Ana", Specialty: "Fades"})
	f.store.AddStaff(booking.SalonStaff{ID: f.stylistID, UserID: uuid.New(), SalonID: f.salonID, FirstName: "Bo", IsActive: true})

	cfg := config.Config{Location: time.UTC, NotifyTimeout: time.Second}
	base := []booking.Option{
		booking.WithClock(f.clock.Now),
		booking.WithLogger(logging.Discard()),
		booking.WithMetrics(f.metrics),
	}
	f.svc = booking.NewService(f.store, f.store, f.store, cfg, append(base, opts...)...)
	t.Cleanup(f.svc.Wait)
	return f
}

func (f *fixture) request(barberID uuid.UUID, start string) booking.BookingRequest {
	at, err := booking.At(f.day, start, time.UTC)
	if err != nil {
		panic(err)
	}
	return booking.BookingRequest{
		CustomerID:  uuid.New(),
		BarberID:    barberID,
		SalonID:     f.salonID,
		ServiceID:   uuid.New(),
		Selector:    booking.VirtualSelector(start),
		ScheduledAt: at,
	}
}

func (f *fixture) slotsFor(t *testing.T, barberID uuid.UUID) []booking.Slot {
	t.Helper()
	slots, err := f.svc.ListSlots(context.Background(), booking.SlotFilter{BarberID: &barberID})
	require.NoError(t, err)
	return slots
}

func TestNewService_DefaultsLocationToUTC(t *testing.T) {
	store := memstore.New()
	svc := booking.NewService(store, store, store, config.Config{})
	assert.Equal(t, time.UTC, svc.Location())

	f := newFixture(t)
	assert.Equal(t, time.UTC, f.svc.Location())
}

func TestBookAppointment_VirtualWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, f.request(f.barberID, "14:00"))
	require.NoError(t, err)
	assert.Equal(t, booking.StatusScheduled, appt.Status)
	assert.Equal(t, booking.PaymentPending, appt.PaymentStatus)

	slots := f.slotsFor(t, f.barberID)
	require.Len(t, slots, 1)
	assert.Equal(t, "14:00", slots[0].StartTime)
	assert.Equal(t, "16:00", slots[0].EndTime)
	assert.Equal(t, booking.SlotReserved, slots[0].State)
	require.NotNil(t, slots[0].AppointmentID)
	assert.Equal(t, appt.ID, *slots[0].AppointmentID)
	assert.Equal(t, slots[0].ID, appt.SlotID)
}

func TestBookAppointment_ConcurrentSameWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const callers = 5
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		conflict int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.BookAppointment(ctx, f.request(f.barberID, "10:00"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, booking.ErrAlreadyBooked):
				conflict++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, conflict)

	slots := f.slotsFor(t, f.barberID)
	require.Len(t, slots, 1, "concurrent materialization must converge on one record")
	assert.Equal(t, booking.SlotReserved, slots[0].State)
}

func TestBookAppointment_RejectsOverlappingWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.BookAppointment(ctx, f.request(f.barberID, "10:00"))
	require.NoError(t, err)

	_, err = f.svc.BookAppointment(ctx, f.request(f.barberID, "11:00"))
	assert.ErrorIs(t, err, booking.ErrAlreadyBooked)

	_, err = f.svc.BookAppointment(ctx, f.request(f.barberID, "12:00"))
	assert.NoError(t, err)

	// Same window, different staff member.
	_, err = f.svc.BookAppointment(ctx, f.request(f.stylistID, "11:00"))
	assert.NoError(t, err)
}

func TestBookAppointment_BookingBuffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("inside buffer", func(t *testing.T) {
		f.clock.Set(f.day.Add(-2*time.Hour + time.Minute))
		_, err := f.svc.BookAppointment(ctx, f.request(f.barberID, "10:00"))
		assert.ErrorIs(t, err, booking.ErrTooSoon)
		assert.Empty(t, f.slotsFor(t, f.barberID), "no slot may be materialized for a rejected request")
	})

	t.Run("exactly at buffer", func(t *testing.T) {
		f.clock.Set(f.day.Add(-2 * time.Hour))
		_, err := f.svc.BookAppointment(ctx, f.request(f.barberID, "10:00"))
		assert.NoError(t, err)
	})
}

func TestBookAppointment_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*booking.BookingRequest)
	}{
		{"missing customer", func(r *booking.BookingRequest) { r.CustomerID = uuid.Nil }},
		{"missing service", func(r *booking.BookingRequest) { r.ServiceID = uuid.Nil }},
		{"bad selector", func(r *booking.BookingRequest) { r.Selector = "soon" }},
		{"notes too long", func(r *booking.BookingRequest) { r.Notes = strings.Repeat("x", booking.MaxNotesLength+1) }},
		{"missing time", func(r *booking.BookingRequest) { r.ScheduledAt = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request(f.barberID, "10:00")
			tt.mutate(&req)
			_, err := f.svc.BookAppointment(ctx, req)
			assert.ErrorIs(t, err, booking.ErrValidationFailed)
		})
	}
	assert.Empty(t, f.slotsFor(t, f.barberID))
}

func TestBookAppointment_UnknownSlotID(t *testing.T) {
	f := newFixture(t)

	req := f.request(f.barberID, "10:00")
	req.Selector = uuid.NewString()
	_, err := f.svc.BookAppointment(context.Background(), req)
	assert.ErrorIs(t, err, booking.ErrSlotNotFound)
}

func TestBookAppointment_ScheduledAtMustMatchSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	at := func(start string) time.Time {
		v, err := booking.At(f.day, start, time.UTC)
		require.NoError(t, err)
		return v
	}

	t.Run("virtual window", func(t *testing.T) {
		req := f.request(f.barberID, "09:00")
		req.ScheduledAt = at("16:00")
		_, err := f.svc.BookAppointment(ctx, req)
		assert.ErrorIs(t, err, booking.ErrValidationFailed)
		assert.Empty(t, f.slotsFor(t, f.barberID), "nothing is materialized for a mismatched time")
	})

	t.Run("stored slot", func(t *testing.T) {
		slot, err := f.svc.CreateSlot(ctx, booking.CreateSlotRequest{
			BarberID: f.barberID, SalonID: f.salonID, Date: f.day, StartTime: "15:00", EndTime: "17:00",
		})
		require.NoError(t, err)

		req := f.request(f.barberID, "15:00")
		req.Selector = slot.ID.String()
		req.ScheduledAt = at("09:00")
		_, err = f.svc.BookAppointment(ctx, req)
		assert.ErrorIs(t, err, booking.ErrValidationFailed)

		got, err := f.svc.GetSlot(ctx, slot.ID)
		require.NoError(t, err)
		assert.Equal(t, booking.SlotFree, got.State)
	})

	// The 16:00 window was never claimed, so it is still bookable.
	appt, err := f.svc.BookAppointment(ctx, f.request(f.barberID, "09:00"))
	require.NoError(t, err)
	assert.True(t, appt.ScheduledAt.Equal(at("09:00")))
}

func TestMaterializeOrFetch_ConcurrentCallersShareOneSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := booking.SlotKey{BarberID: f.barberID, SalonID: f.salonID, Date: f.day, StartTime: "12:00"}

	const callers = 20
	ids := make([]uuid.UUID, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slot, err := f.store.MaterializeOrFetch(ctx, key, "14:00")
			if err != nil {
				t.Errorf("materialize: %v", err)
				return
			}
			ids[i] = slot.ID
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, f.slotsFor(t, f.barberID), 1)
}

func TestBookAppointment_StoredSlotMismatchIsCompensated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot, err := f.svc.CreateSlot(ctx, booking.CreateSlotRequest{
		BarberID: f.barberID, SalonID: f.salonID, Date: f.day, StartTime: "15:00", EndTime: "17:00",
	})
	require.NoError(t, err)

	req := f.request(f.stylistID, "15:00")
	req.Selector = slot.ID.String()
	_, err = f.svc.BookAppointment(ctx, req)
	assert.ErrorIs(t, err, booking.ErrSlotMismatch)

	got, err := f.svc.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.SlotFree, got.State)

	req.BarberID = f.barberID
	_, err = f.svc.BookAppointment(ctx, req)
	assert.NoError(t, err)
}

func TestBookAppointment_CreateFailureReleasesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("appointments table unavailable")

	f.store.FailNextCreate(boom)
	_, err := f.svc.BookAppointment(ctx, f.request(f.barberID, "13:00"))
	require.ErrorIs(t, err, boom)

	slots := f.slotsFor(t, f.barberID)
	require.Len(t, slots, 1)
	assert.Equal(t, booking.SlotFree, slots[0].State)

	var compensated bool
	for _, ev := range f.store.Events() {
		if ev.EventType == booking.EventSlotCompensated {
			compensated = true
		}
	}
	assert.True(t, compensated)

	_, err = f.svc.BookAppointment(ctx, f.request(f.barberID, "13:00"))
	assert.NoError(t, err)
}

func TestBookAppointment_LinkFailureKeepsAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.FailNextAttach(errors.New("link write lost"))
	appt, err := f.svc.BookAppointment(ctx, f.request(f.barberID, "09:00"))
	require.NoError(t, err)

	stored, err := f.svc.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusScheduled, stored.Status)

	slot, err := f.svc.GetSlot(ctx, appt.SlotID)
	require.NoError(t, err)
	assert.Equal(t, booking.SlotReserved, slot.State)
	assert.Nil(t, slot.AppointmentID)
}

func TestBookAppointment_NotifierFailureDoesNotFailBooking(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("queue down")}
	f := newFixture(t, booking.WithNotifier(notifier))

	appt, err := f.svc.BookAppointment(context.Background(), f.request(f.barberID, "16:00"))
	require.NoError(t, err)

	f.svc.Wait()
	calls := notifier.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, appt.ID, calls[0].AppointmentID)
}

func TestBookAppointment_EventLogFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.store.FailEvents(errors.New("event_logs full"))

	_, err := f.svc.BookAppointment(context.Background(), f.request(f.barberID, "10:00"))
	assert.NoError(t, err)
}

func TestListAvailableWindows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	windows, err := f.svc.ListAvailableWindows(ctx, f.salonID, f.day, uuid.Nil)
	require.NoError(t, err)
	require.Len(t, windows, 9)
	assert.Len(t, windows[0].AvailableStaff, 2)

	_, err = f.svc.BookAppointment(ctx, f.request(f.barberID, "10:00"))
	require.NoError(t, err)

	windows, err = f.svc.ListAvailableWindows(ctx, f.salonID, f.day, uuid.Nil)
	require.NoError(t, err)
	for _, w := range windows {
		ids := make([]uuid.UUID, 0, len(w.AvailableStaff))
		for _, m := range w.AvailableStaff {
			ids = append(ids, m.ID)
		}
		switch w.StartTime {
		case "09:00", "10:00", "11:00":
			assert.Equal(t, []uuid.UUID{f.stylistID}, ids, w.StartTime)
		default:
			assert.Contains(t, ids, f.barberID, w.StartTime)
		}
	}

	filtered, err := f.svc.ListAvailableWindows(ctx, f.salonID, f.day, f.barberID)
	require.NoError(t, err)
	for _, w := range filtered {
		assert.NotContains(t, []string{"09:00", "10:00", "11:00"}, w.StartTime)
	}
}

func TestListAvailableWindows_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ListAvailableWindows(ctx, uuid.New(), f.day, uuid.Nil)
	assert.ErrorIs(t, err, booking.ErrSalonNotFound)

	_, err = f.svc.ListAvailableWindows(ctx, f.salonID, f.day, uuid.New())
	assert.ErrorIs(t, err, booking.ErrStaffNotFound)

	empty := uuid.New()
	f.store.AddSalon(booking.SalonHours{SalonID: empty, OpeningTime: "09:00", ClosingTime: "17:00"})
	_, err = f.svc.ListAvailableWindows(ctx, empty, f.day, uuid.Nil)
	assert.ErrorIs(t, err, booking.ErrNoStaffAvailable)
}

func TestCancelAppointment_ReleasesSlotForRebooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, f.request(f.barberID, "14:00"))
	require.NoError(t, err)

	windows, err := f.svc.ListAvailableWindows(ctx, f.salonID, f.day, f.barberID)
	require.NoError(t, err)
	assert.Nil(t, windowAt(windows, "14:00"))

	require.NoError(t, f.svc.CancelAppointment(ctx, appt.ID))
	require.NoError(t, f.svc.CancelAppointment(ctx, appt.ID), "cancel is idempotent")

	cancelled, err := f.svc.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, cancelled.Status)
	assert.Equal(t, booking.PaymentCancelled, cancelled.PaymentStatus)

	slot, err := f.svc.GetSlot(ctx, appt.SlotID)
	require.NoError(t, err)
	assert.Equal(t, booking.SlotFree, slot.State)
	assert.Nil(t, slot.AppointmentID)

	windows, err = f.svc.ListAvailableWindows(ctx, f.salonID, f.day, f.barberID)
	require.NoError(t, err)
	reopened := windowAt(windows, "14:00")
	require.NotNil(t, reopened, "cancelled window is listed again")
	require.Len(t, reopened.AvailableStaff, 1)
	assert.Equal(t, f.barberID, reopened.AvailableStaff[0].ID)

	again, err := f.svc.BookAppointment(ctx, f.request(f.barberID, "14:00"))
	require.NoError(t, err)
	assert.Equal(t, appt.SlotID, again.SlotID)
}

func windowAt(windows []booking.Window, start string) *booking.Window {
	for i := range windows {
		if windows[i].StartTime == start {
			return &windows[i]
		}
	}
	return nil
}

func TestCancelAppointment_CompletedIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, f.request(f.barberID, "14:00"))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, booking.StatusCompleted)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.CancelAppointment(ctx, appt.ID), booking.ErrInvalidStatusTransition)

	slot, err := f.svc.GetSlot(ctx, appt.SlotID)
	require.NoError(t, err)
	assert.Equal(t, booking.SlotReserved, slot.State, "completed appointments keep their slot")

	assert.ErrorIs(t, f.svc.CancelAppointment(ctx, uuid.New()), booking.ErrAppointmentNotFound)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, f.request(f.barberID, "14:00"))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, booking.AppointmentStatus("archived"))
	assert.ErrorIs(t, err, booking.ErrValidationFailed)

	updated, err := f.svc.UpdateStatus(ctx, appt.ID, booking.StatusNoShow)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusNoShow, updated.Status)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, booking.StatusCompleted)
	assert.ErrorIs(t, err, booking.ErrInvalidStatusTransition)
}

func TestConfirmPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, f.request(f.barberID, "14:00"))
	require.NoError(t, err)

	paid, err := f.svc.ConfirmPayment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.PaymentPaid, paid.PaymentStatus)

	again, err := f.svc.ConfirmPayment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.PaymentPaid, again.PaymentStatus)

	_, err = f.svc.ConfirmPayment(ctx, uuid.New())
	assert.ErrorIs(t, err, booking.ErrAppointmentNotFound)
}

func TestSlotManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := booking.CreateSlotRequest{BarberID: f.barberID, SalonID: f.salonID, Date: f.day, StartTime: "9:00", EndTime: "11:00"}
	slot, err := f.svc.CreateSlot(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "09:00", slot.StartTime)
	assert.Equal(t, "Tuesday", slot.DayOfWeek)

	_, err = f.svc.CreateSlot(ctx, req)
	assert.ErrorIs(t, err, booking.ErrSlotExists)

	_, err = f.svc.CreateSlot(ctx, booking.CreateSlotRequest{BarberID: uuid.New(), SalonID: f.salonID, Date: f.day, StartTime: "09:00", EndTime: "11:00"})
	assert.ErrorIs(t, err, booking.ErrStaffNotFound)

	_, err = f.svc.CreateSlot(ctx, booking.CreateSlotRequest{BarberID: f.barberID, SalonID: f.salonID, Date: f.day, StartTime: "12:00", EndTime: "11:00"})
	assert.ErrorIs(t, err, booking.ErrValidationFailed)

	appt, err := f.svc.BookAppointment(ctx, f.request(f.barberID, "09:00"))
	require.NoError(t, err)
	assert.Equal(t, slot.ID, appt.SlotID, "virtual booking reuses the stored slot")

	assert.ErrorIs(t, f.svc.DeleteSlot(ctx, slot.ID), booking.ErrSlotInUse)
	require.NoError(t, f.svc.CancelAppointment(ctx, appt.ID))
	require.NoError(t, f.svc.DeleteSlot(ctx, slot.ID))
	assert.ErrorIs(t, f.svc.DeleteSlot(ctx, slot.ID), booking.ErrSlotNotFound)
}

func TestCheckAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.BookAppointment(ctx, f.request(f.barberID, "10:00"))
	require.NoError(t, err)

	busy, err := f.svc.CheckAvailability(ctx, f.barberID, f.day, "11:00", "12:00")
	require.NoError(t, err)
	assert.False(t, busy.Available)
	require.Len(t, busy.Conflicts, 1)
	assert.Equal(t, "10:00", busy.Conflicts[0].StartTime)

	free, err := f.svc.CheckAvailability(ctx, f.barberID, f.day, "12:00", "14:00")
	require.NoError(t, err)
	assert.True(t, free.Available)
	assert.Empty(t, free.Conflicts)

	_, err = f.svc.CheckAvailability(ctx, f.barberID, f.day, "14:00", "12:00")
	assert.ErrorIs(t, err, booking.ErrValidationFailed)
}

func TestListAppointments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.request(f.barberID, "09:00")
	_, err := f.svc.BookAppointment(ctx, first)
	require.NoError(t, err)
	second := f.request(f.barberID, "13:00")
	second.CustomerID = first.CustomerID
	_, err = f.svc.BookAppointment(ctx, second)
	require.NoError(t, err)
	_, err = f.svc.BookAppointment(ctx, f.request(f.stylistID, "09:00"))
	require.NoError(t, err)

	mine, err := f.svc.ListAppointments(ctx, booking.AppointmentFilter{CustomerID: &first.CustomerID})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.True(t, mine[0].ScheduledAt.After(mine[1].ScheduledAt), "newest first")

	page, err := f.svc.ListAppointments(ctx, booking.AppointmentFilter{SalonID: &f.salonID, Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestReclaimOrphans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Unlinked but backed by a live appointment.
	f.store.FailNextAttach(errors.New("link write lost"))
	appt, err := f.svc.BookAppointment(ctx, f.request(f.barberID, "09:00"))
	require.NoError(t, err)

	// Reserved by a caller that never created an appointment.
	abandoned, err := f.store.MaterializeOrFetch(ctx, booking.SlotKey{
		BarberID: f.stylistID, SalonID: f.salonID, Date: f.day, StartTime: "15:00",
	}, "17:00")
	require.NoError(t, err)
	_, err = f.store.ReserveIfFree(ctx, abandoned.ID)
	require.NoError(t, err)

	report, err := f.svc.ReclaimOrphans(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, report.Scanned, "reservations inside the grace period are left alone")

	f.clock.Advance(10 * time.Minute)
	report, err = f.svc.ReclaimOrphans(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, booking.ReclaimReport{Scanned: 2, Relinked: 1, Released: 1}, report)

	linked, err := f.svc.GetSlot(ctx, appt.SlotID)
	require.NoError(t, err)
	require.NotNil(t, linked.AppointmentID)
	assert.Equal(t, appt.ID, *linked.AppointmentID)

	freed, err := f.svc.GetSlot(ctx, abandoned.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.SlotFree, freed.State)
}
