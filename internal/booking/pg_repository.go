package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
	pgExclusionViolation  = "23P01"

	maxMaterializeAttempts = 3
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var slotColumns = []string{
	"id", "barber_id", "salon_id", "slot_date", "day_of_week",
	"start_time", "end_time", "state", "appointment_id", "reserved_at",
	"created_at", "updated_at",
}

var appointmentColumns = []string{
	"id", "customer_id", "barber_id", "salon_id", "service_id", "slot_id",
	"scheduled_at", "status", "payment_status", "notes", "created_at", "updated_at",
}

const (
	slotReturning = `RETURNING id, barber_id, salon_id, slot_date, day_of_week, start_time, end_time,
		state, appointment_id, reserved_at, created_at, updated_at`
	appointmentReturning = `RETURNING id, customer_id, barber_id, salon_id, service_id, slot_id,
		scheduled_at, status, payment_status, notes, created_at, updated_at`
)

// PgRepository implements SlotStore, AppointmentStore and Directory on Postgres.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(
		&s.ID,
		&s.BarberID,
		&s.SalonID,
		&s.Date,
		&s.DayOfWeek,
		&s.StartTime,
		&s.EndTime,
		&s.State,
		&s.AppointmentID,
		&s.ReservedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	s.Date = DateOf(s.Date)
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.CustomerID,
		&a.BarberID,
		&a.SalonID,
		&a.ServiceID,
		&a.SlotID,
		&a.ScheduledAt,
		&a.Status,
		&a.PaymentStatus,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func collectSlots(rows pgx.Rows) ([]Slot, error) {
	defer rows.Close()

	result := []Slot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func pgCode(err error) (string, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

func slotBounds(key SlotKey, endTime string) (string, string, int, int, error) {
	start, err := ParseClock(key.StartTime)
	if err != nil {
		return "", "", 0, 0, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	end, err := ParseClock(endTime)
	if err != nil {
		return "", "", 0, 0, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	if end <= start {
		return "", "", 0, 0, fmt.Errorf("%w: end time must be after start time", ErrValidationFailed)
	}
	return FormatClock(start), FormatClock(end), start, end, nil
}

// slotExists separates "already reserved" from "no such slot" after a missed update.
func (r *PgRepository) slotExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schedule_slots WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// Slots

func (r *PgRepository) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	q, args, err := psql.Select(slotColumns...).From("schedule_slots").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build slot query: %w", err)
	}
	return scanSlot(r.pool.QueryRow(ctx, q, args...))
}

func (r *PgRepository) getSlotByKey(ctx context.Context, key SlotKey) (*Slot, error) {
	q, args, err := psql.Select(slotColumns...).From("schedule_slots").
		Where(sq.Eq{
			"barber_id":  key.BarberID,
			"salon_id":   key.SalonID,
			"slot_date":  DateOf(key.Date),
			"start_time": key.StartTime,
		}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build slot query: %w", err)
	}
	return scanSlot(r.pool.QueryRow(ctx, q, args...))
}

func (r *PgRepository) insertSlot(ctx context.Context, key SlotKey, endTime string, onConflict string) (*Slot, error) {
	startTime, endTime, startMin, endMin, err := slotBounds(key, endTime)
	if err != nil {
		return nil, err
	}
	date := DateOf(key.Date)

	row := r.pool.QueryRow(ctx, `
		INSERT INTO schedule_slots (id, barber_id, salon_id, slot_date, day_of_week, start_time, end_time,
			start_minute, end_minute, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'free', now(), now())
		`+onConflict+`
		`+slotReturning,
		uuid.New(), key.BarberID, key.SalonID, date, date.Weekday().String(),
		startTime, endTime, startMin, endMin)
	return scanSlot(row)
}

func (r *PgRepository) MaterializeOrFetch(ctx context.Context, key SlotKey, endTime string) (*Slot, error) {
	start, err := NormalizeClock(key.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	key.StartTime = start

	for attempt := 0; attempt < maxMaterializeAttempts; attempt++ {
		slot, err := r.insertSlot(ctx, key, endTime, "ON CONFLICT ON CONSTRAINT schedule_slots_key DO NOTHING")
		if err == nil {
			return slot, nil
		}
		if !errors.Is(err, ErrSlotNotFound) {
			return nil, fmt.Errorf("materialize slot: %w", err)
		}

		// Another writer owns the key; read its record.
		slot, err = r.getSlotByKey(ctx, key)
		if err == nil {
			return slot, nil
		}
		if !errors.Is(err, ErrSlotNotFound) {
			return nil, fmt.Errorf("fetch slot by key: %w", err)
		}
		// The winner was deleted between statements; insert again.
	}
	return nil, fmt.Errorf("materialize slot after %d attempts: %w", maxMaterializeAttempts, ErrSlotNotFound)
}

func (r *PgRepository) CreateSlot(ctx context.Context, key SlotKey, endTime string) (*Slot, error) {
	slot, err := r.insertSlot(ctx, key, endTime, "")
	if err != nil {
		switch code, _ := pgCode(err); code {
		case pgUniqueViolation:
			return nil, ErrSlotExists
		case pgForeignKeyViolation, pgCheckViolation:
			return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}
		return nil, fmt.Errorf("create slot: %w", err)
	}
	return slot, nil
}

func (r *PgRepository) ReserveIfFree(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE schedule_slots
		SET state = 'reserved',
		    reserved_at = now(),
		    updated_at = now()
		WHERE id = $1
		  AND state = 'free'
		`+slotReturning, id)

	slot, err := scanSlot(row)
	if err == nil {
		return slot, nil
	}
	if code, _ := pgCode(err); code == pgExclusionViolation {
		return nil, ErrAlreadyBooked
	}
	if !errors.Is(err, ErrSlotNotFound) {
		return nil, fmt.Errorf("reserve slot: %w", err)
	}

	exists, err := r.slotExists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("check slot: %w", err)
	}
	if exists {
		return nil, ErrAlreadyBooked
	}
	return nil, ErrSlotNotFound
}

func (r *PgRepository) Release(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE schedule_slots
		SET state = 'free',
		    appointment_id = NULL,
		    reserved_at = NULL,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *PgRepository) ReleaseHeldBy(ctx context.Context, id, appointmentID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE schedule_slots
		SET state = 'free',
		    appointment_id = NULL,
		    reserved_at = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND state = 'reserved'
		  AND (appointment_id = $2 OR appointment_id IS NULL)
	`, id, appointmentID)
	if err != nil {
		return false, fmt.Errorf("release slot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) AttachAppointment(ctx context.Context, slotID, appointmentID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE schedule_slots
		SET appointment_id = $2,
		    updated_at = now()
		WHERE id = $1
		  AND state = 'reserved'
	`, slotID, appointmentID)
	if err != nil {
		return fmt.Errorf("attach appointment: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	exists, err := r.slotExists(ctx, slotID)
	if err != nil {
		return fmt.Errorf("check slot: %w", err)
	}
	if exists {
		return ErrSlotNotReserved
	}
	return ErrSlotNotFound
}

func (r *PgRepository) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedule_slots WHERE id = $1 AND state = 'free'`, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	exists, err := r.slotExists(ctx, id)
	if err != nil {
		return fmt.Errorf("check slot: %w", err)
	}
	if exists {
		return ErrSlotInUse
	}
	return ErrSlotNotFound
}

func (r *PgRepository) ListSlots(ctx context.Context, f SlotFilter) ([]Slot, error) {
	qb := psql.Select(slotColumns...).From("schedule_slots").OrderBy("slot_date", "start_minute", "barber_id")
	if f.BarberID != nil {
		qb = qb.Where(sq.Eq{"barber_id": *f.BarberID})
	}
	if f.SalonID != nil {
		qb = qb.Where(sq.Eq{"salon_id": *f.SalonID})
	}
	if f.Date != nil {
		qb = qb.Where(sq.Eq{"slot_date": DateOf(*f.Date)})
	}
	if f.State != nil {
		qb = qb.Where(sq.Eq{"state": string(*f.State)})
	}

	q, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build slot list query: %w", err)
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return collectSlots(rows)
}

func (r *PgRepository) ListReservations(ctx context.Context, salonID uuid.UUID, date time.Time) ([]Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT barber_id, start_time, end_time
		FROM schedule_slots
		WHERE salon_id = $1
		  AND slot_date = $2
		  AND state = 'reserved'
	`, salonID, DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	result := []Reservation{}
	for rows.Next() {
		var res Reservation
		if err := rows.Scan(&res.StaffID, &res.StartTime, &res.EndTime); err != nil {
			return nil, err
		}
		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) FindOrphanedReservations(ctx context.Context, reservedBefore time.Time) ([]Slot, error) {
	q, args, err := psql.Select(slotColumns...).From("schedule_slots").
		Where(sq.Eq{"state": string(SlotReserved), "appointment_id": nil}).
		Where(sq.Lt{"reserved_at": reservedBefore}).
		OrderBy("reserved_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build orphan query: %w", err)
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("find orphaned reservations: %w", err)
	}
	return collectSlots(rows)
}

// Appointments

func (r *PgRepository) CreateAppointment(ctx context.Context, in NewAppointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, customer_id, barber_id, salon_id, service_id, slot_id,
			scheduled_at, status, payment_status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'scheduled', 'pending', $8, now(), now())
		`+appointmentReturning,
		uuid.New(), in.CustomerID, in.BarberID, in.SalonID, in.ServiceID, in.SlotID, in.ScheduledAt, in.Notes)

	appt, err := scanAppointment(row)
	if err != nil {
		switch code, constraint := pgCode(err); code {
		case pgForeignKeyViolation, pgCheckViolation, pgNotNullViolation:
			return nil, fmt.Errorf("%w: violates %s", ErrValidationFailed, constraint)
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return appt, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	q, args, err := psql.Select(appointmentColumns...).From("appointments").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build appointment query: %w", err)
	}
	return scanAppointment(r.pool.QueryRow(ctx, q, args...))
}

func (r *PgRepository) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	qb := psql.Select(appointmentColumns...).From("appointments").OrderBy("scheduled_at DESC")
	if f.CustomerID != nil {
		qb = qb.Where(sq.Eq{"customer_id": *f.CustomerID})
	}
	if f.BarberID != nil {
		qb = qb.Where(sq.Eq{"barber_id": *f.BarberID})
	}
	if f.SalonID != nil {
		qb = qb.Where(sq.Eq{"salon_id": *f.SalonID})
	}
	if f.Limit > 0 {
		qb = qb.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		qb = qb.Offset(uint64(f.Offset))
	}

	q, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build appointment list query: %w", err)
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		`+appointmentReturning, id, to, from)
	return scanAppointment(row)
}

func (r *PgRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to PaymentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET payment_status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND payment_status = $3
		`+appointmentReturning, id, to, from)
	return scanAppointment(row)
}

func (r *PgRepository) MarkCancelled(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    payment_status = CASE WHEN payment_status = 'pending' THEN 'cancelled' ELSE payment_status END,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'scheduled'
		`+appointmentReturning, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindActiveAppointmentForSlot(ctx context.Context, slotID uuid.UUID) (*Appointment, error) {
	q, args, err := psql.Select(appointmentColumns...).From("appointments").
		Where(sq.Eq{"slot_id": slotID}).
		Where(sq.NotEq{"status": string(StatusCancelled)}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build active appointment query: %w", err)
	}
	return scanAppointment(r.pool.QueryRow(ctx, q, args...))
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, slot_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.AppointmentID, ev.SlotID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

// Directory

func (r *PgRepository) GetSalonHours(ctx context.Context, salonID uuid.UUID) (*SalonHours, error) {
	var opening, closing *string
	err := r.pool.QueryRow(ctx, `
		SELECT opening_time, closing_time
		FROM salons
		WHERE id = $1
	`, salonID).Scan(&opening, &closing)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSalonNotFound
		}
		return nil, fmt.Errorf("load salon hours: %w", err)
	}

	h := &SalonHours{SalonID: salonID}
	if opening != nil {
		h.OpeningTime = *opening
	}
	if closing != nil {
		h.ClosingTime = *closing
	}
	return h, nil
}

func (r *PgRepository) ListBarbers(ctx context.Context, salonID uuid.UUID) ([]Barber, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, salon_id, first_name, last_name, specialty,
		       experience_years, rating::float8, total_reviews
		FROM barbers
		WHERE salon_id = $1
		ORDER BY created_at, id
	`, salonID)
	if err != nil {
		return nil, fmt.Errorf("list barbers: %w", err)
	}
	defer rows.Close()

	result := []Barber{}
	for rows.Next() {
		var b Barber
		if err := rows.Scan(&b.ID, &b.UserID, &b.SalonID, &b.FirstName, &b.LastName, &b.Specialty,
			&b.ExperienceYears, &b.Rating, &b.TotalReviews); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) ListActiveStaff(ctx context.Context, salonID uuid.UUID) ([]SalonStaff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, salon_id, barber_id, first_name, last_name, is_active
		FROM salon_staff
		WHERE salon_id = $1
		  AND is_active
		ORDER BY created_at, id
	`, salonID)
	if err != nil {
		return nil, fmt.Errorf("list salon staff: %w", err)
	}
	defer rows.Close()

	result := []SalonStaff{}
	for rows.Next() {
		var s SalonStaff
		if err := rows.Scan(&s.ID, &s.UserID, &s.SalonID, &s.BarberID, &s.FirstName, &s.LastName, &s.IsActive); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

var (
	_ SlotStore        = (*PgRepository)(nil)
	_ AppointmentStore = (*PgRepository)(nil)
	_ Directory        = (*PgRepository)(nil)
)
