package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// salons, barbers, salon_staff, services and customers are owned by the wider
// platform; they are created here so a fresh database can run the core alone.
const schemaSQL = `
CREATE EXTENSION IF NOT EXISTS btree_gist;

CREATE TABLE IF NOT EXISTS salons (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	opening_time TEXT,
	closing_time TEXT,
	rating NUMERIC(2,1) NOT NULL DEFAULT 0,
	total_reviews INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS customers (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS barbers (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	salon_id UUID NOT NULL REFERENCES salons(id),
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	specialty TEXT NOT NULL,
	experience_years INTEGER NOT NULL DEFAULT 0 CHECK (experience_years >= 0),
	rating NUMERIC(2,1) NOT NULL DEFAULT 0 CHECK (rating >= 0 AND rating <= 5),
	total_reviews INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS salon_staff (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	salon_id UUID NOT NULL REFERENCES salons(id),
	barber_id UUID REFERENCES barbers(id),
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS services (
	id UUID PRIMARY KEY,
	salon_id UUID NOT NULL REFERENCES salons(id),
	name TEXT NOT NULL,
	price NUMERIC(10,2) NOT NULL DEFAULT 0,
	duration_minutes INTEGER NOT NULL DEFAULT 120,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- barber_id may reference either a barber or a generic stylist (salon_staff.id),
-- so it carries no foreign key.
CREATE TABLE IF NOT EXISTS schedule_slots (
	id UUID PRIMARY KEY,
	barber_id UUID NOT NULL,
	salon_id UUID NOT NULL REFERENCES salons(id),
	slot_date DATE NOT NULL,
	day_of_week TEXT NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL,
	start_minute INTEGER NOT NULL CHECK (start_minute >= 0 AND start_minute < 1440),
	end_minute INTEGER NOT NULL CHECK (end_minute > start_minute AND end_minute <= 1440),
	state TEXT NOT NULL DEFAULT 'free' CHECK (state IN ('free', 'reserved')),
	appointment_id UUID,
	reserved_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT schedule_slots_key UNIQUE (barber_id, salon_id, slot_date, start_time),
	CHECK (state = 'reserved' OR appointment_id IS NULL),
	CONSTRAINT schedule_slots_no_overlap EXCLUDE USING gist (
		barber_id WITH =,
		slot_date WITH =,
		int4range(start_minute, end_minute) WITH &&
	) WHERE (state = 'reserved')
);

CREATE INDEX IF NOT EXISTS idx_schedule_slots_salon_date ON schedule_slots(salon_id, slot_date) WHERE state = 'reserved';
CREATE INDEX IF NOT EXISTS idx_schedule_slots_orphans ON schedule_slots(reserved_at) WHERE state = 'reserved' AND appointment_id IS NULL;

CREATE TABLE IF NOT EXISTS appointments (
	id UUID PRIMARY KEY,
	customer_id UUID NOT NULL REFERENCES customers(id),
	barber_id UUID NOT NULL,
	salon_id UUID NOT NULL REFERENCES salons(id),
	service_id UUID NOT NULL REFERENCES services(id),
	slot_id UUID NOT NULL,
	scheduled_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL DEFAULT 'scheduled' CHECK (status IN ('scheduled', 'completed', 'cancelled', 'no-show')),
	payment_status TEXT NOT NULL DEFAULT 'pending' CHECK (payment_status IN ('pending', 'paid', 'cancelled', 'refunded')),
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_appointments_slot ON appointments(slot_id);
CREATE INDEX IF NOT EXISTS idx_appointments_customer ON appointments(customer_id, scheduled_at DESC);

CREATE TABLE IF NOT EXISTS event_logs (
	id BIGSERIAL PRIMARY KEY,
	event_type TEXT NOT NULL,
	appointment_id UUID,
	slot_id UUID,
	payload JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
