package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/salon-slot-booking/internal/booking"
	"github.com/hackgods/salon-slot-booking/internal/db"
)

var specialties = []string{
	"Fades",
	"Beard Trims",
	"Classic Cuts",
	"Hot Towel Shaves",
	"Braids",
	"Colouring",
	"Kids Cuts",
}

var hours = [][2]string{
	{"08:00", "18:00"},
	{"09:00", "19:00"},
	{"10:00", "20:00"},
	{"09:00", "17:00"},
}

var serviceNames = []string{"Haircut", "Haircut & Beard", "Shave", "Colour", "Styling"}

type seeded struct {
	salonID   uuid.UUID
	barberIDs []uuid.UUID
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	logger.Info("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Error("POSTGRES_DSN is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("migrate", slog.Any("error", err))
		os.Exit(1)
	}

	faker := gofakeit.New(0)

	salons, err := seedSalons(ctx, pool, faker, 20)
	if err != nil {
		logger.Error("seed salons", slog.Any("error", err))
		os.Exit(1)
	}
	if err := seedCustomers(ctx, pool, faker, 2000); err != nil {
		logger.Error("seed customers", slog.Any("error", err))
		os.Exit(1)
	}

	first := salons[0]
	logger.Info("seed complete",
		slog.Int("salons", len(salons)),
		slog.String("sample_salon_id", first.salonID.String()),
		slog.String("sample_barber_id", first.barberIDs[0].String()),
	)
}

// seedSalons writes each salon with its barbers, staff and services in one
// transaction so a partial salon never becomes visible.
func seedSalons(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int) ([]seeded, error) {
	slog.Info("seeding salons", slog.Int("count", count))

	out := make([]seeded, 0, count)
	for i := 0; i < count; i++ {
		s, err := seedSalon(ctx, pool, faker)
		if err != nil {
			return nil, fmt.Errorf("salon %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func seedSalon(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker) (seeded, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return seeded{}, err
	}
	defer tx.Rollback(ctx)

	s := seeded{salonID: uuid.New()}
	h := hours[faker.Number(0, len(hours)-1)]

	if _, err := tx.Exec(ctx, `
		INSERT INTO salons (id, name, opening_time, closing_time, created_at)
		VALUES ($1, $2, $3, $4, now())
	`, s.salonID, faker.Company()+" Barbers", h[0], h[1]); err != nil {
		return seeded{}, err
	}

	barbers := faker.Number(2, 5)
	for i := 0; i < barbers; i++ {
		id, err := insertBarber(ctx, tx, faker, s.salonID)
		if err != nil {
			return seeded{}, err
		}
		s.barberIDs = append(s.barberIDs, id)

		// Most barbers also appear on the staff list, which the roster merge drops.
		if faker.Number(0, 3) > 0 {
			if err := insertStaff(ctx, tx, faker, s.salonID, &id); err != nil {
				return seeded{}, err
			}
		}
	}

	stylists := faker.Number(0, 3)
	for i := 0; i < stylists; i++ {
		if err := insertStaff(ctx, tx, faker, s.salonID, nil); err != nil {
			return seeded{}, err
		}
	}

	for _, name := range serviceNames {
		if _, err := tx.Exec(ctx, `
			INSERT INTO services (id, salon_id, name, price, duration_minutes, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
		`, uuid.New(), s.salonID, name, faker.Price(15, 90), int(booking.SlotDuration/time.Minute)); err != nil {
			return seeded{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return seeded{}, err
	}
	return s, nil
}

func insertBarber(ctx context.Context, tx pgx.Tx, faker *gofakeit.Faker, salonID uuid.UUID) (uuid.UUID, error) {
	reviews := make([]int, faker.Number(0, 40))
	for i := range reviews {
		reviews[i] = faker.Number(1, 5)
	}
	rating := booking.RecomputeRating(reviews)

	id := uuid.New()
	_, err := tx.Exec(ctx, `
		INSERT INTO barbers (id, user_id, salon_id, first_name, last_name, specialty,
			experience_years, rating, total_reviews, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
	`, id, uuid.New(), salonID, faker.FirstName(), faker.LastName(),
		specialties[faker.Number(0, len(specialties)-1)], faker.Number(0, 25),
		rating.Average, rating.Total)
	return id, err
}

func insertStaff(ctx context.Context, tx pgx.Tx, faker *gofakeit.Faker, salonID uuid.UUID, barberID *uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO salon_staff (id, user_id, salon_id, barber_id, first_name, last_name, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	`, uuid.New(), uuid.New(), salonID, barberID, faker.FirstName(), faker.LastName(), faker.Number(0, 9) > 0)
	return err
}

func seedCustomers(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int) error {
	slog.Info("seeding customers", slog.Int("count", count))

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO customers (id, name, email, created_at)
				VALUES ($1, $2, $3, now())
			`, uuid.New(), faker.Name(), faker.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		slog.Info("customers seeded", slog.Int("done", end), slog.Int("total", count))
	}

	return nil
}
