package main

import (
	"log/slog"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/hackgods/salon-slot-booking/internal/booking"
	"github.com/hackgods/salon-slot-booking/internal/memstore"
)

// seedDemo gives the in-memory store one salon with two barbers and a
// stylist so the API is usable without Postgres.
func seedDemo(store *memstore.Store, logger *slog.Logger) {
	faker := gofakeit.New(0)
	salonID := uuid.New()

	store.AddSalon(booking.SalonHours{SalonID: salonID, OpeningTime: "09:00", ClosingTime: "19:00"})

	for i := 0; i < 2; i++ {
		b := booking.Barber{
			ID:              uuid.New(),
			UserID:          uuid.New(),
			SalonID:         salonID,
			FirstName:       faker.FirstName(),
			LastName:        faker.LastName(),
			Specialty:       "Classic Cuts",
			ExperienceYears: faker.Number(1, 20),
		}
		store.AddBarber(b)
		logger.Info("demo barber", slog.String("barber_id", b.ID.String()), slog.String("name", b.FirstName))
	}

	store.AddStaff(booking.SalonStaff{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		SalonID:   salonID,
		FirstName: faker.FirstName(),
		LastName:  faker.LastName(),
		IsActive:  true,
	})

	logger.Info("demo salon ready", slog.String("salon_id", salonID.String()))
}
