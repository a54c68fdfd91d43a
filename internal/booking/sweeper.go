package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type ReclaimReport struct {
	Scanned  int
	Relinked int
	Released int
	Failed   int
}

// ReclaimOrphans repairs reservations left without an appointment link for
// longer than grace. A slot with a live appointment is re-linked; any other
// is released so it can be booked again.
func (s *Service) ReclaimOrphans(ctx context.Context, grace time.Duration) (ReclaimReport, error) {
	var report ReclaimReport

	orphans, err := s.slots.FindOrphanedReservations(ctx, s.now().Add(-grace))
	if err != nil {
		return report, fmt.Errorf("find orphaned reservations: %w", err)
	}
	report.Scanned = len(orphans)

	for _, slot := range orphans {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		log := s.logger.With(slog.String("slot_id", slot.ID.String()))

		appt, err := s.appts.FindActiveAppointmentForSlot(ctx, slot.ID)
		switch {
		case err == nil:
			if err := s.slots.AttachAppointment(ctx, slot.ID, appt.ID); err != nil {
				log.Warn("relink orphaned reservation", slog.Any("error", err))
				report.Failed++
				continue
			}
			report.Relinked++
			s.metrics.OrphanHandled("relinked")
			s.logEvent(ctx, EventOrphanRelinked, &appt.ID, &slot.ID, map[string]any{})

		case errors.Is(err, ErrAppointmentNotFound):
			// uuid.Nil limits the release to reservations that are still unlinked.
			released, err := s.slots.ReleaseHeldBy(ctx, slot.ID, uuid.Nil)
			if err != nil {
				log.Warn("release orphaned reservation", slog.Any("error", err))
				report.Failed++
				continue
			}
			if !released {
				continue
			}
			report.Released++
			s.metrics.OrphanHandled("released")
			s.logEvent(ctx, EventOrphanReleased, nil, &slot.ID, map[string]any{
				"reserved_at": slot.ReservedAt,
			})

		default:
			log.Warn("look up appointment for orphaned reservation", slog.Any("error", err))
			report.Failed++
		}
	}

	if report.Scanned > 0 {
		s.logger.Info("orphan sweep finished",
			slog.Int("scanned", report.Scanned),
			slog.Int("relinked", report.Relinked),
			slog.Int("released", report.Released),
			slog.Int("failed", report.Failed),
		)
	}
	return report, nil
}
