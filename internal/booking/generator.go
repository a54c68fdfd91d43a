package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type GenerateInput struct {
	Hours    *SalonHours
	Date     time.Time
	Now      time.Time
	Location *time.Location
	Roster   []StaffMember
	Reserved []Reservation
}

type interval struct {
	start, end int
}

// GenerateWindows derives bookable windows for one salon day. It is pure: the
// same input always yields the same windows in ascending start order.
func GenerateWindows(in GenerateInput) ([]Window, error) {
	if len(in.Roster) == 0 {
		return nil, ErrNoStaffAvailable
	}
	if in.Hours == nil || in.Hours.OpeningTime == "" || in.Hours.ClosingTime == "" {
		return []Window{}, nil
	}

	open, err := ParseClock(in.Hours.OpeningTime)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %v", ErrInvalidSalonHours, err)
	}
	closing, err := ParseClock(in.Hours.ClosingTime)
	if err != nil {
		return nil, fmt.Errorf("%w: closing %v", ErrInvalidSalonHours, err)
	}

	busy, err := indexReservations(in.Reserved)
	if err != nil {
		return nil, err
	}

	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	date := DateOf(in.Date)
	cutoff := in.Now.Add(BookingBuffer)
	step := int(WindowStep / time.Minute)
	length := int(SlotDuration / time.Minute)

	windows := []Window{}
	for start := open; start < closing; start += step {
		end := start + length
		if end > closing {
			break
		}

		y, m, d := date.Date()
		startsAt := time.Date(y, m, d, start/60, start%60, 0, 0, loc)
		if startsAt.Before(cutoff) {
			continue
		}

		available := make([]StaffMember, 0, len(in.Roster))
		for _, member := range in.Roster {
			if !conflicts(busy[member.ID], start, end) {
				available = append(available, member)
			}
		}
		if len(available) == 0 {
			continue
		}

		startTime := FormatClock(start)
		windows = append(windows, Window{
			Date:           date,
			StartTime:      startTime,
			EndTime:        FormatClock(end),
			Segment:        SegmentFor(start),
			AvailableStaff: available,
			Selector:       VirtualSelector(startTime),
		})
	}
	return windows, nil
}

func indexReservations(reserved []Reservation) (map[uuid.UUID][]interval, error) {
	busy := make(map[uuid.UUID][]interval, len(reserved))
	for _, r := range reserved {
		start, err := ParseClock(r.StartTime)
		if err != nil {
			return nil, fmt.Errorf("reservation for %s: %w", r.StaffID, err)
		}
		end, err := ParseClock(r.EndTime)
		if err != nil {
			return nil, fmt.Errorf("reservation for %s: %w", r.StaffID, err)
		}
		busy[r.StaffID] = append(busy[r.StaffID], interval{start: start, end: end})
	}
	return busy, nil
}

func conflicts(busy []interval, start, end int) bool {
	for _, iv := range busy {
		if overlaps(iv.start, iv.end, start, end) {
			return true
		}
	}
	return false
}
