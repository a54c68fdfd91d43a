package booking

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testDay = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	longAgo = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
)

func hours(open, close string) *SalonHours {
	return &SalonHours{SalonID: uuid.New(), OpeningTime: open, ClosingTime: close}
}

func member(kind StaffKind, name string) StaffMember {
	return StaffMember{Kind: kind, ID: uuid.New(), UserID: uuid.New(), FirstName: name}
}

func starts(ws []Window) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.StartTime)
	}
	return out
}

func TestGenerateWindows_StepsHourlyWithinHours(t *testing.T) {
	a := member(KindBarber, "Ana")

	windows, err := GenerateWindows(GenerateInput{
		Hours:  hours("09:00", "17:00"),
		Date:   testDay,
		Now:    longAgo,
		Roster: []StaffMember{a},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00"}, starts(windows))
	last := windows[len(windows)-1]
	assert.Equal(t, "17:00", last.EndTime)
	assert.Equal(t, "virtual-15:00", last.Selector)
	assert.Equal(t, testDay, last.Date)
}

func TestGenerateWindows_Segments(t *testing.T) {
	windows, err := GenerateWindows(GenerateInput{
		Hours:  hours("08:00", "21:00"),
		Date:   testDay,
		Now:    longAgo,
		Roster: []StaffMember{member(KindBarber, "Ana")},
	})
	require.NoError(t, err)

	bySegment := map[string]Segment{}
	for _, w := range windows {
		bySegment[w.StartTime] = w.Segment
	}
	assert.Equal(t, SegmentMorning, bySegment["11:00"])
	assert.Equal(t, SegmentAfternoon, bySegment["12:00"])
	assert.Equal(t, SegmentAfternoon, bySegment["16:00"])
	assert.Equal(t, SegmentEvening, bySegment["17:00"])
	assert.Equal(t, SegmentEvening, bySegment["19:00"])
}

func TestGenerateWindows_BufferBoundaryIsInclusive(t *testing.T) {
	// Exactly 12h before 10:00.
	now := testDay.Add(-2 * time.Hour)

	windows, err := GenerateWindows(GenerateInput{
		Hours:  hours("09:00", "13:00"),
		Date:   testDay,
		Now:    now,
		Roster: []StaffMember{member(KindBarber, "Ana")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "11:00"}, starts(windows))
}

func TestGenerateWindows_BufferUsesSalonZone(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	// 09:00 in UTC+3 is 06:00 UTC; now is exactly 12h earlier.
	now := time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC)

	windows, err := GenerateWindows(GenerateInput{
		Hours:    hours("08:00", "11:00"),
		Date:     testDay,
		Now:      now,
		Location: loc,
		Roster:   []StaffMember{member(KindBarber, "Ana")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, starts(windows))
}

func TestGenerateWindows_ExcludesOverlappingReservations(t *testing.T) {
	a := member(KindBarber, "Ana")
	b := member(KindStylist, "Bo")

	windows, err := GenerateWindows(GenerateInput{
		Hours:    hours("09:00", "15:00"),
		Date:     testDay,
		Now:      longAgo,
		Roster:   []StaffMember{a, b},
		Reserved: []Reservation{{StaffID: a.ID, StartTime: "10:00", EndTime: "12:00"}},
	})
	require.NoError(t, err)

	staffAt := map[string][]uuid.UUID{}
	for _, w := range windows {
		for _, m := range w.AvailableStaff {
			staffAt[w.StartTime] = append(staffAt[w.StartTime], m.ID)
		}
	}
	assert.Equal(t, []uuid.UUID{b.ID}, staffAt["09:00"])
	assert.Equal(t, []uuid.UUID{b.ID}, staffAt["10:00"])
	assert.Equal(t, []uuid.UUID{b.ID}, staffAt["11:00"])
	assert.Equal(t, []uuid.UUID{a.ID, b.ID}, staffAt["12:00"])
}

func TestGenerateWindows_OmitsFullyBookedWindow(t *testing.T) {
	a := member(KindBarber, "Ana")

	windows, err := GenerateWindows(GenerateInput{
		Hours:    hours("09:00", "13:00"),
		Date:     testDay,
		Now:      longAgo,
		Roster:   []StaffMember{a},
		Reserved: []Reservation{{StaffID: a.ID, StartTime: "09:00", EndTime: "11:00"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"11:00"}, starts(windows))
}

func TestGenerateWindows_EdgeCases(t *testing.T) {
	roster := []StaffMember{member(KindBarber, "Ana")}

	t.Run("empty roster", func(t *testing.T) {
		_, err := GenerateWindows(GenerateInput{Hours: hours("09:00", "17:00"), Date: testDay, Now: longAgo})
		assert.ErrorIs(t, err, ErrNoStaffAvailable)
	})

	t.Run("missing hours", func(t *testing.T) {
		windows, err := GenerateWindows(GenerateInput{Hours: hours("", "17:00"), Date: testDay, Now: longAgo, Roster: roster})
		require.NoError(t, err)
		assert.Empty(t, windows)
	})

	t.Run("day shorter than a window", func(t *testing.T) {
		windows, err := GenerateWindows(GenerateInput{Hours: hours("09:00", "10:30"), Date: testDay, Now: longAgo, Roster: roster})
		require.NoError(t, err)
		assert.Empty(t, windows)
	})

	t.Run("window ending at closing is kept", func(t *testing.T) {
		windows, err := GenerateWindows(GenerateInput{Hours: hours("09:00", "11:00"), Date: testDay, Now: longAgo, Roster: roster})
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00"}, starts(windows))
	})

	t.Run("malformed hours", func(t *testing.T) {
		_, err := GenerateWindows(GenerateInput{Hours: hours("nine", "17:00"), Date: testDay, Now: longAgo, Roster: roster})
		assert.ErrorIs(t, err, ErrInvalidSalonHours)
	})
}

func TestGenerateWindows_Deterministic(t *testing.T) {
	a := member(KindBarber, "Ana")
	in := GenerateInput{
		Hours:    hours("09:00", "18:00"),
		Date:     testDay,
		Now:      longAgo,
		Roster:   []StaffMember{a, member(KindStylist, "Bo")},
		Reserved: []Reservation{{StaffID: a.ID, StartTime: "13:00", EndTime: "15:00"}},
	}

	first, err := GenerateWindows(in)
	require.NoError(t, err)
	second, err := GenerateWindows(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
