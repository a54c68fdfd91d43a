package booking

import (
	"strings"

	"github.com/google/uuid"
)

type StaffKind string

const (
	KindBarber  StaffKind = "barber"
	KindStylist StaffKind = "stylist"
)

const genericSpecialty = "Stylist"

// StaffMember is a bookable person. Barber-only fields are zero for stylists.
type StaffMember struct {
	Kind            StaffKind `json:"kind"`
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	SalonID         uuid.UUID `json:"salon_id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Specialty       string    `json:"specialty"`
	ExperienceYears int       `json:"experience_years"`
	Rating          float64   `json:"rating"`
	TotalReviews    int       `json:"total_reviews"`
}

func (m StaffMember) DisplayName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

func (m StaffMember) IsBarber() bool {
	return m.Kind == KindBarber
}

func RealBarber(b Barber) StaffMember {
	return StaffMember{
		Kind:            KindBarber,
		ID:              b.ID,
		UserID:          b.UserID,
		SalonID:         b.SalonID,
		FirstName:       b.FirstName,
		LastName:        b.LastName,
		Specialty:       b.Specialty,
		ExperienceYears: b.ExperienceYears,
		Rating:          b.Rating,
		TotalReviews:    b.TotalReviews,
	}
}

// GenericStylist presents a staff profile with no barber record. Its ID is
// the staff profile id, which then stands in for a barber id on slots.
func GenericStylist(s SalonStaff) StaffMember {
	return StaffMember{
		Kind:      KindStylist,
		ID:        s.ID,
		UserID:    s.UserID,
		SalonID:   s.SalonID,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Specialty: genericSpecialty,
	}
}

// MergeRoster lists every barber, then each active staff profile that is not
// already represented, either through its barber link or by sharing a user.
func MergeRoster(barbers []Barber, staff []SalonStaff) []StaffMember {
	roster := make([]StaffMember, 0, len(barbers)+len(staff))
	barberIDs := make(map[uuid.UUID]struct{}, len(barbers))
	userIDs := make(map[uuid.UUID]struct{}, len(barbers)+len(staff))

	for _, b := range barbers {
		roster = append(roster, RealBarber(b))
		barberIDs[b.ID] = struct{}{}
		userIDs[b.UserID] = struct{}{}
	}

	for _, s := range staff {
		if !s.IsActive {
			continue
		}
		if s.BarberID != nil {
			if _, ok := barberIDs[*s.BarberID]; ok {
				continue
			}
		}
		if _, ok := userIDs[s.UserID]; ok {
			continue
		}
		roster = append(roster, GenericStylist(s))
		userIDs[s.UserID] = struct{}{}
	}
	return roster
}

func findStaff(roster []StaffMember, id uuid.UUID) (StaffMember, bool) {
	for _, m := range roster {
		if m.ID == id {
			return m, true
		}
	}
	return StaffMember{}, false
}
