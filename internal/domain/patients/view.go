package patients

import (
	"time"

	"github.com/medrec/medrec/internal/domain/profiles"
	"github.com/medrec/medrec/internal/platform/access"
	"github.com/medrec/medrec/internal/platform/validation"
)

// PatientFlat is the representation shown to doctors. The owner is always
// the caller and is not rendered.
type PatientFlat struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	BirthDate    *string   `json:"birth_date"`
	Gender       *string   `json:"gender"`
	MedCondition string    `json:"med_condition"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
}

// PatientStaffRead nests the full doctor profile.
type PatientStaffRead struct {
	PatientFlat
	Doctor *profiles.ProfileView `json:"doctor"`
}

// PatientStaffWrite carries the doctor as a profile id.
type PatientStaffWrite struct {
	PatientFlat
	Doctor int64 `json:"doctor"`
}

func NewPatientFlat(p *Patient) PatientFlat {
	return PatientFlat{
		ID:           p.ID,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		BirthDate:    validation.FormatDate(p.BirthDate),
		Gender:       p.Gender,
		MedCondition: p.MedCondition,
		Created:      p.Created,
		Updated:      p.Updated,
	}
}

// Render shapes p for view. doctors is only consulted for ViewStaffRead.
func Render(view access.View, p *Patient, doctors map[int64]*profiles.Profile) interface{} {
	switch view {
	case access.ViewStaffRead:
		return PatientStaffRead{PatientFlat: NewPatientFlat(p), Doctor: profiles.NewProfileView(doctors[p.DoctorID])}
	case access.ViewStaffWrite:
		return PatientStaffWrite{PatientFlat: NewPatientFlat(p), Doctor: p.DoctorID}
	}
	return NewPatientFlat(p)
}
