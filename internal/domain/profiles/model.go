package profiles

import (
	"strings"
	"time"

	"github.com/medrec/medrec/internal/platform/apierr"
	"github.com/medrec/medrec/internal/platform/validation"
)

// Profile is the doctor record attached one-to-one to a user account.
type Profile struct {
	ID          int64
	UserID      int64
	CompanyName *string
	BirthDate   *time.Time

	// Read from the owning user.
	FirstName string
	LastName  string
}

// FullName is the user's first and last name joined by a space.
func (p *Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Input is the writable part of a profile.
type Input struct {
	CompanyName *string `json:"company_name" validate:"omitempty,notblank,max=255"`
	BirthDate   *string `json:"birth_date" validate:"omitempty,isodate"`
}

// InputFrom seeds an Input with the current values of p. Partial updates
// decode the request onto it so absent keys keep their value.
func InputFrom(p *Profile) Input {
	return Input{
		CompanyName: p.CompanyName,
		BirthDate:   validation.FormatDate(p.BirthDate),
	}
}

func (in *Input) normalize() {
	in.BirthDate = validation.BlankToNil(in.BirthDate)
}

// apply copies validated input onto p.
func (in *Input) apply(p *Profile) error {
	birth, err := validation.ParseDate(in.BirthDate)
	if err != nil {
		return apierr.Field("birth_date", validation.MsgInvalidDate)
	}
	p.CompanyName = in.CompanyName
	p.BirthDate = birth
	return nil
}

const (
	companyNameConstraint = "profile_company_name_key"
	msgCompanyNameTaken   = "profile with this company name already exists."
)
