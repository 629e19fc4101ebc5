package patients

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/medrec/medrec/internal/platform/apierr"
	"github.com/medrec/medrec/internal/platform/validation"
)

// Patient is a medical record owned by one doctor profile.
type Patient struct {
	ID           int64
	FirstName    string
	LastName     string
	BirthDate    *time.Time
	Gender       *string
	MedCondition string
	DoctorID     int64
	Created      time.Time
	Updated      time.Time
}

// Input is the writable part of a patient. Doctor is kept raw and only
// parsed for staff requests, so whatever non-staff callers send there is
// dropped unread.
type Input struct {
	FirstName    *string `json:"first_name" validate:"required,notblank,max=150"`
	LastName     *string `json:"last_name" validate:"required,notblank,max=150"`
	BirthDate    *string `json:"birth_date" validate:"omitempty,isodate"`
	Gender       *string `json:"gender" validate:"omitempty,oneof=M F"`
	MedCondition *string `json:"med_condition" validate:"required,notblank"`
	Doctor       json.RawMessage `json:"doctor"`
}

// inputFrom seeds an Input with the current values of p.
func inputFrom(p *Patient) Input {
	first, last, cond := p.FirstName, p.LastName, p.MedCondition
	return Input{
		FirstName:    &first,
		LastName:     &last,
		BirthDate:    validation.FormatDate(p.BirthDate),
		Gender:       p.Gender,
		MedCondition: &cond,
		Doctor:       json.RawMessage(strconv.FormatInt(p.DoctorID, 10)),
	}
}

// clearRequired drops the values a full update must resupply.
func (in *Input) clearRequired() {
	in.FirstName = nil
	in.LastName = nil
	in.MedCondition = nil
}

func (in *Input) normalize() {
	in.BirthDate = validation.BlankToNil(in.BirthDate)
	in.Gender = validation.BlankToNil(in.Gender)
}

// apply copies validated input onto p. The doctor is set by the caller.
func (in *Input) apply(p *Patient) error {
	birth, err := validation.ParseDate(in.BirthDate)
	if err != nil {
		return apierr.Field("birth_date", validation.MsgInvalidDate)
	}
	p.FirstName = *in.FirstName
	p.LastName = *in.LastName
	p.BirthDate = birth
	p.Gender = in.Gender
	p.MedCondition = *in.MedCondition
	return nil
}

// parseDoctor reads a doctor reference. Integers and numeric strings name a
// profile id. Absent and null values yield nil with no message.
func parseDoctor(raw json.RawMessage) (*int64, string) {
	if len(raw) == 0 {
		return nil, ""
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, msgIncorrectPK("str")
	}

	var s string
	switch x := v.(type) {
	case nil:
		return nil, ""
	case json.Number:
		s = x.String()
	case string:
		s = strings.TrimSpace(x)
	case bool:
		return nil, msgIncorrectPK("bool")
	case map[string]interface{}:
		return nil, msgIncorrectPK("dict")
	case []interface{}:
		return nil, msgIncorrectPK("list")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		if _, ok := v.(json.Number); ok {
			return nil, msgIncorrectPK("float")
		}
		return nil, msgIncorrectPK("str")
	}
	return &id, ""
}

func msgIncorrectPK(kind string) string {
	return fmt.Sprintf("Incorrect type. Expected pk value, received %s.", kind)
}

func msgInvalidPK(id int64) string {
	return fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id)
}

const (
	msgNotNull     = "This field may not be null."
	msgInvalidDate = "Enter a valid date."
)
