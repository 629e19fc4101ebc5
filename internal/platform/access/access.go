// Package access decides, per caller and operation, which records a request
// may touch and how they are rendered.
package access

import (
	"github.com/medrec/medrec/internal/platform/apierr"
	"github.com/medrec/medrec/internal/platform/auth"
	"github.com/medrec/medrec/internal/platform/db"
)

type Operation int

const (
	List Operation = iota
	Retrieve
	Create
	Update
	PartialUpdate
	Delete
)

// Safe reports whether the operation only reads.
func (op Operation) Safe() bool {
	return op == List || op == Retrieve
}

func (op Operation) String() string {
	switch op {
	case List:
		return "list"
	case Retrieve:
		return "retrieve"
	case Create:
		return "create"
	case Update:
		return "update"
	case PartialUpdate:
		return "partial_update"
	case Delete:
		return "delete"
	}
	return "unknown"
}

// Scope restricts patient rows by their owning doctor profile.
type Scope struct {
	unrestricted bool
	profileID    int64
}

// Unrestricted sees every patient.
func Unrestricted() Scope { return Scope{unrestricted: true} }

// OwnedBy sees only patients whose doctor is profileID.
func OwnedBy(profileID int64) Scope { return Scope{profileID: profileID} }

func (s Scope) IsUnrestricted() bool { return s.unrestricted }

// ProfileID returns the owning profile and false for an unrestricted scope.
func (s Scope) ProfileID() (int64, bool) {
	if s.unrestricted {
		return 0, false
	}
	return s.profileID, true
}

// Permits reports whether a patient owned by doctorID is visible.
func (s Scope) Permits(doctorID int64) bool {
	return s.unrestricted || s.profileID == doctorID
}

// Apply adds the ownership predicate on column to q.
func (s Scope) Apply(q *db.SearchQuery, column string) {
	if s.unrestricted {
		return
	}
	q.AddEqual(column, s.profileID)
}

// Conceal maps an out-of-scope lookup to the same error as a missing one so
// callers cannot probe for records they do not own.
func Conceal(err error, detail string) error {
	if err == nil {
		return nil
	}
	if apierr.KindOf(err) == apierr.KindNotFound || apierr.KindOf(err) == apierr.KindForbidden {
		if detail == "" {
			return apierr.ErrNotFound
		}
		return apierr.NotFound(detail)
	}
	return err
}

type View int

const (
	ViewFlat View = iota
	ViewStaffRead
	ViewStaffWrite
)

type DoctorRule int

const (
	// DoctorImplicit assigns the caller's own profile and ignores input.
	DoctorImplicit DoctorRule = iota
	// DoctorExplicit takes the doctor from input.
	DoctorExplicit
)

// PatientStrategy is the resolved policy for one patient request.
type PatientStrategy struct {
	Op     Operation
	Scope  Scope
	View   View
	Doctor DoctorRule
	// Self is the caller's profile, used when Doctor is DoctorImplicit.
	Self int64
}

// DoctorRequired reports whether input must name a doctor.
func (s PatientStrategy) DoctorRequired() bool {
	return s.Doctor == DoctorExplicit && (s.Op == Create || s.Op == Update)
}

// ForPatients resolves the patient policy for caller.
func ForPatients(caller *auth.Principal, op Operation) (PatientStrategy, error) {
	if caller == nil {
		return PatientStrategy{}, apierr.ErrUnauthenticated
	}
	if !caller.IsStaff {
		return PatientStrategy{
			Op:     op,
			Scope:  OwnedBy(caller.ProfileID),
			View:   ViewFlat,
			Doctor: DoctorImplicit,
			Self:   caller.ProfileID,
		}, nil
	}

	view := ViewStaffWrite
	if op.Safe() {
		view = ViewStaffRead
	}
	return PatientStrategy{
		Op:     op,
		Scope:  Unrestricted(),
		View:   view,
		Doctor: DoctorExplicit,
		Self:   caller.ProfileID,
	}, nil
}

// MaterialStrategy is the resolved policy for one material request. Every
// material operation first resolves its parent patient under ParentScope.
type MaterialStrategy struct {
	Op          Operation
	ParentScope Scope
}

// ParentNotFound is returned when the parent patient is absent or out of
// scope.
func ParentNotFound() error {
	return apierr.NotFound("Patient not found")
}

// ForMaterials resolves the material policy for caller.
func ForMaterials(caller *auth.Principal, op Operation) (MaterialStrategy, error) {
	ps, err := ForPatients(caller, op)
	if err != nil {
		return MaterialStrategy{}, err
	}
	return MaterialStrategy{Op: op, ParentScope: ps.Scope}, nil
}
