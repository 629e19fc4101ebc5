package access

import (
	"errors"
	"fmt"
	"testing"

	"github.com/medrec/medrec/internal/platform/apierr"
	"github.com/medrec/medrec/internal/platform/auth"
	"github.com/medrec/medrec/internal/platform/db"
)

var (
	staff  = &auth.Principal{UserID: 1, IsStaff: true, ProfileID: 1}
	doctor = &auth.Principal{UserID: 2, ProfileID: 7}
)

func TestOperationSafe(t *testing.T) {
	safe := map[Operation]bool{
		List: true, Retrieve: true,
		Create: false, Update: false, PartialUpdate: false, Delete: false,
	}
	for op, want := range safe {
		if op.Safe() != want {
			t.Errorf("%s: Safe() = %v, want %v", op, op.Safe(), want)
		}
	}
}

func TestForPatients_Anonymous(t *testing.T) {
	if _, err := ForPatients(nil, List); !errors.Is(err, apierr.ErrUnauthenticated) {
		t.Errorf("expected unauthenticated, got %v", err)
	}
}

func TestForPatients_Doctor(t *testing.T) {
	for _, op := range []Operation{List, Retrieve, Create, Update, PartialUpdate, Delete} {
		s, err := ForPatients(doctor, op)
		if err != nil {
			t.Fatalf("%s: %v", op, err)
		}
		if s.View != ViewFlat {
			t.Errorf("%s: expected flat view, got %v", op, s.View)
		}
		if s.Doctor != DoctorImplicit || s.Self != 7 {
			t.Errorf("%s: expected implicit doctor 7, got %v %d", op, s.Doctor, s.Self)
		}
		if s.DoctorRequired() {
			t.Errorf("%s: doctor must never be required for non-staff", op)
		}
		if id, ok := s.Scope.ProfileID(); !ok || id != 7 {
			t.Errorf("%s: expected scope owned by 7, got %d %v", op, id, ok)
		}
	}
}

func TestForPatients_Staff(t *testing.T) {
	tests := []struct {
		op       Operation
		view     View
		required bool
	}{
		{List, ViewStaffRead, false},
		{Retrieve, ViewStaffRead, false},
		{Create, ViewStaffWrite, true},
		{Update, ViewStaffWrite, true},
		{PartialUpdate, ViewStaffWrite, false},
		{Delete, ViewStaffWrite, false},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			s, err := ForPatients(staff, tt.op)
			if err != nil {
				t.Fatal(err)
			}
			if !s.Scope.IsUnrestricted() {
				t.Error("expected unrestricted scope")
			}
			if s.View != tt.view {
				t.Errorf("expected view %v, got %v", tt.view, s.View)
			}
			if s.DoctorRequired() != tt.required {
				t.Errorf("expected DoctorRequired %v", tt.required)
			}
		})
	}
}

func TestScopePermits(t *testing.T) {
	if !Unrestricted().Permits(99) {
		t.Error("unrestricted scope must permit any doctor")
	}
	if !OwnedBy(3).Permits(3) {
		t.Error("owned scope must permit its own profile")
	}
	if OwnedBy(3).Permits(4) {
		t.Error("owned scope must not permit another profile")
	}
}

func TestScopeApply(t *testing.T) {
	q := db.NewSearchQuery("patient", "id")
	Unrestricted().Apply(q, "doctor_id")
	if q.Idx() != 1 {
		t.Errorf("unrestricted scope should add no args, idx=%d", q.Idx())
	}

	OwnedBy(5).Apply(q, "doctor_id")
	args := q.CountArgs()
	if len(args) != 1 || args[0] != int64(5) {
		t.Errorf("expected doctor_id arg 5, got %v", args)
	}
}

func TestConceal(t *testing.T) {
	if Conceal(nil, "") != nil {
		t.Error("nil stays nil")
	}

	err := Conceal(apierr.ErrForbidden, "Patient not found")
	if apierr.KindOf(err) != apierr.KindNotFound {
		t.Errorf("forbidden must be concealed as not found, got %v", err)
	}
	if err.Error() != "Patient not found" {
		t.Errorf("unexpected detail %q", err.Error())
	}

	if !errors.Is(Conceal(apierr.ErrNotFound, ""), apierr.ErrNotFound) {
		t.Error("expected plain not found")
	}

	other := fmt.Errorf("boom")
	if Conceal(other, "") != other {
		t.Error("unrelated errors pass through")
	}
}

func TestForMaterials(t *testing.T) {
	if _, err := ForMaterials(nil, Create); !errors.Is(err, apierr.ErrUnauthenticated) {
		t.Errorf("expected unauthenticated, got %v", err)
	}

	s, err := ForMaterials(doctor, Delete)
	if err != nil {
		t.Fatal(err)
	}
	if !s.ParentScope.Permits(7) || s.ParentScope.Permits(8) {
		t.Error("doctor parent scope must be limited to own patients")
	}

	s, _ = ForMaterials(staff, List)
	if !s.ParentScope.IsUnrestricted() {
		t.Error("staff parent scope must be unrestricted")
	}

	if ParentNotFound().Error() != "Patient not found" {
		t.Errorf("unexpected parent detail %q", ParentNotFound().Error())
	}
}
