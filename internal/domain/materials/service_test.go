package materials

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/medrec/medrec/internal/platform/access"
	"github.com/medrec/medrec/internal/platform/apierr"
	"github.com/medrec/medrec/internal/platform/auth"
	"github.com/medrec/medrec/internal/platform/blobstore"
	"github.com/medrec/medrec/internal/platform/db"
)

var (
	doctorA = &auth.Principal{UserID: 1, ProfileID: 1}
	doctorB = &auth.Principal{UserID: 2, ProfileID: 2}
	staff   = &auth.Principal{UserID: 3, IsStaff: true, ProfileID: 3}
)

// Patient 10 belongs to doctor A, patient 20 to doctor B and patient 30 to
// the staff user's profile.
func newTestService() (*Service, *mockRepo, *mockParents, *blobstore.InMemoryBlobStore) {
	parents := &mockParents{doctors: map[int64]int64{10: 1, 20: 2, 30: 3}}
	repo := newMockRepo(parents)
	blobs := blobstore.NewInMemoryBlobStore("/media/", 64)
	return NewService(repo, parents, blobs, db.NopTransactor{}), repo, parents, blobs
}

func mustStrategy(t *testing.T, p *auth.Principal, op access.Operation) access.MaterialStrategy {
	t.Helper()
	st, err := access.ForMaterials(p, op)
	if err != nil {
		t.Fatalf("strategy: %v", err)
	}
	return st
}

func file(name, content string) *Upload {
	return &Upload{Name: name, Content: strings.NewReader(content)}
}

func assertParentNotFound(t *testing.T, err error) {
	t.Helper()
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apierr.KindNotFound || apiErr.Detail != "Patient not found" {
		t.Errorf("expected patient not found, got %v", err)
	}
}

func TestCreate(t *testing.T) {
	svc, _, parents, blobs := newTestService()

	m, err := svc.Create(context.Background(), mustStrategy(t, doctorA, access.Create), 10, file("scan.pdf", "data"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.PatientID != 10 || !strings.HasPrefix(m.File, "materials/") || !strings.HasSuffix(m.File, "_scan.pdf") {
		t.Errorf("unexpected material %+v", m)
	}
	if !blobs.Has(m.File) {
		t.Error("expected file stored")
	}
	if parents.locks[len(parents.locks)-1] != db.ForShare {
		t.Error("expected parent share-locked")
	}
}

func TestCreate_UnresolvedParentTouchesNothing(t *testing.T) {
	svc, repo, _, blobs := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, mustStrategy(t, doctorB, access.Create), 30, file("scan.pdf", "data"))
	assertParentNotFound(t, err)
	_, err = svc.Create(ctx, mustStrategy(t, staff, access.Create), 99, file("scan.pdf", "data"))
	assertParentNotFound(t, err)

	if len(repo.materials) != 0 || blobs.Len() != 0 {
		t.Errorf("expected no rows or files, got %d rows %d files", len(repo.materials), blobs.Len())
	}
}

func TestCreate_ParentCheckedBeforeFile(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.Create(context.Background(), mustStrategy(t, doctorB, access.Create), 10, nil)
	assertParentNotFound(t, err)
}

func TestCreate_FileErrors(t *testing.T) {
	svc, repo, _, blobs := newTestService()
	st := mustStrategy(t, doctorA, access.Create)
	ctx := context.Background()

	tests := []struct {
		name string
		up   *Upload
		msg  string
	}{
		{"missing", nil, msgNoFile},
		{"empty", file("a.txt", ""), msgEmptyFile},
		{"no name", file("..", "data"), msgNoFileName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, st, 10, tt.up)
			var apiErr *apierr.Error
			if !errors.As(err, &apiErr) || len(apiErr.Fields["file"]) != 1 || apiErr.Fields["file"][0] != tt.msg {
				t.Errorf("expected file error %q, got %v", tt.msg, err)
			}
		})
	}

	_, err := svc.Create(ctx, st, 10, file("big.bin", strings.Repeat("x", 65)))
	if !errors.Is(err, blobstore.ErrFileTooLarge) {
		t.Errorf("expected too large, got %v", err)
	}
	if len(repo.materials) != 0 || blobs.Len() != 0 {
		t.Error("expected nothing stored")
	}
}

func TestListAndGet_Scoped(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	m, err := svc.Create(ctx, mustStrategy(t, staff, access.Create), 30, file("c.txt", "c"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, mustStrategy(t, doctorA, access.Create), 10, file("a.txt", "a")); err != nil {
		t.Fatalf("create: %v", err)
	}

	items, total, err := svc.List(ctx, mustStrategy(t, staff, access.List), 30, 10, 0)
	if err != nil || total != 1 || len(items) != 1 || items[0].ID != m.ID {
		t.Errorf("unexpected staff list %v %d %v", items, total, err)
	}

	_, _, err = svc.List(ctx, mustStrategy(t, doctorB, access.List), 30, 10, 0)
	assertParentNotFound(t, err)
	_, err = svc.Get(ctx, mustStrategy(t, doctorB, access.Retrieve), 30, m.ID)
	assertParentNotFound(t, err)

	if _, err := svc.Get(ctx, mustStrategy(t, doctorA, access.Retrieve), 10, m.ID); !errors.Is(err, apierr.ErrNotFound) {
		t.Errorf("expected material under another patient to be not found, got %v", err)
	}
}

func TestUpdate_ReplacesFile(t *testing.T) {
	svc, _, _, blobs := newTestService()
	ctx := context.Background()
	m, err := svc.Create(ctx, mustStrategy(t, doctorA, access.Create), 10, file("old.txt", "old"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.Update(ctx, mustStrategy(t, doctorA, access.Update), 10, m.ID, file("new.txt", "new"))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.File == m.File || !strings.HasSuffix(got.File, "_new.txt") {
		t.Errorf("expected new file, got %s", got.File)
	}
	if blobs.Has(m.File) || !blobs.Has(got.File) {
		t.Error("expected old file removed and new file stored")
	}
	if !got.Updated.After(m.Updated) {
		t.Error("expected updated to increase")
	}
}

func TestUpdate_WithoutFile(t *testing.T) {
	svc, _, _, blobs := newTestService()
	ctx := context.Background()
	m, err := svc.Create(ctx, mustStrategy(t, doctorA, access.Create), 10, file("old.txt", "old"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.Update(ctx, mustStrategy(t, doctorA, access.Update), 10, m.ID, nil)
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || len(apiErr.Fields["file"]) == 0 {
		t.Errorf("expected file required on full update, got %v", err)
	}

	got, err := svc.Update(ctx, mustStrategy(t, doctorA, access.PartialUpdate), 10, m.ID, nil)
	if err != nil {
		t.Fatalf("partial update: %v", err)
	}
	if got.File != m.File || !blobs.Has(m.File) {
		t.Error("expected file kept")
	}
	if !got.Updated.After(m.Updated) {
		t.Error("expected updated to increase")
	}
}

func TestUpdate_FailureKeepsOldFile(t *testing.T) {
	svc, _, _, blobs := newTestService()
	ctx := context.Background()
	m, err := svc.Create(ctx, mustStrategy(t, doctorA, access.Create), 10, file("old.txt", "old"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.Update(ctx, mustStrategy(t, doctorA, access.Update), 10, 99, file("new.txt", "new"))
	if !errors.Is(err, apierr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if blobs.Len() != 1 || !blobs.Has(m.File) {
		t.Error("expected only the original file")
	}
}

func TestDelete(t *testing.T) {
	svc, repo, _, blobs := newTestService()
	ctx := context.Background()
	m, err := svc.Create(ctx, mustStrategy(t, doctorA, access.Create), 10, file("a.txt", "a"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	err = svc.Delete(ctx, mustStrategy(t, doctorB, access.Delete), 10, m.ID)
	assertParentNotFound(t, err)

	if err := svc.Delete(ctx, mustStrategy(t, staff, access.Delete), 10, m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(repo.materials) != 0 || blobs.Len() != 0 {
		t.Error("expected row and file removed")
	}
}
