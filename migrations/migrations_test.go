package migrations

import (
	"strings"
	"testing"

	"github.com/medrec/medrec/internal/platform/db"
)

func TestEmbeddedMigrationsLoad(t *testing.T) {
	migrations, err := db.NewMigrator(nil, FS).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 embedded migrations, got %d", len(migrations))
	}
	for i, mig := range migrations {
		if mig.Version != i+1 {
			t.Errorf("migration %s: expected version %d, got %d", mig.Name, i+1, mig.Version)
		}
		if strings.TrimSpace(mig.SQL) == "" {
			t.Errorf("migration %s is empty", mig.Name)
		}
	}
}

func TestEmbeddedMigrations_CascadeOwnership(t *testing.T) {
	data, err := FS.ReadFile("002_records.sql")
	if err != nil {
		t.Fatalf("read 002_records.sql: %v", err)
	}
	sql := string(data)
	for _, want := range []string{
		"REFERENCES profile (id) ON DELETE CASCADE",
		"REFERENCES patient (id) ON DELETE CASCADE",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("expected %q in records migration", want)
		}
	}
}
