//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medrec/medrec/internal/domain/materials"
	"github.com/medrec/medrec/internal/domain/patients"
	"github.com/medrec/medrec/internal/domain/profiles"
	"github.com/medrec/medrec/internal/domain/users"
	"github.com/medrec/medrec/internal/platform/access"
	"github.com/medrec/medrec/internal/platform/auth"
	"github.com/medrec/medrec/internal/platform/blobstore"
	"github.com/medrec/medrec/internal/platform/db"
	"github.com/medrec/medrec/internal/platform/validation"
	"github.com/medrec/medrec/migrations"
)

// globalPool is the package-level test database, initialized once in TestMain.
var globalPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	pool, cleanup, err := setupDatabase(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup postgres: %v\n", err)
		os.Exit(1)
	}

	globalPool = pool
	code := m.Run()
	cleanup()
	os.Exit(code)
}

// setupDatabase starts Postgres and applies the embedded migrations.
func setupDatabase(ctx context.Context) (*pgxpool.Pool, func(), error) {
	connStr, stop, err := startPostgresContainer(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("start postgres container: %w", err)
	}

	pool, err := db.NewPool(ctx, db.PoolConfig{URL: connStr, MaxConns: 10, MinConns: 1})
	if err != nil {
		stop()
		return nil, nil, err
	}

	if _, err := db.NewMigrator(pool, migrations.FS).Up(ctx); err != nil {
		pool.Close()
		stop()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	return pool, func() {
		pool.Close()
		stop()
	}, nil
}

// resetTables empties every table so each test starts from ids 1.
func resetTables(t *testing.T) {
	t.Helper()
	_, err := globalPool.Exec(context.Background(),
		"TRUNCATE material, patient, profile, app_user RESTART IDENTITY CASCADE")
	if err != nil {
		t.Fatalf("reset tables: %v", err)
	}
}

// testEnv holds services wired over the shared pool.
type testEnv struct {
	users     *users.Service
	userRepo  users.Repository
	profiles  *profiles.Service
	patients  *patients.Service
	materials *materials.Service
	blobs     *blobstore.InMemoryBlobStore
	tokens    *auth.TokenIssuer
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	resetTables(t)

	store := auth.NewMemoryRevocationStore(time.Minute)
	t.Cleanup(store.Close)
	tokens := auth.NewTokenIssuer(auth.TokenConfig{
		SigningKey: []byte("integration-signing-key-0123456789"),
		Issuer:     "medrec",
		Rotate:     true,
	}, store)

	tx := db.NewTransactor(globalPool)
	v := validation.New()
	blobs := blobstore.NewInMemoryBlobStore("/media/", 1<<20)

	userRepo := users.NewRepo(globalPool)
	profileRepo := profiles.NewRepo(globalPool)
	profileSvc := profiles.NewService(profileRepo, tx, v)
	patientSvc := patients.NewService(patients.NewRepo(globalPool), profileRepo, blobs, tx, v)

	return &testEnv{
		users:     users.NewService(userRepo, profileSvc, tx, auth.NewPasswordHasher(4), tokens, v),
		userRepo:  userRepo,
		profiles:  profileSvc,
		patients:  patientSvc,
		materials: materials.NewService(materials.NewRepo(globalPool), patientSvc, blobs, tx),
		blobs:     blobs,
		tokens:    tokens,
	}
}

const testPassword = "s3cure-Passw0rd"

// register creates an account and returns the principal the JWT middleware
// would build for it.
func (env *testEnv) register(t *testing.T, username string, staff bool) *auth.Principal {
	t.Helper()
	ctx := context.Background()
	in := users.RegisterInput{Username: ptrStr(username), Password: ptrStr(testPassword)}

	create := env.users.Register
	if staff {
		create = env.users.CreateSuperuser
	}
	u, err := create(ctx, in)
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}

	p, active, err := env.userRepo.LoadPrincipal(ctx, u.ID)
	if err != nil || !active {
		t.Fatalf("load principal %s: active=%v err=%v", username, active, err)
	}
	return p
}

func patientStrategy(t *testing.T, caller *auth.Principal, op access.Operation) access.PatientStrategy {
	t.Helper()
	st, err := access.ForPatients(caller, op)
	if err != nil {
		t.Fatalf("patient strategy: %v", err)
	}
	return st
}

func materialStrategy(t *testing.T, caller *auth.Principal, op access.Operation) access.MaterialStrategy {
	t.Helper()
	st, err := access.ForMaterials(caller, op)
	if err != nil {
		t.Fatalf("material strategy: %v", err)
	}
	return st
}

// fill returns a decode func that overwrites the given input fields.
func fill(first, last, condition string, birth *string, doctor *int64) func(*patients.Input) error {
	return func(in *patients.Input) error {
		in.FirstName = ptrStr(first)
		in.LastName = ptrStr(last)
		in.MedCondition = ptrStr(condition)
		in.BirthDate = birth
		if doctor != nil {
			in.Doctor = json.RawMessage(strconv.FormatInt(*doctor, 10))
		}
		return nil
	}
}

func (env *testEnv) createPatient(t *testing.T, caller *auth.Principal, first, last, condition string, birth *string) *patients.Patient {
	t.Helper()
	var doctor *int64
	if caller.IsStaff {
		doctor = ptrInt64(caller.ProfileID)
	}
	p, err := env.patients.Create(context.Background(), patientStrategy(t, caller, access.Create),
		fill(first, last, condition, birth, doctor))
	if err != nil {
		t.Fatalf("create patient %s %s: %v", first, last, err)
	}
	return p
}

// ptrStr returns a pointer to the given string.
func ptrStr(s string) *string { return &s }

// ptrInt64 returns a pointer to the given int64.
func ptrInt64(i int64) *int64 { return &i }
