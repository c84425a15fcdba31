package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/liliganster/tp-companion/internal/core/domain"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestUsageCountSince(t *testing.T) {
	db, mock := newMockDB(t)
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM ai_usage_events").
		WithArgs("u-1", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := NewUsageRepository(db).CountSince(context.Background(), "u-1", since)
	if err != nil {
		t.Fatalf("CountSince() error = %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4, got %d", n)
	}
}

func TestProfileMissingIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM user_profiles").
		WithArgs("u-1").
		WillReturnError(sql.ErrNoRows)

	_, err := NewProfileRepository(db).GetProfile(context.Background(), "u-1")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDocumentRefStoresNullsForBlankFields(t *testing.T) {
	db, mock := newMockDB(t)
	created := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO document_refs").
		WithArgs("doc-1", "u-1", "u-1/receipts/a.jpg", "parking", nil, nil, nil, nil, created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewDocumentRepository(db).CreateRef(context.Background(), &domain.DocumentRef{
		ID: "doc-1", UserID: "u-1", StoragePath: "u-1/receipts/a.jpg", Kind: domain.ExpenseParking, CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("CreateRef() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindProjectByNameIsCaseInsensitive(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("lower\\(name\\) = lower\\(\\$2\\)").
		WithArgs("u-1", "night shift").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "created_at"}).
			AddRow("p-1", "u-1", "Night Shift", time.Now()))

	project, err := NewTripRepository(db).FindProjectByName(context.Background(), "u-1", "night shift")
	if err != nil {
		t.Fatalf("FindProjectByName() error = %v", err)
	}
	if project.Name != "Night Shift" {
		t.Fatalf("unexpected project: %+v", project)
	}
}

func TestCreateProjectDuplicateIsConflict(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO projects").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})

	err := NewTripRepository(db).CreateProject(context.Background(), &domain.Project{ID: "p-1", UserID: "u-1", Name: "X"})
	if !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCreateTripEncodesRoute(t *testing.T) {
	db, mock := newMockDB(t)
	km := 48.7
	created := time.Date(2026, 3, 20, 18, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO trips").
		WithArgs("t-1", "u-1", "p-1", "job-1", "2026-03-20", "", []byte(`["Base","Set A","Base"]`), 48.7, created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewTripRepository(db).CreateTrip(context.Background(), &domain.Trip{
		ID: "t-1", UserID: "u-1", ProjectID: "p-1", JobID: "job-1", Date: "2026-03-20",
		Route: []string{"Base", "Set A", "Base"}, DistanceKm: &km, CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("CreateTrip() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMigrateRunsEmbeddedMigrations(t *testing.T) {
	db, _ := newMockDB(t)
	orig := gooseUp
	defer func() { gooseUp = orig }()

	var gotDir string
	gooseUp = func(_ context.Context, _ *sql.DB, dir string) error {
		gotDir = dir
		return errors.New("boom")
	}

	err := Migrate(context.Background(), db)
	if err == nil || gotDir != "." {
		t.Fatalf("expected wrapped migration error for dir '.', got %v (dir %q)", err, gotDir)
	}
}
