package migrations

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func expectFreshApply(mock sqlmock.Sqlmock, fileCount int) {
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT filename FROM schema_migrations").WillReturnRows(sqlmock.NewRows([]string{"filename"}))
	for i := 0; i < fileCount; i++ {
		mock.ExpectBegin()
		mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO schema_migrations").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
	}
}

func TestApplyExecutesAllMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	entries, err := files.ReadDir(".")
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}

	expectFreshApply(mock, len(entries))

	if err := Apply(context.Background(), db, nil); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplySkipsAlreadyAppliedMigrationsOnRepeatedCalls(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	names, err := sqlFileNames()
	if err != nil {
		t.Fatalf("list migrations: %v", err)
	}

	expectFreshApply(mock, len(names))
	if err := Apply(context.Background(), db, nil); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	rows := sqlmock.NewRows([]string{"filename"})
	for _, name := range names {
		rows.AddRow(name)
	}
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT filename FROM schema_migrations").WillReturnRows(rows)

	if err := Apply(context.Background(), db, nil); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
