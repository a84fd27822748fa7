package testutil

import (
	"database/sql"
	"log/slog"
	"testing"

	"repdig-scraper/lib/telemetry"
	"repdig-scraper/pkg/migrations"
)

type ServiceParams struct {
	Name string
	// if unspecified, it will skip setting up a db
	DbSchema string
	// if unspecified, it will use `:memory:`
	DbPath string
}

type ServiceResult struct {
	DB *sql.DB
}

// SetupService prepares logging and (optionally) a migrated sqlite database
// for a service test.
func SetupService(t testing.TB, params ServiceParams) (ServiceResult, func()) {
	telemetry.InitSlog(testing.Verbose())
	slog.Debug("setting up test", "name", params.Name)

	if params.DbSchema == "" {
		return ServiceResult{}, func() {}
	}

	dbpath := ":memory:"
	if params.DbPath != "" {
		dbpath = params.DbPath
	}
	database, err := migrations.OpenAndMigrateDB(params.DbSchema, dbpath)
	if err != nil {
		t.Fatal(err)
	}

	return ServiceResult{
			DB: database,
		}, func() {
			database.Close()
		}
}
