// Package repo is the persistence layer of the prayer queue: candidate rows,
// the reseed run log and the statistics queries, all through GORM.
//
// This file opens the store. SQLite (pure Go, no cgo) is the default and
// Postgres is selected for shared deployments.
package repo

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-prayer-queue/internal/domain"
)

// sqlitePragmas are applied to every pooled connection through the DSN, so a
// connection opened later by the pool gets the same busy timeout and foreign
// key enforcement as the first one.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
	"busy_timeout(5000)",
}

type poolSettings struct {
	maxOpen, maxIdle int
	idleTime, life   time.Duration
}

var (
	// A reseed holds the single SQLite writer for the whole rebuild; readers
	// keep going under WAL.
	sqlitePool   = poolSettings{maxOpen: 4, maxIdle: 4, idleTime: 5 * time.Minute, life: 30 * time.Minute}
	postgresPool = poolSettings{maxOpen: 20, maxIdle: 5, idleTime: 5 * time.Minute, life: 30 * time.Minute}
)

func (p poolSettings) apply(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(p.maxOpen)
	sqlDB.SetMaxIdleConns(p.maxIdle)
	sqlDB.SetConnMaxIdleTime(p.idleTime)
	sqlDB.SetConnMaxLifetime(p.life)
	return nil
}

// Open dispatches on driver ("sqlite", the default, or "postgres") and
// installs the OpenTelemetry tracing plugin on the handle.
func Open(driver, dsn string) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case "sqlite", "":
		db, err = OpenSQLite(dsn)
	case "postgres":
		db, err = OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("install gorm tracing: %w", err)
	}
	return db, nil
}

// OpenSQLite opens or creates the database file at path. Its parent
// directory must exist.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("sqlite directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if err := sqlitePool.apply(db); err != nil {
		return nil, err
	}
	return db, nil
}

// sqliteDSN appends the connection pragmas to path, keeping any query it
// already carries.
func sqliteDSN(path string) string {
	q := url.Values{}
	for _, p := range sqlitePragmas {
		q.Add("_pragma", p)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

// OpenPostgres connects with a libpq-style DSN or URL.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgresPool.apply(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates the candidate and reseed-run tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.Candidate{}, &domain.ReseedRun{})
}
