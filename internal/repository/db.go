package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	pkgconfig "github.com/cloud-wave-best-zizon/checkout-service/pkg/config"
)

const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

// Open connects to the configured database and applies pool settings.
// SQLite allows a single writer, so its pool is pinned to one connection and
// transactions queue for it instead of failing with SQLITE_BUSY.
func Open(cfg *pkgconfig.Config) (*sqlx.DB, error) {
	return OpenDSN(cfg.DBDriver, cfg.DBDSN, cfg.DBMaxOpenConns)
}

func OpenDSN(driver, dsn string, maxOpen int) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite, DriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxIdleConns(10)
		db.SetMaxOpenConns(maxOpen)
		db.SetConnMaxLifetime(time.Hour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaFor(db.DriverName()) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			if isDuplicateIndex(err) {
				continue
			}
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func isDuplicateIndex(err error) bool {
	var myErr *mysql.MySQLError
	// ER_DUP_KEYNAME
	return errors.As(err, &myErr) && myErr.Number == 1061
}

func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// ER_DUP_ENTRY
		return myErr.Number == 1062
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
