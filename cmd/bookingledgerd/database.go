package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/MarkoPoloResearchLab/bookingledger/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/bookingledger/internal/store/pgstore"
	"github.com/MarkoPoloResearchLab/bookingledger/pkg/wallet"
	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite"

	sqliteMemoryPath = ":memory:"
)

// sqlitePragmas are applied to every sqlite connection unless the DSN sets them.
// Foreign keys are off by default in sqlite and the schema relies on cascades.
var sqlitePragmas = []struct {
	name  string
	value string
}{
	{name: "foreign_keys", value: "1"},
	{name: "busy_timeout", value: "5000"},
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var db *gorm.DB
	cfg := &gorm.Config{}
	switch driver {
	case driverPostgres:
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	case driverSQLite:
		db, err = gorm.Open(sqlite.Open(withSQLitePragmas(sqlitePath)), cfg)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	if driver == driverSQLite {
		// Writers serialize on the database file.
		sqlDB.SetMaxOpenConns(1)
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

// openWalletStore serves wallets through pgx on postgres and through GORM otherwise.
func openWalletStore(ctx context.Context, driver string, dsn string, db *gorm.DB) (wallet.Store, func(), error) {
	if driver != driverPostgres {
		return gormstore.NewWalletStore(db), func() {}, nil
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pgstore.New(pool), pool.Close, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return driverPostgres, "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "bookingledger.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		if err != nil {
			return "", "", err
		}
		if u.RawQuery != "" {
			sqlitePath += "?" + u.RawQuery
		}
		return driverSQLite, sqlitePath, nil
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return driverSQLite, sqlitePath, err
}

// withSQLitePragmas appends the default pragmas missing from path.
func withSQLitePragmas(path string) string {
	if path == sqliteMemoryPath {
		return path
	}
	for _, pragma := range sqlitePragmas {
		if strings.Contains(path, "_pragma="+pragma.name+"(") {
			continue
		}
		separator := "?"
		if strings.Contains(path, "?") {
			separator = "&"
		}
		path += separator + "_pragma=" + pragma.name + "(" + pragma.value + ")"
	}
	return path
}

func normalizeSQLitePath(path string) (string, error) {
	if path == sqliteMemoryPath {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}
