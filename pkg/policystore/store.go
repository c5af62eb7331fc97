package policystore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	_ "modernc.org/sqlite"
)

// Flags is a per-package bitmask of notification overrides.
type Flags int64

const (
	// FlagSuppressMemtagNotification silences memory tagging crash alerts for a package.
	FlagSuppressMemtagNotification Flags = 1 << iota
)

const schema = `CREATE TABLE IF NOT EXISTS package_flags (
	package_name TEXT PRIMARY KEY,
	flags INTEGER NOT NULL DEFAULT 0
)`

// InMemory is the data source name of a private, non persisted store.
const InMemory = ":memory:"

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening policy store %s: %w", path, err)
	}
	// a single connection keeps :memory: databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating policy store schema: %w", err)
	}
	logger.L().Debug("policy store opened", helpers.String("path", path))
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Flags returns the flags of packageName, zero when the package has no row.
func (s *Store) Flags(ctx context.Context, packageName string) (Flags, error) {
	var flags Flags
	err := s.db.QueryRowContext(ctx,
		`SELECT flags FROM package_flags WHERE package_name = ?`, packageName).Scan(&flags)
	switch {
	case err == sql.ErrNoRows:
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("reading flags of %s: %w", packageName, err)
	}
	return flags, nil
}

func (s *Store) SetFlags(ctx context.Context, packageName string, flags Flags) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO package_flags (package_name, flags) VALUES (?, ?)
		ON CONFLICT(package_name) DO UPDATE SET flags = excluded.flags`,
		packageName, flags)
	if err != nil {
		return fmt.Errorf("writing flags of %s: %w", packageName, err)
	}
	return nil
}

func (s *Store) IsMemtagNotificationSuppressed(packageName string) (bool, error) {
	flags, err := s.Flags(context.Background(), packageName)
	if err != nil {
		return false, err
	}
	return flags&FlagSuppressMemtagNotification != 0, nil
}
