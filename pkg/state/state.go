// Package state persists participant session state between runs.
package state

import (
	"context"
	"errors"
	"fmt"
)

const (
	TypeMemory   = "memory"
	TypeBadger   = "badger"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

var (
	ErrEmptyKey    = errors.New("empty key")
	ErrNotFound    = errors.New("state not found")
	ErrUnsupported = errors.New("unsupported state store type")
)

// Store is a key-value store for opaque state blobs.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Type string `env:"TYPE" envDefault:"badger" toml:"type"`

	BadgerPath string `env:"BADGER_PATH" envDefault:"./data/participant" toml:"badger_path"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"./participant.db"   toml:"sqlite_path"`

	PostgresHost    string `env:"POSTGRES_HOST"    envDefault:"localhost"   toml:"postgres_host"`
	PostgresPort    string `env:"POSTGRES_PORT"    envDefault:"5432"        toml:"postgres_port"`
	PostgresUser    string `env:"POSTGRES_USER"    envDefault:"participant" toml:"postgres_user"`
	PostgresPass    string `env:"POSTGRES_PASS"    envDefault:"participant" toml:"postgres_pass"`
	PostgresDB      string `env:"POSTGRES_DB"      envDefault:"participant" toml:"postgres_db"`
	PostgresSSLMode string `env:"POSTGRES_SSLMODE" envDefault:"disable"     toml:"postgres_sslmode"`
}

func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case TypeMemory:
		return NewMemory(), nil
	case TypeBadger:
		return NewBadger(cfg.BadgerPath)
	case TypeSQLite:
		return NewSQLite(cfg.SQLitePath)
	case TypePostgres:
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPass, cfg.PostgresDB, cfg.PostgresSSLMode)

		return NewPostgres(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, cfg.Type)
	}
}
