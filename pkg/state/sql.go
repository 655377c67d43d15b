package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
)

var (
	ErrDBConnection = errors.New("database connection error")
	ErrDBQuery      = errors.New("database query error")
	ErrMigration    = errors.New("database migration error")
)

var migrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "1_create_participant_state",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS participant_state (
					key TEXT PRIMARY KEY,
					data BYTEA NOT NULL,
					updated_at TIMESTAMP NOT NULL
				)`,
			},
			Down: []string{
				`DROP TABLE IF EXISTS participant_state`,
			},
		},
	},
}

type sqlStore struct {
	db *sqlx.DB
}

func NewSQLite(path string) (Store, error) {
	return newSQLStore("sqlite3", path, "sqlite3")
}

func NewPostgres(dsn string) (Store, error) {
	return newSQLStore("pgx", dsn, "postgres")
}

func newSQLStore(driver, dsn, dialect string) (Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := migrate.Exec(db.DB, dialect, migrations, migrate.Up); err != nil {
		return nil, errors.Join(fmt.Errorf("%w: %w", ErrMigration, err), db.Close())
	}

	return &sqlStore{db: db}, nil
}

func (s *sqlStore) Load(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	var data []byte
	query := s.db.Rebind(`SELECT data FROM participant_state WHERE key = ?`)
	if err := s.db.GetContext(ctx, &data, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return data, nil
}

func (s *sqlStore) Save(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	if data == nil {
		data = []byte{}
	}

	query := s.db.Rebind(`INSERT INTO participant_state (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, query, key, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return nil
}

func (s *sqlStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	query := s.db.Rebind(`DELETE FROM participant_state WHERE key = ?`)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
