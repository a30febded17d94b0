package prefs

import (
	"context"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type SQLiteStore struct {
	DB *sqlx.DB
}

// OpenSQLite connects to the database at dsn and applies migrations.
func OpenSQLite(dsn string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}
	// one connection keeps ":memory:" databases coherent and serialises writers
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{DB: db}
	if err := s.migrate(log); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(log zerolog.Logger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{log: log.With().Str("component", "migrations").Logger()})

	if err := goose.SetDialect(string(goose.DialectSQLite3)); err != nil {
		return err
	}
	if err := goose.Up(s.DB.DB, "migrations"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.DB.Close() }

type row struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

func (s *SQLiteStore) Load(ctx context.Context) (map[string]string, error) {
	var rows []row
	if err := s.DB.SelectContext(ctx, &rows, "SELECT key, value FROM preferences"); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

func (s *SQLiteStore) Save(ctx context.Context, values map[string]string) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	var committed bool
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	now := time.Now().Unix()
	for k, v := range values {
		_, err := tx.ExecContext(ctx, `
		  INSERT INTO preferences (key, value, updated_at)
		  VALUES (?, ?, ?)
		  ON CONFLICT (key) DO UPDATE SET
		  value = excluded.value,
		  updated_at = excluded.updated_at`,
			k, v, now)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// MemoryStore keeps preferences for the lifetime of the process only.
type MemoryStore struct {
	m    sync.Mutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]string{}}
}

func (ms *MemoryStore) Load(context.Context) (map[string]string, error) {
	ms.m.Lock()
	defer ms.m.Unlock()
	out := make(map[string]string, len(ms.data))
	for k, v := range ms.data {
		out[k] = v
	}
	return out, nil
}

func (ms *MemoryStore) Save(_ context.Context, values map[string]string) error {
	ms.m.Lock()
	defer ms.m.Unlock()
	for k, v := range values {
		ms.data[k] = v
	}
	return nil
}

type gooseLogger struct {
	log zerolog.Logger
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.log.Fatal().Msgf(format, v...)
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.log.Debug().Msgf(format, v...)
}
