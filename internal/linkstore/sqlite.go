package linkstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"

	"paylink/internal/logger"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore keeps links in a SQLite database as JSON payloads.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
	log zerolog.Logger
}

// NewSQLiteStore opens (or creates) the database at dbPath and applies
// pending migrations. A zero ttl keeps links forever.
func NewSQLiteStore(ctx context.Context, dbPath string, ttl time.Duration) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteStore{
		db:  db,
		ttl: ttl,
		now: time.Now,
		log: logger.WithComponent("linkstore-sqlite"),
	}, nil
}

// RunMigrations applies the embedded migrations on a dedicated connection.
func RunMigrations(dbPath string) error {
	migrateDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Put(ctx context.Context, link Link) error {
	payload, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("encode link: %w", err)
	}

	now := s.now()
	var expiresAt sql.NullInt64
	if s.ttl > 0 {
		expiresAt = sql.NullInt64{Int64: now.Add(s.ttl).Unix(), Valid: true}
	}

	// An expired row with the same id is replaced; a live one is kept.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_links (id, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
		WHERE payment_links.expires_at IS NOT NULL AND payment_links.expires_at <= ?`,
		link.ID, string(payload), now.Unix(), expiresAt, now.Unix())
	if err != nil {
		return fmt.Errorf("insert link: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert link: %w", err)
	}
	if affected == 0 {
		return ErrLinkExists
	}

	s.log.Debug().Str("link_id", link.ID).Msg("Link saved to SQLite")
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Link, error) {
	var (
		payload   string
		expiresAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM payment_links WHERE id = ?`, id).
		Scan(&payload, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select link: %w", err)
	}
	if expiresAt.Valid && expiresAt.Int64 <= s.now().Unix() {
		return nil, ErrLinkNotFound
	}

	var link Link
	if err := json.Unmarshal([]byte(payload), &link); err != nil {
		return nil, fmt.Errorf("decode link %s: %w", id, err)
	}
	return &link, nil
}

// PurgeExpired deletes expired links and returns how many were removed.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM payment_links WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge links: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
