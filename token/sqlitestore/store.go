package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jrsteele09/go-campsite-client/token"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Keys under which the pair is stored, matching the browser storage keys of
// the web client so both can share a data export.
const (
	accessKey  = "token"
	refreshKey = "refresh_token"
)

const schema = `CREATE TABLE IF NOT EXISTS credentials (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

var _ token.Store = (*Store)(nil)

// Store persists the credential pair in a SQLite file.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (creating if needed) the credential store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// a single connection serialises writers
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Save(ctx context.Context, pair token.Pair) {
	if !pair.Valid() {
		log.Warn().Msg("refusing to store an incomplete credential pair")
		return
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsert(ctx, tx, accessKey, pair.Access); err != nil {
			return err
		}
		return upsert(ctx, tx, refreshKey, pair.Refresh)
	})
	if err != nil {
		log.Err(err).Msg("failed to save credentials")
	}
}

func (s *Store) Read(ctx context.Context) (token.Pair, bool) {
	if s == nil || s.sqlDB == nil {
		return token.Pair{}, false
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT key, value FROM credentials WHERE key IN (?, ?)`, accessKey, refreshKey)
	if err != nil {
		log.Err(err).Msg("failed to read credentials")
		return token.Pair{}, false
	}
	defer func() {
		_ = rows.Close()
	}()

	var pair token.Pair
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			log.Err(err).Msg("failed to scan credentials")
			return token.Pair{}, false
		}
		switch key {
		case accessKey:
			pair.Access = value
		case refreshKey:
			pair.Refresh = value
		}
	}
	if err := rows.Err(); err != nil {
		log.Err(err).Msg("failed to iterate credentials")
		return token.Pair{}, false
	}

	if !pair.Valid() {
		return token.Pair{}, false
	}
	return pair, true
}

func (s *Store) SetAccess(ctx context.Context, access string) {
	if access == "" {
		return
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var refresh string
		err := tx.QueryRowContext(ctx, `SELECT value FROM credentials WHERE key = ?`, refreshKey).Scan(&refresh)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read refresh token: %w", err)
		}
		return upsert(ctx, tx, accessKey, access)
	})
	if err != nil {
		log.Err(err).Msg("failed to update access token")
	}
}

func (s *Store) Clear(ctx context.Context) {
	if s == nil || s.sqlDB == nil {
		return
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM credentials WHERE key IN (?, ?)`, accessKey, refreshKey); err != nil {
		log.Err(err).Msg("failed to clear credentials")
	}
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func upsert(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO credentials (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}
