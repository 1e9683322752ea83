// Package sqlite contains the encrypted SQLite implementation of repository.ContentRepository.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/and161185/fedicache/internal/crypto/atrest"
	"github.com/and161185/fedicache/internal/errs"
	"github.com/and161185/fedicache/internal/migrate"
)

// Config describes one identity's store file.
type Config struct {
	// Path of the database file.
	Path string
	// Identity binds every sealed row to its store.
	Identity string
	// Secret unlocks the wrapped data key.
	Secret []byte
	// KDF is used when the store is created; existing stores keep their own parameters.
	KDF atrest.KDFParams
}

// Repo implements repository.ContentRepository on one SQLite file.
type Repo struct {
	db     *sql.DB
	sealer *atrest.Sealer
}

// Open opens (creating when missing) the store at cfg.Path, migrates it and unlocks its data key.
func Open(ctx context.Context, cfg Config) (*Repo, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("%w: storage path is required", errs.ErrInvalidArgument)
	}
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("%w: store secret is required", errs.ErrInvalidArgument)
	}

	dsn := filepath.Clean(cfg.Path) +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	dek, err := unlock(ctx, db, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	sealer, err := atrest.NewSealer(dek, cfg.Identity)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db, sealer: sealer}, nil
}

// Close closes the database.
func (r *Repo) Close() error { return r.db.Close() }

// unlock reads and unwraps the data key, creating one for a fresh store.
func unlock(ctx context.Context, db *sql.DB, cfg Config) ([]byte, error) {
	const sel = `SELECT kek_salt, wrapped_dek, kdf_time, kdf_memory, kdf_threads FROM store_meta WHERE id = 1`
	var (
		salt, wrapped []byte
		p             atrest.KDFParams
	)
	err := db.QueryRowContext(ctx, sel).Scan(&salt, &wrapped, &p.Time, &p.MemoryKiB, &p.Threads)
	switch {
	case err == nil:
		return atrest.UnwrapKey(atrest.DeriveKEK(cfg.Secret, salt, p), wrapped)
	case errors.Is(err, sql.ErrNoRows):
		return initKey(ctx, db, cfg)
	default:
		return nil, fmt.Errorf("read store meta: %w", err)
	}
}

func initKey(ctx context.Context, db *sql.DB, cfg Config) ([]byte, error) {
	p := cfg.KDF
	if p.Time == 0 || p.MemoryKiB == 0 || p.Threads == 0 {
		p = atrest.DefaultKDF
	}
	salt, err := atrest.RandomBytes(atrest.SaltLen)
	if err != nil {
		return nil, err
	}
	dek, err := atrest.RandomBytes(atrest.DEKLen)
	if err != nil {
		return nil, err
	}
	wrapped, err := atrest.WrapKey(atrest.DeriveKEK(cfg.Secret, salt, p), dek)
	if err != nil {
		return nil, err
	}
	const ins = `
INSERT INTO store_meta (id, kek_salt, wrapped_dek, kdf_time, kdf_memory, kdf_threads, created_at)
VALUES (1, ?, ?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, ins, salt, wrapped, p.Time, p.MemoryKiB, p.Threads, time.Now().UTC().UnixMilli()); err != nil {
		return nil, fmt.Errorf("write store meta: %w", err)
	}
	return dek, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
