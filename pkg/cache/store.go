// Package cache backs a small merge-result cache keyed by source image
// digest, so repeated requests for the same immutable image reuse the
// already-flattened archive instead of re-merging it.
package cache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/maxdollinger/strata/pkg/utils"
)

//go:embed migration/*.sql
var migrationFS embed.FS

// Record is one completed flatten build.
type Record struct {
	ID          string
	ImageDigest string
	ImageRef    string
	ArchivePath string
	CreatedAt   time.Time
}

// Store looks up and records flatten builds by image digest.
type Store interface {
	Lookup(ctx context.Context, imageDigest string) (*Record, error)
	Insert(ctx context.Context, rec Record) error
	Close() error
}

type sqliteStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) a sqlite-backed Store at path and
// applies the embedded schema migration.
func Open(path string) (Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if err := initSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	data, err := migrationFS.ReadFile("migration/001_initial.sql")
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

func (s *sqliteStore) Lookup(ctx context.Context, imageDigest string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, image_digest, image_ref, archive_path, created_at FROM merge_results WHERE image_digest = ?`,
		imageDigest)

	var rec Record
	var createdAt string
	if err := row.Scan(&rec.ID, &rec.ImageDigest, &rec.ImageRef, &rec.ArchivePath, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup merge result: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	rec.CreatedAt = ts

	return &rec, nil
}

func (s *sqliteStore) Insert(ctx context.Context, rec Record) error {
	id, err := utils.NewUUID7()
	if err != nil {
		return fmt.Errorf("generate record id: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO merge_results (id, image_digest, image_ref, archive_path, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(image_digest) DO UPDATE SET archive_path = excluded.archive_path, created_at = excluded.created_at`,
		id, rec.ImageDigest, rec.ImageRef, rec.ArchivePath, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert merge result: %w", err)
	}
	return nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
