package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pplcallmesatz/gst-auditor-report/internal/domain"
)

const accessKeyColumns = `id, key_value, is_active, created_at, deactivated_at`

func scanAccessKey(row pgx.Row) (*domain.AccessKey, error) {
	var key domain.AccessKey
	if err := row.Scan(&key.ID, &key.Value, &key.IsActive, &key.CreatedAt, &key.DeactivatedAt); err != nil {
		return nil, err
	}
	return &key, nil
}

// ActiveKey returns the single active key.
func (r *Repository) ActiveKey(ctx context.Context) (*domain.AccessKey, error) {
	query := `SELECT ` + accessKeyColumns + ` FROM gst_access_keys WHERE is_active LIMIT 1`
	key, err := scanAccessKey(r.db.QueryRow(ctx, query))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNoActiveKey
		}
		return nil, err
	}
	return key, nil
}

// FindActiveKey matches value against the active key only.
func (r *Repository) FindActiveKey(ctx context.Context, value string) (*domain.AccessKey, error) {
	query := `SELECT ` + accessKeyColumns + ` FROM gst_access_keys WHERE key_value = $1 AND is_active`
	key, err := scanAccessKey(r.db.QueryRow(ctx, query, value))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNoActiveKey
		}
		return nil, err
	}
	return key, nil
}

// InsertActiveKey stores key as the active key. It fails with ErrActiveKeyExists
// when a concurrent caller won the bootstrap.
func (r *Repository) InsertActiveKey(ctx context.Context, key domain.AccessKey) error {
	query := `INSERT INTO gst_access_keys (id, key_value, is_active, created_at) VALUES ($1, $2, TRUE, $3)`
	if _, err := r.db.Exec(ctx, query, key.ID, key.Value, key.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrActiveKeyExists
		}
		return err
	}
	return nil
}

// RotateKey deactivates the active key and inserts key in one transaction.
func (r *Repository) RotateKey(ctx context.Context, key domain.AccessKey) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE gst_access_keys
		SET is_active = FALSE, deactivated_at = $1
		WHERE is_active
	`, key.CreatedAt); err != nil {
		return fmt.Errorf("deactivate key: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO gst_access_keys (id, key_value, is_active, created_at)
		VALUES ($1, $2, TRUE, $3)
	`, key.ID, key.Value, key.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrActiveKeyExists
		}
		return fmt.Errorf("insert key: %w", err)
	}

	return tx.Commit(ctx)
}

// ListKeys returns keys newest first.
func (r *Repository) ListKeys(ctx context.Context, limit int) ([]domain.AccessKey, error) {
	query := `SELECT ` + accessKeyColumns + ` FROM gst_access_keys ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.AccessKey
	for rows.Next() {
		key, err := scanAccessKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, *key)
	}
	return keys, rows.Err()
}

// InsertAccessLog appends an audit entry.
func (r *Repository) InsertAccessLog(ctx context.Context, entry domain.AccessLogEntry) error {
	query := `
		INSERT INTO gst_access_logs (id, key_id, logged_at, source_ip, browser, os, geolocation, success, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		entry.ID, entry.KeyID, entry.Timestamp, entry.SourceIP, entry.Browser,
		entry.OS, entry.Geolocation, entry.Success, entry.ErrorMessage)
	return err
}

// ListAccessLogs returns the most recent entries first.
func (r *Repository) ListAccessLogs(ctx context.Context, limit int) ([]domain.AccessLogEntry, error) {
	query := `
		SELECT id, key_id, logged_at, source_ip, browser, os, geolocation, success, error_message
		FROM gst_access_logs
		ORDER BY logged_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AccessLogEntry
	for rows.Next() {
		var e domain.AccessLogEntry
		if err := rows.Scan(&e.ID, &e.KeyID, &e.Timestamp, &e.SourceIP, &e.Browser,
			&e.OS, &e.Geolocation, &e.Success, &e.ErrorMessage); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
