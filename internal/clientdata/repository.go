// Package clientdata provides persistent caching for external API client responses.
// All data is stored as JSON blobs with expiration timestamps for cache-first behavior.
package clientdata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	TableQuotes        = "quotes"
	TableExchangeRates = "exchange_rates"
)

// AllTables lists all tables in the cache database for cleanup operations.
var AllTables = []string{
	TableQuotes,
	TableExchangeRates,
}

// keyColumns maps each table to its primary key column.
// It doubles as the table allow-list.
var keyColumns = map[string]string{
	TableQuotes:        "symbol",
	TableExchangeRates: "pair",
}

// Record is a cached blob together with its expiry.
type Record struct {
	ExpiresAt time.Time
	Data      json.RawMessage
}

// Fresh reports whether the record is still within its TTL at now.
func (r Record) Fresh(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

// Repository provides cache operations for client data.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// validateTable ensures the table name is in our allowed list.
// This prevents SQL injection through table names.
func validateTable(table string) (string, error) {
	keyCol, ok := keyColumns[table]
	if !ok {
		return "", fmt.Errorf("invalid table name: %s", table)
	}
	return keyCol, nil
}

// Store saves data with expiration = now + ttl.
// Uses INSERT OR REPLACE so the last write wins.
func (r *Repository) Store(ctx context.Context, table, key string, data interface{}, ttl time.Duration) error {
	keyCol, err := validateTable(table)
	if err != nil {
		return err
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (%s, data, expires_at) VALUES (?, ?, ?)",
		table, keyCol,
	)

	expiresAt := r.now().Add(ttl).Unix()
	if _, err := r.db.ExecContext(ctx, query, key, string(jsonData), expiresAt); err != nil {
		return fmt.Errorf("failed to store data in %s: %w", table, err)
	}

	return nil
}

// GetIfFresh returns data only if expires_at > now, nil otherwise.
// Returns nil, nil if the key doesn't exist or data is expired.
// Use Get() to retrieve stale data as a fallback when API calls fail.
func (r *Repository) GetIfFresh(ctx context.Context, table, key string) (json.RawMessage, error) {
	record, err := r.Get(ctx, table, key)
	if err != nil || record == nil {
		return nil, err
	}
	if !record.Fresh(r.now()) {
		return nil, nil
	}
	return record.Data, nil
}

// Get returns the record regardless of expiration status.
// Returns nil, nil if the key doesn't exist.
func (r *Repository) Get(ctx context.Context, table, key string) (*Record, error) {
	keyCol, err := validateTable(table)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT data, expires_at FROM %s WHERE %s = ?", table, keyCol)

	var data string
	var expiresAt int64
	err = r.db.QueryRowContext(ctx, query, key).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data from %s: %w", table, err)
	}

	return &Record{Data: json.RawMessage(data), ExpiresAt: time.Unix(expiresAt, 0)}, nil
}

// GetMany returns the records present for keys, regardless of expiration.
// Missing keys are absent from the result.
func (r *Repository) GetMany(ctx context.Context, table string, keys []string) (map[string]Record, error) {
	keyCol, err := validateTable(table)
	if err != nil {
		return nil, err
	}

	result := make(map[string]Record, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	query := fmt.Sprintf(
		"SELECT %s, data, expires_at FROM %s WHERE %s IN (%s)",
		keyCol, table, keyCol, placeholders,
	)

	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, data string
		var expiresAt int64
		if err := rows.Scan(&key, &data, &expiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		result[key] = Record{Data: json.RawMessage(data), ExpiresAt: time.Unix(expiresAt, 0)}
	}

	return result, rows.Err()
}

// Delete removes a specific entry.
func (r *Repository) Delete(ctx context.Context, table, key string) error {
	keyCol, err := validateTable(table)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, keyCol)
	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}

	return nil
}

// DeleteExpired removes rows that expired more than retention ago.
// Returns the number of rows deleted.
func (r *Repository) DeleteExpired(ctx context.Context, table string, retention time.Duration) (int64, error) {
	if _, err := validateTable(table); err != nil {
		return 0, err
	}

	cutoff := r.now().Add(-retention).Unix()
	result, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", table), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired from %s: %w", table, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
	}

	return deleted, nil
}

// DeleteAllExpired removes expired entries from all tables.
// Returns a map of table name to number of rows deleted.
func (r *Repository) DeleteAllExpired(ctx context.Context, retention time.Duration) (map[string]int64, error) {
	results := make(map[string]int64)

	for _, table := range AllTables {
		deleted, err := r.DeleteExpired(ctx, table, retention)
		if err != nil {
			return results, err
		}
		results[table] = deleted
	}

	return results, nil
}
