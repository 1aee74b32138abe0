package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PostgresDocuments keeps every collection in one JSONB table keyed by
// (collection, id).
type PostgresDocuments struct {
	db    *sql.DB
	table string
}

func NewPostgresDocuments(db *sql.DB, table string) *PostgresDocuments {
	if table == "" {
		table = "documents"
	}
	return &PostgresDocuments{db: db, table: table}
}

func (s *PostgresDocuments) Get(ctx context.Context, collection, id string) (*Document, error) {
	query := fmt.Sprintf(`SELECT data FROM %s WHERE collection = $1 AND id = $2`, s.table)

	var data []byte
	err := s.db.QueryRowContext(ctx, query, collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return &Document{ID: id, Data: data}, nil
}

func (s *PostgresDocuments) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	match, err := filterJSON(filters)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	query := fmt.Sprintf(
		`SELECT id, data FROM %s WHERE collection = $1 AND data @> $2::jsonb ORDER BY created_at, id`,
		s.table,
	)
	rows, err := s.db.QueryContext(ctx, query, collection, string(match))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		docs = append(docs, Document{ID: id, Data: data})
	}
	return docs, rows.Err()
}

func (s *PostgresDocuments) Set(ctx context.Context, collection, id string, data interface{}) error {
	fields, err := toFields(id, data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`, s.table)
	if _, err := s.db.ExecContext(ctx, query, collection, id, string(payload)); err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PostgresDocuments) Create(ctx context.Context, collection, id string, data interface{}) error {
	fields, err := toFields(id, data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO NOTHING`, s.table)
	res, err := s.db.ExecContext(ctx, query, collection, id, string(payload))
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrConflict, collection, id)
	}
	return nil
}

func (s *PostgresDocuments) Add(ctx context.Context, collection string, data interface{}) (string, error) {
	id := newID()
	if err := s.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresDocuments) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	query := fmt.Sprintf(
		`UPDATE %s SET data = data || $3::jsonb, updated_at = NOW() WHERE collection = $1 AND id = $2`,
		s.table,
	)
	res, err := s.db.ExecContext(ctx, query, collection, id, string(patch))
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return nil
}

func (s *PostgresDocuments) Increment(ctx context.Context, collection, id, field string, delta int64) (int64, error) {
	query := fmt.Sprintf(`UPDATE %s
		SET data = jsonb_set(data, ARRAY[$3::text], to_jsonb(COALESCE((data->>$3)::bigint, 0) + $4)),
		    updated_at = NOW()
		WHERE collection = $1 AND id = $2
		RETURNING (data->>$3)::bigint`, s.table)

	var value int64
	err := s.db.QueryRowContext(ctx, query, collection, id, field, delta).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return 0, fmt.Errorf("increment %s/%s.%s: %w", collection, id, field, err)
	}
	return value, nil
}
