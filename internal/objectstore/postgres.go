package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements ObjectStore over a single table, keyed by object
// key, so any ObjectStore-consuming component (trace.Store among them) can be
// pointed at Postgres instead of local disk without code changes on its side.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresStore connects to databaseURL and ensures the backing table
// exists. table defaults to "objects" when empty.
func NewPostgresStore(ctx context.Context, databaseURL, table string) (*PostgresStore, error) {
	if table == "" {
		table = "objects"
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{pool: pool, table: table}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS `+s.table+` (
	key TEXT PRIMARY KEY,
	body BYTEA NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	return err
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Get(ctx context.Context, key string) (io.ReadCloser, ObjectAttrs, error) {
	var body []byte
	var contentType string
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, `SELECT body, content_type, updated_at FROM `+s.table+` WHERE key = $1`, key).
		Scan(&body, &contentType, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ObjectAttrs{}, ErrNotFound
		}
		return nil, ObjectAttrs{}, err
	}
	attrs := ObjectAttrs{
		Key:          key,
		Size:         int64(len(body)),
		ContentType:  contentType,
		LastModified: updatedAt.UTC(),
	}
	return io.NopCloser(bytes.NewReader(body)), attrs, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (string, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO `+s.table+` (key, body, content_type, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (key) DO UPDATE SET body = $2, content_type = $3, updated_at = now()`,
		key, body, opts.ContentType)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(len(body)), nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE key = $1`, key)
	return err
}

func (s *PostgresStore) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, length(body), updated_at FROM `+s.table+` WHERE key LIKE $1 ORDER BY key`, opts.Prefix+"%")
	if err != nil {
		return ListResult{}, err
	}
	defer rows.Close()

	var objects []ObjectAttrs
	prefixSet := make(map[string]bool)
	for rows.Next() {
		var key string
		var size int64
		var updatedAt time.Time
		if err := rows.Scan(&key, &size, &updatedAt); err != nil {
			return ListResult{}, err
		}
		if opts.Delimiter != "" {
			suffix := strings.TrimPrefix(key, opts.Prefix)
			if idx := strings.Index(suffix, opts.Delimiter); idx >= 0 {
				prefixSet[opts.Prefix+suffix[:idx+1]] = true
				continue
			}
		}
		objects = append(objects, ObjectAttrs{Key: key, Size: size, LastModified: updatedAt.UTC()})
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, err
	}

	var prefixes []string
	for p := range prefixSet {
		prefixes = append(prefixes, p)
	}

	if opts.MaxKeys > 0 && len(objects) > opts.MaxKeys {
		return ListResult{Objects: objects[:opts.MaxKeys], CommonPrefixes: prefixes, IsTruncated: true}, nil
	}
	return ListResult{Objects: objects, CommonPrefixes: prefixes}, nil
}

func (s *PostgresStore) Head(ctx context.Context, key string) (ObjectAttrs, error) {
	var size int64
	var contentType string
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, `SELECT length(body), content_type, updated_at FROM `+s.table+` WHERE key = $1`, key).
		Scan(&size, &contentType, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ObjectAttrs{}, ErrNotFound
		}
		return ObjectAttrs{}, err
	}
	return ObjectAttrs{Key: key, Size: size, ContentType: contentType, LastModified: updatedAt.UTC()}, nil
}

func (s *PostgresStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	tag, err := s.pool.Exec(ctx, `
INSERT INTO `+s.table+` (key, body, content_type, updated_at)
SELECT $2, body, content_type, now() FROM `+s.table+` WHERE key = $1
ON CONFLICT (key) DO UPDATE SET body = EXCLUDED.body, content_type = EXCLUDED.content_type, updated_at = now()`,
		srcKey, dstKey)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM `+s.table+` WHERE key = $1)`, key).Scan(&exists)
	return exists, err
}

var _ ObjectStore = (*PostgresStore)(nil)
