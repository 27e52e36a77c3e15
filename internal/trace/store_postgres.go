package trace

import (
	"context"

	"llmos/internal/objectstore"
)

// NewPostgresStore is the optional Postgres-backed counterpart to
// NewFileStore (§11): same Store logic, durable across hosts instead of tied
// to one process's disk. The backing table is always "traces".
func NewPostgresStore(ctx context.Context, databaseURL string) (*Store, error) {
	backend, err := objectstore.NewPostgresStore(ctx, databaseURL, "traces")
	if err != nil {
		return nil, err
	}
	return NewStore(backend), nil
}
