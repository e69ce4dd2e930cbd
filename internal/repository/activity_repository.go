package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-assistant/internal/domain"
)

// ActivityIndex maps knowledge-base activity reference ids to the chat
// activity ids of the answer cards previously posted for them.
// GetByReference returns "" when no mapping exists.
type ActivityIndex interface {
	Add(ctx context.Context, entity domain.ActivityEntity) error
	GetByReference(ctx context.Context, referenceID string) (string, error)
}

type activityIndex struct {
	pool *pgxpool.Pool
}

// NewActivityIndex instantiates the postgres-backed index.
func NewActivityIndex(pool *pgxpool.Pool) ActivityIndex {
	return &activityIndex{pool: pool}
}

func (r *activityIndex) Add(ctx context.Context, entity domain.ActivityEntity) error {
	const query = `
        INSERT INTO activity_index (reference_id, activity_id)
        VALUES ($1,$2)
        ON CONFLICT (reference_id) DO UPDATE SET activity_id=EXCLUDED.activity_id`
	_, err := r.pool.Exec(ctx, query, entity.ActivityReferenceID, entity.ActivityID)
	return err
}

func (r *activityIndex) GetByReference(ctx context.Context, referenceID string) (string, error) {
	const query = `SELECT activity_id FROM activity_index WHERE reference_id=$1`

	var activityID string
	err := r.pool.QueryRow(ctx, query, referenceID).Scan(&activityID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return activityID, nil
}
