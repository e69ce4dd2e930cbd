package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const batchResultPrefix = "results/"

// BatchResultStore holds generated answer files keyed by the requesting user,
// awaiting the file-consent handshake. Get returns (nil, nil) when no result
// is pending for the user.
type BatchResultStore interface {
	Put(ctx context.Context, userID string, payload []byte, ttl time.Duration) error
	Get(ctx context.Context, userID string) ([]byte, error)
	Delete(ctx context.Context, userID string) error
}

type batchResultStore struct {
	client *redis.Client
}

// NewBatchResultStore instantiates the redis-backed store.
func NewBatchResultStore(client *redis.Client) BatchResultStore {
	return &batchResultStore{client: client}
}

func (r *batchResultStore) Put(ctx context.Context, userID string, payload []byte, ttl time.Duration) error {
	return r.client.Set(ctx, batchResultPrefix+userID, payload, ttl).Err()
}

func (r *batchResultStore) Get(ctx context.Context, userID string) ([]byte, error) {
	payload, err := r.client.Get(ctx, batchResultPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (r *batchResultStore) Delete(ctx context.Context, userID string) error {
	return r.client.Del(ctx, batchResultPrefix+userID).Err()
}
