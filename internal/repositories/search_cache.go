package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sbilibin2017/gw-user-accounts/internal/logger"
	"github.com/sbilibin2017/gw-user-accounts/internal/models"
)

const searchGenerationKey = "users:search:generation"

// SearchCacheRepository caches full search match sets in Redis. Entries are
// keyed by a generation counter, so bumping it invalidates every term at once.
type SearchCacheRepository struct {
	client *redis.Client
	exp    time.Duration
}

// NewSearchCacheRepository creates a cache whose entries live for expiration.
func NewSearchCacheRepository(client *redis.Client, expiration time.Duration) *SearchCacheRepository {
	return &SearchCacheRepository{
		client: client,
		exp:    expiration,
	}
}

func (r *SearchCacheRepository) key(ctx context.Context, term string) (string, error) {
	gen, err := r.client.Get(ctx, searchGenerationKey).Result()
	if err == redis.Nil {
		gen = "0"
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("users:search:%s:%s", gen, strings.ToLower(term)), nil
}

// Get returns the cached matches for term. ok is false on a miss.
// key is the entry term maps to under the generation current at this call,
// empty when the generation could not be read. Pass it to Set.
func (r *SearchCacheRepository) Get(ctx context.Context, term string) (users []models.UserView, key string, ok bool, err error) {
	key, err = r.key(ctx, term)
	if err != nil {
		return nil, "", false, errors.Wrap(err, "read search generation")
	}

	val, err := r.client.Get(ctx, key).Result()
	logger.Log.Infow("search cache get",
		"key", key,
		"hit", err == nil,
		"error", err,
	)
	if err == redis.Nil {
		return nil, key, false, nil
	}
	if err != nil {
		return nil, key, false, errors.Wrap(err, "read search cache")
	}

	if err := json.Unmarshal([]byte(val), &users); err != nil {
		return nil, key, false, errors.Wrap(err, "decode search cache")
	}
	return users, key, true, nil
}

// Set stores matches under a key returned by Get. A key from a generation
// that has since been retired is written but never read again.
func (r *SearchCacheRepository) Set(ctx context.Context, key string, users []models.UserView) error {
	data, err := json.Marshal(users)
	if err != nil {
		return errors.Wrap(err, "encode search cache")
	}

	err = r.client.Set(ctx, key, data, r.exp).Err()
	logger.Log.Infow("search cache set",
		"key", key,
		"users", len(users),
		"error", err,
	)
	return errors.Wrap(err, "write search cache")
}

// Invalidate drops every cached search by moving to a new generation.
func (r *SearchCacheRepository) Invalidate(ctx context.Context) error {
	gen, err := r.client.Incr(ctx, searchGenerationKey).Result()
	logger.Log.Infow("search cache invalidate",
		"key", searchGenerationKey,
		"result", gen,
		"error", err,
	)
	return errors.Wrap(err, "bump search generation")
}
