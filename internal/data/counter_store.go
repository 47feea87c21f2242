package data

import (
	"context"
	"encoding/json"
	"time"

	"go-shortlinks/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

const defaultCounterTTL = time.Minute

var _ domain.CounterStore = (*counterStore)(nil)

type counterStore struct {
	rdb *redis.Client
	log *log.Helper
}

// NewCounterStore creates the rate limit counter store.
func NewCounterStore(data *Data, logger log.Logger) domain.CounterStore {
	return &counterStore{
		rdb: data.rdb,
		log: log.NewHelper(logger),
	}
}

func (s *counterStore) Get(ctx context.Context, key string) (*domain.RateLimitCounter, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var c domain.RateLimitCounter
	if err := json.Unmarshal(raw, &c); err != nil {
		// A garbled counter is treated as absent and overwritten on Set.
		s.log.WithContext(ctx).Warnf("discarding undecodable counter %s: %v", key, err)
		return nil, nil
	}
	return &c, nil
}

func (s *counterStore) Set(ctx context.Context, key string, c *domain.RateLimitCounter, ttl time.Duration) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = defaultCounterTTL
	}
	return s.rdb.Set(ctx, key, raw, ttl).Err()
}
