package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go-shortlinks/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

const mappingKeyPrefix = "link:"

var _ domain.MappingStore = (*mappingStore)(nil)

// mappingStore keeps one JSON value per short code. Keys of links with an
// expiry carry a matching EXPIREAT so stale entries age out on their own.
type mappingStore struct {
	rdb *redis.Client
	log *log.Helper
}

func NewMappingStore(data *Data, logger log.Logger) domain.MappingStore {
	return &mappingStore{
		rdb: data.rdb,
		log: log.NewHelper(logger),
	}
}

func mappingKey(code string) string {
	return mappingKeyPrefix + code
}

func (s *mappingStore) Get(ctx context.Context, code string) (*domain.LinkMapping, error) {
	raw, err := s.rdb.Get(ctx, mappingKey(code)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var m domain.LinkMapping
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode mapping %s: %w", code, err)
	}
	return &m, nil
}

func (s *mappingStore) Put(ctx context.Context, code string, m *domain.LinkMapping) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	key := mappingKey(code)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, raw, 0)
		if m.ExpiresAt != nil {
			pipe.ExpireAt(ctx, key, *m.ExpiresAt)
		}
		return nil
	})
	return err
}

func (s *mappingStore) Delete(ctx context.Context, code string) error {
	return s.rdb.Del(ctx, mappingKey(code)).Err()
}

func (s *mappingStore) CompareAndSwap(ctx context.Context, code string, old, next *domain.LinkMapping) (bool, error) {
	var raw []byte
	if next != nil {
		var err error
		if raw, err = json.Marshal(next); err != nil {
			return false, err
		}
	}

	key := mappingKey(code)
	swapped := false
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		var m domain.LinkMapping
		if err := json.Unmarshal(cur, &m); err != nil {
			return fmt.Errorf("decode mapping %s: %w", code, err)
		}
		if !m.Equal(old) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, key)
				return nil
			}
			pipe.Set(ctx, key, raw, 0)
			if next.ExpiresAt != nil {
				pipe.ExpireAt(ctx, key, *next.ExpiresAt)
			}
			return nil
		})
		if err != nil {
			return err
		}
		swapped = true
		return nil
	}, key)
	if err == redis.TxFailedErr {
		s.log.WithContext(ctx).Debugf("mapping %s changed during compare-and-swap, kept", code)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return swapped, nil
}

func (s *mappingStore) Exists(ctx context.Context, code string) (bool, error) {
	n, err := s.rdb.Exists(ctx, mappingKey(code)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *mappingStore) Scan(ctx context.Context, cursor uint64, count int64) ([]string, uint64, error) {
	keys, next, err := s.rdb.Scan(ctx, cursor, mappingKeyPrefix+"*", count).Result()
	if err != nil {
		return nil, 0, err
	}
	codes := make([]string, 0, len(keys))
	for _, k := range keys {
		codes = append(codes, strings.TrimPrefix(k, mappingKeyPrefix))
	}
	return codes, next, nil
}
