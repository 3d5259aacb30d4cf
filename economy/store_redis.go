package economy

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultRedisKeyPrefix = "economy:wallets:"

// RedisStore keeps one hash per owner; fields are currency IDs, values JSON records.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisClient parses a redis:// URL and checks connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Load(ctx context.Context, owner, currencyID string) (*BalanceRecord, error) {
	raw, err := s.client.HGet(ctx, s.prefix+owner, currencyID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis load wallet %s/%s", owner, currencyID)
	}
	var record BalanceRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, errors.Wrapf(err, "decode wallet %s/%s", owner, currencyID)
	}
	return &record, nil
}

func (s *RedisStore) Save(ctx context.Context, owner, currencyID string, record *BalanceRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "encode wallet")
	}
	if err := s.client.HSet(ctx, s.prefix+owner, currencyID, data).Err(); err != nil {
		return errors.Wrapf(err, "redis save wallet %s/%s", owner, currencyID)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, owner string) (map[string]*BalanceRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.prefix+owner).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "redis list wallets of %s", owner)
	}
	result := make(map[string]*BalanceRecord, len(fields))
	for currencyID, raw := range fields {
		var record BalanceRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, errors.Wrapf(err, "decode wallet %s/%s", owner, currencyID)
		}
		result[currencyID] = &record
	}
	return result, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
