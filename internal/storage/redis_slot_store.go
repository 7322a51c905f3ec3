package storage

import (
	"context"
	"crypto/tls"

	"github.com/redis/go-redis/v9"
)

// RedisSlotStore keeps the word map in Redis under slot:<hex> keys. Zero-word
// writes delete the key so absent slots stay absent.
type RedisSlotStore struct {
	client *redis.Client
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	UseTLS   bool
}

func NewRedisSlotStore(cfg RedisConfig) *RedisSlotStore {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	if cfg.UseTLS {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return &RedisSlotStore{client: redis.NewClient(opts)}
}

func (s *RedisSlotStore) Get(ctx context.Context, slot Slot) (Word, error) {
	val, err := s.client.Get(ctx, "slot:"+slot.Hex()).Bytes()
	if err == redis.Nil {
		return Word{}, nil
	} else if err != nil {
		return Word{}, err
	}
	var w Word
	copy(w[:], val)
	return w, nil
}

func (s *RedisSlotStore) Set(ctx context.Context, slot Slot, word Word) error {
	key := "slot:" + slot.Hex()
	if word.IsZero() {
		return s.client.Del(ctx, key).Err()
	}
	return s.client.Set(ctx, key, word[:], 0).Err()
}

func (s *RedisSlotStore) Close() error {
	return s.client.Close()
}
