package session

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/walkmapper/walkmapper_core/internal/models"
)

// maxIDAttempts bounds the suffix search for a free session id
const maxIDAttempts = 1000

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	TLS       bool   `toml:"tls"`
	KeyPrefix string `toml:"key_prefix"`
}

// NewClient dials Redis and pings it
func NewClient(ctx context.Context, config RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}

	// Managed Redis offerings usually require TLS
	if config.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisRegistry shares sessions between API instances through Redis.
// Ids are claimed with SETNX so concurrent writers never overwrite each other.
type RedisRegistry struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedis wraps a connected client; prefix namespaces every key
func NewRedis(client *redis.Client, prefix string) *RedisRegistry {
	if prefix == "" {
		prefix = "walkmapper"
	}
	return &RedisRegistry{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisRegistry) recordKey(id string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, id)
}

func (r *RedisRegistry) indexKey() string {
	return r.prefix + ":sessions"
}

func (r *RedisRegistry) Create(ctx context.Context, payload models.SessionPayload) (string, error) {
	created := r.now()
	base := NewID(created)

	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		id := candidateID(base, attempt)
		data, err := json.Marshal(models.SessionRecord{
			SessionID: id,
			CreatedAt: created,
			Payload:   payload,
		})
		if err != nil {
			return "", fmt.Errorf("failed to marshal session: %w", err)
		}

		ok, err := r.client.SetNX(ctx, r.recordKey(id), data, 0).Result()
		if err != nil {
			return "", fmt.Errorf("failed to store session: %w", err)
		}
		if !ok {
			continue
		}

		if err := r.client.ZAdd(ctx, r.indexKey(), redis.Z{
			Score:  float64(created.UnixNano()),
			Member: id,
		}).Err(); err != nil {
			// release the claimed id so no record exists outside the index
			if delErr := r.client.Del(ctx, r.recordKey(id)).Err(); delErr != nil {
				return "", fmt.Errorf("failed to index session: %w (release %s: %v)", err, id, delErr)
			}
			return "", fmt.Errorf("failed to index session: %w", err)
		}
		return id, nil
	}
	return "", fmt.Errorf("no free session id for %s", base)
}

func (r *RedisRegistry) Get(ctx context.Context, id string) (models.SessionRecord, error) {
	data, err := r.client.Get(ctx, r.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.SessionRecord{}, ErrNotFound
	}
	if err != nil {
		return models.SessionRecord{}, err
	}

	var rec models.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.SessionRecord{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return rec, nil
}

func (r *RedisRegistry) List(ctx context.Context) ([]models.SessionSummary, error) {
	ids, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.SessionSummary{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.recordKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	summaries := make([]models.SessionSummary, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry whose record was removed out of band
			continue
		}
		var rec models.SessionRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session: %w", err)
		}
		summaries = append(summaries, summarize(rec))
	}
	return summaries, nil
}

func (r *RedisRegistry) Clear(ctx context.Context) error {
	ids, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, r.recordKey(id))
	}
	keys = append(keys, r.indexKey())
	return r.client.Del(ctx, keys...).Err()
}

// HealthCheck pings the backing Redis
func (r *RedisRegistry) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis ping failed: %w", err)
	}
	return nil
}
