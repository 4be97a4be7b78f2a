package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/backstage/services/gamebot/config"
	"example.com/backstage/services/gamebot/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// ErrDisabled is returned by History when the journal is not configured
var ErrDisabled = errors.New("journal is disabled")

// RedisJournal keeps a capped list of recent lifecycle records in Redis
type RedisJournal struct {
	client  *redis.Client
	key     string
	ttl     time.Duration
	size    int64
	enabled bool
}

// NewRedisJournal connects to Redis; a disabled config yields a no-op journal
func NewRedisJournal(cfg config.RedisConfig) (*RedisJournal, error) {
	if !cfg.Enabled {
		return &RedisJournal{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return NewRedisJournalWithClient(client, cfg), nil
}

// NewRedisJournalWithClient wraps an existing client
func NewRedisJournalWithClient(client *redis.Client, cfg config.RedisConfig) *RedisJournal {
	size := int64(cfg.HistorySize)
	if size <= 0 {
		size = 50
	}
	return &RedisJournal{
		client:  client,
		key:     cfg.Key,
		ttl:     cfg.TTL,
		size:    size,
		enabled: true,
	}
}

// Enabled reports whether records are stored
func (j *RedisJournal) Enabled() bool {
	return j.enabled
}

// Publish prepends the record and trims the list to the configured size
func (j *RedisJournal) Publish(ctx context.Context, record models.Lifecycle) error {
	if !j.enabled {
		return nil
	}

	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "failed to marshal lifecycle record")
	}

	_, err = j.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, j.key, data)
		pipe.LTrim(ctx, j.key, 0, j.size-1)
		if j.ttl > 0 {
			pipe.Expire(ctx, j.key, j.ttl)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to append lifecycle record to Redis")
	}

	return nil
}

// History returns up to limit records, newest first
func (j *RedisJournal) History(ctx context.Context, limit int) ([]models.Lifecycle, error) {
	if !j.enabled {
		return nil, ErrDisabled
	}
	if limit <= 0 || int64(limit) > j.size {
		limit = int(j.size)
	}

	raw, err := j.client.LRange(ctx, j.key, 0, int64(limit)-1).Result()
	if err != nil {
		if err == redis.Nil {
			return []models.Lifecycle{}, nil
		}
		return nil, errors.Wrap(err, "failed to read lifecycle history from Redis")
	}

	records := make([]models.Lifecycle, 0, len(raw))
	for _, item := range raw {
		var record models.Lifecycle
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal lifecycle record")
		}
		records = append(records, record)
	}

	return records, nil
}

// Close closes the Redis connection
func (j *RedisJournal) Close() error {
	if !j.enabled || j.client == nil {
		return nil
	}
	return j.client.Close()
}
