package cache

import (
	"context"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// Redis is a rueidis-backed Cache. It degrades silently: a connection
// failure at construction time, or any per-call error, results in a cache
// that always misses rather than an error surfaced to the caller, matching
// the reference Python CacheManager's try/except-and-disable behavior.
type Redis struct {
	client  rueidis.Client
	logger  *zap.Logger
	enabled bool
}

// RedisOptions configures the backing connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedis connects to addr. If the connection or an initial ping fails, the
// returned Redis is still usable but permanently disabled (every call
// misses) — this is a degraded mode, not a construction error, per the
// cache's best-effort contract.
func NewRedis(opts RedisOptions, logger *zap.Logger) *Redis {
	r := &Redis{logger: logger}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{opts.Addr},
		Password:    opts.Password,
		SelectDB:    opts.DB,
	})
	if err != nil {
		logger.Warn("redis cache disabled: connection failed", zap.Error(err))
		return r
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Warn("redis cache disabled: ping failed", zap.Error(err))
		client.Close()
		return r
	}

	r.client = client
	r.enabled = true
	return r
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	if !r.enabled {
		return nil, false
	}
	resp := r.client.Do(ctx, r.client.B().Get().Key(key).Build())
	if resp.Error() != nil {
		if !rueidis.IsRedisNil(resp.Error()) {
			r.logger.Debug("redis get failed", zap.String("key", key), zap.Error(resp.Error()))
		}
		return nil, false
	}
	b, err := resp.AsBytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if !r.enabled {
		return
	}
	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = r.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).ExSeconds(int64(ttl.Seconds())).Build()
	} else {
		cmd = r.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).Build()
	}
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		r.logger.Debug("redis set failed", zap.String("key", key), zap.Error(err))
	}
}

func (r *Redis) Del(ctx context.Context, key string) {
	if !r.enabled {
		return
	}
	if err := r.client.Do(ctx, r.client.B().Del().Key(key).Build()).Error(); err != nil {
		r.logger.Debug("redis del failed", zap.String("key", key), zap.Error(err))
	}
}

// Close releases the underlying connection, if any.
func (r *Redis) Close() {
	if r.client != nil {
		r.client.Close()
	}
}
