package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/bassista/go_scrapbook/internal/logger"
)

// RedisRepository is the remote-backed backend for several clients sharing one
// document set. Every Put publishes the changed key on a pub/sub channel so
// other instances can relay it to their local subscribers.
type RedisRepository struct {
	rdb     *redis.Client
	channel string
}

// NewRedisRepository connects to the redis server at url.
// url may be a redis:// URL or a bare host:port address.
func NewRedisRepository(url, channel string) (*RedisRepository, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		if strings.Contains(url, "://") || url == "" {
			return nil, fmt.Errorf("invalid redis url %q: %w", url, err)
		}
		logger.WithComponent("redis-repo").Infof("using %q as a bare redis address", url)
		opt = &redis.Options{Addr: url}
	}
	if channel == "" {
		channel = "scrapbook_changes"
	}
	return NewRedisRepositoryWithClient(redis.NewClient(opt), channel), nil
}

// NewRedisRepositoryWithClient wraps an existing client.
func NewRedisRepositoryWithClient(rdb *redis.Client, channel string) *RedisRepository {
	return &RedisRepository{rdb: rdb, channel: channel}
}

func (r *RedisRepository) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return data, nil
}

func (r *RedisRepository) Put(ctx context.Context, key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	if err := r.rdb.Publish(ctx, r.channel, key).Err(); err != nil {
		// The write itself succeeded; peers converge on their next read.
		logger.WithComponent("redis-repo").Warnf("publish change for %s: %v", key, err)
	}
	return nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

func (r *RedisRepository) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.rdb.Scan(ctx, 0, globEscaper.Replace(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		// SCAN may repeat keys; the glob is only a coarse filter.
		if k := iter.Val(); strings.HasPrefix(k, prefix) && !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan prefix %q: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Watch subscribes to the change channel and reports every published key.
func (r *RedisRepository) Watch(ctx context.Context, onChange func(key string)) error {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	// Wait for the subscription confirmation so no publish is missed after return.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				onChange(msg.Payload)
			}
		}
	}()
	return nil
}

func (r *RedisRepository) Close() error {
	return r.rdb.Close()
}
