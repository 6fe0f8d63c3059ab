// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrLimitExceeded is wrapped by Allow when the window is full.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// Limiter admits or rejects one call for key.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// RedisLimiter is a sliding-window limiter storing one sorted set of call
// timestamps per key. Redis failures fail open.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
	logger *log.Logger
	seq    uint64
}

// Option configures a RedisLimiter.
type Option func(*RedisLimiter)

// WithWindow overrides the one-minute window.
func WithWindow(d time.Duration) Option {
	return func(l *RedisLimiter) { l.window = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *RedisLimiter) { l.now = now }
}

// WithLogger sets the warning logger.
func WithLogger(logger *log.Logger) Option {
	return func(l *RedisLimiter) { l.logger = logger }
}

// NewRedisLimiter connects to redisURL (redis://host:port[/db]) and
// verifies the connection.
func NewRedisLimiter(ctx context.Context, redisURL string, limitPerMinute int, opts ...Option) (*RedisLimiter, error) {
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisLimiterFromClient(client, limitPerMinute, opts...), nil
}

// NewRedisLimiterFromClient wraps an existing client.
func NewRedisLimiterFromClient(client *redis.Client, limitPerMinute int, opts ...Option) *RedisLimiter {
	l := &RedisLimiter{
		client: client,
		limit:  limitPerMinute,
		window: time.Minute,
		prefix: "storage-mcp:ratelimit:",
		now:    time.Now,
		logger: log.New(os.Stderr, "[MCP_RATELIMIT] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLimiter) key(k string) string {
	return l.prefix + k
}

// Allow records one call for key and rejects it when the window already
// holds limit calls. Rejected calls still occupy the window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	now := l.now()
	redisKey := l.key(key)

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", "("+strconv.FormatInt(now.Add(-l.window).UnixMilli(), 10))
	card := pipe.ZCard(ctx, redisKey)
	pipe.ZAdd(ctx, redisKey, &redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d-%d", now.UnixNano(), atomic.AddUint64(&l.seq, 1)),
	})
	pipe.Expire(ctx, redisKey, 2*l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Printf("Warning: rate limit check failed for %s: %v (failing open)", key, err)
		return nil
	}

	if count := card.Val(); count >= int64(l.limit) {
		return fmt.Errorf("%w: %d requests in %s (limit: %d)", ErrLimitExceeded, count+1, l.window, l.limit)
	}
	return nil
}

// Reset removes all recorded calls for key.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to flush rate limit data: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
