package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"beijjati-server/middleware"
	"beijjati-server/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCache keeps public user records in Redis. A nil client turns every call into a miss,
// so the service runs unchanged without Redis.
type UserCache struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *middleware.Metrics
	logger  logrus.FieldLogger
}

func NewUserCache(client *redis.Client, ttl time.Duration, metrics *middleware.Metrics, logger logrus.FieldLogger) *UserCache {
	return &UserCache{client: client, ttl: ttl, metrics: metrics, logger: logger}
}

// NewRedisClient accepts either a redis:// URL or a bare host:port.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL %q: %w", addr, err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func userKey(id primitive.ObjectID) string {
	return "user:" + id.Hex()
}

func (c *UserCache) Get(ctx context.Context, id primitive.ObjectID) (*models.User, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, userKey(id)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.fail("get", err)
		}
		return nil, false
	}
	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		c.logger.WithError(err).WithField("user_id", id.Hex()).Warn("Failed to unmarshal cached user")
		return nil, false
	}
	return &user, true
}

// GetMany returns the cached users found among ids and the ids that missed.
func (c *UserCache) GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, []primitive.ObjectID) {
	found := make(map[primitive.ObjectID]models.User, len(ids))
	if c == nil || c.client == nil || len(ids) == 0 {
		return found, ids
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = userKey(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.fail("mget", err)
		return found, ids
	}

	var missing []primitive.ObjectID
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var user models.User
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			missing = append(missing, ids[i])
			continue
		}
		found[ids[i]] = user
	}
	return found, missing
}

func (c *UserCache) Set(ctx context.Context, users ...models.User) {
	if c == nil || c.client == nil || len(users) == 0 {
		return
	}
	pipe := c.client.Pipeline()
	for _, u := range users {
		payload, err := json.Marshal(u.Public())
		if err != nil {
			continue
		}
		pipe.Set(ctx, userKey(u.ID), payload, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.fail("set", err)
	}
}

// Invalidate drops cached copies after a mutation.
func (c *UserCache) Invalidate(ctx context.Context, ids ...primitive.ObjectID) {
	if c == nil || c.client == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = userKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.fail("del", err)
	}
}

func (c *UserCache) fail(op string, err error) {
	c.metrics.CacheError(op)
	c.logger.WithError(err).WithField("operation", op).Warn("Redis cache error")
}
