package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/inkwell-io/inkwell/pkg/auth"
	"github.com/inkwell-io/inkwell/pkg/observability"
	"github.com/inkwell-io/inkwell/pkg/storage"
)

// NewRedisClient creates a Redis client from storage config and verifies
// the connection.
func NewRedisClient(cfg storage.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	opts.DB = cfg.RedisDB
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// CachedUserStore wraps a UserStore with a Redis read-through cache on
// ID lookups, the hot path of bearer-token verification. Cached entries
// are sanitized records: credential material never leaves postgres.
// Every mutation invalidates the affected entry; lookups by email,
// username, provider subject and reset hash always go to postgres because
// they participate in uniqueness and single-use checks.
type CachedUserStore struct {
	store   *UserStore
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCachedUserStore creates the cache layer. metrics may be nil.
func NewCachedUserStore(store *UserStore, client *redis.Client, ttl time.Duration, metrics *observability.Metrics) *CachedUserStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CachedUserStore{
		store:   store,
		redis:   client,
		ttl:     ttl,
		metrics: metrics,
	}
}

func (c *CachedUserStore) cacheKey(id string) string {
	return "user:id:" + id
}

// FindByID retrieves a user, consulting the cache first. Cache errors
// fall through to postgres; a broken cache never fails a lookup.
func (c *CachedUserStore) FindByID(ctx context.Context, id string) (*auth.User, error) {
	key := c.cacheKey(id)

	data, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var user auth.User
		if err := json.Unmarshal([]byte(data), &user); err == nil {
			if c.metrics != nil {
				c.metrics.CacheHitsTotal.Inc()
			}
			return &user, nil
		}
		// Corrupt entry; drop it and fall through.
		c.redis.Del(ctx, key)
	}
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}

	user, err := c.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(cacheRecord(user)); err == nil {
		c.redis.Set(ctx, key, encoded, c.ttl)
	}
	return user, nil
}

// FindByEmail always queries postgres.
func (c *CachedUserStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return c.store.FindByEmail(ctx, email)
}

// FindByUsername always queries postgres.
func (c *CachedUserStore) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	return c.store.FindByUsername(ctx, username)
}

// FindByProviderSubject always queries postgres.
func (c *CachedUserStore) FindByProviderSubject(ctx context.Context, subject string) (*auth.User, error) {
	return c.store.FindByProviderSubject(ctx, subject)
}

// FindByResetTokenHash always queries postgres: single-use consumption
// must see the live row.
func (c *CachedUserStore) FindByResetTokenHash(ctx context.Context, tokenHash string) (*auth.User, error) {
	return c.store.FindByResetTokenHash(ctx, tokenHash)
}

// Create inserts a new user; nothing to invalidate, but the entry is
// primed for the login that typically follows.
func (c *CachedUserStore) Create(ctx context.Context, fields auth.NewUser) (*auth.User, error) {
	user, err := c.store.Create(ctx, fields)
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(cacheRecord(user)); err == nil {
		c.redis.Set(ctx, c.cacheKey(user.ID), encoded, c.ttl)
	}
	return user, nil
}

// UpdatePassword writes through and invalidates.
func (c *CachedUserStore) UpdatePassword(ctx context.Context, userID string, passwordHash string) error {
	if err := c.store.UpdatePassword(ctx, userID, passwordHash); err != nil {
		return err
	}
	c.redis.Del(ctx, c.cacheKey(userID))
	return nil
}

// UpdateResetTicket writes through and invalidates.
func (c *CachedUserStore) UpdateResetTicket(ctx context.Context, userID string, tokenHash string, expiresAt time.Time) error {
	if err := c.store.UpdateResetTicket(ctx, userID, tokenHash, expiresAt); err != nil {
		return err
	}
	c.redis.Del(ctx, c.cacheKey(userID))
	return nil
}

// ClearResetTicket writes through and invalidates.
func (c *CachedUserStore) ClearResetTicket(ctx context.Context, userID string) error {
	if err := c.store.ClearResetTicket(ctx, userID); err != nil {
		return err
	}
	c.redis.Del(ctx, c.cacheKey(userID))
	return nil
}

// cacheRecord strips credential material before the record leaves the
// database: cached entries serve token-subject resolution only, which
// never needs the password hash or reset ticket.
func cacheRecord(user *auth.User) *auth.User {
	return user.Sanitized()
}
