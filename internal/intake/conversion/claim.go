package conversion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lead-intake/internal/common/database"
	"lead-intake/internal/common/logger"
)

// Claimer guards a record against concurrent conversion across processes.
type Claimer interface {
	// Claim reports whether the caller now owns id. release must be called
	// when ok is true.
	Claim(ctx context.Context, id string) (release func(), ok bool, err error)
}

// RedisClaimer holds a short-lived SET NX key per record. The key's value is
// a per-claim token; release deletes the key only while it still holds that
// token, so a claim that outlived its TTL cannot drop its successor's.
type RedisClaimer struct {
	client *database.RedisClient
	ttl    time.Duration
	prefix string
	logger logger.Logger
}

func NewRedisClaimer(client *database.RedisClient, ttl time.Duration, log logger.Logger) *RedisClaimer {
	return &RedisClaimer{
		client: client,
		ttl:    ttl,
		prefix: "intake:convert:",
		logger: log.WithFields(map[string]interface{}{"component": "claims"}),
	}
}

func (c *RedisClaimer) Claim(ctx context.Context, id string) (func(), bool, error) {
	key := c.prefix + id
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, key, token, c.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("claim %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		released, err := c.client.DelIfEqual(context.WithoutCancel(ctx), key, token)
		switch {
		case err != nil:
			c.logger.Warn("failed to release conversion claim", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		case !released:
			c.logger.Warn("conversion claim expired before release", map[string]interface{}{
				"key": key,
				"ttl": c.ttl.String(),
			})
		}
	}
	return release, true, nil
}
