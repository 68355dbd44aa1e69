package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/consent"
)

// ConsentDecisionCache memoizes the outcome of latest-wins consent checks.
// A cached decision is only a hint; it is invalidated on every write for the
// user so the store scan remains the source of truth.
type ConsentDecisionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewConsentDecisionCache creates a consent decision cache
func NewConsentDecisionCache(client *redis.Client, ttl time.Duration) *ConsentDecisionCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ConsentDecisionCache{client: client, ttl: ttl}
}

func (c *ConsentDecisionCache) decisionKey(userID, companyID string, purpose consent.Purpose) string {
	return fmt.Sprintf("consent:decision:%s:%s:%s", companyID, userID, purpose)
}

func (c *ConsentDecisionCache) userPattern(userID, companyID string) string {
	return fmt.Sprintf("consent:decision:%s:%s:*", companyID, userID)
}

// GetDecision returns the cached decision and whether one was present
func (c *ConsentDecisionCache) GetDecision(ctx context.Context, userID, companyID string, purpose consent.Purpose) (bool, bool) {
	if c == nil || c.client == nil {
		return false, false
	}
	val, err := c.client.Get(ctx, c.decisionKey(userID, companyID, purpose)).Result()
	if err != nil {
		return false, false
	}
	return val == "1", true
}

// SetDecision stores a decision with the configured TTL
func (c *ConsentDecisionCache) SetDecision(ctx context.Context, userID, companyID string, purpose consent.Purpose, granted bool) {
	if c == nil || c.client == nil {
		return
	}
	val := "0"
	if granted {
		val = "1"
	}
	// Best effort; a failed cache write only costs a rescan
	_ = c.client.Set(ctx, c.decisionKey(userID, companyID, purpose), val, c.ttl).Err()
}

// InvalidateUser drops every cached decision for the user in the company
func (c *ConsentDecisionCache) InvalidateUser(ctx context.Context, userID, companyID string) {
	if c == nil || c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, c.userPattern(userID, companyID), 100).Iterator()
	for iter.Next(ctx) {
		_ = c.client.Del(ctx, iter.Val()).Err()
	}
}
