package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"loyaltyStamp/domain"

	"github.com/redis/go-redis/v9"
)

// terminalRetention keeps confirmed/cancelled/expired sessions readable for
// a while so a replayed code is rejected as terminal instead of unknown.
const terminalRetention = 15 * time.Minute

// SessionRepository stores redemption sessions in Redis under two keys: one
// by customer (the single-active-session anchor) and one by code (staff
// confirmation lookup).
type SessionRepository struct {
	client *redis.Client
}

func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{
		client: client,
	}
}

func customerKey(customerID uint) string {
	return fmt.Sprintf("redemption:customer:%d", customerID)
}

func codeKey(code string) string {
	return fmt.Sprintf("redemption:code:%s", code)
}

func (r *SessionRepository) Save(ctx context.Context, session domain.RedemptionSession) error {
	jsonData, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt) + terminalRetention
	if ttl < terminalRetention {
		ttl = terminalRetention
	}

	if err := r.client.Set(ctx, customerKey(session.CustomerID), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session in Redis: %w", err)
	}

	if err := r.client.Set(ctx, codeKey(session.Code), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session code lookup: %w", err)
	}

	return nil
}

func (r *SessionRepository) GetByCustomer(ctx context.Context, customerID uint) (*domain.RedemptionSession, error) {
	return r.get(ctx, customerKey(customerID))
}

func (r *SessionRepository) GetByCode(ctx context.Context, code string) (*domain.RedemptionSession, error) {
	return r.get(ctx, codeKey(code))
}

func (r *SessionRepository) get(ctx context.Context, key string) (*domain.RedemptionSession, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var session domain.RedemptionSession
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}
