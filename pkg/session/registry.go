package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotRegistered = errors.New("session not registered")

// RegistryEntry is the small active-session descriptor kept in Redis
// with a TTL, so operators can see live sessions without touching the
// in-memory graphs.
type RegistryEntry struct {
	SessionID string    `json:"session_id"`
	PatientID string    `json:"patient_id"`
	State     string    `json:"state"`
	RiskLevel string    `json:"risk_level,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Registry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRegistry(client *redis.Client, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Registry{client: client, ttl: ttl}
}

func registryKey(sessionID string) string {
	return "session:" + sessionID
}

func (r *Registry) Put(ctx context.Context, entry RegistryEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, registryKey(entry.SessionID), raw, r.ttl).Err()
}

func (r *Registry) Get(ctx context.Context, sessionID string) (*RegistryEntry, error) {
	raw, err := r.client.Get(ctx, registryKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, err
	}
	var entry RegistryEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *Registry) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, registryKey(sessionID)).Err()
}
