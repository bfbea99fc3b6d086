// File: services/scheduler/state.go
package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"convene/models"

	"github.com/go-redis/redis/v8"
)

const statePrefix = "chat:state:"

// StateStore keeps the per-user negotiation state between turns. The TTL
// doubles as the idle-expiry bound on stale negotiations.
type StateStore interface {
	Get(ctx context.Context, userID string) (*models.ConversationState, error)
	Set(ctx context.Context, userID string, st *models.ConversationState) error
	Clear(ctx context.Context, userID string) error
}

type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{client: client, ttl: ttl}
}

func (s *RedisStateStore) Get(ctx context.Context, userID string) (*models.ConversationState, error) {
	key := statePrefix + userID
	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return models.NewConversationState(), nil
	}
	if err != nil {
		return nil, err
	}
	var st models.ConversationState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *RedisStateStore) Set(ctx context.Context, userID string, st *models.ConversationState) error {
	key := statePrefix + userID
	st.UpdatedAt = time.Now()
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, b, s.ttl).Err()
}

func (s *RedisStateStore) Clear(ctx context.Context, userID string) error {
	key := statePrefix + userID
	return s.client.Del(ctx, key).Err()
}

// Merge unions newly extracted parameters into the state and recomputes the
// missing-field set. Existing values win; a follow-up answer only fills the
// holes it names.
func Merge(st *models.ConversationState, p models.MeetingParams) {
	if st.Params.Title == "" {
		st.Params.Title = p.Title
	}
	if st.Params.Date == "" {
		st.Params.Date = p.Date
	}
	if st.Params.Time == "" {
		st.Params.Time = p.Time
	}
	if st.Params.DurationMinutes == 0 {
		st.Params.DurationMinutes = p.DurationMinutes
	}
	if len(st.Params.Attendees) == 0 {
		st.Params.Attendees = p.Attendees
	}
	if st.Params.Description == "" {
		st.Params.Description = p.Description
	}
	if st.Params.Provider == "" {
		st.Params.Provider = p.Provider
	}
	st.MissingFields = st.Params.Missing()
}
