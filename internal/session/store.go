package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// sessionTTL bounds how long an abandoned conversation keeps its contexts.
const sessionTTL = 24 * time.Hour

// Store persists context sets to Redis, one key per conversation.
type Store struct {
	redis  *redis.Client
	tracer trace.Tracer
}

// NewStore creates a context store.
func NewStore(rdb *redis.Client, tracer trace.Tracer) *Store {
	if rdb == nil {
		panic("session: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("figaro.internal.session")
	}
	return &Store{redis: rdb, tracer: tracer}
}

// Load returns the active contexts for a conversation. A conversation with
// no stored record yields an empty set, not an error.
func (s *Store) Load(ctx context.Context, conversationID string) (ContextSet, error) {
	ctx, span := s.tracer.Start(ctx, "session.load_contexts")
	defer span.End()

	data, err := s.redis.Get(ctx, contextsKey(conversationID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to load contexts: %w", err)
	}

	var set ContextSet
	if err := json.Unmarshal(data, &set); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to decode contexts: %w", err)
	}
	return set, nil
}

// Save replaces the conversation's context set. An empty set deletes the
// record.
func (s *Store) Save(ctx context.Context, conversationID string, set ContextSet) error {
	ctx, span := s.tracer.Start(ctx, "session.save_contexts")
	defer span.End()

	if len(set) == 0 {
		if err := s.redis.Del(ctx, contextsKey(conversationID)).Err(); err != nil {
			span.RecordError(err)
			return fmt.Errorf("session: failed to delete contexts: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(set)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal contexts: %w", err)
	}
	if err := s.redis.Set(ctx, contextsKey(conversationID), data, sessionTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to persist contexts: %w", err)
	}
	return nil
}

// Clear drops every context of the conversation.
func (s *Store) Clear(ctx context.Context, conversationID string) error {
	ctx, span := s.tracer.Start(ctx, "session.clear_contexts")
	defer span.End()

	if err := s.redis.Del(ctx, contextsKey(conversationID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to clear contexts: %w", err)
	}
	return nil
}

func contextsKey(conversationID string) string {
	return fmt.Sprintf("contexts:%s", conversationID)
}
