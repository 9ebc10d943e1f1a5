// Package audit persists one row per conversation turn to Postgres. The
// rows answer "what did the bot do at 18:40 last Tuesday" without digging
// through logs.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TurnRecord is one handled conversation turn.
type TurnRecord struct {
	ID             uuid.UUID
	ConversationID string
	StepID         string
	State          string
	Outcome        string
	ReplyKind      string
	At             time.Time
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store writes turn records. A nil *Store is a no-op, so the API can run
// without Postgres configured.
type Store struct {
	q      querier
	tracer trace.Tracer
}

// NewStore creates a store backed by a pgx pool. Returns nil when the pool
// is nil.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		return nil
	}
	return NewStoreWithQuerier(pool)
}

// NewStoreWithQuerier creates a store over any Exec-capable connection.
func NewStoreWithQuerier(q querier) *Store {
	if q == nil {
		return nil
	}
	return &Store{q: q, tracer: otel.Tracer("figaro.internal.audit")}
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS conversation_turns (
	id UUID PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	step_id TEXT NOT NULL,
	state TEXT NOT NULL,
	outcome TEXT NOT NULL,
	reply_kind TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversation_turns_conversation
	ON conversation_turns (conversation_id, occurred_at);
`

// EnsureSchema creates the turns table if missing. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if _, err := s.q.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("audit: ensure schema: %w", err)
	}
	return nil
}

// RecordTurn inserts one turn row.
func (s *Store) RecordTurn(ctx context.Context, rec TurnRecord) error {
	if s == nil {
		return nil
	}
	ctx, span := s.tracer.Start(ctx, "audit.RecordTurn")
	defer span.End()

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}

	_, err := s.q.Exec(ctx,
		`INSERT INTO conversation_turns (id, conversation_id, step_id, state, outcome, reply_kind, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.ConversationID, rec.StepID, rec.State, rec.Outcome, rec.ReplyKind, rec.At,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("audit: record turn: %w", err)
	}
	return nil
}
