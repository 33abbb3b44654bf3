package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultHistoryLimit = 50

type HistoryStore struct {
	db *pgxpool.Pool
}

func NewHistoryStore(db *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{db: db}
}

// VerifySchema fails fast when the prompt_history table has not been created.
func VerifySchema(ctx context.Context, db *pgxpool.Pool) error {
	var regclass *string
	if err := db.QueryRow(ctx, "SELECT to_regclass('public.prompt_history')::text").Scan(&regclass); err != nil {
		return fmt.Errorf("verify schema: %w", err)
	}
	if regclass == nil {
		return errors.New("database schema missing: prompt_history table not found (run migrations/001_prompt_history.sql)")
	}
	return nil
}

func (s *HistoryStore) Append(ctx context.Context, e *domain.HistoryEntry) error {
	var graph []byte
	if e.Graph != nil {
		var err error
		graph, err = json.Marshal(e.Graph)
		if err != nil {
			return fmt.Errorf("marshal belief graph: %w", err)
		}
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO prompt_history (session_id, kind, mode, prompt, graph)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		e.SessionID, e.Kind, e.Mode, e.Prompt, graph,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert prompt history: %w", err)
	}
	return nil
}

// ListBySession returns entries newest first.
func (s *HistoryStore) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, session_id, kind, mode, prompt, graph, created_at
		 FROM prompt_history
		 WHERE session_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list prompt history: %w", err)
	}
	defer rows.Close()

	entries := []domain.HistoryEntry{}
	for rows.Next() {
		var e domain.HistoryEntry
		var graph []byte
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.Mode, &e.Prompt, &graph, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prompt history row: %w", err)
		}
		if len(graph) > 0 {
			var g domain.BeliefState
			if err := json.Unmarshal(graph, &g); err != nil {
				return nil, fmt.Errorf("unmarshal belief graph: %w", err)
			}
			e.Graph = &g
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("prompt history rows: %w", err)
	}
	return entries, nil
}

func (s *HistoryStore) DeleteBySession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM prompt_history WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete prompt history: %w", err)
	}
	return nil
}
