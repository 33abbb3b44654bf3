package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Generator is the orchestration surface collaborators call. Implementations
// route each call to the configured provider.
type Generator interface {
	GenerateBeliefGraph(ctx context.Context, prompt string, mode Mode, cfg ProviderConfig, obs Observer) (BeliefState, error)
	GenerateClarifications(ctx context.Context, prompt string, asked []string, mode Mode, cfg ProviderConfig, obs Observer) ([]Clarification, error)
	RefinePrompt(ctx context.Context, original string, answers []Answer, edits []GraphUpdate, cfg ProviderConfig, obs Observer) (string, error)
	GenerateContent(ctx context.Context, prompt string, mode Mode, cfg ProviderConfig, obs Observer) (Content, error)
}

type HistoryKind string

const (
	HistoryAnalysis   HistoryKind = "analysis"
	HistoryRefinement HistoryKind = "refinement"
)

// HistoryEntry is one committed revision of a session's prompt.
type HistoryEntry struct {
	ID        uuid.UUID    `json:"id"`
	SessionID uuid.UUID    `json:"session_id"`
	Kind      HistoryKind  `json:"kind"`
	Mode      Mode         `json:"mode"`
	Prompt    string       `json:"prompt"`
	Graph     *BeliefState `json:"graph,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

type HistoryStore interface {
	Append(ctx context.Context, e *HistoryEntry) error
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]HistoryEntry, error)
	DeleteBySession(ctx context.Context, sessionID uuid.UUID) error
}
