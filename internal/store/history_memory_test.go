package store

import (
	"context"
	"testing"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/google/uuid"
)

func TestMemoryHistoryStore_ListNewestFirst(t *testing.T) {
	s := NewMemoryHistoryStore()
	tick := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	ctx := context.Background()
	sessionID := uuid.New()

	for _, p := range []string{"a cat", "an orange cat", "an orange cat at dawn"} {
		if err := s.Append(ctx, &domain.HistoryEntry{SessionID: sessionID, Kind: domain.HistoryAnalysis, Prompt: p}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	_ = s.Append(ctx, &domain.HistoryEntry{SessionID: uuid.New(), Prompt: "other session"})

	got, err := s.ListBySession(ctx, sessionID, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Prompt != "an orange cat at dawn" || got[1].Prompt != "an orange cat" {
		t.Fatalf("expected newest first, got %q then %q", got[0].Prompt, got[1].Prompt)
	}
	if got[0].ID == uuid.Nil || !got[0].CreatedAt.After(got[1].CreatedAt) {
		t.Fatal("expected ids and increasing timestamps to be assigned")
	}
}

func TestMemoryHistoryStore_GraphIsCopied(t *testing.T) {
	s := NewMemoryHistoryStore()
	ctx := context.Background()
	sessionID := uuid.New()

	g := domain.EmptyBeliefState()
	g.Prompt = "a cat"
	g.Entities = append(g.Entities, domain.Entity{
		Name:         "cat",
		Alternatives: []domain.Candidate{{Name: "kitten"}},
		Attributes: []domain.Attribute{
			{Name: "color", Value: []domain.Candidate{{Name: "orange"}}},
		},
	})
	g.Relationships = append(g.Relationships, domain.Relationship{
		Source: "cat", Target: "mat", Label: "on",
		Alternatives: []domain.Candidate{{Name: "beside"}},
	})
	_ = s.Append(ctx, &domain.HistoryEntry{SessionID: sessionID, Graph: &g})

	g.Prompt = "mutated"
	g.Entities[0].Name = "dog"
	g.Entities[0].Alternatives[0].Name = "puppy"
	g.Entities[0].Attributes[0].Value[0].Name = "black"
	g.Relationships[0].Alternatives[0].Name = "under"

	got, _ := s.ListBySession(ctx, sessionID, 0)
	stored := got[0].Graph
	if stored.Prompt != "a cat" {
		t.Fatalf("expected stored graph to be isolated from caller, got %q", stored.Prompt)
	}
	if stored.Entities[0].Name != "cat" || stored.Entities[0].Alternatives[0].Name != "kitten" {
		t.Fatalf("expected stored entity to be isolated from caller, got %+v", stored.Entities[0])
	}
	if v := stored.Entities[0].Attributes[0].Value[0].Name; v != "orange" {
		t.Fatalf("expected stored attribute value orange, got %q", v)
	}
	if v := stored.Relationships[0].Alternatives[0].Name; v != "beside" {
		t.Fatalf("expected stored relationship alternative beside, got %q", v)
	}

	// Mutating a listed entry must not reach the store either.
	stored.Entities[0].Attributes[0].Value[0].Name = "white"
	again, _ := s.ListBySession(ctx, sessionID, 0)
	if v := again[0].Graph.Entities[0].Attributes[0].Value[0].Name; v != "orange" {
		t.Fatalf("expected listed graph to be a copy, got %q", v)
	}
}

func TestMemoryHistoryStore_DeleteBySession(t *testing.T) {
	s := NewMemoryHistoryStore()
	ctx := context.Background()
	sessionID := uuid.New()
	_ = s.Append(ctx, &domain.HistoryEntry{SessionID: sessionID, Prompt: "a cat"})

	if err := s.DeleteBySession(ctx, sessionID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := s.ListBySession(ctx, sessionID, 10)
	if len(got) != 0 {
		t.Fatalf("expected no entries, got %d", len(got))
	}
}
