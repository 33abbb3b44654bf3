package service

import (
	"errors"
	"testing"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/google/go-cmp/cmp"
)

func TestReconciler_SingleEditRefine(t *testing.T) {
	r := NewReconciler()

	edit := domain.GraphUpdate{Type: domain.UpdateAttribute, Entity: "Cat", Attribute: "color", Value: "orange"}
	if err := r.Stage(edit); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if r.State() != StateEditing {
		t.Fatalf("expected editing, got %s", r.State())
	}

	req, err := r.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if diff := cmp.Diff([]domain.GraphUpdate{edit}, req.Edits); diff != "" {
		t.Fatalf("merged edits mismatch (-want +got):\n%s", diff)
	}
	if len(req.Answers) != 0 {
		t.Fatalf("expected no answers, got %v", req.Answers)
	}
	if r.State() != StateRefining {
		t.Fatalf("expected refining, got %s", r.State())
	}

	if !r.Complete(req.Round) {
		t.Fatal("expected complete to apply")
	}
	if len(r.Edits()) != 0 {
		t.Errorf("expected pending edits cleared, got %v", r.Edits())
	}
	if !r.Outdated() {
		t.Error("expected state to be marked outdated")
	}
	if r.State() != StateIdle {
		t.Errorf("expected idle, got %s", r.State())
	}
}

func TestReconciler_FailurePreservesEdits(t *testing.T) {
	r := NewReconciler()
	_ = r.Stage(domain.AttributeUpdate("Cat", "color", "orange"))
	_ = r.Answer("What time of day?", "Dusk")

	req, err := r.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	r.Fail(req.Round)

	if r.State() != StateEditing {
		t.Fatalf("expected editing after failure, got %s", r.State())
	}
	if len(r.Edits()) != 1 || len(r.Answers()) != 1 {
		t.Fatalf("expected edits and answers preserved, got %v / %v", r.Edits(), r.Answers())
	}
	if r.Outdated() {
		t.Error("a failed refine must not mark the graph outdated")
	}
}

func TestReconciler_SameSlotOverwrites(t *testing.T) {
	r := NewReconciler()
	_ = r.Stage(domain.AttributeUpdate("Cat", "color", "orange"))
	_ = r.Stage(domain.AttributeUpdate("cat", "Color", "black"))
	_ = r.Stage(domain.RelationshipUpdate("cat", "sill", "sits on", "sleeps on"))

	edits := r.Edits()
	if len(edits) != 2 {
		t.Fatalf("expected 2 edits, got %d", len(edits))
	}
	if edits[0].Value != "black" {
		t.Errorf("expected later edit to win, got %q", edits[0].Value)
	}
}

func TestReconciler_Guards(t *testing.T) {
	r := NewReconciler()

	if _, err := r.Begin(); !errors.Is(err, ErrNothingToRefine) {
		t.Fatalf("expected ErrNothingToRefine, got %v", err)
	}
	if err := r.Stage(domain.GraphUpdate{Type: domain.UpdateAttribute, Entity: "Cat"}); !errors.Is(err, ErrInvalidEdit) {
		t.Fatalf("expected ErrInvalidEdit, got %v", err)
	}
	if err := r.Answer("  ", "x"); !errors.Is(err, ErrAnswerEmpty) {
		t.Fatalf("expected ErrAnswerEmpty, got %v", err)
	}

	_ = r.Stage(domain.AttributeUpdate("Cat", "color", "orange"))
	if _, err := r.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := r.Begin(); !errors.Is(err, ErrRefineInFlight) {
		t.Fatalf("expected ErrRefineInFlight, got %v", err)
	}
	if err := r.Stage(domain.AttributeUpdate("Cat", "size", "small")); !errors.Is(err, ErrRefineInFlight) {
		t.Fatalf("expected edits to be refused while refining, got %v", err)
	}
}

func TestReconciler_AskedTracksAnsweredAndSkipped(t *testing.T) {
	r := NewReconciler()
	_ = r.Answer("What breed?", "Tabby")
	r.Skip("Indoors or outdoors?")
	r.Skip("indoors  or OUTDOORS?")

	req, _ := r.Begin()
	r.Complete(req.Round)
	_ = r.Answer("What time of day?", "Dawn")

	want := []string{"What breed?", "What time of day?", "Indoors or outdoors?"}
	if diff := cmp.Diff(want, r.Asked()); diff != "" {
		t.Fatalf("asked mismatch (-want +got):\n%s", diff)
	}
	if len(r.Skipped()) != 1 {
		t.Fatalf("expected skipped questions deduped, got %v", r.Skipped())
	}
}

func TestReconciler_ResetOrphansInFlightRefine(t *testing.T) {
	r := NewReconciler()
	_ = r.Stage(domain.AttributeUpdate("Cat", "color", "orange"))
	req, _ := r.Begin()

	r.Reset()
	_ = r.Stage(domain.AttributeUpdate("Dog", "color", "brown"))

	if r.Complete(req.Round) {
		t.Fatal("a refine started before Reset must not complete")
	}
	r.Fail(req.Round)
	if r.State() != StateEditing || len(r.Edits()) != 1 || r.Edits()[0].Entity != "Dog" {
		t.Fatalf("expected only the new edit to remain, got %s %v", r.State(), r.Edits())
	}
}

func TestReconciler_ExistenceEditIsThreadedNotApplied(t *testing.T) {
	r := NewReconciler()
	removal := domain.AttributeUpdate("Dog", domain.ExistenceAttribute, "false")
	_ = r.Stage(removal)

	req, _ := r.Begin()
	if len(req.Edits) != 1 || !req.Edits[0].IsRemoval() {
		t.Fatalf("expected the removal to be forwarded to refine, got %v", req.Edits)
	}
}

func TestReconciler_DistinctRelationshipsBetweenOnePair(t *testing.T) {
	r := NewReconciler()

	under := domain.RelationshipUpdate("Cat", "Mat", "on", "under")
	farFrom := domain.RelationshipUpdate("Cat", "Mat", "near", "far from")
	if err := r.Stage(under); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := r.Stage(farFrom); err != nil {
		t.Fatalf("stage: %v", err)
	}

	if diff := cmp.Diff([]domain.GraphUpdate{under, farFrom}, r.Edits()); diff != "" {
		t.Fatalf("pending edits mismatch (-want +got):\n%s", diff)
	}

	beside := domain.RelationshipUpdate("cat", "mat", "ON", "beside")
	if err := r.Stage(beside); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if diff := cmp.Diff([]domain.GraphUpdate{beside, farFrom}, r.Edits()); diff != "" {
		t.Fatalf("re-editing one relationship should replace only it (-want +got):\n%s", diff)
	}
}
