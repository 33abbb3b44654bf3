package service

import (
	"fmt"
	"strings"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
)

type ReconcileState int

const (
	StateIdle ReconcileState = iota
	StateEditing
	StateRefining
)

func (s ReconcileState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEditing:
		return "editing"
	case StateRefining:
		return "refining"
	default:
		return "unknown"
	}
}

// RefineRequest is everything pending, merged into one refine call.
type RefineRequest struct {
	Round   uint64
	Answers []domain.Answer
	Edits   []domain.GraphUpdate
}

// Reconciler accumulates clarification answers and graph edits until the user
// asks for a refine. It does not lock; the owning session serializes access.
type Reconciler struct {
	state ReconcileState
	round uint64

	edits    []domain.GraphUpdate
	pending  []domain.Answer
	answered []domain.Answer
	skipped  []string

	// outdated means the prompt changed since the graph was last analyzed.
	outdated bool
}

func NewReconciler() *Reconciler {
	return &Reconciler{}
}

func (r *Reconciler) State() ReconcileState { return r.state }

func (r *Reconciler) Outdated() bool { return r.outdated }

// Stage records an edit. An edit targeting the same slot as an earlier one
// replaces it.
func (r *Reconciler) Stage(u domain.GraphUpdate) error {
	if r.state == StateRefining {
		return ErrRefineInFlight
	}
	if field := u.MissingField(); field != "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidEdit, field)
	}

	key := u.Key()
	for i, e := range r.edits {
		if e.Key() == key {
			r.edits[i] = u
			r.state = StateEditing
			return nil
		}
	}
	r.edits = append(r.edits, u)
	r.state = StateEditing
	return nil
}

func (r *Reconciler) Answer(question, answer string) error {
	if r.state == StateRefining {
		return ErrRefineInFlight
	}
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return ErrAnswerEmpty
	}

	key := domain.QuestionKey(question)
	r.skipped = removeQuestion(r.skipped, key)
	for i, a := range r.pending {
		if domain.QuestionKey(a.Question) == key {
			r.pending[i].Answer = answer
			r.state = StateEditing
			return nil
		}
	}
	r.pending = append(r.pending, domain.Answer{Question: question, Answer: answer})
	r.state = StateEditing
	return nil
}

// Skip records a question the user declined so it is not asked again.
func (r *Reconciler) Skip(question string) {
	question = strings.TrimSpace(question)
	if question == "" {
		return
	}
	key := domain.QuestionKey(question)
	for _, q := range r.skipped {
		if domain.QuestionKey(q) == key {
			return
		}
	}
	r.skipped = append(r.skipped, question)
}

// Begin moves Editing to Refining and returns the merged request.
func (r *Reconciler) Begin() (RefineRequest, error) {
	if r.state == StateRefining {
		return RefineRequest{}, ErrRefineInFlight
	}
	if len(r.edits) == 0 && len(r.pending) == 0 {
		return RefineRequest{}, ErrNothingToRefine
	}
	r.state = StateRefining
	return RefineRequest{
		Round:   r.round,
		Answers: append([]domain.Answer(nil), r.pending...),
		Edits:   append([]domain.GraphUpdate(nil), r.edits...),
	}, nil
}

// Complete applies a successful refine: pending answers join the answered
// set, edits are cleared and the graph is marked outdated.
func (r *Reconciler) Complete(round uint64) bool {
	if round != r.round || r.state != StateRefining {
		return false
	}
	r.answered = append(r.answered, r.pending...)
	r.pending = nil
	r.edits = nil
	r.outdated = true
	r.state = StateIdle
	r.round++
	return true
}

// Fail returns to Editing with every pending edit and answer intact.
func (r *Reconciler) Fail(round uint64) {
	if round != r.round || r.state != StateRefining {
		return
	}
	r.state = StateEditing
}

// MarkAnalyzed clears the outdated flag once a fresh graph is committed.
func (r *Reconciler) MarkAnalyzed() {
	r.outdated = false
}

// Reset drops everything. Any refine still in flight can no longer complete.
func (r *Reconciler) Reset() {
	r.state = StateIdle
	r.edits = nil
	r.pending = nil
	r.answered = nil
	r.skipped = nil
	r.outdated = false
	r.round++
}

// Asked returns every question answered or skipped so far.
func (r *Reconciler) Asked() []string {
	out := make([]string, 0, len(r.answered)+len(r.pending)+len(r.skipped))
	for _, a := range r.answered {
		out = append(out, a.Question)
	}
	for _, a := range r.pending {
		out = append(out, a.Question)
	}
	return append(out, r.skipped...)
}

func (r *Reconciler) Edits() []domain.GraphUpdate {
	return append([]domain.GraphUpdate{}, r.edits...)
}

// Answers returns previously applied answers followed by pending ones.
func (r *Reconciler) Answers() []domain.Answer {
	out := append([]domain.Answer{}, r.answered...)
	return append(out, r.pending...)
}

func (r *Reconciler) Skipped() []string {
	return append([]string{}, r.skipped...)
}

func removeQuestion(list []string, key string) []string {
	out := list[:0]
	for _, q := range list {
		if domain.QuestionKey(q) != key {
			out = append(out, q)
		}
	}
	return out
}
