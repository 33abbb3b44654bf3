package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeGenerator implements domain.Generator for testing. When gate is set,
// GenerateBeliefGraph signals started and blocks until gate is closed.
type fakeGenerator struct {
	mu sync.Mutex

	graph      domain.BeliefState
	graphErr   error
	questions  []domain.Clarification
	refined    string
	refineErr  error
	content    domain.Content
	contentErr error

	gate    chan struct{}
	started chan struct{}

	// Call tracking for assertions
	graphPrompts []string
	askedCalls   [][]string
	refineCalls  []RefineRequest
	contentModes []domain.Mode
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		graph: domain.BeliefState{
			Entities:      []domain.Entity{{Name: "cat", Attributes: []domain.Attribute{}, Alternatives: []domain.Candidate{}}},
			Relationships: []domain.Relationship{},
		},
		questions: []domain.Clarification{{Question: "What color is the cat?", Options: []string{"orange", "black"}}},
		refined:   "An orange cat on a sill.",
		content:   domain.Content{Text: "story"},
	}
}

func (f *fakeGenerator) GenerateBeliefGraph(ctx context.Context, prompt string, mode domain.Mode, cfg domain.ProviderConfig, obs domain.Observer) (domain.BeliefState, error) {
	f.mu.Lock()
	f.graphPrompts = append(f.graphPrompts, prompt)
	gate, started := f.gate, f.started
	f.mu.Unlock()

	domain.Notify(obs, "Analyzing prompt...")
	if gate != nil {
		started <- struct{}{}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	g := f.graph
	g.Prompt = prompt
	return g, f.graphErr
}

func (f *fakeGenerator) GenerateClarifications(ctx context.Context, prompt string, asked []string, mode domain.Mode, cfg domain.ProviderConfig, obs domain.Observer) ([]domain.Clarification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.askedCalls = append(f.askedCalls, asked)
	return f.questions, nil
}

func (f *fakeGenerator) RefinePrompt(ctx context.Context, original string, answers []domain.Answer, edits []domain.GraphUpdate, cfg domain.ProviderConfig, obs domain.Observer) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refineCalls = append(f.refineCalls, RefineRequest{Answers: answers, Edits: edits})
	if f.refineErr != nil {
		return "", f.refineErr
	}
	return f.refined, nil
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, prompt string, mode domain.Mode, cfg domain.ProviderConfig, obs domain.Observer) (domain.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contentModes = append(f.contentModes, mode)
	if f.contentErr != nil {
		return domain.Content{}, f.contentErr
	}
	c := f.content
	c.Mode = mode
	c.Prompt = prompt
	return c, nil
}

// mockHistoryStore implements domain.HistoryStore for testing.
type mockHistoryStore struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
}

func (m *mockHistoryStore) Append(ctx context.Context, e *domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *mockHistoryStore) ListBySession(ctx context.Context, id uuid.UUID, limit int) ([]domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.HistoryEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].SessionID == id {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *mockHistoryStore) DeleteBySession(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.SessionID != id {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}

func newTestSessionService(gen *fakeGenerator) (*SessionService, *mockHistoryStore) {
	hist := &mockHistoryStore{}
	return NewSessionService(gen, hist, zap.NewNop()), hist
}

var testProvider = domain.ProviderConfig{Provider: "mock"}

func TestSessionService_CreateValidation(t *testing.T) {
	s, _ := newTestSessionService(newFakeGenerator())
	ctx := context.Background()

	_, err := s.Create(ctx, "  ", domain.ModeImage, testProvider)
	assert.ErrorIs(t, err, ErrPromptEmpty)

	_, err = s.Create(ctx, "a cat", domain.Mode("podcast"), testProvider)
	assert.ErrorIs(t, err, ErrInvalidMode)

	snap, err := s.Create(ctx, "a cat", "", testProvider)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeImage, snap.Mode)

	_, err = s.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_AnalyzeCommits(t *testing.T) {
	gen := newFakeGenerator()
	s, hist := newTestSessionService(gen)
	ctx := context.Background()

	snap, err := s.Create(ctx, "a cat", domain.ModeImage, testProvider)
	require.NoError(t, err)

	snap, err = s.Analyze(ctx, snap.ID)
	require.NoError(t, err)
	require.NotNil(t, snap.Graph)
	assert.Equal(t, "cat", snap.Graph.Entities[0].Name)
	assert.Len(t, snap.Clarifications, 1)
	assert.Contains(t, snap.Progress, "Analyzing prompt...")

	require.Len(t, hist.entries, 1)
	assert.Equal(t, domain.HistoryAnalysis, hist.entries[0].Kind)
	assert.Equal(t, "a cat", hist.entries[0].Prompt)
}

func TestSessionService_ModeSwitchDropsInFlightAnalysis(t *testing.T) {
	gen := newFakeGenerator()
	gen.gate = make(chan struct{})
	gen.started = make(chan struct{}, 1)
	s, hist := newTestSessionService(gen)
	ctx := context.Background()

	snap, err := s.Create(ctx, "a cat", domain.ModeImage, testProvider)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Analyze(ctx, snap.ID)
		errCh <- err
	}()

	<-gen.started
	_, err = s.SetMode(ctx, snap.ID, domain.ModeStory)
	require.NoError(t, err)
	close(gen.gate)

	assert.ErrorIs(t, <-errCh, ErrSuperseded)

	got, err := s.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Graph, "stale analysis must not be committed")
	assert.Equal(t, domain.ModeStory, got.Mode)
	assert.Empty(t, hist.entries)
}

func TestSessionService_PromptResubmitDropsInFlightAnalysis(t *testing.T) {
	gen := newFakeGenerator()
	gen.gate = make(chan struct{})
	gen.started = make(chan struct{}, 1)
	s, _ := newTestSessionService(gen)
	ctx := context.Background()

	snap, _ := s.Create(ctx, "a cat", domain.ModeImage, testProvider)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Analyze(ctx, snap.ID)
		errCh <- err
	}()
	<-gen.started

	_, err := s.SubmitPrompt(ctx, snap.ID, "a dog")
	require.NoError(t, err)
	close(gen.gate)

	assert.ErrorIs(t, <-errCh, ErrSuperseded)
	got, _ := s.Get(ctx, snap.ID)
	assert.Equal(t, "a dog", got.Prompt)
	assert.Nil(t, got.Graph)
}

func TestSessionService_RefineReanalyzes(t *testing.T) {
	gen := newFakeGenerator()
	s, hist := newTestSessionService(gen)
	ctx := context.Background()

	snap, _ := s.Create(ctx, "a cat", domain.ModeImage, testProvider)
	_, err := s.Analyze(ctx, snap.ID)
	require.NoError(t, err)

	_, err = s.Answer(ctx, snap.ID, "What color is the cat?", "orange")
	require.NoError(t, err)
	_, err = s.Skip(ctx, snap.ID, "Indoors?")
	require.NoError(t, err)
	_, err = s.AddEdit(ctx, snap.ID, domain.AttributeUpdate("cat", "size", "small"))
	require.NoError(t, err)

	got, err := s.Refine(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "An orange cat on a sill.", got.Prompt)
	assert.Empty(t, got.PendingEdits)
	assert.False(t, got.Outdated, "the follow-up analysis refreshes the graph")
	assert.Equal(t, "idle", got.ReconcileState)

	require.Len(t, gen.refineCalls, 1)
	assert.Len(t, gen.refineCalls[0].Edits, 1)
	assert.Equal(t, []domain.Answer{{Question: "What color is the cat?", Answer: "orange"}}, gen.refineCalls[0].Answers)

	require.Len(t, gen.graphPrompts, 2)
	assert.Equal(t, "An orange cat on a sill.", gen.graphPrompts[1])
	assert.ElementsMatch(t, []string{"What color is the cat?", "Indoors?"}, gen.askedCalls[1])

	kinds := []domain.HistoryKind{}
	for _, e := range hist.entries {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []domain.HistoryKind{domain.HistoryAnalysis, domain.HistoryRefinement, domain.HistoryAnalysis}, kinds)
}

func TestSessionService_RefineFailureKeepsEdits(t *testing.T) {
	gen := newFakeGenerator()
	gen.refineErr = errors.New("provider unavailable")
	s, _ := newTestSessionService(gen)
	ctx := context.Background()

	snap, _ := s.Create(ctx, "a cat", domain.ModeImage, testProvider)
	_, _ = s.AddEdit(ctx, snap.ID, domain.AttributeUpdate("cat", "color", "orange"))

	_, err := s.Refine(ctx, snap.ID)
	require.Error(t, err)

	got, _ := s.Get(ctx, snap.ID)
	assert.Equal(t, "a cat", got.Prompt)
	assert.Len(t, got.PendingEdits, 1)
	assert.Equal(t, "editing", got.ReconcileState)
	assert.Equal(t, "provider unavailable", got.LastError)

	_, err = s.Refine(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_RefineCommitsWhenFollowUpAnalysisFails(t *testing.T) {
	gen := newFakeGenerator()
	s, hist := newTestSessionService(gen)
	ctx := context.Background()

	snap, _ := s.Create(ctx, "a cat", domain.ModeImage, testProvider)
	_, err := s.Analyze(ctx, snap.ID)
	require.NoError(t, err)
	_, err = s.AddEdit(ctx, snap.ID, domain.AttributeUpdate("cat", "color", "orange"))
	require.NoError(t, err)

	gen.mu.Lock()
	gen.graphErr = errors.New("provider unavailable")
	gen.mu.Unlock()

	got, err := s.Refine(ctx, snap.ID)
	require.NoError(t, err, "the refined prompt is committed even if re-analysis fails")
	require.NotNil(t, got)
	assert.Equal(t, "An orange cat on a sill.", got.Prompt)
	assert.Empty(t, got.PendingEdits)
	assert.Equal(t, "idle", got.ReconcileState)
	assert.True(t, got.Outdated, "the graph still describes the previous prompt")
	assert.Equal(t, "provider unavailable", got.LastError)

	kinds := []domain.HistoryKind{}
	for _, e := range hist.entries {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []domain.HistoryKind{domain.HistoryAnalysis, domain.HistoryRefinement}, kinds)
}

func TestSessionService_FlagsDanglingRelationships(t *testing.T) {
	gen := newFakeGenerator()
	gen.graph = domain.BeliefState{
		Entities: []domain.Entity{{Name: "cat"}, {Name: "mat"}},
		Relationships: []domain.Relationship{
			{Source: "cat", Target: "mat", Label: "on"},
			{Source: "dog", Target: "cat", Label: "chases"},
		},
	}
	s, _ := newTestSessionService(gen)
	ctx := context.Background()

	snap, _ := s.Create(ctx, "a cat on a mat", domain.ModeImage, testProvider)
	assert.Empty(t, snap.DanglingRelationships)

	got, err := s.Analyze(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.Relationship{{Source: "dog", Target: "cat", Label: "chases"}}, got.DanglingRelationships)
	assert.Len(t, got.Graph.Relationships, 2, "dangling relationships are flagged, not dropped")
}

func TestSessionService_RefineWithNothingPending(t *testing.T) {
	s, _ := newTestSessionService(newFakeGenerator())
	ctx := context.Background()
	snap, _ := s.Create(ctx, "a cat", domain.ModeImage, testProvider)

	_, err := s.Refine(ctx, snap.ID)
	assert.ErrorIs(t, err, ErrNothingToRefine)
}

func TestSessionService_GenerateContent(t *testing.T) {
	gen := newFakeGenerator()
	s, _ := newTestSessionService(gen)
	ctx := context.Background()

	snap, _ := s.Create(ctx, "a cat", domain.ModeStory, testProvider)
	got, err := s.GenerateContent(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "story", got.Content[domain.ModeStory].Text)

	gen.contentErr = errors.New("video quota exceeded")
	_, err = s.SetMode(ctx, snap.ID, domain.ModeVideo)
	require.NoError(t, err)
	_, err = s.GenerateContent(ctx, snap.ID)
	require.Error(t, err)

	got, _ = s.Get(ctx, snap.ID)
	assert.Equal(t, "video quota exceeded", got.ContentErrors[domain.ModeVideo])
	assert.Equal(t, "story", got.Content[domain.ModeStory].Text, "a failure in one mode leaves other modes alone")
}

func TestSessionService_ProgressIsBounded(t *testing.T) {
	s, _ := newTestSessionService(newFakeGenerator())
	snap, _ := s.Create(context.Background(), "a cat", domain.ModeImage, testProvider)

	sess, err := s.lookup(snap.ID)
	require.NoError(t, err)
	for i := range maxProgressEvents + 20 {
		sess.Progress(time.Duration(i).String())
	}

	got, _ := s.Get(context.Background(), snap.ID)
	require.Len(t, got.Progress, maxProgressEvents)
	assert.Equal(t, time.Duration(20).String(), got.Progress[0])
}

func TestSessionService_ExpireIdle(t *testing.T) {
	s, _ := newTestSessionService(newFakeGenerator())
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	old, _ := s.Create(context.Background(), "old", domain.ModeImage, testProvider)
	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	fresh, _ := s.Create(context.Background(), "fresh", domain.ModeImage, testProvider)

	assert.Equal(t, 1, s.ExpireIdle(base.Add(time.Hour)))
	_, err := s.Get(context.Background(), old.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.Get(context.Background(), fresh.ID)
	assert.NoError(t, err)
}
