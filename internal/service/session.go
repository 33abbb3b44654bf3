package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSuperseded      = errors.New("result superseded by a newer request")
	ErrRefineInFlight  = errors.New("a refine is already in progress")
	ErrNothingToRefine = errors.New("no pending edits or answers to refine")
	ErrInvalidMode     = errors.New("mode must be one of image, story, video")
	ErrPromptEmpty     = errors.New("prompt is required")
	ErrInvalidEdit     = errors.New("invalid edit")
	ErrAnswerEmpty     = errors.New("question and answer are required")
)

const maxProgressEvents = 100

// Snapshot is a point-in-time copy of a session. DanglingRelationships flags
// graph relationships whose endpoints are not entities in the graph.
type Snapshot struct {
	ID                    uuid.UUID                      `json:"id"`
	Prompt                string                         `json:"prompt"`
	Mode                  domain.Mode                    `json:"mode"`
	Provider              domain.ProviderID              `json:"provider"`
	Model                 string                         `json:"model,omitempty"`
	Graph                 *domain.BeliefState            `json:"graph,omitempty"`
	DanglingRelationships []domain.Relationship          `json:"dangling_relationships,omitempty"`
	Clarifications        []domain.Clarification         `json:"clarifications"`
	Answered              []domain.Answer                `json:"answered"`
	Skipped               []string                       `json:"skipped"`
	PendingEdits          []domain.GraphUpdate           `json:"pending_edits"`
	ReconcileState        string                         `json:"reconcile_state"`
	Outdated              bool                           `json:"outdated"`
	Content               map[domain.Mode]domain.Content `json:"content,omitempty"`
	ContentErrors         map[domain.Mode]string         `json:"content_errors,omitempty"`
	LastError             string                         `json:"last_error,omitempty"`
	Progress              []string                       `json:"progress"`
	CreatedAt             time.Time                      `json:"created_at"`
	UpdatedAt             time.Time                      `json:"updated_at"`
}

type session struct {
	id    uuid.UUID
	coord *Coordinator

	mu             sync.Mutex
	prompt         string
	provider       domain.ProviderConfig
	graph          *domain.BeliefState
	clarifications []domain.Clarification
	recon          *Reconciler
	content        map[domain.Mode]domain.Content
	contentErrors  map[domain.Mode]string
	lastError      string
	progress       []string
	createdAt      time.Time
	updatedAt      time.Time
}

// Progress appends to the session's bounded event log.
func (s *session) Progress(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, msg)
	if n := len(s.progress); n > maxProgressEvents {
		s.progress = append([]string(nil), s.progress[n-maxProgressEvents:]...)
	}
}

// snapshot must not be called with s.mu held: Coordinator.Commit takes the
// coordinator lock before the session lock, so the mode is read first.
func (s *session) snapshot() *Snapshot {
	mode := s.coord.Mode()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{
		ID:             s.id,
		Prompt:         s.prompt,
		Mode:           mode,
		Provider:       s.provider.Provider,
		Model:          s.provider.Model,
		Clarifications: append([]domain.Clarification{}, s.clarifications...),
		Answered:       s.recon.Answers(),
		Skipped:        s.recon.Skipped(),
		PendingEdits:   s.recon.Edits(),
		ReconcileState: s.recon.State().String(),
		Outdated:       s.recon.Outdated(),
		LastError:      s.lastError,
		Progress:       append([]string{}, s.progress...),
		CreatedAt:      s.createdAt,
		UpdatedAt:      s.updatedAt,
	}
	if s.graph != nil {
		g := *s.graph
		snap.Graph = &g
		snap.DanglingRelationships = g.DanglingRelationships()
	}
	if len(s.content) > 0 {
		snap.Content = make(map[domain.Mode]domain.Content, len(s.content))
		for m, c := range s.content {
			snap.Content[m] = c
		}
	}
	if len(s.contentErrors) > 0 {
		snap.ContentErrors = make(map[domain.Mode]string, len(s.contentErrors))
		for m, e := range s.contentErrors {
			snap.ContentErrors[m] = e
		}
	}
	return snap
}

// SessionService owns every live session. Analysis and content results are
// committed only through the session's Coordinator.
type SessionService struct {
	gen     domain.Generator
	history domain.HistoryStore
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
}

func NewSessionService(gen domain.Generator, history domain.HistoryStore, logger *zap.Logger) *SessionService {
	return &SessionService{
		gen:      gen,
		history:  history,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*session),
	}
}

func (s *SessionService) Create(ctx context.Context, prompt string, mode domain.Mode, cfg domain.ProviderConfig) (*Snapshot, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrPromptEmpty
	}
	if mode == "" {
		mode = domain.ModeImage
	}
	if !domain.ValidMode(string(mode)) {
		return nil, ErrInvalidMode
	}

	now := s.now()
	sess := &session{
		id:            uuid.New(),
		coord:         NewCoordinator(mode),
		prompt:        prompt,
		provider:      cfg,
		recon:         NewReconciler(),
		content:       make(map[domain.Mode]domain.Content),
		contentErrors: make(map[domain.Mode]string),
		createdAt:     now,
		updatedAt:     now,
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.logger.Info("session created",
		zap.String("session_id", sess.id.String()),
		zap.String("mode", string(mode)),
		zap.String("provider", string(cfg.Provider)))
	return sess.snapshot(), nil
}

func (s *SessionService) lookup(id uuid.UUID) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *SessionService) Get(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return sess.snapshot(), nil
}

func (s *SessionService) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	if s.history != nil {
		if err := s.history.DeleteBySession(ctx, id); err != nil {
			s.logger.Warn("failed to delete session history", zap.String("session_id", id.String()), zap.Error(err))
		}
	}
	return nil
}

// SetMode switches the session's mode. In-flight analysis and content
// results for the old mode become stale and the graph is discarded.
func (s *SessionService) SetMode(ctx context.Context, id uuid.UUID, mode domain.Mode) (*Snapshot, error) {
	if !domain.ValidMode(string(mode)) {
		return nil, ErrInvalidMode
	}
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	sess.coord.SetModeThen(mode, func() {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		sess.graph = nil
		sess.clarifications = nil
		sess.recon.Reset()
		sess.updatedAt = s.now()
	})
	return sess.snapshot(), nil
}

// SubmitPrompt replaces the prompt and supersedes everything in flight.
func (s *SessionService) SubmitPrompt(ctx context.Context, id uuid.UUID, prompt string) (*Snapshot, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrPromptEmpty
	}
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	sess.coord.InvalidateThen(func() {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		sess.prompt = prompt
		sess.graph = nil
		sess.clarifications = nil
		sess.recon.Reset()
		sess.updatedAt = s.now()
	}, domain.ClassAnalysis, domain.ClassContent)
	return sess.snapshot(), nil
}

func (s *SessionService) SetProvider(ctx context.Context, id uuid.UUID, cfg domain.ProviderConfig) (*Snapshot, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	sess.provider = cfg
	sess.updatedAt = s.now()
	sess.mu.Unlock()
	return sess.snapshot(), nil
}

// Analyze runs graph extraction and clarification generation concurrently
// and commits both if no newer analysis, prompt or mode superseded them.
func (s *SessionService) Analyze(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return s.analyze(ctx, sess)
}

func (s *SessionService) analyze(ctx context.Context, sess *session) (*Snapshot, error) {
	ticket := sess.coord.Begin(domain.ClassAnalysis)

	sess.mu.Lock()
	prompt := sess.prompt
	cfg := sess.provider
	asked := sess.recon.Asked()
	sess.mu.Unlock()

	var (
		graph     domain.BeliefState
		questions []domain.Clarification
		clarErr   error
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		graph, err = s.gen.GenerateBeliefGraph(ctx, prompt, ticket.Mode, cfg, sess)
		return err
	})
	g.Go(func() error {
		questions, clarErr = s.gen.GenerateClarifications(ctx, prompt, asked, ticket.Mode, cfg, sess)
		return nil
	})
	graphErr := g.Wait()

	if clarErr != nil {
		s.logger.Warn("clarification generation failed",
			zap.String("session_id", sess.id.String()),
			zap.Error(clarErr))
		questions = []domain.Clarification{}
	}

	if graphErr != nil {
		sess.coord.Commit(ticket, func() {
			sess.mu.Lock()
			sess.lastError = graphErr.Error()
			sess.mu.Unlock()
		})
		return nil, graphErr
	}

	committed := sess.coord.Commit(ticket, func() {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		sess.graph = &graph
		sess.clarifications = questions
		sess.lastError = ""
		sess.recon.MarkAnalyzed()
		sess.updatedAt = s.now()
	})
	if !committed {
		s.logger.Debug("dropping superseded analysis",
			zap.String("session_id", sess.id.String()),
			zap.Uint64("token", ticket.Token))
		return nil, ErrSuperseded
	}

	s.record(ctx, sess.id, domain.HistoryAnalysis, ticket.Mode, prompt, &graph)
	return sess.snapshot(), nil
}

// Answer records a clarification answer and removes the question from the
// open list.
func (s *SessionService) Answer(ctx context.Context, id uuid.UUID, question, answer string) (*Snapshot, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	err = sess.recon.Answer(question, answer)
	if err == nil {
		sess.clarifications = dropClarification(sess.clarifications, question)
		sess.updatedAt = s.now()
	}
	sess.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return sess.snapshot(), nil
}

func (s *SessionService) Skip(ctx context.Context, id uuid.UUID, question string) (*Snapshot, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	sess.recon.Skip(question)
	sess.clarifications = dropClarification(sess.clarifications, question)
	sess.updatedAt = s.now()
	sess.mu.Unlock()
	return sess.snapshot(), nil
}

func (s *SessionService) AddEdit(ctx context.Context, id uuid.UUID, u domain.GraphUpdate) (*Snapshot, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	err = sess.recon.Stage(u)
	if err == nil {
		sess.updatedAt = s.now()
	}
	sess.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return sess.snapshot(), nil
}

// Refine folds pending edits and answers into a rewritten prompt, then starts
// a new analysis cycle on it. On failure the pending edits are kept.
func (s *SessionService) Refine(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	ticket := sess.coord.Current(domain.ClassAnalysis)

	sess.mu.Lock()
	req, err := sess.recon.Begin()
	prompt := sess.prompt
	cfg := sess.provider
	sess.mu.Unlock()
	if err != nil {
		return nil, err
	}

	refined, err := s.gen.RefinePrompt(ctx, prompt, req.Answers, req.Edits, cfg, sess)
	if err != nil {
		sess.mu.Lock()
		sess.recon.Fail(req.Round)
		sess.lastError = err.Error()
		sess.mu.Unlock()
		return nil, err
	}

	applied := false
	sess.coord.Commit(ticket, func() {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		if !sess.recon.Complete(req.Round) {
			return
		}
		sess.prompt = refined
		sess.lastError = ""
		sess.updatedAt = s.now()
		applied = true
	})
	if !applied {
		sess.mu.Lock()
		sess.recon.Fail(req.Round)
		sess.mu.Unlock()
		s.logger.Debug("dropping superseded refine", zap.String("session_id", sess.id.String()))
		return nil, ErrSuperseded
	}

	s.record(ctx, sess.id, domain.HistoryRefinement, ticket.Mode, refined, nil)

	// The refined prompt is committed at this point. A failed or superseded
	// follow-up analysis is reported through the snapshot, not as an error.
	snap, err := s.analyze(ctx, sess)
	if err != nil {
		s.logger.Warn("analysis after refine did not commit",
			zap.String("session_id", sess.id.String()),
			zap.Error(err))
		return sess.snapshot(), nil
	}
	return snap, nil
}

// GenerateContent produces image, story or video content for the current
// prompt and mode. Failures are recorded for that mode only.
func (s *SessionService) GenerateContent(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	ticket := sess.coord.Begin(domain.ClassContent)
	sess.mu.Lock()
	prompt := sess.prompt
	cfg := sess.provider
	sess.mu.Unlock()

	content, genErr := s.gen.GenerateContent(ctx, prompt, ticket.Mode, cfg, sess)

	committed := sess.coord.Commit(ticket, func() {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		if genErr != nil {
			sess.contentErrors[ticket.Mode] = genErr.Error()
			return
		}
		sess.content[ticket.Mode] = content
		delete(sess.contentErrors, ticket.Mode)
		sess.updatedAt = s.now()
	})
	if !committed {
		s.logger.Debug("dropping superseded content",
			zap.String("session_id", sess.id.String()),
			zap.String("mode", string(ticket.Mode)))
		return nil, ErrSuperseded
	}
	if genErr != nil {
		return nil, genErr
	}
	return sess.snapshot(), nil
}

func (s *SessionService) History(ctx context.Context, id uuid.UUID, limit int) ([]domain.HistoryEntry, error) {
	if _, err := s.lookup(id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.HistoryEntry{}, nil
	}
	return s.history.ListBySession(ctx, id, limit)
}

// ExpireIdle removes sessions not updated since before.
func (s *SessionService) ExpireIdle(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.updatedAt.Before(before)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionService) record(ctx context.Context, id uuid.UUID, kind domain.HistoryKind, mode domain.Mode, prompt string, graph *domain.BeliefState) {
	if s.history == nil {
		return
	}
	entry := &domain.HistoryEntry{
		SessionID: id,
		Kind:      kind,
		Mode:      mode,
		Prompt:    prompt,
		Graph:     graph,
	}
	if err := s.history.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to record prompt history",
			zap.String("session_id", id.String()),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}

func dropClarification(list []domain.Clarification, question string) []domain.Clarification {
	key := domain.QuestionKey(question)
	out := make([]domain.Clarification, 0, len(list))
	for _, c := range list {
		if domain.QuestionKey(c.Question) != key {
			out = append(out, c)
		}
	}
	return out
}
