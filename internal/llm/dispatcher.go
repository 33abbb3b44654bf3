package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	imagesPerRound = 4
	imageRounds    = 2
)

var _ domain.Generator = (*Dispatcher)(nil)

type DispatcherConfig struct {
	Retrier Retrier
	// ProviderRPS limits outbound requests per provider. Zero disables it.
	ProviderRPS   float64
	ProviderBurst int
	// LookupEnv resolves fallback credentials. Defaults to os.Getenv.
	LookupEnv func(string) string
}

// Dispatcher routes each logical operation to the adapter registered for the
// configured provider and normalizes the result.
type Dispatcher struct {
	registry *Registry
	cfg      DispatcherConfig
	logger   *zap.Logger

	mu       sync.Mutex
	limiters map[domain.ProviderID]*rate.Limiter
}

func NewDispatcher(registry *Registry, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if cfg.LookupEnv == nil {
		cfg.LookupEnv = os.Getenv
	}
	if cfg.ProviderBurst < 1 {
		cfg.ProviderBurst = 1
	}
	cfg.Retrier.Logger = logger
	return &Dispatcher{
		registry: registry,
		cfg:      cfg,
		logger:   logger,
		limiters: make(map[domain.ProviderID]*rate.Limiter),
	}
}

// target is a resolved provider: its capability plus the effective endpoint,
// model and credential for one call.
type target struct {
	id      domain.ProviderID
	cap     Capability
	baseURL string
	model   string
	apiKey  string
}

func (d *Dispatcher) resolve(cfg domain.ProviderConfig) (target, error) {
	c, err := d.registry.Lookup(cfg.Provider)
	if err != nil {
		return target{}, err
	}

	t := target{id: cfg.Provider, cap: c, baseURL: c.BaseURL, model: c.Model}
	if cfg.BaseURL != "" {
		t.baseURL = cfg.BaseURL
	}
	if cfg.Model != "" {
		t.model = cfg.Model
	}

	t.apiKey = cfg.Key()
	if t.apiKey == "" && c.EnvKey != "" {
		t.apiKey = d.cfg.LookupEnv(c.EnvKey)
	}
	if t.apiKey == "" && !c.Local {
		return target{}, fmt.Errorf("%w for %s (set %s)", ErrMissingAPIKey, cfg.Provider, c.EnvKey)
	}
	return t, nil
}

func (d *Dispatcher) limiter(id domain.ProviderID) *rate.Limiter {
	if d.cfg.ProviderRPS <= 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[id]
	if !ok {
		l = rate.NewLimiter(rate.Limit(d.cfg.ProviderRPS), d.cfg.ProviderBurst)
		d.limiters[id] = l
	}
	return l
}

func (d *Dispatcher) wait(ctx context.Context, id domain.ProviderID) error {
	if l := d.limiter(id); l != nil {
		return l.Wait(ctx)
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, action string, t target, req Request, obs domain.Observer) (string, error) {
	req.Provider = t.id
	req.BaseURL = t.baseURL
	req.APIKey = t.apiKey
	req.Model = t.model

	return WithRetry(ctx, d.cfg.Retrier, action, obs, func(ctx context.Context) (string, error) {
		if err := d.wait(ctx, t.id); err != nil {
			return "", err
		}
		return t.cap.Adapter.Send(ctx, req)
	})
}

func (d *Dispatcher) GenerateBeliefGraph(ctx context.Context, prompt string, mode domain.Mode, cfg domain.ProviderConfig, obs domain.Observer) (domain.BeliefState, error) {
	t, err := d.resolve(cfg)
	if err != nil {
		return domain.BeliefState{}, err
	}

	domain.Notify(obs, fmt.Sprintf("Analyzing prompt with %s...", t.id))
	req := Request{Operation: OpGraph, Messages: graphMessages(prompt, mode, t.cap.Native)}
	if t.cap.Native {
		req.Shape = beliefGraphSchema()
	}

	text, err := d.send(ctx, "Belief graph generation", t, req, obs)
	if err != nil {
		return domain.BeliefState{}, fmt.Errorf("generate belief graph: %w", err)
	}

	normalize := NormalizeBeliefGraph
	if t.cap.Strategy == StrategyCoerce {
		normalize = CoerceBeliefGraph
	}
	state, err := normalize(text)
	if err != nil {
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			return domain.BeliefState{}, err
		}
		d.logger.Warn("belief graph output was not JSON, using empty graph",
			zap.String("provider", string(t.id)),
			zap.Error(err))
		state = domain.EmptyBeliefState()
	}
	state.Prompt = prompt
	return state, nil
}

func (d *Dispatcher) GenerateClarifications(ctx context.Context, prompt string, asked []string, mode domain.Mode, cfg domain.ProviderConfig, obs domain.Observer) ([]domain.Clarification, error) {
	t, err := d.resolve(cfg)
	if err != nil {
		return nil, err
	}

	domain.Notify(obs, "Looking for ambiguities...")
	req := Request{Operation: OpClarifications, Messages: clarificationMessages(prompt, asked, mode, t.cap.Native)}
	if t.cap.Native {
		req.Shape = clarificationsSchema()
	}

	text, err := d.send(ctx, "Clarification generation", t, req, obs)
	if err != nil {
		return nil, fmt.Errorf("generate clarifications: %w", err)
	}

	normalize := NormalizeClarifications
	if t.cap.Strategy == StrategyCoerce {
		normalize = CoerceClarifications
	}
	questions, err := normalize(text)
	if err != nil {
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			return nil, err
		}
		d.logger.Warn("clarification output was not JSON, using empty list",
			zap.String("provider", string(t.id)),
			zap.Error(err))
		return []domain.Clarification{}, nil
	}
	return dedupeClarifications(questions, asked), nil
}

// dedupeClarifications drops questions that were already asked and repeats
// within the response.
func dedupeClarifications(questions []domain.Clarification, asked []string) []domain.Clarification {
	seen := make(map[string]bool, len(asked)+len(questions))
	for _, q := range asked {
		seen[domain.QuestionKey(q)] = true
	}
	out := make([]domain.Clarification, 0, len(questions))
	for _, q := range questions {
		key := domain.QuestionKey(q.Question)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}

func (d *Dispatcher) RefinePrompt(ctx context.Context, original string, answers []domain.Answer, edits []domain.GraphUpdate, cfg domain.ProviderConfig, obs domain.Observer) (string, error) {
	if strings.TrimSpace(original) == "" {
		return "", &ValidationError{Field: "prompt"}
	}
	for i, e := range edits {
		if field := e.MissingField(); field != "" {
			return "", &ValidationError{Field: fmt.Sprintf("edits[%d].%s", i, field)}
		}
	}

	t, err := d.resolve(cfg)
	if err != nil {
		return "", err
	}

	domain.Notify(obs, "Refining prompt...")
	req := Request{
		Operation: OpRefine,
		Messages:  refineMessages(original, answers, edits, t.cap.Native),
		Tools:     t.cap.Native,
	}
	text, err := d.send(ctx, "Prompt refinement", t, req, obs)
	if err != nil {
		return "", fmt.Errorf("refine prompt: %w", err)
	}
	return CleanRefinedPrompt(text)
}

func (d *Dispatcher) GenerateContent(ctx context.Context, prompt string, mode domain.Mode, cfg domain.ProviderConfig, obs domain.Observer) (domain.Content, error) {
	t, err := d.resolve(cfg)
	if err != nil {
		return domain.Content{}, err
	}

	switch mode {
	case domain.ModeStory:
		return d.generateStory(ctx, t, prompt, obs)
	case domain.ModeImage:
		if t.cap.Images == nil {
			return domain.Content{}, fmt.Errorf("%w: %s cannot generate images", ErrUnsupportedContent, t.id)
		}
		return d.generateImages(ctx, t, prompt, obs)
	case domain.ModeVideo:
		if t.cap.Video == nil {
			return domain.Content{}, fmt.Errorf("%w: %s cannot generate video", ErrUnsupportedContent, t.id)
		}
		return d.generateVideo(ctx, t, prompt, obs)
	default:
		return domain.Content{}, &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", mode)}
	}
}

func (d *Dispatcher) generateStory(ctx context.Context, t target, prompt string, obs domain.Observer) (domain.Content, error) {
	domain.Notify(obs, "Writing story...")
	req := Request{Operation: OpContent, Messages: storyMessages(prompt, t.cap.Native), Tools: t.cap.Native}
	text, err := d.send(ctx, "Story generation", t, req, obs)
	if err != nil {
		return domain.Content{}, fmt.Errorf("generate story: %w", err)
	}
	text = stripFences(text)
	if text == "" {
		return domain.Content{}, &ValidationError{Field: "text", Reason: "provider returned an empty story"}
	}
	return domain.Content{Mode: domain.ModeStory, Text: text, Prompt: prompt}, nil
}

func (d *Dispatcher) mediaRequest(t target, model, prompt string) MediaRequest {
	if model == "" {
		model = t.model
	}
	return MediaRequest{Provider: t.id, BaseURL: t.baseURL, APIKey: t.apiKey, Model: model, Prompt: prompt}
}

// generateImages fans out imagesPerRound requests and runs a second round to
// backfill failures. Partial results are returned; only total failure errors.
func (d *Dispatcher) generateImages(ctx context.Context, t target, prompt string, obs domain.Observer) (domain.Content, error) {
	req := d.mediaRequest(t, t.cap.ImageModel, prompt)

	images := make([]domain.Media, 0, imagesPerRound)
	var lastErr error
	for round := 1; round <= imageRounds && len(images) < imagesPerRound; round++ {
		need := imagesPerRound - len(images)
		domain.Notify(obs, fmt.Sprintf("Generating %d image(s), round %d of %d...", need, round, imageRounds))

		slots := make([]domain.Media, need)
		errs := make([]error, need)

		var g errgroup.Group
		for i := range need {
			g.Go(func() error {
				slots[i], errs[i] = WithRetry(ctx, d.cfg.Retrier, "Image generation", obs, func(ctx context.Context) (domain.Media, error) {
					if err := d.wait(ctx, t.id); err != nil {
						return domain.Media{}, err
					}
					return t.cap.Images.GenerateImage(ctx, req)
				})
				return nil
			})
		}
		_ = g.Wait()

		for i := range need {
			if errs[i] != nil {
				lastErr = errs[i]
				d.logger.Warn("image request failed",
					zap.String("provider", string(t.id)),
					zap.Int("round", round),
					zap.Error(errs[i]))
				continue
			}
			images = append(images, slots[i])
		}
	}

	if len(images) == 0 {
		return domain.Content{}, fmt.Errorf("generate images: every request failed: %w", lastErr)
	}
	domain.Notify(obs, fmt.Sprintf("Generated %d of %d images.", len(images), imagesPerRound))
	return domain.Content{Mode: domain.ModeImage, Media: images, Prompt: prompt}, nil
}

func (d *Dispatcher) generateVideo(ctx context.Context, t target, prompt string, obs domain.Observer) (domain.Content, error) {
	domain.Notify(obs, "Generating video, this can take a few minutes...")
	req := d.mediaRequest(t, t.cap.VideoModel, prompt)
	video, err := WithRetry(ctx, d.cfg.Retrier, "Video generation", obs, func(ctx context.Context) (domain.Media, error) {
		if err := d.wait(ctx, t.id); err != nil {
			return domain.Media{}, err
		}
		return t.cap.Video.GenerateVideo(ctx, req)
	})
	if err != nil {
		return domain.Content{}, fmt.Errorf("generate video: %w", err)
	}
	return domain.Content{Mode: domain.ModeVideo, Media: []domain.Media{video}, Prompt: prompt}, nil
}

// ProviderInfo describes a registered provider to API callers.
type ProviderInfo struct {
	ID            domain.ProviderID `json:"id"`
	Model         string            `json:"default_model"`
	BaseURL       string            `json:"base_url,omitempty"`
	Native        bool              `json:"native"`
	Images        bool              `json:"images"`
	Video         bool              `json:"video"`
	KeyRequired   bool              `json:"key_required"`
	KeyConfigured bool              `json:"key_configured"`
}

// Providers describes every registered provider in id order.
func (d *Dispatcher) Providers() []ProviderInfo {
	ids := d.registry.IDs()
	out := make([]ProviderInfo, 0, len(ids))
	for _, id := range ids {
		c, err := d.registry.Lookup(id)
		if err != nil {
			continue
		}
		out = append(out, ProviderInfo{
			ID:            id,
			Model:         c.Model,
			BaseURL:       c.BaseURL,
			Native:        c.Native,
			Images:        c.Images != nil,
			Video:         c.Video != nil,
			KeyRequired:   !c.Local,
			KeyConfigured: c.EnvKey != "" && d.cfg.LookupEnv(c.EnvKey) != "",
		})
	}
	return out
}
