package handlers

import (
	"net/http"
	"strconv"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/Harshitk-cp/beliefgraph/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type SessionHandler struct {
	svc             *service.SessionService
	defaultProvider domain.ProviderID
}

func NewSessionHandler(svc *service.SessionService, defaultProvider domain.ProviderID) *SessionHandler {
	return &SessionHandler{svc: svc, defaultProvider: defaultProvider}
}

// providerRequest carries per-session provider settings. API keys are held
// in memory for the session only and never echoed back.
type providerRequest struct {
	Provider string            `json:"provider,omitempty"`
	Model    string            `json:"model,omitempty"`
	BaseURL  string            `json:"base_url,omitempty"`
	APIKeys  map[string]string `json:"api_keys,omitempty"`
}

func (p providerRequest) config(fallback domain.ProviderID) domain.ProviderConfig {
	cfg := domain.ProviderConfig{
		Provider: domain.ProviderID(p.Provider),
		Model:    p.Model,
		BaseURL:  p.BaseURL,
	}
	if cfg.Provider == "" {
		cfg.Provider = fallback
	}
	if len(p.APIKeys) > 0 {
		cfg.APIKeys = make(map[domain.ProviderID]string, len(p.APIKeys))
		for id, key := range p.APIKeys {
			cfg.APIKeys[domain.ProviderID(id)] = key
		}
	}
	return cfg
}

type createSessionRequest struct {
	Prompt string `json:"prompt"`
	Mode   string `json:"mode,omitempty"`
	providerRequest
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

type answerRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type skipRequest struct {
	Question string `json:"question"`
}

type historyResponse struct {
	Entries []domain.HistoryEntry `json:"entries"`
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	snap, err := h.svc.Create(r.Context(), req.Prompt, domain.Mode(req.Mode), req.config(h.defaultProvider))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	snap, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req modeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respond(w, http.StatusOK)(h.svc.SetMode(r.Context(), id, domain.Mode(req.Mode)))
}

func (h *SessionHandler) SubmitPrompt(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req promptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respond(w, http.StatusOK)(h.svc.SubmitPrompt(r.Context(), id, req.Prompt))
}

func (h *SessionHandler) SetProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req providerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respond(w, http.StatusOK)(h.svc.SetProvider(r.Context(), id, req.config(h.defaultProvider)))
}

func (h *SessionHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK)(h.svc.Analyze(r.Context(), id))
}

func (h *SessionHandler) Answer(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respond(w, http.StatusOK)(h.svc.Answer(r.Context(), id, req.Question, req.Answer))
}

func (h *SessionHandler) Skip(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req skipRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respond(w, http.StatusOK)(h.svc.Skip(r.Context(), id, req.Question))
}

func (h *SessionHandler) AddEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req domain.GraphUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respond(w, http.StatusAccepted)(h.svc.AddEdit(r.Context(), id, req))
}

func (h *SessionHandler) Refine(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK)(h.svc.Refine(r.Context(), id))
}

func (h *SessionHandler) GenerateContent(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK)(h.svc.GenerateContent(r.Context(), id))
}

func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.svc.History(r.Context(), id, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Entries: entries})
}

// respond writes a snapshot result or maps its error.
func (h *SessionHandler) respond(w http.ResponseWriter, status int) func(*service.Snapshot, error) {
	return func(snap *service.Snapshot, err error) {
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, status, snap)
	}
}
