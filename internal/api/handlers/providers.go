package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/Harshitk-cp/beliefgraph/internal/llm"
)

type ProviderHandler struct {
	dispatcher      *llm.Dispatcher
	defaultProvider domain.ProviderID
}

func NewProviderHandler(d *llm.Dispatcher, defaultProvider domain.ProviderID) *ProviderHandler {
	return &ProviderHandler{dispatcher: d, defaultProvider: defaultProvider}
}

type listProvidersResponse struct {
	Default   domain.ProviderID  `json:"default"`
	Providers []llm.ProviderInfo `json:"providers"`
}

func (h *ProviderHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listProvidersResponse{
		Default:   h.defaultProvider,
		Providers: h.dispatcher.Providers(),
	})
}
