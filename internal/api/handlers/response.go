package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Harshitk-cp/beliefgraph/internal/llm"
	"github.com/Harshitk-cp/beliefgraph/internal/service"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeServiceError maps session and provider errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		unsupported llm.ErrUnsupportedProvider
		validation  *llm.ValidationError
		status      *llm.HTTPStatusError
		transport   *llm.TransportError
		fatal       *llm.FatalProviderError
		parse       *llm.ParseError
	)

	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSuperseded):
		writeError(w, http.StatusConflict, "superseded")
	case errors.Is(err, service.ErrRefineInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidMode),
		errors.Is(err, service.ErrPromptEmpty),
		errors.Is(err, service.ErrInvalidEdit),
		errors.Is(err, service.ErrAnswerEmpty),
		errors.Is(err, service.ErrNothingToRefine),
		errors.Is(err, llm.ErrMissingAPIKey),
		errors.As(err, &unsupported):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, llm.ErrUnsupportedContent),
		errors.As(err, &validation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "provider request timed out")
	case errors.As(err, &status),
		errors.As(err, &transport),
		errors.As(err, &fatal),
		errors.As(err, &parse):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
