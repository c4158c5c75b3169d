package llm

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/energiwatch/energiwatch/pkg/log"
)

// ProxyRequest is the body accepted by the proxy.
type ProxyRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// ProxyError is the body returned by the proxy on failure.
type ProxyError struct {
	Error   string          `json:"error"`
	Message string          `json:"message,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Proxy forwards prompts to Gemini, walking the model list, and returns the
// vendor response with a "_modelUsed" member added.
type Proxy struct {
	gemini *Gemini
}

// NewProxy returns a handler backed by g.
func NewProxy(g *Gemini) *Proxy {
	return &Proxy{gemini: g}
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !p.gemini.HasKey() {
		log.Ctx(ctx).ErrorContext(ctx, "gemini api key not configured")
		writeJSON(w, http.StatusInternalServerError, ProxyError{
			Error:   "API key not configured",
			Message: "The Gemini API key could not be found in the environment. Set -gemini-api-key or GEMINI_API_KEY.",
		})
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ProxyError{Error: "Method not allowed"})
		return
	}

	var req ProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ProxyError{Error: "Invalid request body", Message: err.Error()})
		return
	}
	if req.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, ProxyError{Error: "Prompt is required"})
		return
	}

	resp, model, err := p.gemini.Complete(ctx, req.Prompt, req.Model)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "all gemini models failed", slog.Any("error", err))
		pe := ProxyError{Error: "Gemini API error", Message: err.Error()}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			pe.Message = apiErr.Message
			pe.Details = apiErr.Details
		}
		writeJSON(w, http.StatusInternalServerError, pe)
		return
	}

	used, err := json.Marshal(model)
	if err != nil {
		panic(http.ErrAbortHandler)
	}
	resp["_modelUsed"] = used
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}
