// Package llm talks to the Gemini generateContent API and exposes a
// same-origin proxy so browsers never see the API key.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/energiwatch/energiwatch/pkg/common"
	"github.com/energiwatch/energiwatch/pkg/log"
	"github.com/levenlabs/go-lflag"
)

const (
	// DefaultModel is tried first when the caller does not ask for one.
	DefaultModel = "gemini-2.0-flash"

	maxResponseSize = 10 * 1024 * 1024
)

// DefaultFallbackModels are tried in order after the requested model.
var DefaultFallbackModels = []string{"gemini-1.5-pro", "gemini-pro"}

var (
	ErrNoAPIKey        = errors.New("gemini api key not configured")
	ErrAllModelsFailed = errors.New("all gemini models failed")
)

// APIError is a failure reported by the vendor, either through a non-2xx
// status or an "error" member in a 2xx body.
type APIError struct {
	Model   string
	Status  int
	Message string
	// Details is the vendor's error payload, if it was JSON.
	Details json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini model %s failed (HTTP %d): %s", e.Model, e.Status, e.Message)
}

// Gemini is a generateContent client.
type Gemini struct {
	apiKey         string
	apiURL         string
	fallbackModels []string
	client         *http.Client
}

// Configured registers the Gemini flags. The key falls back to the
// GEMINI_API_KEY environment variable.
func Configured() *Gemini {
	g := &Gemini{
		client: common.HTTPClient(30 * time.Second),
	}
	apiKey := lflag.String("gemini-api-key", "", "Gemini API key (defaults to $GEMINI_API_KEY)")
	apiURL := lflag.String("gemini-api-url", "https://generativelanguage.googleapis.com", "Base URL of the Gemini API")
	fallback := lflag.String("gemini-fallback-models", strings.Join(DefaultFallbackModels, ","), "Comma separated models to try after the requested one")

	lflag.Do(func() {
		g.apiKey = *apiKey
		if g.apiKey == "" {
			g.apiKey = os.Getenv("GEMINI_API_KEY")
		}
		g.apiURL = strings.TrimSuffix(*apiURL, "/")
		g.fallbackModels = splitModels(*fallback)
		if err := g.Validate(); err != nil {
			panic(fmt.Sprintf("gemini validation failed: %v", err))
		}
	})
	return g
}

// NewGemini returns a client for apiURL. A nil fallbackModels uses
// DefaultFallbackModels.
func NewGemini(apiKey, apiURL string, fallbackModels []string, client *http.Client) *Gemini {
	if fallbackModels == nil {
		fallbackModels = DefaultFallbackModels
	}
	if client == nil {
		client = common.HTTPClient(30 * time.Second)
	}
	return &Gemini{
		apiKey:         apiKey,
		apiURL:         strings.TrimSuffix(apiURL, "/"),
		fallbackModels: fallbackModels,
		client:         client,
	}
}

// Validate ensures the configuration is valid. A missing key is allowed;
// requests then fail with ErrNoAPIKey.
func (g *Gemini) Validate() error {
	if g.apiURL == "" {
		return fmt.Errorf("gemini-api-url is required")
	}
	if _, err := url.Parse(g.apiURL); err != nil {
		return fmt.Errorf("failed to parse gemini url (%s): %w", g.apiURL, err)
	}
	return nil
}

// HasKey reports whether an API key is configured.
func (g *Gemini) HasKey() bool {
	return g.apiKey != ""
}

// Models returns the ordered, de-duplicated list of models to try for a
// request that asked for model.
func (g *Gemini) Models(model string) []string {
	if model == "" {
		model = DefaultModel
	}
	models := []string{model}
	for _, m := range g.fallbackModels {
		if m != "" && !slices.Contains(models, m) {
			models = append(models, m)
		}
	}
	return models
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type vendorError struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateContent sends prompt to a single model and returns the vendor's
// response object.
func (g *Gemini) GenerateContent(ctx context.Context, model, prompt string) (map[string]json.RawMessage, error) {
	if !g.HasKey() {
		return nil, ErrNoAPIKey
	}
	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gemini request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1/models/%s:generateContent", g.apiURL, url.PathEscape(model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call gemini model %s: %w", model, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read gemini response: %w", err)
	}

	var ve vendorError
	_ = json.Unmarshal(raw, &ve)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Model: model, Status: resp.StatusCode, Message: resp.Status}
		if json.Valid(raw) {
			apiErr.Details = raw
		}
		if ve.Error != nil && ve.Error.Message != "" {
			apiErr.Message = ve.Error.Message
		}
		return nil, apiErr
	}
	if ve.Error != nil {
		errRaw := raw
		var obj map[string]json.RawMessage
		if json.Unmarshal(raw, &obj) == nil {
			errRaw = obj["error"]
		}
		return nil, &APIError{Model: model, Status: resp.StatusCode, Message: ve.Error.Message, Details: errRaw}
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode gemini response: %w", err)
	}
	return out, nil
}

// Complete walks Models(model) sequentially and returns the first successful
// response together with the model that produced it. When every model fails
// the returned error wraps ErrAllModelsFailed and the last failure.
func (g *Gemini) Complete(ctx context.Context, prompt, model string) (map[string]json.RawMessage, string, error) {
	if !g.HasKey() {
		return nil, "", ErrNoAPIKey
	}
	var lastErr error
	for _, m := range g.Models(model) {
		resp, err := g.GenerateContent(ctx, m, prompt)
		if err == nil {
			log.Ctx(ctx).DebugContext(ctx, "gemini model succeeded", slog.String("model", m))
			return resp, m, nil
		}
		log.Ctx(ctx).WarnContext(ctx, "gemini model failed", slog.String("model", m), slog.Any("error", err))
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, "", fmt.Errorf("%w: %w", ErrAllModelsFailed, lastErr)
}

// Text extracts candidates[0].content.parts[0].text from a response.
func Text(resp map[string]json.RawMessage) (string, bool) {
	var candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	}
	if err := json.Unmarshal(resp["candidates"], &candidates); err != nil {
		return "", false
	}
	if len(candidates) == 0 || len(candidates[0].Content.Parts) == 0 {
		return "", false
	}
	return candidates[0].Content.Parts[0].Text, true
}

func splitModels(s string) []string {
	var models []string
	for _, m := range strings.Split(s, ",") {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	return models
}
