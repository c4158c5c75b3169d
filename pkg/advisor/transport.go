package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/energiwatch/energiwatch/pkg/llm"
)

// NoResponse is returned in place of text when the vendor answered but the
// answer had no text part.
const NoResponse = "No response."

// Transport sends a prompt to a model and returns its text.
type Transport interface {
	CallModel(ctx context.Context, prompt, model string) (string, error)
}

// ErrShape is returned when a model answered with something that can't be
// used.
var ErrShape = errors.New("unexpected model response shape")

// TransportError is a failure to get an answer, either because the proxy was
// unreachable or because it reported an error.
type TransportError struct {
	// Status is the HTTP status from the proxy, or 0 if there was none.
	Status  int
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("model call failed (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("model call failed: %s", e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProxyTransport calls a same-origin proxy speaking the llm.Proxy contract.
type ProxyTransport struct {
	url    string
	client *http.Client
}

// NewProxyTransport returns a Transport posting to url.
func NewProxyTransport(url string, client *http.Client) *ProxyTransport {
	return &ProxyTransport{url: url, client: client}
}

func (p *ProxyTransport) CallModel(ctx context.Context, prompt, model string) (string, error) {
	body, err := json.Marshal(llm.ProxyRequest{Prompt: prompt, Model: model})
	if err != nil {
		return "", fmt.Errorf("failed to marshal proxy request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create proxy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &TransportError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Status: resp.StatusCode, Message: err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var pe llm.ProxyError
		msg := resp.Status
		if json.Unmarshal(raw, &pe) == nil && pe.Error != "" {
			msg = pe.Error
		}
		return "", &TransportError{Status: resp.StatusCode, Message: msg}
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: %w", ErrShape, err)
	}
	if vendorErr, ok := out["error"]; ok && string(vendorErr) != "null" {
		return "", &TransportError{Status: resp.StatusCode, Message: string(vendorErr)}
	}
	return textOrNoResponse(out), nil
}

// GeminiTransport calls Gemini in-process, walking the same model list the
// proxy does.
type GeminiTransport struct {
	gemini *llm.Gemini
}

// NewGeminiTransport returns a Transport backed by g.
func NewGeminiTransport(g *llm.Gemini) *GeminiTransport {
	return &GeminiTransport{gemini: g}
}

func (t *GeminiTransport) CallModel(ctx context.Context, prompt, model string) (string, error) {
	resp, _, err := t.gemini.Complete(ctx, prompt, model)
	if err != nil {
		te := &TransportError{Message: err.Error(), Err: err}
		var apiErr *llm.APIError
		if errors.As(err, &apiErr) {
			te.Status = apiErr.Status
		}
		return "", te
	}
	return textOrNoResponse(resp), nil
}

func textOrNoResponse(resp map[string]json.RawMessage) string {
	text, ok := llm.Text(resp)
	if !ok || text == "" {
		return NoResponse
	}
	return text
}
