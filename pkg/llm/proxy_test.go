package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doProxy(t *testing.T, p *Proxy, method, body string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, "/api/gemini", strings.NewReader(body))
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestProxy(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		p := NewProxy(NewGemini("", "http://127.0.0.1:1", nil, nil))
		rec, out := doProxy(t, p, http.MethodPost, `{"prompt":"hi"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "API key not configured", out["error"])
		assert.NotContains(t, rec.Body.String(), "test-key")
	})

	t.Run("method not allowed", func(t *testing.T) {
		g, _ := newTestGemini(t, nil)
		rec, out := doProxy(t, NewProxy(g), http.MethodGet, "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, "Method not allowed", out["error"])
	})

	t.Run("missing prompt", func(t *testing.T) {
		g, fake := newTestGemini(t, nil)
		rec, out := doProxy(t, NewProxy(g), http.MethodPost, `{"model":"gemini-pro"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Prompt is required", out["error"])
		assert.Empty(t, fake.calls)
	})

	t.Run("bad body", func(t *testing.T) {
		g, _ := newTestGemini(t, nil)
		rec, _ := doProxy(t, NewProxy(g), http.MethodPost, `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("success adds model used", func(t *testing.T) {
		g, fake := newTestGemini(t, map[string]fakeResponse{"gemini-1.5-pro": textResponse("ok")})
		rec, out := doProxy(t, NewProxy(g), http.MethodPost, `{"prompt":"hi","model":"gemini-2.0-flash"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "gemini-1.5-pro", out["_modelUsed"])
		assert.Contains(t, out, "candidates")
		assert.Equal(t, []string{"gemini-2.0-flash", "gemini-1.5-pro"}, fake.calls)
	})

	t.Run("all models fail", func(t *testing.T) {
		g, _ := newTestGemini(t, nil)
		rec, out := doProxy(t, NewProxy(g), http.MethodPost, `{"prompt":"hi"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Gemini API error", out["error"])
		assert.Equal(t, "model not found", out["message"])
		assert.NotNil(t, out["details"])
	})
}
