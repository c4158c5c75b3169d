package server

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/energiwatch/energiwatch/pkg/advisor"
	"github.com/energiwatch/energiwatch/pkg/chart"
	"github.com/energiwatch/energiwatch/pkg/dashboard"
	"github.com/energiwatch/energiwatch/pkg/generator"
	"github.com/energiwatch/energiwatch/pkg/llm"
	"github.com/energiwatch/energiwatch/pkg/state"
	"github.com/energiwatch/energiwatch/pkg/storage"
	"github.com/energiwatch/energiwatch/pkg/types"
)

type mockAdvisor struct {
	mock.Mock
}

func (m *mockAdvisor) FetchSyntheticHouseholdData(ctx context.Context) types.HouseholdData {
	args := m.Called(ctx)
	return args.Get(0).(types.HouseholdData)
}

func (m *mockAdvisor) FetchAdvice(ctx context.Context, in advisor.AdviceInput) string {
	args := m.Called(ctx, in)
	return args.String(0)
}

func testAppliances() []types.Appliance {
	return []types.Appliance{
		{ID: "heater", Name: "Heater", PowerWatts: 1000, TypicalDailyHours: 5},
		{ID: "fridge", Name: "Fridge", PowerWatts: 150, TypicalDailyHours: 24, IsContinuouslyOn: true, IsEssential: true},
	}
}

func newTestServer(t *testing.T) (*Server, *state.Manager, *mockAdvisor) {
	t.Helper()
	ctx := context.Background()
	st := state.New(ctx, storage.NewStore(storage.NewMemory()))
	adv := &mockAdvisor{}
	gen := generator.New(rand.New(rand.NewPCG(7, 11)))
	d := dashboard.New(ctx, st, adv, gen, nil)
	proxy := llm.NewProxy(llm.NewGemini("", "http://127.0.0.1:1", nil, nil))
	return New(d, proxy), st, adv
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) dashboard.Snapshot {
	t.Helper()
	var snap dashboard.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	return snap
}

func TestState(t *testing.T) {
	srv, st, _ := newTestServer(t)
	h := srv.setupHandler()

	t.Run("Default", func(t *testing.T) {
		w := do(t, h, "GET", "/api/state", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "energiwatch", w.Header().Get("Server"))

		snap := decodeSnapshot(t, w)
		assert.Equal(t, chart.ViewMonth, snap.Chart.View)
		assert.Equal(t, types.DefaultBudget, snap.BillOverview.TargetBill)
		assert.Equal(t, types.UsageModeOnDemand, snap.State.UsageMode)
	})

	t.Run("BadView", func(t *testing.T) {
		w := do(t, h, "GET", "/api/state?view=year", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Appliances", func(t *testing.T) {
		b, err := json.Marshal(map[string]any{"appliances": testAppliances()})
		require.NoError(t, err)
		w := do(t, h, "POST", "/api/appliances?view=week", string(b))
		require.Equal(t, http.StatusOK, w.Code)
		snap := decodeSnapshot(t, w)
		assert.Equal(t, testAppliances(), snap.State.Appliances)
		assert.True(t, snap.RecommendationStale)
		assert.InDelta(t, 8.6*30*types.FixedTariffRate, snap.BillOverview.CurrentBill, 1e-9)
		assert.Len(t, snap.Chart.Usage, 7)

		w = do(t, h, "POST", "/api/appliances", `{"appliances":null}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Reset", func(t *testing.T) {
		w := do(t, h, "DELETE", "/api/state", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, st.Appliances())
	})
}

func TestToggles(t *testing.T) {
	srv, st, _ := newTestServer(t)
	st.SetAppliances(context.Background(), testAppliances())
	h := srv.setupHandler()

	w := do(t, h, "POST", "/api/appliances/essential", `{"id":"heater"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeSnapshot(t, w).State.Appliances[0].IsEssential)

	w = do(t, h, "POST", "/api/appliances/continuous", `{"id":"heater"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, st.Appliances()[0].IsContinuouslyOn)

	w = do(t, h, "POST", "/api/appliances/essential", `{"id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, "POST", "/api/appliances/continuous", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "GET", "/api/appliances/essential", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestSettings(t *testing.T) {
	srv, st, _ := newTestServer(t)
	st.SetAppliances(context.Background(), testAppliances())
	h := srv.setupHandler()

	t.Run("Budget", func(t *testing.T) {
		w := do(t, h, "POST", "/api/budget", `{"budget":150}`)
		require.Equal(t, http.StatusOK, w.Code)
		snap := decodeSnapshot(t, w)
		assert.Equal(t, 150.0, snap.BillOverview.TargetBill)
		assert.False(t, snap.BillOverview.IsOverBudget)
		assert.Len(t, snap.State.UsageData, 30)

		assert.Equal(t, http.StatusBadRequest, do(t, h, "POST", "/api/budget", `{"budget":-1}`).Code)
		assert.Equal(t, http.StatusBadRequest, do(t, h, "POST", "/api/budget", `{}`).Code)
	})

	t.Run("UsageMode", func(t *testing.T) {
		w := do(t, h, "POST", "/api/usageMode", `{"mode":"24/7"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, types.UsageModeContinuous, st.UsageMode())

		w = do(t, h, "POST", "/api/usageMode", `{"mode":"weekends"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Tariff", func(t *testing.T) {
		w := do(t, h, "POST", "/api/tariff", `{"tariffData":[{"ratePerKWh":0.1}]}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, types.FixedTariffRate, st.TariffData())
	})

	t.Run("Bill", func(t *testing.T) {
		w := do(t, h, "GET", "/api/bill", "")
		require.Equal(t, http.StatusOK, w.Code)
		var o types.BillOverview
		require.NoError(t, json.NewDecoder(w.Body).Decode(&o))
		assert.InDelta(t, 8.6*30*types.FixedTariffRate, o.CurrentBill, 1e-9)
	})

	t.Run("Chart", func(t *testing.T) {
		w := do(t, h, "GET", "/api/chart?view=day", "")
		require.Equal(t, http.StatusOK, w.Code)
		var c chart.Chart
		require.NoError(t, json.NewDecoder(w.Body).Decode(&c))
		assert.Len(t, c.Labels, 24)
		assert.Len(t, c.Solar, 24)
	})
}

func TestAdvisorRoutes(t *testing.T) {
	t.Run("Demo", func(t *testing.T) {
		srv, _, adv := newTestServer(t)
		h := srv.setupHandler()
		adv.On("FetchSyntheticHouseholdData", mock.Anything).Return(types.HouseholdData{
			Appliances: testAppliances(),
			SolarData:  make([]float64, 30),
			UsageData:  make([]float64, 30),
		}).Once()

		w := do(t, h, "POST", "/api/demo", "")
		require.Equal(t, http.StatusOK, w.Code)
		snap := decodeSnapshot(t, w)
		assert.Len(t, snap.State.Appliances, 2)
		assert.False(t, snap.IsAIGenerated)
		adv.AssertExpectations(t)
	})

	t.Run("Recommend", func(t *testing.T) {
		srv, _, adv := newTestServer(t)
		h := srv.setupHandler()
		adv.On("FetchAdvice", mock.Anything, mock.Anything).Return("## Tips").Once()

		w := do(t, h, "POST", "/api/recommendations", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"recommendation":"## Tips"}`, w.Body.String())
	})

	t.Run("Superseded", func(t *testing.T) {
		srv, st, adv := newTestServer(t)
		h := srv.setupHandler()
		adv.On("FetchAdvice", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { st.SetBudget(context.Background(), 10) }).
			Return("late").Once()

		w := do(t, h, "POST", "/api/recommendations", "")
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("GeminiProxy", func(t *testing.T) {
		srv, _, _ := newTestServer(t)
		h := srv.setupHandler()

		w := do(t, h, "POST", "/api/gemini", `{"prompt":"hi"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var resp llm.ProxyError
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "API key not configured", resp.Error)
	})
}

func TestWeb(t *testing.T) {
	t.Run("NoUI", func(t *testing.T) {
		srv, _, _ := newTestServer(t)
		w := do(t, srv.setupHandler(), "GET", "/", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Healthz", func(t *testing.T) {
		srv, _, _ := newTestServer(t)
		w := do(t, srv.setupHandler(), "GET", "/healthz", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", w.Body.String())
	})

	t.Run("WebDir", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>index</html>"), 0o644))
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "main.js"), []byte("console.log('hello');"), 0o644))

		srv, _, _ := newTestServer(t)
		srv.webDir = dir
		h := srv.setupHandler()

		w := do(t, h, "GET", "/assets/main.js", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "console.log('hello');", w.Body.String())

		w = do(t, h, "GET", "/chart/month", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "<html>index</html>", w.Body.String())

		w = do(t, h, "GET", "/.well-known/security.txt", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
