package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"

	"github.com/energiwatch/energiwatch/pkg/chart"
	"github.com/energiwatch/energiwatch/pkg/dashboard"
	"github.com/energiwatch/energiwatch/pkg/log"
	"github.com/energiwatch/energiwatch/pkg/state"
	"github.com/energiwatch/energiwatch/pkg/types"
)

// parseView reads the view query parameter, writing a 400 when it is bad.
func parseView(w http.ResponseWriter, r *http.Request) (chart.View, bool) {
	v, err := chart.ParseView(r.URL.Query().Get("view"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return v, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Ctx(r.Context()).WarnContext(r.Context(), "failed to decode request body", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeSnapshot answers a mutation with the dashboard as it now looks.
func (s *Server) writeSnapshot(w http.ResponseWriter, r *http.Request) {
	view, ok := parseView(w, r)
	if !ok {
		return
	}
	writeJSON(w, s.dashboard.View(r.Context(), view))
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	s.writeSnapshot(w, r)
}

func (s *Server) handleResetState(w http.ResponseWriter, r *http.Request) {
	s.dashboard.Reset(r.Context())
	s.writeSnapshot(w, r)
}

func (s *Server) handleGetChart(w http.ResponseWriter, r *http.Request) {
	view, ok := parseView(w, r)
	if !ok {
		return
	}
	writeJSON(w, s.dashboard.Chart(view))
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.dashboard.Overview())
}

func (s *Server) handleSetAppliances(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Appliances []types.Appliance `json:"appliances"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Appliances == nil {
		writeJSONError(w, "appliances must be an array", http.StatusBadRequest)
		return
	}
	s.dashboard.SetAppliances(r.Context(), req.Appliances)
	s.writeSnapshot(w, r)
}

type applianceRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleToggleEssential(w http.ResponseWriter, r *http.Request) {
	var req applianceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := s.dashboard.ToggleEssential(r.Context(), req.ID); err != nil {
		writeApplianceError(w, r, err)
		return
	}
	s.writeSnapshot(w, r)
}

func (s *Server) handleToggleContinuous(w http.ResponseWriter, r *http.Request) {
	var req applianceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := s.dashboard.ToggleContinuous(r.Context(), req.ID); err != nil {
		writeApplianceError(w, r, err)
		return
	}
	s.writeSnapshot(w, r)
}

func writeApplianceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, state.ErrApplianceNotFound) {
		writeJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	log.Ctx(r.Context()).ErrorContext(r.Context(), "failed to update appliance", slog.Any("error", err))
	writeJSONError(w, "failed to update appliance", http.StatusInternalServerError)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Budget *float64 `json:"budget"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Budget == nil || *req.Budget < 0 || math.IsInf(*req.Budget, 0) {
		writeJSONError(w, "budget must be a non-negative number", http.StatusBadRequest)
		return
	}
	s.dashboard.SetBudget(r.Context(), *req.Budget)
	s.writeSnapshot(w, r)
}

func (s *Server) handleSetUsageMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode types.UsageMode `json:"mode"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := s.dashboard.SetUsageMode(r.Context(), req.Mode); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeSnapshot(w, r)
}

func (s *Server) handleSetTariff(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TariffData any `json:"tariffData"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.dashboard.SetTariff(r.Context(), req.TariffData)
	s.writeSnapshot(w, r)
}

func (s *Server) handleGenerateDemo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, err := s.dashboard.GenerateDemoData(ctx)
	if err != nil {
		writeDashboardError(w, r, "demo data", err)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	text, err := s.dashboard.Recommend(r.Context())
	if err != nil {
		writeDashboardError(w, r, "recommendation", err)
		return
	}
	writeJSON(w, struct {
		Recommendation string `json:"recommendation"`
	}{Recommendation: text})
}

func writeDashboardError(w http.ResponseWriter, r *http.Request, what string, err error) {
	if errors.Is(err, dashboard.ErrSuperseded) {
		writeJSONError(w, fmt.Sprintf("%s superseded by a newer change", what), http.StatusConflict)
		return
	}
	log.Ctx(r.Context()).ErrorContext(r.Context(), "failed to generate "+what, slog.Any("error", err))
	writeJSONError(w, "failed to generate "+what, http.StatusInternalServerError)
}
