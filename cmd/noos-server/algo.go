package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/retaildata/noosengine/pkg/params"
	"github.com/retaildata/noosengine/pkg/tasks"
)

// handleAlgoCurrent implements GET /api/algo/current.
func (s *server) handleAlgoCurrent(w http.ResponseWriter, r *http.Request) {
	p, err := s.params.GetActive(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, p)
}

// handleAlgoDefaults implements GET /api/algo/defaults: the built-in
// values, read-only, never a live row.
func (s *server) handleAlgoDefaults(w http.ResponseWriter, r *http.Request) {
	writeData(w, params.Defaults)
}

// handleAlgoUpdate implements POST /api/algo/update: in-place update of
// the currently active set's fields.
func (s *server) handleAlgoUpdate(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeParamOverrides(r, s.params)
	if err != nil {
		writeError(w, tasks.NewError(tasks.KindValidation, err.Error(), nil))
		return
	}
	p, err := s.params.UpdateActive(r.Context(), fields)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, p)
}

// handleAlgoCreate implements POST /api/algo/create?name=…: create a new
// named set from the active set's values with the given overrides
// layered on, and activate it.
func (s *server) handleAlgoCreate(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, tasks.NewError(tasks.KindValidation, "name query parameter is required", nil))
		return
	}
	fields, err := decodeParamOverrides(r, s.params)
	if err != nil {
		writeError(w, tasks.NewError(tasks.KindValidation, err.Error(), nil))
		return
	}
	p, err := s.params.Create(r.Context(), name, fields)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, p)
}

// handleAlgoSetUpdate implements PUT /api/algo/set/{name}: updates a
// named, possibly-inactive set's fields without touching activity.
func (s *server) handleAlgoSetUpdate(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	fields, err := decodeParamOverrides(r, s.params)
	if err != nil {
		writeError(w, tasks.NewError(tasks.KindValidation, err.Error(), nil))
		return
	}
	p, err := s.params.UpdateByName(r.Context(), name, fields)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, p)
}

// handleAlgoSetActivate implements POST /api/algo/set/{name}/activate:
// the atomic deactivate-then-activate swap.
func (s *server) handleAlgoSetActivate(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	p, err := s.params.Activate(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, p)
}

// handleAlgoSetGet implements GET /api/algo/set/{name}.
func (s *server) handleAlgoSetGet(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	p, err := s.params.GetByName(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, p)
}

// handleAlgoSetsRecent implements GET /api/algo/sets/recent?limit=N.
func (s *server) handleAlgoSetsRecent(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	recent, err := s.params.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, recent)
}

// decodeParamOverrides reads a paramsOverrides body and applies any
// present fields on top of the currently active set, producing a complete
// params.Fields the manager can persist. An empty/absent body is valid —
// it yields the active set's fields unchanged.
func decodeParamOverrides(r *http.Request, mgr *params.Manager) (params.Fields, error) {
	active, err := mgr.GetActive(r.Context())
	if err != nil {
		return params.Fields{}, err
	}
	fields := params.Fields{
		LiquidationThreshold:   active.LiquidationThreshold,
		BestsellerMultiplier:   active.BestsellerMultiplier,
		MinVolumeThreshold:     active.MinVolumeThreshold,
		ConsistencyThreshold:   active.ConsistencyThreshold,
		AnalysisStartDate:      active.AnalysisStartDate,
		AnalysisEndDate:        active.AnalysisEndDate,
		CoreDurationMonths:     active.CoreDurationMonths,
		BestsellerDurationDays: active.BestsellerDurationDays,
	}

	if r.Body == nil || r.ContentLength == 0 {
		return fields, nil
	}
	var o paramsOverrides
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		return params.Fields{}, err
	}
	applyOverrides(&fields, &o)
	return fields, nil
}

func applyOverrides(fields *params.Fields, o *paramsOverrides) {
	if o.LiquidationThreshold != nil {
		fields.LiquidationThreshold = *o.LiquidationThreshold
	}
	if o.BestsellerMultiplier != nil {
		fields.BestsellerMultiplier = *o.BestsellerMultiplier
	}
	if o.MinVolumeThreshold != nil {
		fields.MinVolumeThreshold = *o.MinVolumeThreshold
	}
	if o.ConsistencyThreshold != nil {
		fields.ConsistencyThreshold = *o.ConsistencyThreshold
	}
	if o.CoreDurationMonths != nil {
		fields.CoreDurationMonths = *o.CoreDurationMonths
	}
	if o.BestsellerDurationDays != nil {
		fields.BestsellerDurationDays = *o.BestsellerDurationDays
	}
	if o.AnalysisStartDate != nil {
		t, err := time.Parse("2006-01-02", *o.AnalysisStartDate)
		if err == nil {
			fields.AnalysisStartDate = &t
		}
	}
	if o.AnalysisEndDate != nil {
		t, err := time.Parse("2006-01-02", *o.AnalysisEndDate)
		if err == nil {
			fields.AnalysisEndDate = &t
		}
	}
}
