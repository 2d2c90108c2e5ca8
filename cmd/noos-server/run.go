package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/retaildata/noosengine/pkg/noos"
	"github.com/retaildata/noosengine/pkg/params"
	"github.com/retaildata/noosengine/pkg/storage/postgres"
	"github.com/retaildata/noosengine/pkg/tasks"
)

// handleRunNoosAsync implements POST /api/run/noos/async: submits a
// COMPUTE task running the NOOS algorithm, optionally against a named
// parameter set or inline overrides of the currently active one.
func (s *server) handleRunNoosAsync(w http.ResponseWriter, r *http.Request) {
	var p computePayload
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, tasks.NewError(tasks.KindValidation, "malformed run request", err))
			return
		}
	}

	payload, err := json.Marshal(p)
	if err != nil {
		writeError(w, tasks.NewError(tasks.KindInternal, "failed to encode compute payload", err))
		return
	}

	task, err := s.engine.Submit(r.Context(), tasks.TypeCompute, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, task)
}

// handleComputeTask is the tasks.Handler the engine dispatches COMPUTE
// tasks to: resolve the parameter set to run with, execute the seven
// NOOS stages, and persist the results inside one transaction.
func (s *server) handleComputeTask(ctx context.Context, payload []byte, progress tasks.ProgressFunc) ([]byte, error) {
	var p computePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, tasks.NewError(tasks.KindValidation, "malformed compute payload", err)
	}

	activeParams, err := s.resolveRunParameters(ctx, &p)
	if err != nil {
		return nil, err
	}

	// Results are tagged with the owning task's ID so a NoosResult row
	// can be traced back to its run in the task log. A direct (non-engine)
	// invocation has no task in ctx and gets a generated run ID instead.
	runID := tasks.TaskIDFromContext(ctx)
	if runID == "" {
		runID = uuid.NewString()
	}
	cancelled := func() bool { return s.engine.CancelRequested(ctx) }

	summary, err := s.algorithm.Run(ctx, activeParams, runID, noos.ProgressFunc(progress), cancelled)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTransaction(ctx)
	if err != nil {
		return nil, tasks.NewError(tasks.KindInternal, "failed to begin persistence transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := s.algorithm.Persist(ctx, tx, runID, summary); err != nil {
		return nil, tasks.NewError(tasks.KindInternal, "failed to persist noos results", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, tasks.NewError(tasks.KindInternal, "failed to commit noos results", err)
	}

	resultBytes, err := json.Marshal(computeResult{
		Core:                 summary.CoreCount,
		Bestseller:           summary.BestsellerCount,
		Fashion:              summary.FashionCount,
		DiscardedLiquidation: summary.DiscardedLiquidation,
		DroppedUnresolved:    summary.DroppedUnresolved,
		ParametersUsed:       activeParams.Name,
		SubstitutedDefaults:  summary.SubstitutedDefaults,
	})
	if err != nil {
		return nil, tasks.NewError(tasks.KindInternal, "failed to encode compute result", err)
	}
	return resultBytes, nil
}

// resolveRunParameters picks the parameter set a compute task runs with:
// a named set if given, the active set with overrides layered on if
// given, or the active set unchanged otherwise.
func (s *server) resolveRunParameters(ctx context.Context, p *computePayload) (*postgres.AlgorithmParameters, error) {
	if p.ParameterSetName != "" {
		active, err := s.params.GetByName(ctx, p.ParameterSetName)
		if err != nil {
			return nil, err
		}
		return active, nil
	}

	active, err := s.params.GetActive(ctx)
	if err != nil {
		return nil, tasks.NewError(tasks.KindInternal, "failed to load active parameter set", err)
	}
	if p.Overrides == nil {
		return active, nil
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
	applyOverrides(&fields, p.Overrides)

	// A compute run's ad hoc overrides are evaluated in place, without
	// mutating the stored active set — only /api/algo/update does that.
	active.LiquidationThreshold = fields.LiquidationThreshold
	active.BestsellerMultiplier = fields.BestsellerMultiplier
	active.MinVolumeThreshold = fields.MinVolumeThreshold
	active.ConsistencyThreshold = fields.ConsistencyThreshold
	active.AnalysisStartDate = fields.AnalysisStartDate
	active.AnalysisEndDate = fields.AnalysisEndDate
	active.CoreDurationMonths = fields.CoreDurationMonths
	active.BestsellerDurationDays = fields.BestsellerDurationDays
	return active, nil
}
