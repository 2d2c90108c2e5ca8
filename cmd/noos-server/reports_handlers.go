package main

import (
	"net/http"
	"strconv"

	"github.com/retaildata/noosengine/pkg/reports"
	"github.com/retaildata/noosengine/pkg/tasks"
)

// handleUpdates implements GET /api/updates: the dashboard summary tiles.
func (s *server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	tiles, err := reports.BuildTiles(r.Context(), s.db)
	if err != nil {
		writeError(w, tasks.NewError(tasks.KindInternal, "failed to build dashboard tiles", err))
		return
	}
	writeData(w, tiles)
}

// handleReport1 implements GET /api/report/report1: one row per recent
// NOOS run.
func (s *server) handleReport1(w http.ResponseWriter, r *http.Request) {
	limit := reportLimit(r)
	rows, err := reports.BuildReport1(r.Context(), s.db, limit)
	if err != nil {
		writeError(w, tasks.NewError(tasks.KindInternal, "failed to build report1", err))
		return
	}
	writeData(w, rows)
}

// handleReport2 implements GET /api/report/report2: system health
// aggregated per calendar day and task type.
func (s *server) handleReport2(w http.ResponseWriter, r *http.Request) {
	limit := reportLimit(r)
	rows, err := reports.BuildReport2(r.Context(), s.db, limit)
	if err != nil {
		writeError(w, tasks.NewError(tasks.KindInternal, "failed to build report2", err))
		return
	}
	writeData(w, rows)
}

func reportLimit(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return 200
}

// clearAllResult is the {entity: count} shape DELETE /api/data/clear-all
// returns: every table wiped, with per-entity deleted counts.
type clearAllResult struct {
	Styles      int `json:"styles"`
	Stores      int `json:"stores"`
	SKUs        int `json:"skus"`
	Sales       int `json:"sales"`
	NoosResults int `json:"noosResults"`
}

// handleClearAll implements DELETE /api/data/clear-all: wipes every
// master/transactional/result table inside one transaction, after
// snapshotting the counts being removed.
func (s *server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	styles, err := s.db.CountStyles(ctx)
	if err != nil {
		writeError(w, tasks.NewError(tasks.KindInternal, "failed to count styles", err))
		return
	}
	stores, err := s.db.CountStores(ctx)
	if err != nil {
		writeError(w, tasks.NewError(tasks.KindInternal, "failed to count stores", err))
		return
	}
	skus, err := s.db.CountSKUs(ctx)
	if err != nil {
		writeError(w, tasks.NewError(tasks.KindInternal, "failed to count skus", err))
		return
	}
	sales, err := s.db.CountSalesRecords(ctx)
	if err != nil {
		writeError(w, tasks.NewError(tasks.KindInternal, "failed to count sales records", err))
		return
	}
	results, err := s.db.ListNoosResults(ctx)
	if err != nil {
		writeError(w, tasks.NewError(tasks.KindInternal, "failed to count noos results", err))
		return
	}

	tx, err := s.db.BeginTransaction(ctx)
	if err != nil {
		writeError(w, tasks.NewError(tasks.KindInternal, "failed to begin clear transaction", err))
		return
	}
	defer tx.Rollback(ctx)

	if err := tx.ClearSales(ctx); err != nil {
		writeError(w, tasks.NewError(tasks.KindInternal, "failed to clear sales", err))
		return
	}
	if err := tx.ClearSKUs(ctx); err != nil {
		writeError(w, tasks.NewError(tasks.KindInternal, "failed to clear skus", err))
		return
	}
	if err := tx.ClearStyles(ctx); err != nil {
		writeError(w, tasks.NewError(tasks.KindInternal, "failed to clear styles", err))
		return
	}
	if err := tx.ClearStores(ctx); err != nil {
		writeError(w, tasks.NewError(tasks.KindInternal, "failed to clear stores", err))
		return
	}
	if err := tx.DeleteAllNoosResults(ctx); err != nil {
		writeError(w, tasks.NewError(tasks.KindInternal, "failed to clear noos results", err))
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(w, tasks.NewError(tasks.KindInternal, "failed to commit clear-all", err))
		return
	}

	writeData(w, clearAllResult{Styles: styles, Stores: stores, SKUs: skus, Sales: sales, NoosResults: len(results)})
}
