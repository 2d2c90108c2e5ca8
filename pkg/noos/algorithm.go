// Package noos implements the NOOS ("Never Out Of Stock") classification
// algorithm: a seven-stage analytic that filters sales to an analysis
// window, strips liquidation noise, aggregates per-style metrics,
// computes category benchmarks, and assigns every style exactly one of
// {core, bestseller, fashion} under a strict tie-break order.
package noos

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/retaildata/noosengine/pkg/common/logging"
	"github.com/retaildata/noosengine/pkg/storage/postgres"
	"github.com/retaildata/noosengine/pkg/tasks"
)

// Classification is one of the three labels a style may receive.
type Classification string

const (
	ClassCore       Classification = "core"
	ClassBestseller Classification = "bestseller"
	ClassFashion    Classification = "fashion"
)

// ErrNoData is returned (wrapped) when stage 1 selects zero sales rows.
const ErrNoData = "NO_DATA"

// ProgressFunc reports a stage checkpoint percentage and message.
type ProgressFunc func(pct float64, message string)

// CancelFunc reports whether cancellation has been requested; checked at
// every stage boundary.
type CancelFunc func() bool

// Store is the narrow subset of the Storage Adapter the algorithm reads
// from and writes its results to.
type Store interface {
	AllSales(ctx context.Context) ([]*postgres.SalesRecord, error)
	SalesInDateRange(ctx context.Context, from, to time.Time) ([]*postgres.SalesRecord, error)
	ListStyles(ctx context.Context) ([]*postgres.Style, error)
	ListSKUs(ctx context.Context) ([]*postgres.SKU, error)
	BeginTransaction(ctx context.Context) (postgres.Transaction, error)
}

// StyleResult is one style's classification outcome, ready for
// persistence as a postgres.NoosResult.
type StyleResult struct {
	StyleCode            string
	Category             string
	Type                 Classification
	StyleROS             float64
	StyleRevContribution float64
	TotalQuantitySold    int
	TotalRevenue         float64
	DaysAvailable        int
	DaysWithSales        int
	AvgDiscount          float64
}

// Summary is the run's outcome: the classified styles plus bookkeeping
// counters recorded into Task.parameters.
type Summary struct {
	Results              []*StyleResult
	DiscardedLiquidation int
	DroppedUnresolved    int
	CoreCount            int
	BestsellerCount      int
	FashionCount         int
	// SubstitutedDefaults names the parameter fields whose submitted
	// values were out of range and replaced with built-in defaults
	// before classification; recorded into the run's result payload.
	SubstitutedDefaults []string
}

// Algorithm runs the seven-stage NOOS pipeline over Store.
type Algorithm struct {
	store  Store
	logger *logging.Logger
}

// NewAlgorithm constructs an Algorithm scoped to store.
func NewAlgorithm(store Store, logger *logging.Logger) *Algorithm {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Algorithm{store: store, logger: logger.WithComponent("noos")}
}

// Run executes stages 1–6 and returns the classified results,
// cancellation-checked at every stage boundary. It does not persist
// results — stage 7 is Persist, which callers call with a transaction
// once satisfied.
func (a *Algorithm) Run(ctx context.Context, params *postgres.AlgorithmParameters, runID string, progress ProgressFunc, cancelled CancelFunc) (*Summary, error) {
	p, substituted := substituteDefaults(params)
	if len(substituted) > 0 {
		a.logger.WithField("fields", substituted).Warnf("out-of-range parameters replaced with defaults")
	}

	// Stage 1 — Load & filter.
	sales, err := a.loadSales(ctx, p)
	if err != nil {
		return nil, tasks.NewError(tasks.KindInternal, "failed to load sales", err)
	}
	if len(sales) == 0 {
		return nil, tasks.NewError(tasks.KindValidation, ErrNoData, nil)
	}
	progress(10, "loaded sales")
	if cancelled() {
		return nil, tasks.NewError(tasks.KindCancelled, "cancelled after load", nil)
	}

	// Stage 2 — Liquidation cleanup.
	survivors, discarded := cleanupLiquidation(sales, p.LiquidationThreshold)
	a.logger.WithField("discarded", discarded).Infof("liquidation cleanup complete")
	progress(25, "cleaned liquidation noise")
	if cancelled() {
		return nil, tasks.NewError(tasks.KindCancelled, "cancelled after cleanup", nil)
	}

	// Stage 3 — Join.
	styles, err := a.store.ListStyles(ctx)
	if err != nil {
		return nil, tasks.NewError(tasks.KindInternal, "failed to list styles", err)
	}
	skus, err := a.store.ListSKUs(ctx)
	if err != nil {
		return nil, tasks.NewError(tasks.KindInternal, "failed to list skus", err)
	}
	styleByCode := make(map[string]*postgres.Style, len(styles))
	for _, s := range styles {
		styleByCode[s.StyleCode] = s
	}
	styleBySKU := make(map[string]*postgres.Style, len(skus))
	for _, sk := range skus {
		if s, ok := styleByCode[sk.StyleCode]; ok {
			styleBySKU[sk.SKU] = s
		}
	}

	joined, unresolved := joinToStyle(survivors, styleBySKU)
	progress(40, "joined sales to styles")
	if cancelled() {
		return nil, tasks.NewError(tasks.KindCancelled, "cancelled after join", nil)
	}

	// Stage 4 — Per-style aggregation.
	daysAvailable := windowDays(p, sales)
	aggs := aggregate(joined, daysAvailable)
	progress(65, "aggregated per-style metrics")
	if cancelled() {
		return nil, tasks.NewError(tasks.KindCancelled, "cancelled after aggregate", nil)
	}

	// Stage 5 — Category benchmarks.
	benchmarks := categoryBenchmarks(aggs)
	progress(80, "computed category benchmarks")
	if cancelled() {
		return nil, tasks.NewError(tasks.KindCancelled, "cancelled after benchmark", nil)
	}

	// Stage 6 — Classification.
	results := classify(aggs, benchmarks, p, daysAvailable)
	sort.Slice(results, func(i, j int) bool { return results[i].StyleCode < results[j].StyleCode })
	progress(92, "classified styles")
	if cancelled() {
		return nil, tasks.NewError(tasks.KindCancelled, "cancelled after classify", nil)
	}

	summary := &Summary{
		Results:              results,
		DiscardedLiquidation: discarded,
		DroppedUnresolved:    unresolved,
		SubstitutedDefaults:  substituted,
	}
	for _, r := range results {
		switch r.Type {
		case ClassCore:
			summary.CoreCount++
		case ClassBestseller:
			summary.BestsellerCount++
		default:
			summary.FashionCount++
		}
	}
	return summary, nil
}

// Persist deletes prior results and inserts the new set inside tx (stage
// 7). Callers commit or roll back tx themselves.
func (a *Algorithm) Persist(ctx context.Context, tx postgres.Transaction, runID string, summary *Summary) error {
	if err := tx.DeleteAllNoosResults(ctx); err != nil {
		return fmt.Errorf("failed to clear prior noos results: %w", err)
	}
	now := time.Now()
	for _, r := range summary.Results {
		rec := &postgres.NoosResult{
			AlgorithmRunID:       runID,
			StyleCode:            r.StyleCode,
			Category:             r.Category,
			Type:                 string(r.Type),
			StyleROS:             r.StyleROS,
			StyleRevContribution: r.StyleRevContribution,
			TotalQuantitySold:    r.TotalQuantitySold,
			TotalRevenue:         r.TotalRevenue,
			DaysAvailable:        r.DaysAvailable,
			DaysWithSales:        r.DaysWithSales,
			AvgDiscount:          r.AvgDiscount,
			CalculatedDate:       now,
		}
		if err := tx.InsertNoosResult(ctx, rec); err != nil {
			return fmt.Errorf("failed to insert noos result for %s: %w", r.StyleCode, err)
		}
	}
	return nil
}

func (a *Algorithm) loadSales(ctx context.Context, p *postgres.AlgorithmParameters) ([]*postgres.SalesRecord, error) {
	if p.AnalysisStartDate == nil || p.AnalysisEndDate == nil {
		return a.store.AllSales(ctx)
	}
	return a.store.SalesInDateRange(ctx, *p.AnalysisStartDate, *p.AnalysisEndDate)
}
