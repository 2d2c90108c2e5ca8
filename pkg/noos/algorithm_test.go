package noos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retaildata/noosengine/pkg/storage/postgres"
)

type fakeStore struct {
	sales  []*postgres.SalesRecord
	styles []*postgres.Style
	skus   []*postgres.SKU
	tx     *fakeTx
}

func (f *fakeStore) AllSales(ctx context.Context) ([]*postgres.SalesRecord, error) { return f.sales, nil }
func (f *fakeStore) SalesInDateRange(ctx context.Context, from, to time.Time) ([]*postgres.SalesRecord, error) {
	var out []*postgres.SalesRecord
	for _, s := range f.sales {
		if !s.SaleDate.Before(from) && !s.SaleDate.After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *fakeStore) ListStyles(ctx context.Context) ([]*postgres.Style, error) { return f.styles, nil }
func (f *fakeStore) ListSKUs(ctx context.Context) ([]*postgres.SKU, error)     { return f.skus, nil }
func (f *fakeStore) BeginTransaction(ctx context.Context) (postgres.Transaction, error) {
	return f.tx, nil
}

type fakeTx struct {
	deleted bool
	results []*postgres.NoosResult
}

func (t *fakeTx) ClearStyles(ctx context.Context) error                                      { return nil }
func (t *fakeTx) InsertStyle(ctx context.Context, s *postgres.Style) error                    { return nil }
func (t *fakeTx) ClearStores(ctx context.Context) error                                       { return nil }
func (t *fakeTx) InsertStore(ctx context.Context, s *postgres.Store) error                    { return nil }
func (t *fakeTx) ClearSKUs(ctx context.Context) error                                         { return nil }
func (t *fakeTx) InsertSKU(ctx context.Context, s *postgres.SKU) error                        { return nil }
func (t *fakeTx) ClearSales(ctx context.Context) error                                        { return nil }
func (t *fakeTx) InsertSalesRecord(ctx context.Context, r *postgres.SalesRecord) error        { return nil }
func (t *fakeTx) DeactivateActiveParameterSet(ctx context.Context) error                      { return nil }
func (t *fakeTx) InsertParameterSet(ctx context.Context, p *postgres.AlgorithmParameters) error { return nil }
func (t *fakeTx) UpdateParameterSet(ctx context.Context, p *postgres.AlgorithmParameters) error { return nil }
func (t *fakeTx) ActivateParameterSet(ctx context.Context, id int64) error                    { return nil }
func (t *fakeTx) DeleteAllNoosResults(ctx context.Context) error                              { t.deleted = true; return nil }
func (t *fakeTx) InsertNoosResult(ctx context.Context, r *postgres.NoosResult) error {
	t.results = append(t.results, r)
	return nil
}
func (t *fakeTx) Commit(ctx context.Context) error   { return nil }
func (t *fakeTx) Rollback(ctx context.Context) error { return nil }

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func noopProgress(pct float64, msg string) {}
func notCancelled() bool                  { return false }

func baseParams() *postgres.AlgorithmParameters {
	start := day("2024-01-01")
	end := day("2024-01-31")
	return &postgres.AlgorithmParameters{
		Name: "default", IsActive: true,
		LiquidationThreshold: 0.25, BestsellerMultiplier: 1.20,
		MinVolumeThreshold: 1, ConsistencyThreshold: 0.1,
		AnalysisStartDate: &start, AnalysisEndDate: &end,
		CoreDurationMonths: 6, BestsellerDurationDays: 90,
	}
}

func TestAlgorithm_NoDataFailsRun(t *testing.T) {
	store := &fakeStore{tx: &fakeTx{}}
	alg := NewAlgorithm(store, nil)
	_, err := alg.Run(context.Background(), baseParams(), "run-1", noopProgress, notCancelled)
	require.Error(t, err)
	require.Contains(t, err.Error(), ErrNoData)
}

func TestAlgorithm_ForcedFashionWithHighThresholds(t *testing.T) {
	store := &fakeStore{
		tx:     &fakeTx{},
		styles: []*postgres.Style{{StyleCode: "STY-A", Category: "Apparel", MRP: 1000}, {StyleCode: "STY-B", Category: "Apparel", MRP: 1000}},
		skus:   []*postgres.SKU{{SKU: "SKU-A", StyleCode: "STY-A"}, {SKU: "SKU-B", StyleCode: "STY-B"}},
		sales: []*postgres.SalesRecord{
			{SaleDate: day("2024-01-05"), SKU: "SKU-A", StoreCode: "STR-1", Quantity: 10, Revenue: 1000, Discount: 0},
			{SaleDate: day("2024-01-15"), SKU: "SKU-B", StoreCode: "STR-1", Quantity: 8, Revenue: 800, Discount: 0},
		},
	}
	p := baseParams()
	p.BestsellerMultiplier = 3.0
	p.ConsistencyThreshold = 0.95
	p.MinVolumeThreshold = 100

	alg := NewAlgorithm(store, nil)
	summary, err := alg.Run(context.Background(), p, "run-1", noopProgress, notCancelled)
	require.NoError(t, err)
	require.Len(t, summary.Results, 2)
	for _, r := range summary.Results {
		require.Equal(t, ClassFashion, r.Type)
	}
}

func TestAlgorithm_PersistDeletesThenInserts(t *testing.T) {
	tx := &fakeTx{}
	alg := NewAlgorithm(&fakeStore{tx: tx}, nil)
	summary := &Summary{Results: []*StyleResult{{StyleCode: "STY-A", Category: "Apparel", Type: ClassCore}}}

	require.NoError(t, alg.Persist(context.Background(), tx, "run-2", summary))
	require.True(t, tx.deleted)
	require.Len(t, tx.results, 1)
	require.Equal(t, "run-2", tx.results[0].AlgorithmRunID)
}

func TestCleanupLiquidation_ZeroThresholdDisablesCleanup(t *testing.T) {
	sales := []*postgres.SalesRecord{{Discount: 500, Revenue: 100}}
	survivors, discarded := cleanupLiquidation(sales, 0)
	require.Len(t, survivors, 1)
	require.Equal(t, 0, discarded)
}

func TestCleanupLiquidation_DiscardsHighDiscountRate(t *testing.T) {
	sales := []*postgres.SalesRecord{
		{Discount: 90, Revenue: 10},  // rate 0.9 > 0.25, discarded
		{Discount: 10, Revenue: 90},  // rate 0.1 <= 0.25, kept
	}
	survivors, discarded := cleanupLiquidation(sales, 0.25)
	require.Len(t, survivors, 1)
	require.Equal(t, 1, discarded)
}

func classificationFixture() *fakeStore {
	return &fakeStore{
		tx: &fakeTx{},
		styles: []*postgres.Style{
			{StyleCode: "STY-CORE", Category: "APPAREL", MRP: 1000},
			{StyleCode: "STY-BEST", Category: "APPAREL", MRP: 1000},
			{StyleCode: "STY-FASH", Category: "APPAREL", MRP: 1000},
		},
		skus: []*postgres.SKU{
			{SKU: "SKU-C", StyleCode: "STY-CORE"},
			{SKU: "SKU-B", StyleCode: "STY-BEST"},
			{SKU: "SKU-F", StyleCode: "STY-FASH"},
		},
		sales: []*postgres.SalesRecord{
			// STY-CORE sells on each of the first four days: consistent,
			// high volume, zero discount.
			{SaleDate: day("2024-01-01"), SKU: "SKU-C", Quantity: 2, Revenue: 200},
			{SaleDate: day("2024-01-02"), SKU: "SKU-C", Quantity: 2, Revenue: 200},
			{SaleDate: day("2024-01-03"), SKU: "SKU-C", Quantity: 2, Revenue: 200},
			{SaleDate: day("2024-01-04"), SKU: "SKU-C", Quantity: 2, Revenue: 200},
			// STY-BEST sells rarely but in bulk: high ROS, low consistency.
			{SaleDate: day("2024-01-10"), SKU: "SKU-B", Quantity: 40, Revenue: 4000},
			// STY-FASH barely sells.
			{SaleDate: day("2024-01-20"), SKU: "SKU-F", Quantity: 1, Revenue: 100},
		},
	}
}

func classificationParams() *postgres.AlgorithmParameters {
	p := baseParams()
	start, end := day("2024-01-01"), day("2024-01-04")
	p.AnalysisStartDate = &start
	p.AnalysisEndDate = &end
	p.ConsistencyThreshold = 0.9
	p.MinVolumeThreshold = 5
	p.BestsellerMultiplier = 1.2
	return p
}

func TestAlgorithm_AssignsEachLabelOnce(t *testing.T) {
	store := classificationFixture()
	// Widen the window to cover every sale; STY-CORE stays consistent
	// only in a 4-day window, so use that and drop the other styles'
	// sales into it too.
	store.sales = []*postgres.SalesRecord{
		{SaleDate: day("2024-01-01"), SKU: "SKU-C", Quantity: 2, Revenue: 200},
		{SaleDate: day("2024-01-02"), SKU: "SKU-C", Quantity: 2, Revenue: 200},
		{SaleDate: day("2024-01-03"), SKU: "SKU-C", Quantity: 2, Revenue: 200},
		{SaleDate: day("2024-01-04"), SKU: "SKU-C", Quantity: 2, Revenue: 200},
		{SaleDate: day("2024-01-02"), SKU: "SKU-B", Quantity: 40, Revenue: 4000},
		{SaleDate: day("2024-01-03"), SKU: "SKU-F", Quantity: 1, Revenue: 100},
	}

	alg := NewAlgorithm(store, nil)
	summary, err := alg.Run(context.Background(), classificationParams(), "run-1", noopProgress, notCancelled)
	require.NoError(t, err)
	require.Len(t, summary.Results, 3)

	byCode := map[string]Classification{}
	for _, r := range summary.Results {
		byCode[r.StyleCode] = r.Type
	}
	require.Equal(t, ClassCore, byCode["STY-CORE"], "consistent low-discount volume seller")
	require.Equal(t, ClassBestseller, byCode["STY-BEST"], "high ROS without consistency")
	require.Equal(t, ClassFashion, byCode["STY-FASH"], "neither consistent nor high ROS")
	require.Equal(t, 1, summary.CoreCount)
	require.Equal(t, 1, summary.BestsellerCount)
	require.Equal(t, 1, summary.FashionCount)
}

func TestAlgorithm_DeterministicOrderingByStyleCode(t *testing.T) {
	run := func() []*StyleResult {
		store := classificationFixture()
		alg := NewAlgorithm(store, nil)
		summary, err := alg.Run(context.Background(), baseParams(), "run-1", noopProgress, notCancelled)
		require.NoError(t, err)
		return summary.Results
	}

	first, second := run(), run()
	require.Equal(t, len(first), len(second))
	for i := range first {
		require.Equal(t, first[i].StyleCode, second[i].StyleCode)
		require.Equal(t, first[i].Type, second[i].Type)
		require.Equal(t, first[i].StyleROS, second[i].StyleROS)
	}
	for i := 1; i < len(first); i++ {
		require.Less(t, first[i-1].StyleCode, first[i].StyleCode, "results sorted by style code")
	}
}

func TestAlgorithm_RevenueContributionSumsTo100PerCategory(t *testing.T) {
	store := classificationFixture()
	alg := NewAlgorithm(store, nil)
	summary, err := alg.Run(context.Background(), baseParams(), "run-1", noopProgress, notCancelled)
	require.NoError(t, err)

	total := 0.0
	for _, r := range summary.Results {
		total += r.StyleRevContribution
	}
	require.InDelta(t, 100.0, total, 1e-9)
}

func TestAlgorithm_DropsUnresolvedSKUsWithWarningCount(t *testing.T) {
	store := classificationFixture()
	store.sales = append(store.sales, &postgres.SalesRecord{
		SaleDate: day("2024-01-05"), SKU: "SKU-GONE", Quantity: 3, Revenue: 300,
	})

	alg := NewAlgorithm(store, nil)
	summary, err := alg.Run(context.Background(), baseParams(), "run-1", noopProgress, notCancelled)
	require.NoError(t, err)
	require.Equal(t, 1, summary.DroppedUnresolved)
}

func TestSubstituteDefaults_ReplacesOutOfRangeValues(t *testing.T) {
	p := &postgres.AlgorithmParameters{
		LiquidationThreshold: -1, BestsellerMultiplier: 0.5,
		MinVolumeThreshold: -5, ConsistencyThreshold: 2.0,
		CoreDurationMonths: 0, BestsellerDurationDays: 1000,
	}
	out, substituted := substituteDefaults(p)
	require.Equal(t, 0.25, out.LiquidationThreshold)
	require.Equal(t, 1.20, out.BestsellerMultiplier)
	require.Equal(t, 25.0, out.MinVolumeThreshold)
	require.Equal(t, 0.75, out.ConsistencyThreshold)
	require.Equal(t, 6, out.CoreDurationMonths)
	require.Equal(t, 90, out.BestsellerDurationDays)
	require.ElementsMatch(t, []string{
		"liquidationThreshold", "bestsellerMultiplier", "minVolumeThreshold",
		"consistencyThreshold", "coreDurationMonths", "bestsellerDurationDays",
	}, substituted)
}

func TestSubstituteDefaults_InRangeValuesUntouched(t *testing.T) {
	out, substituted := substituteDefaults(baseParams())
	require.Empty(t, substituted)
	require.Equal(t, baseParams().LiquidationThreshold, out.LiquidationThreshold)
}
