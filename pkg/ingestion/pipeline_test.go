package ingestion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retaildata/noosengine/pkg/storage/postgres"
)

// fakeTransaction is an in-memory stand-in for postgres.Transaction, used
// so the pipeline's clear/insert/commit sequencing can be exercised
// without a real database.
type fakeTransaction struct {
	styles []*postgres.Style
	stores []*postgres.Store
	skus   []*postgres.SKU
	sales  []*postgres.SalesRecord

	cleared   []string
	committed bool
}

func (f *fakeTransaction) ClearStyles(ctx context.Context) error { f.cleared = append(f.cleared, "styles"); f.styles = nil; return nil }
func (f *fakeTransaction) InsertStyle(ctx context.Context, s *postgres.Style) error {
	f.styles = append(f.styles, s)
	return nil
}
func (f *fakeTransaction) ClearStores(ctx context.Context) error { f.cleared = append(f.cleared, "stores"); f.stores = nil; return nil }
func (f *fakeTransaction) InsertStore(ctx context.Context, s *postgres.Store) error {
	f.stores = append(f.stores, s)
	return nil
}
func (f *fakeTransaction) ClearSKUs(ctx context.Context) error { f.cleared = append(f.cleared, "skus"); f.skus = nil; return nil }
func (f *fakeTransaction) InsertSKU(ctx context.Context, s *postgres.SKU) error {
	f.skus = append(f.skus, s)
	return nil
}
func (f *fakeTransaction) ClearSales(ctx context.Context) error { f.cleared = append(f.cleared, "sales"); f.sales = nil; return nil }
func (f *fakeTransaction) InsertSalesRecord(ctx context.Context, r *postgres.SalesRecord) error {
	f.sales = append(f.sales, r)
	return nil
}
func (f *fakeTransaction) DeactivateActiveParameterSet(ctx context.Context) error { return nil }
func (f *fakeTransaction) InsertParameterSet(ctx context.Context, p *postgres.AlgorithmParameters) error {
	return nil
}
func (f *fakeTransaction) UpdateParameterSet(ctx context.Context, p *postgres.AlgorithmParameters) error {
	return nil
}
func (f *fakeTransaction) ActivateParameterSet(ctx context.Context, id int64) error { return nil }
func (f *fakeTransaction) DeleteAllNoosResults(ctx context.Context) error           { return nil }
func (f *fakeTransaction) InsertNoosResult(ctx context.Context, r *postgres.NoosResult) error {
	return nil
}
func (f *fakeTransaction) Commit(ctx context.Context) error   { f.committed = true; return nil }
func (f *fakeTransaction) Rollback(ctx context.Context) error { return nil }

// fakeStore is an in-memory stand-in for the Storage Adapter, tracking
// which style/store/sku natural keys exist for the pipeline's FK checks.
type fakeStore struct {
	styles map[string]bool
	stores map[string]bool
	skus   map[string]bool
	tx     *fakeTransaction
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		styles: map[string]bool{},
		stores: map[string]bool{},
		skus:   map[string]bool{},
		tx:     &fakeTransaction{},
	}
}

func (f *fakeStore) StyleExists(ctx context.Context, styleCode string) (bool, error) {
	return f.styles[styleCode], nil
}
func (f *fakeStore) StoreExists(ctx context.Context, branch string) (bool, error) {
	return f.stores[branch], nil
}
func (f *fakeStore) SKUExists(ctx context.Context, sku string) (bool, error) {
	return f.skus[sku], nil
}
func (f *fakeStore) BeginTransaction(ctx context.Context) (postgres.Transaction, error) {
	return f.tx, nil
}

func noopProgress(pct float64, msg string) {}
func notCancelled() bool                  { return false }

func TestPipeline_StylesHappyPath(t *testing.T) {
	store := newFakeStore()
	p := NewPipeline(store, Config{ChunkSize: 1000})

	data := []byte("style\tbrand\tcategory\tsub_category\tmrp\tgender\nSHIRT001\tNIKE\tSHIRTS\tCASUAL\t100.50\tM\n")
	result, err := p.Run(context.Background(), KindStyles, data, noopProgress, notCancelled)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 1, result.RecordCount)
	require.Equal(t, 0, result.ErrorCount)
	require.Len(t, store.tx.styles, 1)
	require.Equal(t, "SHIRT001", store.tx.styles[0].StyleCode)
	require.True(t, store.tx.committed)
}

func TestPipeline_MasterAllOrNothingRejectsWholeBatch(t *testing.T) {
	store := newFakeStore()
	p := NewPipeline(store, Config{ChunkSize: 1000})

	data := []byte("style\tbrand\tcategory\tsub_category\tmrp\tgender\n" +
		"SHIRT001\tNIKE\tSHIRTS\tCASUAL\t100.50\tM\n" +
		"SHIRT002\t\tSHIRTS\tCASUAL\t100.50\tM\n")
	result, err := p.Run(context.Background(), KindStyles, data, noopProgress, notCancelled)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, 1, result.ErrorCount)
	require.Contains(t, result.Errors[0], "Row 3: empty:brand")
	require.False(t, store.tx.committed)
}

func TestPipeline_SKURequiresExistingStyle(t *testing.T) {
	store := newFakeStore()
	p := NewPipeline(store, Config{ChunkSize: 1000})

	data := []byte("sku\tstyle\tsize\nSKU001\tMISSING\tM\n")
	result, err := p.Run(context.Background(), KindSKUs, data, noopProgress, notCancelled)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, 1, result.ErrorCount)
	require.Contains(t, result.Errors[0], "dependency:style:MISSING")
}

func TestPipeline_SalesSkipsMissingSKUWithoutFailingBatch(t *testing.T) {
	store := newFakeStore()
	store.stores["MUMBAI_CENTRAL"] = true
	store.stores["DELHI_CP"] = true
	store.skus["SKU001"] = true
	p := NewPipeline(store, Config{ChunkSize: 1000})

	data := []byte("day\tsku\tchannel\tquantity\tdiscount\trevenue\n" +
		"2024-01-15\tSKU001\tMUMBAI_CENTRAL\t5\t10.00\t450.00\n" +
		"2024-01-16\tMISSING_SKU\tDELHI_CP\t3\t5.50\t280.50\n")
	result, err := p.Run(context.Background(), KindSales, data, noopProgress, notCancelled)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 1, result.RecordCount)
	require.Equal(t, 1, result.SkippedCount)
	require.Equal(t, 0, result.ErrorCount)
	require.Len(t, result.Warnings, 1)
	require.Contains(t, result.Warnings[0], "MISSING_SKU")
}

func TestPipeline_SalesAllSkippedLeavesTableUntouched(t *testing.T) {
	store := newFakeStore()
	// Neither the SKU nor the store exists; the unknown SKU must win and
	// skip the row rather than fail the batch on the missing store.
	p := NewPipeline(store, Config{ChunkSize: 1000})

	data := []byte("day\tsku\tchannel\tquantity\tdiscount\trevenue\n" +
		"2024-01-16\tMISSING_SKU\tDELHI_CP\t3\t5.50\t280.50\n")
	result, err := p.Run(context.Background(), KindSales, data, noopProgress, notCancelled)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 0, result.RecordCount)
	require.Equal(t, 1, result.SkippedCount)
	require.Equal(t, 0, result.ErrorCount)
	require.Contains(t, result.Warnings[0], "MISSING_SKU")
	require.Empty(t, store.tx.cleared, "no clear may run when there is nothing to insert")
	require.False(t, store.tx.committed)
}

func TestPipeline_SalesHardErrorOnUnknownStore(t *testing.T) {
	store := newFakeStore()
	store.skus["SKU001"] = true
	p := NewPipeline(store, Config{ChunkSize: 1000})

	data := []byte("day\tsku\tchannel\tquantity\tdiscount\trevenue\n2024-01-15\tSKU001\tUNKNOWN_STORE\t5\t10.00\t450.00\n")
	result, err := p.Run(context.Background(), KindSales, data, noopProgress, notCancelled)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, 1, result.ErrorCount)
}

func TestPipeline_ClearsDependentsInOrderForStylesUpload(t *testing.T) {
	store := newFakeStore()
	p := NewPipeline(store, Config{ChunkSize: 1000})

	data := []byte("style\tbrand\tcategory\tsub_category\tmrp\tgender\nSHIRT001\tNIKE\tSHIRTS\tCASUAL\t100.50\tM\n")
	_, err := p.Run(context.Background(), KindStyles, data, noopProgress, notCancelled)
	require.NoError(t, err)
	require.Equal(t, []string{"sales", "skus", "styles"}, store.tx.cleared)
}

func TestBuildArtifacts_ProducesValidationAndSummary(t *testing.T) {
	result := &Result{}
	result.addError(RowError{Line: 3, Reason: "empty:brand"})
	result.addError(RowError{Line: 5, Reason: "empty:brand"})
	result.addWarning("Row 4: skipped, unknown sku MISSING_SKU")

	a := BuildArtifacts(result)
	require.Contains(t, string(a.ValidationErrors), "empty:brand")
	require.Contains(t, string(a.SkippedRows), "MISSING_SKU")
	require.Contains(t, string(a.ErrorSummary), "empty\t2")
}
