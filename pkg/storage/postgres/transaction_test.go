package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTransaction_MasterDataAndSales(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	container, connStr := setupTestContainer(t, ctx)
	defer container.Terminate(ctx)

	db, err := setupTestDatabase(ctx, connStr)
	require.NoError(t, err)
	defer db.Close()
	defer clearTestData(ctx, db)

	tx, err := db.BeginTransaction(ctx)
	require.NoError(t, err)

	require.NoError(t, tx.ClearStyles(ctx))
	require.NoError(t, tx.InsertStyle(ctx, &Style{
		StyleCode: "STY-001", Brand: "Acme", Category: "Apparel", SubCategory: "Tees",
		MRP: 999.00, Gender: "M",
	}))

	require.NoError(t, tx.ClearStores(ctx))
	require.NoError(t, tx.InsertStore(ctx, &Store{Branch: "STR-001", City: "Mumbai"}))

	require.NoError(t, tx.ClearSKUs(ctx))
	require.NoError(t, tx.InsertSKU(ctx, &SKU{SKU: "SKU-001", StyleCode: "STY-001", Size: "M"}))

	require.NoError(t, tx.ClearSales(ctx))
	require.NoError(t, tx.InsertSalesRecord(ctx, &SalesRecord{
		SaleDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		SKU: "SKU-001", StoreCode: "STR-001", Quantity: 5, Revenue: 4995.00, Discount: 0,
	}))

	require.NoError(t, tx.Commit(ctx))

	style, err := db.GetStyle(ctx, "STY-001")
	require.NoError(t, err)
	require.Equal(t, "Acme", style.Brand)

	exists, err := db.SKUExists(ctx, "SKU-001")
	require.NoError(t, err)
	require.True(t, exists)

	count, err := db.CountSalesRecords(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestTransaction_DependentSalesClearedBeforeSKUReload(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	container, connStr := setupTestContainer(t, ctx)
	defer container.Terminate(ctx)

	db, err := setupTestDatabase(ctx, connStr)
	require.NoError(t, err)
	defer db.Close()
	defer clearTestData(ctx, db)

	seedTx, err := db.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, seedTx.InsertStyle(ctx, &Style{StyleCode: "STY-002", Brand: "Acme", Category: "Apparel", MRP: 500, Gender: "F"}))
	require.NoError(t, seedTx.InsertStore(ctx, &Store{Branch: "STR-002", City: "Delhi"}))
	require.NoError(t, seedTx.InsertSKU(ctx, &SKU{SKU: "SKU-002", StyleCode: "STY-002", Size: "L"}))
	require.NoError(t, seedTx.InsertSalesRecord(ctx, &SalesRecord{SaleDate: time.Now(), SKU: "SKU-002", StoreCode: "STR-002", Quantity: 1, Revenue: 500}))
	require.NoError(t, seedTx.Commit(ctx))

	// Reloading SKU master data must clear the whole Sales table first —
	// there is no selective per-SKU clear.
	reloadTx, err := db.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, reloadTx.ClearSales(ctx))
	require.NoError(t, reloadTx.Commit(ctx))

	count, err := db.CountSalesRecords(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestTransaction_ParameterSetActivationSwap(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	container, connStr := setupTestContainer(t, ctx)
	defer container.Terminate(ctx)

	db, err := setupTestDatabase(ctx, connStr)
	require.NoError(t, err)
	defer db.Close()
	defer clearTestData(ctx, db)

	first := &AlgorithmParameters{
		Name: "default", IsActive: true,
		LiquidationThreshold: 0.3, BestsellerMultiplier: 1.2,
		MinVolumeThreshold: 100, ConsistencyThreshold: 0.6,
		CoreDurationMonths: 6, BestsellerDurationDays: 60,
	}
	tx1, err := db.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, tx1.InsertParameterSet(ctx, first))
	require.NoError(t, tx1.Commit(ctx))

	second := &AlgorithmParameters{
		Name: "revised", IsActive: false,
		LiquidationThreshold: 0.35, BestsellerMultiplier: 1.1,
		MinVolumeThreshold: 120, ConsistencyThreshold: 0.55,
		CoreDurationMonths: 5, BestsellerDurationDays: 45,
	}
	tx2, err := db.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, tx2.DeactivateActiveParameterSet(ctx))
	require.NoError(t, tx2.InsertParameterSet(ctx, second))
	require.NoError(t, tx2.ActivateParameterSet(ctx, second.ID))
	require.NoError(t, tx2.Commit(ctx))

	active, err := db.GetActiveParameterSet(ctx)
	require.NoError(t, err)
	require.Equal(t, "revised", active.Name)

	all, err := db.ListRecentParameterSets(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
