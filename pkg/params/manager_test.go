package params

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retaildata/noosengine/pkg/storage/postgres"
	"github.com/retaildata/noosengine/pkg/tasks"
)

// fakeStore keeps parameter sets in memory and hands out transactions
// that stage writes until Commit, mirroring the storage layer's
// all-or-nothing discipline closely enough to exercise the manager's
// invariant handling.
type fakeStore struct {
	nextID int64
	sets   map[int64]*postgres.AlgorithmParameters
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, sets: map[int64]*postgres.AlgorithmParameters{}}
}

func (s *fakeStore) GetActiveParameterSet(ctx context.Context) (*postgres.AlgorithmParameters, error) {
	for _, p := range s.sets {
		if p.IsActive {
			copied := *p
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("no active parameter set")
}

func (s *fakeStore) GetParameterSetByName(ctx context.Context, name string) (*postgres.AlgorithmParameters, error) {
	for _, p := range s.sets {
		if p.Name == name {
			copied := *p
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("parameter set %q not found", name)
}

func (s *fakeStore) ParameterSetNameExists(ctx context.Context, name string) (bool, error) {
	_, err := s.GetParameterSetByName(ctx, name)
	return err == nil, nil
}

func (s *fakeStore) ListRecentParameterSets(ctx context.Context, limit int) ([]*postgres.AlgorithmParameters, error) {
	all := make([]*postgres.AlgorithmParameters, 0, len(s.sets))
	for _, p := range s.sets {
		copied := *p
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].IsActive != all[j].IsActive {
			return all[i].IsActive
		}
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *fakeStore) BeginTransaction(ctx context.Context) (postgres.Transaction, error) {
	return &fakeTx{store: s}, nil
}

func (s *fakeStore) WithRetry(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (s *fakeStore) activeCount() int {
	n := 0
	for _, p := range s.sets {
		if p.IsActive {
			n++
		}
	}
	return n
}

// fakeTx stages mutations and applies them on Commit.
type fakeTx struct {
	store *fakeStore
	ops   []func()
	done  bool
}

func (t *fakeTx) DeactivateActiveParameterSet(ctx context.Context) error {
	t.ops = append(t.ops, func() {
		for _, p := range t.store.sets {
			p.IsActive = false
		}
	})
	return nil
}

func (t *fakeTx) InsertParameterSet(ctx context.Context, p *postgres.AlgorithmParameters) error {
	id := t.store.nextID
	t.store.nextID++
	p.ID = id
	copied := *p
	t.ops = append(t.ops, func() {
		copied.CreatedAt = time.Now()
		copied.UpdatedAt = copied.CreatedAt
		t.store.sets[id] = &copied
	})
	return nil
}

func (t *fakeTx) UpdateParameterSet(ctx context.Context, p *postgres.AlgorithmParameters) error {
	if _, ok := t.store.sets[p.ID]; !ok {
		return fmt.Errorf("parameter set %d not found", p.ID)
	}
	copied := *p
	t.ops = append(t.ops, func() {
		existing := t.store.sets[copied.ID]
		active := existing.IsActive
		copied.IsActive = active
		copied.UpdatedAt = time.Now()
		t.store.sets[copied.ID] = &copied
	})
	return nil
}

func (t *fakeTx) ActivateParameterSet(ctx context.Context, id int64) error {
	if _, ok := t.store.sets[id]; !ok {
		return fmt.Errorf("parameter set %d not found", id)
	}
	t.ops = append(t.ops, func() {
		t.store.sets[id].IsActive = true
	})
	return nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("transaction closed")
	}
	for _, op := range t.ops {
		op()
	}
	t.done = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}

// Unused Transaction methods, present to satisfy the interface.
func (t *fakeTx) ClearStyles(ctx context.Context) error                          { return nil }
func (t *fakeTx) InsertStyle(ctx context.Context, s *postgres.Style) error       { return nil }
func (t *fakeTx) ClearStores(ctx context.Context) error                          { return nil }
func (t *fakeTx) InsertStore(ctx context.Context, s *postgres.Store) error       { return nil }
func (t *fakeTx) ClearSKUs(ctx context.Context) error                            { return nil }
func (t *fakeTx) InsertSKU(ctx context.Context, s *postgres.SKU) error           { return nil }
func (t *fakeTx) ClearSales(ctx context.Context) error                           { return nil }
func (t *fakeTx) InsertSalesRecord(ctx context.Context, r *postgres.SalesRecord) error { return nil }
func (t *fakeTx) DeleteAllNoosResults(ctx context.Context) error                 { return nil }
func (t *fakeTx) InsertNoosResult(ctx context.Context, r *postgres.NoosResult) error { return nil }

func TestGetActiveSeedsDefaults(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, nil)

	active, err := m.GetActive(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "default", active.Name)
	assert.True(t, active.IsActive)
	assert.Equal(t, Defaults.LiquidationThreshold, active.LiquidationThreshold)
	assert.Equal(t, Defaults.BestsellerMultiplier, active.BestsellerMultiplier)
	assert.Equal(t, 1, store.activeCount())
}

func TestCreateSwapsActive(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, nil)

	_, err := m.Create(context.Background(), "first", Defaults)
	require.NoError(t, err)
	second, err := m.Create(context.Background(), "second", Defaults)
	require.NoError(t, err)

	assert.True(t, second.IsActive)
	assert.Equal(t, 1, store.activeCount(), "exactly one set active after every create")

	first, err := m.GetByName(context.Background(), "first")
	require.NoError(t, err)
	assert.False(t, first.IsActive)
}

func TestCreateDuplicateNameConflicts(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, nil)

	_, err := m.Create(context.Background(), "seasonal", Defaults)
	require.NoError(t, err)

	_, err = m.Create(context.Background(), "seasonal", Defaults)
	assert.Equal(t, tasks.KindConflict, tasks.KindOf(err))
	assert.Equal(t, 1, store.activeCount())
}

func TestActivateSwap(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, nil)

	_, err := m.Create(context.Background(), "a", Defaults)
	require.NoError(t, err)
	_, err = m.Create(context.Background(), "b", Defaults)
	require.NoError(t, err)

	activated, err := m.Activate(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, activated.IsActive)
	assert.Equal(t, 1, store.activeCount())

	_, err = m.Activate(context.Background(), "missing")
	assert.Equal(t, tasks.KindNotFound, tasks.KindOf(err))
}

func TestUpdateByNamePreservesActivity(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, nil)

	_, err := m.Create(context.Background(), "inactive", Defaults)
	require.NoError(t, err)
	_, err = m.Create(context.Background(), "active", Defaults)
	require.NoError(t, err)

	fields := Defaults
	fields.MinVolumeThreshold = 50
	updated, err := m.UpdateByName(context.Background(), "inactive", fields)
	require.NoError(t, err)

	assert.Equal(t, 50.0, updated.MinVolumeThreshold)
	assert.False(t, updated.IsActive, "updateByName must not toggle activity")
	assert.Equal(t, 1, store.activeCount())
}

func TestUpdateActive(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, nil)

	_, err := m.Create(context.Background(), "only", Defaults)
	require.NoError(t, err)

	fields := Defaults
	fields.ConsistencyThreshold = 0.9
	updated, err := m.UpdateActive(context.Background(), fields)
	require.NoError(t, err)
	assert.Equal(t, 0.9, updated.ConsistencyThreshold)
	assert.True(t, updated.IsActive)
}

func TestInvalidAnalysisWindowRejected(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, nil)

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fields := Defaults
	fields.AnalysisStartDate = &start
	fields.AnalysisEndDate = &end

	_, err := m.Create(context.Background(), "backwards", fields)
	assert.Equal(t, tasks.KindValidation, tasks.KindOf(err))
}

func TestListRecentActiveFirst(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, nil)

	for _, name := range []string{"one", "two", "three"} {
		_, err := m.Create(context.Background(), name, Defaults)
		require.NoError(t, err)
	}

	recent, err := m.ListRecent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, recent[0].IsActive)
	assert.Equal(t, "three", recent[0].Name)
}
