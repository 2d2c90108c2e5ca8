// Package params implements the Parameter-Set Manager: a versioned store
// of named NOOS algorithm configurations with a global active-one
// invariant enforced transactionally at the storage layer.
package params

import (
	"context"
	"fmt"
	"time"

	"github.com/retaildata/noosengine/pkg/common/logging"
	"github.com/retaildata/noosengine/pkg/storage/postgres"
	"github.com/retaildata/noosengine/pkg/tasks"
)

// Defaults are the built-in parameter values seeded when no active set
// exists yet.
var Defaults = Fields{
	LiquidationThreshold:   0.25,
	BestsellerMultiplier:   1.20,
	MinVolumeThreshold:     25.0,
	ConsistencyThreshold:   0.75,
	CoreDurationMonths:     6,
	BestsellerDurationDays: 90,
}

// Fields is the mutable, user-settable content of a parameter set,
// excluding identity and activity flags.
type Fields struct {
	LiquidationThreshold   float64
	BestsellerMultiplier   float64
	MinVolumeThreshold     float64
	ConsistencyThreshold   float64
	AnalysisStartDate      *time.Time
	AnalysisEndDate        *time.Time
	CoreDurationMonths     int
	BestsellerDurationDays int
}

// Store is the narrow subset of the Storage Adapter the Parameter-Set
// Manager depends on. WithRetry re-runs a transactional function on
// transient lock conflicts; the activity-touching swaps below go
// through it because two concurrent swaps contend on the same active
// row and the loser's retry will succeed against the committed state.
type Store interface {
	GetActiveParameterSet(ctx context.Context) (*postgres.AlgorithmParameters, error)
	GetParameterSetByName(ctx context.Context, name string) (*postgres.AlgorithmParameters, error)
	ParameterSetNameExists(ctx context.Context, name string) (bool, error)
	ListRecentParameterSets(ctx context.Context, limit int) ([]*postgres.AlgorithmParameters, error)
	BeginTransaction(ctx context.Context) (postgres.Transaction, error)
	WithRetry(ctx context.Context, fn func(context.Context) error) error
}

// Manager provides the parameter-set operations over Store: active-set
// resolution with default seeding, named fetch/update, create-and-activate,
// and the atomic activation swap.
type Manager struct {
	store  Store
	logger *logging.Logger
}

// NewManager constructs a Parameter-Set Manager scoped to store.
func NewManager(store Store, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Manager{store: store, logger: logger.WithComponent("params")}
}

// GetActive returns the unique active set, seeding the built-in defaults
// under the name "default" if none exists yet.
func (m *Manager) GetActive(ctx context.Context) (*postgres.AlgorithmParameters, error) {
	active, err := m.store.GetActiveParameterSet(ctx)
	if err == nil {
		return active, nil
	}

	m.logger.Infof("no active parameter set found, seeding defaults")
	seeded, createErr := m.Create(ctx, "default", Defaults)
	if createErr != nil {
		return nil, tasks.NewError(tasks.KindInternal, "failed to seed default parameter set", createErr)
	}
	return seeded, nil
}

// GetByName fetches a named parameter set.
func (m *Manager) GetByName(ctx context.Context, name string) (*postgres.AlgorithmParameters, error) {
	p, err := m.store.GetParameterSetByName(ctx, name)
	if err != nil {
		return nil, tasks.NewError(tasks.KindNotFound, fmt.Sprintf("parameter set %q not found", name), err)
	}
	return p, nil
}

// ListRecent returns up to limit sets, active-first then most-recently-updated.
func (m *Manager) ListRecent(ctx context.Context, limit int) ([]*postgres.AlgorithmParameters, error) {
	if limit <= 0 {
		limit = 10
	}
	return m.store.ListRecentParameterSets(ctx, limit)
}

// Create persists a new parameter set and activates it, deactivating
// whatever was previously active in the same transaction. Fails CONFLICT
// if name is already taken.
func (m *Manager) Create(ctx context.Context, name string, fields Fields) (*postgres.AlgorithmParameters, error) {
	if err := validateFields(fields); err != nil {
		return nil, err
	}
	exists, err := m.store.ParameterSetNameExists(ctx, name)
	if err != nil {
		return nil, tasks.NewError(tasks.KindInternal, "failed to check parameter set name", err)
	}
	if exists {
		return nil, tasks.NewError(tasks.KindConflict, fmt.Sprintf("parameter set %q already exists", name), nil)
	}

	p := fieldsToEntity(name, fields)
	p.IsActive = true

	err = m.store.WithRetry(ctx, func(ctx context.Context) error {
		tx, err := m.store.BeginTransaction(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := tx.DeactivateActiveParameterSet(ctx); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to deactivate active parameter set: %w", err)
		}
		if err := tx.InsertParameterSet(ctx, p); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to insert parameter set: %w", err)
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, tasks.NewError(tasks.KindInternal, "failed to create parameter set", err)
	}

	m.logger.WithField("name", name).Infof("created and activated parameter set")
	return m.store.GetParameterSetByName(ctx, name)
}

// UpdateActive in-place updates the currently active set's fields without
// touching activity.
func (m *Manager) UpdateActive(ctx context.Context, fields Fields) (*postgres.AlgorithmParameters, error) {
	active, err := m.store.GetActiveParameterSet(ctx)
	if err != nil {
		return nil, tasks.NewError(tasks.KindNotFound, "no active parameter set", err)
	}
	return m.updateFields(ctx, active, fields)
}

// UpdateByName updates a named, possibly-inactive set without toggling
// activity.
func (m *Manager) UpdateByName(ctx context.Context, name string, fields Fields) (*postgres.AlgorithmParameters, error) {
	p, err := m.store.GetParameterSetByName(ctx, name)
	if err != nil {
		return nil, tasks.NewError(tasks.KindNotFound, fmt.Sprintf("parameter set %q not found", name), err)
	}
	return m.updateFields(ctx, p, fields)
}

func (m *Manager) updateFields(ctx context.Context, p *postgres.AlgorithmParameters, fields Fields) (*postgres.AlgorithmParameters, error) {
	if err := validateFields(fields); err != nil {
		return nil, err
	}
	applyFields(p, fields)

	tx, err := m.store.BeginTransaction(ctx)
	if err != nil {
		return nil, tasks.NewError(tasks.KindInternal, "failed to begin transaction", err)
	}
	if err := tx.UpdateParameterSet(ctx, p); err != nil {
		_ = tx.Rollback(ctx)
		return nil, tasks.NewError(tasks.KindInternal, "failed to update parameter set", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, tasks.NewError(tasks.KindInternal, "failed to commit parameter set update", err)
	}
	return m.store.GetParameterSetByName(ctx, p.Name)
}

// Activate atomically deactivates whichever set is currently active and
// activates name. Fails NOT_FOUND if name is missing.
func (m *Manager) Activate(ctx context.Context, name string) (*postgres.AlgorithmParameters, error) {
	target, err := m.store.GetParameterSetByName(ctx, name)
	if err != nil {
		return nil, tasks.NewError(tasks.KindNotFound, fmt.Sprintf("parameter set %q not found", name), err)
	}

	err = m.store.WithRetry(ctx, func(ctx context.Context) error {
		tx, err := m.store.BeginTransaction(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := tx.DeactivateActiveParameterSet(ctx); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to deactivate active parameter set: %w", err)
		}
		if err := tx.ActivateParameterSet(ctx, target.ID); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to activate parameter set: %w", err)
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, tasks.NewError(tasks.KindInternal, "failed to commit activation swap", err)
	}

	m.logger.WithField("name", name).Infof("activated parameter set")
	return m.store.GetParameterSetByName(ctx, name)
}

// validateFields rejects the one combination the algorithm cannot
// correct for itself: an analysis window whose start is not strictly
// before its end. Out-of-range numeric values are accepted here and
// substituted with defaults at run time instead.
func validateFields(f Fields) error {
	if f.AnalysisStartDate != nil && f.AnalysisEndDate != nil && !f.AnalysisStartDate.Before(*f.AnalysisEndDate) {
		return tasks.NewError(tasks.KindValidation, "analysis start date must be before end date", nil)
	}
	return nil
}

func fieldsToEntity(name string, f Fields) *postgres.AlgorithmParameters {
	p := &postgres.AlgorithmParameters{
		Name:                   name,
		LiquidationThreshold:   f.LiquidationThreshold,
		BestsellerMultiplier:   f.BestsellerMultiplier,
		MinVolumeThreshold:     f.MinVolumeThreshold,
		ConsistencyThreshold:   f.ConsistencyThreshold,
		CoreDurationMonths:     f.CoreDurationMonths,
		BestsellerDurationDays: f.BestsellerDurationDays,
	}
	p.AnalysisStartDate = f.AnalysisStartDate
	p.AnalysisEndDate = f.AnalysisEndDate
	return p
}

func applyFields(p *postgres.AlgorithmParameters, f Fields) {
	p.LiquidationThreshold = f.LiquidationThreshold
	p.BestsellerMultiplier = f.BestsellerMultiplier
	p.MinVolumeThreshold = f.MinVolumeThreshold
	p.ConsistencyThreshold = f.ConsistencyThreshold
	p.CoreDurationMonths = f.CoreDurationMonths
	p.BestsellerDurationDays = f.BestsellerDurationDays
	p.AnalysisStartDate = f.AnalysisStartDate
	p.AnalysisEndDate = f.AnalysisEndDate
}
