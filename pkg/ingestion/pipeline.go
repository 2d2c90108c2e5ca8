package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/retaildata/noosengine/pkg/storage/postgres"
)

// FileKind names one of the four TSV file types the pipeline accepts.
type FileKind string

const (
	KindStyles FileKind = "styles"
	KindStores FileKind = "stores"
	KindSKUs   FileKind = "skus"
	KindSales  FileKind = "sales"
)

// expectedHeaders gives each file kind's fixed column order.
var expectedHeaders = map[FileKind][]string{
	KindStyles: {"style", "brand", "category", "sub_category", "mrp", "gender"},
	KindStores: {"branch", "city"},
	KindSKUs:   {"sku", "style", "size"},
	KindSales:  {"day", "sku", "channel", "quantity", "discount", "revenue"},
}

// ProgressFunc reports pipeline progress back to the owning Task.
type ProgressFunc func(pct float64, message string)

// CancelFunc reports whether the owning Task's cancellation has been
// requested; the pipeline checks it between chunks and at stage
// boundaries, never mid-row.
type CancelFunc func() bool

// Cancelled is returned by Run when CancelFunc observes a cancellation
// request; callers map this to tasks.KindCancelled.
var Cancelled = fmt.Errorf("ingestion cancelled")

// Store is the subset of the Storage Adapter the pipeline needs: FK
// existence checks and the transactional clear-and-load scope. Declaring
// it narrowly here (rather than depending on *postgres.Database directly)
// keeps the pipeline's dependency on Storage to exactly the calls it uses.
type Store interface {
	StyleExists(ctx context.Context, styleCode string) (bool, error)
	StoreExists(ctx context.Context, branch string) (bool, error)
	SKUExists(ctx context.Context, sku string) (bool, error)
	BeginTransaction(ctx context.Context) (postgres.Transaction, error)
}

// Config sizes the pipeline's chunking, normally from
// common/config.IngestionConfig.ChunkSize. The row ceiling is the fixed
// maxRows constant in tsv.go; IngestionConfig.MaxRows does not reach it.
type Config struct {
	ChunkSize int
}

// Pipeline is the Ingestion Pipeline: it turns a TSV payload for one file
// kind into validated, persisted rows, producing the upload response
// contract and the row-level error artifacts.
type Pipeline struct {
	store  Store
	config Config
}

// NewPipeline constructs a Pipeline bound to a Storage Adapter.
func NewPipeline(store Store, config Config) *Pipeline {
	if config.ChunkSize <= 0 {
		config.ChunkSize = 1000
	}
	return &Pipeline{store: store, config: config}
}

// clearPlan gives the dependency-ordered clear sequence for each kind:
// uploading a kind clears every entity that
// transitively depends on it before that kind's own table, innermost
// dependency first.
var clearPlan = map[FileKind][]string{
	KindStyles: {"sales", "skus", "styles"},
	KindStores: {"sales", "stores"},
	KindSKUs:   {"sales", "skus"},
	KindSales:  {"sales"},
}

// Run executes one upload end to end: parse, validate, detect intra-batch
// duplicates, clear dependents, and persist in chunks, publishing progress
// at fixed checkpoints (10% parse/validate, 85% load, 5%
// commit/finalize).
func (p *Pipeline) Run(ctx context.Context, kind FileKind, data []byte, progress ProgressFunc, cancelled CancelFunc) (*Result, error) {
	result := &Result{Success: true}
	progress(0, fmt.Sprintf("parsing %s", kind))

	header := expectedHeaders[kind]
	rows, err := ParseTSV(detectBOM(data), header)
	if err != nil {
		return result.fail(), fmt.Errorf("parse: %w", err)
	}

	entities, skipped, validateErr := p.validateAndBuild(ctx, kind, rows, result)
	if validateErr != nil {
		return result.fail(), validateErr
	}
	result.SkippedCount = skipped
	progress(10, "validated rows")

	if cancelled() {
		return result.fail(), Cancelled
	}

	// Any hard row error rejects the whole batch before anything is
	// cleared or written. For sales this excludes unknown-SKU rows,
	// which were already diverted to skipped/warnings above; everything
	// else (bad date, bad number, empty field, missing store) is as
	// fatal for sales as it is for master data.
	if result.ErrorCount > 0 {
		result.addMessage(fmt.Sprintf("rejected: %d row error(s)", result.ErrorCount))
		return result.fail(), nil
	}

	// A batch with nothing to insert (e.g. a sales file whose every row
	// was skipped for an unknown SKU) must leave the existing tables
	// untouched: clearing only happens on the way to loading a
	// replacement.
	if len(entities) == 0 {
		result.SkippedCount = skipped
		progress(100, "nothing to load")
		result.addMessage("no rows to persist; existing data left unchanged")
		return result, nil
	}

	tx, err := p.store.BeginTransaction(ctx)
	if err != nil {
		return result.fail(), fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := clearDependents(ctx, tx, kind); err != nil {
		return result.fail(), fmt.Errorf("clear dependents: %w", err)
	}

	total := len(entities)
	chunk := p.config.ChunkSize
	for i := 0; i < total; i += chunk {
		if cancelled() {
			return result.fail(), Cancelled
		}
		end := i + chunk
		if end > total {
			end = total
		}
		for _, e := range entities[i:end] {
			if err := insertEntity(ctx, tx, kind, e); err != nil {
				return result.fail(), fmt.Errorf("insert row: %w", err)
			}
		}
		pct := 10 + (float64(end)/float64(max(total, 1)))*85
		progress(pct, fmt.Sprintf("loaded %d/%d rows", end, total))
	}

	if err := tx.Commit(ctx); err != nil {
		return result.fail(), fmt.Errorf("commit: %w", err)
	}

	result.RecordCount = total
	result.SkippedCount = skipped
	progress(100, "ingestion complete")
	result.addMessage(fmt.Sprintf("persisted %d record(s)", total))
	return result, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clearDependents(ctx context.Context, tx postgres.Transaction, kind FileKind) error {
	for _, entity := range clearPlan[kind] {
		var err error
		switch entity {
		case "sales":
			err = tx.ClearSales(ctx)
		case "skus":
			err = tx.ClearSKUs(ctx)
		case "styles":
			err = tx.ClearStyles(ctx)
		case "stores":
			err = tx.ClearStores(ctx)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func insertEntity(ctx context.Context, tx postgres.Transaction, kind FileKind, e interface{}) error {
	switch kind {
	case KindStyles:
		return tx.InsertStyle(ctx, e.(*postgres.Style))
	case KindStores:
		return tx.InsertStore(ctx, e.(*postgres.Store))
	case KindSKUs:
		return tx.InsertSKU(ctx, e.(*postgres.SKU))
	case KindSales:
		return tx.InsertSalesRecord(ctx, e.(*postgres.SalesRecord))
	}
	return fmt.Errorf("unknown file kind %s", kind)
}

// validateAndBuild runs per-row validation, normalization, FK checks, and
// intra-batch duplicate detection, returning the entities ready to
// persist. Sales rows with an unknown SKU are skipped rather than
// rejected; every other problem is a hard row error.
func (p *Pipeline) validateAndBuild(ctx context.Context, kind FileKind, rows []Row, result *Result) ([]interface{}, int, error) {
	dup := newDuplicateDetector(len(rows))
	entities := make([]interface{}, 0, len(rows))
	skipped := 0

	for i, row := range rows {
		line := i + 2 // 1-indexed, plus the header line
		if len(row) == 0 {
			result.addError(RowError{Line: line, Reason: "malformed:field_count"})
			continue
		}

		switch kind {
		case KindStyles:
			e, rerr := buildStyle(row)
			if rerr != "" {
				result.addError(RowError{Line: line, Reason: rerr})
				continue
			}
			if dup.seenBefore("style:" + e.StyleCode) {
				result.addError(RowError{Line: line, Reason: "duplicate:style"})
				continue
			}
			entities = append(entities, e)

		case KindStores:
			e, rerr := buildStore(row)
			if rerr != "" {
				result.addError(RowError{Line: line, Reason: rerr})
				continue
			}
			if dup.seenBefore("branch:" + e.Branch) {
				result.addError(RowError{Line: line, Reason: "duplicate:branch"})
				continue
			}
			entities = append(entities, e)

		case KindSKUs:
			e, rerr := buildSKU(row)
			if rerr != "" {
				result.addError(RowError{Line: line, Reason: rerr})
				continue
			}
			if dup.seenBefore("sku:" + e.SKU) {
				result.addError(RowError{Line: line, Reason: "duplicate:sku"})
				continue
			}
			exists, err := p.store.StyleExists(ctx, e.StyleCode)
			if err != nil {
				return nil, 0, fmt.Errorf("style lookup: %w", err)
			}
			if !exists {
				result.addError(RowError{Line: line, Reason: fmt.Sprintf("dependency:style:%s", e.StyleCode)})
				continue
			}
			entities = append(entities, e)

		case KindSales:
			e, rerr := buildSales(row)
			if rerr != "" {
				result.addError(RowError{Line: line, Reason: rerr})
				continue
			}
			// Unknown SKU is a skip, not an error, and takes precedence:
			// a skipped row must not fail the batch on its other lookups.
			skuExists, err := p.store.SKUExists(ctx, e.SKU)
			if err != nil {
				return nil, 0, fmt.Errorf("sku lookup: %w", err)
			}
			if !skuExists {
				skipped++
				result.addWarning(fmt.Sprintf("Row %d: skipped, unknown sku %s", line, e.SKU))
				continue
			}
			storeExists, err := p.store.StoreExists(ctx, e.StoreCode)
			if err != nil {
				return nil, 0, fmt.Errorf("store lookup: %w", err)
			}
			if !storeExists {
				result.addError(RowError{Line: line, Reason: fmt.Sprintf("dependency:store:%s", e.StoreCode)})
				continue
			}
			key := fmt.Sprintf("sale:%s:%s:%s", e.SaleDate.Format("2006-01-02"), e.SKU, e.StoreCode)
			if dup.seenBefore(key) {
				result.addError(RowError{Line: line, Reason: "duplicate:sale"})
				continue
			}
			entities = append(entities, e)
		}
	}

	return entities, skipped, nil
}

func buildStyle(row Row) (*postgres.Style, string) {
	styleCode, rerr := requireField(row, "style")
	if rerr != "" {
		return nil, rerr
	}
	if rerr := validateLength("style", styleCode, fieldBounds{1, 50}); rerr != "" {
		return nil, rerr
	}
	brand, rerr := requireField(row, "brand")
	if rerr != "" {
		return nil, rerr
	}
	if rerr := validateLength("brand", brand, fieldBounds{1, 50}); rerr != "" {
		return nil, rerr
	}
	category, rerr := requireField(row, "category")
	if rerr != "" {
		return nil, rerr
	}
	if rerr := validateLength("category", category, fieldBounds{1, 50}); rerr != "" {
		return nil, rerr
	}
	subCategory, rerr := requireField(row, "sub_category")
	if rerr != "" {
		return nil, rerr
	}
	if rerr := validateLength("sub_category", subCategory, fieldBounds{1, 50}); rerr != "" {
		return nil, rerr
	}
	mrpStr, rerr := requireField(row, "mrp")
	if rerr != "" {
		return nil, rerr
	}
	mrp, rerr := parseDecimal("mrp", mrpStr)
	if rerr != "" {
		return nil, rerr
	}
	if mrp <= 0 {
		return nil, "range:mrp"
	}
	gender, rerr := requireField(row, "gender")
	if rerr != "" {
		return nil, rerr
	}
	if rerr := validateLength("gender", gender, fieldBounds{1, 10}); rerr != "" {
		return nil, rerr
	}

	return &postgres.Style{
		StyleCode:   upper(styleCode),
		Brand:       upper(brand),
		Category:    upper(category),
		SubCategory: upper(subCategory),
		MRP:         mrp,
		Gender:      upper(gender),
	}, ""
}

func buildStore(row Row) (*postgres.Store, string) {
	branch, rerr := requireField(row, "branch")
	if rerr != "" {
		return nil, rerr
	}
	if rerr := validateLength("branch", branch, fieldBounds{1, 50}); rerr != "" {
		return nil, rerr
	}
	city, rerr := requireField(row, "city")
	if rerr != "" {
		return nil, rerr
	}
	if rerr := validateLength("city", city, fieldBounds{1, 50}); rerr != "" {
		return nil, rerr
	}
	return &postgres.Store{Branch: upper(branch), City: upper(city)}, ""
}

func buildSKU(row Row) (*postgres.SKU, string) {
	sku, rerr := requireField(row, "sku")
	if rerr != "" {
		return nil, rerr
	}
	if rerr := validateLength("sku", sku, fieldBounds{1, 50}); rerr != "" {
		return nil, rerr
	}
	styleCode, rerr := requireField(row, "style")
	if rerr != "" {
		return nil, rerr
	}
	if rerr := validateLength("style", styleCode, fieldBounds{1, 50}); rerr != "" {
		return nil, rerr
	}
	size, rerr := requireField(row, "size")
	if rerr != "" {
		return nil, rerr
	}
	if rerr := validateLength("size", size, fieldBounds{1, 10}); rerr != "" {
		return nil, rerr
	}
	return &postgres.SKU{SKU: upper(sku), StyleCode: upper(styleCode), Size: upper(size)}, ""
}

func buildSales(row Row) (*postgres.SalesRecord, string) {
	dayStr, rerr := requireField(row, "day")
	if rerr != "" {
		return nil, rerr
	}
	day, rerr := parseStrictDate("day", dayStr)
	if rerr != "" {
		return nil, rerr
	}
	sku, rerr := requireField(row, "sku")
	if rerr != "" {
		return nil, rerr
	}
	channel, rerr := requireField(row, "channel")
	if rerr != "" {
		return nil, rerr
	}
	qtyStr, rerr := requireField(row, "quantity")
	if rerr != "" {
		return nil, rerr
	}
	qty, rerr := parseInteger("quantity", qtyStr)
	if rerr != "" {
		return nil, rerr
	}
	if qty <= 0 {
		return nil, "range:quantity"
	}
	discStr, rerr := requireField(row, "discount")
	if rerr != "" {
		return nil, rerr
	}
	discount, rerr := parseDecimal("discount", discStr)
	if rerr != "" {
		return nil, rerr
	}
	if discount < 0 {
		return nil, "range:discount"
	}
	revStr, rerr := requireField(row, "revenue")
	if rerr != "" {
		return nil, rerr
	}
	revenue, rerr := parseDecimal("revenue", revStr)
	if rerr != "" {
		return nil, rerr
	}
	if revenue < 0 {
		return nil, "range:revenue"
	}

	return &postgres.SalesRecord{
		SaleDate:  day,
		SKU:       upper(sku),
		StoreCode: upper(channel),
		Quantity:  qty,
		Discount:  discount,
		Revenue:   revenue,
	}, ""
}

// FileNameFor returns original when it is set, otherwise the conventional
// upload filename for kind ("<kind>.tsv" in lower case).
func FileNameFor(kind FileKind, original string) string {
	if original != "" {
		return original
	}
	return strings.ToLower(string(kind)) + ".tsv"
}
