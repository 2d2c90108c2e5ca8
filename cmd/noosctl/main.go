// Command noosctl is a small local-operator CLI: it drives the Ingestion
// Pipeline, NOOS Algorithm, and Parameter-Set Manager synchronously and
// directly against the configured database, without going through
// cmd/noos-server's HTTP surface. Useful for scripted ingestion/runs on
// the same host as the database, or for recovering from a wedged server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/retaildata/noosengine/pkg/common/config"
	"github.com/retaildata/noosengine/pkg/ingestion"
	"github.com/retaildata/noosengine/pkg/noos"
	"github.com/retaildata/noosengine/pkg/params"
	"github.com/retaildata/noosengine/pkg/storage/postgres"
)

// exit codes: 0 success, 2 invalid arguments, 3 internal
// error at startup (or during the requested operation).
const (
	exitSuccess = 0
	exitUsage   = 2
	exitError   = 3
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitUsage)
	}

	configPath := flag.String("config", "", "Path to configuration file (JSON)")
	cmd := os.Args[1]
	flag.CommandLine.Parse(os.Args[2:])

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(exitError)
	}

	ctx := context.Background()
	db, err := postgres.NewDatabase(ctx, &postgres.Config{
		ConnectionString: cfg.Database.ConnectionString,
		MaxConnections:   cfg.Database.MaxConnections,
		ConnectTimeout:   cfg.Database.ConnectTimeout,
		MigrationsPath:   cfg.Database.MigrationsPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		os.Exit(exitError)
	}
	defer db.Close()

	var runErr error
	switch cmd {
	case "upload":
		runErr = runUpload(ctx, db, cfg, flag.Args())
	case "download":
		runErr = runDownload(ctx, db, cfg, flag.Args())
	case "run":
		runErr = runCompute(ctx, db, flag.Args())
	case "params-show":
		runErr = runParamsShow(ctx, db, flag.Args())
	case "params-create":
		runErr = runParamsCreate(ctx, db, flag.Args())
	case "params-activate":
		runErr = runParamsActivate(ctx, db, flag.Args())
	case "clear-all":
		runErr = runClearAll(ctx, db)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
		os.Exit(exitUsage)
	}

	if runErr != nil {
		if _, ok := runErr.(usageError); ok {
			fmt.Fprintf(os.Stderr, "%v\n", runErr)
			os.Exit(exitUsage)
		}
		fmt.Fprintf(os.Stderr, "%v\n", runErr)
		os.Exit(exitError)
	}
}

type usageError string

func (e usageError) Error() string { return string(e) }

func usage() {
	fmt.Fprintln(os.Stderr, `usage: noosctl <command> [-config path] [args]

commands:
  upload <kind> <file.tsv>       ingest a styles/stores/skus/sales file synchronously
  download <kind> <out.tsv>      render current data for a kind back out as TSV
  run [parameterSetName]         run the NOOS classification algorithm
  params-show [name]             print the active or named parameter set
  params-create <name>           create and activate a set from the active set's values
  params-activate <name>         activate an existing named set
  clear-all                      wipe every master/transactional/result table`)
}

func runUpload(ctx context.Context, db *postgres.Database, cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return usageError("upload requires <kind> <file.tsv>")
	}
	kind := ingestion.FileKind(args[0])
	data, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[1], err)
	}

	pipeline := ingestion.NewPipeline(db, ingestion.Config{ChunkSize: cfg.Ingestion.ChunkSize})
	result, err := pipeline.Run(ctx, kind, data, func(pct float64, msg string) {
		fmt.Fprintf(os.Stderr, "%.0f%% %s\n", pct, msg)
	}, func() bool { return false })
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	if !result.Success {
		fmt.Printf("rejected: %d row error(s)\n", result.ErrorCount)
		for _, e := range result.Errors {
			fmt.Println(e)
		}
		return usageError("upload rejected")
	}
	fmt.Printf("persisted %d record(s), skipped %d\n", result.RecordCount, result.SkippedCount)
	return nil
}

func runDownload(ctx context.Context, db *postgres.Database, cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return usageError("download requires <kind> <out.tsv>")
	}
	kind := args[0]
	outPath := args[1]

	tsv, count, err := renderTSVFromStore(ctx, db, kind)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", kind, err)
	}
	if err := os.WriteFile(outPath, tsv, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	fmt.Printf("wrote %d row(s) to %s\n", count, outPath)
	return nil
}

func runCompute(ctx context.Context, db *postgres.Database, args []string) error {
	mgr := params.NewManager(db, nil)
	var active *postgres.AlgorithmParameters
	var err error
	if len(args) == 1 {
		active, err = mgr.GetByName(ctx, args[0])
	} else {
		active, err = mgr.GetActive(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve parameter set: %w", err)
	}

	algorithm := noos.NewAlgorithm(db, nil)
	runID := fmt.Sprintf("cli-%d", time.Now().UnixNano())
	summary, err := algorithm.Run(ctx, active, runID, func(pct float64, msg string) {
		fmt.Fprintf(os.Stderr, "%.0f%% %s\n", pct, msg)
	}, func() bool { return false })
	if err != nil {
		return fmt.Errorf("noos run failed: %w", err)
	}

	tx, err := db.BeginTransaction(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin persistence transaction: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := algorithm.Persist(ctx, tx, runID, summary); err != nil {
		return fmt.Errorf("failed to persist results: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}

	fmt.Printf("core=%d bestseller=%d fashion=%d discarded=%d dropped=%d\n",
		summary.CoreCount, summary.BestsellerCount, summary.FashionCount,
		summary.DiscardedLiquidation, summary.DroppedUnresolved)
	if len(summary.SubstitutedDefaults) > 0 {
		fmt.Printf("defaults substituted for: %s\n", strings.Join(summary.SubstitutedDefaults, ", "))
	}
	return nil
}

func runParamsShow(ctx context.Context, db *postgres.Database, args []string) error {
	mgr := params.NewManager(db, nil)
	var p *postgres.AlgorithmParameters
	var err error
	if len(args) == 1 {
		p, err = mgr.GetByName(ctx, args[0])
	} else {
		p, err = mgr.GetActive(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to load parameter set: %w", err)
	}
	return printJSON(p)
}

func runParamsCreate(ctx context.Context, db *postgres.Database, args []string) error {
	if len(args) != 1 {
		return usageError("params-create requires <name>")
	}
	mgr := params.NewManager(db, nil)
	active, err := mgr.GetActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active parameter set: %w", err)
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
	p, err := mgr.Create(ctx, args[0], fields)
	if err != nil {
		return fmt.Errorf("failed to create parameter set: %w", err)
	}
	return printJSON(p)
}

func runParamsActivate(ctx context.Context, db *postgres.Database, args []string) error {
	if len(args) != 1 {
		return usageError("params-activate requires <name>")
	}
	mgr := params.NewManager(db, nil)
	p, err := mgr.Activate(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to activate parameter set: %w", err)
	}
	return printJSON(p)
}

func runClearAll(ctx context.Context, db *postgres.Database) error {
	tx, err := db.BeginTransaction(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := tx.ClearSales(ctx); err != nil {
		return err
	}
	if err := tx.ClearSKUs(ctx); err != nil {
		return err
	}
	if err := tx.ClearStyles(ctx); err != nil {
		return err
	}
	if err := tx.ClearStores(ctx); err != nil {
		return err
	}
	if err := tx.DeleteAllNoosResults(ctx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit clear-all: %w", err)
	}
	fmt.Println("all data cleared")
	return nil
}

// renderTSVFromStore builds the TSV body for one file kind directly from
// the Storage Adapter, in the same column order the Ingestion Pipeline
// expects on re-upload (mirrors cmd/noos-server's renderTSV).
func renderTSVFromStore(ctx context.Context, db *postgres.Database, kind string) ([]byte, int, error) {
	var b strings.Builder
	switch ingestion.FileKind(kind) {
	case ingestion.KindStyles:
		b.WriteString("style\tbrand\tcategory\tsub_category\tmrp\tgender\n")
		rows, err := db.ListStyles(ctx)
		if err != nil {
			return nil, 0, err
		}
		for _, r := range rows {
			fmt.Fprintf(&b, "%s\t%s\t%s\t%s\t%g\t%s\n", r.StyleCode, r.Brand, r.Category, r.SubCategory, r.MRP, r.Gender)
		}
		return []byte(b.String()), len(rows), nil

	case ingestion.KindStores:
		b.WriteString("branch\tcity\n")
		rows, err := db.ListStores(ctx)
		if err != nil {
			return nil, 0, err
		}
		for _, r := range rows {
			fmt.Fprintf(&b, "%s\t%s\n", r.Branch, r.City)
		}
		return []byte(b.String()), len(rows), nil

	case ingestion.KindSKUs:
		b.WriteString("sku\tstyle\tsize\n")
		rows, err := db.ListSKUs(ctx)
		if err != nil {
			return nil, 0, err
		}
		for _, r := range rows {
			fmt.Fprintf(&b, "%s\t%s\t%s\n", r.SKU, r.StyleCode, r.Size)
		}
		return []byte(b.String()), len(rows), nil

	case ingestion.KindSales:
		b.WriteString("day\tsku\tchannel\tquantity\tdiscount\trevenue\n")
		rows, err := db.AllSales(ctx)
		if err != nil {
			return nil, 0, err
		}
		for _, r := range rows {
			fmt.Fprintf(&b, "%s\t%s\t%s\t%d\t%g\t%g\n", r.SaleDate.Format("2006-01-02"), r.SKU, r.StoreCode, r.Quantity, r.Discount, r.Revenue)
		}
		return []byte(b.String()), len(rows), nil

	default:
		return nil, 0, fmt.Errorf("unknown file kind %s", kind)
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
