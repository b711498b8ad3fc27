package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/podaac/concise/internal/apperr"
	"github.com/podaac/concise/internal/config"
	"github.com/podaac/concise/internal/finalize"
	"github.com/podaac/concise/internal/history"
	"github.com/podaac/concise/internal/merge"
	"github.com/podaac/concise/internal/netcdf"
	"github.com/podaac/concise/internal/preprocess"
	"github.com/podaac/concise/internal/registry"
	"github.com/podaac/concise/internal/telemetry"
)

var (
	cores             int
	registryDSN       string
	otelEnabled       bool
	memoryBudgetBytes int64
)

// mergeCmd implements spec.md §6's CLI surface exactly: positional
// data_dir/output_path, -v/--verbose (a persistent flag on rootCmd),
// and -c/--cores, plus the ambient --registry-dsn/--otel/
// --memory-budget-bytes flags SPEC_FULL.md §E adds.
var mergeCmd = &cobra.Command{
	Use:   "merge <data_dir> <output_path>",
	Short: "Merge every granule under data_dir into a single output file",
	Args:  cobra.ExactArgs(2),
	RunE:  runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().IntVarP(&cores, "cores", "c", runtime.NumCPU(), "Override the number of workers used during merge; N <= 0 is rejected")
	mergeCmd.Flags().StringVar(&registryDSN, "registry-dsn", "", "SQLite DSN for the merge-run audit registry; empty disables it")
	mergeCmd.Flags().BoolVar(&otelEnabled, "otel", false, "Enable OpenTelemetry tracing for this run")
	mergeCmd.Flags().Int64Var(&memoryBudgetBytes, "memory-budget-bytes", 0, "Override the shared-memory budget; <= 0 falls back to SHARED_MEMORY_SIZE/default")
}

func runMerge(cmd *cobra.Command, args []string) error {
	dataDir, outputPath := args[0], args[1]
	log := GetLogger()
	ctx := cmd.Context()

	if cores <= 0 {
		return apperr.ErrInvalidInput.WithMessage("cores must be > 0, got %d", cores)
	}

	if otelEnabled {
		shutdown, err := telemetry.Init(ctx)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer shutdown(context.Background())
	}

	ledger, err := openLedger()
	if err != nil {
		return err
	}

	inputPaths, err := listInputs(dataDir)
	if err != nil {
		return apperr.ErrInvalidInput.WithCause(err)
	}

	runID, err := ledger.Begin(ctx, dataDir, outputPath, cores, len(inputPaths))
	if err != nil {
		log.Warn("failed to record merge run start: %v", err)
	}

	log.Info("starting merge: inputs=%d workers=%d", len(inputPaths), cores)

	result, err := preprocess.Run(ctx, inputPaths, cores)
	if err != nil {
		ledger.Finish(ctx, runID, 0, err)
		return err
	}

	basenames := make([]string, len(result.Retained))
	for i, p := range result.Retained {
		basenames[i] = filepath.Base(p)
	}

	entry := history.BuildEntry(time.Now().UTC().Format("2006-01-02T15:04:05.000Z"), basenames, Version, inputPaths)
	finalized, err := finalize.Build(result.Schema, entry)
	if err != nil {
		ledger.Finish(ctx, runID, len(result.Retained), err)
		return err
	}

	out, err := netcdf.InitOutput(outputPath, result.Schema, basenames, finalized)
	if err != nil {
		ledger.Finish(ctx, runID, len(result.Retained), err)
		return err
	}

	mergeCfg := merge.Config{Workers: cores, BudgetBytes: memoryBudgetBytes, Logger: log}
	if err := merge.Run(ctx, result.Schema, result.Retained, out, mergeCfg); err != nil {
		out.Close()
		ledger.Finish(ctx, runID, len(result.Retained), err)
		return err
	}
	if err := out.Close(); err != nil {
		ledger.Finish(ctx, runID, len(result.Retained), err)
		return err
	}

	ledger.Finish(ctx, runID, len(result.Retained), nil)
	log.Info("merge complete: retained=%d output=%s", len(result.Retained), outputPath)
	return nil
}

// listInputs lists dataDir's children (its files, not its subdirectories)
// in sorted order, matching original_source's Path(data_dir).iterdir().
func listInputs(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("read data dir %s: %w", dataDir, err)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dataDir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// openLedger opens the audit registry named by --registry-dsn, or wraps a
// nil *gorm.DB (every Ledger method becomes a no-op) when it's unset.
func openLedger() (*registry.Ledger, error) {
	if registryDSN == "" {
		return registry.NewLedger(nil), nil
	}
	db, err := registry.Open(config.RegistryConfig{Enabled: true, Type: "sqlite", DSN: registryDSN, MaxConns: 10})
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	return registry.NewLedger(db), nil
}
