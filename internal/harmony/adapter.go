package harmony

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/podaac/concise/internal/finalize"
	"github.com/podaac/concise/internal/history"
	"github.com/podaac/concise/internal/logx"
	"github.com/podaac/concise/internal/merge"
	"github.com/podaac/concise/internal/netcdf"
	"github.com/podaac/concise/internal/preprocess"
	"github.com/podaac/concise/internal/storage"
	"github.com/podaac/concise/pkg/utils"
)

// Adapter drives one end-to-end merge on behalf of a caller holding an
// input catalog: download, preprocess, initialize, merge, finalize,
// stage, and report - the full pipeline spec.md §6 asks an external
// collaborator to wire up itself.
type Adapter struct {
	Workers     int
	BudgetBytes int64
	Version     string
	Storage     storage.Storage
	Logger      logx.Logger
	Clock       utils.Clock
	HTTPClient  *http.Client
}

func (a *Adapter) workers() int {
	if a.Workers <= 0 {
		return 1
	}
	return a.Workers
}

func (a *Adapter) logger() logx.Logger {
	if a.Logger == nil {
		return logx.Null{}
	}
	return a.Logger
}

func (a *Adapter) clock() utils.Clock {
	if a.Clock == nil {
		return utils.NewRealClock()
	}
	return a.Clock
}

func (a *Adapter) version() string {
	if a.Version == "" {
		return "dev"
	}
	return a.Version
}

// Process downloads every item's granule asset, merges them into one
// output file, stages it through a.Storage, and returns a one-item
// result catalog whose bbox and datetime properties accumulate across
// every input item, per spec.md §6. An empty input catalog is a no-op:
// it returns an empty result catalog, matching the original adapter's
// early return on zero items.
func (a *Adapter) Process(ctx context.Context, catalog Catalog) (Catalog, error) {
	if len(catalog.Items) == 0 {
		return Catalog{ID: uuid.NewString()}, nil
	}
	if a.Storage == nil {
		return Catalog{}, wrapError(fmt.Errorf("adapter has no storage backend configured"))
	}

	tempDir, err := os.MkdirTemp("", "concise-")
	if err != nil {
		return Catalog{}, wrapError(fmt.Errorf("create staging dir: %w", err))
	}
	defer os.RemoveAll(tempDir)

	log := a.logger()
	log.Info("starting granule downloads: count=%d", len(catalog.Items))
	inputPaths, err := DownloadInputs(ctx, catalog.Items, tempDir, a.HTTPClient)
	if err != nil {
		return Catalog{}, wrapError(fmt.Errorf("download inputs: %w", err))
	}
	log.Info("finished granule downloads")

	result, err := preprocess.Run(ctx, inputPaths, a.workers())
	if err != nil {
		return Catalog{}, wrapError(fmt.Errorf("preprocess: %w", err))
	}

	bbox, start, end := AccumulateAll(catalog.Items)

	basenames := make([]string, len(result.Retained))
	for i, p := range result.Retained {
		basenames[i] = filepath.Base(p)
	}

	entry := history.BuildEntry(a.clock().Now().UTC().Format("2006-01-02T15:04:05.000Z"), basenames, a.version(), inputPaths)
	finalized, err := finalize.Build(result.Schema, entry)
	if err != nil {
		return Catalog{}, wrapError(fmt.Errorf("finalize metadata: %w", err))
	}

	filename := outputFilename(catalog.Items[0], end)
	outputPath := filepath.Join(tempDir, filename)

	out, err := netcdf.InitOutput(outputPath, result.Schema, basenames, finalized)
	if err != nil {
		return Catalog{}, wrapError(fmt.Errorf("initialize output: %w", err))
	}

	mergeCfg := merge.Config{
		Workers:     a.workers(),
		BudgetBytes: a.BudgetBytes,
		Clock:       a.clock(),
		Logger:      log,
	}
	if err := merge.Run(ctx, result.Schema, result.Retained, out, mergeCfg); err != nil {
		out.Close()
		return Catalog{}, wrapError(fmt.Errorf("merge: %w", err))
	}
	if err := out.Close(); err != nil {
		return Catalog{}, wrapError(fmt.Errorf("close output: %w", err))
	}

	log.Info("staging merged output: filename=%s", filename)
	if err := a.Storage.UploadFile(ctx, filename, outputPath); err != nil {
		return Catalog{}, wrapError(fmt.Errorf("stage output: %w", err))
	}
	stagedURL := a.Storage.GetURL(filename)

	resultItem := Item{
		ID:        uuid.NewString(),
		Bbox:      bbox,
		StartTime: start,
		EndTime:   end,
		Assets: map[string]Asset{
			"data": {Href: stagedURL, MediaType: NetCDF4MimeType, Roles: []string{"data"}},
		},
	}

	return Catalog{ID: uuid.NewString(), Items: []Item{resultItem}}, nil
}

// outputFilename derives the merged output's basename from the first
// input item's granule stem and the accumulated end datetime, per
// original_source's f'{first_url_name}_{end_datetime}_{collection}_merged.nc4'.
func outputFilename(first Item, end time.Time) string {
	stem := "merged"
	if granuleURL, err := first.GranuleURL(); err == nil {
		base := filepath.Base(granuleURL)
		stem = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return fmt.Sprintf("%s_%s_%s_merged.nc4", stem, end.UTC().Format("20060102T150405Z"), first.Collection)
}
