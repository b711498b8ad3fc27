// Command concise-bench repeatedly merges a fixed granule set and reports
// per-phase timings (preprocessing, merging, metadata) averaged across
// several runs, for tracking the merge engine's performance over time.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/podaac/concise/internal/finalize"
	"github.com/podaac/concise/internal/history"
	"github.com/podaac/concise/internal/logx"
	"github.com/podaac/concise/internal/merge"
	"github.com/podaac/concise/internal/netcdf"
	"github.com/podaac/concise/internal/preprocess"
	"github.com/podaac/concise/pkg/writer"
)

var (
	cores       = flag.Int("c", runtime.NumCPU(), "Override the number of cores used during merge; default cpu_count")
	granuleList = flag.String("l", "", "Text file listing granule URLs to use for benchmarking (one per line)")
	granuleDir  = flag.String("d", "./granules", "Directory to store/read granules for benchmarking")
	runs        = flag.Int("r", 5, "Number of runs to perform during benchmarking")
)

// runStats holds one run's per-phase timings, mirroring the
// preprocess/merge/metadata breakdown a benchmarking session reports.
type runStats struct {
	Preprocess time.Duration
	Merge      time.Duration
	Metadata   time.Duration
}

func (r runStats) total() time.Duration { return r.Preprocess + r.Merge + r.Metadata }

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <output_path>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	outputPath := flag.Arg(0)
	log := logx.New(logx.LevelInfo, os.Stdout)

	if *runs <= 0 {
		log.Error("runs must be > 0, got %d", *runs)
		os.Exit(1)
	}
	if *cores <= 0 {
		log.Error("cores must be > 0, got %d", *cores)
		os.Exit(1)
	}

	ctx := context.Background()

	if err := ensureGranuleSet(ctx, *granuleDir, *granuleList, log); err != nil {
		log.Error("failed to prepare granule set: %v", err)
		os.Exit(1)
	}

	inputPaths, err := listGranules(*granuleDir)
	if err != nil {
		log.Error("failed to list granules: %v", err)
		os.Exit(1)
	}
	if len(inputPaths) == 0 {
		log.Error("no granules found in %s", *granuleDir)
		os.Exit(1)
	}

	sessionStats := make([]runStats, 0, *runs)
	tempPath := filepath.Join(os.TempDir(), fmt.Sprintf("concise-bench-%d.nc4", os.Getpid()))
	defer os.Remove(tempPath)

	for i := 1; i <= *runs; i++ {
		log.Info("running benchmark %d/%d", i, *runs)
		stats, err := runOnce(ctx, inputPaths, tempPath, *cores, log)
		if err != nil {
			log.Error("benchmark run %d failed: %v", i, err)
			os.Exit(1)
		}
		sessionStats = append(sessionStats, stats)
	}

	if err := writeReport(outputPath, sessionStats); err != nil {
		log.Error("failed to write report: %v", err)
		os.Exit(1)
	}
	log.Info("report written to %s", outputPath)

	jsonPath := outputPath + ".json"
	if err := writer.NewPrettyJSONWriter[[]runStats]().WriteToFile(sessionStats, jsonPath); err != nil {
		log.Warn("failed to write machine-readable report: %v", err)
	} else {
		log.Info("machine-readable report written to %s", jsonPath)
	}
}

// runOnce performs one merge, timing preprocessing, metadata assembly, and
// the merge pass separately, the same three phases benchmark sessions track.
func runOnce(ctx context.Context, inputPaths []string, outputPath string, workers int, log logx.Logger) (runStats, error) {
	var stats runStats

	preStart := time.Now()
	result, err := preprocess.Run(ctx, inputPaths, workers)
	stats.Preprocess = time.Since(preStart)
	if err != nil {
		return stats, fmt.Errorf("preprocess: %w", err)
	}

	metaStart := time.Now()
	basenames := make([]string, len(result.Retained))
	for i, p := range result.Retained {
		basenames[i] = filepath.Base(p)
	}
	entry := history.BuildEntry(time.Now().UTC().Format("2006-01-02T15:04:05.000Z"), basenames, "bench", inputPaths)
	finalized, err := finalize.Build(result.Schema, entry)
	if err != nil {
		return stats, fmt.Errorf("finalize metadata: %w", err)
	}
	out, err := netcdf.InitOutput(outputPath, result.Schema, basenames, finalized)
	if err != nil {
		return stats, fmt.Errorf("initialize output: %w", err)
	}
	stats.Metadata = time.Since(metaStart)

	mergeStart := time.Now()
	mergeCfg := merge.Config{Workers: workers, Logger: log}
	if err := merge.Run(ctx, result.Schema, result.Retained, out, mergeCfg); err != nil {
		out.Close()
		return stats, fmt.Errorf("merge: %w", err)
	}
	if err := out.Close(); err != nil {
		return stats, fmt.Errorf("close output: %w", err)
	}
	stats.Merge = time.Since(mergeStart)

	return stats, nil
}

// listGranules lists granuleDir's children non-recursively, matching the
// merge CLI's own treatment of a directory of inputs.
func listGranules(granuleDir string) ([]string, error) {
	entries, err := os.ReadDir(granuleDir)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(granuleDir, e.Name()))
	}
	return paths, nil
}

// ensureGranuleSet downloads every URL in listPath into granuleDir that
// isn't already present, authenticating with an EARTHDATA_TOKEN bearer
// token, matching original_source's benchmark granule precheck. A blank
// listPath skips the precheck and uses whatever is already in granuleDir.
func ensureGranuleSet(ctx context.Context, granuleDir, listPath string, log logx.Logger) error {
	if listPath == "" {
		return nil
	}

	data, err := os.ReadFile(listPath)
	if err != nil {
		return fmt.Errorf("read granule list %s: %w", listPath, err)
	}
	if err := os.MkdirAll(granuleDir, 0o755); err != nil {
		return fmt.Errorf("create granule dir %s: %w", granuleDir, err)
	}

	token := os.Getenv("EARTHDATA_TOKEN")
	client := &http.Client{}

	for _, line := range strings.Split(string(data), "\n") {
		url := strings.TrimSpace(line)
		if url == "" {
			continue
		}
		parts := strings.Split(url, "/")
		filename := parts[len(parts)-1]
		destPath := filepath.Join(granuleDir, filename)

		if _, err := os.Stat(destPath); err == nil {
			continue
		}

		log.Info("downloading granule: name=%s", filename)
		if err := downloadGranule(ctx, client, url, token, destPath); err != nil {
			return fmt.Errorf("download %s: %w", url, err)
		}
	}
	return nil
}

func downloadGranule(ctx context.Context, client *http.Client, url, token, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	file, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = copyBody(file, resp)
	return err
}

func copyBody(file *os.File, resp *http.Response) (int64, error) {
	return io.Copy(file, resp.Body)
}

// writeReport writes one CSV row per run plus an averages row, matching
// original_source's preprocess/merge/metadata/total report columns.
func writeReport(outputPath string, sessionStats []runStats) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"Run #", "Preprocessing", "Merging", "Metadata", "Total (Seconds)", "Total (Minutes)"}); err != nil {
		return err
	}

	var sumPre, sumMerge, sumMeta time.Duration
	for i, s := range sessionStats {
		total := s.total()
		if err := w.Write([]string{
			strconv.Itoa(i + 1),
			formatSeconds(s.Preprocess),
			formatSeconds(s.Merge),
			formatSeconds(s.Metadata),
			formatSeconds(total),
			formatMinutes(total),
		}); err != nil {
			return err
		}
		sumPre += s.Preprocess
		sumMerge += s.Merge
		sumMeta += s.Metadata
	}

	n := time.Duration(len(sessionStats))
	avgPre, avgMerge, avgMeta := sumPre/n, sumMerge/n, sumMeta/n
	avgTotal := avgPre + avgMerge + avgMeta
	return w.Write([]string{
		"Average",
		formatSeconds(avgPre),
		formatSeconds(avgMerge),
		formatSeconds(avgMeta),
		formatSeconds(avgTotal),
		formatMinutes(avgTotal),
	})
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}

func formatMinutes(d time.Duration) string {
	return strconv.FormatFloat(d.Minutes(), 'f', 6, 64)
}
