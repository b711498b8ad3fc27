package harmony

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/podaac/concise/pkg/parallel"
)

// DownloadInputs fetches every item's granule asset into destDir,
// concurrently, using pkg/parallel.ForEach as the worker pool -
// grounded on download_worker.py's multi_core_download, minus the
// access-token plumbing a standalone adapter has no use for. It returns
// the downloaded paths in the same order as items, so callers can keep
// treating index i of the result as "item i's local file".
func DownloadInputs(ctx context.Context, items []Item, destDir string, client *http.Client) ([]string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	paths := make([]string, len(items))
	indices := make([]int, len(items))
	for i := range indices {
		indices[i] = i
	}

	cfg := parallel.DefaultPoolConfig()
	_, err := parallel.ForEach(ctx, indices, cfg, func(ctx context.Context, i int) error {
		granuleURL, err := items[i].GranuleURL()
		if err != nil {
			return err
		}
		path, err := downloadOne(ctx, client, granuleURL, destDir)
		if err != nil {
			return fmt.Errorf("download %s: %w", granuleURL, err)
		}
		paths[i] = path
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// downloadOne fetches rawURL into destDir under its own basename,
// supporting http(s) URLs and bare local paths/file:// URIs so the
// adapter can be exercised without a network in tests.
func downloadOne(ctx context.Context, client *http.Client, rawURL, destDir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	destPath := filepath.Join(destDir, filepath.Base(u.Path))

	if u.Scheme == "" || u.Scheme == "file" {
		return destPath, copyFile(u.Path, destPath)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, rawURL)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", err
	}
	return destPath, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
