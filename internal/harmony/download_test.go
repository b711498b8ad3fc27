package harmony

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadInputs_FetchesOverHTTPAndLocalFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote granule contents"))
	}))
	defer srv.Close()

	localDir := t.TempDir()
	localFile := filepath.Join(localDir, "local.nc4")
	require.NoError(t, os.WriteFile(localFile, []byte("local granule contents"), 0o644))

	destDir := t.TempDir()
	items := []Item{
		{ID: "remote", Assets: map[string]Asset{"data": {Href: srv.URL + "/remote.nc4", MediaType: "application/x-netcdf4"}}},
		{ID: "local", Assets: map[string]Asset{"data": {Href: localFile, MediaType: "application/x-netcdf4"}}},
	}

	paths, err := DownloadInputs(context.Background(), items, destDir, srv.Client())
	require.NoError(t, err)
	require.Len(t, paths, 2)

	remoteContents, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "remote granule contents", string(remoteContents))

	localContents, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "local granule contents", string(localContents))
}

func TestDownloadInputs_MissingAssetFailsFast(t *testing.T) {
	items := []Item{{ID: "broken", Assets: map[string]Asset{"browse": {MediaType: "image/png"}}}}
	_, err := DownloadInputs(context.Background(), items, t.TempDir(), nil)
	require.Error(t, err)
}

func TestDownloadInputs_HTTPErrorStatusFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	items := []Item{{ID: "missing", Assets: map[string]Asset{"data": {Href: srv.URL + "/gone.nc4", MediaType: "application/x-netcdf4"}}}}
	_, err := DownloadInputs(context.Background(), items, t.TempDir(), srv.Client())
	require.Error(t, err)
}
