package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/podaac/concise/pkg/compression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEntry_SetsEveryFixedField(t *testing.T) {
	entry := BuildEntry("2024-01-01T00:00:00.000Z", []string{"a.nc4", "b.nc4"}, "1.2.3", []string{"/in/a.nc4", "/in/b.nc4"})

	assert.Equal(t, "2024-01-01T00:00:00.000Z", entry["date_time"])
	assert.Equal(t, []string{"a.nc4", "b.nc4"}, entry["derived_from"])
	assert.Equal(t, ProgramName, entry["program"])
	assert.Equal(t, "1.2.3", entry["version"])
	assert.Equal(t, ProgramRef, entry["program_ref"])
	assert.Equal(t, SchemaRef, entry["$schema"])
	assert.Contains(t, entry["parameters"], "/in/a.nc4")
}

func TestBuildEntry_CopiesDerivedFromSlice(t *testing.T) {
	derivedFrom := []string{"a.nc4"}
	entry := BuildEntry("t", derivedFrom, "v", nil)

	derivedFrom[0] = "mutated"
	assert.Equal(t, []string{"a.nc4"}, entry["derived_from"])
}

func TestAppend_OwnEntryAlwaysLast(t *testing.T) {
	prior := []map[string]any{{"date_time": "old"}}
	own := Entry{"date_time": "new"}

	out := Append(prior, own)
	require.Len(t, out, 2)
	assert.Equal(t, "old", out[0]["date_time"])
	assert.Equal(t, "new", out[1]["date_time"])
}

func TestSerializeParseRoundTrip(t *testing.T) {
	entries := []map[string]any{{"date_time": "t", "program": ProgramName}}

	raw, err := Serialize(entries)
	require.NoError(t, err)

	parsed := Parse(raw)
	require.Len(t, parsed, 1)
	assert.Equal(t, "t", parsed[0]["date_time"])
}

func TestParse_EmptyOrInvalidYieldsEmptySlice(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("not json"))
	assert.NotNil(t, Parse(""))
}

func TestSaveSidecar_WritesDecompressableFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "history.json.gz")
	entries := []map[string]any{{"date_time": "t"}}

	comp := compression.NewGzipCompressor(compression.LevelDefault)
	require.NoError(t, SaveSidecar(path, entries, comp))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	decompressed, err := comp.Decompress(raw)
	require.NoError(t, err)
	assert.Contains(t, string(decompressed), "date_time")
}

func TestSaveSidecar_NilCompressorUsesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json.gz")
	require.NoError(t, SaveSidecar(path, []map[string]any{{"date_time": "t"}}, nil))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}
