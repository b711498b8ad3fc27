// Package history builds and serializes the provenance entries recorded
// under a merged granule's root history_json attribute, and can archive
// that provenance to a standalone compressed sidecar file for long-term
// storage outside the granule itself.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/podaac/concise/pkg/compression"
)

// ProgramName is the value written into every entry's "program" field.
const ProgramName = "concise"

// ProgramRef is the fixed CMR concept reference for this program, carried
// over from the system this one replaces.
const ProgramRef = "https://cmr.earthdata.nasa.gov:443/search/concepts/S2153799015-POCLOUD"

// SchemaRef identifies the history entry's JSON schema.
const SchemaRef = "https://harmony.earthdata.nasa.gov/schemas/history/0.1.0/history-v0.1.0.json"

// Entry is one provenance record.
type Entry map[string]any

// BuildEntry constructs this run's own provenance entry. version is a
// process-wide fact injected by the caller (the CLI's build-time version
// string), never discovered via language-specific binary metadata.
func BuildEntry(dateTime string, derivedFrom []string, version string, inputFiles []string) Entry {
	return Entry{
		"date_time":    dateTime,
		"derived_from": append([]string{}, derivedFrom...),
		"program":      ProgramName,
		"version":      version,
		"parameters":   fmt.Sprintf("input_files=%v", inputFiles),
		"program_ref":  ProgramRef,
		"$schema":      SchemaRef,
	}
}

// Append concatenates every retained input's prior history entries (in
// retained-input order) with this run's own entry, which always comes
// last.
func Append(priorEntries []map[string]any, own Entry) []map[string]any {
	out := make([]map[string]any, 0, len(priorEntries)+1)
	out = append(out, priorEntries...)
	out = append(out, map[string]any(own))
	return out
}

// Serialize encodes entries as a JSON array.
func Serialize(entries []map[string]any) (string, error) {
	b, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("serialize history_json: %w", err)
	}
	return string(b), nil
}

// Parse decodes a granule's raw history_json attribute text into its
// entries. An empty or unparseable string yields an empty, non-nil slice
// rather than an error — a granule with no prior history is the common
// case, not a fault.
func Parse(raw string) []map[string]any {
	if raw == "" {
		return []map[string]any{}
	}
	var entries []map[string]any
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return []map[string]any{}
	}
	return entries
}

// SaveSidecar archives entries as a standalone, compressed JSON file next
// to the merged output, for provenance retrieval without opening the
// granule itself.
func SaveSidecar(path string, entries []map[string]any, comp compression.Compressor) error {
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history sidecar: %w", err)
	}

	if comp == nil {
		comp = compression.Default()
	}
	compressed, err := comp.Compress(raw)
	if err != nil {
		return fmt.Errorf("compress history sidecar: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create history sidecar directory: %w", err)
	}
	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		return fmt.Errorf("write history sidecar: %w", err)
	}
	return nil
}
