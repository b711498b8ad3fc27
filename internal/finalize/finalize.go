// Package finalize computes the cleaned, write-ready attribute sets and
// the final history_json text for a merged granule's output file. It is
// pure: it reads a unified schema and a history entry and returns data,
// performing no I/O itself — internal/netcdf's output initializer writes
// the result (see its FinalizedAttrs doc comment for why the write
// happens during initialization rather than after merge).
package finalize

import (
	"fmt"

	"github.com/podaac/concise/internal/granule"
	"github.com/podaac/concise/internal/history"
	"github.com/podaac/concise/internal/netcdf"
)

// Build applies clean_metadata to every group's and variable's aggregated
// attributes and appends ownEntry to the concatenated prior history,
// producing the finalized output netcdf.InitOutput needs.
func Build(schema *granule.Schema, ownEntry history.Entry) (*netcdf.FinalizedAttrs, error) {
	groupAttrs := make(map[string]map[string]any, len(schema.GroupMetadata))
	for path, attrs := range schema.GroupMetadata {
		groupAttrs[path] = attrs.Clean()
	}

	varAttrs := make(map[string]map[string]any, len(schema.VarMetadata))
	for path, attrs := range schema.VarMetadata {
		varAttrs[path] = attrs.Clean()
	}

	entries := history.Append(schema.HistoryJSON, ownEntry)
	historyJSON, err := history.Serialize(entries)
	if err != nil {
		return nil, fmt.Errorf("finalize history_json: %w", err)
	}

	return &netcdf.FinalizedAttrs{
		GroupAttrs:  groupAttrs,
		VarAttrs:    varAttrs,
		HistoryJSON: historyJSON,
	}, nil
}
