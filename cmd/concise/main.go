// Command concise merges a directory of NetCDF4/HDF5 granules that
// share a product schema into a single NetCDF4 file with a synthetic
// subset_index axis, per the merge engine's CLI surface.
package main

import "github.com/podaac/concise/cmd/concise/cmd"

func main() {
	cmd.Execute()
}
