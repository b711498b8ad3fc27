// Package harmony implements the narrow service-adapter contract
// spec.md §6 asks of an external collaborator: given a catalog of input
// items it downloads their assets, drives the merge engine, stages the
// result, and reports back a result catalog carrying the accumulated
// bounding box and datetime range. It is deliberately not a full STAC
// client or a standing server; Item/Asset/Catalog below carry only the
// fields the merge actually consumes.
package harmony

import (
	"fmt"
	"time"
)

// NetCDF4MimeType is the media type assigned to every merged output
// asset, matching the one netCDF4-python/cdf-compatible format this
// service ever produces.
const NetCDF4MimeType = "application/x-netcdf4"

// Asset is one downloadable file attached to an Item, e.g. a granule's
// data file or its browse image.
type Asset struct {
	Href      string
	MediaType string
	Roles     []string
}

// IsNetCDF reports whether a matches the accepted NetCDF4/HDF5/NetCDF3
// media types. When strict is false, any asset with a "data" role is
// accepted instead, mirroring the lax fallback the original adapter
// uses when an asset's media type was never populated.
func (a Asset) IsNetCDF(strict bool) bool {
	if strict {
		switch a.MediaType {
		case "application/x-hdf5", "application/x-netcdf", NetCDF4MimeType:
			return true
		}
		return false
	}
	for _, r := range a.Roles {
		if r == "data" {
			return true
		}
	}
	return false
}

// Item is one input (or output) granule: its id, spatial/temporal
// extent, source collection, and assets.
type Item struct {
	ID         string
	Collection string
	Bbox       []float64 // [xmin, ymin, xmax, ymax]; nil when the source had none
	StartTime  time.Time
	EndTime    time.Time
	Assets     map[string]Asset
}

// GranuleURL returns the href of the first NetCDF-compatible asset
// attached to it, trying strict media-type matching first and falling
// back to the "data" role, per original_source's get_granule_url.
func (it Item) GranuleURL() (string, error) {
	for _, a := range it.Assets {
		if a.IsNetCDF(true) {
			return a.Href, nil
		}
	}
	for _, a := range it.Assets {
		if a.IsNetCDF(false) {
			return a.Href, nil
		}
	}
	return "", fmt.Errorf("no NetCDF-compatible asset found on item %s", it.ID)
}

// Catalog is an ordered collection of items, standing in for a STAC
// Catalog/Collection.
type Catalog struct {
	ID    string
	Items []Item
}
