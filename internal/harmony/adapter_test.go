package harmony

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFilename_UsesGranuleStemEndTimeAndCollection(t *testing.T) {
	item := Item{
		Collection: "SNDR_L1B",
		Assets:     map[string]Asset{"data": {Href: "https://example.com/2020_01_01_abc_global.nc", MediaType: "application/x-netcdf4"}},
	}
	end := time.Date(2020, 1, 5, 23, 59, 59, 0, time.UTC)

	got := outputFilename(item, end)
	assert.Equal(t, "2020_01_01_abc_global_20200105T235959Z_SNDR_L1B_merged.nc4", got)
}

func TestOutputFilename_FallsBackWhenNoGranuleAsset(t *testing.T) {
	item := Item{Collection: "C1"}
	end := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	got := outputFilename(item, end)
	assert.Equal(t, "merged_20200101T000000Z_C1_merged.nc4", got)
}

func TestAdapter_Process_EmptyCatalogIsNoop(t *testing.T) {
	a := &Adapter{}
	result, err := a.Process(context.Background(), Catalog{})
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.NotEmpty(t, result.ID)
}

func TestAdapter_Process_MissingStorageFailsFast(t *testing.T) {
	a := &Adapter{}
	_, err := a.Process(context.Background(), Catalog{Items: []Item{{ID: "x"}}})
	require.Error(t, err)
}
