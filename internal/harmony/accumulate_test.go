package harmony

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestAccumulateBbox_WidensAcrossItems(t *testing.T) {
	items := []Item{
		{Bbox: []float64{-1, -1, 1, 1}},
		{Bbox: []float64{-4, -2, 2, 3}},
		{Bbox: []float64{0, 0, 4, 2}},
	}
	var bbox []float64
	for _, it := range items {
		bbox = AccumulateBbox(bbox, it)
	}
	assert.Equal(t, []float64{-4, -2, 4, 3}, bbox)
}

func TestAccumulateBbox_NilBboxLeavesAccumulatorUnchanged(t *testing.T) {
	bbox := AccumulateBbox(nil, Item{Bbox: []float64{1, 2, 3, 4}})
	bbox = AccumulateBbox(bbox, Item{Bbox: nil})
	assert.Equal(t, []float64{1, 2, 3, 4}, bbox)
}

func TestAccumulateDatetime_WidensRange(t *testing.T) {
	a := mustParse(t, "2020-01-01T00:00:00Z")
	b := mustParse(t, "2020-01-05T23:59:59Z")
	mid := mustParse(t, "2020-01-03T12:00:00Z")

	var start, end time.Time
	start, end = AccumulateDatetime(start, end, Item{StartTime: mid, EndTime: mid})
	start, end = AccumulateDatetime(start, end, Item{StartTime: a, EndTime: a})
	start, end = AccumulateDatetime(start, end, Item{StartTime: b, EndTime: b})

	assert.True(t, start.Equal(a))
	assert.True(t, end.Equal(b))
}

func TestAccumulateAll(t *testing.T) {
	a := mustParse(t, "2020-01-01T00:00:00Z")
	b := mustParse(t, "2020-01-05T23:59:59Z")
	items := []Item{
		{Bbox: []float64{-4, -3, 0, 0}, StartTime: a, EndTime: a},
		{Bbox: []float64{0, 0, 4, 3}, StartTime: b, EndTime: b},
	}
	bbox, start, end := AccumulateAll(items)
	assert.Equal(t, []float64{-4, -3, 4, 3}, bbox)
	assert.True(t, start.Equal(a))
	assert.True(t, end.Equal(b))
}
