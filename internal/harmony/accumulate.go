package harmony

import "time"

// AccumulateBbox folds item's bbox into current, widening current to
// cover both, and returns the result. A nil current starts the
// accumulation; an item with no bbox leaves current unchanged, since a
// null geometry is valid under the input contract.
func AccumulateBbox(current []float64, item Item) []float64 {
	if item.Bbox == nil {
		return current
	}
	if len(current) == 0 {
		out := make([]float64, len(item.Bbox))
		copy(out, item.Bbox)
		return out
	}

	if item.Bbox[0] < current[0] {
		current[0] = item.Bbox[0]
	}
	if item.Bbox[1] < current[1] {
		current[1] = item.Bbox[1]
	}
	if item.Bbox[2] > current[2] {
		current[2] = item.Bbox[2]
	}
	if item.Bbox[3] > current[3] {
		current[3] = item.Bbox[3]
	}
	return current
}

// AccumulateDatetime widens the [start, end] pair to also cover item's
// own instant (when StartTime/EndTime coincide) or range.
func AccumulateDatetime(start, end time.Time, item Item) (time.Time, time.Time) {
	itemStart, itemEnd := item.StartTime, item.EndTime
	if itemStart.IsZero() {
		itemStart = item.EndTime
	}
	if itemEnd.IsZero() {
		itemEnd = item.StartTime
	}

	if start.IsZero() || itemStart.Before(start) {
		start = itemStart
	}
	if end.IsZero() || itemEnd.After(end) {
		end = itemEnd
	}
	return start, end
}

// AccumulateAll folds bbox and datetime extent across every item in
// items, in one pass.
func AccumulateAll(items []Item) (bbox []float64, start, end time.Time) {
	for _, item := range items {
		bbox = AccumulateBbox(bbox, item)
		start, end = AccumulateDatetime(start, end, item)
	}
	return bbox, start, end
}
