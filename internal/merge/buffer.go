package merge

import (
	"reflect"

	"github.com/podaac/concise/internal/granule"
	"github.com/podaac/concise/pkg/collections"
)

// bufferPool hands out reusable flat slices for resized variable payloads,
// one pool per on-disk element type, so repeated slab allocations across
// many (input, variable) pairs reuse backing arrays instead of allocating
// fresh ones every time. This is the in-process stand-in for §4.5's
// shared-memory segment: ownership transfers from the reader that filled
// the slice to the writer, which returns it to the pool after writing (see
// SPEC_FULL.md §C.4).
type bufferPool struct {
	int8s    *collections.SlicePool[int8]
	int16s   *collections.SlicePool[int16]
	int32s   *collections.SlicePool[int32]
	float32s *collections.SlicePool[float32]
	float64s *collections.SlicePool[float64]
	bytes    *collections.SlicePool[byte]
}

func newBufferPool() *bufferPool {
	const initialCap = 4096
	return &bufferPool{
		int8s:    collections.NewSlicePool[int8](initialCap),
		int16s:   collections.NewSlicePool[int16](initialCap),
		int32s:   collections.NewSlicePool[int32](initialCap),
		float32s: collections.NewSlicePool[float32](initialCap),
		float64s: collections.NewSlicePool[float64](initialCap),
		bytes:    collections.NewSlicePool[byte](initialCap),
	}
}

// get returns a zeroed slice of n elements of dt's on-disk type, and a
// release func that must be called exactly once, after the writer is done
// reading the slice, to return its backing array to the pool.
func (p *bufferPool) get(dt granule.Datatype, n int) (data any, release func()) {
	switch elemType(dt).Kind() {
	case reflect.Int8:
		s := p.int8s.Get()
		*s = growTo(*s, n)
		return *s, func() { p.int8s.Put(s) }
	case reflect.Int16:
		s := p.int16s.Get()
		*s = growTo(*s, n)
		return *s, func() { p.int16s.Put(s) }
	case reflect.Int32:
		s := p.int32s.Get()
		*s = growTo(*s, n)
		return *s, func() { p.int32s.Put(s) }
	case reflect.Float32:
		s := p.float32s.Get()
		*s = growTo(*s, n)
		return *s, func() { p.float32s.Put(s) }
	case reflect.Uint8:
		s := p.bytes.Get()
		*s = growTo(*s, n)
		return *s, func() { p.bytes.Put(s) }
	default:
		s := p.float64s.Get()
		*s = growTo(*s, n)
		return *s, func() { p.float64s.Put(s) }
	}
}

// growTo returns s resliced/reallocated to exactly n elements, zeroed.
func growTo[T any](s []T, n int) []T {
	if cap(s) < n {
		s = make([]T, n)
	} else {
		s = s[:n]
		var zero T
		for i := range s {
			s[i] = zero
		}
	}
	return s
}
