package merge

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/podaac/concise/internal/apperr"
	"github.com/podaac/concise/pkg/utils"
)

// defaultBudgetBytes is used when neither an explicit configuration value
// nor the SHARED_MEMORY_SIZE environment variable is set — the fallback
// named directly by §4.5/§6 for when probing the shared-memory mount
// fails or is not attempted.
const defaultBudgetBytes int64 = 57 * 1024 * 1024

// budgetFraction is the share of the resolved capacity actually usable by
// outstanding buffers; the remainder is headroom for the writer's own
// working set.
const budgetFraction = 0.95

// pollInterval is the backpressure poll period named in §4.5/§9.
const pollInterval = 500 * time.Millisecond

// sharedMemorySizeEnv overrides the resolved budget when probing the
// shared-memory mount is unavailable or undesired, per §6.
const sharedMemorySizeEnv = "SHARED_MEMORY_SIZE"

// ResolveBudgetBytes picks the outstanding-buffer budget: configBytes if
// positive, else SHARED_MEMORY_SIZE if set to a positive integer, else
// defaultBudgetBytes. A goroutine-based pipeline has no OS-specific
// shared-memory mount to probe the way the source does (see SPEC_FULL.md
// §C.4),
// so this is the whole resolution chain.
func ResolveBudgetBytes(configBytes int64) int64 {
	if configBytes > 0 {
		return configBytes
	}
	if raw := os.Getenv(sharedMemorySizeEnv); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return defaultBudgetBytes
}

// Budget tracks the total bytes of outstanding buffers handed from readers
// to the writer, guarded by a lock, mirroring §4.5's shared counter.
type Budget struct {
	mu          sync.Mutex
	outstanding int64
	cap         int64
	clock       utils.Clock
}

// NewBudget creates a Budget whose usable capacity is budgetFraction of
// capBytes (resolved via ResolveBudgetBytes by the caller).
func NewBudget(capBytes int64, clock utils.Clock) *Budget {
	if clock == nil {
		clock = utils.NewRealClock()
	}
	return &Budget{cap: int64(float64(capBytes) * budgetFraction), clock: clock}
}

// Cap returns the usable capacity, after budgetFraction is applied.
func (b *Budget) Cap() int64 { return b.cap }

// QueueNonEmptyFunc reports whether the output queue currently holds any
// posted-but-unwritten buffer, the second half of §4.5's wait condition.
type QueueNonEmptyFunc func() bool

// Reserve blocks, polling every pollInterval, while outstanding+size
// exceeds the budget and queueNonEmpty() is true. If the queue drains to
// empty while waiting, Reserve proceeds regardless of budget — nothing
// else can shrink outstanding, so waiting longer could only deadlock. A
// single size that exceeds the full capacity fails fast with
// MemoryBudgetExceeded rather than ever blocking.
func (b *Budget) Reserve(ctx context.Context, size int64, queueNonEmpty QueueNonEmptyFunc) error {
	if size > b.cap {
		return apperr.ErrMemoryBudgetExceeded.WithMessage(
			"resized variable requires %d bytes, exceeding the %d byte budget", size, b.cap)
	}

	for {
		if b.tryReserve(size) {
			return nil
		}
		if !queueNonEmpty() {
			b.forceReserve(size)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.clock.After(pollInterval):
		}
	}
}

func (b *Budget) tryReserve(size int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.outstanding+size > b.cap {
		return false
	}
	b.outstanding += size
	return true
}

func (b *Budget) forceReserve(size int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outstanding += size
}

// Release returns size bytes to the budget once the writer has finished
// with the buffer, mirroring the writer decrementing the counter after
// each successful write.
func (b *Budget) Release(size int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outstanding -= size
}

// Outstanding returns the current outstanding byte count, for tests and
// diagnostics.
func (b *Budget) Outstanding() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.outstanding
}
