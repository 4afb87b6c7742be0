package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClock_Frozen(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewFixedClock(start)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start, clock.Now())
}

func TestFixedClock_Advance(t *testing.T) {
	clock := MustParseClock("2026-01-01T00:00:00Z")
	clock.Advance(90 * time.Second)

	assert.Equal(t, "2026-01-01T00:01:30Z", clock.Now().Format(time.RFC3339))
}

func TestFixedClock_Set(t *testing.T) {
	clock := MustParseClock("2026-01-01T00:00:00Z")
	later := time.Date(2027, 6, 1, 12, 0, 0, 0, time.UTC)
	clock.Set(later)

	assert.Equal(t, later, clock.Now())
}

func TestFixedClock_ThreadSafe(t *testing.T) {
	clock := MustParseClock("2026-01-01T00:00:00Z")
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			clock.Advance(time.Second)
			_ = clock.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, "2026-01-01T00:00:50Z", clock.Now().Format(time.RFC3339))
}

func TestMustParseClock_PanicsOnNaiveTime(t *testing.T) {
	assert.Panics(t, func() { MustParseClock("2026-01-01T00:00:00") })
}
