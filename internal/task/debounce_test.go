package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressDebouncerGatesByTimeAndStep(t *testing.T) {
	current := time.Unix(1000, 0)
	d := newProgressDebouncer(5, 5)
	d.now = func() time.Time { return current }

	assert.True(t, d.shouldEmit(5), "first update past the step must pass")
	assert.False(t, d.shouldEmit(9), "no time elapsed")

	current = current.Add(6 * time.Second)
	assert.False(t, d.shouldEmit(9), "interval elapsed but step not reached")
	assert.True(t, d.shouldEmit(12), "both thresholds met")

	assert.True(t, d.shouldEmit(100), "terminal update always passes")
	assert.True(t, d.shouldEmit(100), "repeated terminal update still passes")
}

func TestProgressDebouncerDenseStream(t *testing.T) {
	current := time.Unix(1000, 0)
	d := newProgressDebouncer(5, 5)
	d.now = func() time.Time { return current }

	var emitted []int
	for percent := 1; percent <= 100; percent++ {
		current = current.Add(time.Second)
		if d.shouldEmit(percent) {
			emitted = append(emitted, percent)
		}
	}

	// One update per 5s/5% stride plus the terminal one.
	assert.Equal(t, []int{5, 10, 15, 20, 25, 30, 35, 40, 45, 50, 55, 60, 65, 70, 75, 80, 85, 90, 95, 100}, emitted)
}

func TestProgressDebouncerDefaults(t *testing.T) {
	d := newProgressDebouncer(0, 0)

	assert.Equal(t, defaultProgressInterval, d.interval)
	assert.Equal(t, defaultProgressStep, d.step)
}
