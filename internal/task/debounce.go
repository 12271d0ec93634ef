package task

import "time"

const (
	defaultProgressInterval = 5 * time.Second
	defaultProgressStep     = 5
)

// progressDebouncer bounds how often upload progress turns into a status
// edit. An update passes only when the configured interval has elapsed AND
// the percentage advanced by the configured step; 100% always passes so the
// final state is never swallowed.
type progressDebouncer struct {
	interval time.Duration
	step     int

	lastTime    time.Time
	lastPercent int

	now func() time.Time
}

func newProgressDebouncer(intervalSeconds, step int) *progressDebouncer {
	interval := time.Duration(intervalSeconds) * time.Second
	if intervalSeconds <= 0 {
		interval = defaultProgressInterval
	}
	if step <= 0 {
		step = defaultProgressStep
	}
	return &progressDebouncer{
		interval: interval,
		step:     step,
		now:      time.Now,
	}
}

// shouldEmit reports whether an update at this percentage is due and, when
// it is, records it as the last emitted one.
func (d *progressDebouncer) shouldEmit(percent int) bool {
	now := d.now()
	if (now.Sub(d.lastTime) >= d.interval && percent-d.lastPercent >= d.step) || percent == 100 {
		d.lastTime = now
		d.lastPercent = percent
		return true
	}
	return false
}
