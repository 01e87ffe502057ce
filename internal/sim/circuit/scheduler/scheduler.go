package scheduler

import (
	"fmt"
	"time"
)

// DefaultPresets are the pass intervals of the speed bar, slowest first. The first
// preset is slow enough to act as a pause.
var DefaultPresets = []time.Duration{
	500 * time.Second,
	500 * time.Millisecond,
	100 * time.Millisecond,
	10 * time.Millisecond,
	1 * time.Millisecond,
}

const minInterval = time.Millisecond

// Scheduler accumulates host time and reports when a simulation pass is due.
//
// When the accumulator reaches the interval exactly one pass fires and the
// accumulator restarts from zero; time beyond the threshold is dropped, so passes
// drift under uneven host frame times.
type Scheduler struct {
	acc      time.Duration
	interval time.Duration

	presets []time.Duration
	preset  int // 1-based; 0 when the interval was set directly
}

// New builds a scheduler from a preset list (DefaultPresets when empty) and selects
// preset (1-based). An out-of-range preset selects the first one.
func New(presets []time.Duration, preset int) *Scheduler {
	if len(presets) == 0 {
		presets = DefaultPresets
	}
	s := &Scheduler{presets: append([]time.Duration(nil), presets...)}
	if err := s.SetPreset(preset); err != nil {
		_ = s.SetPreset(1)
	}
	return s
}

// Advance adds dt and reports whether a pass should run now.
func (s *Scheduler) Advance(dt time.Duration) bool {
	if dt > 0 {
		s.acc += dt
	}
	if s.acc < s.interval {
		return false
	}
	s.acc = 0
	return true
}

func (s *Scheduler) Interval() time.Duration { return s.interval }

func (s *Scheduler) Pending() time.Duration { return s.acc }

// Preset returns the active 1-based preset, or 0 after SetInterval.
func (s *Scheduler) Preset() int { return s.preset }

func (s *Scheduler) Presets() []time.Duration { return append([]time.Duration(nil), s.presets...) }

// SetInterval changes the pass interval. The accumulated time is kept.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d < minInterval {
		d = minInterval
	}
	s.interval = d
	s.preset = 0
}

func (s *Scheduler) SetPreset(i int) error {
	if i < 1 || i > len(s.presets) {
		return fmt.Errorf("speed preset %d out of range 1..%d", i, len(s.presets))
	}
	s.SetInterval(s.presets[i-1])
	s.preset = i
	return nil
}

// Faster and Slower step through the presets, saturating at the ends.
func (s *Scheduler) Faster() int {
	if s.preset < len(s.presets) {
		_ = s.SetPreset(s.preset + 1)
	}
	return s.preset
}

func (s *Scheduler) Slower() int {
	if s.preset > 1 {
		_ = s.SetPreset(s.preset - 1)
	} else if s.preset == 0 {
		_ = s.SetPreset(1)
	}
	return s.preset
}
