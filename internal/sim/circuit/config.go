package circuit

import (
	"time"

	"voxelcircuit.ai/internal/sim/circuit/scheduler"
)

type Config struct {
	ID string

	// HostHz is the rate of the host loop that feeds elapsed time to the scheduler.
	// It bounds how often passes can fire, not the pass interval itself.
	HostHz int

	SpeedPresets []time.Duration
	DefaultSpeed int // 1-based index into SpeedPresets

	// MaxPropagationNodes caps the wires reached from one Out. Zero means unbounded.
	MaxPropagationNodes int

	// AutosaveEvery is measured in host time. Zero disables autosave.
	AutosaveEvery time.Duration

	// LogTicks writes a tick log entry for every pass, not only for passes that
	// committed changes.
	LogTicks bool
}

func (c *Config) applyDefaults() {
	if c.ID == "" {
		c.ID = "world_1"
	}
	if c.HostHz <= 0 {
		c.HostHz = 60
	}
	if len(c.SpeedPresets) == 0 {
		c.SpeedPresets = scheduler.DefaultPresets
	}
	if c.DefaultSpeed <= 0 || c.DefaultSpeed > len(c.SpeedPresets) {
		c.DefaultSpeed = 2
		if c.DefaultSpeed > len(c.SpeedPresets) {
			c.DefaultSpeed = 1
		}
	}
	if c.MaxPropagationNodes < 0 {
		c.MaxPropagationNodes = 0
	}
	if c.AutosaveEvery < 0 {
		c.AutosaveEvery = 0
	}
}
