package tuning

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	// HostHz is the rate of the host loop feeding the pass scheduler.
	HostHz int `yaml:"host_hz"`

	// SpeedPresetsMs are the pass intervals of the speed bar, slowest first.
	SpeedPresetsMs []int `yaml:"speed_presets_ms"`
	DefaultSpeed   int   `yaml:"default_speed"`

	PropagationMaxNodes int `yaml:"propagation_max_nodes"`

	AutosaveEverySec int  `yaml:"autosave_every_sec"`
	LogTicks         bool `yaml:"log_ticks"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:  "1.0",
		HostHz:           60,
		SpeedPresetsMs:   []int{500000, 500, 100, 10, 1},
		DefaultSpeed:     2,
		AutosaveEverySec: 300,
	}
}

// Load reads a tuning file. A missing file yields Defaults; fields left out of the
// file keep their default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) applyDefaults() {
	d := Defaults()
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = d.ProtocolVersion
	}
	if t.HostHz <= 0 {
		t.HostHz = d.HostHz
	}
	if len(t.SpeedPresetsMs) == 0 {
		t.SpeedPresetsMs = d.SpeedPresetsMs
	}
	if t.DefaultSpeed <= 0 {
		t.DefaultSpeed = d.DefaultSpeed
	}
}

func (t Tuning) Validate() error {
	for i, ms := range t.SpeedPresetsMs {
		if ms <= 0 {
			return fmt.Errorf("speed_presets_ms[%d] must be positive, got %d", i, ms)
		}
	}
	if t.DefaultSpeed > len(t.SpeedPresetsMs) {
		return fmt.Errorf("default_speed %d out of range 1..%d", t.DefaultSpeed, len(t.SpeedPresetsMs))
	}
	if t.PropagationMaxNodes < 0 {
		return fmt.Errorf("propagation_max_nodes must be >= 0")
	}
	if t.AutosaveEverySec < 0 {
		return fmt.Errorf("autosave_every_sec must be >= 0")
	}
	return nil
}

func (t Tuning) SpeedPresets() []time.Duration {
	out := make([]time.Duration, 0, len(t.SpeedPresetsMs))
	for _, ms := range t.SpeedPresetsMs {
		out = append(out, time.Duration(ms)*time.Millisecond)
	}
	return out
}

func (t Tuning) AutosaveEvery() time.Duration {
	return time.Duration(t.AutosaveEverySec) * time.Second
}
