package scheduler

import (
	"testing"
	"time"
)

func TestScheduler_FiresOncePerThresholdAndDropsRemainder(t *testing.T) {
	s := New(nil, 2) // 500ms

	if s.Advance(200 * time.Millisecond) {
		t.Fatalf("fired early")
	}
	if s.Advance(200 * time.Millisecond) {
		t.Fatalf("fired early")
	}
	// 400 + 900 = 1300ms: still one pass, and the 800ms excess is discarded.
	if !s.Advance(900 * time.Millisecond) {
		t.Fatalf("expected pass")
	}
	if s.Pending() != 0 {
		t.Fatalf("expected accumulator reset, got %v", s.Pending())
	}
	if s.Advance(499 * time.Millisecond) {
		t.Fatalf("remainder must not carry into the next interval")
	}
	if !s.Advance(time.Millisecond) {
		t.Fatalf("expected pass at exactly the interval")
	}
}

func TestScheduler_ZeroAndNegativeDt(t *testing.T) {
	s := New(nil, 2)
	if s.Advance(0) || s.Advance(-time.Second) {
		t.Fatalf("non-positive dt must not fire")
	}
	if s.Pending() != 0 {
		t.Fatalf("negative dt must not reduce the accumulator")
	}
}

func TestScheduler_Presets(t *testing.T) {
	s := New(nil, 1)
	if s.Interval() != 500*time.Second {
		t.Fatalf("preset 1: %v", s.Interval())
	}
	for i, want := range DefaultPresets {
		if err := s.SetPreset(i + 1); err != nil {
			t.Fatalf("preset %d: %v", i+1, err)
		}
		if s.Interval() != want || s.Preset() != i+1 {
			t.Fatalf("preset %d: interval=%v preset=%d", i+1, s.Interval(), s.Preset())
		}
	}
	if err := s.SetPreset(0); err == nil {
		t.Fatalf("expected error for preset 0")
	}
	if err := s.SetPreset(len(DefaultPresets) + 1); err == nil {
		t.Fatalf("expected error for preset past the end")
	}
	if s.Preset() != len(DefaultPresets) {
		t.Fatalf("failed SetPreset must not change the preset")
	}

	if got := s.Faster(); got != len(DefaultPresets) {
		t.Fatalf("Faster must saturate, got %d", got)
	}
	_ = s.SetPreset(1)
	if got := s.Slower(); got != 1 {
		t.Fatalf("Slower must saturate, got %d", got)
	}
	if got := s.Faster(); got != 2 {
		t.Fatalf("Faster from 1: %d", got)
	}
}

func TestScheduler_SetIntervalClampsAndClearsPreset(t *testing.T) {
	s := New([]time.Duration{time.Second}, 5)
	if s.Preset() != 1 || s.Interval() != time.Second {
		t.Fatalf("out-of-range preset should fall back to 1, got %d %v", s.Preset(), s.Interval())
	}
	s.SetInterval(0)
	if s.Interval() != time.Millisecond || s.Preset() != 0 {
		t.Fatalf("expected clamp to 1ms and preset 0, got %v %d", s.Interval(), s.Preset())
	}
	if !s.Advance(time.Millisecond) {
		t.Fatalf("expected pass")
	}
}
