package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// Preset trades accuracy against speed
type Preset string

const (
	PresetAdvanced Preset = "advanced" // 5 minute chunks, large model
	PresetMedium   Preset = "medium"   // 10 minute chunks, small model
	PresetFast     Preset = "fast"     // 15 minute chunks, small model
)

// Presets lists the presets in the order the shell offers them
var Presets = []Preset{PresetAdvanced, PresetMedium, PresetFast}

// ParsePreset accepts a preset name in any case
func ParsePreset(s string) (Preset, error) {
	p := Preset(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PresetAdvanced, PresetMedium, PresetFast:
		return p, nil
	}
	return "", fmt.Errorf("unknown preset %q", s)
}

// ChunkDuration is the segment length used for the preset
func (p Preset) ChunkDuration() time.Duration {
	switch p {
	case PresetAdvanced:
		return 300 * time.Second
	case PresetMedium:
		return 600 * time.Second
	case PresetFast:
		return 900 * time.Second
	}
	return 0
}

// LargeModel reports whether the preset uses the high-accuracy model
func (p Preset) LargeModel() bool {
	return p == PresetAdvanced
}

// Label is the button text for the preset
func (p Preset) Label() string {
	switch p {
	case PresetAdvanced:
		return "Advanced (slow, most accurate)"
	case PresetMedium:
		return "Medium"
	case PresetFast:
		return "Fast (least accurate)"
	}
	return string(p)
}
