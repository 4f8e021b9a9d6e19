// Package imaging renders image variants for the media endpoints.
package imaging

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPreset is returned for a size name outside the fixed enumeration.
var ErrUnknownPreset = errors.New("unknown size preset")

// Preset names a variant size.
type Preset struct {
	// Name is the value of the size query parameter
	Name string

	// Width is the maximum output width in pixels (0 keeps the source size)
	Width int

	// Quality is the JPEG quality used when re-encoding
	Quality int
}

// Size presets.
var (
	Thumbnail = Preset{Name: "thumbnail", Width: 150, Quality: 70}
	Small     = Preset{Name: "small", Width: 320, Quality: 75}
	Medium    = Preset{Name: "medium", Width: 640, Quality: 80}
	Large     = Preset{Name: "large", Width: 1280, Quality: 85}
	Original  = Preset{Name: "original", Width: 0, Quality: 100}
)

// Presets lists every supported preset from smallest to largest.
var Presets = []Preset{Thumbnail, Small, Medium, Large, Original}

// ParsePreset resolves a size name. An empty name selects Original.
func ParsePreset(name string) (Preset, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Original, nil
	}
	for _, p := range Presets {
		if p.Name == name {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
}
