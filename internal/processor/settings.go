package processor

import (
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/Spountil/watermark-gdrive/internal/watermark"
)

const (
	SettingsFileName = "settings.json"
	LogoFileName     = "logo.png"
)

// Settings is the user-editable watermark configuration stored next to the
// watched folder. Missing fields fall back to the compositor defaults.
type Settings struct {
	Colors  ColorSpec `json:"colors"`
	Opacity int       `json:"opacity"`
}

// Options converts the document into compositor options.
func (s Settings) Options() watermark.Options {
	opts := watermark.DefaultOptions()
	if s.Opacity > 0 {
		opts.Opacity = s.Opacity
	}
	if s.Colors.set {
		opts.Color = color.NRGBA{R: s.Colors.R, G: s.Colors.G, B: s.Colors.B}
	}
	return opts
}

// LoadSettings reads and parses the settings document at path.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

// ColorSpec is an RGB triple. The document historically stored it as the
// string "(r, g, b)"; a plain JSON array [r, g, b] is accepted too.
type ColorSpec struct {
	R, G, B uint8
	set     bool
}

func (c *ColorSpec) UnmarshalJSON(data []byte) error {
	var arr []int
	if err := json.Unmarshal(data, &arr); err == nil {
		return c.fromInts(arr)
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("colors: want array or tuple string, got %s", data)
	}
	s = strings.Trim(strings.TrimSpace(s), "()")
	parts := strings.Split(s, ",")
	ints := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("colors: bad component %q", p)
		}
		ints = append(ints, n)
	}
	return c.fromInts(ints)
}

func (c *ColorSpec) fromInts(v []int) error {
	if len(v) != 3 {
		return fmt.Errorf("colors: want 3 components, got %d", len(v))
	}
	for _, n := range v {
		if n < 0 || n > 255 {
			return fmt.Errorf("colors: component %d out of range", n)
		}
	}
	c.R, c.G, c.B = uint8(v[0]), uint8(v[1]), uint8(v[2])
	c.set = true
	return nil
}
