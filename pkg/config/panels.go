// Paneld
// Copyright (c) 2026 The Paneld Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Paneld.
//
// Paneld is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Paneld is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Paneld.  If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"encoding/json"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// SensorMode selects the drawing algorithm for a sensor element. The numeric
// values match the vendor panel JSON format.
type SensorMode int

const (
	// ModeText prints a formatted value string.
	ModeText SensorMode = 1
	// ModeFan draws a circular/arc gauge cut from a source image.
	ModeFan SensorMode = 2
	// ModeProgress draws a directional bar cut from a source image.
	ModeProgress SensorMode = 3
	// ModePointer draws a rotating dial needle image.
	ModePointer SensorMode = 4
)

func (m SensorMode) String() string {
	switch m {
	case ModeText:
		return "text"
	case ModeFan:
		return "fan"
	case ModeProgress:
		return "progress"
	case ModePointer:
		return "pointer"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// Direction orients a sensor graphic. For Fan and Pointer sensors,
// LeftToRight means clockwise and RightToLeft counter-clockwise.
type Direction int

const (
	LeftToRight Direction = 1
	RightToLeft Direction = 2
	TopToBottom Direction = 3
	BottomToTop Direction = 4
)

func (d Direction) String() string {
	switch d {
	case LeftToRight:
		return "left-to-right"
	case RightToLeft:
		return "right-to-left"
	case TopToBottom:
		return "top-to-bottom"
	case BottomToTop:
		return "bottom-to-top"
	default:
		return "direction(" + strconv.Itoa(int(d)) + ")"
	}
}

// TextAlign positions a text sensor within its (x, width) box.
type TextAlign string

const (
	AlignLeft   TextAlign = "left"
	AlignCenter TextAlign = "center"
	AlignRight  TextAlign = "right"
)

// DigitsAuto marks an unset integer or decimal digit count in the vendor
// format.
const DigitsAuto = -1

// Sensor is one visual element on a panel, bound to a snapshot label.
type Sensor struct {
	// Label is the snapshot key, or a synthetic DATE_* pattern.
	Label string
	// Name and ItemName are display names from the panel editor.
	Name     string
	ItemName string
	// Unit is the suffix appended to formatted values, overridable through
	// the "{label}#unit" snapshot convention.
	Unit string
	// Pic is the source image for Fan, Progress and Pointer sensors.
	Pic string

	Mode      SensorMode
	Direction Direction // 0 when unset, renderers default to LeftToRight

	X, Y          int
	Width, Height int

	MinValue, MaxValue float64
	MinAngle, MaxAngle int

	// PivotX and PivotY offset the placement of a rotated Pointer image.
	PivotX, PivotY int

	FontFamily string
	FontSize   int
	FontColor  color.RGBA
	TextAlign  TextAlign

	// IntegerDigits is -1 for natural width, 0 to suppress the integer
	// part, or a fixed digit count.
	IntegerDigits int
	// DecimalDigits is the number of decimal places, -1 or 0 for none.
	DecimalDigits int
}

// sensorJSON mirrors the vendor file field types before normalization:
// coordinates are floats, unset numbers are -1 and the font color is either
// the number -1 or a "#RRGGBB" string.
type sensorJSON struct {
	Mode          SensorMode      `json:"mode"`
	Name          string          `json:"name"`
	ItemName      string          `json:"itemName"`
	Label         string          `json:"label"`
	Unit          string          `json:"unit"`
	Pic           string          `json:"pic"`
	Direction     *Direction      `json:"direction"`
	X             float64         `json:"x"`
	Y             float64         `json:"y"`
	Width         *int            `json:"width"`
	Height        *int            `json:"height"`
	MinValue      *float64        `json:"minValue"`
	MaxValue      *float64        `json:"maxValue"`
	MinAngle      *int            `json:"minAngle"`
	MaxAngle      *int            `json:"maxAngle"`
	PivotX        *int            `json:"xz_x"`
	PivotY        *int            `json:"xz_y"`
	FontFamily    string          `json:"fontFamily"`
	FontSize      *int            `json:"fontSize"`
	FontColor     json.RawMessage `json:"fontColor"`
	TextAlign     string          `json:"textAlign"`
	IntegerDigits *int            `json:"integerDigits"`
	DecimalDigits *int            `json:"decimalDigits"`
}

// UnmarshalJSON decodes a sensor from the vendor format, applying its
// defaulting rules.
func (s *Sensor) UnmarshalJSON(data []byte) error {
	var raw sensorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode sensor: %w", err)
	}

	s.Label = raw.Label
	s.Name = raw.Name
	s.ItemName = raw.ItemName
	s.Unit = raw.Unit
	s.Pic = raw.Pic
	s.Mode = raw.Mode

	if raw.Direction != nil {
		s.Direction = *raw.Direction
	}

	s.X = int(math.Round(raw.X))
	s.Y = int(math.Round(raw.Y))
	s.Width = intOrZero(raw.Width)
	s.Height = intOrZero(raw.Height)

	s.MinValue = 0
	s.MaxValue = 100
	if raw.MinValue != nil {
		s.MinValue = *raw.MinValue
	}
	if raw.MaxValue != nil {
		s.MaxValue = *raw.MaxValue
	}

	s.MinAngle = 0
	s.MaxAngle = 180
	if raw.MinAngle != nil {
		s.MinAngle = *raw.MinAngle
	}
	if raw.MaxAngle != nil {
		s.MaxAngle = *raw.MaxAngle
	}

	s.PivotX = intOrZero(raw.PivotX)
	s.PivotY = intOrZero(raw.PivotY)

	s.FontFamily = raw.FontFamily
	s.FontSize = 14
	if raw.FontSize != nil && *raw.FontSize > 0 {
		s.FontSize = *raw.FontSize
	}

	fontColor, err := parseFontColor(raw.FontColor)
	if err != nil {
		return err
	}
	s.FontColor = fontColor

	s.TextAlign = AlignLeft
	switch TextAlign(raw.TextAlign) {
	case AlignCenter:
		s.TextAlign = AlignCenter
	case AlignRight:
		s.TextAlign = AlignRight
	case AlignLeft, "":
	default:
		log.Warn().Str("textAlign", raw.TextAlign).Msg("unknown text alignment, using left")
	}

	s.IntegerDigits = DigitsAuto
	if raw.IntegerDigits != nil {
		s.IntegerDigits = *raw.IntegerDigits
	}
	s.DecimalDigits = 0
	if raw.DecimalDigits != nil && *raw.DecimalDigits > 0 {
		s.DecimalDigits = *raw.DecimalDigits
	}

	return nil
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

var white = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// parseFontColor accepts -1, an empty string, or "#RRGGBB". Anything invalid
// falls back to white so a bad color never kills a panel.
func parseFontColor(raw json.RawMessage) (color.RGBA, error) {
	if len(raw) == 0 {
		return white, nil
	}

	var num int
	if err := json.Unmarshal(raw, &num); err == nil {
		if num != -1 {
			log.Warn().Int("fontColor", num).Msg("unexpected numeric font color, using white")
		}
		return white, nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return white, fmt.Errorf("invalid font color value %s: %w", raw, err)
	}
	str = strings.TrimSpace(str)
	if str == "" || str == "-1" {
		return white, nil
	}
	if len(str) != 7 || !strings.HasPrefix(str, "#") {
		log.Warn().Str("fontColor", str).Msg("invalid font color, using white")
		return white, nil
	}

	r, err1 := strconv.ParseUint(str[1:3], 16, 8)
	g, err2 := strconv.ParseUint(str[3:5], 16, 8)
	b, err3 := strconv.ParseUint(str[5:7], 16, 8)
	if err1 != nil || err2 != nil || err3 != nil {
		log.Warn().Str("fontColor", str).Msg("invalid font color, using white")
		return white, nil
	}

	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}, nil
}

// Panel is a named screen layout: a background image plus ordered sensors.
type Panel struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Img     string   `json:"img"`
	Sensors []Sensor `json:"sensor"`
}

// FriendlyName returns the best available human-readable panel name.
func (p *Panel) FriendlyName() string {
	if p.Name != "" {
		return p.Name
	}
	if p.ID != "" {
		return p.ID
	}
	if p.Img != "" {
		base := filepath.Base(p.Img)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return "panel"
}

// Setup holds the global timing settings of a panel file.
type Setup struct {
	// SwitchTime is the time between panel switches in seconds, stored as
	// a string in the vendor format.
	SwitchTime string `json:"switchTime"`
	// Refresh is the panel redraw interval in seconds.
	Refresh float64 `json:"refresh"`
}

// PanelConfig is the deserialized vendor panel JSON file: timing setup, a
// 1-based list of active panel indices and the panel definitions.
type PanelConfig struct {
	Setup        Setup   `json:"setup"`
	ActivePanels []int   `json:"mianban"`
	Panels       []Panel `json:"diy"`

	activeIdx int
}

// LoadPanelFile reads and decodes a vendor panel JSON file.
func LoadPanelFile(path string) (*PanelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read panel file: %w", err)
	}

	var cfg PanelConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode panel file %s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Int("panels", len(cfg.Panels)).
		Ints("active", cfg.ActivePanels).
		Msg("loaded panel file")

	return &cfg, nil
}

// CustomPanelFile is the panel definition filename inside a custom panel
// directory.
const CustomPanelFile = "panel.json"

// LoadCustomPanel reads a single panel definition from a custom panel
// directory. The directory holds panel.json plus img and fonts
// subdirectories; relative image references are resolved against them so the
// panel can be merged into a base configuration rooted elsewhere.
func LoadCustomPanel(dir string) (*Panel, error) {
	data, err := os.ReadFile(filepath.Join(dir, CustomPanelFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read custom panel: %w", err)
	}

	var panel Panel
	if err := json.Unmarshal(data, &panel); err != nil {
		return nil, fmt.Errorf("failed to decode custom panel %s: %w", dir, err)
	}

	panel.Img = resolveCustomImage(dir, panel.Img)
	for i := range panel.Sensors {
		panel.Sensors[i].Pic = resolveCustomImage(dir, panel.Sensors[i].Pic)
	}

	log.Info().Str("dir", dir).Str("panel", panel.FriendlyName()).
		Msg("loaded custom panel")

	return &panel, nil
}

// CustomPanelFontDir returns the font subdirectory of a custom panel
// directory.
func CustomPanelFontDir(dir string) string {
	return filepath.Join(dir, "fonts")
}

// resolveCustomImage turns a panel-local image reference into an absolute
// path. Bare filenames live in the img subdirectory; references with path
// separators are taken relative to the panel directory itself.
func resolveCustomImage(dir, ref string) string {
	if ref == "" || filepath.IsAbs(ref) {
		return ref
	}
	if strings.ContainsRune(ref, '/') || strings.ContainsRune(ref, os.PathSeparator) {
		return filepath.Join(dir, ref)
	}
	return filepath.Join(dir, "img", ref)
}

// IncludeCustomPanel appends a panel to the configuration and activates it,
// so it takes part in the panel switching rotation.
func (c *PanelConfig) IncludeCustomPanel(panel Panel) {
	c.Panels = append(c.Panels, panel)
	c.ActivePanels = append(c.ActivePanels, len(c.Panels))
}

// RefreshInterval returns the panel redraw interval. Defaults to 1s.
func (c *PanelConfig) RefreshInterval() time.Duration {
	if c.Setup.Refresh <= 0 {
		return time.Second
	}
	return time.Duration(c.Setup.Refresh * float64(time.Second))
}

// SwitchInterval returns the time between panel switches. Defaults to 5s.
func (c *PanelConfig) SwitchInterval() time.Duration {
	secs, err := strconv.ParseFloat(strings.TrimSpace(c.Setup.SwitchTime), 64)
	if err != nil || secs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(secs * float64(time.Second))
}

// NextActivePanel cycles through the active panel list, skipping invalid
// 1-based indices. Returns nil if no valid active panel exists.
func (c *PanelConfig) NextActivePanel() *Panel {
	valid := make([]int, 0, len(c.ActivePanels))
	for _, active := range c.ActivePanels {
		if active <= 0 || active > len(c.Panels) {
			log.Warn().Int("panel", active).Msg("ignoring invalid active panel")
			continue
		}
		valid = append(valid, active)
	}
	if len(valid) == 0 {
		return nil
	}

	c.activeIdx++
	if c.activeIdx > len(valid) {
		c.activeIdx = 1
	}

	return &c.Panels[valid[c.activeIdx-1]-1]
}
