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
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensorUnmarshalDefaults(t *testing.T) {
	t.Parallel()

	var s Sensor
	require.NoError(t, json.Unmarshal([]byte(`{"label":"cpu_temp","mode":1}`), &s))

	assert.Equal(t, "cpu_temp", s.Label)
	assert.Equal(t, ModeText, s.Mode)
	assert.InDelta(t, 0, s.MinValue, 1e-9)
	assert.InDelta(t, 100, s.MaxValue, 1e-9)
	assert.Equal(t, 0, s.MinAngle)
	assert.Equal(t, 180, s.MaxAngle)
	assert.Equal(t, 14, s.FontSize)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, s.FontColor)
	assert.Equal(t, AlignLeft, s.TextAlign)
	assert.Equal(t, DigitsAuto, s.IntegerDigits)
	assert.Equal(t, 0, s.DecimalDigits)
}

func TestSensorUnmarshalRoundsFloatCoordinates(t *testing.T) {
	t.Parallel()

	var s Sensor
	require.NoError(t, json.Unmarshal(
		[]byte(`{"label":"x","mode":1,"x":10.6,"y":19.4}`), &s))
	assert.Equal(t, 11, s.X)
	assert.Equal(t, 19, s.Y)
}

func TestSensorUnmarshalFontColorVariants(t *testing.T) {
	t.Parallel()

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}

	tests := []struct {
		raw  string
		want color.RGBA
	}{
		{`{"mode":1,"fontColor":"#FF8000"}`, color.RGBA{R: 255, G: 128, A: 255}},
		{`{"mode":1,"fontColor":-1}`, white},
		{`{"mode":1,"fontColor":""}`, white},
		{`{"mode":1}`, white},
		{`{"mode":1,"fontColor":"garbage"}`, white},
	}

	for _, tt := range tests {
		var s Sensor
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &s), tt.raw)
		assert.Equal(t, tt.want, s.FontColor, tt.raw)
	}
}

func TestSensorUnmarshalFull(t *testing.T) {
	t.Parallel()

	raw := `{
		"mode": 4,
		"label": "fan_speed",
		"unit": "rpm",
		"pic": "needle.png",
		"direction": 2,
		"x": 100, "y": 50,
		"width": 64, "height": 64,
		"minValue": 500, "maxValue": 3000,
		"minAngle": 30, "maxAngle": 330,
		"xz_x": 5, "xz_y": -3,
		"fontFamily": "Arial",
		"fontSize": 18,
		"textAlign": "center",
		"integerDigits": 4,
		"decimalDigits": 1
	}`

	var s Sensor
	require.NoError(t, json.Unmarshal([]byte(raw), &s))

	assert.Equal(t, ModePointer, s.Mode)
	assert.Equal(t, RightToLeft, s.Direction)
	assert.InDelta(t, 500, s.MinValue, 1e-9)
	assert.InDelta(t, 3000, s.MaxValue, 1e-9)
	assert.Equal(t, 30, s.MinAngle)
	assert.Equal(t, 330, s.MaxAngle)
	assert.Equal(t, 5, s.PivotX)
	assert.Equal(t, -3, s.PivotY)
	assert.Equal(t, AlignCenter, s.TextAlign)
	assert.Equal(t, 4, s.IntegerDigits)
	assert.Equal(t, 1, s.DecimalDigits)
}

func TestPanelFriendlyName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "My Panel", (&Panel{Name: "My Panel", ID: "p1"}).FriendlyName())
	assert.Equal(t, "p1", (&Panel{ID: "p1"}).FriendlyName())
	assert.Equal(t, "bg", (&Panel{Img: "themes/bg.png"}).FriendlyName())
	assert.Equal(t, "panel", (&Panel{}).FriendlyName())
}

func TestLoadPanelFile(t *testing.T) {
	t.Parallel()

	raw := `{
		"setup": {"switchTime": "10", "refresh": 0.5},
		"mianban": [2, 1],
		"diy": [
			{"id": "a", "name": "first", "img": "a.png", "sensor": []},
			{"id": "b", "name": "second", "img": "b.png",
			 "sensor": [{"mode": 1, "label": "cpu_temp"}]}
		]
	}`
	path := filepath.Join(t.TempDir(), "panels.json")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := LoadPanelFile(path)
	require.NoError(t, err)

	assert.Len(t, cfg.Panels, 2)
	assert.Equal(t, []int{2, 1}, cfg.ActivePanels)
	assert.Equal(t, 10*time.Second, cfg.SwitchInterval())
	assert.Equal(t, 500*time.Millisecond, cfg.RefreshInterval())
	require.Len(t, cfg.Panels[1].Sensors, 1)
	assert.Equal(t, "cpu_temp", cfg.Panels[1].Sensors[0].Label)
}

func TestLoadCustomPanel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	raw := `{
		"id": "custom", "name": "my panel", "img": "bg.png",
		"sensor": [
			{"mode": 3, "label": "cpu_usage_percent", "pic": "bar.png"},
			{"mode": 1, "label": "cpu_temp", "pic": ""},
			{"mode": 2, "label": "fan", "pic": "gauges/fan.png"}
		]
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, CustomPanelFile), []byte(raw), 0o600))

	panel, err := LoadCustomPanel(dir)
	require.NoError(t, err)

	// Bare filenames resolve into the panel's img subdirectory, nested
	// references against the panel directory itself.
	assert.Equal(t, filepath.Join(dir, "img", "bg.png"), panel.Img)
	require.Len(t, panel.Sensors, 3)
	assert.Equal(t, filepath.Join(dir, "img", "bar.png"), panel.Sensors[0].Pic)
	assert.Empty(t, panel.Sensors[1].Pic)
	assert.Equal(t, filepath.Join(dir, "gauges", "fan.png"), panel.Sensors[2].Pic)

	assert.Equal(t, filepath.Join(dir, "fonts"), CustomPanelFontDir(dir))
}

func TestLoadCustomPanelMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadCustomPanel(t.TempDir())
	assert.Error(t, err)
}

func TestIncludeCustomPanel(t *testing.T) {
	t.Parallel()

	cfg := &PanelConfig{
		ActivePanels: []int{1},
		Panels:       []Panel{{ID: "base"}},
	}
	cfg.IncludeCustomPanel(Panel{ID: "extra"})

	// The included panel joins the rotation after the base panels.
	require.Len(t, cfg.Panels, 2)
	assert.Equal(t, []int{1, 2}, cfg.ActivePanels)

	first := cfg.NextActivePanel()
	require.NotNil(t, first)
	assert.Equal(t, "base", first.ID)
	second := cfg.NextActivePanel()
	require.NotNil(t, second)
	assert.Equal(t, "extra", second.ID)
}

func TestLoadPanelFileMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadPanelFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestIntervalDefaults(t *testing.T) {
	t.Parallel()

	cfg := &PanelConfig{}
	assert.Equal(t, time.Second, cfg.RefreshInterval())
	assert.Equal(t, 5*time.Second, cfg.SwitchInterval())

	cfg.Setup.SwitchTime = "garbage"
	assert.Equal(t, 5*time.Second, cfg.SwitchInterval())
}

func TestNextActivePanelCycles(t *testing.T) {
	t.Parallel()

	cfg := &PanelConfig{
		ActivePanels: []int{2, 1},
		Panels: []Panel{
			{ID: "first"},
			{ID: "second"},
		},
	}

	assert.Equal(t, "second", cfg.NextActivePanel().ID)
	assert.Equal(t, "first", cfg.NextActivePanel().ID)
	assert.Equal(t, "second", cfg.NextActivePanel().ID)
}

func TestNextActivePanelSkipsInvalidIndices(t *testing.T) {
	t.Parallel()

	cfg := &PanelConfig{
		ActivePanels: []int{0, 5, 1},
		Panels:       []Panel{{ID: "only"}},
	}

	assert.Equal(t, "only", cfg.NextActivePanel().ID)
	assert.Equal(t, "only", cfg.NextActivePanel().ID)
}

func TestNextActivePanelEmpty(t *testing.T) {
	t.Parallel()

	cfg := &PanelConfig{ActivePanels: []int{7}}
	assert.Nil(t, cfg.NextActivePanel())
}
