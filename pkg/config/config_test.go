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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigCreatesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, CfgFile))
	assert.Equal(t, BaseDefaults, cfg.Values())
}

func TestConfigSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	vals := cfg.Values()
	vals.Device = "/dev/ttyACM3"
	vals.USBID = "0416:90a1"
	vals.SysInfoIntervalSecs = 7
	vals.Prometheus = []PromScrape{{
		URL:          "http://localhost:9100/metrics",
		Prefix:       "node_",
		IntervalSecs: 30,
		Proto:        true,
	}}
	cfg.SetValues(vals)
	require.NoError(t, cfg.Save())

	reloaded, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)
	assert.Equal(t, vals, reloaded.Values())
}

func TestConfigLoadRejectsInvalidToml(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CfgFile),
		[]byte("device = [unclosed"), 0o600))

	_, err := NewConfig(dir, BaseDefaults)
	assert.Error(t, err)
}

func TestPanelFilePathResolution(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	vals := cfg.Values()
	vals.ConfigDir = "/etc/paneld"
	vals.PanelFile = "panels.json"
	cfg.SetValues(vals)
	assert.Equal(t, filepath.Join("/etc/paneld", "panels.json"), cfg.PanelFilePath())

	vals.PanelFile = "/abs/other.json"
	cfg.SetValues(vals)
	assert.Equal(t, "/abs/other.json", cfg.PanelFilePath())
}
