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

// Package config holds the paneld app settings (TOML) and the vendor panel
// layout format (JSON).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paneldproject/paneld/pkg/helpers/syncutil"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

// CfgFile is the app settings filename inside the config directory.
const CfgFile = "paneld.toml"

// SchemaVersion is bumped on incompatible settings changes.
const SchemaVersion = 1

// PromScrape configures one Prometheus metrics endpoint to poll for sensor
// values.
type PromScrape struct {
	// URL of the metrics endpoint.
	URL string `toml:"url"`
	// Prefix is prepended to every metric label published to the store.
	Prefix string `toml:"prefix,omitempty"`
	// IntervalSecs between scrapes. Default: 5.
	IntervalSecs float64 `toml:"interval,omitempty"`
	// Proto requests the protobuf exposition format instead of text.
	Proto bool `toml:"proto,omitempty"`
}

// Values are the persisted app settings.
type Values struct {
	// Device is an explicit serial device path, e.g. /dev/ttyUSB0. Takes
	// priority over USBID.
	Device string `toml:"device,omitempty"`
	// USBID is a USB UART "vid:pid" pair in hex notation.
	USBID string `toml:"usb_id,omitempty"`
	// PanelFile is the vendor panel JSON file, relative to ConfigDir
	// unless absolute.
	PanelFile string `toml:"panel_file,omitempty"`
	// ConfigDir contains panel files and background/sensor images.
	ConfigDir string `toml:"config_dir,omitempty"`
	// FontDir contains the TTF fonts referenced by panel sensors.
	FontDir string `toml:"font_dir,omitempty"`
	// SensorPath is a key-value sensor file or a directory of them.
	SensorPath string `toml:"sensor_path,omitempty"`
	// SensorFilterFile holds regular expressions for labels to drop.
	SensorFilterFile string `toml:"sensor_filter_file,omitempty"`

	Prometheus []PromScrape `toml:"prometheus,omitempty"`

	// SysInfoIntervalSecs is the system info poll interval. 0 disables
	// the built-in system info sensor source.
	SysInfoIntervalSecs float64 `toml:"sysinfo_interval,omitempty"`

	// DisableCache turns off the frame diff cache and forces full frame
	// transmissions.
	DisableCache bool `toml:"disable_cache,omitempty"`

	ConfigSchema int  `toml:"config_schema"`
	DebugLogging bool `toml:"debug_logging"`
}

// BaseDefaults are the settings used when no config file exists yet.
var BaseDefaults = Values{
	PanelFile:           "panels.json",
	ConfigDir:           "cfg",
	FontDir:             "fonts",
	SensorPath:          filepath.Join("cfg", "sensors"),
	SysInfoIntervalSecs: 2,
	ConfigSchema:        SchemaVersion,
}

// Instance is a thread-safe handle on the loaded app settings.
type Instance struct {
	mu      syncutil.RWMutex
	appPath string
	vals    Values
}

// NewConfig loads the settings file from configDir, creating it with the
// given defaults when missing.
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfg := &Instance{
		appPath: filepath.Join(configDir, CfgFile),
		vals:    defaults,
	}

	if err := cfg.Load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		log.Info().Str("path", cfg.appPath).Msg("no config file found, creating defaults")
		if err := cfg.Save(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Load re-reads the settings file from disk.
func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.appPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var vals Values
	if err := toml.Unmarshal(data, &vals); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", c.appPath, err)
	}
	c.vals = vals

	return nil
}

// Save writes the current settings to disk.
func (c *Instance) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(c.appPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.appPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Values returns a copy of the current settings.
func (c *Instance) Values() Values {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals
}

// SetValues replaces the current settings.
func (c *Instance) SetValues(vals Values) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals = vals
}

// PanelFilePath resolves the panel file relative to the config directory.
func (c *Instance) PanelFilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if filepath.IsAbs(c.vals.PanelFile) {
		return c.vals.PanelFile
	}
	return filepath.Join(c.vals.ConfigDir, c.vals.PanelFile)
}
