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

// Package service wires the sensor sources, render engine and display
// driver into the long-running panel daemon.
package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"regexp"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paneldproject/paneld/pkg/config"
	"github.com/paneldproject/paneld/pkg/display"
	"github.com/paneldproject/paneld/pkg/render"
	"github.com/paneldproject/paneld/pkg/sensors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Options tunes daemon behavior beyond the config file.
type Options struct {
	// OffOnExit blanks the panel when the service stops.
	OffOnExit bool
	// FontDirs are extra font search directories, one per included custom
	// panel directory.
	FontDirs []string
	// SaveRenderDir saves every rendered frame as a PNG into this
	// directory for inspection. Empty disables saving.
	SaveRenderDir string
}

// Service runs the panel refresh loop and supervises the sensor producers.
type Service struct {
	cfg      *config.Instance
	panels   *config.PanelConfig
	screen   *display.Screen
	renderer *render.Renderer
	store    *sensors.Store
	clock    clockwork.Clock
	opts     Options
}

// New assembles a service from an opened screen and loaded configuration.
func New(cfg *config.Instance, panels *config.PanelConfig, screen *display.Screen, opts Options) (*Service, error) {
	vals := cfg.Values()
	size := image.Point{X: display.Width, Y: display.Height}

	renderer := render.NewRenderer(size, vals.FontDir, vals.ConfigDir)
	for _, dir := range opts.FontDirs {
		renderer.AddFontDir(dir)
	}
	if err := renderer.SetSaveRenderDir(opts.SaveRenderDir); err != nil {
		return nil, err
	}

	return &Service{
		cfg:      cfg,
		panels:   panels,
		screen:   screen,
		renderer: renderer,
		store:    sensors.NewStore(),
		clock:    clockwork.NewRealClock(),
		opts:     opts,
	}, nil
}

// Run starts the sensor producers and drives the panel until ctx is
// cancelled. It blocks for the service lifetime.
func (s *Service) Run(ctx context.Context) error {
	if err := s.screen.Init(); err != nil {
		return fmt.Errorf("failed to init panel: %w", err)
	}

	group, ctx := errgroup.WithContext(ctx)
	cleanup, err := s.startProducers(ctx, group)
	if err != nil {
		return err
	}
	defer cleanup()

	group.Go(func() error {
		return s.refreshLoop(ctx)
	})

	err = group.Wait()

	if s.opts.OffOnExit {
		if offErr := s.screen.Off(); offErr != nil {
			log.Warn().Err(offErr).Msg("failed to blank panel on exit")
		}
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// startProducers launches the configured sensor sources. The returned
// cleanup stops the file watcher; ticker-based producers stop with ctx.
func (s *Service) startProducers(ctx context.Context, group *errgroup.Group) (func(), error) {
	vals := s.cfg.Values()
	cleanup := func() {}

	if vals.SensorPath != "" {
		filters, err := loadFilters(vals.SensorFilterFile)
		if err != nil {
			return cleanup, err
		}
		fileSource := sensors.NewFileSource(vals.SensorPath, s.store, filters)
		if err := fileSource.Start(); err != nil {
			return cleanup, fmt.Errorf("failed to start sensor file source: %w", err)
		}
		cleanup = func() {
			if closeErr := fileSource.Close(); closeErr != nil {
				log.Warn().Err(closeErr).Msg("failed to stop sensor file source")
			}
		}
	}

	if vals.SysInfoIntervalSecs > 0 {
		source := sensors.NewSysInfoSource(s.store, secs(vals.SysInfoIntervalSecs))
		group.Go(func() error {
			return source.Run(ctx)
		})
	}

	for _, scrape := range vals.Prometheus {
		source := sensors.NewPromSource(
			s.store, scrape.URL, scrape.Prefix, secs(scrape.IntervalSecs), scrape.Proto)
		group.Go(func() error {
			return source.Run(ctx)
		})
	}

	return cleanup, nil
}

func loadFilters(path string) ([]*regexp.Regexp, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Warn().Str("path", path).Msg("sensor filter file does not exist")
		return nil, nil
	}
	filters, err := sensors.LoadFilterFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load sensor filters: %w", err)
	}
	return filters, nil
}

func secs(n float64) time.Duration {
	return time.Duration(n * float64(time.Second))
}

// refreshLoop redraws the active panel at the configured refresh interval
// and rotates through active panels at the switch interval.
func (s *Service) refreshLoop(ctx context.Context) error {
	panel := s.panels.NextActivePanel()
	if panel == nil {
		return errors.New("no active panels configured")
	}

	refresh := s.clock.NewTicker(s.panels.RefreshInterval())
	defer refresh.Stop()
	rotate := s.clock.NewTicker(s.panels.SwitchInterval())
	defer rotate.Stop()

	log.Info().
		Str("panel", panel.FriendlyName()).
		Dur("refresh", s.panels.RefreshInterval()).
		Dur("switch", s.panels.SwitchInterval()).
		Msg("starting panel refresh loop")

	if err := s.redraw(panel); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rotate.Chan():
			if next := s.panels.NextActivePanel(); next != nil && next != panel {
				panel = next
				log.Info().Str("panel", panel.FriendlyName()).Msg("switching panel")
			}
			if err := s.redraw(panel); err != nil {
				return err
			}
		case <-refresh.Chan():
			if err := s.redraw(panel); err != nil {
				return err
			}
		}
	}
}

// redraw renders and transmits one frame. Per-sensor render failures are
// already logged by the renderer and do not fail the frame; a transport
// error does, since it means the physical link is unusable.
func (s *Service) redraw(panel *config.Panel) error {
	var frame *image.RGBA
	s.store.View(func(snap sensors.Snapshot) {
		frame, _ = s.renderer.Render(panel, snap)
	})
	if err := s.screen.SendImage(frame); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}
	return nil
}
