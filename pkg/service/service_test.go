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

package service

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paneldproject/paneld/pkg/config"
	"github.com/paneldproject/paneld/pkg/display"
	"github.com/paneldproject/paneld/pkg/render"
	"github.com/paneldproject/paneld/pkg/sensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService(t *testing.T, opts Options) (*Service, *display.FakePort) {
	t.Helper()

	port := display.NewFakePort()
	screen := display.NewScreen(port, display.Options{
		ReadTimeout: 10 * time.Millisecond,
		InitSettle:  time.Nanosecond,
	})

	cfg, err := config.NewConfig(t.TempDir(), config.Values{})
	require.NoError(t, err)

	panels := &config.PanelConfig{
		ActivePanels: []int{1},
		Panels:       []config.Panel{{ID: "main"}},
	}

	dir := t.TempDir()
	return &Service{
		cfg:      cfg,
		panels:   panels,
		screen:   screen,
		renderer: render.NewRenderer(image.Point{X: display.Width, Y: display.Height}, dir, dir),
		store:    sensors.NewStore(),
		clock:    clockwork.NewFakeClock(),
		opts:     opts,
	}, port
}

func TestNewAppliesRenderOptions(t *testing.T) {
	t.Parallel()

	cfg, err := config.NewConfig(t.TempDir(), config.Values{})
	require.NoError(t, err)
	screen := display.NewScreen(display.NewFakePort(), display.Options{})

	out := filepath.Join(t.TempDir(), "frames")
	svc, err := New(cfg, &config.PanelConfig{}, screen, Options{
		FontDirs:      []string{t.TempDir()},
		SaveRenderDir: out,
	})
	require.NoError(t, err)
	require.NotNil(t, svc)

	// The render output directory is created eagerly.
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRedrawSendsFullFrame(t *testing.T) {
	t.Parallel()

	svc, port := testService(t, Options{})
	panel := svc.panels.NextActivePanel()
	require.NotNil(t, panel)

	require.NoError(t, svc.redraw(panel))
	// Frame start, chunk packets for the whole frame, frame end.
	assert.Greater(t, port.BytesWritten(), display.FrameSize)
}

// deadPort fails every write, simulating an unplugged panel.
type deadPort struct {
	display.FakePort
}

func (p *deadPort) Write([]byte) (int, error) {
	return 0, errors.New("input/output error")
}

func TestRefreshLoopPropagatesTransportErrors(t *testing.T) {
	t.Parallel()

	svc, _ := testService(t, Options{})
	svc.screen = display.NewScreen(&deadPort{}, display.Options{
		ReadTimeout: 10 * time.Millisecond,
		InitSettle:  time.Nanosecond,
	})

	// The first redraw exhausts the driver's write retries; the loop must
	// surface that instead of spinning on a dead link.
	err := svc.refreshLoop(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, display.ErrWriteFailed)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	svc, port := testService(t, Options{OffOnExit: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Run(ctx)
	}()

	// Wait for the initial frame before shutting down.
	require.Eventually(t, func() bool {
		return port.BytesWritten() > display.FrameSize
	}, 5*time.Second, 5*time.Millisecond)

	written := port.BytesWritten()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop on cancel")
	}

	// The blank command went out after the frame.
	assert.Greater(t, port.BytesWritten(), written)
}

func TestRefreshLoopFailsWithoutActivePanels(t *testing.T) {
	t.Parallel()

	svc, _ := testService(t, Options{})
	svc.panels = &config.PanelConfig{}

	err := svc.refreshLoop(context.Background())
	assert.Error(t, err)
}

func TestLoadFiltersMissingFileIsTolerated(t *testing.T) {
	t.Parallel()

	filters, err := loadFilters("")
	require.NoError(t, err)
	assert.Nil(t, filters)

	filters, err = loadFilters("/nonexistent/filters.txt")
	require.NoError(t, err)
	assert.Nil(t, filters)
}
