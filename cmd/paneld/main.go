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

package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/paneldproject/paneld/pkg/config"
	"github.com/paneldproject/paneld/pkg/display"
	"github.com/paneldproject/paneld/pkg/helpers"
	"github.com/paneldproject/paneld/pkg/render"
	"github.com/paneldproject/paneld/pkg/service"
	"github.com/rs/zerolog/log"
)

// stringList collects the values of a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func main() {
	device := flag.String("device", "", "serial device path, e.g. /dev/ttyACM0")
	usbID := flag.String("usb", "", "usb vid:pid to scan for, e.g. 0416:90a1")
	panelFile := flag.String("config", "", "panel definition file (json)")
	var panelDirs stringList
	flag.Var(&panelDirs, "panels", "custom panel directory to include, repeatable")
	configDir := flag.String("config-dir", "", "configuration directory")
	fontDir := flag.String("font-dir", "", "font directory")
	sensorPath := flag.String("sensor-path", "", "sensor value file or directory")
	imagePath := flag.String("image", "", "display a single image and exit")
	displayOn := flag.Bool("on", false, "turn the display on and exit")
	displayOff := flag.Bool("off", false, "turn the display off and exit")
	offAfter := flag.Duration("off-after", 0, "turn the display off after this delay and exit")
	writeOnly := flag.Bool("write-only", false, "skip the init handshake (pipes, captures)")
	simulate := flag.Bool("simulate", false, "run against a simulated panel")
	noCache := flag.Bool("no-cache", false, "disable the frame diff cache")
	offOnExit := flag.Bool("off-on-exit", false, "blank the panel when the daemon stops")
	save := flag.Bool("save", false, "save rendered frames as png files in ./out")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if err := run(runArgs{
		device:     *device,
		usbID:      *usbID,
		panelFile:  *panelFile,
		panelDirs:  panelDirs,
		configDir:  *configDir,
		fontDir:    *fontDir,
		sensorPath: *sensorPath,
		imagePath:  *imagePath,
		displayOn:  *displayOn,
		displayOff: *displayOff,
		offAfter:   *offAfter,
		writeOnly:  *writeOnly,
		simulate:   *simulate,
		noCache:    *noCache,
		offOnExit:  *offOnExit,
		save:       *save,
		debug:      *debug,
	}); err != nil {
		//nolint:forbidigo // usage errors belong on stderr, not in the log
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type runArgs struct {
	device     string
	usbID      string
	panelFile  string
	panelDirs  []string
	configDir  string
	fontDir    string
	sensorPath string
	imagePath  string
	offAfter   time.Duration
	displayOn  bool
	displayOff bool
	writeOnly  bool
	simulate   bool
	noCache    bool
	offOnExit  bool
	save       bool
	debug      bool
}

func run(args runArgs) error {
	configDir := args.configDir
	if configDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("failed to locate config directory: %w", err)
		}
		configDir = filepath.Join(base, "paneld")
	}
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := helpers.InitLogging(filepath.Join(configDir, "logs"), args.debug, nil); err != nil {
		return fmt.Errorf("failed to init logging: %w", err)
	}

	cfg, err := config.NewConfig(configDir, config.BaseDefaults)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	vals := cfg.Values()
	applyOverrides(&vals, args)
	cfg.SetValues(vals)

	screen, err := openScreen(vals, args)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := screen.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close panel port")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	if done, err := runOneShot(screen, args); done {
		return err
	}

	panels, err := config.LoadPanelFile(cfg.PanelFilePath())
	if err != nil {
		return fmt.Errorf("failed to load panel file: %w", err)
	}

	opts := service.Options{OffOnExit: args.offOnExit}
	if args.save {
		opts.SaveRenderDir = "out"
	}
	for _, dir := range args.panelDirs {
		panel, err := config.LoadCustomPanel(dir)
		if err != nil {
			return fmt.Errorf("failed to include custom panel: %w", err)
		}
		panels.IncludeCustomPanel(*panel)
		opts.FontDirs = append(opts.FontDirs, config.CustomPanelFontDir(dir))
	}

	svc, err := service.New(cfg, panels, screen, opts)
	if err != nil {
		return err
	}
	return svc.Run(ctx)
}

func applyOverrides(vals *config.Values, args runArgs) {
	if args.device != "" {
		vals.Device = args.device
	}
	if args.usbID != "" {
		vals.USBID = args.usbID
	}
	if args.panelFile != "" {
		vals.PanelFile = args.panelFile
	}
	if args.fontDir != "" {
		vals.FontDir = args.fontDir
	}
	if args.sensorPath != "" {
		vals.SensorPath = args.sensorPath
	}
	if args.noCache {
		vals.DisableCache = true
	}
	if args.debug {
		vals.DebugLogging = true
	}
}

func openScreen(vals config.Values, args runArgs) (*display.Screen, error) {
	opts := display.Options{
		DisableCache: vals.DisableCache,
		NoInitCheck:  args.writeOnly,
	}

	switch {
	case args.simulate:
		log.Info().Msg("using simulated panel")
		return display.NewScreen(display.NewFakePort(), opts), nil
	case vals.Device != "":
		return display.Open(vals.Device, opts)
	case vals.USBID != "":
		return display.OpenUSBID(vals.USBID, opts)
	default:
		return display.OpenUSB(opts)
	}
}

// runOneShot handles the single-action flags. Reports whether the program
// should exit instead of starting the daemon.
func runOneShot(screen *display.Screen, args runArgs) (bool, error) {
	switch {
	case args.displayOff:
		return true, screen.Off()
	case args.displayOn:
		return true, screen.On()
	case args.imagePath != "":
		return true, showImage(screen, args)
	case args.offAfter > 0:
		time.Sleep(args.offAfter)
		return true, screen.Off()
	default:
		return false, nil
	}
}

func showImage(screen *display.Screen, args runArgs) error {
	size := image.Point{X: display.Width, Y: display.Height}
	img, err := render.LoadImage(args.imagePath, &size)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}

	if err := screen.Init(); err != nil {
		return err
	}
	if err := screen.SendImage(img); err != nil {
		return err
	}

	if args.offAfter > 0 {
		time.Sleep(args.offAfter)
		return screen.Off()
	}
	return nil
}
