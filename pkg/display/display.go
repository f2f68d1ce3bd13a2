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

// Package display drives the USB-serial LCD panel. It implements the
// chunked binary wire protocol the panel firmware speaks and keeps a frame
// cache so unchanged regions are not resent.
package display

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	// Width and Height are the panel's native resolution.
	Width  = 960
	Height = 376

	// BaudRate is the only rate the panel firmware accepts.
	BaudRate = 1_500_000

	// VendorID and ProductID identify the panel's USB-serial bridge.
	VendorID  = "0416"
	ProductID = "90A1"

	// FrameSize is the byte length of one full RGB565 frame.
	FrameSize = Width * Height * 2

	// chunkSize is the firmware's maximum pixel payload per packet.
	chunkSize = 47

	// writeAttempts bounds serial write retries.
	writeAttempts = 3

	// initMarker is the identification byte the panel answers with after
	// the port is opened.
	initMarker = 'A'
)

var (
	cmdDisplayOn  = []byte{0xAA, 0x55, 0xAA, 0x55, 0x0B, 0x00, 0x00, 0x00}
	cmdDisplayOff = []byte{0xAA, 0x55, 0xAA, 0x55, 0x0A, 0x00, 0x00, 0x00}
	cmdFrameStart = []byte{
		0xAA, 0x55, 0xAA, 0x55, 0x05, 0x00, 0x00, 0x00,
		0x04, 0x00, 0x0F, 0x2F, 0x00, 0x04, 0x0B, 0x00,
	}
	cmdFrameEnd = []byte{0xAA, 0x55, 0xAA, 0x55, 0x06, 0x00, 0x00, 0x00}
	chunkHeader = []byte{0xAA, 0x55, 0xAA, 0x55, 0x08, 0x00, 0x00, 0x00}
)

var (
	// ErrNoDevice is returned when no matching USB-serial device is found.
	ErrNoDevice = errors.New("no panel device found")
	// ErrInitFailed is returned when the panel does not identify itself.
	ErrInitFailed = errors.New("panel did not respond to init")
	// ErrWriteFailed is returned when a serial write keeps failing after
	// retries.
	ErrWriteFailed = errors.New("serial write failed")
	// ErrFrameSize is returned when a pixel buffer is not exactly one frame.
	ErrFrameSize = errors.New("invalid frame size")
)

// Port is the serial surface the driver needs. go.bug.st/serial ports
// satisfy it, as does the built-in simulator.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadTimeout(t time.Duration) error
	Drain() error
}

// Options tunes screen behavior.
type Options struct {
	// ReadTimeout applies to init handshake reads. Defaults to 3s.
	ReadTimeout time.Duration
	// InitSettle is how long the firmware gets to boot before the
	// handshake read. Defaults to 1s.
	InitSettle time.Duration
	// DisableCache forces every chunk of every frame to be sent.
	DisableCache bool
	// NoInitCheck skips the identification handshake. Useful for pipes
	// and captures that never answer.
	NoInitCheck bool
}

func (o *Options) fillDefaults() {
	if o.ReadTimeout == 0 {
		o.ReadTimeout = 3 * time.Second
	}
	if o.InitSettle == 0 {
		o.InitSettle = time.Second
	}
}

// Screen is a connected panel.
type Screen struct {
	port  Port
	cache []byte
	opts  Options
}

// NewScreen wraps an already opened port. Callers normally use Open or
// OpenUSB instead.
func NewScreen(port Port, opts Options) *Screen {
	opts.fillDefaults()
	return &Screen{port: port, opts: opts}
}

// Open connects to the panel on a specific serial device path.
func Open(device string, opts Options) (*Screen, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: BaudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", device, err)
	}
	log.Debug().Str("device", device).Msg("opened panel serial port")
	return NewScreen(port, opts), nil
}

// OpenUSB scans serial ports for the panel's USB IDs and connects to the
// first match.
func OpenUSB(opts Options) (*Screen, error) {
	return OpenUSBID(VendorID+":"+ProductID, opts)
}

// OpenUSBID connects to the first serial port whose USB IDs match the given
// "VID:PID" hex pair, e.g. "0416:90a1".
func OpenUSBID(usbid string, opts Options) (*Screen, error) {
	vid, pid, ok := strings.Cut(usbid, ":")
	if !ok {
		return nil, fmt.Errorf("invalid usb id %q, expected vid:pid", usbid)
	}

	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		if !strings.EqualFold(p.VID, vid) || !strings.EqualFold(p.PID, pid) {
			continue
		}
		log.Info().
			Str("device", p.Name).
			Str("vid", p.VID).
			Str("pid", p.PID).
			Msg("found panel device")
		return Open(p.Name, opts)
	}

	return nil, fmt.Errorf("%w: usb %s", ErrNoDevice, usbid)
}

// Init powers the panel on, waits for the firmware to settle and checks
// that it identifies itself. Must be called once before sending frames.
func (s *Screen) Init() error {
	if err := s.send(cmdDisplayOn); err != nil {
		return err
	}

	if s.opts.NoInitCheck {
		return nil
	}
	time.Sleep(s.opts.InitSettle)

	if err := s.port.SetReadTimeout(s.opts.ReadTimeout); err != nil {
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	buf := make([]byte, 64)
	n, err := s.port.Read(buf)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInitFailed, err)
	}
	if !bytes.ContainsRune(buf[:n], initMarker) {
		return fmt.Errorf("%w: got %d unexpected bytes", ErrInitFailed, n)
	}

	log.Debug().Msg("panel identified")
	return nil
}

// On turns the backlight and panel output on.
func (s *Screen) On() error {
	return s.send(cmdDisplayOn)
}

// Off blanks the panel and turns the backlight off.
func (s *Screen) Off() error {
	return s.send(cmdDisplayOff)
}

// Close closes the underlying serial port. The panel keeps its last state.
func (s *Screen) Close() error {
	return s.port.Close()
}

// SetCacheEnabled toggles the frame diff cache. Disabling also drops the
// cached frame so a later re-enable starts clean.
func (s *Screen) SetCacheEnabled(enabled bool) {
	s.opts.DisableCache = !enabled
	if !enabled {
		s.cache = nil
	}
}

// SendImage converts img to the wire pixel format and sends it as a frame.
// The image must match the panel resolution.
func (s *Screen) SendImage(img image.Image) error {
	b := img.Bounds()
	if b.Dx() != Width || b.Dy() != Height {
		return fmt.Errorf("%w: image is %dx%d, want %dx%d",
			ErrFrameSize, b.Dx(), b.Dy(), Width, Height)
	}
	return s.SendFrame(ToRGB565LE(img))
}

// SendFrame sends one full RGB565 frame. When the diff cache holds a
// previous frame, chunks whose bytes are unchanged are skipped.
func (s *Screen) SendFrame(pixels []byte) error {
	if len(pixels) != FrameSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrFrameSize, len(pixels), FrameSize)
	}

	start := time.Now()
	useCache := !s.opts.DisableCache && len(s.cache) == FrameSize

	if err := s.send(cmdFrameStart); err != nil {
		return err
	}

	sent := 0
	packet := make([]byte, 0, len(chunkHeader)+4+chunkSize)
	for offset := 0; offset < FrameSize; offset += chunkSize {
		end := min(offset+chunkSize, FrameSize)
		chunk := pixels[offset:end]

		if useCache && bytes.Equal(chunk, s.cache[offset:end]) {
			continue
		}

		packet = packet[:0]
		packet = append(packet, chunkHeader...)
		packet = binary.LittleEndian.AppendUint32(packet, uint32(offset))
		packet = append(packet, chunk...)
		if err := s.send(packet); err != nil {
			// Cache is now unreliable, resend everything next time.
			s.cache = nil
			return err
		}
		sent++
	}

	if err := s.send(cmdFrameEnd); err != nil {
		s.cache = nil
		return err
	}

	if !s.opts.DisableCache {
		if len(s.cache) != FrameSize {
			s.cache = make([]byte, FrameSize)
		}
		copy(s.cache, pixels)
	}

	log.Debug().
		Int("chunks", sent).
		Dur("took", time.Since(start)).
		Msg("sent frame")

	return nil
}

// send writes data fully, retrying a bounded number of times.
func (s *Screen) send(data []byte) error {
	var lastErr error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		if _, err := s.port.Write(data); err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt).Msg("serial write failed")
			continue
		}
		if err := s.port.Drain(); err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt).Msg("serial drain failed")
			continue
		}
		return nil
	}
	return fmt.Errorf("%w after %d attempts: %s", ErrWriteFailed, writeAttempts, lastErr)
}
