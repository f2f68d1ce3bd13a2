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

// Package render turns a panel definition plus a sensor value snapshot into
// a composited RGBA frame for the display.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paneldproject/paneld/pkg/config"
	"github.com/paneldproject/paneld/pkg/sensors"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

var (
	// ErrNoPicture is returned when a Fan, Progress or Pointer sensor has
	// no picture configured.
	ErrNoPicture = errors.New("no picture specified")
	// ErrInvalidDirection is returned when a sensor direction is not valid
	// for its mode.
	ErrInvalidDirection = errors.New("invalid direction")
	// ErrInvalidValue is returned when a gauge value does not parse as a
	// number.
	ErrInvalidValue = errors.New("value is not a number")
	// ErrPictureLoad is returned when a sensor picture cannot be loaded.
	ErrPictureLoad = errors.New("failed to load picture")
)

// DefaultFontScale is the empirically tuned point-to-pixel factor that
// matches the vendor renderer's text sizing. Treat as a calibration constant,
// not a physical law.
const DefaultFontScale = 0.75

// baselineFactor compensates the vertical padding the vendor renderer bakes
// into its text placement.
const baselineFactor = 1.3333

// SensorError records a single failed sensor within an otherwise successful
// render pass.
type SensorError struct {
	Err   error
	Label string
	Mode  config.SensorMode
}

func (e SensorError) Error() string {
	return fmt.Sprintf("sensor %q (%s): %v", e.Label, e.Mode, e.Err)
}

func (e SensorError) Unwrap() error {
	return e.Err
}

// Renderer renders panel frames. Fonts and images are cached across calls;
// a Renderer instance must not be shared between concurrently driven
// displays.
type Renderer struct {
	// FontScale converts configured point sizes to pixel sizes.
	FontScale float64

	size      image.Point
	fonts     *FontCache
	images    *ImageCache
	layers    map[config.SensorMode]*image.RGBA
	clock     clockwork.Clock
	saveDir   string
	imgSuffix string
}

// NewRenderer creates a renderer for the given display size, loading fonts
// from fontDir and panel images from imgDir.
func NewRenderer(size image.Point, fontDir, imgDir string) *Renderer {
	return &Renderer{
		FontScale: DefaultFontScale,
		size:      size,
		fonts:     NewFontCache(fontDir),
		images:    NewImageCache(imgDir),
		layers:    make(map[config.SensorMode]*image.RGBA),
		clock:     clockwork.NewRealClock(),
	}
}

// AddFontDir appends a font search directory, used for custom panel
// directories that ship their own fonts.
func (r *Renderer) AddFontDir(dir string) {
	r.fonts.AddDir(dir)
}

// SetSaveRenderDir enables saving every rendered frame as a PNG into dir
// for inspection. An empty dir disables saving.
func (r *Renderer) SetSaveRenderDir(dir string) error {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create render output directory: %w", err)
		}
	}
	r.saveDir = dir
	return nil
}

// SetImageSuffix sets a filename suffix for saved render images, letting
// callers keep one file per panel or per frame.
func (r *Renderer) SetImageSuffix(suffix string) {
	r.imgSuffix = suffix
}

// ClearCaches drops all cached fonts and images, forcing reloads on the
// next render.
func (r *Renderer) ClearCaches() {
	r.fonts.Clear()
	r.images.Clear()
}

// Render draws all panel sensors with the given snapshot values and returns
// the final frame. A failing sensor is logged and reported but never aborts
// the remaining sensors; the frame is always returned.
func (r *Renderer) Render(panel *config.Panel, snap sensors.Snapshot) (*image.RGBA, []SensorError) {
	log.Debug().Str("panel", panel.FriendlyName()).Msg("rendering panel")
	start := time.Now()

	var frame *image.RGBA
	if panel.Img != "" {
		if bg := r.images.Get(panel.Img, &r.size); bg != nil {
			frame = cloneRGBA(bg)
		}
	}
	if frame == nil {
		frame = image.NewRGBA(image.Rect(0, 0, r.size.X, r.size.Y))
	}

	clear(r.layers)
	now := r.clock.Now()

	var failed []SensorError
	for i := range panel.Sensors {
		s := &panel.Sensors[i]

		value, ok := snap.Value(s.Label)
		if !ok {
			// Date/time labels are computed locally, regardless of
			// snapshot contents.
			value, ok = sensors.DateTimeValue(s.Label, now)
		}
		if !ok {
			continue
		}
		unit := snap.Unit(s.Label, s.Unit)

		if err := r.renderSensor(frame, s, value, unit); err != nil {
			serr := SensorError{Label: s.Label, Mode: s.Mode, Err: err}
			log.Warn().Err(err).Str("label", s.Label).Stringer("mode", s.Mode).
				Msg("failed to render sensor")
			failed = append(failed, serr)
		}
	}

	r.compositeLayers(frame)

	if r.saveDir != "" {
		r.saveRenderImage(panel, frame)
	}

	log.Debug().
		Str("panel", panel.FriendlyName()).
		Dur("took", time.Since(start)).
		Int("failed_sensors", len(failed)).
		Msg("rendered panel")

	return frame, failed
}

// saveRenderImage dumps the final frame as a PNG. A failed save is logged,
// never fatal.
func (r *Renderer) saveRenderImage(panel *config.Panel, frame *image.RGBA) {
	name := fmt.Sprintf("render_%s%s.png", panel.FriendlyName(), r.imgSuffix)
	path := filepath.Join(r.saveDir, name)

	f, err := os.Create(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to save rendered panel image")
		return
	}
	if err := png.Encode(f, frame); err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to encode rendered panel image")
	}
	if err := f.Close(); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to close rendered panel image")
	}
}

func (r *Renderer) renderSensor(frame *image.RGBA, s *config.Sensor, value, unit string) error {
	direction := s.Direction
	if direction == 0 {
		direction = config.LeftToRight
	}

	switch s.Mode {
	case config.ModeText:
		return r.renderText(frame, s, value, unit)
	case config.ModeFan:
		return r.renderFan(s, value, direction)
	case config.ModeProgress:
		return r.renderProgress(s, value, direction)
	case config.ModePointer:
		return r.renderPointer(s, value, direction)
	default:
		return fmt.Errorf("unknown sensor mode %d", s.Mode)
	}
}

func (r *Renderer) renderText(frame *image.RGBA, s *config.Sensor, value, unit string) error {
	size := float64(s.FontSize) * r.FontScale
	face, err := r.fonts.Face(s.FontFamily, size)
	if err != nil {
		return err
	}

	text := FormatValue(value, s.IntegerDigits, s.DecimalDigits, unit)
	textWidth := font.MeasureString(face, text).Round()
	metrics := face.Metrics()
	textHeight := (metrics.Ascent + metrics.Descent).Round()

	x := s.X
	switch s.TextAlign {
	case config.AlignCenter:
		x = s.X + s.Width/2 - textWidth/2
	case config.AlignRight:
		x = s.X + s.Width - textWidth
	case config.AlignLeft:
	}
	top := s.Y + s.Height/2 - int(float64(textHeight)*baselineFactor/2)

	d := font.Drawer{
		Dst:  frame,
		Src:  image.NewUniform(s.FontColor),
		Face: face,
		Dot:  fixed.P(x, top+metrics.Ascent.Round()),
	}
	d.DrawString(text)

	return nil
}

func (r *Renderer) renderFan(s *config.Sensor, value string, direction config.Direction) error {
	if direction != config.LeftToRight && direction != config.RightToLeft {
		return fmt.Errorf("%w: %s for fan sensor", ErrInvalidDirection, direction)
	}
	pic, err := r.sensorPicture(s, nil)
	if err != nil {
		return err
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidValue, value)
	}
	// At or below the minimum the gauge is empty.
	if val <= s.MinValue {
		return nil
	}

	progress := progressRatio(val, s.MinValue, s.MaxValue)
	start, end := fanAngles(direction, float64(s.MinAngle), float64(s.MaxAngle), progress)
	drawPieSlice(r.layer(config.ModeFan), pic, s.X, s.Y, start, end)

	return nil
}

func (r *Renderer) renderProgress(s *config.Sensor, value string, direction config.Direction) error {
	pic, err := r.sensorPicture(s, nil)
	if err != nil {
		return err
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidValue, value)
	}
	progress := progressRatio(val, s.MinValue, s.MaxValue)

	masked := maskProgress(pic, progress, direction)
	pasteImage(r.layer(config.ModeProgress), masked, s.X, s.Y)

	return nil
}

func (r *Renderer) renderPointer(s *config.Sensor, value string, direction config.Direction) error {
	if direction != config.LeftToRight && direction != config.RightToLeft {
		return fmt.Errorf("%w: %s for pointer sensor", ErrInvalidDirection, direction)
	}

	var size *image.Point
	if s.Width > 0 && s.Height > 0 {
		size = &image.Point{X: s.Width, Y: s.Height}
	}
	pic, err := r.sensorPicture(s, size)
	if err != nil {
		return err
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidValue, value)
	}
	progress := progressRatio(val, s.MinValue, s.MaxValue)

	minAngle := float64(s.MinAngle)
	maxAngle := float64(s.MaxAngle)
	if direction == config.RightToLeft {
		minAngle = -minAngle
		maxAngle = -maxAngle
	}

	angle := minAngle + progress*(maxAngle-minAngle)
	rad := angle * math.Pi / 180
	sin, cos := math.Sincos(rad)

	// The pivot vector rotates with the needle.
	offsetX := int(float64(s.PivotX)*cos - float64(s.PivotY)*sin)
	offsetY := int(float64(s.PivotX)*sin + float64(s.PivotY)*cos)

	rotated := RotateImage(pic, -int(math.Round(angle)))
	x := s.X + offsetX - rotated.Bounds().Dx()/2
	y := s.Y + offsetY - rotated.Bounds().Dy()/2
	pasteImage(r.layer(config.ModePointer), rotated, x, y)

	return nil
}

func (r *Renderer) sensorPicture(s *config.Sensor, size *image.Point) (*image.RGBA, error) {
	if s.Pic == "" {
		return nil, ErrNoPicture
	}
	pic := r.images.Get(s.Pic, size)
	if pic == nil {
		return nil, fmt.Errorf("%w: %s", ErrPictureLoad, s.Pic)
	}
	return pic, nil
}

// progressRatio converts a value in [min, max] to a ratio in [0, 1],
// clamping out-of-range input. A degenerate max <= min range yields 0.
func progressRatio(value, minValue, maxValue float64) float64 {
	if maxValue <= minValue {
		return 0
	}
	ratio := (value - minValue) / (maxValue - minValue)
	return math.Min(1, math.Max(0, ratio))
}

// fanAngles derives the [start, end] sector for a fan gauge. Angles are
// measured from the 3 o'clock position increasing clockwise; the vendor
// layout places the gauge origin at 12 o'clock, hence the -90 shift.
func fanAngles(direction config.Direction, minAngle, maxAngle, progress float64) (start, end float64) {
	if direction == config.LeftToRight {
		start = minAngle - 90
		end = minAngle + (maxAngle-minAngle)*progress - 90
		return start, end
	}
	start = 360 - minAngle - (maxAngle-minAngle)*progress - 90
	end = 360 - minAngle - 90
	return start, end
}

// layer returns the composite layer for a mode, creating a transparent one
// on first use.
func (r *Renderer) layer(mode config.SensorMode) *image.RGBA {
	if l, ok := r.layers[mode]; ok {
		return l
	}
	l := image.NewRGBA(image.Rect(0, 0, r.size.X, r.size.Y))
	r.layers[mode] = l
	return l
}

// drawPieSlice alpha-blends the sector of source between startDeg and endDeg
// into layer, placed at (centerX, centerY). Only pixels inside the source's
// inscribed circle are considered. Angles may be negative and wrap around.
func drawPieSlice(layer, source *image.RGBA, centerX, centerY int, startDeg, endDeg float64) {
	sb := source.Bounds()
	srcW, srcH := sb.Dx(), sb.Dy()
	radius := float64(min(srcW, srcH)) / 2

	start := normalizeAngle(math.Mod(startDeg, 360) * math.Pi / 180)
	end := normalizeAngle(math.Mod(endDeg, 360) * math.Pi / 180)

	inSector := func(t float64) bool {
		a := normalizeAngle(t)
		if end < start { // wraps through 0
			return a >= start || a <= end
		}
		return a >= start && a <= end
	}

	lb := layer.Bounds()
	for sy := 0; sy < srcH; sy++ {
		for sx := 0; sx < srcW; sx++ {
			dx := float64(sx) - float64(srcW)/2
			dy := float64(sy) - float64(srcH)/2
			if math.Sqrt(dx*dx+dy*dy) > radius {
				continue
			}
			if !inSector(math.Atan2(dy, dx)) {
				continue
			}

			destX := centerX + sx - srcW/2
			destY := centerY + sy - srcH/2
			if destX < 0 || destY < 0 || destX >= lb.Dx() || destY >= lb.Dy() {
				continue
			}
			blendPixel(layer, destX, destY, source.RGBAAt(sb.Min.X+sx, sb.Min.Y+sy))
		}
	}
}

func normalizeAngle(rad float64) float64 {
	if rad < 0 {
		rad += 2 * math.Pi
	}
	return rad
}

// maskProgress returns a copy of pic with alpha forced to zero outside the
// crop implied by progress and direction.
func maskProgress(pic *image.RGBA, progress float64, direction config.Direction) *image.RGBA {
	masked := cloneRGBA(pic)
	b := masked.Bounds()
	w, h := b.Dx(), b.Dy()

	cropW := int(math.Round(float64(w) * progress))
	cropH := int(math.Round(float64(h) * progress))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var keep bool
			switch direction {
			case config.LeftToRight:
				keep = x < cropW
			case config.RightToLeft:
				keep = x >= w-cropW
			case config.TopToBottom:
				keep = y < cropH
			case config.BottomToTop:
				keep = y >= h-cropH
			}
			if !keep {
				off := masked.PixOffset(b.Min.X+x, b.Min.Y+y)
				masked.Pix[off+3] = 0
			}
		}
	}

	return masked
}

// pasteImage alpha-blends source into target at (x, y), clipping at the
// target bounds.
func pasteImage(target, source *image.RGBA, x, y int) {
	tb := target.Bounds()
	sb := source.Bounds()

	for sy := 0; sy < sb.Dy(); sy++ {
		for sx := 0; sx < sb.Dx(); sx++ {
			tx := x + sx
			ty := y + sy
			if tx < 0 || ty < 0 || tx >= tb.Dx() || ty >= tb.Dy() {
				continue
			}
			blendPixel(target, tx, ty, source.RGBAAt(sb.Min.X+sx, sb.Min.Y+sy))
		}
	}
}

// blendPixel applies "over" compositing: out = src*a + dst*(1-a) for every
// channel including alpha.
func blendPixel(dst *image.RGBA, x, y int, src color.RGBA) {
	if src.A == 0 {
		return
	}
	a := float64(src.A) / 255
	d := dst.RGBAAt(x, y)
	dst.SetRGBA(x, y, color.RGBA{
		R: uint8(float64(src.R)*a + float64(d.R)*(1-a)),
		G: uint8(float64(src.G)*a + float64(d.G)*(1-a)),
		B: uint8(float64(src.B)*a + float64(d.B)*(1-a)),
		A: uint8(float64(src.A)*a + float64(d.A)*(1-a)),
	})
}

// compositeLayers merges the mode layers onto the frame in a fixed order.
// Only the bounding box of opaque pixels is visited; an empty layer is
// skipped outright.
func (r *Renderer) compositeLayers(frame *image.RGBA) {
	for _, mode := range []config.SensorMode{config.ModeFan, config.ModeProgress, config.ModePointer} {
		layer, ok := r.layers[mode]
		if !ok {
			continue
		}
		box, ok := opaqueBounds(layer)
		if !ok {
			continue
		}
		for y := box.Min.Y; y <= box.Max.Y; y++ {
			for x := box.Min.X; x <= box.Max.X; x++ {
				px := layer.RGBAAt(x, y)
				if px.A > 0 {
					blendPixel(frame, x, y, px)
				}
			}
		}
	}
}

// opaqueBounds returns the inclusive bounding box of pixels with non-zero
// alpha.
func opaqueBounds(img *image.RGBA) (image.Rectangle, bool) {
	b := img.Bounds()
	minX, minY := b.Dx(), b.Dy()
	maxX, maxY := -1, -1

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if img.RGBAAt(b.Min.X+x, b.Min.Y+y).A > 0 {
				minX = min(minX, x)
				minY = min(minY, y)
				maxX = max(maxX, x)
				maxY = max(maxY, y)
			}
		}
	}

	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rectangle{
		Min: image.Point{X: minX, Y: minY},
		Max: image.Point{X: maxX, Y: maxY},
	}, true
}
