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

package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	// Decoders for the image formats found in panel directories.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"
)

// LoadImage reads and decodes an image file as RGBA. When size is non-nil
// and the decoded dimensions differ, the image is stretched to exactly that
// size, ignoring aspect ratio.
func LoadImage(path string, size *image.Point) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Str("path", path).Msg("failed to close image file")
		}
	}()

	src, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	log.Debug().
		Str("path", path).
		Str("format", format).
		Stringer("size", src.Bounds().Size()).
		Msg("loaded image")

	rgba := toRGBA(src)
	if size != nil && !rgba.Bounds().Size().Eq(*size) {
		log.Warn().
			Stringer("from", rgba.Bounds().Size()).
			Stringer("to", *size).
			Msg("stretching image to display size, ignoring aspect ratio")
		rgba = resizeExact(rgba, *size)
	}

	return rgba, nil
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
	xdraw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, xdraw.Src)
	return dst
}

func resizeExact(src *image.RGBA, size image.Point) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

type imageKey struct {
	path string
	size image.Point // zero when no resize requested
}

// ImageCache loads and caches panel images. Failed loads are cached too so a
// missing file is only logged once per path.
type ImageCache struct {
	dir   string
	cache map[imageKey]*image.RGBA
}

// NewImageCache creates an image cache rooted at the given directory.
// Relative paths are resolved against it.
func NewImageCache(dir string) *ImageCache {
	return &ImageCache{
		dir:   dir,
		cache: make(map[imageKey]*image.RGBA),
	}
}

// Get returns the cached image for path, loading it on first use. Returns
// nil when the image cannot be loaded.
func (c *ImageCache) Get(path string, size *image.Point) *image.RGBA {
	resolved := path
	if !filepath.IsAbs(path) {
		resolved = filepath.Join(c.dir, path)
	}

	key := imageKey{path: resolved}
	if size != nil {
		key.size = *size
	}

	if img, ok := c.cache[key]; ok {
		return img
	}

	img, err := LoadImage(resolved, size)
	if err != nil {
		log.Warn().Err(err).Str("path", resolved).Msg("failed to load image")
		img = nil
	}
	c.cache[key] = img

	return img
}

// Clear drops all cached images.
func (c *ImageCache) Clear() {
	c.cache = make(map[imageKey]*image.RGBA)
}

// RotateImage rotates an image by the given angle in degrees. Multiples of
// 90 use exact pixel transposition; any other angle rotates about the image
// center with bilinear interpolation and a transparent fill.
func RotateImage(img *image.RGBA, angleDegrees int) *image.RGBA {
	angle := ((angleDegrees % 360) + 360) % 360
	switch angle {
	case 0:
		return cloneRGBA(img)
	case 90:
		return rotate90(img, true)
	case 270:
		return rotate90(img, false)
	case 180:
		return rotate180(img)
	default:
		return rotateAboutCenter(img, float64(angleDegrees)*math.Pi/180)
	}
}

func cloneRGBA(img *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(img.Bounds())
	copy(dst.Pix, img.Pix)
	return dst
}

// rotate90 performs an exact quarter rotation, swapping dimensions.
func rotate90(img *image.RGBA, clockwise bool) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, h, w))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := img.RGBAAt(b.Min.X+x, b.Min.Y+y)
			if clockwise {
				dst.SetRGBA(h-1-y, x, px)
			} else {
				dst.SetRGBA(y, w-1-x, px)
			}
		}
	}

	return dst
}

func rotate180(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.SetRGBA(w-1-x, h-1-y, img.RGBAAt(b.Min.X+x, b.Min.Y+y))
		}
	}

	return dst
}

// rotateAboutCenter keeps the original dimensions and samples the source via
// the inverse rotation with bilinear interpolation. Pixels mapping outside
// the source stay fully transparent.
func rotateAboutCenter(img *image.RGBA, angleRadians float64) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	cx := float64(w) / 2
	cy := float64(h) / 2
	sin, cos := math.Sincos(-angleRadians)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			sx := dx*cos - dy*sin + cx
			sy := dx*sin + dy*cos + cy
			dst.SetRGBA(x, y, bilinearSample(img, sx, sy))
		}
	}

	return dst
}

func bilinearSample(img *image.RGBA, x, y float64) color.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	var acc [4]float64
	for _, s := range [4]struct {
		px, py int
		weight float64
	}{
		{x0, y0, (1 - fx) * (1 - fy)},
		{x0 + 1, y0, fx * (1 - fy)},
		{x0, y0 + 1, (1 - fx) * fy},
		{x0 + 1, y0 + 1, fx * fy},
	} {
		if s.px < 0 || s.py < 0 || s.px >= w || s.py >= h {
			continue // transparent outside the source
		}
		px := img.RGBAAt(b.Min.X+s.px, b.Min.Y+s.py)
		acc[0] += float64(px.R) * s.weight
		acc[1] += float64(px.G) * s.weight
		acc[2] += float64(px.B) * s.weight
		acc[3] += float64(px.A) * s.weight
	}

	return color.RGBA{
		R: uint8(math.Round(acc[0])),
		G: uint8(math.Round(acc[1])),
		B: uint8(math.Round(acc[2])),
		A: uint8(math.Round(acc[3])),
	}
}
