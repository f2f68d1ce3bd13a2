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

package display

import "image"

// ConvertPixel converts an 8-bit RGB triple to RGB565.
func ConvertPixel(r, g, b uint8) uint16 {
	return uint16(r&248)<<8 | uint16(g&252)<<3 | uint16(b)>>3
}

// ToRGB565LE converts an image to the panel's little-endian RGB565 pixel
// format, two bytes per pixel in row-major order.
func ToRGB565LE(img image.Image) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*2)

	switch src := img.(type) {
	case *image.RGBA:
		convertPix(out, src.Pix, src.Stride, w, h)
	case *image.NRGBA:
		convertPix(out, src.Pix, src.Stride, w, h)
	default:
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, _ := img.At(x, y).RGBA()
				px := ConvertPixel(uint8(r>>8), uint8(g>>8), uint8(bl>>8))
				out[i] = byte(px)
				out[i+1] = byte(px >> 8)
				i += 2
			}
		}
	}

	return out
}

func convertPix(out, pix []byte, stride, w, h int) {
	i := 0
	for y := 0; y < h; y++ {
		row := pix[y*stride:]
		for x := 0; x < w; x++ {
			o := x * 4
			px := ConvertPixel(row[o], row[o+1], row[o+2])
			out[i] = byte(px)
			out[i+1] = byte(px >> 8)
			i += 2
		}
	}
}
