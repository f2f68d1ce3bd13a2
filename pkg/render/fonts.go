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
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

type faceKey struct {
	family string
	size   float64
}

// FontCache loads TTF fonts by family name from a font directory and caches
// parsed fonts and sized faces. A built-in default font is substituted when
// loading fails, so a missing font never fails a render.
type FontCache struct {
	dirs        []string
	fonts       map[string]*opentype.Font
	faces       map[faceKey]font.Face
	defaultFont *opentype.Font
}

// NewFontCache creates a font cache for the given TTF directory.
func NewFontCache(dir string) *FontCache {
	return &FontCache{
		dirs:  []string{dir},
		fonts: make(map[string]*opentype.Font),
		faces: make(map[faceKey]font.Face),
	}
}

// AddDir appends a font search directory. Families are resolved against the
// directories in registration order, so the base directory wins ties.
func (f *FontCache) AddDir(dir string) {
	f.dirs = append(f.dirs, dir)
}

// Face returns a sized face for the font family, falling back to the default
// font when the family cannot be loaded.
func (f *FontCache) Face(family string, size float64) (font.Face, error) {
	key := faceKey{family: family, size: size}
	if face, ok := f.faces[key]; ok {
		return face, nil
	}

	fnt, err := f.font(family)
	if err != nil {
		log.Warn().Err(err).Str("family", family).Msg("failed to load font, using default")
		fnt, err = f.builtin()
		if err != nil {
			return nil, err
		}
	}

	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}

	f.faces[key] = face
	return face, nil
}

func (f *FontCache) font(family string) (*opentype.Font, error) {
	if family == "" {
		return f.builtin()
	}
	if fnt, ok := f.fonts[family]; ok {
		return fnt, nil
	}

	var data []byte
	var err error
	for _, dir := range f.dirs {
		data, err = os.ReadFile(filepath.Join(dir, family+".ttf"))
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read font %s.ttf: %w", family, err)
	}
	fnt, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font %s.ttf: %w", family, err)
	}

	f.fonts[family] = fnt
	return fnt, nil
}

func (f *FontCache) builtin() (*opentype.Font, error) {
	if f.defaultFont != nil {
		return f.defaultFont, nil
	}
	fnt, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse built-in font: %w", err)
	}
	f.defaultFont = fnt
	return fnt, nil
}

// Clear drops all cached fonts and faces.
func (f *FontCache) Clear() {
	f.fonts = make(map[string]*opentype.Font)
	f.faces = make(map[faceKey]font.Face)
}
