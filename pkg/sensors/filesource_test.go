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

package sensors

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSourceReadsDirectoryOnStart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cpu.txt"), []byte(
		"# comment line\n"+
			"cpu_temp: 48.5\n"+
			"cpu_temp#unit: °C\n"+
			"\n"+
			"invalid line without separator\n"+
			"  padded_key  :  padded value  \n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.csv"),
		[]byte("nope: nope\n"), 0o600))

	store := NewStore()
	source := NewFileSource(dir, store, nil)
	require.NoError(t, source.Start())
	defer func() {
		require.NoError(t, source.Close())
	}()

	store.View(func(snap Snapshot) {
		v, ok := snap.Value("cpu_temp")
		require.True(t, ok)
		assert.Equal(t, "48.5", v)
		assert.Equal(t, "°C", snap.Unit("cpu_temp", ""))

		v, ok = snap.Value("padded_key")
		require.True(t, ok)
		assert.Equal(t, "padded value", v)

		_, ok = snap.Value("nope")
		assert.False(t, ok, "non-txt files must be ignored")
	})
}

func TestFileSourceSingleFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "values.txt")
	require.NoError(t, os.WriteFile(path, []byte("fan_speed: 1200\n"), 0o600))

	store := NewStore()
	source := NewFileSource(path, store, nil)
	require.NoError(t, source.Start())
	defer func() {
		require.NoError(t, source.Close())
	}()

	assert.Equal(t, 1, store.Len())
}

func TestFileSourceMissingPathIsNotAnError(t *testing.T) {
	t.Parallel()

	store := NewStore()
	source := NewFileSource(filepath.Join(t.TempDir(), "absent"), store, nil)
	// Initial read tolerates a missing path, the watcher does not.
	err := source.Start()
	assert.Error(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestFileSourceAppliesFilters(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s.txt"), []byte(
		"temperature_cpu: 55\n"+
			"temperature_cpu#unit: °C\n"+
			"fan_speed: 900\n"), 0o600))

	filters := []*regexp.Regexp{regexp.MustCompile("^temperature_.*#unit")}
	store := NewStore()
	source := NewFileSource(dir, store, filters)
	require.NoError(t, source.Start())
	defer func() {
		require.NoError(t, source.Close())
	}()

	store.View(func(snap Snapshot) {
		_, ok := snap.Value("temperature_cpu")
		assert.True(t, ok)
		_, ok = snap.Value("temperature_cpu#unit")
		assert.False(t, ok)
		_, ok = snap.Value("fan_speed")
		assert.True(t, ok)
	})
}

func TestIsFiltered(t *testing.T) {
	t.Parallel()

	assert.False(t, isFiltered("foobar", nil))

	noMatch := []*regexp.Regexp{
		regexp.MustCompile("^foo$"),
		regexp.MustCompile("^bar"),
		regexp.MustCompile("other"),
	}
	assert.False(t, isFiltered("foobar", noMatch))

	match := []*regexp.Regexp{
		regexp.MustCompile("123"),
		regexp.MustCompile("^.+bar"),
	}
	assert.True(t, isFiltered("foobar", match))
}

func TestLoadFilterFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "filters.txt")
	require.NoError(t, os.WriteFile(path, []byte(
		"# skip units\n"+
			"^temperature_.*#unit\n"+
			"\n"+
			"[invalid(regex\n"+
			"^debug_\n"), 0o600))

	filters, err := LoadFilterFile(path)
	require.NoError(t, err)
	// The invalid expression is skipped, not fatal.
	require.Len(t, filters, 2)
	assert.True(t, isFiltered("temperature_cpu#unit", filters))
	assert.True(t, isFiltered("debug_foo", filters))
	assert.False(t, isFiltered("temperature_cpu", filters))
}

func TestLoadFilterFileMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadFilterFile(filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}
