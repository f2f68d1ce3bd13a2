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
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// FileSource feeds the store from key-value text files. The source path is
// either a single file or a directory of .txt files, watched for changes.
//
// File format, one pair per line:
//
//	sensor_label: value
//
// Empty lines and lines starting with # are skipped; keys and values are
// trimmed.
type FileSource struct {
	path    string
	store   *Store
	filters []*regexp.Regexp
	watcher *fsnotify.Watcher
}

// NewFileSource creates a source reading from path into store. Keys
// matching any of the filters are dropped.
func NewFileSource(path string, store *Store, filters []*regexp.Regexp) *FileSource {
	return &FileSource{
		path:    path,
		store:   store,
		filters: filters,
	}
}

// Start performs the initial read and begins watching for file changes.
func (f *FileSource) Start() error {
	if err := f.readPath(f.path); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(f.path); err != nil {
		closeErr := watcher.Close()
		if closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close file watcher")
		}
		return fmt.Errorf("failed to watch %s: %w", f.path, err)
	}
	f.watcher = watcher

	log.Info().Str("path", f.path).Int("filters", len(f.filters)).
		Msg("started sensor file watcher")

	go f.watch()
	return nil
}

// Close stops the watcher. The store keeps its last values.
func (f *FileSource) Close() error {
	if f.watcher == nil {
		return nil
	}
	return f.watcher.Close()
}

func (f *FileSource) watch() {
	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
				!event.Op.Has(fsnotify.Rename) {
				continue
			}
			if filepath.Ext(event.Name) != ".txt" {
				continue
			}
			log.Debug().Str("file", event.Name).Str("op", event.Op.String()).
				Msg("sensor file changed")
			if err := f.readFile(event.Name); err != nil {
				log.Warn().Err(err).Str("file", event.Name).
					Msg("failed to read sensor file")
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("sensor file watch error")
		}
	}
}

func (f *FileSource) readPath(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if !info.IsDir() {
		return f.readFile(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".txt" {
			continue
		}
		file := filepath.Join(path, entry.Name())
		if err := f.readFile(file); err != nil {
			log.Warn().Err(err).Str("file", file).Msg("failed to read sensor file")
		}
	}

	return nil
}

func (f *FileSource) readFile(path string) error {
	log.Debug().Str("file", path).Msg("reading sensor file")

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sensor file")
		}
	}()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			log.Warn().Str("line", line).Msg("skipping invalid sensor file entry")
			continue
		}
		key = strings.TrimSpace(key)
		if isFiltered(key, f.filters) {
			log.Debug().Str("key", key).Msg("filtered sensor key")
			continue
		}
		values[key] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	f.store.SetAll(values)
	return nil
}

func isFiltered(key string, filters []*regexp.Regexp) bool {
	for _, re := range filters {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}

// LoadFilterFile reads sensor key filters from a text file, one regular
// expression per line. Empty lines, comment lines and invalid expressions
// are skipped.
func LoadFilterFile(path string) ([]*regexp.Regexp, error) {
	log.Debug().Str("file", path).Msg("reading sensor filter file")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read filter file: %w", err)
	}

	var filters []*regexp.Regexp
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		re, err := regexp.Compile(line)
		if err != nil {
			log.Warn().Err(err).Str("filter", line).
				Msg("skipping invalid sensor filter")
			continue
		}
		filters = append(filters, re)
	}

	return filters, nil
}
