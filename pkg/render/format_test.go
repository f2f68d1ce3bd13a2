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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatValueDecimalInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		digits   int
		decimals int
		want     string
	}{
		{5, 2, "00123.46°C"},
		{5, 1, "00123.5°C"},
		{5, 0, "00123°C"},
		{-1, 2, "123.46°C"},
		{-1, 1, "123.5°C"},
		{-1, 0, "123°C"},
		{2, 0, "99°C"},
	}

	for _, tt := range tests {
		got := FormatValue("123.456", tt.digits, tt.decimals, "°C")
		assert.Equal(t, tt.want, got, "digits=%d decimals=%d", tt.digits, tt.decimals)
	}
}

func TestFormatValueIntegerInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		digits   int
		decimals int
		want     string
	}{
		{5, 2, "00123.00°C"},
		{5, 1, "00123.0°C"},
		{5, 0, "00123°C"},
		{-1, 2, "123.00°C"},
		{-1, 1, "123.0°C"},
		{-1, 0, "123°C"},
		{2, 0, "99°C"},
	}

	for _, tt := range tests {
		got := FormatValue("123", tt.digits, tt.decimals, "°C")
		assert.Equal(t, tt.want, got, "digits=%d decimals=%d", tt.digits, tt.decimals)
	}
}

func TestFormatValueNegativeInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		digits   int
		decimals int
		want     string
	}{
		{5, 2, "-0123.00°C"},
		{5, 0, "-0123°C"},
		{-1, 2, "-123.00°C"},
		{-1, 1, "-123.0°C"},
		{-1, 0, "-123°C"},
		// The sign counts against the digit budget, so -123 overflows
		// two digits.
		{2, 0, "99°C"},
	}

	for _, tt := range tests {
		got := FormatValue("-123", tt.digits, tt.decimals, "°C")
		assert.Equal(t, tt.want, got, "digits=%d decimals=%d", tt.digits, tt.decimals)
	}
}

func TestFormatValueRounding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value    string
		digits   int
		decimals int
		want     string
	}{
		{"1.999", 2, 1, "02.0"},
		{"1.999", 2, 0, "02"},
		{"1.999", 1, 1, "2.0"},
		{"1.999", -1, 1, "2.0"},
		{"0.999", 1, 2, "1.00"},
		{"0.999", 1, 1, "1.0"},
		{"0.999", 1, 0, "1"},
		{"123.6", -1, 0, "124"},
	}

	for _, tt := range tests {
		got := FormatValue(tt.value, tt.digits, tt.decimals, "")
		assert.Equal(t, tt.want, got,
			"value=%s digits=%d decimals=%d", tt.value, tt.digits, tt.decimals)
	}
}

func TestFormatValueEdgeCases(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "000.0V", FormatValue("0", 3, 1, "V"))
	assert.Equal(t, "99.0%", FormatValue("999.99", 2, 1, "%"))
	assert.Equal(t, "invalidunit", FormatValue("invalid", 2, 2, "unit"))
	assert.Equal(t, "N/A", FormatValue("N/A", -1, 0, ""))
	assert.Equal(t, "047.8°C", FormatValue("47.81", 3, 1, "°C"))
}

func TestFormatValueZeroIntegerDigits(t *testing.T) {
	t.Parallel()

	// Zero integer digits suppresses the integer part entirely.
	assert.Equal(t, ".46", FormatValue("123.456", 0, 2, ""))
	assert.Equal(t, "", FormatValue("123.456", 0, 0, ""))
	assert.Equal(t, "%", FormatValue("42", 0, 0, "%"))
}
