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
	"math"
	"strconv"
	"strings"
)

// FormatValue formats a numeric sensor value string as a fixed point number
// with a unit suffix, matching the vendor app behavior.
//
// integerDigits controls the integer part: -1 keeps the natural width, 0
// suppresses the integer part entirely, and a positive n zero-pads to exactly
// n digits. When the natural width exceeds n the integer part is replaced by
// n repeated '9' characters as an overflow marker, dropping any sign.
//
// decimalDigits is the number of decimal places; values <= 0 format a whole
// number with no decimal point. Rounding may carry into the integer part
// ("9.999" with 1 decimal digit becomes "10.0").
//
// A value that does not parse as a number is returned verbatim with the unit
// appended.
func FormatValue(value string, integerDigits, decimalDigits int, unit string) string {
	num, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return value + unit
	}

	if decimalDigits < 0 {
		decimalDigits = 0
	}

	factor := math.Pow(10, float64(decimalDigits))
	var rounded float64
	if decimalDigits == 0 {
		rounded = math.Round(num)
	} else {
		rounded = math.Round(num*factor) / factor
	}

	// Rounding can carry into the integer part.
	integerPart := int64(math.Trunc(rounded))

	decimalStr := ""
	if decimalDigits > 0 {
		dec := uint64(math.Round(math.Abs(rounded-math.Trunc(rounded)) * factor))
		// The carry is already applied to the integer part, do not count
		// it twice.
		if dec == uint64(factor) {
			dec = 0
		}
		decimalStr = pad(strconv.FormatUint(dec, 10), decimalDigits)
	}

	var integerStr string
	switch {
	case integerDigits < 0:
		integerStr = strconv.FormatInt(integerPart, 10)
	case integerDigits == 0:
		integerStr = ""
	default:
		natural := strconv.FormatInt(integerPart, 10)
		if len(natural) > integerDigits {
			// Explicit overflow marker, not a truncation.
			integerStr = strings.Repeat("9", integerDigits)
		} else if integerPart < 0 {
			integerStr = "-" + pad(natural[1:], integerDigits-1)
		} else {
			integerStr = pad(natural, integerDigits)
		}
	}

	formatted := integerStr
	if decimalDigits > 0 {
		formatted += "." + decimalStr
	}

	return formatted + unit
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
