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
	"fmt"
	"strings"
	"time"
)

// DateTimeValue resolves a synthetic DATE_* label from the given time.
// These labels are computed locally and never come from the value store.
// The label set and formatting match the vendor app, including the CJK
// variants.
func DateTimeValue(label string, now time.Time) (string, bool) {
	if !strings.HasPrefix(label, "DATE_") {
		return "", false
	}

	year := now.Year()
	month := fmt.Sprintf("%02d", int(now.Month()))
	day := fmt.Sprintf("%02d", now.Day())
	hour := fmt.Sprintf("%02d", now.Hour())
	minute := fmt.Sprintf("%02d", now.Minute())
	second := fmt.Sprintf("%02d", now.Second())

	switch label {
	case "DATE_year":
		return fmt.Sprintf("%d", year), true
	case "DATE_month":
		return month, true
	case "DATE_day":
		return day, true
	case "DATE_hour":
		return hour, true
	case "DATE_minute":
		return minute, true
	case "DATE_second":
		return second, true
	case "DATE_m_d_h_m_1":
		return fmt.Sprintf("%s月%s日  %s:%s", month, day, hour, minute), true
	case "DATE_m_d_h_m_2":
		return fmt.Sprintf("%s/%s  %s:%s", month, day, hour, minute), true
	case "DATE_m_d_1":
		return fmt.Sprintf("%s月%s日", month, day), true
	case "DATE_m_d_2":
		return fmt.Sprintf("%s-%s", month, day), true
	case "DATE_y_m_d_1":
		return fmt.Sprintf("%d年%s月%s日", year, month, day), true
	case "DATE_y_m_d_2":
		return fmt.Sprintf("%d-%s-%s", year, month, day), true
	case "DATE_y_m_d_3":
		return fmt.Sprintf("%d/%s/%s", year, month, day), true
	case "DATE_y_m_d_4":
		return fmt.Sprintf("%d %s %s", year, month, day), true
	case "DATE_h_m_s_1":
		return fmt.Sprintf("%s:%s:%s", hour, minute, second), true
	case "DATE_h_m_s_2":
		return fmt.Sprintf("%s时%s分%s秒", hour, minute, second), true
	case "DATE_h_m_s_3":
		return fmt.Sprintf("%s %s %s", hour, minute, second), true
	case "DATE_h_m_1":
		return fmt.Sprintf("%s时%s分", hour, minute), true
	case "DATE_h_m_2":
		return fmt.Sprintf("%s : %s", hour, minute), true
	case "DATE_h_m_3":
		return fmt.Sprintf("%s:%s", hour, minute), true
	default:
		return "", false
	}
}
