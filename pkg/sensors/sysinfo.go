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
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
	gopsensors "github.com/shirou/gopsutil/v4/sensors"
)

// netInterfacePrefixes limits network sensors to real host adapters.
var netInterfacePrefixes = []string{"eth", "en", "em", "wlan", "wlp", "wlo"}

// SysInfoSource polls host metrics and publishes them as sensor values.
// Labels follow the conventions the stock firmware tooling expects:
// cpu_usage_percent, mem_usage_percent, temperature_cpu and friends.
type SysInfoSource struct {
	store    *Store
	clock    clockwork.Clock
	interval time.Duration

	lastNet     map[string]net.IOCountersStat
	lastNetTime time.Time
}

// NewSysInfoSource creates a source polling at the given interval.
func NewSysInfoSource(store *Store, interval time.Duration) *SysInfoSource {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &SysInfoSource{
		store:    store,
		clock:    clockwork.NewRealClock(),
		interval: interval,
	}
}

// Run polls until ctx is cancelled. The first poll happens immediately.
func (s *SysInfoSource) Run(ctx context.Context) error {
	log.Info().Dur("interval", s.interval).Msg("starting system info sensors")

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.poll(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}

// poll gathers one round of metrics. Individual probe failures are logged
// and skipped so a missing subsystem never takes down the rest.
func (s *SysInfoSource) poll(ctx context.Context) {
	values := make(map[string]string, 64)

	s.pollCPU(ctx, values)
	s.pollMemory(ctx, values)
	s.pollHost(ctx, values)
	s.pollDisks(ctx, values)
	s.pollTemperatures(ctx, values)
	s.pollNetwork(ctx, values)

	s.store.SetAll(values)
}

func (s *SysInfoSource) pollCPU(ctx context.Context, values map[string]string) {
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		log.Debug().Err(err).Msg("failed to read cpu usage")
	} else if len(percents) > 0 {
		values["cpu_usage_percent"] = fmt.Sprintf("%.2f", percents[0])
	}

	if perCore, err := cpu.PercentWithContext(ctx, 0, true); err == nil {
		for i, p := range perCore {
			values[fmt.Sprintf("cpu_%d_usage", i)] = fmt.Sprintf("%.2f", p)
		}
		values["cpu_count"] = strconv.Itoa(len(perCore))
	}

	if avg, err := load.AvgWithContext(ctx); err != nil {
		log.Debug().Err(err).Msg("failed to read load average")
	} else {
		values["load_avg_one"] = fmt.Sprintf("%.2f", avg.Load1)
		values["load_avg_five"] = fmt.Sprintf("%.2f", avg.Load5)
		values["load_avg_fifteen"] = fmt.Sprintf("%.2f", avg.Load15)
	}
}

func (s *SysInfoSource) pollMemory(ctx context.Context, values map[string]string) {
	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		log.Debug().Err(err).Msg("failed to read memory stats")
	} else {
		values["mem_free_bytes"] = strconv.FormatUint(vm.Available, 10)
		values["mem_free"] = FormatBytes(vm.Available)
		values["mem_total_bytes"] = strconv.FormatUint(vm.Total, 10)
		values["mem_total"] = FormatBytes(vm.Total)
		values["mem_used_bytes"] = strconv.FormatUint(vm.Used, 10)
		values["mem_used"] = FormatBytes(vm.Used)
		values["mem_usage_percent"] = fmt.Sprintf("%.1f", vm.UsedPercent)
	}

	if swap, err := mem.SwapMemoryWithContext(ctx); err != nil {
		log.Debug().Err(err).Msg("failed to read swap stats")
	} else {
		values["swap_free_bytes"] = strconv.FormatUint(swap.Free, 10)
		values["swap_free"] = FormatBytes(swap.Free)
		values["swap_total_bytes"] = strconv.FormatUint(swap.Total, 10)
		values["swap_total"] = FormatBytes(swap.Total)
		values["swap_used_bytes"] = strconv.FormatUint(swap.Used, 10)
		values["swap_used"] = FormatBytes(swap.Used)
		values["swap_usage_percent"] = fmt.Sprintf("%.1f", swap.UsedPercent)
	}
}

func (s *SysInfoSource) pollHost(ctx context.Context, values map[string]string) {
	if uptime, err := host.UptimeWithContext(ctx); err != nil {
		log.Debug().Err(err).Msg("failed to read uptime")
	} else {
		values["system_uptime_sec"] = strconv.FormatUint(uptime, 10)
		values["system_uptime"] = FormatUptime(uptime)
	}

	if info, err := host.InfoWithContext(ctx); err != nil {
		log.Debug().Err(err).Msg("failed to read host info")
	} else {
		values["system_name"] = info.Platform
		values["system_kernel_version"] = info.KernelVersion
		values["system_os_version"] = info.PlatformVersion
		values["system_hostname"] = info.Hostname
		values["total_processes"] = strconv.FormatUint(info.Procs, 10)
	}
}

func (s *SysInfoSource) pollDisks(ctx context.Context, values map[string]string) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		log.Debug().Err(err).Msg("failed to list disk partitions")
		return
	}

	for _, part := range parts {
		usage, err := disk.UsageWithContext(ctx, part.Mountpoint)
		if err != nil || usage.Total == 0 {
			continue
		}
		device := strings.ReplaceAll(strings.TrimPrefix(part.Device, "/dev/"), " ", "_")
		prefix := "disk_" + device
		values[prefix+"_total_bytes"] = strconv.FormatUint(usage.Total, 10)
		values[prefix+"_total"] = FormatBytes(usage.Total)
		values[prefix+"_used_bytes"] = strconv.FormatUint(usage.Used, 10)
		values[prefix+"_used"] = FormatBytes(usage.Used)
		values[prefix+"_free_bytes"] = strconv.FormatUint(usage.Free, 10)
		values[prefix+"_free"] = FormatBytes(usage.Free)
		values[prefix+"_usage_percent"] = fmt.Sprintf("%.1f", usage.UsedPercent)
	}
}

func (s *SysInfoSource) pollTemperatures(ctx context.Context, values map[string]string) {
	temps, err := gopsensors.TemperaturesWithContext(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("failed to read temperatures")
		return
	}

	for _, t := range temps {
		label := temperatureLabel(t.SensorKey)
		if label == "" {
			continue
		}
		values[label] = fmt.Sprintf("%.1f", t.Temperature)
		values[label+UnitSuffix] = "°C"
	}
}

// temperatureLabel maps hardware monitor keys onto the well-known panel
// labels. Unknown keys get a generic temperature_ prefix.
func temperatureLabel(key string) string {
	if key == "" {
		return ""
	}
	switch {
	case strings.Contains(key, "spd5118"):
		return "temperature_memory"
	case strings.Contains(key, "amdgpu"):
		return "temperature_gpu"
	case strings.Contains(key, "Tctl"), strings.Contains(key, "coretemp"),
		strings.Contains(key, "k10temp"):
		return "temperature_cpu"
	case strings.Contains(key, "Composite") && !strings.Contains(key, "nvme"):
		return "temperature_motherboard"
	default:
		return "temperature_" + strings.ReplaceAll(key, " ", "_")
	}
}

func (s *SysInfoSource) pollNetwork(ctx context.Context, values map[string]string) {
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		log.Debug().Err(err).Msg("failed to read network counters")
		return
	}

	now := s.clock.Now()
	elapsed := now.Sub(s.lastNetTime)
	current := make(map[string]net.IOCountersStat, len(counters))

	for _, c := range counters {
		if !hasNetPrefix(c.Name) {
			continue
		}
		current[c.Name] = c
		prefix := "network_" + c.Name

		values[prefix+"_total_received_bytes"] = strconv.FormatUint(c.BytesRecv, 10)
		values[prefix+"_total_received"] = FormatBytes(c.BytesRecv)
		values[prefix+"_total_transmitted_bytes"] = strconv.FormatUint(c.BytesSent, 10)
		values[prefix+"_total_transmitted"] = FormatBytes(c.BytesSent)

		last, ok := s.lastNet[c.Name]
		if !ok || elapsed <= 0 {
			continue
		}
		secs := elapsed.Seconds()
		if c.BytesRecv >= last.BytesRecv {
			rate := uint64(float64(c.BytesRecv-last.BytesRecv) / secs)
			values[prefix+"_download_speed"] = FormatBytes(rate) + "/s"
		}
		if c.BytesSent >= last.BytesSent {
			rate := uint64(float64(c.BytesSent-last.BytesSent) / secs)
			values[prefix+"_upload_speed"] = FormatBytes(rate) + "/s"
		}
	}

	s.lastNet = current
	s.lastNetTime = now
}

func hasNetPrefix(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range netInterfacePrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// FormatBytes renders a byte count in human units, e.g. "15.56 GB".
func FormatBytes(bytes uint64) string {
	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	if bytes == 0 {
		return "0 B"
	}

	size := float64(bytes)
	idx := 0
	for size >= 1024 && idx < len(units)-1 {
		size /= 1024
		idx++
	}

	if idx == 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	return fmt.Sprintf("%.2f %s", size, units[idx])
}

// FormatUptime renders seconds of uptime as "N days HH:MM".
func FormatUptime(seconds uint64) string {
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	mins := (seconds % 3600) / 60

	switch days {
	case 0:
		return fmt.Sprintf("%02d:%02d", hours, mins)
	case 1:
		return fmt.Sprintf("1 day, %02d:%02d", hours, mins)
	default:
		return fmt.Sprintf("%d days %02d:%02d", days, hours, mins)
	}
}
