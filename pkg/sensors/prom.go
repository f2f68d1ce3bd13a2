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
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	contentTypeProtobuf = "application/vnd.google.protobuf"

	acceptHeaderText     = "text/plain;version=0.0.4;q=0.3"
	acceptHeaderProtobuf = "application/vnd.google.protobuf;" +
		"proto=io.prometheus.client.MetricFamily;encoding=delimited;q=0.7," +
		"text/plain;version=0.0.4;q=0.3"
)

// io.prometheus.client field numbers, decoded by hand with protowire so we
// do not drag generated code around for four fields.
const (
	familyFieldName   = 1
	familyFieldMetric = 4

	metricFieldLabel     = 1
	metricFieldGauge     = 2
	metricFieldCounter   = 3
	metricFieldUntyped   = 5
	metricFieldHistogram = 7
	metricFieldSummary   = 4

	labelFieldName  = 1
	labelFieldValue = 2

	valueFieldValue = 1
)

// ErrTruncatedPayload is returned when a protobuf exposition payload stops
// mid-message.
var ErrTruncatedPayload = errors.New("truncated metrics payload")

// PromSource scrapes a Prometheus exposition endpoint and publishes each
// metric as a sensor value. Labelled metrics keep their label set in the
// sensor key, e.g. `node_cpu_seconds_total{cpu="0",mode="idle"}`.
type PromSource struct {
	store  *Store
	client *http.Client
	clock  clockwork.Clock

	url      string
	prefix   string
	interval time.Duration
	proto    bool
}

// NewPromSource creates a scraper for url. All published keys get the given
// prefix, which keeps multiple scrape targets apart. When proto is set the
// scrape negotiates the protobuf exposition format.
func NewPromSource(store *Store, url, prefix string, interval time.Duration, proto bool) *PromSource {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &PromSource{
		store: store,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		clock:    clockwork.NewRealClock(),
		url:      url,
		prefix:   prefix,
		interval: interval,
		proto:    proto,
	}
}

// Run scrapes until ctx is cancelled. The first scrape happens immediately;
// scrape failures are logged and retried on the next tick.
func (p *PromSource) Run(ctx context.Context) error {
	log.Info().Str("url", p.url).Dur("interval", p.interval).
		Bool("proto", p.proto).Msg("starting prometheus scraper")

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.scrape(ctx); err != nil {
			log.Warn().Err(err).Str("url", p.url).Msg("prometheus scrape failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}

func (p *PromSource) scrape(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if p.proto {
		req.Header.Set("Accept", acceptHeaderProtobuf)
	} else {
		req.Header.Set("Accept", acceptHeaderText)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	values, err := ParseMetrics(body, contentType)
	if err != nil {
		return err
	}

	if p.prefix != "" {
		prefixed := make(map[string]string, len(values))
		for k, v := range values {
			prefixed[p.prefix+k] = v
		}
		values = prefixed
	}

	log.Debug().Str("url", p.url).Int("metrics", len(values)).Msg("scraped metrics")
	p.store.SetAll(values)
	return nil
}

// ParseMetrics parses an exposition payload, picking the decoder from the
// content type.
func ParseMetrics(data []byte, contentType string) (map[string]string, error) {
	if strings.Contains(contentType, "protobuf") ||
		strings.Contains(contentType, contentTypeProtobuf) {
		return ParseProtoMetrics(data)
	}
	return ParseTextMetrics(string(data)), nil
}

// ParseTextMetrics parses the text exposition format into key-value pairs.
// Comment and metadata lines are dropped, trailing timestamps stripped, and
// exponent-notation values normalized to plain decimals. Colons in metric
// names become underscores since the sensor file format reserves them.
func ParseTextMetrics(content string) map[string]string {
	values := make(map[string]string)

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		idx := strings.LastIndexByte(line, ' ')
		if idx < 0 {
			continue
		}
		key, last := line[:idx], line[idx+1:]

		var value string
		// A second trailing number means the last field is a timestamp.
		if j := strings.LastIndexByte(key, ' '); j >= 0 {
			if num, err := strconv.ParseFloat(key[j+1:], 64); err == nil {
				value = formatFloat(num)
				key = key[:j]
			}
		}
		if value == "" {
			if len(last) > 4 && strings.ContainsRune(last, 'e') {
				num, err := strconv.ParseFloat(last, 64)
				if err != nil {
					continue
				}
				value = formatFloat(num)
			} else {
				value = last
			}
		}

		values[strings.ReplaceAll(key, ":", "_")] = value
	}

	return values
}

// ParseProtoMetrics parses the length-delimited protobuf exposition format.
// Gauge, counter and untyped metrics are extracted; summaries and
// histograms are skipped.
func ParseProtoMetrics(data []byte) (map[string]string, error) {
	values := make(map[string]string)

	for len(data) > 0 {
		length, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: bad length varint", ErrTruncatedPayload)
		}
		data = data[n:]
		if uint64(len(data)) < length {
			return nil, fmt.Errorf("%w: message longer than payload", ErrTruncatedPayload)
		}

		if err := parseMetricFamily(data[:length], values); err != nil {
			return nil, err
		}
		data = data[length:]
	}

	return values, nil
}

func parseMetricFamily(msg []byte, values map[string]string) error {
	var name string
	var metrics [][]byte

	err := walkFields(msg, func(num protowire.Number, payload []byte) {
		switch num {
		case familyFieldName:
			name = string(payload)
		case familyFieldMetric:
			metrics = append(metrics, payload)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to parse metric family: %w", err)
	}

	name = strings.ReplaceAll(name, ":", "_")
	for _, m := range metrics {
		key, value, ok := parseMetric(name, m)
		if !ok {
			continue
		}
		values[key] = value
	}

	return nil
}

func parseMetric(name string, msg []byte) (string, string, bool) {
	var labels []string
	var value string

	err := walkFields(msg, func(num protowire.Number, payload []byte) {
		switch num {
		case metricFieldLabel:
			if l := parseLabelPair(payload); l != "" {
				labels = append(labels, l)
			}
		case metricFieldGauge, metricFieldCounter, metricFieldUntyped:
			if v, ok := parseMetricValue(payload); ok {
				value = v
			}
		case metricFieldSummary, metricFieldHistogram:
			// not representable as a single sensor value
		}
	})
	if err != nil || value == "" {
		return "", "", false
	}

	key := name
	if len(labels) > 0 {
		key = fmt.Sprintf("%s{%s}", name, strings.Join(labels, ","))
	}
	return key, value, true
}

func parseLabelPair(msg []byte) string {
	var name, value string
	err := walkFields(msg, func(num protowire.Number, payload []byte) {
		switch num {
		case labelFieldName:
			name = string(payload)
		case labelFieldValue:
			value = string(payload)
		}
	})
	if err != nil || name == "" {
		return ""
	}
	return fmt.Sprintf("%s=%q", name, value)
}

func parseMetricValue(msg []byte) (string, bool) {
	var value string
	var found bool
	err := walkFields(msg, func(num protowire.Number, payload []byte) {
		if num != valueFieldValue || len(payload) != 8 {
			return
		}
		bits, n := protowire.ConsumeFixed64(payload)
		if n < 0 {
			return
		}
		value = formatFloat(math.Float64frombits(bits))
		found = true
	})
	if err != nil {
		return "", false
	}
	return value, found
}

// walkFields iterates the top-level fields of a protobuf message, handing
// each field's payload to fn. Fixed64 fields are passed as their raw eight
// bytes so fn can reinterpret them.
func walkFields(msg []byte, fn func(num protowire.Number, payload []byte)) error {
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return protowire.ParseError(n)
		}
		msg = msg[n:]

		switch typ {
		case protowire.BytesType:
			payload, n := protowire.ConsumeBytes(msg)
			if n < 0 {
				return protowire.ParseError(n)
			}
			fn(num, payload)
			msg = msg[n:]
		case protowire.Fixed64Type:
			if len(msg) < 8 {
				return ErrTruncatedPayload
			}
			fn(num, msg[:8])
			msg = msg[8:]
		case protowire.VarintType:
			_, n := protowire.ConsumeVarint(msg)
			if n < 0 {
				return protowire.ParseError(n)
			}
			msg = msg[n:]
		case protowire.Fixed32Type:
			if len(msg) < 4 {
				return ErrTruncatedPayload
			}
			msg = msg[4:]
		default:
			return fmt.Errorf("unsupported wire type %d", typ)
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
