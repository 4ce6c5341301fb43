// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arduino-utils/arduino/broker"
)

const namespace = "arduinod"

// StatsSource provides the snapshot exported on each scrape.
// *broker.Broker implements it.
type StatsSource interface {
	Stats() broker.Stats
}

// states lists the values of the arduinod_state state set.
var states = []string{
	broker.Starting.String(),
	broker.Syncing.String(),
	broker.Running.String(),
	broker.Stopping.String(),
	broker.Stopped.String(),
}

// Collector exports broker statistics. It reads one snapshot per
// scrape, so all values in a scrape are mutually consistent up to the
// atomics they came from.
type Collector struct {
	source StatsSource

	rows              *prometheus.Desc
	fields            *prometheus.Desc
	deliveries        *prometheus.Desc
	bytesDelivered    *prometheus.Desc
	dropped           *prometheus.Desc
	overflows         *prometheus.Desc
	excessFields      *prometheus.Desc
	connections       *prometheus.Desc
	handshakes        *prometheus.Desc
	handshakeFailures *prometheus.Desc
	deviceBytes       *prometheus.Desc
	subscribers       *prometheus.Desc
	unique            *prometheus.Desc
	pending           *prometheus.Desc
	state             *prometheus.Desc
}

// NewCollector returns a collector reading from source.
func NewCollector(source StatsSource) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		source:            source,
		rows:              desc("rows_total", "Rows read from the device since sync."),
		fields:            desc("fields_total", "Fields parsed from the device."),
		deliveries:        desc("deliveries_total", "Lines written to subscribers."),
		bytesDelivered:    desc("delivered_bytes_total", "Bytes written to subscribers."),
		dropped:           desc("subscribers_dropped_total", "Subscribers dropped after a failed write."),
		overflows:         desc("line_overflows_total", "Fields that exceeded the line capacity."),
		excessFields:      desc("excess_fields_total", "Fields discarded because their row already had eight."),
		connections:       desc("connections_total", "Client connections accepted."),
		handshakes:        desc("handshakes_total", "Handshakes completed, by kind.", "kind"),
		handshakeFailures: desc("handshake_failures_total", "Connections closed before a complete handshake."),
		deviceBytes:       desc("device_bytes_written_total", "Send payload bytes written to the device."),
		subscribers:       desc("subscribers", "Subscribers registered for each field.", "field"),
		unique:            desc("subscribers_unique", "Distinct registered subscribers."),
		pending:           desc("subscriptions_pending", "Subscriptions waiting for the next row boundary."),
		state:             desc("state", "Broker lifecycle state; the current state is 1.", "state"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range []*prometheus.Desc{
		c.rows, c.fields, c.deliveries, c.bytesDelivered, c.dropped,
		c.overflows, c.excessFields, c.connections, c.handshakes,
		c.handshakeFailures, c.deviceBytes, c.subscribers, c.unique,
		c.pending, c.state,
	} {
		ch <- desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()

	counter := func(desc *prometheus.Desc, value uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(value), labels...)
	}
	gauge := func(desc *prometheus.Desc, value float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, value, labels...)
	}

	counter(c.rows, stats.Rows)
	counter(c.fields, stats.Fields)
	counter(c.deliveries, stats.Deliveries)
	counter(c.bytesDelivered, stats.BytesDelivered)
	counter(c.dropped, stats.DroppedSubscribers)
	counter(c.overflows, stats.Overflows)
	counter(c.excessFields, stats.ExcessFields)
	counter(c.connections, stats.Connections)
	counter(c.handshakes, stats.SubscribeRequests, "subscribe")
	counter(c.handshakes, stats.SendRequests, "send")
	counter(c.handshakeFailures, stats.HandshakeFailures)
	counter(c.deviceBytes, stats.DeviceBytesWritten)

	for field, count := range stats.Subscribers {
		gauge(c.subscribers, float64(count), strconv.Itoa(field))
	}
	gauge(c.unique, float64(stats.UniqueSubscribers))
	gauge(c.pending, float64(stats.PendingSubscriptions))

	for _, state := range states {
		value := 0.0
		if state == stats.State {
			value = 1
		}
		gauge(c.state, value, state)
	}
}

// Handler returns an http.Handler serving source's metrics plus the Go
// runtime and process collectors on a private registry.
func Handler(source StatsSource) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		NewCollector(source),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
