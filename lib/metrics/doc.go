// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exports broker statistics to Prometheus.
//
// [Collector] turns one [broker.Stats] snapshot into const metrics on
// every scrape, so the broker's main loop never touches Prometheus
// types. arduinod serves [Handler] on --metrics-listen.
package metrics
