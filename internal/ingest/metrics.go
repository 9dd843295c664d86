package ingest

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "tasktrace"

// Metrics counts what an Ingestor reads, writes and skips. A nil *Metrics
// is valid and counts nothing.
type Metrics struct {
	records *prometheus.CounterVec
	events  *prometheus.CounterVec
	skips   *prometheus.CounterVec
}

// NewMetrics creates the ingest counters and registers them with reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_total",
			Help:      "Task records read, by rank.",
		}, []string{"rank"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_total",
			Help:      "Events written to the trace archive, by kind.",
		}, []string{"kind"}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "skipped_records_total",
			Help:      "Task records skipped because the archive rejected their timestamps, by rank.",
		}, []string{"rank"}),
	}
	for _, c := range []prometheus.Collector{m.records, m.events, m.skips} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) record(rank int) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(strconv.Itoa(rank)).Inc()
}

func (m *Metrics) emitted() {
	if m == nil {
		return
	}
	m.events.WithLabelValues("enter").Inc()
	m.events.WithLabelValues("leave").Inc()
}

func (m *Metrics) skipped(rank int) {
	if m == nil {
		return
	}
	m.skips.WithLabelValues(strconv.Itoa(rank)).Inc()
}
