// Copyright (C) 2019-2026 Algorand, Inc.
// This file is part of go-algorand
//
// go-algorand is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-algorand is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-algorand.  If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Registry represents a single set of metrics registry
type Registry struct {
	prom *prometheus.Registry
}

var defaultRegistry = MakeRegistry()

// MakeRegistry create a new metrics registry.
func MakeRegistry() *Registry {
	return &Registry{prom: prometheus.NewRegistry()}
}

// DefaultRegistry returns the default registry
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Gatherer exposes the registry for an HTTP exporter or a test.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.prom
}

// AddMetrics collects every registered metric into values, keyed by sanitized name.
// Labelled series are summed under their family name.
func (r *Registry) AddMetrics(values map[string]float64) error {
	families, err := r.prom.Gather()
	if err != nil {
		return err
	}
	for _, family := range families {
		name := sanitizePrometheusName(family.GetName())
		for _, m := range family.GetMetric() {
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				values[name] += m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				values[name] += m.GetGauge().GetValue()
			}
		}
	}
	return nil
}

// register adds c to the registry, returning the already registered collector of the same
// name when there is one so that repeated construction shares a series.
func (r *Registry) register(c prometheus.Collector) prometheus.Collector {
	if r == nil {
		r = defaultRegistry
	}
	err := r.prom.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		return are.ExistingCollector
	}
	// an inconsistent definition cannot be exported; keep it local to the caller.
	return c
}

func (r *Registry) deregister(c prometheus.Collector) {
	if r == nil {
		r = defaultRegistry
	}
	r.prom.Unregister(c)
}
