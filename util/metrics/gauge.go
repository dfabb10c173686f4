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
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Gauge represent a single gauge variable.
type Gauge struct {
	g   prometheus.Gauge
	reg *Registry
}

// MakeGauge create a new gauge with the provided name and description,
// registered with reg (the default registry when reg is nil).
func MakeGauge(reg *Registry, metric MetricName) *Gauge {
	g := &Gauge{
		g: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: sanitizePrometheusName(metric.Name),
			Help: metric.Description,
		}),
		reg: reg,
	}
	if existing, ok := reg.register(g.g).(prometheus.Gauge); ok {
		g.g = existing
	}
	return g
}

// Deregister removes the gauge from its registry.
func (gauge *Gauge) Deregister() {
	gauge.reg.deregister(gauge.g)
}

// Set sets gauge to x
func (gauge *Gauge) Set(x float64) {
	gauge.g.Set(x)
}

// Add increases gauge by x
func (gauge *Gauge) Add(x float64) {
	gauge.g.Add(x)
}

// GetValue returns the current value of the gauge.
func (gauge *Gauge) GetValue() float64 {
	var m dto.Metric
	if err := gauge.g.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}
