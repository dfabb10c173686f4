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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Counter represent a single counter variable.
type Counter struct {
	c   prometheus.Counter
	reg *Registry
}

// MakeCounter create a new counter with the provided name and description,
// registered with reg (the default registry when reg is nil).
func MakeCounter(reg *Registry, metric MetricName) *Counter {
	c := &Counter{
		c: prometheus.NewCounter(prometheus.CounterOpts{
			Name: sanitizePrometheusName(metric.Name),
			Help: metric.Description,
		}),
		reg: reg,
	}
	if existing, ok := reg.register(c.c).(prometheus.Counter); ok {
		c.c = existing
	}
	return c
}

// Deregister removes the counter from its registry.
func (counter *Counter) Deregister() {
	counter.reg.deregister(counter.c)
}

// Inc increases counter by 1
func (counter *Counter) Inc() {
	counter.c.Inc()
}

// AddUint64 increases counter by x
func (counter *Counter) AddUint64(x uint64) {
	counter.c.Add(float64(x))
}

// AddMicrosecondsSince increases counter by microseconds between Time t and now.
func (counter *Counter) AddMicrosecondsSince(t time.Time) {
	counter.AddUint64(uint64(time.Since(t).Microseconds()))
}

// GetUint64Value returns the value of the counter.
func (counter *Counter) GetUint64Value() uint64 {
	var m dto.Metric
	if err := counter.c.Write(&m); err != nil {
		return 0
	}
	return uint64(m.GetCounter().GetValue())
}
