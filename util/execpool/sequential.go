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

package execpool

import (
	"context"
	"sync"

	"github.com/algorand/go-deadlock"

	"github.com/algorand/go-hashgraph/util/metrics"
)

// A sequential scheduler owns a single worker goroutine fed by a bounded backlog.
// Injected tasks are kept in a separate unbounded queue and take precedence over the
// backlog.
type sequential struct {
	name   string
	buffer chan Task
	wake   chan struct{}

	mu       deadlock.Mutex
	idle     *sync.Cond
	injected []Task
	pending  int

	depth *metrics.Gauge

	ctx       context.Context
	ctxCancel context.CancelFunc
	wg        sync.WaitGroup
}

// MakeSequential creates a scheduler running tasks on its own goroutine. capacity bounds
// the number of submitted tasks waiting to run; a capacity of zero or less is treated as one.
// The queue depth is reported on reg under a name derived from name.
func MakeSequential(name string, capacity int, reg *metrics.Registry) Scheduler {
	if capacity <= 0 {
		capacity = 1
	}
	s := &sequential{
		name:   name,
		buffer: make(chan Task, capacity),
		wake:   make(chan struct{}, 1),
		depth: metrics.MakeGauge(reg, metrics.MetricName{
			Name:        metrics.PipelineQueueDepth.Name + "_" + name,
			Description: metrics.PipelineQueueDepth.Description + " (" + name + ")",
		}),
	}
	s.idle = sync.NewCond(&s.mu)
	s.ctx, s.ctxCancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go s.worker()
	return s
}

func (s *sequential) addPending() {
	s.mu.Lock()
	s.pending++
	s.depth.Set(float64(s.pending))
	s.mu.Unlock()
}

func (s *sequential) donePending() {
	s.mu.Lock()
	if s.pending > 0 {
		s.pending--
	}
	s.depth.Set(float64(s.pending))
	if s.pending == 0 {
		s.idle.Broadcast()
	}
	s.mu.Unlock()
}

func (s *sequential) Submit(ctx context.Context, t Task) error {
	if s.ctx.Err() != nil {
		return ErrShutdown
	}
	s.addPending()
	select {
	case s.buffer <- t:
		return nil
	case <-ctx.Done():
		s.donePending()
		return ctx.Err()
	case <-s.ctx.Done():
		s.donePending()
		return ErrShutdown
	}
}

func (s *sequential) Inject(t Task) {
	if s.ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	s.pending++
	s.depth.Set(float64(s.pending))
	s.injected = append(s.injected, t)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *sequential) popInjected() Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.injected) == 0 {
		return nil
	}
	t := s.injected[0]
	s.injected[0] = nil
	s.injected = s.injected[1:]
	return t
}

func (s *sequential) worker() {
	defer s.wg.Done()

	for {
		if t := s.popInjected(); t != nil {
			t()
			s.donePending()
			continue
		}

		select {
		case t := <-s.buffer:
			t()
			s.donePending()
		case <-s.wake:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *sequential) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *sequential) WaitIdle(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.idle.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for s.pending > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.ctx.Err() != nil {
			return ErrShutdown
		}
		s.idle.Wait()
	}
	return nil
}

// Shutdown shuts down the scheduler.
func (s *sequential) Shutdown() {
	s.ctxCancel()
	// NOTE: Do not close(s.buffer) because there's no good way to ensure Submit() won't write to it and panic. Just let it be garbage collected.
	s.wg.Wait()

	s.mu.Lock()
	s.pending = 0
	s.injected = nil
	s.depth.Set(0)
	s.idle.Broadcast()
	s.mu.Unlock()
}

func (s *sequential) GetOwner() interface{} {
	return s.name
}
