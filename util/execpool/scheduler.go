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

// Package execpool provides the schedulers that run the stages of the event pipeline.
//
// A stage is fed through a Scheduler. The direct scheduler runs tasks on the calling
// goroutine and is used to get deterministic, single threaded behavior in tests. The
// sequential scheduler owns one worker goroutine and a bounded backlog, so a slow stage
// pushes back on the stage in front of it.
package execpool

import (
	"context"
	"errors"
)

// ErrShutdown is returned when a task is submitted to a scheduler that has been shut down.
var ErrShutdown = errors.New("execpool: scheduler is shut down")

// Task is a unit of work executed by a Scheduler.
type Task func()

// Scheduler runs submitted tasks one at a time, in submission order.
type Scheduler interface {
	// Submit enqueues t, blocking while the backlog is full.
	Submit(ctx context.Context, t Task) error
	// Inject enqueues t without regard to the backlog bound. It is meant for feedback
	// edges, where blocking could deadlock the pipeline.
	Inject(t Task)
	// Pending returns the number of tasks enqueued or running.
	Pending() int
	// WaitIdle blocks until no task is enqueued or running. It must not be called from a
	// task of the same scheduler.
	WaitIdle(ctx context.Context) error
	// Shutdown stops the scheduler. Tasks still in the backlog are discarded.
	Shutdown()
	// GetOwner returns the name the scheduler was created with.
	GetOwner() interface{}
}
