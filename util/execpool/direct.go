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

	"github.com/algorand/go-deadlock"
)

// direct runs tasks on the submitting goroutine. A task submitted while another task is
// running (typically from inside that task) is queued and run once the current task
// returns, so every task still observes a consistent stage state.
type direct struct {
	mu       deadlock.Mutex
	running  bool
	queue    []Task
	shutdown bool
}

// MakeDirect creates a scheduler that executes tasks inline.
func MakeDirect() Scheduler {
	return &direct{}
}

func (d *direct) Submit(ctx context.Context, t Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	if d.shutdown {
		d.mu.Unlock()
		return ErrShutdown
	}
	d.queue = append(d.queue, t)
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true
	d.mu.Unlock()

	d.drain()
	return nil
}

func (d *direct) Inject(t Task) {
	_ = d.Submit(context.Background(), t)
}

func (d *direct) drain() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 || d.shutdown {
			d.queue = nil
			d.running = false
			d.mu.Unlock()
			return
		}
		t := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		t()
	}
}

func (d *direct) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.queue)
	if d.running {
		n++
	}
	return n
}

func (d *direct) WaitIdle(ctx context.Context) error {
	return ctx.Err()
}

func (d *direct) Shutdown() {
	d.mu.Lock()
	d.shutdown = true
	d.mu.Unlock()
}

func (d *direct) GetOwner() interface{} {
	return "direct"
}
