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

// Package orphanbuffer holds events until their parents are known, releasing them in an
// order where every event follows its parents.
package orphanbuffer

import (
	"github.com/algorand/go-deadlock"
	"golang.org/x/exp/slices"

	"github.com/algorand/go-hashgraph/crypto"
	"github.com/algorand/go-hashgraph/data/events"
	"github.com/algorand/go-hashgraph/logging"
	"github.com/algorand/go-hashgraph/util/metrics"
)

// orphan is a buffered event and the number of its parents still missing.
type orphan struct {
	event   *events.PlatformEvent
	missing int
}

// missingParent is a parent that has not been observed, and the orphans waiting on it.
type missingParent struct {
	desc     events.EventDescriptor
	children []crypto.Digest
}

// Buffer is driven by a single pipeline stage. Admits may be called from other goroutines.
type Buffer struct {
	mu deadlock.Mutex

	log      logging.Logger
	capacity int
	window   events.EventWindow

	// released holds the non-ancient events already passed downstream.
	released map[crypto.Digest]events.EventDescriptor
	orphans  map[crypto.Digest]*orphan
	missing  map[crypto.Digest]*missingParent

	size             *metrics.Gauge
	releasedCount    *metrics.Counter
	droppedAncient   *metrics.Counter
	droppedDuplicate *metrics.Counter
}

// MakeBuffer creates an empty buffer holding at most capacity orphans before reporting
// itself full.
func MakeBuffer(mode events.AncientMode, capacity int, log logging.Logger, reg *metrics.Registry) *Buffer {
	return &Buffer{
		log:              log,
		capacity:         capacity,
		window:           events.GenesisEventWindow(mode),
		released:         make(map[crypto.Digest]events.EventDescriptor),
		orphans:          make(map[crypto.Digest]*orphan),
		missing:          make(map[crypto.Digest]*missingParent),
		size:             metrics.MakeGauge(reg, metrics.OrphanBufferSize),
		releasedCount:    metrics.MakeCounter(reg, metrics.OrphanBufferReleased),
		droppedAncient:   metrics.MakeCounter(reg, metrics.OrphanBufferDroppedAncient),
		droppedDuplicate: metrics.MakeCounter(reg, metrics.OrphanBufferDroppedDuplicate),
	}
}

// HandleEvent accepts a hashed event and returns the events that became ready because of
// it, parents before children. Ancient and duplicate events are dropped.
func (b *Buffer) HandleEvent(e *events.PlatformEvent) []*events.PlatformEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	desc := e.Descriptor()
	if b.window.IsAncient(desc) {
		b.droppedAncient.Inc()
		return nil
	}
	if _, ok := b.released[desc.Hash]; ok {
		b.droppedDuplicate.Inc()
		return nil
	}
	if _, ok := b.orphans[desc.Hash]; ok {
		b.droppedDuplicate.Inc()
		return nil
	}

	var missing []events.EventDescriptor
	for _, p := range e.Parents() {
		if b.window.IsAncient(p) {
			continue
		}
		if _, ok := b.released[p.Hash]; ok {
			continue
		}
		if len(missing) == 1 && missing[0].Hash == p.Hash {
			continue
		}
		missing = append(missing, p)
	}

	if len(missing) == 0 {
		return b.release(e)
	}

	b.orphans[desc.Hash] = &orphan{event: e, missing: len(missing)}
	for _, p := range missing {
		mp := b.missing[p.Hash]
		if mp == nil {
			mp = &missingParent{desc: p}
			b.missing[p.Hash] = mp
		}
		mp.children = append(mp.children, desc.Hash)
	}
	b.size.Set(float64(len(b.orphans)))
	return nil
}

// release passes e downstream, followed by every orphan it completes, transitively.
func (b *Buffer) release(e *events.PlatformEvent) []*events.PlatformEvent {
	var out []*events.PlatformEvent
	stack := []*events.PlatformEvent{e}
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		desc := next.Descriptor()
		b.released[desc.Hash] = desc
		out = append(out, next)
		stack = b.satisfy(desc.Hash, stack)
	}
	b.releasedCount.AddUint64(uint64(len(out)))
	b.size.Set(float64(len(b.orphans)))
	return out
}

// satisfy marks the parent with the given hash as no longer missing and pushes the orphans
// it completes onto stack. Children are pushed in reverse so they pop in arrival order.
func (b *Buffer) satisfy(parent crypto.Digest, stack []*events.PlatformEvent) []*events.PlatformEvent {
	mp := b.missing[parent]
	if mp == nil {
		return stack
	}
	delete(b.missing, parent)
	for i := len(mp.children) - 1; i >= 0; i-- {
		o := b.orphans[mp.children[i]]
		if o == nil {
			// dropped as ancient while waiting
			continue
		}
		o.missing--
		if o.missing == 0 {
			delete(b.orphans, mp.children[i])
			stack = append(stack, o.event)
		}
	}
	return stack
}

// SetEventWindow moves the ancient threshold forward. Parents that became ancient count
// as present from now on, so the orphans waiting only on them are returned. Orphans that
// became ancient themselves are discarded. A window that would lower a threshold is ignored.
func (b *Buffer) SetEventWindow(w events.EventWindow) []*events.PlatformEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.window.Regresses(w) || w.AncientMode != b.window.AncientMode {
		b.log.Warnf("orphan buffer: ignoring event window %v, current %v", w, b.window)
		return nil
	}
	b.window = w

	for h, d := range b.released {
		if w.IsAncient(d) {
			delete(b.released, h)
		}
	}
	for h, o := range b.orphans {
		if w.IsAncientEvent(o.event) {
			delete(b.orphans, h)
			b.droppedAncient.Inc()
		}
	}

	var nowAncient []*missingParent
	for _, mp := range b.missing {
		if w.IsAncient(mp.desc) {
			nowAncient = append(nowAncient, mp)
		}
	}
	// map iteration order is random; release in a fixed order.
	slices.SortFunc(nowAncient, func(x, y *missingParent) int {
		xi, yi := w.AncientMode.Indicator(x.desc), w.AncientMode.Indicator(y.desc)
		if xi != yi {
			if xi < yi {
				return -1
			}
			return 1
		}
		if x.desc.Hash.Less(y.desc.Hash) {
			return -1
		}
		if y.desc.Hash.Less(x.desc.Hash) {
			return 1
		}
		return 0
	})

	var out []*events.PlatformEvent
	for _, mp := range nowAncient {
		ready := b.satisfy(mp.desc.Hash, nil)
		for i := len(ready) - 1; i >= 0; i-- {
			out = append(out, b.release(ready[i])...)
		}
	}
	b.size.Set(float64(len(b.orphans)))
	return out
}

// Admits reports whether handing the hashed event e to the buffer cannot add an orphan
// beyond capacity. Below capacity everything is admitted. At capacity, e is admitted when
// it is ancient or already known, when an orphan is waiting for it, or when all of its
// parents are present.
func (b *Buffer) Admits(e *events.PlatformEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.full() {
		return true
	}

	desc := e.Descriptor()
	if b.window.IsAncient(desc) {
		return true
	}
	if _, ok := b.missing[desc.Hash]; ok {
		return true
	}
	if _, ok := b.released[desc.Hash]; ok {
		return true
	}
	if _, ok := b.orphans[desc.Hash]; ok {
		return true
	}
	for _, p := range e.Parents() {
		if _, ok := b.released[p.Hash]; !ok && !b.window.IsAncient(p) {
			return false
		}
	}
	return true
}

// EventWindow returns the window currently applied.
func (b *Buffer) EventWindow() events.EventWindow {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.window
}

// Size returns the number of buffered orphans.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.orphans)
}

// Full reports whether the buffer holds its capacity of orphans or more.
func (b *Buffer) Full() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.full()
}

func (b *Buffer) full() bool {
	return b.capacity > 0 && len(b.orphans) >= b.capacity
}

// Clear discards all state, including the window, as needed before loading a snapshot.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.window = events.GenesisEventWindow(b.window.AncientMode)
	b.released = make(map[crypto.Digest]events.EventDescriptor)
	b.orphans = make(map[crypto.Digest]*orphan)
	b.missing = make(map[crypto.Digest]*missingParent)
	b.size.Set(0)
}
