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

package consensus

import (
	"time"

	"github.com/algorand/go-hashgraph/crypto"
	"github.com/algorand/go-hashgraph/data/basics"
	"github.com/algorand/go-hashgraph/data/events"
	"github.com/algorand/go-hashgraph/data/roster"
)

// seeRef points at the latest event of one creator known to an event.
type seeRef struct {
	hash       crypto.Digest
	generation uint64
}

// eventImpl is the engine's view of an event. Parents and ancestors are referenced by hash;
// an event that is not in the graph (never received, or pruned) is simply not found.
type eventImpl struct {
	ev      *events.PlatformEvent
	desc    events.EventDescriptor
	creator int

	selfParent  crypto.Digest
	otherParent crypto.Digest
	// lastSee[i] is the latest self-ancestor-or-self event of roster member i that is an
	// ancestor of this event.
	lastSee []seeRef

	round   basics.Round
	witness bool
	famous  bool
	decided bool
	// votes holds the memoized vote of each voting witness (by hash) on this witness's fame.
	votes map[crypto.Digest]bool

	consensus     bool
	roundReceived basics.Round
}

func (x *eventImpl) hash() crypto.Digest {
	return x.desc.Hash
}

func (x *eventImpl) created() time.Time {
	return x.ev.TimeCreated
}

// graph is the arena of non-expired events.
type graph struct {
	roster *roster.Roster
	events map[crypto.Digest]*eventImpl
}

func makeGraph(r *roster.Roster) *graph {
	return &graph{
		roster: r,
		events: make(map[crypto.Digest]*eventImpl),
	}
}

func (g *graph) get(h crypto.Digest) *eventImpl {
	if h.IsZero() {
		return nil
	}
	return g.events[h]
}

func (g *graph) size() int {
	return len(g.events)
}

// insert adds a hashed event whose creator is in the roster.
func (g *graph) insert(ev *events.PlatformEvent) *eventImpl {
	desc := ev.Descriptor()
	creator, _ := g.roster.Index(desc.Creator)
	x := &eventImpl{
		ev:      ev,
		desc:    desc,
		creator: creator,
		lastSee: make([]seeRef, g.roster.Size()),
	}
	if ev.SelfParent != nil {
		x.selfParent = ev.SelfParent.Hash
	}
	if ev.OtherParent != nil {
		x.otherParent = ev.OtherParent.Hash
	}
	for _, ph := range []crypto.Digest{x.selfParent, x.otherParent} {
		p := g.get(ph)
		if p == nil {
			continue
		}
		for i, ref := range p.lastSee {
			if ref.hash.IsZero() {
				continue
			}
			cur := x.lastSee[i]
			if cur.hash.IsZero() || ref.generation > cur.generation ||
				(ref.generation == cur.generation && ref.hash.Less(cur.hash)) {
				x.lastSee[i] = ref
			}
		}
	}
	x.lastSee[creator] = seeRef{hash: desc.Hash, generation: desc.Generation}
	g.events[desc.Hash] = x
	return x
}

// parents returns the parents present in the graph.
func (g *graph) parents(x *eventImpl) []*eventImpl {
	var out []*eventImpl
	if sp := g.get(x.selfParent); sp != nil {
		out = append(out, sp)
	}
	if op := g.get(x.otherParent); op != nil {
		out = append(out, op)
	}
	return out
}

// sees reports whether y is an ancestor of x (or x itself), following y's creator's chain
// down from the latest event of that creator that x knows about.
func (g *graph) sees(x, y *eventImpl) bool {
	ref := x.lastSee[y.creator]
	if ref.hash.IsZero() || ref.generation < y.desc.Generation {
		return false
	}
	z := g.get(ref.hash)
	for z != nil && z.desc.Generation > y.desc.Generation {
		z = g.get(z.selfParent)
	}
	return z != nil && z.hash() == y.hash()
}

// stronglySees reports whether x reaches y through ancestors created by members holding
// more than two thirds of the roster weight.
func (g *graph) stronglySees(x, y *eventImpl) bool {
	var weight uint64
	for i, ref := range x.lastSee {
		if ref.hash.IsZero() {
			continue
		}
		z := g.get(ref.hash)
		if z != nil && g.sees(z, y) {
			weight += g.roster.Weight(g.roster.NodeAt(i))
		}
	}
	return g.roster.IsSuperMajority(weight)
}

// earliestSeeingSelfAncestor returns the oldest event on j's self-parent chain that still
// sees e. The caller guarantees that j sees e.
func (g *graph) earliestSeeingSelfAncestor(j, e *eventImpl) *eventImpl {
	z := j
	for {
		sp := g.get(z.selfParent)
		if sp == nil || !g.sees(sp, e) {
			return z
		}
		z = sp
	}
}

// prune removes the events matching expired.
func (g *graph) prune(expired func(*eventImpl) bool) int {
	removed := 0
	for h, x := range g.events {
		if expired(x) {
			delete(g.events, h)
			removed++
		}
	}
	return removed
}
