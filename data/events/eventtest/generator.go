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

// Package eventtest builds hashed events and random event graphs for tests.
package eventtest

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/algorand/go-hashgraph/crypto"
	"github.com/algorand/go-hashgraph/data/basics"
	"github.com/algorand/go-hashgraph/data/events"
	"github.com/algorand/go-hashgraph/data/roster"
)

// GenesisTime is the creation time of the first generated event.
var GenesisTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// MakeEvent returns a hashed event. selfParent and otherParent may be nil.
func MakeEvent(creator basics.NodeID, selfParent, otherParent *events.PlatformEvent, birthRound basics.Round, created time.Time, txs ...[]byte) *events.PlatformEvent {
	e := &events.PlatformEvent{
		Creator:         creator,
		BirthRound:      birthRound,
		TimeCreated:     created,
		Transactions:    txs,
		SoftwareVersion: "1.0.0",
	}
	if selfParent != nil {
		d := selfParent.Descriptor()
		e.SelfParent = &d
	}
	if otherParent != nil {
		d := otherParent.Descriptor()
		e.OtherParent = &d
	}
	hashed, err := events.HashEvent(e)
	if err != nil {
		panic(err)
	}
	return hashed
}

// Generator produces a causally valid stream of events from the members of a roster.
// The same seed always yields the same events.
type Generator struct {
	roster     *roster.Roster
	rng        *rand.Rand
	latest     map[basics.NodeID]*events.PlatformEvent
	all        []*events.PlatformEvent
	now        time.Time
	birthRound basics.Round
	txCount    int
}

// NewGenerator creates a generator over r.
func NewGenerator(r *roster.Roster, seed int64) *Generator {
	return &Generator{
		roster:     r,
		rng:        rand.New(rand.NewSource(seed)),
		latest:     make(map[basics.NodeID]*events.PlatformEvent),
		now:        GenesisTime,
		birthRound: basics.RoundFirst,
	}
}

// SetBirthRound sets the birth round given to subsequent events.
func (g *Generator) SetBirthRound(r basics.Round) {
	g.birthRound = r
}

// Emit creates the next event of creator, using the latest event of other as other parent.
func (g *Generator) Emit(creator, other basics.NodeID) *events.PlatformEvent {
	g.now = g.now.Add(time.Millisecond)
	var otherParent *events.PlatformEvent
	if other != creator {
		otherParent = g.latest[other]
	}
	g.txCount++
	tx := []byte(fmt.Sprintf("tx-%d", g.txCount))
	e := MakeEvent(creator, g.latest[creator], otherParent, g.birthRound, g.now, tx)
	g.latest[creator] = e
	g.all = append(g.all, e)
	return e
}

// Next creates an event from a random creator with a random other parent.
func (g *Generator) Next() *events.PlatformEvent {
	n := g.roster.Size()
	creator := g.roster.NodeAt(g.rng.Intn(n))
	other := g.roster.NodeAt(g.rng.Intn(n))
	if n > 1 {
		for other == creator {
			other = g.roster.NodeAt(g.rng.Intn(n))
		}
	}
	return g.Emit(creator, other)
}

// Generate creates count events with Next.
func (g *Generator) Generate(count int) []*events.PlatformEvent {
	out := make([]*events.PlatformEvent, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, g.Next())
	}
	return out
}

// All returns every event generated so far, in creation order.
func (g *Generator) All() []*events.PlatformEvent {
	return append([]*events.PlatformEvent(nil), g.all...)
}

// Shuffle returns a random ordering of evs in which every event still follows its
// parents that are part of evs.
func Shuffle(evs []*events.PlatformEvent, rng *rand.Rand) []*events.PlatformEvent {
	present := make(map[crypto.Digest]bool, len(evs))
	for _, e := range evs {
		present[e.Hash()] = true
	}
	emitted := make(map[crypto.Digest]bool, len(evs))
	pending := append([]*events.PlatformEvent(nil), evs...)
	out := make([]*events.PlatformEvent, 0, len(evs))
	for len(pending) > 0 {
		var ready []int
		for i, e := range pending {
			ok := true
			for _, p := range e.Parents() {
				if present[p.Hash] && !emitted[p.Hash] {
					ok = false
					break
				}
			}
			if ok {
				ready = append(ready, i)
			}
		}
		pick := ready[rng.Intn(len(ready))]
		e := pending[pick]
		pending = append(pending[:pick], pending[pick+1:]...)
		emitted[e.Hash()] = true
		out = append(out, e)
	}
	return out
}

// Permute returns a uniformly random permutation of evs, ignoring causality.
func Permute(evs []*events.PlatformEvent, rng *rand.Rand) []*events.PlatformEvent {
	out := append([]*events.PlatformEvent(nil), evs...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
