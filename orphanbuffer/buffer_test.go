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

package orphanbuffer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/algorand/go-hashgraph/crypto"
	"github.com/algorand/go-hashgraph/data/basics"
	"github.com/algorand/go-hashgraph/data/events"
	"github.com/algorand/go-hashgraph/data/events/eventtest"
	"github.com/algorand/go-hashgraph/data/roster"
	"github.com/algorand/go-hashgraph/logging"
	"github.com/algorand/go-hashgraph/test/partitiontest"
	"github.com/algorand/go-hashgraph/util/metrics"
)

func makeTestBuffer(t testing.TB, capacity int) *Buffer {
	return MakeBuffer(events.BirthRoundThreshold, capacity, logging.TestingLog(t), metrics.MakeRegistry())
}

func hashes(evs []*events.PlatformEvent) []crypto.Digest {
	out := make([]crypto.Digest, len(evs))
	for i, e := range evs {
		out[i] = e.Hash()
	}
	return out
}

func TestInOrderReleasesImmediately(t *testing.T) {
	partitiontest.PartitionTest(t)

	b := makeTestBuffer(t, 10)
	a := eventtest.MakeEvent(0, nil, nil, 1, eventtest.GenesisTime)
	bb := eventtest.MakeEvent(0, a, nil, 1, eventtest.GenesisTime.Add(1))

	require.Equal(t, hashes([]*events.PlatformEvent{a}), hashes(b.HandleEvent(a)))
	require.Equal(t, hashes([]*events.PlatformEvent{bb}), hashes(b.HandleEvent(bb)))
	require.Zero(t, b.Size())
}

func TestOutOfOrderBuffersUntilParent(t *testing.T) {
	partitiontest.PartitionTest(t)

	b := makeTestBuffer(t, 10)
	a := eventtest.MakeEvent(0, nil, nil, 1, eventtest.GenesisTime)
	bb := eventtest.MakeEvent(0, a, nil, 1, eventtest.GenesisTime.Add(1))

	require.Empty(t, b.HandleEvent(bb))
	require.Equal(t, 1, b.Size())
	require.Equal(t, hashes([]*events.PlatformEvent{a, bb}), hashes(b.HandleEvent(a)))
	require.Zero(t, b.Size())
}

func TestAncientParentReleasesWaitingChild(t *testing.T) {
	partitiontest.PartitionTest(t)

	b := makeTestBuffer(t, 10)
	a := eventtest.MakeEvent(0, nil, nil, 1, eventtest.GenesisTime)
	bb := eventtest.MakeEvent(0, a, nil, 5, eventtest.GenesisTime.Add(1))
	c := eventtest.MakeEvent(1, nil, bb, 5, eventtest.GenesisTime.Add(2))

	require.Empty(t, b.HandleEvent(c))
	require.Empty(t, b.HandleEvent(bb))
	require.Equal(t, 2, b.Size())

	released := b.SetEventWindow(events.EventWindow{
		LatestConsensusRound: 10,
		AncientThreshold:     2,
		ExpiredThreshold:     1,
		AncientMode:          events.BirthRoundThreshold,
	})
	require.Equal(t, hashes([]*events.PlatformEvent{bb, c}), hashes(released))
	require.Zero(t, b.Size())

	// a arriving late is ancient and dropped.
	require.Empty(t, b.HandleEvent(a))
}

func TestDuplicatesAndAncientDropped(t *testing.T) {
	partitiontest.PartitionTest(t)

	b := makeTestBuffer(t, 10)
	a := eventtest.MakeEvent(0, nil, nil, 3, eventtest.GenesisTime)
	orphaned := eventtest.MakeEvent(1, nil, eventtest.MakeEvent(2, nil, nil, 3, eventtest.GenesisTime), 3, eventtest.GenesisTime)

	require.Len(t, b.HandleEvent(a), 1)
	require.Empty(t, b.HandleEvent(a))
	require.Empty(t, b.HandleEvent(orphaned))
	require.Empty(t, b.HandleEvent(orphaned))
	require.Equal(t, 1, b.Size())

	// the orphan itself becomes ancient and is discarded.
	w := events.EventWindow{LatestConsensusRound: 20, AncientThreshold: 4, ExpiredThreshold: 1, AncientMode: events.BirthRoundThreshold}
	require.Empty(t, b.SetEventWindow(w))
	require.Zero(t, b.Size())
	require.Empty(t, b.HandleEvent(a))

	// regressions are ignored.
	require.Empty(t, b.SetEventWindow(events.GenesisEventWindow(events.BirthRoundThreshold)))
	require.Equal(t, w, b.EventWindow())
}

func TestCascadeIsTopological(t *testing.T) {
	partitiontest.PartitionTest(t)

	gen := eventtest.NewGenerator(roster.MakeEqualWeight(4), 1)
	evs := gen.Generate(50)

	b := makeTestBuffer(t, 0)
	// feed in reverse: everything but the first event waits.
	var released []*events.PlatformEvent
	for i := len(evs) - 1; i >= 0; i-- {
		released = append(released, b.HandleEvent(evs[i])...)
	}
	require.Len(t, released, len(evs))
	requireTopological(t, released)
	require.False(t, b.Full())
}

func TestFull(t *testing.T) {
	partitiontest.PartitionTest(t)

	b := makeTestBuffer(t, 2)
	gen := eventtest.NewGenerator(roster.MakeEqualWeight(2), 3)
	evs := gen.Generate(4)
	require.Empty(t, b.HandleEvent(evs[3]))
	require.False(t, b.Full())
	require.Empty(t, b.HandleEvent(evs[2]))
	require.True(t, b.Full())

	b.Clear()
	require.Zero(t, b.Size())
	require.False(t, b.Full())
}

func TestAdmitsOnlyNewOrphansWhenFull(t *testing.T) {
	partitiontest.PartitionTest(t)

	b := makeTestBuffer(t, 1)
	at := eventtest.GenesisTime
	parent := eventtest.MakeEvent(1, nil, nil, 1, at)
	child := eventtest.MakeEvent(1, parent, nil, 1, at.Add(1))
	unknown := eventtest.MakeEvent(2, nil, nil, 1, at.Add(2))
	stray := eventtest.MakeEvent(2, unknown, nil, 1, at.Add(3))
	root := eventtest.MakeEvent(3, nil, nil, 1, at.Add(4))

	require.True(t, b.Admits(child))
	require.Empty(t, b.HandleEvent(child))
	require.True(t, b.Full())

	require.True(t, b.Admits(parent), "an awaited parent is always admitted")
	require.True(t, b.Admits(child), "a buffered orphan is a duplicate")
	require.True(t, b.Admits(root), "an event with all parents present is admitted")
	require.False(t, b.Admits(stray))

	require.Equal(t, hashes([]*events.PlatformEvent{root}), hashes(b.HandleEvent(root)))
	rootChild := eventtest.MakeEvent(3, root, nil, 1, at.Add(5))
	require.True(t, b.Admits(rootChild))

	require.Equal(t, hashes([]*events.PlatformEvent{parent, child}), hashes(b.HandleEvent(parent)))
	require.False(t, b.Full())
	require.True(t, b.Admits(stray))
}

func requireTopological(t require.TestingT, released []*events.PlatformEvent) {
	seen := make(map[crypto.Digest]bool)
	all := make(map[crypto.Digest]bool)
	for _, e := range released {
		all[e.Hash()] = true
	}
	for _, e := range released {
		for _, p := range e.Parents() {
			if all[p.Hash] {
				require.True(t, seen[p.Hash], "event %v released before parent %v", e, p)
			}
		}
		require.False(t, seen[e.Hash()], "event %v released twice", e)
		seen[e.Hash()] = true
	}
}

// Every non-ancient event is released exactly once, after its parents, regardless of
// arrival order, duplicates and window advances.
func TestExactlyOnceProperty(t *testing.T) {
	partitiontest.PartitionTest(t)

	rapid.Check(t, func(rt *rapid.T) {
		nodes := rapid.IntRange(1, 6).Draw(rt, "nodes")
		count := rapid.IntRange(1, 80).Draw(rt, "count")
		seed := rapid.Int64().Draw(rt, "seed")
		advanceAt := rapid.IntRange(0, count).Draw(rt, "advanceAt")
		threshold := rapid.Uint64Range(1, 4).Draw(rt, "threshold")

		gen := eventtest.NewGenerator(roster.MakeEqualWeight(nodes), seed)
		rng := rand.New(rand.NewSource(seed))
		var evs []*events.PlatformEvent
		for i := 0; i < count; i++ {
			gen.SetBirthRound(basics.Round(1 + i*5/count))
			evs = append(evs, gen.Next())
		}
		arrivals := append(append([]*events.PlatformEvent(nil), evs...), evs[:count/3]...)
		arrivals = eventtest.Permute(arrivals, rng)

		b := MakeBuffer(events.BirthRoundThreshold, 0, logging.TestingLog(t), metrics.MakeRegistry())
		window := events.EventWindow{LatestConsensusRound: 10, AncientThreshold: threshold, ExpiredThreshold: 1, AncientMode: events.BirthRoundThreshold}
		var released []*events.PlatformEvent
		for i, e := range arrivals {
			if i == advanceAt {
				released = append(released, b.SetEventWindow(window)...)
			}
			released = append(released, b.HandleEvent(e)...)
		}
		if advanceAt >= len(arrivals) {
			released = append(released, b.SetEventWindow(window)...)
		}

		requireTopological(rt, released)
		got := make(map[crypto.Digest]bool)
		for _, e := range released {
			got[e.Hash()] = true
		}
		for _, e := range evs {
			if !window.IsAncientEvent(e) {
				require.True(rt, got[e.Hash()], "non-ancient event %v never released", e)
			}
		}
		require.Zero(rt, b.Size())
	})
}
