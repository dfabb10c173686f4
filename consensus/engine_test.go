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
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
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

var testClock = func() time.Time { return eventtest.GenesisTime }

func testParams(mode events.AncientMode) Params {
	return Params{
		CoinFrequency: defaultCoinFrequency,
		Window: events.WindowParams{
			RoundsNonAncient: 26,
			RoundsExpired:    500,
			AncientMode:      mode,
		},
	}
}

func makeTestEngine(t testing.TB, r *roster.Roster, params Params) *Engine {
	return MakeEngine(params, r, logging.TestingLog(t), metrics.MakeRegistry(), testClock)
}

func feed(e *Engine, evs []*events.PlatformEvent) []*ConsensusRound {
	var out []*ConsensusRound
	for _, ev := range evs {
		out = append(out, e.AddEvent(ev)...)
	}
	return out
}

// orderedEvent is the part of a consensus event that every node agrees on.
type orderedEvent struct {
	Hash      crypto.Digest
	Round     basics.Round
	Order     uint64
	Timestamp time.Time
	Last      bool
}

func summarize(rounds []*ConsensusRound) []orderedEvent {
	var out []orderedEvent
	for _, r := range rounds {
		for _, ce := range r.Events {
			out = append(out, orderedEvent{
				Hash:      ce.Event.Hash(),
				Round:     ce.RoundReceived,
				Order:     ce.ConsensusOrder,
				Timestamp: ce.ConsensusTimestamp,
				Last:      ce.LastInRoundReceived,
			})
		}
	}
	return out
}

func requireWellFormed(t *testing.T, rounds []*ConsensusRound, first basics.Round, firstOrder uint64) {
	seen := make(map[crypto.Digest]bool)
	var lastTime time.Time
	order := firstOrder
	for i, r := range rounds {
		require.Equal(t, first+basics.Round(i), r.RoundNum)
		require.Equal(t, r.RoundNum, r.Snapshot.Round)
		require.Equal(t, r.RoundNum, r.EventWindow.LatestConsensusRound)
		require.NotEmpty(t, r.Snapshot.JudgeHashes)
		for j, ce := range r.Events {
			require.False(t, seen[ce.Event.Hash()], "event %v ordered twice", ce.Event)
			seen[ce.Event.Hash()] = true
			require.Equal(t, order, ce.ConsensusOrder)
			order++
			require.Equal(t, r.RoundNum, ce.RoundReceived)
			require.Equal(t, j == len(r.Events)-1, ce.LastInRoundReceived)
			if !lastTime.IsZero() {
				require.True(t, ce.ConsensusTimestamp.After(lastTime), "consensus time went from %v to %v", lastTime, ce.ConsensusTimestamp)
			}
			lastTime = ce.ConsensusTimestamp
		}
		require.Equal(t, order, r.Snapshot.NextConsensusNumber)
		require.Equal(t, len(r.Events) == 0, r.IsEmpty())
		require.Len(t, r.Hashes(), len(r.Events))
		if i > 0 {
			require.False(t, rounds[i-1].EventWindow.Regresses(r.EventWindow))
		}
	}
}

func TestEngineOrdersEvents(t *testing.T) {
	partitiontest.PartitionTest(t)

	r := roster.MakeEqualWeight(4)
	gen := eventtest.NewGenerator(r, 1)
	e := makeTestEngine(t, r, testParams(events.GenerationThreshold))

	rounds := feed(e, gen.Generate(600))
	require.NotEmpty(t, rounds)
	requireWellFormed(t, rounds, basics.RoundFirst, 0)
	require.Equal(t, rounds[len(rounds)-1].RoundNum, e.LatestRound())
	require.Equal(t, rounds[len(rounds)-1].Snapshot, e.Snapshot())
	require.Equal(t, rounds[len(rounds)-1].EventWindow, e.EventWindow())

	ordered := 0
	for _, cr := range rounds {
		ordered += len(cr.Events)
		require.False(t, cr.PCESRound)
		require.Equal(t, eventtest.GenesisTime, cr.ReachedConsensusAt)
		require.Same(t, r, cr.Roster)
	}
	require.Greater(t, ordered, 0)
	require.Equal(t, uint64(len(rounds)), e.roundsDecided.GetUint64Value())
	require.Equal(t, uint64(ordered), e.eventsOrdered.GetUint64Value())
}

func TestEngineUnequalWeights(t *testing.T) {
	partitiontest.PartitionTest(t)

	r, err := roster.MakeRoster([]roster.Entry{
		{NodeID: 0, Weight: 10},
		{NodeID: 1, Weight: 20},
		{NodeID: 2, Weight: 30},
		{NodeID: 3, Weight: 40},
		{NodeID: 4, Weight: 50},
	})
	require.NoError(t, err)
	gen := eventtest.NewGenerator(r, 7)
	e := makeTestEngine(t, r, testParams(events.GenerationThreshold))

	rounds := feed(e, gen.Generate(800))
	require.NotEmpty(t, rounds)
	requireWellFormed(t, rounds, basics.RoundFirst, 0)
}

func TestEngineDeterministic(t *testing.T) {
	partitiontest.PartitionTest(t)

	r := roster.MakeEqualWeight(4)
	evs := eventtest.NewGenerator(r, 3).Generate(300)
	reference := summarize(feed(makeTestEngine(t, r, testParams(events.GenerationThreshold)), evs))
	require.NotEmpty(t, reference)

	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Int64().Draw(rt, "seed")
		shuffled := eventtest.Shuffle(evs, rand.New(rand.NewSource(seed)))
		got := summarize(feed(makeTestEngine(t, r, testParams(events.GenerationThreshold)), shuffled))

		// every event was delivered, so the runs must agree on all of it.
		require.Len(rt, got, len(reference))
		if diff := cmp.Diff(reference, got); diff != "" {
			rt.Fatalf("consensus order depends on arrival order (-want +got):\n%s", diff)
		}
	})
}

func TestEngineBirthRoundMode(t *testing.T) {
	partitiontest.PartitionTest(t)

	r := roster.MakeEqualWeight(4)
	params := testParams(events.BirthRoundThreshold)
	params.Window.RoundsNonAncient = 5
	params.Window.RoundsExpired = 10
	e := makeTestEngine(t, r, params)
	gen := eventtest.NewGenerator(r, 11)

	var rounds []*ConsensusRound
	for i := 0; i < 1500; i++ {
		gen.SetBirthRound(e.EventWindow().PendingConsensusRound())
		rounds = append(rounds, e.AddEvent(gen.Next())...)
	}
	require.Greater(t, len(rounds), 10)
	requireWellFormed(t, rounds, basics.RoundFirst, 0)

	last := rounds[len(rounds)-1]
	require.Equal(t, uint64(last.RoundNum-5), last.EventWindow.AncientThreshold)
	require.Equal(t, uint64(last.RoundNum-10), last.EventWindow.ExpiredThreshold)
	for _, x := range e.graph.events {
		require.False(t, e.window.IsExpired(x.desc))
	}
	require.Less(t, e.graph.size(), 1500)
}

func TestEngineIgnoresEvents(t *testing.T) {
	partitiontest.PartitionTest(t)

	r := roster.MakeEqualWeight(3)
	e := makeTestEngine(t, r, testParams(events.GenerationThreshold))

	outsider := eventtest.MakeEvent(basics.NodeID(9), nil, nil, 1, eventtest.GenesisTime)
	require.Empty(t, e.AddEvent(outsider))
	require.Equal(t, 0, e.graph.size())

	ev := eventtest.MakeEvent(basics.NodeID(0), nil, nil, 1, eventtest.GenesisTime)
	require.Empty(t, e.AddEvent(ev))
	require.Empty(t, e.AddEvent(ev))
	require.Equal(t, 1, e.graph.size())
	require.Equal(t, uint64(2), e.eventsIgnored.GetUint64Value())
}

func TestEngineRestartFromSnapshot(t *testing.T) {
	partitiontest.PartitionTest(t)

	r := roster.MakeEqualWeight(4)
	evs := eventtest.NewGenerator(r, 5).Generate(600)
	params := testParams(events.GenerationThreshold)
	params.Window.RoundsNonAncient = 4
	params.Window.RoundsExpired = 8

	full := makeTestEngine(t, r, params)
	rounds := feed(full, evs)
	require.Greater(t, len(rounds), 10)

	// restart from a round all of whose witnesses are famous.
	k := -1
	for i := len(rounds) - 3; i > len(rounds)/2 && k < 0; i-- {
		ri := full.rounds[rounds[i].RoundNum]
		if ri == nil {
			continue
		}
		allFamous := true
		for _, w := range ri.witnesses {
			allFamous = allFamous && w.famous
		}
		if allFamous {
			k = i
		}
	}
	require.NotEqual(t, -1, k)
	snap := rounds[k].Snapshot

	restarted := makeTestEngine(t, r, params)
	restarted.LoadSnapshot(snap)
	require.Equal(t, snap.Round, restarted.LatestRound())
	require.Equal(t, rounds[k].EventWindow, restarted.EventWindow())

	resumed := feed(restarted, evs)
	require.NotEmpty(t, resumed)
	requireWellFormed(t, resumed, snap.Round+1, snap.NextConsensusNumber)

	want := summarize(rounds[k+1:])
	got := summarize(resumed)
	require.NotEmpty(t, want)
	require.Len(t, got, len(want))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("restarted node disagrees (-want +got):\n%s", diff)
	}
}

func TestEngineGenesisSnapshotReset(t *testing.T) {
	partitiontest.PartitionTest(t)

	r := roster.MakeEqualWeight(4)
	evs := eventtest.NewGenerator(r, 9).Generate(200)
	e := makeTestEngine(t, r, testParams(events.GenerationThreshold))
	first := summarize(feed(e, evs))

	e.LoadSnapshot(GenesisSnapshot())
	require.Equal(t, 0, e.graph.size())
	require.Equal(t, events.GenesisEventWindow(events.GenerationThreshold), e.EventWindow())

	e.SetReplaying(true)
	rounds := feed(e, evs)
	for _, cr := range rounds {
		require.True(t, cr.PCESRound)
	}
	require.Equal(t, first, summarize(rounds))
}

func TestSnapshotEncoding(t *testing.T) {
	partitiontest.PartitionTest(t)

	s := ConsensusSnapshot{
		Round:       12,
		JudgeHashes: []crypto.Digest{{1}, {2}, {3}},
		MinimumJudgeInfo: []events.MinimumJudgeInfo{
			{Round: 11, MinGeneration: 40, MinimumBirthRound: 9},
			{Round: 12, MinGeneration: 44, MinimumBirthRound: 10},
		},
		NextConsensusNumber: 99,
		ConsensusTimestamp:  time.Unix(1700000000, 123).UTC(),
	}
	decoded, err := DecodeSnapshot(EncodeSnapshot(s))
	require.NoError(t, err)
	require.Equal(t, s, decoded)
	require.Equal(t, s.Hash(), decoded.Hash())

	info, ok := s.MinimumJudgeInfoFor(11)
	require.True(t, ok)
	require.Equal(t, uint64(40), info.MinGeneration)
	_, ok = s.MinimumJudgeInfoFor(3)
	require.False(t, ok)

	changed := s
	changed.NextConsensusNumber++
	require.NotEqual(t, s.Hash(), changed.Hash())

	require.True(t, GenesisSnapshot().IsGenesis())
	require.False(t, s.IsGenesis())

	_, err = DecodeSnapshot([]byte{0xff, 0x00})
	require.Error(t, err)
}
