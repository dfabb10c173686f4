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

package pipeline

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/algorand/go-deadlock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/algorand/go-hashgraph/config"
	"github.com/algorand/go-hashgraph/consensus"
	"github.com/algorand/go-hashgraph/crypto"
	"github.com/algorand/go-hashgraph/data/basics"
	"github.com/algorand/go-hashgraph/data/events"
	"github.com/algorand/go-hashgraph/data/events/eventtest"
	"github.com/algorand/go-hashgraph/data/roster"
	"github.com/algorand/go-hashgraph/logging"
	"github.com/algorand/go-hashgraph/pces"
	"github.com/algorand/go-hashgraph/test/partitiontest"
	"github.com/algorand/go-hashgraph/util/metrics"
)

func testConfig(threaded bool) Config {
	cfg := config.GetDefaultLocal()
	cfg.UseBirthRoundAncientThreshold = false
	cfg.EventPipelineQueueSize = 16
	return MakeConfig(cfg, threaded)
}

// collector gathers the output of an intake.
type collector struct {
	mu      deadlock.Mutex
	rounds  []*consensus.ConsensusRound
	windows []events.EventWindow
}

func (c *collector) attach(i *Intake) {
	i.RegisterRoundHandler(func(r *consensus.ConsensusRound) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.rounds = append(c.rounds, r)
	})
	i.RegisterWindowHandler(func(w events.EventWindow) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.windows = append(c.windows, w)
	})
}

type ordered struct {
	Round basics.Round
	Hash  crypto.Digest
	Order uint64
	Time  time.Time
}

func (c *collector) ordered() []ordered {
	c.mu.Lock()
	defer c.mu.Unlock()
	return summarize(c.rounds)
}

func summarize(rounds []*consensus.ConsensusRound) []ordered {
	var out []ordered
	for _, r := range rounds {
		for _, ce := range r.Events {
			out = append(out, ordered{Round: ce.RoundReceived, Hash: ce.Event.Hash(), Order: ce.ConsensusOrder, Time: ce.ConsensusTimestamp})
		}
	}
	return out
}

func makeTestIntake(t *testing.T, cfg Config, deps Deps) (*Intake, *collector) {
	if deps.Roster == nil {
		deps.Roster = roster.MakeEqualWeight(4)
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return eventtest.GenesisTime }
	}
	i, err := MakeIntake(cfg, deps, logging.TestingLog(t), metrics.MakeRegistry())
	require.NoError(t, err)
	c := &collector{}
	c.attach(i)
	return i, c
}

// referenceOrder runs the events straight through a consensus engine.
func referenceOrder(t *testing.T, cfg Config, evs []*events.PlatformEvent) []ordered {
	e := consensus.MakeEngine(cfg.Consensus, roster.MakeEqualWeight(4), logging.TestingLog(t), metrics.MakeRegistry(), nil)
	var rounds []*consensus.ConsensusRound
	for _, ev := range evs {
		rounds = append(rounds, e.AddEvent(ev)...)
	}
	return summarize(rounds)
}

// unhashed returns copies of evs as they would arrive from the network.
func unhashed(evs []*events.PlatformEvent) []*events.PlatformEvent {
	out := make([]*events.PlatformEvent, len(evs))
	for i, e := range evs {
		out[i] = e.Copy()
	}
	return out
}

// shuffleChunks permutes evs within consecutive chunks, ignoring causality.
func shuffleChunks(evs []*events.PlatformEvent, chunk int, rng *rand.Rand) []*events.PlatformEvent {
	var out []*events.PlatformEvent
	for start := 0; start < len(evs); start += chunk {
		end := min(start+chunk, len(evs))
		out = append(out, eventtest.Permute(evs[start:end], rng)...)
	}
	return out
}

func requireSameOrder(t *testing.T, want, got []ordered) {
	require.NotEmpty(t, want)
	require.Len(t, got, len(want))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("consensus output differs (-want +got):\n%s", diff)
	}
}

func TestIntakeInOrder(t *testing.T) {
	partitiontest.PartitionTest(t)

	ctx := context.Background()
	cfg := testConfig(false)
	evs := eventtest.NewGenerator(roster.MakeEqualWeight(4), 1).Generate(400)
	want := referenceOrder(t, cfg, evs)
	require.NotEmpty(t, want)

	i, c := makeTestIntake(t, cfg, Deps{})
	for _, e := range unhashed(evs) {
		require.NoError(t, i.AddEvent(ctx, e))
	}
	require.NoError(t, i.Flush(ctx))
	require.Equal(t, want, c.ordered())
	require.Equal(t, uint64(len(evs)), i.hashed.GetUint64Value())

	require.NotEmpty(t, c.windows)
	require.Equal(t, c.windows[len(c.windows)-1], i.CurrentWindow())
	require.Equal(t, c.rounds[len(c.rounds)-1].EventWindow, i.CurrentWindow())
	require.NoError(t, i.Stop(ctx))
	require.ErrorIs(t, i.AddEvent(ctx, evs[0].Copy()), ErrIntakeHalted)
}

func TestIntakeOutOfOrder(t *testing.T) {
	partitiontest.PartitionTest(t)

	ctx := context.Background()
	cfg := testConfig(false)
	evs := eventtest.NewGenerator(roster.MakeEqualWeight(4), 2).Generate(400)
	want := referenceOrder(t, cfg, evs)

	for seed := int64(0); seed < 3; seed++ {
		i, c := makeTestIntake(t, cfg, Deps{})
		shuffled := shuffleChunks(unhashed(evs), 20, rand.New(rand.NewSource(seed)))
		for _, e := range shuffled {
			require.NoError(t, i.AddEvent(ctx, e))
		}
		// duplicates are ignored.
		for _, e := range unhashed(evs[:50]) {
			require.NoError(t, i.AddEvent(ctx, e))
		}
		require.NoError(t, i.Flush(ctx))
		requireSameOrder(t, want, c.ordered())
		require.Zero(t, i.buffer.Size())
	}
}

func TestIntakeThreaded(t *testing.T) {
	partitiontest.PartitionTest(t)

	ctx := context.Background()
	cfg := testConfig(true)
	evs := eventtest.NewGenerator(roster.MakeEqualWeight(4), 3).Generate(400)
	want := referenceOrder(t, cfg, evs)

	i, c := makeTestIntake(t, cfg, Deps{})
	for _, e := range unhashed(evs) {
		require.NoError(t, i.AddEvent(ctx, e))
	}
	require.NoError(t, i.Flush(ctx))
	require.Equal(t, want, c.ordered())
	require.NoError(t, i.Stop(ctx))
}

func TestIntakeDropsMalformedEvents(t *testing.T) {
	partitiontest.PartitionTest(t)

	ctx := context.Background()
	i, _ := makeTestIntake(t, testConfig(false), Deps{})
	bad := &events.PlatformEvent{Creator: 1, SelfParent: &events.EventDescriptor{Creator: 1}, TimeCreated: eventtest.GenesisTime}
	require.NoError(t, i.AddEvent(ctx, bad))
	require.NoError(t, i.Flush(ctx))
	require.Equal(t, uint64(1), i.hashFailed.GetUint64Value())
	require.NoError(t, i.Err())
}

func TestIntakeBackpressure(t *testing.T) {
	partitiontest.PartitionTest(t)

	ctx := context.Background()
	cfg := testConfig(true)
	cfg.OrphanBufferCapacity = 2
	evs := eventtest.NewGenerator(roster.MakeEqualWeight(4), 8).Generate(400)
	want := referenceOrder(t, cfg, evs)
	i, c := makeTestIntake(t, cfg, Deps{})
	defer i.Stop(ctx)

	// orphans from a creator outside the roster, one of them waiting on a parent that
	// will arrive and the others on parents that never do.
	at := eventtest.GenesisTime.Add(-time.Hour)
	const outsider = basics.NodeID(99)
	parent := eventtest.MakeEvent(outsider, nil, nil, 1, at)
	child := eventtest.MakeEvent(outsider, parent, nil, 1, at.Add(time.Millisecond))
	stray := func(n int) *events.PlatformEvent {
		missing := eventtest.MakeEvent(outsider+basics.NodeID(n), nil, nil, 1, at.Add(time.Duration(n)*time.Second))
		return eventtest.MakeEvent(outsider+basics.NodeID(n), missing, nil, 1, at.Add(time.Duration(n)*time.Second+time.Millisecond))
	}
	require.NoError(t, i.AddEvent(ctx, child.Copy()))
	require.NoError(t, i.AddEvent(ctx, stray(1).Copy()))
	require.NoError(t, i.Flush(ctx))
	require.True(t, i.buffer.Full())

	// one more orphan has to wait.
	tctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, i.AddEvent(tctx, stray(2).Copy()), context.DeadlineExceeded)

	// the parent an orphan waits for is taken right away.
	require.NoError(t, i.AddEvent(ctx, parent.Copy()))
	require.NoError(t, i.Flush(ctx))
	require.Equal(t, 1, i.buffer.Size())
	require.NoError(t, i.AddEvent(ctx, stray(3).Copy()))
	require.NoError(t, i.Flush(ctx))
	require.True(t, i.buffer.Full())

	// honest traffic keeps flowing while the buffer is full of orphans that cannot resolve.
	for n, e := range unhashed(evs) {
		ectx, cancel := context.WithTimeout(ctx, 10*time.Second)
		require.NoError(t, i.AddEvent(ectx, e), "event %d", n)
		cancel()
	}
	require.NoError(t, i.Flush(ctx))
	requireSameOrder(t, want, c.ordered())
}

func openPCES(t *testing.T, dir string, mode events.AncientMode) (*pces.FileManager, *pces.Writer) {
	fm, err := pces.OpenFileManager(dir, mode, logging.TestingLog(t), metrics.MakeRegistry())
	require.NoError(t, err)
	cfg := pces.MakeWriterConfig(config.GetDefaultLocal())
	cfg.PreferredFileSize = 8192
	return fm, pces.MakeWriter(cfg, mode, fm, logging.TestingLog(t), metrics.MakeRegistry())
}

func TestReplayReproducesRounds(t *testing.T) {
	partitiontest.PartitionTest(t)

	ctx := context.Background()
	dir := t.TempDir()
	cfg := testConfig(false)
	evs := eventtest.NewGenerator(roster.MakeEqualWeight(4), 4).Generate(400)

	store, err := consensus.OpenSnapshotStore(filepath.Join(t.TempDir(), "snapshots.sqlite"), false, logging.TestingLog(t))
	require.NoError(t, err)
	defer store.Close()

	fm, w := openPCES(t, dir, events.GenerationThreshold)
	require.NoError(t, w.BeginStreamingNewEvents())
	i, c := makeTestIntake(t, cfg, Deps{Writer: w, Snapshots: store})
	for _, e := range unhashed(evs) {
		require.NoError(t, i.AddEvent(ctx, e))
	}
	require.NoError(t, i.Stop(ctx))
	fm.Close()
	original := c.ordered()
	require.NotEmpty(t, original)
	for _, r := range c.rounds {
		require.False(t, r.PCESRound)
	}

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, c.rounds[len(c.rounds)-1].Snapshot, latest)

	fm, w = openPCES(t, dir, events.GenerationThreshold)
	defer fm.Close()
	replayed, rc := makeTestIntake(t, cfg, Deps{Writer: w})
	n, err := Replay(ctx, replayed, fm, consensus.GenesisSnapshot())
	require.NoError(t, err)
	require.Equal(t, len(evs), n)
	require.Equal(t, original, rc.ordered())
	for _, r := range rc.rounds {
		require.True(t, r.PCESRound)
	}
	require.True(t, w.Streaming())

	// new events after replay are stored and no longer marked as replayed.
	files, err := fm.Files()
	require.NoError(t, err)
	more := eventtest.NewGenerator(roster.MakeEqualWeight(4), 4).Generate(600)[400:]
	for _, e := range unhashed(more) {
		require.NoError(t, replayed.AddEvent(ctx, e))
	}
	require.NoError(t, replayed.Flush(ctx))
	require.False(t, rc.rounds[len(rc.rounds)-1].PCESRound)
	after, err := fm.Files()
	require.NoError(t, err)
	require.Greater(t, after[len(after)-1].Sequence, files[len(files)-1].Sequence)
	require.NoError(t, replayed.Stop(ctx))
}

func TestIntakeDiscontinuity(t *testing.T) {
	partitiontest.PartitionTest(t)

	ctx := context.Background()
	fm, w := openPCES(t, t.TempDir(), events.GenerationThreshold)
	defer fm.Close()
	require.NoError(t, w.BeginStreamingNewEvents())
	i, _ := makeTestIntake(t, testConfig(false), Deps{Writer: w})

	evs := eventtest.NewGenerator(roster.MakeEqualWeight(4), 5).Generate(50)
	for _, e := range unhashed(evs) {
		require.NoError(t, i.AddEvent(ctx, e))
	}
	require.NoError(t, i.RegisterDiscontinuity(ctx, 100))
	require.NoError(t, i.Flush(ctx))
	require.Equal(t, basics.Round(100), fm.Origin())
	require.NoError(t, i.SetMinimumAncientIdentifierToStore(ctx, 1))
	require.NoError(t, i.Stop(ctx))
}

func TestIntakeHaltsOnWriterFailure(t *testing.T) {
	partitiontest.PartitionTest(t)

	ctx := context.Background()
	fm, w := openPCES(t, t.TempDir(), events.GenerationThreshold)
	require.NoError(t, w.BeginStreamingNewEvents())

	var fatal error
	i, c := makeTestIntake(t, testConfig(false), Deps{Writer: w, OnFatal: func(err error) { fatal = err }})

	// the writer can no longer record new files.
	fm.Close()

	evs := eventtest.NewGenerator(roster.MakeEqualWeight(4), 6).Generate(10)
	require.NoError(t, i.AddEvent(ctx, evs[0].Copy()))
	require.ErrorIs(t, fatal, pces.ErrWriterFailed)
	require.True(t, errors.Is(i.Err(), pces.ErrWriterFailed))
	require.Zero(t, i.buffer.Size())
	require.Empty(t, c.rounds)

	err := i.AddEvent(ctx, evs[1].Copy())
	require.ErrorIs(t, err, ErrIntakeHalted)
	require.ErrorContains(t, err, "writer failed")
}

func TestIntakeHaltsOnSnapshotFailure(t *testing.T) {
	partitiontest.PartitionTest(t)

	ctx := context.Background()
	store, err := consensus.OpenSnapshotStore(filepath.Join(t.TempDir(), "snapshots.sqlite"), false, logging.TestingLog(t))
	require.NoError(t, err)
	store.Close()

	var fatal error
	i, c := makeTestIntake(t, testConfig(false), Deps{Snapshots: store, OnFatal: func(err error) { fatal = err }})

	evs := eventtest.NewGenerator(roster.MakeEqualWeight(4), 9).Generate(400)
	for _, e := range unhashed(evs) {
		if err = i.AddEvent(ctx, e); err != nil {
			break
		}
	}
	require.ErrorIs(t, err, ErrIntakeHalted)
	require.ErrorContains(t, fatal, "saving snapshot of round")
	require.Empty(t, c.rounds)
}

func TestMakeConfig(t *testing.T) {
	partitiontest.PartitionTest(t)

	local := config.GetDefaultLocal()
	local.BirthRoundMigrationFirstVersion = "0.50.0"
	local.BirthRoundMigrationLastRound = 1000
	local.BirthRoundMigrationLowestJudgeGeneration = 20
	cfg := MakeConfig(local, true)
	require.True(t, cfg.Threaded)
	require.Equal(t, local.EventPipelineQueueSize, cfg.QueueSize)
	require.Equal(t, local.OrphanBufferCapacity, cfg.OrphanBufferCapacity)
	require.Equal(t, events.BirthRoundThreshold, cfg.Consensus.Window.AncientMode)
	require.Equal(t, local.RoundsNonAncient, cfg.Consensus.Window.RoundsNonAncient)
	require.Equal(t, uint64(12), cfg.Consensus.CoinFrequency)
	require.NotNil(t, cfg.Migration)
	require.Equal(t, basics.Round(1000), cfg.Migration.LastRoundBeforeBirthRoundMode)

	local.BirthRoundMigrationFirstVersion = ""
	require.Nil(t, MakeConfig(local, false).Migration)
}
