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

// Package consensus orders events by virtual voting over the hashgraph of non-ancient events.
//
// Every event is assigned a round. The first event of each creator in a round is a witness,
// and later witnesses vote on whether it is famous: a witness is famous when witnesses of
// the next round holding more than two thirds of the weight can see it. Once all witnesses
// of a round are decided, the famous ones (one per creator) are the round's judges, and the
// events that a strict majority of the judges descend from are received in that round.
package consensus

import (
	"time"

	"github.com/algorand/go-hashgraph/crypto"
	"github.com/algorand/go-hashgraph/data/basics"
	"github.com/algorand/go-hashgraph/data/events"
	"github.com/algorand/go-hashgraph/data/roster"
	"github.com/algorand/go-hashgraph/logging"
	"github.com/algorand/go-hashgraph/util/metrics"
)

const defaultCoinFrequency = 12

// Params configures an Engine.
type Params struct {
	// CoinFrequency is the period of coin rounds in fame elections.
	CoinFrequency uint64
	Window        events.WindowParams
}

// Engine is the consensus algorithm. It is not safe for concurrent use: events and
// snapshot loads are delivered by a single pipeline stage.
type Engine struct {
	params Params
	roster *roster.Roster
	log    logging.Logger
	clock  func() time.Time

	graph  *graph
	rounds map[basics.Round]*roundInfo

	// loaded is the snapshot consensus was (re)started from.
	loaded         ConsensusSnapshot
	snapshotJudges map[crypto.Digest]bool
	// snapshot describes the latest emitted round.
	snapshot  ConsensusSnapshot
	lastRound basics.Round
	window    events.EventWindow

	nextConsensusNumber uint64
	lastConsensusTime   time.Time
	lastTxCount         int

	replaying bool

	roundsDecided  *metrics.Counter
	eventsOrdered  *metrics.Counter
	eventsIgnored  *metrics.Counter
	dagSize        *metrics.Gauge
	latestRoundNum *metrics.Gauge
}

// MakeEngine creates an engine starting from the genesis snapshot. clock supplies the wall
// clock time recorded on emitted rounds; nil means time.Now.
func MakeEngine(params Params, r *roster.Roster, log logging.Logger, reg *metrics.Registry, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	e := &Engine{
		params:         params,
		roster:         r,
		log:            log,
		clock:          clock,
		roundsDecided:  metrics.MakeCounter(reg, metrics.ConsensusRoundsDecided),
		eventsOrdered:  metrics.MakeCounter(reg, metrics.ConsensusEventsOrdered),
		eventsIgnored:  metrics.MakeCounter(reg, metrics.ConsensusEventsIgnored),
		dagSize:        metrics.MakeGauge(reg, metrics.ConsensusDAGSize),
		latestRoundNum: metrics.MakeGauge(reg, metrics.ConsensusLatestRound),
	}
	e.LoadSnapshot(GenesisSnapshot())
	return e
}

// LoadSnapshot replaces all state with the state right after snapshot s. The judges of s
// rejoin the graph as decided famous witnesses when they arrive, and events they mostly
// descend from are considered ordered already.
func (e *Engine) LoadSnapshot(s ConsensusSnapshot) {
	e.graph = makeGraph(e.roster)
	e.rounds = make(map[basics.Round]*roundInfo)
	e.loaded = s
	e.snapshot = s
	e.lastRound = s.Round
	e.window = e.params.Window.Window(s.Round, s.MinimumJudgeInfo)
	e.nextConsensusNumber = s.NextConsensusNumber
	e.lastConsensusTime = s.ConsensusTimestamp
	e.lastTxCount = 0
	e.snapshotJudges = make(map[crypto.Digest]bool, len(s.JudgeHashes))
	for _, h := range s.JudgeHashes {
		e.snapshotJudges[h] = true
	}
	if !s.IsGenesis() {
		e.roundInfo(s.Round).decided = true
	}
	e.dagSize.Set(0)
	e.latestRoundNum.Set(float64(s.Round))
	e.log.Infof("consensus: loaded snapshot of round %d with %d judges, %v", s.Round, len(s.JudgeHashes), e.window)
}

// SetReplaying marks the rounds produced from now on as replayed from the pre-consensus
// event stream.
func (e *Engine) SetReplaying(replaying bool) {
	e.replaying = replaying
}

// EventWindow returns the window after the latest emitted round.
func (e *Engine) EventWindow() events.EventWindow {
	return e.window
}

// Snapshot returns the snapshot of the latest emitted round.
func (e *Engine) Snapshot() ConsensusSnapshot {
	return e.snapshot
}

// LatestRound returns the number of the latest emitted round.
func (e *Engine) LatestRound() basics.Round {
	return e.lastRound
}

// AddEvent adds an event whose parents have already been added (or are ancient) and
// returns the rounds decided as a result, in round order. Events from outside the roster,
// duplicates and ancient events are ignored.
func (e *Engine) AddEvent(ev *events.PlatformEvent) []*ConsensusRound {
	desc := ev.Descriptor()
	if !e.roster.Contains(desc.Creator) {
		e.log.Warnf("consensus: ignoring event %v from a node outside the roster", desc)
		e.eventsIgnored.Inc()
		return nil
	}
	if e.graph.get(desc.Hash) != nil || e.window.IsAncient(desc) {
		e.eventsIgnored.Inc()
		return nil
	}

	x := e.graph.insert(ev)
	e.dagSize.Set(float64(e.graph.size()))
	e.assignRound(x)
	if !x.witness {
		return nil
	}
	e.runElections(x)

	var out []*ConsensusRound
	for {
		ri := e.rounds[e.lastRound+1]
		if ri == nil || !ri.decided {
			break
		}
		out = append(out, e.emitRound(e.lastRound+1, ri))
	}
	return out
}

func (e *Engine) emitRound(r basics.Round, ri *roundInfo) *ConsensusRound {
	if r == e.loaded.Round+1 && !e.loaded.IsGenesis() {
		e.markAlreadyOrdered()
	}

	judges := ri.judges()
	received, timestamps := e.receivedEvents(r, judges)
	ordered := e.orderRound(r, received, timestamps)

	judgeHashes := make([]crypto.Digest, len(judges))
	for i, j := range judges {
		judgeHashes[i] = j.hash()
	}
	info := append(append([]events.MinimumJudgeInfo(nil), e.snapshot.MinimumJudgeInfo...), e.minimumJudgeInfo(r, judges))
	if keep := e.params.Window.Retained(); len(info) > keep {
		info = info[len(info)-keep:]
	}
	e.snapshot = ConsensusSnapshot{
		Round:               r,
		JudgeHashes:         judgeHashes,
		MinimumJudgeInfo:    info,
		NextConsensusNumber: e.nextConsensusNumber,
		ConsensusTimestamp:  e.lastConsensusTime,
	}
	e.lastRound = r
	e.window = e.params.Window.Window(r, info)
	e.prune()

	e.roundsDecided.Inc()
	e.eventsOrdered.AddUint64(uint64(len(ordered)))
	e.latestRoundNum.Set(float64(r))
	e.log.Debugf("consensus: round %d decided with %d judges, %d events", r, len(judges), len(ordered))

	return &ConsensusRound{
		RoundNum:           r,
		Events:             ordered,
		EventWindow:        e.window,
		Snapshot:           e.snapshot,
		Roster:             e.roster,
		PCESRound:          e.replaying,
		ReachedConsensusAt: e.clock(),
	}
}

// prune drops expired events, and rounds none of whose witnesses remain.
func (e *Engine) prune() {
	e.graph.prune(func(x *eventImpl) bool {
		return e.window.IsExpired(x.desc)
	})
	for r, ri := range e.rounds {
		if r >= e.lastRound {
			continue
		}
		alive := false
		for _, w := range ri.witnesses {
			if e.graph.get(w.hash()) != nil {
				alive = true
				break
			}
		}
		if !alive {
			delete(e.rounds, r)
		}
	}
	e.dagSize.Set(float64(e.graph.size()))
}
