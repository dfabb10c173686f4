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
	"bytes"
	"time"

	"golang.org/x/exp/slices"

	"github.com/algorand/go-hashgraph/data/basics"
	"github.com/algorand/go-hashgraph/data/events"
)

// markAlreadyOrdered flags the events that reached consensus before the loaded snapshot:
// those that are ancestors of a strict majority of the snapshot judges.
func (e *Engine) markAlreadyOrdered() {
	var judges []*eventImpl
	for _, h := range e.loaded.JudgeHashes {
		if j := e.graph.get(h); j != nil {
			judges = append(judges, j)
		}
	}
	total := len(e.loaded.JudgeHashes)
	for _, x := range e.graph.events {
		if x.consensus {
			continue
		}
		count := 0
		for _, j := range judges {
			if e.graph.sees(j, x) {
				count++
			}
		}
		if 2*count > total {
			x.consensus = true
			x.roundReceived = e.loaded.Round
		}
	}
}

// receivedEvents returns the events received in round r, in consensus order, together
// with their median timestamps.
func (e *Engine) receivedEvents(r basics.Round, judges []*eventImpl) ([]*eventImpl, map[*eventImpl]time.Time) {
	if len(judges) == 0 {
		return nil, nil
	}
	var received []*eventImpl
	timestamps := make(map[*eventImpl]time.Time)
	for _, x := range e.graph.events {
		if x.consensus || x.round > r || e.window.IsAncient(x.desc) {
			continue
		}
		var times []time.Time
		for _, j := range judges {
			if e.graph.sees(j, x) {
				times = append(times, e.graph.earliestSeeingSelfAncestor(j, x).created())
			}
		}
		if 2*len(times) <= len(judges) {
			continue
		}
		slices.SortFunc(times, func(a, b time.Time) int { return a.Compare(b) })
		timestamps[x] = times[len(times)/2]
		received = append(received, x)
	}

	slices.SortFunc(received, func(a, b *eventImpl) int {
		if c := timestamps[a].Compare(timestamps[b]); c != 0 {
			return c
		}
		ha, hb := a.hash(), b.hash()
		return bytes.Compare(ha[:], hb[:])
	})
	return received, timestamps
}

// orderRound assigns consensus timestamps and order numbers to the received events of r.
// Timestamps strictly increase across rounds: each event follows the previous one by at
// least one nanosecond per transaction of the previous event, and at least one nanosecond.
func (e *Engine) orderRound(r basics.Round, received []*eventImpl, timestamps map[*eventImpl]time.Time) []*ConsensusEvent {
	out := make([]*ConsensusEvent, 0, len(received))
	for _, x := range received {
		ts := timestamps[x]
		if !e.lastConsensusTime.IsZero() {
			gap := e.lastTxCount
			if gap < 1 {
				gap = 1
			}
			if earliest := e.lastConsensusTime.Add(time.Duration(gap)); ts.Before(earliest) {
				ts = earliest
			}
		}
		x.consensus = true
		x.roundReceived = r
		out = append(out, &ConsensusEvent{
			Event:              x.ev,
			ConsensusTimestamp: ts,
			ConsensusOrder:     e.nextConsensusNumber,
			RoundReceived:      r,
		})
		e.nextConsensusNumber++
		e.lastConsensusTime = ts
		e.lastTxCount = x.ev.TransactionCount()
	}
	if len(out) > 0 {
		out[len(out)-1].LastInRoundReceived = true
	}
	return out
}

// minimumJudgeInfo computes the smallest indicators among the judges of r. Without judges
// the previous round's values carry over.
func (e *Engine) minimumJudgeInfo(r basics.Round, judges []*eventImpl) events.MinimumJudgeInfo {
	info := events.MinimumJudgeInfo{Round: r}
	if len(judges) == 0 {
		if n := len(e.snapshot.MinimumJudgeInfo); n > 0 {
			prev := e.snapshot.MinimumJudgeInfo[n-1]
			info.MinGeneration = prev.MinGeneration
			info.MinimumBirthRound = prev.MinimumBirthRound
		}
		return info
	}
	info.MinGeneration = judges[0].desc.Generation
	info.MinimumBirthRound = judges[0].desc.BirthRound
	for _, j := range judges[1:] {
		if j.desc.Generation < info.MinGeneration {
			info.MinGeneration = j.desc.Generation
		}
		if j.desc.BirthRound < info.MinimumBirthRound {
			info.MinimumBirthRound = j.desc.BirthRound
		}
	}
	return info
}
