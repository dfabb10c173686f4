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
	"golang.org/x/exp/slices"

	"github.com/algorand/go-hashgraph/crypto"
	"github.com/algorand/go-hashgraph/data/basics"
)

// roundInfo collects the witnesses created in one round.
type roundInfo struct {
	witnesses []*eventImpl
	decided   bool
}

func (ri *roundInfo) allDecided() bool {
	if len(ri.witnesses) == 0 {
		return false
	}
	for _, w := range ri.witnesses {
		if !w.decided {
			return false
		}
	}
	return true
}

// judges returns the famous witnesses of the round, at most one per creator (the one with
// the lowest hash), in roster order.
func (ri *roundInfo) judges() []*eventImpl {
	byCreator := make(map[int]*eventImpl)
	for _, w := range ri.witnesses {
		if !w.famous {
			continue
		}
		if cur, ok := byCreator[w.creator]; !ok || w.hash().Less(cur.hash()) {
			byCreator[w.creator] = w
		}
	}
	out := make([]*eventImpl, 0, len(byCreator))
	for _, j := range byCreator {
		out = append(out, j)
	}
	slices.SortFunc(out, func(a, b *eventImpl) int { return a.creator - b.creator })
	return out
}

func (e *Engine) roundInfo(r basics.Round) *roundInfo {
	ri := e.rounds[r]
	if ri == nil {
		ri = &roundInfo{}
		e.rounds[r] = ri
	}
	return ri
}

// assignRound computes the round of x and whether it is a witness.
func (e *Engine) assignRound(x *eventImpl) {
	if e.snapshotJudges[x.hash()] {
		x.round = e.loaded.Round
		x.witness = true
		x.famous = true
		x.decided = true
		e.roundInfo(x.round).witnesses = append(e.roundInfo(x.round).witnesses, x)
		return
	}

	parentRound := e.floorRound()
	for _, p := range e.graph.parents(x) {
		if p.round > parentRound {
			parentRound = p.round
		}
	}

	x.round = parentRound
	if e.stronglySeesSupermajority(x, parentRound) {
		x.round = parentRound + 1
	}

	sp := e.graph.get(x.selfParent)
	switch {
	case x.round <= e.loaded.Round && !e.loaded.IsGenesis():
		// the witnesses of the snapshot round are exactly its judges.
		x.witness = false
	case sp == nil:
		x.witness = true
	default:
		x.witness = x.round > sp.round
	}
	if !x.witness {
		return
	}

	ri := e.roundInfo(x.round)
	ri.witnesses = append(ri.witnesses, x)
	if ri.decided || x.round <= e.lastRound {
		// too late to take part in an election that is over.
		x.decided = true
		x.famous = false
	}
}

// floorRound is the round given to events none of whose parents are known.
func (e *Engine) floorRound() basics.Round {
	return basics.MaxRound(basics.RoundFirst, e.loaded.Round)
}

// stronglySeesSupermajority reports whether x strongly sees witnesses of round r created
// by members holding more than two thirds of the weight.
func (e *Engine) stronglySeesSupermajority(x *eventImpl, r basics.Round) bool {
	ri := e.rounds[r]
	if ri == nil {
		return false
	}
	var weight uint64
	counted := make(map[int]bool)
	for _, w := range ri.witnesses {
		if counted[w.creator] {
			continue
		}
		if e.graph.stronglySees(x, w) {
			counted[w.creator] = true
			weight += e.roster.Weight(w.desc.Creator)
		}
	}
	return e.roster.IsSuperMajority(weight)
}

// tally sums, by weight, the votes on candidate of the witnesses of the round before voter
// that voter strongly sees.
func (e *Engine) tally(voter, candidate *eventImpl) (yes, no uint64) {
	ri := e.rounds[voter.round-1]
	if ri == nil {
		return 0, 0
	}
	counted := make(map[int]bool)
	for _, w := range ri.witnesses {
		if counted[w.creator] || !e.graph.stronglySees(voter, w) {
			continue
		}
		counted[w.creator] = true
		if e.vote(w, candidate) {
			yes += e.roster.Weight(w.desc.Creator)
		} else {
			no += e.roster.Weight(w.desc.Creator)
		}
	}
	return yes, no
}

func (e *Engine) isCoinRound(voter, candidate *eventImpl) bool {
	return uint64(voter.round-candidate.round)%e.coinFrequency() == 0
}

func (e *Engine) coinFrequency() uint64 {
	if e.params.CoinFrequency == 0 {
		return defaultCoinFrequency
	}
	return e.params.CoinFrequency
}

// vote returns the vote of witness voter on the fame of witness candidate.
func (e *Engine) vote(voter, candidate *eventImpl) bool {
	if v, ok := candidate.votes[voter.hash()]; ok {
		return v
	}

	var v bool
	if voter.round == candidate.round+1 {
		v = e.graph.sees(voter, candidate)
	} else {
		yes, no := e.tally(voter, candidate)
		v = yes >= no
		if e.isCoinRound(voter, candidate) && !e.roster.IsSuperMajority(max(yes, no)) {
			v = coin(voter)
		}
	}

	if candidate.votes == nil {
		candidate.votes = make(map[crypto.Digest]bool)
	}
	candidate.votes[voter.hash()] = v
	return v
}

// coin is the pseudorandom vote of a witness in a coin round.
func coin(w *eventImpl) bool {
	h := w.hash()
	return h[len(h)/2]&1 == 1
}

// runElections lets the new witness x decide the fame of earlier undecided witnesses.
func (e *Engine) runElections(x *eventImpl) {
	for r := e.lastRound + 1; r+1 < x.round; r++ {
		ri := e.rounds[r]
		if ri == nil || ri.decided {
			continue
		}
		for _, candidate := range ri.witnesses {
			if candidate.decided {
				continue
			}
			if e.isCoinRound(x, candidate) {
				continue
			}
			yes, no := e.tally(x, candidate)
			switch {
			case e.roster.IsSuperMajority(yes):
				candidate.famous = true
				candidate.decided = true
			case e.roster.IsSuperMajority(no):
				candidate.famous = false
				candidate.decided = true
			}
		}
		if ri.allDecided() {
			ri.decided = true
		}
	}
}
