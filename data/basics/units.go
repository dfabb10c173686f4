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

package basics

import (
	"math"
	"strconv"
)

// Round represents a consensus round number.
type Round uint64

// RoundFirst is the first round that can reach consensus. Round 0 is only ever used by the
// synthetic genesis snapshot.
const RoundFirst Round = 1

// SubSaturate subtracts x rounds with saturation arithmetic that
// returns 0 if round < x.
func (round Round) SubSaturate(x Round) Round {
	if round < x {
		return 0
	}
	return round - x
}

// AddSaturate adds x rounds, saturating at the maximal round value.
func (round Round) AddSaturate(x Round) Round {
	if math.MaxUint64-round < x {
		return math.MaxUint64
	}
	return round + x
}

// RoundUpToMultipleOf rounds up round to the next multiple of n.
func (round Round) RoundUpToMultipleOf(n Round) Round {
	return (round + n - 1) / n * n
}

// String returns the decimal representation of the round.
func (round Round) String() string {
	return strconv.FormatUint(uint64(round), 10)
}

// NodeID identifies a member of the roster.
type NodeID uint64

// String returns a printable node id.
func (id NodeID) String() string {
	return "node" + strconv.FormatUint(uint64(id), 10)
}

// MaxRound returns the larger of two rounds.
func MaxRound(a, b Round) Round {
	if a > b {
		return a
	}
	return b
}
