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

// Package roster describes the weighted set of nodes taking part in consensus.
package roster

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/algorand/go-hashgraph/crypto"
	"github.com/algorand/go-hashgraph/data/basics"
	"github.com/algorand/go-hashgraph/protocol"
)

var (
	// ErrEmptyRoster is returned when a roster has no entry with positive weight.
	ErrEmptyRoster = errors.New("roster has no weight")
	// ErrDuplicateNode is returned when a node appears twice in a roster.
	ErrDuplicateNode = errors.New("roster lists a node more than once")
)

// Entry is a single roster member.
type Entry struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	NodeID basics.NodeID `codec:"id"`
	Weight uint64        `codec:"w"`
}

// Roster is an ordered, immutable list of weighted nodes.
type Roster struct {
	entries     []Entry
	index       map[basics.NodeID]int
	totalWeight uint64
}

// MakeRoster builds a roster from entries, keeping their order.
func MakeRoster(entries []Entry) (*Roster, error) {
	r := &Roster{
		entries: append([]Entry(nil), entries...),
		index:   make(map[basics.NodeID]int, len(entries)),
	}
	for i, e := range r.entries {
		if _, dup := r.index[e.NodeID]; dup {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateNode, e.NodeID)
		}
		r.index[e.NodeID] = i
		var carry uint64
		r.totalWeight, carry = bits.Add64(r.totalWeight, e.Weight, 0)
		if carry != 0 {
			return nil, fmt.Errorf("roster weight overflows at %v", e.NodeID)
		}
	}
	if r.totalWeight == 0 {
		return nil, ErrEmptyRoster
	}
	return r, nil
}

// MakeEqualWeight returns a roster of n nodes with ids 0..n-1 and weight 1 each.
func MakeEqualWeight(n int) *Roster {
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = Entry{NodeID: basics.NodeID(i), Weight: 1}
	}
	r, err := MakeRoster(entries)
	if err != nil {
		panic(err)
	}
	return r
}

// Size returns the number of nodes.
func (r *Roster) Size() int {
	return len(r.entries)
}

// Entries returns a copy of the roster entries.
func (r *Roster) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// TotalWeight returns the sum of all weights.
func (r *Roster) TotalWeight() uint64 {
	return r.totalWeight
}

// Index returns the position of id in the roster.
func (r *Roster) Index(id basics.NodeID) (int, bool) {
	i, ok := r.index[id]
	return i, ok
}

// Contains reports whether id is a member.
func (r *Roster) Contains(id basics.NodeID) bool {
	_, ok := r.index[id]
	return ok
}

// Weight returns the weight of id, zero for non-members.
func (r *Roster) Weight(id basics.NodeID) uint64 {
	i, ok := r.index[id]
	if !ok {
		return 0
	}
	return r.entries[i].Weight
}

// NodeAt returns the id at position i.
func (r *Roster) NodeAt(i int) basics.NodeID {
	return r.entries[i].NodeID
}

// IsSuperMajority reports whether weight is more than two thirds of the total.
func (r *Roster) IsSuperMajority(weight uint64) bool {
	return exceedsFraction(weight, r.totalWeight, 3, 2)
}

// IsStrictMajority reports whether weight is more than half of the total.
func (r *Roster) IsStrictMajority(weight uint64) bool {
	return exceedsFraction(weight, r.totalWeight, 2, 1)
}

// exceedsFraction reports weight*den > total*num without overflowing.
func exceedsFraction(weight, total, den, num uint64) bool {
	lhsHi, lhsLo := bits.Mul64(weight, den)
	rhsHi, rhsLo := bits.Mul64(total, num)
	if lhsHi != rhsHi {
		return lhsHi > rhsHi
	}
	return lhsLo > rhsLo
}

// ToBeHashed implements the crypto.Hashable interface.
func (r *Roster) ToBeHashed() (protocol.HashID, []byte) {
	return protocol.Roster, protocol.EncodeReflect(r.entries)
}

// Hash returns the digest identifying this roster.
func (r *Roster) Hash() crypto.Digest {
	return crypto.HashObj(r)
}
