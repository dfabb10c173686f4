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

// Package events defines the events gossiped between nodes, their identity and the
// windows used to decide when an event is too old to matter.
package events

import (
	"fmt"

	"github.com/algorand/go-hashgraph/crypto"
	"github.com/algorand/go-hashgraph/data/basics"
)

// EventDescriptor is the stable identity of a hashed event. It is what parents are
// referenced by and what every index is keyed on.
type EventDescriptor struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Hash       crypto.Digest `codec:"h"`
	Creator    basics.NodeID `codec:"c"`
	BirthRound basics.Round  `codec:"br"`
	Generation uint64        `codec:"g"`
}

// Equal reports whether two descriptors identify the same event. Only the hash is compared.
func (d EventDescriptor) Equal(other EventDescriptor) bool {
	return d.Hash == other.Hash
}

// String returns a short form for logging.
func (d EventDescriptor) String() string {
	return fmt.Sprintf("(%v br:%d g:%d %s)", d.Creator, d.BirthRound, d.Generation, d.Hash.ShortString())
}
