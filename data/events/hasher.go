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

package events

import (
	"errors"
	"fmt"

	"github.com/algorand/go-hashgraph/crypto"
	"github.com/algorand/go-hashgraph/data/basics"
	"github.com/algorand/go-hashgraph/protocol"
)

var (
	// ErrNilEvent is returned when asked to hash a nil event.
	ErrNilEvent = errors.New("nil event")
	// ErrMalformedParent is returned when a parent descriptor carries no hash.
	ErrMalformedParent = errors.New("parent descriptor has no hash")
	// ErrForeignSelfParent is returned when the self parent was created by another node.
	ErrForeignSelfParent = errors.New("self parent created by a different node")
)

// hashedContent is exactly what an event hash covers.
type hashedContent struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Creator      basics.NodeID `codec:"c"`
	SelfParent   *parentRef    `codec:"sp"`
	OtherParent  *parentRef    `codec:"op"`
	BirthRound   basics.Round  `codec:"br"`
	TimeCreated  int64         `codec:"t"`
	Transactions [][]byte      `codec:"tx"`
}

// parentRef is the part of a parent descriptor covered by the hash. The parent's
// generation is derived and left out.
type parentRef struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Hash       crypto.Digest `codec:"h"`
	Creator    basics.NodeID `codec:"c"`
	BirthRound basics.Round  `codec:"br"`
}

func makeParentRef(d *EventDescriptor) *parentRef {
	if d == nil {
		return nil
	}
	return &parentRef{Hash: d.Hash, Creator: d.Creator, BirthRound: d.BirthRound}
}

// ToBeHashed implements the crypto.Hashable interface.
func (c hashedContent) ToBeHashed() (protocol.HashID, []byte) {
	return protocol.Event, protocol.EncodeReflect(c)
}

// HashEvent computes the identity of e and assigns its descriptor. The signature and
// software version are not covered. Hashing an already hashed event returns it unchanged.
func HashEvent(e *PlatformEvent) (*PlatformEvent, error) {
	if e == nil {
		return nil, ErrNilEvent
	}
	if e.descriptor != nil {
		return e, nil
	}
	d, err := computeDescriptor(e)
	if err != nil {
		return nil, err
	}
	e.descriptor = &d
	return e, nil
}

func computeDescriptor(e *PlatformEvent) (EventDescriptor, error) {
	if e.SelfParent != nil {
		if e.SelfParent.Hash.IsZero() {
			return EventDescriptor{}, fmt.Errorf("self parent of event by %v: %w", e.Creator, ErrMalformedParent)
		}
		if e.SelfParent.Creator != e.Creator {
			return EventDescriptor{}, fmt.Errorf("event by %v, self parent by %v: %w", e.Creator, e.SelfParent.Creator, ErrForeignSelfParent)
		}
	}
	if e.OtherParent != nil && e.OtherParent.Hash.IsZero() {
		return EventDescriptor{}, fmt.Errorf("other parent of event by %v: %w", e.Creator, ErrMalformedParent)
	}

	content := hashedContent{
		Creator:      e.Creator,
		SelfParent:   makeParentRef(e.SelfParent),
		OtherParent:  makeParentRef(e.OtherParent),
		BirthRound:   e.BirthRound,
		TimeCreated:  e.TimeCreated.UnixNano(),
		Transactions: e.Transactions,
	}
	return EventDescriptor{
		Hash:       crypto.HashObj(content),
		Creator:    e.Creator,
		BirthRound: e.BirthRound,
		Generation: e.Generation(),
	}, nil
}
