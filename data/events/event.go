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
	"fmt"
	"time"

	"github.com/algorand/go-hashgraph/crypto"
	"github.com/algorand/go-hashgraph/data/basics"
	"github.com/algorand/go-hashgraph/protocol"
)

// PlatformEvent is a unit of gossip: a batch of transactions created by one node, linking
// to the creator's previous event and to one event of another node.
//
// An event must not be modified once it has been hashed. Stages that need a changed event
// (the birth round migration) work on a copy.
type PlatformEvent struct {
	Creator         basics.NodeID
	SelfParent      *EventDescriptor
	OtherParent     *EventDescriptor
	BirthRound      basics.Round
	TimeCreated     time.Time
	Transactions    [][]byte
	Signature       []byte
	SoftwareVersion string

	descriptor *EventDescriptor
}

// Descriptor returns the identity assigned by the hasher. It panics on an unhashed event.
func (e *PlatformEvent) Descriptor() EventDescriptor {
	if e.descriptor == nil {
		panic("events: descriptor requested before hashing")
	}
	return *e.descriptor
}

// Hashed reports whether the event has been through the hasher.
func (e *PlatformEvent) Hashed() bool {
	return e.descriptor != nil
}

// Hash is shorthand for Descriptor().Hash.
func (e *PlatformEvent) Hash() crypto.Digest {
	return e.Descriptor().Hash
}

// Generation is one more than the highest parent generation, or 1 for an event without parents.
func (e *PlatformEvent) Generation() uint64 {
	var g uint64
	if e.SelfParent != nil && e.SelfParent.Generation > g {
		g = e.SelfParent.Generation
	}
	if e.OtherParent != nil && e.OtherParent.Generation > g {
		g = e.OtherParent.Generation
	}
	return g + 1
}

// Parents returns the non-nil parent descriptors, self parent first.
func (e *PlatformEvent) Parents() []EventDescriptor {
	parents := make([]EventDescriptor, 0, 2)
	if e.SelfParent != nil {
		parents = append(parents, *e.SelfParent)
	}
	if e.OtherParent != nil {
		parents = append(parents, *e.OtherParent)
	}
	return parents
}

// TransactionCount returns the number of transactions carried by the event.
func (e *PlatformEvent) TransactionCount() int {
	return len(e.Transactions)
}

// Copy returns an unhashed copy of the event. Transaction payloads are shared since they
// are never mutated.
func (e *PlatformEvent) Copy() *PlatformEvent {
	c := *e
	c.descriptor = nil
	if e.SelfParent != nil {
		sp := *e.SelfParent
		c.SelfParent = &sp
	}
	if e.OtherParent != nil {
		op := *e.OtherParent
		c.OtherParent = &op
	}
	c.Transactions = append([][]byte(nil), e.Transactions...)
	return &c
}

// String returns a short form for logging.
func (e *PlatformEvent) String() string {
	if e.descriptor == nil {
		return fmt.Sprintf("unhashed event by %v", e.Creator)
	}
	return e.descriptor.String()
}

// eventRecord is the persisted form of an event.
type eventRecord struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Creator         basics.NodeID    `codec:"c"`
	SelfParent      *EventDescriptor `codec:"sp"`
	OtherParent     *EventDescriptor `codec:"op"`
	BirthRound      basics.Round     `codec:"br"`
	TimeCreated     int64            `codec:"t"`
	Transactions    [][]byte         `codec:"tx"`
	Signature       []byte           `codec:"sig"`
	SoftwareVersion string           `codec:"v"`
}

// EncodeEvent returns the canonical msgpack encoding of an event, as stored in the
// pre-consensus event stream. The descriptor is not stored; it is recomputed on replay.
func EncodeEvent(e *PlatformEvent) []byte {
	return protocol.EncodeReflect(eventRecord{
		Creator:         e.Creator,
		SelfParent:      e.SelfParent,
		OtherParent:     e.OtherParent,
		BirthRound:      e.BirthRound,
		TimeCreated:     e.TimeCreated.UnixNano(),
		Transactions:    e.Transactions,
		Signature:       e.Signature,
		SoftwareVersion: e.SoftwareVersion,
	})
}

// DecodeEvent parses the output of EncodeEvent. The result is unhashed.
func DecodeEvent(b []byte) (*PlatformEvent, error) {
	var rec eventRecord
	if err := protocol.DecodeReflect(b, &rec); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}
	return &PlatformEvent{
		Creator:         rec.Creator,
		SelfParent:      rec.SelfParent,
		OtherParent:     rec.OtherParent,
		BirthRound:      rec.BirthRound,
		TimeCreated:     time.Unix(0, rec.TimeCreated).UTC(),
		Transactions:    rec.Transactions,
		Signature:       rec.Signature,
		SoftwareVersion: rec.SoftwareVersion,
	}, nil
}
