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
	"time"

	"github.com/algorand/go-hashgraph/crypto"
	"github.com/algorand/go-hashgraph/data/basics"
	"github.com/algorand/go-hashgraph/data/events"
	"github.com/algorand/go-hashgraph/data/roster"
	"github.com/algorand/go-hashgraph/protocol"
)

// ConsensusEvent is an event together with its place in the consensus order.
type ConsensusEvent struct {
	Event              *events.PlatformEvent
	ConsensusTimestamp time.Time
	// ConsensusOrder counts events across the whole history, starting at 0.
	ConsensusOrder uint64
	RoundReceived  basics.Round
	// LastInRoundReceived is set on the final event of its round.
	LastInRoundReceived bool
}

// ConsensusRound is the outcome of deciding one round. It is never modified once emitted.
type ConsensusRound struct {
	RoundNum    basics.Round
	Events      []*ConsensusEvent
	EventWindow events.EventWindow
	Snapshot    ConsensusSnapshot
	Roster      *roster.Roster
	// PCESRound is set when the round was produced while replaying the pre-consensus event stream.
	PCESRound bool
	// ReachedConsensusAt is the local wall clock time at which the round was decided.
	ReachedConsensusAt time.Time
}

// IsEmpty reports whether no event reached consensus in the round.
func (r *ConsensusRound) IsEmpty() bool {
	return len(r.Events) == 0
}

// TransactionCount returns the number of transactions ordered by the round.
func (r *ConsensusRound) TransactionCount() int {
	n := 0
	for _, ce := range r.Events {
		n += ce.Event.TransactionCount()
	}
	return n
}

// Hashes returns the hashes of the round's events in consensus order.
func (r *ConsensusRound) Hashes() []crypto.Digest {
	out := make([]crypto.Digest, len(r.Events))
	for i, ce := range r.Events {
		out[i] = ce.Event.Hash()
	}
	return out
}

// ConsensusSnapshot is the minimal state needed to resume consensus after a round.
type ConsensusSnapshot struct {
	Round basics.Round
	// JudgeHashes lists the round's judges in roster order.
	JudgeHashes []crypto.Digest
	// MinimumJudgeInfo covers the most recent rounds in ascending order.
	MinimumJudgeInfo    []events.MinimumJudgeInfo
	NextConsensusNumber uint64
	// ConsensusTimestamp is the consensus timestamp of the last ordered event.
	ConsensusTimestamp time.Time
}

// GenesisSnapshot is the snapshot consensus starts from on a new network.
func GenesisSnapshot() ConsensusSnapshot {
	return ConsensusSnapshot{}
}

// IsGenesis reports whether s is the synthetic genesis snapshot.
func (s ConsensusSnapshot) IsGenesis() bool {
	return s.Round == 0 && len(s.JudgeHashes) == 0
}

// MinimumJudgeInfoFor returns the entry of round r, if retained.
func (s ConsensusSnapshot) MinimumJudgeInfoFor(r basics.Round) (events.MinimumJudgeInfo, bool) {
	for _, ji := range s.MinimumJudgeInfo {
		if ji.Round == r {
			return ji, true
		}
	}
	return events.MinimumJudgeInfo{}, false
}

type snapshotRecord struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Round               basics.Round              `codec:"r"`
	JudgeHashes         []crypto.Digest           `codec:"j"`
	MinimumJudgeInfo    []events.MinimumJudgeInfo `codec:"m"`
	NextConsensusNumber uint64                    `codec:"n"`
	ConsensusTimestamp  int64                     `codec:"t"`
}

func (s ConsensusSnapshot) record() snapshotRecord {
	rec := snapshotRecord{
		Round:               s.Round,
		JudgeHashes:         s.JudgeHashes,
		MinimumJudgeInfo:    s.MinimumJudgeInfo,
		NextConsensusNumber: s.NextConsensusNumber,
	}
	if !s.ConsensusTimestamp.IsZero() {
		rec.ConsensusTimestamp = s.ConsensusTimestamp.UnixNano()
	}
	return rec
}

// ToBeHashed implements the crypto.Hashable interface.
func (s ConsensusSnapshot) ToBeHashed() (protocol.HashID, []byte) {
	return protocol.ConsensusSnapshot, protocol.EncodeReflect(s.record())
}

// Hash identifies the snapshot contents.
func (s ConsensusSnapshot) Hash() crypto.Digest {
	return crypto.HashObj(s)
}

// EncodeSnapshot returns the canonical msgpack encoding of s.
func EncodeSnapshot(s ConsensusSnapshot) []byte {
	return protocol.EncodeReflect(s.record())
}

// DecodeSnapshot parses the output of EncodeSnapshot.
func DecodeSnapshot(b []byte) (ConsensusSnapshot, error) {
	var rec snapshotRecord
	if err := protocol.DecodeReflect(b, &rec); err != nil {
		return ConsensusSnapshot{}, err
	}
	s := ConsensusSnapshot{
		Round:               rec.Round,
		JudgeHashes:         rec.JudgeHashes,
		MinimumJudgeInfo:    rec.MinimumJudgeInfo,
		NextConsensusNumber: rec.NextConsensusNumber,
	}
	if rec.ConsensusTimestamp != 0 {
		s.ConsensusTimestamp = time.Unix(0, rec.ConsensusTimestamp).UTC()
	}
	return s, nil
}
