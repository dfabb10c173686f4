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

	"github.com/algorand/go-hashgraph/data/basics"
)

// AncientMode selects the metric an event's age is measured with.
type AncientMode uint8

const (
	// GenerationThreshold measures age by event generation.
	GenerationThreshold AncientMode = iota
	// BirthRoundThreshold measures age by the round the event was created in.
	BirthRoundThreshold
)

// String implements fmt.Stringer.
func (m AncientMode) String() string {
	switch m {
	case GenerationThreshold:
		return "generation"
	case BirthRoundThreshold:
		return "birth-round"
	default:
		return fmt.Sprintf("AncientMode(%d)", uint8(m))
	}
}

// Indicator returns the value of desc compared against ancient thresholds in this mode.
func (m AncientMode) Indicator(desc EventDescriptor) uint64 {
	if m == BirthRoundThreshold {
		return uint64(desc.BirthRound)
	}
	return desc.Generation
}

// EventIndicator is Indicator for a hashed event.
func (m AncientMode) EventIndicator(e *PlatformEvent) uint64 {
	return m.Indicator(e.Descriptor())
}

// EventWindow is the boundary below which events no longer matter, as known after a given
// consensus round. Both thresholds only ever move forward.
type EventWindow struct {
	LatestConsensusRound basics.Round
	// AncientThreshold is the smallest indicator that is not ancient.
	AncientThreshold uint64
	// ExpiredThreshold is the smallest indicator still kept in memory.
	ExpiredThreshold uint64
	AncientMode      AncientMode
}

// GenesisEventWindow is the window in effect before any round reaches consensus.
func GenesisEventWindow(mode AncientMode) EventWindow {
	return EventWindow{
		LatestConsensusRound: 0,
		AncientThreshold:     1,
		ExpiredThreshold:     1,
		AncientMode:          mode,
	}
}

// IsAncient reports whether desc is below the ancient threshold.
func (w EventWindow) IsAncient(desc EventDescriptor) bool {
	return w.AncientMode.Indicator(desc) < w.AncientThreshold
}

// IsAncientEvent is IsAncient for a hashed event.
func (w EventWindow) IsAncientEvent(e *PlatformEvent) bool {
	return w.IsAncient(e.Descriptor())
}

// IsExpired reports whether desc is below the expired threshold.
func (w EventWindow) IsExpired(desc EventDescriptor) bool {
	return w.AncientMode.Indicator(desc) < w.ExpiredThreshold
}

// PendingConsensusRound is the round that the next consensus round will have.
func (w EventWindow) PendingConsensusRound() basics.Round {
	return w.LatestConsensusRound + 1
}

// Regresses reports whether moving from w to next would lower a threshold.
func (w EventWindow) Regresses(next EventWindow) bool {
	return next.AncientThreshold < w.AncientThreshold ||
		next.ExpiredThreshold < w.ExpiredThreshold ||
		next.LatestConsensusRound < w.LatestConsensusRound
}

// String implements fmt.Stringer.
func (w EventWindow) String() string {
	return fmt.Sprintf("EventWindow{round:%d ancient:%d expired:%d mode:%v}",
		w.LatestConsensusRound, w.AncientThreshold, w.ExpiredThreshold, w.AncientMode)
}

// MinimumJudgeInfo records the smallest ancient indicators among the judges of a round.
type MinimumJudgeInfo struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Round             basics.Round `codec:"r"`
	MinGeneration     uint64       `codec:"g"`
	MinimumBirthRound basics.Round `codec:"b"`
}

// WindowParams configures how far back from the latest consensus round events stay
// non-ancient and non-expired.
type WindowParams struct {
	RoundsNonAncient uint64
	RoundsExpired    uint64
	AncientMode      AncientMode
}

// Retained returns how many rounds of MinimumJudgeInfo must be kept to compute windows.
func (p WindowParams) Retained() int {
	n := p.RoundsNonAncient
	if p.RoundsExpired > n {
		n = p.RoundsExpired
	}
	return int(n) + 1
}

// Window computes the event window after latestRound. info lists the minimum judge
// indicators of recent rounds in ascending round order.
//
// In birth round mode the ancient threshold is max(1, latestRound - RoundsNonAncient). In
// generation mode it is the minimum judge generation of that same round. Earlier rounds in
// info also bound it from below, and it is 1 when info covers no round up to that one.
func (p WindowParams) Window(latestRound basics.Round, info []MinimumJudgeInfo) EventWindow {
	return EventWindow{
		LatestConsensusRound: latestRound,
		AncientThreshold:     p.threshold(latestRound, p.RoundsNonAncient, info),
		ExpiredThreshold:     p.threshold(latestRound, p.RoundsExpired, info),
		AncientMode:          p.AncientMode,
	}
}

func (p WindowParams) threshold(latestRound basics.Round, span uint64, info []MinimumJudgeInfo) uint64 {
	target := latestRound.SubSaturate(basics.Round(span))
	if target < basics.RoundFirst {
		return 1
	}
	if p.AncientMode == BirthRoundThreshold {
		return uint64(target)
	}
	threshold := uint64(1)
	for _, ji := range info {
		if ji.Round > target {
			break
		}
		if ji.MinGeneration > threshold {
			threshold = ji.MinGeneration
		}
	}
	return threshold
}
