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

	"github.com/Masterminds/semver/v3"

	"github.com/algorand/go-hashgraph/data/basics"
	"github.com/algorand/go-hashgraph/logging"
	"github.com/algorand/go-hashgraph/util/metrics"
)

// MigrationParams describes the switch from generation to birth round ancient thresholds.
type MigrationParams struct {
	// FirstVersionInBirthRoundMode is the first software version creating events with
	// meaningful birth rounds.
	FirstVersionInBirthRoundMode string
	// LastRoundBeforeBirthRoundMode is the last round decided in generation mode.
	LastRoundBeforeBirthRoundMode basics.Round
	// LowestJudgeGenerationBeforeBirthRoundMode is the lowest judge generation of that round.
	LowestJudgeGenerationBeforeBirthRoundMode uint64
}

// MigrationShim gives events created before birth round mode a birth round that keeps
// their ancient status consistent with the generation threshold in effect at migration.
type MigrationShim struct {
	params       MigrationParams
	firstVersion *semver.Version
	log          logging.Logger

	ancientOverrides          *metrics.Counter
	barelyNonAncientOverrides *metrics.Counter
}

// MakeMigrationShim parses params and registers the shim metrics on reg.
func MakeMigrationShim(params MigrationParams, log logging.Logger, reg *metrics.Registry) (*MigrationShim, error) {
	v, err := semver.NewVersion(params.FirstVersionInBirthRoundMode)
	if err != nil {
		return nil, fmt.Errorf("invalid first birth round version %q: %w", params.FirstVersionInBirthRoundMode, err)
	}
	log.Infof("birth round migration shim initialized with firstVersionInBirthRoundMode=%v, lastRoundBeforeBirthRoundMode=%d, lowestJudgeGenerationBeforeBirthRoundMode=%d",
		v, params.LastRoundBeforeBirthRoundMode, params.LowestJudgeGenerationBeforeBirthRoundMode)
	return &MigrationShim{
		params:                    params,
		firstVersion:              v,
		log:                       log,
		ancientOverrides:          metrics.MakeCounter(reg, metrics.MigrationShimAncientOverrides),
		barelyNonAncientOverrides: metrics.MakeCounter(reg, metrics.MigrationShimBarelyNonAncientOverrides),
	}, nil
}

// MigrateEvent returns e unchanged when it was created in birth round mode. Otherwise it
// returns a copy whose descriptor (and parent descriptors) carry the overridden birth
// round. The hash and the hashed fields are kept, so replaying the stored event and
// migrating it again yields the same result.
//
// Events whose software version does not parse are treated as pre-migration.
func (s *MigrationShim) MigrateEvent(e *PlatformEvent) *PlatformEvent {
	if !s.predatesBirthRoundMode(e.SoftwareVersion) {
		return e
	}

	desc := e.Descriptor()
	birthRound := s.overriddenBirthRound(desc.Generation)
	if birthRound == s.params.LastRoundBeforeBirthRoundMode {
		s.log.Debugf("event migrated to use birth rounds prev=%d new=%d (non-ancient)", desc.BirthRound, birthRound)
		s.barelyNonAncientOverrides.Inc()
	} else {
		s.log.Debugf("event migrated to use birth rounds prev=%d new=%d (ancient)", desc.BirthRound, birthRound)
		s.ancientOverrides.Inc()
	}

	migrated := e.Copy()
	desc.BirthRound = birthRound
	migrated.descriptor = &desc
	if migrated.SelfParent != nil {
		migrated.SelfParent.BirthRound = s.overriddenBirthRound(migrated.SelfParent.Generation)
	}
	if migrated.OtherParent != nil {
		migrated.OtherParent.BirthRound = s.overriddenBirthRound(migrated.OtherParent.Generation)
	}
	return migrated
}

func (s *MigrationShim) overriddenBirthRound(generation uint64) basics.Round {
	if generation >= s.params.LowestJudgeGenerationBeforeBirthRoundMode {
		return s.params.LastRoundBeforeBirthRoundMode
	}
	return basics.RoundFirst
}

func (s *MigrationShim) predatesBirthRoundMode(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return true
	}
	return v.LessThan(s.firstVersion)
}
