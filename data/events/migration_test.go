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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-hashgraph/data/basics"
	"github.com/algorand/go-hashgraph/logging"
	"github.com/algorand/go-hashgraph/test/partitiontest"
	"github.com/algorand/go-hashgraph/util/metrics"
)

func hashedWithGeneration(t *testing.T, version string, parentGeneration uint64) *PlatformEvent {
	parent := &EventDescriptor{Hash: [32]byte{1}, Creator: 1, BirthRound: 0, Generation: parentGeneration}
	e := &PlatformEvent{
		Creator:         1,
		SelfParent:      parent,
		TimeCreated:     time.Unix(1, 0).UTC(),
		SoftwareVersion: version,
	}
	e, err := HashEvent(e)
	require.NoError(t, err)
	return e
}

func TestMigrationShim(t *testing.T) {
	partitiontest.PartitionTest(t)

	reg := metrics.MakeRegistry()
	shim, err := MakeMigrationShim(MigrationParams{
		FirstVersionInBirthRoundMode:              "0.50.0",
		LastRoundBeforeBirthRoundMode:             1000,
		LowestJudgeGenerationBeforeBirthRoundMode: 20,
	}, logging.TestingLog(t), reg)
	require.NoError(t, err)

	// events from birth round mode versions are untouched.
	current := hashedWithGeneration(t, "0.50.0", 30)
	require.Same(t, current, shim.MigrateEvent(current))
	newer := hashedWithGeneration(t, "1.2.3", 5)
	require.Same(t, newer, shim.MigrateEvent(newer))

	// old events with a recent generation become barely non-ancient.
	old := hashedWithGeneration(t, "0.49.9", 19)
	migrated := shim.MigrateEvent(old)
	require.NotSame(t, old, migrated)
	require.Equal(t, basics.Round(1000), migrated.Descriptor().BirthRound)
	require.Equal(t, old.Hash(), migrated.Hash())
	require.Equal(t, uint64(20), migrated.Descriptor().Generation)
	require.Equal(t, basics.Round(0), old.Descriptor().BirthRound)
	require.Equal(t, basics.Round(0), old.SelfParent.BirthRound)
	// the parent generation is below the judge generation, so it is ancient.
	require.Equal(t, basics.RoundFirst, migrated.SelfParent.BirthRound)

	// old events below the lowest judge generation become ancient.
	ancient := shim.MigrateEvent(hashedWithGeneration(t, "0.49.9", 3))
	require.Equal(t, basics.RoundFirst, ancient.Descriptor().BirthRound)

	// unparseable versions are treated as pre-migration.
	garbage := shim.MigrateEvent(hashedWithGeneration(t, "not-a-version", 40))
	require.Equal(t, basics.Round(1000), garbage.Descriptor().BirthRound)
	require.Equal(t, basics.Round(1000), garbage.SelfParent.BirthRound)

	values := make(map[string]float64)
	require.NoError(t, reg.AddMetrics(values))
	require.Equal(t, 2.0, values[metrics.MigrationShimBarelyNonAncientOverrides.Name])
	require.Equal(t, 1.0, values[metrics.MigrationShimAncientOverrides.Name])
}

func TestMigrationShimRejectsBadVersion(t *testing.T) {
	partitiontest.PartitionTest(t)

	_, err := MakeMigrationShim(MigrationParams{FirstVersionInBirthRoundMode: "x.y"}, logging.TestingLog(t), metrics.MakeRegistry())
	require.Error(t, err)
}
