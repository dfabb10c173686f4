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

package config

// Local holds the per-node-instance configuration settings for the event pipeline.
//
// Every field carries one or more version[N] tags holding the default value introduced by
// configuration version N. Changing a shipped default means adding a new version tag, never
// editing an existing one, so that config files written by older nodes migrate cleanly.
type Local struct {
	// Version tracks the current version of the defaults so we can migrate old -> new
	// This is specifically important whenever we decide to change the default value
	// for an existing parameter. This field tag must be updated any time we add a new version.
	Version uint32 `version[0]:"0" version[1]:"1"`

	// BaseLoggerDebugLevel specifies the logging level (0 = panic ... 5 = debug).
	BaseLoggerDebugLevel uint32 `version[0]:"4"`

	// EventPipelineQueueSize is the capacity of each stage queue in the intake pipeline.
	EventPipelineQueueSize int `version[0]:"1024"`

	// OrphanBufferCapacity is the number of orphans held before the intake applies backpressure.
	OrphanBufferCapacity int `version[0]:"10000"`

	// RoundsNonAncient is the number of rounds, counted back from the latest consensus round,
	// whose events are still non-ancient.
	RoundsNonAncient uint64 `version[0]:"26"`

	// RoundsExpired is the number of rounds after which events are dropped from memory entirely.
	RoundsExpired uint64 `version[0]:"500"`

	// UseBirthRoundAncientThreshold selects birth rounds rather than generations as the ancient indicator.
	UseBirthRoundAncientThreshold bool `version[0]:"false" version[1]:"true"`

	// CoinFrequency is the period, in voting rounds, of coin rounds during fame elections.
	CoinFrequency uint64 `version[0]:"12"`

	PCESDirectory              string `version[0]:"pces"`
	PCESPreferredFileSizeBytes int64  `version[0]:"10485760"`

	// PCESBootstrapSpan is the span of the first file written after startup, when no history
	// is available to estimate the span from.
	PCESBootstrapSpan uint64 `version[0]:"10"`

	// PCESMinimumSpan is the smallest span a new file is opened with.
	PCESMinimumSpan uint64 `version[0]:"5"`

	// PCESCompressRecords enables snappy compression of event records.
	PCESCompressRecords bool `version[0]:"false"`

	// PCESSyncEveryEvent forces an fsync after every written event.
	PCESSyncEveryEvent bool `version[0]:"false"`

	// SnapshotDBFilename is the name of the sqlite file holding consensus snapshots.
	SnapshotDBFilename string `version[0]:"snapshots.sqlite"`

	// BirthRoundMigrationFirstVersion is the first software version that creates events with
	// birth rounds. Empty disables the migration shim.
	BirthRoundMigrationFirstVersion string `version[1]:""`

	BirthRoundMigrationLastRound             uint64 `version[1]:"0"`
	BirthRoundMigrationLowestJudgeGeneration uint64 `version[1]:"0"`
}
