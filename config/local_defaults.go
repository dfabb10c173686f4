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

// This file is maintained by hand alongside localTemplate.go; TestLocalDefaultsMatchTemplate
// checks that it matches the latest versioned defaults.

package config

var defaultLocal = Local{
	Version:                                  1,
	BaseLoggerDebugLevel:                     4,
	BirthRoundMigrationFirstVersion:          "",
	BirthRoundMigrationLastRound:             0,
	BirthRoundMigrationLowestJudgeGeneration: 0,
	CoinFrequency:                            12,
	EventPipelineQueueSize:                   1024,
	OrphanBufferCapacity:                     10000,
	PCESBootstrapSpan:                        10,
	PCESCompressRecords:                      false,
	PCESDirectory:                            "pces",
	PCESMinimumSpan:                          5,
	PCESPreferredFileSizeBytes:               10485760,
	PCESSyncEveryEvent:                       false,
	RoundsExpired:                            500,
	RoundsNonAncient:                         26,
	SnapshotDBFilename:                       "snapshots.sqlite",
	UseBirthRoundAncientThreshold:            true,
}
