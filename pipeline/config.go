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

package pipeline

import (
	"github.com/algorand/go-hashgraph/config"
	"github.com/algorand/go-hashgraph/consensus"
	"github.com/algorand/go-hashgraph/data/basics"
	"github.com/algorand/go-hashgraph/data/events"
)

// Config holds the settings of an Intake.
type Config struct {
	// Threaded runs every stage on its own goroutine. Otherwise stages run inline on the
	// goroutine calling AddEvent, which makes the intake deterministic.
	Threaded bool
	// QueueSize is the capacity of each stage queue when threaded.
	QueueSize int
	// OrphanBufferCapacity is the orphan count at which AddEvent starts blocking.
	OrphanBufferCapacity int
	Consensus            consensus.Params
	// Migration configures the birth round migration shim; nil disables it.
	Migration *events.MigrationParams
}

// MakeConfig derives the intake settings from the node configuration.
func MakeConfig(cfg config.Local, threaded bool) Config {
	mode := events.GenerationThreshold
	if cfg.UseBirthRoundAncientThreshold {
		mode = events.BirthRoundThreshold
	}
	c := Config{
		Threaded:             threaded,
		QueueSize:            cfg.EventPipelineQueueSize,
		OrphanBufferCapacity: cfg.OrphanBufferCapacity,
		Consensus: consensus.Params{
			CoinFrequency: cfg.CoinFrequency,
			Window: events.WindowParams{
				RoundsNonAncient: cfg.RoundsNonAncient,
				RoundsExpired:    cfg.RoundsExpired,
				AncientMode:      mode,
			},
		},
	}
	if cfg.BirthRoundMigrationFirstVersion != "" {
		c.Migration = &events.MigrationParams{
			FirstVersionInBirthRoundMode:              cfg.BirthRoundMigrationFirstVersion,
			LastRoundBeforeBirthRoundMode:             basics.Round(cfg.BirthRoundMigrationLastRound),
			LowestJudgeGenerationBeforeBirthRoundMode: cfg.BirthRoundMigrationLowestJudgeGeneration,
		}
	}
	return c
}
