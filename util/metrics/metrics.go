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

package metrics

import (
	"regexp"
	"strings"
)

// MetricName describes the name and description of a single metric
type MetricName struct {
	Name        string
	Description string
}

var sanitizeTelemetryCharactersRegexp = regexp.MustCompile("(^[^a-zA-Z_]|[^a-zA-Z0-9_-])")

// sanitizePrometheusName ensures a metric name doesn't contain any
// non-alphanumeric characters (apart from _) and doesn't start with a number.
func sanitizePrometheusName(name string) string {
	return strings.ReplaceAll(sanitizeTelemetryCharactersRegexp.ReplaceAllString(name, "_"), "-", "_")
}

var (
	// EventsHashed Number of events hashed by the intake
	EventsHashed = MetricName{Name: "hashgraph_events_hashed_total", Description: "Number of events hashed by the intake"}
	// EventsHashFailed Number of malformed events dropped by the hasher
	EventsHashFailed = MetricName{Name: "hashgraph_events_hash_failed_total", Description: "Number of malformed events dropped by the hasher"}

	// OrphanBufferSize Number of events waiting for missing parents
	OrphanBufferSize = MetricName{Name: "hashgraph_orphan_buffer_size", Description: "Number of events waiting for missing parents"}
	// OrphanBufferReleased Number of events released by the orphan buffer
	OrphanBufferReleased = MetricName{Name: "hashgraph_orphan_buffer_released_total", Description: "Number of events released by the orphan buffer"}
	// OrphanBufferDroppedAncient Number of ancient events dropped by the orphan buffer
	OrphanBufferDroppedAncient = MetricName{Name: "hashgraph_orphan_buffer_dropped_ancient_total", Description: "Number of ancient events dropped by the orphan buffer"}
	// OrphanBufferDroppedDuplicate Number of duplicate events dropped by the orphan buffer
	OrphanBufferDroppedDuplicate = MetricName{Name: "hashgraph_orphan_buffer_dropped_duplicate_total", Description: "Number of duplicate events dropped by the orphan buffer"}

	// ConsensusRoundsDecided Number of consensus rounds produced
	ConsensusRoundsDecided = MetricName{Name: "hashgraph_consensus_rounds_total", Description: "Number of consensus rounds produced"}
	// ConsensusEventsOrdered Number of events that reached consensus
	ConsensusEventsOrdered = MetricName{Name: "hashgraph_consensus_events_total", Description: "Number of events that reached consensus"}
	// ConsensusEventsIgnored Number of events ignored by the consensus engine
	ConsensusEventsIgnored = MetricName{Name: "hashgraph_consensus_events_ignored_total", Description: "Number of events ignored by the consensus engine"}
	// ConsensusDAGSize Number of non-expired events held by the consensus engine
	ConsensusDAGSize = MetricName{Name: "hashgraph_consensus_dag_size", Description: "Number of non-expired events held by the consensus engine"}
	// ConsensusLatestRound Latest round that reached consensus
	ConsensusLatestRound = MetricName{Name: "hashgraph_consensus_latest_round", Description: "Latest round that reached consensus"}

	// PCESEventsWritten Number of events written to the pre-consensus event stream
	PCESEventsWritten = MetricName{Name: "hashgraph_pces_events_written_total", Description: "Number of events written to the pre-consensus event stream"}
	// PCESBytesWritten Number of bytes written to the pre-consensus event stream
	PCESBytesWritten = MetricName{Name: "hashgraph_pces_bytes_written_total", Description: "Number of bytes written to the pre-consensus event stream"}
	// PCESFilesOpened Number of pre-consensus event files created
	PCESFilesOpened = MetricName{Name: "hashgraph_pces_files_opened_total", Description: "Number of pre-consensus event files created"}
	// PCESSyncMicros Time spent making the pre-consensus event stream durable
	PCESSyncMicros = MetricName{Name: "hashgraph_pces_sync_microseconds_total", Description: "Time spent making the pre-consensus event stream durable"}
	// PCESFilesPruned Number of pre-consensus event files deleted
	PCESFilesPruned = MetricName{Name: "hashgraph_pces_files_pruned_total", Description: "Number of pre-consensus event files deleted"}
	// PCESFileCount Number of pre-consensus event files on disk
	PCESFileCount = MetricName{Name: "hashgraph_pces_file_count", Description: "Number of pre-consensus event files on disk"}

	// MigrationShimAncientOverrides Number of events whose birth round was set to the first round
	MigrationShimAncientOverrides = MetricName{Name: "hashgraph_migration_ancient_overrides_total", Description: "Number of events whose birth round was set to the first round"}
	// MigrationShimBarelyNonAncientOverrides Number of events whose birth round was set to the last generation-mode round
	MigrationShimBarelyNonAncientOverrides = MetricName{Name: "hashgraph_migration_barely_non_ancient_overrides_total", Description: "Number of events whose birth round was set to the last generation-mode round"}

	// PipelineQueueDepth Number of tasks waiting on a stage queue
	PipelineQueueDepth = MetricName{Name: "hashgraph_pipeline_queue_depth", Description: "Number of tasks waiting on a stage queue"}
)
