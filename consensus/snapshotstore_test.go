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
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-hashgraph/crypto"
	"github.com/algorand/go-hashgraph/data/basics"
	"github.com/algorand/go-hashgraph/logging"
	"github.com/algorand/go-hashgraph/test/partitiontest"
)

func TestSnapshotStore(t *testing.T) {
	partitiontest.PartitionTest(t)

	ctx := context.Background()
	filename := filepath.Join(t.TempDir(), "snapshots.sqlite")
	store, err := OpenSnapshotStore(filename, false, logging.TestingLog(t))
	require.NoError(t, err)

	_, err = store.Latest(ctx)
	require.ErrorIs(t, err, ErrNoSnapshot)

	for r := 1; r <= 5; r++ {
		require.NoError(t, store.Save(ctx, ConsensusSnapshot{
			Round:               basics.Round(r),
			JudgeHashes:         []crypto.Digest{{byte(r)}},
			NextConsensusNumber: uint64(10 * r),
			ConsensusTimestamp:  time.Unix(int64(r), 0).UTC(),
		}))
	}

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, basics.Round(5), latest.Round)
	require.Equal(t, uint64(50), latest.NextConsensusNumber)

	third, err := store.Load(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, []crypto.Digest{{3}}, third.JudgeHashes)

	removed, err := store.Prune(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, int64(3), removed)
	_, err = store.Load(ctx, 3)
	require.ErrorIs(t, err, ErrNoSnapshot)

	// reopening keeps what was saved.
	store.Close()
	store, err = OpenSnapshotStore(filename, false, logging.TestingLog(t))
	require.NoError(t, err)
	defer store.Close()
	latest, err = store.Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, basics.Round(5), latest.Round)
}
