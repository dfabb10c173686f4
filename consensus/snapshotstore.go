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
	"database/sql"
	"errors"
	"fmt"

	"github.com/algorand/go-hashgraph/data/basics"
	"github.com/algorand/go-hashgraph/logging"
	"github.com/algorand/go-hashgraph/util/db"
)

// ErrNoSnapshot is returned when the store holds no snapshot for the requested round.
var ErrNoSnapshot = errors.New("no consensus snapshot stored")

var snapshotSchema = []db.Migration{
	func(ctx context.Context, tx *sql.Tx, newDatabase bool) error {
		_, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS snapshots (
			round integer primary key,
			hash blob not null,
			data blob not null)`)
		return err
	},
}

// SnapshotStore keeps the snapshots of emitted rounds so that consensus can be resumed
// from any retained round.
type SnapshotStore struct {
	accessor db.Accessor
	log      logging.Logger
}

// OpenSnapshotStore opens (creating if needed) the store at filename.
func OpenSnapshotStore(filename string, inMemory bool, log logging.Logger) (*SnapshotStore, error) {
	accessor, err := db.MakeAccessor(filename, false, inMemory)
	if err != nil {
		return nil, err
	}
	accessor.SetLogger(log)
	err = db.Initialize(accessor, snapshotSchema)
	if err != nil {
		accessor.Close()
		return nil, fmt.Errorf("snapshot store %s: %w", filename, err)
	}
	return &SnapshotStore{accessor: accessor, log: log}, nil
}

// Save stores s, replacing any snapshot of the same round.
func (s *SnapshotStore) Save(ctx context.Context, snap ConsensusSnapshot) error {
	h := snap.Hash()
	data := EncodeSnapshot(snap)
	return s.accessor.Atomic(ctx, "SnapshotStore.Save", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO snapshots (round, hash, data) VALUES (?, ?, ?)", uint64(snap.Round), h[:], data)
		return err
	})
}

// Latest returns the snapshot with the highest round.
func (s *SnapshotStore) Latest(ctx context.Context) (snap ConsensusSnapshot, err error) {
	err = s.accessor.Atomic(ctx, "SnapshotStore.Latest", func(ctx context.Context, tx *sql.Tx) error {
		var data []byte
		err := tx.QueryRowContext(ctx, "SELECT data FROM snapshots ORDER BY round DESC LIMIT 1").Scan(&data)
		if err != nil {
			return err
		}
		snap, err = DecodeSnapshot(data)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNoSnapshot
	}
	return
}

// Load returns the snapshot of round r.
func (s *SnapshotStore) Load(ctx context.Context, r basics.Round) (snap ConsensusSnapshot, err error) {
	err = s.accessor.Atomic(ctx, "SnapshotStore.Load", func(ctx context.Context, tx *sql.Tx) error {
		var data []byte
		err := tx.QueryRowContext(ctx, "SELECT data FROM snapshots WHERE round = ?", uint64(r)).Scan(&data)
		if err != nil {
			return err
		}
		snap, err = DecodeSnapshot(data)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("round %d: %w", r, ErrNoSnapshot)
	}
	return
}

// Prune deletes the snapshots of rounds below r and returns how many were removed.
func (s *SnapshotStore) Prune(ctx context.Context, r basics.Round) (removed int64, err error) {
	err = s.accessor.Atomic(ctx, "SnapshotStore.Prune", func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM snapshots WHERE round < ?", uint64(r))
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err == nil && removed > 0 {
		s.log.Debugf("snapshot store: pruned %d snapshots below round %d", removed, r)
	}
	return
}

// Close releases the underlying database.
func (s *SnapshotStore) Close() {
	s.accessor.Close()
}
