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

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Migration is used to upgrade a database from one version to the next.
// The Migration slice is ordered and must contain all prior migrations
// in order to determine which need to be called.
type Migration func(ctx context.Context, tx *sql.Tx, newDatabase bool) error

// ErrUnknownVersion is returned when a database reports a schema version newer than the
// migrations this binary knows about.
var ErrUnknownVersion = errors.New("database schema version is newer than supported")

// Initialize creates or upgrades a DB accessor to the latest schema version,
// tracking progress in the sqlite user_version pragma.
func Initialize(accessor Accessor, migrations []Migration) error {
	return accessor.Atomic(context.Background(), "db.Initialize", func(ctx context.Context, tx *sql.Tx) error {
		return InitializeWithContext(ctx, tx, migrations)
	})
}

// InitializeWithContext runs the migrations inside an existing transaction.
func InitializeWithContext(ctx context.Context, tx *sql.Tx, migrations []Migration) error {
	version, err := GetUserVersion(ctx, tx)
	if err != nil {
		return err
	}
	if version > int32(len(migrations)) {
		return fmt.Errorf("%w: %d > %d", ErrUnknownVersion, version, len(migrations))
	}
	newDatabase := version == 0
	for i := version; i < int32(len(migrations)); i++ {
		err = migrations[i](ctx, tx, newDatabase)
		if err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
		_, err = SetUserVersion(ctx, tx, i+1)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetUserVersion returns the user version field stored in the sqlite database
func GetUserVersion(ctx context.Context, tx *sql.Tx) (userVersion int32, err error) {
	err = tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&userVersion)
	return
}

// SetUserVersion sets the userVersion as the new user version
func SetUserVersion(ctx context.Context, tx *sql.Tx, userVersion int32) (previousUserVersion int32, err error) {
	previousUserVersion, err = GetUserVersion(ctx, tx)
	if err != nil {
		return
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", userVersion))
	return
}
