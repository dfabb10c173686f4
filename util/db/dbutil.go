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

// Package db wraps a sqlite handle with serializable, retrying transactions and
// user_version based schema migrations.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/algorand/go-hashgraph/logging"
)

// busyTimeout is how long sqlite waits on a lock held by another connection before
// returning SQLITE_BUSY, in milliseconds.
const busyTimeout = 1000

// maxTxRetries bounds how often a transaction is restarted after lock contention.
const maxTxRetries = 1000

// An Accessor manages a sqlite database handle.
type Accessor struct {
	Handle   *sql.DB
	readOnly bool
	log      logging.Logger
}

// MakeAccessor opens dbfilename in WAL mode. An in-memory database lives as long as the
// accessor holds one idle connection.
func MakeAccessor(dbfilename string, readOnly bool, inMemory bool) (Accessor, error) {
	acc := Accessor{readOnly: readOnly, log: logging.Base()}
	handle, err := sql.Open("sqlite3", URI(dbfilename, readOnly, inMemory)+"&_journal_mode=wal")
	if err != nil {
		return acc, err
	}
	if inMemory {
		handle.SetMaxIdleConns(1)
		handle.SetConnMaxLifetime(0)
	}
	acc.Handle = handle
	return acc, nil
}

// SetLogger replaces the logger used for slow transaction and retry reports.
func (db *Accessor) SetLogger(log logging.Logger) {
	db.log = log
}

// Close closes the connection.
func (db Accessor) Close() {
	db.Handle.Close()
}

// Atomic runs fn inside a serializable transaction, committing when fn returns nil.
// Lock contention restarts the transaction; a panic inside fn becomes its error.
func (db Accessor) Atomic(ctx context.Context, fnDescription string, fn idemFn) error {
	mode := "w"
	if db.readOnly {
		mode = "r"
	}
	log := db.log.With("description", fnDescription)

	start := time.Now()
	defer func() {
		switch took := time.Since(start); {
		case took > time.Second:
			log.Warnf("dbatomic(%s): tx took %v", mode, took)
		case took > time.Millisecond:
			log.Debugf("dbatomic(%s): tx took %v", mode, took)
		}
	}()

	conn, err := db.Handle.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	for retries := 0; ; retries++ {
		err = db.attempt(ctx, conn, fn)
		if !dbretry(err) {
			return err
		}
		if retries+1 >= maxTxRetries {
			log.Errorf("dbatomic(%s): giving up after %d retries (last err: %v)", mode, retries+1, err)
			return err
		}
		log.Warnf("dbatomic(%s): retry %d (last err: %v)", mode, retries+1, err)
	}
}

// attempt runs a single transaction. A retryable error leaves nothing committed.
func (db Accessor) attempt(ctx context.Context, conn *sql.Conn, fn idemFn) (err error) {
	tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable, ReadOnly: db.readOnly})
	if err != nil {
		return err
	}

	// database/sql does not recover panics raised inside an open transaction.
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			if perr, ok := r.(error); ok {
				err = perr
			} else {
				err = fmt.Errorf("%v", r)
			}
		}
	}()

	if err = fn(ctx, tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// URI returns the sqlite URI for filename.
func URI(filename string, readOnly bool, memory bool) string {
	uri := fmt.Sprintf("file:%s?_busy_timeout=%d&_synchronous=full", filename, busyTimeout)
	if !readOnly {
		uri += "&_txlock=immediate"
	}
	if memory {
		uri += "&mode=memory&cache=shared"
	}
	return uri
}

// dbretry reports whether err is transient lock contention.
func dbretry(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && (serr.Code == sqlite3.ErrLocked || serr.Code == sqlite3.ErrBusy)
}

type idemFn func(ctx context.Context, tx *sql.Tx) error
