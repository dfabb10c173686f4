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

package pces

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/algorand/go-hashgraph/data/basics"
	"github.com/algorand/go-hashgraph/data/events"
	"github.com/algorand/go-hashgraph/logging"
	"github.com/algorand/go-hashgraph/util/db"
	"github.com/algorand/go-hashgraph/util/metrics"
)

const (
	lockFilename  = "pces.lock"
	indexFilename = "index.sqlite"
)

// ErrDirectoryLocked is returned when another process owns the PCES directory.
var ErrDirectoryLocked = errors.New("pces: directory is locked by another process")

var indexSchema = []db.Migration{
	func(ctx context.Context, tx *sql.Tx, newDatabase bool) error {
		_, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS files (
			seq integer primary key,
			lower integer not null,
			upper integer not null,
			origin integer not null,
			name text not null)`)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (
			key text primary key,
			value integer not null)`)
		return err
	},
}

// FileManager owns a PCES directory: the segment files in it and the index recording
// their bounds and origins.
type FileManager struct {
	dir   string
	mode  events.AncientMode
	log   logging.Logger
	lock  *flock.Flock
	index db.Accessor

	origin basics.Round
	last   FileDescriptor
	count  int

	filesPruned *metrics.Counter
	fileCount   *metrics.Gauge
}

// OpenFileManager takes ownership of dir, creating it if needed.
func OpenFileManager(dir string, mode events.AncientMode, log logging.Logger, reg *metrics.Registry) (*FileManager, error) {
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(dir, lockFilename))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("pces: locking %s: %w", dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", dir, ErrDirectoryLocked)
	}

	index, err := db.MakeAccessor(filepath.Join(dir, indexFilename), false, false)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	index.SetLogger(log)

	fm := &FileManager{
		dir:         dir,
		mode:        mode,
		log:         log,
		lock:        lock,
		index:       index,
		filesPruned: metrics.MakeCounter(reg, metrics.PCESFilesPruned),
		fileCount:   metrics.MakeGauge(reg, metrics.PCESFileCount),
	}
	err = fm.load()
	if err != nil {
		fm.Close()
		return nil, err
	}
	return fm, nil
}

// load initializes the index and reconciles it with the directory contents.
func (fm *FileManager) load() error {
	err := db.Initialize(fm.index, indexSchema)
	if err != nil {
		return fmt.Errorf("pces index: %w", err)
	}

	files, err := fm.Files()
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(files))
	var missing []uint64
	for _, f := range files {
		if _, err := os.Stat(f.Path); err != nil {
			fm.log.Warnf("pces: %v is in the index but not on disk", f)
			missing = append(missing, f.Sequence)
			continue
		}
		known[filepath.Base(f.Path)] = true
	}
	if len(missing) > 0 {
		err = fm.index.Atomic(context.Background(), "pces.dropMissing", func(ctx context.Context, tx *sql.Tx) error {
			for _, seq := range missing {
				if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE seq = ?", seq); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	entries, err := os.ReadDir(fm.dir)
	if err != nil {
		return err
	}
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasSuffix(name, fileExtension) || known[name] {
			continue
		}
		fm.log.Warnf("pces: removing %s, which is not in the index", name)
		if err := os.Remove(filepath.Join(fm.dir, name)); err != nil {
			return err
		}
	}

	err = fm.index.Atomic(context.Background(), "pces.load", func(ctx context.Context, tx *sql.Tx) error {
		var origin uint64
		err := tx.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'origin'").Scan(&origin)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		fm.origin = basics.Round(origin)

		var lower, upper, o uint64
		var name string
		err = tx.QueryRowContext(ctx, "SELECT seq, lower, upper, origin, name FROM files ORDER BY seq DESC LIMIT 1").Scan(&fm.last.Sequence, &lower, &upper, &o, &name)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			fm.last = FileDescriptor{}
		case err != nil:
			return err
		default:
			fm.last.LowerBound, fm.last.UpperBound, fm.last.Origin = lower, upper, basics.Round(o)
			fm.last.Path = filepath.Join(fm.dir, name)
		}
		return tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&fm.count)
	})
	if err != nil {
		return err
	}
	fm.fileCount.Set(float64(fm.count))
	fm.log.Infof("pces: opened %s with %d files, origin %d", fm.dir, fm.count, fm.origin)
	return nil
}

// Origin returns the round of the latest discontinuity.
func (fm *FileManager) Origin() basics.Round {
	return fm.origin
}

// NextFileDescriptor records a new file after all existing ones and returns its
// descriptor. Bounds are raised as needed so that neither bound ever decreases from one
// file to the next.
func (fm *FileManager) NextFileDescriptor(lower, upper uint64) (FileDescriptor, error) {
	if fm.last.Sequence > 0 {
		lower = max(lower, fm.last.LowerBound)
		upper = max(upper, fm.last.UpperBound)
	}
	upper = max(upper, lower)

	desc := FileDescriptor{
		Sequence:   fm.last.Sequence + 1,
		LowerBound: lower,
		UpperBound: upper,
		Origin:     fm.origin,
	}
	name := fileName(desc.Sequence, desc.LowerBound, desc.UpperBound, desc.Origin)
	desc.Path = filepath.Join(fm.dir, name)

	err := fm.index.Atomic(context.Background(), "pces.NextFileDescriptor", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO files (seq, lower, upper, origin, name) VALUES (?, ?, ?, ?, ?)",
			desc.Sequence, desc.LowerBound, desc.UpperBound, uint64(desc.Origin), name)
		return err
	})
	if err != nil {
		return FileDescriptor{}, err
	}
	fm.last = desc
	fm.count++
	fm.fileCount.Set(float64(fm.count))
	return desc, nil
}

// LastDescriptor returns the newest file ever handed out, or the zero descriptor when the
// directory has none.
func (fm *FileManager) LastDescriptor() FileDescriptor {
	return fm.last
}

// RegisterDiscontinuity starts a new origin. Files written from now on are never replayed
// together with earlier ones.
func (fm *FileManager) RegisterDiscontinuity(round basics.Round) error {
	if round < fm.origin {
		return fmt.Errorf("pces: discontinuity at round %d precedes origin %d", round, fm.origin)
	}
	err := fm.index.Atomic(context.Background(), "pces.RegisterDiscontinuity", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO meta (key, value) VALUES ('origin', ?)", uint64(round))
		return err
	})
	if err != nil {
		return err
	}
	fm.log.Infof("pces: registered discontinuity at round %d", round)
	fm.origin = round
	return nil
}

// PruneOldFiles deletes the files whose upper bound is below threshold. The newest file is
// always kept. It returns the number of files deleted.
func (fm *FileManager) PruneOldFiles(threshold uint64) (int, error) {
	files, err := fm.Files()
	if err != nil {
		return 0, err
	}
	var doomed []FileDescriptor
	for _, f := range files {
		if f.Sequence == fm.last.Sequence {
			break
		}
		if f.UpperBound < threshold {
			doomed = append(doomed, f)
		}
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	err = fm.index.Atomic(context.Background(), "pces.PruneOldFiles", func(ctx context.Context, tx *sql.Tx) error {
		for _, f := range doomed {
			if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE seq = ?", f.Sequence); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, f := range doomed {
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			return 0, err
		}
	}
	fm.count -= len(doomed)
	fm.fileCount.Set(float64(fm.count))
	fm.filesPruned.AddUint64(uint64(len(doomed)))
	fm.log.Debugf("pces: pruned %d files below %d", len(doomed), threshold)
	return len(doomed), nil
}

// Files lists every indexed file in sequence order.
func (fm *FileManager) Files() (files []FileDescriptor, err error) {
	err = fm.index.Atomic(context.Background(), "pces.Files", func(ctx context.Context, tx *sql.Tx) error {
		files = files[:0]
		rows, err := tx.QueryContext(ctx, "SELECT seq, lower, upper, origin, name FROM files ORDER BY seq")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var f FileDescriptor
			var origin uint64
			var name string
			if err := rows.Scan(&f.Sequence, &f.LowerBound, &f.UpperBound, &origin, &name); err != nil {
				return err
			}
			f.Origin = basics.Round(origin)
			f.Path = filepath.Join(fm.dir, name)
			files = append(files, f)
		}
		return rows.Err()
	})
	return
}

// FileIterator returns an iterator over the events to replay when resuming from
// startingRound: only files of the latest origin not after startingRound are read, and
// events with an indicator below lowerBound are skipped.
func (fm *FileManager) FileIterator(lowerBound uint64, startingRound basics.Round) (*Iterator, error) {
	files, err := fm.Files()
	if err != nil {
		return nil, err
	}
	var origin basics.Round
	found := false
	for _, f := range files {
		if f.Origin <= startingRound && (!found || f.Origin > origin) {
			origin = f.Origin
			found = true
		}
	}

	var selected []FileDescriptor
	for _, f := range files {
		if found && f.Origin == origin && f.UpperBound >= lowerBound {
			selected = append(selected, f)
		}
	}
	fm.log.Infof("pces: replaying %d of %d files, origin %d, from %d", len(selected), len(files), origin, lowerBound)
	return makeIterator(selected, lowerBound, fm.mode, fm.log), nil
}

// Close releases the index and the directory lock.
func (fm *FileManager) Close() {
	fm.index.Close()
	fm.lock.Unlock()
}
