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

// Package pces implements the pre-consensus event stream: every event is appended to a
// local segment file before it may reach consensus, so that a restarted node can replay
// the events it had accepted.
package pces

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"

	"github.com/algorand/go-hashgraph/data/basics"
	"github.com/algorand/go-hashgraph/data/events"
)

const (
	fileMagic     = "PCES"
	formatVersion = 1

	flagSnappy = 1 << 0

	headerSize       = len(fileMagic) + 2
	recordHeaderSize = 4 + 8
	// maxRecordSize bounds the length prefix accepted when reading.
	maxRecordSize = 64 << 20

	fileExtension = ".pces"
)

var (
	// ErrBadHeader is returned when a file does not start with a known header.
	ErrBadHeader = errors.New("pces: bad file header")
	// ErrCorruptRecord is returned when a complete record fails its checksum.
	ErrCorruptRecord = errors.New("pces: corrupt record")
)

// FileDescriptor describes one segment file. Its bounds restrict the ancient indicators
// of the events it may hold.
type FileDescriptor struct {
	Sequence   uint64
	LowerBound uint64
	UpperBound uint64
	// Origin is the round of the discontinuity the file was written after.
	Origin basics.Round
	Path   string
}

// fileName returns the base name of the file described by the given fields.
func fileName(sequence, lower, upper uint64, origin basics.Round) string {
	return fmt.Sprintf("%010d_lo%d_hi%d_or%d%s", sequence, lower, upper, origin, fileExtension)
}

// Contains reports whether an event with the given indicator belongs in the file.
func (d FileDescriptor) Contains(indicator uint64) bool {
	return indicator >= d.LowerBound && indicator <= d.UpperBound
}

func (d FileDescriptor) String() string {
	return fmt.Sprintf("pces file %d [%d, %d] origin %d", d.Sequence, d.LowerBound, d.UpperBound, d.Origin)
}

// MutableFile is a segment file open for appending.
type MutableFile struct {
	desc     FileDescriptor
	mode     events.AncientMode
	compress bool

	f    *os.File
	w    *bufio.Writer
	size int64

	count        int
	maxIndicator uint64
}

// OpenMutableFile creates the file described by desc and writes its header.
func OpenMutableFile(desc FileDescriptor, mode events.AncientMode, compress bool) (*MutableFile, error) {
	err := os.MkdirAll(filepath.Dir(desc.Path), 0700)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(desc.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, err
	}
	mf := &MutableFile{
		desc:     desc,
		mode:     mode,
		compress: compress,
		f:        f,
		w:        bufio.NewWriter(f),
	}

	var flags byte
	if compress {
		flags |= flagSnappy
	}
	hdr := append([]byte(fileMagic), formatVersion, flags)
	if _, err = mf.w.Write(hdr); err == nil {
		err = mf.w.Flush()
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	mf.size = int64(len(hdr))
	return mf, nil
}

// Descriptor returns the descriptor the file was opened with.
func (mf *MutableFile) Descriptor() FileDescriptor {
	return mf.desc
}

// CanContain reports whether e may be written to this file.
func (mf *MutableFile) CanContain(e *events.PlatformEvent) bool {
	return mf.desc.Contains(mf.mode.EventIndicator(e))
}

// Size returns the number of bytes written so far.
func (mf *MutableFile) Size() int64 {
	return mf.size
}

// Count returns the number of events written.
func (mf *MutableFile) Count() int {
	return mf.count
}

// SpanUtilization is how much of the file's range the written events actually used.
func (mf *MutableFile) SpanUtilization() uint64 {
	if mf.count == 0 || mf.maxIndicator < mf.desc.LowerBound {
		return 0
	}
	return mf.maxIndicator - mf.desc.LowerBound
}

// WriteEvent appends e and flushes it to the operating system. It returns the number of
// bytes written.
func (mf *MutableFile) WriteEvent(e *events.PlatformEvent) (int, error) {
	payload := events.EncodeEvent(e)
	if mf.compress {
		payload = snappy.Encode(nil, payload)
	}
	rec := make([]byte, recordHeaderSize, recordHeaderSize+len(payload))
	binary.BigEndian.PutUint32(rec[0:4], uint32(len(payload)))
	binary.BigEndian.PutUint64(rec[4:12], xxhash.Sum64(payload))
	rec = append(rec, payload...)

	if _, err := mf.w.Write(rec); err != nil {
		return 0, err
	}
	if err := mf.w.Flush(); err != nil {
		return 0, err
	}
	mf.size += int64(len(rec))
	mf.count++
	if ind := mf.mode.EventIndicator(e); ind > mf.maxIndicator {
		mf.maxIndicator = ind
	}
	return len(rec), nil
}

// Sync flushes and fsyncs the file.
func (mf *MutableFile) Sync() error {
	if err := mf.w.Flush(); err != nil {
		return err
	}
	return mf.f.Sync()
}

// Close syncs and closes the file.
func (mf *MutableFile) Close() error {
	err := mf.Sync()
	cerr := mf.f.Close()
	if err != nil {
		return err
	}
	return cerr
}
