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
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"

	"github.com/algorand/go-hashgraph/data/events"
	"github.com/algorand/go-hashgraph/logging"
)

// fileReader reads the records of one segment file.
type fileReader struct {
	desc     FileDescriptor
	f        *os.File
	r        *bufio.Reader
	compress bool
}

func openFileReader(desc FileDescriptor) (*fileReader, error) {
	f, err := os.Open(desc.Path)
	if err != nil {
		return nil, err
	}
	r := bufio.NewReader(f)
	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		f.Close()
		return nil, fmt.Errorf("%v: %w", desc, ErrBadHeader)
	}
	if string(hdr[:len(fileMagic)]) != fileMagic || hdr[len(fileMagic)] != formatVersion {
		f.Close()
		return nil, fmt.Errorf("%v: %w", desc, ErrBadHeader)
	}
	return &fileReader{
		desc:     desc,
		f:        f,
		r:        r,
		compress: hdr[len(fileMagic)+1]&flagSnappy != 0,
	}, nil
}

// errTornRecord marks a trailing record that was only partially written.
var errTornRecord = errors.New("pces: torn trailing record")

// next returns the next event, io.EOF at the end of the file, or errTornRecord when the
// file ends inside a record.
func (fr *fileReader) next() (*events.PlatformEvent, error) {
	var hdr [recordHeaderSize]byte
	n, err := io.ReadFull(fr.r, hdr[:])
	if err == io.EOF && n == 0 {
		return nil, io.EOF
	}
	if err != nil {
		return nil, errTornRecord
	}
	length := binary.BigEndian.Uint32(hdr[0:4])
	if length > maxRecordSize {
		return nil, fmt.Errorf("%v: record of %d bytes: %w", fr.desc, length, ErrCorruptRecord)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		return nil, errTornRecord
	}
	if xxhash.Sum64(payload) != binary.BigEndian.Uint64(hdr[4:12]) {
		// a checksum mismatch on the last record of the file is a torn write as well.
		if _, perr := fr.r.Peek(1); perr == io.EOF {
			return nil, errTornRecord
		}
		return nil, fmt.Errorf("%v: checksum mismatch: %w", fr.desc, ErrCorruptRecord)
	}
	if fr.compress {
		payload, err = snappy.Decode(nil, payload)
		if err != nil {
			return nil, fmt.Errorf("%v: %v: %w", fr.desc, err, ErrCorruptRecord)
		}
	}
	e, err := events.DecodeEvent(payload)
	if err != nil {
		return nil, fmt.Errorf("%v: %v: %w", fr.desc, err, ErrCorruptRecord)
	}
	return e, nil
}

func (fr *fileReader) close() {
	fr.f.Close()
}

// Iterator returns the events of a sequence of files in file order and, within a file,
// in the order they were written. Events below the iterator's lower bound are skipped.
type Iterator struct {
	files      []FileDescriptor
	lowerBound uint64
	mode       events.AncientMode
	log        logging.Logger

	cur *fileReader
}

func makeIterator(files []FileDescriptor, lowerBound uint64, mode events.AncientMode, log logging.Logger) *Iterator {
	return &Iterator{
		files:      files,
		lowerBound: lowerBound,
		mode:       mode,
		log:        log,
	}
}

// Next returns the next event, or io.EOF when all files are exhausted. Returned events
// are not hashed.
func (it *Iterator) Next() (*events.PlatformEvent, error) {
	for {
		if it.cur == nil {
			if len(it.files) == 0 {
				return nil, io.EOF
			}
			fr, err := openFileReader(it.files[0])
			if err != nil {
				return nil, err
			}
			it.cur = fr
			it.files = it.files[1:]
		}

		e, err := it.cur.next()
		switch {
		case err == nil:
		case errors.Is(err, errTornRecord):
			it.log.Warnf("pces: %v ends with a partially written record, ignoring it", it.cur.desc)
			fallthrough
		case err == io.EOF:
			it.cur.close()
			it.cur = nil
			continue
		default:
			return nil, err
		}

		if it.indicator(e) < it.lowerBound {
			continue
		}
		return e, nil
	}
}

// indicator is the ancient indicator of an unhashed event as it was written.
func (it *Iterator) indicator(e *events.PlatformEvent) uint64 {
	if it.mode == events.BirthRoundThreshold {
		return uint64(e.BirthRound)
	}
	return e.Generation()
}

// Close releases the file currently being read.
func (it *Iterator) Close() {
	if it.cur != nil {
		it.cur.close()
		it.cur = nil
	}
	it.files = nil
}
