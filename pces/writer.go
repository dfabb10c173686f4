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
	"errors"
	"fmt"
	"time"

	"github.com/algorand/go-deadlock"

	"github.com/algorand/go-hashgraph/config"
	"github.com/algorand/go-hashgraph/data/basics"
	"github.com/algorand/go-hashgraph/data/events"
	"github.com/algorand/go-hashgraph/logging"
	"github.com/algorand/go-hashgraph/util/metrics"
)

var (
	// ErrAlreadyStreaming is returned by a repeated BeginStreamingNewEvents.
	ErrAlreadyStreaming = errors.New("pces: already streaming new events")
	// ErrWriterFailed is returned by every operation after an I/O failure.
	ErrWriterFailed = errors.New("pces: writer failed")
	// ErrOutOfRange is returned when an event falls outside the range of the file opened
	// for it.
	ErrOutOfRange = errors.New("pces: event outside file range")
)

// WriterConfig holds the tunables of a Writer.
type WriterConfig struct {
	// PreferredFileSize is the size after which the current file is rotated.
	PreferredFileSize int64
	// BootstrapSpan is the span of files opened before any file was closed.
	BootstrapSpan uint64
	// MinimumSpan is the smallest span a file is opened with.
	MinimumSpan uint64
	Compress    bool
	// SyncEveryEvent fsyncs after each event rather than only on Sync and Close.
	SyncEveryEvent bool
}

// MakeWriterConfig extracts the writer settings of cfg.
func MakeWriterConfig(cfg config.Local) WriterConfig {
	return WriterConfig{
		PreferredFileSize: cfg.PCESPreferredFileSizeBytes,
		BootstrapSpan:     cfg.PCESBootstrapSpan,
		MinimumSpan:       cfg.PCESMinimumSpan,
		Compress:          cfg.PCESCompressRecords,
		SyncEveryEvent:    cfg.PCESSyncEveryEvent,
	}
}

// Writer appends events to the files of a FileManager. It writes nothing until
// BeginStreamingNewEvents is called, so that events replayed from disk are not stored
// again.
type Writer struct {
	mu deadlock.Mutex

	cfg     WriterConfig
	mode    events.AncientMode
	manager *FileManager
	log     logging.Logger

	streaming bool
	current   *MutableFile
	// nonAncientBoundary is the lowest indicator a newly opened file may hold.
	nonAncientBoundary uint64
	// span is the width given to the next file, once a file has been closed.
	span uint64
	// failed latches the first I/O error.
	failed error

	eventsWritten *metrics.Counter
	bytesWritten  *metrics.Counter
	filesOpened   *metrics.Counter
	syncMicros    *metrics.Counter
}

// MakeWriter creates an idle writer over manager. The non-ancient boundary starts at the
// lower bound of the newest existing file, since no later file may start below it.
func MakeWriter(cfg WriterConfig, mode events.AncientMode, manager *FileManager, log logging.Logger, reg *metrics.Registry) *Writer {
	return &Writer{
		cfg:                cfg,
		mode:               mode,
		manager:            manager,
		log:                log,
		nonAncientBoundary: max(manager.LastDescriptor().LowerBound, 1),
		eventsWritten:      metrics.MakeCounter(reg, metrics.PCESEventsWritten),
		bytesWritten:       metrics.MakeCounter(reg, metrics.PCESBytesWritten),
		filesOpened:        metrics.MakeCounter(reg, metrics.PCESFilesOpened),
		syncMicros:         metrics.MakeCounter(reg, metrics.PCESSyncMicros),
	}
}

// BeginStreamingNewEvents starts writing the events passed to WriteEvent.
func (w *Writer) BeginStreamingNewEvents() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.streaming {
		w.log.Error("pces: BeginStreamingNewEvents called while already streaming")
		return ErrAlreadyStreaming
	}
	w.streaming = true
	return nil
}

// Streaming reports whether BeginStreamingNewEvents has been called.
func (w *Writer) Streaming() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.streaming
}

// WriteEvent appends e to the current file, opening or rotating files as needed. Events
// below the non-ancient boundary, and all events before streaming begins, are skipped.
func (w *Writer) WriteEvent(e *events.PlatformEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed != nil {
		return w.failedErr()
	}
	if !w.streaming || w.mode.EventIndicator(e) < w.nonAncientBoundary {
		return nil
	}

	_, err := w.prepareOutputStream(e)
	if err != nil {
		return err
	}
	n, err := w.current.WriteEvent(e)
	if err != nil {
		return w.fail(err)
	}
	if w.cfg.SyncEveryEvent {
		if err := w.current.Sync(); err != nil {
			return w.fail(err)
		}
	}
	w.eventsWritten.Inc()
	w.bytesWritten.AddUint64(uint64(n))
	return nil
}

// PrepareOutputStream makes sure a file that can hold e is open. It reports whether a
// file was closed to make room for it.
func (w *Writer) PrepareOutputStream(e *events.PlatformEvent) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed != nil {
		return false, w.failedErr()
	}
	return w.prepareOutputStream(e)
}

func (w *Writer) prepareOutputStream(e *events.PlatformEvent) (closed bool, err error) {
	if w.current != nil && (!w.current.CanContain(e) || w.current.Size() >= w.cfg.PreferredFileSize) {
		if err := w.closeCurrent(); err != nil {
			return false, err
		}
		closed = true
	}
	if w.current != nil {
		return closed, nil
	}

	span := w.cfg.BootstrapSpan
	if w.span > 0 {
		span = max(w.span, w.cfg.MinimumSpan)
	}
	lower := w.nonAncientBoundary
	upper := max(lower+span, w.mode.EventIndicator(e))
	if indicator := w.mode.EventIndicator(e); indicator < max(lower, w.manager.LastDescriptor().LowerBound) {
		return closed, fmt.Errorf("%w: indicator %d, boundary %d", ErrOutOfRange, indicator, lower)
	}
	desc, err := w.manager.NextFileDescriptor(lower, upper)
	if err != nil {
		return closed, w.fail(err)
	}
	w.current, err = OpenMutableFile(desc, w.mode, w.cfg.Compress)
	if err != nil {
		return closed, w.fail(err)
	}
	w.filesOpened.Inc()
	w.log.Debugf("pces: opened %v", desc)
	return closed, nil
}

// RegisterDiscontinuity closes the current file and starts a new origin at round.
func (w *Writer) RegisterDiscontinuity(round basics.Round) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed != nil {
		return w.failedErr()
	}
	if w.current != nil {
		if err := w.closeCurrent(); err != nil {
			return err
		}
	}
	if err := w.manager.RegisterDiscontinuity(round); err != nil {
		return w.fail(err)
	}
	return nil
}

// UpdateNonAncientEventBoundary raises the lowest indicator new files are opened with. A
// window with a lower threshold is ignored.
func (w *Writer) UpdateNonAncientEventBoundary(window events.EventWindow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed != nil {
		return w.failedErr()
	}
	if window.AncientThreshold > w.nonAncientBoundary {
		w.nonAncientBoundary = window.AncientThreshold
	}
	return nil
}

// NonAncientBoundary returns the current non-ancient boundary.
func (w *Writer) NonAncientBoundary() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nonAncientBoundary
}

// SetMinimumAncientIdentifierToStore deletes the files holding only events below
// threshold.
func (w *Writer) SetMinimumAncientIdentifierToStore(threshold uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed != nil {
		return w.failedErr()
	}
	if _, err := w.manager.PruneOldFiles(threshold); err != nil {
		return w.fail(err)
	}
	return nil
}

// CloseCurrentMutableFile flushes and closes the open file, if any.
func (w *Writer) CloseCurrentMutableFile() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed != nil {
		return w.failedErr()
	}
	if w.current == nil {
		return nil
	}
	return w.closeCurrent()
}

// Sync makes everything written so far durable.
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed != nil {
		return w.failedErr()
	}
	if w.current == nil {
		return nil
	}
	start := time.Now()
	if err := w.current.Sync(); err != nil {
		return w.fail(err)
	}
	w.syncMicros.AddMicrosecondsSince(start)
	return nil
}

// Err returns the error that failed the writer, or nil.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failed
}

func (w *Writer) closeCurrent() error {
	mf := w.current
	w.current = nil
	if err := mf.Close(); err != nil {
		return w.fail(err)
	}
	if mf.Count() > 0 {
		w.span = max(mf.SpanUtilization(), 1)
	}
	w.log.Debugf("pces: closed %v with %d events, %d bytes", mf.Descriptor(), mf.Count(), mf.Size())
	return nil
}

func (w *Writer) fail(err error) error {
	if w.failed == nil {
		w.failed = err
		w.log.Errorf("pces: writer failed: %v", err)
	}
	return w.failedErr()
}

func (w *Writer) failedErr() error {
	return fmt.Errorf("%w: %v", ErrWriterFailed, w.failed)
}
