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

// Package pipeline connects the intake components into stages: hashing, the
// pre-consensus event stream, the orphan buffer, consensus and event window
// propagation. Each stage runs on its own scheduler and only talks to the next one by
// submitting tasks, so a stage sees its input strictly in arrival order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/algorand/go-deadlock"
	"golang.org/x/sync/errgroup"

	"github.com/algorand/go-hashgraph/consensus"
	"github.com/algorand/go-hashgraph/data/basics"
	"github.com/algorand/go-hashgraph/data/events"
	"github.com/algorand/go-hashgraph/data/roster"
	"github.com/algorand/go-hashgraph/eventwindow"
	"github.com/algorand/go-hashgraph/logging"
	"github.com/algorand/go-hashgraph/orphanbuffer"
	"github.com/algorand/go-hashgraph/pces"
	"github.com/algorand/go-hashgraph/util/execpool"
	"github.com/algorand/go-hashgraph/util/metrics"
)

// ErrIntakeHalted is returned once the intake stopped accepting events, either because
// it was stopped or because of a fatal error.
var ErrIntakeHalted = errors.New("pipeline: intake halted")

// RoundHandler receives every round that reaches consensus, in order.
type RoundHandler func(*consensus.ConsensusRound)

// WindowHandler receives every new event window.
type WindowHandler func(events.EventWindow)

// FatalHandler is told about the error that halted the intake.
type FatalHandler func(error)

// Deps are the collaborators of an Intake.
type Deps struct {
	Roster *roster.Roster
	// Writer stores events before they reach the orphan buffer. Nil disables the
	// pre-consensus event stream.
	Writer *pces.Writer
	// Snapshots, when set, receives the snapshot of every round.
	Snapshots *consensus.SnapshotStore
	// Clock stamps the rounds with the time they were decided. Nil means time.Now.
	Clock   func() time.Time
	OnFatal FatalHandler
}

// Intake is the event pipeline of a node.
type Intake struct {
	cfg Config
	log logging.Logger

	hasherStage    execpool.Scheduler
	pcesStage      execpool.Scheduler
	bufferStage    execpool.Scheduler
	consensusStage execpool.Scheduler
	windowStage    execpool.Scheduler
	stages         []execpool.Scheduler

	shim      *events.MigrationShim
	writer    *pces.Writer
	buffer    *orphanbuffer.Buffer
	engine    *consensus.Engine
	windows   *eventwindow.Manager
	snapshots *consensus.SnapshotStore
	onFatal   FatalHandler

	mu deadlock.Mutex
	// bufferChanged is signalled whenever the orphan buffer took or released events.
	bufferChanged  *sync.Cond
	halted         error
	roundHandlers  []RoundHandler
	windowHandlers []WindowHandler

	// inflight counts the tasks handed to any stage and not finished yet. A task forwards
	// its follow-up work before it finishes, so zero means the whole pipeline is quiet.
	inflight atomic.Int64
	shut     atomic.Bool

	hashed     *metrics.Counter
	hashFailed *metrics.Counter
}

// MakeIntake builds the pipeline. Threaded intakes start their stage goroutines right
// away.
func MakeIntake(cfg Config, deps Deps, log logging.Logger, reg *metrics.Registry) (*Intake, error) {
	if deps.Roster == nil {
		return nil, errors.New("pipeline: no roster")
	}
	i := &Intake{
		cfg:        cfg,
		log:        log,
		writer:     deps.Writer,
		snapshots:  deps.Snapshots,
		onFatal:    deps.OnFatal,
		buffer:     orphanbuffer.MakeBuffer(cfg.Consensus.Window.AncientMode, cfg.OrphanBufferCapacity, log, reg),
		engine:     consensus.MakeEngine(cfg.Consensus, deps.Roster, log, reg, deps.Clock),
		windows:    eventwindow.MakeManager(cfg.Consensus.Window, log),
		hashed:     metrics.MakeCounter(reg, metrics.EventsHashed),
		hashFailed: metrics.MakeCounter(reg, metrics.EventsHashFailed),
	}
	i.bufferChanged = sync.NewCond(&i.mu)
	if cfg.Migration != nil {
		shim, err := events.MakeMigrationShim(*cfg.Migration, log, reg)
		if err != nil {
			return nil, err
		}
		i.shim = shim
	}

	newStage := func(name string) execpool.Scheduler {
		if cfg.Threaded {
			return execpool.MakeSequential(name, cfg.QueueSize, reg)
		}
		return execpool.MakeDirect()
	}
	i.hasherStage = newStage("hasher")
	i.pcesStage = newStage("pces")
	i.bufferStage = newStage("orphanbuffer")
	i.consensusStage = newStage("consensus")
	i.windowStage = newStage("eventwindow")
	i.stages = []execpool.Scheduler{i.hasherStage, i.pcesStage, i.bufferStage, i.consensusStage, i.windowStage}
	return i, nil
}

// RegisterRoundHandler adds a consumer of consensus rounds.
func (i *Intake) RegisterRoundHandler(h RoundHandler) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.roundHandlers = append(i.roundHandlers, h)
}

// RegisterWindowHandler adds a consumer of event windows.
func (i *Intake) RegisterWindowHandler(h WindowHandler) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.windowHandlers = append(i.windowHandlers, h)
}

// AddEvent hands an event received from a peer or created locally to the pipeline. When
// threaded and the orphan buffer is full, an event that would become one more orphan
// blocks until the buffer has room or its parents arrive. Events that complete or extend
// the known graph are never held back.
func (i *Intake) AddEvent(ctx context.Context, e *events.PlatformEvent) error {
	if err := i.stopped(); err != nil {
		return err
	}
	if !i.cfg.Threaded || !i.buffer.Full() {
		return i.submit(ctx, i.hasherStage, func() { i.hashEvent(e) })
	}

	h, ok := i.prepare(e)
	if !ok {
		return nil
	}
	if err := i.waitForAdmission(ctx, h); err != nil {
		return err
	}
	return i.submit(ctx, i.hasherStage, func() {
		i.forward(i.pcesStage, func() { i.persistEvent(h) })
	})
}

// waitForAdmission blocks until the orphan buffer admits the hashed event e.
func (i *Intake) waitForAdmission(ctx context.Context, e *events.PlatformEvent) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	stop := context.AfterFunc(ctx, func() {
		i.mu.Lock()
		i.bufferChanged.Broadcast()
		i.mu.Unlock()
	})
	defer stop()
	for !i.buffer.Admits(e) {
		if i.halted != nil {
			return i.haltedErr()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		i.bufferChanged.Wait()
	}
	return nil
}

// LoadSnapshot resets the pipeline to the state right after snapshot s. Events submitted
// before are processed against the old state; events submitted after see the new one.
func (i *Intake) LoadSnapshot(ctx context.Context, s consensus.ConsensusSnapshot) error {
	w := i.cfg.Consensus.Window.Window(s.Round, s.MinimumJudgeInfo)
	return i.relay(ctx,
		step{i.hasherStage, nil},
		step{i.pcesStage, func() {
			if i.writer != nil {
				i.check(i.writer.UpdateNonAncientEventBoundary(w))
			}
		}},
		step{i.bufferStage, func() {
			i.buffer.Clear()
			i.afterBuffer(i.buffer.SetEventWindow(w))
		}},
		step{i.consensusStage, func() { i.engine.LoadSnapshot(s) }},
		step{i.windowStage, func() {
			i.notifyWindow(i.windows.ExtractFromSnapshot(s))
		}},
	)
}

// RegisterDiscontinuity declares that the local event history ends at round. Events
// submitted after it are stored apart from the ones submitted before.
func (i *Intake) RegisterDiscontinuity(ctx context.Context, round basics.Round) error {
	return i.relay(ctx,
		step{i.hasherStage, nil},
		step{i.pcesStage, func() {
			if i.writer != nil {
				i.check(i.writer.RegisterDiscontinuity(round))
			}
		}},
	)
}

// SetMinimumAncientIdentifierToStore allows the stored events below threshold to be
// deleted. Callers only raise it once the rounds those events belong to are reflected in
// a durable application state.
func (i *Intake) SetMinimumAncientIdentifierToStore(ctx context.Context, threshold uint64) error {
	if i.writer == nil {
		return nil
	}
	return i.submit(ctx, i.pcesStage, func() {
		i.check(i.writer.SetMinimumAncientIdentifierToStore(threshold))
	})
}

// SetReplaying marks the rounds produced by events submitted from now on as replayed.
func (i *Intake) SetReplaying(ctx context.Context, replaying bool) error {
	return i.relay(ctx,
		step{i.hasherStage, nil},
		step{i.pcesStage, nil},
		step{i.bufferStage, nil},
		step{i.consensusStage, func() { i.engine.SetReplaying(replaying) }},
	)
}

// CurrentWindow returns the latest event window.
func (i *Intake) CurrentWindow() events.EventWindow {
	return i.windows.Current()
}

// Flush waits until every event submitted so far went through every stage. Window
// updates flow back from the last stage to earlier ones, so stages are waited on until
// no task is left anywhere.
func (i *Intake) Flush(ctx context.Context) error {
	for !i.shut.Load() {
		g, gctx := errgroup.WithContext(ctx)
		for _, s := range i.stages {
			s := s
			g.Go(func() error { return s.WaitIdle(gctx) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if i.inflight.Load() == 0 {
			return nil
		}
	}
	return nil
}

// Stop drains the pipeline, closes the current PCES file and shuts the stages down.
func (i *Intake) Stop(ctx context.Context) error {
	err := i.Flush(ctx)
	if i.writer != nil && i.Err() == nil {
		if cerr := i.writer.CloseCurrentMutableFile(); cerr != nil && err == nil {
			err = cerr
		}
	}
	i.shut.Store(true)
	for _, s := range i.stages {
		s.Shutdown()
	}

	i.mu.Lock()
	if i.halted == nil {
		i.halted = ErrIntakeHalted
	}
	i.bufferChanged.Broadcast()
	i.mu.Unlock()
	return err
}

// Err returns the error that halted the intake, or nil while it runs.
func (i *Intake) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.halted
}

func (i *Intake) hashEvent(e *events.PlatformEvent) {
	if h, ok := i.prepare(e); ok {
		i.forward(i.pcesStage, func() { i.persistEvent(h) })
	}
}

// prepare hashes e and applies the birth round migration. Malformed events are logged,
// counted and dropped.
func (i *Intake) prepare(e *events.PlatformEvent) (*events.PlatformEvent, bool) {
	h, err := events.HashEvent(e)
	if err != nil {
		i.hashFailed.Inc()
		i.log.Warnf("pipeline: dropping malformed event: %v", err)
		return nil, false
	}
	i.hashed.Inc()
	if i.shim != nil {
		h = i.shim.MigrateEvent(h)
	}
	return h, true
}

// persistEvent stores e before handing it on, so that no event reaches consensus without
// being recorded first.
func (i *Intake) persistEvent(e *events.PlatformEvent) {
	if i.Err() != nil {
		return
	}
	if i.writer != nil && !i.check(i.writer.WriteEvent(e)) {
		return
	}
	i.forward(i.bufferStage, func() { i.afterBuffer(i.buffer.HandleEvent(e)) })
}

func (i *Intake) afterBuffer(released []*events.PlatformEvent) {
	if i.cfg.Threaded {
		i.mu.Lock()
		i.bufferChanged.Broadcast()
		i.mu.Unlock()
	}
	for _, e := range released {
		e := e
		i.forward(i.consensusStage, func() { i.addToConsensus(e) })
	}
}

func (i *Intake) addToConsensus(e *events.PlatformEvent) {
	for _, round := range i.engine.AddEvent(e) {
		round := round
		i.forward(i.windowStage, func() { i.handleRound(round) })
	}
}

func (i *Intake) handleRound(round *consensus.ConsensusRound) {
	if i.snapshots != nil {
		if err := i.snapshots.Save(context.Background(), round.Snapshot); err != nil {
			i.check(fmt.Errorf("pipeline: saving snapshot of round %d: %w", round.RoundNum, err))
			return
		}
	}
	if round.IsEmpty() {
		i.log.Debugf("pipeline: round %d reached consensus without events", round.RoundNum)
	}
	w := i.windows.ExtractEventWindow(round)

	i.mu.Lock()
	handlers := append([]RoundHandler(nil), i.roundHandlers...)
	i.mu.Unlock()
	for _, h := range handlers {
		h(round)
	}

	i.bufferStage.Inject(i.track(func() { i.afterBuffer(i.buffer.SetEventWindow(w)) }))
	if i.writer != nil {
		i.pcesStage.Inject(i.track(func() { i.check(i.writer.UpdateNonAncientEventBoundary(w)) }))
	}
	i.notifyWindow(w)
}

func (i *Intake) notifyWindow(w events.EventWindow) {
	i.mu.Lock()
	handlers := append([]WindowHandler(nil), i.windowHandlers...)
	i.mu.Unlock()
	for _, h := range handlers {
		h(w)
	}
}

// check halts the intake on a non-nil error and reports whether err was nil.
func (i *Intake) check(err error) bool {
	if err == nil {
		return true
	}
	i.mu.Lock()
	first := i.halted == nil
	if first {
		i.halted = err
	}
	i.bufferChanged.Broadcast()
	i.mu.Unlock()

	if first {
		i.log.Errorf("pipeline: halting intake: %v", err)
		if i.onFatal != nil {
			i.onFatal(err)
		}
	}
	return false
}

// stopped returns the halting error wrapped in ErrIntakeHalted, or nil while running.
func (i *Intake) stopped() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.halted == nil {
		return nil
	}
	return i.haltedErr()
}

func (i *Intake) haltedErr() error {
	if i.halted == ErrIntakeHalted {
		return ErrIntakeHalted
	}
	return fmt.Errorf("%w: %v", ErrIntakeHalted, i.halted)
}

// track counts t as in flight until it has run.
func (i *Intake) track(t execpool.Task) execpool.Task {
	i.inflight.Add(1)
	return func() {
		defer i.inflight.Add(-1)
		t()
	}
}

func (i *Intake) submit(ctx context.Context, s execpool.Scheduler, t execpool.Task) error {
	err := s.Submit(ctx, i.track(t))
	if err != nil {
		i.inflight.Add(-1)
	}
	if errors.Is(err, execpool.ErrShutdown) {
		return ErrIntakeHalted
	}
	return err
}

// forward passes work to the next stage, blocking while its queue is full.
func (i *Intake) forward(s execpool.Scheduler, t execpool.Task) {
	if err := s.Submit(context.Background(), i.track(t)); err != nil {
		i.inflight.Add(-1)
		i.log.Debugf("pipeline: %v dropped a task: %v", s.GetOwner(), err)
	}
}

// step is a piece of work to run on a stage once all the work submitted ahead of it
// there is done.
type step struct {
	stage execpool.Scheduler
	run   func()
}

// relay runs steps one after the other, each on its own stage, so that a control message
// travels the pipeline in order with the events around it.
func (i *Intake) relay(ctx context.Context, steps ...step) error {
	return i.submit(ctx, steps[0].stage, i.relayTask(steps))
}

func (i *Intake) relayTask(steps []step) execpool.Task {
	return func() {
		if steps[0].run != nil {
			steps[0].run()
		}
		if len(steps) > 1 {
			i.forward(steps[1].stage, i.relayTask(steps[1:]))
		}
	}
}
