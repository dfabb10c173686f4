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

// Package eventwindow tracks the event window that follows from the rounds reaching
// consensus, and hands it to the components that prune by it.
package eventwindow

import (
	"github.com/algorand/go-deadlock"

	"github.com/algorand/go-hashgraph/consensus"
	"github.com/algorand/go-hashgraph/data/events"
	"github.com/algorand/go-hashgraph/logging"
)

// Manager derives event windows. Windows it returns never move backwards.
type Manager struct {
	params events.WindowParams
	log    logging.Logger

	mu   deadlock.Mutex
	last events.EventWindow
}

// MakeManager returns a manager whose current window is the genesis window.
func MakeManager(params events.WindowParams, log logging.Logger) *Manager {
	return &Manager{
		params: params,
		log:    log,
		last:   events.GenesisEventWindow(params.AncientMode),
	}
}

// ExtractEventWindow returns the window after round. A window that would lower either
// threshold is refused and the current window is returned instead.
func (m *Manager) ExtractEventWindow(round *consensus.ConsensusRound) events.EventWindow {
	return m.advance(m.params.Window(round.RoundNum, round.Snapshot.MinimumJudgeInfo))
}

// ExtractFromSnapshot returns the window in effect right after snapshot s was taken, and
// makes it current. Loading a snapshot may move the window backwards.
func (m *Manager) ExtractFromSnapshot(s consensus.ConsensusSnapshot) events.EventWindow {
	w := m.params.Window(s.Round, s.MinimumJudgeInfo)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last.Regresses(w) {
		m.log.Infof("eventwindow: snapshot of round %d moves window back from %v to %v", s.Round, m.last, w)
	}
	m.last = w
	return w
}

// Current returns the latest window.
func (m *Manager) Current() events.EventWindow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *Manager) advance(w events.EventWindow) events.EventWindow {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last.Regresses(w) {
		m.log.Warnf("eventwindow: refusing to move window back from %v to %v", m.last, w)
		return m.last
	}
	m.last = w
	return w
}
