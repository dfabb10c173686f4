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

package pipeline

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/algorand/go-hashgraph/consensus"
	"github.com/algorand/go-hashgraph/data/events"
	"github.com/algorand/go-hashgraph/pces"
)

// Replay loads snapshot s into the intake and feeds it the stored events that follow it,
// marking the rounds they produce as replayed. Afterwards the writer of the intake, if
// any, starts storing new events. It returns the number of events replayed.
func Replay(ctx context.Context, intake *Intake, fm *pces.FileManager, s consensus.ConsensusSnapshot) (int, error) {
	err := intake.LoadSnapshot(ctx, s)
	if err != nil {
		return 0, err
	}
	w := intake.cfg.Consensus.Window.Window(s.Round, s.MinimumJudgeInfo)
	it, err := fm.FileIterator(w.AncientThreshold, s.Round)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	err = intake.SetReplaying(ctx, true)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	stored := make(chan *events.PlatformEvent, 64)
	g.Go(func() error {
		defer close(stored)
		for {
			e, err := it.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			select {
			case stored <- e:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})
	count := 0
	g.Go(func() error {
		for e := range stored {
			if err := intake.AddEvent(gctx, e); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	err = g.Wait()
	if err != nil {
		return count, err
	}

	err = intake.SetReplaying(ctx, false)
	if err != nil {
		return count, err
	}
	err = intake.Flush(ctx)
	if err != nil {
		return count, err
	}
	if intake.writer != nil {
		err = intake.writer.BeginStreamingNewEvents()
		if err != nil {
			return count, err
		}
	}
	intake.log.Infof("pipeline: replayed %d events after round %d", count, s.Round)
	return count, nil
}
