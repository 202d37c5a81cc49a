// Copyright (C) 2025 Thinline Dynamic Solutions
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>

package main

import (
	"context"
	"sync"
	"sync/atomic"
)

// Outcome is either a successful transcription result or the terminal
// failure for one chunk. A batch always returns one outcome per chunk, in
// ordinal order, no matter how individual calls interleave or fail.
type Outcome struct {
	ChunkId      string               `json:"chunkId"`
	OrdinalIndex int                  `json:"ordinalIndex"`
	Result       *TranscriptionResult `json:"result,omitempty"`
	Err          error                `json:"-"`
	Error        string               `json:"error,omitempty"`
}

// Failed reports whether this chunk ended in a terminal failure.
func (outcome Outcome) Failed() bool {
	return outcome.Err != nil
}

// ProgressFunc receives the running completed count as calls settle. The
// count only ever increases; it says nothing about which chunks finished.
type ProgressFunc func(completed int, total int)

// ConcurrencyScheduler bounds the number of in-flight transcription calls
// and reassembles outcomes strictly by ordinal index. Each worker writes to
// its own pre-assigned slot, so completion order can never leak into the
// returned ordering and no second sort pass is needed.
type ConcurrencyScheduler struct {
	client *TranscriptionClient
	store  *ChunkStore
}

// NewConcurrencyScheduler creates a scheduler over a client and payload store.
func NewConcurrencyScheduler(client *TranscriptionClient, store *ChunkStore) *ConcurrencyScheduler {
	return &ConcurrencyScheduler{client: client, store: store}
}

// DispatchAll transcribes every chunk with at most maxConcurrent calls in
// flight and returns one outcome per chunk, ordered by ordinal index. One
// chunk's terminal failure never prevents collection of the others; the
// batch completes with a mixed outcome set. Cancellation is checked before
// each new dispatch: remaining chunks are marked failed with the context's
// error while already-collected outcomes are kept intact.
func (scheduler *ConcurrencyScheduler) DispatchAll(ctx context.Context, chunks []Chunk, maxConcurrent int, onProgress ProgressFunc) []Outcome {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	outcomes := make([]Outcome, len(chunks))
	semaphore := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	var completed int64

	settle := func(index int, outcome Outcome) {
		outcomes[index] = outcome
		if onProgress != nil {
			onProgress(int(atomic.AddInt64(&completed, 1)), len(chunks))
		}
	}

	for i := range chunks {
		if err := ctx.Err(); err != nil {
			// Abandon remaining work without corrupting collected results.
			for j := i; j < len(chunks); j++ {
				outcomes[j] = failureOutcome(&chunks[j], &TranscriptionError{ChunkId: chunks[j].Id, Err: err})
			}
			break
		}

		semaphore <- struct{}{}
		wg.Add(1)

		go func(index int, chunk Chunk) {
			defer wg.Done()
			defer func() { <-semaphore }()

			payload, err := scheduler.store.Read(chunk.PayloadRef)
			if err != nil {
				settle(index, failureOutcome(&chunk, err))
				return
			}

			result, err := scheduler.client.Transcribe(ctx, &chunk, payload)
			if err != nil {
				settle(index, failureOutcome(&chunk, err))
				return
			}

			settle(index, Outcome{ChunkId: chunk.Id, OrdinalIndex: chunk.OrdinalIndex, Result: result})
		}(i, chunks[i])
	}

	wg.Wait()

	return outcomes
}

func failureOutcome(chunk *Chunk, err error) Outcome {
	return Outcome{
		ChunkId:      chunk.Id,
		OrdinalIndex: chunk.OrdinalIndex,
		Err:          err,
		Error:        err.Error(),
	}
}
