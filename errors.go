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
	"errors"
	"fmt"
)

// ErrRateLimited is returned by transcription providers when the remote
// service signals a rate limit. The client retries these with backoff.
var ErrRateLimited = errors.New("rate limited")

// DecodeError means the audio source could not be read or decoded.
// It aborts the segment operation.
type DecodeError struct {
	Filename string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode %s: %v", e.Filename, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// StorageError means a chunk payload could not be written or read back.
type StorageError struct {
	Op  string
	Ref string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("chunk storage %s %s: %v", e.Op, e.Ref, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// TranscriptionError is the terminal failure for a single chunk, either
// because the remote response was not retryable or because retries ran out.
// It never aborts the batch, it becomes that chunk's outcome.
type TranscriptionError struct {
	ChunkId  string
	Attempts int
	Err      error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription of chunk %s failed after %d attempt(s): %v", e.ChunkId, e.Attempts, e.Err)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}
