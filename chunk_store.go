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
	"fmt"
	"os"
	"path/filepath"
)

// ChunkStore persists chunk payloads on disk. Every name is derived from the
// chunk's source id, ordinal and id, so the namespace is pre-partitioned and
// concurrent writers never need locking.
type ChunkStore struct {
	dir string
}

// NewChunkStore prepares the chunks directory under the base directory.
func NewChunkStore(baseDir string) (*ChunkStore, error) {
	dir := filepath.Join(baseDir, "chunks")
	if err := os.MkdirAll(dir, 0770); err != nil {
		return nil, &StorageError{Op: "init", Ref: dir, Err: err}
	}
	return &ChunkStore{dir: dir}, nil
}

// Persist writes the encoded payload and returns its stable reference.
func (store *ChunkStore) Persist(chunk *Chunk, payload []byte) (string, error) {
	ref := fmt.Sprintf("chunk_%s_%03d_%s.wav", chunk.SourceId, chunk.OrdinalIndex, chunk.Id)
	if err := os.WriteFile(filepath.Join(store.dir, ref), payload, 0660); err != nil {
		return "", &StorageError{Op: "write", Ref: ref, Err: err}
	}
	return ref, nil
}

// Resolve maps a reference to the payload's location on disk.
func (store *ChunkStore) Resolve(ref string) (string, error) {
	p := filepath.Join(store.dir, filepath.Base(ref))
	if _, err := os.Stat(p); err != nil {
		return "", &StorageError{Op: "resolve", Ref: ref, Err: err}
	}
	return p, nil
}

// Read loads a persisted payload back into memory.
func (store *ChunkStore) Read(ref string) ([]byte, error) {
	p, err := store.Resolve(ref)
	if err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(p)
	if err != nil {
		return nil, &StorageError{Op: "read", Ref: ref, Err: err}
	}
	return payload, nil
}

// DeleteAllForSource removes every payload belonging to a source. Deleting a
// set that does not exist is a no-op, not an error.
func (store *ChunkStore) DeleteAllForSource(sourceId string) error {
	matches, err := filepath.Glob(filepath.Join(store.dir, fmt.Sprintf("chunk_%s_*", sourceId)))
	if err != nil {
		return &StorageError{Op: "delete", Ref: sourceId, Err: err}
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			return &StorageError{Op: "delete", Ref: filepath.Base(match), Err: err}
		}
	}
	return nil
}
