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
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestChunkStoreRoundTrip(t *testing.T) {
	store, err := NewChunkStore(t.TempDir())
	if err != nil {
		t.Fatalf("chunk store: %v", err)
	}

	chunk := testChunk(0)
	payload := []byte("wav bytes go here")

	ref, err := store.Persist(chunk, payload)
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if ref == "" {
		t.Fatal("expected a non-empty reference")
	}

	if _, err := store.Resolve(ref); err != nil {
		t.Errorf("resolve: %v", err)
	}

	read, err := store.Read(ref)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(read, payload) {
		t.Error("read payload differs from persisted payload")
	}
}

func TestChunkStoreDistinctReferences(t *testing.T) {
	store, err := NewChunkStore(t.TempDir())
	if err != nil {
		t.Fatalf("chunk store: %v", err)
	}

	sourceId := uuid.New().String()
	refs := map[string]bool{}
	for i := 0; i < 4; i++ {
		chunk := testChunk(i)
		chunk.SourceId = sourceId
		ref, err := store.Persist(chunk, []byte("payload"))
		if err != nil {
			t.Fatalf("persist %d: %v", i, err)
		}
		if refs[ref] {
			t.Errorf("reference %q reused", ref)
		}
		refs[ref] = true
	}
}

func TestChunkStoreDeleteAllForSource(t *testing.T) {
	store, err := NewChunkStore(t.TempDir())
	if err != nil {
		t.Fatalf("chunk store: %v", err)
	}

	keepId := uuid.New().String()
	dropId := uuid.New().String()
	var keepRef, dropRef string

	for i := 0; i < 2; i++ {
		keep := testChunk(i)
		keep.SourceId = keepId
		if keepRef, err = store.Persist(keep, []byte("keep")); err != nil {
			t.Fatalf("persist: %v", err)
		}
		drop := testChunk(i)
		drop.SourceId = dropId
		if dropRef, err = store.Persist(drop, []byte("drop")); err != nil {
			t.Fatalf("persist: %v", err)
		}
	}

	if err := store.DeleteAllForSource(dropId); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := store.Resolve(dropRef); err == nil {
		t.Error("deleted payload still resolves")
	}
	if _, err := store.Resolve(keepRef); err != nil {
		t.Errorf("unrelated payload was removed: %v", err)
	}

	// Deleting an already-deleted set is a no-op.
	if err := store.DeleteAllForSource(dropId); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
}

func TestChunkStoreReadMissing(t *testing.T) {
	store, err := NewChunkStore(t.TempDir())
	if err != nil {
		t.Fatalf("chunk store: %v", err)
	}

	_, err = store.Read("chunk_none_000_none.wav")
	if err == nil {
		t.Fatal("expected error for missing payload")
	}
	var storage *StorageError
	if !errors.As(err, &storage) {
		t.Errorf("expected *StorageError, got %T", err)
	}
}
