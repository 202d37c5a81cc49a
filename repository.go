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
	"sort"
	"sync"
)

// Repository stores sources, chunks, jobs, results and edits. It is an
// explicitly owned, injectable collaborator, never ambient global state; the
// controller decides at construction whether records live in memory or in
// PostgreSQL.
type Repository interface {
	SaveSource(info SourceInfo) error
	GetSource(id string) (SourceInfo, bool, error)
	ListSources() ([]SourceInfo, error)
	DeleteSource(id string) error

	SaveChunks(sourceId string, chunks []Chunk) error
	GetChunks(sourceId string) ([]Chunk, error)

	SaveJob(job Job) error
	GetJob(sourceId string) (Job, bool, error)

	SaveResult(sourceId string, result TranscriptionResult) error
	GetResults(sourceId string) (map[string]TranscriptionResult, error)

	SaveFailure(sourceId string, chunkId string, reason string) error
	GetFailures(sourceId string) (map[string]string, error)

	SaveEdit(sourceId string, edit ValidationEdit) error
	GetEdits(sourceId string) (map[string]ValidationEdit, error)

	Close() error
}

// MemoryRepository keeps every record in mutex-guarded maps keyed by source
// id. It is the default when no database is configured.
type MemoryRepository struct {
	mutex    sync.RWMutex
	sources  map[string]SourceInfo
	chunks   map[string][]Chunk
	jobs     map[string]Job
	results  map[string]map[string]TranscriptionResult
	failures map[string]map[string]string
	edits    map[string]map[string]ValidationEdit
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sources:  make(map[string]SourceInfo),
		chunks:   make(map[string][]Chunk),
		jobs:     make(map[string]Job),
		results:  make(map[string]map[string]TranscriptionResult),
		failures: make(map[string]map[string]string),
		edits:    make(map[string]map[string]ValidationEdit),
	}
}

func (repository *MemoryRepository) SaveSource(info SourceInfo) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	repository.sources[info.Id] = info
	return nil
}

func (repository *MemoryRepository) GetSource(id string) (SourceInfo, bool, error) {
	repository.mutex.RLock()
	defer repository.mutex.RUnlock()
	info, ok := repository.sources[id]
	return info, ok, nil
}

func (repository *MemoryRepository) ListSources() ([]SourceInfo, error) {
	repository.mutex.RLock()
	defer repository.mutex.RUnlock()
	sources := make([]SourceInfo, 0, len(repository.sources))
	for _, info := range repository.sources {
		sources = append(sources, info)
	}
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].UploadedAt.Before(sources[j].UploadedAt)
	})
	return sources, nil
}

func (repository *MemoryRepository) DeleteSource(id string) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	delete(repository.sources, id)
	delete(repository.chunks, id)
	delete(repository.jobs, id)
	delete(repository.results, id)
	delete(repository.failures, id)
	delete(repository.edits, id)
	return nil
}

func (repository *MemoryRepository) SaveChunks(sourceId string, chunks []Chunk) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	stored := make([]Chunk, len(chunks))
	copy(stored, chunks)
	sort.Slice(stored, func(i, j int) bool {
		return stored[i].OrdinalIndex < stored[j].OrdinalIndex
	})
	repository.chunks[sourceId] = stored
	return nil
}

func (repository *MemoryRepository) GetChunks(sourceId string) ([]Chunk, error) {
	repository.mutex.RLock()
	defer repository.mutex.RUnlock()
	stored := repository.chunks[sourceId]
	chunks := make([]Chunk, len(stored))
	copy(chunks, stored)
	return chunks, nil
}

func (repository *MemoryRepository) SaveJob(job Job) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	repository.jobs[job.SourceId] = job
	return nil
}

func (repository *MemoryRepository) GetJob(sourceId string) (Job, bool, error) {
	repository.mutex.RLock()
	defer repository.mutex.RUnlock()
	job, ok := repository.jobs[sourceId]
	return job, ok, nil
}

func (repository *MemoryRepository) SaveResult(sourceId string, result TranscriptionResult) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	if repository.results[sourceId] == nil {
		repository.results[sourceId] = make(map[string]TranscriptionResult)
	}
	repository.results[sourceId][result.ChunkId] = result
	return nil
}

func (repository *MemoryRepository) GetResults(sourceId string) (map[string]TranscriptionResult, error) {
	repository.mutex.RLock()
	defer repository.mutex.RUnlock()
	results := make(map[string]TranscriptionResult, len(repository.results[sourceId]))
	for chunkId, result := range repository.results[sourceId] {
		results[chunkId] = result
	}
	return results, nil
}

func (repository *MemoryRepository) SaveFailure(sourceId string, chunkId string, reason string) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	if repository.failures[sourceId] == nil {
		repository.failures[sourceId] = make(map[string]string)
	}
	repository.failures[sourceId][chunkId] = reason
	return nil
}

func (repository *MemoryRepository) GetFailures(sourceId string) (map[string]string, error) {
	repository.mutex.RLock()
	defer repository.mutex.RUnlock()
	failures := make(map[string]string, len(repository.failures[sourceId]))
	for chunkId, reason := range repository.failures[sourceId] {
		failures[chunkId] = reason
	}
	return failures, nil
}

func (repository *MemoryRepository) SaveEdit(sourceId string, edit ValidationEdit) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	if repository.edits[sourceId] == nil {
		repository.edits[sourceId] = make(map[string]ValidationEdit)
	}
	repository.edits[sourceId][edit.ChunkId] = edit
	return nil
}

func (repository *MemoryRepository) GetEdits(sourceId string) (map[string]ValidationEdit, error) {
	repository.mutex.RLock()
	defer repository.mutex.RUnlock()
	edits := make(map[string]ValidationEdit, len(repository.edits[sourceId]))
	for chunkId, edit := range repository.edits[sourceId] {
		edits[chunkId] = edit
	}
	return edits, nil
}

func (repository *MemoryRepository) Close() error {
	return nil
}
