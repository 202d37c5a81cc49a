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
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Controller owns the pipeline: it wires the repository, chunk store,
// segmenter, transcription client and scheduler together and exposes the two
// operations everything else goes through, Segment and TranscribeAll.
type Controller struct {
	Config     *Config
	Repository Repository
	ChunkStore *ChunkStore
	Segmenter  *Segmenter
	Provider   TranscriptionProvider
	Client     *TranscriptionClient
	Scheduler  *ConcurrencyScheduler
	Api        *Api
	Dirwatch   *Dirwatch

	hub *progressHub

	cancelMutex sync.Mutex
	cancels     map[string]context.CancelFunc
}

// NewController builds the pipeline from configuration. The repository and
// the transcription provider are both chosen here, at construction, never
// probed for at runtime.
func NewController(config *Config) (*Controller, error) {
	controller := &Controller{
		Config:  config,
		hub:     newProgressHub(),
		cancels: make(map[string]context.CancelFunc),
	}

	var err error

	switch config.DbType {
	case DbTypePostgresql:
		if controller.Repository, err = NewPostgresRepository(config); err != nil {
			return nil, err
		}
	default:
		controller.Repository = NewMemoryRepository()
	}

	if controller.ChunkStore, err = NewChunkStore(config.BaseDir); err != nil {
		return nil, err
	}

	switch config.Provider {
	case ProviderElevenLabs:
		controller.Provider = NewElevenLabsTranscription(&ElevenLabsConfig{
			APIKey:  config.ApiKey,
			BaseUrl: config.ApiBaseUrl,
			Model:   config.Model,
		})
	default:
		controller.Provider = NewMockTranscription()
	}

	if !controller.Provider.IsAvailable() {
		return nil, fmt.Errorf("transcription provider %s is not available, check its configuration", controller.Provider.GetName())
	}

	controller.Segmenter = NewSegmenter(config)
	controller.Client = NewTranscriptionClient(controller.Provider, config)
	controller.Scheduler = NewConcurrencyScheduler(controller.Client, controller.ChunkStore)
	controller.Api = NewApi(controller)

	if config.WatchDir != "" {
		if controller.Dirwatch, err = NewDirwatch(controller); err != nil {
			return nil, err
		}
	}

	return controller, nil
}

// Start launches the directory watcher when configured and serves the API.
// It blocks until the listener stops.
func (controller *Controller) Start() error {
	log.Printf("provider is %s, records in %s, listening on %s", controller.Provider.GetName(), controller.Config.DbType, controller.Config.Listen)

	if controller.Dirwatch != nil {
		if err := controller.Dirwatch.Start(); err != nil {
			return err
		}
	}

	return controller.Api.Start()
}

// Terminate stops the watcher, the API server and the repository.
func (controller *Controller) Terminate() {
	controller.cancelMutex.Lock()
	for _, cancel := range controller.cancels {
		cancel()
	}
	controller.cancelMutex.Unlock()

	if controller.Dirwatch != nil {
		controller.Dirwatch.Stop()
	}
	controller.Api.Stop()
	controller.Repository.Close()
}

// Segment ingests one audio file: decode, split into ordered chunks, persist
// every chunk payload and create the pending job. It returns the source
// metadata and the ordered chunk list. Decode and storage failures abort the
// operation; a half-persisted chunk set is cleaned up before returning.
func (controller *Controller) Segment(path string, originalFilename string) (SourceInfo, []Chunk, error) {
	source, err := LoadAudioSource(path, originalFilename)
	if err != nil {
		return SourceInfo{}, nil, err
	}

	chunks := controller.Segmenter.Segment(source)

	for i := range chunks {
		ref, err := controller.ChunkStore.Persist(&chunks[i], source.EncodeChunk(&chunks[i]))
		if err != nil {
			controller.ChunkStore.DeleteAllForSource(source.Id)
			return SourceInfo{}, nil, err
		}
		chunks[i].PayloadRef = ref
	}

	info := source.Info()
	info.TotalChunks = len(chunks)

	now := time.Now().UTC()
	job := Job{
		Id:          uuid.New().String(),
		SourceId:    source.Id,
		Status:      JobPending,
		TotalChunks: len(chunks),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := controller.Repository.SaveSource(info); err != nil {
		return SourceInfo{}, nil, err
	}
	if err := controller.Repository.SaveChunks(source.Id, chunks); err != nil {
		return SourceInfo{}, nil, err
	}
	if err := controller.Repository.SaveJob(job); err != nil {
		return SourceInfo{}, nil, err
	}

	if controller.Config.EnableDebugLog {
		log.Printf("segmented %s into %d chunk(s) over %.1fs", originalFilename, len(chunks), info.Duration)
	}

	return info, chunks, nil
}

// TranscribeAll drives the bounded-concurrency transcription of a source's
// chunks and returns the outcomes in ordinal order. Progress is written to
// the job record and pushed to subscribers as completions arrive. One
// chunk's failure never discards the others' results.
func (controller *Controller) TranscribeAll(ctx context.Context, sourceId string) ([]Outcome, error) {
	chunks, err := controller.Repository.GetChunks(sourceId)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("source %s has no chunks", sourceId)
	}

	job, found, err := controller.Repository.GetJob(sourceId)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("source %s has no job", sourceId)
	}

	runCtx, cancel := context.WithCancel(ctx)
	controller.registerCancel(sourceId, cancel)
	defer controller.unregisterCancel(sourceId)

	job.Status = JobProcessing
	job.Completed = 0
	job.UpdatedAt = time.Now().UTC()
	if err := controller.Repository.SaveJob(job); err != nil {
		log.Printf("failed to update job for source %s: %v", sourceId, err)
	}
	controller.hub.publish(sourceId, job.Progress())

	var jobMutex sync.Mutex
	onProgress := func(completed int, total int) {
		jobMutex.Lock()
		defer jobMutex.Unlock()
		if completed > job.Completed {
			job.Completed = completed
		}
		job.UpdatedAt = time.Now().UTC()
		if err := controller.Repository.SaveJob(job); err != nil {
			log.Printf("failed to update job for source %s: %v", sourceId, err)
		}
		controller.hub.publish(sourceId, TrackProgress(job.Completed, total))
	}

	outcomes := controller.Scheduler.DispatchAll(runCtx, chunks, controller.Config.MaxConcurrent, onProgress)

	failed := 0
	for _, outcome := range outcomes {
		if outcome.Failed() {
			failed++
			controller.Repository.SaveFailure(sourceId, outcome.ChunkId, outcome.Error)
			log.Printf("chunk %d of source %s failed: %s", outcome.OrdinalIndex, sourceId, outcome.Error)
			continue
		}
		controller.Repository.SaveResult(sourceId, *outcome.Result)
	}

	jobMutex.Lock()
	job.Completed = job.TotalChunks
	job.FailedChunks = failed
	job.Status = JobCompleted
	if failed == len(outcomes) {
		job.Status = JobFailed
		job.Error = "every chunk failed"
	}
	job.UpdatedAt = time.Now().UTC()
	if err := controller.Repository.SaveJob(job); err != nil {
		log.Printf("failed to update job for source %s: %v", sourceId, err)
	}
	jobMutex.Unlock()

	controller.hub.publish(sourceId, TrackProgress(job.TotalChunks, job.TotalChunks))

	return outcomes, nil
}

// ProcessFile runs the full pipeline for one file, transcribing in the
// background once segmentation has the job on record.
func (controller *Controller) ProcessFile(path string, originalFilename string) (SourceInfo, error) {
	info, _, err := controller.Segment(path, originalFilename)
	if err != nil {
		return SourceInfo{}, err
	}

	go func() {
		if _, err := controller.TranscribeAll(context.Background(), info.Id); err != nil {
			log.Printf("transcription of source %s failed: %v", info.Id, err)
		}
	}()

	return info, nil
}

// Cancel abandons the remaining work of a running job. Already collected
// outcomes are kept.
func (controller *Controller) Cancel(sourceId string) bool {
	controller.cancelMutex.Lock()
	defer controller.cancelMutex.Unlock()
	if cancel, ok := controller.cancels[sourceId]; ok {
		cancel()
		return true
	}
	return false
}

// DeleteSource removes a source's chunk payloads and records. A running job
// is cancelled first.
func (controller *Controller) DeleteSource(sourceId string) error {
	controller.Cancel(sourceId)
	if err := controller.ChunkStore.DeleteAllForSource(sourceId); err != nil {
		return err
	}
	return controller.Repository.DeleteSource(sourceId)
}

// Summary assembles the per-chunk view of a job, substituting validated
// edits for display without touching the stored results.
func (controller *Controller) Summary(sourceId string) (*JobSummary, error) {
	info, found, err := controller.Repository.GetSource(sourceId)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	job, _, err := controller.Repository.GetJob(sourceId)
	if err != nil {
		return nil, err
	}

	chunks, err := controller.Repository.GetChunks(sourceId)
	if err != nil {
		return nil, err
	}

	results, err := controller.Repository.GetResults(sourceId)
	if err != nil {
		return nil, err
	}

	failures, err := controller.Repository.GetFailures(sourceId)
	if err != nil {
		return nil, err
	}

	edits, err := controller.Repository.GetEdits(sourceId)
	if err != nil {
		return nil, err
	}

	views := make([]ChunkView, 0, len(chunks))
	for _, chunk := range chunks {
		view := ChunkView{Chunk: chunk}

		if result, ok := results[chunk.Id]; ok {
			r := result
			view.Result = &r
			view.EffectiveText = r.Text
		}
		if edit, ok := edits[chunk.Id]; ok {
			e := edit
			view.Edit = &e
			view.EffectiveText = e.EditedText
		}
		if reason, ok := failures[chunk.Id]; ok && view.Result == nil {
			view.Failed = true
			view.FailureReason = reason
		}

		views = append(views, view)
	}

	return &JobSummary{
		Source:   info,
		Job:      job,
		Progress: job.Progress(),
		Chunks:   views,
	}, nil
}

// registerCancel and unregisterCancel track the cancellation signal of the
// job currently running for a source.
func (controller *Controller) registerCancel(sourceId string, cancel context.CancelFunc) {
	controller.cancelMutex.Lock()
	defer controller.cancelMutex.Unlock()
	controller.cancels[sourceId] = cancel
}

func (controller *Controller) unregisterCancel(sourceId string) {
	controller.cancelMutex.Lock()
	defer controller.cancelMutex.Unlock()
	delete(controller.cancels, sourceId)
}

// progressHub fans job progress out to websocket subscribers.
type progressHub struct {
	mutex       sync.Mutex
	subscribers map[string]map[chan Progress]bool
}

func newProgressHub() *progressHub {
	return &progressHub{subscribers: make(map[string]map[chan Progress]bool)}
}

// subscribe returns a channel of progress snapshots for a source and a
// function releasing the subscription.
func (hub *progressHub) subscribe(sourceId string) (chan Progress, func()) {
	ch := make(chan Progress, 16)

	hub.mutex.Lock()
	if hub.subscribers[sourceId] == nil {
		hub.subscribers[sourceId] = make(map[chan Progress]bool)
	}
	hub.subscribers[sourceId][ch] = true
	hub.mutex.Unlock()

	return ch, func() {
		hub.mutex.Lock()
		delete(hub.subscribers[sourceId], ch)
		if len(hub.subscribers[sourceId]) == 0 {
			delete(hub.subscribers, sourceId)
		}
		hub.mutex.Unlock()
	}
}

func (hub *progressHub) publish(sourceId string, progress Progress) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	for ch := range hub.subscribers[sourceId] {
		select {
		case ch <- progress:
		default: // slow subscriber, drop the snapshot
		}
	}
}
