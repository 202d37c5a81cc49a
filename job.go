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

import "time"

// JobStatus is the lifecycle stage of one source's transcription job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job aggregates the chunk set of one source with its derived completion
// counts. It is created when segmentation completes and is terminal once
// every chunk has an outcome or an unrecoverable job-level failure occurred.
// A job with some failed chunks still completes; the summary distinguishes
// per-chunk success and failure so partial results stay actionable.
type Job struct {
	Id           string    `json:"id"`
	SourceId     string    `json:"sourceId"`
	Status       JobStatus `json:"status"`
	TotalChunks  int       `json:"totalChunks"`
	Completed    int       `json:"completed"`
	FailedChunks int       `json:"failedChunks"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Terminal reports whether the job reached a final state.
func (job *Job) Terminal() bool {
	return job.Status == JobCompleted || job.Status == JobFailed
}

// Progress returns the job's completion snapshot.
func (job *Job) Progress() Progress {
	return TrackProgress(job.Completed, job.TotalChunks)
}

// ChunkView pairs a chunk with whatever is known about its transcription,
// for the summary endpoint. EffectiveText is the validated edit when one
// exists, otherwise the raw transcription.
type ChunkView struct {
	Chunk         Chunk                `json:"chunk"`
	Result        *TranscriptionResult `json:"result,omitempty"`
	Edit          *ValidationEdit      `json:"edit,omitempty"`
	EffectiveText string               `json:"effectiveText"`
	Failed        bool                 `json:"failed"`
	FailureReason string               `json:"failureReason,omitempty"`
}

// JobSummary is the consumer-facing view of a whole job.
type JobSummary struct {
	Source   SourceInfo  `json:"source"`
	Job      Job         `json:"job"`
	Progress Progress    `json:"progress"`
	Chunks   []ChunkView `json:"chunks"`
}
