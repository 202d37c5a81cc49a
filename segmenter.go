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
	"log"

	"github.com/google/uuid"
)

// Chunk is one contiguous, ordinally indexed span of a source destined for
// transcription. OrdinalIndex is 0-based and strictly increasing within a
// source, chunks never overlap, and EndOffset-StartOffset always equals
// Duration.
type Chunk struct {
	Id           string  `json:"id"`
	SourceId     string  `json:"sourceId"`
	OrdinalIndex int     `json:"ordinalIndex"`
	StartOffset  float64 `json:"startOffset"` // seconds
	EndOffset    float64 `json:"endOffset"`   // seconds
	Duration     float64 `json:"duration"`    // seconds
	PayloadRef   string  `json:"payloadRef,omitempty"`
}

// silencePad is how much trailing silence is retained on each side of a
// natural segment so speech does not get clipped mid-word (100ms, matching
// common keep-silence practice). The pad never exceeds half the adjacent
// silence interval, so padded segments cannot overlap.
const silencePad = 0.1

// Segmenter converts a decoded source into an ordered, gap-aware chunk
// sequence. Natural segments found between silences are greedily combined up
// to TargetDuration; continuous audio falls back to exact fixed windows.
type Segmenter struct {
	TargetDuration   float64 // seconds, upper bound for combined chunks
	MinChunkDuration float64 // seconds, natural segments shorter than this are dropped
	Silence          SilenceParams

	detector SilenceDetector
}

// NewSegmenter builds a segmenter from configuration.
func NewSegmenter(config *Config) *Segmenter {
	return &Segmenter{
		TargetDuration:   config.TargetDuration,
		MinChunkDuration: config.MinChunkDuration,
		Silence: SilenceParams{
			MinSilenceDuration: config.MinSilenceDuration,
			ThresholdDb:        config.SilenceThresholdDb,
		},
		detector: NewSilenceDetector(config.SilenceDetectorMode),
	}
}

// span is a natural speech segment between silences, in seconds.
type span struct {
	start float64
	end   float64
}

func (s span) duration() float64 {
	return s.end - s.start
}

// Segment splits the source into ordered chunks. It cannot fail: when
// silence analysis finds nothing usable or breaks internally, the segmenter
// degrades to fixed-window mode, which guarantees at least one chunk with
// exact, gap-free coverage of the whole source.
func (segmenter *Segmenter) Segment(source *AudioSource) []Chunk {
	spans := segmenter.naturalSegments(source)

	// Fewer than 2 usable natural segments means the audio is effectively
	// continuous, cut it into fixed windows instead.
	if len(spans) < 2 {
		return segmenter.fixedWindows(source)
	}

	return segmenter.combineSpans(source.Id, spans)
}

// naturalSegments runs silence detection and returns the padded speech spans
// that meet the minimum chunk duration. A detector panic is recovered and
// reported as an empty span list, which sends the caller into fallback mode.
func (segmenter *Segmenter) naturalSegments(source *AudioSource) (spans []span) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("silence analysis failed, falling back to fixed windows: %v", r)
			spans = nil
		}
	}()

	intervals := segmenter.detector.Detect(source.MonoSamples(), source.SampleRate, segmenter.Silence)
	if len(intervals) == 0 {
		return nil
	}

	duration := source.Duration()
	raw := make([]span, 0, len(intervals)+1)
	cursor := 0.0

	for _, interval := range intervals {
		if interval.Start > cursor {
			s := span{start: cursor, end: interval.Start}
			// Keep a little of the surrounding silence for continuity.
			s.end += min(silencePad, interval.Duration()/2)
			raw = append(raw, s)
		}
		cursor = interval.End
	}
	if cursor < duration {
		raw = append(raw, span{start: cursor, end: duration})
	}

	// Pad each span's leading edge into the silence before it.
	for i := 1; i < len(raw); i++ {
		gap := raw[i].start - raw[i-1].end
		if gap > 0 {
			raw[i].start -= min(silencePad, gap/2)
		}
	}

	// Discard fragments shorter than the minimum, unless nothing else is left.
	usable := make([]span, 0, len(raw))
	for _, s := range raw {
		if s.duration() >= segmenter.MinChunkDuration {
			usable = append(usable, s)
		}
	}
	if len(usable) == 0 && len(raw) == 1 {
		usable = raw
	}

	return usable
}

// combineSpans greedily accumulates consecutive natural segments into
// chunks. When appending the next segment would push the chunk past
// TargetDuration, the buffer is emitted and the segment starts a new one.
// The final buffer is emitted regardless of size.
func (segmenter *Segmenter) combineSpans(sourceId string, spans []span) []Chunk {
	chunks := []Chunk{}
	bufferStart := spans[0].start
	bufferEnd := spans[0].end

	for _, s := range spans[1:] {
		if s.end-bufferStart > segmenter.TargetDuration {
			chunks = append(chunks, newChunk(sourceId, len(chunks), bufferStart, bufferEnd))
			bufferStart = s.start
		}
		bufferEnd = s.end
	}
	chunks = append(chunks, newChunk(sourceId, len(chunks), bufferStart, bufferEnd))

	return chunks
}

// fixedWindows cuts the source into contiguous TargetDuration windows, the
// final one truncated to the remainder. Boundaries are computed in whole
// frames so the chunk durations sum to the source duration exactly.
func (segmenter *Segmenter) fixedWindows(source *AudioSource) []Chunk {
	totalFrames := source.FrameCount()
	windowFrames := int(segmenter.TargetDuration * float64(source.SampleRate))
	if windowFrames < 1 {
		windowFrames = totalFrames
	}

	chunks := []Chunk{}
	for startFrame := 0; startFrame < totalFrames; startFrame += windowFrames {
		endFrame := startFrame + windowFrames
		if endFrame > totalFrames {
			endFrame = totalFrames
		}
		start := float64(startFrame) / float64(source.SampleRate)
		end := float64(endFrame) / float64(source.SampleRate)
		chunks = append(chunks, newChunk(source.Id, len(chunks), start, end))
	}

	if len(chunks) == 0 {
		// Zero-length sources still produce a single empty chunk so every
		// job has at least one unit of work to report on.
		chunks = append(chunks, newChunk(source.Id, 0, 0, 0))
	}

	return chunks
}

func newChunk(sourceId string, ordinalIndex int, start float64, end float64) Chunk {
	return Chunk{
		Id:           uuid.New().String(),
		SourceId:     sourceId,
		OrdinalIndex: ordinalIndex,
		StartOffset:  start,
		EndOffset:    end,
		Duration:     end - start,
	}
}
