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
	"math"
	"testing"

	"github.com/google/uuid"
)

// makeSource builds a mono in-memory source from [-1, 1] samples.
func makeSource(samples []float64) *AudioSource {
	pcm := make([]int16, len(samples))
	for i, sample := range samples {
		pcm[i] = int16(sample * 32767)
	}
	return &AudioSource{
		Id:         uuid.New().String(),
		SampleRate: testSampleRate,
		Channels:   1,
		pcm:        pcm,
	}
}

func newTestSegmenter() *Segmenter {
	return &Segmenter{
		TargetDuration:   30,
		MinChunkDuration: 5,
		Silence: SilenceParams{
			MinSilenceDuration: 0.5,
			ThresholdDb:        -40,
		},
		detector: NewSilenceDetector(SilenceDetectorBasic),
	}
}

func checkChunkInvariants(t *testing.T, source *AudioSource, chunks []Chunk) {
	t.Helper()

	for i, chunk := range chunks {
		if chunk.OrdinalIndex != i {
			t.Errorf("chunk %d has ordinal index %d", i, chunk.OrdinalIndex)
		}
		if chunk.SourceId != source.Id {
			t.Errorf("chunk %d has source id %q, expected %q", i, chunk.SourceId, source.Id)
		}
		if chunk.EndOffset < chunk.StartOffset {
			t.Errorf("chunk %d ends before it starts: %+v", i, chunk)
		}
		if math.Abs(chunk.Duration-(chunk.EndOffset-chunk.StartOffset)) > 1e-9 {
			t.Errorf("chunk %d duration %f does not match offsets", i, chunk.Duration)
		}
		if i > 0 && chunk.StartOffset < chunks[i-1].EndOffset {
			t.Errorf("chunk %d overlaps previous: start %f < previous end %f", i, chunk.StartOffset, chunks[i-1].EndOffset)
		}
	}
}

func TestSegmentContinuousAudioFixedWindows(t *testing.T) {
	// 65 seconds of continuous tone, no pauses to split on.
	source := makeSource(appendTone(nil, 65, 0.5))

	chunks := newTestSegmenter().Segment(source)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	expected := []struct{ start, end float64 }{{0, 30}, {30, 60}, {60, 65}}
	for i, want := range expected {
		if math.Abs(chunks[i].StartOffset-want.start) > 1e-9 || math.Abs(chunks[i].EndOffset-want.end) > 1e-9 {
			t.Errorf("chunk %d = [%f, %f], expected [%f, %f]", i, chunks[i].StartOffset, chunks[i].EndOffset, want.start, want.end)
		}
	}
	checkChunkInvariants(t, source, chunks)

	total := 0.0
	for _, chunk := range chunks {
		total += chunk.Duration
	}
	if math.Abs(total-source.Duration()) > 1e-9 {
		t.Errorf("chunk durations sum to %f, source is %f", total, source.Duration())
	}
}

func TestSegmentGroupsNaturalSegments(t *testing.T) {
	// Three speech spans of 10s, 10s and 20s separated by 1-second pauses.
	// With a 30-second target the first two group together and the third
	// starts a new chunk.
	var samples []float64
	samples = appendTone(samples, 10, 0.5)
	samples = appendSilence(samples, 1)
	samples = appendTone(samples, 10, 0.5)
	samples = appendSilence(samples, 1)
	samples = appendTone(samples, 20, 0.5)
	source := makeSource(samples)

	chunks := newTestSegmenter().Segment(source)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if math.Abs(chunks[0].StartOffset) > 0.15 || math.Abs(chunks[0].EndOffset-21.1) > 0.15 {
		t.Errorf("chunk 0 = [%f, %f], expected ~[0, 21.1]", chunks[0].StartOffset, chunks[0].EndOffset)
	}
	if math.Abs(chunks[1].StartOffset-21.9) > 0.15 || math.Abs(chunks[1].EndOffset-42) > 0.15 {
		t.Errorf("chunk 1 = [%f, %f], expected ~[21.9, 42]", chunks[1].StartOffset, chunks[1].EndOffset)
	}
	checkChunkInvariants(t, source, chunks)
}

func TestSegmentDropsShortFragments(t *testing.T) {
	// A 2-second blip between long spans is below the 5-second minimum and
	// should not survive as its own segment.
	var samples []float64
	samples = appendTone(samples, 20, 0.5)
	samples = appendSilence(samples, 1)
	samples = appendTone(samples, 2, 0.5)
	samples = appendSilence(samples, 1)
	samples = appendTone(samples, 20, 0.5)
	source := makeSource(samples)

	chunks := newTestSegmenter().Segment(source)

	for _, chunk := range chunks {
		if chunk.Duration >= 1.5 && chunk.Duration <= 3.5 {
			t.Errorf("short fragment survived as chunk [%f, %f]", chunk.StartOffset, chunk.EndOffset)
		}
	}
	checkChunkInvariants(t, source, chunks)
}

func TestSegmentShortSourceSingleChunk(t *testing.T) {
	source := makeSource(appendTone(nil, 10, 0.5))

	chunks := newTestSegmenter().Segment(source)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].StartOffset != 0 || math.Abs(chunks[0].EndOffset-10) > 1e-9 {
		t.Errorf("chunk = [%f, %f], expected [0, 10]", chunks[0].StartOffset, chunks[0].EndOffset)
	}
}

func TestSegmentEmptySource(t *testing.T) {
	source := makeSource(nil)

	chunks := newTestSegmenter().Segment(source)

	if len(chunks) != 1 {
		t.Fatalf("expected a single empty chunk, got %d chunks", len(chunks))
	}
	if chunks[0].Duration != 0 {
		t.Errorf("empty source chunk has duration %f", chunks[0].Duration)
	}
}

func TestSegmentDeterministicBoundaries(t *testing.T) {
	var samples []float64
	samples = appendTone(samples, 12, 0.5)
	samples = appendSilence(samples, 1)
	samples = appendTone(samples, 25, 0.5)
	samples = appendSilence(samples, 1)
	samples = appendTone(samples, 8, 0.5)
	source := makeSource(samples)
	segmenter := newTestSegmenter()

	first := segmenter.Segment(source)
	second := segmenter.Segment(source)

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].StartOffset != second[i].StartOffset || first[i].EndOffset != second[i].EndOffset {
			t.Errorf("chunk %d boundaries differ: [%f, %f] vs [%f, %f]",
				i, first[i].StartOffset, first[i].EndOffset, second[i].StartOffset, second[i].EndOffset)
		}
	}
}

type panickingDetector struct{}

func (detector *panickingDetector) Detect(samples []float64, sampleRate int, params SilenceParams) []SilenceInterval {
	panic("analysis blew up")
}

func (detector *panickingDetector) GetName() string {
	return "Panicking"
}

func TestSegmentFallsBackWhenDetectorPanics(t *testing.T) {
	source := makeSource(appendTone(nil, 65, 0.5))
	segmenter := newTestSegmenter()
	segmenter.detector = &panickingDetector{}

	chunks := segmenter.Segment(source)

	if len(chunks) != 3 {
		t.Fatalf("expected fixed-window fallback with 3 chunks, got %d", len(chunks))
	}
	checkChunkInvariants(t, source, chunks)
}
