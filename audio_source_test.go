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
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestParseWAVRoundTrip(t *testing.T) {
	pcm := []int16{0, 1000, -1000, 32767, -32768, 42}
	encoded := encodeWAV(pcm, 16000, 2)

	decoded, sampleRate, channels, err := parseWAV(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sampleRate != 16000 || channels != 2 {
		t.Errorf("got %d Hz %d channels, expected 16000 Hz 2 channels", sampleRate, channels)
	}
	if len(decoded) != len(pcm) {
		t.Fatalf("got %d samples, expected %d", len(decoded), len(pcm))
	}
	for i := range pcm {
		if decoded[i] != pcm[i] {
			t.Errorf("sample %d = %d, expected %d", i, decoded[i], pcm[i])
		}
	}
}

func TestParseWAVRejectsGarbage(t *testing.T) {
	if _, _, _, err := parseWAV([]byte("not a wav file, not even close to one here")); err == nil {
		t.Error("expected error for non-WAV data")
	}
	if _, _, _, err := parseWAV([]byte("RIFF")); err == nil {
		t.Error("expected error for truncated data")
	}
}

func TestParseWAVEightBit(t *testing.T) {
	// Hand-build an 8-bit mono WAV: silence is 128, full positive is 255.
	header := encodeWAV(nil, 8000, 1)
	binary.LittleEndian.PutUint16(header[34:36], 8) // bits per sample
	data := append(header, 128, 255, 0)
	binary.LittleEndian.PutUint32(data[40:44], 3)

	pcm, _, _, err := parseWAV(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(pcm) != 3 {
		t.Fatalf("got %d samples, expected 3", len(pcm))
	}
	if pcm[0] != 0 {
		t.Errorf("8-bit midpoint decoded to %d, expected 0", pcm[0])
	}
	if pcm[1] <= 0 || pcm[2] >= 0 {
		t.Errorf("8-bit extremes decoded to %d and %d", pcm[1], pcm[2])
	}
}

func TestMonoSamplesMixesChannels(t *testing.T) {
	// Two frames of stereo: L fully positive with silent R, then both halfway.
	source := &AudioSource{
		Id:         uuid.New().String(),
		SampleRate: 8000,
		Channels:   2,
		pcm:        []int16{32767, 0, 16384, 16384},
	}

	samples := source.MonoSamples()
	if len(samples) != 2 {
		t.Fatalf("got %d samples, expected 2", len(samples))
	}
	if math.Abs(samples[0]-0.5) > 0.01 {
		t.Errorf("frame 0 mixed to %f, expected ~0.5", samples[0])
	}
	if math.Abs(samples[1]-0.5) > 0.01 {
		t.Errorf("frame 1 mixed to %f, expected ~0.5", samples[1])
	}
}

func TestSlicePCMBounds(t *testing.T) {
	source := makeSource(appendTone(nil, 10, 0.5))

	middle := source.SlicePCM(2, 5)
	if len(middle) != 3*testSampleRate {
		t.Errorf("3-second slice has %d samples, expected %d", len(middle), 3*testSampleRate)
	}

	clamped := source.SlicePCM(8, 20)
	if len(clamped) != 2*testSampleRate {
		t.Errorf("clamped slice has %d samples, expected %d", len(clamped), 2*testSampleRate)
	}

	if empty := source.SlicePCM(5, 5); empty != nil {
		t.Errorf("zero-width slice returned %d samples", len(empty))
	}
	if inverted := source.SlicePCM(6, 4); inverted != nil {
		t.Errorf("inverted slice returned %d samples", len(inverted))
	}
}

func TestEncodeChunkCoversSpan(t *testing.T) {
	source := makeSource(appendTone(nil, 10, 0.5))
	chunk := &Chunk{
		Id:          uuid.New().String(),
		SourceId:    source.Id,
		StartOffset: 1,
		EndOffset:   4,
		Duration:    3,
	}

	payload := source.EncodeChunk(chunk)
	pcm, sampleRate, channels, err := parseWAV(payload)
	if err != nil {
		t.Fatalf("encoded chunk does not parse: %v", err)
	}
	if sampleRate != source.SampleRate || channels != source.Channels {
		t.Errorf("chunk encoded at %d Hz %d ch, source is %d Hz %d ch", sampleRate, channels, source.SampleRate, source.Channels)
	}
	if len(pcm) != 3*testSampleRate {
		t.Errorf("chunk payload has %d samples, expected %d", len(pcm), 3*testSampleRate)
	}
}

func TestLoadAudioSourceFromWAVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speech.wav")
	pcm := make([]int16, 8000)
	if err := os.WriteFile(path, encodeWAV(pcm, 8000, 1), 0660); err != nil {
		t.Fatalf("write: %v", err)
	}

	source, err := LoadAudioSource(path, "speech.wav")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if source.OriginalFilename != "speech.wav" {
		t.Errorf("original filename = %q", source.OriginalFilename)
	}
	if source.SampleRate != 8000 || source.Channels != 1 {
		t.Errorf("got %d Hz %d channels", source.SampleRate, source.Channels)
	}
	if math.Abs(source.Duration()-1.0) > 1e-9 {
		t.Errorf("duration = %f, expected 1.0", source.Duration())
	}
	if source.Id == "" {
		t.Error("source was not assigned an id")
	}
}

func TestLoadAudioSourceRejectsTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0660); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := LoadAudioSource(path, "broken.wav")
	if err == nil {
		t.Fatal("expected error")
	}
	var decode *DecodeError
	if !errors.As(err, &decode) {
		t.Errorf("expected *DecodeError, got %T", err)
	}
	if decode.Filename != "broken.wav" {
		t.Errorf("error names file %q", decode.Filename)
	}
}
