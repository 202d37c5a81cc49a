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
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/dhowden/tag"
	"github.com/google/uuid"
)

// AudioSource holds one decoded recording. Immutable once loaded; every
// derived value (duration, mono mix, chunk payloads) is computed from the
// PCM frames so nothing is stored redundantly.
type AudioSource struct {
	Id               string
	OriginalFilename string
	Title            string
	Artist           string
	FileSize         int64
	SampleRate       int
	Channels         int

	pcm []int16 // interleaved frames
}

// SourceInfo is the serializable view of an AudioSource kept in the
// repository and returned by the API. The PCM itself stays out of it.
type SourceInfo struct {
	Id               string    `json:"id"`
	OriginalFilename string    `json:"originalFilename"`
	Title            string    `json:"title,omitempty"`
	Artist           string    `json:"artist,omitempty"`
	FileSize         int64     `json:"fileSize"`
	SampleRate       int       `json:"sampleRate"`
	Channels         int       `json:"channels"`
	Duration         float64   `json:"duration"`
	UploadedAt       time.Time `json:"uploadedAt"`
	TotalChunks      int       `json:"totalChunks"`
}

// LoadAudioSource reads an audio file of arbitrary container format and
// decodes it to linear PCM. WAV input is parsed directly, anything else goes
// through ffmpeg first. Failures come back as *DecodeError.
func LoadAudioSource(path string, originalFilename string) (*AudioSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DecodeError{Filename: originalFilename, Err: err}
	}

	if len(data) < 44 {
		return nil, &DecodeError{Filename: originalFilename, Err: fmt.Errorf("file too short (%d bytes)", len(data))}
	}

	source := &AudioSource{
		Id:               uuid.New().String(),
		OriginalFilename: originalFilename,
		FileSize:         int64(len(data)),
	}

	// Container metadata is best effort, tag errors are ignored.
	if meta, err := tag.ReadFrom(bytes.NewReader(data)); err == nil {
		source.Title = meta.Title()
		source.Artist = meta.Artist()
	}

	wavData := data
	if !isWAV(data) {
		if wavData, err = convertToWAV(data); err != nil {
			return nil, &DecodeError{Filename: originalFilename, Err: err}
		}
	}

	pcm, sampleRate, channels, err := parseWAV(wavData)
	if err != nil {
		return nil, &DecodeError{Filename: originalFilename, Err: err}
	}
	if len(pcm) == 0 {
		return nil, &DecodeError{Filename: originalFilename, Err: fmt.Errorf("no audio frames")}
	}

	source.pcm = pcm
	source.SampleRate = sampleRate
	source.Channels = channels

	return source, nil
}

// Duration returns the source length in seconds, derived from the frames.
func (source *AudioSource) Duration() float64 {
	return float64(source.FrameCount()) / float64(source.SampleRate)
}

// FrameCount returns the number of sample frames (one frame spans all channels).
func (source *AudioSource) FrameCount() int {
	if source.Channels == 0 {
		return 0
	}
	return len(source.pcm) / source.Channels
}

// MonoSamples mixes the source down to a single channel of float samples in
// [-1, 1] for energy analysis. The stored PCM is left untouched.
func (source *AudioSource) MonoSamples() []float64 {
	frames := source.FrameCount()
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < source.Channels; c++ {
			sum += float64(source.pcm[i*source.Channels+c])
		}
		samples[i] = sum / float64(source.Channels) / 32768.0
	}
	return samples
}

// SlicePCM returns the interleaved frames between two offsets in seconds.
func (source *AudioSource) SlicePCM(startOffset, endOffset float64) []int16 {
	startFrame := int(startOffset * float64(source.SampleRate))
	endFrame := int(endOffset * float64(source.SampleRate))
	if startFrame < 0 {
		startFrame = 0
	}
	if endFrame > source.FrameCount() {
		endFrame = source.FrameCount()
	}
	if endFrame <= startFrame {
		return nil
	}
	return source.pcm[startFrame*source.Channels : endFrame*source.Channels]
}

// EncodeChunk renders the span of a chunk as an uncompressed WAV payload at
// the source's original sample rate and channel count.
func (source *AudioSource) EncodeChunk(chunk *Chunk) []byte {
	return encodeWAV(source.SlicePCM(chunk.StartOffset, chunk.EndOffset), source.SampleRate, source.Channels)
}

// Info returns the repository view of this source.
func (source *AudioSource) Info() SourceInfo {
	return SourceInfo{
		Id:               source.Id,
		OriginalFilename: source.OriginalFilename,
		Title:            source.Title,
		Artist:           source.Artist,
		FileSize:         source.FileSize,
		SampleRate:       source.SampleRate,
		Channels:         source.Channels,
		Duration:         source.Duration(),
		UploadedAt:       time.Now().UTC(),
	}
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// parseWAV extracts interleaved 16-bit PCM frames, the sample rate and the
// channel count from a WAV container. 8-bit input is widened to 16-bit.
func parseWAV(wavData []byte) ([]int16, int, int, error) {
	if len(wavData) < 44 {
		return nil, 0, 0, fmt.Errorf("WAV file too short")
	}

	if !isWAV(wavData) {
		return nil, 0, 0, fmt.Errorf("not a valid WAV file")
	}

	channels := int(binary.LittleEndian.Uint16(wavData[22:24]))
	sampleRate := int(binary.LittleEndian.Uint32(wavData[24:28]))
	bitsPerSample := int(binary.LittleEndian.Uint16(wavData[34:36]))

	if channels < 1 || sampleRate < 1 {
		return nil, 0, 0, fmt.Errorf("invalid WAV format: %d channels at %d Hz", channels, sampleRate)
	}

	// Find data chunk
	dataOffset := 44
	for i := 12; i < len(wavData)-8; i++ {
		if string(wavData[i:i+4]) == "data" {
			dataOffset = i + 8
			break
		}
	}

	audioData := wavData[dataOffset:]

	var pcm []int16
	switch bitsPerSample {
	case 16:
		sampleCount := len(audioData) / 2
		sampleCount -= sampleCount % channels
		pcm = make([]int16, sampleCount)
		for i := 0; i < sampleCount; i++ {
			pcm[i] = int16(binary.LittleEndian.Uint16(audioData[i*2 : i*2+2]))
		}
	case 8:
		sampleCount := len(audioData)
		sampleCount -= sampleCount % channels
		pcm = make([]int16, sampleCount)
		for i := 0; i < sampleCount; i++ {
			pcm[i] = int16((int(audioData[i]) - 128) << 8)
		}
	default:
		return nil, 0, 0, fmt.Errorf("unsupported bits per sample: %d", bitsPerSample)
	}

	return pcm, sampleRate, channels, nil
}

// encodeWAV writes a minimal 16-bit PCM WAV container.
func encodeWAV(pcm []int16, sampleRate int, channels int) []byte {
	dataSize := len(pcm) * 2
	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*channels*2)) // byte rate
	binary.Write(buf, binary.LittleEndian, uint16(channels*2))            // block align
	binary.Write(buf, binary.LittleEndian, uint16(16))                    // bits per sample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	binary.Write(buf, binary.LittleEndian, pcm)

	return buf.Bytes()
}

// convertToWAV converts arbitrary container audio to WAV using ffmpeg,
// keeping the original sample rate and channel count.
func convertToWAV(audio []byte) ([]byte, error) {
	ffArgs := []string{
		"-y", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "wav",
		"pipe:1",
	}

	cmd := exec.Command("ffmpeg", ffArgs...)
	cmd.Stdin = bytes.NewReader(audio)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg conversion failed: %v, stderr: %s", err, stderr.String())
	}

	return stdout.Bytes(), nil
}
