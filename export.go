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
	"encoding/json"
	"fmt"
	"strings"
)

const (
	ExportFormatText = "txt"
	ExportFormatJSON = "json"
	ExportFormatSRT  = "srt"
)

// ExportTranscript renders a job summary in the requested format. Validated
// edits already took precedence when the summary was assembled, so the
// effective text per chunk is used as-is. Failed chunks are marked inline
// rather than silently skipped, keeping partial jobs actionable.
func ExportTranscript(summary *JobSummary, format string, includeTimestamps bool) ([]byte, string, error) {
	switch format {
	case ExportFormatText:
		return exportText(summary, includeTimestamps), "text/plain; charset=utf-8", nil
	case ExportFormatJSON:
		payload, err := json.MarshalIndent(summary, "", "  ")
		return payload, "application/json", err
	case ExportFormatSRT:
		return exportSRT(summary), "application/x-subrip", nil
	default:
		return nil, "", fmt.Errorf("unsupported export format %q (one of txt, json, srt)", format)
	}
}

func exportText(summary *JobSummary, includeTimestamps bool) []byte {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Transcript of %s\n\n", summary.Source.OriginalFilename))

	for _, view := range summary.Chunks {
		if includeTimestamps {
			builder.WriteString(fmt.Sprintf("[%s - %s] ", formatOffset(view.Chunk.StartOffset), formatOffset(view.Chunk.EndOffset)))
		}
		if view.Failed {
			builder.WriteString(fmt.Sprintf("(transcription failed: %s)\n\n", view.FailureReason))
			continue
		}
		builder.WriteString(view.EffectiveText)
		builder.WriteString("\n\n")
	}

	return []byte(builder.String())
}

func exportSRT(summary *JobSummary) []byte {
	var builder strings.Builder

	sequence := 0
	for _, view := range summary.Chunks {
		if view.Failed || view.EffectiveText == "" {
			continue
		}
		sequence++
		builder.WriteString(fmt.Sprintf("%d\n", sequence))
		builder.WriteString(fmt.Sprintf("%s --> %s\n", formatSRTOffset(view.Chunk.StartOffset), formatSRTOffset(view.Chunk.EndOffset)))
		builder.WriteString(view.EffectiveText)
		builder.WriteString("\n\n")
	}

	return []byte(builder.String())
}

// formatOffset renders seconds as mm:ss.mmm for the text export.
func formatOffset(seconds float64) string {
	minutes := int(seconds) / 60
	return fmt.Sprintf("%02d:%06.3f", minutes, seconds-float64(minutes*60))
}

// formatSRTOffset renders seconds as HH:MM:SS,mmm per the SubRip format.
func formatSRTOffset(seconds float64) string {
	millis := int(seconds*1000 + 0.5)
	hours := millis / 3600000
	millis -= hours * 3600000
	minutes := millis / 60000
	millis -= minutes * 60000
	secs := millis / 1000
	millis -= secs * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}
