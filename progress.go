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

import "fmt"

// Progress is a snapshot of how far a transcription job has come.
type Progress struct {
	Percentage float64 `json:"percentage"`
	Phase      string  `json:"phase"`
	Completed  int     `json:"completed"`
	Total      int     `json:"total"`
}

// TrackProgress computes completion percentage and phase label from counts.
// It is pure: equal counts always produce equal snapshots.
func TrackProgress(completed int, total int) Progress {
	progress := Progress{Completed: completed, Total: total}

	if total > 0 {
		progress.Percentage = float64(completed) / float64(total) * 100.0
	}

	switch {
	case progress.Percentage == 0:
		progress.Phase = "starting"
	case progress.Percentage < 100:
		progress.Phase = fmt.Sprintf("in progress (%d/%d)", completed, total)
	default:
		progress.Phase = "complete"
	}

	return progress
}
