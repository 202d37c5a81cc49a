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

const (
	defaultConfigFile = "scribeline.ini"
	defaultListen     = ":3000"

	defaultDbType = DbTypeMemory
	defaultDbHost = "localhost"
	defaultDbPort = uint(5432)

	defaultProvider          = ProviderMock
	defaultLanguage          = "auto"
	defaultCallTimeoutSec    = 30.0
	defaultMaxRetries        = 3
	defaultRetryBaseDelaySec = 1.0

	// defaultMaxConcurrent bounds in-flight transcription calls. Outbound
	// latency is the bottleneck, not CPU, so a small cap is enough.
	defaultMaxConcurrent = 3

	// defaultTargetDuration is the upper bound on a chunk's length when
	// grouping natural segments (seconds).
	defaultTargetDuration = 30.0

	// defaultMinChunkDuration drops stray fragments between silences that
	// are too short to transcribe meaningfully (seconds).
	defaultMinChunkDuration = 5.0

	defaultMinSilenceDuration  = 0.5
	defaultSilenceThresholdDb  = -40.0
	defaultSilenceDetectorMode = SilenceDetectorBasic

	// defaultWatchDelaySec is how long a dropped file has to sit unchanged
	// in the watch directory before it is ingested.
	defaultWatchDelaySec = 2.0
)
