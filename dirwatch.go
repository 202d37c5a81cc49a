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
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Dirwatch ingests audio files dropped into a watched directory. Every write
// event (re)arms a per-file settle timer; the file is only processed once it
// sat unchanged for the configured delay, so half-copied files never enter
// the pipeline.
type Dirwatch struct {
	controller  *Controller
	watcher     *fsnotify.Watcher
	delay       time.Duration
	deleteAfter bool
	done        chan struct{}

	pending map[string]*time.Timer
	mutex   sync.Mutex
}

// NewDirwatch prepares a watcher over the configured directory.
func NewDirwatch(controller *Controller) (*Dirwatch, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Dirwatch{
		controller:  controller,
		watcher:     watcher,
		delay:       time.Duration(controller.Config.WatchDelaySec * float64(time.Second)),
		deleteAfter: controller.Config.WatchDeleteAfter,
		done:        make(chan struct{}),
		pending:     make(map[string]*time.Timer),
	}, nil
}

// Start begins watching and ingesting.
func (dirwatch *Dirwatch) Start() error {
	dir := dirwatch.controller.Config.WatchDir

	if err := os.MkdirAll(dir, 0770); err != nil {
		return err
	}
	if err := dirwatch.watcher.Add(dir); err != nil {
		return err
	}

	log.Printf("watching %s for audio files", dir)

	go dirwatch.loop()

	return nil
}

// Stop cancels all pending timers and closes the watcher.
func (dirwatch *Dirwatch) Stop() {
	close(dirwatch.done)
	dirwatch.watcher.Close()

	dirwatch.mutex.Lock()
	defer dirwatch.mutex.Unlock()
	for path, pending := range dirwatch.pending {
		pending.Stop()
		delete(dirwatch.pending, path)
	}
}

func (dirwatch *Dirwatch) loop() {
	for {
		select {
		case <-dirwatch.done:
			return

		case event, ok := <-dirwatch.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if ValidateUploadFilename(filepath.Base(event.Name)) != nil {
				continue
			}
			dirwatch.arm(event.Name)

		case err, ok := <-dirwatch.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("dirwatch error: %v", err)
		}
	}
}

// arm schedules ingestion of a file after the settle delay, resetting the
// timer when the file is still being written to.
func (dirwatch *Dirwatch) arm(path string) {
	dirwatch.mutex.Lock()
	defer dirwatch.mutex.Unlock()

	if timer, exists := dirwatch.pending[path]; exists {
		timer.Reset(dirwatch.delay)
		return
	}

	dirwatch.pending[path] = time.AfterFunc(dirwatch.delay, func() {
		dirwatch.mutex.Lock()
		_, exists := dirwatch.pending[path]
		delete(dirwatch.pending, path)
		dirwatch.mutex.Unlock()

		if exists {
			dirwatch.ingest(path)
		}
	})
}

func (dirwatch *Dirwatch) ingest(path string) {
	info, err := dirwatch.controller.ProcessFile(path, SanitizeFilename(filepath.Base(path)))
	if err != nil {
		log.Printf("failed to ingest %s: %v", path, err)
		return
	}

	log.Printf("ingested %s as source %s (%d chunks)", filepath.Base(path), info.Id, info.TotalChunks)

	if dirwatch.deleteAfter {
		if err := os.Remove(path); err != nil {
			log.Printf("failed to remove %s after ingest: %v", path, err)
		}
	}
}
