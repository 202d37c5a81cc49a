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
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
)

// Api is the thin HTTP layer over the controller. All pipeline work happens
// in the controller; handlers only translate requests and responses.
type Api struct {
	controller *Controller
	server     *http.Server
	upgrader   websocket.Upgrader
}

// NewApi builds the HTTP layer and its routes.
func NewApi(controller *Controller) *Api {
	api := &Api{
		controller: controller,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", api.health)
	mux.HandleFunc("POST /api/files", api.upload)
	mux.HandleFunc("GET /api/files", api.listFiles)
	mux.HandleFunc("GET /api/files/{id}/status", api.status)
	mux.HandleFunc("GET /api/files/{id}/summary", api.summary)
	mux.HandleFunc("GET /api/files/{id}/export", api.export)
	mux.HandleFunc("GET /api/files/{id}/progress/ws", api.progressSocket)
	mux.HandleFunc("POST /api/files/{id}/cancel", api.cancel)
	mux.HandleFunc("DELETE /api/files/{id}", api.deleteFile)
	mux.HandleFunc("POST /api/files/{id}/chunks/{chunkId}/validate", api.validateChunk)
	mux.HandleFunc("GET /api/files/{id}/chunks/{chunkId}/audio", api.chunkAudio)

	api.server = &http.Server{
		Addr:    controller.Config.Listen,
		Handler: mux,
	}

	return api
}

// Start serves until the listener is closed.
func (api *Api) Start() error {
	err := api.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the server down, letting in-flight requests finish.
func (api *Api) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	api.server.Shutdown(ctx)
}

func (api *Api) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"version":  Version,
		"provider": api.controller.Provider.GetName(),
	})
}

// upload receives a multipart audio file, segments it synchronously and
// kicks off transcription in the background.
func (api *Api) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart request: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing file field: %v", err))
		return
	}
	defer file.Close()

	if err := ValidateUploadFilename(header.Filename); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := ValidateUploadSize(header.Size); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	temp, err := os.CreateTemp("", "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer os.Remove(temp.Name())

	if _, err := io.Copy(temp, file); err != nil {
		temp.Close()
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	temp.Close()

	info, err := api.controller.ProcessFile(temp.Name(), SanitizeFilename(header.Filename))
	if err != nil {
		if _, ok := err.(*DecodeError); ok {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"fileId":   info.Id,
		"message":  fmt.Sprintf("segmented into %d chunks, transcription started", info.TotalChunks),
		"fileInfo": info,
	})
}

func (api *Api) listFiles(w http.ResponseWriter, r *http.Request) {
	sources, err := api.controller.Repository.ListSources()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sources)
}

func (api *Api) status(w http.ResponseWriter, r *http.Request) {
	job, found, err := api.controller.Repository.GetJob(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("file not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fileId":   job.SourceId,
		"status":   job.Status,
		"progress": job.Progress(),
	})
}

func (api *Api) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := api.controller.Summary(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if summary == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("file not found"))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (api *Api) export(w http.ResponseWriter, r *http.Request) {
	summary, err := api.controller.Summary(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if summary == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("file not found"))
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = ExportFormatText
	}
	includeTimestamps := r.URL.Query().Get("timestamps") != "false"

	payload, contentType, err := ExportTranscript(summary, format, includeTimestamps)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=transcript.%s", format))
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

// progressSocket streams progress snapshots over a websocket until the job
// completes or the client goes away.
func (api *Api) progressSocket(w http.ResponseWriter, r *http.Request) {
	sourceId := r.PathValue("id")

	if _, found, err := api.controller.Repository.GetJob(sourceId); err != nil || !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("file not found"))
		return
	}

	conn, err := api.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, release := api.controller.hub.subscribe(sourceId)
	defer release()

	// Send the current snapshot right away.
	if job, found, _ := api.controller.Repository.GetJob(sourceId); found {
		conn.WriteJSON(job.Progress())
		if job.Terminal() {
			return
		}
	}

	// Read pump: the client never sends data, but reading is the only way
	// to notice it going away.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// The hub drops updates on slow subscribers, so the terminal snapshot
	// is not guaranteed to arrive through the channel; the ticker re-checks
	// the job record to close the stream regardless.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-disconnected:
			return

		case progress := <-updates:
			if err := conn.WriteJSON(progress); err != nil {
				return
			}
			if progress.Percentage >= 100 {
				return
			}

		case <-ticker.C:
			job, found, err := api.controller.Repository.GetJob(sourceId)
			if err != nil || !found {
				return
			}
			if job.Terminal() {
				conn.WriteJSON(job.Progress())
				return
			}
		}
	}
}

func (api *Api) cancel(w http.ResponseWriter, r *http.Request) {
	if !api.controller.Cancel(r.PathValue("id")) {
		writeError(w, http.StatusConflict, fmt.Errorf("no running job for this file"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "cancellation requested"})
}

func (api *Api) deleteFile(w http.ResponseWriter, r *http.Request) {
	sourceId := r.PathValue("id")
	if _, found, err := api.controller.Repository.GetSource(sourceId); err != nil || !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("file not found"))
		return
	}
	if err := api.controller.DeleteSource(sourceId); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "file deleted"})
}

// validateChunk stores a user edit for one chunk's transcription. The raw
// result is left untouched, the edit supersedes it for display and export.
func (api *Api) validateChunk(w http.ResponseWriter, r *http.Request) {
	sourceId := r.PathValue("id")
	chunkId := r.PathValue("chunkId")

	var edit ValidationEdit
	if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %v", err))
		return
	}

	edit.ChunkId = chunkId
	edit.EditedAt = time.Now().UTC()

	results, err := api.controller.Repository.GetResults(sourceId)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	result, ok := results[chunkId]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no transcription for chunk %s", chunkId))
		return
	}
	edit.OriginalText = result.Text

	if err := ValidateEdit(&edit); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := api.controller.Repository.SaveEdit(sourceId, edit); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, edit)
}

// chunkAudio serves a chunk's persisted WAV payload back, so a reviewer can
// listen to the exact audio a transcription came from.
func (api *Api) chunkAudio(w http.ResponseWriter, r *http.Request) {
	sourceId := r.PathValue("id")
	chunkId := r.PathValue("chunkId")

	chunks, err := api.controller.Repository.GetChunks(sourceId)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	for _, chunk := range chunks {
		if chunk.Id != chunkId {
			continue
		}
		payload, err := api.controller.ChunkStore.Read(chunk.PayloadRef)
		if err != nil {
			writeError(w, http.StatusNotFound, fmt.Errorf("chunk payload not found"))
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=chunk_%03d.wav", chunk.OrdinalIndex))
		w.WriteHeader(http.StatusOK)
		w.Write(payload)
		return
	}

	writeError(w, http.StatusNotFound, fmt.Errorf("chunk not found"))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
