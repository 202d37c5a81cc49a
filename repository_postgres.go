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
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresRepository stores records in PostgreSQL through the pgx driver.
// Selected with db_type=postgresql; the schema is created on startup.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository connects to the configured database and ensures the
// schema exists.
func NewPostgresRepository(config *Config) (*PostgresRepository, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		config.DbUsername, config.DbPassword, config.DbHost, config.DbPort, config.DbName)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	repository := &PostgresRepository{db: db}
	if err := repository.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return repository, nil
}

func (repository *PostgresRepository) migrate() error {
	statements := []string{
		`create table if not exists sources (
			id text primary key,
			original_filename text not null,
			title text not null default '',
			artist text not null default '',
			file_size bigint not null,
			sample_rate integer not null,
			channels integer not null,
			duration double precision not null,
			uploaded_at timestamptz not null,
			total_chunks integer not null default 0
		)`,
		`create table if not exists chunks (
			id text primary key,
			source_id text not null,
			ordinal_index integer not null,
			start_offset double precision not null,
			end_offset double precision not null,
			duration double precision not null,
			payload_ref text not null default ''
		)`,
		`create index if not exists chunks_source_idx on chunks (source_id, ordinal_index)`,
		`create table if not exists jobs (
			id text primary key,
			source_id text not null unique,
			status text not null,
			total_chunks integer not null,
			completed integer not null,
			failed_chunks integer not null,
			error text not null default '',
			created_at timestamptz not null,
			updated_at timestamptz not null
		)`,
		`create table if not exists results (
			chunk_id text primary key,
			source_id text not null,
			text text not null,
			confidence double precision not null,
			language text not null default '',
			latency double precision not null,
			metadata jsonb,
			created_at timestamptz not null
		)`,
		`create index if not exists results_source_idx on results (source_id)`,
		`create table if not exists failures (
			chunk_id text primary key,
			source_id text not null,
			reason text not null
		)`,
		`create index if not exists failures_source_idx on failures (source_id)`,
		`create table if not exists edits (
			chunk_id text primary key,
			source_id text not null,
			original_text text not null,
			edited_text text not null,
			user_confidence integer not null,
			notes text not null default '',
			edited_at timestamptz not null
		)`,
		`create index if not exists edits_source_idx on edits (source_id)`,
	}

	for _, statement := range statements {
		if _, err := repository.db.Exec(statement); err != nil {
			return fmt.Errorf("schema migration failed: %v", err)
		}
	}

	return nil
}

func (repository *PostgresRepository) SaveSource(info SourceInfo) error {
	_, err := repository.db.Exec(
		`insert into sources (id, original_filename, title, artist, file_size, sample_rate, channels, duration, uploaded_at, total_chunks)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		on conflict (id) do update set total_chunks = excluded.total_chunks`,
		info.Id, info.OriginalFilename, info.Title, info.Artist, info.FileSize,
		info.SampleRate, info.Channels, info.Duration, info.UploadedAt, info.TotalChunks,
	)
	return err
}

func (repository *PostgresRepository) GetSource(id string) (SourceInfo, bool, error) {
	var info SourceInfo
	err := repository.db.QueryRow(
		`select id, original_filename, title, artist, file_size, sample_rate, channels, duration, uploaded_at, total_chunks
		from sources where id = $1`, id,
	).Scan(&info.Id, &info.OriginalFilename, &info.Title, &info.Artist, &info.FileSize,
		&info.SampleRate, &info.Channels, &info.Duration, &info.UploadedAt, &info.TotalChunks)
	if err == sql.ErrNoRows {
		return SourceInfo{}, false, nil
	}
	if err != nil {
		return SourceInfo{}, false, err
	}
	return info, true, nil
}

func (repository *PostgresRepository) ListSources() ([]SourceInfo, error) {
	rows, err := repository.db.Query(
		`select id, original_filename, title, artist, file_size, sample_rate, channels, duration, uploaded_at, total_chunks
		from sources order by uploaded_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sources := []SourceInfo{}
	for rows.Next() {
		var info SourceInfo
		if err := rows.Scan(&info.Id, &info.OriginalFilename, &info.Title, &info.Artist, &info.FileSize,
			&info.SampleRate, &info.Channels, &info.Duration, &info.UploadedAt, &info.TotalChunks); err != nil {
			return nil, err
		}
		sources = append(sources, info)
	}
	return sources, rows.Err()
}

func (repository *PostgresRepository) DeleteSource(id string) error {
	for _, statement := range []string{
		`delete from edits where source_id = $1`,
		`delete from failures where source_id = $1`,
		`delete from results where source_id = $1`,
		`delete from jobs where source_id = $1`,
		`delete from chunks where source_id = $1`,
		`delete from sources where id = $1`,
	} {
		if _, err := repository.db.Exec(statement, id); err != nil {
			return err
		}
	}
	return nil
}

func (repository *PostgresRepository) SaveChunks(sourceId string, chunks []Chunk) error {
	tx, err := repository.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`delete from chunks where source_id = $1`, sourceId); err != nil {
		return err
	}

	for _, chunk := range chunks {
		if _, err := tx.Exec(
			`insert into chunks (id, source_id, ordinal_index, start_offset, end_offset, duration, payload_ref)
			values ($1, $2, $3, $4, $5, $6, $7)`,
			chunk.Id, sourceId, chunk.OrdinalIndex, chunk.StartOffset, chunk.EndOffset, chunk.Duration, chunk.PayloadRef,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (repository *PostgresRepository) GetChunks(sourceId string) ([]Chunk, error) {
	rows, err := repository.db.Query(
		`select id, source_id, ordinal_index, start_offset, end_offset, duration, payload_ref
		from chunks where source_id = $1 order by ordinal_index`, sourceId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chunks := []Chunk{}
	for rows.Next() {
		var chunk Chunk
		if err := rows.Scan(&chunk.Id, &chunk.SourceId, &chunk.OrdinalIndex,
			&chunk.StartOffset, &chunk.EndOffset, &chunk.Duration, &chunk.PayloadRef); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (repository *PostgresRepository) SaveJob(job Job) error {
	_, err := repository.db.Exec(
		`insert into jobs (id, source_id, status, total_chunks, completed, failed_chunks, error, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		on conflict (source_id) do update set
			status = excluded.status,
			total_chunks = excluded.total_chunks,
			completed = excluded.completed,
			failed_chunks = excluded.failed_chunks,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		job.Id, job.SourceId, string(job.Status), job.TotalChunks, job.Completed,
		job.FailedChunks, job.Error, job.CreatedAt, job.UpdatedAt,
	)
	return err
}

func (repository *PostgresRepository) GetJob(sourceId string) (Job, bool, error) {
	var job Job
	var status string
	err := repository.db.QueryRow(
		`select id, source_id, status, total_chunks, completed, failed_chunks, error, created_at, updated_at
		from jobs where source_id = $1`, sourceId,
	).Scan(&job.Id, &job.SourceId, &status, &job.TotalChunks, &job.Completed,
		&job.FailedChunks, &job.Error, &job.CreatedAt, &job.UpdatedAt)
	if err == sql.ErrNoRows {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, err
	}
	job.Status = JobStatus(status)
	return job, true, nil
}

func (repository *PostgresRepository) SaveResult(sourceId string, result TranscriptionResult) error {
	metadata, err := json.Marshal(result.Metadata)
	if err != nil {
		return err
	}
	_, err = repository.db.Exec(
		`insert into results (chunk_id, source_id, text, confidence, language, latency, metadata, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		on conflict (chunk_id) do update set
			text = excluded.text,
			confidence = excluded.confidence,
			language = excluded.language,
			latency = excluded.latency,
			metadata = excluded.metadata,
			created_at = excluded.created_at`,
		result.ChunkId, sourceId, result.Text, result.Confidence, result.Language,
		result.Latency, metadata, result.CreatedAt,
	)
	return err
}

func (repository *PostgresRepository) GetResults(sourceId string) (map[string]TranscriptionResult, error) {
	rows, err := repository.db.Query(
		`select chunk_id, text, confidence, language, latency, metadata, created_at
		from results where source_id = $1`, sourceId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make(map[string]TranscriptionResult)
	for rows.Next() {
		var result TranscriptionResult
		var metadata []byte
		if err := rows.Scan(&result.ChunkId, &result.Text, &result.Confidence,
			&result.Language, &result.Latency, &metadata, &result.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			json.Unmarshal(metadata, &result.Metadata)
		}
		results[result.ChunkId] = result
	}
	return results, rows.Err()
}

func (repository *PostgresRepository) SaveFailure(sourceId string, chunkId string, reason string) error {
	_, err := repository.db.Exec(
		`insert into failures (chunk_id, source_id, reason) values ($1, $2, $3)
		on conflict (chunk_id) do update set reason = excluded.reason`,
		chunkId, sourceId, reason,
	)
	return err
}

func (repository *PostgresRepository) GetFailures(sourceId string) (map[string]string, error) {
	rows, err := repository.db.Query(`select chunk_id, reason from failures where source_id = $1`, sourceId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	failures := make(map[string]string)
	for rows.Next() {
		var chunkId, reason string
		if err := rows.Scan(&chunkId, &reason); err != nil {
			return nil, err
		}
		failures[chunkId] = reason
	}
	return failures, rows.Err()
}

func (repository *PostgresRepository) SaveEdit(sourceId string, edit ValidationEdit) error {
	_, err := repository.db.Exec(
		`insert into edits (chunk_id, source_id, original_text, edited_text, user_confidence, notes, edited_at)
		values ($1, $2, $3, $4, $5, $6, $7)
		on conflict (chunk_id) do update set
			original_text = excluded.original_text,
			edited_text = excluded.edited_text,
			user_confidence = excluded.user_confidence,
			notes = excluded.notes,
			edited_at = excluded.edited_at`,
		edit.ChunkId, sourceId, edit.OriginalText, edit.EditedText, edit.UserConfidence, edit.Notes, edit.EditedAt,
	)
	return err
}

func (repository *PostgresRepository) GetEdits(sourceId string) (map[string]ValidationEdit, error) {
	rows, err := repository.db.Query(
		`select chunk_id, original_text, edited_text, user_confidence, notes, edited_at
		from edits where source_id = $1`, sourceId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	edits := make(map[string]ValidationEdit)
	for rows.Next() {
		var edit ValidationEdit
		if err := rows.Scan(&edit.ChunkId, &edit.OriginalText, &edit.EditedText,
			&edit.UserConfidence, &edit.Notes, &edit.EditedAt); err != nil {
			return nil, err
		}
		edits[edit.ChunkId] = edit
	}
	return edits, rows.Err()
}

func (repository *PostgresRepository) Close() error {
	return repository.db.Close()
}
