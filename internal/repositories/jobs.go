package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/subnurb/mediaplace/internal/models"
	"github.com/subnurb/mediaplace/internal/shared"
)

// JobRepository handles CRUD for sync jobs and their track records.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new JobRepository with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

const trackColumns = `id, job_id, position, source_track_id, title, artist, duration_ms, isrc,
	artwork_url, permalink_url, status, match_confidence, target_ref, target_title,
	user_feedback, rejected_refs, alternatives, error, pushed_to_playlist, created_at, updated_at`

// Create inserts a new job and any tracks it already carries, in one transaction.
//
// Generates the job ID and track IDs when empty and stamps timestamps.
func (r *JobRepository) Create(job *models.SyncJob) error {
	now := time.Now().UTC()

	if job.ID == "" {
		job.ID = shared.GenerateID()
	}
	if job.Status == "" {
		job.Status = models.JobPending
	}
	job.CreatedAt = now
	job.UpdatedAt = now

	for i := range job.Tracks {
		t := &job.Tracks[i]
		if t.ID == "" {
			t.ID = shared.GenerateID()
		}
		t.JobID = job.ID
		if t.Status == "" {
			t.Status = models.TrackPending
		}
		t.CreatedAt = now
		t.UpdatedAt = now
	}

	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO sync_jobs (id, user_id, source_platform, source_account, dest_platform, dest_account,
			source_playlist_id, source_playlist_name, status, error, target_playlist_ref, target_playlist_name,
			pushed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		job.ID,
		job.UserID,
		job.SourcePlatform,
		job.SourceAccount,
		job.DestPlatform,
		job.DestAccount,
		job.SourcePlaylistID,
		job.SourcePlaylistName,
		job.Status,
		job.Error,
		job.TargetPlaylistRef,
		job.TargetPlaylistName,
		job.PushedAt,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	for i := range job.Tracks {
		if err := insertTrack(tx, &job.Tracks[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit job: %w", err)
	}

	return nil
}

// Get retrieves a job and its tracks in source playlist order.
//
// Job row and track rows are read in the same transaction so callers always
// see a consistent snapshot even while analysis is writing.
func (r *JobRepository) Get(id string) (*models.SyncJob, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT id, user_id, source_platform, source_account, dest_platform, dest_account,
			source_playlist_id, source_playlist_name, status, error, target_playlist_ref, target_playlist_name,
			pushed_at, created_at, updated_at
		FROM sync_jobs
		WHERE id = ?
	`

	job, err := scanJob(tx.QueryRow(query, id))
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(
		"SELECT "+trackColumns+" FROM sync_tracks WHERE job_id = ? ORDER BY position ASC",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		job.Tracks = append(job.Tracks, *track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit read: %w", err)
	}

	return job, nil
}

// ListForUser retrieves a user's jobs newest first, without track records.
func (r *JobRepository) ListForUser(userID string) ([]*models.SyncJob, error) {
	query := `
		SELECT id, user_id, source_platform, source_account, dest_platform, dest_account,
			source_playlist_id, source_playlist_name, status, error, target_playlist_ref, target_playlist_name,
			pushed_at, created_at, updated_at
		FROM sync_jobs
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.SyncJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

// UpdateJob modifies a job's mutable fields. Track records are saved
// separately via [JobRepository.SaveTrack].
func (r *JobRepository) UpdateJob(job *models.SyncJob) error {
	job.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE sync_jobs
		SET source_playlist_name = ?, status = ?, error = ?, target_playlist_ref = ?,
			target_playlist_name = ?, pushed_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		job.SourcePlaylistName,
		job.Status,
		job.Error,
		job.TargetPlaylistRef,
		job.TargetPlaylistName,
		job.PushedAt,
		job.UpdatedAt,
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, job.ID)
	}

	return nil
}

// SaveTrack persists one track's match state. Called after every per-track
// mutation so partial analysis progress survives a crash.
func (r *JobRepository) SaveTrack(track *models.SyncTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	track.UpdatedAt = time.Now().UTC()

	rejected, alternatives, err := marshalTrackJSON(track)
	if err != nil {
		return err
	}

	query := `
		UPDATE sync_tracks
		SET status = ?, match_confidence = ?, target_ref = ?, target_title = ?,
			user_feedback = ?, rejected_refs = ?, alternatives = ?, error = ?,
			pushed_to_playlist = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		track.Status,
		track.MatchConfidence,
		track.TargetRef,
		track.TargetTitle,
		track.UserFeedback,
		rejected,
		alternatives,
		track.Error,
		track.PushedToPlaylist,
		track.UpdatedAt,
		track.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, track.ID)
	}

	return nil
}

// GetTrack retrieves a single track record by ID.
func (r *JobRepository) GetTrack(id string) (*models.SyncTrack, error) {
	row := r.db.QueryRow("SELECT "+trackColumns+" FROM sync_tracks WHERE id = ?", id)
	track, err := scanTrack(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}
	return track, err
}

// ReplaceTracks swaps a job's track records for a fresh source snapshot.
//
// Used when analysis (re)fetches the source playlist. Existing records and
// their review state are discarded, so callers only replace on a pending job
// or an explicit re-fetch.
func (r *JobRepository) ReplaceTracks(jobID string, tracks []models.SyncTrack) error {
	now := time.Now().UTC()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM sync_tracks WHERE job_id = ?", jobID); err != nil {
		return fmt.Errorf("failed to clear tracks: %w", err)
	}

	for i := range tracks {
		t := &tracks[i]
		if t.ID == "" {
			t.ID = shared.GenerateID()
		}
		t.JobID = jobID
		if t.Status == "" {
			t.Status = models.TrackPending
		}
		t.CreatedAt = now
		t.UpdatedAt = now

		if err := insertTrack(tx, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tracks: %w", err)
	}

	return nil
}

// TracksByStatus retrieves a job's tracks with the given status, in
// playlist order.
func (r *JobRepository) TracksByStatus(jobID string, status models.TrackStatus) ([]models.SyncTrack, error) {
	rows, err := r.db.Query(
		"SELECT "+trackColumns+" FROM sync_tracks WHERE job_id = ? AND status = ? ORDER BY position ASC",
		jobID, status,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.SyncTrack
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// FindConfirmedMatch looks up a previously user-confirmed match for the same
// source track and platform pair, from any job. Returns nil when none exists.
func (r *JobRepository) FindConfirmedMatch(sourcePlatform, sourceTrackID, destPlatform string) (*models.SyncTrack, error) {
	query := `
		SELECT t.id, t.job_id, t.position, t.source_track_id, t.title, t.artist, t.duration_ms, t.isrc,
			t.artwork_url, t.permalink_url, t.status, t.match_confidence, t.target_ref, t.target_title,
			t.user_feedback, t.rejected_refs, t.alternatives, t.error, t.pushed_to_playlist, t.created_at, t.updated_at
		FROM sync_tracks t
		JOIN sync_jobs j ON j.id = t.job_id
		WHERE t.source_track_id = ?
			AND j.source_platform = ?
			AND j.dest_platform = ?
			AND t.user_feedback = ?
			AND t.target_ref != ''
		ORDER BY t.updated_at DESC
		LIMIT 1
	`

	track, err := scanTrack(r.db.QueryRow(query, sourceTrackID, sourcePlatform, destPlatform, models.FeedbackConfirmed))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return track, nil
}

func insertTrack(tx *sql.Tx, track *models.SyncTrack) error {
	rejected, alternatives, err := marshalTrackJSON(track)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sync_tracks (` + trackColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		track.ID,
		track.JobID,
		track.Position,
		track.SourceTrackID,
		track.Title,
		track.Artist,
		track.DurationMS,
		track.ISRC,
		track.ArtworkURL,
		track.PermalinkURL,
		track.Status,
		track.MatchConfidence,
		track.TargetRef,
		track.TargetTitle,
		track.UserFeedback,
		rejected,
		alternatives,
		track.Error,
		track.PushedToPlaylist,
		track.CreatedAt,
		track.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}

	return nil
}

func marshalTrackJSON(track *models.SyncTrack) (rejected, alternatives string, err error) {
	refs := track.RejectedRefs
	if refs == nil {
		refs = []string{}
	}
	rejectedData, err := json.Marshal(refs)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal rejected refs: %w", err)
	}

	alts := track.Alternatives
	if alts == nil {
		alts = []models.Candidate{}
	}
	altData, err := json.Marshal(alts)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal alternatives: %w", err)
	}

	return string(rejectedData), string(altData), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.SyncJob, error) {
	var (
		job      models.SyncJob
		pushedAt sql.NullTime
	)

	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.SourcePlatform,
		&job.SourceAccount,
		&job.DestPlatform,
		&job.DestAccount,
		&job.SourcePlaylistID,
		&job.SourcePlaylistName,
		&job.Status,
		&job.Error,
		&job.TargetPlaylistRef,
		&job.TargetPlaylistName,
		&pushedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, shared.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	if pushedAt.Valid {
		job.PushedAt = &pushedAt.Time
	}

	return &job, nil
}

func scanTrack(row rowScanner) (*models.SyncTrack, error) {
	var (
		track        models.SyncTrack
		confidence   sql.NullFloat64
		rejected     string
		alternatives string
	)

	err := row.Scan(
		&track.ID,
		&track.JobID,
		&track.Position,
		&track.SourceTrackID,
		&track.Title,
		&track.Artist,
		&track.DurationMS,
		&track.ISRC,
		&track.ArtworkURL,
		&track.PermalinkURL,
		&track.Status,
		&confidence,
		&track.TargetRef,
		&track.TargetTitle,
		&track.UserFeedback,
		&rejected,
		&alternatives,
		&track.Error,
		&track.PushedToPlaylist,
		&track.CreatedAt,
		&track.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	if confidence.Valid {
		track.MatchConfidence = &confidence.Float64
	}
	if err := json.Unmarshal([]byte(rejected), &track.RejectedRefs); err != nil {
		return nil, fmt.Errorf("failed to decode rejected refs: %w", err)
	}
	if err := json.Unmarshal([]byte(alternatives), &track.Alternatives); err != nil {
		return nil, fmt.Errorf("failed to decode alternatives: %w", err)
	}
	if len(track.RejectedRefs) == 0 {
		track.RejectedRefs = nil
	}
	if len(track.Alternatives) == 0 {
		track.Alternatives = nil
	}

	return &track, nil
}
