// package models defines the data model for the playlist sync service
package models

import (
	"fmt"
	"time"
)

// JobStatus enumerates the sync job state machine.
//
// Transitions move forward only: pending → analyzing → ready → syncing → done,
// with failed reachable from analyzing or syncing. A failed job is retryable:
// analysis re-enters analyzing, push re-enters syncing.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobAnalyzing JobStatus = "analyzing"
	JobReady     JobStatus = "ready"
	JobSyncing   JobStatus = "syncing"
	JobDone      JobStatus = "done"
	JobFailed    JobStatus = "failed"
)

// TrackStatus enumerates per-track match states.
type TrackStatus string

const (
	TrackPending   TrackStatus = "pending"
	TrackMatched   TrackStatus = "matched"
	TrackUncertain TrackStatus = "uncertain"
	TrackNotFound  TrackStatus = "not_found"
	TrackUploading TrackStatus = "uploading"
	TrackUploaded  TrackStatus = "uploaded"
	TrackSkipped   TrackStatus = "skipped"
	TrackFailed    TrackStatus = "failed"
)

// Feedback is the explicit user override flag, independent of track status.
type Feedback string

const (
	FeedbackNone      Feedback = ""
	FeedbackConfirmed Feedback = "confirmed"
)

// Candidate is a destination-platform track returned by search, scored
// against a source track.
type Candidate struct {
	Ref         string   `json:"ref"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	DurationSec int      `json:"duration_sec,omitempty"`
	URL         string   `json:"url,omitempty"`
	ISRC        string   `json:"isrc,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
}

// SyncJob is a cross-platform playlist sync job. It owns its track
// collection exclusively; tracks are never shared across jobs.
type SyncJob struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	SourcePlatform     string     `json:"source_platform"`
	SourceAccount      string     `json:"source_account"`
	DestPlatform       string     `json:"dest_platform"`
	DestAccount        string     `json:"dest_account"`
	SourcePlaylistID   string     `json:"source_playlist_id"`
	SourcePlaylistName string     `json:"source_playlist_name"`
	Status             JobStatus  `json:"status"`
	Error              string     `json:"error,omitempty"`
	TargetPlaylistRef  string     `json:"target_playlist_ref,omitempty"`
	TargetPlaylistName string     `json:"target_playlist_name,omitempty"`
	PushedAt           *time.Time `json:"pushed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	// Tracks in source playlist order, stable across polls.
	Tracks []SyncTrack `json:"tracks,omitempty"`
}

// SyncTrack is a single source track within a job and its match state.
type SyncTrack struct {
	ID            string      `json:"id"`
	JobID         string      `json:"job_id"`
	Position      int         `json:"position"`
	SourceTrackID string      `json:"source_track_id"`
	Title         string      `json:"title"`
	Artist        string      `json:"artist"`
	DurationMS    int         `json:"duration_ms,omitempty"`
	ISRC          string      `json:"isrc,omitempty"`
	ArtworkURL    string      `json:"artwork_url,omitempty"`
	PermalinkURL  string      `json:"permalink_url,omitempty"`
	Status        TrackStatus `json:"status"`

	MatchConfidence *float64 `json:"match_confidence,omitempty"`
	TargetRef       string   `json:"target_ref,omitempty"`
	TargetTitle     string   `json:"target_title,omitempty"`
	UserFeedback    Feedback `json:"user_feedback,omitempty"`

	// Refs the user has already rejected; a re-search never resurfaces these.
	RejectedRefs []string    `json:"rejected_refs,omitempty"`
	Alternatives []Candidate `json:"alternatives,omitempty"`

	Error            string    `json:"error,omitempty"`
	PushedToPlaylist bool      `json:"pushed_to_playlist"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

var validJobStatuses = map[JobStatus]bool{
	JobPending: true, JobAnalyzing: true, JobReady: true,
	JobSyncing: true, JobDone: true, JobFailed: true,
}

var validTrackStatuses = map[TrackStatus]bool{
	TrackPending: true, TrackMatched: true, TrackUncertain: true,
	TrackNotFound: true, TrackUploading: true, TrackUploaded: true,
	TrackSkipped: true, TrackFailed: true,
}

// Validate checks the job's data against its invariants.
func (j *SyncJob) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job id is required")
	}
	if j.UserID == "" {
		return fmt.Errorf("job user id is required")
	}
	if j.SourcePlatform == "" || j.DestPlatform == "" {
		return fmt.Errorf("source and destination platforms are required")
	}
	if j.SourcePlaylistID == "" {
		return fmt.Errorf("source playlist id is required")
	}
	if !validJobStatuses[j.Status] {
		return fmt.Errorf("invalid job status %q", j.Status)
	}
	for i := range j.Tracks {
		if err := j.Tracks[i].Validate(); err != nil {
			return fmt.Errorf("track %d: %w", i, err)
		}
	}
	return nil
}

// Validate checks the track's data against its invariants, including that a
// confirmed track always carries a target ref.
func (t *SyncTrack) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("track id is required")
	}
	if t.JobID == "" {
		return fmt.Errorf("track job id is required")
	}
	if !validTrackStatuses[t.Status] {
		return fmt.Errorf("invalid track status %q", t.Status)
	}
	if t.UserFeedback != FeedbackNone && t.UserFeedback != FeedbackConfirmed {
		return fmt.Errorf("invalid user feedback %q", t.UserFeedback)
	}
	if t.UserFeedback == FeedbackConfirmed && t.TargetRef == "" {
		return fmt.Errorf("confirmed track %s has no target ref", t.ID)
	}
	if t.MatchConfidence != nil && (*t.MatchConfidence < 0 || *t.MatchConfidence > 1) {
		return fmt.Errorf("match confidence %v out of range", *t.MatchConfidence)
	}
	return nil
}

// Classified reports whether analysis has assigned this track a final band.
func (t *SyncTrack) Classified() bool {
	return t.Status != TrackPending
}

// EligibleForPush reports whether this track may be included in a push:
// matched or uploaded, or uncertain with explicit user confirmation.
// Skipped tracks are always excluded.
func (t *SyncTrack) EligibleForPush() bool {
	if t.Status == TrackSkipped || t.TargetRef == "" {
		return false
	}
	switch t.Status {
	case TrackMatched, TrackUploaded:
		return true
	case TrackUncertain:
		return t.UserFeedback == FeedbackConfirmed
	default:
		return false
	}
}

// Reviewable reports whether confirm/confirmAll applies to this track.
func (t *SyncTrack) Reviewable() bool {
	return (t.Status == TrackMatched || t.Status == TrackUncertain) && t.TargetRef != ""
}

// Rejected reports whether the given candidate ref was previously rejected
// by the user for this track.
func (t *SyncTrack) Rejected(ref string) bool {
	for _, r := range t.RejectedRefs {
		if r == ref {
			return true
		}
	}
	return false
}

// Terminal reports whether the job reached a state that accepts no further
// analysis or review mutations.
func (j *SyncJob) Terminal() bool {
	return j.Status == JobDone
}
