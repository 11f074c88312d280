// package tasks implements the sync job engine.
//
// The Engine orchestrates the job lifecycle: fetch source playlist, match
// tracks against the destination platform, hold for user review, then push
// the eligible tracks into a destination playlist.
package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/subnurb/mediaplace/internal/matcher"
	"github.com/subnurb/mediaplace/internal/models"
	"github.com/subnurb/mediaplace/internal/services"
	"github.com/subnurb/mediaplace/internal/shared"
)

// Store is the persistence surface the engine depends on. Implemented by
// repositories.JobRepository; tests substitute their own.
type Store interface {
	Create(job *models.SyncJob) error
	Get(id string) (*models.SyncJob, error)
	ListForUser(userID string) ([]*models.SyncJob, error)
	UpdateJob(job *models.SyncJob) error
	SaveTrack(track *models.SyncTrack) error
	ReplaceTracks(jobID string, tracks []models.SyncTrack) error
	FindConfirmedMatch(sourcePlatform, sourceTrackID, destPlatform string) (*models.SyncTrack, error)
}

// Engine owns the sync job state machine. All mutations of a job go through
// the engine, serialized per job, so callers polling snapshots never observe
// a half-applied transition.
type Engine struct {
	store    Store
	registry *services.Registry
	matcher  matcher.Config
	logger   *log.Logger

	parallelism int
	rateLimit   float64

	jobLocks sync.Map // job ID -> *sync.Mutex
	cancels  sync.Map // job ID -> context.CancelFunc
}

// NewEngine creates an Engine wired to the given store and adapter registry.
func NewEngine(store Store, registry *services.Registry, cfg shared.SyncConfig, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	parallelism := cfg.AnalysisParallelism
	if parallelism <= 0 {
		parallelism = 5
	}
	rateLimit := cfg.SearchRateLimit
	if rateLimit <= 0 {
		rateLimit = 5.0
	}

	return &Engine{
		store:    store,
		registry: registry,
		matcher: matcher.Config{
			MatchedThreshold:     cfg.MatchedThreshold,
			UncertainThreshold:   cfg.UncertainThreshold,
			DurationToleranceSec: cfg.DurationToleranceSec,
		},
		logger:      logger,
		parallelism: parallelism,
		rateLimit:   rateLimit,
	}
}

// lockJob serializes all engine mutations for one job. Returns the unlock
// function.
func (e *Engine) lockJob(jobID string) func() {
	v, _ := e.jobLocks.LoadOrStore(jobID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// CreateJobParams describes a new sync job.
type CreateJobParams struct {
	UserID           string
	SourcePlatform   string
	SourceAccount    string
	DestPlatform     string
	DestAccount      string
	SourcePlaylistID string
}

// CreateJob registers a new pending job. The source track list is not
// fetched until analysis starts.
func (e *Engine) CreateJob(params CreateJobParams) (*models.SyncJob, error) {
	if params.UserID == "" || params.SourcePlaylistID == "" {
		return nil, fmt.Errorf("%w: user id and source playlist id are required", shared.ErrValidation)
	}
	if _, err := e.registry.Get(params.SourcePlatform); err != nil {
		return nil, fmt.Errorf("%w: unknown source platform %q", shared.ErrValidation, params.SourcePlatform)
	}
	if _, err := e.registry.Get(params.DestPlatform); err != nil {
		return nil, fmt.Errorf("%w: unknown destination platform %q", shared.ErrValidation, params.DestPlatform)
	}

	job := &models.SyncJob{
		UserID:           params.UserID,
		SourcePlatform:   params.SourcePlatform,
		SourceAccount:    params.SourceAccount,
		DestPlatform:     params.DestPlatform,
		DestAccount:      params.DestAccount,
		SourcePlaylistID: params.SourcePlaylistID,
		Status:           models.JobPending,
	}

	if err := e.store.Create(job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	e.logger.Info("sync job created", "job", job.ID, "source", params.SourcePlatform, "dest", params.DestPlatform)
	return job, nil
}

// GetJob returns a consistent snapshot of a job and its tracks.
func (e *Engine) GetJob(jobID string) (*models.SyncJob, error) {
	return e.store.Get(jobID)
}

// ListJobs returns a user's jobs, newest first, without track records.
func (e *Engine) ListJobs(userID string) ([]*models.SyncJob, error) {
	return e.store.ListForUser(userID)
}

// Stop cancels an in-progress analysis. Tracks already classified keep
// their state; the job stays in analyzing and a later analyze call resumes
// from the remaining pending tracks.
func (e *Engine) Stop(jobID string) error {
	v, ok := e.cancels.Load(jobID)
	if !ok {
		return fmt.Errorf("%w: no analysis in progress for job %s", shared.ErrNotResumable, jobID)
	}
	v.(context.CancelFunc)()
	e.logger.Info("analysis stop requested", "job", jobID)
	return nil
}

// JobReport summarizes a job's track states for logging and display.
type JobReport struct {
	JobID    string                     `json:"job_id"`
	Status   models.JobStatus           `json:"status"`
	Total    int                        `json:"total"`
	Counts   map[models.TrackStatus]int `json:"counts"`
	Unsynced []models.SyncTrack         `json:"unsynced,omitempty"`
}

// Log builds a per-status report for a job, listing the tracks that have
// not made it into the destination playlist.
func (e *Engine) Log(jobID string) (*JobReport, error) {
	job, err := e.store.Get(jobID)
	if err != nil {
		return nil, err
	}

	report := &JobReport{
		JobID:  job.ID,
		Status: job.Status,
		Total:  len(job.Tracks),
		Counts: make(map[models.TrackStatus]int),
	}

	for _, track := range job.Tracks {
		report.Counts[track.Status]++
		if !track.PushedToPlaylist {
			report.Unsynced = append(report.Unsynced, track)
		}
	}

	return report, nil
}
