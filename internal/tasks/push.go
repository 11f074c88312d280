package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/subnurb/mediaplace/internal/models"
	"github.com/subnurb/mediaplace/internal/shared"
)

// PushParams selects the destination playlist for a commit. Exactly one of
// the two fields must be set.
type PushParams struct {
	TargetPlaylistID string
	NewPlaylistName  string
}

// PushResult summarizes a completed commit.
type PushResult struct {
	PlaylistRef  string             `json:"playlist_ref"`
	PlaylistName string             `json:"playlist_name"`
	Pushed       []models.SyncTrack `json:"pushed"`
	AlreadyThere int                `json:"already_there"`
}

// Push commits a job's eligible tracks into the destination playlist, in
// source playlist order.
//
// Eligible = matched or uploaded, or uncertain with explicit confirmation;
// skipped tracks never go. Refs already present in the destination playlist
// are counted but not re-added, so repeating a push cannot produce
// duplicates. A commit failure reverts the job to ready with the cause
// recorded, and the push can be retried.
func (e *Engine) Push(ctx context.Context, prog chan<- ProgressUpdate, jobID string, params PushParams) (*PushResult, error) {
	if (params.TargetPlaylistID == "") == (params.NewPlaylistName == "") {
		return nil, fmt.Errorf("%w: exactly one of target playlist id or new playlist name must be given", shared.ErrValidation)
	}

	unlock := e.lockJob(jobID)
	defer unlock()

	job, err := e.store.Get(jobID)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case models.JobReady:
	case models.JobDone:
		// re-push only proceeds when new eligible tracks appeared after
		// the prior commit
	default:
		return nil, fmt.Errorf("%w: cannot push job in status %s", shared.ErrNotResumable, job.Status)
	}

	var eligible []*models.SyncTrack
	for i := range job.Tracks {
		track := &job.Tracks[i]
		if track.EligibleForPush() && !track.PushedToPlaylist {
			eligible = append(eligible, track)
		}
	}
	if len(eligible) == 0 {
		if job.PushedAt != nil {
			return nil, fmt.Errorf("%w: job %s has no newly eligible tracks", shared.ErrAlreadyPushed, jobID)
		}
		return nil, fmt.Errorf("%w: job %s has no eligible tracks to push", shared.ErrValidation, jobID)
	}

	prevStatus := job.Status
	job.Status = models.JobSyncing
	job.Error = ""
	if err := e.store.UpdateJob(job); err != nil {
		return nil, err
	}

	result, err := e.commit(ctx, prog, job, params, eligible)
	if err != nil {
		// the job goes back to review so the push can be retried
		job.Status = models.JobReady
		if prevStatus == models.JobDone {
			job.Status = models.JobDone
		}
		job.Error = err.Error()
		if saveErr := e.store.UpdateJob(job); saveErr != nil {
			e.logger.Error("failed to record push failure", "job", jobID, "error", saveErr)
		}
		return nil, err
	}

	now := time.Now().UTC()
	job.Status = models.JobDone
	job.PushedAt = &now
	job.TargetPlaylistRef = result.PlaylistRef
	job.TargetPlaylistName = result.PlaylistName
	if err := e.store.UpdateJob(job); err != nil {
		return nil, err
	}

	e.logger.Info("push complete", "job", jobID, "playlist", result.PlaylistRef, "pushed", len(result.Pushed))
	return result, nil
}

// commit performs the adapter-facing half of a push: resolve or create the
// destination playlist, dedup against its current contents, add the new
// refs in source order, then flag each added track.
func (e *Engine) commit(ctx context.Context, prog chan<- ProgressUpdate, job *models.SyncJob, params PushParams, eligible []*models.SyncTrack) (*PushResult, error) {
	dest, err := e.registry.Get(job.DestPlatform)
	if err != nil {
		return nil, err
	}

	playlistRef := params.TargetPlaylistID
	playlistName := params.NewPlaylistName
	if playlistRef == "" {
		playlistRef, err = dest.CreatePlaylist(ctx, params.NewPlaylistName)
		if err != nil {
			return nil, fmt.Errorf("failed to create destination playlist: %w", err)
		}
	} else if job.TargetPlaylistName != "" {
		playlistName = job.TargetPlaylistName
	}

	existing, err := dest.PlaylistTrackRefs(ctx, playlistRef)
	if err != nil {
		return nil, fmt.Errorf("failed to read destination playlist: %w", err)
	}
	present := make(map[string]bool, len(existing))
	for _, ref := range existing {
		present[ref] = true
	}

	result := &PushResult{PlaylistRef: playlistRef, PlaylistName: playlistName}
	var toAdd []string
	var adding []*models.SyncTrack
	for _, track := range eligible {
		if present[track.TargetRef] {
			result.AlreadyThere++
			track.PushedToPlaylist = true
			if err := e.store.SaveTrack(track); err != nil {
				return nil, err
			}
			result.Pushed = append(result.Pushed, *track)
			continue
		}
		toAdd = append(toAdd, track.TargetRef)
		adding = append(adding, track)
	}

	if len(toAdd) > 0 {
		if err := dest.AddTracksToPlaylist(ctx, playlistRef, toAdd); err != nil {
			return nil, fmt.Errorf("failed to add tracks: %w", err)
		}
	}

	for i, track := range adding {
		track.PushedToPlaylist = true
		if err := e.store.SaveTrack(track); err != nil {
			return nil, err
		}
		result.Pushed = append(result.Pushed, *track)
		e.sendProgress(prog, pushTrackUpdate(i+1, len(adding), track.Title))
	}

	return result, nil
}
