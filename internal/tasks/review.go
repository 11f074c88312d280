package tasks

import (
	"context"
	"fmt"

	"github.com/subnurb/mediaplace/internal/matcher"
	"github.com/subnurb/mediaplace/internal/models"
	"github.com/subnurb/mediaplace/internal/services"
	"github.com/subnurb/mediaplace/internal/shared"
)

// reviewableJob loads a job and checks it accepts review mutations. Tracks
// become immutable once the job is done.
func (e *Engine) reviewableJob(jobID string) (*models.SyncJob, error) {
	job, err := e.store.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobReady && job.Status != models.JobSyncing {
		return nil, fmt.Errorf("%w: job %s is %s", shared.ErrNotResumable, jobID, job.Status)
	}
	return job, nil
}

func findTrack(job *models.SyncJob, trackID string) (*models.SyncTrack, error) {
	for i := range job.Tracks {
		if job.Tracks[i].ID == trackID {
			return &job.Tracks[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, trackID)
}

// Confirm marks a track's current match as user-approved. Valid only when
// the track carries a target ref; status is left untouched.
func (e *Engine) Confirm(jobID, trackID string) (*models.SyncTrack, error) {
	unlock := e.lockJob(jobID)
	defer unlock()

	job, err := e.reviewableJob(jobID)
	if err != nil {
		return nil, err
	}
	track, err := findTrack(job, trackID)
	if err != nil {
		return nil, err
	}
	if track.TargetRef == "" {
		return nil, fmt.Errorf("%w: track %s has no match to confirm", shared.ErrValidation, trackID)
	}

	track.UserFeedback = models.FeedbackConfirmed
	if err := e.store.SaveTrack(track); err != nil {
		return nil, err
	}
	return track, nil
}

// Unconfirm clears the user-approval flag on a track.
func (e *Engine) Unconfirm(jobID, trackID string) (*models.SyncTrack, error) {
	unlock := e.lockJob(jobID)
	defer unlock()

	job, err := e.reviewableJob(jobID)
	if err != nil {
		return nil, err
	}
	track, err := findTrack(job, trackID)
	if err != nil {
		return nil, err
	}

	track.UserFeedback = models.FeedbackNone
	if err := e.store.SaveTrack(track); err != nil {
		return nil, err
	}
	return track, nil
}

// ConfirmAll confirms every reviewable track (matched or uncertain with a
// target ref) and returns the updated subset. Skipped and not_found tracks
// are untouched.
func (e *Engine) ConfirmAll(jobID string) ([]models.SyncTrack, error) {
	unlock := e.lockJob(jobID)
	defer unlock()

	job, err := e.reviewableJob(jobID)
	if err != nil {
		return nil, err
	}

	var updated []models.SyncTrack
	for i := range job.Tracks {
		track := &job.Tracks[i]
		if !track.Reviewable() {
			continue
		}

		track.UserFeedback = models.FeedbackConfirmed
		if err := e.store.SaveTrack(track); err != nil {
			return nil, err
		}
		updated = append(updated, *track)
	}

	e.logger.Info("confirmed all reviewable tracks", "job", jobID, "count", len(updated))
	return updated, nil
}

// Reject discards a track's current match and advances to the next-ranked
// alternative, re-querying the destination platform when none remain. The
// rejected ref is remembered and never resurfaces. With no candidates left
// at all the track settles at not_found.
func (e *Engine) Reject(ctx context.Context, jobID, trackID string) (*models.SyncTrack, error) {
	unlock := e.lockJob(jobID)
	defer unlock()

	job, err := e.reviewableJob(jobID)
	if err != nil {
		return nil, err
	}
	track, err := findTrack(job, trackID)
	if err != nil {
		return nil, err
	}
	if track.TargetRef == "" {
		return nil, fmt.Errorf("%w: track %s has no match to reject", shared.ErrValidation, trackID)
	}

	track.RejectedRefs = append(track.RejectedRefs, track.TargetRef)
	track.TargetRef = ""
	track.TargetTitle = ""
	track.MatchConfidence = nil
	track.UserFeedback = models.FeedbackNone

	if next, rest := nextAlternative(track); next != nil {
		e.promoteCandidate(track, next)
		track.Alternatives = rest
	} else if err := e.rejectRequery(ctx, job, track); err != nil {
		return nil, err
	}

	if err := e.store.SaveTrack(track); err != nil {
		return nil, err
	}
	return track, nil
}

// nextAlternative pops the first non-rejected alternative, returning it and
// the remaining list.
func nextAlternative(track *models.SyncTrack) (*models.Candidate, []models.Candidate) {
	for i := range track.Alternatives {
		if track.Rejected(track.Alternatives[i].Ref) {
			continue
		}
		next := track.Alternatives[i]
		rest := append([]models.Candidate{}, track.Alternatives[:i]...)
		rest = append(rest, track.Alternatives[i+1:]...)
		return &next, rest
	}
	return nil, nil
}

// promoteCandidate installs a candidate as the track's match, re-deriving
// the status band from the candidate's stored confidence.
func (e *Engine) promoteCandidate(track *models.SyncTrack, cand *models.Candidate) {
	track.TargetRef = cand.Ref
	track.TargetTitle = cand.Title
	track.MatchConfidence = cand.Confidence

	if cand.Confidence != nil {
		track.Status = e.matcher.Classify(*cand.Confidence)
	} else {
		track.Status = models.TrackUncertain
	}
}

// rejectRequery asks the destination platform for fresh candidates after
// the known alternatives ran out.
func (e *Engine) rejectRequery(ctx context.Context, job *models.SyncJob, track *models.SyncTrack) error {
	dest, err := e.registry.Get(job.DestPlatform)
	if err != nil {
		return err
	}

	candidates, err := e.requeryCandidates(ctx, dest, track)
	if err != nil {
		return err
	}

	if len(candidates) == 0 {
		zero := 0.0
		track.Status = models.TrackNotFound
		track.MatchConfidence = &zero
		track.Alternatives = nil
		return nil
	}

	res := e.scoreCandidates(track, candidates, 0)
	track.Status = res.status
	track.MatchConfidence = res.confidence
	track.TargetRef = res.targetRef
	track.TargetTitle = res.targetTitle
	track.Alternatives = res.alternatives
	return nil
}

func (e *Engine) requeryCandidates(ctx context.Context, dest services.Service, track *models.SyncTrack) ([]models.Candidate, error) {
	for _, query := range matcher.BuildQueries(track.Title, track.Artist) {
		found, err := dest.SearchTrack(ctx, query, 10)
		if err != nil {
			return nil, err
		}

		candidates := make([]models.Candidate, 0, len(found))
		seen := make(map[string]bool)
		for _, c := range found {
			if c.Ref == "" || seen[c.Ref] || track.Rejected(c.Ref) {
				continue
			}
			seen[c.Ref] = true
			candidates = append(candidates, c)
		}

		if len(candidates) > 0 {
			return candidates, nil
		}
	}
	return nil, nil
}

// SelectMatch installs the user's explicit candidate pick as the track's
// match and sets status to matched. Confidence is not recomputed and the
// pick is not treated as a confirmation.
func (e *Engine) SelectMatch(jobID, trackID, candidateRef string) (*models.SyncTrack, error) {
	unlock := e.lockJob(jobID)
	defer unlock()

	job, err := e.reviewableJob(jobID)
	if err != nil {
		return nil, err
	}
	track, err := findTrack(job, trackID)
	if err != nil {
		return nil, err
	}
	if candidateRef == "" {
		return nil, fmt.Errorf("%w: candidate ref is required", shared.ErrValidation)
	}

	// A ref outside the known alternatives (e.g. from a resolved URL)
	// carries no scored confidence.
	track.TargetRef = candidateRef
	track.TargetTitle = ""
	track.MatchConfidence = nil
	track.Status = models.TrackMatched

	for i := range track.Alternatives {
		if track.Alternatives[i].Ref != candidateRef {
			continue
		}
		track.TargetTitle = track.Alternatives[i].Title
		track.MatchConfidence = track.Alternatives[i].Confidence
		track.Alternatives = append(track.Alternatives[:i], track.Alternatives[i+1:]...)
		break
	}

	if err := e.store.SaveTrack(track); err != nil {
		return nil, err
	}
	return track, nil
}

// ResolveURL resolves a destination-platform URL into a candidate. The
// track is not mutated: the caller applies the result via SelectMatch.
func (e *Engine) ResolveURL(ctx context.Context, jobID, trackID, url string) (*models.Candidate, error) {
	job, err := e.store.Get(jobID)
	if err != nil {
		return nil, err
	}
	if _, err := findTrack(job, trackID); err != nil {
		return nil, err
	}

	dest, err := e.registry.Get(job.DestPlatform)
	if err != nil {
		return nil, err
	}

	return dest.ResolveURL(ctx, url)
}

// Upload pushes the source content to the destination platform out-of-band,
// producing a fresh target ref. Only sensible for tracks the matcher could
// not settle: uncertain or not_found.
func (e *Engine) Upload(ctx context.Context, prog chan<- ProgressUpdate, jobID, trackID string) (*models.SyncTrack, error) {
	unlock := e.lockJob(jobID)
	defer unlock()

	job, err := e.reviewableJob(jobID)
	if err != nil {
		return nil, err
	}
	track, err := findTrack(job, trackID)
	if err != nil {
		return nil, err
	}
	if track.Status != models.TrackUncertain && track.Status != models.TrackNotFound {
		return nil, fmt.Errorf("%w: cannot upload track in status %s", shared.ErrNotResumable, track.Status)
	}

	dest, err := e.registry.Get(job.DestPlatform)
	if err != nil {
		return nil, err
	}

	track.Status = models.TrackUploading
	track.Error = ""
	if err := e.store.SaveTrack(track); err != nil {
		return nil, err
	}

	e.sendProgress(prog, uploadTrackUpdate(track.Title))

	ref, err := dest.UploadTrack(ctx, services.UploadRequest{
		SourceTrackID: track.SourceTrackID,
		Title:         track.Title,
		Artist:        track.Artist,
		PermalinkURL:  track.PermalinkURL,
	})
	if err != nil {
		track.Status = models.TrackFailed
		track.Error = err.Error()
		if saveErr := e.store.SaveTrack(track); saveErr != nil {
			return nil, saveErr
		}
		return nil, err
	}

	confidence := 1.0
	track.Status = models.TrackUploaded
	track.TargetRef = ref
	track.TargetTitle = track.Title
	track.MatchConfidence = &confidence
	if err := e.store.SaveTrack(track); err != nil {
		return nil, err
	}

	e.logger.Info("track uploaded", "job", jobID, "track", trackID, "ref", ref)
	return track, nil
}

// Skip excludes a track from any future push.
func (e *Engine) Skip(jobID, trackID string) (*models.SyncTrack, error) {
	unlock := e.lockJob(jobID)
	defer unlock()

	job, err := e.reviewableJob(jobID)
	if err != nil {
		return nil, err
	}
	track, err := findTrack(job, trackID)
	if err != nil {
		return nil, err
	}

	track.Status = models.TrackSkipped
	track.UserFeedback = models.FeedbackNone
	if err := e.store.SaveTrack(track); err != nil {
		return nil, err
	}
	return track, nil
}
