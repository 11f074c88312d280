package tasks

import (
	"context"
	"fmt"

	"github.com/subnurb/mediaplace/internal/matcher"
	"github.com/subnurb/mediaplace/internal/models"
	"github.com/subnurb/mediaplace/internal/services"
	"github.com/subnurb/mediaplace/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// matchResult is one track's analysis outcome, computed by a worker and
// applied serially by the orchestrator.
type matchResult struct {
	index        int
	status       models.TrackStatus
	confidence   *float64
	targetRef    string
	targetTitle  string
	alternatives []models.Candidate
	errMessage   string
}

const maxAlternatives = 5

// Analyze runs the matching phase for a job: fetches the source playlist if
// not yet materialized, then classifies every pending track against the
// destination platform.
//
// Safe to call again after a stop or crash: tracks already classified are
// skipped, only remaining pending tracks are queried.
func (e *Engine) Analyze(ctx context.Context, prog chan<- ProgressUpdate, jobID string) error {
	unlock := e.lockJob(jobID)
	defer unlock()

	job, err := e.store.Get(jobID)
	if err != nil {
		return err
	}

	switch job.Status {
	case models.JobPending, models.JobAnalyzing, models.JobFailed:
	default:
		return fmt.Errorf("%w: cannot analyze job in status %s", shared.ErrNotResumable, job.Status)
	}

	source, err := e.registry.Get(job.SourcePlatform)
	if err != nil {
		return err
	}
	dest, err := e.registry.Get(job.DestPlatform)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancels.Store(job.ID, cancel)
	defer func() {
		cancel()
		e.cancels.Delete(job.ID)
	}()

	job.Status = models.JobAnalyzing
	job.Error = ""
	if err := e.store.UpdateJob(job); err != nil {
		return err
	}

	if len(job.Tracks) == 0 {
		if err := e.fetchSourceTracks(ctx, prog, job, source); err != nil {
			job.Status = models.JobFailed
			job.Error = err.Error()
			if saveErr := e.store.UpdateJob(job); saveErr != nil {
				e.logger.Error("failed to record job failure", "job", job.ID, "error", saveErr)
			}
			return err
		}
	}

	if err := e.classifyTracks(ctx, prog, job, dest); err != nil {
		// stop or caller cancellation; classified tracks are already
		// persisted and the job stays analyzing for a later resume
		e.logger.Info("analysis interrupted", "job", job.ID, "error", err)
		return err
	}

	job.Status = models.JobReady
	if err := e.store.UpdateJob(job); err != nil {
		return err
	}

	e.logger.Info("analysis complete", "job", job.ID, "tracks", len(job.Tracks))
	return nil
}

// fetchSourceTracks materializes the source playlist as the job's track
// records. This is the only point the full list is read from the source
// platform; failure here fails the whole job.
func (e *Engine) fetchSourceTracks(ctx context.Context, prog chan<- ProgressUpdate, job *models.SyncJob, source services.Service) error {
	sourceTracks, err := source.ListTracks(ctx, job.SourcePlaylistID)
	if err != nil {
		return fmt.Errorf("failed to fetch source playlist: %w", err)
	}
	if len(sourceTracks) == 0 {
		return fmt.Errorf("%w: source playlist %s is empty", shared.ErrPlaylistNotFound, job.SourcePlaylistID)
	}

	// playlist display name is best effort
	if job.SourcePlaylistName == "" {
		if playlists, err := source.ListPlaylists(ctx); err == nil {
			for _, p := range playlists {
				if p.ID == job.SourcePlaylistID {
					job.SourcePlaylistName = p.Name
					break
				}
			}
		}
	}

	tracks := make([]models.SyncTrack, len(sourceTracks))
	for i, st := range sourceTracks {
		tracks[i] = models.SyncTrack{
			Position:      i,
			SourceTrackID: st.ID,
			Title:         st.Title,
			Artist:        st.Artist,
			DurationMS:    st.DurationMS,
			ISRC:          st.ISRC,
			ArtworkURL:    st.ArtworkURL,
			PermalinkURL:  st.PermalinkURL,
			Status:        models.TrackPending,
		}
	}

	if err := e.store.ReplaceTracks(job.ID, tracks); err != nil {
		return err
	}
	job.Tracks = tracks

	e.sendProgress(prog, fetchSourceUpdate(job.SourcePlaylistName, len(tracks)))
	return nil
}

// classifyTracks assigns a final band to every pending track. Adapter
// queries and scoring fan out across workers; results are applied and
// persisted one at a time by this goroutine.
func (e *Engine) classifyTracks(ctx context.Context, prog chan<- ProgressUpdate, job *models.SyncJob, dest services.Service) error {
	var pending []int
	for i := range job.Tracks {
		track := &job.Tracks[i]
		if track.Classified() {
			continue
		}

		// cheap paths need no destination query
		if applied, err := e.applyFastPath(job, track); err != nil {
			return err
		} else if applied {
			continue
		}

		pending = append(pending, i)
	}

	if len(pending) == 0 {
		return ctx.Err()
	}

	limiter := rate.NewLimiter(rate.Limit(e.rateLimit), 1)
	results := make(chan matchResult, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)

	go func() {
		for _, idx := range pending {
			idx := idx
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results <- e.matchTrack(gctx, limiter, dest, &job.Tracks[idx], idx)
				return nil
			})
		}
		g.Wait()
		close(results)
	}()

	applied := 0
	for res := range results {
		track := &job.Tracks[res.index]
		track.Status = res.status
		track.MatchConfidence = res.confidence
		track.TargetRef = res.targetRef
		track.TargetTitle = res.targetTitle
		track.Alternatives = res.alternatives
		track.Error = res.errMessage

		if err := e.store.SaveTrack(track); err != nil {
			return err
		}

		applied++
		e.sendProgress(prog, matchTrackUpdate(applied, len(pending), track.Title, track.Artist))
	}

	return g.Wait()
}

// applyFastPath classifies a track without querying the destination:
// same-platform jobs reuse the source ref, and a match the user confirmed
// in an earlier job for the same track and platform pair is trusted as-is.
func (e *Engine) applyFastPath(job *models.SyncJob, track *models.SyncTrack) (bool, error) {
	confidence := 1.0

	if job.SourcePlatform == job.DestPlatform {
		track.Status = models.TrackMatched
		track.MatchConfidence = &confidence
		track.TargetRef = track.SourceTrackID
		track.TargetTitle = track.Title
		return true, e.store.SaveTrack(track)
	}

	prior, err := e.store.FindConfirmedMatch(job.SourcePlatform, track.SourceTrackID, job.DestPlatform)
	if err != nil {
		return false, err
	}
	if prior != nil && !track.Rejected(prior.TargetRef) {
		track.Status = models.TrackMatched
		track.MatchConfidence = &confidence
		track.TargetRef = prior.TargetRef
		track.TargetTitle = prior.TargetTitle
		return true, e.store.SaveTrack(track)
	}

	return false, nil
}

// matchTrack searches the destination platform and scores the candidates.
// Pure computation plus adapter reads; persistence happens in the caller.
func (e *Engine) matchTrack(ctx context.Context, limiter *rate.Limiter, dest services.Service, track *models.SyncTrack, index int) matchResult {
	candidates, err := e.searchCandidates(ctx, limiter, dest, track)
	if err != nil {
		return matchResult{
			index:      index,
			status:     models.TrackFailed,
			errMessage: err.Error(),
		}
	}

	return e.scoreCandidates(track, candidates, index)
}

// searchCandidates runs the query ladder against the destination platform,
// stopping at the first query that returns results. Refs the user rejected
// earlier never come back.
func (e *Engine) searchCandidates(ctx context.Context, limiter *rate.Limiter, dest services.Service, track *models.SyncTrack) ([]models.Candidate, error) {
	var lastErr error

	for _, query := range matcher.BuildQueries(track.Title, track.Artist) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		found, err := dest.SearchTrack(ctx, query, 10)
		if err != nil {
			lastErr = err
			continue
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

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

// scoreCandidates ranks candidates against the source track and maps the
// best score into a status band.
func (e *Engine) scoreCandidates(track *models.SyncTrack, candidates []models.Candidate, index int) matchResult {
	if len(candidates) == 0 {
		zero := 0.0
		return matchResult{
			index:      index,
			status:     models.TrackNotFound,
			confidence: &zero,
		}
	}

	source := matcher.Track{
		Title:      track.Title,
		Artist:     track.Artist,
		DurationMS: track.DurationMS,
		ISRC:       track.ISRC,
	}

	candTracks := make([]matcher.Track, len(candidates))
	for i, c := range candidates {
		candTracks[i] = matcher.Track{
			Title:      c.Title,
			Artist:     c.Artist,
			DurationMS: c.DurationSec * 1000,
			ISRC:       c.ISRC,
		}
	}

	ranked := e.matcher.Rank(source, candTracks)
	for _, r := range ranked {
		score := r.Score
		candidates[r.Index].Confidence = &score
	}

	best := candidates[ranked[0].Index]
	status := e.matcher.Classify(ranked[0].Score)

	alternatives := make([]models.Candidate, 0, maxAlternatives)
	for _, r := range ranked[1:] {
		if len(alternatives) == maxAlternatives {
			break
		}
		alternatives = append(alternatives, candidates[r.Index])
	}

	res := matchResult{
		index:        index,
		status:       status,
		confidence:   best.Confidence,
		alternatives: alternatives,
	}

	if status == models.TrackNotFound {
		// keep the best candidate reviewable even though nothing cleared
		// the uncertainty band
		res.alternatives = append([]models.Candidate{best}, alternatives...)
		if len(res.alternatives) > maxAlternatives {
			res.alternatives = res.alternatives[:maxAlternatives]
		}
		return res
	}

	res.targetRef = best.Ref
	res.targetTitle = best.Title
	return res
}
