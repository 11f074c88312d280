package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/subnurb/mediaplace/internal/models"
	"github.com/subnurb/mediaplace/internal/repositories"
	"github.com/subnurb/mediaplace/internal/services"
	"github.com/subnurb/mediaplace/internal/shared"
)

// mockService implements services.Service with scripted responses.
type mockService struct {
	mu sync.Mutex

	name          string
	tracks        []services.Track
	listTracksErr error

	searchResults map[string][]models.Candidate
	searchDefault []models.Candidate
	searchErr     error
	searchQueries []string

	createRef    string
	createErr    error
	createCalls  int
	addErr       error
	added        [][]string
	existingRefs []string

	resolveResult *models.Candidate
	resolveErr    error

	uploadRef string
	uploadErr error
}

func (m *mockService) Name() string { return m.name }

func (m *mockService) ListPlaylists(ctx context.Context) ([]services.Playlist, error) {
	return []services.Playlist{{ID: "sc-101", Name: "Morning Mix"}}, nil
}

func (m *mockService) ListTracks(ctx context.Context, playlistID string) ([]services.Track, error) {
	if m.listTracksErr != nil {
		return nil, m.listTracksErr
	}
	return m.tracks, nil
}

func (m *mockService) SearchTrack(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	m.mu.Lock()
	m.searchQueries = append(m.searchQueries, query)
	m.mu.Unlock()

	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if results, ok := m.searchResults[query]; ok {
		return results, nil
	}
	return m.searchDefault, nil
}

func (m *mockService) searchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.searchQueries)
}

func (m *mockService) ResolveURL(ctx context.Context, url string) (*models.Candidate, error) {
	return m.resolveResult, m.resolveErr
}

func (m *mockService) CreatePlaylist(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	m.createCalls++
	m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	return m.createRef, nil
}

func (m *mockService) AddTracksToPlaylist(ctx context.Context, playlistRef string, trackRefs []string) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.mu.Lock()
	m.added = append(m.added, trackRefs)
	m.existingRefs = append(m.existingRefs, trackRefs...)
	m.mu.Unlock()
	return nil
}

func (m *mockService) PlaylistTrackRefs(ctx context.Context, playlistRef string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.existingRefs...), nil
}

func (m *mockService) UploadTrack(ctx context.Context, req services.UploadRequest) (string, error) {
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	return m.uploadRef, nil
}

type testEnv struct {
	engine *Engine
	repo   *repositories.JobRepository
	source *mockService
	dest   *mockService
}

func setupEngine(t *testing.T) *testEnv {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// single connection so every statement sees the same in-memory database
	db.SetMaxOpenConns(1)

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	source := &mockService{
		name: "soundcloud",
		tracks: []services.Track{
			{ID: "sc-t1", Title: "Midnight City", Artist: "M83", DurationMS: 240000},
			{ID: "sc-t2", Title: "Wonderwall", Artist: "Oasis", DurationMS: 258000},
		},
	}
	dest := &mockService{
		name:          "youtube",
		searchResults: map[string][]models.Candidate{},
		createRef:     "yt-pl-1",
		uploadRef:     "yt-up-1",
	}

	repo := repositories.NewJobRepository(db)
	registry := services.NewRegistry(source, dest)
	cfg := shared.SyncConfig{
		MatchedThreshold:     0.90,
		UncertainThreshold:   0.55,
		DurationToleranceSec: 5,
		AnalysisParallelism:  2,
		SearchRateLimit:      1000,
	}

	return &testEnv{
		engine: NewEngine(repo, registry, cfg, shared.NewLogger(nil)),
		repo:   repo,
		source: source,
		dest:   dest,
	}
}

func (env *testEnv) createJob(t *testing.T) *models.SyncJob {
	t.Helper()
	job, err := env.engine.CreateJob(CreateJobParams{
		UserID:           "user-1",
		SourcePlatform:   "soundcloud",
		SourceAccount:    "alice",
		DestPlatform:     "youtube",
		DestAccount:      "alice-yt",
		SourcePlaylistID: "sc-101",
	})
	if err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	return job
}

// goodCandidates gives track 1 a confident match and track 2 nothing usable.
func (env *testEnv) scriptDefaultSearch() {
	env.dest.searchResults["M83 midnight city"] = []models.Candidate{
		{Ref: "yt-mc", Title: "Midnight City", Artist: "M83", DurationSec: 241},
		{Ref: "yt-mc-live", Title: "Midnight City (Live)", Artist: "M83", DurationSec: 263},
	}
}

func (env *testEnv) analyzed(t *testing.T) *models.SyncJob {
	t.Helper()
	env.scriptDefaultSearch()
	job := env.createJob(t)
	if err := env.engine.Analyze(context.Background(), nil, job.ID); err != nil {
		t.Fatalf("failed to analyze: %v", err)
	}
	got, err := env.engine.GetJob(job.ID)
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}
	return got
}

func TestEngineCreateJob(t *testing.T) {
	t.Run("Creates Pending Job", func(t *testing.T) {
		env := setupEngine(t)
		job := env.createJob(t)

		if job.Status != models.JobPending {
			t.Errorf("expected pending status, got %s", job.Status)
		}
		if len(job.Tracks) != 0 {
			t.Error("track list should not be materialized before analysis")
		}
	})

	t.Run("Unknown Platform", func(t *testing.T) {
		env := setupEngine(t)
		_, err := env.engine.CreateJob(CreateJobParams{
			UserID:           "user-1",
			SourcePlatform:   "spotify",
			DestPlatform:     "youtube",
			SourcePlaylistID: "x",
		})
		if !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})
}

func TestEngineAnalyze(t *testing.T) {
	t.Run("Classifies All Tracks And Reaches Ready", func(t *testing.T) {
		env := setupEngine(t)
		job := env.analyzed(t)

		if job.Status != models.JobReady {
			t.Fatalf("expected ready status, got %s", job.Status)
		}
		if len(job.Tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(job.Tracks))
		}

		first := job.Tracks[0]
		if first.Status != models.TrackMatched {
			t.Errorf("expected matched for near-exact candidate, got %s", first.Status)
		}
		if first.TargetRef != "yt-mc" {
			t.Errorf("expected target yt-mc, got %s", first.TargetRef)
		}
		if first.MatchConfidence == nil || *first.MatchConfidence < 0.90 {
			t.Errorf("expected confidence in matched band, got %v", first.MatchConfidence)
		}
		if len(first.Alternatives) != 1 || first.Alternatives[0].Ref != "yt-mc-live" {
			t.Errorf("expected live version as alternative, got %+v", first.Alternatives)
		}

		second := job.Tracks[1]
		if second.Status != models.TrackNotFound {
			t.Errorf("expected not_found with no candidates, got %s", second.Status)
		}
		if second.MatchConfidence == nil || *second.MatchConfidence != 0 {
			t.Errorf("expected zero confidence, got %v", second.MatchConfidence)
		}
	})

	t.Run("Source Fetch Failure Fails Job", func(t *testing.T) {
		env := setupEngine(t)
		env.source.listTracksErr = fmt.Errorf("%w: status 503", shared.ErrAdapter)

		job := env.createJob(t)
		err := env.engine.Analyze(context.Background(), nil, job.ID)
		if err == nil {
			t.Fatal("expected analyze to fail")
		}

		got, _ := env.engine.GetJob(job.ID)
		if got.Status != models.JobFailed {
			t.Errorf("expected failed status, got %s", got.Status)
		}
		if got.Error == "" {
			t.Error("expected failure cause to be recorded")
		}
	})

	t.Run("Per-Track Search Failure Does Not Abort Job", func(t *testing.T) {
		env := setupEngine(t)
		env.dest.searchErr = fmt.Errorf("%w: timeout", shared.ErrAdapter)

		job := env.createJob(t)
		if err := env.engine.Analyze(context.Background(), nil, job.ID); err != nil {
			t.Fatalf("expected analyze to complete, got %v", err)
		}

		got, _ := env.engine.GetJob(job.ID)
		if got.Status != models.JobReady {
			t.Errorf("expected ready status, got %s", got.Status)
		}
		for _, track := range got.Tracks {
			if track.Status != models.TrackFailed {
				t.Errorf("expected failed track, got %s", track.Status)
			}
			if track.Error == "" {
				t.Error("expected track error to be recorded")
			}
		}
	})

	t.Run("Resume Skips Classified Tracks", func(t *testing.T) {
		env := setupEngine(t)
		job := env.analyzed(t)

		// simulate a crash mid-analysis: job back to analyzing with one
		// track reset to pending
		job.Status = models.JobAnalyzing
		if err := env.repo.UpdateJob(job); err != nil {
			t.Fatalf("failed to update job: %v", err)
		}
		reset := job.Tracks[1]
		reset.Status = models.TrackPending
		reset.MatchConfidence = nil
		reset.Alternatives = nil
		if err := env.repo.SaveTrack(&reset); err != nil {
			t.Fatalf("failed to reset track: %v", err)
		}

		before := env.dest.searchCount()
		if err := env.engine.Analyze(context.Background(), nil, job.ID); err != nil {
			t.Fatalf("failed to resume: %v", err)
		}

		got, _ := env.engine.GetJob(job.ID)
		if got.Status != models.JobReady {
			t.Errorf("expected ready after resume, got %s", got.Status)
		}
		if got.Tracks[0].TargetRef != "yt-mc" {
			t.Error("classified track should keep its match across resume")
		}

		// only the reset track's query ladder ran again
		queries := env.dest.searchCount() - before
		if queries == 0 || queries > len(env.dest.searchQueries) {
			t.Errorf("unexpected query count on resume: %d", queries)
		}
		for _, q := range env.dest.searchQueries[before:] {
			if q == "M83 midnight city" {
				t.Error("already-matched track was re-queried on resume")
			}
		}
	})

	t.Run("Same Platform Reuses Source Ref", func(t *testing.T) {
		env := setupEngine(t)
		job, err := env.engine.CreateJob(CreateJobParams{
			UserID:           "user-1",
			SourcePlatform:   "soundcloud",
			DestPlatform:     "soundcloud",
			SourcePlaylistID: "sc-101",
		})
		if err != nil {
			t.Fatalf("failed to create job: %v", err)
		}

		if err := env.engine.Analyze(context.Background(), nil, job.ID); err != nil {
			t.Fatalf("failed to analyze: %v", err)
		}

		got, _ := env.engine.GetJob(job.ID)
		for _, track := range got.Tracks {
			if track.Status != models.TrackMatched || track.TargetRef != track.SourceTrackID {
				t.Errorf("expected source ref reuse, got %+v", track)
			}
			if track.MatchConfidence == nil || *track.MatchConfidence != 1.0 {
				t.Errorf("expected confidence 1.0, got %v", track.MatchConfidence)
			}
		}
		if env.source.searchCount() != 0 {
			t.Error("same-platform job should not search")
		}
	})

	t.Run("Confirmed Match From Prior Job Is Reused", func(t *testing.T) {
		env := setupEngine(t)
		first := env.analyzed(t)

		// user confirms the uncertain-free match on the first job
		if _, err := env.engine.Confirm(first.ID, first.Tracks[0].ID); err != nil {
			t.Fatalf("failed to confirm: %v", err)
		}

		before := env.dest.searchCount()
		second := env.createJob(t)
		if err := env.engine.Analyze(context.Background(), nil, second.ID); err != nil {
			t.Fatalf("failed to analyze second job: %v", err)
		}

		got, _ := env.engine.GetJob(second.ID)
		track := got.Tracks[0]
		if track.Status != models.TrackMatched || track.TargetRef != "yt-mc" {
			t.Errorf("expected cached confirmed match, got %+v", track)
		}
		if track.MatchConfidence == nil || *track.MatchConfidence != 1.0 {
			t.Errorf("expected confidence 1.0 from cache, got %v", track.MatchConfidence)
		}
		for _, q := range env.dest.searchQueries[before:] {
			if q == "M83 midnight city" {
				t.Error("cached track should not be searched again")
			}
		}
	})

	t.Run("Wrong Status", func(t *testing.T) {
		env := setupEngine(t)
		job := env.analyzed(t)

		// ready jobs hold for review, a second analyze is rejected
		err := env.engine.Analyze(context.Background(), nil, job.ID)
		if !errors.Is(err, shared.ErrNotResumable) {
			t.Errorf("expected ErrNotResumable, got %v", err)
		}
	})
}

func TestEngineReview(t *testing.T) {
	t.Run("Confirm Requires Target Ref", func(t *testing.T) {
		env := setupEngine(t)
		job := env.analyzed(t)

		notFound := job.Tracks[1]
		if _, err := env.engine.Confirm(job.ID, notFound.ID); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation for track without match, got %v", err)
		}
	})

	t.Run("Confirm And Unconfirm", func(t *testing.T) {
		env := setupEngine(t)
		job := env.analyzed(t)

		track, err := env.engine.Confirm(job.ID, job.Tracks[0].ID)
		if err != nil {
			t.Fatalf("failed to confirm: %v", err)
		}
		if track.UserFeedback != models.FeedbackConfirmed {
			t.Errorf("expected confirmed feedback, got %q", track.UserFeedback)
		}
		if track.Status != models.TrackMatched {
			t.Error("confirm must not change status")
		}

		track, err = env.engine.Unconfirm(job.ID, job.Tracks[0].ID)
		if err != nil {
			t.Fatalf("failed to unconfirm: %v", err)
		}
		if track.UserFeedback != models.FeedbackNone {
			t.Errorf("expected cleared feedback, got %q", track.UserFeedback)
		}
	})

	t.Run("ConfirmAll Only Touches Reviewable Tracks", func(t *testing.T) {
		env := setupEngine(t)
		job := env.analyzed(t)

		updated, err := env.engine.ConfirmAll(job.ID)
		if err != nil {
			t.Fatalf("failed to confirm all: %v", err)
		}
		if len(updated) != 1 {
			t.Fatalf("expected 1 reviewable track, got %d", len(updated))
		}
		if updated[0].ID != job.Tracks[0].ID {
			t.Error("unexpected track confirmed")
		}

		got, _ := env.engine.GetJob(job.ID)
		if got.Tracks[1].UserFeedback != models.FeedbackNone {
			t.Error("not_found track must be untouched by confirmAll")
		}
	})

	t.Run("Reject Advances To Next Alternative", func(t *testing.T) {
		env := setupEngine(t)
		job := env.analyzed(t)

		track, err := env.engine.Reject(context.Background(), job.ID, job.Tracks[0].ID)
		if err != nil {
			t.Fatalf("failed to reject: %v", err)
		}
		if track.TargetRef != "yt-mc-live" {
			t.Errorf("expected promotion of next alternative, got %s", track.TargetRef)
		}
		if !track.Rejected("yt-mc") {
			t.Error("rejected ref must be remembered")
		}
		if track.UserFeedback != models.FeedbackNone {
			t.Error("reject must clear feedback")
		}
		if len(track.Alternatives) != 0 {
			t.Errorf("promoted candidate should leave alternatives, got %+v", track.Alternatives)
		}
	})

	t.Run("Reject With No Alternatives Yields NotFound", func(t *testing.T) {
		env := setupEngine(t)
		job := env.analyzed(t)
		trackID := job.Tracks[0].ID

		// exhaust: first reject promotes the live version, second re-queries
		// and the adapter only returns already-rejected refs
		if _, err := env.engine.Reject(context.Background(), job.ID, trackID); err != nil {
			t.Fatalf("failed to reject: %v", err)
		}

		track, err := env.engine.Reject(context.Background(), job.ID, trackID)
		if err != nil {
			t.Fatalf("failed to reject: %v", err)
		}
		if track.Status != models.TrackNotFound {
			t.Errorf("expected not_found after exhausting candidates, got %s", track.Status)
		}
		if track.TargetRef != "" {
			t.Errorf("expected empty target ref, got %s", track.TargetRef)
		}
		if track.MatchConfidence == nil || *track.MatchConfidence != 0 {
			t.Errorf("expected zero confidence, got %v", track.MatchConfidence)
		}
	})

	t.Run("Concurrent Rejects Are Serialized", func(t *testing.T) {
		env := setupEngine(t)
		job := env.analyzed(t)
		trackID := job.Tracks[0].ID

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				env.engine.Reject(context.Background(), job.ID, trackID)
			}()
		}
		wg.Wait()

		track, err := env.repo.GetTrack(trackID)
		if err != nil {
			t.Fatalf("failed to load track: %v", err)
		}
		// every rejected ref recorded at most once
		seen := map[string]int{}
		for _, ref := range track.RejectedRefs {
			seen[ref]++
		}
		for ref, n := range seen {
			if n > 1 {
				t.Errorf("ref %s rejected %d times", ref, n)
			}
		}
	})

	t.Run("SelectMatch Does Not Auto-Confirm", func(t *testing.T) {
		env := setupEngine(t)
		job := env.analyzed(t)

		track, err := env.engine.SelectMatch(job.ID, job.Tracks[0].ID, "yt-mc-live")
		if err != nil {
			t.Fatalf("failed to select match: %v", err)
		}
		if track.TargetRef != "yt-mc-live" || track.TargetTitle != "Midnight City (Live)" {
			t.Errorf("unexpected target after select: %+v", track)
		}
		if track.Status != models.TrackMatched {
			t.Errorf("explicit pick must set matched, got %s", track.Status)
		}
		if track.UserFeedback != models.FeedbackNone {
			t.Error("selectMatch must not set user feedback")
		}
	})

	t.Run("SelectMatch Outside Alternatives Clears Confidence", func(t *testing.T) {
		env := setupEngine(t)
		job := env.analyzed(t)

		before, _ := env.repo.GetTrack(job.Tracks[0].ID)
		if before.MatchConfidence == nil {
			t.Fatal("expected analyzed track to carry a confidence")
		}

		track, err := env.engine.SelectMatch(job.ID, job.Tracks[0].ID, "yt-resolved")
		if err != nil {
			t.Fatalf("failed to select match: %v", err)
		}
		if track.TargetRef != "yt-resolved" || track.Status != models.TrackMatched {
			t.Errorf("unexpected target after select: %+v", track)
		}
		if track.MatchConfidence != nil {
			t.Errorf("unscored pick must not keep the old confidence, got %.2f", *track.MatchConfidence)
		}
		if track.TargetTitle != "" {
			t.Errorf("unscored pick must not keep the old title, got %q", track.TargetTitle)
		}
	})

	t.Run("ResolveURL Does Not Mutate The Track", func(t *testing.T) {
		env := setupEngine(t)
		job := env.analyzed(t)
		env.dest.resolveResult = &models.Candidate{Ref: "yt-manual", Title: "Wonderwall (Remastered)"}

		cand, err := env.engine.ResolveURL(context.Background(), job.ID, job.Tracks[1].ID, "https://youtube.com/watch?v=manual")
		if err != nil {
			t.Fatalf("failed to resolve: %v", err)
		}
		if cand.Ref != "yt-manual" {
			t.Errorf("unexpected candidate: %+v", cand)
		}

		got, _ := env.repo.GetTrack(job.Tracks[1].ID)
		if got.TargetRef != "" || got.Status != models.TrackNotFound {
			t.Errorf("resolve must not mutate the track, got %+v", got)
		}
	})

	t.Run("ResolveURL Failure", func(t *testing.T) {
		env := setupEngine(t)
		job := env.analyzed(t)
		env.dest.resolveErr = fmt.Errorf("%w: nothing at url", shared.ErrResolution)

		_, err := env.engine.ResolveURL(context.Background(), job.ID, job.Tracks[1].ID, "https://youtube.com/nope")
		if !errors.Is(err, shared.ErrResolution) {
			t.Errorf("expected ErrResolution, got %v", err)
		}
	})

	t.Run("Upload", func(t *testing.T) {
		t.Run("NotFound Track Uploads", func(t *testing.T) {
			env := setupEngine(t)
			job := env.analyzed(t)

			track, err := env.engine.Upload(context.Background(), nil, job.ID, job.Tracks[1].ID)
			if err != nil {
				t.Fatalf("failed to upload: %v", err)
			}
			if track.Status != models.TrackUploaded || track.TargetRef != "yt-up-1" {
				t.Errorf("unexpected track after upload: %+v", track)
			}
		})

		t.Run("Matched Track Refuses Upload", func(t *testing.T) {
			env := setupEngine(t)
			job := env.analyzed(t)

			_, err := env.engine.Upload(context.Background(), nil, job.ID, job.Tracks[0].ID)
			if !errors.Is(err, shared.ErrNotResumable) {
				t.Errorf("expected ErrNotResumable, got %v", err)
			}
		})

		t.Run("Upload Failure Recorded On Track", func(t *testing.T) {
			env := setupEngine(t)
			job := env.analyzed(t)
			env.dest.uploadErr = fmt.Errorf("%w: content fetch failed", shared.ErrAdapter)

			_, err := env.engine.Upload(context.Background(), nil, job.ID, job.Tracks[1].ID)
			if err == nil {
				t.Fatal("expected upload to fail")
			}

			got, _ := env.repo.GetTrack(job.Tracks[1].ID)
			if got.Status != models.TrackFailed || got.Error == "" {
				t.Errorf("expected failed track with cause, got %+v", got)
			}

			// job is still reviewable
			j, _ := env.engine.GetJob(job.ID)
			if j.Status != models.JobReady {
				t.Errorf("upload failure must not change job status, got %s", j.Status)
			}
		})
	})

	t.Run("Skip Excludes From Push", func(t *testing.T) {
		env := setupEngine(t)
		job := env.analyzed(t)

		track, err := env.engine.Skip(job.ID, job.Tracks[0].ID)
		if err != nil {
			t.Fatalf("failed to skip: %v", err)
		}
		if track.Status != models.TrackSkipped {
			t.Errorf("expected skipped, got %s", track.Status)
		}
		if track.EligibleForPush() {
			t.Error("skipped track must never be push eligible")
		}
	})

	t.Run("Review Rejected While Pending", func(t *testing.T) {
		env := setupEngine(t)
		job := env.createJob(t)

		if _, err := env.engine.ConfirmAll(job.ID); !errors.Is(err, shared.ErrNotResumable) {
			t.Errorf("expected ErrNotResumable on pending job, got %v", err)
		}
	})
}

func TestEnginePush(t *testing.T) {
	t.Run("Both Or Neither Target Fails Without Adapter Calls", func(t *testing.T) {
		env := setupEngine(t)
		job := env.analyzed(t)

		tc := []struct {
			name   string
			params PushParams
		}{
			{"Both", PushParams{TargetPlaylistID: "yt-pl-9", NewPlaylistName: "New"}},
			{"Neither", PushParams{}},
		}

		for _, c := range tc {
			t.Run(c.name, func(t *testing.T) {
				_, err := env.engine.Push(context.Background(), nil, job.ID, c.params)
				if !errors.Is(err, shared.ErrValidation) {
					t.Errorf("expected ErrValidation, got %v", err)
				}
			})
		}

		if env.dest.createCalls != 0 || len(env.dest.added) != 0 {
			t.Error("validation failure must cause no adapter calls")
		}
	})

	t.Run("Creates Playlist And Pushes Eligible Tracks In Order", func(t *testing.T) {
		env := setupEngine(t)
		job := env.analyzed(t)

		result, err := env.engine.Push(context.Background(), nil, job.ID, PushParams{NewPlaylistName: "Synced"})
		if err != nil {
			t.Fatalf("failed to push: %v", err)
		}

		if result.PlaylistRef != "yt-pl-1" || result.PlaylistName != "Synced" {
			t.Errorf("unexpected result: %+v", result)
		}
		if len(env.dest.added) != 1 || len(env.dest.added[0]) != 1 || env.dest.added[0][0] != "yt-mc" {
			t.Errorf("unexpected adds: %+v", env.dest.added)
		}

		got, _ := env.engine.GetJob(job.ID)
		if got.Status != models.JobDone {
			t.Errorf("expected done status, got %s", got.Status)
		}
		if got.PushedAt == nil || got.TargetPlaylistRef != "yt-pl-1" {
			t.Errorf("push metadata missing: %+v", got)
		}
		if !got.Tracks[0].PushedToPlaylist {
			t.Error("pushed track must be flagged")
		}
		if got.Tracks[1].PushedToPlaylist {
			t.Error("not_found track must not be flagged")
		}
	})

	t.Run("Uncertain Needs Confirmation", func(t *testing.T) {
		env := setupEngine(t)
		env.dest.searchResults["M83 midnight city"] = []models.Candidate{
			// close but not in the matched band
			{Ref: "yt-mc-rough", Title: "Midnight City (Remix)", Artist: "M83", DurationSec: 280},
		}
		job := env.createJob(t)
		if err := env.engine.Analyze(context.Background(), nil, job.ID); err != nil {
			t.Fatalf("failed to analyze: %v", err)
		}

		got, _ := env.engine.GetJob(job.ID)
		if got.Tracks[0].Status != models.TrackUncertain {
			t.Skipf("scenario expects uncertain, scorer said %s", got.Tracks[0].Status)
		}

		_, err := env.engine.Push(context.Background(), nil, job.ID, PushParams{NewPlaylistName: "Synced"})
		if !errors.Is(err, shared.ErrValidation) {
			t.Fatalf("expected no-eligible-tracks error, got %v", err)
		}

		if _, err := env.engine.Confirm(job.ID, got.Tracks[0].ID); err != nil {
			t.Fatalf("failed to confirm: %v", err)
		}
		if _, err := env.engine.Push(context.Background(), nil, job.ID, PushParams{NewPlaylistName: "Synced"}); err != nil {
			t.Fatalf("failed to push after confirm: %v", err)
		}
	})

	t.Run("Second Push Never Duplicates", func(t *testing.T) {
		env := setupEngine(t)
		job := env.analyzed(t)

		if _, err := env.engine.Push(context.Background(), nil, job.ID, PushParams{NewPlaylistName: "Synced"}); err != nil {
			t.Fatalf("failed to push: %v", err)
		}

		_, err := env.engine.Push(context.Background(), nil, job.ID, PushParams{TargetPlaylistID: "yt-pl-1"})
		if !errors.Is(err, shared.ErrAlreadyPushed) {
			t.Errorf("expected ErrAlreadyPushed, got %v", err)
		}
		if len(env.dest.added) != 1 {
			t.Errorf("second push must not add tracks, adds: %+v", env.dest.added)
		}
	})

	t.Run("Dedups Against Destination Contents", func(t *testing.T) {
		env := setupEngine(t)
		env.dest.existingRefs = []string{"yt-mc"}
		job := env.analyzed(t)

		result, err := env.engine.Push(context.Background(), nil, job.ID, PushParams{TargetPlaylistID: "yt-pl-7"})
		if err != nil {
			t.Fatalf("failed to push: %v", err)
		}
		if result.AlreadyThere != 1 {
			t.Errorf("expected 1 already-present track, got %d", result.AlreadyThere)
		}
		if len(env.dest.added) != 0 {
			t.Errorf("present ref must not be re-added: %+v", env.dest.added)
		}

		got, _ := env.engine.GetJob(job.ID)
		if got.Status != models.JobDone || !got.Tracks[0].PushedToPlaylist {
			t.Errorf("dedup push must still complete the job: %+v", got)
		}
	})

	t.Run("Commit Failure Reverts To Ready", func(t *testing.T) {
		env := setupEngine(t)
		env.dest.addErr = fmt.Errorf("%w: status 502", shared.ErrAdapter)
		job := env.analyzed(t)

		_, err := env.engine.Push(context.Background(), nil, job.ID, PushParams{NewPlaylistName: "Synced"})
		if err == nil {
			t.Fatal("expected push to fail")
		}

		got, _ := env.engine.GetJob(job.ID)
		if got.Status != models.JobReady {
			t.Errorf("expected job back at ready, got %s", got.Status)
		}
		if got.Error == "" {
			t.Error("expected failure cause recorded on job")
		}
		if got.Tracks[0].PushedToPlaylist {
			t.Error("failed commit must not flag tracks")
		}

		// retry succeeds once the adapter recovers
		env.dest.addErr = nil
		if _, err := env.engine.Push(context.Background(), nil, job.ID, PushParams{NewPlaylistName: "Synced"}); err != nil {
			t.Fatalf("retry failed: %v", err)
		}
	})
}

func TestEngineLog(t *testing.T) {
	env := setupEngine(t)
	job := env.analyzed(t)

	report, err := env.engine.Log(job.ID)
	if err != nil {
		t.Fatalf("failed to build report: %v", err)
	}
	if report.Total != 2 {
		t.Errorf("expected 2 tracks, got %d", report.Total)
	}
	if report.Counts[models.TrackMatched] != 1 || report.Counts[models.TrackNotFound] != 1 {
		t.Errorf("unexpected counts: %+v", report.Counts)
	}
	if len(report.Unsynced) != 2 {
		t.Errorf("expected all tracks unsynced before push, got %d", len(report.Unsynced))
	}

	if _, err := env.engine.Push(context.Background(), nil, job.ID, PushParams{NewPlaylistName: "Synced"}); err != nil {
		t.Fatalf("failed to push: %v", err)
	}

	report, err = env.engine.Log(job.ID)
	if err != nil {
		t.Fatalf("failed to build report: %v", err)
	}
	if len(report.Unsynced) != 1 {
		t.Errorf("expected only the not_found track unsynced, got %d", len(report.Unsynced))
	}
}

func TestEngineStop(t *testing.T) {
	t.Run("No Analysis In Progress", func(t *testing.T) {
		env := setupEngine(t)
		job := env.createJob(t)

		if err := env.engine.Stop(job.ID); !errors.Is(err, shared.ErrNotResumable) {
			t.Errorf("expected ErrNotResumable, got %v", err)
		}
	})
}

// invariant from the data model: confirmed feedback always rides with a
// target ref, checked after a mutation sequence touching every operation.
func TestConfirmedImpliesTargetRef(t *testing.T) {
	env := setupEngine(t)
	job := env.analyzed(t)
	trackID := job.Tracks[0].ID

	check := func(step string) {
		t.Helper()
		got, err := env.engine.GetJob(job.ID)
		if err != nil {
			t.Fatalf("%s: failed to get job: %v", step, err)
		}
		for _, track := range got.Tracks {
			if track.UserFeedback == models.FeedbackConfirmed && track.TargetRef == "" {
				t.Errorf("%s: confirmed track %s without target ref", step, track.ID)
			}
		}
	}

	env.engine.Confirm(job.ID, trackID)
	check("confirm")
	env.engine.Reject(context.Background(), job.ID, trackID)
	check("reject")
	env.engine.SelectMatch(job.ID, trackID, "yt-mc")
	check("select")
	env.engine.ConfirmAll(job.ID)
	check("confirmAll")
	env.engine.Skip(job.ID, trackID)
	check("skip")
}
