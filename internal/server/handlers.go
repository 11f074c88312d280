package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/subnurb/mediaplace/internal/formatter"
	"github.com/subnurb/mediaplace/internal/models"
	"github.com/subnurb/mediaplace/internal/shared"
	"github.com/subnurb/mediaplace/internal/tasks"
)

type createJobRequest struct {
	UserID           string `json:"user_id"`
	SourcePlatform   string `json:"source_platform"`
	SourceAccount    string `json:"source_account"`
	DestPlatform     string `json:"dest_platform"`
	DestAccount      string `json:"dest_account"`
	SourcePlaylistID string `json:"source_playlist_id"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	job, err := s.engine.CreateJob(tasks.CreateJobParams{
		UserID:           req.UserID,
		SourcePlatform:   req.SourcePlatform,
		SourceAccount:    req.SourceAccount,
		DestPlatform:     req.DestPlatform,
		DestAccount:      req.DestAccount,
		SourcePlaylistID: req.SourcePlaylistID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeError(w, fmt.Errorf("%w: user_id query parameter is required", shared.ErrValidation))
		return
	}

	jobs, err := s.engine.ListJobs(userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.engine.GetJob(chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

// handleAnalyze kicks off the matching phase in the background and returns
// immediately; clients poll the snapshot for progress.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	// validate the transition up front so the caller gets a synchronous
	// error for a job that cannot be analyzed
	job, err := s.engine.GetJob(jobID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	switch job.Status {
	case models.JobPending, models.JobAnalyzing, models.JobFailed:
	default:
		s.writeError(w, fmt.Errorf("%w: cannot analyze job in status %s", shared.ErrNotResumable, job.Status))
		return
	}

	go func() {
		if err := s.engine.Analyze(context.Background(), nil, jobID); err != nil {
			s.logger.Error("analysis failed", "job", jobID, "error", err)
		}
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]string{"id": job.ID, "status": "analyzing"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Stop(chi.URLParam(r, "jobID")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) handleConfirmAll(w http.ResponseWriter, r *http.Request) {
	updated, err := s.engine.ConfirmAll(chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"confirmed": len(updated), "tracks": updated})
}

type pushRequest struct {
	TargetPlaylistID string `json:"target_playlist_id"`
	NewPlaylistName  string `json:"new_playlist_name"`
}

// handlePush validates the target selection and job status synchronously,
// then commits in the background.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	var req pushRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if (req.TargetPlaylistID == "") == (req.NewPlaylistName == "") {
		s.writeError(w, fmt.Errorf("%w: exactly one of target_playlist_id or new_playlist_name must be given", shared.ErrValidation))
		return
	}

	job, err := s.engine.GetJob(jobID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if job.Status != models.JobReady && job.Status != models.JobDone {
		s.writeError(w, fmt.Errorf("%w: cannot push job in status %s", shared.ErrNotResumable, job.Status))
		return
	}

	go func() {
		_, err := s.engine.Push(context.Background(), nil, jobID, tasks.PushParams{
			TargetPlaylistID: req.TargetPlaylistID,
			NewPlaylistName:  req.NewPlaylistName,
		})
		if err != nil {
			s.logger.Error("push failed", "job", jobID, "error", err)
		}
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]string{"id": jobID, "status": "syncing"})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	job, err := s.engine.GetJob(chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	data, err := formatter.Export(job, format)
	if err != nil {
		s.writeError(w, err)
		return
	}

	switch format {
	case "json":
		w.Header().Set("Content-Type", "application/json")
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.Log(chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	track, err := s.engine.Confirm(chi.URLParam(r, "jobID"), chi.URLParam(r, "trackID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, track)
}

func (s *Server) handleUnconfirm(w http.ResponseWriter, r *http.Request) {
	track, err := s.engine.Unconfirm(chi.URLParam(r, "jobID"), chi.URLParam(r, "trackID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, track)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	track, err := s.engine.Reject(r.Context(), chi.URLParam(r, "jobID"), chi.URLParam(r, "trackID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, track)
}

type selectRequest struct {
	CandidateRef string `json:"candidate_ref"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	track, err := s.engine.SelectMatch(chi.URLParam(r, "jobID"), chi.URLParam(r, "trackID"), req.CandidateRef)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, track)
}

type resolveRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleResolveURL(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.URL == "" {
		s.writeError(w, fmt.Errorf("%w: url is required", shared.ErrValidation))
		return
	}

	cand, err := s.engine.ResolveURL(r.Context(), chi.URLParam(r, "jobID"), chi.URLParam(r, "trackID"), req.URL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cand)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	trackID := chi.URLParam(r, "trackID")

	track, err := s.engine.Upload(r.Context(), nil, jobID, trackID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, track)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	track, err := s.engine.Skip(chi.URLParam(r, "jobID"), chi.URLParam(r, "trackID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, track)
}
