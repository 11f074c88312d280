package ui

import (
	"github.com/subnurb/mediaplace/internal/models"
	"github.com/subnurb/mediaplace/internal/tasks"
)

// jobFetchedMsg carries a fresh snapshot of the job under review.
type jobFetchedMsg struct {
	job *models.SyncJob
	err error
}

// trackUpdatedMsg is emitted after any per-track review mutation.
type trackUpdatedMsg struct {
	track *models.SyncTrack
	err   error
}

// confirmedAllMsg is emitted after a bulk confirm.
type confirmedAllMsg struct {
	count int
	err   error
}

type progressUpdateMsg tasks.ProgressUpdate

// pushCompleteMsg is emitted once the push either commits or fails.
type pushCompleteMsg struct {
	result *tasks.PushResult
	err    error
}
