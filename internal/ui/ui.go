package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/subnurb/mediaplace/internal/models"
	"github.com/subnurb/mediaplace/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	TrackReviewView ViewState = iota
	PushConfirmView
	PushView
	ResultView
)

// Model represents the TUI application state for reviewing one sync job.
type Model struct {
	ctx          context.Context
	view         ViewState
	engine       *tasks.Engine
	jobID        string
	width        int
	height       int
	job          *models.SyncJob
	trackList    list.Model
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	result       *tasks.PushResult
	status       string
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, engine *tasks.Engine, jobID string) *Model {
	return &Model{
		ctx:    ctx,
		view:   TrackReviewView,
		engine: engine,
		jobID:  jobID,
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Init initializes the TUI by loading the job under review.
func (m *Model) Init() tea.Cmd {
	return m.fetchJob()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.trackList.Width() == 0 {
			m.trackList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case TrackReviewView:
			return m.handleReviewKeys(msg)
		case PushConfirmView:
			return m.handlePushConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case jobFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.job = msg.job
		m.rebuildTrackList()
		return m, nil

	case trackUpdatedMsg:
		if msg.err != nil {
			m.status = styles.err.Render(msg.err.Error())
			return m, nil
		}
		m.status = ""
		return m, m.fetchJob()

	case confirmedAllMsg:
		if msg.err != nil {
			m.status = styles.err.Render(msg.err.Error())
			return m, nil
		}
		m.status = fmt.Sprintf("confirmed %d tracks", msg.count)
		return m, m.fetchJob()

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case pushCompleteMsg:
		m.result = msg.result
		m.err = msg.err
		m.view = ResultView
		m.progressChan = nil
		return m, nil
	}

	return m.updateList(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case TrackReviewView:
		return m.renderReview()
	case PushConfirmView:
		return m.renderPushConfirm()
	case PushView:
		return m.renderPush()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleReviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.confirm):
		return m, m.mutateSelected(func(id string) (*models.SyncTrack, error) {
			return m.engine.Confirm(m.jobID, id)
		})
	case key.Matches(msg, m.keys.unconfirm):
		return m, m.mutateSelected(func(id string) (*models.SyncTrack, error) {
			return m.engine.Unconfirm(m.jobID, id)
		})
	case key.Matches(msg, m.keys.reject):
		return m, m.mutateSelected(func(id string) (*models.SyncTrack, error) {
			return m.engine.Reject(m.ctx, m.jobID, id)
		})
	case key.Matches(msg, m.keys.skip):
		return m, m.mutateSelected(func(id string) (*models.SyncTrack, error) {
			return m.engine.Skip(m.jobID, id)
		})
	case key.Matches(msg, m.keys.all):
		return m, m.confirmAll()
	case key.Matches(msg, m.keys.push):
		m.view = PushConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handlePushConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit), key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = TrackReviewView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = PushView
		return m, m.startPush()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		// push failures revert the job to ready, so the review view
		// stays usable for another attempt
		m.view = TrackReviewView
		m.result = nil
		m.err = nil
		return m, m.fetchJob()
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.view == TrackReviewView {
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) rebuildTrackList() {
	items := make([]list.Item, len(m.job.Tracks))
	for i, track := range m.job.Tracks {
		items[i] = trackItem{track: track}
	}

	index := m.trackList.Index()
	m.trackList = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.trackList.Title = fmt.Sprintf("Review '%s' (%s → %s)", m.job.SourcePlaylistName, m.job.SourcePlatform, m.job.DestPlatform)
	m.trackList.SetSize(m.width-4, m.height-8)
	if index < len(items) {
		m.trackList.Select(index)
	}
}

func (m *Model) fetchJob() tea.Cmd {
	return func() tea.Msg {
		job, err := m.engine.GetJob(m.jobID)
		return jobFetchedMsg{job: job, err: err}
	}
}

// mutateSelected applies a review mutation to the currently highlighted
// track and reports the outcome as a [trackUpdatedMsg].
func (m *Model) mutateSelected(fn func(trackID string) (*models.SyncTrack, error)) tea.Cmd {
	selected := m.trackList.SelectedItem()
	item, ok := selected.(trackItem)
	if !ok {
		return nil
	}

	return func() tea.Msg {
		track, err := fn(item.track.ID)
		return trackUpdatedMsg{track: track, err: err}
	}
}

func (m *Model) confirmAll() tea.Cmd {
	return func() tea.Msg {
		updated, err := m.engine.ConfirmAll(m.jobID)
		return confirmedAllMsg{count: len(updated), err: err}
	}
}

func (m *Model) startPush() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	prog := m.progressChan

	go func() {
		result, err := m.engine.Push(m.ctx, prog, m.jobID, tasks.PushParams{
			NewPlaylistName: m.job.SourcePlaylistName,
		})
		m.result = result
		m.err = err
		close(prog)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		if m.progressChan == nil {
			return pushCompleteMsg{result: m.result, err: m.err}
		}

		update, ok := <-m.progressChan
		if !ok {
			return pushCompleteMsg{result: m.result, err: m.err}
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderReview() string {
	helpKeys := []key.Binding{m.keys.confirm, m.keys.reject, m.keys.skip, m.keys.all, m.keys.push, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	if m.status != "" {
		return fmt.Sprintf("%s\n%s\n\n%s", m.trackList.View(), m.status, helpView)
	}
	return fmt.Sprintf("%s\n\n%s", m.trackList.View(), helpView)
}

func (m *Model) renderPushConfirm() string {
	eligible := 0
	for i := range m.job.Tracks {
		if m.job.Tracks[i].EligibleForPush() && !m.job.Tracks[i].PushedToPlaylist {
			eligible++
		}
	}

	title := styles.title.Render(fmt.Sprintf("Push '%s' to %s?", m.job.SourcePlaylistName, m.job.DestPlatform))
	info := fmt.Sprintf("\nEligible tracks: %d of %d\n", eligible, len(m.job.Tracks))

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderPush() string {
	title := styles.title.Render("Pushing Playlist")

	var phase string
	switch m.progress.Phase {
	case tasks.PushTracks:
		phase = fmt.Sprintf("Pushing tracks (%d/%d)", m.progress.Step, m.progress.Total)
	default:
		phase = "Preparing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Push failed: %v\n\nPress esc to review again, q to quit", m.err))
	}

	if m.result == nil {
		return styles.err.Render("No result available\n\nPress esc to go back, q to quit")
	}

	title := styles.ok.Render("✓ Push Complete!")
	info := fmt.Sprintf(
		"\nPlaylist: %s (%s)\nPushed: %d tracks\nAlready there: %d",
		m.result.PlaylistName,
		m.result.PlaylistRef,
		len(m.result.Pushed),
		m.result.AlreadyThere,
	)

	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n\n%s", title, info, helpView)
}
