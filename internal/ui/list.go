package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/subnurb/mediaplace/internal/models"
)

var (
	_ list.Item = trackItem{}
)

// trackItem wraps [models.SyncTrack] to implement [list.Item].
type trackItem struct {
	track models.SyncTrack
}

func (i trackItem) FilterValue() string { return i.track.Title }

func (i trackItem) Title() string {
	title := fmt.Sprintf("%d. %s — %s", i.track.Position+1, i.track.Title, i.track.Artist)
	if i.track.UserFeedback == models.FeedbackConfirmed {
		title = fmt.Sprintf("%s ✓", title)
	}
	return title
}

func (i trackItem) Description() string {
	desc := statusBadge(i.track)
	if i.track.TargetTitle != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.TargetTitle)
	}
	return desc
}

// statusBadge renders a colored status label, with the match confidence
// appended when one was scored.
func statusBadge(track models.SyncTrack) string {
	label := string(track.Status)
	if track.MatchConfidence != nil {
		label = fmt.Sprintf("%s (%.2f)", label, *track.MatchConfidence)
	}

	switch track.Status {
	case models.TrackMatched, models.TrackUploaded:
		return styles.ok.Render(label)
	case models.TrackUncertain:
		return styles.warn.Render(label)
	case models.TrackNotFound, models.TrackFailed:
		return styles.err.Render(label)
	default:
		return styles.help.Render(label)
	}
}
