package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	MatchTracks
	PushTracks
	UploadTrack
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case MatchTracks:
		return "match_tracks"
	case PushTracks:
		return "push_tracks"
	case UploadTrack:
		return "upload_track"
	default:
		return ""
	}
}

// sendProgress delivers an update without blocking. A slow or absent
// consumer never stalls the engine.
func (e *Engine) sendProgress(prog chan<- ProgressUpdate, update ProgressUpdate) {
	if prog == nil {
		return
	}
	select {
	case prog <- update:
	default:
	}
}

func fetchSourceUpdate(name string, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetched source playlist %s (%d tracks)", name, total),
	}
}

func matchTrackUpdate(step, total int, title, artist string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MatchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, artist, title),
	}
}

func pushTrackUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PushTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Adding: %s", step, total, title),
	}
}

func uploadTrackUpdate(title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UploadTrack,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Uploading: %s", title),
	}
}
