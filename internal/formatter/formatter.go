// package formatter renders sync job snapshots to export formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/subnurb/mediaplace/internal/models"
	"github.com/subnurb/mediaplace/internal/shared"
)

// confidenceString renders a confidence pointer for display, empty when the
// track has not been scored.
func confidenceString(conf *float64) string {
	if conf == nil {
		return ""
	}
	return strconv.FormatFloat(*conf, 'f', 2, 64)
}

// ExportToCSV converts a job snapshot to CSV. Every track appears with its
// current status, scored or not.
func ExportToCSV(job *models.SyncJob) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Title", "Artist", "Duration", "Status", "Confidence", "Target Title", "Target Ref", "Feedback", "Pushed"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range job.Tracks {
		record := []string{
			strconv.Itoa(track.Position + 1),
			track.Title,
			track.Artist,
			shared.FormatDurationMS(track.DurationMS),
			string(track.Status),
			confidenceString(track.MatchConfidence),
			track.TargetTitle,
			track.TargetRef,
			string(track.UserFeedback),
			strconv.FormatBool(track.PushedToPlaylist),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a job snapshot to a Markdown report.
func ExportToMarkdown(job *models.SyncJob) ([]byte, error) {
	var buf bytes.Buffer

	name := job.SourcePlaylistName
	if name == "" {
		name = job.SourcePlaylistID
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", name))
	buf.WriteString(fmt.Sprintf("**Route**: %s → %s\n", job.SourcePlatform, job.DestPlatform))
	buf.WriteString(fmt.Sprintf("**Status**: %s\n", job.Status))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", len(job.Tracks)))

	if job.PushedAt != nil {
		buf.WriteString(fmt.Sprintf("**Pushed**: %s into %s\n\n", job.PushedAt.Format("2006-01-02 15:04"), job.TargetPlaylistName))
	}

	buf.WriteString("| # | Track | Status | Confidence | Match |\n")
	buf.WriteString("|---|-------|--------|------------|-------|\n")
	for _, track := range job.Tracks {
		buf.WriteString(fmt.Sprintf("| %d | %s - %s | %s | %s | %s |\n",
			track.Position+1,
			track.Artist,
			track.Title,
			track.Status,
			confidenceString(track.MatchConfidence),
			track.TargetTitle,
		))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a job snapshot to plain text.
func ExportToText(job *models.SyncJob) ([]byte, error) {
	var buf bytes.Buffer

	name := job.SourcePlaylistName
	if name == "" {
		name = job.SourcePlaylistID
	}
	buf.WriteString(fmt.Sprintf("Playlist: %s\n", name))
	buf.WriteString(fmt.Sprintf("Route: %s -> %s\n", job.SourcePlatform, job.DestPlatform))
	buf.WriteString(fmt.Sprintf("Status: %s\n", job.Status))
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(job.Tracks)))

	for _, track := range job.Tracks {
		line := fmt.Sprintf("%d. %s - %s [%s", track.Position+1, track.Artist, track.Title, track.Status)
		if track.MatchConfidence != nil {
			line += " " + confidenceString(track.MatchConfidence)
		}
		line += "]"
		if track.TargetTitle != "" {
			line += " -> " + track.TargetTitle
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// ToJSON renders the full job snapshot as indented JSON.
func ToJSON(job *models.SyncJob) ([]byte, error) {
	return shared.MarshalJSON(job, true)
}

// Export renders a job snapshot in the named format: csv, markdown, txt or
// json.
func Export(job *models.SyncJob, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "csv":
		return ExportToCSV(job)
	case "markdown", "md":
		return ExportToMarkdown(job)
	case "txt", "text":
		return ExportToText(job)
	case "json":
		return ToJSON(job)
	default:
		return nil, fmt.Errorf("%w: unsupported export format %q", shared.ErrValidation, format)
	}
}

// WriteExport renders a job snapshot and writes it to path. An empty path
// defaults to {jobID}.{ext} in the working directory; the path used is
// returned.
func WriteExport(job *models.SyncJob, format, path string) (string, error) {
	data, err := Export(job, format)
	if err != nil {
		return "", err
	}

	if path == "" {
		ext := strings.ToLower(format)
		if ext == "markdown" {
			ext = "md"
		}
		path = job.ID + "." + ext
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}
