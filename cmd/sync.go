package main

import (
	"context"
	"fmt"

	"github.com/subnurb/mediaplace/internal/formatter"
	"github.com/subnurb/mediaplace/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SyncCreate registers a new sync job for a source playlist.
func (r *Runner) SyncCreate(ctx context.Context, cmd *cli.Command) error {
	engine, closer, err := r.openEngine()
	if err != nil {
		return err
	}
	defer closer()

	job, err := engine.CreateJob(tasks.CreateJobParams{
		UserID:           cmd.String("user"),
		SourcePlatform:   cmd.String("source"),
		SourceAccount:    cmd.String("source-account"),
		DestPlatform:     cmd.String("dest"),
		DestAccount:      cmd.String("dest-account"),
		SourcePlaylistID: cmd.String("playlist"),
	})
	if err != nil {
		return err
	}

	r.logger.Info("sync job created", "id", job.ID)
	return r.writeJSON(job, true)
}

// SyncAnalyze fetches the source playlist and matches every track against
// the destination catalog, streaming progress to the terminal.
func (r *Runner) SyncAnalyze(ctx context.Context, cmd *cli.Command) error {
	jobID := cmd.String("job")

	engine, closer, err := r.openEngine()
	if err != nil {
		return err
	}
	defer closer()

	progressCh := make(chan tasks.ProgressUpdate, 50)
	go func() {
		for update := range progressCh {
			switch update.Phase {
			case tasks.FetchSource:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.MatchTracks:
				r.writePlain("   %s\n", update.Message)
			}
		}
	}()

	err = engine.Analyze(ctx, progressCh, jobID)
	close(progressCh)
	if err != nil {
		return err
	}

	job, err := engine.GetJob(jobID)
	if err != nil {
		return err
	}

	report, err := engine.Log(jobID)
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Analysis Complete")
	r.writePlain("Playlist: %s (%d tracks)\n", job.SourcePlaylistName, report.Total)
	for status, count := range report.Counts {
		r.writePlain("  %s: %d\n", status, count)
	}
	return nil
}

// SyncStatus prints the current job snapshot.
func (r *Runner) SyncStatus(ctx context.Context, cmd *cli.Command) error {
	engine, closer, err := r.openEngine()
	if err != nil {
		return err
	}
	defer closer()

	job, err := engine.GetJob(cmd.String("job"))
	if err != nil {
		return err
	}
	return r.writeJSON(job, true)
}

// SyncList prints all jobs for a user, newest first.
func (r *Runner) SyncList(ctx context.Context, cmd *cli.Command) error {
	engine, closer, err := r.openEngine()
	if err != nil {
		return err
	}
	defer closer()

	jobs, err := engine.ListJobs(cmd.String("user"))
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		return r.writePlain("No sync jobs found.\n")
	}

	for _, job := range jobs {
		r.writePlain("%s  %-10s %s → %s  %s\n", job.ID, job.Status, job.SourcePlatform, job.DestPlatform, job.SourcePlaylistName)
	}
	return nil
}

// SyncStop requests cancellation of a running analysis.
func (r *Runner) SyncStop(ctx context.Context, cmd *cli.Command) error {
	engine, closer, err := r.openEngine()
	if err != nil {
		return err
	}
	defer closer()

	if err := engine.Stop(cmd.String("job")); err != nil {
		return err
	}
	return r.writePlain("Stop requested. Re-run analyze to resume.\n")
}

// SyncConfirm marks a track's proposed match as user-approved.
func (r *Runner) SyncConfirm(ctx context.Context, cmd *cli.Command) error {
	engine, closer, err := r.openEngine()
	if err != nil {
		return err
	}
	defer closer()

	track, err := engine.Confirm(cmd.String("job"), cmd.String("track"))
	if err != nil {
		return err
	}
	return r.writeJSON(track, true)
}

// SyncConfirmAll confirms every reviewable track in one pass.
func (r *Runner) SyncConfirmAll(ctx context.Context, cmd *cli.Command) error {
	engine, closer, err := r.openEngine()
	if err != nil {
		return err
	}
	defer closer()

	updated, err := engine.ConfirmAll(cmd.String("job"))
	if err != nil {
		return err
	}
	return r.writePlain("Confirmed %d tracks.\n", len(updated))
}

// SyncUnconfirm withdraws a previous confirmation.
func (r *Runner) SyncUnconfirm(ctx context.Context, cmd *cli.Command) error {
	engine, closer, err := r.openEngine()
	if err != nil {
		return err
	}
	defer closer()

	track, err := engine.Unconfirm(cmd.String("job"), cmd.String("track"))
	if err != nil {
		return err
	}
	return r.writeJSON(track, true)
}

// SyncReject rejects the current match and promotes the next candidate.
func (r *Runner) SyncReject(ctx context.Context, cmd *cli.Command) error {
	engine, closer, err := r.openEngine()
	if err != nil {
		return err
	}
	defer closer()

	track, err := engine.Reject(ctx, cmd.String("job"), cmd.String("track"))
	if err != nil {
		return err
	}

	if track.TargetRef == "" {
		r.writePlain("No remaining candidates for '%s'.\n", track.Title)
	} else {
		r.writePlain("Promoted: %s (%s)\n", track.TargetTitle, track.TargetRef)
	}
	return r.writeJSON(track, true)
}

// SyncSelect pins a specific candidate ref as the track's match.
func (r *Runner) SyncSelect(ctx context.Context, cmd *cli.Command) error {
	engine, closer, err := r.openEngine()
	if err != nil {
		return err
	}
	defer closer()

	track, err := engine.SelectMatch(cmd.String("job"), cmd.String("track"), cmd.String("ref"))
	if err != nil {
		return err
	}
	return r.writeJSON(track, true)
}

// SyncResolve resolves a destination URL into a candidate the user can
// then select as a match.
func (r *Runner) SyncResolve(ctx context.Context, cmd *cli.Command) error {
	engine, closer, err := r.openEngine()
	if err != nil {
		return err
	}
	defer closer()

	cand, err := engine.ResolveURL(ctx, cmd.String("job"), cmd.String("track"), cmd.String("url"))
	if err != nil {
		return err
	}

	r.writePlain("Resolved: %s - %s (%s)\n", cand.Artist, cand.Title, cand.Ref)
	r.writePlain("Run 'mediaplace sync select --job %s --track %s --ref %s' to use it.\n",
		cmd.String("job"), cmd.String("track"), cand.Ref)
	return nil
}

// SyncSkip excludes a track from the push.
func (r *Runner) SyncSkip(ctx context.Context, cmd *cli.Command) error {
	engine, closer, err := r.openEngine()
	if err != nil {
		return err
	}
	defer closer()

	track, err := engine.Skip(cmd.String("job"), cmd.String("track"))
	if err != nil {
		return err
	}
	return r.writePlain("Skipped '%s'.\n", track.Title)
}

// SyncUpload uploads an unmatched track's source content to the
// destination platform.
func (r *Runner) SyncUpload(ctx context.Context, cmd *cli.Command) error {
	engine, closer, err := r.openEngine()
	if err != nil {
		return err
	}
	defer closer()

	progressCh := make(chan tasks.ProgressUpdate, 10)
	go func() {
		for update := range progressCh {
			r.writePlain("⬆ %s\n", update.Message)
		}
	}()

	track, err := engine.Upload(ctx, progressCh, cmd.String("job"), cmd.String("track"))
	close(progressCh)
	if err != nil {
		return err
	}

	r.writePlain("Uploaded '%s' as %s\n", track.Title, track.TargetRef)
	return nil
}

// SyncPush commits eligible tracks to the destination playlist.
func (r *Runner) SyncPush(ctx context.Context, cmd *cli.Command) error {
	engine, closer, err := r.openEngine()
	if err != nil {
		return err
	}
	defer closer()

	progressCh := make(chan tasks.ProgressUpdate, 50)
	go func() {
		for update := range progressCh {
			r.writePlain("📝 %s\n", update.Message)
		}
	}()

	result, err := engine.Push(ctx, progressCh, cmd.String("job"), tasks.PushParams{
		TargetPlaylistID: cmd.String("target"),
		NewPlaylistName:  cmd.String("name"),
	})
	close(progressCh)
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Push Complete")
	r.writePlain("Playlist: %s (%s)\n", result.PlaylistName, result.PlaylistRef)
	r.writePlain("Pushed: %d tracks\n", len(result.Pushed))
	if result.AlreadyThere > 0 {
		r.writePlain("Already present: %d tracks\n", result.AlreadyThere)
	}
	return nil
}

// SyncExport writes the job's track report to a file.
func (r *Runner) SyncExport(ctx context.Context, cmd *cli.Command) error {
	engine, closer, err := r.openEngine()
	if err != nil {
		return err
	}
	defer closer()

	job, err := engine.GetJob(cmd.String("job"))
	if err != nil {
		return err
	}

	path, err := formatter.WriteExport(job, cmd.String("format"), cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("export written", "path", path)
	return r.writePlain("Exported to %s\n", path)
}

// SyncLog prints a per-status summary of the job.
func (r *Runner) SyncLog(ctx context.Context, cmd *cli.Command) error {
	engine, closer, err := r.openEngine()
	if err != nil {
		return err
	}
	defer closer()

	report, err := engine.Log(cmd.String("job"))
	if err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("Job %s (%s)", report.JobID, report.Status))
	r.writePlain("Tracks: %d\n", report.Total)
	for status, count := range report.Counts {
		r.writePlain("  %s: %d\n", status, count)
	}
	if len(report.Unsynced) > 0 {
		r.writePlain("\nNot in destination playlist:\n")
		for _, track := range report.Unsynced {
			r.writePlain("  %d. %s - %s (%s)\n", track.Position+1, track.Artist, track.Title, track.Status)
		}
	}
	return nil
}

func jobFlag() *cli.StringFlag {
	return &cli.StringFlag{Name: "job", Aliases: []string{"j"}, Usage: "Sync job ID", Required: true}
}

func trackFlag() *cli.StringFlag {
	return &cli.StringFlag{Name: "track", Aliases: []string{"t"}, Usage: "Track ID", Required: true}
}

// syncCommand handles the sync job lifecycle.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Manage playlist sync jobs",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a sync job for a source playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User ID", Required: true},
					&cli.StringFlag{Name: "source", Usage: "Source platform", Value: "soundcloud"},
					&cli.StringFlag{Name: "source-account", Usage: "Source account identifier"},
					&cli.StringFlag{Name: "dest", Usage: "Destination platform", Value: "youtube"},
					&cli.StringFlag{Name: "dest-account", Usage: "Destination account identifier"},
					&cli.StringFlag{Name: "playlist", Aliases: []string{"p"}, Usage: "Source playlist ID", Required: true},
				},
				Action: r.SyncCreate,
			},
			{
				Name:   "analyze",
				Usage:  "Fetch the source playlist and match its tracks",
				Flags:  []cli.Flag{jobFlag()},
				Action: r.SyncAnalyze,
			},
			{
				Name:   "status",
				Usage:  "Show the full job snapshot",
				Flags:  []cli.Flag{jobFlag()},
				Action: r.SyncStatus,
			},
			{
				Name:  "list",
				Usage: "List sync jobs for a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User ID", Required: true},
				},
				Action: r.SyncList,
			},
			{
				Name:   "stop",
				Usage:  "Cancel a running analysis",
				Flags:  []cli.Flag{jobFlag()},
				Action: r.SyncStop,
			},
			{
				Name:   "confirm",
				Usage:  "Confirm a track's proposed match",
				Flags:  []cli.Flag{jobFlag(), trackFlag()},
				Action: r.SyncConfirm,
			},
			{
				Name:   "confirm-all",
				Usage:  "Confirm every reviewable track",
				Flags:  []cli.Flag{jobFlag()},
				Action: r.SyncConfirmAll,
			},
			{
				Name:   "unconfirm",
				Usage:  "Withdraw a track confirmation",
				Flags:  []cli.Flag{jobFlag(), trackFlag()},
				Action: r.SyncUnconfirm,
			},
			{
				Name:   "reject",
				Usage:  "Reject the current match and try the next candidate",
				Flags:  []cli.Flag{jobFlag(), trackFlag()},
				Action: r.SyncReject,
			},
			{
				Name:  "select",
				Usage: "Pin a specific candidate as the match",
				Flags: []cli.Flag{
					jobFlag(), trackFlag(),
					&cli.StringFlag{Name: "ref", Usage: "Candidate ref on the destination platform", Required: true},
				},
				Action: r.SyncSelect,
			},
			{
				Name:  "resolve",
				Usage: "Resolve a destination URL into a selectable candidate",
				Flags: []cli.Flag{
					jobFlag(), trackFlag(),
					&cli.StringFlag{Name: "url", Usage: "Destination platform URL", Required: true},
				},
				Action: r.SyncResolve,
			},
			{
				Name:   "skip",
				Usage:  "Exclude a track from the push",
				Flags:  []cli.Flag{jobFlag(), trackFlag()},
				Action: r.SyncSkip,
			},
			{
				Name:   "upload",
				Usage:  "Upload an unmatched track to the destination",
				Flags:  []cli.Flag{jobFlag(), trackFlag()},
				Action: r.SyncUpload,
			},
			{
				Name:  "push",
				Usage: "Commit eligible tracks to the destination playlist",
				Flags: []cli.Flag{
					jobFlag(),
					&cli.StringFlag{Name: "target", Usage: "Existing destination playlist ID"},
					&cli.StringFlag{Name: "name", Usage: "Name for a new destination playlist"},
				},
				Action: r.SyncPush,
			},
			{
				Name:  "export",
				Usage: "Export the track report to a file",
				Flags: []cli.Flag{
					jobFlag(),
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "csv, markdown, txt, or json", Value: "csv"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output path"},
				},
				Action: r.SyncExport,
			},
			{
				Name:   "log",
				Usage:  "Show a per-status summary of the job",
				Flags:  []cli.Flag{jobFlag()},
				Action: r.SyncLog,
			},
		},
	}
}
