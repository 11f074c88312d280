// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI drives the review phase of a single sync job:
//  1. [TrackReviewView] : Browse matched tracks, confirm/reject/skip each one
//  2. [PushConfirmView] : Confirm the push target before committing
//  3. [PushView] : Monitor real-time progress updates during the push
//  4. [ResultView] : Display the committed playlist and any unsynced tracks
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via typed message structs.
// Progress updates flow through a channel from the sync Engine, providing non-blocking status reporting during the push.
//
// Keyboard navigation uses vim-style bindings (j/k, c/x/r/s, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
