// Package tasks orchestrates playlist sync jobs from source fetch to commit.
//
// # Job Lifecycle
//
// [Engine] owns the state machine: pending -> analyzing -> ready -> syncing
// -> done, with failed reachable from analyzing (source fetch error) and a
// push failure reverting to ready for retry.
//
//  1. [Engine.CreateJob] : registers a pending job for a source playlist
//  2. [Engine.Analyze] : fetches the source track list, then classifies
//     every track against the destination platform. Search and scoring fan
//     out across bounded workers with rate limiting; each result is
//     persisted individually so a stopped or crashed analysis resumes from
//     the tracks still pending.
//  3. Review ([Engine.Confirm], [Engine.Reject], [Engine.SelectMatch],
//     [Engine.Upload], [Engine.Skip], ...) : user-driven overrides, valid
//     while the job is ready or syncing.
//  4. [Engine.Push] : commits eligible tracks into the destination
//     playlist in source order, deduplicating against the playlist's
//     current contents.
//
// # Progress Reporting
//
// Long-running operations accept an optional channel of [ProgressUpdate].
// Sends are non-blocking so a slow consumer never stalls the engine; the
// authoritative view of progress is always the persisted job snapshot.
//
// # Concurrency
//
// All mutations of one job are serialized through a per-job mutex. Analysis
// workers only compute; the orchestrating goroutine applies and persists
// results one at a time, so snapshot readers never observe a partially
// applied track update.
package tasks
