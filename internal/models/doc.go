// Package models defines domain entities for the mediaplace sync service.
//
// The core entities are:
//   - [SyncJob] : one cross-platform playlist sync, owning its track records
//   - [SyncTrack] : a source track and its matching state within a job
//   - [Candidate] : a destination-platform search result scored against a source track
//
// Status enums drive the job state machine (pending → analyzing → ready →
// syncing → done, with failed as the retryable error state) and the per-track
// classification bands assigned by the matcher.
//
// The [Feedback] flag is deliberately independent of [TrackStatus]: an
// uncertain match becomes push-eligible only through explicit user
// confirmation, while a manual candidate pick (selectMatch) does not imply
// confirmation. Validate enforces the invariant that confirmed tracks always
// carry a target ref.
package models
