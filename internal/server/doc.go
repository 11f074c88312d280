// Package server provides the JSON API over the sync engine.
//
// The contract is polling based: analyze and push return 202 immediately
// and mutate the job in the background; GET /api/sync/{id} always returns
// an internally consistent snapshot.
//
// Error responses map the engine taxonomy to status codes: validation
// errors are 400, unknown jobs and tracks 404, wrong-status operations 409,
// URL resolution failures 422, and upstream platform failures 502.
package server
