// Package services contains the platform adapter layer.
//
// Each adapter implements the [Service] interface: playlist listing, track
// listing, search, URL resolution, playlist creation and track insertion,
// and (where the platform supports it) track upload. The sync engine talks
// to adapters only through the interface, looked up by platform name in a
// [Registry].
//
// SoundCloud is reached directly over its HTTP API with a bearer token.
// YouTube is reached through a local proxy server that owns the platform's
// auth and media handling.
package services
