package services

import (
	"context"
	"fmt"

	"github.com/subnurb/mediaplace/internal/models"
	"github.com/subnurb/mediaplace/internal/shared"
)

// Service is the platform adapter capability surface. The sync engine is
// platform-agnostic: it never branches on platform identity beyond picking
// an adapter instance from the [Registry].
type Service interface {
	// Name returns the platform name (e.g. "soundcloud", "youtube").
	Name() string

	// ListPlaylists retrieves the account's playlists.
	ListPlaylists(ctx context.Context) ([]Playlist, error)

	// ListTracks retrieves a playlist's full track list in playlist order.
	ListTracks(ctx context.Context, playlistID string) ([]Track, error)

	// SearchTrack searches the platform and returns ranked candidates.
	SearchTrack(ctx context.Context, query string, limit int) ([]models.Candidate, error)

	// ResolveURL resolves an arbitrary platform URL into a candidate.
	ResolveURL(ctx context.Context, url string) (*models.Candidate, error)

	// CreatePlaylist creates an empty playlist and returns its ref.
	CreatePlaylist(ctx context.Context, name string) (string, error)

	// AddTracksToPlaylist appends track refs to a playlist in order.
	AddTracksToPlaylist(ctx context.Context, playlistRef string, trackRefs []string) error

	// PlaylistTrackRefs returns the refs already present in a playlist.
	PlaylistTrackRefs(ctx context.Context, playlistRef string) ([]string, error)

	// UploadTrack uploads source content to the platform out-of-band and
	// returns the new track ref.
	UploadTrack(ctx context.Context, req UploadRequest) (string, error)
}

// Playlist represents a playlist on any platform.
type Playlist struct {
	ID         string
	Name       string
	TrackCount int
	Public     bool
}

// Track represents a source track on any platform.
type Track struct {
	ID           string
	Title        string
	Artist       string
	DurationMS   int
	ISRC         string
	ArtworkURL   string
	PermalinkURL string
}

// UploadRequest describes a source track to upload to the destination
// platform. The actual media transfer is delegated to the adapter.
type UploadRequest struct {
	SourceTrackID string
	Title         string
	Artist        string
	PermalinkURL  string
}

// Registry maps platform names to adapter instances.
type Registry struct {
	adapters map[string]Service
}

// NewRegistry creates a Registry from the given adapters, keyed by Name().
func NewRegistry(adapters ...Service) *Registry {
	r := &Registry{adapters: make(map[string]Service, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Register adds or replaces an adapter.
func (r *Registry) Register(s Service) {
	r.adapters[s.Name()] = s
}

// Get returns the adapter for a platform name.
func (r *Registry) Get(platform string) (Service, error) {
	s, ok := r.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("%w: no adapter registered for platform %q", shared.ErrServiceUnavailable, platform)
	}
	return s, nil
}
