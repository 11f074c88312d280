// SoundCloud API implementation of [Service]
//
// Response types based on https://developers.soundcloud.com/docs/api/explorer
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/subnurb/mediaplace/internal/models"
	"github.com/subnurb/mediaplace/internal/shared"
)

const defaultSCBaseURL = "https://api.soundcloud.com"

// SoundCloudUser is the uploader embedded in track responses.
type SoundCloudUser struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	Permalink string `json:"permalink"`
}

// SoundCloudTrack represents a SoundCloud track.
type SoundCloudTrack struct {
	ID           int            `json:"id"`
	Title        string         `json:"title"`
	Duration     int            `json:"duration"` // milliseconds
	ArtworkURL   string         `json:"artwork_url"`
	PermalinkURL string         `json:"permalink_url"`
	ISRC         string         `json:"isrc,omitempty"`
	User         SoundCloudUser `json:"user"`
	Publisher    *struct {
		Artist string `json:"artist"`
	} `json:"publisher_metadata,omitempty"`
}

// SoundCloudPlaylist represents a SoundCloud playlist (called a "set").
type SoundCloudPlaylist struct {
	ID         int               `json:"id"`
	Title      string            `json:"title"`
	TrackCount int               `json:"track_count"`
	Sharing    string            `json:"sharing"`
	Tracks     []SoundCloudTrack `json:"tracks,omitempty"`
}

// SoundCloudService implements [Service] against the SoundCloud REST API.
type SoundCloudService struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewSoundCloudService creates a SoundCloud adapter with the given OAuth
// access token. Token acquisition and refresh happen elsewhere; the adapter
// only attaches it.
func NewSoundCloudService(baseURL, accessToken string) *SoundCloudService {
	if baseURL == "" {
		baseURL = defaultSCBaseURL
	}
	return &SoundCloudService{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  http.DefaultClient,
	}
}

func (s *SoundCloudService) Name() string {
	return "soundcloud"
}

// Artist picks the best available artist name for a track: publisher
// metadata first, then the uploader's full name, then the username.
func (t SoundCloudTrack) Artist() string {
	if t.Publisher != nil && t.Publisher.Artist != "" {
		return t.Publisher.Artist
	}
	if t.User.FullName != "" {
		return t.User.FullName
	}
	return t.User.Username
}

func (s *SoundCloudService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "OAuth "+s.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json; charset=utf-8")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAdapter, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: status 404", shared.ErrTrackNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: soundcloud API status %d", shared.ErrAdapter, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// ListPlaylists retrieves the account's playlists.
//
// Calls GET /me/playlists.
func (s *SoundCloudService) ListPlaylists(ctx context.Context) ([]Playlist, error) {
	var scPlaylists []SoundCloudPlaylist
	if err := s.doRequest(ctx, http.MethodGet, "/me/playlists?limit=50", nil, &scPlaylists); err != nil {
		return nil, err
	}

	playlists := make([]Playlist, len(scPlaylists))
	for i, sp := range scPlaylists {
		playlists[i] = Playlist{
			ID:         fmt.Sprintf("%d", sp.ID),
			Name:       sp.Title,
			TrackCount: sp.TrackCount,
			Public:     sp.Sharing == "public",
		}
	}

	return playlists, nil
}

// ListTracks retrieves a playlist's full track list in playlist order.
//
// Calls GET /playlists/{id}.
func (s *SoundCloudService) ListTracks(ctx context.Context, playlistID string) ([]Track, error) {
	var scPlaylist SoundCloudPlaylist
	endpoint := fmt.Sprintf("/playlists/%s?limit=200", url.PathEscape(playlistID))
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &scPlaylist); err != nil {
		return nil, err
	}

	tracks := make([]Track, len(scPlaylist.Tracks))
	for i, st := range scPlaylist.Tracks {
		tracks[i] = Track{
			ID:           fmt.Sprintf("%d", st.ID),
			Title:        st.Title,
			Artist:       st.Artist(),
			DurationMS:   st.Duration,
			ISRC:         st.ISRC,
			ArtworkURL:   st.ArtworkURL,
			PermalinkURL: st.PermalinkURL,
		}
	}

	return tracks, nil
}

// SearchTrack searches SoundCloud and returns candidates in API order.
//
// Calls GET /tracks?q=.
func (s *SoundCloudService) SearchTrack(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	if limit <= 0 {
		limit = 10
	}

	var scTracks []SoundCloudTrack
	endpoint := fmt.Sprintf("/tracks?q=%s&limit=%d", url.QueryEscape(query), limit)
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &scTracks); err != nil {
		return nil, err
	}

	candidates := make([]models.Candidate, len(scTracks))
	for i, st := range scTracks {
		candidates[i] = models.Candidate{
			Ref:         fmt.Sprintf("%d", st.ID),
			Title:       st.Title,
			Artist:      st.Artist(),
			DurationSec: st.Duration / 1000,
			URL:         st.PermalinkURL,
			ISRC:        st.ISRC,
		}
	}

	return candidates, nil
}

// ResolveURL resolves a permalink URL into a candidate.
//
// Calls GET /resolve?url=.
func (s *SoundCloudService) ResolveURL(ctx context.Context, rawURL string) (*models.Candidate, error) {
	var scTrack SoundCloudTrack
	endpoint := "/resolve?url=" + url.QueryEscape(rawURL)
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &scTrack); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrResolution, err)
	}
	if scTrack.ID == 0 {
		return nil, fmt.Errorf("%w: %s did not resolve to a track", shared.ErrResolution, rawURL)
	}

	return &models.Candidate{
		Ref:         fmt.Sprintf("%d", scTrack.ID),
		Title:       scTrack.Title,
		Artist:      scTrack.Artist(),
		DurationSec: scTrack.Duration / 1000,
		URL:         scTrack.PermalinkURL,
		ISRC:        scTrack.ISRC,
	}, nil
}

// CreatePlaylist creates an empty playlist and returns its ref.
//
// Calls POST /playlists.
func (s *SoundCloudService) CreatePlaylist(ctx context.Context, name string) (string, error) {
	body := map[string]any{
		"playlist": map[string]any{
			"title":   name,
			"sharing": "private",
		},
	}

	var created SoundCloudPlaylist
	if err := s.doRequest(ctx, http.MethodPost, "/playlists", body, &created); err != nil {
		return "", err
	}

	return fmt.Sprintf("%d", created.ID), nil
}

// AddTracksToPlaylist sets the playlist's track list to existing + new refs.
//
// SoundCloud replaces the whole list on PUT, so the current tracks are
// fetched first and the new refs appended.
func (s *SoundCloudService) AddTracksToPlaylist(ctx context.Context, playlistRef string, trackRefs []string) error {
	existing, err := s.PlaylistTrackRefs(ctx, playlistRef)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(existing))
	all := make([]map[string]string, 0, len(existing)+len(trackRefs))
	for _, ref := range existing {
		seen[ref] = true
		all = append(all, map[string]string{"id": ref})
	}
	for _, ref := range trackRefs {
		if !seen[ref] {
			all = append(all, map[string]string{"id": ref})
		}
	}

	body := map[string]any{"playlist": map[string]any{"tracks": all}}
	endpoint := fmt.Sprintf("/playlists/%s", url.PathEscape(playlistRef))
	return s.doRequest(ctx, http.MethodPut, endpoint, body, nil)
}

// PlaylistTrackRefs returns the refs already present in a playlist.
func (s *SoundCloudService) PlaylistTrackRefs(ctx context.Context, playlistRef string) ([]string, error) {
	var scPlaylist SoundCloudPlaylist
	endpoint := fmt.Sprintf("/playlists/%s?limit=200", url.PathEscape(playlistRef))
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &scPlaylist); err != nil {
		return nil, err
	}

	refs := make([]string, len(scPlaylist.Tracks))
	for i, t := range scPlaylist.Tracks {
		refs[i] = fmt.Sprintf("%d", t.ID)
	}
	return refs, nil
}

// UploadTrack is not supported on SoundCloud as a sync destination.
func (s *SoundCloudService) UploadTrack(ctx context.Context, req UploadRequest) (string, error) {
	return "", fmt.Errorf("soundcloud upload: %w", shared.ErrNotImplemented)
}
