// YouTube [Service] implementation
//
// Communicates with a local proxy server that wraps the YouTube Data API and
// search. The auth_file path is sent via the X-Auth-File header on each
// request.
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

const defaultYTBaseURL = "http://localhost:8080"

// YouTubeVideo represents a video in proxy responses.
type YouTubeVideo struct {
	VideoID     string `json:"videoId"`
	Title       string `json:"title"`
	Channel     string `json:"channel"`
	DurationSec int    `json:"duration_seconds"`
	URL         string `json:"url"`
	Thumbnail   string `json:"thumbnail"`
}

// YouTubePlaylist represents a playlist from the proxy.
type YouTubePlaylist struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Privacy    string `json:"privacy"`
	TrackCount int    `json:"trackCount"`
}

// YouTubeService implements the Service interface for YouTube via proxy.
type YouTubeService struct {
	baseURL    string
	authFile   string
	httpClient *http.Client
}

// NewYouTubeService creates a new YouTube service instance.
func NewYouTubeService(baseURL, authFile string) *YouTubeService {
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}

	return &YouTubeService{
		baseURL:    baseURL,
		authFile:   authFile,
		httpClient: http.DefaultClient,
	}
}

// Name returns the platform name.
func (y *YouTubeService) Name() string {
	return "youtube"
}

func (y *YouTubeService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
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

	req, err := http.NewRequestWithContext(ctx, method, y.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if y.authFile != "" {
		req.Header.Set("X-Auth-File", y.authFile)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAdapter, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
			return fmt.Errorf("%w: youtube proxy status %d: %s", shared.ErrAdapter, resp.StatusCode, errResp.Detail)
		}
		return fmt.Errorf("%w: youtube proxy status %d", shared.ErrAdapter, resp.StatusCode)
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
// Calls GET /api/library/playlists on the proxy.
func (y *YouTubeService) ListPlaylists(ctx context.Context) ([]Playlist, error) {
	var ytPlaylists []YouTubePlaylist
	if err := y.doRequest(ctx, http.MethodGet, "/api/library/playlists", nil, &ytPlaylists); err != nil {
		return nil, err
	}

	playlists := make([]Playlist, len(ytPlaylists))
	for i, yp := range ytPlaylists {
		playlists[i] = Playlist{
			ID:         yp.ID,
			Name:       yp.Title,
			TrackCount: yp.TrackCount,
			Public:     yp.Privacy == "PUBLIC",
		}
	}

	return playlists, nil
}

// ListTracks retrieves a playlist's videos in playlist order.
//
// Calls GET /api/playlists/{id}/items on the proxy.
func (y *YouTubeService) ListTracks(ctx context.Context, playlistID string) ([]Track, error) {
	var videos []YouTubeVideo
	endpoint := fmt.Sprintf("/api/playlists/%s/items", url.PathEscape(playlistID))
	if err := y.doRequest(ctx, http.MethodGet, endpoint, nil, &videos); err != nil {
		return nil, err
	}

	tracks := make([]Track, len(videos))
	for i, v := range videos {
		tracks[i] = Track{
			ID:           v.VideoID,
			Title:        v.Title,
			Artist:       v.Channel,
			DurationMS:   v.DurationSec * 1000,
			ArtworkURL:   v.Thumbnail,
			PermalinkURL: v.URL,
		}
	}

	return tracks, nil
}

// SearchTrack searches YouTube and returns candidates in result order.
//
// Calls GET /api/search on the proxy.
func (y *YouTubeService) SearchTrack(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	if limit <= 0 {
		limit = 10
	}

	var results []YouTubeVideo
	endpoint := fmt.Sprintf("/api/search?q=%s&limit=%d", url.QueryEscape(query), limit)
	if err := y.doRequest(ctx, http.MethodGet, endpoint, nil, &results); err != nil {
		return nil, err
	}

	candidates := make([]models.Candidate, 0, len(results))
	for _, v := range results {
		if v.VideoID == "" {
			continue
		}
		candidates = append(candidates, models.Candidate{
			Ref:         v.VideoID,
			Title:       v.Title,
			Artist:      v.Channel,
			DurationSec: v.DurationSec,
			URL:         v.URL,
		})
	}

	return candidates, nil
}

// ResolveURL resolves a video URL into a candidate.
//
// Calls GET /api/resolve on the proxy.
func (y *YouTubeService) ResolveURL(ctx context.Context, rawURL string) (*models.Candidate, error) {
	var video YouTubeVideo
	endpoint := "/api/resolve?url=" + url.QueryEscape(rawURL)
	if err := y.doRequest(ctx, http.MethodGet, endpoint, nil, &video); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrResolution, err)
	}
	if video.VideoID == "" {
		return nil, fmt.Errorf("%w: %s did not resolve to a video", shared.ErrResolution, rawURL)
	}

	return &models.Candidate{
		Ref:         video.VideoID,
		Title:       video.Title,
		Artist:      video.Channel,
		DurationSec: video.DurationSec,
		URL:         video.URL,
	}, nil
}

// CreatePlaylist creates a private playlist and returns its ref.
//
// Calls POST /api/playlists on the proxy.
func (y *YouTubeService) CreatePlaylist(ctx context.Context, name string) (string, error) {
	body := map[string]string{
		"title":          name,
		"privacy_status": "PRIVATE",
	}

	var created struct {
		PlaylistID string `json:"playlist_id"`
	}
	if err := y.doRequest(ctx, http.MethodPost, "/api/playlists", body, &created); err != nil {
		return "", err
	}
	if created.PlaylistID == "" {
		return "", fmt.Errorf("%w: proxy did not return a playlist id", shared.ErrAdapter)
	}

	return created.PlaylistID, nil
}

// AddTracksToPlaylist appends video refs to a playlist in order.
//
// Calls POST /api/playlists/{id}/items on the proxy.
func (y *YouTubeService) AddTracksToPlaylist(ctx context.Context, playlistRef string, trackRefs []string) error {
	body := map[string][]string{"video_ids": trackRefs}
	endpoint := fmt.Sprintf("/api/playlists/%s/items", url.PathEscape(playlistRef))
	return y.doRequest(ctx, http.MethodPost, endpoint, body, nil)
}

// PlaylistTrackRefs returns the video refs already present in a playlist.
func (y *YouTubeService) PlaylistTrackRefs(ctx context.Context, playlistRef string) ([]string, error) {
	var videos []YouTubeVideo
	endpoint := fmt.Sprintf("/api/playlists/%s/items", url.PathEscape(playlistRef))
	if err := y.doRequest(ctx, http.MethodGet, endpoint, nil, &videos); err != nil {
		return nil, err
	}

	refs := make([]string, len(videos))
	for i, v := range videos {
		refs[i] = v.VideoID
	}
	return refs, nil
}

// UploadTrack asks the proxy to fetch the source content and upload it as a
// new video, returning the new video ref.
//
// Calls POST /api/uploads on the proxy. The proxy owns the media pipeline;
// this call only hands over metadata.
func (y *YouTubeService) UploadTrack(ctx context.Context, req UploadRequest) (string, error) {
	body := map[string]string{
		"source_track_id": req.SourceTrackID,
		"title":           req.Title,
		"artist":          req.Artist,
		"permalink_url":   req.PermalinkURL,
	}

	var uploaded struct {
		VideoID string `json:"video_id"`
	}
	if err := y.doRequest(ctx, http.MethodPost, "/api/uploads", body, &uploaded); err != nil {
		return "", err
	}
	if uploaded.VideoID == "" {
		return "", fmt.Errorf("%w: proxy did not return a video id", shared.ErrAdapter)
	}

	return uploaded.VideoID, nil
}
