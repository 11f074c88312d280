package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/subnurb/mediaplace/internal/shared"
)

func TestSoundCloudService(t *testing.T) {
	t.Run("NewSoundCloudService", func(t *testing.T) {
		t.Run("With Empty BaseURL", func(t *testing.T) {
			srv := NewSoundCloudService("", "token")
			if srv.baseURL != defaultSCBaseURL {
				t.Errorf("expected default baseURL %s, got %s", defaultSCBaseURL, srv.baseURL)
			}
		})

		t.Run("Name", func(t *testing.T) {
			srv := NewSoundCloudService("", "token")
			if srv.Name() != "soundcloud" {
				t.Errorf("expected name 'soundcloud', got %s", srv.Name())
			}
		})
	})

	t.Run("Artist", func(t *testing.T) {
		tc := []struct {
			name  string
			track SoundCloudTrack
			want  string
		}{
			{
				name: "Publisher Metadata Preferred",
				track: SoundCloudTrack{
					User: SoundCloudUser{Username: "uploader", FullName: "Up Loader"},
					Publisher: &struct {
						Artist string `json:"artist"`
					}{Artist: "Real Artist"},
				},
				want: "Real Artist",
			},
			{
				name:  "Full Name Fallback",
				track: SoundCloudTrack{User: SoundCloudUser{Username: "uploader", FullName: "Up Loader"}},
				want:  "Up Loader",
			},
			{
				name:  "Username Last Resort",
				track: SoundCloudTrack{User: SoundCloudUser{Username: "uploader"}},
				want:  "uploader",
			},
		}

		for _, c := range tc {
			t.Run(c.name, func(t *testing.T) {
				if got := c.track.Artist(); got != c.want {
					t.Errorf("expected artist %q, got %q", c.want, got)
				}
			})
		}
	})

	t.Run("ListPlaylists", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/me/playlists" {
				t.Errorf("expected path '/me/playlists', got %s", r.URL.Path)
			}
			if auth := r.Header.Get("Authorization"); auth != "OAuth test-token" {
				t.Errorf("expected OAuth header, got %q", auth)
			}

			json.NewEncoder(w).Encode([]SoundCloudPlaylist{
				{ID: 101, Title: "Morning Mix", TrackCount: 12, Sharing: "public"},
				{ID: 102, Title: "Private Stash", TrackCount: 3, Sharing: "private"},
			})
		}))
		defer server.Close()

		srv := NewSoundCloudService(server.URL, "test-token")
		playlists, err := srv.ListPlaylists(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(playlists) != 2 {
			t.Fatalf("expected 2 playlists, got %d", len(playlists))
		}
		if playlists[0].ID != "101" || playlists[0].Name != "Morning Mix" {
			t.Errorf("unexpected first playlist: %+v", playlists[0])
		}
		if !playlists[0].Public || playlists[1].Public {
			t.Error("expected sharing to map to Public")
		}
	})

	t.Run("ListTracks", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/playlists/101" {
				t.Errorf("expected path '/playlists/101', got %s", r.URL.Path)
			}
			json.NewEncoder(w).Encode(SoundCloudPlaylist{
				ID: 101,
				Tracks: []SoundCloudTrack{
					{ID: 1, Title: "First", Duration: 180000, ISRC: "USRC17600001", User: SoundCloudUser{Username: "a"}},
					{ID: 2, Title: "Second", Duration: 240000, User: SoundCloudUser{Username: "b"}},
				},
			})
		}))
		defer server.Close()

		srv := NewSoundCloudService(server.URL, "token")
		tracks, err := srv.ListTracks(context.Background(), "101")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(tracks))
		}
		if tracks[0].ID != "1" || tracks[0].DurationMS != 180000 || tracks[0].ISRC != "USRC17600001" {
			t.Errorf("unexpected first track: %+v", tracks[0])
		}
	})

	t.Run("SearchTrack", func(t *testing.T) {
		t.Run("Returns Candidates In API Order", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("q"); got != "m83 midnight city" {
					t.Errorf("expected query 'm83 midnight city', got %q", got)
				}
				if got := r.URL.Query().Get("limit"); got != "10" {
					t.Errorf("expected default limit 10, got %q", got)
				}
				json.NewEncoder(w).Encode([]SoundCloudTrack{
					{ID: 7, Title: "Midnight City", Duration: 243000, PermalinkURL: "https://soundcloud.com/m83/midnight-city", User: SoundCloudUser{Username: "m83"}},
					{ID: 8, Title: "Midnight City (Remix)", Duration: 301000, User: SoundCloudUser{Username: "someone"}},
				})
			}))
			defer server.Close()

			srv := NewSoundCloudService(server.URL, "token")
			candidates, err := srv.SearchTrack(context.Background(), "m83 midnight city", 0)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(candidates) != 2 {
				t.Fatalf("expected 2 candidates, got %d", len(candidates))
			}
			if candidates[0].Ref != "7" || candidates[0].DurationSec != 243 {
				t.Errorf("unexpected first candidate: %+v", candidates[0])
			}
		})

		t.Run("Adapter Error On Server Failure", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			}))
			defer server.Close()

			srv := NewSoundCloudService(server.URL, "token")
			_, err := srv.SearchTrack(context.Background(), "anything", 5)
			if !errors.Is(err, shared.ErrAdapter) {
				t.Errorf("expected ErrAdapter, got %v", err)
			}
		})
	})

	t.Run("ResolveURL", func(t *testing.T) {
		t.Run("Successful Resolution", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/resolve" {
					t.Errorf("expected path '/resolve', got %s", r.URL.Path)
				}
				json.NewEncoder(w).Encode(SoundCloudTrack{
					ID: 55, Title: "Found", Duration: 200000,
					PermalinkURL: "https://soundcloud.com/x/found",
					User:         SoundCloudUser{Username: "x"},
				})
			}))
			defer server.Close()

			srv := NewSoundCloudService(server.URL, "token")
			cand, err := srv.ResolveURL(context.Background(), "https://soundcloud.com/x/found")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if cand.Ref != "55" || cand.Title != "Found" {
				t.Errorf("unexpected candidate: %+v", cand)
			}
		})

		t.Run("Resolution Error On 404", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}))
			defer server.Close()

			srv := NewSoundCloudService(server.URL, "token")
			_, err := srv.ResolveURL(context.Background(), "https://soundcloud.com/nope")
			if !errors.Is(err, shared.ErrResolution) {
				t.Errorf("expected ErrResolution, got %v", err)
			}
		})

		t.Run("Resolution Error On Non-Track", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"kind": "user"})
			}))
			defer server.Close()

			srv := NewSoundCloudService(server.URL, "token")
			_, err := srv.ResolveURL(context.Background(), "https://soundcloud.com/some-user")
			if !errors.Is(err, shared.ErrResolution) {
				t.Errorf("expected ErrResolution, got %v", err)
			}
		})
	})

	t.Run("CreatePlaylist", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/playlists" {
				t.Errorf("expected POST /playlists, got %s %s", r.Method, r.URL.Path)
			}

			var body map[string]map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if body["playlist"]["title"] != "New List" {
				t.Errorf("expected title 'New List', got %v", body["playlist"]["title"])
			}
			if body["playlist"]["sharing"] != "private" {
				t.Errorf("expected private sharing, got %v", body["playlist"]["sharing"])
			}

			json.NewEncoder(w).Encode(SoundCloudPlaylist{ID: 909, Title: "New List"})
		}))
		defer server.Close()

		srv := NewSoundCloudService(server.URL, "token")
		ref, err := srv.CreatePlaylist(context.Background(), "New List")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if ref != "909" {
			t.Errorf("expected ref '909', got %s", ref)
		}
	})

	t.Run("AddTracksToPlaylist", func(t *testing.T) {
		t.Run("Appends To Existing Without Duplicates", func(t *testing.T) {
			var putBody map[string]map[string][]map[string]string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.Method {
				case http.MethodGet:
					json.NewEncoder(w).Encode(SoundCloudPlaylist{
						ID:     77,
						Tracks: []SoundCloudTrack{{ID: 1}, {ID: 2}},
					})
				case http.MethodPut:
					if r.URL.Path != "/playlists/77" {
						t.Errorf("expected PUT /playlists/77, got %s", r.URL.Path)
					}
					json.NewDecoder(r.Body).Decode(&putBody)
					w.WriteHeader(http.StatusOK)
				}
			}))
			defer server.Close()

			srv := NewSoundCloudService(server.URL, "token")
			err := srv.AddTracksToPlaylist(context.Background(), "77", []string{"2", "3"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			got := putBody["playlist"]["tracks"]
			if len(got) != 3 {
				t.Fatalf("expected 3 tracks in PUT body, got %d", len(got))
			}
			want := []string{"1", "2", "3"}
			for i, id := range want {
				if got[i]["id"] != id {
					t.Errorf("expected track %d to be %s, got %s", i, id, got[i]["id"])
				}
			}
		})
	})

	t.Run("UploadTrack", func(t *testing.T) {
		srv := NewSoundCloudService("", "token")
		_, err := srv.UploadTrack(context.Background(), UploadRequest{Title: "x"})
		if !errors.Is(err, shared.ErrNotImplemented) {
			t.Errorf("expected ErrNotImplemented, got %v", err)
		}
	})
}
