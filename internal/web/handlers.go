package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/musicard/musicard/internal/images"
	"github.com/musicard/musicard/internal/profile"
	"github.com/musicard/musicard/internal/store"
)

// maxUploadBody bounds multipart uploads a little above the image size cap
// to leave room for multipart framing.
const maxUploadBody = images.MaxImageSize + 64*1024

// handleConfig reports client-facing configuration. The type parameter
// selects a view: "admin" returns the allow-list, "spotify" the client ID,
// anything else the feature flags.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("type") {
	case "admin":
		respondJSON(w, http.StatusOK, map[string]any{
			"admins": s.cfg.Admin.AllowList,
		})
	case "spotify":
		respondJSON(w, http.StatusOK, map[string]any{
			"clientId":   s.cfg.Spotify.ClientID,
			"configured": s.cfg.Spotify.ClientID != "",
		})
	default:
		respondJSON(w, http.StatusOK, map[string]any{
			"baseUrl": s.cfg.Server.BaseURL,
			"features": map[string]bool{
				"spotifySearch": s.cfg.Features.SpotifySearch,
				"youtubeSearch": s.cfg.Features.YouTubeSearch,
				"imageUpload":   s.cfg.Features.ImageUpload,
			},
			"storage": s.cfg.Storage.Backend,
		})
	}
}

// handleDB runs admin database operations selected by the action parameter.
func (s *Server) handleDB(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		respondError(w, http.StatusServiceUnavailable, "postgres backend not configured")
		return
	}

	ctx := r.Context()
	switch r.URL.Query().Get("action") {
	case "init":
		if err := s.db.Init(ctx); err != nil {
			s.logger.Error("schema init failed", "error", err)
			respondError(w, http.StatusInternalServerError, "schema init failed")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "initialized"})

	case "migrate":
		payload, err := io.ReadAll(io.LimitReader(r.Body, 32<<20))
		if err != nil {
			respondError(w, http.StatusBadRequest, "reading migration payload")
			return
		}
		count, err := s.db.Migrate(ctx, payload)
		if err != nil {
			s.logger.Error("migration failed", "error", err)
			respondError(w, http.StatusBadRequest, "migration failed: "+err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]int{"migrated": count})

	case "users":
		profiles, err := s.db.Profiles().GetAll(ctx)
		if err != nil {
			s.logger.Error("listing users failed", "error", err)
			respondError(w, http.StatusInternalServerError, "listing users failed")
			return
		}
		usernames := make([]string, 0, len(profiles))
		for username := range profiles {
			usernames = append(usernames, username)
		}
		sort.Strings(usernames)
		respondJSON(w, http.StatusOK, map[string]any{"users": usernames})

	case "stats":
		stats, err := s.db.Stats(ctx)
		if err != nil {
			s.logger.Error("collecting stats failed", "error", err)
			respondError(w, http.StatusInternalServerError, "collecting stats failed")
			return
		}
		respondJSON(w, http.StatusOK, stats)

	default:
		respondError(w, http.StatusBadRequest, "unknown action")
	}
}

// handleListProfiles returns all public profiles.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	result, err := s.store.LoadAll(r.Context())
	if err != nil {
		s.logger.Error("loading profiles failed", "error", err)
		respondError(w, http.StatusInternalServerError, "loading profiles failed")
		return
	}

	public := make([]*profile.Profile, 0, len(result.Value))
	for _, p := range result.Value {
		if p.Public {
			public = append(public, p)
		}
	}
	sort.Slice(public, func(i, j int) bool { return public[i].Username < public[j].Username })

	respondJSON(w, http.StatusOK, map[string]any{
		"profiles": public,
		"source":   result.Source,
	})
}

// handleGetProfile returns a single profile by username.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	result, err := s.store.Load(r.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "profile not found")
			return
		}
		s.logger.Error("loading profile failed", "username", username, "error", err)
		respondError(w, http.StatusInternalServerError, "loading profile failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"profile": result.Value,
		"source":  result.Source,
	})
}

// handleSaveProfile creates or updates a profile. Callers may only write
// their own profile unless their session carries the admin claim.
func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var p profile.Profile
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, "invalid profile payload")
		return
	}
	if err := p.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := claimsFrom(r)
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "missing session")
		return
	}
	if !claims.Admin && claims.Username != p.Username {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}

	if s.relay != nil && s.cfg.Features.ImageUpload {
		s.relocateImages(r.Context(), &p)
	}

	source, err := s.store.Save(r.Context(), &p)
	if err != nil {
		s.logger.Error("saving profile failed", "username", p.Username, "error", err)
		respondError(w, http.StatusInternalServerError, "saving profile failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"profile": &p,
		"source":  source,
	})
}

// relocateImages pulls externally hosted profile images into blob storage,
// best effort. Failures keep the original URLs.
func (s *Server) relocateImages(ctx context.Context, p *profile.Profile) {
	if external(p.IconURL) {
		if res, err := s.relay.UploadFromURL(ctx, p.IconURL, p.Username, images.ClassIcon, imageSource(p.IconURL)); err == nil {
			p.IconURL = res.URL
		}
	}
	for i := range p.Songs {
		cover := p.Songs[i].CoverURL
		if !external(cover) {
			continue
		}
		if res, err := s.relay.UploadFromURL(ctx, cover, p.Username, images.ClassAlbum, imageSource(cover)); err == nil {
			p.Songs[i].CoverURL = res.URL
		}
	}
}

// external reports whether a URL points outside this application.
func external(url string) bool {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return false
	}
	return !strings.Contains(url, images.URLPrefix)
}

// imageSource guesses which provider hosts a cover-art URL.
func imageSource(url string) string {
	switch {
	case strings.Contains(url, "scdn.co") || strings.Contains(url, "spotifycdn"):
		return images.SourceSpotify
	case strings.Contains(url, "last.fm") || strings.Contains(url, "lastfm"):
		return images.SourceLastFM
	default:
		return images.SourceManual
	}
}

// handleIncrementViews bumps a profile's view counter.
func (s *Server) handleIncrementViews(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	source, err := s.store.IncrementViews(r.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "profile not found")
			return
		}
		s.logger.Error("incrementing views failed", "username", username, "error", err)
		respondError(w, http.StatusInternalServerError, "incrementing views failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"source": source,
	})
}

// handleDeleteProfile removes a profile. Admin only.
func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	source, err := s.store.Delete(r.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "profile not found")
			return
		}
		s.logger.Error("deleting profile failed", "username", username, "error", err)
		respondError(w, http.StatusInternalServerError, "deleting profile failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "deleted",
		"source": source,
	})
}

// handleSearchMusic searches for tracks across the configured providers.
func (s *Server) handleSearchMusic(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "missing query parameter")
		return
	}
	results, err := s.search.SearchMusic(r.Context(), query)
	if err != nil {
		s.logger.Error("music search failed", "query", query, "error", err)
		respondError(w, http.StatusBadGateway, "music search failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"results":   results,
		"providers": s.search.AvailableProviders(),
	})
}

// handleSearchAlbums searches for albums across the configured providers.
func (s *Server) handleSearchAlbums(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "missing query parameter")
		return
	}
	results, err := s.search.SearchAlbums(r.Context(), query)
	if err != nil {
		s.logger.Error("album search failed", "query", query, "error", err)
		respondError(w, http.StatusBadGateway, "album search failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleYouTubeSearch proxies a search against the YouTube Data API.
func (s *Server) handleYouTubeSearch(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Features.YouTubeSearch {
		respondError(w, http.StatusNotFound, "youtube search disabled")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "missing query parameter")
		return
	}

	maxResults := 0
	if raw := r.URL.Query().Get("maxResults"); raw != "" {
		maxResults, _ = strconv.Atoi(raw)
	}

	videos, err := s.youtube.Search(r.Context(), query, maxResults)
	if err != nil {
		s.logger.Error("youtube search failed", "query", query, "error", err)
		respondError(w, http.StatusBadGateway, "youtube search failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"videos": videos})
}

// handleUploadImage accepts a multipart image and forwards it into blob
// storage. The session username becomes the image owner.
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Features.ImageUpload {
		respondError(w, http.StatusNotFound, "image upload disabled")
		return
	}

	claims := claimsFrom(r)
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "missing session")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing image field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, images.MaxImageSize+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "reading image")
		return
	}

	class := images.ClassIcon
	if r.FormValue("class") == string(images.ClassAlbum) {
		class = images.ClassAlbum
	}

	result, err := s.relay.Upload(r.Context(), data, header.Header.Get("Content-Type"), claims.Username, class)
	if err != nil {
		switch {
		case errors.Is(err, images.ErrInvalidFormat):
			respondError(w, http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, images.ErrTooLarge):
			respondError(w, http.StatusRequestEntityTooLarge, err.Error())
		default:
			s.logger.Error("image upload failed", "owner", claims.Username, "error", err)
			respondError(w, http.StatusInternalServerError, "image upload failed")
		}
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleDeleteImage removes a previously uploaded image by URL. Uploads
// are stored under the owner's username, and only the owner or an admin
// may delete them.
func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		respondError(w, http.StatusBadRequest, "missing url parameter")
		return
	}
	claims := claimsFrom(r)
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "missing session")
		return
	}
	if !claims.Admin && !ownsBlob(url, claims.Username) {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}
	if err := s.relay.Delete(r.Context(), url); err != nil {
		if errors.Is(err, images.ErrNotStored) {
			respondError(w, http.StatusNotFound, "image not found")
			return
		}
		s.logger.Error("image delete failed", "url", url, "error", err)
		respondError(w, http.StatusInternalServerError, "image delete failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ownsBlob reports whether a blob URL sits under the username's prefix.
// Stored object paths are owner/class/name.
func ownsBlob(url, username string) bool {
	idx := strings.Index(url, images.URLPrefix)
	if idx < 0 {
		return false
	}
	rest := url[idx+len(images.URLPrefix):]
	return strings.HasPrefix(rest, username+"/")
}

// handleCleanupImages purges blob objects older than the purge window.
// Admin only. An optional days parameter overrides the window.
func (s *Server) handleCleanupImages(w http.ResponseWriter, r *http.Request) {
	days := int(images.PurgeTTL.Hours() / 24)
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "invalid days parameter")
			return
		}
		days = parsed
	}

	result, err := s.relay.CleanupOlderThan(r.Context(), days)
	if err != nil {
		s.logger.Error("image cleanup failed", "error", err)
		respondError(w, http.StatusInternalServerError, "image cleanup failed")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleImageStats reports blob object count and total size.
func (s *Server) handleImageStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.relay.Stats(r.Context())
	if err != nil {
		s.logger.Error("image stats failed", "error", err)
		respondError(w, http.StatusInternalServerError, "image stats failed")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// handleAuthLogin starts the Spotify authorization flow and redirects the
// browser to the provider consent page.
func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if s.spotify == nil {
		respondError(w, http.StatusServiceUnavailable, "spotify not configured")
		return
	}
	authURL, err := s.spotify.Begin()
	if err != nil {
		s.logger.Error("starting authorization failed", "error", err)
		respondError(w, http.StatusInternalServerError, "starting authorization failed")
		return
	}
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// handleAuthCallback completes the authorization code exchange.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if s.spotify == nil {
		respondError(w, http.StatusServiceUnavailable, "spotify not configured")
		return
	}
	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		respondError(w, http.StatusBadRequest, "authorization denied: "+errParam)
		return
	}
	code := q.Get("code")
	if code == "" {
		respondError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	if _, err := s.spotify.Exchange(r.Context(), q.Get("state"), code); err != nil {
		s.logger.Error("token exchange failed", "error", err)
		respondError(w, http.StatusBadGateway, "token exchange failed: "+err.Error())
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// tokenRequest is the POST /api/auth/token payload.
type tokenRequest struct {
	Username string `json:"username"`
}

// handleIssueToken issues a signed session token. Allow-list membership
// fixes the admin claim at issue time.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid token request")
		return
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" {
		respondError(w, http.StatusBadRequest, "missing username")
		return
	}

	admin := s.cfg.Admin.IsAdmin(username)
	token, err := s.issuer.Issue(username, admin)
	if err != nil {
		s.logger.Error("issuing token failed", "username", username, "error", err)
		respondError(w, http.StatusInternalServerError, "issuing token failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"username":  username,
		"admin":     admin,
		"expiresIn": int(sessionTTL.Seconds()),
	})
}
