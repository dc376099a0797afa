package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/lan-dot-party/relkit/internal/channel"
	"github.com/lan-dot-party/relkit/internal/github"
	"github.com/lan-dot-party/relkit/internal/semver"
	"github.com/lan-dot-party/relkit/internal/sink"
	"github.com/lan-dot-party/relkit/internal/storage"
	"github.com/lan-dot-party/relkit/pkg/version"
)

// Response helpers

type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

type successResponse struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

type healthResponse struct {
	Status  string       `json:"status"`
	Version string       `json:"version"`
	Build   version.Info `json:"build"`
}

type versionResponse struct {
	Version    string `json:"version"`
	Base       string `json:"base"`
	Prerelease bool   `json:"prerelease"`
	Store      string `json:"store"`
}

type historyResponse struct {
	Events []storage.Event `json:"events"`
	Meta   struct {
		Total  int `json:"total"`
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	} `json:"meta"`
}

type channelResponse struct {
	Channel         channel.Channel `json:"channel"`
	Version         string          `json:"version"`
	Tag             string          `json:"tag"`
	URL             string          `json:"url,omitempty"`
	PublishedAt     time.Time       `json:"published_at"`
	Current         string          `json:"current,omitempty"`
	UpdateAvailable bool            `json:"update_available"`
}

const releasesCacheKey = "releases"

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{
		Error:   http.StatusText(status),
		Code:    status,
		Message: message,
	})
}

// Handlers

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: version.Version,
		Build:   version.Get(),
	})
}

// currentVersion reads the canonical version from the project store.
func (s *Server) currentVersion() (string, error) {
	return sink.ReadVersion(s.fullConfig.StorePath(), s.fullConfig.Project.StoreKey)
}

// handleGetVersion returns the canonical version of the project.
func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	v, err := s.currentVersion()
	if errors.Is(err, sink.ErrSinkMissing) {
		s.writeError(w, http.StatusNotFound, "Version store not found")
		return
	}
	if err != nil {
		s.logger.Error("Failed to read version store", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Failed to read version store")
		return
	}

	setStoreVersion(v)

	s.writeJSON(w, http.StatusOK, successResponse{
		Status: "ok",
		Data: versionResponse{
			Version:    v,
			Base:       semver.Base(v),
			Prerelease: semver.IsPrerelease(v),
			Store:      s.fullConfig.Project.Store,
		},
	})
}

// handleGetHistory returns recorded events with optional filtering.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.writeError(w, http.StatusServiceUnavailable, "History is disabled")
		return
	}

	filter := storage.EventFilter{}
	q := r.URL.Query()

	if kind := q.Get("kind"); kind != "" {
		filter.Kind = storage.Kind(kind)
	}

	if since := q.Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			filter.Since = t
		} else if d, err := time.ParseDuration(since); err == nil {
			filter.Since = time.Now().Add(-d)
		} else {
			s.writeError(w, http.StatusBadRequest, "Invalid since (RFC3339 time or duration)")
			return
		}
	}

	if until := q.Get("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid until (RFC3339 time)")
			return
		}
		filter.Until = t
	}

	filter.Limit = 100 // Default limit
	if limit := q.Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			filter.Limit = l
		}
	}

	if offset := q.Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil && o >= 0 {
			filter.Offset = o
		}
	}

	events, err := s.storage.ListEvents(r.Context(), filter)
	if err != nil {
		s.logger.Error("Failed to list events", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}
	if events == nil {
		events = []storage.Event{}
	}

	response := historyResponse{Events: events}
	response.Meta.Total = len(events)
	response.Meta.Limit = filter.Limit
	response.Meta.Offset = filter.Offset

	s.writeJSON(w, http.StatusOK, response)
}

// handleGetLatestHistory returns the most recent event of each kind.
func (s *Server) handleGetLatestHistory(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.writeError(w, http.StatusServiceUnavailable, "History is disabled")
		return
	}

	events, err := s.storage.LatestEvents(r.Context())
	if err != nil {
		s.logger.Error("Failed to get latest events", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve latest events")
		return
	}

	s.writeJSON(w, http.StatusOK, successResponse{
		Status: "ok",
		Data:   events,
	})
}

// handleGetEvent returns a single event by ID.
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.writeError(w, http.StatusServiceUnavailable, "History is disabled")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid event ID")
		return
	}

	event, err := s.storage.GetEvent(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	if err != nil {
		s.logger.Error("Failed to get event", zap.Int64("id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve event")
		return
	}

	s.writeJSON(w, http.StatusOK, successResponse{
		Status: "ok",
		Data:   event,
	})
}

// handleGetChannelLatest returns the release a device on the channel would
// be offered, and whether it differs from the project's current version.
func (s *Server) handleGetChannelLatest(w http.ResponseWriter, r *http.Request) {
	ch, err := channel.Parse(chi.URLParam(r, "channel"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.releases == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Release lookups are not configured")
		return
	}

	releases, err := s.listReleases(r, ch)
	if err != nil {
		s.logger.Error("Failed to list releases", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "Failed to retrieve releases")
		return
	}

	latest, ok := channel.Latest(ch, github.Versions(releases))
	if !ok {
		s.writeError(w, http.StatusNotFound, "No release published on channel "+string(ch))
		return
	}

	resp := channelResponse{Channel: ch, Version: latest}
	for _, rel := range releases {
		if rel.Version() == latest {
			resp.Tag = rel.TagName
			resp.URL = rel.HTMLURL
			resp.PublishedAt = rel.PublishedAt
			break
		}
	}
	if current, err := s.currentVersion(); err == nil {
		resp.Current = current
		resp.UpdateAvailable = channel.UpdateAvailable(current, latest)
	}

	s.writeJSON(w, http.StatusOK, successResponse{
		Status: "ok",
		Data:   resp,
	})
}

// listReleases serves releases from the cache, refreshing it on a miss.
func (s *Server) listReleases(r *http.Request, ch channel.Channel) ([]github.Release, error) {
	if cached, ok := s.cache.Get(releasesCacheKey); ok {
		observeReleaseLookup(ch, "cache")
		return cached.([]github.Release), nil
	}

	releases, err := s.releases.ListReleases(r.Context())
	if err != nil {
		return nil, err
	}
	s.cache.Set(releasesCacheKey, releases, gocache.DefaultExpiration)
	observeReleaseLookup(ch, "remote")
	return releases, nil
}
