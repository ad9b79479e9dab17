package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-pkgz/rest"

	"github.com/papyrus-app/papyrus/pkg/domain"
	"github.com/papyrus-app/papyrus/pkg/store"
)

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, _ *http.Request) {
	rest.RenderJSON(w, rest.JSON{"status": "ok", "version": s.version, "time": time.Now().UTC()})
}

// listFeedsHandler returns all registered feeds
func (s *Server) listFeedsHandler(w http.ResponseWriter, r *http.Request) {
	feeds, err := s.store.ListFeeds(r.Context())
	if err != nil {
		s.renderError(w, err)
		return
	}
	rest.RenderJSON(w, feeds)
}

// createFeedHandler registers a new feed
func (s *Server) createFeedHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL  string `json:"url"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	feed := domain.Feed{URL: req.URL, Name: req.Name}
	if err := s.store.CreateFeed(r.Context(), &feed); err != nil {
		s.renderError(w, err)
		return
	}

	s.ranker.Invalidate()
	w.WriteHeader(http.StatusCreated)
	rest.RenderJSON(w, feed)
}

// deleteFeedHandler removes a feed and all its articles
func (s *Server) deleteFeedHandler(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	if err := s.store.DeleteFeed(r.Context(), url); err != nil {
		s.renderError(w, err)
		return
	}

	s.ranker.Invalidate()
	rest.RenderJSON(w, rest.JSON{"message": "feed deleted"})
}

// toggleFeedVisibilityHandler flips a feed's visibility flag
func (s *Server) toggleFeedVisibilityHandler(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	if err := s.store.ToggleFeedVisibility(r.Context(), url); err != nil {
		s.renderError(w, err)
		return
	}

	s.ranker.Invalidate()
	rest.RenderJSON(w, rest.JSON{"message": "feed visibility toggled"})
}

// articlesHandler returns one page of the ranked article listing
func (s *Server) articlesHandler(w http.ResponseWriter, r *http.Request) {
	pageNum, err := queryInt(r, "page", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	itemsPerPage, err := queryInt(r, "size", 10)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	refresh := r.URL.Query().Get("refresh") == "true"

	page, err := s.ranker.Ranked(r.Context(), pageNum, itemsPerPage, refresh)
	if err != nil {
		if pageNum < 0 || itemsPerPage < 1 {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.renderError(w, err)
		return
	}
	rest.RenderJSON(w, page)
}

// toggleLikeHandler flips an article's liked flag
func (s *Server) toggleLikeHandler(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	if err := s.store.ToggleLike(r.Context(), url); err != nil {
		s.renderError(w, err)
		return
	}

	s.ranker.InvalidateLikes()
	rest.RenderJSON(w, rest.JSON{"message": "like toggled"})
}

// proxyHandler fetches a feed URL and returns its raw XML body
func (s *Server) proxyHandler(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	body, err := s.fetcher.Fetch(r.Context(), url)
	if err != nil {
		http.Error(w, fmt.Sprintf("error fetching feed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write(body)
}

// renderError maps store errors onto HTTP statuses. Not-found is reported
// distinctly, everything else is a 500 with the underlying message.
func (s *Server) renderError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	log.Printf("[ERROR] request failed: %v", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, v)
	}
	return n, nil
}
