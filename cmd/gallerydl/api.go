package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gallerydl/gallery"
)

func newRouter(svc *gallery.Service, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))
	r.Use(cors)

	api := &apiServer{svc: svc, logger: logger}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Post("/extract", api.handleExtract)
		r.Post("/search", api.handleSearch)
		r.Get("/progress", api.handleListProgress)
		r.Post("/progress", api.handleUpdateProgress)
		r.Get("/galleries", api.handleGalleries)
		r.Get("/galleries/{id}", api.handleGalleryDetail)
	})
	return r
}

// cors allows the browser UI, served from another origin, to call the API.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type apiServer struct {
	svc    *gallery.Service
	logger *slog.Logger
}

func (s *apiServer) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.svc.ExtractGallery(r.Context(), req.URL)
	if err != nil {
		s.writeServiceError(w, "extract", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"galleryId": res.GalleryID,
		"stats": map[string]int{
			"imagesFound": res.ImagesFound,
			"videosFound": res.VideosFound,
			"imagesSaved": res.ImagesSaved,
			"videosSaved": res.VideosSaved,
		},
	})
}

func (s *apiServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string `json:"query"`
		MediaType string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.svc.Search(r.Context(), req.Query, req.MediaType)
	if err != nil {
		s.writeServiceError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *apiServer) handleListProgress(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Progress(r.Context())
	if err != nil {
		s.writeServiceError(w, "progress", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *apiServer) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
		Progress int    `json:"progress"`
		Status   string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.svc.UpdateProgress(r.Context(), req.ID, req.Filename, req.Progress, req.Status); err != nil {
		s.writeServiceError(w, "progress update", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *apiServer) handleGalleries(w http.ResponseWriter, r *http.Request) {
	f := gallery.GalleryFilter{
		MinVideos:   queryInt(r, "minVideos", 0),
		MaxVideos:   queryInt(r, "maxVideos", 0),
		MinImages:   queryInt(r, "minImages", 0),
		MaxImages:   queryInt(r, "maxImages", 0),
		MinDuration: int64(queryInt(r, "minDuration", 0)),
		MaxDuration: int64(queryInt(r, "maxDuration", 0)),
		MinFileSize: int64(queryInt(r, "minFileSize", 0)),
		MaxFileSize: int64(queryInt(r, "maxFileSize", 0)),
		SearchTerm:  r.URL.Query().Get("searchTerm"),
		SortBy:      gallery.SortKey(r.URL.Query().Get("sortBy")),
		Page:        queryInt(r, "page", 1),
		PerPage:     queryInt(r, "perPage", 0),
	}
	page, err := s.svc.Galleries(r.Context(), f)
	if err != nil {
		s.writeServiceError(w, "galleries", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *apiServer) handleGalleryDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.GalleryDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, "gallery detail", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// writeServiceError maps service errors onto status codes: caller mistakes
// are 4xx, everything else is a 502/500 depending on where it failed.
func (s *apiServer) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, gallery.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, gallery.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		s.logger.Error("api: "+op+" failed", "error", err)
		var pe *gallery.PersistenceError
		if errors.As(err, &pe) {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeError(w, http.StatusBadGateway, err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
