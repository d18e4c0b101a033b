package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mie-tools/mie/internal/quality"
	"github.com/mie-tools/mie/internal/rewrite"
)

// EmbedRequest is the POST /embed body. The optional fields override
// the server's configured defaults for this request only.
type EmbedRequest struct {
	Markdown  string `json:"markdown"`
	Quality   *int   `json:"quality,omitempty"`
	MaxSizeMB *int   `json:"max_size_mb,omitempty"`
	MaxWidth  *int   `json:"max_width,omitempty"`
	MaxHeight *int   `json:"max_height,omitempty"`
}

// EmbedResponse carries the rewritten document and the run counters.
type EmbedResponse struct {
	Markdown    string   `json:"markdown"`
	Embedded    int      `json:"embedded"`
	Skipped     int      `json:"skipped"`
	NonEmbedded []string `json:"non_embedded,omitempty"`
}

// Handler holds the embed route handler.
type Handler struct {
	base rewrite.Options
	log  *slog.Logger
}

// NewHandler creates a Handler around the server's default rewriter
// options. log may be nil to discard diagnostics.
func NewHandler(base rewrite.Options, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{base: base, log: log}
}

// NewRouter creates a chi router with the embed API mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(base rewrite.Options, authEnabled bool, token string, log *slog.Logger) chi.Router {
	h := NewHandler(base, log)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))
	r.Post("/embed", h.Embed)
	return r
}

// Embed handles POST /api/embed: markdown in, markdown with embedded
// images out.
func (h *Handler) Embed(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 50<<20)
	var req EmbedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Markdown == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("markdown is required"))
		return
	}
	if req.Quality != nil && !quality.ValidScale(*req.Quality) {
		writeJSON(w, http.StatusBadRequest, errorBody("quality must be between 1 and 9"))
		return
	}

	opts := h.base
	if req.Quality != nil {
		opts.QualityScale = *req.Quality
	}
	if req.MaxSizeMB != nil {
		opts.MaxSizeMB = *req.MaxSizeMB
	}
	if req.MaxWidth != nil {
		opts.MaxWidth = *req.MaxWidth
	}
	if req.MaxHeight != nil {
		opts.MaxHeight = *req.MaxHeight
	}

	rw := rewrite.New(opts, h.log)
	out, stats, err := rw.Rewrite(r.Context(), req.Markdown)
	if err != nil {
		h.log.Error("embed failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	writeJSON(w, http.StatusOK, EmbedResponse{
		Markdown:    out,
		Embedded:    stats.Embedded,
		Skipped:     stats.Skipped,
		NonEmbedded: stats.NonEmbeddedList(),
	})
}
