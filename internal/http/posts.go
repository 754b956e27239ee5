package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/goliatone/go-postindex/internal/logging"
	"github.com/goliatone/go-postindex/pkg/interfaces"
)

// DefaultRequestTimeout bounds every API request.
const DefaultRequestTimeout = 30 * time.Second

// MaxListLimit caps the limit query parameter of the posts listing.
const MaxListLimit = 100

// PostQuery is the read path the API serves from.
type PostQuery interface {
	PageSize() int
	ListPosts(ctx context.Context, limit, offset int) []interfaces.Document
	CountPosts(ctx context.Context) int
	GetPostBySlug(ctx context.Context, slug string) (*interfaces.Post, error)
	About(ctx context.Context) (string, bool)
}

// StatsSource reports scheduler activity for /healthz.
type StatsSource interface {
	Stats() interfaces.SchedulerStats
}

// Site is the descriptive metadata served by /site.
type Site struct {
	Name        string `json:"name"`
	Tagline     string `json:"tagline"`
	Description string `json:"description"`
}

// PostsAPI serves the post index over HTTP.
type PostsAPI struct {
	basePath string
	query    PostQuery
	stats    StatsSource
	site     Site
	timeout  time.Duration
	logger   interfaces.Logger
}

// APIOption mutates the PostsAPI configuration.
type APIOption func(*PostsAPI)

// NewPostsAPI constructs a PostsAPI over query.
func NewPostsAPI(query PostQuery, opts ...APIOption) *PostsAPI {
	api := &PostsAPI{
		basePath: "/api",
		query:    query,
		timeout:  DefaultRequestTimeout,
		logger:   logging.NoOp(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(api)
		}
	}
	return api
}

// WithBasePath overrides the base API path (defaults to "/api").
func WithBasePath(path string) APIOption {
	return func(api *PostsAPI) {
		if trimmed := strings.TrimSpace(path); trimmed != "" {
			api.basePath = trimmed
		}
	}
}

// WithStats wires the scheduler statistics reported by /healthz.
func WithStats(stats StatsSource) APIOption {
	return func(api *PostsAPI) {
		api.stats = stats
	}
}

// WithSite sets the metadata served by /site.
func WithSite(site Site) APIOption {
	return func(api *PostsAPI) {
		api.site = site
	}
}

// WithRequestTimeout overrides DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) APIOption {
	return func(api *PostsAPI) {
		if d > 0 {
			api.timeout = d
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(logger interfaces.Logger) APIOption {
	return func(api *PostsAPI) {
		if logger != nil {
			api.logger = logger
		}
	}
}

// Handler builds the chi router with every route mounted.
func (api *PostsAPI) Handler() (http.Handler, error) {
	if api == nil {
		return nil, fmt.Errorf("http: posts api is nil")
	}
	if api.query == nil {
		return nil, fmt.Errorf("http: post query is required")
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(api.requestLogger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(api.timeout))

	router.Get("/healthz", api.handleHealth)

	router.Route(joinPath(api.basePath, ""), func(r chi.Router) {
		r.Get("/posts", api.handleListPosts)
		r.Get("/posts/{slug}", api.handleGetPost)
		r.Get("/about", api.handleAbout)
		r.Get("/site", api.handleSite)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w, "route not found")
	})

	return router, nil
}

type documentResponse struct {
	ID    int64  `json:"id"`
	Slug  string `json:"slug"`
	File  string `json:"file"`
	Title string `json:"title"`
	Date  string `json:"date"`
}

type postResponse struct {
	documentResponse
	HTML string `json:"html"`
}

type listResponse struct {
	Posts   []documentResponse `json:"posts"`
	Total   int                `json:"total"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
	HasMore bool               `json:"has_more"`
}

func toDocumentResponse(doc interfaces.Document) documentResponse {
	return documentResponse{
		ID:    doc.ID,
		Slug:  doc.Slug(),
		File:  doc.Filename,
		Title: doc.Title,
		Date:  doc.Date,
	}
}

func (api *PostsAPI) handleListPosts(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseIntQuery(r.URL.Query().Get("limit"), api.query.PageSize())
	if !ok {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}
	offset, ok := parseIntQuery(r.URL.Query().Get("offset"), 0)
	if !ok {
		writeBadRequest(w, "offset must be a non-negative integer")
		return
	}
	if limit == 0 {
		limit = api.query.PageSize()
	}
	limit = min(limit, MaxListLimit)

	ctx := r.Context()
	docs := api.query.ListPosts(ctx, limit, offset)
	total := api.query.CountPosts(ctx)

	resp := listResponse{
		Posts:   make([]documentResponse, 0, len(docs)),
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(docs) < total,
	}
	for _, doc := range docs {
		resp.Posts = append(resp.Posts, toDocumentResponse(doc))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (api *PostsAPI) handleGetPost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	post, err := api.query.GetPostBySlug(r.Context(), slug)
	if err != nil {
		writeNotFound(w, fmt.Sprintf("post %q not found", slug))
		return
	}
	writeJSON(w, http.StatusOK, postResponse{
		documentResponse: toDocumentResponse(post.Document),
		HTML:             post.HTML,
	})
}

func (api *PostsAPI) handleAbout(w http.ResponseWriter, r *http.Request) {
	html, ok := api.query.About(r.Context())
	if !ok {
		writeNotFound(w, "about page not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"html": html})
}

func (api *PostsAPI) handleSite(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.site)
}

type healthResponse struct {
	Status    string                     `json:"status"`
	Scheduler *interfaces.SchedulerStats `json:"scheduler,omitempty"`
}

func (api *PostsAPI) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if api.stats != nil {
		stats := api.stats.Stats()
		resp.Scheduler = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

func (api *PostsAPI) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		api.logger.Debug("http.request.completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
