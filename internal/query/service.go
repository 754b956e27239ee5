// Package query serves the read path: paginated listings and single posts
// with an opportunistic title refresh.
package query

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-postindex/internal/logging"
	"github.com/goliatone/go-postindex/internal/markdown"
	"github.com/goliatone/go-postindex/internal/metadata"
	"github.com/goliatone/go-postindex/internal/posts"
	"github.com/goliatone/go-postindex/pkg/interfaces"
)

const (
	// DefaultPageSize applies when a listing asks for a non-positive limit.
	DefaultPageSize = 10
	// DefaultAboutFile is the page served by About.
	DefaultAboutFile = "about.md"

	textCodePostNotFound = "POST_NOT_FOUND"
)

// ErrPostNotFound is the only error GetPostBySlug returns.
var ErrPostNotFound = errors.New("query: post not found")

// Config holds the read path settings.
type Config struct {
	Dir       string
	Extension string
	PageSize  int
	AboutFile string
}

// Option configures a Service.
type Option func(*Service)

// WithReader overrides the filesystem reader.
func WithReader(reader interfaces.DocumentReader) Option {
	return func(s *Service) {
		if reader != nil {
			s.reader = reader
		}
	}
}

// WithRenderer overrides the markdown renderer.
func WithRenderer(renderer interfaces.Renderer) Option {
	return func(s *Service) {
		if renderer != nil {
			s.renderer = renderer
		}
	}
}

// WithExtractor overrides the metadata extractor.
func WithExtractor(extractor interfaces.MetadataExtractor) Option {
	return func(s *Service) {
		if extractor != nil {
			s.extractor = extractor
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service implements the read path. Failures never escape as storage
// errors: listings degrade to empty and lookups to ErrPostNotFound.
type Service struct {
	store     posts.Store
	cfg       Config
	reader    interfaces.DocumentReader
	renderer  interfaces.Renderer
	extractor interfaces.MetadataExtractor
	logger    interfaces.Logger

	lookups singleflight.Group
}

// NewService wires the read path over store.
func NewService(store posts.Store, cfg Config, opts ...Option) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if strings.TrimSpace(cfg.Extension) == "" {
		cfg.Extension = interfaces.DocumentExtension
	}
	if strings.TrimSpace(cfg.AboutFile) == "" {
		cfg.AboutFile = DefaultAboutFile
	}
	s := &Service{
		store:     store,
		cfg:       cfg,
		extractor: metadata.NewExtractor(),
		logger:    logging.NoOp(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reader == nil {
		s.reader = markdown.NewFileReader(s.logger)
	}
	if s.renderer == nil {
		s.renderer = markdown.NewGoldmarkRenderer(markdown.RenderOptions{}, s.logger)
	}
	return s
}

// PageSize returns the configured default page size.
func (s *Service) PageSize() int {
	return s.cfg.PageSize
}

// ListPosts returns one page of documents without content. A non-positive
// limit uses the page size. Store failures yield an empty page.
func (s *Service) ListPosts(ctx context.Context, limit, offset int) []interfaces.Document {
	if limit <= 0 {
		limit = s.cfg.PageSize
	}
	docs, err := s.store.List(ctx, limit, max(offset, 0))
	if err != nil {
		s.logger.Error("query.list.failed", "limit", limit, "offset", offset, "error", err)
		return []interfaces.Document{}
	}
	return docs
}

// CountPosts returns the number of indexed documents, or 0 on failure.
func (s *Service) CountPosts(ctx context.Context) int {
	n, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Error("query.count.failed", "error", err)
		return 0
	}
	return n
}

// GetPostBySlug loads the post for slug and renders it. When the file's
// current heading differs from the stored title, the stored title is
// refreshed before returning. Concurrent lookups of one slug share a single
// load.
func (s *Service) GetPostBySlug(ctx context.Context, slug string) (*interfaces.Post, error) {
	if !validSlug(slug) {
		return nil, notFound(slug)
	}

	// Joined callers share this load, so it must outlive the first caller.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.lookups.Do(slug, func() (any, error) {
		return s.loadPost(loadCtx, slug)
	})
	if err != nil {
		return nil, err
	}
	post := *v.(*interfaces.Post)
	return &post, nil
}

func (s *Service) loadPost(ctx context.Context, slug string) (*interfaces.Post, error) {
	filename := slug + s.cfg.Extension
	logger := logging.WithDocumentContext(s.logger, filename, "read")

	doc, err := s.store.FindByFilename(ctx, filename)
	if err != nil {
		if !errors.Is(err, posts.ErrDocumentNotFound) {
			logger.Error("query.post.lookup_failed", "error", err)
		}
		return nil, notFound(slug)
	}

	path := filepath.Join(s.cfg.Dir, filename)
	content := s.reader.ReadDocument(path)
	if content == "" {
		logger.Warn("query.post.stale_entry", "id", doc.ID)
		return nil, notFound(slug)
	}

	meta := s.extractor.Extract(content, s.reader.ModTime(path))
	if meta.Title != "" && meta.Title != doc.Title {
		if _, err := s.store.UpdateTitle(ctx, filename, meta.Title); err != nil {
			logger.Error("query.post.refresh_failed", "error", err)
		} else {
			logger.Info("query.post.title_refreshed", "id", doc.ID, "from", doc.Title, "to", meta.Title)
		}
		doc.Title = meta.Title
	}

	return &interfaces.Post{Document: *doc, HTML: s.renderer.RenderHTML(content)}, nil
}

// About renders the about page straight from disk. The page is never
// indexed. It reports false when the file is missing or empty.
func (s *Service) About(context.Context) (string, bool) {
	content := s.reader.ReadDocument(filepath.Join(s.cfg.Dir, s.cfg.AboutFile))
	if content == "" {
		return "", false
	}
	return s.renderer.RenderHTML(content), true
}

// IsNotFound reports whether err is a not-found lookup result.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPostNotFound)
}

func notFound(slug string) error {
	return goerrors.Wrap(ErrPostNotFound, goerrors.CategoryNotFound, "post not found").
		WithTextCode(textCodePostNotFound).
		WithMetadata(map[string]any{"slug": slug})
}

func validSlug(slug string) bool {
	if strings.TrimSpace(slug) == "" || strings.Contains(slug, "..") {
		return false
	}
	return !strings.ContainsAny(slug, `/\`) && filepath.Base(slug) == slug
}
