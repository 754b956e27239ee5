// Package postindex keeps a SQLite index of a directory of markdown posts
// consistent with the filesystem and serves paginated reads from it.
package postindex

import (
	"context"
	nethttp "net/http"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-postindex/internal/commands/postscmd"
	"github.com/goliatone/go-postindex/internal/di"
	apihttp "github.com/goliatone/go-postindex/internal/http"
	"github.com/goliatone/go-postindex/internal/logging"
	"github.com/goliatone/go-postindex/internal/markdown"
	"github.com/goliatone/go-postindex/internal/posts"
	"github.com/goliatone/go-postindex/internal/query"
	"github.com/goliatone/go-postindex/internal/reconcile"
	"github.com/goliatone/go-postindex/pkg/interfaces"
)

// Document exports the indexed document record.
type Document = interfaces.Document

// Post exports a document with its rendered HTML.
type Post = interfaces.Post

// SyncResult exports the outcome of one reconciliation pass.
type SyncResult = reconcile.Result

// VerifyReport exports the outcome of a verify pass.
type VerifyReport = markdown.VerifyReport

// SchedulerStats exports the periodic sync counters.
type SchedulerStats = interfaces.SchedulerStats

// QueryService exports the read path.
type QueryService = *query.Service

var (
	// ErrPostNotFound is returned by Query().GetPostBySlug for unknown slugs.
	ErrPostNotFound = query.ErrPostNotFound
	// ErrSyncInProgress is returned by Reconcile while another pass runs.
	ErrSyncInProgress = reconcile.ErrReconcileInProgress
	// ErrVerificationFailed is returned by Verify when a post fails.
	ErrVerificationFailed = postscmd.ErrVerificationFailed
)

// Option configures Module construction.
type Option = di.Option

// WithLoggerProvider overrides the provider derived from Config.Logging.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return di.WithLoggerProvider(provider)
}

// WithBunDB supplies an already open database. Close leaves it open.
func WithBunDB(db *bun.DB) Option {
	return di.WithBunDB(db)
}

// WithStore replaces the configured document store.
func WithStore(store posts.Store) Option {
	return di.WithStore(store)
}

// WithSyncObserver receives every scheduled or command-driven pass result.
func WithSyncObserver(fn func(*SyncResult)) Option {
	return di.WithResultObserver(fn)
}

// Module is the top level indexer runtime facade.
type Module struct {
	container *di.Container
}

// New constructs a Module from cfg.
func New(cfg Config, opts ...Option) (*Module, error) {
	container, err := di.NewContainer(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Module{container: container}, nil
}

// Container exposes the underlying DI container for advanced integrations.
func (m *Module) Container() *di.Container {
	return m.container
}

// Config returns the validated configuration.
func (m *Module) Config() Config {
	return m.container.Config
}

// Logger returns the root module logger.
func (m *Module) Logger() interfaces.Logger {
	return m.container.Logger()
}

// Start runs the startup pass, when enabled, and begins periodic sync.
func (m *Module) Start(ctx context.Context) error {
	return m.container.Scheduler().Start(ctx)
}

// Reconcile runs one pass over the configured posts directory.
func (m *Module) Reconcile(ctx context.Context) (*SyncResult, error) {
	return m.container.Reconciler().Reconcile(ctx, m.container.Config.Posts.Dir)
}

// Sync runs one pass through the sync command handler, so the outcome is
// validated, timed out and logged like any other command.
func (m *Module) Sync(ctx context.Context) (*SyncResult, error) {
	var result *SyncResult
	handler := m.container.SyncHandler(func(r *reconcile.Result) {
		result = r
	})
	err := handler.Execute(ctx, postscmd.SyncDirectoryCommand{Directory: m.container.Config.Posts.Dir})
	return result, err
}

// Verify lints the configured posts directory.
func (m *Module) Verify(ctx context.Context) (VerifyReport, error) {
	var report VerifyReport
	handler := m.container.VerifyHandler(func(r markdown.VerifyReport) {
		report = r
	})
	err := handler.Execute(ctx, postscmd.VerifyDirectoryCommand{
		Directory: m.container.Config.Posts.Dir,
		Extension: m.container.Config.Posts.Extension,
	})
	return report, err
}

// Query returns the read path.
func (m *Module) Query() QueryService {
	return m.container.Query()
}

// Stats reports scheduler activity.
func (m *Module) Stats() SchedulerStats {
	return m.container.Scheduler().Stats()
}

// HTTPHandler builds the JSON API handler for the configured base path.
func (m *Module) HTTPHandler() (nethttp.Handler, error) {
	cfg := m.container.Config
	api := apihttp.NewPostsAPI(m.container.Query(),
		apihttp.WithBasePath(cfg.HTTP.BasePath),
		apihttp.WithStats(m.container.Scheduler()),
		apihttp.WithSite(apihttp.Site{
			Name:        cfg.Site.Name,
			Tagline:     cfg.Site.Tagline,
			Description: cfg.Site.Description,
		}),
		apihttp.WithLogger(logging.HTTPLogger(m.container.LoggerProvider())),
	)
	return api.Handler()
}

// Close stops the scheduler and releases the database.
func (m *Module) Close() error {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Close()
}
