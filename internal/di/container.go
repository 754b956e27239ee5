// Package di wires the indexer components from a runtime configuration.
package di

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	command "github.com/goliatone/go-command"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-postindex/internal/commands"
	"github.com/goliatone/go-postindex/internal/commands/postscmd"
	"github.com/goliatone/go-postindex/internal/logging"
	"github.com/goliatone/go-postindex/internal/logging/console"
	"github.com/goliatone/go-postindex/internal/logging/gologger"
	"github.com/goliatone/go-postindex/internal/markdown"
	"github.com/goliatone/go-postindex/internal/metadata"
	"github.com/goliatone/go-postindex/internal/posts"
	"github.com/goliatone/go-postindex/internal/query"
	"github.com/goliatone/go-postindex/internal/reconcile"
	"github.com/goliatone/go-postindex/internal/runtimeconfig"
	"github.com/goliatone/go-postindex/internal/scheduler"
	"github.com/goliatone/go-postindex/pkg/interfaces"
)

// Container owns the store, the reconciler, the scheduler and the read path.
type Container struct {
	Config runtimeconfig.Config

	loggerProvider interfaces.LoggerProvider
	logger         interfaces.Logger

	bunDB  *bun.DB
	ownsDB bool
	store  posts.Store

	reader    *markdown.FileReader
	renderer  *markdown.GoldmarkRenderer
	extractor metadata.Extractor
	verifier  *markdown.Verifier

	reconciler *reconcile.Reconciler
	scheduler  *scheduler.Interval
	query      *query.Service

	lastResult func(*reconcile.Result)
}

// Option mutates the container before it is finalised.
type Option func(*Container)

// WithLoggerProvider overrides the provider derived from the logging config.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(c *Container) {
		c.loggerProvider = provider
	}
}

// WithBunDB supplies an open database. The container does not close it.
func WithBunDB(db *bun.DB) Option {
	return func(c *Container) {
		c.bunDB = db
	}
}

// WithStore overrides the configured document store.
func WithStore(store posts.Store) Option {
	return func(c *Container) {
		c.store = store
	}
}

// WithResultObserver registers a callback invoked after every scheduled or
// command-driven reconciliation pass.
func WithResultObserver(fn func(*reconcile.Result)) Option {
	return func(c *Container) {
		c.lastResult = fn
	}
}

// NewContainer validates cfg and builds every component.
func NewContainer(cfg runtimeconfig.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{Config: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if err := c.configureLogging(); err != nil {
		return nil, err
	}
	if err := c.configureStore(context.Background()); err != nil {
		return nil, err
	}
	c.configureServices()
	return c, nil
}

func (c *Container) configureLogging() error {
	if c.loggerProvider == nil {
		provider, err := newLoggerProvider(c.Config.Logging)
		if err != nil {
			return err
		}
		c.loggerProvider = provider
	}
	c.logger = logging.RootLogger(c.loggerProvider)
	return nil
}

func newLoggerProvider(cfg runtimeconfig.LoggingConfig) (interfaces.LoggerProvider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gologger":
		return gologger.NewProvider(gologger.Config{
			Level:     cfg.Level,
			Format:    cfg.Format,
			AddSource: cfg.AddSource,
			Focus:     cfg.Focus,
		})
	default:
		opts := console.Options{}
		if level, ok := console.ParseLevel(cfg.Level); ok {
			opts.MinLevel = &level
		}
		return console.NewProvider(opts), nil
	}
}

func (c *Container) configureStore(ctx context.Context) error {
	if c.store != nil {
		return nil
	}

	storeLogger := logging.StoreLogger(c.loggerProvider)
	if strings.EqualFold(strings.TrimSpace(c.Config.Storage.Provider), runtimeconfig.StorageMemory) {
		c.store = posts.NewMemoryStore()
		storeLogger.Info("store.configured", "provider", runtimeconfig.StorageMemory)
		return nil
	}

	if c.bunDB == nil {
		db, err := openSQLite(c.Config.Storage.Path)
		if err != nil {
			return err
		}
		c.bunDB = db
		c.ownsDB = true
	}

	store := posts.NewBunStore(c.bunDB)
	if err := store.EnsureSchema(ctx); err != nil {
		c.closeDB()
		return err
	}
	c.store = store
	storeLogger.Info("store.configured", "provider", runtimeconfig.StorageSQLite, "path", c.Config.Storage.Path)
	return nil
}

// openSQLite opens path with a single connection so statements never
// interleave on the file.
func openSQLite(path string) (*bun.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("di: create data directory: %w", err)
		}
	}
	sqlDB, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("di: open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return bun.NewDB(sqlDB, sqlitedialect.New()), nil
}

func (c *Container) configureServices() {
	postsCfg := c.Config.Posts
	render := c.Config.Render

	c.extractor = metadata.NewExtractor()
	c.reader = markdown.NewFileReader(logging.ModuleLogger(c.loggerProvider, "postindex.markdown"))
	c.renderer = markdown.NewGoldmarkRenderer(markdown.RenderOptions{
		Extensions:  render.Extensions,
		HardWraps:   render.HardWraps,
		SafeMode:    render.SafeMode,
		ImagePrefix: render.ImagePrefix,
		ImageClass:  render.ImageClass,
	}, logging.ModuleLogger(c.loggerProvider, "postindex.markdown"))
	c.verifier = markdown.NewVerifier(c.reader, c.renderer, logging.ModuleLogger(c.loggerProvider, "postindex.verify"))

	c.reconciler = reconcile.New(c.store,
		reconcile.WithReader(c.reader),
		reconcile.WithExtractor(c.extractor),
		reconcile.WithLogger(logging.ReconcileLogger(c.loggerProvider)),
		reconcile.WithExtension(postsCfg.Extension),
		reconcile.WithExcluded(c.Config.ExcludedFiles()...),
	)

	c.scheduler = scheduler.NewInterval(interfaces.JobFunc(c.runScheduledPass),
		scheduler.WithInterval(c.Config.Sync.Interval),
		scheduler.WithRunOnStart(c.Config.Sync.RunOnStart),
		scheduler.WithLogger(logging.SchedulerLogger(c.loggerProvider)),
	)

	c.query = query.NewService(c.store, query.Config{
		Dir:       postsCfg.Dir,
		Extension: postsCfg.Extension,
		PageSize:  postsCfg.PageSize,
		AboutFile: postsCfg.AboutFile,
	},
		query.WithReader(c.reader),
		query.WithRenderer(c.renderer),
		query.WithExtractor(c.extractor),
		query.WithLogger(logging.QueryLogger(c.loggerProvider)),
	)
}

// runScheduledPass is the scheduler job. A pass already in flight elsewhere
// is not a failure.
func (c *Container) runScheduledPass(ctx context.Context) error {
	result, err := c.reconciler.Reconcile(ctx, c.Config.Posts.Dir)
	if errors.Is(err, reconcile.ErrReconcileInProgress) {
		return nil
	}
	if result != nil && c.lastResult != nil {
		c.lastResult(result)
	}
	return err
}

// LoggerProvider returns the configured logger provider.
func (c *Container) LoggerProvider() interfaces.LoggerProvider {
	return c.loggerProvider
}

// Logger returns the root module logger.
func (c *Container) Logger() interfaces.Logger {
	return c.logger
}

// BunDB returns the database handle, nil for the memory store.
func (c *Container) BunDB() *bun.DB {
	return c.bunDB
}

// Store returns the document store.
func (c *Container) Store() posts.Store {
	return c.store
}

// Reconciler returns the reconciler bound to the store.
func (c *Container) Reconciler() *reconcile.Reconciler {
	return c.reconciler
}

// Scheduler returns the interval scheduler running reconciliation.
func (c *Container) Scheduler() *scheduler.Interval {
	return c.scheduler
}

// Query returns the read path service.
func (c *Container) Query() *query.Service {
	return c.query
}

// Verifier returns the posts linter.
func (c *Container) Verifier() *markdown.Verifier {
	return c.verifier
}

// SyncHandler builds the command handler for SyncDirectoryCommand. Results
// reach the container observer first and then onResult, when set. Cron
// hosts run it against the configured posts directory every sync interval.
func (c *Container) SyncHandler(onResult func(*reconcile.Result)) *postscmd.SyncDirectoryHandler {
	observe := func(result *reconcile.Result) {
		if c.lastResult != nil {
			c.lastResult(result)
		}
		if onResult != nil {
			onResult(result)
		}
	}
	handler := postscmd.NewSyncDirectoryHandler(c.reconciler, commands.Logger(c.loggerProvider, "sync"), observe)
	return handler.WithCron(postscmd.SyncCron{
		Directory: c.Config.Posts.Dir,
		Config:    command.HandlerConfig{Expression: "@every " + c.Config.Sync.Interval.String()},
	})
}

// VerifyHandler builds the command handler for VerifyDirectoryCommand.
func (c *Container) VerifyHandler(onReport func(markdown.VerifyReport)) *postscmd.VerifyDirectoryHandler {
	return postscmd.NewVerifyDirectoryHandler(c.verifier,
		commands.Logger(c.loggerProvider, "verify"), onReport)
}

// Close stops the scheduler and closes a database the container opened.
func (c *Container) Close() error {
	if c.scheduler != nil {
		c.scheduler.Stop()
	}
	return c.closeDB()
}

func (c *Container) closeDB() error {
	if !c.ownsDB || c.bunDB == nil {
		return nil
	}
	c.ownsDB = false
	return c.bunDB.Close()
}
