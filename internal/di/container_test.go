package di

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-postindex/internal/commands/postscmd"
	"github.com/goliatone/go-postindex/internal/logging/console"
	"github.com/goliatone/go-postindex/internal/posts"
	"github.com/goliatone/go-postindex/internal/reconcile"
	"github.com/goliatone/go-postindex/internal/runtimeconfig"
	"github.com/goliatone/go-postindex/pkg/testsupport"
)

func testConfig(t *testing.T) runtimeconfig.Config {
	t.Helper()
	dir := t.TempDir()
	if err := testsupport.WritePosts(dir, map[string]string{
		"hello.md": "# Hello\n\nPublished 2024-03-05.",
		"about.md": "# About",
	}); err != nil {
		t.Fatalf("write posts: %v", err)
	}
	cfg := runtimeconfig.DefaultConfig()
	cfg.Posts.Dir = dir
	cfg.Storage.Path = filepath.Join(t.TempDir(), "data", "blog.db")
	return cfg
}

func TestNewContainerRejectsInvalidConfig(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Posts.PageSize = 0
	if _, err := NewContainer(cfg); !errors.Is(err, runtimeconfig.ErrPageSizeInvalid) {
		t.Fatalf("expected ErrPageSizeInvalid, got %v", err)
	}
}

func TestContainerSQLiteEndToEnd(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig(t)

	c, err := NewContainer(cfg, WithLoggerProvider(console.NewProvider(console.Options{Writer: &buf})))
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if c.BunDB() == nil {
		t.Fatal("expected sqlite database to be opened")
	}
	if _, ok := c.Store().(*posts.BunStore); !ok {
		t.Fatalf("expected bun store, got %T", c.Store())
	}

	result, err := c.Reconciler().Reconcile(context.Background(), cfg.Posts.Dir)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(result.Created) != 1 || result.Created[0] != "hello.md" {
		t.Fatalf("expected hello.md created, got %+v", result.Created)
	}

	post, err := c.Query().GetPostBySlug(context.Background(), "hello")
	if err != nil {
		t.Fatalf("GetPostBySlug: %v", err)
	}
	if post.Title != "Hello" || post.Date != "2024-03-05" {
		t.Fatalf("unexpected post %+v", post.Document)
	}

	if !strings.Contains(buf.String(), "store.configured") {
		t.Fatalf("expected store configuration to be logged, got %q", buf.String())
	}
}

func TestContainerMemoryStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Provider = runtimeconfig.StorageMemory
	cfg.Logging.Level = "error"

	c, err := NewContainer(cfg)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	defer c.Close()

	if c.BunDB() != nil {
		t.Fatal("memory storage should not open a database")
	}
	if _, ok := c.Store().(*posts.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", c.Store())
	}
}

func TestContainerUsesSuppliedDB(t *testing.T) {
	db, err := testsupport.NewBunMemoryDB()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	c, err := NewContainer(testConfig(t), WithBunDB(db))
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		t.Fatalf("supplied database should stay open: %v", err)
	}
}

func TestScheduledPassNotifiesObserver(t *testing.T) {
	var observed []*reconcile.Result
	cfg := testConfig(t)
	cfg.Storage.Provider = runtimeconfig.StorageMemory

	c, err := NewContainer(cfg, WithResultObserver(func(r *reconcile.Result) {
		observed = append(observed, r)
	}))
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	defer c.Close()

	if !c.Scheduler().Trigger(context.Background()) {
		t.Fatal("expected trigger to run")
	}
	if len(observed) != 1 || len(observed[0].Created) != 1 {
		t.Fatalf("expected one observed pass, got %+v", observed)
	}
	if stats := c.Scheduler().Stats(); stats.Runs != 1 || stats.Failures != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	if err := c.SyncHandler(nil).Execute(context.Background(), postscmd.SyncDirectoryCommand{Directory: cfg.Posts.Dir}); err != nil {
		t.Fatalf("sync handler: %v", err)
	}
	if len(observed) != 2 || len(observed[1].Unchanged) != 1 {
		t.Fatalf("expected second pass to report unchanged, got %+v", observed)
	}
}

func TestNewLoggerProviderSelectsGoLogger(t *testing.T) {
	provider, err := newLoggerProvider(runtimeconfig.LoggingConfig{Provider: "gologger", Format: "json", Level: "debug"})
	if err != nil {
		t.Fatalf("newLoggerProvider: %v", err)
	}
	if provider.GetLogger("postindex") == nil {
		t.Fatal("expected logger")
	}
	if _, err := newLoggerProvider(runtimeconfig.LoggingConfig{Provider: "gologger", Format: "xml"}); err == nil {
		t.Fatal("expected unsupported format error")
	}
}
