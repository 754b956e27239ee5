package postindex_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	command "github.com/goliatone/go-command"
	"github.com/goliatone/go-command/dispatcher"

	"github.com/goliatone/go-postindex"
	"github.com/goliatone/go-postindex/internal/logging/console"
	"github.com/goliatone/go-postindex/pkg/testsupport"
)

func newTestModule(t *testing.T, files map[string]string, opts ...postindex.Option) *postindex.Module {
	t.Helper()
	dir := t.TempDir()
	if err := testsupport.WritePosts(dir, files); err != nil {
		t.Fatalf("write posts: %v", err)
	}

	cfg := postindex.DefaultConfig()
	cfg.Posts.Dir = dir
	cfg.Posts.PageSize = 2
	cfg.Storage.Path = filepath.Join(t.TempDir(), "blog.db")
	cfg.Sync.Interval = time.Hour

	level := console.LevelError
	opts = append([]postindex.Option{
		postindex.WithLoggerProvider(console.NewProvider(console.Options{MinLevel: &level})),
	}, opts...)

	module, err := postindex.New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = module.Close() })
	return module
}

var samplePosts = map[string]string{
	"alpha.md": "# Alpha\n\nPublished 2024-01-10.",
	"beta.md":  "# Beta\n\nPublished 2024-02-10.",
	"gamma.md": "# Gamma\n\nPublished 2024-03-10.",
	"about.md": "# About\n\nWho writes this.",
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := postindex.DefaultConfig()
	cfg.Storage.Provider = "redis"
	if _, err := postindex.New(cfg); !errors.Is(err, postindex.ErrStorageProviderUnknown) {
		t.Fatalf("expected ErrStorageProviderUnknown, got %v", err)
	}
}

func TestModuleStartIndexesAndServes(t *testing.T) {
	var observed []*postindex.SyncResult
	module := newTestModule(t, samplePosts, postindex.WithSyncObserver(func(r *postindex.SyncResult) {
		observed = append(observed, r)
	}))

	if err := module.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(observed) != 1 || len(observed[0].Created) != 3 {
		t.Fatalf("expected startup pass to create 3 documents, got %+v", observed)
	}
	if stats := module.Stats(); stats.Runs != 1 {
		t.Fatalf("expected one scheduler run, got %+v", stats)
	}

	ctx := context.Background()
	q := module.Query()
	if total := q.CountPosts(ctx); total != 3 {
		t.Fatalf("expected 3 posts, got %d", total)
	}

	seen := map[string]bool{}
	var dates []string
	for offset := 0; offset < 3; offset += q.PageSize() {
		for _, doc := range q.ListPosts(ctx, 0, offset) {
			if seen[doc.Filename] {
				t.Fatalf("duplicate %s across pages", doc.Filename)
			}
			seen[doc.Filename] = true
			dates = append(dates, doc.Date)
		}
	}
	if len(dates) != 3 || dates[0] != "2024-03-10" || dates[2] != "2024-01-10" {
		t.Fatalf("unexpected listing order %v", dates)
	}

	post, err := q.GetPostBySlug(ctx, "beta")
	if err != nil || post.Title != "Beta" {
		t.Fatalf("GetPostBySlug: %+v, %v", post, err)
	}
	if _, err := q.GetPostBySlug(ctx, "about"); !errors.Is(err, postindex.ErrPostNotFound) {
		t.Fatalf("expected about to stay unindexed, got %v", err)
	}
}

func TestModuleSyncIsIdempotent(t *testing.T) {
	module := newTestModule(t, samplePosts)

	first, err := module.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	second, err := module.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(first.Created) != 3 || second.Mutations() != 0 || len(second.Unchanged) != 3 {
		t.Fatalf("expected idempotent passes, got first=%+v second=%+v", first, second)
	}
}

func TestModuleVerify(t *testing.T) {
	module := newTestModule(t, samplePosts)
	report, err := module.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !report.OK() {
		t.Fatalf("expected clean report, got %+v", report)
	}

	broken := newTestModule(t, map[string]string{"bad.md": "no heading here"})
	if _, err := broken.Verify(context.Background()); !errors.Is(err, postindex.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
}

func TestModuleHTTPHandler(t *testing.T) {
	module := newTestModule(t, samplePosts)
	if _, err := module.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	handler, err := module.HTTPHandler()
	if err != nil {
		t.Fatalf("HTTPHandler: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts/gamma", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"title":"Gamma"`) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"state":"idle"`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterCommandsWithRegistryAndDispatcher(t *testing.T) {
	var observed int
	module := newTestModule(t, samplePosts, postindex.WithSyncObserver(func(*postindex.SyncResult) {
		observed++
	}))

	registry := command.NewRegistry()
	result, err := postindex.RegisterCommands(module, postindex.RegistrationOptions{
		Registry:   registry,
		Dispatcher: postindex.GlobalDispatcher{},
	})
	if err != nil {
		t.Fatalf("RegisterCommands: %v", err)
	}
	t.Cleanup(result.Unsubscribe)

	if len(result.Handlers) != 2 || len(result.Subscriptions) != 2 {
		t.Fatalf("expected 2 handlers and subscriptions, got %d/%d", len(result.Handlers), len(result.Subscriptions))
	}

	msg := postindex.SyncDirectoryCommand{Directory: module.Config().Posts.Dir}
	if err := dispatcher.Dispatch(context.Background(), msg); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if observed != 1 {
		t.Fatalf("expected dispatched sync to notify observer once, got %d", observed)
	}
	if n := module.Query().CountPosts(context.Background()); n != 3 {
		t.Fatalf("expected 3 indexed posts, got %d", n)
	}
}

func TestRegisterCommandsWithCronRegistrar(t *testing.T) {
	module := newTestModule(t, samplePosts)

	var (
		configs []command.HandlerConfig
		jobs    []func() error
	)
	registrar := func(cfg command.HandlerConfig, handler any) error {
		job, ok := handler.(func() error)
		if !ok {
			t.Fatalf("expected func() error cron handler, got %T", handler)
		}
		configs = append(configs, cfg)
		jobs = append(jobs, job)
		return nil
	}

	if _, err := postindex.RegisterCommands(module, postindex.RegistrationOptions{CronRegistrar: registrar}); err != nil {
		t.Fatalf("RegisterCommands: %v", err)
	}
	if len(jobs) != 1 || configs[0].Expression != "@every 1h0m0s" {
		t.Fatalf("expected one sync cron job every hour, got %+v", configs)
	}

	if err := jobs[0](); err != nil {
		t.Fatalf("cron job: %v", err)
	}
	if n := module.Query().CountPosts(context.Background()); n != 3 {
		t.Fatalf("expected cron job to index 3 posts, got %d", n)
	}
}

func TestRegisterCommandsHandsCronToRegistry(t *testing.T) {
	module := newTestModule(t, samplePosts)

	var expressions []string
	registry := command.NewRegistry()
	_, err := postindex.RegisterCommands(module, postindex.RegistrationOptions{
		Registry: registry,
		CronRegistrar: func(cfg command.HandlerConfig, _ any) error {
			expressions = append(expressions, cfg.Expression)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterCommands: %v", err)
	}
	if len(expressions) != 0 {
		t.Fatalf("expected registry to defer cron registration, got %v", expressions)
	}
}

func TestGlobalDispatcherRejectsUnknownHandler(t *testing.T) {
	if _, err := (postindex.GlobalDispatcher{}).RegisterCommand(struct{}{}); err == nil {
		t.Fatal("expected error for unsupported handler")
	}
}

func TestRegisterCommandsNilModule(t *testing.T) {
	result, err := postindex.RegisterCommands(nil, postindex.RegistrationOptions{})
	if err != nil || len(result.Handlers) != 0 {
		t.Fatalf("expected empty result, got %+v %v", result, err)
	}
}
