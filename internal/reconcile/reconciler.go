// Package reconcile brings the document index in line with the posts
// directory on disk.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-postindex/internal/logging"
	"github.com/goliatone/go-postindex/internal/markdown"
	"github.com/goliatone/go-postindex/internal/metadata"
	"github.com/goliatone/go-postindex/internal/posts"
	"github.com/goliatone/go-postindex/pkg/interfaces"
)

// ErrReconcileInProgress is returned when a pass is already running.
var ErrReconcileInProgress = errors.New("reconcile: pass already in progress")

const (
	actionCreate = "create"
	actionUpdate = "update"
	actionDelete = "delete"
	actionSkip   = "skip"
)

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithReader overrides the filesystem reader.
func WithReader(reader interfaces.DocumentReader) Option {
	return func(r *Reconciler) {
		if reader != nil {
			r.reader = reader
		}
	}
}

// WithExtractor overrides the metadata extractor.
func WithExtractor(extractor interfaces.MetadataExtractor) Option {
	return func(r *Reconciler) {
		if extractor != nil {
			r.extractor = extractor
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithExtension sets the document extension. Defaults to ".md".
func WithExtension(ext string) Option {
	return func(r *Reconciler) {
		if strings.TrimSpace(ext) != "" {
			r.extension = ext
		}
	}
}

// WithExcluded replaces the set of filenames that are never indexed.
func WithExcluded(names ...string) Option {
	return func(r *Reconciler) {
		r.excluded = slices.Clone(names)
	}
}

// WithClock overrides the time source used for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// Reconciler runs reconciliation passes. At most one pass runs at a time;
// concurrent calls return ErrReconcileInProgress.
type Reconciler struct {
	store     posts.Store
	reader    interfaces.DocumentReader
	extractor interfaces.MetadataExtractor
	logger    interfaces.Logger
	extension string
	excluded  []string
	now       func() time.Time

	running atomic.Bool
}

// New builds a Reconciler over store.
func New(store posts.Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:     store,
		extractor: metadata.NewExtractor(),
		logger:    logging.NoOp(),
		extension: interfaces.DocumentExtension,
		excluded:  []string{"about.md"},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.reader == nil {
		r.reader = markdown.NewFileReader(r.logger)
	}
	return r
}

// Running reports whether a pass is in progress.
func (r *Reconciler) Running() bool {
	return r.running.Load()
}

// Reconcile indexes dir. Per-file storage failures do not stop the pass;
// they are listed in Result.Failed and joined into the returned error.
// Once started the pass ignores ctx cancellation.
func (r *Reconciler) Reconcile(ctx context.Context, dir string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Debug("reconcile.pass.dropped", "dir", dir)
		return nil, ErrReconcileInProgress
	}
	defer r.running.Store(false)

	ctx = context.WithoutCancel(ctx)
	started := r.now()
	result := &Result{RunID: uuid.New(), Dir: dir, StartedAt: started}
	ctx = logging.ContextWithFields(ctx, map[string]any{"run_id": result.RunID.String()})
	logger := r.logger.WithContext(ctx)
	logger.Info("reconcile.pass.started", "dir", dir)

	names, err := markdown.ListDocuments(dir, markdown.ScanOptions{Extension: r.extension, Excluded: r.excluded})
	if err != nil {
		logger.Error("reconcile.scan.failed", "dir", dir, "error", err)
		return nil, fmt.Errorf("reconcile: scan %s: %w", dir, err)
	}

	indexed, err := r.store.Snapshot(ctx)
	if err != nil {
		logger.Error("reconcile.snapshot.failed", "error", err)
		return nil, fmt.Errorf("reconcile: load index: %w", err)
	}

	var errs []error
	for _, name := range names {
		if err := r.syncFile(ctx, logger, dir, name, indexed, result); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, r.prune(ctx, logger, dir, indexed, result)...)

	result.Duration = r.now().Sub(started)
	logger.Info("reconcile.pass.completed",
		"created", len(result.Created),
		"updated", len(result.Updated),
		"unchanged", len(result.Unchanged),
		"deleted", len(result.Deleted),
		"skipped", len(result.Skipped),
		"failed", len(result.Failed),
		"duration", result.Duration,
	)
	return result, errors.Join(errs...)
}

func (r *Reconciler) syncFile(ctx context.Context, logger interfaces.Logger, dir, name string, indexed map[string]interfaces.Document, result *Result) error {
	path := filepath.Join(dir, name)
	content := r.reader.ReadDocument(path)
	if content == "" {
		logging.WithDocumentContext(logger, name, actionSkip).Warn("reconcile.document.skipped", "reason", "empty or unreadable")
		result.Skipped = append(result.Skipped, FileIssue{Filename: name, Reason: "empty or unreadable"})
		return nil
	}

	meta := r.extractor.Extract(content, r.reader.ModTime(path))
	title := metadata.ResolveTitle(meta, name)

	if existing, ok := indexed[name]; ok && existing.Title == title && existing.Date == meta.Date {
		result.Unchanged = append(result.Unchanged, name)
		return nil
	}

	res, err := r.store.Upsert(ctx, name, title, meta.Date)
	if err != nil {
		logging.WithDocumentContext(logger, name, "upsert").Error("reconcile.document.failed", "error", err)
		result.Failed = append(result.Failed, FileIssue{Filename: name, Reason: err.Error()})
		return err
	}

	switch res.Action {
	case posts.UpsertInserted:
		result.Created = append(result.Created, name)
		logging.WithDocumentContext(logger, name, actionCreate).Info("reconcile.document.created", "id", res.Document.ID, "title", title, "date", meta.Date)
	case posts.UpsertUpdated:
		result.Updated = append(result.Updated, name)
		logging.WithDocumentContext(logger, name, actionUpdate).Info("reconcile.document.updated", "id", res.Document.ID, "title", title, "date", meta.Date)
	default:
		result.Unchanged = append(result.Unchanged, name)
	}
	return nil
}

// prune removes rows whose file is gone or excluded. Presence is re-checked
// on disk per row rather than taken from the scan, so a file that appeared
// after the scan is kept for the next pass.
func (r *Reconciler) prune(ctx context.Context, logger interfaces.Logger, dir string, indexed map[string]interfaces.Document, result *Result) []error {
	var errs []error
	for _, filename := range slices.Sorted(maps.Keys(indexed)) {
		if r.indexable(filename) && r.reader.Exists(filepath.Join(dir, filename)) {
			continue
		}

		removed, err := r.store.DeleteByFilename(ctx, filename)
		if err != nil {
			logging.WithDocumentContext(logger, filename, actionDelete).Error("reconcile.document.failed", "error", err)
			result.Failed = append(result.Failed, FileIssue{Filename: filename, Reason: err.Error()})
			errs = append(errs, err)
			continue
		}
		if removed {
			result.Deleted = append(result.Deleted, filename)
			logging.WithDocumentContext(logger, filename, actionDelete).Info("reconcile.document.deleted", "id", indexed[filename].ID)
		}
	}
	return errs
}

func (r *Reconciler) indexable(filename string) bool {
	return strings.HasSuffix(filename, r.extension) && !slices.Contains(r.excluded, filename)
}
