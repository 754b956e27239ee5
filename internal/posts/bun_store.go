package posts

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-postindex/pkg/interfaces"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id       INTEGER PRIMARY KEY,
		filename TEXT NOT NULL UNIQUE,
		title    TEXT NOT NULL DEFAULT '',
		date     TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_date ON documents (date)`,
}

type documentModel struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID       int64  `bun:"id,pk,autoincrement"`
	Filename string `bun:"filename,notnull,unique"`
	Title    string `bun:"title,notnull"`
	Date     string `bun:"date,notnull"`
}

func (m *documentModel) toDocument() interfaces.Document {
	return interfaces.Document{ID: m.ID, Filename: m.Filename, Title: m.Title, Date: m.Date}
}

// BunStore persists documents in SQLite through bun. Ids come from SQLite's
// rowid allocation.
type BunStore struct {
	db    *bun.DB
	locks *keyedLocks
}

var _ Store = (*BunStore)(nil)

// NewBunStore wraps db. Call EnsureSchema before first use.
func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db, locks: newKeyedLocks()}
}

// EnsureSchema creates the documents table and its date index if missing.
func (s *BunStore) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return storageError("schema", errors.New("posts: bun store requires a database"))
	}
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return storageError("schema", err)
		}
	}
	return nil
}

// List implements Store.
func (s *BunStore) List(ctx context.Context, limit, offset int) ([]interfaces.Document, error) {
	limit, offset, ok := normalizePage(limit, offset)
	if !ok {
		return []interfaces.Document{}, nil
	}
	var models []documentModel
	err := s.db.NewSelect().
		Model(&models).
		OrderExpr("d.date DESC, d.id ASC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, storageError("list", err)
	}
	out := make([]interfaces.Document, len(models))
	for i := range models {
		out[i] = models[i].toDocument()
	}
	return out, nil
}

// Count implements Store.
func (s *BunStore) Count(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*documentModel)(nil)).Count(ctx)
	if err != nil {
		return 0, storageError("count", err)
	}
	return n, nil
}

// FindByFilename implements Store.
func (s *BunStore) FindByFilename(ctx context.Context, filename string) (*interfaces.Document, error) {
	name, err := normalizeFilename(filename)
	if err != nil {
		return nil, err
	}
	model, err := selectByFilename(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	doc := model.toDocument()
	return &doc, nil
}

// Snapshot implements Store.
func (s *BunStore) Snapshot(ctx context.Context) (map[string]interfaces.Document, error) {
	var models []documentModel
	if err := s.db.NewSelect().Model(&models).Scan(ctx); err != nil {
		return nil, storageError("snapshot", err)
	}
	out := make(map[string]interfaces.Document, len(models))
	for i := range models {
		out[models[i].Filename] = models[i].toDocument()
	}
	return out, nil
}

// Upsert implements Store. The existence check and the write share one
// transaction and the per-filename lock.
func (s *BunStore) Upsert(ctx context.Context, filename, title, date string) (UpsertResult, error) {
	name, err := normalizeFilename(filename)
	if err != nil {
		return UpsertResult{}, err
	}
	unlock := s.locks.Lock(name)
	defer unlock()

	var result UpsertResult
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, findErr := selectByFilename(ctx, tx, name)
		switch {
		case errors.Is(findErr, ErrDocumentNotFound):
			model := &documentModel{Filename: name, Title: title, Date: date}
			if _, insertErr := tx.NewInsert().Model(model).Exec(ctx); insertErr != nil {
				return storageError("insert", insertErr)
			}
			stored, reloadErr := selectByFilename(ctx, tx, name)
			if reloadErr != nil {
				return reloadErr
			}
			result = UpsertResult{Action: UpsertInserted, Document: stored.toDocument()}
			return nil
		case findErr != nil:
			return findErr
		}

		if existing.Title == title && existing.Date == date {
			result = UpsertResult{Action: UpsertUnchanged, Document: existing.toDocument()}
			return nil
		}

		existing.Title = title
		existing.Date = date
		if _, updateErr := tx.NewUpdate().Model(existing).Column("title", "date").WherePK().Exec(ctx); updateErr != nil {
			return storageError("update", updateErr)
		}
		result = UpsertResult{Action: UpsertUpdated, Document: existing.toDocument()}
		return nil
	})
	if err != nil {
		if IsStorageError(err) {
			return UpsertResult{}, err
		}
		return UpsertResult{}, storageError("upsert", err)
	}
	return result, nil
}

// UpdateTitle implements Store.
func (s *BunStore) UpdateTitle(ctx context.Context, filename, title string) (bool, error) {
	name, err := normalizeFilename(filename)
	if err != nil {
		return false, err
	}
	unlock := s.locks.Lock(name)
	defer unlock()

	res, err := s.db.NewUpdate().
		Model((*documentModel)(nil)).
		Set("title = ?", title).
		Where("filename = ?", name).
		Exec(ctx)
	return affected("update title", res, err)
}

// DeleteByFilename implements Store. Missing rows are not an error.
func (s *BunStore) DeleteByFilename(ctx context.Context, filename string) (bool, error) {
	name, err := normalizeFilename(filename)
	if err != nil {
		return false, err
	}
	unlock := s.locks.Lock(name)
	defer unlock()

	res, err := s.db.NewDelete().
		Model((*documentModel)(nil)).
		Where("filename = ?", name).
		Exec(ctx)
	return affected("delete", res, err)
}

// DeleteByID implements Store. Missing rows are not an error.
func (s *BunStore) DeleteByID(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.NewDelete().
		Model((*documentModel)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return affected("delete", res, err)
}

func selectByFilename(ctx context.Context, db bun.IDB, name string) (*documentModel, error) {
	model := new(documentModel)
	err := db.NewSelect().Model(model).Where("d.filename = ?", name).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, storageError("select", err)
	}
	return model, nil
}

func affected(op string, res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, storageError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageError(op, err)
	}
	return n > 0, nil
}
