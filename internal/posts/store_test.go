package posts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/goliatone/go-postindex/pkg/testsupport"
)

type storeFactory func(t *testing.T) Store

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"bun":    newTestBunStore,
	}
}

func newTestBunStore(t *testing.T) Store {
	t.Helper()
	db, err := testsupport.NewBunMemoryDB()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := NewBunStore(db)
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return store
}

func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func TestStoreUpsertLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		first, err := store.Upsert(ctx, "hello.md", "Hello", "2024-01-01")
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		if first.Action != UpsertInserted || first.Document.ID != 1 {
			t.Fatalf("expected inserted id 1, got %+v", first)
		}

		same, err := store.Upsert(ctx, "hello.md", "Hello", "2024-01-01")
		if err != nil {
			t.Fatalf("noop upsert: %v", err)
		}
		if same.Action != UpsertUnchanged {
			t.Fatalf("expected unchanged, got %s", same.Action)
		}

		updated, err := store.Upsert(ctx, "hello.md", "Hello Again", "2024-02-02")
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.Action != UpsertUpdated || updated.Document.ID != first.Document.ID {
			t.Fatalf("expected update preserving id %d, got %+v", first.Document.ID, updated)
		}

		found, err := store.FindByFilename(ctx, "hello.md")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if found.Title != "Hello Again" || found.Date != "2024-02-02" {
			t.Fatalf("unexpected stored row %+v", found)
		}
	})
}

func TestStoreAssignsSequentialIDs(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		for i := 1; i <= 3; i++ {
			res, err := store.Upsert(ctx, fmt.Sprintf("post-%d.md", i), "T", "2024-01-01")
			if err != nil {
				t.Fatalf("upsert %d: %v", i, err)
			}
			if res.Document.ID != int64(i) {
				t.Fatalf("expected id %d, got %d", i, res.Document.ID)
			}
		}
	})
}

func TestStoreFindMissing(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		_, err := store.FindByFilename(context.Background(), "missing.md")
		if !errors.Is(err, ErrDocumentNotFound) {
			t.Fatalf("expected ErrDocumentNotFound, got %v", err)
		}
		if _, err := store.Upsert(context.Background(), "  ", "T", ""); !errors.Is(err, ErrFilenameRequired) {
			t.Fatalf("expected ErrFilenameRequired, got %v", err)
		}
	})
}

func TestStoreDeleteIsIdempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		a, _ := store.Upsert(ctx, "a.md", "A", "2024-01-01")
		if _, err := store.Upsert(ctx, "b.md", "B", "2024-01-02"); err != nil {
			t.Fatalf("upsert: %v", err)
		}

		removed, err := store.DeleteByFilename(ctx, "b.md")
		if err != nil || !removed {
			t.Fatalf("expected b.md removed, got %v %v", removed, err)
		}
		removed, err = store.DeleteByFilename(ctx, "b.md")
		if err != nil || removed {
			t.Fatalf("expected second delete to be a no-op, got %v %v", removed, err)
		}

		removed, err = store.DeleteByID(ctx, a.Document.ID)
		if err != nil || !removed {
			t.Fatalf("expected delete by id, got %v %v", removed, err)
		}
		if removed, _ := store.DeleteByID(ctx, 999); removed {
			t.Fatal("expected unknown id delete to be a no-op")
		}

		count, err := store.Count(ctx)
		if err != nil || count != 0 {
			t.Fatalf("expected empty store, got %d %v", count, err)
		}
	})
}

func TestStoreUpdateTitleTouchesOnlyTitle(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		if _, err := store.Upsert(ctx, "x.md", "Old", "2024-03-05"); err != nil {
			t.Fatalf("upsert: %v", err)
		}

		ok, err := store.UpdateTitle(ctx, "x.md", "New")
		if err != nil || !ok {
			t.Fatalf("UpdateTitle: %v %v", ok, err)
		}
		doc, _ := store.FindByFilename(ctx, "x.md")
		if doc.Title != "New" || doc.Date != "2024-03-05" {
			t.Fatalf("unexpected row after title refresh: %+v", doc)
		}

		if ok, _ := store.UpdateTitle(ctx, "missing.md", "New"); ok {
			t.Fatal("expected UpdateTitle on missing row to report false")
		}
	})
}

func TestStoreListPagination(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		dates := []string{"2024-01-03", "2024-01-05", "2024-01-01", "2024-01-05", "2024-01-02"}
		for i, date := range dates {
			if _, err := store.Upsert(ctx, fmt.Sprintf("p%d.md", i), "T", date); err != nil {
				t.Fatalf("upsert: %v", err)
			}
		}

		var all []string
		for _, page := range []struct{ offset, want int }{{0, 2}, {2, 2}, {4, 1}, {6, 0}} {
			docs, err := store.List(ctx, 2, page.offset)
			if err != nil {
				t.Fatalf("List(offset=%d): %v", page.offset, err)
			}
			if len(docs) != page.want {
				t.Fatalf("offset %d: expected %d docs, got %d", page.offset, page.want, len(docs))
			}
			for _, d := range docs {
				all = append(all, d.Filename)
			}
		}

		want := []string{"p1.md", "p3.md", "p0.md", "p4.md", "p2.md"}
		if fmt.Sprint(all) != fmt.Sprint(want) {
			t.Fatalf("expected order %v, got %v", want, all)
		}

		if docs, _ := store.List(ctx, 0, 0); len(docs) != 0 {
			t.Fatalf("expected empty page for zero limit, got %d", len(docs))
		}
		if docs, _ := store.List(ctx, 10, -5); len(docs) != 5 {
			t.Fatalf("expected negative offset to clamp, got %d docs", len(docs))
		}
		docs, err := store.List(ctx, math.MaxInt, 1)
		if err != nil {
			t.Fatalf("List(max limit): %v", err)
		}
		if len(docs) != 4 || docs[0].Filename != "p3.md" {
			t.Fatalf("expected remaining 4 docs from p3.md, got %v", docs)
		}
	})
}

func TestStoreSnapshot(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		_, _ = store.Upsert(ctx, "a.md", "A", "2024-01-01")
		_, _ = store.Upsert(ctx, "b.md", "B", "2024-01-02")

		snap, err := store.Snapshot(ctx)
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if len(snap) != 2 || snap["b.md"].Title != "B" {
			t.Fatalf("unexpected snapshot %+v", snap)
		}
	})
}

func TestStoreConcurrentUpsertsSameFilename(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		var wg sync.WaitGroup
		errs := make(chan error, 16)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := store.Upsert(ctx, "race.md", fmt.Sprintf("T%d", i%2), "2024-01-01"); err != nil {
					errs <- err
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("concurrent upsert failed: %v", err)
		}

		count, _ := store.Count(ctx)
		if count != 1 {
			t.Fatalf("expected one row for race.md, got %d", count)
		}
	})
}

func TestBunStoreReportsStorageErrors(t *testing.T) {
	db, err := testsupport.NewBunMemoryDB()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	store := NewBunStore(db)
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	_ = db.Close()

	if _, err := store.List(context.Background(), 10, 0); !IsStorageError(err) {
		t.Fatalf("expected storage error after close, got %v", err)
	}
	if _, err := store.Upsert(context.Background(), "a.md", "A", ""); !IsStorageError(err) {
		t.Fatalf("expected storage error from upsert, got %v", err)
	}
	if IsStorageError(ErrDocumentNotFound) {
		t.Fatal("not-found must not be reported as a storage error")
	}
}

func TestKeyedLocksReleaseEntries(t *testing.T) {
	locks := newKeyedLocks()
	unlockA := locks.Lock("a")
	unlockB := locks.Lock("b")
	if locks.size() != 2 {
		t.Fatalf("expected 2 live locks, got %d", locks.size())
	}
	unlockA()
	unlockB()
	if locks.size() != 0 {
		t.Fatalf("expected locks to be released, got %d", locks.size())
	}
}
