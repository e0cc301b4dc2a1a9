package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"appstore/internal/adapters/storage"
	domain "appstore/internal/domain/app"
)

func newTestStore(t *testing.T, path string) *SQLiteStore {
	t.Helper()
	db, err := storage.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStore(db)
}

func seedApp(t *testing.T, s *SQLiteStore, id, name, category string, updated time.Time) domain.App {
	t.Helper()
	a := domain.App{ID: id, Name: name, CategorySlug: category, CreatedAt: updated, UpdatedAt: updated}
	a.Normalize()
	if err := s.Create(context.Background(), a); err != nil {
		t.Fatalf("Create %s: %v", name, err)
	}
	return a
}

func TestSQLiteStore_CreateGetUpdate(t *testing.T) {
	s := newTestStore(t, ":memory:")
	ctx := context.Background()
	a := seedApp(t, s, "a1", "Ledger", "finance", time.Now())

	got, err := s.GetByID(ctx, "a1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.StatusAvailable || got.CategorySlug != "finance" {
		t.Errorf("got %+v", got)
	}

	a.Description = "Double-entry **books**"
	a.Status = domain.StatusBeta
	if err := s.Update(ctx, a); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ = s.GetByID(ctx, "a1")
	if got.Description != a.Description || got.Status != domain.StatusBeta {
		t.Errorf("update not persisted: %+v", got)
	}

	if _, err := s.GetByID(ctx, "missing"); err != domain.ErrNotFound {
		t.Errorf("GetByID(missing) = %v", err)
	}
	if err := s.Update(ctx, domain.App{ID: "missing"}); err != domain.ErrNotFound {
		t.Errorf("Update(missing) = %v", err)
	}
}

func TestSQLiteStore_ListByCategorySorted(t *testing.T) {
	s := newTestStore(t, ":memory:")
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedApp(t, s, "a1", "zeta", "it", base)
	seedApp(t, s, "a2", "Alpha", "it", base.Add(time.Hour))
	seedApp(t, s, "a3", "Mid", "finance", base.Add(2*time.Hour))

	apps, err := s.List(context.Background(), ListFilter{CategorySlug: "it"})
	if err != nil {
		t.Fatal(err)
	}
	if len(apps) != 2 || apps[0].Name != "Alpha" || apps[1].Name != "zeta" {
		t.Errorf("by name = %+v", apps)
	}

	apps, err = s.List(context.Background(), ListFilter{SortBy: SortUpdatedAt, Desc: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(apps) != 3 || apps[0].ID != "a3" || apps[2].ID != "a1" {
		t.Errorf("by updated desc = %v", ids(apps))
	}
}

func TestSQLiteStore_SetFile(t *testing.T) {
	s := newTestStore(t, ":memory:")
	seedApp(t, s, "a1", "Ledger", "finance", time.Now())
	info := domain.FileInfo{Path: "apps/a1/1.msi", Name: "ledger.msi", Size: 2048, Type: "application/x-msi"}
	if err := s.SetFile(context.Background(), "a1", info); err != nil {
		t.Fatalf("SetFile: %v", err)
	}
	got, _ := s.GetByID(context.Background(), "a1")
	if got.FilePath != info.Path || got.FileSize != 2048 || !got.HasFile() {
		t.Errorf("file not stored: %+v", got)
	}
}

func TestSQLiteStore_IncrementDownloadsIsAtomic(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "apps.db"))
	seedApp(t, s, "a1", "Ledger", "finance", time.Now())

	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.IncrementDownloads(context.Background(), "a1"); err != nil {
				t.Errorf("IncrementDownloads: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.GetByID(context.Background(), "a1")
	if got.DownloadCount != n {
		t.Errorf("download_count = %d, want %d", got.DownloadCount, n)
	}
	if _, err := s.IncrementDownloads(context.Background(), "missing"); err != domain.ErrNotFound {
		t.Errorf("IncrementDownloads(missing) = %v", err)
	}
}

func TestSQLiteStore_VersionsNewestFirst(t *testing.T) {
	s := newTestStore(t, ":memory:")
	ctx := context.Background()
	seedApp(t, s, "a1", "Ledger", "finance", time.Now())
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range []string{"1.0.0", "1.1.0", "2.0.0"} {
		err := s.AddVersion(ctx, domain.Version{ID: v, AppID: "a1", Version: v, CreatedAt: base.Add(time.Duration(i) * time.Hour)})
		if err != nil {
			t.Fatalf("AddVersion %s: %v", v, err)
		}
	}
	versions, err := s.ListVersions(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 3 || versions[0].Version != "2.0.0" {
		t.Errorf("versions = %+v", versions)
	}
	app, _ := s.GetByID(ctx, "a1")
	if app.Version != "2.0.0" {
		t.Errorf("current version = %q, want 2.0.0", app.Version)
	}

	if err := s.AddVersion(ctx, domain.Version{ID: "x", AppID: "missing", Version: "1"}); err != domain.ErrNotFound {
		t.Errorf("AddVersion(missing app) = %v", err)
	}
}

func TestSQLiteStore_DeleteCascades(t *testing.T) {
	s := newTestStore(t, ":memory:")
	ctx := context.Background()
	seedApp(t, s, "a1", "Ledger", "finance", time.Now())
	s.AddVersion(ctx, domain.Version{ID: "v1", AppID: "a1", Version: "1", CreatedAt: time.Now()})

	if err := s.Delete(ctx, "a1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	versions, _ := s.ListVersions(ctx, "a1")
	if len(versions) != 0 {
		t.Errorf("versions survived delete: %d", len(versions))
	}
	if err := s.Delete(ctx, "a1"); err != domain.ErrNotFound {
		t.Errorf("second Delete = %v", err)
	}
}

func ids(apps []domain.App) []string {
	out := make([]string, len(apps))
	for i, a := range apps {
		out[i] = a.ID
	}
	return out
}
