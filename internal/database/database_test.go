package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setupTestDB creates a database in a temporary directory.
func setupTestDB(t testing.TB) *Database {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createTestFolder(t testing.TB, db *Database, id, name string) *Folder {
	t.Helper()
	f, err := db.CreateFolder(context.Background(), Folder{ID: id, Name: name, Visible: true, GridEligible: true})
	if err != nil {
		t.Fatalf("CreateFolder(%s) failed: %v", id, err)
	}
	return f
}

func imageVariants() []Variant {
	return []Variant{
		{Kind: VariantOriginal, Path: "/images/F1/original/a.jpg", Size: 1000},
		{Kind: VariantWebP, Path: "/images/F1/webp/a.webp", Size: 400, Width: IntPtr(30), Height: IntPtr(40)},
		{Kind: VariantThumbnail, Path: "/images/F1/thumbs/a_thumb.webp", Size: 50, Width: IntPtr(300), Height: IntPtr(300)},
	}
}

func TestNewDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
	if db.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
	}
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping() failed: %v", err)
	}

	version, err := db.GetMetadata(context.Background(), "schema_version")
	if err != nil {
		t.Fatalf("GetMetadata(schema_version) failed: %v", err)
	}
	if version != schemaVersion {
		t.Errorf("schema_version = %q, want %q", version, schemaVersion)
	}
}

func TestNewDatabaseReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	createTestFolder(t, db, "F1", "Live")
	_ = db.Close()

	db, err = New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	exists, err := db.FolderExists(context.Background(), "F1")
	if err != nil || !exists {
		t.Errorf("FolderExists after reopen = %v, %v", exists, err)
	}
}

func TestMigrationAddsOrientation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// Simulate a database created before the orientation column existed.
	if _, err := db.db.ExecContext(ctx, "ALTER TABLE media_files DROP COLUMN orientation"); err != nil {
		t.Skipf("sqlite build cannot drop columns: %v", err)
	}
	if err := db.runMigrations(ctx); err != nil {
		t.Fatalf("runMigrations() failed: %v", err)
	}

	var n int
	if err := db.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pragma_table_info('media_files') WHERE name='orientation'").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("orientation column count = %d, want 1", n)
	}
}

func TestCreateWithVariants(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestFolder(t, db, "F1", "Live")

	file := MediaFile{
		Hash:     "abc123",
		FileName: "a.jpg",
		Kind:     FileKindImage,
		Width:    IntPtr(30),
		Height:   IntPtr(40),
		Size:     1000,
		FolderID: "F1",
	}

	created, err := db.CreateWithVariants(ctx, file, imageVariants())
	if err != nil {
		t.Fatalf("CreateWithVariants() failed: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created media file has no id")
	}
	if created.Orientation != 1 {
		t.Errorf("Orientation = %d, want 1", created.Orientation)
	}
	if len(created.Variants) != 3 {
		t.Fatalf("len(Variants) = %d, want 3", len(created.Variants))
	}
	for _, v := range created.Variants {
		if v.ID == "" || v.MediaFileID != created.ID {
			t.Errorf("variant %s not linked: id=%q media=%q", v.Kind, v.ID, v.MediaFileID)
		}
	}

	got, err := db.GetMediaFile(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetMediaFile() failed: %v", err)
	}
	if got.Hash != "abc123" || got.Kind != FileKindImage || got.FolderID != "F1" {
		t.Errorf("GetMediaFile() = %+v", got)
	}
	if got.Width == nil || *got.Width != 30 || got.Height == nil || *got.Height != 40 {
		t.Errorf("dimensions not stored: %v x %v", got.Width, got.Height)
	}
	if got.Duration != nil {
		t.Errorf("Duration = %v, want nil", *got.Duration)
	}

	kinds := []VariantKind{VariantOriginal, VariantWebP, VariantThumbnail}
	for i, v := range got.Variants {
		if v.Kind != kinds[i] {
			t.Errorf("variant[%d].Kind = %s, want %s", i, v.Kind, kinds[i])
		}
	}
	if thumb := got.Variant(VariantThumbnail); thumb == nil || *thumb.Width != 300 {
		t.Errorf("thumbnail variant = %+v", thumb)
	}
	if orig := got.Variant(VariantOriginal); orig == nil || orig.Width != nil {
		t.Errorf("original variant = %+v, want no dimensions", orig)
	}
}

func TestCreateWithVariantsMissingFolder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.CreateWithVariants(ctx, MediaFile{
		Hash: "h", FileName: "a.jpg", Kind: FileKindImage, FolderID: "missing",
	}, imageVariants())
	if !errors.Is(err, ErrFolderNotFound) {
		t.Fatalf("CreateWithVariants() error = %v, want ErrFolderNotFound", err)
	}

	n, err := db.CountMediaFiles(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("CountMediaFiles() = %d, want 0", n)
	}
	assertVariantCount(t, db, 0)
}

func TestCreateWithVariantsRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestFolder(t, db, "F1", "Live")

	// Two originals violate UNIQUE(media_file_id, kind) on the second insert.
	variants := []Variant{
		{Kind: VariantOriginal, Path: "/a"},
		{Kind: VariantOriginal, Path: "/b"},
	}
	if _, err := db.CreateWithVariants(ctx, MediaFile{
		Hash: "h", FileName: "a.jpg", Kind: FileKindImage, FolderID: "F1",
	}, variants); err == nil {
		t.Fatal("CreateWithVariants() expected error")
	}

	n, err := db.CountMediaFiles(ctx, "F1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("media file row survived rollback: count = %d", n)
	}
	assertVariantCount(t, db, 0)
}

func assertVariantCount(t *testing.T, db *Database, want int) {
	t.Helper()
	var n int
	if err := db.db.QueryRow("SELECT COUNT(*) FROM variants").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != want {
		t.Errorf("variant rows = %d, want %d", n, want)
	}
}

func TestFindByHash(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestFolder(t, db, "F1", "Live")

	got, err := db.FindByHash(ctx, "nope")
	if err != nil {
		t.Fatalf("FindByHash() failed: %v", err)
	}
	if got != nil {
		t.Errorf("FindByHash(missing) = %+v, want nil", got)
	}

	created, err := db.CreateWithVariants(ctx, MediaFile{
		Hash: "feed", FileName: "v.mp4", Kind: FileKindVideo, FolderID: "F1",
	}, []Variant{{Kind: VariantOriginal, Path: "/images/F1/original/v.mp4"}})
	if err != nil {
		t.Fatal(err)
	}

	got, err = db.FindByHash(ctx, "feed")
	if err != nil {
		t.Fatalf("FindByHash() failed: %v", err)
	}
	if got == nil || got.ID != created.ID {
		t.Errorf("FindByHash() = %+v, want id %s", got, created.ID)
	}
}

func TestDeleteMediaFileCascades(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestFolder(t, db, "F1", "Live")

	created, err := db.CreateWithVariants(ctx, MediaFile{
		Hash: "h", FileName: "a.jpg", Kind: FileKindImage, FolderID: "F1",
	}, imageVariants())
	if err != nil {
		t.Fatal(err)
	}
	assertVariantCount(t, db, 3)

	if err := db.DeleteMediaFile(ctx, created.ID); err != nil {
		t.Fatalf("DeleteMediaFile() failed: %v", err)
	}
	assertVariantCount(t, db, 0)

	if err := db.DeleteMediaFile(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteMediaFile() error = %v, want ErrNotFound", err)
	}
	if _, err := db.GetMediaFile(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMediaFile() error = %v, want ErrNotFound", err)
	}
}

func TestLastIngest(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	got, err := db.GetLastIngest(ctx)
	if err != nil {
		t.Fatalf("GetLastIngest() failed: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("GetLastIngest() = %v, want zero", got)
	}

	now := time.Now().Truncate(time.Second)
	if err := db.SetLastIngest(ctx, now); err != nil {
		t.Fatal(err)
	}
	got, err = db.GetLastIngest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(now) {
		t.Errorf("GetLastIngest() = %v, want %v", got, now)
	}
}

func TestGetStats(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	stats, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() on empty db failed: %v", err)
	}
	if stats != (LibraryStats{}) {
		t.Errorf("empty stats = %+v", stats)
	}

	createTestFolder(t, db, "F1", "Live")
	createTestFolder(t, db, "F2", "Archive")
	for _, hash := range []string{"a", "b"} {
		if _, err := db.CreateWithVariants(ctx, MediaFile{
			Hash: hash, FileName: hash + ".jpg", Kind: FileKindImage, FolderID: "F1",
		}, imageVariants()); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.CreateWithVariants(ctx, MediaFile{
		Hash: "v", FileName: "v.mp4", Kind: FileKindVideo, FolderID: "F2",
	}, []Variant{{Kind: VariantOriginal, Path: "/images/F2/original/v.mp4"}}); err != nil {
		t.Fatal(err)
	}

	stats, err = db.GetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := LibraryStats{Images: 2, Videos: 1, Folders: 2}
	if stats != want {
		t.Errorf("GetStats() = %+v, want %+v", stats, want)
	}
}
