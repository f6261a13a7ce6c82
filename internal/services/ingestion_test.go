package services

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/openshelf/openshelf-backend/internal/repos"
	"github.com/openshelf/openshelf-backend/internal/types"
)

type fakeBucket struct {
	mu         sync.Mutex
	uploads    map[string][]byte
	failUpload error
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{uploads: map[string][]byte{}}
}

func (f *fakeBucket) UploadFile(ctx context.Context, key string, file io.Reader) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpload != nil {
		return f.failUpload
	}
	b, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	f.uploads[key] = b
	return nil
}

func (f *fakeBucket) DeleteFile(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.uploads, key)
	return nil
}

func (f *fakeBucket) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

func (f *fakeBucket) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

type ingestFixture struct {
	svc    IngestionService
	db     *gorm.DB
	ai     *fakeAI
	bucket *fakeBucket
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	db := testDB(t)
	log := testLogger(t)

	ai := newFakeAI()
	bucket := newFakeBucket()
	userRepo := repos.NewUserRepo(db, log)
	entryRepo := repos.NewPointEntryRepo(db, log)
	resourceRepo := repos.NewResourceRepo(db, log)

	svc := NewIngestionService(
		db,
		log,
		NewTextExtractService(log, nil),
		NewMetadataService(log, ai),
		NewRelevanceService(log, ai),
		bucket,
		resourceRepo,
		NewPointsService(db, log, userRepo, entryRepo),
	)
	return &ingestFixture{svc: svc, db: db, ai: ai, bucket: bucket}
}

func writeTempUpload(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.txt")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp upload: %v", err)
	}
	return path
}

func textUpload(path string) ResourceUpload {
	return ResourceUpload{
		TempPath:     path,
		OriginalName: "notes.txt",
		MimeType:     "text/plain",
		SizeBytes:    int64(len("x")),
		MediaKind:    types.MediaKindDocument,
	}
}

func TestIngestAcceptedEndToEnd(t *testing.T) {
	fx := newIngestFixture(t)
	ctx := context.Background()
	user := seedUser(t, ctx, fx.db, 0)
	path := writeTempUpload(t, "Atlas of India. A reference atlas with maps of every state.")

	fx.ai.respond("resource_metadata", map[string]any{
		"title":                 "Indian Atlas",
		"title_exact_from_text": "Atlas of India",
		"category":              "Geography",
		"description":           "A reference atlas.",
		"quality":               "high",
	})
	fx.ai.respond("resource_relevance", map[string]any{"relevant": true, "reason": "reference work"})

	result, err := fx.svc.IngestResource(ctx, user.ID, textUpload(path))
	if err != nil {
		t.Fatalf("IngestResource: %v", err)
	}
	if result.Status != IngestAccepted {
		t.Fatalf("status: want=%s got=%s (%s)", IngestAccepted, result.Status, result.Reason)
	}
	if result.Resource == nil {
		t.Fatal("accepted result must carry the resource")
	}
	if result.Resource.Title != "Atlas of India" {
		t.Fatalf("verbatim title must win: got %q", result.Resource.Title)
	}
	if result.Resource.Quality != types.QualityHigh {
		t.Fatalf("quality: got %q", result.Resource.Quality)
	}

	// Durable storage holds the file under the resource's key.
	if fx.bucket.uploadCount() != 1 {
		t.Fatalf("uploads: want=1 got=%d", fx.bucket.uploadCount())
	}

	// Credit and streak landed.
	var reloaded types.User
	if err := fx.db.WithContext(ctx).Where("id = ?", user.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.Points != 50 {
		t.Fatalf("points: want=50 got=%d", reloaded.Points)
	}
	if reloaded.StreakDays != 1 {
		t.Fatalf("streak: want=1 got=%d", reloaded.StreakDays)
	}

	var entryCount int64
	if err := fx.db.WithContext(ctx).Model(&types.PointEntry{}).Where("user_id = ?", user.ID).Count(&entryCount).Error; err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if entryCount != 1 {
		t.Fatalf("ledger entries: want=1 got=%d", entryCount)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("temp upload must be removed after ingestion")
	}
}

func TestIngestRejectsLowQuality(t *testing.T) {
	fx := newIngestFixture(t)
	ctx := context.Background()
	user := seedUser(t, ctx, fx.db, 0)
	path := writeTempUpload(t, "blurry notes")

	fx.ai.respond("resource_metadata", map[string]any{
		"title":                 "Notes",
		"title_exact_from_text": "",
		"category":              "General",
		"description":           "d",
		"quality":               "low",
	})

	result, err := fx.svc.IngestResource(ctx, user.ID, textUpload(path))
	if err != nil {
		t.Fatalf("IngestResource: %v", err)
	}
	if result.Status != IngestRejectedQuality {
		t.Fatalf("status: want=%s got=%s", IngestRejectedQuality, result.Status)
	}
	if result.Reason != ReasonLowQuality {
		t.Fatalf("reason: want=%s got=%s", ReasonLowQuality, result.Reason)
	}

	if fx.ai.callCount("resource_relevance") != 0 {
		t.Fatal("quality rejection must short-circuit before relevance")
	}
	if fx.bucket.uploadCount() != 0 {
		t.Fatal("quality rejection must not touch storage")
	}
	assertNoDurableRows(t, fx.db, user.ID)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("temp upload must be removed on rejection")
	}
}

func TestIngestRejectsWhenInferenceDown(t *testing.T) {
	fx := newIngestFixture(t)
	ctx := context.Background()
	user := seedUser(t, ctx, fx.db, 0)
	path := writeTempUpload(t, "some study notes")

	// Metadata inference fails (falls back to the default record, medium
	// quality) and the relevance classifier fails too: the resource must be
	// rejected, never silently accepted.
	fx.ai.fail("resource_metadata", errors.New("inference unavailable"))
	fx.ai.fail("resource_relevance", errors.New("inference unavailable"))

	result, err := fx.svc.IngestResource(ctx, user.ID, textUpload(path))
	if err != nil {
		t.Fatalf("IngestResource: %v", err)
	}
	if result.Status != IngestRejectedRelevance {
		t.Fatalf("status: want=%s got=%s", IngestRejectedRelevance, result.Status)
	}

	if fx.bucket.uploadCount() != 0 {
		t.Fatal("rejection must not touch storage")
	}
	assertNoDurableRows(t, fx.db, user.ID)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("temp upload must be removed on rejection")
	}
}

func TestIngestStorageFailure(t *testing.T) {
	fx := newIngestFixture(t)
	ctx := context.Background()
	user := seedUser(t, ctx, fx.db, 0)
	path := writeTempUpload(t, "Atlas of India reference maps")

	fx.ai.respond("resource_metadata", map[string]any{
		"title":                 "Indian Atlas",
		"title_exact_from_text": "Atlas of India",
		"category":              "Geography",
		"description":           "d",
		"quality":               "high",
	})
	fx.ai.respond("resource_relevance", map[string]any{"relevant": true, "reason": "ok"})
	fx.bucket.failUpload = errors.New("gcs unavailable")

	_, err := fx.svc.IngestResource(ctx, user.ID, textUpload(path))
	if !errors.Is(err, ErrStorageCommit) {
		t.Fatalf("want ErrStorageCommit, got %v", err)
	}

	assertNoDurableRows(t, fx.db, user.ID)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("temp upload must be removed on storage failure")
	}
}

func TestIngestPersistenceFailureDeletesStorageObject(t *testing.T) {
	fx := newIngestFixture(t)
	ctx := context.Background()
	user := seedUser(t, ctx, fx.db, 0)
	path := writeTempUpload(t, "Atlas of India reference maps")

	fx.ai.respond("resource_metadata", map[string]any{
		"title":                 "Indian Atlas",
		"title_exact_from_text": "Atlas of India",
		"category":              "Geography",
		"description":           "d",
		"quality":               "high",
	})
	fx.ai.respond("resource_relevance", map[string]any{"relevant": true, "reason": "ok"})

	// Make the row insert fail after the storage commit succeeded.
	if err := fx.db.Migrator().DropTable(&types.Resource{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	_, err := fx.svc.IngestResource(ctx, user.ID, textUpload(path))
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("want ErrPersistence, got %v", err)
	}

	// The committed object was deleted again, no orphan remains.
	if fx.bucket.uploadCount() != 0 {
		t.Fatalf("orphaned storage objects: want=0 got=%d", fx.bucket.uploadCount())
	}

	var entryCount int64
	if err := fx.db.WithContext(ctx).Model(&types.PointEntry{}).Where("user_id = ?", user.ID).Count(&entryCount).Error; err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if entryCount != 0 {
		t.Fatalf("no credit may land without a resource row: entries=%d", entryCount)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("temp upload must be removed on persistence failure")
	}
}

func TestIngestMissingTempFile(t *testing.T) {
	fx := newIngestFixture(t)
	ctx := context.Background()
	user := seedUser(t, ctx, fx.db, 0)

	upload := textUpload(filepath.Join(t.TempDir(), "never-written"))
	if _, err := fx.svc.IngestResource(ctx, user.ID, upload); err == nil {
		t.Fatal("missing temp file must fail")
	}
	if fx.bucket.uploadCount() != 0 {
		t.Fatal("no upload may happen for a missing file")
	}
}

func assertNoDurableRows(t *testing.T, db *gorm.DB, userID interface{}) {
	t.Helper()
	var resourceCount, entryCount int64
	if err := db.Model(&types.Resource{}).Where("user_id = ?", userID).Count(&resourceCount).Error; err != nil {
		t.Fatalf("count resources: %v", err)
	}
	if err := db.Model(&types.PointEntry{}).Where("user_id = ?", userID).Count(&entryCount).Error; err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if resourceCount != 0 || entryCount != 0 {
		t.Fatalf("durable rows leaked: resources=%d entries=%d", resourceCount, entryCount)
	}
}
