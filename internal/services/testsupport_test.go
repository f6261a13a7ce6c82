package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/types"
)

func testLogger(tb testing.TB) *logger.Logger {
	tb.Helper()
	log, err := logger.New("test")
	if err != nil {
		tb.Fatalf("init logger: %v", err)
	}
	return log
}

// testDB opens a fresh in-memory sqlite database. A single connection is
// forced so the in-memory database survives across goroutines and concurrent
// transactions serialize instead of fighting over file locks.
func testDB(tb testing.TB) *gorm.DB {
	tb.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&types.User{}, &types.Resource{}, &types.PointEntry{}); err != nil {
		tb.Fatalf("automigrate: %v", err)
	}
	tb.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

func seedUser(tb testing.TB, ctx context.Context, db *gorm.DB, points int) *types.User {
	tb.Helper()
	u := &types.User{
		ID:        uuid.New(),
		Email:     fmt.Sprintf("%s@example.com", uuid.NewString()[:8]),
		Password:  "pw",
		FirstName: "A",
		LastName:  "B",
		Points:    points,
		Level:     LevelForPoints(points),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func seedResource(tb testing.TB, ctx context.Context, db *gorm.DB, ownerID uuid.UUID) *types.Resource {
	tb.Helper()
	now := time.Now()
	r := &types.Resource{
		ID:         uuid.New(),
		UserID:     ownerID,
		Title:      "Intro to Algebra",
		Category:   "Mathematics",
		Quality:    types.QualityMedium,
		MediaKind:  types.MediaKindDocument,
		StorageKey: fmt.Sprintf("resources/%s/%s", ownerID, uuid.New()),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed resource: %v", err)
	}
	return r
}

// fakeAI returns canned structured responses keyed by schema name.
type fakeAI struct {
	mu        sync.Mutex
	responses map[string]map[string]any
	errs      map[string]error
	calls     []string
}

func newFakeAI() *fakeAI {
	return &fakeAI{
		responses: map[string]map[string]any{},
		errs:      map[string]error{},
	}
}

func (f *fakeAI) respond(schemaName string, obj map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[schemaName] = obj
}

func (f *fakeAI) fail(schemaName string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[schemaName] = err
}

func (f *fakeAI) callCount(schemaName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == schemaName {
			n++
		}
	}
	return n
}

func (f *fakeAI) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, schemaName)
	if err, ok := f.errs[schemaName]; ok {
		return nil, err
	}
	if obj, ok := f.responses[schemaName]; ok {
		return obj, nil
	}
	return nil, fmt.Errorf("no canned response for %q", schemaName)
}
