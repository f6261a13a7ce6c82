package repos

import (
	"context"
	"github.com/google/uuid"
	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/types"
	"gorm.io/gorm"
)

// PointEntryRepo is append-only: no update or delete methods exist on purpose.
type PointEntryRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entries []*types.PointEntry) ([]*types.PointEntry, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.PointEntry, error)
	SumByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int, error)
}

type pointEntryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPointEntryRepo(db *gorm.DB, baseLog *logger.Logger) PointEntryRepo {
	repoLog := baseLog.With("repo", "PointEntryRepo")
	return &pointEntryRepo{db: db, log: repoLog}
}

func (pr *pointEntryRepo) Create(ctx context.Context, tx *gorm.DB, entries []*types.PointEntry) ([]*types.PointEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}

	if len(entries) == 0 {
		return []*types.PointEntry{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (pr *pointEntryRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.PointEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}

	var results []*types.PointEntry
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// SumByUserID reconstructs the balance from the ledger; used for audits.
func (pr *pointEntryRepo) SumByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}

	var sum *int
	if err := transaction.WithContext(ctx).
		Model(&types.PointEntry{}).
		Select("SUM(delta)").
		Where("user_id = ?", userID).
		Scan(&sum).Error; err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}
