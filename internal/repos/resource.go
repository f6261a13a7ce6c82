package repos

import (
	"context"
	"github.com/google/uuid"
	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/types"
	"gorm.io/gorm"
	"time"
)

type ResourceRepo interface {
	Create(ctx context.Context, tx *gorm.DB, resources []*types.Resource) ([]*types.Resource, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, resourceIDs []uuid.UUID) ([]*types.Resource, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Resource, error)
	List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.Resource, error)
	Claim(ctx context.Context, tx *gorm.DB, resourceID, claimerID uuid.UUID, at time.Time) (bool, error)
}

type resourceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResourceRepo(db *gorm.DB, baseLog *logger.Logger) ResourceRepo {
	repoLog := baseLog.With("repo", "ResourceRepo")
	return &resourceRepo{db: db, log: repoLog}
}

func (rr *resourceRepo) Create(ctx context.Context, tx *gorm.DB, resources []*types.Resource) ([]*types.Resource, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	if len(resources) == 0 {
		return []*types.Resource{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

func (rr *resourceRepo) GetByIDs(ctx context.Context, tx *gorm.DB, resourceIDs []uuid.UUID) ([]*types.Resource, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var results []*types.Resource
	if len(resourceIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", resourceIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *resourceRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Resource, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var results []*types.Resource
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *resourceRepo) List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.Resource, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var results []*types.Resource
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// Claim transfers the resource to claimerID only if it is still unclaimed and
// not owned by the claimer. The condition lives in the UPDATE itself so two
// concurrent claimants can never both succeed; zero affected rows means the
// claim lost.
func (rr *resourceRepo) Claim(ctx context.Context, tx *gorm.DB, resourceID, claimerID uuid.UUID, at time.Time) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	result := transaction.WithContext(ctx).
		Model(&types.Resource{}).
		Where("id = ? AND claimed_by_id IS NULL AND user_id <> ?", resourceID, claimerID).
		Updates(map[string]interface{}{
			"claimed_by_id": claimerID,
			"claimed_at":    at,
			"updated_at":    at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
