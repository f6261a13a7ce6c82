package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/repos"
	"github.com/openshelf/openshelf-backend/internal/types"
	"github.com/openshelf/openshelf-backend/internal/utils"
)

// ResourceService is the read/claim surface over persisted resources. The
// ingestion pipeline is the only writer of new rows.
type ResourceService interface {
	GetResource(ctx context.Context, resourceID uuid.UUID) (*types.Resource, error)
	ListResources(ctx context.Context, limit, offset int) ([]*types.Resource, error)
	ListUserResources(ctx context.Context, userID uuid.UUID) ([]*types.Resource, error)
	ClaimResource(ctx context.Context, resourceID, claimerID uuid.UUID) (*types.Resource, error)
}

type resourceService struct {
	db            *gorm.DB
	log           *logger.Logger
	resourceRepo  repos.ResourceRepo
	pointsService PointsService
	claimCost     int
}

func NewResourceService(
	db *gorm.DB,
	baseLog *logger.Logger,
	resourceRepo repos.ResourceRepo,
	pointsService PointsService,
) ResourceService {
	serviceLog := baseLog.With("service", "ResourceService")
	claimCost := utils.GetEnvAsInt("CLAIM_COST_POINTS", 10, baseLog)
	return &resourceService{
		db:            db,
		log:           serviceLog,
		resourceRepo:  resourceRepo,
		pointsService: pointsService,
		claimCost:     claimCost,
	}
}

func (rs *resourceService) GetResource(ctx context.Context, resourceID uuid.UUID) (*types.Resource, error) {
	rows, err := rs.resourceRepo.GetByIDs(ctx, nil, []uuid.UUID{resourceID})
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	if len(rows) == 0 || rows[0] == nil {
		return nil, ErrResourceNotFound
	}
	return rows[0], nil
}

func (rs *resourceService) ListResources(ctx context.Context, limit, offset int) ([]*types.Resource, error) {
	return rs.resourceRepo.List(ctx, nil, limit, offset)
}

func (rs *resourceService) ListUserResources(ctx context.Context, userID uuid.UUID) ([]*types.Resource, error) {
	return rs.resourceRepo.GetByUserID(ctx, nil, userID)
}

// ClaimResource transfers an unclaimed resource to claimerID. The claim itself
// is a single conditional UPDATE so concurrent claimants cannot both win, and
// the point transfer rides the same transaction as the claim.
func (rs *resourceService) ClaimResource(ctx context.Context, resourceID, claimerID uuid.UUID) (*types.Resource, error) {
	var claimed *types.Resource

	err := rs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		ok, err := rs.resourceRepo.Claim(ctx, tx, resourceID, claimerID, now)
		if err != nil {
			return fmt.Errorf("claim update: %w", err)
		}
		if !ok {
			// Zero rows matched: work out which precondition failed for the caller.
			rows, getErr := rs.resourceRepo.GetByIDs(ctx, tx, []uuid.UUID{resourceID})
			if getErr != nil {
				return fmt.Errorf("claim lookup: %w", getErr)
			}
			if len(rows) == 0 || rows[0] == nil {
				return ErrResourceNotFound
			}
			if rows[0].UserID == claimerID {
				return ErrOwnResource
			}
			return ErrAlreadyClaimed
		}

		rows, err := rs.resourceRepo.GetByIDs(ctx, tx, []uuid.UUID{resourceID})
		if err != nil || len(rows) == 0 || rows[0] == nil {
			return fmt.Errorf("reload claimed resource: %v", err)
		}
		claimed = rows[0]

		if rs.claimCost > 0 {
			meta := map[string]any{"resource_id": resourceID.String()}
			if _, err := rs.pointsService.Award(ctx, tx, claimerID, -rs.claimCost, types.PointReasonClaimCost, meta); err != nil {
				return fmt.Errorf("%w: %v", ErrLedger, err)
			}
			if _, err := rs.pointsService.Award(ctx, tx, claimed.UserID, rs.claimCost, types.PointReasonClaimEarning, meta); err != nil {
				return fmt.Errorf("%w: %v", ErrLedger, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rs.log.Info("Resource claimed", "resource_id", resourceID, "claimer_id", claimerID)
	return claimed, nil
}
