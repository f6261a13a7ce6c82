package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/repos"
	"github.com/openshelf/openshelf-backend/internal/types"
)

// PointsService owns every mutation of a user's balance, level and streak.
// Award applies the delta, recomputes the level and appends the ledger entry
// in one transaction; the balance update is an in-database increment so
// concurrent awards serialize on the row instead of racing a read.
type PointsService interface {
	Award(ctx context.Context, tx *gorm.DB, userID uuid.UUID, delta int, reason string, meta map[string]any) (*types.User, error)
	TouchStreak(ctx context.Context, tx *gorm.DB, userID uuid.UUID, day time.Time) (*types.User, error)
}

type pointsService struct {
	db             *gorm.DB
	log            *logger.Logger
	userRepo       repos.UserRepo
	pointEntryRepo repos.PointEntryRepo
}

func NewPointsService(
	db *gorm.DB,
	baseLog *logger.Logger,
	userRepo repos.UserRepo,
	pointEntryRepo repos.PointEntryRepo,
) PointsService {
	serviceLog := baseLog.With("service", "PointsService")
	return &pointsService{
		db:             db,
		log:            serviceLog,
		userRepo:       userRepo,
		pointEntryRepo: pointEntryRepo,
	}
}

// LevelForPoints is the level curve: max(1, floor(points/1000)+1). Level is
// always derived from the balance, never stored independently of it.
func LevelForPoints(points int) int {
	level := points/1000 + 1
	if level < 1 {
		level = 1
	}
	return level
}

func (ps *pointsService) Award(ctx context.Context, tx *gorm.DB, userID uuid.UUID, delta int, reason string, meta map[string]any) (*types.User, error) {
	var user *types.User

	run := func(transaction *gorm.DB) error {
		now := time.Now()

		// Atomic increment: the row lock taken here serializes concurrent awards.
		result := transaction.WithContext(ctx).
			Model(&types.User{}).
			Where("id = ?", userID).
			Update("points", gorm.Expr("points + ?", delta))
		if result.Error != nil {
			return fmt.Errorf("increment points: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("award: user %s not found", userID)
		}

		var updated types.User
		if err := transaction.WithContext(ctx).
			Where("id = ?", userID).
			First(&updated).Error; err != nil {
			return fmt.Errorf("reload user after award: %w", err)
		}

		level := LevelForPoints(updated.Points)
		if err := transaction.WithContext(ctx).
			Model(&types.User{}).
			Where("id = ?", userID).
			Updates(map[string]interface{}{
				"level":      level,
				"updated_at": now,
			}).Error; err != nil {
			return fmt.Errorf("update level: %w", err)
		}
		updated.Level = level

		var metaJSON datatypes.JSON
		if meta != nil {
			b, err := json.Marshal(meta)
			if err != nil {
				return fmt.Errorf("marshal entry metadata: %w", err)
			}
			metaJSON = datatypes.JSON(b)
		}

		entry := &types.PointEntry{
			ID:           uuid.New(),
			UserID:       userID,
			Delta:        delta,
			Reason:       reason,
			Metadata:     metaJSON,
			BalanceAfter: updated.Points,
			CreatedAt:    now,
		}
		if _, err := ps.pointEntryRepo.Create(ctx, transaction, []*types.PointEntry{entry}); err != nil {
			return fmt.Errorf("append point entry: %w", err)
		}

		user = &updated
		return nil
	}

	var err error
	if tx != nil {
		err = run(tx)
	} else {
		err = ps.db.WithContext(ctx).Transaction(run)
	}
	if err != nil {
		ps.log.Error("Award failed", "user_id", userID, "delta", delta, "reason", reason, "error", err)
		return nil, err
	}

	ps.log.Info("Points awarded", "user_id", userID, "delta", delta, "reason", reason, "balance", user.Points, "level", user.Level)
	return user, nil
}

// TouchStreak refreshes the daily streak: a no-op if already touched today,
// +1 if the last touch was yesterday, reset to 1 otherwise. The update is
// conditional on the stored marker so a same-day double touch applies once.
func (ps *pointsService) TouchStreak(ctx context.Context, tx *gorm.DB, userID uuid.UUID, day time.Time) (*types.User, error) {
	var user *types.User

	run := func(transaction *gorm.DB) error {
		var current types.User
		if err := transaction.WithContext(ctx).
			Where("id = ?", userID).
			First(&current).Error; err != nil {
			return fmt.Errorf("load user for streak: %w", err)
		}

		today := dateOnly(day)
		if current.LastStreakDate != nil && sameDay(*current.LastStreakDate, today) {
			user = &current
			return nil
		}

		streak := 1
		if current.LastStreakDate != nil && sameDay(current.LastStreakDate.AddDate(0, 0, 1), today) {
			streak = current.StreakDays + 1
		}

		result := transaction.WithContext(ctx).
			Model(&types.User{}).
			Where("id = ? AND (last_streak_date IS NULL OR last_streak_date < ?)", userID, today).
			Updates(map[string]interface{}{
				"streak_days":      streak,
				"last_streak_date": today,
				"updated_at":       time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("update streak: %w", result.Error)
		}
		if result.RowsAffected == 1 {
			current.StreakDays = streak
			current.LastStreakDate = &today
		}
		user = &current
		return nil
	}

	var err error
	if tx != nil {
		err = run(tx)
	} else {
		err = ps.db.WithContext(ctx).Transaction(run)
	}
	if err != nil {
		ps.log.Error("TouchStreak failed", "user_id", userID, "error", err)
		return nil, err
	}
	return user, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
