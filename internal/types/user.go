package types

import (
	"github.com/google/uuid"
	"time"
)

type User struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Email          string     `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Password       string     `gorm:"not null;column:password" json:"-"`
	FirstName      string     `gorm:"not null;column:first_name" json:"first_name"`
	LastName       string     `gorm:"not null;column:last_name" json:"last_name"`
	Points         int        `gorm:"not null;default:0;column:points" json:"points"`
	Level          int        `gorm:"not null;default:1;column:level" json:"level"`
	StreakDays     int        `gorm:"not null;default:0;column:streak_days" json:"streak_days"`
	LastStreakDate *time.Time `gorm:"column:last_streak_date" json:"last_streak_date,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (User) TableName() string {
	return "user"
}
