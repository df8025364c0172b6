package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	GetProfile(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Profile, error)
	FindUserIDByCode(ctx context.Context, db *gorm.DB, code string) (snowflake.ID, error)
	CodeExists(ctx context.Context, db *gorm.DB, code string) (bool, error)
	SetCodeIfAbsent(ctx context.Context, db *gorm.DB, userID snowflake.ID, code string, now time.Time) (int64, error)
	SetReferredByIfAbsent(ctx context.Context, db *gorm.DB, userID, referrerID snowflake.ID, now time.Time) (int64, error)
	InsertReferral(ctx context.Context, db *gorm.DB, referral *Referral) error
	CreditReferrer(ctx context.Context, db *gorm.DB, referrerID snowflake.ID, credits int64, now time.Time) (int64, error)
	CountByStatus(ctx context.Context, db *gorm.DB, referrerID snowflake.ID) (map[Status]int64, error)
	ListRecent(ctx context.Context, db *gorm.DB, referrerID snowflake.ID, limit int) ([]RecentReferral, error)
	Leaderboard(ctx context.Context, db *gorm.DB, limit int) ([]LeaderboardEntry, error)
}
