package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/internal/referral/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) GetProfile(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.Profile, error) {
	var profile domain.Profile
	err := db.WithContext(ctx).Raw(
		`SELECT id AS user_id, name, referral_code, referred_by, referral_credits, total_referrals
		 FROM users WHERE id = ?`,
		userID,
	).Scan(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.UserID == 0 {
		return nil, nil
	}
	return &profile, nil
}

func (r *repo) FindUserIDByCode(ctx context.Context, db *gorm.DB, code string) (snowflake.ID, error) {
	var id snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM users WHERE referral_code = ?`,
		code,
	).Scan(&id).Error
	return id, err
}

func (r *repo) CodeExists(ctx context.Context, db *gorm.DB, code string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM users WHERE referral_code = ?`,
		code,
	).Scan(&count).Error
	return count > 0, err
}

func (r *repo) SetCodeIfAbsent(ctx context.Context, db *gorm.DB, userID snowflake.ID, code string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users SET referral_code = ?, updated_at = ?
		 WHERE id = ? AND referral_code IS NULL`,
		code,
		now,
		userID,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) SetReferredByIfAbsent(ctx context.Context, db *gorm.DB, userID, referrerID snowflake.ID, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users SET referred_by = ?, updated_at = ?
		 WHERE id = ? AND referred_by IS NULL`,
		referrerID,
		now,
		userID,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) InsertReferral(ctx context.Context, db *gorm.DB, referral *domain.Referral) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO referrals (id, referrer_user_id, referred_user_id, referral_code, status,
			credits_awarded, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		referral.ID,
		referral.ReferrerUserID,
		referral.ReferredUserID,
		referral.ReferralCode,
		string(referral.Status),
		referral.CreditsAwarded,
		referral.CreatedAt,
		referral.CompletedAt,
	).Error
}

func (r *repo) CreditReferrer(ctx context.Context, db *gorm.DB, referrerID snowflake.ID, credits int64, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users
		 SET referral_credits = referral_credits + ?, total_referrals = total_referrals + 1, updated_at = ?
		 WHERE id = ?`,
		credits,
		now,
		referrerID,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) CountByStatus(ctx context.Context, db *gorm.DB, referrerID snowflake.ID) (map[domain.Status]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT status, COUNT(1) AS total FROM referrals
		 WHERE referrer_user_id = ?
		 GROUP BY status`,
		referrerID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.Status]int64, len(rows))
	for _, row := range rows {
		counts[domain.Status(row.Status)] = row.Total
	}
	return counts, nil
}

func (r *repo) ListRecent(ctx context.Context, db *gorm.DB, referrerID snowflake.ID, limit int) ([]domain.RecentReferral, error) {
	var recent []domain.RecentReferral
	err := db.WithContext(ctx).Raw(
		`SELECT r.referred_user_id, u.name AS referred_name, r.status, r.credits_awarded, r.created_at
		 FROM referrals r
		 JOIN users u ON u.id = r.referred_user_id
		 WHERE r.referrer_user_id = ?
		 ORDER BY r.created_at DESC, r.id DESC
		 LIMIT ?`,
		referrerID,
		limit,
	).Scan(&recent).Error
	return recent, err
}

func (r *repo) Leaderboard(ctx context.Context, db *gorm.DB, limit int) ([]domain.LeaderboardEntry, error) {
	var entries []domain.LeaderboardEntry
	err := db.WithContext(ctx).Raw(
		`SELECT id AS user_id, name, total_referrals, referral_credits
		 FROM users
		 WHERE total_referrals > 0
		 ORDER BY total_referrals DESC, referral_credits DESC, id ASC
		 LIMIT ?`,
		limit,
	).Scan(&entries).Error
	return entries, err
}
