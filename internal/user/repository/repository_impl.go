package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/internal/user/domain"
	"gorm.io/gorm"
)

const userColumns = `id, name, email, phone, password_hash, plans_used, exports_used,
	referral_code, referred_by, referral_credits, total_referrals, last_usage_reset_at,
	created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (id, name, email, phone, password_hash, plans_used, exports_used,
			referral_credits, total_referrals, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, 0, 0, 0, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.Phone,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE id = ?`,
		id,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE email = ?`,
		email,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) UpdateProfile(ctx context.Context, db *gorm.DB, id snowflake.ID, name string, phone *string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users SET name = ?, phone = ?, updated_at = ? WHERE id = ?`,
		name,
		phone,
		now,
		id,
	)
	return res.RowsAffected, res.Error
}
