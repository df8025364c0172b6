package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type User struct {
	ID               snowflake.ID  `gorm:"primaryKey" json:"id"`
	Name             string        `gorm:"not null" json:"name"`
	Email            string        `gorm:"not null;uniqueIndex" json:"email"`
	Phone            *string       `json:"phone,omitempty"`
	PasswordHash     *string       `json:"-"`
	PlansUsed        int64         `gorm:"not null;default:0" json:"plans_used"`
	ExportsUsed      int64         `gorm:"not null;default:0" json:"exports_used"`
	ReferralCode     *string       `gorm:"uniqueIndex" json:"referral_code,omitempty"`
	ReferredBy       *snowflake.ID `json:"referred_by,omitempty"`
	ReferralCredits  int64         `gorm:"not null;default:0" json:"referral_credits"`
	TotalReferrals   int64         `gorm:"not null;default:0" json:"total_referrals"`
	LastUsageResetAt *time.Time    `json:"last_usage_reset_at,omitempty"`
	CreatedAt        time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }
