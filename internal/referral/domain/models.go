// Package domain defines the referral ledger: code issuance, single-use
// redemption and referrer credit accrual.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// CodePrefix starts every minted referral code.
const CodePrefix = "PLANIX"

type Referral struct {
	ID             snowflake.ID `json:"id"`
	ReferrerUserID snowflake.ID `json:"referrer_user_id"`
	ReferredUserID snowflake.ID `json:"referred_user_id"`
	ReferralCode   string       `json:"referral_code"`
	Status         Status       `json:"status"`
	CreditsAwarded int64        `json:"credits_awarded"`
	CreatedAt      time.Time    `json:"created_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
}

func (Referral) TableName() string { return "referrals" }

// Profile is the referral slice of a user row.
type Profile struct {
	UserID          snowflake.ID
	Name            string
	ReferralCode    *string
	ReferredBy      *snowflake.ID
	ReferralCredits int64
	TotalReferrals  int64
}

type Redemption struct {
	ReferralID     snowflake.ID `json:"referral_id"`
	ReferrerUserID snowflake.ID `json:"referrer_user_id"`
	ReferredUserID snowflake.ID `json:"referred_user_id"`
	Code           string       `json:"referral_code"`
	CreditsAwarded int64        `json:"credits_awarded"`
}

type RecentReferral struct {
	ReferredUserID snowflake.ID `json:"referred_user_id"`
	ReferredName   string       `json:"referred_name"`
	Status         Status       `json:"status"`
	CreditsAwarded int64        `json:"credits_awarded"`
	CreatedAt      time.Time    `json:"created_at"`
}

type Stats struct {
	Code               string           `json:"referral_code"`
	ShareURL           string           `json:"share_url,omitempty"`
	CreditsEarned      int64            `json:"credits_earned"`
	TotalReferrals     int64            `json:"total_referrals"`
	ActiveReferrals    int64            `json:"active_referrals"`
	CompletedReferrals int64            `json:"completed_referrals"`
	PendingReferrals   int64            `json:"pending_referrals"`
	Recent             []RecentReferral `json:"recent_referrals"`
}

type LeaderboardEntry struct {
	Rank            int          `json:"rank" gorm:"-"`
	UserID          snowflake.ID `json:"user_id"`
	Name            string       `json:"name"`
	TotalReferrals  int64        `json:"total_referrals"`
	ReferralCredits int64        `json:"referral_credits"`
}
