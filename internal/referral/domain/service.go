package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidUser     = errors.New("invalid_user_id")
	ErrInvalidCode     = errors.New("invalid_referral_code")
	ErrAlreadyReferred = errors.New("already_referred")
	ErrSelfReferral    = errors.New("self_referral")
	ErrNotFound        = errors.New("user_not_found")
	ErrCodeExhausted   = errors.New("referral_code_exhausted")
)

type Service interface {
	// IssueCode returns the user's referral code, minting and storing one on
	// first use. Concurrent first calls converge on the same code.
	IssueCode(ctx context.Context, userID snowflake.ID) (string, error)
	// ResolveCode returns the owner of code or ErrInvalidCode.
	ResolveCode(ctx context.Context, code string) (snowflake.ID, error)
	Redeem(ctx context.Context, userID snowflake.ID, code string) (*Redemption, error)
	Stats(ctx context.Context, userID snowflake.ID) (*Stats, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	// QRCode renders the user's share link as a PNG.
	QRCode(ctx context.Context, userID snowflake.ID, size int) ([]byte, error)
}
