package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidID           = errors.New("invalid_user_id")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidPhone        = errors.New("invalid_phone")
	ErrInvalidPassword     = errors.New("invalid_password")
	ErrInvalidReferralCode = errors.New("invalid_referral_code")
	ErrEmailExists         = errors.New("email_exists")
	ErrNotFound            = errors.New("user_not_found")
)

type CreateUserRequest struct {
	Name         string
	Email        string
	Phone        string
	Password     string
	ReferralCode string
}

type UpdateUserRequest struct {
	Name  *string
	Phone *string
}

// CreateUserResult carries the created user and, when a referral code was
// supplied, whether it was applied.
type CreateUserResult struct {
	User            *User
	ReferralApplied bool
}

type Service interface {
	Create(ctx context.Context, req CreateUserRequest) (*CreateUserResult, error)
	Get(ctx context.Context, id string) (*User, error)
	Update(ctx context.Context, id string, req UpdateUserRequest) (*User, error)
}
