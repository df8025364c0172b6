package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/internal/clock"
	referraldomain "github.com/smallbiznis/planix/internal/referral/domain"
	subscriptiondomain "github.com/smallbiznis/planix/internal/subscription/domain"
	"github.com/smallbiznis/planix/internal/user/domain"
	"github.com/smallbiznis/planix/internal/user/password"
	"github.com/smallbiznis/planix/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	minNameLength     = 2
	maxNameLength     = 100
	minPasswordLength = 6
)

var phonePattern = regexp.MustCompile(`^\+?[\d\s\-()]+$`)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository

	SubscriptionSvc subscriptiondomain.Service
	ReferralSvc     referraldomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository

	subscriptionsvc subscriptiondomain.Service
	referralsvc     referraldomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("user.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,

		subscriptionsvc: p.SubscriptionSvc,
		referralsvc:     p.ReferralSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateUserRequest) (*domain.CreateUserResult, error) {
	name, err := normalizeName(req.Name)
	if err != nil {
		return nil, err
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	phone, err := normalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	var passwordHash *string
	if req.Password != "" {
		if utf8.RuneCountInString(req.Password) < minPasswordLength {
			return nil, domain.ErrInvalidPassword
		}
		hashed, err := password.Hash(req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		passwordHash = &hashed
	}

	referralCode := strings.TrimSpace(req.ReferralCode)
	if referralCode != "" {
		if _, err := s.referralsvc.ResolveCode(ctx, referralCode); err != nil {
			if errors.Is(err, referraldomain.ErrInvalidCode) {
				return nil, domain.ErrInvalidReferralCode
			}
			return nil, err
		}
	}

	existing, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrEmailExists
	}

	now := s.clock.Now()
	user := &domain.User{
		ID:           s.genID.Generate(),
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrEmailExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	if _, err := s.subscriptionsvc.AssignDefault(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("assign default subscription: %w", err)
	}
	if _, err := s.referralsvc.IssueCode(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("issue referral code: %w", err)
	}

	result := &domain.CreateUserResult{}
	if referralCode != "" {
		if _, err := s.referralsvc.Redeem(ctx, user.ID, referralCode); err != nil {
			s.log.Warn("referral code not applied at signup",
				zap.String("user_id", user.ID.String()),
				zap.Error(err),
			)
		} else {
			result.ReferralApplied = true
		}
	}

	created, err := s.repo.FindByID(ctx, s.db, user.ID)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, domain.ErrNotFound
	}
	result.User = created

	s.log.Info("user created", zap.String("user_id", user.ID.String()))
	return result, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.User, error) {
	userID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateUserRequest) (*domain.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	name := user.Name
	if req.Name != nil {
		name, err = normalizeName(*req.Name)
		if err != nil {
			return nil, err
		}
	}
	phone := user.Phone
	if req.Phone != nil {
		phone, err = normalizePhone(*req.Phone)
		if err != nil {
			return nil, err
		}
	}

	if _, err := s.repo.UpdateProfile(ctx, s.db, user.ID, name, phone, s.clock.Now()); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.Get(ctx, id)
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func normalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	length := utf8.RuneCountInString(name)
	if length < minNameLength || length > maxNameLength {
		return "", domain.ErrInvalidName
	}
	return name, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

// normalizePhone returns nil for a blank phone.
func normalizePhone(raw string) (*string, error) {
	phone := strings.TrimSpace(raw)
	if phone == "" {
		return nil, nil
	}
	if !phonePattern.MatchString(phone) {
		return nil, domain.ErrInvalidPhone
	}
	return &phone, nil
}
