package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/skip2/go-qrcode"
	"github.com/smallbiznis/planix/internal/clock"
	"github.com/smallbiznis/planix/internal/config"
	"github.com/smallbiznis/planix/internal/observability/metrics"
	"github.com/smallbiznis/planix/internal/referral/domain"
	"github.com/smallbiznis/planix/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	codeIDChars      = 6
	codeRandomChars  = 4
	codeAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxMintAttempts  = 8
	recentLimit      = 10
	leaderboardLimit = 10
	maxLeaderboard   = 100
	defaultQRSize    = 256
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Config  config.Config
	Repo    domain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	metrics *metrics.Metrics

	award        int64
	shareBaseURL string
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("referral.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,

		award:        p.Config.Referral.AwardCredits,
		shareBaseURL: p.Config.Referral.ShareBaseURL,
	}
}

func (s *Service) IssueCode(ctx context.Context, userID snowflake.ID) (string, error) {
	if userID == 0 {
		return "", domain.ErrInvalidUser
	}
	profile, err := s.profile(ctx, s.db, userID)
	if err != nil {
		return "", err
	}
	if profile.ReferralCode != nil && *profile.ReferralCode != "" {
		return *profile.ReferralCode, nil
	}

	for attempt := 0; attempt < maxMintAttempts; attempt++ {
		code, err := mintCode(userID)
		if err != nil {
			return "", err
		}
		taken, err := s.repo.CodeExists(ctx, s.db, code)
		if err != nil {
			return "", err
		}
		if taken {
			continue
		}

		affected, err := s.repo.SetCodeIfAbsent(ctx, s.db, userID, code, s.clock.Now())
		if err != nil {
			if db.IsDuplicateKeyErr(err) {
				continue
			}
			return "", fmt.Errorf("store referral code: %w", err)
		}
		if affected == 0 {
			// Another caller stored a code first.
			profile, err := s.profile(ctx, s.db, userID)
			if err != nil {
				return "", err
			}
			if profile.ReferralCode == nil {
				continue
			}
			return *profile.ReferralCode, nil
		}
		return code, nil
	}
	return "", domain.ErrCodeExhausted
}

func (s *Service) ResolveCode(ctx context.Context, code string) (snowflake.ID, error) {
	code = normalizeCode(code)
	if code == "" {
		return 0, domain.ErrInvalidCode
	}
	id, err := s.repo.FindUserIDByCode(ctx, s.db, code)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, domain.ErrInvalidCode
	}
	return id, nil
}

func (s *Service) Redeem(ctx context.Context, userID snowflake.ID, code string) (*domain.Redemption, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	code = normalizeCode(code)
	if code == "" {
		return nil, domain.ErrInvalidCode
	}

	var redemption *domain.Redemption
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		referrerID, err := s.repo.FindUserIDByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if referrerID == 0 {
			return domain.ErrInvalidCode
		}
		if referrerID == userID {
			return domain.ErrSelfReferral
		}
		if _, err := s.profile(ctx, tx, userID); err != nil {
			return err
		}

		now := s.clock.Now()
		affected, err := s.repo.SetReferredByIfAbsent(ctx, tx, userID, referrerID, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrAlreadyReferred
		}

		referral := &domain.Referral{
			ID:             s.genID.Generate(),
			ReferrerUserID: referrerID,
			ReferredUserID: userID,
			ReferralCode:   code,
			Status:         domain.StatusActive,
			CreditsAwarded: s.award,
			CreatedAt:      now,
		}
		if err := s.repo.InsertReferral(ctx, tx, referral); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrAlreadyReferred
			}
			return err
		}
		if _, err := s.repo.CreditReferrer(ctx, tx, referrerID, s.award, now); err != nil {
			return err
		}

		redemption = &domain.Redemption{
			ReferralID:     referral.ID,
			ReferrerUserID: referrerID,
			ReferredUserID: userID,
			Code:           code,
			CreditsAwarded: s.award,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordReferralRedeemed(ctx)
	s.log.Info("referral redeemed",
		zap.String("user_id", userID.String()),
		zap.String("referrer_user_id", redemption.ReferrerUserID.String()),
		zap.Int64("credits_awarded", redemption.CreditsAwarded),
	)
	return redemption, nil
}

func (s *Service) Stats(ctx context.Context, userID snowflake.ID) (*domain.Stats, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	profile, err := s.profile(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.CountByStatus(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.ListRecent(ctx, s.db, userID, recentLimit)
	if err != nil {
		return nil, err
	}
	if recent == nil {
		recent = []domain.RecentReferral{}
	}

	stats := &domain.Stats{
		CreditsEarned:      profile.ReferralCredits,
		TotalReferrals:     profile.TotalReferrals,
		ActiveReferrals:    counts[domain.StatusActive],
		CompletedReferrals: counts[domain.StatusCompleted],
		PendingReferrals:   counts[domain.StatusPending],
		Recent:             recent,
	}
	if profile.ReferralCode != nil {
		stats.Code = *profile.ReferralCode
		stats.ShareURL = s.shareURL(stats.Code)
	}
	return stats, nil
}

func (s *Service) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = leaderboardLimit
	}
	if limit > maxLeaderboard {
		limit = maxLeaderboard
	}
	entries, err := s.repo.Leaderboard(ctx, s.db, limit)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	return entries, nil
}

func (s *Service) QRCode(ctx context.Context, userID snowflake.ID, size int) ([]byte, error) {
	code, err := s.IssueCode(ctx, userID)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = defaultQRSize
	}
	png, err := qrcode.Encode(s.shareURL(code), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode referral qr: %w", err)
	}
	return png, nil
}

func (s *Service) profile(ctx context.Context, conn *gorm.DB, userID snowflake.ID) (*domain.Profile, error) {
	profile, err := s.repo.GetProfile(ctx, conn, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domain.ErrNotFound
	}
	return profile, nil
}

func (s *Service) shareURL(code string) string {
	if s.shareBaseURL == "" {
		return ""
	}
	return s.shareBaseURL + "?ref=" + url.QueryEscape(code)
}

// mintCode builds PLANIX + the last six base36 characters of the user id +
// four random characters.
func mintCode(userID snowflake.ID) (string, error) {
	idPart := strings.ToUpper(strconv.FormatInt(userID.Int64(), 36))
	if len(idPart) > codeIDChars {
		idPart = idPart[len(idPart)-codeIDChars:]
	}
	for len(idPart) < codeIDChars {
		idPart = "0" + idPart
	}

	var b strings.Builder
	b.WriteString(domain.CodePrefix)
	b.WriteString(idPart)
	alphabetLen := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < codeRandomChars; i++ {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("mint referral code: %w", err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
