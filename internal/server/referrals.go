package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
	defaultQRCodeSize       = 256
)

type applyReferralRequest struct {
	UserID       string `json:"user_id"`
	ReferralCode string `json:"referral_code"`
}

func (s *Server) GetReferralStats(c *gin.Context) {
	userID, err := parseUserID(c.Param("userId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.referralSvc.Stats(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApplyReferral(c *gin.Context) {
	var req applyReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID, err := parseUserID(req.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.referralSvc.Redeem(c.Request.Context(), userID, strings.TrimSpace(req.ReferralCode))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReferralLeaderboard(c *gin.Context) {
	limit := defaultLeaderboardLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxLeaderboardLimit {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be between 1 and 100"))
			return
		}
		limit = parsed
	}

	resp, err := s.referralSvc.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReferralQRCode(c *gin.Context) {
	userID, err := parseUserID(c.Param("userId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	size := defaultQRCodeSize
	if raw := strings.TrimSpace(c.Query("size")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 64 || parsed > 1024 {
			AbortWithError(c, newValidationError("size", "invalid_size", "size must be between 64 and 1024"))
			return
		}
		size = parsed
	}

	png, err := s.referralSvc.QRCode(c.Request.Context(), userID, size)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}
