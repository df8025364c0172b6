package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/planix/internal/observability/logger"
	"go.uber.org/zap"
)

func (s *Server) ResetUserUsage(c *gin.Context) {
	userID, err := parseUserID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := s.quotaSvc.Reset(ctx, userID); err != nil {
		AbortWithError(c, err)
		return
	}
	logger.FromContext(ctx).Info("usage window reset by operator", zap.String("user_id", userID.String()))

	usage, err := s.quotaSvc.Usage(ctx, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": usage})
}

func (s *Server) AssignUserSubscription(c *gin.Context) {
	var req changeSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID, err := parseUserID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	resp, err := s.subscriptionSvc.ChangePlan(ctx, userID, strings.TrimSpace(req.PlanTier))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	logger.FromContext(ctx).Info("subscription assigned by operator",
		zap.String("user_id", userID.String()),
		zap.String("plan_tier", string(resp.PlanTier)),
	)

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
