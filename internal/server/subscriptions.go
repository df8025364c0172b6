package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type changeSubscriptionRequest struct {
	PlanTier string `json:"plan_tier"`
}

func (s *Server) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.subscriptionSvc.Plans(c.Request.Context())})
}

func (s *Server) GetSubscription(c *gin.Context) {
	s.subscriptionWithUsage(c, c.Param("userId"))
}

// subscriptionWithUsage renders the subscription next to the live usage
// window, including whether the user can create or export right now.
func (s *Server) subscriptionWithUsage(c *gin.Context, rawUserID string) {
	userID, err := parseUserID(rawUserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	sub, err := s.subscriptionSvc.Get(ctx, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	usage, err := s.quotaSvc.Usage(ctx, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"subscription": sub,
		"usage":        usage,
	}})
}

func (s *Server) ChangeSubscription(c *gin.Context) {
	var req changeSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID, err := parseUserID(c.Param("userId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.ChangePlan(c.Request.Context(), userID, strings.TrimSpace(req.PlanTier))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	userID, err := parseUserID(c.Param("userId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.Cancel(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
