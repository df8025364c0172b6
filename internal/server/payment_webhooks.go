package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	s.handleWebhook(c, strings.TrimSpace(c.Param("provider")))
}

func (s *Server) handleProviderWebhook(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.handleWebhook(c, provider)
	}
}

// handleWebhook answers 200 for duplicates and ignored events so the provider
// stops redelivering them.
func (s *Server) handleWebhook(c *gin.Context, provider string) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.HandleWebhook(c.Request.Context(), provider, payload, c.Request.Header)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := "ok"
	switch {
	case resp.Duplicate:
		status = "duplicate"
	case resp.Ignored:
		status = "ignored"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}
