package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	floorplandomain "github.com/smallbiznis/planix/internal/floorplan/domain"
	generationdomain "github.com/smallbiznis/planix/internal/generation/domain"
	"github.com/smallbiznis/planix/pkg/db/pagination"
)

type generateFloorPlanRequest struct {
	UserID string `json:"user_id"`
	floorplandomain.PlanSpec
	Tags []string `json:"tags"`
}

// GenerateFloorPlan answers 201 when the run finished within the request and
// 202 while the artifact is still generating.
func (s *Server) GenerateFloorPlan(c *gin.Context) {
	var req generateFloorPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.generationSvc.Generate(c.Request.Context(), generationdomain.GenerateRequest{
		UserID: strings.TrimSpace(req.UserID),
		Spec:   req.PlanSpec,
		Tags:   req.Tags,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusCreated
	if !resp.Status.Terminal() {
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{"data": resp})
}

func (s *Server) GetFloorPlan(c *gin.Context) {
	resp, err := s.floorPlanSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("planId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListUserFloorPlans(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.floorPlanSvc.List(c.Request.Context(), floorplandomain.ListRequest{
		UserID:    strings.TrimSpace(c.Param("userId")),
		Status:    strings.TrimSpace(query.Status),
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteFloorPlan(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		AbortWithError(c, newValidationError("user_id", "required", "user_id is required"))
		return
	}

	if err := s.floorPlanSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("planId")), userID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ExportFloorPlan(c *gin.Context) {
	resp, err := s.floorPlanSvc.Export(c.Request.Context(), floorplandomain.ExportRequest{
		PlanID: strings.TrimSpace(c.Param("planId")),
		UserID: strings.TrimSpace(c.Query("user_id")),
		Format: strings.TrimSpace(c.DefaultQuery("format", string(floorplandomain.ExportPDF))),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", resp.Filename))
	c.Data(http.StatusOK, resp.ContentType, resp.Body)
}
