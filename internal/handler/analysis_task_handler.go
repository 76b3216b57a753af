package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/vehicle-forensics-go/internal/analysis"
	"github.com/jengzang/vehicle-forensics-go/internal/models"
	"github.com/jengzang/vehicle-forensics-go/internal/service"
	"github.com/jengzang/vehicle-forensics-go/pkg/response"
)

// AnalysisHandler handles HTTP requests for analyzer runs
type AnalysisHandler struct {
	service *service.AnalysisService
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(service *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{service: service}
}

// RunRequest represents the request body for running an analyzer
type RunRequest struct {
	VehicleIDs []string `json:"vehicle_ids" binding:"required,min=1,dive,required"`
}

// RunResponse carries the recorded run and its findings
type RunResponse struct {
	Run      *models.AnalysisRun `json:"run"`
	Findings *analysis.Findings  `json:"findings"`
}

// ListAnalyzers handles GET /api/v1/analysis
func (h *AnalysisHandler) ListAnalyzers(c *gin.Context) {
	response.Success(c, h.service.Analyzers())
}

// Run runs the analyzer named in the path
// POST /api/v1/analysis/:name
func (h *AnalysisHandler) Run(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: vehicle_ids required")
		return
	}

	run, findings, err := h.service.RunAnalyzers(c.Request.Context(), c.Param("name"), req.VehicleIDs)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, RunResponse{Run: run, Findings: findings})
}

// ListRuns lists recent runs
// GET /api/v1/analysis/runs?analyzer=&limit=
func (h *AnalysisHandler) ListRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		response.BadRequest(c, "Invalid limit parameter")
		return
	}

	runs, err := h.service.ListRuns(c.Request.Context(), c.Query("analyzer"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, runs)
}

// GetRun retrieves a run by ID
// GET /api/v1/analysis/runs/:id
func (h *AnalysisHandler) GetRun(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, run)
}
