package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/vehicle-forensics-go/internal/service"
	"github.com/jengzang/vehicle-forensics-go/internal/wire"
	"github.com/jengzang/vehicle-forensics-go/pkg/response"
)

// WireHandler validates and imports wire payloads
type WireHandler struct {
	trackingService *service.TrackingService
}

// NewWireHandler creates a new wire handler
func NewWireHandler(trackingService *service.TrackingService) *WireHandler {
	return &WireHandler{trackingService: trackingService}
}

// ValidationResult lists the problems of a payload
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems"`
}

// Validate handles POST /api/v1/wire/validate
func (h *WireHandler) Validate(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "Failed to read body")
		return
	}

	problems := wire.ValidateWireFormat(raw)
	result := ValidationResult{Valid: len(problems) == 0, Problems: problems}
	if result.Problems == nil {
		result.Problems = []string{}
	}
	if !result.Valid {
		response.ErrorWithData(c, http.StatusUnprocessableEntity, "Invalid wire payload", result)
		return
	}
	response.Success(c, result)
}

// Import handles POST /api/v1/wire/import
func (h *WireHandler) Import(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "Failed to read body")
		return
	}

	res, err := h.trackingService.Import(c.Request.Context(), raw)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, newUploadResponse(res))
}
