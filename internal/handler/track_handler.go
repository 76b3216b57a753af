package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/vehicle-forensics-go/internal/export"
	"github.com/jengzang/vehicle-forensics-go/internal/models"
	"github.com/jengzang/vehicle-forensics-go/internal/preprocess"
	"github.com/jengzang/vehicle-forensics-go/internal/service"
	"github.com/jengzang/vehicle-forensics-go/internal/wire"
	"github.com/jengzang/vehicle-forensics-go/pkg/response"
)

// VehicleHandler handles HTTP requests for processed vehicles
type VehicleHandler struct {
	trackingService *service.TrackingService
	maxUploadBytes  int64
}

// NewVehicleHandler creates a new vehicle handler. Uploads larger than
// maxUploadBytes are rejected; zero disables the check.
func NewVehicleHandler(trackingService *service.TrackingService, maxUploadBytes int64) *VehicleHandler {
	return &VehicleHandler{
		trackingService: trackingService,
		maxUploadBytes:  maxUploadBytes,
	}
}

// UploadResponse summarises a processed upload
type UploadResponse struct {
	VehicleID       string                       `json:"vehicle_id"`
	SourceFile      string                       `json:"source_file"`
	ProjectionLabel string                       `json:"projection_label"`
	PointCount      int                          `json:"point_count"`
	Analysis        models.ForensicSpeedAnalysis `json:"analysis"`
	Report          preprocess.Report            `json:"report"`
	Warnings        []string                     `json:"warnings,omitempty"`
}

func newUploadResponse(res *service.ProcessResult) UploadResponse {
	return UploadResponse{
		VehicleID:       res.Vehicle.VehicleID,
		SourceFile:      res.Vehicle.SourceFile,
		ProjectionLabel: res.Vehicle.ProjectionLabel,
		PointCount:      len(res.Vehicle.Points),
		Analysis:        res.Analysis,
		Report:          res.Report,
		Warnings:        res.Warnings,
	}
}

// Upload handles POST /api/v1/vehicles
func (h *VehicleHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "Missing track file")
		return
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, "Track file too large")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.InternalError(c, "Failed to read upload")
		return
	}
	defer f.Close()

	res, err := h.trackingService.ProcessReader(c.Request.Context(), c.PostForm("vehicle_id"), file.Filename, f)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Created(c, newUploadResponse(res))
}

// List handles GET /api/v1/vehicles
func (h *VehicleHandler) List(c *gin.Context) {
	vehicles, err := h.trackingService.ListVehicles(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, vehicles)
}

// Get handles GET /api/v1/vehicles/:id and returns the forensic points in
// wire format
func (h *VehicleHandler) Get(c *gin.Context) {
	vd, err := h.trackingService.Vehicle(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, wire.ToWireFormat(vd))
}

// Delete handles DELETE /api/v1/vehicles/:id
func (h *VehicleHandler) Delete(c *gin.Context) {
	if err := h.trackingService.DeleteVehicle(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"vehicle_id": c.Param("id")})
}

// Segments handles GET /api/v1/vehicles/:id/segments?certainty=
func (h *VehicleHandler) Segments(c *gin.Context) {
	certainty := models.Certainty(c.Query("certainty"))
	if certainty != "" && !certainty.Valid() {
		response.BadRequest(c, "Invalid certainty, expected HIGH, MEDIUM, LOW or UNKNOWN")
		return
	}

	segments, err := h.trackingService.Segments(c.Request.Context(), c.Param("id"), certainty)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, segments)
}

// Analysis handles GET /api/v1/vehicles/:id/analysis
func (h *VehicleHandler) Analysis(c *gin.Context) {
	analysis, err := h.trackingService.Analysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, analysis)
}

// Playback handles GET /api/v1/vehicles/:id/playback?interval=
func (h *VehicleHandler) Playback(c *gin.Context) {
	interval, ok := parseInterval(c)
	if !ok {
		return
	}

	payload, err := h.trackingService.Playback(c.Request.Context(), c.Param("id"), interval)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, payload)
}

// GeoJSON handles GET /api/v1/vehicles/:id/geojson. The FeatureCollection is
// returned bare so GIS tools can load the URL directly.
func (h *VehicleHandler) GeoJSON(c *gin.Context) {
	vd, err := h.trackingService.Vehicle(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	data, err := export.VehicleGeoJSON(vd).MarshalJSON()
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	c.Data(http.StatusOK, "application/geo+json", data)
}

// parseInterval reads the optional interval query parameter in seconds
func parseInterval(c *gin.Context) (float64, bool) {
	raw := c.Query("interval")
	if raw == "" {
		return 0, true
	}
	interval, err := strconv.ParseFloat(raw, 64)
	if err != nil || interval <= 0 {
		response.BadRequest(c, "Invalid interval parameter")
		return 0, false
	}
	return interval, true
}
