package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jengzang/vehicle-forensics-go/internal/ingest"
	"github.com/jengzang/vehicle-forensics-go/internal/interpolation"
	"github.com/jengzang/vehicle-forensics-go/internal/models"
	"github.com/jengzang/vehicle-forensics-go/internal/preprocess"
	"github.com/jengzang/vehicle-forensics-go/internal/projection"
	"github.com/jengzang/vehicle-forensics-go/internal/repository"
	"github.com/jengzang/vehicle-forensics-go/internal/speed"
	"github.com/jengzang/vehicle-forensics-go/internal/wire"
)

var logger = logrus.WithField("component", "service")

// ErrPersistenceDisabled is returned by operations that need stored vehicles
// when the service runs without a database
var ErrPersistenceDisabled = errors.New("persistence is disabled")

// ProcessResult is the outcome of one vehicle pipeline run
type ProcessResult struct {
	Vehicle  *models.VehicleData          `json:"vehicle"`
	Analysis models.ForensicSpeedAnalysis `json:"analysis"`
	Report   preprocess.Report            `json:"report"`
	Warnings []string                     `json:"warnings,omitempty"`
}

// TrackingService runs the forensic pipeline and serves stored vehicles
type TrackingService struct {
	settings    models.TrackingSettings
	calculator  *speed.Calculator
	projections *projection.Cache
	playback    *interpolation.Cache
	vehicles    *repository.VehicleRepository
}

// NewTrackingService creates a new tracking service. Nil caches are replaced
// by private ones sized from settings; a nil repository disables persistence.
func NewTrackingService(
	settings models.TrackingSettings,
	projections *projection.Cache,
	playback *interpolation.Cache,
	vehicles *repository.VehicleRepository,
) *TrackingService {
	if projections == nil {
		projections = projection.NewCache(settings.ProjectionCacheSize, settings.ProjectionCacheToleranceKm)
	}
	if playback == nil {
		playback = interpolation.NewCache(0)
	}
	return &TrackingService{
		settings:    settings,
		calculator:  speed.NewCalculator(speed.ThresholdsFromSettings(settings)),
		projections: projections,
		playback:    playback,
		vehicles:    vehicles,
	}
}

// Settings returns the thresholds the service was built with
func (s *TrackingService) Settings() models.TrackingSettings {
	return s.settings
}

// ProcessFile parses path and runs the pipeline. An empty vehicleID is
// derived from the file name.
func (s *TrackingService) ProcessFile(ctx context.Context, vehicleID, path string) (*ProcessResult, error) {
	parsed, err := ingest.ParseFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.processParsed(ctx, vehicleID, path, parsed)
}

// ProcessReader parses r using the format implied by name and runs the pipeline
func (s *TrackingService) ProcessReader(ctx context.Context, vehicleID, name string, r io.Reader) (*ProcessResult, error) {
	parsed, err := ingest.Parse(ctx, name, r)
	if err != nil {
		return nil, err
	}
	return s.processParsed(ctx, vehicleID, name, parsed)
}

func (s *TrackingService) processParsed(ctx context.Context, vehicleID, name string, parsed *ingest.ParseResult) (*ProcessResult, error) {
	if vehicleID == "" {
		vehicleID = VehicleIDFromPath(name)
	}
	result, err := s.ProcessPoints(ctx, vehicleID, filepath.Base(name), parsed.Points)
	if err != nil {
		return nil, err
	}
	result.Warnings = append(parsed.Warnings, result.Warnings...)
	return result, nil
}

// ProcessPoints runs preprocessing, projection selection and segment speed
// calculation on points, then stores the vehicle when persistence is enabled
func (s *TrackingService) ProcessPoints(ctx context.Context, vehicleID, sourceFile string, points []*models.GPSPoint) (*ProcessResult, error) {
	log := logger.WithField("vehicle_id", vehicleID)

	cleaned, report, err := preprocess.PrepareForForensicAnalysis(ctx, points, s.settings)
	if err != nil {
		return nil, fmt.Errorf("preprocess %s: %w", vehicleID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	proj, err := s.projections.SelectBestProjection(cleaned, s.settings.ProjectionAreaThresholdKm)
	if err != nil {
		return nil, fmt.Errorf("projection for %s: %w", vehicleID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vd := &models.VehicleData{
		VehicleID:  vehicleID,
		SourceFile: sourceFile,
		Points:     cleaned,
	}
	analysis, err := s.calculator.Process(vd, proj)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{
		Vehicle:  vd,
		Analysis: analysis,
		Report:   report,
		Warnings: append([]string(nil), proj.Warnings...),
	}

	if s.vehicles != nil {
		if err := s.vehicles.Save(ctx, vd, analysis); err != nil {
			return nil, fmt.Errorf("failed to save vehicle %s: %w", vehicleID, err)
		}
	}
	s.playback.Invalidate(vehicleID)

	log.WithFields(logrus.Fields{
		"points":      len(vd.Points),
		"segments":    analysis.TotalSegments,
		"projection":  vd.ProjectionLabel,
		"reliability": analysis.ForensicReliabilityScore,
	}).Info("Vehicle processed")
	return result, nil
}

// Import decodes a wire payload and recomputes its forensic segments from
// the observed points it carries
func (s *TrackingService) Import(ctx context.Context, raw []byte) (*ProcessResult, error) {
	vd, warnings, err := wire.FromWireFormat(raw)
	if err != nil {
		return nil, err
	}
	if vd.VehicleID == "" {
		return nil, fmt.Errorf("%w: missing vehicle_id", wire.ErrInvalidPayload)
	}
	observed := vd.ObservedPoints()
	if len(observed) == 0 {
		return nil, fmt.Errorf("%s: %w", vd.VehicleID, ingest.ErrNoValidPoints)
	}
	for _, p := range observed {
		p.SegmentID, p.SegmentSpeedKmh, p.SpeedCertainty, p.IsGap = nil, nil, "", false
	}

	result, err := s.ProcessPoints(ctx, vd.VehicleID, "", observed)
	if err != nil {
		return nil, err
	}
	result.Warnings = append(warnings, result.Warnings...)
	return result, nil
}

// Vehicle loads a stored vehicle
func (s *TrackingService) Vehicle(ctx context.Context, vehicleID string) (*models.VehicleData, error) {
	if s.vehicles == nil {
		return nil, ErrPersistenceDisabled
	}
	return s.vehicles.Get(ctx, vehicleID)
}

// ListVehicles lists stored vehicles
func (s *TrackingService) ListVehicles(ctx context.Context) ([]models.VehicleSummary, error) {
	if s.vehicles == nil {
		return nil, ErrPersistenceDisabled
	}
	return s.vehicles.List(ctx)
}

// DeleteVehicle removes a stored vehicle and its cached playback
func (s *TrackingService) DeleteVehicle(ctx context.Context, vehicleID string) error {
	if s.vehicles == nil {
		return ErrPersistenceDisabled
	}
	if err := s.vehicles.Delete(ctx, vehicleID); err != nil {
		return err
	}
	s.playback.Invalidate(vehicleID)
	return nil
}

// Segments lists the segments of a stored vehicle, optionally filtered by certainty
func (s *TrackingService) Segments(ctx context.Context, vehicleID string, certainty models.Certainty) ([]models.SegmentView, error) {
	if s.vehicles == nil {
		return nil, ErrPersistenceDisabled
	}
	if certainty != "" && !certainty.Valid() {
		return nil, fmt.Errorf("unknown certainty %q", certainty)
	}
	return s.vehicles.ListSegments(ctx, vehicleID, certainty)
}

// Analysis recomputes the segment rollup of a stored vehicle
func (s *TrackingService) Analysis(ctx context.Context, vehicleID string) (models.ForensicSpeedAnalysis, error) {
	vd, err := s.Vehicle(ctx, vehicleID)
	if err != nil {
		return models.ForensicSpeedAnalysis{}, err
	}
	return speed.AnalyzeSegments(vd.Segments), nil
}

// Playback resamples a stored vehicle for animation and returns its wire
// payload. A non-positive intervalS uses the configured interval.
func (s *TrackingService) Playback(ctx context.Context, vehicleID string, intervalS float64) (*wire.Payload, error) {
	vd, err := s.Vehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	return s.PlaybackFor(ctx, vd, intervalS)
}

// PlaybackFor resamples an already loaded vehicle
func (s *TrackingService) PlaybackFor(ctx context.Context, vd *models.VehicleData, intervalS float64) (*wire.Payload, error) {
	opts := interpolation.OptionsFromSettings(s.settings)
	if intervalS > 0 {
		opts.IntervalS = intervalS
	}
	resampled, err := s.playback.Resample(ctx, vd, opts)
	if err != nil {
		return nil, fmt.Errorf("playback for %s: %w", vd.VehicleID, err)
	}
	return wire.ToWireFormat(resampled), nil
}

// VehicleIDFromPath derives a vehicle id from a file name
func VehicleIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
