package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jengzang/vehicle-forensics-go/internal/analysis"
	// analyzers register themselves on import
	_ "github.com/jengzang/vehicle-forensics-go/internal/analysis/forensic"
	"github.com/jengzang/vehicle-forensics-go/internal/models"
	"github.com/jengzang/vehicle-forensics-go/internal/repository"
)

var (
	// ErrUnknownAnalyzer is returned for an analyzer name nobody registered
	ErrUnknownAnalyzer = errors.New("unknown analyzer")
	// ErrNoVehicles is returned when an analysis is requested without vehicles
	ErrNoVehicles = errors.New("no vehicles given")
)

// VehicleLoader loads processed vehicles by id
type VehicleLoader interface {
	Vehicle(ctx context.Context, vehicleID string) (*models.VehicleData, error)
}

// AnalysisService runs registered analyzers and records each run
type AnalysisService struct {
	vehicles VehicleLoader
	runs     *repository.AnalysisRunRepository
}

// NewAnalysisService creates a new analysis service. A nil run repository
// skips run bookkeeping.
func NewAnalysisService(vehicles VehicleLoader, runs *repository.AnalysisRunRepository) *AnalysisService {
	return &AnalysisService{
		vehicles: vehicles,
		runs:     runs,
	}
}

// Analyzers lists the registered analyzer names
func (s *AnalysisService) Analyzers() []string {
	return analysis.ListAnalyzers()
}

// RunAnalyzers runs the analyzer called name over the given vehicles
func (s *AnalysisService) RunAnalyzers(ctx context.Context, name string, vehicleIDs []string) (*models.AnalysisRun, *analysis.Findings, error) {
	analyzer := analysis.GetAnalyzer(name)
	if analyzer == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownAnalyzer, name)
	}
	if len(vehicleIDs) == 0 {
		return nil, nil, ErrNoVehicles
	}

	vehicles := make([]*models.VehicleData, 0, len(vehicleIDs))
	for _, id := range vehicleIDs {
		vd, err := s.vehicles.Vehicle(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load vehicle %s: %w", id, err)
		}
		vehicles = append(vehicles, vd)
	}

	started := time.Now().UTC()
	run := &models.AnalysisRun{
		ID:         uuid.NewString(),
		Analyzer:   name,
		VehicleIDs: vehicleIDs,
		Status:     models.TaskStatusRunning,
		StartedAt:  &started,
	}
	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			return nil, nil, fmt.Errorf("failed to create analysis run: %w", err)
		}
	}

	log := logger.WithFields(logrus.Fields{"run_id": run.ID, "analyzer": name})
	log.Info("Starting analysis")

	findings, err := analyzer.Analyze(ctx, vehicles)
	completed := time.Now().UTC()
	run.CompletedAt = &completed
	if err != nil {
		run.Status = models.TaskStatusFailed
		run.ErrorMessage = err.Error()
		s.record(run, log)
		return run, nil, fmt.Errorf("analyzer %s: %w", name, err)
	}

	result, err := json.Marshal(findings)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to serialize findings: %w", err)
	}
	run.Status = models.TaskStatusCompleted
	run.FindingCount = len(findings.Items)
	run.ResultJSON = string(result)
	s.record(run, log)

	log.WithField("findings", run.FindingCount).Info("Analysis completed")
	return run, findings, nil
}

// record stores the final state of run. It uses a fresh context so a
// cancelled request still leaves its run marked as failed.
func (s *AnalysisService) record(run *models.AnalysisRun, log *logrus.Entry) {
	if s.runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.runs.Update(ctx, run); err != nil {
		log.WithError(err).Error("Failed to update analysis run")
	}
}

// GetRun returns a recorded run
func (s *AnalysisService) GetRun(ctx context.Context, id string) (*models.AnalysisRun, error) {
	if s.runs == nil {
		return nil, ErrPersistenceDisabled
	}
	return s.runs.GetByID(ctx, id)
}

// ListRuns returns the most recent runs, optionally for one analyzer
func (s *AnalysisService) ListRuns(ctx context.Context, analyzer string, limit int) ([]*models.AnalysisRun, error) {
	if s.runs == nil {
		return nil, ErrPersistenceDisabled
	}
	return s.runs.List(ctx, analyzer, limit)
}
