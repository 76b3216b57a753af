package analysis

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jengzang/vehicle-forensics-go/internal/models"
)

// Analyzer is the interface that all forensic analyzers must implement
type Analyzer interface {
	// Analyze inspects already processed vehicles. Vehicles must carry
	// their forensic segments.
	Analyze(ctx context.Context, vehicles []*models.VehicleData) (*Findings, error)

	// GetName returns the name of the analyzer
	GetName() string
}

// Finding is a single observation reported by an analyzer
type Finding struct {
	Kind           string    `json:"kind"`
	VehicleID      string    `json:"vehicle_id"`
	OtherVehicleID string    `json:"other_vehicle_id,omitempty"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	DurationS      float64   `json:"duration_s"`
	DistanceM      float64   `json:"distance_m,omitempty"`
	SegmentIDs     []int     `json:"segment_ids,omitempty"`
	Detail         string    `json:"detail,omitempty"`
}

// Findings is the result of one analyzer run
type Findings struct {
	Analyzer string                 `json:"analyzer"`
	Items    []Finding              `json:"items"`
	Summary  map[string]interface{} `json:"summary,omitempty"`
}

// Add appends a finding
func (f *Findings) Add(item Finding) {
	f.Items = append(f.Items, item)
}

// BaseAnalyzer provides common functionality for all analyzers
type BaseAnalyzer struct {
	Name string
}

// NewBaseAnalyzer creates a new base analyzer
func NewBaseAnalyzer(name string) *BaseAnalyzer {
	return &BaseAnalyzer{Name: name}
}

// GetName returns the analyzer name
func (a *BaseAnalyzer) GetName() string {
	return a.Name
}

// NewFindings creates an empty result for this analyzer
func (a *BaseAnalyzer) NewFindings() *Findings {
	return &Findings{Analyzer: a.Name, Items: []Finding{}}
}

// AnalyzerFactory is a function that creates an analyzer instance
type AnalyzerFactory func() Analyzer

var (
	registryMu sync.RWMutex
	// AnalyzerRegistry maps analyzer names to factories
	AnalyzerRegistry = make(map[string]AnalyzerFactory)
)

// RegisterAnalyzer registers an analyzer factory under name
func RegisterAnalyzer(name string, factory AnalyzerFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	AnalyzerRegistry[name] = factory
}

// GetAnalyzer returns a new analyzer for name, or nil when none is registered
func GetAnalyzer(name string) Analyzer {
	registryMu.RLock()
	factory, ok := AnalyzerRegistry[name]
	registryMu.RUnlock()
	if !ok {
		return nil
	}
	return factory()
}

// ListAnalyzers returns the registered analyzer names in order
func ListAnalyzers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(AnalyzerRegistry))
	for name := range AnalyzerRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
