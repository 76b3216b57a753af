package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/vehicle-forensics-go/internal/database"
	"github.com/jengzang/vehicle-forensics-go/internal/interpolation"
	"github.com/jengzang/vehicle-forensics-go/internal/models"
	"github.com/jengzang/vehicle-forensics-go/internal/projection"
	"github.com/jengzang/vehicle-forensics-go/internal/repository"
	"github.com/jengzang/vehicle-forensics-go/internal/wire"
)

// a duplicated first fix, one HIGH segment, 80 s parked, then a long gap
const trackCSV = `timestamp,latitude,longitude
2024-03-01 12:00:00,52.5,13.4
2024-03-01 12:00:00,52.5,13.4
2024-03-01 12:00:04,52.5002,13.4
2024-03-01 12:00:14,52.5002,13.4
2024-03-01 12:00:24,52.5002,13.4
2024-03-01 12:00:34,52.5002,13.4
2024-03-01 12:00:44,52.5002,13.4
2024-03-01 12:00:54,52.5002,13.4
2024-03-01 12:01:04,52.5002,13.4
2024-03-01 12:01:14,52.5002,13.4
2024-03-01 12:01:24,52.5002,13.4
2024-03-01 12:03:20,52.51,13.41
`

type fixture struct {
	tracking *TrackingService
	analysis *AnalysisService
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := database.OpenAndMigrate(database.Config{Path: filepath.Join(dir, "forensics.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	settings := models.DefaultTrackingSettings()
	tracking := NewTrackingService(settings,
		projection.NewCache(settings.ProjectionCacheSize, settings.ProjectionCacheToleranceKm),
		interpolation.NewCache(8),
		repository.NewVehicleRepository(db),
	)
	return &fixture{
		tracking: tracking,
		analysis: NewAnalysisService(tracking, repository.NewAnalysisRunRepository(db)),
		dir:      dir,
	}
}

func (f *fixture) writeTrack(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(trackCSV), 0o644))
	return path
}

func TestProcessFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.tracking.ProcessFile(ctx, "", f.writeTrack(t, "van-7.csv"))
	require.NoError(t, err)

	assert.Equal(t, "van-7", res.Vehicle.VehicleID)
	assert.Equal(t, "van-7.csv", res.Vehicle.SourceFile)
	assert.Equal(t, 12, res.Report.InputPoints)
	assert.Equal(t, 11, res.Report.OutputPoints)
	assert.Equal(t, 1, res.Report.CoalescedGroups)
	assert.Contains(t, res.Vehicle.ProjectionLabel, "AEQD")

	a := res.Analysis
	assert.Equal(t, 10, a.TotalSegments)
	assert.Equal(t, 1, a.NormalSegments)
	assert.Equal(t, 8, a.StopSegments)
	assert.Equal(t, 1, a.GapSegments)
	assert.Equal(t, 1, a.HighCertainty)

	first := res.Vehicle.Segments[0]
	require.NotNil(t, first.Speed.SpeedKmh)
	assert.InDelta(t, 20.0, *first.Speed.SpeedKmh, 0.1)
	assert.Equal(t, 2, res.Vehicle.Points[0].Metadata.CoalescedCount)

	stored, err := f.tracking.Vehicle(ctx, "van-7")
	require.NoError(t, err)
	assert.Len(t, stored.Points, 11)
	assert.Len(t, stored.Segments, 10)

	list, err := f.tracking.ListVehicles(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.InDelta(t, a.ForensicReliabilityScore, list[0].ReliabilityScore, 1e-9)
}

func TestSegmentsAndAnalysis(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.tracking.ProcessFile(ctx, "v", f.writeTrack(t, "track.csv"))
	require.NoError(t, err)

	high, err := f.tracking.Segments(ctx, "v", models.CertaintyHigh)
	require.NoError(t, err)
	assert.Len(t, high, 1)

	_, err = f.tracking.Segments(ctx, "v", "SOMEWHAT")
	assert.Error(t, err)

	a, err := f.tracking.Analysis(ctx, "v")
	require.NoError(t, err)
	assert.Equal(t, 10, a.TotalSegments)
	assert.Equal(t, 8, a.StopSegments)

	_, err = f.tracking.Analysis(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPlayback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.tracking.ProcessFile(ctx, "v", f.writeTrack(t, "track.csv"))
	require.NoError(t, err)

	payload, err := f.tracking.Playback(ctx, "v", 1)
	require.NoError(t, err)
	assert.Equal(t, 201, payload.Meta.PointCount)
	assert.Equal(t, 11, payload.Meta.ObservedCount)
	assert.Equal(t, 190, payload.Meta.InterpolatedCount)
	assert.Equal(t, "uniform", payload.Meta.Cadence)
	assert.Equal(t, int64(1000), payload.Meta.DtMs)

	// the stored vehicle is untouched by resampling
	stored, err := f.tracking.Vehicle(ctx, "v")
	require.NoError(t, err)
	assert.Len(t, stored.Points, 11)
}

func TestImportRecomputesSegments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.tracking.ProcessFile(ctx, "v", f.writeTrack(t, "track.csv"))
	require.NoError(t, err)

	payload := wire.ToWireFormat(res.Vehicle)
	payload.VehicleID = "v-copy"
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	imported, err := f.tracking.Import(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "v-copy", imported.Vehicle.VehicleID)
	assert.Equal(t, res.Analysis.TotalSegments, imported.Analysis.TotalSegments)
	assert.Equal(t, res.Analysis.StopSegments, imported.Analysis.StopSegments)
	assert.Equal(t, 2, imported.Vehicle.Points[0].Metadata.CoalescedCount)

	_, err = f.tracking.Import(ctx, []byte("not json"))
	assert.ErrorIs(t, err, wire.ErrInvalidPayload)
}

func TestProcessWithoutPersistence(t *testing.T) {
	tracking := NewTrackingService(models.DefaultTrackingSettings(), nil, nil, nil)
	ctx := context.Background()

	res, err := tracking.ProcessReader(ctx, "", "mem.csv", strings.NewReader(trackCSV))
	require.NoError(t, err)
	assert.Equal(t, "mem", res.Vehicle.VehicleID)

	_, err = tracking.Vehicle(ctx, "mem")
	assert.ErrorIs(t, err, ErrPersistenceDisabled)

	payload, err := tracking.PlaybackFor(ctx, res.Vehicle, 0)
	require.NoError(t, err)
	assert.Equal(t, 201, payload.Meta.PointCount)
}

func TestProcessSkipsNonFiniteRows(t *testing.T) {
	tracking := NewTrackingService(models.DefaultTrackingSettings(), nil, nil, nil)
	data := "timestamp,latitude,longitude\n" +
		"2024-03-01 12:00:00,52.5,13.4\n" +
		"2024-03-01 12:00:04,NaN,13.4\n" +
		"2024-03-01 12:00:08,52.5002,13.4\n"

	res, err := tracking.ProcessReader(context.Background(), "", "nan.csv", strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, res.Vehicle.Points, 2)
	require.Len(t, res.Vehicle.Segments, 1)
	require.NotNil(t, res.Vehicle.Segments[0].Speed.SpeedKmh)
	assert.InDelta(t, 10, *res.Vehicle.Segments[0].Speed.SpeedKmh, 0.2)
	assert.NotEmpty(t, res.Warnings)

	_, err = json.Marshal(wire.ToWireFormat(res.Vehicle))
	assert.NoError(t, err)
	_, err = json.Marshal(res)
	assert.NoError(t, err)
}

func TestProcessCancelled(t *testing.T) {
	tracking := NewTrackingService(models.DefaultTrackingSettings(), nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tracking.ProcessReader(ctx, "", "mem.csv", strings.NewReader(trackCSV))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunAnalyzers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.tracking.ProcessFile(ctx, "v", f.writeTrack(t, "track.csv"))
	require.NoError(t, err)

	assert.Contains(t, f.analysis.Analyzers(), "idling")

	run, findings, err := f.analysis.RunAnalyzers(ctx, "idling", []string{"v"})
	require.NoError(t, err)
	require.Len(t, findings.Items, 1)
	assert.InDelta(t, 80, findings.Items[0].DurationS, 1e-9)
	assert.Equal(t, models.TaskStatusCompleted, run.Status)

	stored, err := f.analysis.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.FindingCount)
	assert.Contains(t, stored.ResultJSON, `"analyzer":"idling"`)

	runs, err := f.analysis.ListRuns(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	_, _, err = f.analysis.RunAnalyzers(ctx, "telepathy", []string{"v"})
	assert.ErrorIs(t, err, ErrUnknownAnalyzer)
	_, _, err = f.analysis.RunAnalyzers(ctx, "idling", nil)
	assert.ErrorIs(t, err, ErrNoVehicles)
	_, _, err = f.analysis.RunAnalyzers(ctx, "idling", []string{"ghost"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
