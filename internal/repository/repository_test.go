package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/vehicle-forensics-go/internal/database"
	"github.com/jengzang/vehicle-forensics-go/internal/models"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenAndMigrate(database.Config{Path: filepath.Join(t.TempDir(), "forensics.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// sampleVehicle has three observed points: a coalesced stop followed by a
// HIGH segment and a gap.
func sampleVehicle(id string) *models.VehicleData {
	p0 := models.NewObservedPoint(52.5, 13.4, base)
	p0.Metadata.CoalescedCount = 2
	p0.Metadata.GapType = models.GapStopCoalesced
	p0.Speed = models.Float64Ptr(3.5)
	p1 := models.NewObservedPoint(52.5001, 13.4, base.Add(4*time.Second))
	p1.Heading = models.Float64Ptr(12)
	p2 := models.NewObservedPoint(52.51, 13.41, base.Add(64*time.Second))
	p2.IsAnomaly = true
	p2.Metadata.AddAnomaly(models.AnomalyInfo{Kind: models.AnomalyImpossibleSpeed, Severity: models.SeverityHigh})

	s0 := &models.GPSSegment{ID: 0, Start: p0, End: p1, Speed: models.SegmentSpeed{
		SpeedKmh: models.Float64Ptr(10), Certainty: models.CertaintyHigh,
		DistanceM: 11.1, TimeSeconds: 4, GapType: models.GapNormal,
	}}
	s1 := &models.GPSSegment{ID: 1, Start: p1, End: p2, Speed: models.SegmentSpeed{
		Certainty: models.CertaintyUnknown, DistanceM: 1300, TimeSeconds: 60, GapType: models.GapTooLarge,
	}}
	for _, s := range []*models.GPSSegment{s0, s1} {
		s.Start.SegmentID = models.IntPtr(s.ID)
		s.Start.SegmentSpeedKmh = s.Speed.SpeedKmh
		s.Start.SpeedCertainty = s.Speed.Certainty
	}
	p2.SegmentID = models.IntPtr(1)
	p2.SpeedCertainty = models.CertaintyUnknown
	p2.IsGap = true

	vd := &models.VehicleData{
		VehicleID:       id,
		SourceFile:      id + ".csv",
		Points:          []*models.GPSPoint{p0, p1, p2},
		Segments:        []*models.GPSSegment{s0, s1},
		ProjectionLabel: "AEQD centered at 52.5050, 13.4050",
	}
	vd.UpdateStatistics()
	return vd
}

func TestVehicleRepositorySaveAndGet(t *testing.T) {
	repo := NewVehicleRepository(openTestDB(t))
	ctx := context.Background()

	vd := sampleVehicle("truck-1")
	require.NoError(t, repo.Save(ctx, vd, models.ForensicSpeedAnalysis{ForensicReliabilityScore: 0.5}))

	got, err := repo.Get(ctx, "truck-1")
	require.NoError(t, err)
	require.Len(t, got.Points, 3)
	require.Len(t, got.Segments, 2)

	assert.Equal(t, vd.ProjectionLabel, got.ProjectionLabel)
	assert.True(t, got.HasForensicSegments)
	assert.True(t, got.Points[0].Timestamp.Equal(base))
	assert.Equal(t, 2, got.Points[0].Metadata.CoalescedCount)
	assert.Equal(t, models.GapStopCoalesced, got.Points[0].Metadata.GapType)
	assert.InDelta(t, 3.5, *got.Points[0].Speed, 1e-9)
	assert.Nil(t, got.Points[0].Altitude)
	assert.InDelta(t, 12, *got.Points[1].Heading, 1e-9)
	assert.True(t, got.Points[2].IsAnomaly)
	assert.True(t, got.Points[2].IsGap)
	require.Len(t, got.Points[2].Metadata.Anomalies, 1)

	// endpoints are shared with the point slice
	assert.Same(t, got.Points[0], got.Segments[0].Start)
	assert.Same(t, got.Points[1], got.Segments[0].End)
	assert.Same(t, got.Points[1], got.Segments[1].Start)

	assert.InDelta(t, 10, *got.Segments[0].Speed.SpeedKmh, 1e-9)
	assert.Nil(t, got.Segments[1].Speed.SpeedKmh)
	assert.Equal(t, models.GapTooLarge, got.Segments[1].Speed.GapType)
	assert.InDelta(t, vd.TotalDistanceM, got.TotalDistanceM, 1e-9)
}

func TestVehicleRepositorySaveReplaces(t *testing.T) {
	repo := NewVehicleRepository(openTestDB(t))
	ctx := context.Background()

	vd := sampleVehicle("v")
	require.NoError(t, repo.Save(ctx, vd, models.ForensicSpeedAnalysis{}))

	vd.Points = vd.Points[:2]
	vd.Segments = vd.Segments[:1]
	require.NoError(t, repo.Save(ctx, vd, models.ForensicSpeedAnalysis{}))

	got, err := repo.Get(ctx, "v")
	require.NoError(t, err)
	assert.Len(t, got.Points, 2)
	assert.Len(t, got.Segments, 1)
}

func TestVehicleRepositoryRejectsForeignSegmentEndpoint(t *testing.T) {
	repo := NewVehicleRepository(openTestDB(t))

	vd := sampleVehicle("v")
	vd.Segments[0].End = models.NewObservedPoint(0, 0, base)
	assert.Error(t, repo.Save(context.Background(), vd, models.ForensicSpeedAnalysis{}))

	_, err := repo.Get(context.Background(), "v")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVehicleRepositoryListAndDelete(t *testing.T) {
	repo := NewVehicleRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, sampleVehicle("b"), models.ForensicSpeedAnalysis{ForensicReliabilityScore: 0.5}))
	require.NoError(t, repo.Save(ctx, sampleVehicle("a"), models.ForensicSpeedAnalysis{}))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].VehicleID)
	assert.Equal(t, "b", list[1].VehicleID)
	assert.Equal(t, 3, list[1].PointCount)
	assert.Equal(t, 2, list[1].SegmentCount)
	assert.InDelta(t, 0.5, list[1].ReliabilityScore, 1e-9)
	assert.True(t, list[1].StartTime.Equal(base))

	require.NoError(t, repo.Delete(ctx, "a"))
	assert.ErrorIs(t, repo.Delete(ctx, "a"), ErrNotFound)

	list, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestVehicleRepositoryListSegments(t *testing.T) {
	repo := NewVehicleRepository(openTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, sampleVehicle("v"), models.ForensicSpeedAnalysis{}))

	all, err := repo.ListSegments(ctx, "v", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[1].StartIndex)
	assert.Equal(t, 2, all[1].EndIndex)
	assert.InDelta(t, 52.51, all[1].EndLat, 1e-9)
	assert.True(t, all[1].EndTime.Equal(base.Add(64*time.Second)))

	high, err := repo.ListSegments(ctx, "v", models.CertaintyHigh)
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.Equal(t, 0, high[0].SegmentID)

	_, err = repo.ListSegments(ctx, "missing", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnalysisRunRepository(t *testing.T) {
	repo := NewAnalysisRunRepository(openTestDB(t))
	ctx := context.Background()

	run := &models.AnalysisRun{
		ID:         "run-1",
		Analyzer:   "idling",
		VehicleIDs: []string{"a", "b"},
		Status:     models.TaskStatusRunning,
	}
	require.NoError(t, repo.Create(ctx, run))
	assert.False(t, run.CreatedAt.IsZero())

	done := time.Now().UTC()
	run.Status = models.TaskStatusCompleted
	run.FindingCount = 3
	run.ResultJSON = `{"items":[]}`
	run.CompletedAt = &done
	require.NoError(t, repo.Update(ctx, run))

	got, err := repo.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.VehicleIDs)
	assert.Equal(t, models.TaskStatusCompleted, got.Status)
	assert.Equal(t, 3, got.FindingCount)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(done))
	assert.Nil(t, got.StartedAt)

	require.NoError(t, repo.Create(ctx, &models.AnalysisRun{ID: "run-2", Analyzer: "co_location", VehicleIDs: []string{"a"}, Status: models.TaskStatusPending}))
	runs, err := repo.List(ctx, "idling", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)

	_, err = repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, &models.AnalysisRun{ID: "nope"}), ErrNotFound)
}
