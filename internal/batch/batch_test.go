package batch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/vehicle-forensics-go/internal/ingest"
	"github.com/jengzang/vehicle-forensics-go/internal/models"
	"github.com/jengzang/vehicle-forensics-go/internal/service"
	"github.com/jengzang/vehicle-forensics-go/internal/wire"
)

const shortTrack = `timestamp,latitude,longitude
2024-03-01 12:00:00,52.5,13.4
2024-03-01 12:00:04,52.5002,13.4
2024-03-01 12:00:14,52.5002,13.4
`

func writeFiles(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(paths[i], []byte(shortTrack), 0o644))
	}
	return paths
}

func newService() *service.TrackingService {
	return service.NewTrackingService(models.DefaultTrackingSettings(), nil, nil, nil)
}

func TestRunKeepsInputOrder(t *testing.T) {
	dir := t.TempDir()
	files := writeFiles(t, dir, "a.csv", "b.csv", "c.csv", "d.csv", "e.kml")

	var mu sync.Mutex
	var seen []string
	p := NewProcessor(newService(), Options{Workers: 3})
	results, err := p.Run(context.Background(), files, func(r FileResult) {
		mu.Lock()
		seen = append(seen, r.VehicleID)
		mu.Unlock()
	})
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e"}, seen)

	for i, id := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, id, results[i].VehicleID)
		require.NoError(t, results[i].Err)
		assert.Len(t, results[i].Result.Vehicle.Points, 3)
	}
	assert.ErrorIs(t, results[4].Err, ingest.ErrUnsupportedFormat)

	s := Summarize(results)
	assert.Equal(t, Summary{Files: 5, Failed: 1, Points: 12, Segments: 8}, s)
}

func TestRunWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	files := writeFiles(t, dir, "truck.csv")
	geoDir := filepath.Join(dir, "geojson")
	wireDir := filepath.Join(dir, "wire")

	p := NewProcessor(newService(), Options{GeoJSONDir: geoDir, WireDir: wireDir, ResampleS: 1})
	results, err := p.Run(context.Background(), files, nil)
	require.NoError(t, err)
	require.NoError(t, results[0].Err)
	assert.Equal(t, []string{
		filepath.Join(geoDir, "truck.geojson"),
		filepath.Join(wireDir, "truck.json"),
	}, results[0].Outputs)

	raw, err := os.ReadFile(filepath.Join(wireDir, "truck.json"))
	require.NoError(t, err)
	var payload wire.Payload
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "truck", payload.VehicleID)
	assert.Equal(t, 15, payload.Meta.PointCount)
	assert.Equal(t, 3, payload.Meta.ObservedCount)
	assert.Empty(t, wire.ValidateWireFormat(raw))

	geo, err := os.ReadFile(filepath.Join(geoDir, "truck.geojson"))
	require.NoError(t, err)
	assert.Contains(t, string(geo), `"FeatureCollection"`)
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	files := writeFiles(t, dir, "a.csv", "b.csv")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := NewProcessor(newService(), Options{Workers: 1}).Run(ctx, files, nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Error(t, r.Err)
		assert.NotEmpty(t, r.Path)
	}
	assert.Equal(t, 2, Summarize(results).Failed)
}
