package interpolation

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/jengzang/vehicle-forensics-go/internal/models"
)

var t0 = time.Date(2022, 6, 14, 18, 0, 0, 0, time.UTC)

func pt(lat, lon float64, offset time.Duration) *models.GPSPoint {
	return models.NewObservedPoint(lat, lon, t0.Add(offset))
}

func vehicle(points ...*models.GPSPoint) *models.VehicleData {
	return &models.VehicleData{VehicleID: "car-1", Points: points}
}

var oneSecond = Options{IntervalS: 1, ToleranceS: 0.001}

func TestIsUniformCadence(t *testing.T) {
	uniform := []*models.GPSPoint{pt(1, 1, 0), pt(1, 1, time.Second), pt(1, 1, 2*time.Second)}
	assert.True(t, IsUniformCadence(uniform, time.Second, time.Millisecond))

	jitter := []*models.GPSPoint{pt(1, 1, 0), pt(1, 1, time.Second+500*time.Microsecond)}
	assert.True(t, IsUniformCadence(jitter, time.Second, time.Millisecond))

	missing := []*models.GPSPoint{pt(1, 1, 0), pt(1, 1, time.Second), pt(1, 1, 3*time.Second)}
	assert.False(t, IsUniformCadence(missing, time.Second, time.Millisecond))

	assert.True(t, IsUniformCadence(nil, time.Second, time.Millisecond))
}

func TestResamplingPassthroughOnUniformData(t *testing.T) {
	points := []*models.GPSPoint{
		pt(10, 10, 0),
		pt(10.0001, 10, time.Second),
		pt(10.0002, 10, 2*time.Second),
		pt(10.0003, 10, 3*time.Second),
	}
	vd := vehicle(points...)

	out, err := InterpolatePathGlobalResampling(context.Background(), vd, oneSecond)
	require.NoError(t, err)
	assert.Same(t, vd, out)
	require.Len(t, out.Points, 4)
	for i, p := range out.Points {
		assert.Same(t, points[i], p)
		assert.False(t, p.IsInterpolated)
	}
	assert.False(t, out.HasInterpolatedPoints)
}

func TestResamplingProducesUniformGrid(t *testing.T) {
	src := []*models.GPSPoint{
		pt(10, 10, 0),
		pt(10.001, 10, 3*time.Second),
		pt(10.002, 10.001, 4500*time.Millisecond),
		pt(10.002, 10.002, 11*time.Second),
		pt(10.003, 10.002, 12700*time.Millisecond),
	}
	vd := vehicle(src...)

	out, err := InterpolatePathGlobalResampling(context.Background(), vd, oneSecond)
	require.NoError(t, err)
	require.NotSame(t, vd, out)
	assert.True(t, out.HasInterpolatedPoints)
	assert.Len(t, vd.Points, 5, "input is left untouched")

	pts := out.Points
	assert.Same(t, src[0], pts[0])
	assert.Same(t, src[len(src)-1], pts[len(pts)-1])
	// ticks at 1..12 s plus both endpoints
	require.Len(t, pts, 14)

	gaps := make([]float64, 0, len(pts)-2)
	for i := 1; i < len(pts)-1; i++ {
		gaps = append(gaps, pts[i].Timestamp.Sub(pts[i-1].Timestamp).Seconds())
	}
	assert.Less(t, stat.Variance(gaps, nil), 1e-3)
	assert.InDelta(t, 1.0, stat.Mean(gaps, nil), 1e-9)

	// 3 s and 11 s land on source points which are reused as is
	assert.Same(t, src[1], pts[3])
	assert.Same(t, src[3], pts[11])
	assert.False(t, pts[3].IsInterpolated)
	assert.True(t, pts[1].IsInterpolated)
	assert.False(t, pts[1].IsObserved)
}

func TestResamplingInterpolatesGeometry(t *testing.T) {
	a := pt(10, 20, 0)
	a.Altitude = models.Float64Ptr(100)
	a.Heading = models.Float64Ptr(359)
	a.Speed = models.Float64Ptr(40)
	a.SegmentID = models.IntPtr(0)
	a.SegmentSpeedKmh = models.Float64Ptr(42)
	a.SpeedCertainty = models.CertaintyHigh

	b := pt(10.002, 20.004, 2*time.Second)
	b.Altitude = models.Float64Ptr(110)
	b.Heading = models.Float64Ptr(1)
	b.Speed = models.Float64Ptr(60)

	c := pt(10.003, 20.004, 5*time.Second)

	out, err := InterpolatePathGlobalResampling(context.Background(), vehicle(a, b, c), oneSecond)
	require.NoError(t, err)

	mid := out.Points[1]
	assert.True(t, mid.IsInterpolated)
	assert.InDelta(t, 10.001, mid.Latitude, 1e-9)
	assert.InDelta(t, 20.002, mid.Longitude, 1e-9)
	require.NotNil(t, mid.Altitude)
	assert.InDelta(t, 105, *mid.Altitude, 1e-9)
	require.NotNil(t, mid.Heading)
	assert.InDelta(t, 0, *mid.Heading, 1e-9)
	require.NotNil(t, mid.Speed)
	assert.InDelta(t, 50, *mid.Speed, 1e-9)

	// forensic speed comes from the generating segment
	assert.Equal(t, 0, *mid.SegmentID)
	assert.Equal(t, 42.0, *mid.SegmentSpeedKmh)
	assert.Equal(t, models.CertaintyHigh, mid.SpeedCertainty)

	// c has no altitude, so points between b and c carry none
	after := out.Points[3]
	assert.True(t, after.IsInterpolated)
	assert.Nil(t, after.Altitude)
	assert.Nil(t, after.Speed)
}

func TestResamplingAcrossAntimeridian(t *testing.T) {
	out, err := InterpolatePathGlobalResampling(context.Background(), vehicle(
		pt(0, 179.999, 0),
		pt(0, -179.999, 2*time.Second),
		pt(0, -179.998, 5*time.Second),
	), oneSecond)
	require.NoError(t, err)
	assert.InDelta(t, 180, math.Abs(out.Points[1].Longitude), 1e-9)
}

func TestResamplingIgnoresSyntheticPoints(t *testing.T) {
	synthetic := pt(50, 50, 500*time.Millisecond)
	synthetic.IsObserved = false
	synthetic.IsInterpolated = true

	out, err := InterpolatePathGlobalResampling(context.Background(), vehicle(
		pt(10, 10, 0), synthetic, pt(10, 10.001, 2500*time.Millisecond),
	), oneSecond)
	require.NoError(t, err)
	for _, p := range out.Points {
		assert.NotSame(t, synthetic, p)
		assert.Less(t, p.Latitude, 11.0)
	}
}

func TestResamplingRejectsBadInterval(t *testing.T) {
	_, err := InterpolatePathGlobalResampling(context.Background(), vehicle(pt(1, 1, 0)), Options{IntervalS: 0})
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestResamplingCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := InterpolatePathGlobalResampling(ctx, vehicle(pt(1, 1, 0), pt(1, 1.1, 2*time.Hour)), oneSecond)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCache(t *testing.T) {
	cache := NewCache(2)
	vd := vehicle(pt(10, 10, 0), pt(10.001, 10, 2500*time.Millisecond))

	first, err := cache.Resample(context.Background(), vd, oneSecond)
	require.NoError(t, err)
	second, err := cache.Resample(context.Background(), vd, oneSecond)
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = cache.Resample(context.Background(), vd, Options{IntervalS: 0.5, ToleranceS: 0.001})
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())

	other := vehicle(pt(20, 20, 0), pt(20.001, 20, 2500*time.Millisecond))
	other.VehicleID = "car-2"
	_, err = cache.Resample(context.Background(), other, oneSecond)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len(), "oldest entry evicted")

	cache.Invalidate("car-2")
	assert.Equal(t, 1, cache.Len())

	third, err := cache.Resample(context.Background(), vd, oneSecond)
	require.NoError(t, err)
	assert.NotSame(t, first, third, "evicted entry is recomputed")
}
