package wire

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/vehicle-forensics-go/internal/models"
)

var t0 = time.Date(2024, 1, 2, 3, 4, 5, 678_000_000, time.UTC)

func sampleVehicle() *models.VehicleData {
	a := models.NewObservedPoint(48.1, 11.5, t0)
	a.SegmentID = models.IntPtr(0)
	a.SegmentSpeedKmh = models.Float64Ptr(36.5)
	a.SpeedCertainty = models.CertaintyHigh
	a.Metadata.CoalescedCount = 2
	a.Metadata.GapType = models.GapStopCoalesced

	b := &models.GPSPoint{
		Latitude:       48.1001,
		Longitude:      11.5001,
		Timestamp:      t0.Add(time.Second),
		IsInterpolated: true,
		SegmentID:      models.IntPtr(0),
		Altitude:       models.Float64Ptr(520),
	}

	c := models.NewObservedPoint(48.1002, 11.5002, t0.Add(2*time.Second))
	c.SegmentID = models.IntPtr(0)
	c.SegmentSpeedKmh = models.Float64Ptr(36.5)
	c.SpeedCertainty = models.CertaintyHigh
	c.IsAnomaly = true

	return &models.VehicleData{
		VehicleID:       "truck-7",
		Points:          []*models.GPSPoint{a, b, c},
		ProjectionLabel: "AEQD (lat_0=48.100100, lon_0=11.500100)",
	}
}

func marshal(t *testing.T, p *Payload) []byte {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return raw
}

// edit decodes raw into generic JSON, applies fn and re-encodes it
func edit(t *testing.T, raw []byte, fn func(doc map[string]interface{})) []byte {
	t.Helper()
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	fn(doc)
	out, err := json.Marshal(doc)
	require.NoError(t, err)
	return out
}

func point(doc map[string]interface{}, i int) map[string]interface{} {
	return doc["points"].([]interface{})[i].(map[string]interface{})
}

func TestToWireFormat(t *testing.T) {
	p := ToWireFormat(sampleVehicle())

	assert.Equal(t, "truck-7", p.VehicleID)
	require.Len(t, p.Points, 3)
	for i, wp := range p.Points {
		assert.Equal(t, i, wp.Index)
	}
	assert.Equal(t, t0.UnixMilli(), p.Points[0].TimestampMs)
	assert.Equal(t, 36.5, *p.Points[0].SpeedKmh)
	assert.Nil(t, p.Points[1].SpeedKmh)
	assert.Equal(t, models.CertaintyUnknown, p.Points[1].Certainty)
	require.NotNil(t, p.Points[0].Metadata)
	assert.Equal(t, 2, p.Points[0].Metadata.CoalescedCount)
	assert.Nil(t, p.Points[1].Metadata)

	m := p.Meta
	assert.Equal(t, int64(1000), m.DtMs)
	assert.Equal(t, CadenceUniform, m.Cadence)
	assert.Equal(t, 3, m.PointCount)
	assert.Equal(t, 2, m.ObservedCount)
	assert.Equal(t, 1, m.InterpolatedCount)
	assert.Equal(t, 1, m.AnomalyCount)
	assert.Equal(t, "km/h", m.UnitSpeed)
	assert.Equal(t, "epoch_ms", m.UnitTimestamp)
}

func TestCadenceClassification(t *testing.T) {
	mk := func(offsets ...int64) []Point {
		pts := make([]Point, len(offsets))
		for i, o := range offsets {
			pts[i] = Point{TimestampMs: o}
		}
		return pts
	}

	dt, cadence := classifyCadence(mk(0, 1000))
	assert.Equal(t, CadenceRaw, cadence)
	assert.Equal(t, int64(1000), dt)

	_, cadence = classifyCadence(mk(0))
	assert.Equal(t, CadenceRaw, cadence)

	_, cadence = classifyCadence(mk(0, 1000, 2001, 3001))
	assert.Equal(t, CadenceUniform, cadence)

	dt, cadence = classifyCadence(mk(0, 1000, 5000, 6000))
	assert.Equal(t, CadenceMixed, cadence)
	assert.Equal(t, int64(1000), dt)
}

func TestWireRoundTrip(t *testing.T) {
	orig := sampleVehicle()
	raw := marshal(t, ToWireFormat(orig))
	assert.Empty(t, ValidateWireFormat(raw))

	back, warnings, err := FromWireFormat(raw)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, orig.VehicleID, back.VehicleID)
	require.Len(t, back.Points, len(orig.Points))
	for i, want := range orig.Points {
		got := back.Points[i]
		assert.Equal(t, want.Latitude, got.Latitude)
		assert.Equal(t, want.Longitude, got.Longitude)
		assert.True(t, want.Timestamp.Truncate(time.Millisecond).Equal(got.Timestamp))
		assert.Equal(t, want.IsObserved, got.IsObserved)
		assert.Equal(t, want.IsInterpolated, got.IsInterpolated)
	}
	assert.True(t, back.HasInterpolatedPoints)
	assert.Equal(t, orig.ProjectionLabel, back.ProjectionLabel)
	assert.Equal(t, 2, back.Points[0].Metadata.CoalescedCount)
	assert.Equal(t, 520.0, *back.Points[1].Altitude)
}

func TestValidateRejectsWrongSpeedUnit(t *testing.T) {
	raw := edit(t, marshal(t, ToWireFormat(sampleVehicle())), func(doc map[string]interface{}) {
		doc["meta"].(map[string]interface{})["unit_speed"] = "mph"
	})

	errs := ValidateWireFormat(raw)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0], "unit_speed")

	_, _, err := FromWireFormat(raw)
	assert.ErrorIs(t, err, ErrUnitMismatch)
}

func TestValidateRejectsFloatTimestamp(t *testing.T) {
	raw := edit(t, marshal(t, ToWireFormat(sampleVehicle())), func(doc map[string]interface{}) {
		point(doc, 1)["timestamp_ms"] = 1704164646678.5
	})

	errs := ValidateWireFormat(raw)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "timestamp_ms must be an integer")

	_, _, err := FromWireFormat(raw)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	raw := []byte(`{
		"vehicle_id": "",
		"points": [
			{"index": 0, "timestamp_ms": 1, "lat": 91, "lon": 0, "certainty": "SURE", "is_observed": true, "is_interpolated": false, "speed_kmh": -3},
			{"index": 0, "timestamp_ms": 2, "lat": 0, "lon": 0, "is_observed": true, "is_interpolated": false, "speed_kmh": 350}
		],
		"meta": {"unit_speed": "km/h", "unit_distance": "meters", "unit_timestamp": "epoch_ms", "unit_altitude": "meters"}
	}`)
	errs := ValidateWireFormat(raw)

	joined := func(sub string) bool {
		for _, e := range errs {
			if strings.Contains(e, sub) {
				return true
			}
		}
		return false
	}
	assert.True(t, joined("meta.unit_heading missing"))
	assert.True(t, joined("vehicle_id"))
	assert.True(t, joined("points[0]: lat"))
	assert.True(t, joined("points[0]: certainty"))
	assert.True(t, joined("points[1]: certainty missing"))
	assert.True(t, joined("negative speed"))
	assert.True(t, joined("points[1]: index 0 is not greater than 0"))
	assert.False(t, joined("points[1]: speed"), "speeds above 300 km/h only warn")
}

func TestFromWireFormatWarnsOnNonMonotonicIndex(t *testing.T) {
	raw := edit(t, marshal(t, ToWireFormat(sampleVehicle())), func(doc map[string]interface{}) {
		point(doc, 2)["index"] = 1
	})

	vd, warnings, err := FromWireFormat(raw)
	require.NoError(t, err)
	assert.Len(t, vd.Points, 3)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "non-monotonic")
}

func TestFromWireFormatRejectsGarbage(t *testing.T) {
	_, _, err := FromWireFormat([]byte(`{"vehicle_id":`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Equal(t, []string{"payload is not valid JSON"}, ValidateWireFormat([]byte("nope")))
}
