package wire

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/jengzang/vehicle-forensics-go/internal/models"
)

var expectedUnits = []struct {
	key, want string
}{
	{"unit_speed", UnitSpeed},
	{"unit_distance", UnitDistance},
	{"unit_timestamp", UnitTimestamp},
	{"unit_altitude", UnitAltitude},
	{"unit_heading", UnitHeading},
}

var requiredPointFields = []string{"index", "timestamp_ms", "lat", "lon", "certainty", "is_observed", "is_interpolated"}

// FromWireFormat parses raw into vehicle data. Unit declarations that differ
// from the expected ones fail with ErrUnitMismatch; non-integer timestamps and
// other structural problems fail with ErrInvalidPayload. A non-monotonic index
// is reported in the returned warnings.
func FromWireFormat(raw []byte) (*models.VehicleData, []string, error) {
	if !gjson.ValidBytes(raw) {
		return nil, nil, fmt.Errorf("%w: not valid JSON", ErrInvalidPayload)
	}
	doc := gjson.ParseBytes(raw)

	if errs := unitErrors(doc.Get("meta")); len(errs) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnitMismatch, strings.Join(errs, "; "))
	}
	if errs := structureErrors(doc); len(errs) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(errs, "; "))
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var warnings []string
	vd := &models.VehicleData{
		VehicleID:       payload.VehicleID,
		ProjectionLabel: payload.Meta.ProjectionLabel,
		Points:          make([]*models.GPSPoint, len(payload.Points)),
	}
	for i, wp := range payload.Points {
		if i > 0 && wp.Index <= payload.Points[i-1].Index {
			msg := fmt.Sprintf("non-monotonic index at position %d (%d after %d)", i, wp.Index, payload.Points[i-1].Index)
			warnings = append(warnings, msg)
			logger.WithField("vehicle_id", payload.VehicleID).Warn(msg)
		}
		gp := &models.GPSPoint{
			Latitude:        wp.Lat,
			Longitude:       wp.Lon,
			Timestamp:       time.UnixMilli(wp.TimestampMs).UTC(),
			Altitude:        wp.Altitude,
			Heading:         wp.Heading,
			IsObserved:      wp.IsObserved,
			IsInterpolated:  wp.IsInterpolated,
			IsGap:           wp.IsGap,
			IsAnomaly:       wp.IsAnomaly,
			SegmentID:       wp.SegmentID,
			SegmentSpeedKmh: wp.SpeedKmh,
			SpeedCertainty:  wp.Certainty,
		}
		if wp.Metadata != nil {
			gp.Metadata = *wp.Metadata
		}
		vd.Points[i] = gp
		vd.HasInterpolatedPoints = vd.HasInterpolatedPoints || wp.IsInterpolated
	}
	return vd, warnings, nil
}

// ValidateWireFormat checks raw without converting it and returns every
// problem found. An empty result means the payload is valid.
func ValidateWireFormat(raw []byte) []string {
	if !gjson.ValidBytes(raw) {
		return []string{"payload is not valid JSON"}
	}
	doc := gjson.ParseBytes(raw)

	errs := unitErrors(doc.Get("meta"))
	errs = append(errs, structureErrors(doc)...)

	prevIndex := int64(-1)
	doc.Get("points").ForEach(func(key, p gjson.Result) bool {
		i := key.Int()
		if idx := p.Get("index"); idx.Type == gjson.Number {
			if i > 0 && idx.Int() <= prevIndex {
				errs = append(errs, fmt.Sprintf("points[%d]: index %d is not greater than %d", i, idx.Int(), prevIndex))
			}
			prevIndex = idx.Int()
		}
		errs = append(errs, speedErrors(i, p.Get("speed_kmh"))...)
		return true
	})
	return errs
}

func unitErrors(meta gjson.Result) []string {
	if !meta.IsObject() {
		return []string{"missing meta block"}
	}
	var errs []string
	for _, u := range expectedUnits {
		got := meta.Get(u.key)
		if !got.Exists() {
			errs = append(errs, fmt.Sprintf("meta.%s missing", u.key))
			continue
		}
		if got.Type != gjson.String || got.Str != u.want {
			errs = append(errs, fmt.Sprintf("meta.%s is %s, expected %q", u.key, got.Raw, u.want))
		}
	}
	return errs
}

func structureErrors(doc gjson.Result) []string {
	var errs []string
	if id := doc.Get("vehicle_id"); id.Type != gjson.String || id.Str == "" {
		errs = append(errs, "vehicle_id missing or not a string")
	}
	points := doc.Get("points")
	if !points.IsArray() {
		return append(errs, "points missing or not an array")
	}

	points.ForEach(func(key, p gjson.Result) bool {
		i := key.Int()
		if !p.IsObject() {
			errs = append(errs, fmt.Sprintf("points[%d]: not an object", i))
			return true
		}
		for _, field := range requiredPointFields {
			if !p.Get(field).Exists() {
				errs = append(errs, fmt.Sprintf("points[%d]: %s missing", i, field))
			}
		}
		if ts := p.Get("timestamp_ms"); ts.Exists() && !isInteger(ts) {
			errs = append(errs, fmt.Sprintf("points[%d]: timestamp_ms must be an integer, got %s", i, ts.Raw))
		}
		if idx := p.Get("index"); idx.Exists() && !isInteger(idx) {
			errs = append(errs, fmt.Sprintf("points[%d]: index must be an integer, got %s", i, idx.Raw))
		}
		if lat := p.Get("lat"); lat.Exists() && (lat.Type != gjson.Number || lat.Float() < -90 || lat.Float() > 90) {
			errs = append(errs, fmt.Sprintf("points[%d]: lat %s out of range", i, lat.Raw))
		}
		if lon := p.Get("lon"); lon.Exists() && (lon.Type != gjson.Number || lon.Float() < -180 || lon.Float() > 180) {
			errs = append(errs, fmt.Sprintf("points[%d]: lon %s out of range", i, lon.Raw))
		}
		if c := p.Get("certainty"); c.Exists() && !models.Certainty(c.String()).Valid() {
			errs = append(errs, fmt.Sprintf("points[%d]: certainty %s is not one of HIGH, MEDIUM, LOW, UNKNOWN", i, c.Raw))
		}
		return true
	})
	return errs
}

func speedErrors(i int64, speed gjson.Result) []string {
	if !speed.Exists() || speed.Type == gjson.Null {
		return nil
	}
	if speed.Type != gjson.Number {
		return []string{fmt.Sprintf("points[%d]: speed_kmh must be a number or null", i)}
	}
	v := speed.Float()
	if v < 0 {
		return []string{fmt.Sprintf("points[%d]: negative speed %.3f km/h", i, v)}
	}
	if v > speedSanityKmh {
		logger.Warnf("points[%d]: speed %.1f km/h exceeds %.0f km/h", i, v, speedSanityKmh)
	}
	return nil
}

// isInteger reports whether r is a JSON number written without a fraction or exponent
func isInteger(r gjson.Result) bool {
	return r.Type == gjson.Number && !strings.ContainsAny(r.Raw, ".eE")
}
