// Package export renders processed vehicles for GIS tools.
package export

import (
	"fmt"
	"os"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jengzang/vehicle-forensics-go/internal/models"
)

// Feature kinds
const (
	KindSegment       = "segment"
	KindCoalescedStop = "coalesced_stop"
	KindAnomaly       = "anomaly"
)

// VehicleGeoJSON builds a FeatureCollection with one LineString per forensic
// segment and one Point per coalesced stop or flagged point
func VehicleGeoJSON(vd *models.VehicleData) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.ExtraMembers = geojson.Properties{
		"vehicle_id":       vd.VehicleID,
		"projection_label": vd.ProjectionLabel,
	}

	var all orb.MultiPoint
	for _, seg := range vd.Segments {
		line := orb.LineString{location(seg.Start), location(seg.End)}
		f := geojson.NewFeature(line)
		f.Properties["kind"] = KindSegment
		f.Properties["segment_id"] = seg.ID
		f.Properties["certainty"] = string(seg.Speed.Certainty)
		f.Properties["gap_type"] = string(seg.Speed.GapType)
		f.Properties["distance_m"] = seg.Speed.DistanceM
		f.Properties["time_seconds"] = seg.Speed.TimeSeconds
		f.Properties["start_time"] = seg.Start.Timestamp.UTC().Format(time.RFC3339Nano)
		f.Properties["end_time"] = seg.End.Timestamp.UTC().Format(time.RFC3339Nano)
		if seg.Speed.SpeedKmh != nil {
			f.Properties["speed_kmh"] = *seg.Speed.SpeedKmh
		} else {
			f.Properties["speed_kmh"] = nil
		}
		fc.Append(f)
		all = append(all, line...)
	}

	for _, p := range vd.Points {
		if !p.IsObserved || p.IsInterpolated {
			continue
		}
		if p.Metadata.CoalescedCount > 1 {
			f := pointFeature(p, KindCoalescedStop)
			f.Properties["coalesced_count"] = p.Metadata.CoalescedCount
			fc.Append(f)
			all = append(all, location(p))
		}
		if p.IsAnomaly {
			f := pointFeature(p, KindAnomaly)
			kinds := make([]string, 0, len(p.Metadata.Anomalies))
			for _, a := range p.Metadata.Anomalies {
				kinds = append(kinds, a.Kind)
			}
			f.Properties["anomalies"] = kinds
			if len(p.Metadata.ValidationErrors) > 0 {
				f.Properties["validation_errors"] = p.Metadata.ValidationErrors
			}
			fc.Append(f)
			all = append(all, location(p))
		}
	}

	if len(all) > 0 {
		fc.BBox = geojson.NewBBox(all.Bound())
	}
	return fc
}

// WriteVehicleGeoJSON writes the FeatureCollection of vd to path
func WriteVehicleGeoJSON(path string, vd *models.VehicleData) error {
	data, err := VehicleGeoJSON(vd).MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode geojson: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write geojson: %w", err)
	}
	return nil
}

func pointFeature(p *models.GPSPoint, kind string) *geojson.Feature {
	f := geojson.NewFeature(location(p))
	f.Properties["kind"] = kind
	f.Properties["timestamp"] = p.Timestamp.UTC().Format(time.RFC3339Nano)
	if p.SegmentID != nil {
		f.Properties["segment_id"] = *p.SegmentID
	}
	return f
}

// GeoJSON positions are lon, lat
func location(p *models.GPSPoint) orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}
