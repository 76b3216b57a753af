package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jengzang/vehicle-forensics-go/internal/database"
	"github.com/jengzang/vehicle-forensics-go/internal/models"
)

// ErrNotFound is returned when a vehicle or run does not exist
var ErrNotFound = errors.New("not found")

// VehicleRepository handles database operations for analysed vehicles
type VehicleRepository struct {
	db *sql.DB
}

// NewVehicleRepository creates a new vehicle repository
func NewVehicleRepository(db *sql.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// Save replaces the stored vehicle with vd, its points and its segments
func (r *VehicleRepository) Save(ctx context.Context, vd *models.VehicleData, analysis models.ForensicSpeedAnalysis) error {
	index := make(map[*models.GPSPoint]int, len(vd.Points))
	for i, p := range vd.Points {
		index[p] = i
	}

	return database.Transaction(ctx, r.db, func(tx *sql.Tx) error {
		for _, table := range []string{"segments", "vehicle_points", "vehicles"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE vehicle_id = ?", vd.VehicleID); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO vehicles (
				vehicle_id, source_file, projection_label, point_count, segment_count,
				start_time_ns, end_time_ns, avg_speed_kmh, max_speed_kmh, min_speed_kmh,
				total_distance_m, total_duration_s, reliability_score, updated_at_ns
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			vd.VehicleID, vd.SourceFile, vd.ProjectionLabel, len(vd.Points), len(vd.Segments),
			nullTime(vd.StartTime()), nullTime(vd.EndTime()),
			nullFloat(vd.AvgSpeedKmh), nullFloat(vd.MaxSpeedKmh), nullFloat(vd.MinSpeedKmh),
			vd.TotalDistanceM, vd.TotalDurationS, analysis.ForensicReliabilityScore,
			time.Now().UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert vehicle: %w", err)
		}

		pointStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO vehicle_points (
				vehicle_id, seq, timestamp_ns, latitude, longitude, speed, altitude, heading, accuracy,
				calculated_speed, distance_from_prev, time_from_prev,
				is_interpolated, is_anomaly, is_observed, is_gap,
				segment_id, segment_speed_kmh, speed_certainty, metadata
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare point insert: %w", err)
		}
		defer pointStmt.Close()

		for i, p := range vd.Points {
			meta, err := encodeAnnotation(p.Metadata)
			if err != nil {
				return err
			}
			var segmentID interface{}
			if p.SegmentID != nil {
				segmentID = *p.SegmentID
			}
			_, err = pointStmt.ExecContext(ctx,
				vd.VehicleID, i, p.Timestamp.UnixNano(), p.Latitude, p.Longitude,
				nullFloat(p.Speed), nullFloat(p.Altitude), nullFloat(p.Heading), nullFloat(p.Accuracy),
				nullFloat(p.CalculatedSpeed), p.DistanceFromPrev, p.TimeFromPrev,
				p.IsInterpolated, p.IsAnomaly, p.IsObserved, p.IsGap,
				segmentID, nullFloat(p.SegmentSpeedKmh), string(p.SpeedCertainty), meta,
			)
			if err != nil {
				return fmt.Errorf("failed to insert point %d: %w", i, err)
			}
		}

		segStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO segments (
				vehicle_id, segment_id, start_seq, end_seq,
				speed_kmh, certainty, distance_m, time_seconds, gap_type
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare segment insert: %w", err)
		}
		defer segStmt.Close()

		for _, seg := range vd.Segments {
			start, okStart := index[seg.Start]
			end, okEnd := index[seg.End]
			if !okStart || !okEnd {
				return fmt.Errorf("segment %d references a point outside vehicle %s", seg.ID, vd.VehicleID)
			}
			_, err := segStmt.ExecContext(ctx,
				vd.VehicleID, seg.ID, start, end,
				nullFloat(seg.Speed.SpeedKmh), string(seg.Speed.Certainty),
				seg.Speed.DistanceM, seg.Speed.TimeSeconds, string(seg.Speed.GapType),
			)
			if err != nil {
				return fmt.Errorf("failed to insert segment %d: %w", seg.ID, err)
			}
		}

		return nil
	})
}

// Get loads a vehicle with its points and segments. Segment endpoints are the
// same point objects held in Points.
func (r *VehicleRepository) Get(ctx context.Context, vehicleID string) (*models.VehicleData, error) {
	vd := &models.VehicleData{VehicleID: vehicleID}

	var avgSpeed, maxSpeed, minSpeed sql.NullFloat64
	var sourceFile, label sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT source_file, projection_label, avg_speed_kmh, max_speed_kmh, min_speed_kmh,
			total_distance_m, total_duration_s
		FROM vehicles WHERE vehicle_id = ?`, vehicleID,
	).Scan(&sourceFile, &label, &avgSpeed, &maxSpeed, &minSpeed, &vd.TotalDistanceM, &vd.TotalDurationS)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("vehicle %s: %w", vehicleID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}
	vd.SourceFile = sourceFile.String
	vd.ProjectionLabel = label.String
	vd.AvgSpeedKmh, vd.MaxSpeedKmh, vd.MinSpeedKmh = floatPtr(avgSpeed), floatPtr(maxSpeed), floatPtr(minSpeed)

	points, err := r.loadPoints(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	vd.Points = points
	for _, p := range points {
		if p.IsInterpolated {
			vd.HasInterpolatedPoints = true
			break
		}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT segment_id, start_seq, end_seq, speed_kmh, certainty, distance_m, time_seconds, gap_type
		FROM segments WHERE vehicle_id = ? ORDER BY segment_id`, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var seg models.GPSSegment
		var start, end int
		var speed sql.NullFloat64
		var certainty, gapType string
		if err := rows.Scan(&seg.ID, &start, &end, &speed, &certainty,
			&seg.Speed.DistanceM, &seg.Speed.TimeSeconds, &gapType); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		if start < 0 || start >= len(points) || end < 0 || end >= len(points) {
			return nil, fmt.Errorf("segment %d of vehicle %s has out of range endpoints", seg.ID, vehicleID)
		}
		seg.Start, seg.End = points[start], points[end]
		seg.Speed.SpeedKmh = floatPtr(speed)
		seg.Speed.Certainty = models.Certainty(certainty)
		seg.Speed.GapType = models.GapType(gapType)
		vd.Segments = append(vd.Segments, &seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate segments: %w", err)
	}
	vd.HasForensicSegments = len(vd.Segments) > 0

	return vd, nil
}

func (r *VehicleRepository) loadPoints(ctx context.Context, vehicleID string) ([]*models.GPSPoint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT timestamp_ns, latitude, longitude, speed, altitude, heading, accuracy,
			calculated_speed, distance_from_prev, time_from_prev,
			is_interpolated, is_anomaly, is_observed, is_gap,
			segment_id, segment_speed_kmh, speed_certainty, metadata
		FROM vehicle_points WHERE vehicle_id = ? ORDER BY seq`, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	defer rows.Close()

	var points []*models.GPSPoint
	for rows.Next() {
		var p models.GPSPoint
		var ts int64
		var speed, altitude, heading, accuracy, calculated, segSpeed sql.NullFloat64
		var segmentID sql.NullInt64
		var certainty, meta sql.NullString
		err := rows.Scan(
			&ts, &p.Latitude, &p.Longitude, &speed, &altitude, &heading, &accuracy,
			&calculated, &p.DistanceFromPrev, &p.TimeFromPrev,
			&p.IsInterpolated, &p.IsAnomaly, &p.IsObserved, &p.IsGap,
			&segmentID, &segSpeed, &certainty, &meta,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		p.Timestamp = time.Unix(0, ts).UTC()
		p.Speed, p.Altitude, p.Heading, p.Accuracy = floatPtr(speed), floatPtr(altitude), floatPtr(heading), floatPtr(accuracy)
		p.CalculatedSpeed = floatPtr(calculated)
		p.SegmentSpeedKmh = floatPtr(segSpeed)
		p.SpeedCertainty = models.Certainty(certainty.String)
		if segmentID.Valid {
			p.SegmentID = models.IntPtr(int(segmentID.Int64))
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &p.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode point metadata: %w", err)
			}
		}
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate points: %w", err)
	}
	return points, nil
}

// List returns a summary of every stored vehicle ordered by id
func (r *VehicleRepository) List(ctx context.Context) ([]models.VehicleSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT vehicle_id, source_file, projection_label, point_count, segment_count,
			start_time_ns, end_time_ns, avg_speed_kmh, max_speed_kmh, min_speed_kmh,
			total_distance_m, total_duration_s, reliability_score, updated_at_ns
		FROM vehicles ORDER BY vehicle_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	summaries := []models.VehicleSummary{}
	for rows.Next() {
		var s models.VehicleSummary
		var sourceFile, label sql.NullString
		var start, end sql.NullInt64
		var avgSpeed, maxSpeed, minSpeed sql.NullFloat64
		var updated int64
		err := rows.Scan(
			&s.VehicleID, &sourceFile, &label, &s.PointCount, &s.SegmentCount,
			&start, &end, &avgSpeed, &maxSpeed, &minSpeed,
			&s.TotalDistanceM, &s.TotalDurationS, &s.ReliabilityScore, &updated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		s.SourceFile, s.ProjectionLabel = sourceFile.String, label.String
		s.StartTime, s.EndTime = timeFromNull(start), timeFromNull(end)
		s.AvgSpeedKmh, s.MaxSpeedKmh, s.MinSpeedKmh = floatPtr(avgSpeed), floatPtr(maxSpeed), floatPtr(minSpeed)
		s.UpdatedAt = time.Unix(0, updated).UTC()
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Delete removes a vehicle and everything derived from it
func (r *VehicleRepository) Delete(ctx context.Context, vehicleID string) error {
	return database.Transaction(ctx, r.db, func(tx *sql.Tx) error {
		for _, table := range []string{"segments", "vehicle_points"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE vehicle_id = ?", vehicleID); err != nil {
				return fmt.Errorf("failed to delete %s: %w", table, err)
			}
		}
		result, err := tx.ExecContext(ctx, "DELETE FROM vehicles WHERE vehicle_id = ?", vehicleID)
		if err != nil {
			return fmt.Errorf("failed to delete vehicle: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("vehicle %s: %w", vehicleID, ErrNotFound)
		}
		return nil
	})
}

// ListSegments returns the flattened segments of a vehicle, optionally
// restricted to one certainty tier
func (r *VehicleRepository) ListSegments(ctx context.Context, vehicleID string, certainty models.Certainty) ([]models.SegmentView, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM vehicles WHERE vehicle_id = ?", vehicleID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("vehicle %s: %w", vehicleID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check vehicle: %w", err)
	}

	query := `
		SELECT s.segment_id, s.start_seq, s.end_seq, s.speed_kmh, s.certainty,
			s.distance_m, s.time_seconds, s.gap_type,
			a.timestamp_ns, a.latitude, a.longitude,
			b.timestamp_ns, b.latitude, b.longitude
		FROM segments s
		JOIN vehicle_points a ON a.vehicle_id = s.vehicle_id AND a.seq = s.start_seq
		JOIN vehicle_points b ON b.vehicle_id = s.vehicle_id AND b.seq = s.end_seq
		WHERE s.vehicle_id = ?`
	args := []interface{}{vehicleID}
	if certainty != "" {
		query += " AND s.certainty = ?"
		args = append(args, string(certainty))
	}
	query += " ORDER BY s.segment_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	views := []models.SegmentView{}
	for rows.Next() {
		var v models.SegmentView
		var speed sql.NullFloat64
		var cert, gapType string
		var startNs, endNs int64
		err := rows.Scan(
			&v.SegmentID, &v.StartIndex, &v.EndIndex, &speed, &cert,
			&v.DistanceM, &v.TimeSeconds, &gapType,
			&startNs, &v.StartLat, &v.StartLon,
			&endNs, &v.EndLat, &v.EndLon,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		v.SpeedKmh = floatPtr(speed)
		v.Certainty = models.Certainty(cert)
		v.GapType = models.GapType(gapType)
		v.StartTime = time.Unix(0, startNs).UTC()
		v.EndTime = time.Unix(0, endNs).UTC()
		views = append(views, v)
	}
	return views, rows.Err()
}

func encodeAnnotation(a models.Annotation) (interface{}, error) {
	if a.IsEmpty() {
		return nil, nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode point metadata: %w", err)
	}
	return string(data), nil
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return models.Float64Ptr(v.Float64)
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UnixNano()
}

func timeFromNull(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(0, v.Int64).UTC()
}
