package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/jengzang/vehicle-forensics-go/internal/models"
)

func init() {
	RegisterParser(".gpx", func() Parser { return NewGPXParser() })
}

// GPXParser reads GPX 1.0/1.1 track logs
type GPXParser struct{}

// NewGPXParser creates a GPX parser
func NewGPXParser() *GPXParser {
	return &GPXParser{}
}

// Name returns the parser name
func (p *GPXParser) Name() string {
	return "gpx"
}

// Parse turns every track point of every track segment into an observed
// point. Track points without a timestamp or with non-finite coordinates are
// skipped.
func (p *GPXParser) Parse(ctx context.Context, r io.Reader) (*ParseResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read GPX: %w", err)
	}
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GPX: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &ParseResult{}
	for _, track := range doc.Tracks {
		for _, segment := range track.Segments {
			for _, tp := range segment.Points {
				result.TotalRows++
				if tp.Timestamp.IsZero() || !isFinite(tp.Latitude) || !isFinite(tp.Longitude) {
					result.SkippedRows++
					continue
				}
				point := models.NewObservedPoint(tp.Latitude, tp.Longitude, tp.Timestamp.UTC())
				if tp.Elevation.NotNull() && isFinite(tp.Elevation.Value()) {
					point.Altitude = models.Float64Ptr(tp.Elevation.Value())
				}
				result.Points = append(result.Points, point)
			}
		}
	}

	if result.SkippedRows > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("skipped %d of %d track points without timestamp or usable coordinates", result.SkippedRows, result.TotalRows))
	}
	return result, nil
}
