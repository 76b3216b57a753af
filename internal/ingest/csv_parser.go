package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/jengzang/vehicle-forensics-go/internal/models"
)

// Header aliases, matched case-insensitively after trimming
var (
	latitudeAliases  = []string{"latitude", "lat", "gps_latitude", "gps_lat", "y"}
	longitudeAliases = []string{"longitude", "lon", "lng", "long", "gps_longitude", "gps_lon", "x"}
	timestampAliases = []string{"timestamp", "time", "datetime", "date_time", "gps_time", "utc_time", "time_utc", "recorded_at"}
	speedAliases     = []string{"speed", "speed_kmh", "speed_km_h", "speed_kph", "velocity"}
	altitudeAliases  = []string{"altitude", "alt", "elevation", "ele"}
	headingAliases   = []string{"heading", "course", "bearing", "direction"}
	accuracyAliases  = []string{"accuracy", "horizontal_accuracy", "hacc", "acc"}
)

const csvCtxCheckEvery = 4096

func init() {
	factory := func() Parser { return NewCSVParser() }
	RegisterParser(".csv", factory)
	RegisterParser(".tsv", factory)
	RegisterParser(".txt", factory)
}

// CSVParser reads comma- or tab-separated track exports. The delimiter is
// detected from the header line.
type CSVParser struct{}

// NewCSVParser creates a CSV parser
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// Name returns the parser name
func (p *CSVParser) Name() string {
	return "csv"
}

type columnIndex struct {
	lat, lon, ts                       int
	speed, altitude, heading, accuracy int
}

// Parse reads every data row of r. Rows with unparsable coordinates or
// timestamp are skipped rather than turned into zero-valued points.
func (p *CSVParser) Parse(ctx context.Context, r io.Reader) (*ParseResult, error) {
	br := bufio.NewReader(r)
	headerLine, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	headerLine = strings.TrimPrefix(headerLine, "\ufeff")
	if strings.TrimSpace(headerLine) == "" {
		return nil, ErrNoValidPoints
	}

	reader := csv.NewReader(io.MultiReader(strings.NewReader(headerLine), br))
	reader.Comma = detectDelimiter(headerLine)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		result.TotalRows++
		if result.TotalRows%csvCtxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err != nil {
			result.SkippedRows++
			logger.Debugf("Row %d unreadable: %v", result.TotalRows, err)
			continue
		}

		point, err := parseRow(row, cols)
		if err != nil {
			result.SkippedRows++
			logger.Debugf("Row %d skipped: %v", result.TotalRows, err)
			continue
		}
		result.Points = append(result.Points, point)
	}

	if result.SkippedRows > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("skipped %d of %d rows with unparsable coordinates or timestamp", result.SkippedRows, result.TotalRows))
	}
	return result, nil
}

func detectDelimiter(header string) rune {
	best, bestCount := ',', strings.Count(header, ",")
	for _, d := range []rune{'\t', ';'} {
		if n := strings.Count(header, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func mapColumns(header []string) (columnIndex, error) {
	names := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, seen := names[key]; !seen {
			names[key] = i
		}
	}
	find := func(aliases []string) int {
		for _, a := range aliases {
			if i, ok := names[a]; ok {
				return i
			}
		}
		return -1
	}

	cols := columnIndex{
		lat:      find(latitudeAliases),
		lon:      find(longitudeAliases),
		ts:       find(timestampAliases),
		speed:    find(speedAliases),
		altitude: find(altitudeAliases),
		heading:  find(headingAliases),
		accuracy: find(accuracyAliases),
	}

	var missing []string
	if cols.lat < 0 {
		missing = append(missing, "latitude")
	}
	if cols.lon < 0 {
		missing = append(missing, "longitude")
	}
	if cols.ts < 0 {
		missing = append(missing, "timestamp")
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("%w: %s (header: %v)", ErrMissingColumns, strings.Join(missing, ", "), header)
	}
	return cols, nil
}

func parseRow(row []string, cols columnIndex) (*models.GPSPoint, error) {
	lat, err := floatField(row, cols.lat)
	if err != nil {
		return nil, fmt.Errorf("latitude: %w", err)
	}
	lon, err := floatField(row, cols.lon)
	if err != nil {
		return nil, fmt.Errorf("longitude: %w", err)
	}
	if cols.ts >= len(row) {
		return nil, fmt.Errorf("timestamp column missing")
	}
	ts, err := ParseTimestamp(row[cols.ts])
	if err != nil {
		return nil, err
	}

	point := models.NewObservedPoint(lat, lon, ts)
	point.Speed = optionalField(row, cols.speed)
	point.Altitude = optionalField(row, cols.altitude)
	point.Heading = optionalField(row, cols.heading)
	point.Accuracy = optionalField(row, cols.accuracy)
	return point, nil
}

// floatField parses a required numeric column. NaN and infinities are
// rejected so the row is skipped like any other unparsable value.
func floatField(row []string, i int) (float64, error) {
	if i >= len(row) {
		return 0, fmt.Errorf("column %d missing", i)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
	if err != nil {
		return 0, err
	}
	if !isFinite(v) {
		return 0, fmt.Errorf("non-finite value %q", row[i])
	}
	return v, nil
}

// optionalField returns nil for absent, empty, unparsable or non-finite values
func optionalField(row []string, i int) *float64 {
	if i < 0 || i >= len(row) {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
	if err != nil || !isFinite(v) {
		return nil
	}
	return &v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
