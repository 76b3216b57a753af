package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 30, 15, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-01T12:30:15Z", want},
		{"2024-03-01T14:30:15+02:00", want},
		{"2024-03-01 12:30:15", want},
		{"2024-03-01 12:30:15.250", want.Add(250 * time.Millisecond)},
		{"2024/03/01 12:30:15", want},
		{"03/01/2024 12:30:15", want},
		{"1709296215", want},
		{"1709296215.5", want.Add(500 * time.Millisecond)},
		{"1709296215000", want},
		{"2024-03-01T12:30:15+0000", want},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	for _, bad := range []string{"", "  ", "not a time"} {
		_, err := ParseTimestamp(bad)
		assert.Error(t, err, bad)
	}
}

func TestParserForExtension(t *testing.T) {
	for _, name := range []string{"a.csv", "B.CSV", "c.tsv", "d.txt"} {
		p, err := ParserFor(name)
		require.NoError(t, err)
		assert.Equal(t, "csv", p.Name())
	}
	p, err := ParserFor("track.gpx")
	require.NoError(t, err)
	assert.Equal(t, "gpx", p.Name())

	_, err = ParserFor("track.kml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.Equal(t, []string{".csv", ".gpx", ".tsv", ".txt"}, SupportedExtensions())
}

func TestCSVParserCommaWithAliases(t *testing.T) {
	data := "Time,Lat,Lng,Speed,Course,Elevation\n" +
		"2024-03-01 12:00:00,51.5,-0.12,30.5,90,12\n" +
		"2024-03-01 12:00:01,51.5001,-0.1201,,,\n"

	res, err := NewCSVParser().Parse(context.Background(), strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, res.Points, 2)
	assert.Zero(t, res.SkippedRows)

	p := res.Points[0]
	assert.Equal(t, 51.5, p.Latitude)
	assert.Equal(t, -0.12, p.Longitude)
	assert.True(t, p.IsObserved)
	require.NotNil(t, p.Speed)
	assert.Equal(t, 30.5, *p.Speed)
	assert.Equal(t, 90.0, *p.Heading)
	assert.Equal(t, 12.0, *p.Altitude)
	assert.Nil(t, p.Accuracy)

	assert.Nil(t, res.Points[1].Speed)
	assert.Nil(t, res.Points[1].Heading)
}

func TestCSVParserTabDelimited(t *testing.T) {
	data := "latitude\tlongitude\ttimestamp\n" +
		"10.5\t20.5\t1709296215\n"
	res, err := NewCSVParser().Parse(context.Background(), strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, res.Points, 1)
	assert.Equal(t, 20.5, res.Points[0].Longitude)
}

func TestCSVParserSkipsBadRows(t *testing.T) {
	data := "\ufefflatitude,longitude,timestamp\n" +
		"10.5,20.5,2024-03-01T12:00:00Z\n" +
		"abc,20.5,2024-03-01T12:00:01Z\n" +
		"10.5,20.5,garbage\n" +
		"10.5\n" +
		"NaN,20.5,2024-03-01T12:00:04Z\n" +
		"10.5,+Inf,2024-03-01T12:00:05Z\n" +
		"10.5,-inf,2024-03-01T12:00:06Z\n" +
		"10.6,20.6,2024-03-01T12:00:03Z\n"

	res, err := NewCSVParser().Parse(context.Background(), strings.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, res.Points, 2)
	assert.Equal(t, 8, res.TotalRows)
	assert.Equal(t, 6, res.SkippedRows)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "skipped 6 of 8")
}

func TestCSVParserDropsNonFiniteOptionals(t *testing.T) {
	data := "lat,lon,time,speed,altitude\n" +
		"10.5,20.5,2024-03-01T12:00:00Z,NaN,Inf\n"
	res, err := NewCSVParser().Parse(context.Background(), strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, res.Points, 1)
	assert.Nil(t, res.Points[0].Speed)
	assert.Nil(t, res.Points[0].Altitude)
}

func TestCSVParserMissingColumns(t *testing.T) {
	_, err := NewCSVParser().Parse(context.Background(), strings.NewReader("lat,speed\n1,2\n"))
	assert.ErrorIs(t, err, ErrMissingColumns)
	assert.Contains(t, err.Error(), "longitude, timestamp")
}

func TestParseRejectsFilesWithoutPoints(t *testing.T) {
	_, err := Parse(context.Background(), "empty.csv", strings.NewReader("lat,lon,time\nx,y,z\n"))
	assert.ErrorIs(t, err, ErrNoValidPoints)
}

const sampleGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk>
    <name>patrol</name>
    <trkseg>
      <trkpt lat="46.5" lon="6.6"><ele>372.5</ele><time>2024-03-01T12:00:00Z</time></trkpt>
      <trkpt lat="46.5001" lon="6.6001"><time>2024-03-01T12:00:05Z</time></trkpt>
      <trkpt lat="46.5002" lon="6.6002"></trkpt>
    </trkseg>
  </trk>
</gpx>`

func TestGPXParser(t *testing.T) {
	res, err := NewGPXParser().Parse(context.Background(), strings.NewReader(sampleGPX))
	require.NoError(t, err)
	require.Len(t, res.Points, 2)
	assert.Equal(t, 1, res.SkippedRows)

	first := res.Points[0]
	assert.Equal(t, 46.5, first.Latitude)
	assert.True(t, first.IsObserved)
	require.NotNil(t, first.Altitude)
	assert.Equal(t, 372.5, *first.Altitude)
	assert.Nil(t, res.Points[1].Altitude)
	assert.Equal(t, 5*time.Second, res.Points[1].Timestamp.Sub(first.Timestamp))
}

func TestGPXParserSkipsNonFiniteCoordinates(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><trkseg>
    <trkpt lat="46.5" lon="6.6"><time>2024-03-01T12:00:00Z</time></trkpt>
    <trkpt lat="NaN" lon="6.6001"><time>2024-03-01T12:00:05Z</time></trkpt>
    <trkpt lat="46.5002" lon="6.6002"><time>2024-03-01T12:00:10Z</time></trkpt>
  </trkseg></trk>
</gpx>`
	res, err := NewGPXParser().Parse(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
	assert.Len(t, res.Points, 2)
	assert.Equal(t, 1, res.SkippedRows)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "van.gpx")
	require.NoError(t, os.WriteFile(path, []byte(sampleGPX), 0o644))

	res, err := ParseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, res.Points, 2)

	_, err = ParseFile(context.Background(), filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}
