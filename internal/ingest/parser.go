// Package ingest turns track files into observed GPS points. Each file format
// is a Parser strategy registered under its file extensions.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jengzang/vehicle-forensics-go/internal/models"
)

var logger = logrus.WithField("component", "ingest")

var (
	// ErrNoValidPoints is returned when a file yields no usable point
	ErrNoValidPoints = errors.New("no valid GPS points found")
	// ErrUnsupportedFormat is returned for file extensions without a parser
	ErrUnsupportedFormat = errors.New("unsupported track file format")
	// ErrMissingColumns is returned when a CSV header lacks latitude, longitude or timestamp
	ErrMissingColumns = errors.New("required columns missing")
)

// ParseResult holds the points read from one file. Rows that could not be
// parsed are counted in SkippedRows and summarised in Warnings.
type ParseResult struct {
	Points      []*models.GPSPoint
	TotalRows   int
	SkippedRows int
	Warnings    []string
}

// Parser reads one track file format
type Parser interface {
	Name() string
	Parse(ctx context.Context, r io.Reader) (*ParseResult, error)
}

// Factory creates a parser
type Factory func() Parser

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// RegisterParser registers a parser factory for a file extension such as ".csv"
func RegisterParser(ext string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(ext)] = factory
}

// ParserFor returns the parser registered for the extension of path
func ParserFor(path string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	registryMu.RLock()
	factory, ok := registry[ext]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return factory(), nil
}

// SupportedExtensions lists every registered extension
func SupportedExtensions() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	exts := make([]string, 0, len(registry))
	for ext := range registry {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Parse reads r with the parser registered for name's extension
func Parse(ctx context.Context, name string, r io.Reader) (*ParseResult, error) {
	parser, err := ParserFor(name)
	if err != nil {
		return nil, err
	}
	result, err := parser.Parse(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%s parser: %w", parser.Name(), err)
	}
	if len(result.Points) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(name), ErrNoValidPoints)
	}
	if result.SkippedRows > 0 {
		logger.WithField("file", filepath.Base(name)).Warnf("Skipped %d of %d rows", result.SkippedRows, result.TotalRows)
	}
	return result, nil
}

// ParseFile opens path and parses it
func ParseFile(ctx context.Context, path string) (*ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open track file: %w", err)
	}
	defer f.Close()
	return Parse(ctx, path, f)
}
