// Package batch processes many track files concurrently. Every worker goes
// through the same TrackingService, so projections built for one vehicle are
// reused by the others recorded in the same area.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jengzang/vehicle-forensics-go/internal/export"
	"github.com/jengzang/vehicle-forensics-go/internal/service"
	"github.com/jengzang/vehicle-forensics-go/internal/wire"
)

var logger = logrus.WithField("component", "batch")

// Options configures a batch run
type Options struct {
	Workers    int     // defaults to the number of CPUs
	GeoJSONDir string  // write <vehicle>.geojson here when set
	WireDir    string  // write <vehicle>.json here when set
	ResampleS  float64 // resample the wire output at this interval when > 0
}

// FileResult is the outcome for one input file
type FileResult struct {
	Path      string
	VehicleID string
	Result    *service.ProcessResult
	Outputs   []string
	Elapsed   time.Duration
	Err       error
}

// Processor runs the pipeline over a list of files
type Processor struct {
	svc  *service.TrackingService
	opts Options
}

// NewProcessor creates a processor
func NewProcessor(svc *service.TrackingService, opts Options) *Processor {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Processor{svc: svc, opts: opts}
}

// Run processes files with a fixed pool of workers. Results are returned in
// input order; a failing file does not stop the others. onDone, when not nil,
// is called once per file from the worker goroutines and must be safe for
// concurrent use.
func (p *Processor) Run(ctx context.Context, files []string, onDone func(FileResult)) ([]FileResult, error) {
	for _, dir := range []string{p.opts.GeoJSONDir, p.opts.WireDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	results := make([]FileResult, len(files))
	jobs := make(chan int)

	workers := p.opts.Workers
	if workers > len(files) {
		workers = len(files)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.processOne(ctx, files[i])
				if onDone != nil {
					onDone(results[i])
				}
			}
		}()
	}

feed:
	for i := range files {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		for i, r := range results {
			if r.Path == "" {
				results[i] = FileResult{Path: files[i], VehicleID: service.VehicleIDFromPath(files[i]), Err: err}
			}
		}
		return results, err
	}
	return results, nil
}

func (p *Processor) processOne(ctx context.Context, path string) (res FileResult) {
	start := time.Now()
	res = FileResult{Path: path, VehicleID: service.VehicleIDFromPath(path)}
	defer func() {
		res.Elapsed = time.Since(start)
		if res.Err != nil {
			logger.WithField("file", path).Warnf("Processing failed: %v", res.Err)
		}
	}()

	out, err := p.svc.ProcessFile(ctx, res.VehicleID, path)
	if err != nil {
		res.Err = err
		return res
	}
	res.Result = out

	if p.opts.GeoJSONDir != "" {
		target := filepath.Join(p.opts.GeoJSONDir, res.VehicleID+".geojson")
		if err := export.WriteVehicleGeoJSON(target, out.Vehicle); err != nil {
			res.Err = err
			return res
		}
		res.Outputs = append(res.Outputs, target)
	}

	if p.opts.WireDir != "" {
		payload := wire.ToWireFormat(out.Vehicle)
		if p.opts.ResampleS > 0 {
			if payload, err = p.svc.PlaybackFor(ctx, out.Vehicle, p.opts.ResampleS); err != nil {
				res.Err = err
				return res
			}
		}
		target := filepath.Join(p.opts.WireDir, res.VehicleID+".json")
		if err := export.WritePayload(target, payload); err != nil {
			res.Err = err
			return res
		}
		res.Outputs = append(res.Outputs, target)
	}
	return res
}

// Summary counts successes and failures of a run
type Summary struct {
	Files    int
	Failed   int
	Points   int
	Segments int
}

// Summarize folds results into a Summary
func Summarize(results []FileResult) Summary {
	s := Summary{Files: len(results)}
	for _, r := range results {
		if r.Err != nil || r.Result == nil {
			s.Failed++
			continue
		}
		s.Points += len(r.Result.Vehicle.Points)
		s.Segments += len(r.Result.Vehicle.Segments)
	}
	return s
}
