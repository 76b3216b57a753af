package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/jengzang/vehicle-forensics-go/internal/batch"
	"github.com/jengzang/vehicle-forensics-go/internal/config"
	"github.com/jengzang/vehicle-forensics-go/internal/database"
	"github.com/jengzang/vehicle-forensics-go/internal/interpolation"
	"github.com/jengzang/vehicle-forensics-go/internal/middleware"
	"github.com/jengzang/vehicle-forensics-go/internal/projection"
	"github.com/jengzang/vehicle-forensics-go/internal/repository"
	"github.com/jengzang/vehicle-forensics-go/internal/service"
	"github.com/jengzang/vehicle-forensics-go/internal/wire"
)

func main() {
	app := &cli.App{
		Name:  "vtrack",
		Usage: "Forensic speed analysis of vehicle GPS tracks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: "warn",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "text or json",
				Value: "text",
			},
		},
		Before: func(c *cli.Context) error {
			return config.SetupLogging(c.String("log-level"), c.String("log-format"))
		},
		Commands: []*cli.Command{
			processCommand(),
			validateCommand(),
			tokenCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "vtrack:", err)
		os.Exit(1)
	}
}

func processCommand() *cli.Command {
	return &cli.Command{
		Name:      "process",
		Usage:     "Run the forensic pipeline over CSV or GPX track files",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "db",
				Usage: "store results in this sqlite database",
			},
			&cli.StringFlag{
				Name:    "settings",
				Aliases: []string{"s"},
				Usage:   "YAML file overriding the default tracking thresholds",
			},
			&cli.StringFlag{
				Name:  "geojson-dir",
				Usage: "write one GeoJSON FeatureCollection per vehicle into `DIR`",
			},
			&cli.StringFlag{
				Name:  "wire-dir",
				Usage: "write one wire payload per vehicle into `DIR`",
			},
			&cli.Float64Flag{
				Name:  "resample",
				Usage: "resample wire payloads to this interval in `SECONDS` (0 keeps observed points only)",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "number of files processed concurrently (0 uses every CPU)",
			},
		},
		Action: runProcess,
	}
}

func runProcess(c *cli.Context) error {
	files := c.Args().Slice()
	if len(files) == 0 {
		return cli.Exit("no track files given", 2)
	}

	settings, err := config.LoadSettings(c.String("settings"))
	if err != nil {
		return err
	}

	var vehicles *repository.VehicleRepository
	if path := c.String("db"); path != "" {
		db, err := database.OpenAndMigrate(database.Config{Path: path})
		if err != nil {
			return err
		}
		defer db.Close()
		vehicles = repository.NewVehicleRepository(db)
	}

	projections := projection.NewCache(settings.ProjectionCacheSize, settings.ProjectionCacheToleranceKm)
	tracking := service.NewTrackingService(settings, projections, interpolation.NewCache(len(files)), vehicles)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Processing tracks"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	proc := batch.NewProcessor(tracking, batch.Options{
		Workers:    c.Int("workers"),
		GeoJSONDir: c.String("geojson-dir"),
		WireDir:    c.String("wire-dir"),
		ResampleS:  c.Float64("resample"),
	})
	results, runErr := proc.Run(ctx, files, func(batch.FileResult) {
		_ = bar.Add(1)
	})
	_ = bar.Finish()

	printSummary(results)
	hits, misses := projections.Stats()
	logrus.WithFields(logrus.Fields{"hits": hits, "misses": misses}).Debug("Projection cache")

	if runErr != nil {
		return runErr
	}
	if s := batch.Summarize(results); s.Failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d files failed", s.Failed, s.Files), 1)
	}
	return nil
}

func printSummary(results []batch.FileResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VEHICLE\tPOINTS\tSEGMENTS\tHIGH\tMEDIUM\tLOW\tGAPS\tRELIABILITY\tPROJECTION\tTIME\tSTATUS")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\t-\t-\t-\t%s\t%v\n", r.VehicleID, r.Elapsed.Round(time.Millisecond), r.Err)
			continue
		}
		a := r.Result.Analysis
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%.2f\t%s\t%s\tok\n",
			r.VehicleID,
			len(r.Result.Vehicle.Points),
			a.TotalSegments,
			a.HighCertainty,
			a.MediumCertainty,
			a.LowCertainty,
			a.GapSegments,
			a.ForensicReliabilityScore,
			r.Result.Vehicle.ProjectionLabel,
			r.Elapsed.Round(time.Millisecond),
		)
		for _, warning := range r.Result.Warnings {
			fmt.Fprintf(w, "\t\t\t\t\t\t\t\t\t\twarning: %s\n", warning)
		}
	}
	w.Flush()

	s := batch.Summarize(results)
	fmt.Printf("\n%d files, %d failed, %d points, %d segments\n", s.Files, s.Failed, s.Points, s.Segments)
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check a wire payload for unit, structure and timestamp problems",
		ArgsUsage: "PAYLOAD.json",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected exactly one payload file", 2)
			}
			raw, err := os.ReadFile(c.Args().First())
			if err != nil {
				return err
			}
			problems := wire.ValidateWireFormat(raw)
			if len(problems) == 0 {
				fmt.Println("valid")
				return nil
			}
			for _, p := range problems {
				fmt.Println(p)
			}
			return cli.Exit(fmt.Sprintf("%d problems found", len(problems)), 1)
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue a bearer token for the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "secret",
				Usage:   "signing secret, must match the server's JWT_SECRET",
				EnvVars: []string{"JWT_SECRET"},
			},
			&cli.StringFlag{
				Name:  "subject",
				Usage: "token subject",
				Value: "analyst",
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "token lifetime",
				Value: 24 * time.Hour,
			},
		},
		Action: func(c *cli.Context) error {
			token, err := middleware.IssueToken(c.String("secret"), c.String("subject"), c.Duration("ttl"))
			if errors.Is(err, middleware.ErrEmptySecret) {
				return cli.Exit("--secret or JWT_SECRET is required", 2)
			}
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}
