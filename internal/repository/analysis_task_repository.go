package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jengzang/vehicle-forensics-go/internal/models"
)

// AnalysisRunRepository handles database operations for analysis runs
type AnalysisRunRepository struct {
	db *sql.DB
}

// NewAnalysisRunRepository creates a new analysis run repository
func NewAnalysisRunRepository(db *sql.DB) *AnalysisRunRepository {
	return &AnalysisRunRepository{db: db}
}

// Create stores a new analysis run. CreatedAt is set when zero.
func (r *AnalysisRunRepository) Create(ctx context.Context, run *models.AnalysisRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	vehicleIDs, err := json.Marshal(run.VehicleIDs)
	if err != nil {
		return fmt.Errorf("failed to encode vehicle ids: %w", err)
	}

	query := `
		INSERT INTO analysis_runs (
			id, analyzer, vehicle_ids, status, finding_count,
			result_json, error_message, started_at_ns, completed_at_ns, created_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.Analyzer,
		string(vehicleIDs),
		run.Status,
		run.FindingCount,
		run.ResultJSON,
		run.ErrorMessage,
		nullTimePtr(run.StartedAt),
		nullTimePtr(run.CompletedAt),
		run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis run: %w", err)
	}
	return nil
}

// Update updates the status and results of an analysis run
func (r *AnalysisRunRepository) Update(ctx context.Context, run *models.AnalysisRun) error {
	query := `
		UPDATE analysis_runs
		SET status = ?, finding_count = ?, result_json = ?, error_message = ?,
			started_at_ns = ?, completed_at_ns = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		run.Status,
		run.FindingCount,
		run.ResultJSON,
		run.ErrorMessage,
		nullTimePtr(run.StartedAt),
		nullTimePtr(run.CompletedAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update analysis run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("analysis run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// GetByID retrieves an analysis run by ID
func (r *AnalysisRunRepository) GetByID(ctx context.Context, id string) (*models.AnalysisRun, error) {
	query := `
		SELECT id, analyzer, vehicle_ids, status, finding_count,
			   result_json, error_message, started_at_ns, completed_at_ns, created_at_ns
		FROM analysis_runs
		WHERE id = ?
	`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("analysis run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis run: %w", err)
	}
	return run, nil
}

// List retrieves the most recent analysis runs, optionally for one analyzer
func (r *AnalysisRunRepository) List(ctx context.Context, analyzer string, limit int) ([]*models.AnalysisRun, error) {
	query := `
		SELECT id, analyzer, vehicle_ids, status, finding_count,
			   result_json, error_message, started_at_ns, completed_at_ns, created_at_ns
		FROM analysis_runs
		WHERE 1=1
	`
	args := []interface{}{}
	if analyzer != "" {
		query += " AND analyzer = ?"
		args = append(args, analyzer)
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += " ORDER BY created_at_ns DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.AnalysisRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.AnalysisRun, error) {
	run := &models.AnalysisRun{}
	var vehicleIDs string
	var result, errMsg sql.NullString
	var started, completed sql.NullInt64
	var created int64
	err := row.Scan(
		&run.ID,
		&run.Analyzer,
		&vehicleIDs,
		&run.Status,
		&run.FindingCount,
		&result,
		&errMsg,
		&started,
		&completed,
		&created,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(vehicleIDs), &run.VehicleIDs); err != nil {
		return nil, fmt.Errorf("failed to decode vehicle ids: %w", err)
	}
	run.ResultJSON, run.ErrorMessage = result.String, errMsg.String
	if started.Valid {
		t := time.Unix(0, started.Int64).UTC()
		run.StartedAt = &t
	}
	if completed.Valid {
		t := time.Unix(0, completed.Int64).UTC()
		run.CompletedAt = &t
	}
	run.CreatedAt = time.Unix(0, created).UTC()
	return run, nil
}

func nullTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}
