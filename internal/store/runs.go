package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Simplici0/vapformula/internal/pricing"
)

// Run statuses.
const (
	RunStatusDraft     = "DRAFT"
	RunStatusCompleted = "COMPLETED"
	RunStatusApproved  = "APPROVED"
	RunStatusPublished = "PUBLISHED"
)

const defaultRunListLimit = 50

// NewRun is the data needed to persist a calculated pricing run.
type NewRun struct {
	RunNumber   string
	ModelID     int64
	CustomerID  int64
	PeriodStart time.Time
	PeriodEnd   time.Time
	Status      string
	Input       pricing.Input
	Output      pricing.Output
	ExecutedBy  string
}

// Run is a stored pricing run with its input and output snapshots.
type Run struct {
	ID             int64          `json:"id"`
	RunNumber      string         `json:"runNumber"`
	ModelID        int64          `json:"modelId,omitempty"`
	ModelName      string         `json:"modelName"`
	CustomerID     int64          `json:"customerId,omitempty"`
	CustomerName   string         `json:"customerName"`
	CustomerSoldTo string         `json:"customerSoldTo"`
	PeriodStart    time.Time      `json:"periodStart"`
	PeriodEnd      time.Time      `json:"periodEnd"`
	Status         string         `json:"status"`
	Input          pricing.Input  `json:"input"`
	Output         pricing.Output `json:"output"`
	ExecutedBy     string         `json:"executedBy"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// RunSummary is the list view of a pricing run.
type RunSummary struct {
	ID           int64     `json:"id"`
	RunNumber    string    `json:"runNumber"`
	ModelName    string    `json:"modelName"`
	CustomerName string    `json:"customerName"`
	Status       string    `json:"status"`
	FOBFinal     float64   `json:"fobFinal"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewRunNumber returns a human-facing identifier such as RUN-2024-1A2B3C4D.
func NewRunNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("RUN-%d-%s", now.Year(), suffix)
}

// CreateRun stores a pricing run and returns its id.
func (s *Store) CreateRun(ctx context.Context, run NewRun) (int64, error) {
	if run.RunNumber == "" {
		run.RunNumber = NewRunNumber(s.now())
	}
	if run.Status == "" {
		run.Status = RunStatusDraft
	}

	inputJSON, err := json.Marshal(run.Input)
	if err != nil {
		return 0, fmt.Errorf("marshal run input: %w", err)
	}
	outputJSON, err := json.Marshal(run.Output)
	if err != nil {
		return 0, fmt.Errorf("marshal run output: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO pricing_runs (
			run_number, model_id, customer_id, period_start, period_end,
			status, input_json, output_json, executed_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunNumber,
		nullInt(run.ModelID),
		nullInt(run.CustomerID),
		run.PeriodStart.Format(dateLayout),
		run.PeriodEnd.Format(dateLayout),
		run.Status,
		string(inputJSON),
		string(outputJSON),
		run.ExecutedBy,
		s.timestamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert pricing run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read pricing run id: %w", err)
	}
	return id, nil
}

// GetRun returns the run with the given id, or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id int64) (Run, error) {
	var (
		run                    Run
		modelID, customerID    sql.NullInt64
		periodStart, periodEnd string
		inputJSON, outputJSON  string
		createdAt              string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			r.id, r.run_number, r.model_id, COALESCE(m.name, ''),
			r.customer_id, COALESCE(c.name, ''), COALESCE(c.sold_to_id, ''),
			r.period_start, r.period_end, r.status,
			r.input_json, r.output_json, r.executed_by, r.created_at
		FROM pricing_runs r
		LEFT JOIN pricing_models m ON m.id = r.model_id
		LEFT JOIN customers c ON c.id = r.customer_id
		WHERE r.id = ?
	`, id).Scan(
		&run.ID, &run.RunNumber, &modelID, &run.ModelName,
		&customerID, &run.CustomerName, &run.CustomerSoldTo,
		&periodStart, &periodEnd, &run.Status,
		&inputJSON, &outputJSON, &run.ExecutedBy, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("query pricing run: %w", err)
	}

	run.ModelID = modelID.Int64
	run.CustomerID = customerID.Int64

	if run.PeriodStart, err = parseDate(periodStart); err != nil {
		return Run{}, err
	}
	if run.PeriodEnd, err = parseDate(periodEnd); err != nil {
		return Run{}, err
	}
	if run.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return Run{}, err
	}

	// Snapshots are returned as stored; nothing is recalculated.
	if err := json.Unmarshal([]byte(inputJSON), &run.Input); err != nil {
		return Run{}, fmt.Errorf("decode run input snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(outputJSON), &run.Output); err != nil {
		return Run{}, fmt.Errorf("decode run output snapshot: %w", err)
	}

	return run, nil
}

// ListRuns returns the most recent runs, newest first. A non-empty query
// filters by run number, customer name or model name.
func (s *Store) ListRuns(ctx context.Context, query string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = defaultRunListLimit
	}
	query = strings.TrimSpace(query)
	search := "%" + query + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			r.id, r.run_number, COALESCE(m.name, ''), COALESCE(c.name, ''),
			r.status, r.output_json, r.created_at
		FROM pricing_runs r
		LEFT JOIN pricing_models m ON m.id = r.model_id
		LEFT JOIN customers c ON c.id = r.customer_id
		WHERE (? = '' OR r.run_number LIKE ? OR COALESCE(c.name, '') LIKE ? OR COALESCE(m.name, '') LIKE ?)
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT ?
	`, query, search, search, search, limit)
	if err != nil {
		return nil, fmt.Errorf("query pricing runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunSummary, 0)
	for rows.Next() {
		var (
			item       RunSummary
			outputJSON string
			createdAt  string
		)
		if err := rows.Scan(&item.ID, &item.RunNumber, &item.ModelName, &item.CustomerName, &item.Status, &outputJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan pricing run: %w", err)
		}
		if item.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		item.FOBFinal = extractFOBFinal(outputJSON)
		runs = append(runs, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pricing runs: %w", err)
	}

	return runs, nil
}

// extractFOBFinal reads the final price from a stored output snapshot,
// returning 0 for snapshots that cannot be decoded.
func extractFOBFinal(outputJSON string) float64 {
	var out struct {
		FOBFinal float64 `json:"fobFinal"`
	}
	if err := json.Unmarshal([]byte(outputJSON), &out); err != nil {
		return 0
	}
	return out.FOBFinal
}
