package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Simplici0/vapformula/internal/pricing"
)

// Governance states of a pricing model.
const (
	ModelStateDraft           = "DRAFT"
	ModelStatePendingApproval = "PENDING_APPROVAL"
	ModelStateApproved        = "APPROVED"
	ModelStateRejected        = "REJECTED"
	ModelStateArchived        = "ARCHIVED"
)

var modelStates = map[string]bool{
	ModelStateDraft:           true,
	ModelStatePendingApproval: true,
	ModelStateApproved:        true,
	ModelStateRejected:        true,
	ModelStateArchived:        true,
}

// ValidModelState reports whether state is a known governance state.
func ValidModelState(state string) bool {
	return modelStates[state]
}

// NewModel is the data needed to create a pricing model.
type NewModel struct {
	Name           string        `json:"name"`
	BusinessUnit   string        `json:"businessUnit"`
	Category       string        `json:"category"`
	OutputType     string        `json:"outputType"`
	Currency       string        `json:"currency"`
	EffectiveStart time.Time     `json:"effectiveStart"`
	EffectiveEnd   *time.Time    `json:"effectiveEnd,omitempty"`
	Formula        pricing.Input `json:"formula"`
	CreatedBy      int64         `json:"-"`
}

// Model is a stored pricing model. Formula holds the template inputs
// a run starts from.
type Model struct {
	ID              int64         `json:"id"`
	Name            string        `json:"name"`
	Version         int           `json:"version"`
	BusinessUnit    string        `json:"businessUnit"`
	Category        string        `json:"category"`
	OutputType      string        `json:"outputType"`
	Currency        string        `json:"currency"`
	GovernanceState string        `json:"governanceState"`
	EffectiveStart  time.Time     `json:"effectiveStart"`
	EffectiveEnd    *time.Time    `json:"effectiveEnd,omitempty"`
	Formula         pricing.Input `json:"formula"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// ModelFilter narrows ListModels. Empty fields match everything.
type ModelFilter struct {
	Search       string
	BusinessUnit string
	Status       string
}

// ModelFilterOptions lists the distinct values available for filtering.
type ModelFilterOptions struct {
	BusinessUnits []string `json:"businessUnits"`
	Categories    []string `json:"categories"`
	Statuses      []string `json:"statuses"`
}

// CreateModel validates and stores a new draft model at version 1.
func (s *Store) CreateModel(ctx context.Context, m NewModel) (int64, error) {
	formulaJSON, end, err := normalizeModel(&m)
	if err != nil {
		return 0, err
	}

	now := s.timestamp()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO pricing_models (
			name, version, business_unit, category, output_type, currency,
			governance_state, effective_start, effective_end, formula_json,
			created_by, created_at, updated_at
		) VALUES (?, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.Name, m.BusinessUnit, m.Category, m.OutputType, m.Currency,
		ModelStateDraft, m.EffectiveStart.Format(dateLayout), end, formulaJSON,
		nullInt(m.CreatedBy), now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert pricing model: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read pricing model id: %w", err)
	}
	return id, nil
}

// UpdateModel replaces the editable fields of a model and bumps its version.
// The governance state is left unchanged.
func (s *Store) UpdateModel(ctx context.Context, id int64, m NewModel) (Model, error) {
	formulaJSON, end, err := normalizeModel(&m)
	if err != nil {
		return Model{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE pricing_models
		SET name = ?, business_unit = ?, category = ?, output_type = ?, currency = ?,
			effective_start = ?, effective_end = ?, formula_json = ?,
			version = version + 1, updated_at = ?
		WHERE id = ?
	`,
		m.Name, m.BusinessUnit, m.Category, m.OutputType, m.Currency,
		m.EffectiveStart.Format(dateLayout), end, formulaJSON,
		s.timestamp(), id,
	)
	if err != nil {
		return Model{}, fmt.Errorf("update pricing model: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return Model{}, fmt.Errorf("read updated pricing model count: %w", err)
	}
	if n == 0 {
		return Model{}, ErrNotFound
	}

	return s.GetModel(ctx, id)
}

// normalizeModel trims and defaults m, then returns the encoded formula and
// the nullable end date.
func normalizeModel(m *NewModel) (string, sql.NullString, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.BusinessUnit = strings.TrimSpace(m.BusinessUnit)
	m.Category = strings.TrimSpace(m.Category)
	if m.Name == "" {
		return "", sql.NullString{}, invalid("model name is required")
	}
	if m.BusinessUnit == "" {
		return "", sql.NullString{}, invalid("business unit is required")
	}
	if m.EffectiveStart.IsZero() {
		return "", sql.NullString{}, invalid("effective start date is required")
	}
	if m.EffectiveEnd != nil && m.EffectiveEnd.Before(m.EffectiveStart) {
		return "", sql.NullString{}, invalid("effective end date must not be before the start date")
	}
	if m.OutputType == "" {
		m.OutputType = "FOB"
	}
	if m.Currency == "" {
		m.Currency = "USD"
	}

	formulaJSON, err := json.Marshal(m.Formula)
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("marshal model formula: %w", err)
	}

	var end sql.NullString
	if m.EffectiveEnd != nil {
		end = nullString(m.EffectiveEnd.Format(dateLayout))
	}
	return string(formulaJSON), end, nil
}

const modelColumns = `
	id, name, version, business_unit, category, output_type, currency,
	governance_state, effective_start, effective_end, formula_json, created_at, updated_at`

// GetModel returns the model with the given id, or ErrNotFound.
func (s *Store) GetModel(ctx context.Context, id int64) (Model, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+modelColumns+` FROM pricing_models WHERE id = ?`, id)
	m, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Model{}, ErrNotFound
	}
	if err != nil {
		return Model{}, fmt.Errorf("query pricing model: %w", err)
	}
	return m, nil
}

// ListModels returns models matching f, most recently updated first.
func (s *Store) ListModels(ctx context.Context, f ModelFilter) ([]Model, error) {
	search := strings.TrimSpace(f.Search)
	like := "%" + search + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+modelColumns+`
		FROM pricing_models
		WHERE (? = '' OR name LIKE ? OR category LIKE ?)
		  AND (? = '' OR business_unit = ?)
		  AND (? = '' OR governance_state = ?)
		ORDER BY updated_at DESC, id DESC
	`, search, like, like, f.BusinessUnit, f.BusinessUnit, f.Status, f.Status)
	if err != nil {
		return nil, fmt.Errorf("query pricing models: %w", err)
	}
	defer rows.Close()

	models := make([]Model, 0)
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pricing model: %w", err)
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pricing models: %w", err)
	}

	return models, nil
}

// ModelFilters returns the distinct business units and categories in use.
func (s *Store) ModelFilters(ctx context.Context) (ModelFilterOptions, error) {
	units, err := s.distinct(ctx, "business_unit")
	if err != nil {
		return ModelFilterOptions{}, err
	}
	categories, err := s.distinct(ctx, "category")
	if err != nil {
		return ModelFilterOptions{}, err
	}

	return ModelFilterOptions{
		BusinessUnits: units,
		Categories:    categories,
		Statuses: []string{
			ModelStateDraft, ModelStatePendingApproval, ModelStateApproved,
			ModelStateRejected, ModelStateArchived,
		},
	}, nil
}

// distinct is only called with fixed column names.
func (s *Store) distinct(ctx context.Context, column string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT `+column+`
		FROM pricing_models
		WHERE `+column+` <> ''
		ORDER BY `+column+` ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query distinct %s: %w", column, err)
	}
	defer rows.Close()

	values := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan distinct %s: %w", column, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distinct %s: %w", column, err)
	}
	return values, nil
}

func scanModel(row rowScanner) (Model, error) {
	var (
		m                           Model
		start, createdAt, updatedAt string
		end                         sql.NullString
		formulaJSON                 string
	)
	if err := row.Scan(
		&m.ID, &m.Name, &m.Version, &m.BusinessUnit, &m.Category, &m.OutputType, &m.Currency,
		&m.GovernanceState, &start, &end, &formulaJSON, &createdAt, &updatedAt,
	); err != nil {
		return Model{}, err
	}

	var err error
	if m.EffectiveStart, err = parseDate(start); err != nil {
		return Model{}, err
	}
	if end.Valid {
		t, err := parseDate(end.String)
		if err != nil {
			return Model{}, err
		}
		m.EffectiveEnd = &t
	}
	if m.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return Model{}, err
	}
	if m.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return Model{}, err
	}
	if err := json.Unmarshal([]byte(formulaJSON), &m.Formula); err != nil {
		return Model{}, fmt.Errorf("decode model formula: %w", err)
	}
	return m, nil
}
