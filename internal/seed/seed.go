package seed

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Simplici0/vapformula/internal/pricing"
)

const (
	defaultCustomerSoldTo    = "CUST001"
	defaultCustomerName      = "Default Customer"
	defaultCustomerHierarchy = "National"

	defaultModelName     = "Standard VAP Pricing Model"
	defaultBusinessUnit  = "Protein"
	defaultModelCategory = "Value Added Products"
	defaultModelStart    = "2024-01-01"

	timestampLayout = "2006-01-02 15:04:05"
)

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Run executes the startup seed in an idempotent way.
func Run(db *sql.DB, cfg Config) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}
	now := time.Now().UTC().Format(timestampLayout)

	adminID, err := seedAdmin(tx, cfg.AdminEmail, cfg.AdminPassword, now, &stats)
	if err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureCustomer(tx, now, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureDefaultModel(tx, adminID, now, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

// seedAdmin returns the admin's id, or 0 when no credentials are configured.
func seedAdmin(tx *sql.Tx, email, password, now string, stats *Stats) (int64, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return 0, nil
	}

	var id int64
	err := tx.QueryRow(`SELECT id FROM users WHERE lower(email) = lower(?)`, email).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("check admin user existence: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash admin password: %w", err)
	}

	result, err := tx.Exec(`
		INSERT INTO users (email, name, password_hash, role, created_at)
		VALUES (?, ?, ?, 'ADMIN', ?)
	`, email, "Administrator", string(hash), now)
	if err != nil {
		return 0, fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++

	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read admin user id: %w", err)
	}
	return id, nil
}

func ensureCustomer(tx *sql.Tx, now string, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM customers WHERE sold_to_id = ? LIMIT 1)`, defaultCustomerSoldTo).Scan(&exists); err != nil {
		return fmt.Errorf("check default customer existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`
		INSERT INTO customers (sold_to_id, name, hierarchy, active, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
	`, defaultCustomerSoldTo, defaultCustomerName, defaultCustomerHierarchy, now, now); err != nil {
		return fmt.Errorf("insert default customer: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureDefaultModel(tx *sql.Tx, adminID int64, now string, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM pricing_models WHERE name = ? AND version = 1 LIMIT 1)`, defaultModelName).Scan(&exists); err != nil {
		return fmt.Errorf("check default pricing model existence: %w", err)
	}
	if exists {
		return nil
	}

	formula, err := json.Marshal(DefaultFormula())
	if err != nil {
		return fmt.Errorf("marshal default formula: %w", err)
	}

	var createdBy sql.NullInt64
	if adminID > 0 {
		createdBy = sql.NullInt64{Int64: adminID, Valid: true}
	}

	if _, err := tx.Exec(`
		INSERT INTO pricing_models (
			name, version, business_unit, category, output_type, currency,
			governance_state, effective_start, formula_json, created_by,
			created_at, updated_at
		)
		VALUES (?, 1, ?, ?, 'FOB', 'USD', 'APPROVED', ?, ?, ?, ?, ?)
	`, defaultModelName, defaultBusinessUnit, defaultModelCategory, defaultModelStart, string(formula), createdBy, now, now); err != nil {
		return fmt.Errorf("insert default pricing model: %w", err)
	}
	stats.Inserts++
	return nil
}

// DefaultFormula is the starting template of the standard model.
func DefaultFormula() pricing.Input {
	return pricing.Input{
		Ingredients: []pricing.Ingredient{
			{Name: "Chicken Breast", RecipePercent: 70, MarketPrice: 2.10, MarketReference: "USDA Weekly"},
			{Name: "Breading", RecipePercent: 20, MarketPrice: 0.65},
			{Name: "Marinade", RecipePercent: 10, MarketPrice: 1.20},
		},
		YieldPercent:     85,
		Packaging:        pricing.Float(0.12),
		Freight:          pricing.Float(0.08),
		Conversion:       pricing.Float(0.35),
		PaymentTermsRate: 1.5,
		PaymentTerms:     "NET30",
	}
}
