package seed

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/Simplici0/vapformula/internal/db"
	"github.com/Simplici0/vapformula/internal/migrations"
	"github.com/Simplici0/vapformula/internal/pricing"
)

func TestRunIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "seed-test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	if err := migrations.Up(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	cfg := Config{
		AdminEmail:    "admin@vap.test",
		AdminPassword: "12345",
	}

	for i := 0; i < 5; i++ {
		stats, err := Run(database, cfg)
		if err != nil {
			t.Fatalf("run seed (iteration=%d): %v", i, err)
		}
		if i == 0 {
			if stats.Inserts != 3 {
				t.Fatalf("expected 3 inserts in first run, got %d", stats.Inserts)
			}
			continue
		}
		if stats.Inserts != 0 {
			t.Fatalf("expected 0 inserts in iteration %d, got %d", i, stats.Inserts)
		}
	}

	assertCount(t, database, `SELECT COUNT(*) FROM users WHERE email = ?`, "admin@vap.test", 1)
	assertCount(t, database, `SELECT COUNT(*) FROM customers WHERE sold_to_id = ?`, "CUST001", 1)
	assertCount(t, database, `SELECT COUNT(*) FROM pricing_models WHERE name = ? AND governance_state = 'APPROVED'`, "Standard VAP Pricing Model", 1)

	var hash string
	if err := database.QueryRow(`SELECT password_hash FROM users WHERE email = ?`, "admin@vap.test").Scan(&hash); err != nil {
		t.Fatalf("query admin hash: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("12345")); err != nil {
		t.Fatalf("expected admin hash to match password: %v", err)
	}

	var createdBy sql.NullInt64
	if err := database.QueryRow(`SELECT created_by FROM pricing_models WHERE name = ?`, "Standard VAP Pricing Model").Scan(&createdBy); err != nil {
		t.Fatalf("query model owner: %v", err)
	}
	if !createdBy.Valid {
		t.Fatalf("expected default model to be owned by the admin")
	}
}

func TestRunWithoutAdminCredentials(t *testing.T) {
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	if err := migrations.Up(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	stats, err := Run(database, Config{})
	if err != nil {
		t.Fatalf("run seed: %v", err)
	}
	if stats.Inserts != 2 {
		t.Fatalf("expected 2 inserts without admin, got %d", stats.Inserts)
	}
	assertCount(t, database, `SELECT COUNT(*) FROM users`, nil, 0)
}

func TestDefaultFormulaCalculates(t *testing.T) {
	in := DefaultFormula()
	if err := pricing.Validate(in); err != nil {
		t.Fatalf("default formula is invalid: %v", err)
	}

	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded pricing.Input
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, err := pricing.Calculate(decoded); err != nil {
		t.Fatalf("calculate decoded formula: %v", err)
	}
}

func assertCount(t *testing.T, database *sql.DB, query string, args any, expected int) {
	t.Helper()

	var count int
	var err error
	switch v := args.(type) {
	case nil:
		err = database.QueryRow(query).Scan(&count)
	case []any:
		err = database.QueryRow(query, v...).Scan(&count)
	default:
		err = database.QueryRow(query, v).Scan(&count)
	}
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != expected {
		t.Fatalf("expected count %d, got %d", expected, count)
	}
}
