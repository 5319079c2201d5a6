package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Product is a sellable material loaded from an import workbook.
type Product struct {
	ID            int64      `json:"id"`
	MaterialCode  string     `json:"materialCode"`
	Name          string     `json:"name"`
	UOM           string     `json:"uom"`
	BasePrice     float64    `json:"basePrice"`
	MinOrderQty   *float64   `json:"minOrderQty,omitempty"`
	EffectiveDate *time.Time `json:"effectiveDate,omitempty"`
	ExpiryDate    *time.Time `json:"expiryDate,omitempty"`
	Category      string     `json:"category"`
	Description   string     `json:"description"`
	Active        bool       `json:"active"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// UpsertStats counts what UpsertProducts did.
type UpsertStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// UpsertProducts inserts or updates products keyed by material code. All
// rows are written in one transaction; a failure leaves the table untouched.
func (s *Store) UpsertProducts(ctx context.Context, products []Product) (UpsertStats, error) {
	var stats UpsertStats
	for i := range products {
		p := &products[i]
		p.MaterialCode = strings.TrimSpace(p.MaterialCode)
		p.Name = strings.TrimSpace(p.Name)
		if p.MaterialCode == "" || p.Name == "" {
			return stats, invalid("product material code and name are required")
		}
		if p.BasePrice < 0 {
			return stats, invalid(fmt.Sprintf("product %s has a negative base price", p.MaterialCode))
		}
		if p.UOM == "" {
			p.UOM = "EA"
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin product upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.timestamp()
	for _, p := range products {
		var existing int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM products WHERE material_code = ?`, p.MaterialCode).Scan(&existing)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			stats.Created++
		case err != nil:
			return UpsertStats{}, fmt.Errorf("query product %s: %w", p.MaterialCode, err)
		default:
			stats.Updated++
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO products (
				material_code, name, uom, base_price, min_order_qty,
				effective_date, expiry_date, category, description, active,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
			ON CONFLICT (material_code) DO UPDATE SET
				name = excluded.name,
				uom = excluded.uom,
				base_price = excluded.base_price,
				min_order_qty = excluded.min_order_qty,
				effective_date = excluded.effective_date,
				expiry_date = excluded.expiry_date,
				category = excluded.category,
				description = excluded.description,
				updated_at = excluded.updated_at
		`,
			p.MaterialCode, p.Name, p.UOM, p.BasePrice, nullFloat(p.MinOrderQty),
			nullDate(p.EffectiveDate), nullDate(p.ExpiryDate), p.Category, p.Description,
			now, now,
		); err != nil {
			return UpsertStats{}, fmt.Errorf("upsert product %s: %w", p.MaterialCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return UpsertStats{}, fmt.Errorf("commit product upsert: %w", err)
	}
	return stats, nil
}

// ListProducts returns active products ordered by material code.
func (s *Store) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			id, material_code, name, uom, base_price, min_order_qty,
			effective_date, expiry_date, category, description, active, updated_at
		FROM products
		WHERE active = 1
		ORDER BY material_code ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		var (
			p                 Product
			minQty            sql.NullFloat64
			effective, expiry sql.NullString
			updatedAt         string
		)
		if err := rows.Scan(
			&p.ID, &p.MaterialCode, &p.Name, &p.UOM, &p.BasePrice, &minQty,
			&effective, &expiry, &p.Category, &p.Description, &p.Active, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if minQty.Valid {
			p.MinOrderQty = &minQty.Float64
		}
		if p.EffectiveDate, err = parseNullDate(effective); err != nil {
			return nil, err
		}
		if p.ExpiryDate, err = parseNullDate(expiry); err != nil {
			return nil, err
		}
		if p.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return nullString(t.Format(dateLayout))
}

func parseNullDate(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid {
		return nil, nil
	}
	t, err := parseDate(raw.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
