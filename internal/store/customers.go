package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Customer is a sold-to party that pricing runs are issued for.
type Customer struct {
	ID        int64     `json:"id"`
	SoldToID  string    `json:"soldToId"`
	Name      string    `json:"name"`
	Hierarchy string    `json:"hierarchy"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateCustomer inserts an active customer and returns its id.
func (s *Store) CreateCustomer(ctx context.Context, soldToID, name, hierarchy string) (int64, error) {
	soldToID = strings.TrimSpace(soldToID)
	name = strings.TrimSpace(name)
	if soldToID == "" || name == "" {
		return 0, invalid("customer sold-to id and name are required")
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers WHERE sold_to_id = ?`, soldToID).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("query customer sold-to id: %w", err)
	}
	if exists > 0 {
		return 0, invalid(fmt.Sprintf("customer with sold-to id %s already exists", soldToID))
	}

	now := s.timestamp()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (sold_to_id, name, hierarchy, active, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
	`, soldToID, name, strings.TrimSpace(hierarchy), now, now)
	if err != nil {
		return 0, fmt.Errorf("insert customer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read customer id: %w", err)
	}
	return id, nil
}

// GetCustomer returns the customer with the given id, or ErrNotFound.
func (s *Store) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sold_to_id, name, hierarchy, active, created_at
		FROM customers
		WHERE id = ?
	`, id)

	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	if err != nil {
		return Customer{}, fmt.Errorf("query customer: %w", err)
	}
	return c, nil
}

// ListActiveCustomers returns active customers ordered by name.
func (s *Store) ListActiveCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sold_to_id, name, hierarchy, active, created_at
		FROM customers
		WHERE active = 1
		ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	customers := make([]Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}

	return customers, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (Customer, error) {
	var (
		c         Customer
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.SoldToID, &c.Name, &c.Hierarchy, &c.Active, &createdAt); err != nil {
		return Customer{}, err
	}
	t, err := parseTimestamp(createdAt)
	if err != nil {
		return Customer{}, err
	}
	c.CreatedAt = t
	return c, nil
}
