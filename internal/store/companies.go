package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"stockanalysis/internal/source"
)

type NewCompany struct {
	Symbol      string  `json:"symbol"`
	CompanyName string  `json:"company_name"`
	Sector      *string `json:"sector"`
	Industry    *string `json:"industry"`
}

type Company struct {
	ID int64 `json:"id"`
	NewCompany
}

func (c NewCompany) validate() (NewCompany, error) {
	sym, err := source.ValidateSymbol(c.Symbol)
	if err != nil {
		return c, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	c.Symbol = sym
	c.CompanyName = strings.TrimSpace(c.CompanyName)
	if c.CompanyName == "" {
		return c, fmt.Errorf("%w: company_name is required", ErrValidation)
	}
	return c, nil
}

// CreateCompany inserts a company. The symbol is normalized to upper case.
func (s *Store) CreateCompany(ctx context.Context, in NewCompany) (Company, error) {
	in, err := in.validate()
	if err != nil {
		return Company{}, err
	}
	var out Company
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO companies (symbol, company_name, sector, industry) VALUES (?, ?, ?, ?)`,
			in.Symbol, in.CompanyName, in.Sector, in.Industry)
		if err != nil {
			return classify(err, "company already exists")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		out = Company{ID: id, NewCompany: in}
		return nil
	})
	if err != nil {
		return Company{}, fmt.Errorf("failed to create company: %w", err)
	}
	return out, nil
}

// ListCompanies returns every company ordered by id.
func (s *Store) ListCompanies(ctx context.Context) ([]Company, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, symbol, company_name, sector, industry FROM companies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}
	defer rows.Close()

	out := []Company{}
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CompanyBySymbol looks a company up by its (case-insensitive) symbol.
func (s *Store) CompanyBySymbol(ctx context.Context, symbol string) (Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, symbol, company_name, sector, industry FROM companies WHERE symbol = ?`,
		source.NormalizeSymbol(symbol))
	c, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Company{}, fmt.Errorf("company %q: %w", symbol, ErrNotFound)
	}
	return c, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCompany(sc scanner) (Company, error) {
	var (
		c                Company
		sector, industry sql.NullString
	)
	if err := sc.Scan(&c.ID, &c.Symbol, &c.CompanyName, &sector, &industry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Company{}, err
		}
		return Company{}, fmt.Errorf("scan company: %w", err)
	}
	if sector.Valid {
		c.Sector = &sector.String
	}
	if industry.Valid {
		c.Industry = &industry.String
	}
	return c, nil
}
