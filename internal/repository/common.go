package repository

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Lookups return (nil, nil) when the row does not exist.

type rowScanner interface {
	Scan(dest ...any) error
}

func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// scopeArg turns the platform-wide scope (uuid.Nil) into a NULL parameter.
func scopeArg(companyID uuid.UUID) *uuid.UUID {
	if companyID == uuid.Nil {
		return nil
	}
	return &companyID
}

func parseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad amount %q: %w", raw, err)
	}
	return d, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
