package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the sense of a stock movement.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// Reverse returns the direction that undoes d.
func (d Direction) Reverse() Direction {
	if d == DirectionIn {
		return DirectionOut
	}
	return DirectionIn
}

// Actor is the scope (store) and operator on whose behalf an operation runs.
// Every query and mutation is confined to Actor.StoreID.
type Actor struct {
	StoreID    int  `json:"store_id"`
	OperatorID int  `json:"operator_id"`
	IsOwner    bool `json:"is_owner"`
}

func (a Actor) validate() error {
	if a.StoreID <= 0 {
		return validation("store scope is required")
	}
	if a.OperatorID <= 0 {
		return validation("operator is required")
	}
	return nil
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 200
)

// PageRequest selects a window of a result list.
type PageRequest struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

func (p PageRequest) normalize() PageRequest {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	return p
}

// Page is one window of a result list plus the total number of matches.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Period is an inclusive time range. A zero bound is unbounded on that side.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (p Period) validate() error {
	if !p.From.IsZero() && !p.To.IsZero() && p.To.Before(p.From) {
		return validation("period end %s is before start %s", p.To.Format(time.DateOnly), p.From.Format(time.DateOnly))
	}
	return nil
}

// args returns the bounds as nullable query parameters.
func (p Period) args() (from, to *time.Time) {
	if !p.From.IsZero() {
		f := p.From
		from = &f
	}
	if !p.To.IsZero() {
		t := p.To
		to = &t
	}
	return from, to
}

// maxAmount is the largest value a NUMERIC(14,2) money column holds.
var maxAmount = decimal.RequireFromString("999999999999.99")

// validatePrice rejects negative prices, prices finer than a cent and
// prices the money columns cannot hold.
func validatePrice(field string, price decimal.Decimal) error {
	if price.IsNegative() {
		return validation("%s cannot be negative, got %s", field, price)
	}
	if !price.Equal(price.Round(2)) {
		return validation("%s must have at most 2 decimal places, got %s", field, price)
	}
	if price.GreaterThan(maxAmount) {
		return validation("%s %s exceeds the maximum amount %s", field, price, maxAmount)
	}
	return nil
}

// lineTotal returns quantity × price, rejecting totals above maxAmount.
func lineTotal(field string, qty int64, price decimal.Decimal) (decimal.Decimal, error) {
	total := price.Mul(decimal.NewFromInt(qty))
	if total.GreaterThan(maxAmount) {
		return decimal.Zero, validation("%s %s × %d exceeds the maximum amount %s", field, price, qty, maxAmount)
	}
	return total, nil
}
