package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chpollin/depcha-dashboard/internal/domain"
)

// FilterAll disables a filter dimension.
const FilterAll = "all"

// ErrInvalidFilter is returned by Filter.Validate.
var ErrInvalidFilter = errors.New("invalid filter")

// Filter restricts the transaction set before aggregation.
type Filter struct {
	DateRange       string `json:"dateRange"`
	TransactionType string `json:"transactionType"`
	Commodity       string `json:"commodity"`
}

// AllFilter matches every transaction.
func AllFilter() Filter {
	return Filter{DateRange: FilterAll, TransactionType: FilterAll, Commodity: FilterAll}
}

func isAll(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, FilterAll)
}

// IsAll reports whether the filter is a no-op.
func (f Filter) IsAll() bool {
	return isAll(f.DateRange) && isAll(f.TransactionType) && isAll(f.Commodity)
}

// Validate checks that the date range is a year and the type is known.
func (f Filter) Validate() error {
	if !isAll(f.DateRange) {
		if _, err := parseYear(f.DateRange); err != nil {
			return fmt.Errorf("%w: dateRange %q is not a year", ErrInvalidFilter, f.DateRange)
		}
	}
	if !isAll(f.TransactionType) {
		if _, ok := resolveType(f.TransactionType); !ok {
			return fmt.Errorf("%w: unknown transactionType %q", ErrInvalidFilter, f.TransactionType)
		}
	}
	return nil
}

// Apply returns the transactions matching every active dimension, in input order.
// Unknown years or types match nothing.
func (f Filter) Apply(transactions []*domain.Transaction) []*domain.Transaction {
	if f.IsAll() {
		return transactions
	}
	match := f.predicate()
	out := make([]*domain.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if match(tx) {
			out = append(out, tx)
		}
	}
	return out
}

func (f Filter) predicate() func(*domain.Transaction) bool {
	var checks []func(*domain.Transaction) bool

	if !isAll(f.DateRange) {
		year, err := parseYear(f.DateRange)
		if err != nil {
			return func(*domain.Transaction) bool { return false }
		}
		checks = append(checks, func(tx *domain.Transaction) bool { return tx.Date.Year() == year })
	}
	if !isAll(f.TransactionType) {
		rt, ok := resolveType(f.TransactionType)
		if !ok {
			return func(*domain.Transaction) bool { return false }
		}
		checks = append(checks, func(tx *domain.Transaction) bool { return tx.HasType(rt) })
	}
	if !isAll(f.Commodity) {
		name := f.Commodity
		checks = append(checks, func(tx *domain.Transaction) bool { return tx.HasCommodity(name) })
	}

	return func(tx *domain.Transaction) bool {
		for _, check := range checks {
			if !check(tx) {
				return false
			}
		}
		return true
	}
}

func parseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if !yearRegex.MatchString(s) {
		return 0, ErrInvalidFilter
	}
	return strconv.Atoi(s)
}

// resolveType accepts a ResourceType tag or one of the archive labels.
func resolveType(s string) (domain.ResourceType, bool) {
	s = strings.TrimSpace(s)
	for _, rt := range domain.ResourceTypes {
		if strings.EqualFold(s, string(rt)) {
			return rt, true
		}
	}
	switch strings.ToLower(s) {
	case LabelMonetaryValue, LabelService, LabelCommodity:
		return ClassifyResource(s), true
	}
	return "", false
}
