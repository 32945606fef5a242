// Package quality implements the batch quality gate.
//
// The gate admits a batch only when every integrity rule holds for every
// record; a single violation rejects the whole batch with a structured
// report. The gate never mutates records to repair violations.
package quality

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/tidemark/internal/sales"
)

// RuleCode identifies the integrity rule a violation belongs to.
type RuleCode string

const (
	// RuleRequired fires when a mandatory field is absent.
	// Mandatory fields: order_id, order_date, quantity, price. Absent
	// quantity/price cells coerce to zero and are reported under RuleRange.
	RuleRequired RuleCode = "REQUIRED_FIELD"

	// RuleRange fires when quantity or price is not strictly positive.
	RuleRange RuleCode = "RANGE"

	// RuleDuplicate fires when two records share an order_id.
	// Duplicates are rejected, never silently deduplicated.
	RuleDuplicate RuleCode = "DUPLICATE_KEY"
)

// Violation describes one rule failure on one record.
type Violation struct {
	Rule    RuleCode `json:"rule"`
	Row     int      `json:"row,omitempty"`
	OrderID int64    `json:"order_id,omitempty"`
	Field   string   `json:"field,omitempty"`
	Message string   `json:"message"`
}

func (v Violation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", v.Rule)
	if v.Row > 0 {
		fmt.Fprintf(&b, " row %d", v.Row)
	}
	if v.OrderID != 0 {
		fmt.Fprintf(&b, " order_id=%d", v.OrderID)
	}
	fmt.Fprintf(&b, ": %s", v.Message)
	return b.String()
}

// BatchError is the quality failure for a rejected batch.
// It carries every violation found, not just the first, so the caller can fix
// the source data in one pass and rerun with the full corrected batch.
type BatchError struct {
	Violations []Violation
}

func (e *BatchError) Error() string {
	if len(e.Violations) == 1 {
		return fmt.Sprintf("batch rejected: %s", e.Violations[0])
	}
	return fmt.Sprintf("batch rejected: %d violations (first: %s)",
		len(e.Violations), e.Violations[0])
}

// IsBatchError reports whether err is (or wraps) a quality BatchError.
func IsBatchError(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}

// Validate runs every integrity rule over the batch.
//
// On success it returns the records wrapped as a ValidatedBatch, the only way
// such a value is constructed. On failure it returns a *BatchError listing
// all violations; zero records are admitted (fail-fast, no partial
// admission).
func Validate(batch sales.Batch) (sales.ValidatedBatch, error) {
	var violations []Violation

	violations = append(violations, checkRequired(batch)...)
	violations = append(violations, checkRanges(batch)...)
	violations = append(violations, checkDuplicates(batch)...)

	if len(violations) > 0 {
		slog.Error("quality gate rejected batch",
			"records", batch.Len(), "violations", len(violations))
		return sales.ValidatedBatch{}, &BatchError{Violations: violations}
	}

	slog.Info("quality gate passed", "records", batch.Len())
	return sales.NewValidatedBatch(batch.Records), nil
}

// checkRequired verifies order_id and order_date are present. Transform
// leaves an absent mandatory cell zeroed, so "present" means non-zero: order
// ids are positive and a zero time is an absent date. Absent quantity/price
// cells also coerce to zero, which the range rule rejects, so presence and
// range collapse into one report for those fields.
func checkRequired(batch sales.Batch) []Violation {
	var out []Violation
	for i, r := range batch.Records {
		row := batch.Row(i)
		if r.OrderID == 0 {
			out = append(out, Violation{
				Rule: RuleRequired, Row: row, Field: "order_id",
				Message: "order_id is missing",
			})
		}
		if r.OrderDate.IsZero() {
			out = append(out, Violation{
				Rule: RuleRequired, Row: row, OrderID: r.OrderID, Field: "order_date",
				Message: "order_date is missing",
			})
		}
	}
	return out
}

// checkRanges verifies quantity > 0 and price > 0 for every record.
func checkRanges(batch sales.Batch) []Violation {
	var out []Violation
	for i, r := range batch.Records {
		row := batch.Row(i)
		if r.Quantity <= 0 {
			out = append(out, Violation{
				Rule: RuleRange, Row: row, OrderID: r.OrderID, Field: "quantity",
				Message: fmt.Sprintf("quantity must be > 0, got %d", r.Quantity),
			})
		}
		if r.Price <= 0 {
			out = append(out, Violation{
				Rule: RuleRange, Row: row, OrderID: r.OrderID, Field: "price",
				Message: fmt.Sprintf("price must be > 0, got %g", r.Price),
			})
		}
	}
	return out
}

// checkDuplicates verifies order_id is unique within the batch.
func checkDuplicates(batch sales.Batch) []Violation {
	seen := make(map[int64]int, batch.Len())
	var out []Violation
	for i, r := range batch.Records {
		if r.OrderID == 0 {
			continue // already reported by checkRequired
		}
		if first, dup := seen[r.OrderID]; dup {
			out = append(out, Violation{
				Rule: RuleDuplicate, Row: batch.Row(i), OrderID: r.OrderID,
				Message: fmt.Sprintf("order_id also appears at row %d", first),
			})
			continue
		}
		seen[r.OrderID] = batch.Row(i)
	}
	return out
}
