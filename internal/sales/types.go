package sales

import "time"

// Record is one sales order row.
//
// Revenue is derived (Quantity * Price) during transform and is never trusted
// from input data.
type Record struct {
	OrderID    int64     `json:"order_id"`
	OrderDate  time.Time `json:"order_date"`
	CustomerID int64     `json:"customer_id"`
	Product    string    `json:"product"`
	Quantity   int64     `json:"quantity"`
	Price      float64   `json:"price"`
	Revenue    float64   `json:"revenue"`
}

// DerivedRevenue returns the revenue recomputed from quantity and price.
func (r Record) DerivedRevenue() float64 {
	return float64(r.Quantity) * r.Price
}

// Batch is an ordered sequence of records produced by one run's extraction
// and transform steps. Rows carries the 1-based source row number for each
// record so violation reports can point back at the file.
type Batch struct {
	Records []Record
	Rows    []int
}

// Len returns the number of records in the batch.
func (b Batch) Len() int {
	return len(b.Records)
}

// Row returns the source row number for record index i, or 0 if row
// provenance was not recorded.
func (b Batch) Row(i int) int {
	if i < 0 || i >= len(b.Rows) {
		return 0
	}
	return b.Rows[i]
}

// ValidatedBatch is a batch that has passed the quality gate.
//
// The zero value is valid and empty. Construction outside the quality gate
// goes through NewValidatedBatch, which is only called by the gate after all
// rules hold; downstream components therefore never observe an invalid record.
type ValidatedBatch struct {
	records []Record
}

// NewValidatedBatch wraps records that have passed every quality rule.
// Intended for use by the quality gate only.
func NewValidatedBatch(records []Record) ValidatedBatch {
	return ValidatedBatch{records: records}
}

// Records returns the validated records in batch order.
func (v ValidatedBatch) Records() []Record {
	return v.records
}

// Len returns the number of validated records.
func (v ValidatedBatch) Len() int {
	return len(v.records)
}
