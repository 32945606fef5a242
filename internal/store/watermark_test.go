package store

import (
	"context"
	"testing"
	"time"

	"github.com/example/tidemark/internal/sales"
)

func testRecord(orderID int64, date string, quantity int64, price float64) sales.Record {
	ts, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return sales.Record{
		OrderID:    orderID,
		OrderDate:  ts.UTC(),
		CustomerID: 100 + orderID,
		Product:    "Widget",
		Quantity:   quantity,
		Price:      price,
		Revenue:    float64(quantity) * price,
	}
}

func TestWatermark_AbsentOnEmptyTarget(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	wm, ok, err := s.Watermark(ctx)
	if err != nil {
		t.Fatalf("Watermark() failed: %v", err)
	}
	if ok {
		t.Errorf("expected absent watermark on empty target, got %v", wm)
	}
	if !wm.IsZero() {
		t.Errorf("absent watermark should be zero time, got %v", wm)
	}
}

func TestWatermark_MaxOrderDate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	delta := []sales.Record{
		testRecord(1, "2024-06-01", 2, 9.99),
		testRecord(2, "2024-06-15", 1, 5.00),
		testRecord(3, "2024-06-07", 3, 1.25),
	}
	if _, err := s.Merge(ctx, delta); err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}

	wm, ok, err := s.Watermark(ctx)
	if err != nil {
		t.Fatalf("Watermark() failed: %v", err)
	}
	if !ok {
		t.Fatal("expected watermark present after merge")
	}

	want := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	if !wm.Equal(want) {
		t.Errorf("Watermark() = %v, want %v", wm, want)
	}
}

func TestWatermark_AdvancesWithMerges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Merge(ctx, []sales.Record{testRecord(1, "2024-06-01", 1, 1.0)}); err != nil {
		t.Fatalf("first Merge() failed: %v", err)
	}
	if _, err := s.Merge(ctx, []sales.Record{testRecord(2, "2024-06-20", 1, 1.0)}); err != nil {
		t.Fatalf("second Merge() failed: %v", err)
	}

	wm, ok, err := s.Watermark(ctx)
	if err != nil {
		t.Fatalf("Watermark() failed: %v", err)
	}
	if !ok {
		t.Fatal("expected watermark present")
	}

	want := time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC)
	if !wm.Equal(want) {
		t.Errorf("Watermark() = %v, want %v", wm, want)
	}
}

func TestWatermark_MixedPrecisionDates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Whole-second and fractional-second dates must compare chronologically
	// in the stored text. A variable-width encoding would sort "...00Z" above
	// "...00.5Z" and return the wrong maximum here.
	whole := testRecord(1, "2024-06-01", 1, 1.0)
	fractional := testRecord(2, "2024-06-01", 1, 1.0)
	fractional.OrderDate = time.Date(2024, 6, 1, 0, 0, 0, 500_000_000, time.UTC)

	if _, err := s.Merge(ctx, []sales.Record{whole, fractional}); err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}

	wm, ok, err := s.Watermark(ctx)
	if err != nil {
		t.Fatalf("Watermark() failed: %v", err)
	}
	if !ok {
		t.Fatal("expected watermark present")
	}
	if !wm.Equal(fractional.OrderDate) {
		t.Errorf("Watermark() = %v, want %v", wm, fractional.OrderDate)
	}
}

func TestWatermark_MalformedDate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Bypass the merge path to simulate a corrupted target.
	_, err := s.db.Exec(`
		INSERT INTO orders (order_id, order_date, quantity, price, revenue)
		VALUES (1, 'not-a-date', 1, 1.0, 1.0)
	`)
	if err != nil {
		t.Fatalf("setup insert failed: %v", err)
	}

	_, _, err = s.Watermark(ctx)
	if err == nil {
		t.Error("expected error for malformed watermark, got nil")
	}
}

func TestCountOrders(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.CountOrders(ctx)
	if err != nil {
		t.Fatalf("CountOrders() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("CountOrders() = %d on empty target, want 0", n)
	}

	delta := []sales.Record{
		testRecord(1, "2024-06-01", 1, 1.0),
		testRecord(2, "2024-06-02", 1, 1.0),
	}
	if _, err := s.Merge(ctx, delta); err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}

	n, err = s.CountOrders(ctx)
	if err != nil {
		t.Fatalf("CountOrders() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("CountOrders() = %d, want 2", n)
	}
}
