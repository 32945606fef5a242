package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/tidemark/internal/quality"
	"github.com/example/tidemark/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "target.db"), "orders", "orders_staging")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const header = "order_id,order_date,customer_id,product,quantity,price\n"

func TestRun_FirstRunIsFullLoad(t *testing.T) {
	st := newTestStore(t)
	source := writeSource(t, header+
		"1,2024-06-01,101,Widget,2,9.99\n"+
		"2,2024-06-02,102,Gadget,1,5.00\n"+
		"3,2024-06-03,103,Sprocket,3,1.25\n")

	result, err := Run(context.Background(), st, source)
	require.NoError(t, err)

	assert.Equal(t, 3, result.RowsRead)
	assert.Equal(t, 3, result.DeltaSize)
	assert.True(t, result.FullLoad)
	assert.Equal(t, int64(3), result.Inserted)
	assert.Equal(t, int64(0), result.Updated)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), result.Watermark)
}

func TestRun_RerunSameFileIsNoOp(t *testing.T) {
	st := newTestStore(t)
	source := writeSource(t, header+
		"1,2024-06-01,101,Widget,2,9.99\n"+
		"2,2024-06-02,102,Gadget,1,5.00\n")

	_, err := Run(context.Background(), st, source)
	require.NoError(t, err)

	// Same watermark, same batch: nothing is newer, nothing merges, and the
	// run still succeeds.
	result, err := Run(context.Background(), st, source)
	require.NoError(t, err)

	assert.Equal(t, 2, result.RowsRead)
	assert.Equal(t, 0, result.DeltaSize)
	assert.False(t, result.FullLoad)
	assert.Equal(t, int64(0), result.Inserted)
	assert.Equal(t, int64(0), result.Updated)

	n, err := st.CountOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRun_IncrementalAppend(t *testing.T) {
	st := newTestStore(t)

	first := writeSource(t, header+
		"1,2024-06-01,101,Widget,2,9.99\n"+
		"2,2024-06-02,102,Gadget,1,5.00\n")
	_, err := Run(context.Background(), st, first)
	require.NoError(t, err)

	// The next batch re-ships old rows plus new ones; only the new rows
	// pass the watermark filter.
	second := writeSource(t, header+
		"1,2024-06-01,101,Widget,2,9.99\n"+
		"2,2024-06-02,102,Gadget,1,5.00\n"+
		"3,2024-06-05,103,Sprocket,3,1.25\n"+
		"4,2024-06-06,104,Doohickey,1,2.00\n")

	result, err := Run(context.Background(), st, second)
	require.NoError(t, err)

	assert.Equal(t, 2, result.DeltaSize)
	assert.Equal(t, int64(2), result.Inserted)
	assert.Equal(t, int64(0), result.Updated)
	assert.Equal(t, time.Date(2024, 6, 6, 0, 0, 0, 0, time.UTC), result.Watermark)

	n, err := st.CountOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestRun_RerunWithFractionalSecondsIsNoOp(t *testing.T) {
	st := newTestStore(t)
	// Mixed whole-second and subsecond dates within one batch. If the stored
	// watermark undershoots the true maximum, the rerun reselects the
	// subsecond row and reports an update instead of a no-op.
	source := writeSource(t, header+
		"1,2024-06-01T00:00:00Z,101,Widget,2,9.99\n"+
		"2,2024-06-01T00:00:00.5Z,102,Gadget,1,5.00\n")

	_, err := Run(context.Background(), st, source)
	require.NoError(t, err)

	result, err := Run(context.Background(), st, source)
	require.NoError(t, err)

	assert.Equal(t, 0, result.DeltaSize)
	assert.Equal(t, int64(0), result.Inserted)
	assert.Equal(t, int64(0), result.Updated)
	assert.Equal(t,
		time.Date(2024, 6, 1, 0, 0, 0, 500_000_000, time.UTC), result.Watermark)
}

func TestRun_RevenueDerivedNotTrusted(t *testing.T) {
	st := newTestStore(t)
	// Source claims a bogus revenue; the pipeline must recompute it.
	source := writeSource(t,
		"order_id,order_date,customer_id,product,quantity,price,revenue\n"+
			"1,2024-06-01,101,Widget,3,10.00,999999\n")

	_, err := Run(context.Background(), st, source)
	require.NoError(t, err)

	rec, err := st.ReadOrder(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 30.0, rec.Revenue)
}

func TestRun_QualityFailureHaltsBeforeStore(t *testing.T) {
	st := newTestStore(t)
	source := writeSource(t, header+
		"1,2024-06-01,101,Widget,2,9.99\n"+
		"2,2024-06-02,102,Gadget,0,5.00\n")

	_, err := Run(context.Background(), st, source)
	require.Error(t, err)
	assert.Equal(t, StageQuality, StageOf(err))
	assert.True(t, quality.IsBatchError(err))

	// Fail-fast: the valid record was not merged either.
	n, err := st.CountOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestRun_ExtractFailureStage(t *testing.T) {
	st := newTestStore(t)

	_, err := Run(context.Background(), st, filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Equal(t, StageExtract, StageOf(err))
}

func TestRun_TransformFailureStage(t *testing.T) {
	st := newTestStore(t)
	source := writeSource(t, header+
		"one,2024-06-01,101,Widget,2,9.99\n")

	_, err := Run(context.Background(), st, source)
	require.Error(t, err)
	assert.Equal(t, StageTransform, StageOf(err))
}

func TestRun_UpdatedRowOverwrites(t *testing.T) {
	st := newTestStore(t)

	first := writeSource(t, header+
		"1,2024-06-01,101,Widget,2,10.00\n")
	_, err := Run(context.Background(), st, first)
	require.NoError(t, err)

	// A correction arrives with an advanced order_date, so it passes the
	// watermark filter and overwrites the existing row.
	second := writeSource(t, header+
		"1,2024-06-02,101,Widget,3,10.00\n")
	result, err := Run(context.Background(), st, second)
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.Inserted)
	assert.Equal(t, int64(1), result.Updated)

	rec, err := st.ReadOrder(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.Quantity)
	assert.Equal(t, 30.0, rec.Revenue)
}

func TestRun_NoStagingResidue(t *testing.T) {
	st := newTestStore(t)
	source := writeSource(t, header+
		"1,2024-06-01,101,Widget,2,9.99\n")

	_, err := Run(context.Background(), st, source)
	require.NoError(t, err)

	staging, err := st.StagingTables(context.Background())
	require.NoError(t, err)
	assert.Empty(t, staging)
}

func TestStageError_Unwrap(t *testing.T) {
	inner := os.ErrNotExist
	err := failed(StageExtract, inner)

	assert.ErrorIs(t, err, inner)
	assert.Equal(t, StageExtract, StageOf(err))
	assert.Contains(t, err.Error(), "stage extract")
}

func TestStageOf_PlainError(t *testing.T) {
	assert.Equal(t, Stage(""), StageOf(os.ErrNotExist))
	assert.Equal(t, Stage(""), StageOf(nil))
}
