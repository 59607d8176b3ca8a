package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whhaicheng/dedisp-tunedb/internal/domain/analysis"
	"github.com/whhaicheng/dedisp-tunedb/internal/domain/scenario"
	"github.com/whhaicheng/dedisp-tunedb/internal/domain/schema"
	"github.com/whhaicheng/dedisp-tunedb/internal/infra/database"
)

// cudaRows: DMs channels samples splitSeconds local unroll samplesPerBlock DMsPerBlock samplesPerThread DMsPerThread GFLOPs time time_err cov
var cudaRows = []string{
	"10 4 256 0 1 1 32 2 4 2 50 4.0 0.1 0.01",
	"10 4 256 0 0 1 64 1 4 1 60 2.0 0.1 0.01",
	"10 4 256 1 1 2 32 1 2 1 40 8.0 0.1 0.01",
	"10 4 256 0 1 4 16 1 8 1 60 3.0 0.1 0.01",
	"20 4 256 0 1 1 32 2 4 2 120.5 1.5 0.1 0.01",
	"20 8 256 0 1 1 32 2 4 2 999 0.1 0.1 0.01",
}

func seedCUDA(t *testing.T, db *database.DB, table string, lines []string) {
	t.Helper()
	ctx := context.Background()
	v := mustVariant(t, schema.VariantCUDA)

	tables := NewSQLTableRepository(db)
	require.NoError(t, tables.Create(ctx, table, v))

	ins, err := tables.NewInserter(ctx, table, v)
	require.NoError(t, err)
	defer ins.Close()

	for _, line := range lines {
		values, err := schema.ParseLine(v, line)
		require.NoError(t, err)
		require.NoError(t, ins.Insert(ctx, values))
	}
}

var scenario4x256 = scenario.Filter{scenario.Eq("channels", int64(4)), scenario.Eq("samples", int64(256))}

func TestSQLResultsRepository_DistinctDMs(t *testing.T) {
	db := setupTestDB(t)
	seedCUDA(t, db, "gpu", cudaRows)
	repo := NewSQLResultsRepository(db)
	ctx := context.Background()

	dms, err := repo.DistinctDMs(ctx, "gpu", scenario4x256)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20}, dms)

	dms, err = repo.DistinctDMs(ctx, "gpu", scenario4x256.And(scenario.Eq("splitSeconds", int64(1))))
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, dms)

	dms, err = repo.DistinctDMs(ctx, "gpu", scenario.Filter{scenario.Eq("channels", int64(99))})
	require.NoError(t, err)
	assert.Empty(t, dms)

	_, err = repo.DistinctDMs(ctx, "missing", nil)
	assert.ErrorIs(t, err, database.ErrTableNotFound)
}

func TestSQLResultsRepository_Summary(t *testing.T) {
	db := setupTestDB(t)
	seedCUDA(t, db, "gpu", cudaRows)
	repo := NewSQLResultsRepository(db)
	ctx := context.Background()

	filter := scenario4x256.And(scenario.Eq(schema.ColumnDMs, int64(10)), scenario.Eq("local", int64(1)))
	s, ok, err := repo.Summary(ctx, "gpu", filter)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 40.0, s.Min)
	assert.Equal(t, 60.0, s.Max)
	assert.Equal(t, 50.0, s.Avg)
	assert.InDelta(t, 8.16497, s.StdDev, 1e-5)

	_, ok, err = repo.Summary(ctx, "gpu", scenario.Filter{scenario.Eq(schema.ColumnDMs, int64(30))})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLResultsRepository_MaxAndValues(t *testing.T) {
	db := setupTestDB(t)
	seedCUDA(t, db, "gpu", cudaRows)
	repo := NewSQLResultsRepository(db)
	ctx := context.Background()

	filter := scenario4x256.And(scenario.Eq(schema.ColumnDMs, int64(10)))
	max, ok, err := repo.MaxGFLOPs(ctx, "gpu", filter)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 60.0, max)

	values, err := repo.GFLOPs(ctx, "gpu", filter)
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 60, 40, 60}, values)

	_, ok, err = repo.MaxGFLOPs(ctx, "gpu", scenario.Filter{scenario.Eq(schema.ColumnDMs, int64(30))})
	require.NoError(t, err)
	assert.False(t, ok)

	unrolls, err := repo.DistinctValues(ctx, "gpu", "unroll", filter)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 4}, unrolls)
}

func TestSQLResultsRepository_Extremal(t *testing.T) {
	db := setupTestDB(t)
	seedCUDA(t, db, "gpu", cudaRows)
	repo := NewSQLResultsRepository(db)
	ctx := context.Background()
	v := mustVariant(t, schema.VariantCUDA)

	columns := []schema.Column{}
	for _, name := range []string{"unroll", "samplesPerBlock", schema.ColumnGFLOPs} {
		c, ok := v.Column(name)
		require.True(t, ok)
		columns = append(columns, c)
	}
	filter := scenario4x256.And(scenario.Eq(schema.ColumnDMs, int64(10)))

	// Two rows reach 60 GFLOPs; local = 0 sorts first in the tie-break order.
	values, ok, err := repo.Extremal(ctx, "gpu", columns, analysis.AggregateMax, filter, v.TieBreakColumns())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{int64(1), int64(64), 60.0}, values)

	values, ok, err = repo.Extremal(ctx, "gpu", columns, analysis.AggregateMax,
		filter.And(scenario.Eq("local", int64(1))), v.TieBreakColumns())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{int64(4), int64(16), 60.0}, values)

	values, ok, err = repo.Extremal(ctx, "gpu", columns, analysis.AggregateMin, filter, v.TieBreakColumns())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{int64(2), int64(32), 40.0}, values)

	_, ok, err = repo.Extremal(ctx, "gpu", columns, analysis.AggregateMax, nil, nil)
	require.NoError(t, err)
	assert.True(t, ok, "an empty filter selects over the whole table")

	_, ok, err = repo.Extremal(ctx, "gpu", columns, analysis.AggregateMax,
		scenario.Filter{scenario.Eq(schema.ColumnDMs, int64(30))}, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = repo.Extremal(ctx, "gpu", columns, analysis.Aggregate("AVG"), filter, nil)
	assert.Error(t, err)
}

func TestSQLResultsRepository_MinTime(t *testing.T) {
	db := setupTestDB(t)
	seedCUDA(t, db, "gpu", cudaRows)
	repo := NewSQLResultsRepository(db)
	ctx := context.Background()

	min, err := repo.MinTime(ctx, "gpu", scenario4x256.And(scenario.Eq(schema.ColumnDMs, int64(10))))
	require.NoError(t, err)
	require.NotNil(t, min)
	assert.Equal(t, 2.0, *min)

	min, err = repo.MinTime(ctx, "gpu", scenario.Filter{scenario.Eq(schema.ColumnDMs, int64(30))})
	require.NoError(t, err)
	assert.Nil(t, min)
}
