package usecase_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whhaicheng/dedisp-tunedb/internal/app/usecase"
	"github.com/whhaicheng/dedisp-tunedb/internal/domain/schema"
	"github.com/whhaicheng/dedisp-tunedb/internal/infra/database"
)

const openclFile = `# DMs samplesPerBlock DMsPerBlock samplesPerThread DMsPerThread GFLOPs GFLOPs_err time time_err
256 32 2 4 4 95.4 1.2 0.0021 0.0001

256 64 1 2 2 80.25 0.9 0.0025 0.0002
# second DM
512 32 4 4 2 101 1.5 0.0039 0.0001
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSchemaUseCase_CreateTable(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	v, err := f.tables.CreateTable(ctx, "titan", "")
	require.NoError(t, err)
	assert.Equal(t, schema.VariantCUDA, v.Name, "default variant")

	v, err = f.tables.CreateTable(ctx, "lofar", "SUBBAND")
	require.NoError(t, err)
	assert.Equal(t, schema.VariantSubband, v.Name)

	_, err = f.tables.CreateTable(ctx, "x", "vulkan")
	assert.ErrorIs(t, err, schema.ErrUnknownVariant)

	_, err = f.tables.CreateTable(ctx, "titan", "opencl")
	assert.ErrorIs(t, err, database.ErrTableExists)

	tables, err := f.tables.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"lofar", "titan"}, tables)

	require.NoError(t, f.tables.DeleteTable(ctx, "lofar"))
	assert.ErrorIs(t, f.tables.DeleteTable(ctx, "lofar"), database.ErrTableNotFound)
}

func TestSchemaUseCase_ResolveVariant(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	_, err := f.tables.CreateTable(ctx, "hd7970", schema.VariantOpenCL)
	require.NoError(t, err)

	v, err := f.tables.ResolveVariant(ctx, "hd7970")
	require.NoError(t, err)
	assert.Equal(t, schema.VariantOpenCL, v.Name)

	// Tables created by older tooling have no catalog entry.
	_, err = f.db.Exec(`CREATE TABLE "legacy" ("id" INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	v, err = f.tables.ResolveVariant(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, schema.VariantCUDA, v.Name)
}

func TestSchemaUseCase_LoadFile(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()
	_, err := f.tables.CreateTable(ctx, "hd7970", schema.VariantOpenCL)
	require.NoError(t, err)

	res, err := f.tables.LoadFile(ctx, "hd7970", writeFile(t, "hd7970.txt", openclFile), usecase.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, 3, res.Skipped)

	var dms int64
	var gflops, timeErr float64
	require.NoError(t, f.db.QueryRow(`SELECT "DMs", "GFLOPs", "time_err" FROM "hd7970" WHERE "id" = 2`).
		Scan(&dms, &gflops, &timeErr))
	assert.Equal(t, int64(256), dms)
	assert.Equal(t, 80.25, gflops)
	assert.Equal(t, 0.0002, timeErr)

	_, err = f.tables.LoadFile(ctx, "hd7970", filepath.Join(t.TempDir(), "absent.txt"), usecase.LoadOptions{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSchemaUseCase_LoadFileZstdWithProgress(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()
	_, err := f.tables.CreateTable(ctx, "hd7970", schema.VariantOpenCL)
	require.NoError(t, err)

	var compressed bytes.Buffer
	enc, err := zstd.NewWriter(&compressed)
	require.NoError(t, err)
	_, err = enc.Write([]byte(openclFile))
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	var progress bytes.Buffer
	path := writeFile(t, "hd7970.txt.zst", compressed.String())
	res, err := f.tables.LoadFile(ctx, "hd7970", path, usecase.LoadOptions{Progress: &progress})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows)
	assert.NotZero(t, progress.Len())

	var count int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM "hd7970"`).Scan(&count))
	assert.Equal(t, 3, count)
}

func TestSchemaUseCase_LoadStopsAtMalformedLine(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()
	v, err := f.tables.CreateTable(ctx, "hd7970", schema.VariantOpenCL)
	require.NoError(t, err)

	input := strings.Join([]string{
		"256 32 2 4 4 95.4 1.2 0.0021 0.0001",
		"# comment",
		"256 32 2 4 95.4 1.2 0.0021 0.0001",
		"512 32 4 4 2 101 1.5 0.0039 0.0001",
	}, "\n")

	res, err := f.tables.Load(ctx, "hd7970", v, strings.NewReader(input))
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrMalformedLine)
	assert.Contains(t, err.Error(), "line 3")
	assert.Equal(t, 1, res.Rows)

	var count int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM "hd7970"`).Scan(&count))
	assert.Equal(t, 1, count, "rows before the bad line are kept")

	_, err = f.tables.Load(ctx, "hd7970", v, strings.NewReader("256 32 2 4 4 -1 1.2 0.0021 0.0001"))
	assert.ErrorIs(t, err, schema.ErrMalformedLine)
}
