package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/schollz/progressbar/v3"

	"github.com/whhaicheng/dedisp-tunedb/internal/domain/schema"
)

// SchemaUseCase creates, drops, lists and loads results tables.
type SchemaUseCase struct {
	tables         TableRepository
	defaultVariant *schema.Variant
}

// NewSchemaUseCase creates a new schema use case. defaultVariant is used for
// create without a variant and for tables missing from the catalog.
func NewSchemaUseCase(tables TableRepository, defaultVariant *schema.Variant) *SchemaUseCase {
	return &SchemaUseCase{tables: tables, defaultVariant: defaultVariant}
}

// CreateTable creates a table of the named variant, or of the default variant when name is empty.
func (uc *SchemaUseCase) CreateTable(ctx context.Context, table, variantName string) (*schema.Variant, error) {
	v := uc.defaultVariant
	if variantName != "" {
		var err error
		if v, err = schema.Lookup(variantName); err != nil {
			return nil, err
		}
	}

	if err := uc.tables.Create(ctx, table, v); err != nil {
		return nil, err
	}
	return v, nil
}

// DeleteTable drops a table.
func (uc *SchemaUseCase) DeleteTable(ctx context.Context, table string) error {
	return uc.tables.Drop(ctx, table)
}

// ListTables returns all results tables.
func (uc *SchemaUseCase) ListTables(ctx context.Context) ([]string, error) {
	return uc.tables.List(ctx)
}

// ResolveVariant returns the variant of table: the catalog entry or the default.
func (uc *SchemaUseCase) ResolveVariant(ctx context.Context, table string) (*schema.Variant, error) {
	v, ok, err := uc.tables.Variant(ctx, table)
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.Debug("Schema: Table not in catalog, using default variant",
			"op", "resolve_variant", "table", table, "variant", uc.defaultVariant.Name)
		return uc.defaultVariant, nil
	}
	return v, nil
}

// LoadOptions controls LoadFile.
type LoadOptions struct {
	// Progress receives a progress bar when not nil.
	Progress io.Writer
}

// LoadResult reports what a load did.
type LoadResult struct {
	Rows    int `json:"rows"`
	Skipped int `json:"skipped"`
}

// LoadFile appends the records of a result file to table.
// Files ending in .zst are decompressed on the fly.
func (uc *SchemaUseCase) LoadFile(ctx context.Context, table, path string, opts LoadOptions) (LoadResult, error) {
	v, err := uc.ResolveVariant(ctx, table)
	if err != nil {
		return LoadResult{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return LoadResult{}, fmt.Errorf("open result file: %w", err)
	}
	defer f.Close()

	var src io.Reader = f
	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		info, err := f.Stat()
		if err != nil {
			return LoadResult{}, fmt.Errorf("stat result file: %w", err)
		}
		bar = progressbar.NewOptions64(info.Size(),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription("loading "+filepath.Base(path)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		src = io.TeeReader(f, bar)
	}

	if strings.EqualFold(filepath.Ext(path), ".zst") {
		decoder, err := zstd.NewReader(src)
		if err != nil {
			return LoadResult{}, fmt.Errorf("create zstd decoder: %w", err)
		}
		defer decoder.Close()
		src = decoder
	}

	res, err := uc.Load(ctx, table, v, src)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return res, fmt.Errorf("load %s: %w", path, err)
	}

	slog.Info("Schema: Loaded result file", "op", "load", "table", table, "file", path,
		"rows", res.Rows, "skipped", res.Skipped)
	return res, nil
}

// Load inserts the records read from r, in order, into table.
// It stops at the first malformed line; rows inserted before it are kept.
func (uc *SchemaUseCase) Load(ctx context.Context, table string, v *schema.Variant, r io.Reader) (LoadResult, error) {
	ins, err := uc.tables.NewInserter(ctx, table, v)
	if err != nil {
		return LoadResult{}, err
	}
	defer ins.Close()

	reader := schema.NewRecordReader(r, v)
	var res LoadResult
	for {
		values, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Skipped = reader.Skipped()
			return res, err
		}
		if err := ins.Insert(ctx, values); err != nil {
			res.Skipped = reader.Skipped()
			return res, fmt.Errorf("line %d: %w", reader.Line(), err)
		}
		res.Rows++
	}
	res.Skipped = reader.Skipped()
	return res, nil
}
