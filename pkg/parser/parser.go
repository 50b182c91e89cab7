// Package parser reads files of records and turns them into objects that can
// be stored in a bucket.
package parser

import (
	"context"
	"fmt"
	"io"

	"github.com/datazip-inc/kvrdd/types"
	"github.com/datazip-inc/kvrdd/utils"
)

type Format string

const (
	JSON    Format = "json"
	CSV     Format = "csv"
	Parquet Format = "parquet"
)

// Parser streams the objects found in a file
type Parser interface {
	// StreamObjects calls fn for every object in reader, in file order.
	// Returning an error from fn stops the read.
	StreamObjects(ctx context.Context, reader io.Reader, fn ObjectFn) error
}

type ObjectFn func(ctx context.Context, obj types.Object) error

// RecordCallback is called for each decoded record of a json or csv file
type RecordCallback func(ctx context.Context, record map[string]any) error

type Config struct {
	Format Format `json:"format" validate:"required,oneof=json csv parquet"`
	// Bucket every object is stored in; parquet exports keep their own bucket
	// when empty
	Bucket string `json:"bucket" validate:"required_unless=Format parquet"`
	// KeyField names the record field holding the object key
	KeyField string `json:"key_field" validate:"required_unless=Format parquet"`
	// IndexFields are record fields stored as integer secondary indexes
	IndexFields []string  `json:"index_fields"`
	CSV         CSVConfig `json:"csv"`
}

// CSVConfig holds CSV-specific parsing configuration
type CSVConfig struct {
	Delimiter string `json:"delimiter"` // Default: ","
	HasHeader bool   `json:"has_header"`
	SkipRows  int    `json:"skip_rows" validate:"gte=0"`
}

func (c *Config) Validate() error {
	return utils.Validate(c)
}

func New(config Config) (Parser, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid parser config: %s", err)
	}

	mapping := &Mapping{Bucket: config.Bucket, KeyField: config.KeyField, IndexFields: config.IndexFields}
	switch config.Format {
	case JSON:
		return NewJSONParser(mapping), nil
	case CSV:
		return NewCSVParser(config.CSV, mapping), nil
	default:
		return NewParquetParser(config.Bucket), nil
	}
}
