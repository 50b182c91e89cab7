package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/datazip-inc/kvrdd/types"
	"github.com/datazip-inc/kvrdd/utils/logger"
	pq "github.com/parquet-go/parquet-go"
)

const parquetReadBatch = 1024

// ParquetParser reads files written by the parquet destination back into
// objects
type ParquetParser struct {
	// bucket overrides the bucket stored in each row when set
	bucket string
}

func NewParquetParser(bucket string) *ParquetParser {
	return &ParquetParser{bucket: bucket}
}

func (p *ParquetParser) StreamObjects(ctx context.Context, reader io.Reader, fn ObjectFn) error {
	readerAt, err := prepareParquetReader(reader)
	if err != nil {
		return err
	}

	rowReader := pq.NewGenericReader[types.Row](readerAt)
	defer rowReader.Close()

	rows := make([]types.Row, parquetReadBatch)
	recordCount := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := rowReader.Read(rows)
		for _, row := range rows[:n] {
			obj := row.ToObject()
			if p.bucket != "" {
				obj.Bucket = p.bucket
			}
			if cerr := fn(ctx, obj); cerr != nil {
				return fmt.Errorf("failed to process row %d: %s", recordCount, cerr)
			}
			recordCount++
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read parquet rows: %s", err)
		}
	}

	logger.Infof("processed %d rows from parquet file", recordCount)
	return nil
}

// prepareParquetReader returns a ReaderAt over reader, buffering it in memory
// when it does not support random access
func prepareParquetReader(reader io.Reader) (io.ReaderAt, error) {
	if readerAt, ok := reader.(io.ReaderAt); ok {
		return readerAt, nil
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file: %s", err)
	}
	return bytes.NewReader(data), nil
}
