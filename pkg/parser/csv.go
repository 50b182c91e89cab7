package parser

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/datazip-inc/kvrdd/utils/logger"
)

// CSVParser reads delimited text; every cell becomes a string field
type CSVParser struct {
	config  CSVConfig
	mapping *Mapping
}

func NewCSVParser(config CSVConfig, mapping *Mapping) *CSVParser {
	if config.Delimiter == "" {
		config.Delimiter = ","
	}
	return &CSVParser{config: config, mapping: mapping}
}

func (p *CSVParser) StreamObjects(ctx context.Context, reader io.Reader, fn ObjectFn) error {
	return p.StreamRecords(ctx, reader, func(ctx context.Context, record map[string]any) error {
		obj, err := p.mapping.Object(record)
		if err != nil {
			return err
		}
		return fn(ctx, obj)
	})
}

func (p *CSVParser) StreamRecords(ctx context.Context, reader io.Reader, callback RecordCallback) error {
	csvReader := csv.NewReader(reader)
	csvReader.Comma = []rune(p.config.Delimiter)[0]
	csvReader.FieldsPerRecord = -1

	for i := 0; i < p.config.SkipRows; i++ {
		if _, err := csvReader.Read(); err != nil {
			return fmt.Errorf("failed to skip row %d: %s", i, err)
		}
	}

	var headers []string
	if p.config.HasHeader {
		row, err := csvReader.Read()
		if err == io.EOF {
			logger.Warn("empty csv file")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read csv headers: %s", err)
		}
		for _, header := range row {
			headers = append(headers, strings.TrimSpace(header))
		}
	}

	recordCount := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read csv row %d: %s", recordCount, err)
		}

		record := make(map[string]any, len(row))
		for idx, value := range row {
			record[columnName(headers, idx)] = value
		}
		if err := callback(ctx, record); err != nil {
			return fmt.Errorf("failed to process record %d: %s", recordCount, err)
		}
		recordCount++
	}

	logger.Infof("processed %d records from csv file", recordCount)
	return nil
}

// columnName falls back to column_<idx> for files without a header and for
// cells past the last header
func columnName(headers []string, idx int) string {
	if idx < len(headers) && headers[idx] != "" {
		return headers[idx]
	}
	return fmt.Sprintf("column_%d", idx)
}
