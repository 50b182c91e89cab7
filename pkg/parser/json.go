package parser

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"unicode"

	"github.com/datazip-inc/kvrdd/utils/logger"
	"github.com/goccy/go-json"
)

// JSONParser reads json lines, a json array of objects or a single object
type JSONParser struct {
	mapping *Mapping
}

func NewJSONParser(mapping *Mapping) *JSONParser {
	return &JSONParser{mapping: mapping}
}

func (p *JSONParser) StreamObjects(ctx context.Context, reader io.Reader, fn ObjectFn) error {
	return p.StreamRecords(ctx, reader, func(ctx context.Context, record map[string]any) error {
		obj, err := p.mapping.Object(record)
		if err != nil {
			return err
		}
		return fn(ctx, obj)
	})
}

// StreamRecords decodes records one at a time; numbers are kept as
// json.Number so integer indexes do not pass through float64
func (p *JSONParser) StreamRecords(ctx context.Context, reader io.Reader, callback RecordCallback) error {
	buffered := bufio.NewReader(reader)
	first, err := firstNonSpace(buffered)
	if err == io.EOF {
		logger.Warn("empty json file")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read json file: %s", err)
	}

	decoder := json.NewDecoder(buffered)
	decoder.UseNumber()

	recordCount := 0
	next := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var record map[string]any
		if err := decoder.Decode(&record); err != nil {
			return err
		}
		if err := callback(ctx, record); err != nil {
			return fmt.Errorf("failed to process record %d: %s", recordCount, err)
		}
		recordCount++
		return nil
	}

	switch first {
	case '[':
		if _, err := decoder.Token(); err != nil {
			return fmt.Errorf("failed to read json array start: %s", err)
		}
		for decoder.More() {
			if err := next(); err != nil {
				return err
			}
		}
	case '{':
		for {
			err := next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("invalid json format: expected '[' or '{', got '%c'", first)
	}

	logger.Infof("processed %d records from json file", recordCount)
	return nil
}

func firstNonSpace(reader *bufio.Reader) (rune, error) {
	for {
		r, _, err := reader.ReadRune()
		if err != nil {
			return 0, err
		}
		if !unicode.IsSpace(r) {
			return r, reader.UnreadRune()
		}
	}
}
