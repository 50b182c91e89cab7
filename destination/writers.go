package destination

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/datazip-inc/kvrdd/constants"
	"github.com/datazip-inc/kvrdd/types"
	"github.com/datazip-inc/kvrdd/utils"
	"github.com/datazip-inc/kvrdd/utils/logger"
	"github.com/goccy/go-json"
)

type NewFunc func() Writer

var RegisteredWriters = map[constants.DestinationType]NewFunc{
	constants.JSON: func() Writer {
		return NewJSONWriter(os.Stdout)
	},
}

// NewWriter builds the registered writer for config.Type, loads its settings
// and checks it
func NewWriter(ctx context.Context, config *types.WriterConfig) (Writer, error) {
	if err := utils.Validate(config); err != nil {
		return nil, fmt.Errorf("invalid destination config: %s", err)
	}
	newfunc, found := RegisteredWriters[config.Type]
	if !found {
		return nil, fmt.Errorf("invalid destination type has been passed [%s]", config.Type)
	}

	writer := newfunc()
	writerConfig := writer.GetConfigRef()
	if config.WriterConfig != nil {
		if err := utils.Unmarshal(config.WriterConfig, writerConfig); err != nil {
			return nil, err
		}
	}
	if err := writerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s destination config: %s", config.Type, err)
	}

	if err := writer.Check(ctx); err != nil {
		return nil, fmt.Errorf("failed to test destination: %s", err)
	}
	return writer, nil
}

type JSONConfig struct {
	Pretty bool `json:"pretty"`
}

func (c *JSONConfig) Validate() error {
	return utils.Validate(c)
}

// JSONWriter writes one json document per row
type JSONWriter struct {
	mu      sync.Mutex
	config  *JSONConfig
	out     io.Writer
	encoder *json.Encoder
	written int64
}

func NewJSONWriter(out io.Writer) *JSONWriter {
	return &JSONWriter{out: out, config: &JSONConfig{}}
}

func (j *JSONWriter) GetConfigRef() Config {
	return j.config
}

func (j *JSONWriter) Type() string {
	return string(constants.JSON)
}

func (j *JSONWriter) Check(_ context.Context) error {
	if j.out == nil {
		return fmt.Errorf("json writer has no output")
	}
	return nil
}

func (j *JSONWriter) Setup(_ context.Context, name string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.encoder = json.NewEncoder(j.out)
	if j.config.Pretty {
		j.encoder.SetIndent("", "  ")
	}
	j.written = 0
	logger.Debugf("json writer: writing result[%s]", name)
	return nil
}

func (j *JSONWriter) Write(ctx context.Context, rows []types.Row) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.encoder == nil {
		return fmt.Errorf("json writer used before setup")
	}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := j.encoder.Encode(row); err != nil {
			return fmt.Errorf("failed to encode row[%s/%s]: %s", row.Bucket, row.Key, err)
		}
		j.written++
	}
	return nil
}

func (j *JSONWriter) Close(_ context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	logger.Debugf("json writer: wrote %d rows", j.written)
	j.encoder = nil
	return nil
}
