package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/datazip-inc/kvrdd/constants"
	"github.com/datazip-inc/kvrdd/pkg/kv/store"
	"github.com/datazip-inc/kvrdd/types"
	"github.com/datazip-inc/kvrdd/utils"
)

// Config is the file passed with --config
type Config struct {
	Store      *store.Config `json:"store" validate:"required"`
	MaxThreads int           `json:"max_threads" validate:"gte=0"`
	Partitions int           `json:"partitions" validate:"gte=0"`
}

func (c *Config) Validate() error {
	if err := utils.Validate(c); err != nil {
		return err
	}
	return c.Store.Validate()
}

func loadConfig(path string) (*Config, error) {
	if path == "" || path == "not-set" {
		return nil, fmt.Errorf("--config not passed")
	}
	config := &Config{}
	if err := utils.UnmarshalFile(path, config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config[%s]: %s", path, err)
	}
	return config, nil
}

// loadWriterConfig reads the --destination file, falling back to json lines on
// stdout when none was passed
func loadWriterConfig(path string) (*types.WriterConfig, error) {
	if path == "" || path == "not-set" {
		return &types.WriterConfig{Type: constants.JSON}, nil
	}
	config := &types.WriterConfig{}
	if err := utils.UnmarshalFile(path, config); err != nil {
		return nil, err
	}
	return config, nil
}

// parseIndexes turns name=value pairs into an index map
func parseIndexes(pairs []string) (map[string]int64, error) {
	indexes := make(map[string]int64, len(pairs))
	for _, pair := range pairs {
		name, raw, found := strings.Cut(pair, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("invalid index[%s], expected name=value", pair)
		}
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for index[%s]: %s", name, err)
		}
		indexes[name] = value
	}
	return indexes, nil
}
