// Package store holds the key/value backends a kv collection reads from.
// Every backend models buckets of keyed values with integer secondary indexes.
package store

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/datazip-inc/kvrdd/constants"
	"github.com/datazip-inc/kvrdd/types"
	"github.com/datazip-inc/kvrdd/utils"
	"github.com/datazip-inc/kvrdd/utils/backoff"
	"github.com/datazip-inc/kvrdd/utils/logger"
)

var indexNameRegex = regexp.MustCompile(constants.IndexNamePattern)

// ObjectFn receives objects read from a store; returning an error stops the read
type ObjectFn = func(obj types.Object) error

type Store interface {
	Type() constants.StoreType
	Ping(ctx context.Context) error
	Put(ctx context.Context, obj types.Object) error
	// IndexRange reads objects whose index value lies in [from, to]
	IndexRange(ctx context.Context, bucket, index string, from, to int64, fn ObjectFn) error
	// Fetch reads the given keys in request order; missing keys are skipped and
	// repeated keys are read again
	Fetch(ctx context.Context, bucket string, keys []string, fn ObjectFn) error
	// ListKeys returns every key of bucket in ascending order
	ListKeys(ctx context.Context, bucket string) ([]string, error)
	Close() error
}

type Config struct {
	Type       constants.StoreType `json:"type" validate:"required,oneof=memory postgres mongodb"`
	Postgres   *PostgresConfig     `json:"postgres,omitempty" validate:"required_if=Type postgres"`
	MongoDB    *MongoConfig        `json:"mongodb,omitempty" validate:"required_if=Type mongodb"`
	RetryCount int                 `json:"backoff_retry_count" validate:"gte=0"`
}

func (c *Config) Validate() error {
	return utils.Validate(c)
}

// Open validates config, connects the configured backend and pings it,
// retrying with backoff
func Open(ctx context.Context, config *Config) (Store, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %s", err)
	}

	retryCount := utils.Ternary(config.RetryCount == 0, constants.DefaultRetryCount, config.RetryCount).(int)

	var store Store
	err := backoff.Retry(ctx, retryCount, time.Second, func(ctx context.Context) error {
		opened, err := connect(ctx, config)
		if err != nil {
			logger.Warnf("failed to connect %s store, retrying: %s", config.Type, err)
			return err
		}
		if err := opened.Ping(ctx); err != nil {
			_ = opened.Close()
			logger.Warnf("failed to ping %s store, retrying: %s", config.Type, err)
			return err
		}
		store = opened
		return nil
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %s", config.Type, err)
	}

	logger.Infof("connected to %s store", config.Type)
	return store, nil
}

func connect(ctx context.Context, config *Config) (Store, error) {
	switch config.Type {
	case constants.Memory:
		return NewMemory(), nil
	case constants.Postgres:
		return NewPostgres(ctx, config.Postgres)
	case constants.MongoDB:
		return NewMongo(ctx, config.MongoDB)
	default:
		return nil, fmt.Errorf("unsupported store type[%s]", config.Type)
	}
}

func validateIndexName(index string) error {
	if !indexNameRegex.MatchString(index) {
		return fmt.Errorf("invalid index name[%s]", index)
	}
	return nil
}

// emitInOrder emits found objects following the requested key order
func emitInOrder(keys []string, found map[string]types.Object, fn ObjectFn) error {
	for _, key := range keys {
		obj, ok := found[key]
		if !ok {
			continue
		}
		if err := fn(obj); err != nil {
			return err
		}
	}
	return nil
}
