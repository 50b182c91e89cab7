// Package kv exposes buckets of a key/value store as lazy, partitioned
// collections that can be narrowed by secondary index range, by key set, or
// read in full.
package kv

import (
	"reflect"

	"github.com/datazip-inc/kvrdd/constants"
	"github.com/datazip-inc/kvrdd/pkg/kv/store"
)

type Connector struct {
	store      store.Store
	partitions int
	reader     ValueReader
}

type Option func(*Connector)

// WithPartitions sets how many partitions each query is split into
func WithPartitions(n int) Option {
	return func(c *Connector) {
		if n > 0 {
			c.partitions = n
		}
	}
}

// WithReader replaces the DefaultReader used to decode stored values
func WithReader(reader ValueReader) Option {
	return func(c *Connector) {
		if reader != nil {
			c.reader = reader
		}
	}
}

func NewConnector(s store.Store, opts ...Option) *Connector {
	c := &Connector{
		store:      s,
		partitions: constants.DefaultPartitionCount,
		reader:     DefaultReader{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bucket returns a collection over every object of bucket, decoded into elemType
func (c *Connector) Bucket(bucket string, elemType reflect.Type) *RDD {
	return newRDD(c.store, bucket, elemType, c.reader, c.partitions)
}

func (c *Connector) Store() store.Store {
	return c.store
}

func (c *Connector) Close() error {
	return c.store.Close()
}
