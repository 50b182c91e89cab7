// Package rdd materialises lazy, partitioned collections. A collection only
// describes its partitions and how to compute each one; nothing is read until
// Collect, Count or Foreach runs it.
package rdd

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/datazip-inc/kvrdd/constants"
	"github.com/datazip-inc/kvrdd/utils"
	"github.com/datazip-inc/kvrdd/utils/logger"
)

// Partition is one independently computable slice of a collection
type Partition interface {
	Index() int
	String() string
}

// EmitFn receives computed elements; returning an error aborts the partition
type EmitFn = func(value any) error

// RDD is a lazy, partitioned collection whose elements are of ElemType
type RDD interface {
	ID() string
	ElemType() reflect.Type
	Partitions(ctx context.Context) ([]Partition, error)
	Compute(ctx context.Context, partition Partition, emit EmitFn) error
}

type options struct {
	maxThreads int
}

type Option func(*options)

// WithMaxThreads bounds how many partitions are computed at once
func WithMaxThreads(n int) Option {
	return func(o *options) {
		o.maxThreads = n
	}
}

func newOptions(opts []Option) *options {
	o := &options{maxThreads: constants.DefaultThreadCount}
	for _, opt := range opts {
		opt(o)
	}
	if o.maxThreads <= 0 {
		o.maxThreads = constants.DefaultThreadCount
	}
	return o
}

// run computes every partition of r on a bounded group through compute
func run(ctx context.Context, r RDD, o *options, compute func(ctx context.Context, partition Partition) error) ([]Partition, error) {
	partitions, err := r.Partitions(ctx)
	if err != nil {
		return nil, err
	}
	logger.Debugf("rdd[%s]: computing %d partitions with %d threads", r.ID(), len(partitions), o.maxThreads)

	group := utils.NewCGroupWithLimit(ctx, o.maxThreads)
	utils.ConcurrentInGroup(group, partitions, func(ctx context.Context, partition Partition, _ int) error {
		return compute(ctx, partition)
	})
	if err := group.Block(); err != nil {
		return nil, err
	}
	return partitions, nil
}

// Collect returns all elements of r, ordered by partition and then by the
// order in which each partition emitted them
func Collect(ctx context.Context, r RDD, opts ...Option) ([]any, error) {
	var mu sync.Mutex
	results := make(map[int][]any)

	partitions, err := run(ctx, r, newOptions(opts), func(ctx context.Context, partition Partition) error {
		var values []any
		err := r.Compute(ctx, partition, func(value any) error {
			values = append(values, value)
			return nil
		})
		if err != nil {
			return err
		}
		mu.Lock()
		results[partition.Index()] = values
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	collected := []any{}
	for _, partition := range partitions {
		collected = append(collected, results[partition.Index()]...)
	}
	logger.Debugf("rdd[%s]: collected %d elements", r.ID(), len(collected))
	return collected, nil
}

// Count returns the number of elements of r
func Count(ctx context.Context, r RDD, opts ...Option) (int64, error) {
	var count atomic.Int64
	_, err := run(ctx, r, newOptions(opts), func(ctx context.Context, partition Partition) error {
		return r.Compute(ctx, partition, func(_ any) error {
			count.Add(1)
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return count.Load(), nil
}

// Foreach calls fn for every element of r. fn runs on partition goroutines
// and must be safe for concurrent use.
func Foreach(ctx context.Context, r RDD, fn func(value any) error, opts ...Option) error {
	_, err := run(ctx, r, newOptions(opts), func(ctx context.Context, partition Partition) error {
		return r.Compute(ctx, partition, fn)
	})
	return err
}

// CheckElem verifies that value is assignable to the element type of r
func CheckElem(r RDD, value any) error {
	if value == nil {
		return nil
	}
	if !reflect.TypeOf(value).AssignableTo(r.ElemType()) {
		return fmt.Errorf("rdd[%s]: element of type %T is not assignable to %s", r.ID(), value, r.ElemType())
	}
	return nil
}
