// Package typed wraps type-erased kv collections in a generic RDD[T]. The
// wrapper carries a types.Witness[T] and hands the same witness to every
// collection derived from it, so the element type survives each query.
package typed

import (
	"context"
	"reflect"

	"github.com/datazip-inc/kvrdd/pkg/kv"
	"github.com/datazip-inc/kvrdd/pkg/rdd"
	"github.com/datazip-inc/kvrdd/types"
	"github.com/datazip-inc/kvrdd/utils"
)

// RDD is an immutable typed view of a *kv.RDD. Query methods return new
// values and leave the receiver untouched.
type RDD[T any] struct {
	handle  *kv.RDD
	witness types.Witness[T]
}

// New wraps handle, deriving the witness from descriptor. It fails only when
// the descriptor does not describe T.
func New[T any](handle *kv.RDD, descriptor reflect.Type) (*RDD[T], error) {
	witness, err := types.WitnessFromType[T](descriptor)
	if err != nil {
		return nil, err
	}
	return NewWithWitness(handle, witness), nil
}

// NewWithWitness wraps handle and witness as given
func NewWithWitness[T any](handle *kv.RDD, witness types.Witness[T]) *RDD[T] {
	return &RDD[T]{handle: handle, witness: witness}
}

// Bucket opens bucket through connector with T as the element type
func Bucket[T any](connector *kv.Connector, bucket string) *RDD[T] {
	witness := types.WitnessOf[T]()
	return NewWithWitness(connector.Bucket(bucket, witness.Type()), witness)
}

func (r *RDD[T]) Handle() *kv.RDD {
	return r.handle
}

func (r *RDD[T]) Witness() types.Witness[T] {
	return r.witness
}

func (r *RDD[T]) wrap(handle *kv.RDD) *RDD[T] {
	return NewWithWitness(handle, r.witness)
}

func (r *RDD[T]) Query2iRange(index string, from, to int64) *RDD[T] {
	return r.wrap(r.handle.Query2iRange(index, from, to))
}

func (r *RDD[T]) QueryBucketKeys(keys ...string) *RDD[T] {
	return r.wrap(r.handle.QueryBucketKeys(utils.Seq(keys...)))
}

func (r *RDD[T]) QueryAll() *RDD[T] {
	return r.wrap(r.handle.QueryAll())
}

// Collect materialises the collection. Errors from the store or the value
// reader are returned as raised.
func (r *RDD[T]) Collect(ctx context.Context, opts ...rdd.Option) ([]T, error) {
	values, err := rdd.Collect(ctx, r.handle, opts...)
	if err != nil {
		return nil, err
	}

	typed := make([]T, 0, len(values))
	for _, value := range values {
		elem, err := r.witness.Cast(value)
		if err != nil {
			return nil, err
		}
		typed = append(typed, elem)
	}
	return typed, nil
}

func (r *RDD[T]) Count(ctx context.Context, opts ...rdd.Option) (int64, error) {
	return rdd.Count(ctx, r.handle, opts...)
}

// Foreach calls fn for every element; fn runs concurrently across partitions
func (r *RDD[T]) Foreach(ctx context.Context, fn func(elem T) error, opts ...rdd.Option) error {
	return rdd.Foreach(ctx, r.handle, func(value any) error {
		elem, err := r.witness.Cast(value)
		if err != nil {
			return err
		}
		return fn(elem)
	}, opts...)
}
