package kv

import (
	"context"
	"fmt"
	"reflect"

	"github.com/datazip-inc/kvrdd/pkg/kv/store"
	"github.com/datazip-inc/kvrdd/pkg/rdd"
	"github.com/datazip-inc/kvrdd/types"
	"github.com/datazip-inc/kvrdd/utils"
	"github.com/datazip-inc/kvrdd/utils/logger"
	"github.com/mitchellh/hashstructure"
)

// RDD is a lazy collection over one bucket. Query methods never touch the
// store; they return a new RDD recording the query, and reading happens when
// the collection is materialised through package rdd.
type RDD struct {
	id         string
	store      store.Store
	bucket     string
	query      types.Query
	elemType   reflect.Type
	reader     ValueReader
	partitions int
}

var _ rdd.RDD = (*RDD)(nil)

func newRDD(s store.Store, bucket string, elemType reflect.Type, reader ValueReader, partitions int) *RDD {
	return &RDD{
		id:         utils.ULID(),
		store:      s,
		bucket:     bucket,
		query:      types.Query{Kind: types.QueryAllKind},
		elemType:   elemType,
		reader:     reader,
		partitions: partitions,
	}
}

func (r *RDD) ID() string {
	return r.id
}

func (r *RDD) ElemType() reflect.Type {
	return r.elemType
}

func (r *RDD) Bucket() string {
	return r.bucket
}

// Query returns a copy of the recorded query
func (r *RDD) Query() types.Query {
	query := r.query
	if query.Keys != nil {
		query.Keys = utils.Seq(r.query.Keys...)
	}
	return query
}

// Fingerprint identifies the bucket and query independently of the RDD id
func (r *RDD) Fingerprint() uint64 {
	hash, err := hashstructure.Hash(struct {
		Bucket string
		Query  types.Query
	}{Bucket: r.bucket, Query: r.query}, nil)
	if err != nil {
		logger.Warnf("rdd[%s]: failed to hash query: %s", r.id, err)
		return 0
	}
	return hash
}

// Query2iRange selects objects whose integer index lies in [from, to]
func (r *RDD) Query2iRange(index string, from, to int64) *RDD {
	return r.derive(types.Query{Kind: types.Query2iRangeKind, Index: index, From: from, To: to})
}

// QueryBucketKeys selects the given keys, in order, keeping duplicates
func (r *RDD) QueryBucketKeys(keys []string) *RDD {
	return r.derive(types.Query{Kind: types.QueryBucketKeysKind, Keys: utils.Seq(keys...)})
}

// QueryAll selects every object of the bucket
func (r *RDD) QueryAll() *RDD {
	return r.derive(types.Query{Kind: types.QueryAllKind})
}

func (r *RDD) derive(query types.Query) *RDD {
	derived := *r
	derived.id = utils.ULID()
	derived.query = query
	logger.Debugf("rdd[%s]: derived rdd[%s] on bucket[%s] with query %s", r.id, derived.id, r.bucket, query)
	return &derived
}

func (r *RDD) Partitions(ctx context.Context) ([]rdd.Partition, error) {
	switch r.query.Kind {
	case types.Query2iRangeKind:
		return splitRange(r.query.Index, r.query.From, r.query.To, r.partitions), nil
	case types.QueryBucketKeysKind:
		return keyPartitions(utils.Chunk(r.query.Keys, r.partitions)), nil
	case types.QueryAllKind:
		keys, err := r.store.ListKeys(ctx, r.bucket)
		if err != nil {
			return nil, err
		}
		return keyPartitions(utils.Chunk(keys, r.partitions)), nil
	default:
		return nil, fmt.Errorf("rdd[%s]: unsupported query kind[%s]", r.id, r.query.Kind)
	}
}

func (r *RDD) Compute(ctx context.Context, partition rdd.Partition, emit rdd.EmitFn) error {
	read := func(obj types.Object) error {
		value, err := r.reader.ReadValue(r.elemType, obj)
		if err != nil {
			return err
		}
		if err := rdd.CheckElem(r, value); err != nil {
			return err
		}
		return emit(value)
	}

	logger.Debugf("rdd[%s]: computing partition %s", r.id, partition)
	switch p := partition.(type) {
	case rangePartition:
		return r.store.IndexRange(ctx, r.bucket, p.index, p.from, p.to, read)
	case keysPartition:
		return r.store.Fetch(ctx, r.bucket, p.keys, read)
	default:
		return fmt.Errorf("rdd[%s]: unsupported partition type %T", r.id, partition)
	}
}
