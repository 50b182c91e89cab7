package store

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/datazip-inc/kvrdd/constants"
	"github.com/datazip-inc/kvrdd/types"
)

// Memory keeps buckets in process memory
type Memory struct {
	mu      sync.RWMutex
	buckets map[string]map[string]types.Object
}

func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]map[string]types.Object)}
}

func (m *Memory) Type() constants.StoreType {
	return constants.Memory
}

func (m *Memory) Ping(_ context.Context) error {
	return nil
}

func (m *Memory) Put(_ context.Context, obj types.Object) error {
	for index := range obj.Indexes {
		if err := validateIndexName(index); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.buckets[obj.Bucket]
	if !ok {
		bucket = make(map[string]types.Object)
		m.buckets[obj.Bucket] = bucket
	}
	obj.Value = slices.Clone(obj.Value)
	obj.Indexes = maps.Clone(obj.Indexes)
	bucket[obj.Key] = obj
	return nil
}

func (m *Memory) IndexRange(ctx context.Context, bucket, index string, from, to int64, fn ObjectFn) error {
	if err := validateIndexName(index); err != nil {
		return err
	}

	m.mu.RLock()
	var matched []types.Object
	for _, obj := range m.buckets[bucket] {
		if value, ok := obj.Indexes[index]; ok && value >= from && value <= to {
			matched = append(matched, obj)
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(matched, func(a, b types.Object) int {
		return cmp.Or(cmp.Compare(a.Indexes[index], b.Indexes[index]), cmp.Compare(a.Key, b.Key))
	})

	for _, obj := range matched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(obj); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Fetch(ctx context.Context, bucket string, keys []string, fn ObjectFn) error {
	m.mu.RLock()
	found := make(map[string]types.Object, len(keys))
	for _, key := range keys {
		if obj, ok := m.buckets[bucket][key]; ok {
			found[key] = obj
		}
	}
	m.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return emitInOrder(keys, found, fn)
}

func (m *Memory) ListKeys(_ context.Context, bucket string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := slices.Collect(maps.Keys(m.buckets[bucket]))
	slices.Sort(keys)
	return keys, nil
}

func (m *Memory) Close() error {
	return nil
}
