package store

import (
	"context"
	"errors"
	"testing"

	"github.com/datazip-inc/kvrdd/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	objects := []types.Object{
		{Bucket: "users", Key: "u1", Value: []byte(`{"name":"ann"}`), Indexes: map[string]int64{"age": 17}},
		{Bucket: "users", Key: "u2", Value: []byte(`{"name":"bob"}`), Indexes: map[string]int64{"age": 18}},
		{Bucket: "users", Key: "u3", Value: []byte(`{"name":"cid"}`), Indexes: map[string]int64{"age": 40}},
		{Bucket: "users", Key: "u4", Value: []byte(`{"name":"dee"}`), Indexes: map[string]int64{"age": 65}},
		{Bucket: "users", Key: "u5", Value: []byte(`{"name":"eve"}`)},
		{Bucket: "orders", Key: "o1", Value: []byte(`{}`), Indexes: map[string]int64{"age": 30}},
	}
	for _, obj := range objects {
		require.NoError(t, m.Put(context.Background(), obj))
	}
	return m
}

func collectKeys(t *testing.T, read func(fn ObjectFn) error) []string {
	t.Helper()
	keys := []string{}
	require.NoError(t, read(func(obj types.Object) error {
		keys = append(keys, obj.Key)
		return nil
	}))
	return keys
}

func TestMemoryIndexRange(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		index    string
		from, to int64
		expected []string
	}{
		{name: "inclusive bounds", index: "age", from: 18, to: 65, expected: []string{"u2", "u3", "u4"}},
		{name: "single value", index: "age", from: 40, to: 40, expected: []string{"u3"}},
		{name: "empty range", index: "age", from: 66, to: 100, expected: []string{}},
		{name: "inverted bounds", index: "age", from: 65, to: 18, expected: []string{}},
		{name: "unknown index", index: "height", from: 0, to: 100, expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := collectKeys(t, func(fn ObjectFn) error {
				return m.IndexRange(ctx, "users", tt.index, tt.from, tt.to, fn)
			})
			assert.Equal(t, tt.expected, keys)
		})
	}
}

func TestMemoryIndexRangeRejectsInvalidIndexName(t *testing.T) {
	m := seedMemory(t)
	err := m.IndexRange(context.Background(), "users", "age; drop", 0, 1, func(types.Object) error { return nil })
	assert.ErrorContains(t, err, "invalid index name")
}

func TestMemoryFetch(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		keys     []string
		expected []string
	}{
		{name: "request order", keys: []string{"u3", "u1"}, expected: []string{"u3", "u1"}},
		{name: "duplicates are read again", keys: []string{"u2", "u2", "u1"}, expected: []string{"u2", "u2", "u1"}},
		{name: "missing keys are skipped", keys: []string{"nope", "u5"}, expected: []string{"u5"}},
		{name: "no keys", keys: []string{}, expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := collectKeys(t, func(fn ObjectFn) error {
				return m.Fetch(ctx, "users", tt.keys, fn)
			})
			assert.Equal(t, tt.expected, keys)
		})
	}
}

func TestMemoryListKeys(t *testing.T) {
	m := seedMemory(t)

	keys, err := m.ListKeys(context.Background(), "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u3", "u4", "u5"}, keys)

	keys, err = m.ListKeys(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryPutCopiesValue(t *testing.T) {
	m := NewMemory()
	value := []byte("original")
	require.NoError(t, m.Put(context.Background(), types.Object{Bucket: "b", Key: "k", Value: value}))
	value[0] = 'X'

	var stored types.Object
	require.NoError(t, m.Fetch(context.Background(), "b", []string{"k"}, func(obj types.Object) error {
		stored = obj
		return nil
	}))
	assert.Equal(t, "original", string(stored.Value))
}

func TestMemoryCallbackErrorStopsRead(t *testing.T) {
	m := seedMemory(t)
	errStop := errors.New("stop")
	calls := 0
	err := m.IndexRange(context.Background(), "users", "age", 0, 100, func(types.Object) error {
		calls++
		return errStop
	})
	assert.ErrorIs(t, err, errStop)
	assert.Equal(t, 1, calls)
}
