package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeq(t *testing.T) {
	empty := Seq[string]()
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	in := []string{"b", "a", "b"}
	out := Seq(in...)
	assert.Equal(t, []string{"b", "a", "b"}, out)

	out[0] = "z"
	assert.Equal(t, "b", in[0], "Seq copies its arguments")
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name string
		set  []int
		n    int
		want [][]int
	}{
		{name: "empty", set: nil, n: 3, want: nil},
		{name: "even", set: []int{1, 2, 3, 4}, n: 2, want: [][]int{{1, 2}, {3, 4}}},
		{name: "remainder goes first", set: []int{1, 2, 3, 4, 5}, n: 3, want: [][]int{{1, 2}, {3, 4}, {5}}},
		{name: "more chunks than elements", set: []int{1, 2}, n: 8, want: [][]int{{1}, {2}}},
		{name: "non positive n", set: []int{1, 2}, n: 0, want: [][]int{{1, 2}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Chunk(tc.set, tc.n))
		})
	}
}

func TestUnmarshalInnerMaps(t *testing.T) {
	type target struct {
		Name  string         `json:"name"`
		Inner map[string]int `json:"inner"`
	}

	var out target
	err := Unmarshal(map[string]any{
		"name":  "kv",
		"inner": map[any]any{"a": 1, 2: 3},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, target{Name: "kv", Inner: map[string]int{"a": 1, "2": 3}}, out)
}

func TestULID(t *testing.T) {
	first, second := ULID(), ULID()
	assert.Len(t, first, 26)
	assert.NotEqual(t, first, second)
	assert.Less(t, first, second, "monotonic within a process")
}

func TestConcurrentInGroup(t *testing.T) {
	t.Run("runs every element", func(t *testing.T) {
		var sum atomic.Int64
		group := NewCGroupWithLimit(context.Background(), 2)
		ConcurrentInGroup(group, []int64{1, 2, 3, 4}, func(_ context.Context, elem int64, _ int) error {
			sum.Add(elem)
			return nil
		})
		require.NoError(t, group.Block())
		assert.Equal(t, int64(10), sum.Load())
	})

	t.Run("first error cancels the context", func(t *testing.T) {
		boom := errors.New("boom")
		group := NewCGroupWithLimit(context.Background(), 1)
		ConcurrentInGroup(group, []int{0, 1, 2}, func(_ context.Context, _ int, idx int) error {
			if idx == 0 {
				return boom
			}
			return nil
		})
		assert.ErrorIs(t, group.Block(), boom)
		assert.Error(t, group.Ctx().Err())
	})
}
