//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/datazip-inc/kvrdd/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every backend shares against s
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	for _, obj := range []types.Object{
		{Bucket: "users", Key: "u1", ContentType: "application/json", Value: []byte(`{"name":"ann"}`), Indexes: map[string]int64{"age": 17}},
		{Bucket: "users", Key: "u2", ContentType: "application/json", Value: []byte(`{"name":"bob"}`), Indexes: map[string]int64{"age": 18, "score": 3}},
		{Bucket: "users", Key: "u3", ContentType: "application/json", Value: []byte(`{"name":"cid"}`), Indexes: map[string]int64{"age": 65}},
	} {
		require.NoError(t, s.Put(ctx, obj))
	}

	var ranged []types.Object
	require.NoError(t, s.IndexRange(ctx, "users", "age", 18, 65, func(obj types.Object) error {
		ranged = append(ranged, obj)
		return nil
	}))
	require.Len(t, ranged, 2)
	assert.Equal(t, "u2", ranged[0].Key)
	assert.Equal(t, map[string]int64{"age": 18, "score": 3}, ranged[0].Indexes)
	assert.Equal(t, "u3", ranged[1].Key)

	var fetched []string
	require.NoError(t, s.Fetch(ctx, "users", []string{"u3", "missing", "u3", "u1"}, func(obj types.Object) error {
		fetched = append(fetched, obj.Key)
		return nil
	}))
	assert.Equal(t, []string{"u3", "u3", "u1"}, fetched)

	keys, err := s.ListKeys(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u3"}, keys)

	// overwrite replaces indexes
	require.NoError(t, s.Put(ctx, types.Object{Bucket: "users", Key: "u2", Value: []byte(`{}`), Indexes: map[string]int64{"age": 99}}))
	var moved []string
	require.NoError(t, s.IndexRange(ctx, "users", "score", 0, 10, func(obj types.Object) error {
		moved = append(moved, obj.Key)
		return nil
	}))
	assert.Empty(t, moved)
}
