package typed

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/datazip-inc/kvrdd/pkg/kv"
	"github.com/datazip-inc/kvrdd/pkg/kv/store"
	"github.com/datazip-inc/kvrdd/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rangeCall struct {
	bucket, index string
	from, to      int64
}

// spyStore records what the collection asks the store for
type spyStore struct {
	*store.Memory
	mu         sync.Mutex
	ranges     []rangeCall
	fetches    [][]string
	listed     int
	failOnRead error
}

func newSpyStore(t *testing.T) *spyStore {
	t.Helper()
	spy := &spyStore{Memory: store.NewMemory()}
	for _, obj := range []types.Object{
		{Bucket: "people", Key: "p1", Value: []byte("ann"), Indexes: map[string]int64{"age": 12}},
		{Bucket: "people", Key: "p2", Value: []byte("bob"), Indexes: map[string]int64{"age": 18}},
		{Bucket: "people", Key: "p3", Value: []byte("cid"), Indexes: map[string]int64{"age": 65}},
	} {
		require.NoError(t, spy.Put(context.Background(), obj))
	}
	return spy
}

func (s *spyStore) IndexRange(ctx context.Context, bucket, index string, from, to int64, fn store.ObjectFn) error {
	s.mu.Lock()
	s.ranges = append(s.ranges, rangeCall{bucket: bucket, index: index, from: from, to: to})
	s.mu.Unlock()
	if s.failOnRead != nil {
		return s.failOnRead
	}
	return s.Memory.IndexRange(ctx, bucket, index, from, to, fn)
}

func (s *spyStore) Fetch(ctx context.Context, bucket string, keys []string, fn store.ObjectFn) error {
	s.mu.Lock()
	s.fetches = append(s.fetches, keys)
	s.mu.Unlock()
	if s.failOnRead != nil {
		return s.failOnRead
	}
	return s.Memory.Fetch(ctx, bucket, keys, fn)
}

func (s *spyStore) ListKeys(ctx context.Context, bucket string) ([]string, error) {
	s.mu.Lock()
	s.listed++
	s.mu.Unlock()
	return s.Memory.ListKeys(ctx, bucket)
}

// a single partition keeps store calls equal to the query arguments
func newPeople(t *testing.T) (*RDD[string], *spyStore) {
	t.Helper()
	spy := newSpyStore(t)
	return Bucket[string](kv.NewConnector(spy, kv.WithPartitions(1)), "people"), spy
}

func TestWitnessPreservedAcrossQueries(t *testing.T) {
	people, _ := newPeople(t)

	derived := map[string]*RDD[string]{
		"2i range": people.Query2iRange("age", 18, 65),
		"keys":     people.QueryBucketKeys("p1", "p2"),
		"all":      people.QueryAll(),
		"chained":  people.QueryAll().Query2iRange("age", 0, 1).QueryBucketKeys("p3"),
	}
	for name, r := range derived {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, people.Witness(), r.Witness())
			assert.Equal(t, reflect.TypeFor[string](), r.Witness().Type())
			assert.Equal(t, r.Witness().Type(), r.Handle().ElemType())
		})
	}
}

func TestQueriesDoNotMutateReceiver(t *testing.T) {
	people, _ := newPeople(t)
	handle, witness, query := people.Handle(), people.Witness(), people.Handle().Query()

	people.Query2iRange("age", 18, 65)
	people.QueryBucketKeys("p1", "p1")
	people.QueryAll()

	assert.Same(t, handle, people.Handle())
	assert.Equal(t, witness, people.Witness())
	assert.Equal(t, query, people.Handle().Query())

	// the original stays usable
	all, err := people.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ann", "bob", "cid"}, all)
}

func TestQueryBucketKeysPassThrough(t *testing.T) {
	tests := []struct {
		name string
		keys []string
	}{
		{name: "zero keys", keys: []string{}},
		{name: "single key", keys: []string{"p2"}},
		{name: "order kept", keys: []string{"p3", "p1", "p2"}},
		{name: "duplicates kept", keys: []string{"p1", "p1", "p3", "p1"}},
		{name: "unknown keys kept", keys: []string{"nope", "p2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			people, _ := newPeople(t)
			keyed := people.QueryBucketKeys(tt.keys...)

			query := keyed.Handle().Query()
			assert.Equal(t, types.QueryBucketKeysKind, query.Kind)
			assert.NotNil(t, query.Keys)
			assert.Equal(t, tt.keys, query.Keys)
		})
	}
}

func TestQueryBucketKeysDoesNotAliasCallerSlice(t *testing.T) {
	people, _ := newPeople(t)
	keys := []string{"p1", "p2"}
	keyed := people.QueryBucketKeys(keys...)
	keys[0] = "p3"

	assert.Equal(t, []string{"p1", "p2"}, keyed.Handle().Query().Keys)
}

func TestEmptyKeyQueryForwardsEmptySequence(t *testing.T) {
	people, spy := newPeople(t)

	keyed := people.QueryBucketKeys()
	assert.Equal(t, []string{}, keyed.Handle().Query().Keys)

	values, err := keyed.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, values)
	assert.Empty(t, spy.fetches)
	assert.Zero(t, spy.listed)
}

func TestConstructorEquivalence(t *testing.T) {
	people, _ := newPeople(t)
	descriptor := reflect.TypeFor[string]()

	fromDescriptor, err := New[string](people.Handle(), descriptor)
	require.NoError(t, err)

	witness, err := types.WitnessFromType[string](descriptor)
	require.NoError(t, err)
	fromWitness := NewWithWitness(people.Handle(), witness)

	assert.Same(t, fromWitness.Handle(), fromDescriptor.Handle())
	assert.Equal(t, fromWitness.Witness(), fromDescriptor.Witness())
	assert.Equal(t, descriptor, fromDescriptor.Witness().Type())
}

func TestNewPropagatesWitnessError(t *testing.T) {
	people, _ := newPeople(t)

	r, err := New[string](people.Handle(), reflect.TypeFor[int]())
	require.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "does not match witness type string")
}

func TestRangeQueryDelegatesArguments(t *testing.T) {
	people, spy := newPeople(t)

	adults := people.Query2iRange("age", 18, 65)
	assert.Equal(t, people.Witness(), adults.Witness())
	assert.Equal(t, types.Query{Kind: types.Query2iRangeKind, Index: "age", From: 18, To: 65}, adults.Handle().Query())

	values, err := adults.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "cid"}, values)
	assert.Equal(t, []rangeCall{{bucket: "people", index: "age", from: 18, to: 65}}, spy.ranges)
}

func TestQueryAllTwiceYieldsIndependentHandles(t *testing.T) {
	people, _ := newPeople(t)

	first, second := people.QueryAll(), people.QueryAll()
	assert.NotSame(t, first.Handle(), second.Handle())
	assert.NotEqual(t, first.Handle().ID(), second.Handle().ID())
	assert.Equal(t, people.Witness(), first.Witness())
	assert.Equal(t, people.Witness(), second.Witness())
	assert.Equal(t, first.Handle().Fingerprint(), second.Handle().Fingerprint())
}

func TestMaterialisationErrorsPassThrough(t *testing.T) {
	people, spy := newPeople(t)
	spy.failOnRead = errors.New("connection reset by peer")

	_, err := people.Query2iRange("age", 0, 100).Collect(context.Background())
	assert.Same(t, spy.failOnRead, err)

	_, err = people.QueryBucketKeys("p1").Count(context.Background())
	assert.Same(t, spy.failOnRead, err)
}

func TestCountAndForeach(t *testing.T) {
	people, _ := newPeople(t)

	count, err := people.QueryBucketKeys("p1", "p2", "p2").Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	var (
		mu   sync.Mutex
		seen []string
	)
	err = people.Query2iRange("age", 10, 20).Foreach(context.Background(), func(name string) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, name)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ann", "bob"}, seen)
}

type person struct {
	Name string `json:"name"`
}

func TestStructElements(t *testing.T) {
	memory := store.NewMemory()
	require.NoError(t, memory.Put(context.Background(), types.Object{Bucket: "people", Key: "p1", Value: []byte(`{"name":"ann"}`)}))

	people := Bucket[person](kv.NewConnector(memory), "people")
	values, err := people.QueryBucketKeys("p1").Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []person{{Name: "ann"}}, values)
}

func TestMismatchedHandleFailsOnCollect(t *testing.T) {
	people, _ := newPeople(t)

	// the handle decodes strings; a witness for another type is only caught on read
	mismatched := NewWithWitness(people.Handle(), types.WitnessOf[person]())
	_, err := mismatched.Collect(context.Background())
	assert.ErrorContains(t, err, "is not of witness type")
}
