package protocol

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/datazip-inc/kvrdd/constants"
	"github.com/datazip-inc/kvrdd/pkg/kv"
	"github.com/datazip-inc/kvrdd/pkg/kv/store"
	"github.com/datazip-inc/kvrdd/pkg/kv/typed"
	"github.com/datazip-inc/kvrdd/pkg/parser"
	"github.com/datazip-inc/kvrdd/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseIndexes(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]int64
		wantErr string
	}{
		{name: "none", pairs: nil, want: map[string]int64{}},
		{name: "several", pairs: []string{"age=42", "score=-7"}, want: map[string]int64{"age": 42, "score": -7}},
		{name: "last wins", pairs: []string{"age=1", "age=2"}, want: map[string]int64{"age": 2}},
		{name: "missing separator", pairs: []string{"age"}, wantErr: "expected name=value"},
		{name: "missing name", pairs: []string{"=3"}, wantErr: "expected name=value"},
		{name: "not an integer", pairs: []string{"age=old"}, wantErr: "invalid value for index[age]"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseIndexes(tc.pairs)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("not passed", func(t *testing.T) {
		_, err := loadConfig("not-set")
		assert.ErrorContains(t, err, "--config not passed")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadConfig(filepath.Join(t.TempDir(), "absent.json"))
		assert.ErrorContains(t, err, "does not exist")
	})

	t.Run("store required", func(t *testing.T) {
		_, err := loadConfig(writeFile(t, "config.json", `{"max_threads": 2}`))
		assert.ErrorContains(t, err, "store")
	})

	t.Run("invalid store", func(t *testing.T) {
		_, err := loadConfig(writeFile(t, "config.json", `{"store": {"type": "riak"}}`))
		assert.ErrorContains(t, err, "type")
	})

	t.Run("memory store", func(t *testing.T) {
		loaded, err := loadConfig(writeFile(t, "config.json", `{"store": {"type": "memory"}, "max_threads": 4, "partitions": 2}`))
		require.NoError(t, err)
		assert.Equal(t, constants.Memory, loaded.Store.Type)
		assert.Equal(t, 4, loaded.MaxThreads)
		assert.Equal(t, 2, loaded.Partitions)
	})
}

func TestLoadWriterConfig(t *testing.T) {
	defaults, err := loadWriterConfig("not-set")
	require.NoError(t, err)
	assert.Equal(t, constants.JSON, defaults.Type)

	loaded, err := loadWriterConfig(writeFile(t, "destination.json", `{"type": "parquet", "writer": {"local_path": "/tmp/out"}}`))
	require.NoError(t, err)
	assert.Equal(t, constants.Parquet, loaded.Type)
	assert.Equal(t, map[string]any{"local_path": "/tmp/out"}, loaded.WriterConfig)
}

func TestResolvedSettings(t *testing.T) {
	t.Cleanup(func() {
		maxThreads, partitions, config = 0, 0, nil
	})

	config = &Config{MaxThreads: 6, Partitions: 5}
	maxThreads, partitions = 0, 0
	threads, parts := resolvedSettings()
	assert.Equal(t, 6, threads)
	assert.Equal(t, 5, parts)

	maxThreads, partitions = 2, 3
	threads, parts = resolvedSettings()
	assert.Equal(t, 2, threads)
	assert.Equal(t, 3, parts)
}

func TestRunQueryMemoryStore(t *testing.T) {
	t.Cleanup(func() {
		config, writerConf, bucket = nil, nil, ""
	})
	loaded, err := loadConfig(writeFile(t, "config.json", `{"store": {"type": "memory"}, "max_threads": 1, "partitions": 1}`))
	require.NoError(t, err)
	config = loaded
	writerConf = &types.WriterConfig{Type: constants.JSON}
	bucket = "users"

	err = runQuery(context.Background(), func(r *typed.RDD[types.Row]) *typed.RDD[types.Row] {
		return r.QueryBucketKeys("missing")
	})
	assert.NoError(t, err)
}

func TestLoadObjects(t *testing.T) {
	ctx := context.Background()
	memory := store.NewMemory()
	path := writeFile(t, "users.csv", "id,age\nu1,30\nu2,41\nu3,\n")

	err := loadObjects(ctx, memory, path, parser.Config{
		Format:      parser.CSV,
		Bucket:      "users",
		KeyField:    "id",
		IndexFields: []string{"age"},
		CSV:         parser.CSVConfig{HasHeader: true},
	})
	require.NoError(t, err)

	keys, err := memory.ListKeys(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u3"}, keys)

	connector := kv.NewConnector(memory, kv.WithPartitions(2))
	rows, err := typed.Bucket[types.Row](connector, "users").Query2iRange("age", 18, 35).Collect(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "u1", rows[0].Key)

	err = loadObjects(ctx, memory, path, parser.Config{Format: parser.CSV, Bucket: "users"})
	assert.ErrorContains(t, err, "key_field")
}
