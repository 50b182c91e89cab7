package store

import (
	"context"
	"testing"

	"github.com/datazip-inc/kvrdd/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
		errMsg  string
	}{
		{
			name:   "memory store",
			config: Config{Type: constants.Memory},
		},
		{
			name:    "missing type",
			config:  Config{},
			wantErr: true,
			errMsg:  "type is a required field",
		},
		{
			name:    "unknown type",
			config:  Config{Type: "riak"},
			wantErr: true,
			errMsg:  "type must be one of [memory postgres mongodb]",
		},
		{
			name:    "postgres without connection settings",
			config:  Config{Type: constants.Postgres},
			wantErr: true,
			errMsg:  "postgres",
		},
		{
			name: "postgres with missing host",
			config: Config{Type: constants.Postgres, Postgres: &PostgresConfig{
				Port: 5432, Database: "kv", Username: "kv",
			}},
			wantErr: true,
			errMsg:  "host is a required field",
		},
		{
			name: "valid postgres",
			config: Config{Type: constants.Postgres, Postgres: &PostgresConfig{
				Host: "localhost", Port: 5432, Database: "kv", Username: "kv",
			}},
		},
		{
			name:    "mongodb without hosts",
			config:  Config{Type: constants.MongoDB, MongoDB: &MongoConfig{Database: "kv"}},
			wantErr: true,
			errMsg:  "hosts is a required field",
		},
		{
			name:    "negative retry count",
			config:  Config{Type: constants.Memory, RetryCount: -1},
			wantErr: true,
			errMsg:  "backoff_retry_count must be 0 or greater",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestPostgresURI(t *testing.T) {
	config := &PostgresConfig{Host: "db", Port: 5433, Database: "kv", Username: "reader", Password: "s3cret"}
	assert.Equal(t, "postgres://reader:s3cret@db:5433/kv?sslmode=disable", config.URI())

	config.SSLMode = "require"
	config.Password = ""
	assert.Equal(t, "postgres://reader@db:5433/kv?sslmode=require", config.URI())
}

func TestMongoURI(t *testing.T) {
	config := &MongoConfig{Hosts: []string{"m1:27017", "m2:27017"}, Username: "kv", Password: "pw", AuthDB: "admin", ReplicaSet: "rs0", Database: "kv"}
	assert.Equal(t, "mongodb://kv:pw@m1:27017,m2:27017/?authSource=admin&replicaSet=rs0", config.URI())

	srv := &MongoConfig{Hosts: []string{"cluster.example.com"}, Srv: true, Database: "kv"}
	assert.Equal(t, "mongodb+srv://cluster.example.com/", srv.URI())
}

func TestOpenMemory(t *testing.T) {
	s, err := Open(context.Background(), &Config{Type: constants.Memory})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, constants.Memory, s.Type())
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	_, err := Open(context.Background(), &Config{Type: constants.Postgres})
	assert.ErrorContains(t, err, "invalid store config")
}
