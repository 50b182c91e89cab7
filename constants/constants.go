package constants

import (
	"time"
)

const (
	DefaultRetryCount     = 3
	DefaultThreadCount    = 3
	DefaultPartitionCount = 8
	DefaultQueryTimeout   = 30 * time.Minute
	DefaultCheckTimeout   = 60 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	ParquetFileExt        = "parquet"
	MongoPrimaryID        = "_id"
	EnvPrefix             = "KVRDD"
	ConfigFolder          = "CONFIG_FOLDER"
	LogLevel              = "LOG_LEVEL"
	NoSave                = "NO_SAVE"
	MaxThreads            = "MAX_THREADS"
	Partitions            = "PARTITIONS"
	// IndexNamePattern restricts secondary index names accepted by stores
	IndexNamePattern = `^[A-Za-z0-9_\-]+$`
)

type StoreType string

const (
	Memory   StoreType = "memory"
	Postgres StoreType = "postgres"
	MongoDB  StoreType = "mongodb"
)

type DestinationType string

const (
	JSON    DestinationType = "json"
	Parquet DestinationType = "parquet"
)
