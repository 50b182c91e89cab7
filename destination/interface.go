package destination

import (
	"context"

	"github.com/datazip-inc/kvrdd/types"
)

type Config interface {
	Validate() error
}

type Writer interface {
	GetConfigRef() Config
	Type() string
	// Check verifies the destination is reachable with the loaded config
	Check(ctx context.Context) error
	// Setup prepares the writer for one query result; name identifies the result
	// (bucket and query fingerprint) in file names
	Setup(ctx context.Context, name string) error
	Write(ctx context.Context, rows []types.Row) error
	Close(ctx context.Context) error
}
