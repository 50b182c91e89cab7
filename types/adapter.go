package types

import "github.com/datazip-inc/kvrdd/constants"

// WriterConfig selects the destination rows are written to; WriterConfig
// holds the destination specific settings
type WriterConfig struct {
	Type         constants.DestinationType `json:"type" validate:"required,oneof=json parquet"`
	WriterConfig any                       `json:"writer"`
}
