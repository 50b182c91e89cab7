package types

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/parquet-go/parquet-go"
)

// Object is a single value stored under bucket/key together with its
// integer secondary indexes
type Object struct {
	Bucket       string           `json:"bucket"`
	Key          string           `json:"key"`
	ContentType  string           `json:"content_type,omitempty"`
	Value        []byte           `json:"value"`
	Indexes      map[string]int64 `json:"indexes,omitempty"`
	LastModified time.Time        `json:"last_modified"`
}

// Row is the flat output representation of an Object
type Row struct {
	Bucket       string           `json:"bucket" parquet:"bucket"`
	Key          string           `json:"key" parquet:"key"`
	ContentType  string           `json:"content_type" parquet:"content_type"`
	Value        string           `json:"value" parquet:"value"`
	Indexes      map[string]int64 `json:"indexes" parquet:"indexes,json"`
	LastModified time.Time        `json:"last_modified" parquet:"last_modified"`
}

func (o Object) ToRow() Row {
	indexes := o.Indexes
	if indexes == nil {
		indexes = map[string]int64{}
	}
	return Row{
		Bucket:       o.Bucket,
		Key:          o.Key,
		ContentType:  o.ContentType,
		Value:        string(o.Value),
		Indexes:      indexes,
		LastModified: o.LastModified,
	}
}

// ToObject restores the Object a Row was exported from
func (r Row) ToObject() Object {
	return Object{
		Bucket:       r.Bucket,
		Key:          r.Key,
		ContentType:  r.ContentType,
		Value:        []byte(r.Value),
		Indexes:      r.Indexes,
		LastModified: r.LastModified,
	}
}

// JSONValue reports whether the stored value is declared or detected as json
func (o Object) JSONValue() bool {
	return o.ContentType == "application/json" || (o.ContentType == "" && json.Valid(o.Value))
}

func GetParquetRowSchema() *parquet.Schema {
	return parquet.NewSchema("Row", parquet.Group{
		"bucket":        parquet.String(),
		"key":           parquet.String(),
		"content_type":  parquet.String(),
		"value":         parquet.String(),
		"indexes":       parquet.JSON(),
		"last_modified": parquet.Timestamp(parquet.Microsecond),
	})
}
