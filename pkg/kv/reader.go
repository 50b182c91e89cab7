package kv

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/datazip-inc/kvrdd/types"
	"github.com/goccy/go-json"
)

var (
	objectType = reflect.TypeFor[types.Object]()
	rowType    = reflect.TypeFor[types.Row]()
	stringType = reflect.TypeFor[string]()
	bytesType  = reflect.TypeFor[[]byte]()
)

// ValueReader turns a stored object into an element of elemType
type ValueReader interface {
	ReadValue(elemType reflect.Type, obj types.Object) (any, error)
}

type ValueReaderFunc func(elemType reflect.Type, obj types.Object) (any, error)

func (f ValueReaderFunc) ReadValue(elemType reflect.Type, obj types.Object) (any, error) {
	return f(elemType, obj)
}

// DefaultReader passes objects and rows through, exposes raw values as string
// or []byte, and json decodes the value into any other element type
type DefaultReader struct{}

func (DefaultReader) ReadValue(elemType reflect.Type, obj types.Object) (any, error) {
	switch elemType {
	case objectType:
		return obj, nil
	case rowType:
		return obj.ToRow(), nil
	case stringType:
		return string(obj.Value), nil
	case bytesType:
		return slices.Clone(obj.Value), nil
	}

	ptr := reflect.New(elemType)
	if err := json.Unmarshal(obj.Value, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("failed to decode value of key[%s/%s] into %s: %s", obj.Bucket, obj.Key, elemType, err)
	}
	return ptr.Elem().Interface(), nil
}
