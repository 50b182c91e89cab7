package types

import (
	"fmt"
	"reflect"
)

// Witness is a runtime token for the element type T. Type-erased layers
// (the engine and the kv connector) only see reflect.Type, so typed wrappers
// carry the witness to rebuild correctly typed values from them.
type Witness[T any] struct {
	typ reflect.Type
}

// WitnessOf returns the witness for T
func WitnessOf[T any]() Witness[T] {
	return Witness[T]{typ: reflect.TypeFor[T]()}
}

// WitnessFromType derives the witness for T from a type descriptor. It fails
// when the descriptor does not describe T.
func WitnessFromType[T any](descriptor reflect.Type) (Witness[T], error) {
	expected := reflect.TypeFor[T]()
	if descriptor == nil {
		return Witness[T]{}, fmt.Errorf("nil type descriptor for witness of %s", expected)
	}
	if descriptor != expected {
		return Witness[T]{}, fmt.Errorf("type descriptor %s does not match witness type %s", descriptor, expected)
	}
	return Witness[T]{typ: descriptor}, nil
}

// Type returns the reflect.Type the witness stands for
func (w Witness[T]) Type() reflect.Type {
	if w.typ == nil {
		return reflect.TypeFor[T]()
	}
	return w.typ
}

// Cast converts an erased element back to T. A nil element is accepted when
// T itself can be nil.
func (w Witness[T]) Cast(value any) (T, error) {
	var zero T
	if value == nil && nillable(w.Type()) {
		return zero, nil
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("element of type %T is not of witness type %s", value, w.Type())
	}
	return typed, nil
}

func nillable(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}

func (w Witness[T]) String() string {
	return w.Type().String()
}
