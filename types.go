package inject

import (
	"reflect"

	"github.com/muir/reflectutils"
)

// TypeOf returns the reflect.Type for T.  It works for interface types
// which makes it the usual way to name a contract:
//
//	inject.TypeOf[filter.RequestFilter]()
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return reflectutils.TypeName(t)
}

func typeNames(types []reflect.Type) []string {
	n := make([]string, len(types))
	for i, t := range types {
		n[i] = typeName(t)
	}
	return n
}

// Satisfies reports if a value of type impl can be used where contract
// is expected.
func Satisfies(impl reflect.Type, contract reflect.Type) bool {
	if impl == nil || contract == nil {
		return false
	}
	if impl == contract {
		return true
	}
	if contract.Kind() == reflect.Interface {
		return impl.Implements(contract)
	}
	return false
}

func containsType(list []reflect.Type, t reflect.Type) bool {
	for _, e := range list {
		if e == t {
			return true
		}
	}
	return false
}
