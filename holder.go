package inject

import (
	"reflect"
	"sort"
)

// ServiceHolder is a snapshot of one resolved instance along with what
// it was bound as.
type ServiceHolder struct {
	instance       any
	implementation reflect.Type
	contracts      []reflect.Type
	rank           int
	ranked         bool
}

// NewServiceHolder is used by InjectionManager implementations.
// ranked is true when the binding set its rank explicitly.
func NewServiceHolder(instance any, implementation reflect.Type, contracts []reflect.Type, rank int, ranked bool) ServiceHolder {
	c := make([]reflect.Type, len(contracts))
	copy(c, contracts)
	return ServiceHolder{
		instance:       instance,
		implementation: implementation,
		contracts:      c,
		rank:           rank,
		ranked:         ranked,
	}
}

func (h ServiceHolder) Instance() any                    { return h.instance }
func (h ServiceHolder) ImplementationType() reflect.Type { return h.implementation }
func (h ServiceHolder) Rank() int                        { return h.rank }

// Ranked returns the rank and whether the binding set it, so that an
// explicit rank of 0 can be told apart from no rank at all.
func (h ServiceHolder) Ranked() (int, bool) { return h.rank, h.ranked }

// ContractTypes returns a copy of the contracts
func (h ServiceHolder) ContractTypes() []reflect.Type {
	c := make([]reflect.Type, len(h.contracts))
	copy(c, h.contracts)
	return c
}

// Equal compares instance, implementation type, contracts, and rank.
func (h ServiceHolder) Equal(other ServiceHolder) bool {
	if h.rank != other.rank || h.implementation != other.implementation {
		return false
	}
	if len(h.contracts) != len(other.contracts) {
		return false
	}
	for _, c := range h.contracts {
		if !containsType(other.contracts, c) {
			return false
		}
	}
	return sameInstance(h.instance, other.instance)
}

func sameInstance(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func:
		return va.Pointer() == vb.Pointer()
	default:
		return false
	}
}

// SortByRank orders holders by descending rank.  The sort is stable so
// holders that were passed in registration order keep that order for
// equal ranks.
func SortByRank(holders []ServiceHolder) {
	sort.SliceStable(holders, func(i, j int) bool {
		return holders[i].rank > holders[j].rank
	})
}

// Instances extracts the instances from holders
func Instances(holders []ServiceHolder) []any {
	all := make([]any, len(holders))
	for i, h := range holders {
		all[i] = h.instance
	}
	return all
}
