package inject

import (
	"reflect"
	"sync"
)

// ComponentBag collects the classes and instances that an application
// registers before they are bound.
type ComponentBag struct {
	lock      sync.Mutex
	classes   []reflect.Type
	instances []any
	models    map[reflect.Type]*ContractModel
}

// ExcludeEmpty filters out models without contracts, like resources
func ExcludeEmpty(m *ContractModel) bool {
	return !m.Empty()
}

func NewComponentBag() *ComponentBag {
	return &ComponentBag{
		models: make(map[reflect.Type]*ContractModel),
	}
}

// RegisterClass adds a class.  If contracts are given they replace the
// class's registered provider contracts.  A class can only be
// registered once; later registrations return false.
func (bag *ComponentBag) RegisterClass(class reflect.Type, contracts ...reflect.Type) bool {
	bag.lock.Lock()
	defer bag.lock.Unlock()
	if _, ok := bag.models[class]; ok {
		return false
	}
	bag.models[class] = NewContractModel(class, contracts...)
	bag.classes = append(bag.classes, class)
	return true
}

// RegisterInstance adds an instance.  Only one instance per type is
// kept; later registrations return false.
func (bag *ComponentBag) RegisterInstance(instance any, contracts ...reflect.Type) bool {
	if isNil(instance) {
		return false
	}
	t := reflect.TypeOf(instance)
	bag.lock.Lock()
	defer bag.lock.Unlock()
	if _, ok := bag.models[t]; ok {
		return false
	}
	bag.models[t] = NewContractModel(t, contracts...)
	bag.instances = append(bag.instances, instance)
	return true
}

// SetPriority overrides the priority of a registered component for one contract
func (bag *ComponentBag) SetPriority(component reflect.Type, contract reflect.Type, priority int) {
	bag.lock.Lock()
	defer bag.lock.Unlock()
	if m, ok := bag.models[component]; ok {
		m.Priorities[contract] = priority
	}
}

// Model returns the model for a registered class or instance type
func (bag *ComponentBag) Model(t reflect.Type) *ContractModel {
	bag.lock.Lock()
	defer bag.lock.Unlock()
	return bag.models[t]
}

// Classes returns registered classes, in registration order, whose
// models pass filter.  A nil filter passes everything.
func (bag *ComponentBag) Classes(filter func(*ContractModel) bool) []reflect.Type {
	bag.lock.Lock()
	defer bag.lock.Unlock()
	var found []reflect.Type
	for _, c := range bag.classes {
		if filter == nil || filter(bag.models[c]) {
			found = append(found, c)
		}
	}
	return found
}

// Instances returns registered instances, in registration order, whose
// models pass filter.  A nil filter passes everything.
func (bag *ComponentBag) Instances(filter func(*ContractModel) bool) []any {
	bag.lock.Lock()
	defer bag.lock.Unlock()
	var found []any
	for _, i := range bag.instances {
		if filter == nil || filter(bag.models[reflect.TypeOf(i)]) {
			found = append(found, i)
		}
	}
	return found
}
