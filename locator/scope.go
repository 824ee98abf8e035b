package locator

import (
	"bytes"
	"context"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	inject "github.com/eclipse-ee4j/jersey-sub005"
	"github.com/pkg/errors"
)

// sortEntries orders by descending rank.  Entries are always collected
// in registration order so a stable sort breaks ties by registration.
func sortEntries(entries []*entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].rank > entries[j].rank
	})
}

// produced is one slot of a store.  A slot whose create failed is
// abandoned and removed so that the next lookup tries again.
type produced struct {
	lock      sync.Mutex
	done      bool
	abandoned bool
	instance  any
	dispose   func(any)
}

type singletonStore struct {
	lock      sync.Mutex
	instances map[int64]*produced
	order     []*produced
}

func newSingletonStore() *singletonStore {
	return &singletonStore{
		instances: make(map[int64]*produced),
	}
}

func (s *singletonStore) get(key int64, create func() (any, func(any), error)) (any, error) {
	for {
		s.lock.Lock()
		p, ok := s.instances[key]
		if !ok {
			p = &produced{}
			s.instances[key] = p
		}
		s.lock.Unlock()

		p.lock.Lock()
		if p.done {
			p.lock.Unlock()
			return p.instance, nil
		}
		if p.abandoned {
			p.lock.Unlock()
			continue
		}
		instance, dispose, err := create()
		s.lock.Lock()
		if err != nil {
			p.abandoned = true
			if s.instances[key] == p {
				delete(s.instances, key)
			}
		} else {
			p.instance, p.dispose, p.done = instance, dispose, true
			s.order = append(s.order, p)
		}
		s.lock.Unlock()
		p.lock.Unlock()
		return instance, err
	}
}

func (s *singletonStore) destroy() {
	s.lock.Lock()
	order := s.order
	s.order = nil
	s.instances = make(map[int64]*produced)
	s.lock.Unlock()
	for i := len(order) - 1; i >= 0; i-- {
		destroyInstance(order[i].instance, order[i].dispose)
	}
}

func destroyInstance(instance any, dispose func(any)) {
	if instance == nil {
		return
	}
	if pd, ok := instance.(inject.PreDestroyer); ok {
		pd.PreDestroy()
	}
	if dispose != nil {
		dispose(instance)
	}
}

// threadStore keeps PerThread instances.  Go has no threads that code
// can see so goroutines stand in for them.
type threadStore struct {
	goroutines sync.Map // goid -> *singletonStore
}

func newThreadStore() *threadStore {
	return &threadStore{}
}

func (t *threadStore) get(key int64, create func() (any, func(any), error)) (any, error) {
	id := goid()
	store, _ := t.goroutines.LoadOrStore(id, newSingletonStore())
	return store.(*singletonStore).get(key, create)
}

func (t *threadStore) clear() {
	t.goroutines.Range(func(k, v interface{}) bool {
		v.(*singletonStore).destroy()
		t.goroutines.Delete(k)
		return true
	})
}

// goroutinePrefix starts the first line of every stack trace:
// "goroutine 18 [running]:"
var goroutinePrefix = []byte("goroutine ")

// goid is the id of the running goroutine, or -1 if the stack header
// cannot be parsed.  All PerThread lookups that fail to parse share
// one store.
func goid() int64 {
	header := make([]byte, 40)
	header = bytes.TrimPrefix(header[:runtime.Stack(header, false)], goroutinePrefix)
	if end := bytes.IndexByte(header, ' '); end >= 0 {
		header = header[:end]
	}
	id, err := strconv.ParseInt(string(header), 10, 64)
	if err != nil {
		return -1
	}
	return id
}

type chainKey struct{}

// enter records that key is being produced.  Producing a key that is
// already being produced further up the same call chain is a cycle.
func enter(ctx context.Context, e *entry) (context.Context, error) {
	chain, _ := ctx.Value(chainKey{}).([]*entry)
	for _, c := range chain {
		if c.key == e.key {
			names := make([]string, 0, len(chain)+1)
			for _, c := range chain {
				names = append(names, c.binding.String())
			}
			names = append(names, e.binding.String())
			return ctx, errors.Errorf("dependency cycle: %s", strings.Join(names, " -> "))
		}
	}
	next := make([]*entry, len(chain), len(chain)+1)
	copy(next, chain)
	return context.WithValue(ctx, chainKey{}, append(next, e)), nil
}

// instance returns the instance for e according to its scope
func (l *Locator) instance(ctx context.Context, e *entry) (any, error) {
	if ib, ok := e.binding.(*inject.InstanceBinding); ok {
		return ib.Service(), nil
	}
	ctx, err := enter(ctx, e)
	if err != nil {
		return nil, err
	}
	create := func() (any, func(any), error) {
		return l.produce(ctx, e)
	}
	switch e.scope {
	case inject.Singleton:
		return l.singletons.get(e.key, create)
	case inject.PerLookup:
		instance, _, err := create()
		return instance, err
	case inject.PerThread:
		return l.threads.get(e.key, create)
	case inject.RequestScoped:
		rc, ok := inject.RequestContextFrom(ctx)
		if !ok {
			return nil, inject.IllegalState("resolve "+e.binding.String(), inject.ErrNotInRequestScope)
		}
		var dispose func(any)
		return rc.Resolve(e.key, func() (any, error) {
			instance, d, err := create()
			dispose = d
			return instance, err
		}, func(instance any) {
			if dispose != nil {
				dispose(instance)
			}
		})
	default:
		l.lock.RLock()
		resolver, ok := l.scopes[e.scope]
		l.lock.RUnlock()
		if !ok {
			return nil, errors.WithStack(&inject.ScopeError{Scope: e.scope})
		}
		var dispose func(any)
		return resolver.Resolve(ctx, e.key, func() (any, error) {
			instance, d, err := create()
			dispose = d
			return instance, err
		}, func(instance any) {
			destroyInstance(instance, dispose)
		})
	}
}
