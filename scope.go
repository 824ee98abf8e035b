package inject

// Scope is the lifecycle policy for a binding: how many instances exist
// and how long they live.  Scopes are plain comparable values.  The
// predefined scopes are understood by every back end; any other value
// is a custom scope that must have a ScopeResolver registered with the
// InjectionManager that uses it.
type Scope string

const (
	// NoScope means the scope was not set.  Back ends pick a default:
	// PerLookup for class and supplier bindings, Singleton for instances.
	NoScope Scope = ""

	// Singleton shares one instance for the lifetime of the InjectionManager.
	Singleton Scope = "singleton"

	// RequestScoped shares one instance per RequestContext.
	RequestScoped Scope = "request"

	// PerLookup creates a new instance for every lookup.
	PerLookup Scope = "per-lookup"

	// PerThread shares one instance per goroutine.
	PerThread Scope = "per-thread"
)

// IsBuiltin is true for the scopes that every back end handles
// without a ScopeResolver.
func (s Scope) IsBuiltin() bool {
	switch s {
	case NoScope, Singleton, RequestScoped, PerLookup, PerThread:
		return true
	default:
		return false
	}
}

func (s Scope) String() string {
	if s == NoScope {
		return "unscoped"
	}
	return string(s)
}
