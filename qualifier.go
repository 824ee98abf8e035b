package inject

import "strings"

// Qualifier narrows which bound service satisfies an injection point
// beyond its contract type.  Qualifiers compare by value: two qualifiers
// are the same when their Kind and Value match.
type Qualifier struct {
	Kind  string
	Value string
}

const (
	namedKind  = "named"
	customKind = "custom"
)

// Custom marks bindings that were registered by application code rather
// than by the framework itself.  ProviderBinder tags everything it binds
// with Custom so that user providers can be looked up separately from
// system defaults.
var Custom = Qualifier{Kind: customKind}

// Named creates the qualifier used by Named() on bindings.
func Named(name string) Qualifier {
	return Qualifier{Kind: namedKind, Value: name}
}

// IsNamed reports if this is a Named qualifier
func (q Qualifier) IsNamed() bool {
	return q.Kind == namedKind
}

func (q Qualifier) String() string {
	if q.Value == "" {
		return "@" + q.Kind
	}
	return "@" + q.Kind + "(" + q.Value + ")"
}

// qualifierSet formats a list of qualifiers for error messages
func qualifierSet(qualifiers []Qualifier) string {
	if len(qualifiers) == 0 {
		return ""
	}
	s := make([]string, len(qualifiers))
	for i, q := range qualifiers {
		s[i] = q.String()
	}
	return strings.Join(s, " ")
}

// HasQualifiers returns true if every one of the required qualifiers is
// in the offered set.  An empty required set matches anything.
func HasQualifiers(offered []Qualifier, required ...Qualifier) bool {
	for _, r := range required {
		found := false
		for _, o := range offered {
			if o == r {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
