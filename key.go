package feedsync

import "strings"

// sep joins key parameters internally. It cannot appear in rendered keys.
const sep = "\x1f"

// Key identifies one cached result: a resource name plus ordered parameters.
// Keys are comparable; two keys built from the same parts are equal.
type Key struct {
	resource string
	params   string
}

// NewKey builds a Key from a resource name and its parameters.
func NewKey(resource string, params ...string) Key {
	return Key{resource: resource, params: strings.Join(params, sep)}
}

func (k Key) Resource() string { return k.resource }

// Params returns the key's parameters in order.
func (k Key) Params() []string {
	if k.params == "" {
		return nil
	}
	return strings.Split(k.params, sep)
}

// With returns a copy of k with extra parameters appended.
func (k Key) With(params ...string) Key {
	if len(params) == 0 {
		return k
	}
	extra := strings.Join(params, sep)
	if k.params == "" {
		return Key{resource: k.resource, params: extra}
	}
	return Key{resource: k.resource, params: k.params + sep + extra}
}

// String renders the key as resource:p1:p2 for logs.
func (k Key) String() string {
	if k.params == "" {
		return k.resource
	}
	return k.resource + ":" + strings.ReplaceAll(k.params, sep, ":")
}

// id is the map key used by the store and the in-flight group.
func (k Key) id() string { return k.resource + sep + sep + k.params }

// Pattern selects keys for invalidation: same resource and a parameter prefix.
type Pattern struct {
	resource string
	params   []string
}

// ResourcePattern matches every key of resource.
func ResourcePattern(resource string) Pattern {
	return Pattern{resource: resource}
}

// PrefixPattern matches keys of resource whose parameters start with params.
func PrefixPattern(resource string, params ...string) Pattern {
	return Pattern{resource: resource, params: append([]string(nil), params...)}
}

// KeyPattern matches k and every key that extends k's parameters.
func KeyPattern(k Key) Pattern {
	return Pattern{resource: k.resource, params: k.Params()}
}

func (p Pattern) Match(k Key) bool {
	if p.resource != k.resource {
		return false
	}
	if len(p.params) == 0 {
		return true
	}
	kp := k.Params()
	if len(kp) < len(p.params) {
		return false
	}
	for i, v := range p.params {
		if kp[i] != v {
			return false
		}
	}
	return true
}

func (p Pattern) String() string {
	if len(p.params) == 0 {
		return p.resource + ":*"
	}
	return p.resource + ":" + strings.Join(p.params, ":") + ":*"
}
