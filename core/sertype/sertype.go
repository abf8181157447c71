// Package sertype implements the per-domain sertype registry: a
// deduplicated set of registered type descriptors, looked up by
// structural equality so that two independently-built descriptors for
// the same wire type collapse to one canonical registration.
package sertype

import (
	"reflect"
	"sync"

	"github.com/jeeves-cluster-organization/ddscore/core/cdr"
)

// KeyKind distinguishes the keying strategy. The codec does not read
// it; the type-lookup protocol copies it into TypeObject.KeyKind.
type KeyKind int

const (
	KindDefault KeyKind = iota
	KindKeyless
	KindBuiltinTopic // supplemented from original_source/dds_topic.c: discovery topics carry their own sertype kind
)

// Type is a registered type descriptor: a typename, its compiled CDR
// program, and structural identity used for dedup and equality.
type Type struct {
	TypeName string
	GoType   reflect.Type
	Program  *cdr.Program
	Key      KeyKind

	refcount int
}

func (t *Type) equalKey() string {
	return t.TypeName + "|" + t.GoType.String()
}

// Registry is the per-domain sertype table.
type Registry struct {
	mu    sync.Mutex
	byKey map[string]*Type
}

// New returns an empty per-domain registry.
func New() *Registry {
	return &Registry{byKey: make(map[string]*Type)}
}

// Compile builds a *Type for goType, compiling its CDR program but not
// registering it. Callers pass the result to Register or RegisterOrReuse.
func Compile(typeName string, goType reflect.Type, key KeyKind) (*Type, error) {
	prog, err := cdr.Compile(goType)
	if err != nil {
		return nil, err
	}
	return &Type{TypeName: typeName, GoType: goType, Program: prog, Key: key}, nil
}

// Lookup returns the canonical registered type matching template's
// structural identity, or nil if none is registered yet.
func (r *Registry) Lookup(template *Type) *Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byKey[template.equalKey()]
}

// RegisterOrReuse implements create_topic's dedup-on-register contract:
// on first registration of a given structural identity, candidate
// becomes canonical and is returned with refcount 1; on a repeat,
// candidate is discarded and the existing registration's refcount is
// bumped and returned instead.
func (r *Registry) RegisterOrReuse(candidate *Type) *Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := candidate.equalKey()
	if existing, ok := r.byKey[key]; ok {
		existing.refcount++
		return existing
	}
	candidate.refcount = 1
	r.byKey[key] = candidate
	return candidate
}

// Ref increments t's refcount. t must already be registered.
func (r *Registry) Ref(t *Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.refcount++
}

// Unref decrements t's refcount, removing it from the registry once it
// reaches zero.
func (r *Registry) Unref(t *Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.refcount--
	if t.refcount <= 0 {
		delete(r.byKey, t.equalKey())
	}
}

// Refcount reports t's current refcount, for tests and diagnostics.
func (r *Registry) Refcount(t *Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return t.refcount
}
