package safejson

import (
	"reflect"
	"unsafe"
)

// handle names a container for the duration of one encoding call.
// The zero handle is reserved for scalars, which are never containers.
type handle int

// identity is what two references must share to be "the same object".
// Slices also compare by length so that s and s[:1] stay distinct.
type identity struct {
	ptr unsafe.Pointer
	typ reflect.Type
	len int
}

// registry is a per-call arena assigning stable handles to identities.
type registry struct {
	handles map[identity]handle
	types   map[handle]reflect.Type
	last    handle
}

func newRegistry() *registry {
	return &registry{
		handles: make(map[identity]handle),
		types:   make(map[handle]reflect.Type),
	}
}

func (r *registry) fresh(t reflect.Type) handle {
	r.last++
	r.types[r.last] = t
	return r.last
}

func (r *registry) intern(id identity) handle {
	if h, ok := r.handles[id]; ok {
		return h
	}
	h := r.fresh(id.typ)
	r.handles[id] = h
	return h
}

// typeOf reports the Go type a handle was assigned for.
func (r *registry) typeOf(h handle) reflect.Type {
	return r.types[h]
}

// handleOf returns the handle for v and whether v carries reference
// identity. Inline structs and arrays that are not addressable get a
// synthetic handle that can never match anything else.
func (r *registry) handleOf(v reflect.Value) (handle, bool) {
	v = unwrapInterface(v)
	if !v.IsValid() {
		return 0, false
	}

	switch v.Kind() {
	case reflect.Pointer:
		p, ok := lastHop(v)
		if !ok {
			return 0, false
		}
		return r.intern(identity{ptr: p.UnsafePointer(), typ: p.Type()}), true
	case reflect.Map:
		if v.IsNil() {
			return 0, false
		}
		return r.intern(identity{ptr: v.UnsafePointer(), typ: v.Type()}), true
	case reflect.Slice:
		if v.IsNil() {
			return 0, false
		}
		return r.intern(identity{ptr: v.UnsafePointer(), typ: v.Type(), len: v.Len()}), true
	case reflect.Struct, reflect.Array:
		if v.CanAddr() {
			// Same identity as a pointer to this value, so &s[0] and s[0] match.
			p := v.Addr()
			return r.intern(identity{ptr: p.UnsafePointer(), typ: p.Type()}), true
		}
		return r.fresh(v.Type()), false
	default:
		return 0, false
	}
}

// lastHop follows a pointer chain to the pointer that refers to the data,
// so **T and the *T it holds name the same node.
func lastHop(v reflect.Value) (reflect.Value, bool) {
	if v.IsNil() {
		return reflect.Value{}, false
	}

	var chain map[hop]struct{}
	for {
		next := unwrapInterface(v.Elem())
		if !next.IsValid() || next.Kind() != reflect.Pointer || next.IsNil() {
			return v, true
		}

		if chain == nil {
			chain = make(map[hop]struct{})
		}
		key := hop{ptr: v.Pointer(), typ: v.Type()}
		if _, loop := chain[key]; loop {
			return v, true
		}
		chain[key] = struct{}{}
		v = next
	}
}

func unwrapInterface(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}
