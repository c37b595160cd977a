package safejson

import (
	"cmp"
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"

	"github.com/jacoelho/ecslog/internal/stack"
)

var (
	marshalerType     = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// engine holds the state of one encoding call. It is never shared.
type engine struct {
	mode       PlaceholderMode
	escapeHTML bool

	registry *registry
	fields   fieldCache

	// ancestors and keys form the ancestor path. keys[i] is the key under
	// which the walk left ancestors[i].
	ancestors *stack.Stack[handle]
	keys      *stack.Stack[string]
	depth     map[handle]int

	// seen collects every reference met so far, for TypeTags.
	seen map[handle]struct{}
}

func newEngine(mode PlaceholderMode, escapeHTML bool) *engine {
	return &engine{
		mode:       mode,
		escapeHTML: escapeHTML,
		registry:   newRegistry(),
		fields:     make(fieldCache),
		ancestors:  stack.NewWithCapacity[handle](16),
		keys:       stack.NewWithCapacity[string](16),
		depth:      make(map[handle]int),
		seen:       make(map[handle]struct{}),
	}
}

// run converts root into an acyclic tree ready for encoding/json.
func (e *engine) run(root any) (any, error) {
	v := reflect.ValueOf(root)
	h, ref := e.registry.handleOf(v)

	if placeholder, cyclic := e.visit(0, "", h, ref); cyclic {
		return placeholder, nil
	}

	out, ok, err := e.value(v, h)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &json.UnsupportedTypeError{Type: unwrapInterface(v).Type()}
	}
	return out, nil
}

// visit records that the walk is about to emit value under key inside
// container, and reports whether value must be replaced by a placeholder.
func (e *engine) visit(container handle, key string, value handle, ref bool) (string, bool) {
	if e.mode == TypeTags {
		return e.visitTyped(value, ref)
	}

	if e.ancestors.IsEmpty() {
		e.push(value)
		return "", false
	}

	if d, ok := e.depth[container]; ok {
		// Returning to (or staying in) a frame: anything deeper belongs to
		// a sibling subtree that is already finished.
		e.truncate(d + 1)
		e.keys.Truncate(d)
		e.keys.Push(key)
	} else {
		e.push(container)
		e.keys.Push(key)
	}

	if e.keys.Size() != e.ancestors.Size() {
		panic(fmt.Errorf("%w: %d ancestors but %d keys", ErrInternal, e.ancestors.Size(), e.keys.Size()))
	}

	if !ref {
		return "", false
	}

	d, ok := e.depth[value]
	if !ok {
		return "", false
	}
	return FormatPath(e.keys.Bottom(d)), true
}

func (e *engine) visitTyped(value handle, ref bool) (string, bool) {
	if !ref {
		return "", false
	}
	if _, ok := e.seen[value]; ok {
		return FormatType(e.registry.typeOf(value)), true
	}
	e.seen[value] = struct{}{}
	return "", false
}

func (e *engine) push(h handle) {
	e.depth[h] = e.ancestors.Size()
	e.ancestors.Push(h)
}

func (e *engine) truncate(n int) {
	for e.ancestors.Size() > n {
		h, _ := e.ancestors.Pop()
		delete(e.depth, h)
	}
}

// child visits and converts one member. ok is false for values JSON cannot
// represent.
func (e *engine) child(container handle, key string, v reflect.Value) (any, bool, error) {
	h, ref := e.registry.handleOf(v)
	if placeholder, cyclic := e.visit(container, key, h, ref); cyclic {
		return placeholder, true, nil
	}
	return e.value(v, h)
}

// value converts v, whose children live in the frame h.
func (e *engine) value(v reflect.Value, h handle) (any, bool, error) {
	v = unwrapInterface(v)
	if !v.IsValid() {
		return nil, true, nil
	}

	if leaf, ok := marshalerLeaf(v); ok {
		return leaf, true, nil
	}

	switch v.Kind() {
	case reflect.Pointer:
		return e.pointer(v, h)
	case reflect.Struct:
		return e.structValue(v, h)
	case reflect.Map:
		return e.mapValue(v, h)
	case reflect.Slice:
		if v.IsNil() {
			return nil, true, nil
		}
		if isByteSlice(v.Type()) {
			return slices.Clone(v.Bytes()), true, nil
		}
		return e.array(v, h)
	case reflect.Array:
		return e.array(v, h)
	case reflect.Bool:
		return v.Bool(), true, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), true, nil
	case reflect.Float32:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, true, nil
		}
		return float32(f), true, nil
	case reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, true, nil
		}
		return f, true, nil
	case reflect.String:
		return v.String(), true, nil
	default:
		// func, chan, complex, unsafe.Pointer
		return nil, false, nil
	}
}

func (e *engine) pointer(v reflect.Value, h handle) (any, bool, error) {
	var chain map[hop]struct{}
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, true, nil
		}
		if chain == nil {
			chain = make(map[hop]struct{})
		}
		key := hop{ptr: v.Pointer(), typ: v.Type()}
		if _, loop := chain[key]; loop {
			// A pointer chain that points back into itself holds no data.
			return nil, true, nil
		}
		chain[key] = struct{}{}

		v = unwrapInterface(v.Elem())
		if !v.IsValid() {
			return nil, true, nil
		}
		if leaf, ok := marshalerLeaf(v); ok {
			return leaf, true, nil
		}
	}
	return e.value(v, h)
}

// hop identifies one step of a pointer chain.
type hop struct {
	ptr uintptr
	typ reflect.Type
}

func (e *engine) structValue(v reflect.Value, h handle) (any, bool, error) {
	obj := &object{escapeHTML: e.escapeHTML}

	for _, f := range e.fields.lookup(v.Type()) {
		fv, ok := fieldByIndex(v, f.index)
		if !ok {
			continue
		}
		if f.omitEmpty && isEmptyValue(fv) {
			continue
		}

		out, ok, err := e.child(h, f.name, fv)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}
		if f.quoted {
			if out, err = quote(out); err != nil {
				return nil, false, err
			}
		}
		obj.add(f.name, out)
	}

	return obj, true, nil
}

func (e *engine) mapValue(v reflect.Value, h handle) (any, bool, error) {
	if v.IsNil() {
		return nil, true, nil
	}
	if !validKeyType(v.Type().Key()) {
		return nil, false, &json.UnsupportedTypeError{Type: v.Type()}
	}

	type entry struct {
		name string
		key  reflect.Value
	}

	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		name, err := keyName(iter.Key())
		if err != nil {
			return nil, false, err
		}
		entries = append(entries, entry{name: name, key: iter.Key()})
	}
	slices.SortFunc(entries, func(a, b entry) int {
		return cmp.Compare(a.name, b.name)
	})

	obj := &object{escapeHTML: e.escapeHTML}
	for _, en := range entries {
		out, ok, err := e.child(h, en.name, v.MapIndex(en.key))
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}
		obj.add(en.name, out)
	}

	return obj, true, nil
}

func (e *engine) array(v reflect.Value, h handle) (any, bool, error) {
	out := make([]any, v.Len())
	for i := range v.Len() {
		item, ok, err := e.child(h, strconv.Itoa(i), v.Index(i))
		if err != nil {
			return nil, false, err
		}
		if ok {
			out[i] = item
		}
	}
	return out, true, nil
}

// marshalerLeaf hands values with their own JSON or text form to
// encoding/json unchanged.
func marshalerLeaf(v reflect.Value) (any, bool) {
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, false
	}

	t := v.Type()
	if t.Implements(marshalerType) || t.Implements(textMarshalerType) {
		if v.CanInterface() {
			return v.Interface(), true
		}
		return nil, false
	}

	if v.Kind() != reflect.Pointer && v.CanAddr() {
		pt := reflect.PointerTo(t)
		if pt.Implements(marshalerType) || pt.Implements(textMarshalerType) {
			if p := v.Addr(); p.CanInterface() {
				return p.Interface(), true
			}
		}
	}

	return nil, false
}

func isByteSlice(t reflect.Type) bool {
	if t.Elem().Kind() != reflect.Uint8 {
		return false
	}
	pt := reflect.PointerTo(t.Elem())
	return !pt.Implements(marshalerType) && !pt.Implements(textMarshalerType)
}

func validKeyType(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return t.Implements(textMarshalerType)
}

func keyName(k reflect.Value) (string, error) {
	if k.Kind() == reflect.String {
		return k.String(), nil
	}

	if k.Type().Implements(textMarshalerType) && k.CanInterface() {
		if k.Kind() == reflect.Pointer && k.IsNil() {
			return "", nil
		}
		buf, err := k.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return "", &json.MarshalerError{Type: k.Type(), Err: err}
		}
		return string(buf), nil
	}

	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	}

	return "", &json.UnsupportedTypeError{Type: k.Type()}
}

// quote applies the ",string" tag option to an already converted scalar.
func quote(v any) (any, error) {
	switch v.(type) {
	case bool, int64, uint64, float32, float64, string:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return v, nil
	}
}
