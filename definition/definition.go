// Package definition models the declarative graph a container resolves from.
//
// An entry is a string identifier bound to a Definition. A Definition is a
// small tree: objects and arrays may nest further Definitions, so a single
// entry can describe an arbitrarily deep construction recipe.
//
// Design goals:
//   - Declarative: a Definition describes how to produce a value, it never
//     holds a live instance of the thing it produces (a ValueDef may hold
//     plain data, nothing else).
//   - Inert: the package performs no resolution and no I/O; the interpreted
//     resolver and the compiler both consume the same trees.
//   - Cheap to assemble: helpers are chainable and allocate only what they
//     record.
//
// Helpers mirror the usual container vocabulary: Value for raw data, Ref for
// an alias to another entry, Factory for an opaque callable, Object for a
// type-construction spec, Array for ordered (optionally keyed) collections.
package definition

// Resolver is the narrow container surface a factory receives. The root
// container satisfies it; factories stay decoupled from the concrete
// container type.
type Resolver interface {
	// Get resolves the entry registered under name.
	Get(name string) (any, error)
}

// FactoryFunc produces a value on demand. Factories are opaque to the
// compiler: entries backed by one are always served by the interpreted path.
type FactoryFunc func(r Resolver) (any, error)

// Definition describes how to produce the value of one entry.
//
// The concrete variants are *ValueDef, *RefDef, *FactoryDef, *ObjectDef and
// *ArrayDef. Code switching on a Definition should handle all five.
type Definition interface {
	// definition is a marker; it keeps the variant set closed.
	definition()
}

// ValueDef wraps already-constructed data: scalars, strings, numbers, nil,
// and plain []any / map[string]any collections of the same. Anything else is
// legal to register but can only be served by the interpreted path, and the
// compiler rejects it as a live object.
type ValueDef struct {
	V any
}

// RefDef aliases one entry to another. Resolving the alias resolves the
// target.
type RefDef struct {
	Target string
}

// FactoryDef defers production to a callable.
type FactoryDef struct {
	Fn FactoryFunc
}

// ObjectDef describes constructing a named type: ordered constructor
// arguments first, then property injections, then method calls. Args,
// property values and call arguments may each be a nested Definition or a
// raw value.
type ObjectDef struct {
	// TypeName is the stable, fully-qualified name of the target type as the
	// introspector knows it. Empty means the type has no addressable name.
	TypeName string

	Args  []any
	Props []Property
	Calls []Call
}

// Property is a single ordered property injection.
type Property struct {
	Name  string
	Value any
}

// Call is a single ordered post-construction method call.
type Call struct {
	Method string
	Args   []any
}

// ArrayDef is an ordered sequence of items. Items may carry a string key;
// keyless items are addressed by position.
type ArrayDef struct {
	Items []Item
}

// Item is one element of an ArrayDef. An empty Key means positional.
type Item struct {
	Key   string
	Value any
}

func (*ValueDef) definition()   {}
func (*RefDef) definition()     {}
func (*FactoryDef) definition() {}
func (*ObjectDef) definition()  {}
func (*ArrayDef) definition()   {}

// Value wraps raw data into a definition.
func Value(v any) *ValueDef { return &ValueDef{V: v} }

// Ref aliases the entry to target.
func Ref(target string) *RefDef { return &RefDef{Target: target} }

// Factory defers the entry to fn.
func Factory(fn FactoryFunc) *FactoryDef { return &FactoryDef{Fn: fn} }

// Object starts a construction spec for the named type. Configure it by
// chaining Arg, Prop and Call:
//
//	definition.Object("store.Repo").
//		Arg(definition.Ref("db")).
//		Prop("Timeout", 30).
//		Call("Warm")
func Object(typeName string) *ObjectDef { return &ObjectDef{TypeName: typeName} }

// Arg appends one constructor argument and returns the spec for chaining.
func (o *ObjectDef) Arg(v any) *ObjectDef {
	o.Args = append(o.Args, v)
	return o
}

// Prop appends one property injection and returns the spec for chaining.
func (o *ObjectDef) Prop(name string, v any) *ObjectDef {
	o.Props = append(o.Props, Property{Name: name, Value: v})
	return o
}

// Call appends one method call and returns the spec for chaining.
func (o *ObjectDef) Call(method string, args ...any) *ObjectDef {
	o.Calls = append(o.Calls, Call{Method: method, Args: args})
	return o
}

// Array builds an ordered array definition. Plain values become positional
// items; use Keyed to attach a key.
func Array(items ...any) *ArrayDef {
	out := &ArrayDef{Items: make([]Item, 0, len(items))}
	for _, it := range items {
		if keyed, ok := it.(Item); ok {
			out.Items = append(out.Items, keyed)
			continue
		}
		out.Items = append(out.Items, Item{Value: it})
	}
	return out
}

// Keyed pairs a key with a value for use inside Array.
func Keyed(key string, v any) Item { return Item{Key: key, Value: v} }
