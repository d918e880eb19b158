package kiln

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/kilnhq/kiln/definition"
	"github.com/kilnhq/kiln/introspect"
)

// resolveState is the trail of entries currently resolving in one Get call.
// It exists to turn definition cycles into errors instead of recursion.
type resolveState struct {
	stack  []string
	active map[string]bool
}

func (st *resolveState) enter(name string) error {
	if st.active[name] {
		return &CycleError{Stack: append(slices.Clone(st.stack), name)}
	}
	if st.active == nil {
		st.active = make(map[string]bool)
	}
	st.active[name] = true
	st.stack = append(st.stack, name)
	return nil
}

func (st *resolveState) leave() {
	last := st.stack[len(st.stack)-1]
	st.stack = st.stack[:len(st.stack)-1]
	delete(st.active, last)
}

// stateResolver is the container view handed to factories. Lookups re-enter
// through the root so the cycle guard spans factory calls too.
type stateResolver struct {
	root stateGetter
	st   *resolveState
}

// Get implements definition.Resolver.
func (r *stateResolver) Get(name string) (any, error) {
	return r.root.getWith(r.st, name)
}

func (c *Interpreted) resolveDef(def definition.Definition, st *resolveState) (any, error) {
	switch d := def.(type) {
	case nil:
		return nil, fmt.Errorf("nil definition")
	case *definition.ValueDef:
		return d.V, nil
	case *definition.RefDef:
		return c.root.getWith(st, d.Target)
	case *definition.FactoryDef:
		return d.Fn(&stateResolver{root: c.root, st: st})
	case *definition.ObjectDef:
		return c.resolveObject(d, st)
	case *definition.ArrayDef:
		return c.resolveArray(d, st)
	default:
		return nil, fmt.Errorf("unsupported definition %T", def)
	}
}

// resolveNode resolves a value that may be a nested definition or raw data.
// Raw data passes through untouched; resolvable collections are authored
// with definition.Array.
func (c *Interpreted) resolveNode(v any, st *resolveState) (any, error) {
	if def, ok := v.(definition.Definition); ok {
		return c.resolveDef(def, st)
	}
	return v, nil
}

// resolveObject constructs *T for the planned type: introspected fields in
// plan order, property overrides, then method calls. The same order the
// compiled routines use.
func (c *Interpreted) resolveObject(d *definition.ObjectDef, st *resolveState) (any, error) {
	if d.TypeName == "" {
		return nil, fmt.Errorf("object definition has no type name")
	}
	spec, ok := c.intr.Lookup(d.TypeName)
	if !ok {
		return nil, fmt.Errorf("type %q is not registered for introspection", d.TypeName)
	}
	if len(d.Args) > len(spec.Fields) {
		return nil, fmt.Errorf("type %s takes %d constructor arguments, got %d",
			d.TypeName, len(spec.Fields), len(d.Args))
	}

	out := spec.New()
	for i, f := range spec.Fields {
		if i < len(d.Args) {
			v, err := c.resolveNode(d.Args[i], st)
			if err != nil {
				return nil, err
			}
			if err := introspect.SetField(out, f.Name, v); err != nil {
				return nil, err
			}
			continue
		}
		entry := f.EntryName()
		if entry == "" {
			if f.Optional {
				continue
			}
			return nil, fmt.Errorf("field %s of %s has no value and no entry to resolve",
				f.Name, d.TypeName)
		}
		v, err := c.root.getWith(st, entry)
		if err != nil {
			if f.Optional && IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if err := introspect.SetField(out, f.Name, v); err != nil {
			return nil, err
		}
	}

	for _, p := range d.Props {
		v, err := c.resolveNode(p.Value, st)
		if err != nil {
			return nil, err
		}
		if err := introspect.SetField(out, p.Name, v); err != nil {
			return nil, err
		}
	}

	for _, call := range d.Calls {
		args := make([]any, len(call.Args))
		for i, a := range call.Args {
			v, err := c.resolveNode(a, st)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		if err := introspect.CallMethod(out, call.Method, args); err != nil {
			return nil, err
		}
	}
	return out.Interface(), nil
}

// resolveArray yields []any when every item is positional, otherwise
// map[string]any with positional items keyed by their decimal index.
func (c *Interpreted) resolveArray(d *definition.ArrayDef, st *resolveState) (any, error) {
	keyed := false
	for _, it := range d.Items {
		if it.Key != "" {
			keyed = true
			break
		}
	}
	if !keyed {
		out := make([]any, len(d.Items))
		for i, it := range d.Items {
			v, err := c.resolveNode(it.Value, st)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	out := make(map[string]any, len(d.Items))
	for i, it := range d.Items {
		key := it.Key
		if key == "" {
			key = strconv.Itoa(i)
		}
		v, err := c.resolveNode(it.Value, st)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}
