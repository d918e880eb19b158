package hcldef

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/kilnhq/kiln/definition"
)

// definition translates one entry block into its definition.
func (b *entryBlock) definition() (definition.Definition, error) {
	if b.Class == nil && (len(b.Args) > 0 || len(b.Props) > 0 || len(b.Calls) > 0) {
		return nil, fmt.Errorf("entry %q has arg, property or call blocks but no class", b.Name)
	}
	hasValue := exprDefined(b.Value)
	kinds := 0
	for _, set := range []bool{hasValue, b.Alias != nil, b.Class != nil, len(b.Items) > 0} {
		if set {
			kinds++
		}
	}
	if kinds == 0 {
		return nil, fmt.Errorf("entry %q declares none of value, alias, class or item", b.Name)
	}
	if kinds > 1 {
		return nil, fmt.Errorf("entry %q mixes kinds, declare exactly one of value, alias, class or item", b.Name)
	}

	switch {
	case hasValue:
		v, err := evalNative(b.Value)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", b.Name, err)
		}
		return definition.Value(v), nil
	case b.Alias != nil:
		return definition.Ref(*b.Alias), nil
	case b.Class != nil:
		return b.object()
	default:
		return b.array()
	}
}

func (b *entryBlock) object() (definition.Definition, error) {
	obj := definition.Object(*b.Class)
	for i, arg := range b.Args {
		v, err := node(fmt.Sprintf("entry %q arg %d", b.Name, i), arg.Value, arg.Entry)
		if err != nil {
			return nil, err
		}
		obj.Arg(v)
	}
	for _, p := range b.Props {
		v, err := node(fmt.Sprintf("entry %q property %s", b.Name, p.Name), p.Value, p.Entry)
		if err != nil {
			return nil, err
		}
		obj.Prop(p.Name, v)
	}
	for _, c := range b.Calls {
		args := make([]any, 0, len(c.Args))
		for i, arg := range c.Args {
			v, err := node(fmt.Sprintf("entry %q call %s arg %d", b.Name, c.Method, i), arg.Value, arg.Entry)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		obj.Call(c.Method, args...)
	}
	return obj, nil
}

func (b *entryBlock) array() (definition.Definition, error) {
	items := make([]any, 0, len(b.Items))
	for i, it := range b.Items {
		v, err := node(fmt.Sprintf("entry %q item %d", b.Name, i), it.Value, it.Entry)
		if err != nil {
			return nil, err
		}
		if it.Key != nil {
			items = append(items, definition.Keyed(*it.Key, v))
			continue
		}
		items = append(items, v)
	}
	return definition.Array(items...), nil
}

// node reduces a value-or-entry pair to a raw value or a ref definition.
func node(where string, value hcl.Expression, entry *string) (any, error) {
	hasValue := exprDefined(value)
	switch {
	case hasValue && entry != nil:
		return nil, fmt.Errorf("%s sets both value and entry", where)
	case entry != nil:
		return definition.Ref(*entry), nil
	case hasValue:
		return evalNative(value)
	default:
		return nil, fmt.Errorf("%s sets neither value nor entry", where)
	}
}

// exprDefined reports whether an optional expression attribute was actually
// written in the source. The decoder fills absent attributes with zero-width
// placeholder expressions, so a nil check is not enough.
func exprDefined(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	rng := expr.Range()
	return rng.End.Byte > rng.Start.Byte
}

func evalNative(expr hcl.Expression) (any, error) {
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("evaluate expression: %w", diags)
	}
	return ctyNative(v)
}

// ctyNative converts an evaluated value to its Go counterpart. Whole
// numbers become int64, anything fractional float64.
func ctyNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Number:
		var n int64
		if err := gocty.FromCtyValue(v, &n); err == nil {
			return n, nil
		}
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("convert number: %w", err)
		}
		return f, nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty.IsTupleType() || ty.IsListType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			nv, err := ctyNative(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, nv)
		}
		return out, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			nv, err := ctyNative(ev)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = nv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}
