package compile

import (
	"encoding/json"
	"fmt"
	"go/token"
	"sort"
	"strconv"

	"github.com/kilnhq/kiln/definition"
)

// ManifestSchema is the manifest layout version embedded in every artifact.
// Readers reject manifests written under a different schema.
const ManifestSchema = 1

// Step kinds. Every compiled entry reduces to one of these.
const (
	StepValue  = "value"
	StepRef    = "ref"
	StepObject = "object"
	StepArray  = "array"
)

// Step is one executable node of a compiled plan. Exactly one of the
// kind-specific fields is populated, selected by Kind.
type Step struct {
	Kind   string      `json:"kind"`
	Value  *ValueNode  `json:"value,omitempty"`
	Ref    string      `json:"ref,omitempty"`
	Object *ObjectStep `json:"object,omitempty"`
	Items  []ItemStep  `json:"items,omitempty"`
}

// ObjectStep describes how to construct one object: populate the
// introspected fields in declaration order, apply explicit property
// overrides, then run the method calls.
type ObjectStep struct {
	TypeName string      `json:"type"`
	Fields   []FieldStep `json:"fields,omitempty"`
	Props    []FieldStep `json:"props,omitempty"`
	Calls    []CallStep  `json:"calls,omitempty"`
}

// FieldStep assigns the result of a nested step to a named field. Optional
// fields keep their zero value when the step resolves to a missing entry.
type FieldStep struct {
	Name     string `json:"name"`
	Value    Step   `json:"value"`
	Optional bool   `json:"optional,omitempty"`
}

// CallStep invokes a method with resolved arguments after construction.
type CallStep struct {
	Method string `json:"method"`
	Args   []Step `json:"args,omitempty"`
}

// ItemStep is one collection element. An empty Key means positional.
type ItemStep struct {
	Key   string `json:"key,omitempty"`
	Value Step   `json:"value"`
}

// Manifest is the complete compiled plan for one artifact: every entry that
// passed analysis, keyed by entry name. It is embedded verbatim in the
// generated source so the artifact can be replayed without the original
// definitions.
type Manifest struct {
	Schema  int             `json:"schema"`
	Name    string          `json:"name"`
	Parent  string          `json:"parent,omitempty"`
	Entries map[string]Step `json:"entries"`

	// Skipped lists the entries that stayed interpreted, for diagnostics.
	Skipped []string `json:"skipped,omitempty"`
}

// NewManifest assembles the manifest for an analysis outcome.
func NewManifest(name, parent string, a *Analysis) *Manifest {
	return &Manifest{
		Schema:  ManifestSchema,
		Name:    name,
		Parent:  parent,
		Entries: a.Entries,
		Skipped: a.Skipped,
	}
}

// EntryNames returns the compiled entry names in sorted order.
func (m *Manifest) EntryNames() []string {
	names := make([]string, 0, len(m.Entries))
	for name := range m.Entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Encode serializes the manifest to compact JSON. Map keys are emitted in
// sorted order, so equal manifests encode to equal bytes.
func (m *Manifest) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// MustParseManifest is ParseManifest for manifests embedded in generated
// source, where a parse failure means the artifact itself is corrupt.
func MustParseManifest(data string) *Manifest {
	m, err := ParseManifest([]byte(data))
	if err != nil {
		panic("compile: " + err.Error())
	}
	return m
}

// ParseManifest decodes and validates manifest bytes recovered from an
// artifact.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Schema != ManifestSchema {
		return nil, fmt.Errorf("parse manifest: unsupported schema %d, want %d", m.Schema, ManifestSchema)
	}
	if !token.IsIdentifier(m.Name) {
		return nil, &InvalidNameError{Name: m.Name}
	}
	if m.Entries == nil {
		m.Entries = map[string]Step{}
	}
	return &m, nil
}

// Value kinds understood by the codec. The portable universe is scalars,
// strings, nil, []any and map[string]any; anything else is an object and
// fails analysis.
const (
	kindNil     = "nil"
	kindBool    = "bool"
	kindString  = "string"
	kindInt     = "int"
	kindInt8    = "int8"
	kindInt16   = "int16"
	kindInt32   = "int32"
	kindInt64   = "int64"
	kindUint    = "uint"
	kindUint8   = "uint8"
	kindUint16  = "uint16"
	kindUint32  = "uint32"
	kindUint64  = "uint64"
	kindFloat32 = "float32"
	kindFloat64 = "float64"
	kindList    = "list"
	kindMap     = "map"
)

// ValueNode is the wire form of one portable value. Scalars carry their
// exact text rendering in S, collections nest. Map keys are sorted at encode
// time.
type ValueNode struct {
	T     string      `json:"t"`
	S     string      `json:"s,omitempty"`
	Items []ValueNode `json:"items,omitempty"`
	Keys  []string    `json:"keys,omitempty"`
	Vals  []ValueNode `json:"vals,omitempty"`
}

// encodeValue converts a raw Go value into its wire form. Values outside the
// portable universe fail with an ObjectError carrying the exact path.
func encodeValue(v any, path definition.Path) (ValueNode, error) {
	switch x := v.(type) {
	case nil:
		return ValueNode{T: kindNil}, nil
	case bool:
		return ValueNode{T: kindBool, S: strconv.FormatBool(x)}, nil
	case string:
		return ValueNode{T: kindString, S: x}, nil
	case int:
		return ValueNode{T: kindInt, S: strconv.FormatInt(int64(x), 10)}, nil
	case int8:
		return ValueNode{T: kindInt8, S: strconv.FormatInt(int64(x), 10)}, nil
	case int16:
		return ValueNode{T: kindInt16, S: strconv.FormatInt(int64(x), 10)}, nil
	case int32:
		return ValueNode{T: kindInt32, S: strconv.FormatInt(int64(x), 10)}, nil
	case int64:
		return ValueNode{T: kindInt64, S: strconv.FormatInt(x, 10)}, nil
	case uint:
		return ValueNode{T: kindUint, S: strconv.FormatUint(uint64(x), 10)}, nil
	case uint8:
		return ValueNode{T: kindUint8, S: strconv.FormatUint(uint64(x), 10)}, nil
	case uint16:
		return ValueNode{T: kindUint16, S: strconv.FormatUint(uint64(x), 10)}, nil
	case uint32:
		return ValueNode{T: kindUint32, S: strconv.FormatUint(uint64(x), 10)}, nil
	case uint64:
		return ValueNode{T: kindUint64, S: strconv.FormatUint(x, 10)}, nil
	case float32:
		return ValueNode{T: kindFloat32, S: strconv.FormatFloat(float64(x), 'g', -1, 32)}, nil
	case float64:
		return ValueNode{T: kindFloat64, S: strconv.FormatFloat(x, 'g', -1, 64)}, nil
	case []any:
		items := make([]ValueNode, len(x))
		for i, item := range x {
			node, err := encodeValue(item, path.Index(i))
			if err != nil {
				return ValueNode{}, err
			}
			items[i] = node
		}
		return ValueNode{T: kindList, Items: items}, nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		vals := make([]ValueNode, len(keys))
		for i, k := range keys {
			node, err := encodeValue(x[k], path.Key(k))
			if err != nil {
				return ValueNode{}, err
			}
			vals[i] = node
		}
		return ValueNode{T: kindMap, Keys: keys, Vals: vals}, nil
	default:
		return ValueNode{}, &ObjectError{Path: path, GoType: fmt.Sprintf("%T", v)}
	}
}

// decodeValue reconstructs the exact Go value a node was encoded from.
func decodeValue(n ValueNode) (any, error) {
	switch n.T {
	case kindNil:
		return nil, nil
	case kindBool:
		b, err := strconv.ParseBool(n.S)
		if err != nil {
			return nil, fmt.Errorf("decode bool value %q: %w", n.S, err)
		}
		return b, nil
	case kindString:
		return n.S, nil
	case kindInt, kindInt8, kindInt16, kindInt32, kindInt64:
		i, err := strconv.ParseInt(n.S, 10, intBits(n.T))
		if err != nil {
			return nil, fmt.Errorf("decode %s value %q: %w", n.T, n.S, err)
		}
		switch n.T {
		case kindInt:
			return int(i), nil
		case kindInt8:
			return int8(i), nil
		case kindInt16:
			return int16(i), nil
		case kindInt32:
			return int32(i), nil
		default:
			return i, nil
		}
	case kindUint, kindUint8, kindUint16, kindUint32, kindUint64:
		u, err := strconv.ParseUint(n.S, 10, intBits(n.T))
		if err != nil {
			return nil, fmt.Errorf("decode %s value %q: %w", n.T, n.S, err)
		}
		switch n.T {
		case kindUint:
			return uint(u), nil
		case kindUint8:
			return uint8(u), nil
		case kindUint16:
			return uint16(u), nil
		case kindUint32:
			return uint32(u), nil
		default:
			return u, nil
		}
	case kindFloat32:
		f, err := strconv.ParseFloat(n.S, 32)
		if err != nil {
			return nil, fmt.Errorf("decode float32 value %q: %w", n.S, err)
		}
		return float32(f), nil
	case kindFloat64:
		f, err := strconv.ParseFloat(n.S, 64)
		if err != nil {
			return nil, fmt.Errorf("decode float64 value %q: %w", n.S, err)
		}
		return f, nil
	case kindList:
		out := make([]any, len(n.Items))
		for i, item := range n.Items {
			v, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case kindMap:
		if len(n.Keys) != len(n.Vals) {
			return nil, fmt.Errorf("decode map value: %d keys but %d values", len(n.Keys), len(n.Vals))
		}
		out := make(map[string]any, len(n.Keys))
		for i, k := range n.Keys {
			v, err := decodeValue(n.Vals[i])
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("decode value: unknown kind %q", n.T)
	}
}

func intBits(kind string) int {
	switch kind {
	case kindInt8, kindUint8:
		return 8
	case kindInt16, kindUint16:
		return 16
	case kindInt32, kindUint32:
		return 32
	case kindInt64, kindUint64:
		return 64
	default:
		return strconv.IntSize
	}
}
