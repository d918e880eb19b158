package definition

import (
	"strconv"
	"strings"
)

// Path records the trail of nesting labels from an entry root down to one
// node of its definition tree. It exists purely for diagnostics: errors carry
// a Path and render it once, at the reporting boundary.
//
// A Path is immutable; the extend methods return a copy so sibling branches
// never share backing storage.
type Path struct {
	segs []string
}

// NewPath starts a path at the entry identifier.
func NewPath(entry string) Path {
	return Path{segs: []string{entry}}
}

func (p Path) extend(seg string) Path {
	out := make([]string, len(p.segs), len(p.segs)+1)
	copy(out, p.segs)
	return Path{segs: append(out, seg)}
}

// Key extends the path with an array key.
func (p Path) Key(k string) Path { return p.extend(k) }

// Index extends the path with an element position.
func (p Path) Index(i int) Path { return p.extend(strconv.Itoa(i)) }

// Arg extends the path with a constructor argument position.
func (p Path) Arg(i int) Path { return p.extend("arg " + strconv.Itoa(i)) }

// Prop extends the path with a property name.
func (p Path) Prop(name string) Path { return p.extend("property " + name) }

// Call extends the path with a method name and argument position.
func (p Path) Call(method string, i int) Path {
	return p.extend("call " + method + " arg " + strconv.Itoa(i))
}

// Segments returns a copy of the raw segment list.
func (p Path) Segments() []string {
	out := make([]string, len(p.segs))
	copy(out, p.segs)
	return out
}

// Len reports the number of segments.
func (p Path) Len() int { return len(p.segs) }

// String renders the trail as "entry -> key -> 0".
func (p Path) String() string {
	return strings.Join(p.segs, " -> ")
}
