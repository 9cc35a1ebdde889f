package ir

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/picogen/internal/tensor"
)

// AttrKind identifies which field of an Attr is populated.
type AttrKind int

// Attribute kinds, mirroring ONNX AttributeProto types.
const (
	AttrUndefined AttrKind = iota
	AttrFloat
	AttrInt
	AttrString
	AttrTensor
	AttrFloats
	AttrInts
	AttrStrings
)

// Attr is a single node attribute value.
type Attr struct {
	Kind    AttrKind
	F       float32
	I       int64
	S       string
	T       *tensor.Array
	Floats  []float32
	Ints    []int64
	Strings []string
}

// Float returns a float attribute.
func Float(v float32) Attr { return Attr{Kind: AttrFloat, F: v} }

// Int returns an int attribute.
func Int(v int64) Attr { return Attr{Kind: AttrInt, I: v} }

// String returns a string attribute.
func String(v string) Attr { return Attr{Kind: AttrString, S: v} }

// Tensor returns a tensor attribute.
func Tensor(v *tensor.Array) Attr { return Attr{Kind: AttrTensor, T: v} }

// Ints returns an int list attribute.
func Ints(v ...int64) Attr { return Attr{Kind: AttrInts, Ints: v} }

// Floats returns a float list attribute.
func Floats(v ...float32) Attr { return Attr{Kind: AttrFloats, Floats: v} }

// Strings returns a string list attribute.
func Strings(v ...string) Attr { return Attr{Kind: AttrStrings, Strings: v} }

// Value renders the attribute value for diagnostics and generated comments.
func (a Attr) Value() string {
	switch a.Kind {
	case AttrFloat:
		return fmt.Sprintf("%g", a.F)
	case AttrInt:
		return fmt.Sprintf("%d", a.I)
	case AttrString:
		return a.S
	case AttrTensor:
		if a.T == nil {
			return "tensor()"
		}
		return "tensor" + a.T.Shape.String()
	case AttrFloats:
		return fmt.Sprint(a.Floats)
	case AttrInts:
		return fmt.Sprint(a.Ints)
	case AttrStrings:
		return "[" + strings.Join(a.Strings, " ") + "]"
	default:
		return ""
	}
}

// Attrs maps attribute names to values.
type Attrs map[string]Attr

// Has reports whether the attribute is present.
func (a Attrs) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// Int returns an integer attribute or defaultVal.
func (a Attrs) Int(name string, defaultVal int64) int64 {
	if v, ok := a[name]; ok {
		return v.I
	}
	return defaultVal
}

// Ints returns an integer list attribute or nil.
func (a Attrs) Ints(name string) []int64 {
	if v, ok := a[name]; ok {
		return v.Ints
	}
	return nil
}

// Float returns a float attribute or defaultVal.
func (a Attrs) Float(name string, defaultVal float32) float32 {
	if v, ok := a[name]; ok {
		return v.F
	}
	return defaultVal
}

// Str returns a string attribute or defaultVal.
func (a Attrs) Str(name, defaultVal string) string {
	if v, ok := a[name]; ok {
		return v.S
	}
	return defaultVal
}

// Tensor returns a tensor attribute or nil.
func (a Attrs) Tensor(name string) *tensor.Array {
	if v, ok := a[name]; ok {
		return v.T
	}
	return nil
}

// Keys returns the attribute names in sorted order.
func (a Attrs) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Format renders all attributes as "name=value" pairs in key order.
func (a Attrs) Format() string {
	parts := make([]string, 0, len(a))
	for _, k := range a.Keys() {
		parts = append(parts, k+"="+a[k].Value())
	}
	return strings.Join(parts, ", ")
}
