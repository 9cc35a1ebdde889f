package codegen

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"
)

var funcs = template.FuncMap{
	"join":  Join,
	"ident": Symbol,
	"float": Float,
	"quote": strconv.Quote,
}

// Identifier replaces every character outside [A-Za-z0-9_] with '_'.
func Identifier(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Symbol is Identifier made safe to start a C++ name.
func Symbol(s string) string {
	id := Identifier(s)
	if id == "" || (id[0] >= '0' && id[0] <= '9') {
		return "_" + id
	}
	return id
}

// Join renders an integer slice as a comma separated list.
func Join(v any) (string, error) {
	var parts []string
	switch xs := v.(type) {
	case []int:
		for _, x := range xs {
			parts = append(parts, strconv.Itoa(x))
		}
	case []int64:
		for _, x := range xs {
			parts = append(parts, strconv.FormatInt(x, 10))
		}
	case []uint32:
		for _, x := range xs {
			parts = append(parts, strconv.FormatUint(uint64(x), 10))
		}
	default:
		return "", fmt.Errorf("join: unsupported type %T", v)
	}
	return strings.Join(parts, ", "), nil
}

// Float renders f as a C++ float literal.
func Float(f float32) string {
	switch {
	case math.IsInf(float64(f), 1):
		return "INFINITY"
	case math.IsInf(float64(f), -1):
		return "-INFINITY"
	}
	s := strconv.FormatFloat(float64(f), 'g', -1, 32)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s + "f"
}
