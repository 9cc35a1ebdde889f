// Package constprop propagates compile-time constant values and tensor
// shapes through an ir.Graph.
//
// The Engine runs a worklist to a fixed point. Every tensor ends with a State
// that is unknown, shape-only, or exact (value and shape). Transfer functions
// are registered per op type; op types without one fall back to the graph's
// shape table and are reported in Result.Unhandled.
package constprop
