// Package memory assigns storage buffers to the tensors of an ir.Graph.
//
// A Manager hands out one Buffer per TensorID and always returns the same
// pointer for the same id. Planners lay buffers out in a static arena, and
// LiveRanges reports first definition and last use per tensor for a given
// node order.
package memory
