// Package ir holds the graph intermediate representation used by picogen.
//
// A Graph is an arena of nodes addressed by NodeID handles, built once from
// a RawGraph and then rewritten only by the simplifier. Tensors are named by
// TensorID strings; each TensorID is produced by at most one node.
package ir
