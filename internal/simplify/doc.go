// Package simplify rewrites an ir.Graph using propagation results: it drops
// subgraphs that fold to constants, bypasses no-op nodes and merges inferred
// shapes into the graph's shape table.
package simplify
