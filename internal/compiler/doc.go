// Package compiler drives the picogen pipeline: it builds the graph,
// propagates constants and shapes, simplifies, assigns buffers, selects one
// implementation per node, schedules the nodes and emits the pico-cnn
// network sources and weights.
//
// Example usage:
//
//	c, err := compiler.New(compiler.Options{ModelName: "lenet"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := c.Compile(ctx, raw)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = res.Artifacts.WriteDir("generated_code/lenet")
package compiler
