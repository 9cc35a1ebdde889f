// Package weights encodes the binary weights file read by pico-cnn's
// read_binary_weights.
//
// File layout (all integers little-endian uint32):
//
//	"FD\n"
//	model name "\n"
//	layer count
//	per layer:
//	  layer name "\n"
//	  op type "\n"
//	  per constant input, in attachment order:
//	    rank 4: O, I, H, W   then O*I*H*W float32
//	    rank 3: O, I, 1, W   then O*I*W float32
//	    rank 2: 1, H, W      then H*W float32
//	    rank 1: N            then N float32
//	  0 when the layer has a single constant input and is not an Add
//	"end\n"
//
// A tensor already written for an earlier layer is written again with all
// dimension fields set to zero and no payload. Only layers with at least one
// constant input whose op type is not ignored are written.
//
// The file is not self-describing: the number of dimension fields depends
// on the rank of each tensor, so Decode needs the Layout of the graph.
package weights
