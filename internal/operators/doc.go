// Package operators maps graph nodes to pico-cnn code generators.
//
// The Registry keeps an ordered list of Variants per op type. Selection asks
// each variant in turn to build an Implementation for a node and keeps the
// first one that applies. A variant that does not apply returns (nil, nil);
// one that recognises a construct pico-cnn cannot run returns an error
// wrapping ErrUnsupported.
//
// Supported families:
//   - Convolution and fully connected layers (Conv, Gemm)
//   - Pooling (MaxPool, AveragePool, GlobalAveragePool, GlobalMaxPool)
//   - Activations and normalisation (Relu, Sigmoid, Tanh, Softmax, Clip,
//     LRN, BatchNormalization)
//   - Tensor operations (Concat, Reshape, Flatten, Add, Pad)
package operators
