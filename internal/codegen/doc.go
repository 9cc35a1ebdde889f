// Package codegen renders named source templates for the pico-cnn C++
// target.
//
// Templates live under templates/ and are addressed by their path without
// the .tmpl suffix, e.g. "layers/conv2d_alloc". A TemplateRenderer can be
// pointed at an override directory whose files shadow the embedded ones.
package codegen
