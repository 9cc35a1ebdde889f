package compiler

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/born-ml/picogen/internal/codegen"
	"github.com/born-ml/picogen/internal/ir"
	"github.com/born-ml/picogen/internal/weights"
)

// Generated file names.
const (
	HeaderFile     = "network.h"
	SourceFile     = "network.cpp"
	WeightsFile    = "network.weights.bin"
	MakefileFile   = "Makefile"
	DummyInputFile = "dummy_input.cpp"
)

// Artifacts are the generated files of one model.
type Artifacts struct {
	ModelName  string
	Header     string
	Source     string
	Weights    []byte
	Makefile   string
	DummyInput string
}

// Files maps file names to contents.
func (a *Artifacts) Files() map[string][]byte {
	return map[string][]byte{
		HeaderFile:     []byte(a.Header),
		SourceFile:     []byte(a.Source),
		WeightsFile:    a.Weights,
		MakefileFile:   []byte(a.Makefile),
		DummyInputFile: []byte(a.DummyInput),
	}
}

// WriteDir writes every file into dir, creating it if needed.
func (a *Artifacts) WriteDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}
	files := a.Files()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), files[name], 0o644); err != nil { //nolint:gosec // G306: generated sources are meant to be shared.
			return errors.Wrapf(err, "write %s", name)
		}
	}
	return nil
}

// buildArtifacts renders the program files and encodes the weights.
func buildArtifacts(modelName string, g *ir.Graph, tasks []Task, prog *Program, r codegen.Renderer) (*Artifacts, error) {
	a := &Artifacts{ModelName: modelName}
	var err error

	a.Header, err = r.Render("program/network_header", codegen.Params{
		"model_name":   modelName,
		"run_params":   prog.RunParams,
		"declarations": prog.Text(PhaseDeclaration),
	})
	if err != nil {
		return nil, errors.WithMessage(err, "network header")
	}

	a.Source, err = r.Render("program/network_source", codegen.Params{
		"num_kernels": prog.NumKernels,
		"num_biases":  prog.NumBiases,
		"allocations": prog.Text(PhaseAllocation),
		"run_params":  prog.RunParams,
		"executions":  prog.Text(PhaseExecution),
		"deletions":   prog.Text(PhaseDeletion),
	})
	if err != nil {
		return nil, errors.WithMessage(err, "network source")
	}

	a.Weights, err = weights.Encode(modelName, Order(tasks))
	if err != nil {
		return nil, errors.WithMessage(err, "weights")
	}

	a.Makefile, err = r.Render("program/makefile", codegen.Params{"model_name": codegen.Identifier(modelName)})
	if err != nil {
		return nil, errors.WithMessage(err, "makefile")
	}

	in, out := interfaceShapes(g)
	a.DummyInput, err = r.Render("program/dummy_input", codegen.Params{
		"input_dims":     []int(in),
		"output_dims":    []int(out),
		"input_elements": in.NumElements(),
	})
	if err != nil {
		return nil, errors.WithMessage(err, "dummy input")
	}
	return a, nil
}
