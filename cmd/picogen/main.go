// Package main provides the picogen CLI, which converts ONNX models into
// pico-cnn C++ networks.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/born-ml/picogen/internal/codegen"
	"github.com/born-ml/picogen/internal/config"
	"github.com/born-ml/picogen/internal/memory"
	"github.com/born-ml/picogen/onnx"
)

const version = "v0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("picogen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	input := fs.String("input", "", "Path to the model.onnx input file")
	configPath := fs.String("config", "", "YAML configuration file")
	outDir := fs.String("out", "", "Output root directory (overrides output_dir)")
	name := fs.String("name", "", "Model name (default: input file name)")
	showVersion := fs.Bool("version", false, "Show version")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintf(stdout, "picogen %s\n", version)
		return 0
	}
	if *input == "" {
		fmt.Fprintln(stderr, "picogen: --input is required")
		fs.Usage()
		return 2
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(stderr, "picogen: %v\n", err)
			return 1
		}
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}
	if *name != "" {
		cfg.ModelName = *name
	}
	if cfg.ModelName == "" {
		cfg.ModelName = modelName(*input)
	}

	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetLevel(cfg.Level())

	if err := generate(ctx, *input, cfg, logger, stdout); err != nil {
		logger.WithError(err).Error("code generation failed")
		return 1
	}
	return 0
}

// generate compiles the model at path and writes the artifacts to
// <OutputDir>/<ModelName>.
func generate(ctx context.Context, path string, cfg *config.Config, logger *logrus.Logger, stdout io.Writer) error {
	renderer, err := codegen.NewTemplateRenderer(codegen.RendererOptions{OverrideDir: cfg.TemplateDir})
	if err != nil {
		return err
	}
	res, err := onnx.CompileFile(ctx, path, onnx.Options{
		Logger:      logger,
		ModelName:   cfg.ModelName,
		Parallelism: cfg.Parallelism,
		Renderer:    renderer,
		Planner:     memory.StaticPlanner{Alignment: cfg.Alignment},
	})
	if err != nil {
		return err
	}

	if cfg.PrintTable {
		res.WriteInferenceTable(stdout)
	}
	if cfg.PrintLiveRanges {
		res.WriteLiveRanges(stdout)
	}

	dir := filepath.Join(cfg.OutputDir, codegen.Identifier(res.ModelName))
	if err := res.Artifacts.WriteDir(dir); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"dir":         dir,
		"arena_bytes": res.Plan.Total,
	}).Info("wrote network")
	return nil
}

// modelName derives a model name from the input file name.
func modelName(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}
