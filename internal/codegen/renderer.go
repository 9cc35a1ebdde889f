package codegen

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"
	"text/template"
)

//go:embed templates
var embedded embed.FS

const templateExt = ".tmpl"

// Params are the values a template is executed with.
type Params map[string]any

// Renderer turns a template name and parameters into source text.
type Renderer interface {
	Render(name string, params Params) (string, error)
}

// RendererOptions configures a TemplateRenderer.
type RendererOptions struct {
	// OverrideDir holds templates that shadow the embedded ones (optional).
	OverrideDir string
}

// TemplateRenderer renders text/template files. Parsed templates are cached;
// it is safe for concurrent use.
type TemplateRenderer struct {
	sources []fs.FS

	mu    sync.Mutex
	cache map[string]*template.Template
}

// NewTemplateRenderer creates a renderer over the embedded templates.
func NewTemplateRenderer(opts ...RendererOptions) (*TemplateRenderer, error) {
	opt := RendererOptions{}
	if len(opts) > 0 {
		opt = opts[0]
	}

	base, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, fmt.Errorf("embedded templates: %w", err)
	}
	r := &TemplateRenderer{cache: make(map[string]*template.Template)}
	if opt.OverrideDir != "" {
		info, err := os.Stat(opt.OverrideDir)
		if err != nil {
			return nil, fmt.Errorf("template override dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("template override dir %s is not a directory", opt.OverrideDir)
		}
		r.sources = append(r.sources, os.DirFS(opt.OverrideDir))
	}
	r.sources = append(r.sources, base)
	return r, nil
}

// Render executes the named template. The empty name renders nothing.
func (r *TemplateRenderer) Render(name string, params Params) (string, error) {
	if name == "" {
		return "", nil
	}
	tmpl, err := r.lookup(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Names lists every embedded template name, sorted.
func (r *TemplateRenderer) Names() ([]string, error) {
	var names []string
	base := r.sources[len(r.sources)-1]
	err := fs.WalkDir(base, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, templateExt) {
			names = append(names, strings.TrimSuffix(p, templateExt))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk templates: %w", err)
	}
	return names, nil
}

func (r *TemplateRenderer) lookup(name string) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tmpl, ok := r.cache[name]; ok {
		return tmpl, nil
	}
	file := path.Clean(name) + templateExt
	for _, src := range r.sources {
		data, err := fs.ReadFile(src, file)
		if err != nil {
			continue
		}
		tmpl, err := template.New(name).
			Funcs(funcs).
			Option("missingkey=error").
			Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.cache[name] = tmpl
		return tmpl, nil
	}
	return nil, fmt.Errorf("%s: %w", name, ErrTemplateNotFound)
}
