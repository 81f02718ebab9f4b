// Package loader discovers suite definitions on disk: YAML files grouped by
// service directory and mind-map archives whose sheets name the service.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/s3conform/internal/logging"
	"github.com/aretw0/s3conform/internal/mindmap"
	"github.com/aretw0/s3conform/pkg/adapters/xmind"
	"github.com/aretw0/s3conform/pkg/domain"
	"gopkg.in/yaml.v3"
)

// ExportDir is the directory under the suites root receiving YAML exports of
// imported mind maps. It is never scanned for suites.
const ExportDir = "exports"

// ExportFileName is the file written per service by Export.
const ExportFileName = "integration_tests.yaml"

// Loader implements ports.SuiteLoader over a suites directory.
type Loader struct {
	dir     string
	yaml    bool
	xmind   bool
	buckets []string
	export  bool
	logger  *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithYAML toggles loading of <dir>/<service>/*.yaml.
func WithYAML(enabled bool) Option {
	return func(l *Loader) { l.yaml = enabled }
}

// WithXMind toggles loading of <dir>/*.xmind.
func WithXMind(enabled bool) Option {
	return func(l *Loader) { l.xmind = enabled }
}

// WithBuckets restricts mind-map imports to these bucket topics.
func WithBuckets(buckets []string) Option {
	return func(l *Loader) {
		if len(buckets) > 0 {
			l.buckets = buckets
		}
	}
}

// WithExport writes every imported mind-map definition back as YAML.
func WithExport(enabled bool) Option {
	return func(l *Loader) { l.export = enabled }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a loader rooted at dir.
func New(dir string, opts ...Option) *Loader {
	l := &Loader{
		dir:     dir,
		yaml:    true,
		buckets: []string{domain.BucketPass, domain.BucketFailed, domain.BucketSkipped},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns every source found, YAML files first, ordered by service and
// file name.
func (l *Loader) Load(ctx context.Context) ([]*domain.SuiteSource, error) {
	info, err := os.Stat(l.dir)
	if err != nil {
		return nil, &domain.ConfigurationError{Field: "suites_dir", Reason: "cannot open", Err: err}
	}
	if !info.IsDir() {
		return nil, &domain.ConfigurationError{Field: "suites_dir", Reason: l.dir + " is not a directory"}
	}

	var sources []*domain.SuiteSource
	if l.yaml {
		found, err := l.loadYAML(ctx)
		if err != nil {
			return nil, err
		}
		sources = append(sources, found...)
	}
	if l.xmind {
		found, err := l.loadXMind(ctx)
		if err != nil {
			return nil, err
		}
		if l.export {
			if err := Export(filepath.Join(l.dir, ExportDir), found); err != nil {
				return nil, err
			}
		}
		sources = append(sources, found...)
	}
	return sources, nil
}

func (l *Loader) loadYAML(ctx context.Context) ([]*domain.SuiteSource, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, err
	}
	var sources []*domain.SuiteSource
	for _, e := range entries {
		if !e.IsDir() || e.Name() == ExportDir {
			continue
		}
		service := e.Name()
		files, err := os.ReadDir(filepath.Join(l.dir, service))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if f.IsDir() || !isYAML(f.Name()) {
				continue
			}
			path := filepath.Join(l.dir, service, f.Name())
			def, err := DecodeFile(path)
			if err != nil {
				return nil, err
			}
			if def == nil {
				continue
			}
			l.logger.DebugContext(ctx, "loaded suite file", "service", service, "path", path, "branches", len(def.Branches))
			sources = append(sources, &domain.SuiteSource{Service: service, Name: f.Name(), Definition: def})
		}
	}
	return sources, nil
}

func (l *Loader) loadXMind(ctx context.Context) ([]*domain.SuiteSource, error) {
	paths, err := filepath.Glob(filepath.Join(l.dir, "*.xmind"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	var sources []*domain.SuiteSource
	for _, path := range paths {
		sheets, err := xmind.ReadFile(path)
		if err != nil {
			return nil, &domain.ConfigurationError{Field: "load_xmind_suites", Reason: "unreadable archive", Err: err}
		}
		for _, sheet := range sheets {
			def, err := mindmap.ImportSheet(sheet, l.buckets)
			if err != nil {
				return nil, fmt.Errorf("%s sheet %s: %w", path, sheet.Title, err)
			}
			if def == nil || len(def.Branches) == 0 {
				continue
			}
			l.logger.DebugContext(ctx, "imported mind map", "service", sheet.Title, "path", path, "branches", len(def.Branches))
			sources = append(sources, &domain.SuiteSource{Service: sheet.Title, Name: filepath.Base(path), Definition: def})
		}
	}
	return sources, nil
}

// DecodeFile decodes one suite file. An empty file yields a nil definition.
func DecodeFile(path string) (*domain.SuiteDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var def domain.SuiteDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, &domain.ConfigurationError{Field: path, Reason: "undecodable suite file", Err: err}
	}
	return &def, nil
}

// Export writes each service's definitions to <dir>/<service>/integration_tests.yaml
// as a list-form suite file. Branches of several sources of one service are
// concatenated.
func Export(dir string, sources []*domain.SuiteSource) error {
	merged := make(map[string]*domain.SuiteDefinition)
	var order []string
	for _, src := range sources {
		def, ok := merged[src.Service]
		if !ok {
			def = &domain.SuiteDefinition{}
			merged[src.Service] = def
			order = append(order, src.Service)
		}
		def.Branches = append(def.Branches, src.Definition.Branches...)
	}

	for _, service := range order {
		out, err := yaml.Marshal(merged[service])
		if err != nil {
			return fmt.Errorf("failed to encode %s suites: %w", service, err)
		}
		target := filepath.Join(dir, service)
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
		if err := os.WriteFile(filepath.Join(target, ExportFileName), out, 0o644); err != nil {
			return fmt.Errorf("failed to write %s export: %w", service, err)
		}
	}
	return nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
