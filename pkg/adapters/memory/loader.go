package memory

import (
	"context"
	"fmt"

	"github.com/aretw0/s3conform/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Loader implements ports.SuiteLoader over sources held in memory.
type Loader struct {
	sources []*domain.SuiteSource
}

// NewLoader creates a loader returning the given sources.
func NewLoader(sources ...*domain.SuiteSource) *Loader {
	return &Loader{sources: sources}
}

// NewFromYAML decodes suite files keyed by name into sources of one service.
// Sources are kept in the order of names.
func NewFromYAML(service string, names []string, files map[string]string) (*Loader, error) {
	l := &Loader{}
	for _, name := range names {
		var def domain.SuiteDefinition
		if err := yaml.Unmarshal([]byte(files[name]), &def); err != nil {
			return nil, fmt.Errorf("failed to decode suite %s: %w", name, err)
		}
		l.sources = append(l.sources, &domain.SuiteSource{Service: service, Name: name, Definition: &def})
	}
	return l, nil
}

// Load returns the configured sources.
func (l *Loader) Load(ctx context.Context) ([]*domain.SuiteSource, error) {
	return l.sources, nil
}
