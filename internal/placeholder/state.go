package placeholder

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/aretw0/s3conform/pkg/ports"
)

// DefaultBucketPrefix prefixes names generated by bucketName().
const DefaultBucketPrefix = "1-aws-s3-tests-bucket"

// RunState holds the process-wide layer of a run: global variables and the
// shared ordinal counter. Globals are written during setup only.
type RunState struct {
	mu           sync.RWMutex
	globals      map[string]any
	counter      ports.Counter
	bucketPrefix string
}

// Option configures a RunState.
type Option func(*RunState)

// WithGlobals seeds global variables.
func WithGlobals(vars map[string]any) Option {
	return func(s *RunState) {
		maps.Copy(s.globals, vars)
	}
}

// WithCounter replaces the in-process ordinal counter.
func WithCounter(c ports.Counter) Option {
	return func(s *RunState) {
		if c != nil {
			s.counter = c
		}
	}
}

// WithBucketPrefix sets the prefix used by bucketName().
func WithBucketPrefix(prefix string) Option {
	return func(s *RunState) {
		if prefix != "" {
			s.bucketPrefix = prefix
		}
	}
}

// NewRunState creates the global layer of a run.
func NewRunState(opts ...Option) *RunState {
	s := &RunState{
		globals:      make(map[string]any),
		counter:      &localCounter{},
		bucketPrefix: DefaultBucketPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetGlobal registers a global variable.
func (s *RunState) SetGlobal(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globals[name] = value
}

// RegisterIdentity publishes every identity property as {identity}_{property}.
func (s *RunState) RegisterIdentity(identity string, props map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range props {
		s.globals[identity+"_"+k] = v
	}
}

// Globals returns a copy of the global variables, used to seed suite-local state.
func (s *RunState) Globals() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.globals)
}

// NextOrdinal advances the shared counter.
func (s *RunState) NextOrdinal(ctx context.Context) (int64, error) {
	n, err := s.counter.Next(ctx)
	if err != nil {
		return 0, fmt.Errorf("advance ordinal: %w", err)
	}
	return n, nil
}

// BucketName returns a unique bucket name built from the shared counter.
func (s *RunState) BucketName(ctx context.Context) (string, error) {
	n, err := s.NextOrdinal(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", s.bucketPrefix, n), nil
}

type localCounter struct {
	n atomic.Int64
}

func (c *localCounter) Next(context.Context) (int64, error) {
	return c.n.Add(1), nil
}
