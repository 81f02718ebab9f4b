// Package runtime executes linear suites against client bindings.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/aretw0/s3conform/internal/assertion"
	"github.com/aretw0/s3conform/internal/expansion"
	"github.com/aretw0/s3conform/internal/logging"
	"github.com/aretw0/s3conform/internal/placeholder"
	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/aretw0/s3conform/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the worker pool when no limit is configured.
const DefaultConcurrency = 5

// Session runs the suites of one service: SetUp expands definitions and opens
// bindings, Run executes them, TearDown releases everything.
type Session struct {
	service      string
	sources      []*domain.SuiteSource
	provider     ports.BindingProvider
	identities   map[string]map[string]any
	clientConfig map[string]any

	state       *placeholder.RunState
	resolver    *placeholder.Resolver
	filter      *Filter
	registry    Registry
	concurrency int
	teardown    *domain.CaseNode
	hooks       domain.LifecycleHooks
	logger      *slog.Logger

	bindings  map[string]ports.ClientBinding
	supported map[string]map[string]struct{}
	suites    []*domain.LinearSuite
	extra     atomic.Int64
	cleanups  []func()
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIdentities sets the configured identities and their properties.
func WithIdentities(identities map[string]map[string]any) Option {
	return func(s *Session) {
		s.identities = identities
	}
}

// WithClientConfig sets the properties shared by every binding.
func WithClientConfig(cfg map[string]any) Option {
	return func(s *Session) {
		s.clientConfig = cfg
	}
}

// WithRunState shares a run state (globals and counter) across sessions.
func WithRunState(state *placeholder.RunState) Option {
	return func(s *Session) {
		if state != nil {
			s.state = state
		}
	}
}

// WithFilter sets the include/exclude filter.
func WithFilter(f *Filter) Option {
	return func(s *Session) {
		s.filter = f
	}
}

// WithConcurrency bounds the number of suites running at once.
// Non-positive values are ignored.
func WithConcurrency(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithTeardown runs a copy of tc after every executed suite. Its errors are
// logged and never change the suite outcome.
func WithTeardown(tc *domain.CaseNode) Option {
	return func(s *Session) {
		s.teardown = tc
	}
}

// WithRegistry replaces the predefined operations.
func WithRegistry(r Registry) Option {
	return func(s *Session) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Session) {
		s.hooks = hooks
	}
}

// NewSession creates a session for one service.
func NewSession(service string, sources []*domain.SuiteSource, provider ports.BindingProvider, opts ...Option) *Session {
	s := &Session{
		service:     service,
		sources:     sources,
		provider:    provider,
		registry:    DefaultRegistry(),
		concurrency: DefaultConcurrency,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.state == nil {
		s.state = placeholder.NewRunState()
	}
	s.resolver = placeholder.NewResolver(s.state)
	s.logger = s.logger.With("service", service)
	return s
}

// DefaultTeardown drops the suite bucket as the admin identity.
func DefaultTeardown() *domain.CaseNode {
	visible := false
	return &domain.CaseNode{
		Title:          "AutoClean",
		Operation:      "DropBucket",
		ClientIdentity: domain.AdminIdentity,
		Parameters:     map[string]any{"Bucket": "${Bucket}"},
		Hidden:         &visible,
	}
}

// Service returns the service name.
func (s *Session) Service() string {
	return s.service
}

// Suites returns the expanded suites in expansion order.
func (s *Session) Suites() []*domain.LinearSuite {
	return s.suites
}

// ExtraCalls returns the requests issued by predefined operations.
func (s *Session) ExtraCalls() int {
	return int(s.extra.Load())
}

// AddCleanup registers a hook run by TearDown.
func (s *Session) AddCleanup(fn func()) {
	s.cleanups = append(s.cleanups, fn)
}

// SetUp expands every source and opens one binding per identity.
func (s *Session) SetUp(ctx context.Context) error {
	s.suites = nil
	for _, src := range s.sources {
		suites := expansion.Linearize(expansion.IDPrefix(s.service, src.Name), src.Name, src.Definition)
		s.logger.DebugContext(ctx, "expanded suite source", "source", src.Name, "suites", len(suites))
		s.suites = append(s.suites, suites...)
	}
	if len(s.suites) == 0 {
		return fmt.Errorf("service %s: %w", s.service, domain.ErrNoSuites)
	}

	s.bindings = make(map[string]ports.ClientBinding, len(s.identities))
	s.supported = make(map[string]map[string]struct{}, len(s.identities))
	for _, name := range slices.Sorted(maps.Keys(s.identities)) {
		props := s.identities[name]
		s.state.RegisterIdentity(name, props)

		merged := maps.Clone(s.clientConfig)
		if merged == nil {
			merged = make(map[string]any)
		}
		maps.Copy(merged, props)
		merged["identity_name"] = name

		b, err := s.provider.Open(ctx, s.service, name, merged)
		if err != nil {
			s.closeBindings()
			return fmt.Errorf("open client %s for %s: %w", name, s.service, err)
		}
		s.bindings[name] = b
		ops := make(map[string]struct{})
		for _, op := range b.SupportedOperations() {
			ops[op] = struct{}{}
		}
		s.supported[name] = ops
	}
	return nil
}

// Run filters the suites and executes the survivors on a bounded worker pool.
// It returns once every suite finished; suite failures are not errors.
func (s *Session) Run(ctx context.Context) error {
	var runnable []*domain.LinearSuite
	for _, suite := range s.suites {
		if !s.filter.Allow(suite) {
			suite.State = domain.SuiteSkipped
			s.logger.DebugContext(ctx, "suite skipped by filter", "suite_id", suite.ID, "path", suite.VisiblePath)
			continue
		}
		runnable = append(runnable, suite)
	}
	s.logger.InfoContext(ctx, "running suites", "total", len(s.suites), "runnable", len(runnable), "concurrency", s.concurrency)

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, suite := range runnable {
		g.Go(func() error {
			s.runSuite(ctx, suite)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// TearDown runs registered cleanups and closes every binding.
func (s *Session) TearDown() {
	for _, fn := range s.cleanups {
		fn()
	}
	s.cleanups = nil
	s.closeBindings()
}

func (s *Session) closeBindings() {
	for name, b := range s.bindings {
		if err := b.Close(); err != nil {
			s.logger.Warn("failed to close client", "identity", name, "error", err)
		}
	}
	s.bindings = nil
}

// Summary computes the outcome counters of the last run.
func (s *Session) Summary() domain.Summary {
	return Summarize(s.suites, s.ExtraCalls())
}

func (s *Session) runSuite(ctx context.Context, suite *domain.LinearSuite) {
	start := time.Now()
	suite.State = domain.SuiteRunning
	if s.hooks.OnSuiteStart != nil {
		s.hooks.OnSuiteStart(ctx, &domain.SuiteEvent{Service: s.service, SuiteID: suite.ID, Path: suite.VisiblePath, State: suite.State})
	}

	log := s.logger.With("suite_id", suite.ID)
	locals := s.state.Globals()
	suite.State = domain.SuitePassed
	path := ""
	for _, c := range suite.Cases {
		path = appendPath(path, c)
		if err := s.runCase(ctx, log, suite.ID, path, c, locals, false); err != nil {
			suite.State = domain.SuiteFailed
			break
		}
	}

	if s.teardown != nil && ctx.Err() == nil {
		tc := s.teardown.Clone()
		if err := s.runCase(ctx, log, suite.ID, tc.DisplayTitle(), tc, locals, true); err != nil {
			log.WarnContext(ctx, "teardown failed", "error", err)
		}
	}

	log.InfoContext(ctx, "suite finished", "state", suite.State, "path", suite.VisiblePath, "duration", time.Since(start))
	if s.hooks.OnSuiteFinish != nil {
		s.hooks.OnSuiteFinish(ctx, &domain.SuiteEvent{Service: s.service, SuiteID: suite.ID, Path: suite.VisiblePath, State: suite.State, Duration: time.Since(start)})
	}
}

func appendPath(path string, c *domain.CaseNode) string {
	if c.IsHidden() {
		return path
	}
	if path == "" {
		return c.DisplayTitle()
	}
	return path + domain.PathSeparator + c.DisplayTitle()
}

// runCase executes one case. Nodes without an operation are labels and
// always succeed. Teardown cases are not reported to the case hook.
func (s *Session) runCase(ctx context.Context, log *slog.Logger, suiteID, path string, c *domain.CaseNode, locals map[string]any, teardown bool) (err error) {
	if c.Operation == "" {
		return nil
	}
	start := time.Now()
	var rb placeholder.Rollback
	defer rb.Run()

	scope := maps.Clone(locals)
	var resp map[string]any
	defer func() {
		s.finishCase(ctx, log, suiteID, path, c, resp, err, time.Since(start), teardown)
	}()

	var binding ports.ClientBinding
	if c.ClientIdentity != "" {
		b, ok := s.bindings[c.ClientIdentity]
		if !ok {
			return &domain.ConfigurationError{Field: domain.KeyClient, Reason: c.ClientIdentity, Err: domain.ErrUnknownIdentity}
		}
		binding = b
		maps.Copy(scope, b.Properties())
	}

	if c.Parameters != nil {
		if err := s.resolver.ResolveTree(ctx, c.Parameters, scope, &rb); err != nil {
			return err
		}
		maps.Copy(scope, c.Parameters)
	}

	resp, err = s.dispatch(ctx, c, binding, locals, scope)
	if err != nil {
		return err
	}
	c.Response = resp
	maps.Copy(scope, resp)

	if c.Assertion != nil {
		expected, err := s.resolver.Resolve(ctx, c.Assertion, scope)
		if err != nil {
			return err
		}
		if err := assertion.Validate(expected.(map[string]any), resp); err != nil {
			return err
		}
	}

	for name, expr := range c.SuiteLocals {
		v, err := s.resolver.Resolve(ctx, expr, scope)
		if err != nil {
			return err
		}
		locals[name] = v
	}
	return nil
}

func (s *Session) dispatch(ctx context.Context, c *domain.CaseNode, binding ports.ClientBinding, locals, scope map[string]any) (map[string]any, error) {
	if fn, ok := s.registry[c.Operation]; ok {
		return fn(ctx, &Call{Binding: binding, Params: c.Parameters, SuiteLocals: locals, CaseLocals: scope, extra: &s.extra})
	}
	if binding == nil {
		return nil, &domain.ConfigurationError{Field: c.Operation, Reason: "no client identity", Err: domain.ErrUnknownIdentity}
	}
	if _, ok := s.supported[binding.Identity()][c.Operation]; !ok {
		return nil, &domain.ConfigurationError{Field: c.Operation, Reason: "not supported by " + s.service, Err: domain.ErrOperationUndefined}
	}
	resp, err := binding.Invoke(ctx, c.Operation, c.Parameters)
	return responseOf(c.Operation, resp, err)
}

func (s *Session) finishCase(ctx context.Context, log *slog.Logger, suiteID, path string, c *domain.CaseNode, resp map[string]any, err error, d time.Duration, teardown bool) {
	c.MarkResult(err == nil)
	if err != nil {
		c.ErrorInfo = domain.Describe(err)
		if resp != nil {
			c.Response = resp
			if status, ok := statusOf(resp); ok && c.Assertion != nil {
				c.Title = fmt.Sprintf("%s-%v", c.DisplayTitle(), status)
			}
		}
		log.ErrorContext(ctx, "case failed", "path", path, "operation", c.Operation,
			"request", c.Parameters, "response", resp, "error", err)
	} else {
		log.DebugContext(ctx, "case passed", "path", path, "operation", c.Operation, "duration", d)
	}

	if s.hooks.OnCaseFinish != nil && !teardown {
		s.hooks.OnCaseFinish(ctx, &domain.CaseEvent{
			Service:   s.service,
			SuiteID:   suiteID,
			Title:     c.DisplayTitle(),
			Operation: c.Operation,
			Identity:  c.ClientIdentity,
			Success:   err == nil,
			Err:       err,
			Duration:  d,
		})
	}
}

func statusOf(resp map[string]any) (any, bool) {
	meta, ok := resp["ResponseMetadata"].(map[string]any)
	if !ok {
		return nil, false
	}
	status, ok := meta["HTTPStatusCode"]
	return status, ok && status != nil
}
