package s3conform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/aretw0/s3conform/internal/config"
	"github.com/aretw0/s3conform/internal/logging"
	"github.com/aretw0/s3conform/internal/mindmap"
	"github.com/aretw0/s3conform/internal/placeholder"
	"github.com/aretw0/s3conform/internal/runtime"
	"github.com/aretw0/s3conform/internal/validator"
	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/aretw0/s3conform/pkg/ports"
	"github.com/google/uuid"
)

// Config is the decoded configuration file.
type Config = config.Config

// LoadConfig reads the configuration file at path. An empty path falls back
// to $S3CONFORM_CONFIG and then ./config.yaml.
func LoadConfig(path string) (*Config, error) {
	return config.Load(config.ResolvePath(path))
}

// ParseConfig decodes a configuration document held in memory.
func ParseConfig(data []byte) (*Config, error) {
	return config.Parse(data)
}

// Runner is the high-level entry point: it loads suites, runs them service by
// service and publishes the outcome.
type Runner struct {
	cfg *Config

	loader   ports.SuiteLoader
	provider ports.BindingProvider
	store    ports.ReportStore
	sink     ports.ReportSink
	counter  ports.Counter
	locker   ports.DistributedLocker
	hooks    domain.LifecycleHooks
	logger   *slog.Logger

	concurrency int
	includes    []string
	excludes    []string
	closers     []io.Closer
}

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithLoader injects a custom SuiteLoader, bypassing suites_dir discovery.
func WithLoader(l ports.SuiteLoader) Option {
	return func(r *Runner) {
		r.loader = l
	}
}

// WithBindingProvider replaces the client driver selected by client_config.
func WithBindingProvider(p ports.BindingProvider) Option {
	return func(r *Runner) {
		r.provider = p
	}
}

// WithReportStore sets where run reports are persisted.
func WithReportStore(s ports.ReportStore) Option {
	return func(r *Runner) {
		r.store = s
	}
}

// WithSink sets the report container writer. A nil sink disables the export.
func WithSink(s ports.ReportSink) Option {
	return func(r *Runner) {
		r.sink = s
	}
}

// WithCounter shares the bucket ordinal counter with other runners.
func WithCounter(c ports.Counter) Option {
	return func(r *Runner) {
		r.counter = c
	}
}

// WithLocker serializes runners targeting the same service.
func WithLocker(l ports.DistributedLocker) Option {
	return func(r *Runner) {
		r.locker = l
	}
}

// WithHooks registers observability hooks. Repeated calls are merged.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Runner) {
		r.hooks = r.hooks.Merge(hooks)
	}
}

// WithConcurrency overrides the configured worker count.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		r.concurrency = n
	}
}

// WithFilters appends include and exclude patterns to the configured ones.
func WithFilters(includes, excludes []string) Option {
	return func(r *Runner) {
		r.includes = append(r.includes, includes...)
		r.excludes = append(r.excludes, excludes...)
	}
}

// New creates a Runner. Components not injected through options are built
// from cfg.
func New(cfg *Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, &domain.ConfigurationError{Reason: "configuration is required"}
	}
	r := &Runner{
		cfg:         cfg,
		concurrency: cfg.Concurrency,
		includes:    append([]string(nil), cfg.SuiteFilters.Includes...),
		excludes:    append([]string(nil), cfg.SuiteFilters.Excludes...),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.NewNop()
	}
	if err := r.wire(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// Loader returns the suite loader in use.
func (r *Runner) Loader() ports.SuiteLoader {
	return r.loader
}

// Store returns the report store in use.
func (r *Runner) Store() ports.ReportStore {
	return r.store
}

// Validate checks that every case of sources names a configured identity and
// an operation the target service supports. No operation is invoked.
func (r *Runner) Validate(ctx context.Context, sources []*domain.SuiteSource) error {
	predefined := make(map[string]bool)
	for name := range runtime.DefaultRegistry() {
		predefined[name] = true
	}
	for _, group := range groupByService(sources) {
		ops, err := r.supportedOperations(ctx, group.service)
		if err != nil {
			return err
		}
		cat := validator.Catalog{
			Identities: r.cfg.Identities,
			Predefined: predefined,
			Operations: ops,
		}
		if err := validator.ValidateSuites(group.sources, cat); err != nil {
			return fmt.Errorf("service %s: %w", group.service, err)
		}
	}
	return nil
}

// supportedOperations opens a binding for the first identity and returns the
// operations it advertises.
func (r *Runner) supportedOperations(ctx context.Context, service string) (map[string]bool, error) {
	names := slices.Sorted(maps.Keys(r.cfg.Identities))
	if len(names) == 0 {
		return nil, nil
	}
	props := r.cfg.ClientConfig.Properties()
	maps.Copy(props, r.cfg.Identities[names[0]])
	props["identity_name"] = names[0]

	b, err := r.provider.Open(ctx, service, names[0], props)
	if err != nil {
		return nil, fmt.Errorf("open client %s for %s: %w", names[0], service, err)
	}
	defer b.Close()
	ops := make(map[string]bool)
	for _, op := range b.SupportedOperations() {
		ops[op] = true
	}
	return ops, nil
}

// Close releases the connections opened by New.
func (r *Runner) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Result is the outcome of one Run.
type Result struct {
	Reports    []*domain.RunReport
	ExportPath string
}

// Failed reports whether any suite of any service failed.
func (res *Result) Failed() bool {
	for _, r := range res.Reports {
		if r.Summary.Failed() {
			return true
		}
	}
	return false
}

// Run executes every loaded suite, one service after another, persists one
// report per service and writes the report container.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	sources, err := r.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load suites: %w", err)
	}
	if len(sources) == 0 {
		return nil, domain.ErrNoSuites
	}
	filter, err := runtime.NewFilter(r.includes, r.excludes)
	if err != nil {
		return nil, err
	}
	teardown, err := r.teardown()
	if err != nil {
		return nil, err
	}

	state := placeholder.NewRunState(
		placeholder.WithGlobals(r.cfg.GlobalVariables),
		placeholder.WithCounter(r.counter),
		placeholder.WithBucketPrefix(r.cfg.BucketPrefix),
	)
	fields := mindmap.DefaultIncludeFields
	if x := r.cfg.Exporters.XMind; x != nil && len(x.IncludeFields) > 0 {
		fields = x.IncludeFields
	}
	exporter := mindmap.NewExporter(
		mindmap.WithIncludeFields(fields),
		mindmap.WithHideEnabled(r.cfg.HideEnabled),
	)

	res := &Result{}
	var sheets []*domain.Sheet
	for _, group := range groupByService(sources) {
		report, err := r.runService(ctx, group.service, group.sources, state, filter, teardown, exporter)
		if err != nil {
			return res, err
		}
		res.Reports = append(res.Reports, report)
		sheets = append(sheets, mindmap.BuildSheet(report.Service, report.Summary, report.Topics))
	}

	if r.sink != nil && len(sheets) > 0 {
		path, err := r.sink.Write(ctx, sheets)
		if err != nil {
			return res, fmt.Errorf("failed to write report: %w", err)
		}
		res.ExportPath = path
	}
	return res, nil
}

func (r *Runner) runService(
	ctx context.Context,
	service string,
	sources []*domain.SuiteSource,
	state *placeholder.RunState,
	filter *runtime.Filter,
	teardown *domain.CaseNode,
	exporter *mindmap.Exporter,
) (*domain.RunReport, error) {
	log := r.logger.With("service", service)
	if r.locker != nil {
		unlock, err := r.locker.Lock(ctx, "service:"+service, r.cfg.Lock.TTL)
		if err != nil {
			return nil, fmt.Errorf("failed to lock service %s: %w", service, err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				log.Warn("failed to release service lock", "error", err)
			}
		}()
	}

	opts := []runtime.Option{
		runtime.WithLogger(r.logger),
		runtime.WithIdentities(r.cfg.Identities),
		runtime.WithClientConfig(r.cfg.ClientConfig.Properties()),
		runtime.WithRunState(state),
		runtime.WithFilter(filter),
		runtime.WithConcurrency(r.concurrency),
		runtime.WithLifecycleHooks(r.hooks),
	}
	if teardown != nil {
		opts = append(opts, runtime.WithTeardown(teardown))
	}
	session := runtime.NewSession(service, sources, r.provider, opts...)

	started := time.Now().UTC()
	if err := session.SetUp(ctx); err != nil {
		return nil, err
	}
	runErr := session.Run(ctx)
	session.TearDown()
	if runErr != nil {
		return nil, runErr
	}

	summary := session.Summary()
	report := &domain.RunReport{
		ID:         uuid.NewString(),
		Service:    service,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Summary:    summary,
		Topics:     exporter.Export(domain.Classify(session.Suites())),
		Suites:     session.Suites(),
	}
	log.Info("service finished",
		"suites", summary.SuiteTotal,
		"passed", summary.SuitePassCount,
		"failed", summary.SuiteFailedCount,
		"skipped", summary.SuiteSkippedCount,
		"api_calls", summary.APIInvokedCount,
	)

	if r.store != nil {
		if err := r.store.Save(ctx, report); err != nil {
			return nil, fmt.Errorf("failed to store report %s: %w", report.ID, err)
		}
	}
	return report, nil
}

func (r *Runner) teardown() (*domain.CaseNode, error) {
	if !r.cfg.AutoClean {
		return nil, nil
	}
	tc, err := r.cfg.TeardownCase()
	if err != nil {
		return nil, err
	}
	if tc == nil {
		tc = runtime.DefaultTeardown()
	}
	return tc, nil
}

type serviceGroup struct {
	service string
	sources []*domain.SuiteSource
}

// groupByService keeps services in order of first appearance.
func groupByService(sources []*domain.SuiteSource) []serviceGroup {
	var groups []serviceGroup
	index := make(map[string]int)
	for _, src := range sources {
		i, ok := index[src.Service]
		if !ok {
			i = len(groups)
			index[src.Service] = i
			groups = append(groups, serviceGroup{service: src.Service})
		}
		groups[i].sources = append(groups[i].sources, src)
	}
	return groups
}
