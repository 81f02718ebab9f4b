package s3conform

import (
	"cmp"

	"github.com/aretw0/s3conform/internal/adapters/file"
	"github.com/aretw0/s3conform/internal/loader"
	"github.com/aretw0/s3conform/pkg/adapters/memory"
	redisadapter "github.com/aretw0/s3conform/pkg/adapters/redis"
	s3adapter "github.com/aretw0/s3conform/pkg/adapters/s3"
	"github.com/aretw0/s3conform/pkg/adapters/xmind"
	"github.com/aretw0/s3conform/pkg/persistence/middleware"
	"github.com/aretw0/s3conform/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

const defaultRedisAddr = "localhost:6379"

// wire builds every component that was not injected.
func (r *Runner) wire() error {
	cfg := r.cfg
	if r.loader == nil {
		r.loader = loader.New(cfg.SuitesDir,
			loader.WithYAML(cfg.LoadYAMLSuites),
			loader.WithXMind(cfg.LoadXMindSuites),
			loader.WithBuckets(cfg.XMindBuckets),
			loader.WithExport(cfg.ExportSuites),
			loader.WithLogger(r.logger),
		)
	}

	if r.provider == nil {
		switch cfg.ClientConfig.Driver {
		case "memory":
			r.provider = memory.NewService()
		default:
			r.provider = s3adapter.NewProvider(
				s3adapter.WithHeaders(cfg.CustomHeaders),
				s3adapter.WithLogger(r.logger),
			)
		}
	}

	if r.store == nil {
		store, err := r.buildStore()
		if err != nil {
			return err
		}
		r.store = store
	}

	if r.sink == nil && cfg.Exporters.XMind != nil {
		r.sink = xmind.NewSink(cfg.Exporters.XMind.FilePath,
			xmind.WithCreator("s3conform", Version),
			xmind.WithLogger(r.logger),
		)
	}

	if r.counter == nil && cfg.Counter.Kind == "redis" {
		client := r.redisClient(cfg.Counter.Addr)
		r.counter = redisadapter.NewCounter(client, cfg.Counter.Key)
	}

	if r.locker == nil && cfg.Lock.Enabled {
		client := r.redisClient(cfg.Lock.Addr)
		r.locker = redisadapter.NewLocker(client, cmp.Or(cfg.ReportStore.Prefix, redisadapter.DefaultPrefix))
	}
	return nil
}

func (r *Runner) buildStore() (ports.ReportStore, error) {
	sc := r.cfg.ReportStore
	var store ports.ReportStore
	switch sc.Kind {
	case "file":
		store = file.New(sc.Path)
	case "redis":
		opts := []redisadapter.Option{redisadapter.WithPrefix(cmp.Or(sc.Prefix, redisadapter.DefaultPrefix))}
		if sc.TTL > 0 {
			opts = append(opts, redisadapter.WithTTL(sc.TTL))
		}
		rs := redisadapter.New(cmp.Or(sc.Addr, defaultRedisAddr), sc.Password, sc.DB, opts...)
		r.closers = append(r.closers, rs)
		store = rs
	default:
		store = memory.NewStore()
	}

	if len(sc.Redact) == 0 {
		return store, nil
	}
	redact, err := middleware.NewRedactMiddleware(sc.Redact)
	if err != nil {
		return nil, err
	}
	return middleware.Chain(store, redact), nil
}

func (r *Runner) redisClient(addr string) *backend.Client {
	client := backend.NewClient(&backend.Options{
		Addr:     cmp.Or(addr, r.cfg.ReportStore.Addr, defaultRedisAddr),
		Password: r.cfg.ReportStore.Password,
	})
	r.closers = append(r.closers, client)
	return client
}
