package main

import (
	"context"
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/tracksim/catalog"
	"github.com/rushteam/tracksim/catalog/snapshot"
	"github.com/rushteam/tracksim/config"
	"github.com/rushteam/tracksim/config/builders"
	"github.com/rushteam/tracksim/core"
	"github.com/rushteam/tracksim/enrich"
	"github.com/rushteam/tracksim/extract"
	"github.com/rushteam/tracksim/genre"
	"github.com/rushteam/tracksim/history"
	"github.com/rushteam/tracksim/itunes"
	"github.com/rushteam/tracksim/logging"
	"github.com/rushteam/tracksim/metrics"
	"github.com/rushteam/tracksim/mood"
	"github.com/rushteam/tracksim/pipeline"
	"github.com/rushteam/tracksim/service"
	"github.com/rushteam/tracksim/store"
)

// app 持有一次进程生命周期内装配好的组件。
type app struct {
	cfg         *config.AppConfig
	index       *catalog.Index
	recommender *service.Recommender
	resolver    *service.SeedResolver
	history     *history.SQLiteStore

	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildApp 按配置装配曲库索引、富化、种子解析、历史记录与推荐编排器。
func buildApp(ctx context.Context, cfg *config.AppConfig) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	var redisStore *store.RedisStore
	if cfg.Catalog.Source == "redis" || (cfg.Enrich.Enabled && cfg.Enrich.Cache == "redis") {
		redisStore, err = store.NewRedisStore(cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, redisStore.Close)
	}

	var snapStore catalog.SnapshotStore
	switch cfg.Catalog.Source {
	case "redis":
		snapStore = snapshot.NewKVStore(redisStore, cfg.Catalog.RedisPrefix)
	default:
		snapStore = snapshot.NewFileStore(cfg.Catalog.Dir)
	}

	backend, err := catalog.BackendFactory(cfg.Catalog.Backend, cfg.Catalog.HNSW)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeConfig, err, "catalog backend")
	}
	a.index = catalog.New(snapStore,
		catalog.WithBackend(backend),
		catalog.WithLogger(logging.Component("catalog")),
		catalog.WithWeights(cfg.Catalog.Weights),
		catalog.WithLoadHook(metrics.SetIndexShape),
	)
	if cfg.Catalog.Warmup {
		if err = a.index.Load(ctx); err != nil {
			return nil, err
		}
	}

	genres := genre.Default()
	if cfg.Catalog.GenreFile != "" {
		if genres, err = genre.LoadTable(cfg.Catalog.GenreFile); err != nil {
			return nil, err
		}
	}
	tagger := &mood.Tagger{T: cfg.Mood}

	client := itunes.New(cfg.ITunes,
		itunes.WithLogger(logging.Component("itunes")),
		itunes.WithStateHook(func(name string, _, to gobreaker.State) {
			metrics.SetBreakerState(name, to.String())
		}),
	)

	var fetcher enrich.Fetcher
	if cfg.Enrich.Enabled {
		fetcher, err = buildEnricher(cfg.Enrich, client, redisStore, a)
		if err != nil {
			return nil, err
		}
	}

	a.resolver = &service.SeedResolver{
		Catalog:  a.index,
		Metadata: &extract.ITunesLookup{Client: client},
		Logger:   logging.Component("seeds"),
	}
	if cfg.Extractor.Endpoint != "" {
		a.resolver.Audio = extract.NewRemoteExtractor(cfg.Extractor.Endpoint, cfg.Extractor.Timeout)
	}

	opts := service.Options{
		BroadK:            cfg.Catalog.BroadK,
		MaxYearGap:        cfg.Catalog.MaxYearGap,
		Genres:            genres,
		Tagger:            tagger,
		ExcludeSeeds:      cfg.Catalog.ExcludeSeeds,
		Enricher:          fetcher,
		EnrichConcurrency: cfg.Enrich.Concurrency,
		Logger:            logging.Component("recommender"),
	}

	if cfg.History.Enabled {
		a.history, err = history.Open(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.history.Close)
		opts.History = a.history
	}

	if cfg.Catalog.PipelineFile != "" {
		builders.RegisterRuntime(builders.Deps{
			Index:    a.index,
			Genres:   genres,
			Tagger:   tagger,
			Enricher: fetcher,
			Logger:   logging.Component("pipeline"),
		})
		pcfg, err := pipeline.LoadFromYAML(cfg.Catalog.PipelineFile)
		if err != nil {
			return nil, core.WrapDomainError(core.ModuleService, core.ErrorCodeConfig, err, "load pipeline")
		}
		if err := config.ValidatePipelineConfig(pcfg); err != nil {
			return nil, err
		}
		p, err := pcfg.BuildPipeline(config.DefaultFactory())
		if err != nil {
			return nil, core.WrapDomainError(core.ModuleService, core.ErrorCodeConfig, err, "build pipeline")
		}
		opts.Pipeline = p
	}

	a.recommender = service.NewRecommender(a.index, opts)
	return a, nil
}

func buildEnricher(cfg config.EnrichConfig, client *itunes.Client, redisStore *store.RedisStore, a *app) (enrich.Fetcher, error) {
	base := enrich.NewITunesEnricher(client, cfg.Timeout)

	var cache core.Store
	switch cfg.Cache {
	case "memory":
		mem := store.NewMemoryStore()
		a.closers = append(a.closers, mem.Close)
		cache = mem
	case "redis":
		if redisStore == nil {
			return nil, core.NewDomainError(core.ModuleEnrich, core.ErrorCodeConfig, "redis cache requested but redis is not configured")
		}
		cache = redisStore
	default:
		return base, nil
	}

	ce := enrich.NewCachedEnricher(base, cache, cfg.CacheTTL)
	ce.Logger = logging.Component("enrich")
	ce.OnLookup = metrics.RecordEnrichCache
	return ce, nil
}
