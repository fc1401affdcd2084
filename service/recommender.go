// Package service 编排一次完整的推荐调用：
// 查询向量构造 → 宽召回 → 后过滤 → 重排与情绪标签 → 去重截断 → 富化。
package service

import (
	"context"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rushteam/tracksim/catalog"
	"github.com/rushteam/tracksim/core"
	"github.com/rushteam/tracksim/enrich"
	"github.com/rushteam/tracksim/filter"
	"github.com/rushteam/tracksim/genre"
	"github.com/rushteam/tracksim/history"
	"github.com/rushteam/tracksim/metrics"
	"github.com/rushteam/tracksim/mood"
	"github.com/rushteam/tracksim/pipeline"
	"github.com/rushteam/tracksim/rank"
	"github.com/rushteam/tracksim/recall"
	"github.com/rushteam/tracksim/rerank"
)

// Catalog 是编排器依赖的曲库能力，由 catalog.Index 实现。
type Catalog interface {
	Search(ctx context.Context, query []float64, k int) ([]catalog.Hit, error)
	Vector(label int) ([]float64, bool)
	Track(label int) (*core.Track, bool)
	Lookup(trackID int64) (int, bool)
	DistanceWeights() core.DistanceWeights
}

// HistoryRecorder 记录推荐历史，由 history.SQLiteStore 实现。
type HistoryRecorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Options 是编排器的可选配置，零值即默认行为。
type Options struct {
	BroadK     int
	MaxYearGap int
	Genres     *genre.Table
	Tagger     *mood.Tagger
	Penalties  rank.PenaltyChain

	// ExtraFilters 追加在默认四条规则之后
	ExtraFilters []filter.Filter
	// ExcludeSeeds 为 true 时结果中不出现种子曲目本身
	ExcludeSeeds bool

	Enricher          enrich.Fetcher
	EnrichConcurrency int

	History HistoryRecorder
	Logger  zerolog.Logger

	// Pipeline 非空时替换默认节点链（例如从 YAML 构建）
	Pipeline *pipeline.Pipeline
}

// Recommendation 是对外返回的一条推荐。
type Recommendation struct {
	TrackID    int64    `json:"track_id"`
	Title      string   `json:"title"`
	Artist     string   `json:"artist"`
	AlbumImage string   `json:"album_image"`
	MusicURL   string   `json:"apple_music_url"`
	Score      float64  `json:"score"`
	Mood       []string `json:"mood,omitempty"`
}

// Result 是一次推荐的结果。MoodTags 只取排名第一的结果的情绪标签。
type Result struct {
	RequestID string           `json:"request_id"`
	Tracks    []Recommendation `json:"recommended"`
	MoodTags  []string         `json:"mood_keywords"`
}

// Recommender 是推荐编排器，并发安全。
type Recommender struct {
	catalog      Catalog
	pipeline     *pipeline.Pipeline
	history      HistoryRecorder
	excludeSeeds bool
	log          zerolog.Logger
}

// NewRecommender 以默认节点链创建编排器。
func NewRecommender(cat Catalog, opts Options) *Recommender {
	r := &Recommender{
		catalog:      cat,
		history:      opts.History,
		excludeSeeds: opts.ExcludeSeeds,
		log:          opts.Logger,
	}
	p := opts.Pipeline
	if p == nil {
		p = &pipeline.Pipeline{Nodes: DefaultNodes(cat, opts)}
	}
	if p.Observer == nil {
		p.Observer = func(node pipeline.Node, _, out int, elapsed time.Duration, _ error) {
			metrics.RecordStage(node.Name(), out, elapsed)
		}
	}
	r.pipeline = p
	return r
}

// DefaultNodes 返回默认节点链；未配置富化时省略富化节点。
func DefaultNodes(cat Catalog, opts Options) []pipeline.Node {
	maxGap := opts.MaxYearGap
	if maxGap <= 0 {
		maxGap = filter.DefaultMaxYearGap
	}
	genres := opts.Genres
	if genres == nil {
		genres = genre.Default()
	}

	filters := filter.DefaultFilters(maxGap, genres)
	if opts.ExcludeSeeds {
		filters = append(filters, filter.NewBlacklistFilter(nil))
	}
	filters = append(filters, opts.ExtraFilters...)

	log := opts.Logger
	nodes := []pipeline.Node{
		&recall.ANN{Index: cat, K: opts.BroadK},
		&filter.FilterNode{Filters: filters, OnReject: metrics.RecordFilterRejection, Logger: &log},
		&rank.RerankNode{Vectors: cat, Weights: cat, Genres: genres, Penalties: opts.Penalties, Tagger: opts.Tagger},
		&rerank.Dedup{},
	}
	if opts.Enricher != nil {
		nodes = append(nodes, &enrich.Node{
			Fetcher:     opts.Enricher,
			Concurrency: opts.EnrichConcurrency,
			Logger:      log,
			OnResult:    metrics.RecordEnrich,
		})
	}
	return nodes
}

// Recommend 对一个或多个种子向量给出 topK 条推荐。
// seedTracks 与 seedVectors 按位置对应，可以缺失；多种子时以第一个非空元信息作为过滤与惩罚的比较对象。
func (r *Recommender) Recommend(ctx context.Context, seedVectors [][]float64, seedTracks []*core.Track, topK int) (*Result, error) {
	start := time.Now()
	// HTTP 入口沿用 chi 生成的请求 ID，日志、响应与历史记录共用同一个
	requestID := chimiddleware.GetReqID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	log := r.log.With().Str("request_id", requestID).Logger()

	res, err := r.recommend(ctx, requestID, seedVectors, seedTracks, topK)
	status := "ok"
	switch {
	case core.IsInvalidInput(err):
		status = "invalid_input"
	case err != nil:
		status = "error"
	}
	metrics.RecordRecommend(status, time.Since(start))
	if err != nil {
		log.Warn().Err(err).Int("seeds", len(seedVectors)).Msg("recommend failed")
		return nil, err
	}
	log.Info().
		Int("seeds", len(seedVectors)).
		Int("results", len(res.Tracks)).
		Strs("mood", res.MoodTags).
		Dur("elapsed", time.Since(start)).
		Msg("recommend")

	if r.history != nil {
		r.record(ctx, log, res, seedTracks, topK)
	}
	return res, nil
}

func (r *Recommender) recommend(ctx context.Context, requestID string, seedVectors [][]float64, seedTracks []*core.Track, topK int) (*Result, error) {
	if len(seedVectors) == 0 {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "no seeds")
	}
	query, err := recall.BuildQueryVector(seedVectors)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = rerank.DefaultTopK
	}

	var seed *core.Track
	for _, t := range seedTracks {
		if t != nil {
			seed = t
			break
		}
	}
	rctx := &core.RecommendContext{
		RequestID: requestID,
		Seed:      seed,
		Query:     query,
		TopK:      topK,
		Params:    map[string]any{},
	}
	if r.excludeSeeds {
		ids := make([]int64, 0, len(seedTracks))
		for _, t := range seedTracks {
			if t != nil && t.TrackID != 0 {
				ids = append(ids, t.TrackID)
			}
		}
		rctx.Params["exclude_ids"] = ids
	}

	items, err := r.pipeline.Run(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}

	res := &Result{RequestID: requestID, Tracks: make([]Recommendation, 0, len(items))}
	for _, it := range items {
		res.Tracks = append(res.Tracks, Recommendation{
			TrackID:    it.ID,
			Title:      it.Title(),
			Artist:     it.Artist(),
			AlbumImage: it.AlbumImage,
			MusicURL:   it.MusicURL,
			Score:      it.Score,
			Mood:       it.Mood,
		})
	}
	if len(items) > 0 {
		res.MoodTags = items[0].Mood
	}
	if res.MoodTags == nil {
		res.MoodTags = []string{}
	}
	return res, nil
}

// RecommendSeeds 是以 SeedResolver 结果为输入的便捷形式。
func (r *Recommender) RecommendSeeds(ctx context.Context, seeds []Seed, topK int) (*Result, error) {
	vectors := make([][]float64, len(seeds))
	tracks := make([]*core.Track, len(seeds))
	for i, s := range seeds {
		vectors[i] = s.Vector
		tracks[i] = s.Track
	}
	return r.Recommend(ctx, vectors, tracks, topK)
}

// 历史写入失败只记日志。
func (r *Recommender) record(ctx context.Context, log zerolog.Logger, res *Result, seedTracks []*core.Track, topK int) {
	e := history.Entry{
		RequestID: res.RequestID,
		CreatedAt: time.Now(),
		TopK:      topK,
		MoodTags:  res.MoodTags,
	}
	for _, t := range seedTracks {
		if t != nil {
			e.SeedIDs = append(e.SeedIDs, t.TrackID)
		}
	}
	for _, t := range res.Tracks {
		e.ResultIDs = append(e.ResultIDs, t.TrackID)
	}
	err := r.history.Record(context.WithoutCancel(ctx), e)
	metrics.RecordHistoryWrite(err)
	if err != nil {
		log.Warn().Err(err).Msg("record history failed")
	}
}
