package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/tracksim/core"
	"github.com/rushteam/tracksim/extract"
)

// MaxQueryEntries 是 "artist, title" 查询一次最多处理的条数。
const MaxQueryEntries = 3

// Seed 是解析完成、可直接用于推荐的种子。
type Seed struct {
	ID     int64
	Vector core.FeatureVector
	Track  *core.Track
}

// CatalogLookup 是种子解析用到的曲库能力。Load 在查找前调用，已加载时应立即返回。
type CatalogLookup interface {
	Load(ctx context.Context) error
	Lookup(trackID int64) (int, bool)
	Vector(label int) ([]float64, bool)
	Track(label int) (*core.Track, bool)
}

// SeedResolver 把曲目 id 或 "artist, title" 查询解析为种子向量与元信息。
//
// 曲库中已有的曲目直接复用快照向量；否则查询元信息、提取音频特征并拼接目录子向量。
// 单个种子失败只跳过并记录日志，全部失败时返回输入错误。
type SeedResolver struct {
	Catalog     CatalogLookup
	Metadata    extract.MetadataLookup
	Audio       extract.AudioExtractor
	Concurrency int
	Logger      zerolog.Logger
}

// ResolveIDs 按 id 解析种子，结果顺序与输入一致（跳过失败项）。
func (r *SeedResolver) ResolveIDs(ctx context.Context, ids []int64) ([]Seed, error) {
	return r.resolveAll(ctx, len(ids), func(ctx context.Context, i int) (*Seed, error) {
		return r.resolveID(ctx, ids[i])
	})
}

// ResolveTerms 按 "artist, title" 查询解析种子。
func (r *SeedResolver) ResolveTerms(ctx context.Context, queries []string) ([]Seed, error) {
	pairs := ParseArtistTitleList(queries)
	return r.resolveAll(ctx, len(pairs), func(ctx context.Context, i int) (*Seed, error) {
		term := pairs[i][0] + " " + pairs[i][1]
		if r.Metadata == nil {
			return nil, core.NewDomainError(core.ModuleExtract, core.ErrorCodeUnavailable, "no metadata lookup configured")
		}
		meta, err := r.Metadata.LookupByTerm(ctx, term)
		if err != nil {
			return nil, err
		}
		if s, ok := r.fromCatalog(meta.Track.TrackID); ok {
			return s, nil
		}
		return r.fromMetadata(ctx, meta)
	})
}

func (r *SeedResolver) resolveAll(ctx context.Context, n int, fn func(context.Context, int) (*Seed, error)) ([]Seed, error) {
	// 曲库未加载时 Lookup 全部落空，曲库内的种子会被误判为外部曲目
	if r.Catalog != nil {
		if err := r.Catalog.Load(ctx); err != nil {
			return nil, err
		}
	}
	slots := make([]*Seed, n)
	limit := r.Concurrency
	if limit <= 0 {
		limit = MaxQueryEntries
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			s, err := fn(gctx, i)
			if err != nil {
				r.Logger.Warn().Err(err).Int("seed", i).Msg("skip seed")
				return nil
			}
			slots[i] = s
			return nil
		})
	}
	_ = g.Wait()

	seeds := make([]Seed, 0, n)
	for _, s := range slots {
		if s != nil {
			seeds = append(seeds, *s)
		}
	}
	if len(seeds) == 0 {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "no usable seed tracks")
	}
	return seeds, nil
}

func (r *SeedResolver) resolveID(ctx context.Context, id int64) (*Seed, error) {
	if s, ok := r.fromCatalog(id); ok {
		return s, nil
	}
	if r.Metadata == nil {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeNotFound, "track not in catalog")
	}
	meta, err := r.Metadata.LookupByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.fromMetadata(ctx, meta)
}

func (r *SeedResolver) fromCatalog(id int64) (*Seed, bool) {
	if r.Catalog == nil || id == 0 {
		return nil, false
	}
	label, ok := r.Catalog.Lookup(id)
	if !ok {
		return nil, false
	}
	vec, ok := r.Catalog.Vector(label)
	if !ok {
		return nil, false
	}
	tr, _ := r.Catalog.Track(label)
	return &Seed{ID: id, Vector: vec, Track: tr}, true
}

func (r *SeedResolver) fromMetadata(ctx context.Context, meta *extract.Metadata) (*Seed, error) {
	if r.Audio == nil {
		return nil, core.NewDomainError(core.ModuleExtract, core.ErrorCodeUnavailable, "no audio extractor configured")
	}
	audio, err := r.Audio.Extract(ctx, meta.Track.PreviewURL)
	if err != nil {
		return nil, err
	}
	vec, err := extract.Combine(audio, extract.CatalogVector(meta))
	if err != nil {
		return nil, err
	}
	tr := meta.Track
	return &Seed{ID: tr.TrackID, Vector: vec, Track: &tr}, nil
}

// ParseArtistTitleList 解析 "artist, title" 列表：最多取前 3 条，
// 按第一个逗号切分，缺逗号或任一部分为空的条目跳过。
func ParseArtistTitleList(items []string) [][2]string {
	if len(items) > MaxQueryEntries {
		items = items[:MaxQueryEntries]
	}
	out := make([][2]string, 0, len(items))
	for _, item := range items {
		artist, title, ok := strings.Cut(item, ",")
		if !ok {
			continue
		}
		artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)
		if artist == "" || title == "" {
			continue
		}
		out = append(out, [2]string{artist, title})
	}
	return out
}
