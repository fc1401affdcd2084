// Package catalog 持有曲库的全部特征向量与对齐的元信息，并在其上构建近邻索引。
//
// 索引只构建一次（首次查询时懒加载，或启动时预热），构建后只读，可并发查询。
// 重排权重同样由索引持有，整体原子替换，查询方看到的要么是旧权重要么是新权重。
package catalog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/rushteam/tracksim/core"
)

// Snapshot 是预计算的快照：稠密向量矩阵与按下标对齐的曲目元信息。
type Snapshot struct {
	Vectors [][]float64
	Tracks  []core.Track
}

// SnapshotStore 提供快照的读取。
type SnapshotStore interface {
	Name() string
	Load(ctx context.Context) (*Snapshot, error)
}

// Hit 是一次检索的结果项。
type Hit struct {
	Label      int
	Similarity float64
	Track      *core.Track
}

// Option 配置 Index。
type Option func(*Index)

// WithBackend 指定近邻后端，默认 FlatBackend。
func WithBackend(b Backend) Option { return func(ix *Index) { ix.backend = b } }

// WithLogger 指定日志。
func WithLogger(l zerolog.Logger) Option { return func(ix *Index) { ix.log = l } }

// WithWeights 指定初始重排权重。
func WithWeights(w core.DistanceWeights) Option {
	return func(ix *Index) { ix.weights.Store(&w) }
}

// WithLoadHook 在加载成功后回调（用于打点）。
func WithLoadHook(fn func(size, dim int)) Option { return func(ix *Index) { ix.onLoad = fn } }

// Index 是曲库索引。
type Index struct {
	store   SnapshotStore
	backend Backend
	log     zerolog.Logger
	onLoad  func(size, dim int)

	mu      sync.Mutex // 串行化构建
	loaded  atomic.Bool
	vectors [][]float64
	tracks  []core.Track
	byID    map[int64]int
	dim     int

	weightsMu sync.Mutex // 串行化权重写入
	weights   atomic.Pointer[core.DistanceWeights]
}

// New 创建未加载的索引。
func New(store SnapshotStore, opts ...Option) *Index {
	ix := &Index{
		store: store,
		log:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(ix)
	}
	if ix.backend == nil {
		ix.backend = NewFlatBackend()
	}
	if ix.weights.Load() == nil {
		w := core.DefaultDistanceWeights()
		ix.weights.Store(&w)
	}
	return ix
}

// Load 读取快照并构建近邻结构；已加载时直接返回。
// 快照为空、向量参差或元信息条数不一致时返回 CONFIG 错误，不会提供半成品索引。
func (ix *Index) Load(ctx context.Context) error {
	if ix.loaded.Load() {
		return nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.loaded.Load() {
		return nil
	}
	if ix.store == nil {
		return core.NewDomainError(core.ModuleCatalog, core.ErrorCodeConfig, "no snapshot store configured")
	}

	snap, err := ix.store.Load(ctx)
	if err != nil {
		if core.IsConfigError(err) {
			return err
		}
		return core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeConfig, err, "load snapshot from %s", ix.store.Name())
	}
	dim, err := core.ValidateDims(snap.Vectors)
	if err != nil {
		return core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeConfig, err, "invalid snapshot")
	}
	if len(snap.Tracks) != len(snap.Vectors) {
		return core.NewDomainError(core.ModuleCatalog, core.ErrorCodeConfig,
			fmt.Sprintf("snapshot has %d vectors but %d tracks", len(snap.Vectors), len(snap.Tracks)))
	}
	if err := ix.backend.Build(snap.Vectors); err != nil {
		return core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeConfig, err, "build %s index", ix.backend.Name())
	}

	byID := make(map[int64]int, len(snap.Tracks))
	for i := range snap.Tracks {
		if _, dup := byID[snap.Tracks[i].TrackID]; !dup {
			byID[snap.Tracks[i].TrackID] = i
		}
	}
	ix.vectors, ix.tracks, ix.byID, ix.dim = snap.Vectors, snap.Tracks, byID, dim
	ix.loaded.Store(true)

	ix.log.Info().
		Str("store", ix.store.Name()).
		Str("backend", ix.backend.Name()).
		Int("size", len(snap.Vectors)).
		Int("dim", dim).
		Msg("catalog index loaded")
	if ix.onLoad != nil {
		ix.onLoad(len(snap.Vectors), dim)
	}
	return nil
}

// Loaded 返回索引是否已构建。
func (ix *Index) Loaded() bool { return ix.loaded.Load() }

// Search 返回与 query 最相近的至多 k 条曲目，按余弦相似度降序。
// 首次调用时懒加载；k 大于曲库规模时返回较少结果，不视为错误。
func (ix *Index) Search(ctx context.Context, query []float64, k int) ([]Hit, error) {
	if err := ix.Load(ctx); err != nil {
		return nil, err
	}
	if len(query) != ix.dim {
		return nil, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput,
			fmt.Sprintf("query has length %d, index dimension is %d", len(query), ix.dim))
	}
	ns, err := ix.backend.Search(query, k)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeInternalError, err, "search")
	}
	hits := make([]Hit, 0, len(ns))
	for _, n := range ns {
		if n.Label < 0 || n.Label >= len(ix.tracks) {
			continue
		}
		hits = append(hits, Hit{Label: n.Label, Similarity: n.Similarity, Track: &ix.tracks[n.Label]})
	}
	return hits, nil
}

// Vector 返回下标对应的向量（只读）。
func (ix *Index) Vector(label int) ([]float64, bool) {
	if !ix.loaded.Load() || label < 0 || label >= len(ix.vectors) {
		return nil, false
	}
	return ix.vectors[label], true
}

// Track 返回下标对应的曲目（只读）。
func (ix *Index) Track(label int) (*core.Track, bool) {
	if !ix.loaded.Load() || label < 0 || label >= len(ix.tracks) {
		return nil, false
	}
	return &ix.tracks[label], true
}

// Lookup 按曲目 id 查找下标。
func (ix *Index) Lookup(trackID int64) (int, bool) {
	if !ix.loaded.Load() {
		return 0, false
	}
	l, ok := ix.byID[trackID]
	return l, ok
}

// Len 返回曲库规模，未加载时为 0。
func (ix *Index) Len() int {
	if !ix.loaded.Load() {
		return 0
	}
	return len(ix.vectors)
}

// Dim 返回向量维度，未加载时为 0。
func (ix *Index) Dim() int {
	if !ix.loaded.Load() {
		return 0
	}
	return ix.dim
}

// DistanceWeights 返回当前权重的快照。
func (ix *Index) DistanceWeights() core.DistanceWeights {
	return *ix.weights.Load()
}

// SetDistanceWeights 局部更新权重：未指定的字段保持原值。
// 新权重在同一临界区内计算并整体发布。
func (ix *Index) SetDistanceWeights(u core.WeightsUpdate) (core.DistanceWeights, error) {
	ix.weightsMu.Lock()
	defer ix.weightsMu.Unlock()
	next, err := u.Apply(*ix.weights.Load())
	if err != nil {
		return *ix.weights.Load(), err
	}
	ix.weights.Store(&next)
	ix.log.Info().
		Float64("tempo", next.Tempo).
		Float64("energy", next.Energy).
		Float64("timbre", next.Timbre).
		Float64("brightness", next.Brightness).
		Msg("distance weights updated")
	return next, nil
}
