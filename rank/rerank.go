package rank

import (
	"context"
	"sort"
	"strings"

	"github.com/rushteam/tracksim/core"
	"github.com/rushteam/tracksim/genre"
	"github.com/rushteam/tracksim/mood"
	"github.com/rushteam/tracksim/pipeline"
	"github.com/rushteam/tracksim/pkg/utils"
)

// VectorSource 按快照下标取候选向量，由 catalog.Index 实现。
type VectorSource interface {
	Vector(label int) ([]float64, bool)
}

// WeightsSource 提供当前的距离权重，由 catalog.Index 实现。
type WeightsSource interface {
	DistanceWeights() core.DistanceWeights
}

// StaticWeights 是固定权重的 WeightsSource。
type StaticWeights core.DistanceWeights

func (w StaticWeights) DistanceWeights() core.DistanceWeights { return core.DistanceWeights(w) }

// RerankNode 对候选打分、施加惩罚、打情绪标签，并按分数稳定降序排序。
type RerankNode struct {
	Vectors   VectorSource
	Weights   WeightsSource
	Genres    *genre.Table
	Penalties PenaltyChain
	Tagger    *mood.Tagger
}

func (n *RerankNode) Name() string        { return "rank.rerank" }
func (n *RerankNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *RerankNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}
	genres := n.Genres
	if genres == nil {
		genres = genre.Default()
	}
	penalties := n.Penalties
	if penalties == nil {
		penalties = DefaultPenalties()
	}
	tagger := n.Tagger
	if tagger == nil {
		tagger = mood.NewTagger()
	}
	// 每次调用只读取一次权重，保证同一批候选使用同一组权重
	w := core.DefaultDistanceWeights()
	if n.Weights != nil {
		w = n.Weights.DistanceWeights()
	}

	var query []float64
	if rctx != nil {
		query = rctx.Query
	}
	q := core.KeyFeaturesOf(query)
	seedFamily := genres.ClassifyTrack(rctx.SeedTrack())

	for _, it := range items {
		var vec []float64
		if n.Vectors != nil {
			vec, _ = n.Vectors.Vector(it.Label)
		}
		c := core.KeyFeaturesOf(vec)

		base := BaseScore(WeightedDistance(q, c, w))
		score, fired := penalties.Apply(base, PenaltyInput{
			SeedFamily:      seedFamily,
			CandidateFamily: genres.ClassifyTrack(it.Track),
			Query:           q,
			Candidate:       c,
		})

		it.Score = score
		it.Scored = true
		it.Features = c.Map()
		it.Mood = tagger.Tags(c)
		it.PutLabel("base_score", utils.FloatLabel(base, "rank"))
		if len(fired) > 0 {
			it.PutLabel("penalty", utils.Label{Value: strings.Join(fired, ","), Source: "rank"})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
	return items, nil
}

// Rerank 是函数形式的重排，使用默认惩罚链与默认情绪阈值。
func Rerank(items []*core.Item, query []float64, seed *core.Track, vectors VectorSource, weights WeightsSource) []*core.Item {
	n := &RerankNode{Vectors: vectors, Weights: weights}
	out, _ := n.Process(context.Background(), &core.RecommendContext{Query: query, Seed: seed}, items)
	return out
}
