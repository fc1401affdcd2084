package recall

import (
	"context"

	"github.com/rushteam/tracksim/catalog"
	"github.com/rushteam/tracksim/core"
	"github.com/rushteam/tracksim/pipeline"
	"github.com/rushteam/tracksim/pkg/utils"
)

// DefaultBroadK 是宽召回的默认条数，刻意多取，留给后续过滤与重排收窄。
const DefaultBroadK = 200

// Searcher 是 ANN 召回依赖的检索能力，由 catalog.Index 实现。
type Searcher interface {
	Search(ctx context.Context, query []float64, k int) ([]catalog.Hit, error)
}

// ANN 是近邻召回 Node：以 rctx.Query 为查询向量，从曲库索引取回 K 条候选。
type ANN struct {
	Index Searcher
	K     int
}

func (n *ANN) Name() string        { return "recall.ann" }
func (n *ANN) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *ANN) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	if rctx == nil || len(rctx.Query) == 0 {
		return nil, core.NewDomainError(core.ModuleRecall, core.ErrorCodeInvalidInput, "empty query vector")
	}
	k := n.K
	if k <= 0 {
		k = DefaultBroadK
	}
	hits, err := n.Index.Search(ctx, rctx.Query, k)
	if err != nil {
		return nil, err
	}
	items := make([]*core.Item, 0, len(hits))
	for _, h := range hits {
		it := core.NewItem(h.Label, h.Track)
		it.Meta["similarity"] = h.Similarity
		it.PutLabel("recall_source", utils.Label{Value: "ann", Source: "recall"})
		items = append(items, it)
	}
	return items, nil
}
