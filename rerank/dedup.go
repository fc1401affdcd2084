package rerank

import (
	"context"

	"github.com/rushteam/tracksim/core"
	"github.com/rushteam/tracksim/pipeline"
)

// DefaultTopK 是默认返回条数。
const DefaultTopK = 10

// Dedup 按 (title, artist) 去重并截断到 TopK：
// key 为去除首尾空白并小写后的标题与艺人，保留首次出现的候选，
// 收集满 TopK 条或遍历结束即停止，不足 TopK 条不视为错误。
//
// TopK 为 0 时取 rctx.TopK，仍为 0 时取 DefaultTopK。
type Dedup struct {
	TopK int
}

func (n *Dedup) Name() string {
	return "rerank.dedup"
}

func (n *Dedup) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *Dedup) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	topK := n.TopK
	if topK <= 0 && rctx != nil {
		topK = rctx.TopK
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return Select(items, topK), nil
}

// Select 是函数形式的去重与截断。
func Select(items []*core.Item, topK int) []*core.Item {
	seen := make(map[[2]string]struct{}, topK)
	out := make([]*core.Item, 0, topK)
	for _, it := range items {
		if len(out) >= topK {
			break
		}
		if it == nil {
			continue
		}
		key := it.Track.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	return out
}
