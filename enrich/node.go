package enrich

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/tracksim/core"
	"github.com/rushteam/tracksim/pipeline"
)

// DefaultConcurrency 是富化的默认并发上限。
const DefaultConcurrency = 8

// Node 是富化后处理 Node：对每个候选并发取展示字段，顺序保持不变，单条失败不影响其他条目。
type Node struct {
	Fetcher     Fetcher
	Concurrency int
	Logger      zerolog.Logger

	// OnResult 在每条富化结束后回调
	OnResult func(ok bool)
}

func (n *Node) Name() string        { return "postprocess.enrich" }
func (n *Node) Kind() pipeline.Kind { return pipeline.KindPostProcess }

func (n *Node) Process(
	ctx context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Fetcher == nil || len(items) == 0 {
		return items, nil
	}
	limit := n.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for _, it := range items {
		if it == nil {
			continue
		}
		g.Go(func() error {
			err := apply(ctx, n.Fetcher, it)
			if err != nil {
				n.Logger.Debug().Err(err).Int64("track_id", it.ID).Msg("enrich failed")
			}
			if n.OnResult != nil {
				n.OnResult(err == nil)
			}
			return nil
		})
	}
	_ = g.Wait()
	return items, nil
}
