package filter

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rushteam/tracksim/core"
	"github.com/rushteam/tracksim/pipeline"
	"github.com/rushteam/tracksim/pkg/utils"
)

// FilterNode 组合多个过滤器，任何一个过滤器返回 true 时候选被剔除。
// 只删除，不改变保留候选的相对顺序。
type FilterNode struct {
	Filters []Filter

	// OnReject 在候选被剔除时回调，参数为命中的过滤器名称（可选，用于打点）
	OnReject func(rule string)
	Logger   *zerolog.Logger
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	out := make([]*core.Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}

		reason := ""
		for _, f := range n.Filters {
			ok, err := f.ShouldFilter(ctx, rctx, item)
			if err != nil {
				// 过滤器出错时放行，不中断流程
				if n.Logger != nil {
					n.Logger.Warn().Err(err).Str("filter", f.Name()).Int64("track_id", item.ID).Msg("filter error, keeping candidate")
				}
				continue
			}
			if ok {
				reason = f.Name()
				break
			}
		}

		if reason != "" {
			item.PutLabel("filtered", utils.Label{Value: "true", Source: reason})
			if n.OnReject != nil {
				n.OnReject(reason)
			}
			if n.Logger != nil {
				n.Logger.Debug().Str("filter", reason).Int64("track_id", item.ID).Msg("candidate rejected")
			}
			continue
		}
		out = append(out, item)
	}
	return out, nil
}
