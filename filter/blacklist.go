package filter

import (
	"context"

	"github.com/rushteam/tracksim/core"
)

// BlacklistFilter 剔除运营屏蔽的曲目，以及请求参数 exclude_ids 中列出的曲目。
// 不在默认规则中，需要在 pipeline 配置里显式启用。
type BlacklistFilter struct {
	TrackIDs map[int64]struct{}
}

// NewBlacklistFilter 创建黑名单过滤器。
func NewBlacklistFilter(ids []int64) *BlacklistFilter {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return &BlacklistFilter{TrackIDs: m}
}

func (f *BlacklistFilter) Name() string {
	return "filter.blacklist"
}

func (f *BlacklistFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if _, ok := f.TrackIDs[item.ID]; ok {
		return true, nil
	}
	if rctx == nil || rctx.Params == nil {
		return false, nil
	}
	if ids, ok := rctx.Params["exclude_ids"].([]int64); ok {
		for _, id := range ids {
			if id == item.ID {
				return true, nil
			}
		}
	}
	return false, nil
}
