package filter

import (
	"context"

	"github.com/rushteam/tracksim/core"
)

// Filter 判断一个候选是否应该被剔除。
// 返回 true 表示剔除，false 表示保留。字段缺失或无法解析时应返回 false（放行）。
type Filter interface {
	// Name 返回过滤器名称
	Name() string

	// ShouldFilter 判断 item 是否应该被过滤，比较对象为 rctx 中的种子元信息
	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}
