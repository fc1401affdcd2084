package pipeline

import (
	"context"

	"github.com/rushteam/tracksim/core"
)

// Kind 标记 Node 所处的阶段，用于打点与节点链的顺序校验。
type Kind string

const (
	KindRecall      Kind = "recall"      // 宽召回：按查询向量取近邻候选
	KindFilter      Kind = "filter"      // 后过滤：年代、流派、原声度、能量等硬约束
	KindRank        Kind = "rank"        // 重排：加权距离打分、惩罚与情绪标签
	KindReRank      Kind = "rerank"      // 去重与截断
	KindPostProcess Kind = "postprocess" // 富化：封面与外链
)

var kindOrder = map[Kind]int{
	KindRecall:      0,
	KindFilter:      1,
	KindRank:        2,
	KindReRank:      3,
	KindPostProcess: 4,
}

// Order 返回阶段序号；未知阶段返回 -1。
func (k Kind) Order() int {
	if o, ok := kindOrder[k]; ok {
		return o
	}
	return -1
}

// Node 是节点链的最小单元，输入候选、输出候选。
// 召回节点忽略输入并生成候选；其余节点只能删减、改分或重排，不引入新曲目。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.Item,
	) ([]*core.Item, error)
}
