package core

import "github.com/rushteam/tracksim/pkg/utils"

// RecommendContext 承载一次推荐调用的种子与请求参数，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	RequestID string

	// Seed 是用于过滤与惩罚比较的种子元信息（多种子时取第一个）。
	// 元信息缺失时为空 Track，相关规则全部放行。
	Seed *Track

	// Query 是由种子向量求均值得到的查询向量
	Query FeatureVector

	TopK int

	// Labels 是请求级标签，可驱动 Pipeline 行为
	Labels map[string]utils.Label

	// Params 请求级参数，例如 broad_k、max_year_gap
	Params map[string]any
}

// SeedTrack 返回非 nil 的种子元信息。
func (rctx *RecommendContext) SeedTrack() *Track {
	if rctx == nil || rctx.Seed == nil {
		return &Track{}
	}
	return rctx.Seed
}

// PutLabel 写入请求级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
