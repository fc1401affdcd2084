package filter

import (
	"context"

	"github.com/rushteam/tracksim/core"
	"github.com/rushteam/tracksim/pkg/dsl"
)

// ExprFilter 用 CEL 表达式描述保留条件：表达式为 false 时剔除。
// 求值出错时放行（由 FilterNode 记录日志）。
type ExprFilter struct {
	prg *dsl.Program
}

// NewExprFilter 编译表达式；编译失败属于配置错误。
func NewExprFilter(expr string) (*ExprFilter, error) {
	p, err := dsl.Compile(expr)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleFilter, core.ErrorCodeConfig, err, "invalid filter expression")
	}
	return &ExprFilter{prg: p}, nil
}

func (f *ExprFilter) Name() string { return "filter.expr" }

func (f *ExprFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	keep, err := f.prg.Eval(item, rctx)
	if err != nil {
		return false, err
	}
	return !keep, nil
}
