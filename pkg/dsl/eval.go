// Package dsl 用 CEL (Common Expression Language) 实现候选过滤表达式。
//
// 可用变量：
//   - item：候选，字段 id / title / artist / genre / genre_id / year / score /
//     similarity / acousticness / energy / features / labels
//   - seed：种子元信息，字段同 item 中的曲目字段
//   - params：请求参数
//
// 缺失的可选字段不会出现在 map 中，请用 has() 判断：
//
//	item.year >= 1990
//	!has(item.acousticness) || item.acousticness < 0.5
//	item.genre_id != seed.genre_id || item.similarity > 0.9
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/tracksim/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("seed", cel.DynType),
			cel.Variable("params", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译后的布尔表达式，可并发求值。
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式。表达式必须返回 bool。
func Compile(expr string) (*Program, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression %q must return bool, got %v", expr, out)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

// String 返回原始表达式。
func (p *Program) String() string { return p.expr }

// Eval 对候选求值。
func (p *Program) Eval(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := p.prg.Eval(map[string]any{
		"item":   itemInput(item),
		"seed":   trackInput(rctx.SeedTrack()),
		"params": paramsInput(rctx),
	})
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", p.expr, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression %q must return bool, got %T", p.expr, out.Value())
	}
	return b, nil
}

func trackInput(t *core.Track) map[string]any {
	m := map[string]any{}
	if t == nil {
		return m
	}
	m["id"] = t.TrackID
	m["title"] = t.Title
	m["artist"] = t.Artist
	m["genre"] = t.Genre
	m["genre_id"] = int64(t.GenreID)
	if y, ok := t.ReleaseYear(); ok {
		m["year"] = int64(y)
	}
	if t.Acousticness != nil {
		m["acousticness"] = *t.Acousticness
	}
	if t.Energy != nil {
		m["energy"] = *t.Energy
	}
	return m
}

func itemInput(it *core.Item) map[string]any {
	m := trackInput(it.Track)
	m["id"] = it.ID
	m["score"] = it.Score
	if sim, ok := it.Meta["similarity"].(float64); ok {
		m["similarity"] = sim
	}
	if len(it.Features) > 0 {
		m["features"] = it.Features
	}
	labels := make(map[string]any, len(it.Labels))
	for k, v := range it.Labels {
		labels[k] = v.Value
	}
	m["labels"] = labels
	return m
}

func paramsInput(rctx *core.RecommendContext) map[string]any {
	if rctx == nil || rctx.Params == nil {
		return map[string]any{}
	}
	return rctx.Params
}
