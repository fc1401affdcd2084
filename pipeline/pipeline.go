package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rushteam/tracksim/core"
)

const tracerName = "github.com/rushteam/tracksim/pipeline"

// StageObserver 在每个 Node 执行后回调，用于按阶段打点。
type StageObserver func(node Node, in, out int, elapsed time.Duration, err error)

// Pipeline 把推荐逻辑拆成可组合的 Node 链，按顺序执行。
type Pipeline struct {
	Nodes    []Node
	Observer StageObserver
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	tracer := otel.Tracer(tracerName)
	cur := items
	for _, node := range p.Nodes {
		nctx, span := tracer.Start(ctx, string(node.Kind())+"/"+node.Name(),
			trace.WithAttributes(
				attribute.String("node.kind", string(node.Kind())),
				attribute.Int("items.in", len(cur)),
			))
		start := time.Now()
		next, err := node.Process(nctx, rctx, cur)
		if p.Observer != nil {
			p.Observer(node, len(cur), len(next), time.Since(start), err)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return nil, err
		}
		span.SetAttributes(attribute.Int("items.out", len(next)))
		span.End()
		cur = next
	}
	return cur, nil
}
