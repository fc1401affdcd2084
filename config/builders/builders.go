// Package builders 注册内置节点的配置构建器。
//
// 不依赖运行时对象的节点（filter、rerank.dedup）在 init 中注册；
// recall.ann、rank.rerank、postprocess.enrich 需要曲库索引或富化器，由 RegisterRuntime 注册。
package builders

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rushteam/tracksim/config"
	"github.com/rushteam/tracksim/core"
	"github.com/rushteam/tracksim/enrich"
	"github.com/rushteam/tracksim/filter"
	"github.com/rushteam/tracksim/genre"
	"github.com/rushteam/tracksim/metrics"
	"github.com/rushteam/tracksim/mood"
	"github.com/rushteam/tracksim/pipeline"
	"github.com/rushteam/tracksim/pkg/conv"
	"github.com/rushteam/tracksim/rank"
	"github.com/rushteam/tracksim/recall"
	"github.com/rushteam/tracksim/rerank"
)

func init() {
	config.Register("filter", BuildFilterNode)
	config.Register("rerank.dedup", BuildDedupNode)
}

// Index 是运行时节点依赖的曲库能力，由 catalog.Index 实现。
type Index interface {
	recall.Searcher
	rank.VectorSource
	rank.WeightsSource
}

// Deps 是运行时节点的依赖。
type Deps struct {
	Index    Index
	Genres   *genre.Table
	Tagger   *mood.Tagger
	Enricher enrich.Fetcher
	Logger   zerolog.Logger
}

// RegisterRuntime 注册依赖运行时对象的节点，并以 d.Genres 重新注册 filter。
func RegisterRuntime(d Deps) {
	config.Register("recall.ann", d.BuildANNNode)
	config.Register("rank.rerank", d.BuildRerankNode)
	config.Register("postprocess.enrich", d.BuildEnrichNode)
	config.Register("filter", func(cfg map[string]interface{}) (pipeline.Node, error) {
		return buildFilterNode(cfg, d.Genres, &d.Logger)
	})
}

func (d Deps) BuildANNNode(cfg map[string]interface{}) (pipeline.Node, error) {
	if d.Index == nil {
		return nil, fmt.Errorf("recall.ann requires a catalog index")
	}
	k := int(conv.ConfigGetInt64(cfg, "k", recall.DefaultBroadK))
	if k <= 0 {
		return nil, fmt.Errorf("recall.ann: k must be positive, got %d", k)
	}
	return &recall.ANN{Index: d.Index, K: k}, nil
}

// BuildRerankNode 支持 disable: [penalty name...] 关闭部分惩罚规则，
// factors: {name: factor} 覆盖惩罚系数。
func (d Deps) BuildRerankNode(cfg map[string]interface{}) (pipeline.Node, error) {
	if d.Index == nil {
		return nil, fmt.Errorf("rank.rerank requires a catalog index")
	}
	disabled := map[string]bool{}
	for _, name := range conv.SliceAnyToString(cfg["disable"]) {
		disabled[name] = true
	}
	factors, _ := cfg["factors"].(map[string]interface{})
	overrides := conv.MapToFloat64(factors)

	chain := make(rank.PenaltyChain, 0, len(rank.DefaultPenalties()))
	for _, p := range rank.DefaultPenalties() {
		if disabled[p.Name] {
			continue
		}
		if f, ok := overrides[p.Name]; ok {
			if f < 0 || f > 1 {
				return nil, fmt.Errorf("rank.rerank: factor %s must be in [0,1], got %v", p.Name, f)
			}
			p.Factor = f
		}
		chain = append(chain, p)
	}
	return &rank.RerankNode{Vectors: d.Index, Weights: d.Index, Genres: d.Genres, Penalties: chain, Tagger: d.Tagger}, nil
}

func (d Deps) BuildEnrichNode(cfg map[string]interface{}) (pipeline.Node, error) {
	if d.Enricher == nil {
		return nil, fmt.Errorf("postprocess.enrich requires an enricher")
	}
	return &enrich.Node{
		Fetcher:     d.Enricher,
		Concurrency: int(conv.ConfigGetInt64(cfg, "concurrency", enrich.DefaultConcurrency)),
		Logger:      d.Logger,
		OnResult:    metrics.RecordEnrich,
	}, nil
}

func BuildDedupNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return &rerank.Dedup{TopK: int(conv.ConfigGetInt64(cfg, "top_k", 0))}, nil
}

func BuildFilterNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return buildFilterNode(cfg, nil, nil)
}

// buildFilterNode 解析 filters 列表；未配置 filters 时使用默认四条规则。
func buildFilterNode(cfg map[string]interface{}, table *genre.Table, log *zerolog.Logger) (pipeline.Node, error) {
	if table == nil {
		table = genre.Default()
	}
	node := &filter.FilterNode{OnReject: metrics.RecordFilterRejection, Logger: log}

	filtersConfig, ok := cfg["filters"].([]interface{})
	if !ok {
		if _, present := cfg["filters"]; present {
			return nil, fmt.Errorf("filters invalid")
		}
		maxGap := int(conv.ConfigGetInt64(cfg, "max_year_gap", filter.DefaultMaxYearGap))
		node.Filters = filter.DefaultFilters(maxGap, table)
		return node, nil
	}

	filters := make([]filter.Filter, 0, len(filtersConfig))
	for _, fc := range filtersConfig {
		filterMap, ok := fc.(map[string]interface{})
		if !ok {
			continue
		}
		filterType := conv.ConfigGet(filterMap, "type", "")
		switch filterType {
		case "year_gap":
			filters = append(filters, &filter.YearGapFilter{
				MaxGap: int(conv.ConfigGetInt64(filterMap, "max_gap", filter.DefaultMaxYearGap)),
			})
		case "genre":
			filters = append(filters, &filter.GenreFilter{Table: table})
		case "acoustic":
			filters = append(filters, &filter.AcousticFilter{
				Ceiling: conv.ConfigGetFloat64(filterMap, "ceiling", filter.DefaultAcousticCeiling),
			})
		case "energy":
			filters = append(filters, &filter.EnergyFilter{
				Floor: conv.ConfigGetFloat64(filterMap, "floor", filter.DefaultEnergyFloor),
			})
		case "expr":
			f, err := filter.NewExprFilter(conv.ConfigGet(filterMap, "expr", ""))
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		case "blacklist":
			raw, _ := filterMap["track_ids"].([]interface{})
			ids := conv.ConvertSlice(raw, func(v interface{}) (int64, bool) {
				n, ok := conv.ToInt(v)
				return int64(n), ok
			})
			filters = append(filters, filter.NewBlacklistFilter(ids))
		default:
			return nil, core.NewDomainError(core.ModuleFilter, core.ErrorCodeConfig, fmt.Sprintf("unknown filter type: %s", filterType))
		}
	}
	node.Filters = filters
	return node, nil
}
