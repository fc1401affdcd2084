package filter

import (
	"context"

	"github.com/rushteam/tracksim/core"
	"github.com/rushteam/tracksim/genre"
)

// 默认阈值
const (
	DefaultMaxYearGap      = 20
	DefaultAcousticCeiling = 0.7
	DefaultEnergyFloor     = 0.2
)

// YearGapFilter 剔除发行年份相差超过 MaxGap 的候选；任一方年份无法解析时放行。
type YearGapFilter struct {
	MaxGap int
}

func (f *YearGapFilter) Name() string { return "filter.year_gap" }

func (f *YearGapFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	sy, ok := rctx.SeedTrack().ReleaseYear()
	if !ok {
		return false, nil
	}
	cy, ok := item.Track.ReleaseYear()
	if !ok {
		return false, nil
	}
	gap := cy - sy
	if gap < 0 {
		gap = -gap
	}
	return gap > f.MaxGap, nil
}

// GenreFilter 剔除 (种子族, 候选族) 落在不兼容集合中的候选。
type GenreFilter struct {
	Table *genre.Table
}

func (f *GenreFilter) Name() string { return "filter.genre" }

func (f *GenreFilter) table() *genre.Table {
	if f.Table == nil {
		return genre.Default()
	}
	return f.Table
}

func (f *GenreFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	t := f.table()
	return t.Incompatible(t.ClassifyTrack(rctx.SeedTrack()), t.ClassifyTrack(item.Track)), nil
}

// AcousticFilter 剔除 acousticness 存在且大于 Ceiling 的候选。
type AcousticFilter struct {
	Ceiling float64
}

func (f *AcousticFilter) Name() string { return "filter.acoustic" }

func (f *AcousticFilter) ShouldFilter(_ context.Context, _ *core.RecommendContext, item *core.Item) (bool, error) {
	if item.Track == nil || item.Track.Acousticness == nil {
		return false, nil
	}
	return *item.Track.Acousticness > f.Ceiling, nil
}

// EnergyFilter 剔除 energy 存在且小于 Floor 的候选。
type EnergyFilter struct {
	Floor float64
}

func (f *EnergyFilter) Name() string { return "filter.energy" }

func (f *EnergyFilter) ShouldFilter(_ context.Context, _ *core.RecommendContext, item *core.Item) (bool, error) {
	if item.Track == nil || item.Track.Energy == nil {
		return false, nil
	}
	return *item.Track.Energy < f.Floor, nil
}

// DefaultFilters 返回后置过滤的四条默认规则，顺序固定。
func DefaultFilters(maxYearGap int, table *genre.Table) []Filter {
	return []Filter{
		&YearGapFilter{MaxGap: maxYearGap},
		&GenreFilter{Table: table},
		&AcousticFilter{Ceiling: DefaultAcousticCeiling},
		&EnergyFilter{Floor: DefaultEnergyFloor},
	}
}

// PostFilter 是函数形式的后置过滤：对 seed 应用默认规则，返回保留的候选。
func PostFilter(ctx context.Context, items []*core.Item, seed *core.Track, maxYearGap int) []*core.Item {
	node := &FilterNode{Filters: DefaultFilters(maxYearGap, nil)}
	out, _ := node.Process(ctx, &core.RecommendContext{Seed: seed}, items)
	return out
}
