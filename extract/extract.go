// Package extract 定义种子特征的来源：元信息查询与音频特征提取，
// 并负责把两者拼成与曲库快照同布局的特征向量。
package extract

import (
	"context"
	"fmt"

	"github.com/rushteam/tracksim/core"
)

// Metadata 是种子曲目的元信息，除 Track 外还带有目录子向量所需的原始字段。
type Metadata struct {
	Track        core.Track
	DurationMs   int64
	Explicitness string
	Streamable   bool
	DiscNumber   int
	DiscCount    int
}

// MetadataLookup 查询曲目元信息。
type MetadataLookup interface {
	LookupByID(ctx context.Context, id int64) (*Metadata, error)
	// LookupByTerm 以 "artist title" 关键词搜索最匹配的一首
	LookupByTerm(ctx context.Context, term string) (*Metadata, error)
}

// AudioExtractor 从试听片段提取长度为 core.AudioDim 的音频子向量。
type AudioExtractor interface {
	Extract(ctx context.Context, previewURL string) (core.FeatureVector, error)
}

// ExplicitnessCode 将 trackExplicitness 编码为数值，未知值按 notExplicit 处理。
func ExplicitnessCode(v string) float64 {
	switch v {
	case "cleaned":
		return 1
	case "explicit":
		return 2
	default:
		return 0
	}
}

// CatalogVector 构造目录子向量：
// genre id, 时长 ms, explicitness, streamable, disc number, disc count, 发行年份（缺失为 0）。
func CatalogVector(m *Metadata) core.FeatureVector {
	v := make(core.FeatureVector, core.CatalogDim)
	if m == nil {
		return v
	}
	v[0] = float64(m.Track.GenreID)
	v[1] = float64(m.DurationMs)
	v[2] = ExplicitnessCode(m.Explicitness)
	if m.Streamable {
		v[3] = 1
	}
	v[4] = float64(m.DiscNumber)
	v[5] = float64(m.DiscCount)
	if y, ok := m.Track.ReleaseYear(); ok {
		v[6] = float64(y)
	}
	return v
}

// Combine 拼接音频子向量与目录子向量，长度不符时返回输入错误。
func Combine(audio, catalog core.FeatureVector) (core.FeatureVector, error) {
	if len(audio) != core.AudioDim {
		return nil, core.NewDomainError(core.ModuleExtract, core.ErrorCodeInvalidInput,
			fmt.Sprintf("audio vector has %d dims, want %d", len(audio), core.AudioDim))
	}
	if len(catalog) != core.CatalogDim {
		return nil, core.NewDomainError(core.ModuleExtract, core.ErrorCodeInvalidInput,
			fmt.Sprintf("catalog vector has %d dims, want %d", len(catalog), core.CatalogDim))
	}
	out := make(core.FeatureVector, 0, core.DefaultDim)
	out = append(out, audio...)
	return append(out, catalog...), nil
}
