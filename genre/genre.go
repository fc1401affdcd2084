// Package genre 把自由文本的流派名称归入少量粗粒度的流派族，并维护族之间的不兼容关系。
//
// 归类规则是一张有序表：自上而下对小写后的流派名做子串匹配，首个命中的族胜出，
// 全部未命中时归入 Fallback。表可以从 YAML 加载，便于针对边界流派名做测试与调整。
package genre

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/tracksim/core"
)

// Family 是流派族。
type Family string

const (
	Pop     Family = "pop"
	RnB     Family = "rnb"
	HipHop  Family = "hiphop"
	Rock    Family = "rock"
	Country Family = "country"
	Other   Family = "other"
)

// Rule 是有序表中的一行：族与其关键词。
type Rule struct {
	Family   Family   `yaml:"family"`
	Keywords []string `yaml:"keywords"`
}

// Pair 是 (种子族, 候选族) 的有序对。
type Pair struct {
	Seed      Family
	Candidate Family
}

// Table 是只读的归类表与不兼容集合，构造后可并发使用。
type Table struct {
	rules     []Rule
	fallback  Family
	symmetric bool
	incompat  map[Pair]struct{}
}

// DefaultRules 为默认的有序关键词表。
func DefaultRules() []Rule {
	return []Rule{
		{Family: Pop, Keywords: []string{"pop", "k-pop", "dance", "electronic", "edm"}},
		{Family: RnB, Keywords: []string{"r&b", "soul"}},
		{Family: HipHop, Keywords: []string{"hip", "rap"}},
		{Family: Rock, Keywords: []string{"rock"}},
		{Family: Country, Keywords: []string{"country", "folk"}},
	}
}

// DefaultIncompatible 为默认的不兼容有序对；(country, pop) 等反向组合不在其中。
func DefaultIncompatible() []Pair {
	return []Pair{
		{Pop, Country},
		{Pop, HipHop},
		{RnB, Country},
		{RnB, Rock},
	}
}

var defaultTable = NewTable(DefaultRules(), Other, DefaultIncompatible(), false)

// Default 返回默认表。
func Default() *Table { return defaultTable }

// NewTable 构造归类表。symmetric 为 true 时 (a,b) 与 (b,a) 同时视为不兼容。
func NewTable(rules []Rule, fallback Family, incompatible []Pair, symmetric bool) *Table {
	if fallback == "" {
		fallback = Other
	}
	t := &Table{
		rules:     make([]Rule, 0, len(rules)),
		fallback:  fallback,
		symmetric: symmetric,
		incompat:  make(map[Pair]struct{}, len(incompatible)*2),
	}
	for _, r := range rules {
		kw := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				kw = append(kw, k)
			}
		}
		t.rules = append(t.rules, Rule{Family: r.Family, Keywords: kw})
	}
	for _, p := range incompatible {
		t.incompat[p] = struct{}{}
		if symmetric {
			t.incompat[Pair{Seed: p.Candidate, Candidate: p.Seed}] = struct{}{}
		}
	}
	return t
}

// Classify 将流派名归入流派族（大小写不敏感的子串匹配，首个命中胜出）。
func (t *Table) Classify(name string) Family {
	g := strings.ToLower(name)
	if g != "" {
		for _, r := range t.rules {
			for _, kw := range r.Keywords {
				if strings.Contains(g, kw) {
					return r.Family
				}
			}
		}
	}
	return t.fallback
}

// ClassifyTrack 优先使用曲目的流派名，缺失时按 Apple genreId 取名。
func (t *Table) ClassifyTrack(tr *core.Track) Family {
	if tr == nil {
		return t.fallback
	}
	name := tr.Genre
	if name == "" && tr.GenreID != 0 {
		name = AppleGenreName(tr.GenreID)
	}
	return t.Classify(name)
}

// Incompatible 判断 (seed, candidate) 是否在不兼容集合中。
func (t *Table) Incompatible(seed, candidate Family) bool {
	_, ok := t.incompat[Pair{Seed: seed, Candidate: candidate}]
	return ok
}

// Symmetric 返回不兼容集合是否已对称化。
func (t *Table) Symmetric() bool { return t.symmetric }

type tableFile struct {
	Rules        []Rule     `yaml:"rules"`
	Fallback     Family     `yaml:"fallback"`
	Incompatible [][]Family `yaml:"incompatible"`
	Symmetric    bool       `yaml:"symmetric"`
}

// ParseTable 解析 YAML 描述的归类表。rules 为空时沿用默认关键词表。
//
//	rules:
//	  - family: pop
//	    keywords: [pop, dance]
//	incompatible:
//	  - [pop, country]
//	symmetric: false
func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, core.WrapDomainError(core.ModuleFilter, core.ErrorCodeConfig, err, "parse genre table")
	}
	rules := f.Rules
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	pairs := make([]Pair, 0, len(f.Incompatible))
	for i, p := range f.Incompatible {
		if len(p) != 2 {
			return nil, core.NewDomainError(core.ModuleFilter, core.ErrorCodeConfig,
				fmt.Sprintf("incompatible[%d]: want 2 families, got %d", i, len(p)))
		}
		pairs = append(pairs, Pair{Seed: p[0], Candidate: p[1]})
	}
	if f.Incompatible == nil {
		pairs = DefaultIncompatible()
	}
	return NewTable(rules, f.Fallback, pairs, f.Symmetric), nil
}

// LoadTable 从文件加载归类表。
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleFilter, core.ErrorCodeConfig, err, "read genre table %s", path)
	}
	return ParseTable(data)
}
