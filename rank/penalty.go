package rank

import (
	"github.com/rushteam/tracksim/core"
	"github.com/rushteam/tracksim/genre"
)

// 高低档判定阈值，作用于归一化特征
const (
	HighThreshold = 0.55
	LowThreshold  = 0.45
)

// PenaltyInput 是惩罚规则的判定依据。
type PenaltyInput struct {
	SeedFamily      genre.Family
	CandidateFamily genre.Family
	Query           core.KeyFeatures
	Candidate       core.KeyFeatures
}

// PenaltyRule 是一条乘性惩罚：Applies 为 true 时分数乘以 Factor。
type PenaltyRule struct {
	Name    string
	Factor  float64
	Applies func(in PenaltyInput) bool
}

// PenaltyChain 是有序的惩罚规则列表。规则彼此独立，命中的规则全部叠乘。
type PenaltyChain []PenaltyRule

// highLow 表示种子处于高档而候选处于低档。
func highLow(q, c float64) bool {
	return q > HighThreshold && c < LowThreshold
}

// DefaultPenalties 返回默认惩罚链，顺序：
//  1. genre_mismatch      种子族 != 候选族                     ×0.85
//  2. tempo_clash         种子高速、候选低速                   ×0.8
//  3. energy_clash        种子高能、候选低能                   ×0.8
//  4. brightness_clash    种子明亮、候选暗                     ×0.85
//  5. cross_family        候选 ∈ {country, hiphop} 且种子 ∈ {pop, rnb} ×0.7
//
// 规则 5 与规则 1 会同时命中并叠乘。
func DefaultPenalties() PenaltyChain {
	return PenaltyChain{
		{
			Name:    "genre_mismatch",
			Factor:  0.85,
			Applies: func(in PenaltyInput) bool { return in.SeedFamily != in.CandidateFamily },
		},
		{
			Name:    "tempo_clash",
			Factor:  0.8,
			Applies: func(in PenaltyInput) bool { return highLow(in.Query.Tempo, in.Candidate.Tempo) },
		},
		{
			Name:    "energy_clash",
			Factor:  0.8,
			Applies: func(in PenaltyInput) bool { return highLow(in.Query.Energy, in.Candidate.Energy) },
		},
		{
			Name:    "brightness_clash",
			Factor:  0.85,
			Applies: func(in PenaltyInput) bool { return highLow(in.Query.Brightness, in.Candidate.Brightness) },
		},
		{
			Name:   "cross_family",
			Factor: 0.7,
			Applies: func(in PenaltyInput) bool {
				cand := in.CandidateFamily == genre.Country || in.CandidateFamily == genre.HipHop
				seed := in.SeedFamily == genre.Pop || in.SeedFamily == genre.RnB
				return cand && seed
			},
		},
	}
}

// Apply 依次应用规则，返回最终分数与命中的规则名。
func (c PenaltyChain) Apply(score float64, in PenaltyInput) (float64, []string) {
	var fired []string
	for _, r := range c {
		if r.Applies(in) {
			score *= r.Factor
			fired = append(fired, r.Name)
		}
	}
	return score, fired
}
