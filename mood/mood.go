// Package mood 根据四个归一化子特征给曲目打上话题式的情绪标签。
package mood

import "github.com/rushteam/tracksim/core"

// Thresholds 是各规则的判定阈值，作用于归一化后的特征。
type Thresholds struct {
	TempoHigh  float64 `yaml:"tempo_high" koanf:"tempo_high"`
	TempoLow   float64 `yaml:"tempo_low" koanf:"tempo_low"`
	EnergyHigh float64 `yaml:"energy_high" koanf:"energy_high"`
	EnergyLow  float64 `yaml:"energy_low" koanf:"energy_low"`
	Bright     float64 `yaml:"bright" koanf:"bright"`
	Warm       float64 `yaml:"warm" koanf:"warm"`
	Rich       float64 `yaml:"rich" koanf:"rich"`
	Minimal    float64 `yaml:"minimal" koanf:"minimal"`
	MaxTags    int     `yaml:"max_tags" koanf:"max_tags"`
}

// DefaultThresholds 返回默认阈值。
func DefaultThresholds() Thresholds {
	return Thresholds{
		TempoHigh:  0.65,
		TempoLow:   0.35,
		EnergyHigh: 0.30,
		EnergyLow:  0.18,
		Bright:     0.55,
		Warm:       0.25,
		Rich:       0.65,
		Minimal:    0.35,
		MaxTags:    4,
	}
}

// 主象限标签组
var (
	Energetic = []string{"#energetic", "#party", "#hype", "#adrenaline"}
	Calm      = []string{"#calm", "#latenight", "#comfort", "#alone"}
	Drive     = []string{"#drive", "#walk", "#upbeat", "#refresh"}
	Groove    = []string{"#groove", "#beat", "#hiphop", "#heavy"}
)

// 亮度与音色标签组
var (
	BrightTags  = []string{"#fresh", "#cool"}
	WarmTags    = []string{"#warm", "#dreamy"}
	NeutralTags = []string{"#emotional", "#cozy"}
	RichTags    = []string{"#richsound"}
	MinimalTags = []string{"#minimal"}
	TrendyTags  = []string{"#trendy"}
)

// Tagger 是纯函数式的情绪标签器，可并发使用。
type Tagger struct {
	T Thresholds
}

// NewTagger 使用默认阈值构造 Tagger。
func NewTagger() *Tagger {
	return &Tagger{T: DefaultThresholds()}
}

// Tags 计算标签。
//
// 主象限规则互斥，按 高速高能 / 低速低能 / 高速低能 / 低速高能 的顺序首个命中生效，
// 均不命中时不输出主象限标签。亮度与音色规则各自独立，总会命中一个分档。
// 输出在各组之间轮流取词，保证每个命中的组都有代表；按首次出现去重，最多 MaxTags 个。
func (tg *Tagger) Tags(f core.KeyFeatures) []string {
	t := tg.T
	limit := t.MaxTags
	if limit <= 0 {
		limit = 4
	}

	groups := make([][]string, 0, 3)
	if primary := tg.primary(f); primary != nil {
		groups = append(groups, primary)
	}
	switch {
	case f.Brightness > t.Bright:
		groups = append(groups, BrightTags)
	case f.Brightness < t.Warm:
		groups = append(groups, WarmTags)
	default:
		groups = append(groups, NeutralTags)
	}
	switch {
	case f.Timbre > t.Rich:
		groups = append(groups, RichTags)
	case f.Timbre < t.Minimal:
		groups = append(groups, MinimalTags)
	default:
		groups = append(groups, TrendyTags)
	}

	out := make([]string, 0, limit)
	seen := make(map[string]struct{}, limit)
	for round := 0; len(out) < limit; round++ {
		progressed := false
		for _, g := range groups {
			if round >= len(g) {
				continue
			}
			progressed = true
			tag := g[round]
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
			if len(out) == limit {
				break
			}
		}
		if !progressed {
			break
		}
	}
	return out
}

func (tg *Tagger) primary(f core.KeyFeatures) []string {
	t := tg.T
	highTempo, lowTempo := f.Tempo > t.TempoHigh, f.Tempo < t.TempoLow
	highEnergy, lowEnergy := f.Energy > t.EnergyHigh, f.Energy < t.EnergyLow
	switch {
	case highTempo && highEnergy:
		return Energetic
	case lowTempo && lowEnergy:
		return Calm
	case highTempo && lowEnergy:
		return Drive
	case lowTempo && highEnergy:
		return Groove
	}
	return nil
}
