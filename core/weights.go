package core

import "fmt"

// DistanceWeights 是重排加权距离中四个子特征的权重，非负，不要求和为 1。
type DistanceWeights struct {
	Tempo      float64 `json:"tempo" koanf:"tempo" validate:"gte=0"`
	Energy     float64 `json:"energy" koanf:"energy" validate:"gte=0"`
	Timbre     float64 `json:"timbre" koanf:"timbre" validate:"gte=0"`
	Brightness float64 `json:"brightness" koanf:"brightness" validate:"gte=0"`
}

// DefaultDistanceWeights 返回默认权重 {tempo 0.4, energy 0.3, timbre 0.15, brightness 0.15}。
func DefaultDistanceWeights() DistanceWeights {
	return DistanceWeights{Tempo: 0.4, Energy: 0.3, Timbre: 0.15, Brightness: 0.15}
}

// WeightsUpdate 是权重的局部更新，nil 字段保持原值。
type WeightsUpdate struct {
	Tempo      *float64 `json:"tempo,omitempty"`
	Energy     *float64 `json:"energy,omitempty"`
	Timbre     *float64 `json:"timbre,omitempty"`
	Brightness *float64 `json:"brightness,omitempty"`
}

// Apply 返回在 w 基础上应用更新后的新权重；任一权重为负时返回输入错误，w 不变。
func (u WeightsUpdate) Apply(w DistanceWeights) (DistanceWeights, error) {
	set := func(dst *float64, src *float64, name string) error {
		if src == nil {
			return nil
		}
		if *src < 0 {
			return NewDomainError(ModuleCatalog, ErrorCodeInvalidInput, fmt.Sprintf("weight %s must be non-negative, got %v", name, *src))
		}
		*dst = *src
		return nil
	}
	out := w
	if err := set(&out.Tempo, u.Tempo, "tempo"); err != nil {
		return w, err
	}
	if err := set(&out.Energy, u.Energy, "energy"); err != nil {
		return w, err
	}
	if err := set(&out.Timbre, u.Timbre, "timbre"); err != nil {
		return w, err
	}
	if err := set(&out.Brightness, u.Brightness, "brightness"); err != nil {
		return w, err
	}
	return out, nil
}

// IsEmpty 表示没有任何字段需要更新。
func (u WeightsUpdate) IsEmpty() bool {
	return u.Tempo == nil && u.Energy == nil && u.Timbre == nil && u.Brightness == nil
}
