// Package rank 实现候选重排：四个子特征上的加权距离、平滑的距离转分数，
// 以及按固定顺序相乘的启发式惩罚链。
package rank

import (
	"math"

	"github.com/rushteam/tracksim/core"
)

// WeightedDistance 计算 sqrt(Σ w_f * (q_f - c_f)^2)。
func WeightedDistance(q, c core.KeyFeatures, w core.DistanceWeights) float64 {
	d := func(a, b float64) float64 { return (a - b) * (a - b) }
	sum := w.Tempo*d(q.Tempo, c.Tempo) +
		w.Energy*d(q.Energy, c.Energy) +
		w.Timbre*d(q.Timbre, c.Timbre) +
		w.Brightness*d(q.Brightness, c.Brightness)
	return math.Sqrt(sum)
}

// BaseScore 把距离映射到 (0, 1]：1 / (1 + dist)。
func BaseScore(dist float64) float64 {
	return 1 / (1 + dist)
}
