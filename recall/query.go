package recall

import (
	"fmt"

	"github.com/rushteam/tracksim/core"
)

// BuildQueryVector 返回一个或多个等长种子向量的逐元素算术平均。
// 每个种子权重相同；单个种子时返回其副本。空集合或长度不一致时返回输入错误。
func BuildQueryVector(vectors [][]float64) (core.FeatureVector, error) {
	if len(vectors) == 0 {
		return nil, core.NewDomainError(core.ModuleRecall, core.ErrorCodeInvalidInput, "no seed vectors")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, core.NewDomainError(core.ModuleRecall, core.ErrorCodeInvalidInput, "seed vector 0 is empty")
	}
	out := make([]float64, dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, core.NewDomainError(core.ModuleRecall, core.ErrorCodeInvalidInput,
				fmt.Sprintf("seed vector %d has length %d, want %d", i, len(v), dim))
		}
		for j, x := range v {
			out[j] += x
		}
	}
	n := float64(len(vectors))
	for j := range out {
		out[j] /= n
	}
	return out, nil
}
