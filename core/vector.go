package core

import "fmt"

// FeatureVector 是定长的曲目特征向量：音频子向量 + 曲库元信息子向量。
//
// 布局：
//
//	0      tempo
//	1      spectral centroid
//	2      spectral bandwidth
//	3      zero-crossing rate
//	4      RMS energy
//	5..17  13 个 MFCC 均值
//	18..24 7 个 spectral contrast 频带
//	25..36 12 个 chroma 频带
//	37..43 genre id, 时长(ms), explicit 编码, streamable, disc number, disc count, 发行年份
type FeatureVector = []float64

const (
	IdxTempo     = 0
	IdxCentroid  = 1
	IdxBandwidth = 2
	IdxZCR       = 3
	IdxEnergy    = 4
	IdxMFCC      = 5
	IdxContrast  = 18
	IdxChroma    = 25
	IdxCatalog   = 37
	NumMFCC      = 13
	NumContrast  = 7
	NumChroma    = 12
	AudioDim     = 37
	CatalogDim   = 7
	DefaultDim   = AudioDim + CatalogDim
)

// ValidateDims 校验所有向量非空且长度一致，返回统一维度 D。
func ValidateDims(vectors [][]float64) (int, error) {
	if len(vectors) == 0 {
		return 0, NewDomainError(ModuleVector, ErrorCodeInvalidInput, "no vectors")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return 0, NewDomainError(ModuleVector, ErrorCodeInvalidInput, "vector 0 is empty")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return 0, NewDomainError(ModuleVector, ErrorCodeInvalidInput,
				fmt.Sprintf("vector %d has length %d, want %d", i, len(v), dim))
		}
	}
	return dim, nil
}

// MissingFeature 是向量缺少某个下标时使用的缺省值，查询与候选两侧同时取该值时差为 0。
const MissingFeature = 0.5

// KeyFeatures 是重排与情绪标签使用的四个归一化子特征。
type KeyFeatures struct {
	Tempo      float64 `json:"tempo"`
	Brightness float64 `json:"brightness"` // spectral centroid
	Timbre     float64 `json:"timbre"`     // 第一个 MFCC 均值
	Energy     float64 `json:"energy"`     // RMS
}

// KeyFeaturesOf 从特征向量中按固定下标取出 KeyFeatures。
func KeyFeaturesOf(v FeatureVector) KeyFeatures {
	at := func(i int) float64 {
		if i < len(v) {
			return v[i]
		}
		return MissingFeature
	}
	return KeyFeatures{
		Tempo:      at(IdxTempo),
		Brightness: at(IdxCentroid),
		Timbre:     at(IdxMFCC),
		Energy:     at(IdxEnergy),
	}
}

// Map 以 map 形式输出，写入 Item.Features。
func (f KeyFeatures) Map() map[string]float64 {
	return map[string]float64{
		"tempo":      f.Tempo,
		"brightness": f.Brightness,
		"timbre":     f.Timbre,
		"energy":     f.Energy,
	}
}
