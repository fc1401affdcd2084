package catalog

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Neighbor 是 ANN 后端返回的一条近邻：快照下标与余弦相似度。
type Neighbor struct {
	Label      int
	Similarity float64
}

// Backend 是近邻检索结构。Build 只调用一次，之后 Search 需要支持并发调用。
type Backend interface {
	Name() string
	Build(vectors [][]float64) error
	Search(query []float64, k int) ([]Neighbor, error)
}

// BackendFactory 按名称构造后端，供配置驱动使用；空名称使用精确的 flat。
func BackendFactory(name string, p HNSWParams) (Backend, error) {
	switch name {
	case "", "flat":
		return NewFlatBackend(), nil
	case "hnsw":
		return NewHNSWBackend(p), nil
	default:
		return nil, fmt.Errorf("unknown ann backend %q (supported: flat, hnsw)", name)
	}
}

// FlatBackend 是精确的暴力余弦检索，默认后端。曲库在十万量级以内时足够快。
type FlatBackend struct {
	mu      sync.RWMutex
	vectors [][]float64
	norms   []float64
}

func NewFlatBackend() *FlatBackend { return &FlatBackend{} }

func (b *FlatBackend) Name() string { return "flat" }

func (b *FlatBackend) Build(vectors [][]float64) error {
	norms := make([]float64, len(vectors))
	for i, v := range vectors {
		norms[i] = norm(v)
	}
	b.mu.Lock()
	b.vectors, b.norms = vectors, norms
	b.mu.Unlock()
	return nil
}

func (b *FlatBackend) Search(query []float64, k int) ([]Neighbor, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if k <= 0 {
		return nil, nil
	}
	qn := norm(query)
	out := make([]Neighbor, len(b.vectors))
	for i, v := range b.vectors {
		var sim float64
		if qn != 0 && b.norms[i] != 0 {
			sim = dot(query, v) / (qn * b.norms[i])
		}
		out[i] = Neighbor{Label: i, Similarity: sim}
	}
	sortNeighbors(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// sortNeighbors 按相似度降序，相同时按下标升序，结果确定。
func sortNeighbors(ns []Neighbor) {
	sort.SliceStable(ns, func(i, j int) bool {
		if ns[i].Similarity != ns[j].Similarity {
			return ns[i].Similarity > ns[j].Similarity
		}
		return ns[i].Label < ns[j].Label
	})
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot(a, b) / (na * nb)
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func norm(a []float64) float64 {
	return math.Sqrt(dot(a, a))
}

// normalized 返回单位化后的副本，零向量原样返回。
func normalized(v []float64) []float64 {
	out := make([]float64, len(v))
	n := norm(v)
	if n == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / n
	}
	return out
}
