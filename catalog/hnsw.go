package catalog

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
)

// HNSWParams 是 HNSW 图参数。
type HNSWParams struct {
	M              int   `koanf:"m" validate:"gte=2"`
	EfConstruction int   `koanf:"ef_construction" validate:"gte=1"`
	EfSearch       int   `koanf:"ef_search" validate:"gte=1"`
	Seed           int64 `koanf:"seed"`
}

// DefaultHNSWParams 返回默认参数：M=32，efConstruction=200，ef=200，固定随机种子。
func DefaultHNSWParams() HNSWParams {
	return HNSWParams{M: 32, EfConstruction: 200, EfSearch: 200, Seed: 42}
}

// HNSWBackend 是进程内的分层小世界图，余弦距离。
//
// 构建是单线程、按快照顺序插入的，层级由固定种子的随机数决定，所以同一快照总得到同一张图；
// 查询只读，搜索宽度取 max(EfSearch, 2k)。
type HNSWBackend struct {
	params HNSWParams

	mu    sync.RWMutex
	graph *hnswGraph
	raw   [][]float64
}

func NewHNSWBackend(p HNSWParams) *HNSWBackend {
	def := DefaultHNSWParams()
	if p.M < 2 {
		p.M = def.M
	}
	if p.EfConstruction <= 0 {
		p.EfConstruction = def.EfConstruction
	}
	if p.EfSearch <= 0 {
		p.EfSearch = def.EfSearch
	}
	return &HNSWBackend{params: p}
}

func (b *HNSWBackend) Name() string { return "hnsw" }

func (b *HNSWBackend) Build(vectors [][]float64) error {
	g := newHNSWGraph(b.params, len(vectors))
	for _, v := range vectors {
		g.insert(normalized(v))
	}
	b.mu.Lock()
	b.graph, b.raw = g, vectors
	b.mu.Unlock()
	return nil
}

// Search 返回按相似度降序的至多 k 个近邻；相似度以原始向量重新计算。
func (b *HNSWBackend) Search(query []float64, k int) ([]Neighbor, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.graph == nil {
		return nil, fmt.Errorf("hnsw: graph not built")
	}
	if k <= 0 {
		return nil, nil
	}
	found := b.graph.search(normalized(query), max(b.params.EfSearch, 2*k))
	out := make([]Neighbor, 0, len(found))
	for _, c := range found {
		out = append(out, Neighbor{Label: int(c.id), Similarity: cosineSimilarity(query, b.raw[c.id])})
	}
	sortNeighbors(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

type cand struct {
	id int32
	d  float64
}

// closer 以距离升序，距离相同按下标，保证遍历顺序确定。
func closer(a, b cand) bool {
	if a.d != b.d {
		return a.d < b.d
	}
	return a.id < b.id
}

type minHeap []cand

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return closer(h[i], h[j]) }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(cand)) }
func (h *minHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

type maxHeap []cand

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return closer(h[j], h[i]) }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)        { *h = append(*h, x.(cand)) }
func (h *maxHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

func sortCands(cs []cand) {
	sort.Slice(cs, func(i, j int) bool { return closer(cs[i], cs[j]) })
}

// hnswGraph 的向量均已单位化，距离为 1 - 点积。
type hnswGraph struct {
	m, m0, efC int
	ml         float64
	rng        *rand.Rand

	vecs  [][]float64
	links [][][]int32 // links[node][layer]
	entry int32
	top   int
}

func newHNSWGraph(p HNSWParams, n int) *hnswGraph {
	return &hnswGraph{
		m:     p.M,
		m0:    2 * p.M,
		efC:   p.EfConstruction,
		ml:    1 / math.Log(float64(p.M)),
		rng:   rand.New(rand.NewSource(p.Seed)),
		vecs:  make([][]float64, 0, n),
		links: make([][][]int32, 0, n),
		entry: -1,
	}
}

func (g *hnswGraph) dist(a, b []float64) float64 { return 1 - dot(a, b) }

func (g *hnswGraph) maxConn(layer int) int {
	if layer == 0 {
		return g.m0
	}
	return g.m
}

func (g *hnswGraph) randomLevel() int {
	return int(math.Floor(-math.Log(1-g.rng.Float64()) * g.ml))
}

func (g *hnswGraph) insert(v []float64) {
	id := int32(len(g.vecs))
	g.vecs = append(g.vecs, v)
	level := g.randomLevel()
	g.links = append(g.links, make([][]int32, level+1))
	if g.entry < 0 {
		g.entry, g.top = id, level
		return
	}

	ep := g.entry
	for l := g.top; l > level; l-- {
		ep = g.greedy(v, ep, l)
	}
	eps := []int32{ep}
	for l := min(level, g.top); l >= 0; l-- {
		w := g.searchLayer(v, eps, g.efC, l)
		g.links[id][l] = g.selectNeighbors(w, g.m)
		for _, n := range g.links[id][l] {
			g.connect(n, id, l)
		}
		eps = eps[:0]
		for _, c := range w {
			eps = append(eps, c.id)
		}
	}
	if level > g.top {
		g.entry, g.top = id, level
	}
}

// selectNeighbors 从按距离升序的候选中挑选至多 m 个邻居：
// 优先保留比已选邻居更靠近基点的候选，剩余名额再按距离补齐。
func (g *hnswGraph) selectNeighbors(cs []cand, m int) []int32 {
	kept := make([]int32, 0, m)
	var pruned []int32
	for _, c := range cs {
		if len(kept) >= m {
			break
		}
		diverse := true
		for _, r := range kept {
			if g.dist(g.vecs[c.id], g.vecs[r]) < c.d {
				diverse = false
				break
			}
		}
		if diverse {
			kept = append(kept, c.id)
		} else {
			pruned = append(pruned, c.id)
		}
	}
	for _, p := range pruned {
		if len(kept) >= m {
			break
		}
		kept = append(kept, p)
	}
	return kept
}

// connect 添加反向边；超出容量时只保留距离最近的 maxConn 条。
func (g *hnswGraph) connect(n, id int32, layer int) {
	ls := append(g.links[n][layer], id)
	if limit := g.maxConn(layer); len(ls) > limit {
		base := g.vecs[n]
		cs := make([]cand, len(ls))
		for i, x := range ls {
			cs[i] = cand{id: x, d: g.dist(base, g.vecs[x])}
		}
		sortCands(cs)
		ls = ls[:0]
		for _, c := range cs[:limit] {
			ls = append(ls, c.id)
		}
	}
	g.links[n][layer] = ls
}

func (g *hnswGraph) greedy(q []float64, ep int32, layer int) int32 {
	cur, curD := ep, g.dist(q, g.vecs[ep])
	for changed := true; changed; {
		changed = false
		for _, n := range g.links[cur][layer] {
			if d := g.dist(q, g.vecs[n]); d < curD || (d == curD && n < cur) {
				cur, curD, changed = n, d, true
			}
		}
	}
	return cur
}

// searchLayer 是带宽度 ef 的最佳优先搜索，返回按距离升序的结果。
func (g *hnswGraph) searchLayer(q []float64, eps []int32, ef, layer int) []cand {
	visited := make([]uint64, (len(g.vecs)+63)/64)
	seen := func(id int32) bool {
		w, bit := id>>6, uint64(1)<<(uint(id)&63)
		if visited[w]&bit != 0 {
			return true
		}
		visited[w] |= bit
		return false
	}

	cands := &minHeap{}
	res := &maxHeap{}
	for _, e := range eps {
		if seen(e) {
			continue
		}
		c := cand{id: e, d: g.dist(q, g.vecs[e])}
		heap.Push(cands, c)
		heap.Push(res, c)
		if res.Len() > ef {
			heap.Pop(res)
		}
	}
	for cands.Len() > 0 {
		c := heap.Pop(cands).(cand)
		if res.Len() >= ef && closer((*res)[0], c) {
			break
		}
		for _, n := range g.links[c.id][layer] {
			if seen(n) {
				continue
			}
			nc := cand{id: n, d: g.dist(q, g.vecs[n])}
			if res.Len() < ef || closer(nc, (*res)[0]) {
				heap.Push(cands, nc)
				heap.Push(res, nc)
				if res.Len() > ef {
					heap.Pop(res)
				}
			}
		}
	}

	out := make([]cand, len(*res))
	copy(out, *res)
	sortCands(out)
	return out
}

func (g *hnswGraph) search(q []float64, ef int) []cand {
	if g.entry < 0 {
		return nil
	}
	ep := g.entry
	for l := g.top; l > 0; l-- {
		ep = g.greedy(q, ep, l)
	}
	return g.searchLayer(q, []int32{ep}, ef, 0)
}
