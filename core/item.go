package core

import "github.com/rushteam/tracksim/pkg/utils"

// Item 是一次推荐调用中的候选曲目：曲目元信息、快照下标、分数、情绪标签。
// Labels 用于解释与追踪；Score 用于排序决策。
type Item struct {
	ID    int64
	Label int // 快照中的位置下标，与向量一一对应
	Track *Track

	Score  float64
	Scored bool // Re-Ranker 打分后置为 true

	// Features 保存重排使用的子特征（tempo / brightness / timbre / energy）
	Features map[string]float64
	Mood     []string

	// 展示字段，由富化阶段填充，失败时保持为空
	AlbumImage string
	MusicURL   string

	Meta   map[string]any
	Labels map[string]utils.Label
}

// NewItem 由快照下标与曲目构造候选。
func NewItem(label int, track *Track) *Item {
	it := &Item{
		Label:    label,
		Track:    track,
		Features: make(map[string]float64),
		Meta:     make(map[string]any),
		Labels:   make(map[string]utils.Label),
	}
	if track != nil {
		it.ID = track.TrackID
	}
	return it
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// Title 与 Artist 对缺失的 Track 返回空串。
func (it *Item) Title() string {
	if it.Track == nil {
		return ""
	}
	return it.Track.Title
}

func (it *Item) Artist() string {
	if it.Track == nil {
		return ""
	}
	return it.Track.Artist
}
