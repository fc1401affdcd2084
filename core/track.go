package core

import (
	"strconv"
	"strings"
)

// Track 是曲库中的一条元信息记录（CatalogItem），与快照中的向量按下标对齐。
//
// Acousticness / Energy 为可选的原始声学字段，仅供后置过滤使用；
// 为 nil 时相关规则放行。
type Track struct {
	TrackID      int64    `json:"track_id"`
	Title        string   `json:"title"`
	Artist       string   `json:"artist"`
	Genre        string   `json:"genre,omitempty"`
	GenreID      int      `json:"genre_id,omitempty"`
	ReleaseDate  string   `json:"release_date,omitempty"`
	PreviewURL   string   `json:"preview_url,omitempty"`
	ArtworkURL   string   `json:"artwork_url,omitempty"`
	Acousticness *float64 `json:"acousticness,omitempty"`
	Energy       *float64 `json:"energy,omitempty"`
}

// ReleaseYear 取 ReleaseDate 的前四位作为年份；缺失或格式错误时返回 false。
func (t *Track) ReleaseYear() (int, bool) {
	if t == nil {
		return 0, false
	}
	s := strings.TrimSpace(t.ReleaseDate)
	if len(s) < 4 {
		return 0, false
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil {
		return 0, false
	}
	return y, true
}

// DedupKey 返回 (title, artist) 去空白、小写后的组合键。
func (t *Track) DedupKey() [2]string {
	if t == nil {
		return [2]string{}
	}
	return [2]string{
		strings.ToLower(strings.TrimSpace(t.Title)),
		strings.ToLower(strings.TrimSpace(t.Artist)),
	}
}

// Float 是构造可选字段的便捷函数。
func Float(v float64) *float64 { return &v }
