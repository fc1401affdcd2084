// Package enrich 为最终结果补充展示字段（专辑封面、Apple Music 链接）。
//
// 富化是整条链路中唯一的逐条外部 I/O，任何失败都只让该条目的展示字段留空，
// 不影响推荐结果本身。
package enrich

import (
	"context"
	"time"

	"github.com/rushteam/tracksim/core"
	"github.com/rushteam/tracksim/itunes"
)

// DefaultTimeout 是单条富化的超时。
const DefaultTimeout = 3 * time.Second

// Display 是富化得到的展示字段。
type Display struct {
	AlbumImage string `json:"album_image"`
	MusicURL   string `json:"apple_music_url"`
}

// IsZero 表示两个字段都为空。
func (d Display) IsZero() bool { return d.AlbumImage == "" && d.MusicURL == "" }

// Fetcher 按曲目 id 取展示字段，失败返回 error。
type Fetcher interface {
	Fetch(ctx context.Context, trackID int64) (Display, error)
}

// Enricher 把展示字段写入候选，永不失败。
type Enricher interface {
	Enrich(ctx context.Context, it *core.Item)
}

// Lookuper 是 itunes.Client 的查询能力。
type Lookuper interface {
	LookupOne(ctx context.Context, id int64) (*itunes.Track, error)
}

// ITunesEnricher 通过 iTunes Lookup 取封面与链接。
type ITunesEnricher struct {
	Client  Lookuper
	Timeout time.Duration
}

// NewITunesEnricher 创建 ITunesEnricher，timeout <= 0 时使用 DefaultTimeout。
func NewITunesEnricher(client Lookuper, timeout time.Duration) *ITunesEnricher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ITunesEnricher{Client: client, Timeout: timeout}
}

func (e *ITunesEnricher) Fetch(ctx context.Context, trackID int64) (Display, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tr, err := e.Client.LookupOne(ctx, trackID)
	if err != nil {
		return Display{}, core.WrapDomainError(core.ModuleEnrich, core.ErrorCodeUnavailable, err, "lookup %d", trackID)
	}
	return Display{AlbumImage: tr.ArtworkURL100, MusicURL: tr.MusicURL()}, nil
}

func (e *ITunesEnricher) Enrich(ctx context.Context, it *core.Item) {
	apply(ctx, e, it)
}

// apply 取展示字段并写入候选，失败时保持为空。
func apply(ctx context.Context, f Fetcher, it *core.Item) error {
	if it == nil {
		return nil
	}
	d, err := f.Fetch(ctx, it.ID)
	if err != nil {
		return err
	}
	it.AlbumImage = d.AlbumImage
	it.MusicURL = d.MusicURL
	return nil
}
