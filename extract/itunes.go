package extract

import (
	"context"

	"github.com/rushteam/tracksim/itunes"
)

// ITunesClient 是 itunes.Client 中用到的部分。
type ITunesClient interface {
	LookupOne(ctx context.Context, id int64) (*itunes.Track, error)
	SearchOne(ctx context.Context, term string) (*itunes.Track, error)
}

// ITunesLookup 以 iTunes API 作为元信息来源。
type ITunesLookup struct {
	Client ITunesClient
}

func (l *ITunesLookup) LookupByID(ctx context.Context, id int64) (*Metadata, error) {
	t, err := l.Client.LookupOne(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromITunes(t), nil
}

func (l *ITunesLookup) LookupByTerm(ctx context.Context, term string) (*Metadata, error) {
	t, err := l.Client.SearchOne(ctx, term)
	if err != nil {
		return nil, err
	}
	return FromITunes(t), nil
}

// FromITunes 转换 iTunes 记录。
func FromITunes(t *itunes.Track) *Metadata {
	return &Metadata{
		Track:        t.ToCore(),
		DurationMs:   t.TrackTimeMillis,
		Explicitness: t.TrackExplicitness,
		Streamable:   t.IsStreamable,
		DiscNumber:   t.DiscNumber,
		DiscCount:    t.DiscCount,
	}
}
