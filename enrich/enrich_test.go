package enrich

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rushteam/tracksim/core"
	"github.com/rushteam/tracksim/itunes"
	"github.com/rushteam/tracksim/store"
)

type fakeFetcher struct {
	calls atomic.Int32
	data  map[int64]Display
}

func (f *fakeFetcher) Fetch(_ context.Context, id int64) (Display, error) {
	f.calls.Add(1)
	d, ok := f.data[id]
	if !ok {
		return Display{}, errors.New("lookup failed")
	}
	return d, nil
}

func items(ids ...int64) []*core.Item {
	out := make([]*core.Item, len(ids))
	for i, id := range ids {
		out[i] = core.NewItem(i, &core.Track{TrackID: id})
	}
	return out
}

func TestNodeFailSoftAndOrder(t *testing.T) {
	f := &fakeFetcher{data: map[int64]Display{
		1: {AlbumImage: "img1", MusicURL: "url1"},
		3: {AlbumImage: "img3", MusicURL: "url3"},
	}}
	var ok, failed atomic.Int32
	n := &Node{Fetcher: f, Concurrency: 2, OnResult: func(success bool) {
		if success {
			ok.Add(1)
		} else {
			failed.Add(1)
		}
	}}
	in := items(1, 2, 3)
	out, err := n.Process(context.Background(), nil, in)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []int64{1, 2, 3} {
		if out[i].ID != want {
			t.Fatalf("order changed: %d at %d", out[i].ID, i)
		}
	}
	if out[0].AlbumImage != "img1" || out[2].MusicURL != "url3" {
		t.Fatalf("enrich not applied: %+v %+v", out[0], out[2])
	}
	if out[1].AlbumImage != "" || out[1].MusicURL != "" {
		t.Fatalf("failed item should stay empty: %+v", out[1])
	}
	if ok.Load() != 2 || failed.Load() != 1 {
		t.Fatalf("ok=%d failed=%d", ok.Load(), failed.Load())
	}
}

func TestCachedEnricher(t *testing.T) {
	f := &fakeFetcher{data: map[int64]Display{7: {AlbumImage: "a", MusicURL: "u"}}}
	s := store.NewMemoryStore()
	defer s.Close()
	var hits atomic.Int32
	c := NewCachedEnricher(f, s, time.Hour)
	c.OnLookup = func(hit bool) {
		if hit {
			hits.Add(1)
		}
	}

	for i := 0; i < 3; i++ {
		d, err := c.Fetch(context.Background(), 7)
		if err != nil || d.AlbumImage != "a" {
			t.Fatalf("Fetch = %+v, %v", d, err)
		}
	}
	if f.calls.Load() != 1 {
		t.Fatalf("inner calls = %d, want 1", f.calls.Load())
	}
	if hits.Load() != 2 {
		t.Fatalf("hits = %d, want 2", hits.Load())
	}

	// 失败不缓存
	if _, err := c.Fetch(context.Background(), 8); err == nil {
		t.Fatal("expected error for unknown id")
	}
	if _, err := c.Fetch(context.Background(), 8); err == nil {
		t.Fatal("expected error for unknown id")
	}
	if f.calls.Load() != 3 {
		t.Fatalf("inner calls = %d, want 3", f.calls.Load())
	}

	it := core.NewItem(0, &core.Track{TrackID: 8})
	c.Enrich(context.Background(), it)
	if it.AlbumImage != "" {
		t.Fatal("Enrich should leave fields empty on failure")
	}
}

func TestITunesEnricher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "42":
			_, _ = w.Write([]byte(`{"resultCount":1,"results":[{"trackId":42,"artworkUrl100":"https://a/42.jpg","trackViewUrl":"https://music/42"}]}`))
		default:
			_, _ = w.Write([]byte(`{"resultCount":0,"results":[]}`))
		}
	}))
	defer srv.Close()
	cfg := itunes.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RPS = 0
	e := NewITunesEnricher(itunes.New(cfg), 0)

	it := core.NewItem(0, &core.Track{TrackID: 42})
	e.Enrich(context.Background(), it)
	if it.AlbumImage != "https://a/42.jpg" || it.MusicURL != "https://music/42" {
		t.Fatalf("enriched = %q %q", it.AlbumImage, it.MusicURL)
	}

	if _, err := e.Fetch(context.Background(), 43); !core.IsUnavailable(err) {
		t.Fatalf("missing track: want unavailable, got %v", err)
	}
}
