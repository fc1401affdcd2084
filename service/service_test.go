package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/rushteam/tracksim/catalog"
	"github.com/rushteam/tracksim/core"
	"github.com/rushteam/tracksim/enrich"
	"github.com/rushteam/tracksim/extract"
	"github.com/rushteam/tracksim/history"
)

// 向量只用到 tempo / centroid / energy / mfcc0 四个位置
func vec(tempo, energy float64) []float64 {
	return []float64{tempo, 0.5, 0.5, 0.5, energy, 0.5}
}

func testIndex(t *testing.T) *catalog.Index {
	t.Helper()
	snap := &catalog.Snapshot{
		Vectors: [][]float64{
			vec(0.9, 0.9),   // 1 与种子相同
			vec(0.88, 0.9),  // 2 country，被流派规则剔除
			vec(0.9, 0.88),  // 3 年份相差 30
			vec(0.89, 0.89), // 4 与 1 重复
			vec(0.8, 0.8),   // 5
			vec(0.9, 0.85),  // 6 acousticness 过高
			vec(0.1, 0.1),   // 7 远
		},
		Tracks: []core.Track{
			{TrackID: 1, Title: "Dynamite", Artist: "BTS", Genre: "K-Pop", ReleaseDate: "2020-08-21"},
			{TrackID: 2, Title: "Country Road", Artist: "X", Genre: "Country", ReleaseDate: "2019"},
			{TrackID: 3, Title: "Old", Artist: "Y", Genre: "Pop", ReleaseDate: "1990"},
			{TrackID: 4, Title: "dynamite ", Artist: "bts", Genre: "K-Pop", ReleaseDate: "2020"},
			{TrackID: 5, Title: "Five", Artist: "Z", Genre: "Pop", ReleaseDate: "2018"},
			{TrackID: 6, Title: "Six", Artist: "W", Genre: "Pop", ReleaseDate: "2021", Acousticness: core.Float(0.9)},
			{TrackID: 7, Title: "Seven", Artist: "V", Genre: "Pop", ReleaseDate: "2015"},
		},
	}
	ix := catalog.New(&catalog.StaticStore{Snapshot: snap}, catalog.WithBackend(catalog.NewFlatBackend()))
	if err := ix.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	return ix
}

func ids(res *Result) []int64 {
	out := make([]int64, len(res.Tracks))
	for i, r := range res.Tracks {
		out[i] = r.TrackID
	}
	return out
}

var seedTrack = &core.Track{TrackID: 100, Genre: "Pop", ReleaseDate: "2020"}

func TestRecommend(t *testing.T) {
	r := NewRecommender(testIndex(t), Options{})
	res, err := r.Recommend(context.Background(), [][]float64{vec(0.9, 0.9)}, []*core.Track{seedTrack}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := ids(res), []int64{1, 5, 7}; !slices.Equal(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := 1; i < len(res.Tracks); i++ {
		if res.Tracks[i].Score > res.Tracks[i-1].Score {
			t.Fatalf("scores not descending: %+v", res.Tracks)
		}
	}
	if !slices.Contains(res.MoodTags, "#energetic") || slices.Contains(res.MoodTags, "#calm") {
		t.Fatalf("mood = %v", res.MoodTags)
	}
	if !slices.Equal(res.MoodTags, res.Tracks[0].Mood) {
		t.Fatalf("mood tags should come from the top result: %v vs %v", res.MoodTags, res.Tracks[0].Mood)
	}
	if res.RequestID == "" {
		t.Fatal("missing request id")
	}
}

func TestRecommendReusesHTTPRequestID(t *testing.T) {
	r := NewRecommender(testIndex(t), Options{})
	ctx := context.WithValue(context.Background(), chimiddleware.RequestIDKey, "edge/abc-000042")
	res, err := r.Recommend(ctx, [][]float64{vec(0.9, 0.9)}, nil, 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.RequestID != "edge/abc-000042" {
		t.Fatalf("request id = %q", res.RequestID)
	}
}

func TestRecommendTopK(t *testing.T) {
	r := NewRecommender(testIndex(t), Options{})
	res, err := r.Recommend(context.Background(), [][]float64{vec(0.9, 0.9)}, nil, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Tracks) != 2 {
		t.Fatalf("len = %d, want 2", len(res.Tracks))
	}
}

func TestRecommendTopTenUnique(t *testing.T) {
	snap := &catalog.Snapshot{}
	for i := 0; i < 14; i++ {
		x := 0.9 - float64(i)*0.01
		snap.Vectors = append(snap.Vectors, vec(x, x))
		snap.Tracks = append(snap.Tracks, core.Track{
			TrackID:     int64(i + 1),
			Title:       fmt.Sprintf("Song %d", i+1),
			Artist:      "Band",
			Genre:       "Pop",
			ReleaseDate: "2020",
		})
	}
	// 与前两首只差大小写和空白，应被去重
	snap.Vectors = append(snap.Vectors, vec(0.9, 0.9), vec(0.89, 0.89))
	snap.Tracks = append(snap.Tracks,
		core.Track{TrackID: 101, Title: "SONG 1 ", Artist: " band", Genre: "Pop", ReleaseDate: "2020"},
		core.Track{TrackID: 102, Title: "song 2", Artist: "BAND", Genre: "Pop", ReleaseDate: "2020"},
	)
	ix := catalog.New(&catalog.StaticStore{Snapshot: snap}, catalog.WithBackend(catalog.NewFlatBackend()))

	res, err := NewRecommender(ix, Options{}).Recommend(context.Background(), [][]float64{vec(0.9, 0.9)}, []*core.Track{seedTrack}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Tracks) != 10 {
		t.Fatalf("len = %d, want 10", len(res.Tracks))
	}
	seen := make(map[int64]bool)
	keys := make(map[string]bool)
	for _, tr := range res.Tracks {
		if seen[tr.TrackID] {
			t.Fatalf("duplicate track id %d in %v", tr.TrackID, ids(res))
		}
		seen[tr.TrackID] = true
		key := strings.ToLower(strings.TrimSpace(tr.Title)) + "\x00" + strings.ToLower(strings.TrimSpace(tr.Artist))
		if keys[key] {
			t.Fatalf("duplicate title/artist %q in %v", key, ids(res))
		}
		keys[key] = true
	}
}

func TestRecommendInputErrors(t *testing.T) {
	r := NewRecommender(testIndex(t), Options{})
	tests := []struct {
		name  string
		seeds [][]float64
	}{
		{"no seeds", nil},
		{"ragged seeds", [][]float64{vec(0.9, 0.9), {1, 2}}},
		{"wrong dim", [][]float64{{1, 2, 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Recommend(context.Background(), tt.seeds, nil, 5); !core.IsInvalidInput(err) {
				t.Fatalf("want invalid input, got %v", err)
			}
		})
	}
}

func TestRecommendExcludeSeeds(t *testing.T) {
	r := NewRecommender(testIndex(t), Options{ExcludeSeeds: true})
	seed := &core.Track{TrackID: 1, Genre: "K-Pop", ReleaseDate: "2020"}
	res, err := r.Recommend(context.Background(), [][]float64{vec(0.9, 0.9)}, []*core.Track{seed}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := ids(res), []int64{4, 5, 7}; !slices.Equal(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
}

type stubFetcher struct{}

func (stubFetcher) Fetch(_ context.Context, id int64) (enrich.Display, error) {
	if id == 5 {
		return enrich.Display{}, errors.New("down")
	}
	return enrich.Display{AlbumImage: "img", MusicURL: "url"}, nil
}

func TestRecommendEnrichAndHistory(t *testing.T) {
	h, err := history.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	r := NewRecommender(testIndex(t), Options{Enricher: stubFetcher{}, History: h})
	res, err := r.Recommend(context.Background(), [][]float64{vec(0.9, 0.9)}, []*core.Track{seedTrack}, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, tr := range res.Tracks {
		if tr.TrackID == 5 {
			if tr.AlbumImage != "" || tr.MusicURL != "" {
				t.Fatalf("failed enrichment should leave fields empty: %+v", tr)
			}
			continue
		}
		if tr.AlbumImage != "img" || tr.MusicURL != "url" {
			t.Fatalf("not enriched: %+v", tr)
		}
	}

	e, err := h.Get(context.Background(), res.RequestID)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(e.ResultIDs, ids(res)) || !slices.Equal(e.SeedIDs, []int64{100}) {
		t.Fatalf("history = %+v", e)
	}
}

func TestParseArtistTitleList(t *testing.T) {
	got := ParseArtistTitleList([]string{
		"BTS, Dynamite",
		"no comma",
		"IU, Good Day, extra",
		"ignored, fourth",
	})
	want := [][2]string{{"BTS", "Dynamite"}, {"IU", "Good Day, extra"}}
	if !slices.Equal(got, want) {
		t.Fatalf("ParseArtistTitleList = %v, want %v", got, want)
	}
	if got := ParseArtistTitleList([]string{" , title", "artist, ", ","}); len(got) != 0 {
		t.Fatalf("empty parts should be skipped, got %v", got)
	}
	if len(ParseArtistTitleList(nil)) != 0 {
		t.Fatal("nil input should yield empty list")
	}
}

type stubMetadata struct {
	byID   map[int64]*extract.Metadata
	byTerm map[string]*extract.Metadata
}

func (s *stubMetadata) LookupByID(_ context.Context, id int64) (*extract.Metadata, error) {
	if m, ok := s.byID[id]; ok {
		return m, nil
	}
	return nil, core.NewDomainError(core.ModuleExtract, core.ErrorCodeNotFound, "no track")
}

func (s *stubMetadata) LookupByTerm(_ context.Context, term string) (*extract.Metadata, error) {
	if m, ok := s.byTerm[term]; ok {
		return m, nil
	}
	return nil, core.NewDomainError(core.ModuleExtract, core.ErrorCodeNotFound, "no track")
}

type stubAudio struct{}

func (stubAudio) Extract(_ context.Context, previewURL string) (core.FeatureVector, error) {
	if previewURL == "" {
		return nil, core.NewDomainError(core.ModuleExtract, core.ErrorCodeInvalidInput, "missing preview url")
	}
	v := make(core.FeatureVector, core.AudioDim)
	v[core.IdxTempo] = 0.7
	return v, nil
}

func TestSeedResolver(t *testing.T) {
	ix := testIndex(t)
	meta := &stubMetadata{
		byID: map[int64]*extract.Metadata{
			200: {Track: core.Track{TrackID: 200, Title: "New", PreviewURL: "https://p/200.m4a", ReleaseDate: "2022"}, Streamable: true},
			300: {Track: core.Track{TrackID: 300, Title: "No preview"}},
		},
		byTerm: map[string]*extract.Metadata{
			"BTS Dynamite": {Track: core.Track{TrackID: 1}},
		},
	}
	r := &SeedResolver{Catalog: ix, Metadata: meta, Audio: stubAudio{}}
	ctx := context.Background()

	seeds, err := r.ResolveIDs(ctx, []int64{1, 999, 200, 300})
	if err != nil {
		t.Fatal(err)
	}
	if len(seeds) != 2 || seeds[0].ID != 1 || seeds[1].ID != 200 {
		t.Fatalf("seeds = %+v", seeds)
	}
	if seeds[0].Track.Title != "Dynamite" || seeds[0].Vector[0] != 0.9 {
		t.Fatalf("catalog seed should reuse the stored vector: %+v", seeds[0])
	}
	if len(seeds[1].Vector) != core.DefaultDim || seeds[1].Vector[core.IdxCatalog+6] != 2022 {
		t.Fatalf("extracted seed vector = %v", seeds[1].Vector)
	}

	termSeeds, err := r.ResolveTerms(ctx, []string{"BTS, Dynamite", "bad"})
	if err != nil {
		t.Fatal(err)
	}
	if len(termSeeds) != 1 || termSeeds[0].ID != 1 {
		t.Fatalf("term seeds = %+v", termSeeds)
	}

	if _, err := r.ResolveIDs(ctx, []int64{999}); !core.IsInvalidInput(err) {
		t.Fatalf("no usable seeds: want invalid input, got %v", err)
	}
	if _, err := r.ResolveTerms(ctx, []string{"no comma"}); !core.IsInvalidInput(err) {
		t.Fatalf("no parsable terms: want invalid input, got %v", err)
	}
}

func TestSeedResolverLoadsColdCatalog(t *testing.T) {
	snap := &catalog.Snapshot{
		Vectors: [][]float64{vec(0.9, 0.9), vec(0.1, 0.1)},
		Tracks: []core.Track{
			{TrackID: 1, Title: "Dynamite", Artist: "BTS"},
			{TrackID: 2, Title: "Butter", Artist: "BTS"},
		},
	}
	ix := catalog.New(&catalog.StaticStore{Snapshot: snap}, catalog.WithBackend(catalog.NewFlatBackend()))
	r := &SeedResolver{Catalog: ix}

	seeds, err := r.ResolveIDs(context.Background(), []int64{1})
	if err != nil {
		t.Fatalf("catalog seed on an unloaded index: %v", err)
	}
	if len(seeds) != 1 || seeds[0].ID != 1 || seeds[0].Vector[0] != 0.9 {
		t.Fatalf("seeds = %+v", seeds)
	}
	if !ix.Loaded() {
		t.Fatal("resolving seeds should load the index")
	}

	broken := catalog.New(&catalog.StaticStore{Snapshot: &catalog.Snapshot{}}, catalog.WithBackend(catalog.NewFlatBackend()))
	if _, err := (&SeedResolver{Catalog: broken}).ResolveIDs(context.Background(), []int64{1}); !core.IsConfigError(err) {
		t.Fatalf("empty snapshot: want config error, got %v", err)
	}
}
