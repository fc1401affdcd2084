package filter

import (
	"context"
	"testing"

	"github.com/rushteam/tracksim/core"
	"github.com/rushteam/tracksim/genre"
)

func item(id int64, tr core.Track) *core.Item {
	tr.TrackID = id
	return core.NewItem(int(id), &tr)
}

func ids(items []*core.Item) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestPostFilter(t *testing.T) {
	seed := &core.Track{Genre: "Pop", ReleaseDate: "2010-06-01"}
	items := []*core.Item{
		item(1, core.Track{Genre: "Pop", ReleaseDate: "2012"}),            // keep
		item(2, core.Track{Genre: "Pop", ReleaseDate: "1985"}),            // year gap 25
		item(3, core.Track{Genre: "Pop", ReleaseDate: "1990"}),            // gap 20 keep
		item(4, core.Track{Genre: "Country", ReleaseDate: "2010"}),        // pop->country
		item(5, core.Track{Genre: "Hip-Hop/Rap"}),                         // pop->hiphop
		item(6, core.Track{Genre: "Rock", ReleaseDate: "unknown"}),        // keep: pop->rock ok, bad date
		item(7, core.Track{Genre: "Pop", Acousticness: core.Float(0.71)}), // acoustic
		item(8, core.Track{Genre: "Pop", Acousticness: core.Float(0.7)}),  // keep: boundary
		item(9, core.Track{Genre: "Pop", Energy: core.Float(0.19)}),       // energy floor
		item(10, core.Track{Genre: "Pop", Energy: core.Float(0.2)}),       // keep: boundary
		item(11, core.Track{}),                                            // keep: nothing known
	}
	got := ids(PostFilter(context.Background(), items, seed, DefaultMaxYearGap))
	want := []int64{1, 3, 6, 8, 10, 11}
	if len(got) != len(want) {
		t.Fatalf("kept %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("kept %v, want %v", got, want)
		}
	}
}

func TestPostFilter_SeedWithoutYear(t *testing.T) {
	seed := &core.Track{Genre: "Pop"}
	got := PostFilter(context.Background(), []*core.Item{item(1, core.Track{ReleaseDate: "1900"})}, seed, 20)
	if len(got) != 1 {
		t.Fatal("unparseable seed year must not reject")
	}
}

func TestGenreFilter_Asymmetric(t *testing.T) {
	f := &GenreFilter{}
	ctx := context.Background()
	rctx := &core.RecommendContext{Seed: &core.Track{Genre: "Country"}}
	if rej, _ := f.ShouldFilter(ctx, rctx, item(1, core.Track{Genre: "Pop"})); rej {
		t.Fatal("(country, pop) is not in the incompatible set")
	}

	sym := &GenreFilter{Table: genre.NewTable(genre.DefaultRules(), genre.Other, genre.DefaultIncompatible(), true)}
	if rej, _ := sym.ShouldFilter(ctx, rctx, item(1, core.Track{Genre: "Pop"})); !rej {
		t.Fatal("symmetric table should reject (country, pop)")
	}
}

func TestGenreFilter_MissingSeed(t *testing.T) {
	f := &GenreFilter{}
	rej, err := f.ShouldFilter(context.Background(), &core.RecommendContext{}, item(1, core.Track{Genre: "Country"}))
	if err != nil || rej {
		t.Fatalf("missing seed metadata should keep, got %v, %v", rej, err)
	}
}

func TestFilterNode_LabelsAndHook(t *testing.T) {
	var rules []string
	n := &FilterNode{
		Filters:  []Filter{&EnergyFilter{Floor: 0.2}},
		OnReject: func(r string) { rules = append(rules, r) },
	}
	low := item(1, core.Track{Energy: core.Float(0.1)})
	out, err := n.Process(context.Background(), &core.RecommendContext{}, []*core.Item{low, item(2, core.Track{}), nil})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].ID != 2 {
		t.Fatalf("out = %v", ids(out))
	}
	if lbl, ok := low.Labels["filtered"]; !ok || lbl.Source != "filter.energy" {
		t.Fatalf("filtered label = %+v", low.Labels)
	}
	if len(rules) != 1 || rules[0] != "filter.energy" {
		t.Fatalf("OnReject calls = %v", rules)
	}
}

func TestExprFilter(t *testing.T) {
	f, err := NewExprFilter("!has(item.year) || item.year >= 2000")
	if err != nil {
		t.Fatal(err)
	}
	n := &FilterNode{Filters: []Filter{f}}
	out, _ := n.Process(context.Background(), &core.RecommendContext{}, []*core.Item{
		item(1, core.Track{ReleaseDate: "1999"}),
		item(2, core.Track{ReleaseDate: "2001"}),
		item(3, core.Track{}),
	})
	if got := ids(out); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("kept %v", got)
	}

	if _, err := NewExprFilter("item.year >"); !core.IsConfigError(err) {
		t.Fatalf("bad expr err = %v", err)
	}
}

func TestExprFilter_EvalErrorKeeps(t *testing.T) {
	f, err := NewExprFilter("item.acousticness < 0.5")
	if err != nil {
		t.Fatal(err)
	}
	n := &FilterNode{Filters: []Filter{f}}
	out, _ := n.Process(context.Background(), &core.RecommendContext{}, []*core.Item{item(1, core.Track{})})
	if len(out) != 1 {
		t.Fatal("evaluation errors must not reject")
	}
}

func TestBlacklistFilter(t *testing.T) {
	f := NewBlacklistFilter([]int64{1})
	rctx := &core.RecommendContext{Params: map[string]any{"exclude_ids": []int64{3}}}
	for id, want := range map[int64]bool{1: true, 2: false, 3: true} {
		got, _ := f.ShouldFilter(context.Background(), rctx, item(id, core.Track{}))
		if got != want {
			t.Errorf("id %d: got %v, want %v", id, got, want)
		}
	}
}
