package dsl

import (
	"testing"

	"github.com/rushteam/tracksim/core"
)

func TestProgramEval(t *testing.T) {
	item := core.NewItem(0, &core.Track{TrackID: 7, Title: "x", GenreID: 14, ReleaseDate: "2015-01-01", Energy: core.Float(0.6)})
	item.Meta["similarity"] = 0.93
	rctx := &core.RecommendContext{Seed: &core.Track{GenreID: 14, ReleaseDate: "2010"}}

	tests := []struct {
		expr string
		want bool
	}{
		{"item.year >= 2010", true},
		{"item.year - seed.year > 10", false},
		{"item.genre_id == seed.genre_id", true},
		{"!has(item.acousticness) || item.acousticness < 0.5", true},
		{"has(item.energy) && item.energy > 0.5", true},
		{"item.similarity > 0.95", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			p, err := Compile(tt.expr)
			if err != nil {
				t.Fatal(err)
			}
			got, err := p.Eval(item, rctx)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("Eval = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	for _, expr := range []string{"item.year >", "1 + 2"} {
		if _, err := Compile(expr); err == nil {
			t.Errorf("Compile(%q) should fail", expr)
		}
	}
}

func TestEvalMissingField(t *testing.T) {
	p, err := Compile("item.acousticness < 0.5")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Eval(core.NewItem(0, &core.Track{}), &core.RecommendContext{}); err == nil {
		t.Fatal("accessing an absent key should error")
	}
}
