package recall

import (
	"context"
	"reflect"
	"testing"

	"github.com/rushteam/tracksim/catalog"
	"github.com/rushteam/tracksim/core"
)

func TestBuildQueryVector(t *testing.T) {
	tests := []struct {
		name    string
		in      [][]float64
		want    []float64
		wantErr bool
	}{
		{"single", [][]float64{{0.2, 0.4}}, []float64{0.2, 0.4}, false},
		{"mean", [][]float64{{0, 1}, {1, 0}, {0.5, 0.5}}, []float64{0.5, 0.5}, false},
		{"empty", nil, nil, true},
		{"ragged", [][]float64{{1, 2}, {1}}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildQueryVector(tt.in)
			if tt.wantErr {
				if !core.IsInvalidInput(err) {
					t.Fatalf("err = %v, want invalid input", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildQueryVector_CopiesInput(t *testing.T) {
	in := []float64{1, 2, 3}
	got, _ := BuildQueryVector([][]float64{in})
	got[0] = 99
	if in[0] != 1 {
		t.Fatal("query vector must not alias the seed")
	}
}

func TestANNNode(t *testing.T) {
	snap := &catalog.Snapshot{
		Vectors: [][]float64{{1, 0}, {0, 1}, {0.8, 0.2}},
		Tracks:  []core.Track{{TrackID: 1}, {TrackID: 2}, {TrackID: 3}},
	}
	ix := catalog.New(&catalog.StaticStore{Snapshot: snap}, catalog.WithBackend(catalog.NewFlatBackend()))
	node := &ANN{Index: ix, K: 2}

	items, err := node.Process(context.Background(), &core.RecommendContext{Query: []float64{1, 0}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].ID != 1 || items[1].ID != 3 {
		t.Fatalf("items = %+v", items)
	}
	if items[1].Label != 2 {
		t.Fatalf("label = %d, want 2", items[1].Label)
	}
	if _, ok := items[0].Labels["recall_source"]; !ok {
		t.Fatal("missing recall_source label")
	}

	if _, err := node.Process(context.Background(), &core.RecommendContext{}, nil); !core.IsInvalidInput(err) {
		t.Fatalf("empty query err = %v", err)
	}
}
