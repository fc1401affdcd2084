package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rushteam/tracksim/core"
)

type funcNode struct {
	name string
	kind Kind
	fn   func([]*core.Item) ([]*core.Item, error)
}

func (n *funcNode) Name() string { return n.name }
func (n *funcNode) Kind() Kind   { return n.kind }
func (n *funcNode) Process(_ context.Context, _ *core.RecommendContext, items []*core.Item) ([]*core.Item, error) {
	return n.fn(items)
}

func appendNode(name string, id int64) *funcNode {
	return &funcNode{name: name, kind: KindRecall, fn: func(items []*core.Item) ([]*core.Item, error) {
		return append(items, &core.Item{ID: id}), nil
	}}
}

func TestPipelineRunOrderAndObserver(t *testing.T) {
	var seen []string
	var counts [][2]int
	p := &Pipeline{
		Nodes: []Node{appendNode("a", 1), appendNode("b", 2), appendNode("c", 3)},
		Observer: func(node Node, in, out int, _ time.Duration, err error) {
			if err != nil {
				t.Errorf("unexpected error from %s: %v", node.Name(), err)
			}
			seen = append(seen, node.Name())
			counts = append(counts, [2]int{in, out})
		},
	}
	items, err := p.Run(context.Background(), &core.RecommendContext{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 || items[0].ID != 1 || items[2].ID != 3 {
		t.Fatalf("items = %+v", items)
	}
	if len(seen) != 3 || seen[0] != "a" || seen[2] != "c" {
		t.Fatalf("observer order = %v", seen)
	}
	if counts[1] != [2]int{1, 2} {
		t.Fatalf("counts = %v", counts)
	}
}

func TestPipelineStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	ran := false
	var observed error
	p := &Pipeline{
		Nodes: []Node{
			appendNode("a", 1),
			&funcNode{name: "fail", kind: KindFilter, fn: func([]*core.Item) ([]*core.Item, error) { return nil, boom }},
			&funcNode{name: "after", kind: KindRank, fn: func(items []*core.Item) ([]*core.Item, error) {
				ran = true
				return items, nil
			}},
		},
		Observer: func(node Node, _, _ int, _ time.Duration, err error) {
			if node.Name() == "fail" {
				observed = err
			}
		},
	}
	if _, err := p.Run(context.Background(), &core.RecommendContext{}, nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if ran {
		t.Fatal("nodes after a failure must not run")
	}
	if !errors.Is(observed, boom) {
		t.Fatalf("observer err = %v", observed)
	}
}

func TestConfigBuildPipeline(t *testing.T) {
	cfg, err := ParseYAML([]byte(`
pipeline:
  name: demo
  nodes:
    - type: test.append
      config: {id: 7}
    - type: test.append
      config: {id: 8}
`))
	if err != nil {
		t.Fatal(err)
	}
	f := NewNodeFactory()
	f.Register("test.append", func(c map[string]interface{}) (Node, error) {
		return appendNode("append", int64(c["id"].(int))), nil
	})
	p, err := cfg.BuildPipeline(f)
	if err != nil {
		t.Fatal(err)
	}
	items, err := p.Run(context.Background(), &core.RecommendContext{}, nil)
	if err != nil || len(items) != 2 || items[1].ID != 8 {
		t.Fatalf("Run = %+v, %v", items, err)
	}

	if _, err := ParseYAML([]byte("pipeline:\n  name: empty\n")); err == nil {
		t.Fatal("pipeline without nodes should fail")
	}
	bad := &Config{}
	bad.Pipeline.Nodes = []NodeConfig{{Type: "nope"}}
	if _, err := bad.BuildPipeline(f); err == nil {
		t.Fatal("unknown node type should fail")
	}
}

func TestCheckOrder(t *testing.T) {
	node := func(name string, k Kind) Node { return &funcNode{name: name, kind: k} }
	tests := []struct {
		name    string
		nodes   []Node
		wantErr bool
	}{
		{"full chain", []Node{node("ann", KindRecall), node("f", KindFilter), node("r", KindRank), node("d", KindReRank), node("e", KindPostProcess)}, false},
		{"repeated stage", []Node{node("ann", KindRecall), node("f1", KindFilter), node("f2", KindFilter)}, false},
		{"empty", nil, true},
		{"no recall first", []Node{node("f", KindFilter), node("ann", KindRecall)}, true},
		{"filter after rank", []Node{node("ann", KindRecall), node("r", KindRank), node("f", KindFilter)}, true},
		{"unknown kind", []Node{node("ann", KindRecall), node("x", Kind("custom"))}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := CheckOrder(tt.nodes); (err != nil) != tt.wantErr {
				t.Fatalf("CheckOrder() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
