package utils

import "testing"

func TestMergeLabel(t *testing.T) {
	tests := []struct {
		name     string
		existing Label
		incoming Label
		want     Label
	}{
		{"empty existing", Label{}, Label{Value: "a", Source: "filter"}, Label{Value: "a", Source: "filter"}},
		{"empty incoming", Label{Value: "a", Source: "rank"}, Label{}, Label{Value: "a", Source: "rank"}},
		{"same source", Label{Value: "a", Source: "rank"}, Label{Value: "b", Source: "rank"}, Label{Value: "a|b", Source: "rank"}},
		{"different source", Label{Value: "a", Source: "filter"}, Label{Value: "b", Source: "rank"}, Label{Value: "a|b", Source: "filter,rank"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MergeLabel(tt.existing, tt.incoming); got != tt.want {
				t.Fatalf("MergeLabel = %+v, want %+v", got, tt.want)
			}
		})
	}
	if got := FloatLabel(0.123456, "rank"); got.Value != "0.1235" {
		t.Fatalf("FloatLabel = %+v", got)
	}
}
