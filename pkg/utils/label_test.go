package utils

import "testing"

func TestMergeLabel(t *testing.T) {
	tests := []struct {
		name     string
		existing Label
		incoming Label
		want     Label
	}{
		{"empty existing", Label{}, Label{Value: "boost", Source: "pipeline"}, Label{Value: "boost", Source: "pipeline"}},
		{"empty incoming", Label{Value: "boost", Source: "pipeline"}, Label{}, Label{Value: "boost", Source: "pipeline"}},
		{"accumulate", Label{Value: "boost", Source: "pipeline"}, Label{Value: "pin", Source: "rule"}, Label{Value: "boost|pin", Source: "pipeline,rule"}},
		{"dedup", Label{Value: "boost|pin", Source: "pipeline"}, Label{Value: "pin", Source: "pipeline"}, Label{Value: "boost|pin", Source: "pipeline"}},
		{"empty source", Label{Value: "boost"}, Label{Value: "pin", Source: "rule"}, Label{Value: "boost|pin", Source: "rule"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MergeLabel(tt.existing, tt.incoming); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
