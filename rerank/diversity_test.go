package rerank

import (
	"context"
	"fmt"
	"testing"

	"github.com/rushteam/bizrank/core"
)

func TestDiversityNode(t *testing.T) {
	categories := []string{"candle", "candle", "soap", "candle", "", "soap"}

	tests := []struct {
		name string
		node *DiversityNode
		want []float64
	}{
		{name: "defaults", node: &DiversityNode{}, want: []float64{6, 2.5, 4, 0.75, 2, 0.5}},
		{name: "two per value", node: &DiversityNode{MaxPerValue: 2, Decay: 0.25}, want: []float64{6, 5, 4, 0.75, 2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := products(6)
			for i, c := range categories {
				if c != "" {
					in[i].Entity.(*core.BasicEntity).Meta["category"] = c
				}
			}
			out, err := tt.node.Process(context.Background(), nil, in)
			if err != nil {
				t.Fatal(err)
			}
			if fmt.Sprint(scores(out)) != fmt.Sprint(tt.want) {
				t.Errorf("scores = %v, want %v", scores(out), tt.want)
			}
		})
	}
}
