package rerank

import (
	"fmt"
	"math"
	"testing"

	"github.com/rushteam/bizrank/core"
)

// products 返回 p1..pN，分数依次为 N..1（已降序）。
func products(n int) []core.ScoredCandidate {
	cands := make([]core.ScoredCandidate, n)
	for i := range cands {
		cands[i] = core.ScoredCandidate{
			Entity: core.NewEntity(fmt.Sprintf("p%d", i+1), "product"),
			Score:  float64(n - i),
		}
	}
	return cands
}

func keys(cands []core.ScoredCandidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = core.DefaultKey(c.Entity)
	}
	return out
}

func scores(cands []core.ScoredCandidate) []float64 {
	out := make([]float64, len(cands))
	for i, c := range cands {
		out[i] = c.Score
	}
	return out
}

func TestPin(t *testing.T) {
	tests := []struct {
		name             string
		pins             map[string]int
		allowDownRanking bool
		wantScores       []float64
		wantOrder        []string
	}{
		{
			name:             "collisions at top and bottom with down ranking",
			pins:             map[string]int{"p6": 11, "p5": 10, "p3": 0, "p2": 0, "p4": 2},
			allowDownRanking: true,
			wantScores:       []float64{6, 11, 10, 3.5, 0.5, 0},
			wantOrder:        []string{"p2", "p3", "p1", "p4", "p5", "p6"},
		},
		{
			name:             "down ranking pins are skipped",
			pins:             map[string]int{"p6": 11, "p5": 12, "p3": 0, "p2": 22, "p4": 2},
			allowDownRanking: false,
			wantScores:       []float64{6, 5, 10, 3.5, 2, 1},
			wantOrder:        []string{"p3", "p1", "p2", "p4", "p5", "p6"},
		},
		{
			name:       "unknown key is ignored",
			pins:       map[string]int{"p99": 0},
			wantScores: []float64{6, 5, 4, 3, 2, 1},
			wantOrder:  []string{"p1", "p2", "p3", "p4", "p5", "p6"},
		},
		{
			name:       "no pins",
			pins:       nil,
			wantScores: []float64{6, 5, 4, 3, 2, 1},
			wantOrder:  []string{"p1", "p2", "p3", "p4", "p5", "p6"},
		},
		{
			name:             "position beyond the list is clamped to the bottom",
			pins:             map[string]int{"p2": 100},
			allowDownRanking: true,
			wantScores:       []float64{6, 1 - 1.0/5, 4, 3, 2, 1},
			wantOrder:        []string{"p1", "p3", "p4", "p5", "p6", "p2"},
		},
		{
			name:       "interior position averages neighbours",
			pins:       map[string]int{"p4": 1},
			wantScores: []float64{6, 5, 4, 4.5, 2, 1},
			wantOrder:  []string{"p1", "p2", "p4", "p3", "p5", "p6"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := products(6)
			out := Pin(in, tt.pins, nil, tt.allowDownRanking)

			if fmt.Sprint(keys(out)) != fmt.Sprint(keys(in)) {
				t.Fatalf("Pin must keep positional order: %v", keys(out))
			}
			for i, want := range tt.wantScores {
				if math.Abs(out[i].Score-want) > 1e-9 {
					t.Errorf("score[%d] = %v, want %v", i, out[i].Score, want)
				}
			}
			if got := keys(core.SortDesc(out)); fmt.Sprint(got) != fmt.Sprint(tt.wantOrder) {
				t.Errorf("order = %v, want %v", got, tt.wantOrder)
			}
			if fmt.Sprint(scores(in)) != "[6 5 4 3 2 1]" {
				t.Errorf("input modified: %v", scores(in))
			}
		})
	}
}

func TestPinEmpty(t *testing.T) {
	out := Pin(nil, map[string]int{"p1": 0}, nil, true)
	if len(out) != 0 {
		t.Fatalf("want empty output, got %v", out)
	}
}

func TestPinDownRankingGate(t *testing.T) {
	// p3 在底部（自底向上位置 1），目标位置 2 >= 1，视为降权
	in := products(3)
	out := Pin(in, map[string]int{"p3": 2}, nil, false)
	if out[2].Score != 1 {
		t.Errorf("gated pin applied: %v", out[2].Score)
	}
	out = Pin(in, map[string]int{"p3": 2}, nil, true)
	if out[2].Score != 0 {
		t.Errorf("allowed pin not applied: %v", out[2].Score)
	}
}

func TestPinTopAndBottomBounds(t *testing.T) {
	for n := 2; n <= 8; n++ {
		in := products(n)
		for i := range in {
			id := core.DefaultKey(in[i].Entity)

			top := Pin(in, map[string]int{id: 0}, nil, true)
			if top[i].Score <= in[0].Score {
				t.Errorf("n=%d %s: top pin %v not above %v", n, id, top[i].Score, in[0].Score)
			}

			bottom := Pin(in, map[string]int{id: n - 1}, nil, true)
			if bottom[i].Score >= in[n-1].Score {
				t.Errorf("n=%d %s: bottom pin %v not below %v", n, id, bottom[i].Score, in[n-1].Score)
			}
		}
	}
}

func TestPinBottomKeepsRelativeOrder(t *testing.T) {
	in := products(5)
	out := core.SortDesc(Pin(in, map[string]int{"p1": 4, "p2": 4}, nil, true))
	if got := keys(out)[3:]; fmt.Sprint(got) != "[p1 p2]" {
		t.Errorf("bottom pinned order = %v", got)
	}
}

func TestPinKeyFunc(t *testing.T) {
	in := products(3)
	byType := func(e core.Entity) string { return e.Identifier().String() }
	out := Pin(in, map[string]int{"product:p3": 0}, byType, false)
	if out[2].Score != 4 {
		t.Errorf("score = %v, want 4", out[2].Score)
	}
}

func TestPinLedgerCascade(t *testing.T) {
	tests := []struct {
		name  string
		moves [][2]float64 // {pos, score}
		want  map[int]float64
	}{
		{
			name:  "lower score pushes occupant up",
			moves: [][2]float64{{2, 5}, {2, 4}},
			want:  map[int]float64{1: 5, 2: 4},
		},
		{
			name:  "higher score pushes occupant down",
			moves: [][2]float64{{2, 4}, {2, 5}},
			want:  map[int]float64{2: 5, 3: 4},
		},
		{
			name:  "cascade continues in the same direction",
			moves: [][2]float64{{1, 9}, {2, 8}, {2, 7}},
			want:  map[int]float64{0: 9, 1: 8, 2: 7},
		},
		{
			name:  "direction is compared again at every step",
			moves: [][2]float64{{1, 9}, {2, 9}, {2, 8}},
			want:  map[int]float64{1: 9, 2: 8, 3: 9},
		},
		{
			name:  "cycling cascade stops and drops the displaced score",
			moves: [][2]float64{{1, 5}, {2, 9}, {2, 1}},
			want:  map[int]float64{1: 9, 2: 1},
		},
		{
			name:  "occupant pushed past the top is dropped",
			moves: [][2]float64{{0, 11}, {0, 10}},
			want:  map[int]float64{0: 10},
		},
		{
			name:  "occupant pushed past the bottom is dropped",
			moves: [][2]float64{{4, 1}, {4, 2}},
			want:  map[int]float64{4: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newPinLedger(5)
			for _, m := range tt.moves {
				l.place(int(m[0]), m[1])
			}
			if fmt.Sprint(l.scores) != fmt.Sprint(tt.want) {
				t.Errorf("ledger = %v, want %v", l.scores, tt.want)
			}
		})
	}
}

func TestCurrentPositionFromBottom(t *testing.T) {
	if currentPositionFromBottom(0, 6) != 6 || currentPositionFromBottom(5, 6) != 1 {
		t.Fatal("position is counted from the bottom, starting at 1")
	}
}
