package rerank

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rushteam/bizrank/core"
	"github.com/rushteam/bizrank/pipeline"
	"github.com/rushteam/bizrank/pkg/dsl"
	"github.com/rushteam/bizrank/store"
)

func requestFor(query string) *core.RequestContext {
	rctx := core.NewRequestContext("req")
	rctx.Query = query
	return rctx
}

func TestConditionalNode(t *testing.T) {
	node := &ConditionalNode{
		Condition: dsl.MustCompile(`rctx.query == "candle"`),
		Stage:     &BoostNode{NodeName: "boost_candles", Keys: []string{"p3"}, Boost: 100},
	}
	if node.Name() != "boost_candles" || node.Kind() != pipeline.KindBoost {
		t.Fatalf("name/kind should come from the inner stage: %s/%s", node.Name(), node.Kind())
	}

	tests := []struct {
		query string
		want  float64
	}{
		{"candle", 105},
		{"soap", 5},
		{"", 5},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			out, err := node.Process(context.Background(), requestFor(tt.query), products(7))
			if err != nil {
				t.Fatal(err)
			}
			if out[2].Score != tt.want {
				t.Errorf("p3 = %v, want %v", out[2].Score, tt.want)
			}
		})
	}
}

func TestConditionalNodeErrors(t *testing.T) {
	node := &ConditionalNode{
		Condition: dsl.MustCompile(`rctx.params.scene == "search"`),
		Stage:     &BoostNode{Keys: []string{"p1"}, Boost: 1},
	}
	if _, err := node.Process(context.Background(), requestFor("x"), products(2)); err == nil {
		t.Fatal("missing param should fail the condition")
	}

	failing := &ConditionalNode{
		Stage: &pipeline.StageFunc{StageName: "broken", Fn: func(context.Context, *core.RequestContext, []core.ScoredCandidate) ([]core.ScoredCandidate, error) {
			return nil, errors.New("boom")
		}},
	}
	if _, err := failing.Process(context.Background(), nil, products(2)); err == nil || err.Error() != "boom" {
		t.Fatalf("inner error should pass through, got %v", err)
	}
}

func TestConditionalNodeWithoutCondition(t *testing.T) {
	node := &ConditionalNode{Stage: &BoostNode{Keys: []string{"p2"}, Boost: 10}}
	out, err := node.Process(context.Background(), nil, products(3))
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(scores(out)) != "[3 12 1]" {
		t.Errorf("scores = %v, want [3 12 1]", scores(out))
	}

	passthrough := &ConditionalNode{Condition: dsl.MustCompile("true")}
	out, err = passthrough.Process(context.Background(), nil, products(2))
	if err != nil || fmt.Sprint(scores(out)) != "[2 1]" {
		t.Errorf("nil stage: scores = %v, err = %v", scores(out), err)
	}
}

func TestRuleBoostNode(t *testing.T) {
	cands := products(4)
	cands[1].Entity.(*core.BasicEntity).Meta["brand"] = "acme"
	cands[3].Entity.(*core.BasicEntity).Meta["brand"] = "acme"

	node := &RuleBoostNode{
		Rule:           dsl.MustCompile(`"brand" in entity.meta && entity.meta.brand == "acme" && entity.score > 1.0`),
		Boost:          10,
		Multiplicative: true,
	}
	if node.Kind() != pipeline.KindRule {
		t.Fatalf("kind = %s", node.Kind())
	}
	out, err := node.Process(context.Background(), requestFor(""), cands)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(scores(out)) != "[4 30 2 1]" {
		t.Errorf("scores = %v", scores(out))
	}
}

func TestLookupBoostNode(t *testing.T) {
	csv := "product_id, query, boost\np3,candle,100\np5,candle,-2\np3,soap,7\np3,candle,50\n"
	table, err := LoadBoostTableCSV(strings.NewReader(csv), []string{"product_id", "query"}, "boost")
	if err != nil {
		t.Fatalf("LoadBoostTableCSV: %v", err)
	}
	if len(table) != 3 || table["p3:candle"] != 50 {
		t.Fatalf("unexpected table %v", table)
	}

	node := &LookupBoostNode{Table: table}
	out, err := node.Process(context.Background(), requestFor("candle"), products(5))
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(scores(out)) != "[5 4 53 2 -1]" {
		t.Errorf("scores = %v", scores(out))
	}
}

func TestLoadBoostTableCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		keys []string
	}{
		{"missing key column", "id,boost\n1,2\n", []string{"product_id"}},
		{"missing boost column", "product_id,score\n1,2\n", []string{"product_id"}},
		{"bad boost", "product_id,boost\n1,abc\n", []string{"product_id"}},
		{"no key columns", "product_id,boost\n1,2\n", nil},
		{"empty input", "", []string{"product_id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadBoostTableCSV(strings.NewReader(tt.csv), tt.keys, "boost"); err == nil {
				t.Fatal("want error")
			}
		})
	}
}

func TestStorePinNode(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	_ = kv.HSet(ctx, "pins:candle", "p4", []byte("0"))
	_ = kv.HSet(ctx, "pins:candle", "p2", []byte("oops"))
	_ = kv.HSet(ctx, "pins:home", "p5", []byte("0"))

	t.Run("query scope with prefetch", func(t *testing.T) {
		node := &StorePinNode{Store: kv}
		rctx := requestFor(" Candle")
		if err := node.Prefetch(ctx, rctx); err != nil {
			t.Fatal(err)
		}
		// 预取后规则变更不影响本次请求
		_ = kv.HSet(ctx, "pins:candle", "p5", []byte("0"))
		defer kv.Delete(ctx, "pins:candle")

		out, err := node.Process(ctx, rctx, products(5))
		if err != nil {
			t.Fatal(err)
		}
		if fmt.Sprint(scores(out)) != "[5 4 3 7 1]" {
			t.Errorf("scores = %v", scores(out))
		}
	})

	t.Run("fixed scope without prefetch", func(t *testing.T) {
		node := &StorePinNode{Store: kv, Scope: "home"}
		out, err := node.Process(ctx, requestFor("candle"), products(5))
		if err != nil {
			t.Fatal(err)
		}
		if out[4].Score != 6 {
			t.Errorf("p5 = %v, want 6", out[4].Score)
		}
	})

	t.Run("no rules", func(t *testing.T) {
		node := &StorePinNode{Store: kv}
		out, err := node.Process(ctx, requestFor("soap"), products(3))
		if err != nil {
			t.Fatal(err)
		}
		if fmt.Sprint(scores(out)) != "[3 2 1]" {
			t.Errorf("scores = %v", scores(out))
		}
	})

	t.Run("unnamed stages with different scopes in one request", func(t *testing.T) {
		kv := store.NewMemoryStore()
		_ = kv.HSet(ctx, "pins:global", "p3", []byte("0"))
		_ = kv.HSet(ctx, "pins:candle", "p2", []byte("0"))
		global := &StorePinNode{Store: kv, Scope: "global"}
		byQuery := &StorePinNode{Store: kv}

		rctx := requestFor("candle")
		for _, node := range []*StorePinNode{global, byQuery} {
			if err := node.Prefetch(ctx, rctx); err != nil {
				t.Fatal(err)
			}
		}

		out, err := global.Process(ctx, rctx, products(3))
		if err != nil {
			t.Fatal(err)
		}
		if fmt.Sprint(scores(out)) != "[3 2 4]" {
			t.Errorf("global scores = %v, want [3 2 4]", scores(out))
		}
		out, err = byQuery.Process(ctx, rctx, products(3))
		if err != nil {
			t.Fatal(err)
		}
		if fmt.Sprint(scores(out)) != "[3 5 1]" {
			t.Errorf("query scores = %v, want [3 5 1]", scores(out))
		}
	})

	t.Run("store failure", func(t *testing.T) {
		node := &StorePinNode{Store: failingStore{kv}}
		_, err := node.Process(ctx, requestFor("candle"), products(3))
		if !core.IsUnavailable(err) {
			t.Fatalf("want UNAVAILABLE, got %v", err)
		}
	})
}

type failingStore struct {
	core.KeyValueStore
}

func (failingStore) HGetAll(context.Context, string) (map[string][]byte, error) {
	return nil, errors.New("connection refused")
}
