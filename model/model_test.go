package model

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rushteam/bizrank/core"
)

func TestLRModelScore(t *testing.T) {
	m := &LRModel{Bias: 0, Weights: map[string]float64{"ctr": 2}}
	a := core.NewEntity("a", "product")
	a.Features["ctr"] = 1
	b := core.NewEntity("b", "product")

	scores, err := m.Score(context.Background(), nil, []core.Entity{a, b})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	want := 1 / (1 + math.Exp(-2))
	if math.Abs(scores["a"]-want) > 1e-9 {
		t.Errorf("a = %v, want %v", scores["a"], want)
	}
	if scores["b"] != 0.5 {
		t.Errorf("b = %v, want 0.5", scores["b"])
	}
}

func TestLoadLRModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lr.json")
	if err := os.WriteFile(path, []byte(`{"bias":0.5,"weights":{"ctr":1.5}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadLRModel(path)
	if err != nil {
		t.Fatalf("LoadLRModel: %v", err)
	}
	if m.Bias != 0.5 || m.Weights["ctr"] != 1.5 {
		t.Errorf("unexpected model %+v", m)
	}

	if _, err := LoadLRModel(filepath.Join(t.TempDir(), "missing.json")); !core.IsNotFound(err) {
		t.Errorf("missing file: want NOT_FOUND, got %v", err)
	}
}

func TestRPCModelScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			FeaturesList []map[string]float64 `json:"features_list"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		scores := make([]float64, len(req.FeaturesList))
		for i, f := range req.FeaturesList {
			scores[i] = f["ctr"] * 10
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"scores": scores})
	}))
	defer srv.Close()

	a := core.NewEntity("a", "")
	a.Features["ctr"] = 0.3
	b := core.NewEntity("b", "")
	b.Features["ctr"] = 0.1

	m := NewRPCModel("xgb", srv.URL, 0)
	scores, err := m.Score(context.Background(), nil, []core.Entity{a, b})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if math.Abs(scores["a"]-3) > 1e-9 || math.Abs(scores["b"]-1) > 1e-9 {
		t.Errorf("unexpected scores %v", scores)
	}
}

func TestRPCModelServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := NewRPCModel("xgb", srv.URL, 0)
	_, err := m.Score(context.Background(), nil, []core.Entity{core.NewEntity("a", "")})
	if !core.IsUnavailable(err) {
		t.Fatalf("want UNAVAILABLE, got %v", err)
	}
}
