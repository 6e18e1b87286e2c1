package config

import (
	"context"
	"strings"
	"testing"

	"github.com/rushteam/bizrank/core"
	"github.com/rushteam/bizrank/pipeline"
)

func noopBuilder(name string, _ map[string]any) (pipeline.Stage, error) {
	return &pipeline.StageFunc{
		StageName: name,
		Fn: func(_ context.Context, _ *core.RequestContext, c []core.ScoredCandidate) ([]core.ScoredCandidate, error) {
			return c, nil
		},
	}, nil
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register("noop", noopBuilder)
	reg.Register("", noopBuilder)
	reg.Register("nil", nil)

	if got := reg.SupportedTypes(); len(got) != 1 || got[0] != "noop" {
		t.Fatalf("SupportedTypes = %v", got)
	}
	if !reg.Factory().Has("noop") {
		t.Fatal("factory missing noop")
	}

	cfg := &pipeline.Config{}
	cfg.Pipeline.Name = "p"
	cfg.Pipeline.Stages = []pipeline.StageConfig{{Type: "noop"}, {Type: "noop", Name: "second"}}
	p, err := reg.BuildPipeline(cfg)
	if err != nil {
		t.Fatalf("BuildPipeline: %v", err)
	}
	if p.Stages[0].Name() != "noop" || p.Stages[1].Name() != "second" {
		t.Errorf("unexpected stage names %s, %s", p.Stages[0].Name(), p.Stages[1].Name())
	}
}

func TestRegistryValidate(t *testing.T) {
	reg := NewRegistry()
	reg.Register("noop", noopBuilder)

	tests := []struct {
		name    string
		stages  []pipeline.StageConfig
		wantErr string
	}{
		{"ok", []pipeline.StageConfig{{Type: "noop"}}, ""},
		{"unknown", []pipeline.StageConfig{{Type: "noop"}, {Type: "boost"}}, `stage #1: unsupported stage type "boost" (supported: [noop])`},
		{"missing type", []pipeline.StageConfig{{Name: "x"}}, "missing type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &pipeline.Config{}
			cfg.Pipeline.Stages = tt.stages
			err := reg.Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("want %q, got %v", tt.wantErr, err)
			}
		})
	}
	if err := reg.Validate(nil); err != nil {
		t.Errorf("nil config: %v", err)
	}
}
