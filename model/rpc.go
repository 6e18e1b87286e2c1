package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rushteam/bizrank/core"
)

// RPCModel 通过 HTTP 调用外部模型服务打分（GBDT、XGBoost、TF Serving 网关等）。
//
// 请求格式（JSON）：
//
//	{"features_list": [{"ctr": 0.15, "cvr": 0.08, ...}, ...]}
//
// 响应格式（JSON）：
//
//	{"scores": [0.85, 0.72, ...]}
type RPCModel struct {
	name     string
	Endpoint string
	Client   *http.Client
}

func NewRPCModel(name, endpoint string, timeout time.Duration) *RPCModel {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &RPCModel{
		name:     name,
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: timeout},
	}
}

func (m *RPCModel) Name() string {
	if m.name == "" {
		return "rpc"
	}
	return m.name
}

func (m *RPCModel) Score(ctx context.Context, _ *core.RequestContext, entities []core.Entity) (map[string]float64, error) {
	ids := make([]string, 0, len(entities))
	featuresList := make([]map[string]float64, 0, len(entities))
	for _, e := range entities {
		if e == nil {
			continue
		}
		ids = append(ids, core.DefaultKey(e))
		featuresList = append(featuresList, entityFeatures(e))
	}
	if len(featuresList) == 0 {
		return map[string]float64{}, nil
	}

	scores, err := m.predictBatch(ctx, featuresList)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeUnavailable, "rpc model "+m.Name(), err)
	}
	out := make(map[string]float64, len(ids))
	for i, id := range ids {
		out[id] = scores[i]
	}
	return out, nil
}

func (m *RPCModel) predictBatch(ctx context.Context, featuresList []map[string]float64) ([]float64, error) {
	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}

	body, err := json.Marshal(map[string]any{"features_list": featuresList})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("rpc error: status=%d, body=%s", resp.StatusCode, string(msg))
	}

	var result struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Scores) != len(featuresList) {
		return nil, fmt.Errorf("response scores count mismatch: expected %d, got %d", len(featuresList), len(result.Scores))
	}
	return result.Scores, nil
}

var _ core.Scorer = (*RPCModel)(nil)
