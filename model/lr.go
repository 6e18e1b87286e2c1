package model

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/rushteam/bizrank/core"
)

// LRModel 实现了逻辑回归 (Logistic Regression) 打分。
//
// 预测原理：
// 1. 线性加权求和: z = Bias + sum(Weight_i * Feature_i)
// 2. Sigmoid 变换: P = 1 / (1 + exp(-z))
//
// 输出范围 (0, 1)，作为排序的初始分数。
type LRModel struct {
	Bias    float64            `json:"bias"`
	Weights map[string]float64 `json:"weights"`
}

// LoadLRModel 从 JSON 文件加载模型：{"bias": 0.1, "weights": {"ctr": 1.2}}。
func LoadLRModel(path string) (*LRModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeNotFound, "load lr model", err)
	}
	var m LRModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
			fmt.Sprintf("decode lr model %s", path), err)
	}
	return &m, nil
}

func (m *LRModel) Name() string { return "lr" }

// Predict 对单组特征打分。
func (m *LRModel) Predict(features map[string]float64) float64 {
	z := m.Bias
	for k, v := range features {
		if w, ok := m.Weights[k]; ok {
			z += w * v
		}
	}
	return 1 / (1 + math.Exp(-z))
}

func (m *LRModel) Score(_ context.Context, _ *core.RequestContext, entities []core.Entity) (map[string]float64, error) {
	scores := make(map[string]float64, len(entities))
	for _, e := range entities {
		if e == nil {
			continue
		}
		scores[core.DefaultKey(e)] = m.Predict(entityFeatures(e))
	}
	return scores, nil
}

var _ core.Scorer = (*LRModel)(nil)
