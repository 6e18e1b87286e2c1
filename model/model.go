// Package model 提供 core.Scorer 的实现：本地 LR 模型与远程 HTTP 模型服务。
package model

import (
	"github.com/rushteam/bizrank/core"
)

// entityFeatures 取出实体的特征；非 BasicEntity 返回空特征。
func entityFeatures(e core.Entity) map[string]float64 {
	if be, ok := e.(*core.BasicEntity); ok && be.Features != nil {
		return be.Features
	}
	return map[string]float64{}
}
