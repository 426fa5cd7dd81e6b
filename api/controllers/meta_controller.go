package controllers

import (
	"net/http"

	"dataquality-service/service/meta"

	"github.com/go-chi/render"
)

type MetaController struct {
}

func NewMetaController() *MetaController {
	return &MetaController{}
}

// @Summary 获取规则严重级别元数据
// @Description 获取所有规则严重级别元数据
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse{data=[]meta.RuleSeverity}
// @Failure 500 {object} APIResponse
// @Router /meta/rule-severities [get]
func (c *MetaController) GetRuleSeverities(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, SuccessResponse("获取规则严重级别元数据成功", meta.RuleSeverities))
}

// @Summary 获取规则作用域元数据
// @Description 获取规则作用域与质量评分权重元数据
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse{data=map[string]interface{}}
// @Failure 500 {object} APIResponse
// @Router /meta/rule-meta [get]
func (c *MetaController) GetRuleMeta(w http.ResponseWriter, r *http.Request) {
	ruleMeta := map[string]interface{}{
		"scopes": []string{meta.ScopeTable, meta.ScopeColumn},
		"score_weights": map[string]float64{
			"completeness": meta.WeightCompleteness,
			"uniqueness":   meta.WeightUniqueness,
			"validity":     meta.WeightValidity,
		},
		"history_retention": meta.DefaultHistoryRetention,
	}
	render.JSON(w, r, SuccessResponse("获取规则元数据成功", ruleMeta))
}
