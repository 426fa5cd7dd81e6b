/*
 * @module api/controllers/rule_controller
 * @description 质量规则管理控制器，提供规则的增删改查和激活生命周期操作
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/quality_rule_engine_req.md 第4.1节
 * @stateFlow HTTP请求 -> 参数校验 -> 规则仓库操作 -> 统一响应
 * @rules 创建和更新前先校验规则代码语法；激活操作幂等
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/rule_repo/repository.go
 */

package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"dataquality-service/service"
	"dataquality-service/service/models"
	"dataquality-service/service/rule_repo"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// RuleController 质量规则管理控制器
type RuleController struct{}

// NewRuleController 创建规则控制器实例
func NewRuleController() *RuleController {
	return &RuleController{}
}

// ListRules 获取规则列表
// @Summary 获取质量规则列表
// @Description 获取全部质量规则，active=true 时仅返回激活规则
// @Tags 质量规则
// @Produce json
// @Param active query bool false "仅返回激活规则"
// @Success 200 {object} APIResponse{data=[]models.QualityRule}
// @Failure 500 {object} APIResponse
// @Router /quality/rules [get]
func (c *RuleController) ListRules(w http.ResponseWriter, r *http.Request) {
	var rules []models.QualityRule
	var err error

	if r.URL.Query().Get("active") == "true" {
		rules, err = service.GlobalRuleRepository.LoadActiveRules(r.Context())
	} else {
		rules, err = service.GlobalRuleRepository.LoadRules(r.Context())
	}
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取规则列表失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取规则列表成功", rules))
}

// GetRule 获取单条规则
// @Summary 获取质量规则详情
// @Tags 质量规则
// @Produce json
// @Param id path string true "规则ID"
// @Success 200 {object} APIResponse{data=models.QualityRule}
// @Failure 404 {object} APIResponse
// @Router /quality/rules/{id} [get]
func (c *RuleController) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	rule, err := service.GlobalRuleRepository.GetRule(r.Context(), ruleID)
	if errors.Is(err, rule_repo.ErrRuleNotFound) {
		render.JSON(w, r, NotFoundResponse("规则不存在"))
		return
	}
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取规则失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取规则成功", rule))
}

// CreateRule 创建规则
// @Summary 创建质量规则
// @Description 创建新的质量规则，规则代码会先做语法校验
// @Tags 质量规则
// @Accept json
// @Produce json
// @Param rule body models.QualityRule true "规则定义"
// @Success 200 {object} APIResponse{data=models.QualityRule}
// @Failure 400 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /quality/rules [post]
func (c *RuleController) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rule models.QualityRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		render.JSON(w, r, BadRequestResponse("请求体解析失败", err))
		return
	}

	if rule.Expression == "" {
		render.JSON(w, r, BadRequestResponse("规则代码不能为空", nil))
		return
	}
	if err := service.GlobalQualityEngine.Evaluator().Validate(rule.Expression); err != nil {
		render.JSON(w, r, BadRequestResponse("规则代码语法错误", err))
		return
	}

	if err := service.GlobalRuleRepository.CreateRule(r.Context(), &rule); err != nil {
		render.JSON(w, r, InternalErrorResponse("创建规则失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("创建规则成功", rule))
}

// UpdateRule 更新规则
// @Summary 更新质量规则
// @Description 更新规则定义，激活状态和激活历史保持不变
// @Tags 质量规则
// @Accept json
// @Produce json
// @Param id path string true "规则ID"
// @Param rule body models.QualityRule true "规则定义"
// @Success 200 {object} APIResponse{data=models.QualityRule}
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /quality/rules/{id} [put]
func (c *RuleController) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	var rule models.QualityRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		render.JSON(w, r, BadRequestResponse("请求体解析失败", err))
		return
	}
	rule.ID = ruleID

	if rule.Expression != "" {
		if err := service.GlobalQualityEngine.Evaluator().Validate(rule.Expression); err != nil {
			render.JSON(w, r, BadRequestResponse("规则代码语法错误", err))
			return
		}
	}

	err := service.GlobalRuleRepository.UpdateRule(r.Context(), &rule)
	if errors.Is(err, rule_repo.ErrRuleNotFound) {
		render.JSON(w, r, NotFoundResponse("规则不存在"))
		return
	}
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("更新规则失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("更新规则成功", rule))
}

// DeleteRule 删除规则
// @Summary 删除质量规则
// @Tags 质量规则
// @Produce json
// @Param id path string true "规则ID"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /quality/rules/{id} [delete]
func (c *RuleController) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	err := service.GlobalRuleRepository.DeleteRule(r.Context(), ruleID)
	if errors.Is(err, rule_repo.ErrRuleNotFound) {
		render.JSON(w, r, NotFoundResponse("规则不存在"))
		return
	}
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("删除规则失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("删除规则成功", nil))
}

// ActivateRule 激活规则
// @Summary 激活质量规则
// @Description 激活规则并记录激活时间，对已激活规则幂等
// @Tags 质量规则
// @Produce json
// @Param id path string true "规则ID"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /quality/rules/{id}/activate [post]
func (c *RuleController) ActivateRule(w http.ResponseWriter, r *http.Request) {
	c.setActive(w, r, true)
}

// DeactivateRule 停用规则
// @Summary 停用质量规则
// @Description 停用规则并关闭当前激活区间，对已停用规则幂等
// @Tags 质量规则
// @Produce json
// @Param id path string true "规则ID"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /quality/rules/{id}/deactivate [post]
func (c *RuleController) DeactivateRule(w http.ResponseWriter, r *http.Request) {
	c.setActive(w, r, false)
}

func (c *RuleController) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	ruleID := chi.URLParam(r, "id")

	err := service.GlobalRuleRepository.SetActive(r.Context(), ruleID, active, time.Now())
	if errors.Is(err, rule_repo.ErrRuleNotFound) {
		render.JSON(w, r, NotFoundResponse("规则不存在"))
		return
	}
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("规则状态变更失败", err))
		return
	}

	msg := "规则已停用"
	if active {
		msg = "规则已激活"
	}
	render.JSON(w, r, SuccessResponse(msg, nil))
}

// GetRuleActiveDuration 获取规则累计激活时长
// @Summary 获取规则累计激活时长
// @Tags 质量规则
// @Produce json
// @Param id path string true "规则ID"
// @Success 200 {object} APIResponse{data=map[string]interface{}}
// @Failure 404 {object} APIResponse
// @Router /quality/rules/{id}/active-duration [get]
func (c *RuleController) GetRuleActiveDuration(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	rule, err := service.GlobalRuleRepository.GetRule(r.Context(), ruleID)
	if errors.Is(err, rule_repo.ErrRuleNotFound) {
		render.JSON(w, r, NotFoundResponse("规则不存在"))
		return
	}
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取规则失败", err))
		return
	}

	duration := rule_repo.TotalActiveDuration(rule, time.Now())
	render.JSON(w, r, SuccessResponse("获取累计激活时长成功", map[string]interface{}{
		"rule_id":          rule.ID,
		"active":           rule.Active,
		"total_duration":   duration.String(),
		"total_duration_s": duration.Seconds(),
	}))
}
