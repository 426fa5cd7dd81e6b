/*
 * @module api/controllers/execution_controller
 * @description 质量检测执行控制器，提供检测触发、历史查询和定时调度管理
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/quality_rule_engine_req.md 第4.4节
 * @stateFlow HTTP请求 -> 引擎执行/历史查询 -> 统一响应
 * @rules 检测执行是同步接口，执行记录已落库后才返回
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/quality/engine.go, service/history/history_store.go
 */

package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"dataquality-service/service"
	"dataquality-service/service/dataset"
	"dataquality-service/service/history"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// ExecutionController 质量检测执行控制器
type ExecutionController struct{}

// NewExecutionController 创建执行控制器实例
func NewExecutionController() *ExecutionController {
	return &ExecutionController{}
}

// RunCheck 触发单表质量检测
// @Summary 执行质量检测
// @Description 对指定表同步执行一轮完整的质量检测，返回已落库的执行记录
// @Tags 质量检测
// @Produce json
// @Param table path string true "表名"
// @Success 200 {object} APIResponse{data=models.ExecutionRun}
// @Failure 404 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /quality/checks/{table} [post]
func (c *ExecutionController) RunCheck(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	run, err := service.GlobalQualityEngine.Run(r.Context(), table)
	if errors.Is(err, dataset.ErrTableNotFound) {
		render.JSON(w, r, NotFoundResponse("表不存在"))
		return
	}
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("质量检测执行失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("质量检测执行成功", run))
}

// RunAllChecks 触发全库质量检测
// @Summary 执行全库质量检测
// @Description 对数据库中所有表各执行一轮检测，单表失败不中断其余表
// @Tags 质量检测
// @Produce json
// @Success 200 {object} APIResponse{data=[]models.ExecutionRun}
// @Failure 500 {object} APIResponse
// @Router /quality/checks [post]
func (c *ExecutionController) RunAllChecks(w http.ResponseWriter, r *http.Request) {
	runs, err := service.GlobalQualityEngine.RunAll(r.Context())
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("全库质量检测失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("全库质量检测完成", runs))
}

// GetHistory 查询执行历史
// @Summary 查询执行历史
// @Description 按时间倒序返回执行历史，可按表名过滤和限制条数
// @Tags 质量检测
// @Produce json
// @Param table query string false "表名过滤"
// @Param limit query int false "返回条数上限"
// @Success 200 {object} APIResponse{data=[]models.ExecutionRun}
// @Failure 500 {object} APIResponse
// @Router /quality/history [get]
func (c *ExecutionController) GetHistory(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			render.JSON(w, r, BadRequestResponse("limit参数非法", err))
			return
		}
		limit = parsed
	}

	runs, err := service.GlobalHistoryStore.Query(r.Context(), table, limit)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("查询执行历史失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("查询执行历史成功", runs))
}

// GetRun 获取单条执行记录
// @Summary 获取执行记录详情
// @Tags 质量检测
// @Produce json
// @Param run_id path string true "执行记录ID"
// @Success 200 {object} APIResponse{data=models.ExecutionRun}
// @Failure 404 {object} APIResponse
// @Router /quality/history/{run_id} [get]
func (c *ExecutionController) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")

	run, err := service.GlobalHistoryStore.Get(r.Context(), runID)
	if errors.Is(err, history.ErrRunNotFound) {
		render.JSON(w, r, NotFoundResponse("执行记录不存在"))
		return
	}
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取执行记录失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取执行记录成功", run))
}

// GetLatestRun 获取表最近一次执行记录
// @Summary 获取表最近一次执行记录
// @Tags 质量检测
// @Produce json
// @Param table path string true "表名"
// @Success 200 {object} APIResponse{data=models.ExecutionRun}
// @Failure 404 {object} APIResponse
// @Router /quality/history/latest/{table} [get]
func (c *ExecutionController) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	run, err := service.GlobalHistoryStore.Latest(r.Context(), table)
	if errors.Is(err, history.ErrRunNotFound) {
		render.JSON(w, r, NotFoundResponse("该表暂无执行记录"))
		return
	}
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取执行记录失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取最近执行记录成功", run))
}

// ScheduleRequest 定时调度注册请求
type ScheduleRequest struct {
	Table string `json:"table"`
	Cron  string `json:"cron" example:"0 0 2 * * *"`
}

// ScheduleCheck 注册表定时检测
// @Summary 注册定时检测调度
// @Description 为指定表注册cron定时检测，重复注册时替换原有调度
// @Tags 质量检测
// @Accept json
// @Produce json
// @Param schedule body ScheduleRequest true "调度配置"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Router /quality/schedules [post]
func (c *ExecutionController) ScheduleCheck(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求体解析失败", err))
		return
	}
	if req.Table == "" || req.Cron == "" {
		render.JSON(w, r, BadRequestResponse("table和cron不能为空", nil))
		return
	}

	if err := service.GlobalQualityScheduler.Schedule(req.Table, req.Cron); err != nil {
		render.JSON(w, r, BadRequestResponse("注册调度失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("注册调度成功", nil))
}

// UnscheduleCheck 取消表定时检测
// @Summary 取消定时检测调度
// @Tags 质量检测
// @Produce json
// @Param table path string true "表名"
// @Success 200 {object} APIResponse
// @Router /quality/schedules/{table} [delete]
func (c *ExecutionController) UnscheduleCheck(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	service.GlobalQualityScheduler.Unschedule(table)
	render.JSON(w, r, SuccessResponse("取消调度成功", nil))
}

// ListSchedules 获取已注册调度的表
// @Summary 获取定时检测调度列表
// @Tags 质量检测
// @Produce json
// @Success 200 {object} APIResponse{data=[]string}
// @Router /quality/schedules [get]
func (c *ExecutionController) ListSchedules(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, SuccessResponse("获取调度列表成功", service.GlobalQualityScheduler.ScheduledTables()))
}
