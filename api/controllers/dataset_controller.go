/*
 * @module api/controllers/dataset_controller
 * @description 数据集访问控制器，提供被检测表的列表与结构查询
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/quality_rule_engine_req.md 第6节
 * @stateFlow HTTP请求 -> 数据集访问器查询 -> 统一响应
 * @rules 数据集只读，接口不提供任何写入能力
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/dataset/gorm_accessor.go
 */

package controllers

import (
	"errors"
	"net/http"

	"dataquality-service/service"
	"dataquality-service/service/dataset"
	"dataquality-service/service/quality"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// DatasetController 数据集访问控制器
type DatasetController struct{}

// NewDatasetController 创建数据集控制器实例
func NewDatasetController() *DatasetController {
	return &DatasetController{}
}

// ListTables 获取数据库中的表列表
// @Summary 获取表列表
// @Tags 数据集
// @Produce json
// @Success 200 {object} APIResponse{data=[]string}
// @Failure 500 {object} APIResponse
// @Router /datasets [get]
func (c *DatasetController) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := service.GlobalDatasetAccessor.TableNames(r.Context())
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取表列表失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取表列表成功", tables))
}

// GetSchema 获取表结构
// @Summary 获取表结构
// @Tags 数据集
// @Produce json
// @Param table path string true "表名"
// @Success 200 {object} APIResponse{data=[]dataset.ColumnSchema}
// @Failure 404 {object} APIResponse
// @Router /datasets/{table}/schema [get]
func (c *DatasetController) GetSchema(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	columns, err := service.GlobalDatasetAccessor.Schema(r.Context(), table)
	if errors.Is(err, dataset.ErrTableNotFound) {
		render.JSON(w, r, NotFoundResponse("表不存在"))
		return
	}
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取表结构失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取表结构成功", columns))
}

// GetRowCount 获取表行数
// @Summary 获取表行数
// @Tags 数据集
// @Produce json
// @Param table path string true "表名"
// @Success 200 {object} APIResponse{data=map[string]interface{}}
// @Failure 404 {object} APIResponse
// @Router /datasets/{table}/row-count [get]
func (c *DatasetController) GetRowCount(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	count, err := service.GlobalDatasetAccessor.RowCount(r.Context(), table)
	if errors.Is(err, dataset.ErrTableNotFound) {
		render.JSON(w, r, NotFoundResponse("表不存在"))
		return
	}
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取表行数失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取表行数成功", map[string]interface{}{
		"table":     table,
		"row_count": count,
	}))
}

// GetProfile 获取表的列画像统计
// @Summary 获取列画像统计
// @Description 返回每列的空值数、基数，数值列附带最小值、最大值与均值
// @Tags 数据集
// @Produce json
// @Param table path string true "表名"
// @Success 200 {object} APIResponse{data=models.JSONB}
// @Failure 404 {object} APIResponse
// @Router /datasets/{table}/profile [get]
func (c *DatasetController) GetProfile(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	ds, err := service.GlobalDatasetAccessor.Fetch(r.Context(), table)
	if errors.Is(err, dataset.ErrTableNotFound) {
		render.JSON(w, r, NotFoundResponse("表不存在"))
		return
	}
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取列画像失败", err))
		return
	}

	profile := quality.NewMetricsCalculator().Profile(ds)
	render.JSON(w, r, SuccessResponse("获取列画像成功", profile))
}
