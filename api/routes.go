/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference ai_docs/quality_rule_engine_req.md
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs api/controllers
 */

package api

import (
	"dataquality-service/api/controllers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// InitRoute 初始化所有API路由
func InitRoute(r *chi.Mux) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 健康检查
	healthController := controllers.NewHealthController()
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// 元数据管理
	r.Route("/meta", func(r chi.Router) {
		metaController := controllers.NewMetaController()
		r.Get("/rule-severities", metaController.GetRuleSeverities)
		r.Get("/rule-meta", metaController.GetRuleMeta)
	})

	// 数据集访问
	r.Route("/datasets", func(r chi.Router) {
		datasetController := controllers.NewDatasetController()
		r.Get("/", datasetController.ListTables)
		r.Get("/{table}/schema", datasetController.GetSchema)
		r.Get("/{table}/row-count", datasetController.GetRowCount)
		r.Get("/{table}/profile", datasetController.GetProfile)
	})

	// 数据质量管理
	r.Route("/quality", func(r chi.Router) {
		ruleController := controllers.NewRuleController()
		executionController := controllers.NewExecutionController()

		// 质量规则管理
		r.Route("/rules", func(r chi.Router) {
			r.Post("/", ruleController.CreateRule)
			r.Get("/", ruleController.ListRules)
			r.Get("/{id}", ruleController.GetRule)
			r.Put("/{id}", ruleController.UpdateRule)
			r.Delete("/{id}", ruleController.DeleteRule)

			// 激活生命周期
			r.Post("/{id}/activate", ruleController.ActivateRule)
			r.Post("/{id}/deactivate", ruleController.DeactivateRule)
			r.Get("/{id}/active-duration", ruleController.GetRuleActiveDuration)
		})

		// 质量检测执行
		r.Route("/checks", func(r chi.Router) {
			r.Post("/", executionController.RunAllChecks)
			r.Post("/{table}", executionController.RunCheck)
		})

		// 执行历史
		r.Route("/history", func(r chi.Router) {
			r.Get("/", executionController.GetHistory)
			r.Get("/{run_id}", executionController.GetRun)
			r.Get("/latest/{table}", executionController.GetLatestRun)
		})

		// 定时调度管理
		r.Route("/schedules", func(r chi.Router) {
			r.Post("/", executionController.ScheduleCheck)
			r.Get("/", executionController.ListSchedules)
			r.Delete("/{table}", executionController.UnscheduleCheck)
		})
	})
}
