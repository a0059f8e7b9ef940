package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/agency-case-api/internal/handler"
	"github.com/noah-isme/agency-case-api/internal/middleware"
	"github.com/noah-isme/agency-case-api/internal/models"
	"github.com/noah-isme/agency-case-api/pkg/config"
)

func registerRoutes(r *gin.Engine, cfg *config.Config, a *app, db *sqlx.DB) {
	metricsHandler := handler.NewMetricsHandler(a.metrics)
	r.Use(middleware.Metrics(a.metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	cases := handler.NewCaseHandler(a.cases)
	snapshots := handler.NewSnapshotHandler(a.snapshots)
	ledger := handler.NewLedgerHandler(a.ledger)
	payouts := handler.NewPayoutHandler(a.payouts)
	audit := handler.NewAuditHandler(a.audit)
	policy := handler.NewPolicyHandler(a.policy)

	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleLawyer)
	earners := middleware.RequireRoles(models.RoleLawyer, models.RoleInfluencer, models.RoleStudent)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(a.tokens))

	caseGroup := api.Group("/cases")
	caseGroup.POST("/convert", staff, cases.Convert)
	caseGroup.GET("", staff, cases.List)
	caseGroup.GET("/:id", staff, cases.Get)
	caseGroup.POST("/:id/transition", staff, cases.Transition)
	caseGroup.POST("/:id/advance", staff, cases.Advance)
	caseGroup.POST("/:id/assign", admin, cases.Assign)
	caseGroup.POST("/:id/fees", staff, cases.RecordFees)
	caseGroup.POST("/:id/correct", admin, cases.CorrectMoney)
	caseGroup.DELETE("/:id", admin, cases.Delete)
	caseGroup.POST("/:id/services", staff, snapshots.Attach)
	caseGroup.GET("/:id/services", staff, snapshots.List)
	caseGroup.POST("/:id/services/:snapshotId/pay", admin, snapshots.MarkPaid)
	caseGroup.GET("/:id/ledger", admin, ledger.CaseLedger)

	ledgerGroup := api.Group("/ledger", admin)
	ledgerGroup.GET("/summary", ledger.Summary)
	ledgerGroup.GET("/export", ledger.Export)

	api.GET("/rewards", earners, payouts.Rewards)

	payoutGroup := api.Group("/payouts")
	payoutGroup.POST("", earners, payouts.Create)
	payoutGroup.GET("", payouts.List)
	payoutGroup.GET("/:id", payouts.Get)
	payoutGroup.POST("/:id/approve", admin, payouts.Approve)
	payoutGroup.POST("/:id/reject", admin, payouts.Reject)
	payoutGroup.POST("/:id/pay", admin, payouts.MarkPaid)
	payoutGroup.POST("/bulk/approve", admin, payouts.BulkApprove)
	payoutGroup.POST("/bulk/reject", admin, payouts.BulkReject)

	api.GET("/audit-logs", admin, audit.List)

	policyGroup := api.Group("/policy", admin)
	policyGroup.GET("", policy.List)
	policyGroup.POST("/refresh", policy.Refresh)
	policyGroup.GET("/:key", policy.Get)
	policyGroup.PUT("/:key", policy.Update)
}
