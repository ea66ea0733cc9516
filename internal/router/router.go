package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/auth"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/budget"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/config"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/database"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/handler"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/ledger"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/middleware"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/receipt"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/report"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/util"
)

// Deps are the collaborators the routes are wired to. main builds them once.
type Deps struct {
	DB       *gorm.DB
	Log      zerolog.Logger
	Verifier auth.Verifier
	Issuer   *auth.Issuer
	Hasher   auth.Hasher
	Engine   *ledger.Engine
	Budgets  *budget.Service
	Reports  *report.Service
	Receipts *receipt.Service
}

// SetupRouter configures the gin engine and the /api route table.
func SetupRouter(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(d.Log), middleware.Recovery())
	r.MaxMultipartMemory = int64(cfg.Receipt.MaxUploadMB) << 20

	r.NoRoute(func(c *gin.Context) {
		util.Error(c, apperr.NotFound("route not found"))
	})

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if err := database.Ping(c.Request.Context(), d.DB); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"success": code == http.StatusOK, "data": gin.H{"status": status}})
	})

	pageSize := cfg.App.PageSize

	authHandler := handler.NewAuthHandler(d.DB, d.Hasher, d.Issuer, d.Log)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(
		middleware.AuthMiddleware(d.Verifier),
		middleware.AuditMiddleware(d.DB, cfg.Security.EncryptionKey),
	)

	profile := handler.NewProfileHandler(d.DB, d.Hasher)
	protected.GET("/me", profile.Me)
	protected.POST("/profile", profile.UpdateProfile)
	protected.POST("/profile/password", profile.ChangePassword)
	protected.POST("/profile/deactivate", profile.Deactivate)

	accounts := handler.NewAccountHandler(d.Engine)
	protected.GET("/account-types", accounts.ListTypes)
	protected.GET("/accounts", accounts.List)
	protected.POST("/accounts", accounts.Create)
	protected.GET("/accounts/:id", accounts.Get)
	protected.DELETE("/accounts/:id", accounts.Delete)
	protected.POST("/accounts/:id/deactivate", accounts.Deactivate)
	protected.GET("/accounts/:id/running-balance", accounts.RunningBalance)

	categories := handler.NewCategoryHandler(d.DB)
	protected.GET("/categories", categories.List)
	protected.POST("/categories", categories.Create)

	transactions := handler.NewTransactionHandler(d.Engine, pageSize)
	protected.GET("/transactions", transactions.List)
	protected.POST("/transactions", transactions.Create)
	protected.GET("/transactions/:id", transactions.Get)

	transfers := handler.NewTransferHandler(d.Engine, pageSize)
	protected.GET("/transfers", transfers.List)
	protected.POST("/transfers", transfers.Create)
	protected.GET("/transfers/:id", transfers.Get)

	budgets := handler.NewBudgetHandler(d.Budgets)
	protected.GET("/budgets", budgets.List)
	protected.POST("/budgets", budgets.Create)
	protected.GET("/budgets/:id", budgets.Get)
	protected.DELETE("/budgets/:id", budgets.Delete)
	protected.POST("/budgets/:id/deactivate", budgets.Deactivate)
	protected.GET("/budgets/:id/analytics", budgets.Analytics)

	reports := handler.NewReportHandler(d.Reports)
	protected.GET("/reports/summary", reports.Summary)
	protected.GET("/reports/monthly", reports.Monthly)
	protected.GET("/reports/categories", reports.Categories)
	protected.GET("/reports/health", reports.Health)

	if d.Receipts != nil {
		receipts := handler.NewReceiptHandler(d.Receipts, cfg.Receipt.MaxUploadMB, pageSize)
		protected.GET("/receipts", receipts.List)
		protected.POST("/receipts", receipts.Upload)
		protected.GET("/receipts/:id", receipts.Get)
		protected.GET("/receipts/:id/image", receipts.Image)
		protected.DELETE("/receipts/:id", receipts.Delete)
		protected.POST("/receipts/:id/transaction", receipts.Commit)
	}

	export := handler.NewExportHandler(d.Engine)
	protected.GET("/export/csv", export.ExportCSV)
	protected.GET("/export/xlsx", export.ExportXLSX)

	logs := handler.NewLogHandler(d.DB, cfg.Security.EncryptionKey, pageSize)
	protected.GET("/audit-logs", logs.ListLogs)

	return r
}
