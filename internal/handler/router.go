package handler

import (
	"github.com/leoyfm/credt-card-manage-sub002/internal/config"
	"github.com/leoyfm/credt-card-manage-sub002/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, cfg *config.Config, recalcService *service.RecalcService) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, cfg, recalcService)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 卡片相关
		card := api.Group("/card")
		{
			card.POST("/create", h.CreateCard)
			card.POST("/activate", h.ActivateCard)
			card.GET("/detail", h.GetCard)
			card.POST("/delete", h.DeleteCard)
		}

		// 交易相关
		transaction := api.Group("/transaction")
		{
			transaction.POST("/create", h.CreateTransaction)
			transaction.POST("/update", h.UpdateTransaction)
			transaction.POST("/delete", h.DeleteTransaction)
			transaction.GET("/list", h.ListTransactions)
		}

		// 减免规则相关
		rule := api.Group("/rule")
		{
			rule.POST("/create", h.CreateRule)
			rule.POST("/activate", h.ActivateRule)
			rule.POST("/deactivate", h.DeactivateRule)
			rule.GET("/list", h.ListRules)
		}

		// 年费记录相关
		fee := api.Group("/fee")
		{
			fee.GET("/detail", h.GetFeeRecord)
			fee.GET("/list", h.ListFeeRecords)
			fee.POST("/pay", h.PayFee)
			fee.POST("/recalculate", h.RecalculateFee)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
