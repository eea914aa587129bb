package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/leoyfm/credt-card-manage-sub002/internal/config"
	"github.com/leoyfm/credt-card-manage-sub002/internal/repository"
	"github.com/leoyfm/credt-card-manage-sub002/internal/service"
	"github.com/leoyfm/credt-card-manage-sub002/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	cardService        *service.CardService
	transactionService *service.TransactionService
	ruleService        *service.RuleService
	feeService         *service.FeeService
	recalcService      *service.RecalcService
}

// NewHandler 创建处理器实例
// recalcService 由 main 构造并与后台任务共享，保证全进程只有一套重算入口
func NewHandler(db *gorm.DB, cfg *config.Config, recalcService *service.RecalcService) *Handler {
	return &Handler{
		cardService:        service.NewCardService(db, recalcService),
		transactionService: service.NewTransactionService(db, recalcService),
		ruleService:        service.NewRuleService(db, recalcService),
		feeService:         service.NewFeeService(db, cfg),
		recalcService:      recalcService,
	}
}

// writeError 把服务层错误映射成业务错误码
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrFeeRecordNotFound):
		response.BusinessError(c, response.CodeFeeRecordNotFound, err.Error())
	case errors.Is(err, repository.ErrAlreadyTerminal):
		response.BusinessError(c, response.CodeAlreadyTerminal, err.Error())
	case errors.Is(err, service.ErrInvalidRuleConfig):
		response.BusinessError(c, response.CodeInvalidRuleConfig, err.Error())
	case errors.Is(err, repository.ErrStaleEvaluation):
		response.BusinessError(c, response.CodeStaleEvaluation, err.Error())
	case errors.Is(err, repository.ErrCardNotFound):
		response.BusinessError(c, response.CodeCardNotFound, err.Error())
	case errors.Is(err, repository.ErrRuleNotFound), errors.Is(err, repository.ErrNoActiveRule):
		response.BusinessError(c, response.CodeRuleNotFound, err.Error())
	case errors.Is(err, repository.ErrTransactionNotFound):
		response.BusinessError(c, response.CodeTransactionNotFound, err.Error())
	case errors.Is(err, repository.ErrStatusInvalid):
		response.BusinessError(c, response.CodeStatusInvalid, err.Error())
	case errors.Is(err, service.ErrInvalidTransaction):
		response.ParamError(c, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 卡片相关接口
// ============================================================

// CreateCard 创建卡片
// POST /api/v1/card/create
func (h *Handler) CreateCard(c *gin.Context) {
	var req service.CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	card, err := h.cardService.CreateCard(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, card)
}

// ActivateCardRequest 激活卡片请求
type ActivateCardRequest struct {
	CardID         int64  `json:"card_id" binding:"required"`
	ActivationDate string `json:"activation_date" binding:"required"` // YYYY-MM-DD
}

// ActivateCard 激活卡片，落激活日期并创建第一条年费记录
// POST /api/v1/card/activate
func (h *Handler) ActivateCard(c *gin.Context) {
	var req ActivateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	activationDate, err := time.ParseInLocation("2006-01-02", req.ActivationDate, time.Local)
	if err != nil {
		response.ParamError(c, "activation_date 格式错误，应为 YYYY-MM-DD")
		return
	}

	if err := h.cardService.ActivateCard(c.Request.Context(), req.CardID, activationDate); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "卡片已激活"})
}

// GetCard 查询卡片
// GET /api/v1/card/detail?card_id=xxx
func (h *Handler) GetCard(c *gin.Context) {
	cardID, err := strconv.ParseInt(c.Query("card_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "card_id 参数错误")
		return
	}

	card, err := h.cardService.GetCard(c.Request.Context(), cardID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, card)
}

// DeleteCard 删除卡片（级联删除年费记录、规则、交易）
// POST /api/v1/card/delete
func (h *Handler) DeleteCard(c *gin.Context) {
	var req struct {
		CardID int64 `json:"card_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.cardService.DeleteCard(c.Request.Context(), req.CardID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "卡片已删除"})
}

// ============================================================
// 交易相关接口
// ============================================================

// CreateTransaction 录入交易
// POST /api/v1/transaction/create
//
// 【关键点】交易落库后同步触发所属年费窗口的进度重算，
// 年费记录的进度不会与流水账悄悄脱节
func (h *Handler) CreateTransaction(c *gin.Context) {
	var req service.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	trans, err := h.transactionService.CreateTransaction(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, trans)
}

// UpdateTransactionBody 修改交易请求
type UpdateTransactionBody struct {
	ID int64 `json:"id" binding:"required"`
	service.UpdateTransactionRequest
}

// UpdateTransaction 修改交易
// POST /api/v1/transaction/update
func (h *Handler) UpdateTransaction(c *gin.Context) {
	var req UpdateTransactionBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	trans, err := h.transactionService.UpdateTransaction(c.Request.Context(), req.ID, &req.UpdateTransactionRequest)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, trans)
}

// DeleteTransaction 删除交易
// POST /api/v1/transaction/delete
func (h *Handler) DeleteTransaction(c *gin.Context) {
	var req struct {
		ID int64 `json:"id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.transactionService.DeleteTransaction(c.Request.Context(), req.ID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "交易已删除"})
}

// ListTransactions 查询交易列表
// GET /api/v1/transaction/list?card_id=xxx&page=1&page_size=10
func (h *Handler) ListTransactions(c *gin.Context) {
	cardID, err := strconv.ParseInt(c.Query("card_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "card_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	transactions, total, err := h.transactionService.ListTransactions(c.Request.Context(), cardID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      transactions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 减免规则相关接口
// ============================================================

// CreateRule 创建减免规则版本
// POST /api/v1/rule/create
func (h *Handler) CreateRule(c *gin.Context) {
	var req service.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	rule, err := h.ruleService.CreateRule(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, rule)
}

// ActivateRule 激活指定规则版本（同卡同年度兄弟版本原子失效）
// POST /api/v1/rule/activate
func (h *Handler) ActivateRule(c *gin.Context) {
	var req struct {
		RuleID int64 `json:"rule_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	rule, err := h.ruleService.ActivateVersion(c.Request.Context(), req.RuleID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, rule)
}

// DeactivateRule 停用指定规则版本
// POST /api/v1/rule/deactivate
func (h *Handler) DeactivateRule(c *gin.Context) {
	var req struct {
		RuleID int64 `json:"rule_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.ruleService.DeactivateRule(c.Request.Context(), req.RuleID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "规则已停用"})
}

// ListRules 查询某卡全部规则版本
// GET /api/v1/rule/list?card_id=xxx
func (h *Handler) ListRules(c *gin.Context) {
	cardID, err := strconv.ParseInt(c.Query("card_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "card_id 参数错误")
		return
	}

	rules, err := h.ruleService.ListCardRules(c.Request.Context(), cardID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, rules)
}

// ============================================================
// 年费记录相关接口
// ============================================================

// GetFeeRecord 查询单条年费记录
// GET /api/v1/fee/detail?card_id=xxx&fee_year=2025
func (h *Handler) GetFeeRecord(c *gin.Context) {
	cardID, err := strconv.ParseInt(c.Query("card_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "card_id 参数错误")
		return
	}
	feeYear, err := strconv.Atoi(c.Query("fee_year"))
	if err != nil {
		response.ParamError(c, "fee_year 参数错误")
		return
	}

	record, err := h.feeService.GetFeeRecord(c.Request.Context(), cardID, feeYear)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, record)
}

// ListFeeRecords 查询某卡全部年费记录
// GET /api/v1/fee/list?card_id=xxx
func (h *Handler) ListFeeRecords(c *gin.Context) {
	cardID, err := strconv.ParseInt(c.Query("card_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "card_id 参数错误")
		return
	}

	records, err := h.feeService.ListFeeRecords(c.Request.Context(), cardID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, records)
}

// PayFeeRequest 缴费请求
type PayFeeRequest struct {
	CardID      int64  `json:"card_id" binding:"required"`
	FeeYear     int    `json:"fee_year" binding:"required"`
	PaymentDate string `json:"payment_date"` // YYYY-MM-DD，缺省为今天
}

// PayFee 显式缴纳年费
// POST /api/v1/fee/pay
//
// 【关键点】WAIVED/PAID 是终态，重复缴费返回 AlreadyTerminal 业务错误
// 而不是静默成功，调用方能区分"本次缴纳"和"早已结清"
func (h *Handler) PayFee(c *gin.Context) {
	var req PayFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	paymentDate := time.Now()
	if req.PaymentDate != "" {
		var err error
		paymentDate, err = time.ParseInLocation("2006-01-02", req.PaymentDate, time.Local)
		if err != nil {
			response.ParamError(c, "payment_date 格式错误，应为 YYYY-MM-DD")
			return
		}
	}

	record, err := h.feeService.MarkPaid(c.Request.Context(), req.CardID, req.FeeYear, paymentDate)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, record)
}

// RecalculateFee 手动触发一次指定 (card_id, fee_year) 的进度重算
// POST /api/v1/fee/recalculate
//
// 重算是幂等的，运维排查或数据修复后可以放心重复调用
func (h *Handler) RecalculateFee(c *gin.Context) {
	var req struct {
		CardID  int64 `json:"card_id" binding:"required"`
		FeeYear int   `json:"fee_year" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.recalcService.Recalculate(c.Request.Context(), req.CardID, req.FeeYear); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "重算完成"})
}
