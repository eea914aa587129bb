package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/leoyfm/credt-card-manage-sub002/internal/model"
	"github.com/leoyfm/credt-card-manage-sub002/internal/repository"
	"github.com/leoyfm/credt-card-manage-sub002/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrInvalidTransaction = errors.New("交易参数不合法")

// TransactionService 交易录入
// 年费引擎的"交易变动钩子"调用方：每一笔交易的增删改落库后，
// 立即对受影响的年费年度触发重算，保证进度不会与流水账脱节
type TransactionService struct {
	db       *gorm.DB
	txRepo   *repository.TransactionRepository
	cardRepo *repository.CardRepository
	recalc   *RecalcService
}

func NewTransactionService(db *gorm.DB, recalc *RecalcService) *TransactionService {
	return &TransactionService{
		db:       db,
		txRepo:   repository.NewTransactionRepository(db),
		cardRepo: repository.NewCardRepository(db),
		recalc:   recalc,
	}
}

type CreateTransactionRequest struct {
	CardID     int64           `json:"card_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	Type       string          `json:"type" binding:"required"`
	OccurredAt time.Time       `json:"occurred_at" binding:"required"`
	Merchant   string          `json:"merchant"`
	Remark     string          `json:"remark"`
}

type UpdateTransactionRequest struct {
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	Type       string          `json:"type" binding:"required"`
	OccurredAt time.Time       `json:"occurred_at" binding:"required"`
	Merchant   string          `json:"merchant"`
	Remark     string          `json:"remark"`
}

func validateTransactionParams(amount decimal.Decimal, txType string) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: 金额不能为负（方向由类型决定）", ErrInvalidTransaction)
	}
	switch txType {
	case model.TransactionTypeExpense, model.TransactionTypeRefund,
		model.TransactionTypePayment, model.TransactionTypeFee:
		return nil
	}
	return fmt.Errorf("%w: 未知交易类型 %q", ErrInvalidTransaction, txType)
}

func (s *TransactionService) CreateTransaction(ctx context.Context, req *CreateTransactionRequest) (*model.CardTransaction, error) {
	if err := validateTransactionParams(req.Amount, req.Type); err != nil {
		return nil, err
	}
	if _, err := s.cardRepo.GetByID(ctx, req.CardID); err != nil {
		return nil, err
	}

	trans := &model.CardTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		CardID:        req.CardID,
		Amount:        req.Amount,
		Type:          req.Type,
		OccurredAt:    req.OccurredAt,
		Merchant:      req.Merchant,
		Remark:        req.Remark,
	}
	if err := s.txRepo.Create(ctx, nil, trans); err != nil {
		return nil, fmt.Errorf("创建交易失败: %w", err)
	}

	s.notifyChanged(ctx, req.CardID, req.OccurredAt)
	return trans, nil
}

func (s *TransactionService) UpdateTransaction(ctx context.Context, id int64, req *UpdateTransactionRequest) (*model.CardTransaction, error) {
	if err := validateTransactionParams(req.Amount, req.Type); err != nil {
		return nil, err
	}

	trans, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldOccurredAt := trans.OccurredAt

	trans.Amount = req.Amount
	trans.Type = req.Type
	trans.OccurredAt = req.OccurredAt
	trans.Merchant = req.Merchant
	trans.Remark = req.Remark

	if err := s.txRepo.Update(ctx, trans); err != nil {
		return nil, fmt.Errorf("更新交易失败: %w", err)
	}

	// 交易时间可能跨窗口移动，新旧两个窗口都要重算
	s.notifyChanged(ctx, trans.CardID, oldOccurredAt, req.OccurredAt)
	return trans, nil
}

func (s *TransactionService) DeleteTransaction(ctx context.Context, id int64) error {
	trans, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.txRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("删除交易失败: %w", err)
	}

	s.notifyChanged(ctx, trans.CardID, trans.OccurredAt)
	return nil
}

func (s *TransactionService) ListTransactions(ctx context.Context, cardID int64, page, pageSize int) ([]*model.CardTransaction, int64, error) {
	return s.txRepo.ListByCardID(ctx, cardID, page, pageSize)
}

// notifyChanged 交易落库后的同步重算
// 重算失败不回滚交易本身（流水账是事实源），记日志后由逾期扫描任务兜底
func (s *TransactionService) notifyChanged(ctx context.Context, cardID int64, occurredAts ...time.Time) {
	if err := s.recalc.OnTransactionChanged(ctx, cardID, occurredAts...); err != nil {
		log.Printf("交易变动后重算失败: cardID=%d, err=%v", cardID, err)
	}
}
