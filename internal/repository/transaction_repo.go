package repository

import (
	"context"
	"errors"
	"time"

	"github.com/leoyfm/credt-card-manage-sub002/internal/model"

	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound = errors.New("交易不存在")
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.CardTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*model.CardTransaction, error) {
	var trans model.CardTransaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &trans, nil
}

func (r *TransactionRepository) Update(ctx context.Context, trans *model.CardTransaction) error {
	result := r.db.WithContext(ctx).
		Model(&model.CardTransaction{}).
		Where("id = ?", trans.ID).
		Updates(map[string]interface{}{
			"amount":      trans.Amount,
			"type":        trans.Type,
			"occurred_at": trans.OccurredAt,
			"merchant":    trans.Merchant,
			"remark":      trans.Remark,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *TransactionRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.CardTransaction{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *TransactionRepository) DeleteByCardID(ctx context.Context, tx *gorm.DB, cardID int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Where("card_id = ?", cardID).Delete(&model.CardTransaction{}).Error
}

// ListInWindow 查询窗口内参与进度计算的交易（消费和退款），按发生时间排序
// 排序保证同一交易集每次评估时输入顺序一致，是重算幂等性的前提之一
func (r *TransactionRepository) ListInWindow(ctx context.Context, cardID int64, start, end time.Time) ([]*model.CardTransaction, error) {
	var transactions []*model.CardTransaction
	err := r.db.WithContext(ctx).
		Where("card_id = ? AND occurred_at >= ? AND occurred_at < ? AND type IN ?",
			cardID, start, end.AddDate(0, 0, 1),
			[]string{model.TransactionTypeExpense, model.TransactionTypeRefund}).
		Order("occurred_at ASC, id ASC").
		Find(&transactions).Error
	return transactions, err
}

func (r *TransactionRepository) ListByCardID(ctx context.Context, cardID int64, page, pageSize int) ([]*model.CardTransaction, int64, error) {
	var transactions []*model.CardTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.CardTransaction{}).Where("card_id = ?", cardID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("occurred_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}
