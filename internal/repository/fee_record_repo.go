package repository

import (
	"context"
	"errors"
	"time"

	"github.com/leoyfm/credt-card-manage-sub002/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrFeeRecordNotFound = errors.New("年费记录不存在")
	ErrStaleEvaluation   = errors.New("年费记录版本冲突，进度已被并发更新")
	ErrAlreadyTerminal   = errors.New("年费记录已是终态，不允许再次操作")
	ErrStatusInvalid     = errors.New("年费记录状态流转不合法")
)

type FeeRecordRepository struct {
	db *gorm.DB
}

func NewFeeRecordRepository(db *gorm.DB) *FeeRecordRepository {
	return &FeeRecordRepository{db: db}
}

func (r *FeeRecordRepository) GetByCardAndYear(ctx context.Context, cardID int64, feeYear int) (*model.AnnualFeeRecord, error) {
	var record model.AnnualFeeRecord
	err := r.db.WithContext(ctx).
		Where("card_id = ? AND fee_year = ?", cardID, feeYear).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFeeRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

// GetOrCreate 查询年费记录，不存在则创建
// (card_id, fee_year) 唯一索引 + OnConflict DoNothing 保证并发下也只有一条，
// 竞争失败的一方会在随后的查询里拿到赢家插入的记录
func (r *FeeRecordRepository) GetOrCreate(ctx context.Context, record *model.AnnualFeeRecord) (*model.AnnualFeeRecord, error) {
	existing, err := r.GetByCardAndYear(ctx, record.CardID, record.FeeYear)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrFeeRecordNotFound) {
		return nil, err
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "card_id"}, {Name: "fee_year"}},
			DoNothing: true,
		}).
		Create(record).Error
	if err != nil {
		return nil, err
	}

	return r.GetByCardAndYear(ctx, record.CardID, record.FeeYear)
}

func (r *FeeRecordRepository) ListByCardID(ctx context.Context, cardID int64) ([]*model.AnnualFeeRecord, error) {
	var records []*model.AnnualFeeRecord
	err := r.db.WithContext(ctx).
		Where("card_id = ?", cardID).
		Order("fee_year DESC").
		Find(&records).Error
	return records, err
}

// GetDuePending 查询已过到期日仍处于 PENDING 的记录，供逾期扫描任务批量处理
func (r *FeeRecordRepository) GetDuePending(ctx context.Context, before time.Time, limit int) ([]*model.AnnualFeeRecord, error) {
	var records []*model.AnnualFeeRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND due_date < ?", model.FeeStatusPending, before).
		Limit(limit).
		Find(&records).Error
	return records, err
}

// UpdateEvaluation 写回一次重算结果（进度、达标标志、目标状态），带乐观锁校验
//
// 【关键点】WHERE 条件同时带上 id 和 version：
// RowsAffected == 0 时再查一次区分两种失败原因——
// 记录被删（卡片级联删除）返回 ErrFeeRecordNotFound，
// 版本号变了说明有并发写入，返回 ErrStaleEvaluation 由编排器重试
func (r *FeeRecordRepository) UpdateEvaluation(ctx context.Context, tx *gorm.DB, record *model.AnnualFeeRecord, progress decimal.Decimal, conditionMet bool, toStatus string) error {
	if record.Status != toStatus && !model.CanTransitionTo(record.Status, toStatus) {
		return ErrStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.AnnualFeeRecord{}).
		Where("id = ? AND version = ?", record.ID, record.Version).
		Updates(map[string]interface{}{
			"current_progress": progress,
			"condition_met":    conditionMet,
			"status":           toStatus,
			"version":          gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		_, err := r.GetByCardAndYear(ctx, record.CardID, record.FeeYear)
		if err != nil {
			return err
		}
		return ErrStaleEvaluation
	}

	return nil
}

// MarkPaid 显式缴费动作：PENDING/OVERDUE -> PAID
// 条件更新失败后再查一次区分原因：记录不存在、已是终态、其他并发冲突
func (r *FeeRecordRepository) MarkPaid(ctx context.Context, tx *gorm.DB, cardID int64, feeYear int, paymentDate time.Time) (*model.AnnualFeeRecord, error) {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.AnnualFeeRecord{}).
		Where("card_id = ? AND fee_year = ? AND status IN ?",
			cardID, feeYear, []string{model.FeeStatusPending, model.FeeStatusOverdue}).
		Updates(map[string]interface{}{
			"status":       model.FeeStatusPaid,
			"payment_date": paymentDate,
			"version":      gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		record, err := r.GetByCardAndYear(ctx, cardID, feeYear)
		if err != nil {
			return nil, err
		}
		if model.IsTerminalFeeStatus(record.Status) {
			return nil, ErrAlreadyTerminal
		}
		return nil, ErrStatusInvalid
	}

	return r.GetByCardAndYear(ctx, cardID, feeYear)
}

// DeleteByCardID 卡片删除时级联移除全部年费记录
func (r *FeeRecordRepository) DeleteByCardID(ctx context.Context, tx *gorm.DB, cardID int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Where("card_id = ?", cardID).Delete(&model.AnnualFeeRecord{}).Error
}
