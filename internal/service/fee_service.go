package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/leoyfm/credt-card-manage-sub002/internal/config"
	"github.com/leoyfm/credt-card-manage-sub002/internal/model"
	"github.com/leoyfm/credt-card-manage-sub002/internal/repository"

	"gorm.io/gorm"
)

// FeeService 年费记录的查询面和显式缴费动作
// 进度相关的写入全部走编排器，这里只负责缴费和只读查询
type FeeService struct {
	db         *gorm.DB
	cfg        *config.Config
	feeRepo    *repository.FeeRecordRepository
	outboxRepo *repository.OutboxRepository
}

func NewFeeService(db *gorm.DB, cfg *config.Config) *FeeService {
	return &FeeService{
		db:         db,
		cfg:        cfg,
		feeRepo:    repository.NewFeeRecordRepository(db),
		outboxRepo: repository.NewOutboxRepository(db),
	}
}

// MarkPaid 显式缴费：PENDING/OVERDUE -> PAID，落缴费日期
// 终态记录再次缴费返回 ErrAlreadyTerminal（拒绝而非静默成功，
// 调用方需要区分"这次缴的"和"早就结清的"）
func (s *FeeService) MarkPaid(ctx context.Context, cardID int64, feeYear int, paymentDate time.Time) (*model.AnnualFeeRecord, error) {
	var record *model.AnnualFeeRecord

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		record, err = s.feeRepo.MarkPaid(ctx, tx, cardID, feeYear, paymentDate)
		if err != nil {
			return err
		}

		payload := map[string]interface{}{
			"record_no":    record.RecordNo,
			"card_id":      record.CardID,
			"fee_year":     record.FeeYear,
			"new_status":   model.FeeStatusPaid,
			"fee_amount":   record.FeeAmount.String(),
			"payment_date": paymentDate.Format("2006-01-02"),
		}
		payloadBytes, _ := json.Marshal(payload)

		if err := s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
			MessageKey: record.RecordNo,
			Topic:      s.cfg.Kafka.Topic.FeeEvent,
			Payload:    string(payloadBytes),
			Status:     model.OutboxStatusPending,
		}); err != nil {
			return fmt.Errorf("写入缴费事件失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("年费已缴纳: recordNo=%s, cardID=%d, feeYear=%d, amount=%s",
		record.RecordNo, cardID, feeYear, record.FeeAmount.String())
	return record, nil
}

// GetFeeRecord 查询单条年费记录
func (s *FeeService) GetFeeRecord(ctx context.Context, cardID int64, feeYear int) (*model.AnnualFeeRecord, error) {
	return s.feeRepo.GetByCardAndYear(ctx, cardID, feeYear)
}

// ListFeeRecords 查询某卡全部年费记录，按年度倒序
func (s *FeeService) ListFeeRecords(ctx context.Context, cardID int64) ([]*model.AnnualFeeRecord, error) {
	return s.feeRepo.ListByCardID(ctx, cardID)
}
