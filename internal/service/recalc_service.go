package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/leoyfm/credt-card-manage-sub002/internal/config"
	"github.com/leoyfm/credt-card-manage-sub002/internal/infrastructure/lock"
	"github.com/leoyfm/credt-card-manage-sub002/internal/model"
	"github.com/leoyfm/credt-card-manage-sub002/internal/repository"
	"github.com/leoyfm/credt-card-manage-sub002/pkg/feeyear"
	"github.com/leoyfm/credt-card-manage-sub002/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================================
// 年费重算编排器
// ============================================================================
//
// 交易增删改、规则切换、逾期扫描都汇聚到这里。一次重算的完整链路：
//
//	获取 (card_id, fee_year) 维度的分布式锁
//	-> 加载生效规则、定位（必要时懒创建）年费记录
//	-> 拉取窗口内交易集（积分类型另查积分台账）
//	-> 纯函数评估进度
//	-> 按状态机推导目标状态，乐观锁写回（连同发件箱事件同事务提交）
//
// 两层并发防护：
//  1. 分布式锁保证同一条年费记录至多一个并发重算（单实例/多实例通用）
//  2. 记录上的 version 列兜底——锁过期后残留的慢写入会因版本不匹配被拒绝，
//     冲突以 ErrStaleEvaluation 暴露，用最新数据有界重试
//
// 重算是幂等的：输入不变时推导出的记录状态不变，且完全无变化时直接跳过写回
// ============================================================================

type RecalcService struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cfg          *config.Config
	cardRepo     *repository.CardRepository
	ruleRepo     *repository.WaiverRuleRepository
	txRepo       *repository.TransactionRepository
	feeRepo      *repository.FeeRecordRepository
	outboxRepo   *repository.OutboxRepository
	pointsLedger PointsLedger
}

func NewRecalcService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, pointsLedger PointsLedger) *RecalcService {
	return &RecalcService{
		db:           db,
		redisClient:  redisClient,
		cfg:          cfg,
		cardRepo:     repository.NewCardRepository(db),
		ruleRepo:     repository.NewWaiverRuleRepository(db),
		txRepo:       repository.NewTransactionRepository(db),
		feeRepo:      repository.NewFeeRecordRepository(db),
		outboxRepo:   repository.NewOutboxRepository(db),
		pointsLedger: pointsLedger,
	}
}

// Recalculate 对指定 (card_id, fee_year) 执行一次串行化的进度重算
func (s *RecalcService) Recalculate(ctx context.Context, cardID int64, feeYear int) error {
	holder := fmt.Sprintf("recalc-%d", idgen.NextID())
	expiration := time.Duration(s.cfg.Business.RecalcLockSeconds) * time.Second
	recalcLock := lock.NewRecalcLock(s.redisClient, cardID, feeYear, holder, expiration)

	if err := recalcLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return fmt.Errorf("获取重算锁失败: cardID=%d, feeYear=%d: %w", cardID, feeYear, err)
	}
	defer recalcLock.Unlock(ctx)

	// 乐观锁冲突说明有别的写入者抢先提交，取最新数据重来，次数有界
	maxRetry := s.cfg.Business.RecalcMaxRetry
	if maxRetry <= 0 {
		maxRetry = 1
	}

	var err error
	for i := 0; i < maxRetry; i++ {
		err = s.recalculateOnce(ctx, cardID, feeYear)
		if !errors.Is(err, repository.ErrStaleEvaluation) {
			return err
		}
		log.Printf("[Recalc] 版本冲突，重试: cardID=%d, feeYear=%d, attempt=%d", cardID, feeYear, i+1)
	}
	return fmt.Errorf("重算重试次数耗尽: cardID=%d, feeYear=%d: %w", cardID, feeYear, err)
}

func (s *RecalcService) recalculateOnce(ctx context.Context, cardID int64, feeYear int) error {
	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		return err
	}

	rule, err := s.ruleRepo.GetActive(ctx, cardID, feeYear)
	if err != nil {
		if errors.Is(err, repository.ErrNoActiveRule) {
			// 没有生效规则就没有可评估的进度，但逾期判定不依赖规则：
			// 已过到期日的 PENDING 记录仍然要推进到 OVERDUE
			return s.advanceWithoutRule(ctx, cardID, feeYear)
		}
		return fmt.Errorf("加载生效规则失败: %w", err)
	}

	record, err := s.ensureRecord(ctx, card, feeYear, rule)
	if err != nil {
		return err
	}

	win := feeyear.Compute(card.ActivationDate, feeYear)
	transactions, err := s.txRepo.ListInWindow(ctx, cardID, win.Start, win.End)
	if err != nil {
		return fmt.Errorf("加载窗口内交易失败: %w", err)
	}

	pointsBalance := decimal.Zero
	if rule.WaiverType == model.WaiverTypePointsRedemption {
		if s.pointsLedger == nil {
			return fmt.Errorf("积分兑换规则需要积分台账，但未注入: cardID=%d", cardID)
		}
		pointsBalance, err = s.pointsLedger.PointsBalance(ctx, cardID)
		if err != nil {
			// 台账不可用属于可恢复错误：原样上抛，记录不动，绝不按 0 进度写回
			return fmt.Errorf("查询积分余额失败: %w", err)
		}
	}

	progress, met, err := EvaluateProgress(rule, win, transactions, pointsBalance)
	if err != nil {
		// 非法规则落库说明创建校验被绕过了，这是程序性错误，必须暴露
		log.Printf("[Recalc] 规则评估失败（不变量被破坏）: ruleID=%d, err=%v", rule.ID, err)
		return err
	}

	toStatus := model.NextFeeStatus(record.Status, met, record.DueDate, time.Now())

	// 完全无变化时跳过写回，重放同一事件不产生任何可观测副作用
	if record.Status == toStatus && record.ConditionMet == met && record.CurrentProgress.Equal(progress) {
		return nil
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.feeRepo.UpdateEvaluation(ctx, tx, record, progress, met, toStatus); err != nil {
			return err
		}

		if toStatus != record.Status {
			if err := s.appendStatusEvent(ctx, tx, record, progress, met, toStatus); err != nil {
				return fmt.Errorf("写入状态事件失败: %w", err)
			}
			log.Printf("[Recalc] 状态变更: recordNo=%s, %s -> %s, progress=%s",
				record.RecordNo, record.Status, toStatus, progress.String())
		}
		return nil
	})
}

// advanceWithoutRule 无生效规则时的状态推进
// 进度字段维持上次评估的值不动，只按状态机推导目标状态：
// 过期未达标的 PENDING 照样落 OVERDUE，逾期不会因为规则被停用而停摆
func (s *RecalcService) advanceWithoutRule(ctx context.Context, cardID int64, feeYear int) error {
	record, err := s.feeRepo.GetByCardAndYear(ctx, cardID, feeYear)
	if err != nil {
		if errors.Is(err, repository.ErrFeeRecordNotFound) {
			log.Printf("[Recalc] 无生效规则也无年费记录，跳过: cardID=%d, feeYear=%d", cardID, feeYear)
			return nil
		}
		return err
	}

	toStatus := model.NextFeeStatus(record.Status, record.ConditionMet, record.DueDate, time.Now())
	if toStatus == record.Status {
		return nil
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.feeRepo.UpdateEvaluation(ctx, tx, record, record.CurrentProgress, record.ConditionMet, toStatus); err != nil {
			return err
		}
		if err := s.appendStatusEvent(ctx, tx, record, record.CurrentProgress, record.ConditionMet, toStatus); err != nil {
			return fmt.Errorf("写入状态事件失败: %w", err)
		}
		log.Printf("[Recalc] 无生效规则，状态推进: recordNo=%s, %s -> %s",
			record.RecordNo, record.Status, toStatus)
		return nil
	})
}

// ensureRecord 定位年费记录，不存在则按当前生效规则懒创建
// fee_amount 在此刻冻结为规则的 base_fee，规则后续变更不再回写
func (s *RecalcService) ensureRecord(ctx context.Context, card *model.CreditCard, feeYear int, rule *model.WaiverRule) (*model.AnnualFeeRecord, error) {
	record := &model.AnnualFeeRecord{
		RecordNo:        idgen.GenerateFeeRecordNo(),
		CardID:          card.ID,
		FeeYear:         feeYear,
		RuleID:          rule.ID,
		FeeAmount:       rule.BaseFee,
		DueDate:         feeyear.DueDate(card.ActivationDate, feeYear),
		Status:          model.FeeStatusPending,
		CurrentProgress: decimal.Zero,
	}
	created, err := s.feeRepo.GetOrCreate(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("定位年费记录失败: %w", err)
	}
	return created, nil
}

// EnsureRecord 供周年滚动任务和卡片激活钩子创建某年度的年费记录
func (s *RecalcService) EnsureRecord(ctx context.Context, cardID int64, feeYear int) (*model.AnnualFeeRecord, error) {
	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	rule, err := s.ruleRepo.GetActive(ctx, cardID, feeYear)
	if err != nil {
		return nil, err
	}
	return s.ensureRecord(ctx, card, feeYear, rule)
}

// appendStatusEvent 把状态变更事件写入发件箱（与记录更新同事务）
func (s *RecalcService) appendStatusEvent(ctx context.Context, tx *gorm.DB, record *model.AnnualFeeRecord, progress decimal.Decimal, met bool, toStatus string) error {
	payload := map[string]interface{}{
		"record_no":     record.RecordNo,
		"card_id":       record.CardID,
		"fee_year":      record.FeeYear,
		"old_status":    record.Status,
		"new_status":    toStatus,
		"progress":      progress.String(),
		"condition_met": met,
		"changed_at":    time.Now().Format(time.RFC3339),
	}
	payloadBytes, _ := json.Marshal(payload)

	return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: record.RecordNo,
		Topic:      s.cfg.Kafka.Topic.FeeEvent,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	})
}

// ============================================================================
// 生命周期钩子
// ============================================================================

// OnTransactionChanged 交易变动钩子
// 交易的创建传一个时间点；修改传新旧两个时间点（可能跨窗口移动）；删除传原时间点。
// 对每个受影响的年费年度各执行一次重算
func (s *RecalcService) OnTransactionChanged(ctx context.Context, cardID int64, occurredAts ...time.Time) error {
	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		return err
	}

	seen := make(map[int]bool)
	for _, occurredAt := range occurredAts {
		feeYear := feeyear.YearContaining(card.ActivationDate, occurredAt)
		if seen[feeYear] {
			continue
		}
		seen[feeYear] = true

		if err := s.Recalculate(ctx, cardID, feeYear); err != nil {
			return err
		}
	}
	return nil
}

// OnCardActivated 卡片激活钩子：落激活日期并创建第一条年费记录
func (s *RecalcService) OnCardActivated(ctx context.Context, cardID int64, activationDate time.Time) error {
	if err := s.cardRepo.UpdateActivation(ctx, cardID, activationDate); err != nil {
		return err
	}

	firstYear := feeyear.FirstFeeYear(&activationDate)
	if _, err := s.EnsureRecord(ctx, cardID, firstYear); err != nil {
		if errors.Is(err, repository.ErrNoActiveRule) {
			// 规则还没配置时记录延后到规则激活或交易触发时懒创建
			log.Printf("[Recalc] 激活时无生效规则，首条年费记录延后创建: cardID=%d, feeYear=%d", cardID, firstYear)
			return nil
		}
		return err
	}

	log.Printf("[Recalc] 卡片已激活: cardID=%d, activationDate=%s, firstFeeYear=%d",
		cardID, activationDate.Format("2006-01-02"), firstYear)
	return nil
}

// OnCardDeleted 卡片删除钩子：年费记录、规则版本、交易流水同事务级联清理
func (s *RecalcService) OnCardDeleted(ctx context.Context, cardID int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.feeRepo.DeleteByCardID(ctx, tx, cardID); err != nil {
			return fmt.Errorf("清理年费记录失败: %w", err)
		}
		if err := s.ruleRepo.DeleteByCardID(ctx, tx, cardID); err != nil {
			return fmt.Errorf("清理减免规则失败: %w", err)
		}
		if err := s.txRepo.DeleteByCardID(ctx, tx, cardID); err != nil {
			return fmt.Errorf("清理交易流水失败: %w", err)
		}
		if err := s.cardRepo.Delete(ctx, tx, cardID); err != nil {
			return err
		}
		log.Printf("[Recalc] 卡片已删除（级联清理完成）: cardID=%d", cardID)
		return nil
	})
}
