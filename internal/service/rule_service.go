package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/leoyfm/credt-card-manage-sub002/internal/model"
	"github.com/leoyfm/credt-card-manage-sub002/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrInvalidRuleConfig 规则字段组合不自洽，创建/激活前整体拒绝，不会部分落库
var ErrInvalidRuleConfig = errors.New("减免规则配置不合法")

type RuleService struct {
	db       *gorm.DB
	ruleRepo *repository.WaiverRuleRepository
	cardRepo *repository.CardRepository
	recalc   *RecalcService
}

func NewRuleService(db *gorm.DB, recalc *RecalcService) *RuleService {
	return &RuleService{
		db:       db,
		ruleRepo: repository.NewWaiverRuleRepository(db),
		cardRepo: repository.NewCardRepository(db),
		recalc:   recalc,
	}
}

type CreateRuleRequest struct {
	CardID         int64            `json:"card_id" binding:"required"`
	FeeYear        int              `json:"fee_year" binding:"required"`
	BaseFee        decimal.Decimal  `json:"base_fee" binding:"required"`
	WaiverType     string           `json:"waiver_type" binding:"required"`
	ConditionValue *decimal.Decimal `json:"condition_value"`
	PointsPerYuan  *decimal.Decimal `json:"points_per_yuan"`
	Activate       bool             `json:"activate"` // 创建后立即切换为生效版本
}

// ValidateRuleParams 规则字段组合校验
//
// 拒绝的组合：
//   - 未知减免类型
//   - 刚性年费带了阈值（刚性意味着不可减免，阈值必须为空）
//   - 非刚性类型缺少阈值或阈值为负
//   - 积分兑换类型的兑换比率缺失或 <= 0
//   - 年费金额为负
func ValidateRuleParams(req *CreateRuleRequest) error {
	if !model.IsValidWaiverType(req.WaiverType) {
		return fmt.Errorf("%w: 未知减免类型 %q", ErrInvalidRuleConfig, req.WaiverType)
	}
	if req.BaseFee.IsNegative() {
		return fmt.Errorf("%w: 年费金额不能为负", ErrInvalidRuleConfig)
	}

	if req.WaiverType == model.WaiverTypeRigid {
		if req.ConditionValue != nil {
			return fmt.Errorf("%w: 刚性年费不允许设置阈值", ErrInvalidRuleConfig)
		}
		return nil
	}

	if req.ConditionValue == nil {
		return fmt.Errorf("%w: %s 类型必须设置阈值", ErrInvalidRuleConfig, req.WaiverType)
	}
	if req.ConditionValue.IsNegative() {
		return fmt.Errorf("%w: 阈值不能为负", ErrInvalidRuleConfig)
	}

	if req.WaiverType == model.WaiverTypePointsRedemption {
		if req.PointsPerYuan == nil || !req.PointsPerYuan.IsPositive() {
			return fmt.Errorf("%w: 积分兑换比率必须大于 0", ErrInvalidRuleConfig)
		}
	}

	return nil
}

// CreateRule 创建一个新的规则版本
//
// 【关键点】规则修改不是原地更新：已经生成过年费记录的版本必须原样保留，
// 所以"编辑规则"永远是新建版本再切换生效，历史版本只会被停用
func (s *RuleService) CreateRule(ctx context.Context, req *CreateRuleRequest) (*model.WaiverRule, error) {
	if err := ValidateRuleParams(req); err != nil {
		return nil, err
	}

	if _, err := s.cardRepo.GetByID(ctx, req.CardID); err != nil {
		return nil, err
	}

	rule := &model.WaiverRule{
		CardID:        req.CardID,
		FeeYear:       req.FeeYear,
		BaseFee:       req.BaseFee,
		WaiverType:    req.WaiverType,
		ConditionUnit: model.ConditionUnitFor(req.WaiverType),
	}
	if req.ConditionValue != nil {
		rule.ConditionValue = decimal.NewNullDecimal(*req.ConditionValue)
	}
	if req.PointsPerYuan != nil {
		rule.PointsPerYuan = decimal.NewNullDecimal(*req.PointsPerYuan)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		version, err := s.ruleRepo.NextVersion(ctx, tx, req.CardID, req.FeeYear)
		if err != nil {
			return fmt.Errorf("计算规则版本号失败: %w", err)
		}
		rule.Version = version

		if err := s.ruleRepo.Create(ctx, tx, rule); err != nil {
			return fmt.Errorf("创建规则失败: %w", err)
		}

		if req.Activate {
			if err := s.ruleRepo.Activate(ctx, tx, rule); err != nil {
				return fmt.Errorf("激活规则失败: %w", err)
			}
			rule.IsActive = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req.Activate {
		s.triggerRecalc(ctx, rule.CardID, rule.FeeYear)
	}

	log.Printf("规则已创建: ruleID=%d, cardID=%d, feeYear=%d, version=%d, type=%s, active=%v",
		rule.ID, rule.CardID, rule.FeeYear, rule.Version, rule.WaiverType, rule.IsActive)

	return rule, nil
}

// ActivateVersion 把指定版本切换为生效规则，同卡同年度的兄弟版本原子失效
func (s *RuleService) ActivateVersion(ctx context.Context, ruleID int64) (*model.WaiverRule, error) {
	rule, err := s.ruleRepo.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		return s.ruleRepo.Activate(ctx, tx, rule)
	})
	if err != nil {
		return nil, err
	}
	rule.IsActive = true

	s.triggerRecalc(ctx, rule.CardID, rule.FeeYear)
	return rule, nil
}

// DeactivateRule 停用指定版本
// 停用后如果该年度仍有其他生效版本（先激活后停用的并发场景），按新生效规则重算；
// 一个生效版本都不剩时重算会跳过，年费记录维持原值
func (s *RuleService) DeactivateRule(ctx context.Context, ruleID int64) error {
	rule, err := s.ruleRepo.GetByID(ctx, ruleID)
	if err != nil {
		return err
	}

	if err := s.ruleRepo.Deactivate(ctx, ruleID); err != nil {
		return err
	}

	s.triggerRecalc(ctx, rule.CardID, rule.FeeYear)
	return nil
}

func (s *RuleService) GetRule(ctx context.Context, ruleID int64) (*model.WaiverRule, error) {
	return s.ruleRepo.GetByID(ctx, ruleID)
}

func (s *RuleService) ListCardRules(ctx context.Context, cardID int64) ([]*model.WaiverRule, error) {
	return s.ruleRepo.ListByCard(ctx, cardID)
}

// triggerRecalc 规则生命周期事件后的重算
// 重算失败不回滚规则变更本身，记日志后由逾期扫描任务兜底补算
func (s *RuleService) triggerRecalc(ctx context.Context, cardID int64, feeYear int) {
	if err := s.recalc.Recalculate(ctx, cardID, feeYear); err != nil {
		log.Printf("规则变更后重算失败: cardID=%d, feeYear=%d, err=%v", cardID, feeYear, err)
	}
}
