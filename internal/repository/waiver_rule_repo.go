package repository

import (
	"context"
	"errors"

	"github.com/leoyfm/credt-card-manage-sub002/internal/model"

	"gorm.io/gorm"
)

var (
	ErrRuleNotFound = errors.New("减免规则不存在")
	ErrNoActiveRule = errors.New("该卡该年度没有生效的减免规则")
)

type WaiverRuleRepository struct {
	db *gorm.DB
}

func NewWaiverRuleRepository(db *gorm.DB) *WaiverRuleRepository {
	return &WaiverRuleRepository{db: db}
}

func (r *WaiverRuleRepository) Create(ctx context.Context, tx *gorm.DB, rule *model.WaiverRule) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(rule).Error
}

func (r *WaiverRuleRepository) GetByID(ctx context.Context, ruleID int64) (*model.WaiverRule, error) {
	var rule model.WaiverRule
	err := r.db.WithContext(ctx).Where("id = ?", ruleID).First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// GetActive 查询某卡某年费年度当前生效的规则版本
func (r *WaiverRuleRepository) GetActive(ctx context.Context, cardID int64, feeYear int) (*model.WaiverRule, error) {
	var rule model.WaiverRule
	err := r.db.WithContext(ctx).
		Where("card_id = ? AND fee_year = ? AND is_active = ?", cardID, feeYear, true).
		First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveRule
		}
		return nil, err
	}
	return &rule, nil
}

// NextVersion 计算同一(card_id, fee_year)下一个版本号
func (r *WaiverRuleRepository) NextVersion(ctx context.Context, tx *gorm.DB, cardID int64, feeYear int) (int, error) {
	if tx == nil {
		tx = r.db
	}
	var maxVersion int
	err := tx.WithContext(ctx).
		Model(&model.WaiverRule{}).
		Where("card_id = ? AND fee_year = ?", cardID, feeYear).
		Select("COALESCE(MAX(version), 0)").
		Scan(&maxVersion).Error
	if err != nil {
		return 0, err
	}
	return maxVersion + 1, nil
}

// Activate 激活指定版本，同事务内先让同卡同年度的兄弟版本全部失效
// "每个(card_id, fee_year)恰好一条生效规则"的不变量靠这里的原子切换保证
func (r *WaiverRuleRepository) Activate(ctx context.Context, tx *gorm.DB, rule *model.WaiverRule) error {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).
		Model(&model.WaiverRule{}).
		Where("card_id = ? AND fee_year = ? AND id <> ?", rule.CardID, rule.FeeYear, rule.ID).
		Update("is_active", false).Error
	if err != nil {
		return err
	}

	result := tx.WithContext(ctx).
		Model(&model.WaiverRule{}).
		Where("id = ?", rule.ID).
		Update("is_active", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Deactivate 停用指定版本
func (r *WaiverRuleRepository) Deactivate(ctx context.Context, ruleID int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.WaiverRule{}).
		Where("id = ?", ruleID).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// ListByCard 列出某卡全部规则版本（含历史版本），供审计查询
func (r *WaiverRuleRepository) ListByCard(ctx context.Context, cardID int64) ([]*model.WaiverRule, error) {
	var rules []*model.WaiverRule
	err := r.db.WithContext(ctx).
		Where("card_id = ?", cardID).
		Order("fee_year DESC, version DESC").
		Find(&rules).Error
	return rules, err
}

// DeleteByCardID 卡片删除时的级联清理
// 规则版本平时不允许硬删除（年费记录还引用着它们），唯一例外是
// 卡片整体删除：记录和规则在同一事务内一并移除，不留悬挂引用
func (r *WaiverRuleRepository) DeleteByCardID(ctx context.Context, tx *gorm.DB, cardID int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Where("card_id = ?", cardID).Delete(&model.WaiverRule{}).Error
}
