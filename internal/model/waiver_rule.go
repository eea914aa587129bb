package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 减免类型常量
// ============================================================================

const (
	WaiverTypeRigid            = "RIGID"             // 刚性年费，不可减免
	WaiverTypeSpendingAmount   = "SPENDING_AMOUNT"   // 消费金额达标减免
	WaiverTypeTransactionCount = "TRANSACTION_COUNT" // 消费笔数达标减免
	WaiverTypePointsRedemption = "POINTS_REDEMPTION" // 积分兑换减免
)

// 条件单位，与减免类型一一对应
const (
	ConditionUnitNone   = ""       // 刚性年费无条件
	ConditionUnitYuan   = "YUAN"   // 金额（元）
	ConditionUnitCount  = "COUNT"  // 笔数
	ConditionUnitPoints = "POINTS" // 积分
)

// ConditionUnitFor 返回减免类型对应的条件单位
func ConditionUnitFor(waiverType string) string {
	switch waiverType {
	case WaiverTypeSpendingAmount:
		return ConditionUnitYuan
	case WaiverTypeTransactionCount:
		return ConditionUnitCount
	case WaiverTypePointsRedemption:
		return ConditionUnitPoints
	default:
		return ConditionUnitNone
	}
}

// IsValidWaiverType 判断是否是已知的减免类型
func IsValidWaiverType(waiverType string) bool {
	switch waiverType {
	case WaiverTypeRigid, WaiverTypeSpendingAmount, WaiverTypeTransactionCount, WaiverTypePointsRedemption:
		return true
	}
	return false
}

// ============================================================================
// 减免规则实体
// ============================================================================

// WaiverRule 年费减免规则表
// 规则按版本管理：修改规则不改写历史版本，而是新建一个版本再切换生效，
// 已经生成过年费记录的版本永远保留，保证审计可追溯
//
// 约束：同一张卡同一年费年度最多只有一条 is_active = true 的规则
type WaiverRule struct {
	ID             int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	CardID         int64               `gorm:"index:idx_card_fee_year;not null" json:"card_id"`          // 所属卡片ID
	FeeYear        int                 `gorm:"index:idx_card_fee_year;not null" json:"fee_year"`         // 生效的年费年度
	Version        int                 `gorm:"not null;default:1" json:"version"`                        // 版本号，同一(card_id, fee_year)内递增
	BaseFee        decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"base_fee"`              // 未减免时的年费金额
	WaiverType     string              `gorm:"type:varchar(32);not null" json:"waiver_type"`             // 减免类型
	ConditionValue decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"condition_value"`                // 达标阈值（金额/笔数/积分），刚性年费为空
	ConditionUnit  string              `gorm:"type:varchar(16)" json:"condition_unit"`                   // 阈值单位
	PointsPerYuan  decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"points_per_yuan"`                // 积分兑换比率（每元对应积分数），仅积分兑换类型使用
	IsActive       bool                `gorm:"index:idx_card_fee_year;not null;default:false" json:"is_active"` // 是否当前生效
	CreatedAt      time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WaiverRule) TableName() string {
	return "waiver_rule"
}

// Threshold 返回达标阈值，刚性年费返回零值
func (r *WaiverRule) Threshold() decimal.Decimal {
	if !r.ConditionValue.Valid {
		return decimal.Zero
	}
	return r.ConditionValue.Decimal
}

// PointsYuanValue 按兑换比率把积分换算成等值金额（元），用于展示
func (r *WaiverRule) PointsYuanValue(points decimal.Decimal) decimal.Decimal {
	if !r.PointsPerYuan.Valid || r.PointsPerYuan.Decimal.IsZero() {
		return decimal.Zero
	}
	return points.DivRound(r.PointsPerYuan.Decimal, 2)
}
