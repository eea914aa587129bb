package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 年费记录状态机
// ============================================================================

const (
	FeeStatusPending = "PENDING" // 待处理（初始状态）
	FeeStatusWaived  = "WAIVED"  // 已减免（终态）
	FeeStatusPaid    = "PAID"    // 已缴纳（终态）
	FeeStatusOverdue = "OVERDUE" // 已逾期（非终态，仍可补缴或补达标）
)

// ValidFeeStatusTransitions 年费记录状态流转表
// WAIVED 和 PAID 是终态：一旦减免或缴费成立，后续交易的增删改
// 不会把状态回退（业务上已授予的减免不追溯撤销），重算只刷新进度字段
var ValidFeeStatusTransitions = map[string][]string{
	FeeStatusPending: {FeeStatusWaived, FeeStatusPaid, FeeStatusOverdue},
	FeeStatusOverdue: {FeeStatusWaived, FeeStatusPaid},
}

// CanTransitionTo 判断状态流转是否合法
func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidFeeStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// IsTerminalFeeStatus 判断是否终态
func IsTerminalFeeStatus(status string) bool {
	return status == FeeStatusWaived || status == FeeStatusPaid
}

// NextFeeStatus 根据重算结果推导目标状态
// 这是状态机的唯一决策入口，保证重算在相同输入下幂等：
//   - 终态保持不变
//   - 达标 -> WAIVED（PENDING 和 OVERDUE 均可，迟到的达标同样有效）
//   - 未达标且已过到期日 -> OVERDUE
//   - 其余情况维持原状态
func NextFeeStatus(currentStatus string, conditionMet bool, dueDate, now time.Time) string {
	if IsTerminalFeeStatus(currentStatus) {
		return currentStatus
	}
	if conditionMet {
		return FeeStatusWaived
	}
	if currentStatus == FeeStatusPending && dueDate.Before(now) {
		return FeeStatusOverdue
	}
	return currentStatus
}

// ============================================================================
// 年费记录实体
// ============================================================================

// AnnualFeeRecord 年费记录表
// 每张卡每个年费年度有且只有一条记录，是本系统唯一的可变共享状态；
// 进度字段只允许编排器（重算服务）和显式缴费动作修改
//
// 【重要】记录设计原则：
// 1. fee_amount 在创建时冻结为规则的 base_fee，规则后续变更不回写
// 2. version 乐观锁列，重算写回时校验，防止并发覆盖新鲜进度
// 3. 卡片存续期间记录不删除，作为财务审计依据
type AnnualFeeRecord struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	RecordNo        string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"record_no"`            // 记录编号（全局唯一）
	CardID          int64           `gorm:"uniqueIndex:uk_card_fee_year;not null" json:"card_id"`              // 所属卡片ID
	FeeYear         int             `gorm:"uniqueIndex:uk_card_fee_year;not null" json:"fee_year"`             // 年费年度
	RuleID          int64           `gorm:"index;not null" json:"rule_id"`                                     // 创建时采用的规则版本（弱引用，仅供查询）
	FeeAmount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"fee_amount"`                     // 应缴年费，创建时冻结
	DueDate         time.Time       `gorm:"type:date;index;not null" json:"due_date"`                          // 到期日（周年日）
	Status          string          `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`     // 状态
	CurrentProgress decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"current_progress"`     // 最近一次计算的进度（单位随规则）
	ConditionMet    bool            `gorm:"not null;default:false" json:"condition_met"`                       // 是否已达标（刚性年费恒为 false）
	PaymentDate     *time.Time      `gorm:"type:date" json:"payment_date"`                                     // 缴费日期，仅 PAID 状态有值
	Version         int             `gorm:"not null;default:0" json:"version"`                                 // 乐观锁版本号
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AnnualFeeRecord) TableName() string {
	return "annual_fee_record"
}
