package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionTypeExpense = "EXPENSE" // 消费
	TransactionTypeRefund  = "REFUND"  // 退款（冲减消费进度）
	TransactionTypePayment = "PAYMENT" // 还款（不计入年费进度）
	TransactionTypeFee     = "FEE"     // 费用（利息、年费等，不计入进度）
)

// IsQualifyingType 判断交易类型是否参与年费减免进度计算
// 只有消费和退款影响进度：消费累加，退款冲减；还款和费用类交易一律排除
func IsQualifyingType(txType string) bool {
	return txType == TransactionTypeExpense || txType == TransactionTypeRefund
}

// ============================================================================
// 刷卡交易实体
// ============================================================================

// CardTransaction 信用卡交易表
// 年费减免进度的数据来源，必须与进度保持一致：
// 任何一笔交易的新增、修改、删除都要触发对应年费周期的重算
type CardTransaction struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	CardID        int64           `gorm:"index;not null" json:"card_id"`                               // 所属卡片ID
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`                   // 交易金额（恒为正，方向由类型决定）
	Type          string          `gorm:"type:varchar(20);not null" json:"type"`                       // 交易类型
	OccurredAt    time.Time       `gorm:"index;not null" json:"occurred_at"`                           // 交易发生时间，决定落入哪个年费窗口
	Merchant      string          `gorm:"type:varchar(128)" json:"merchant"`                           // 商户名称
	Remark        string          `gorm:"type:varchar(256)" json:"remark"`                             // 备注
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CardTransaction) TableName() string {
	return "card_transaction"
}
