package model

import (
	"time"
)

const (
	CardStatusActive    = "ACTIVE"
	CardStatusCancelled = "CANCELLED"
)

// CreditCard 信用卡表
// 年费引擎只关心激活日期（周年窗口的锚点）和卡片状态，
// 其余开卡信息由卡片管理模块维护
type CreditCard struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	CardNo         string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"card_no"` // 卡号（脱敏后）
	UserID         int64      `gorm:"index;not null" json:"user_id"`                        // 持卡人ID
	BankName       string     `gorm:"type:varchar(64)" json:"bank_name"`                    // 发卡行
	CardName       string     `gorm:"type:varchar(64)" json:"card_name"`                    // 卡产品名称
	ActivationDate *time.Time `gorm:"type:date" json:"activation_date"`                     // 激活日期，年费窗口锚点；为空时按自然年计算
	Status         string     `gorm:"type:varchar(20);index;not null;default:ACTIVE" json:"status"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CreditCard) TableName() string {
	return "credit_card"
}
