package service

import (
	"context"

	"github.com/shopspring/decimal"
)

// PointsLedger 积分台账提供方（外部协作方，由调用方注入）
// 只有 POINTS_REDEMPTION 类型的规则需要它；
// 台账不可用时错误原样上抛，对应的年费记录保持不变
type PointsLedger interface {
	PointsBalance(ctx context.Context, cardID int64) (decimal.Decimal, error)
}
