package points

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// ============================================================================
// 积分台账适配器
// ============================================================================
//
// 积分系统是外部协作方，本服务只读它同步到 Redis 的余额快照：
//
//	HGET fee:points:balance <card_id>  ->  "25000.00"
//
// 缺少余额（积分系统未同步）按可恢复错误上抛，调用方不得默认按 0 处理，
// 否则会把"积分系统不可用"误判成"积分不足"。
// ============================================================================

const balanceHashKey = "fee:points:balance"

// ErrBalanceUnavailable 积分余额缺失或不可用
var ErrBalanceUnavailable = fmt.Errorf("积分余额不可用")

// RedisLedger 基于 Redis 的积分余额提供方
type RedisLedger struct {
	client *redis.Client
}

func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

// PointsBalance 查询卡片当前可用积分
func (l *RedisLedger) PointsBalance(ctx context.Context, cardID int64) (decimal.Decimal, error) {
	val, err := l.client.HGet(ctx, balanceHashKey, fmt.Sprintf("%d", cardID)).Result()
	if err == redis.Nil {
		return decimal.Zero, fmt.Errorf("%w: card_id=%d", ErrBalanceUnavailable, cardID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("查询积分余额失败: %w", err)
	}

	balance, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, fmt.Errorf("积分余额格式非法: %q: %w", val, err)
	}
	return balance, nil
}
