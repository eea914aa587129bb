package service

import (
	"errors"
	"fmt"

	"github.com/leoyfm/credt-card-manage-sub002/internal/model"
	"github.com/leoyfm/credt-card-manage-sub002/pkg/feeyear"

	"github.com/shopspring/decimal"
)

// ErrMalformedRule 规则字段不完整或类型未知，属于程序性错误
// 这种规则本不该通过创建校验落库，评估时遇到必须显式报错，
// 绝不能悄悄把进度当 0 处理掩盖问题
var ErrMalformedRule = errors.New("减免规则字段非法，无法评估")

// EvaluateProgress 计算一个年费窗口内的减免进度
//
// 纯函数：输出只取决于 (规则, 窗口, 交易集, 积分余额)，不依赖时钟和随机数，
// 相同输入任何时候调用结果都相同——这是重算可以安全幂等重放的基础。
//
// 各类型语义：
//   - RIGID：            进度恒为 0，永不达标
//   - SPENDING_AMOUNT：  窗口内消费金额累加、退款冲减，进度 >= 阈值即达标
//   - TRANSACTION_COUNT：窗口内消费笔数（退款不计数也不冲减笔数）
//   - POINTS_REDEMPTION：外部积分台账注入的当前余额，余额 >= 阈值即达标
//
// 入参交易集允许比窗口更宽，函数内部按窗口和交易类型二次过滤
func EvaluateProgress(rule *model.WaiverRule, win feeyear.Window, transactions []*model.CardTransaction, pointsBalance decimal.Decimal) (decimal.Decimal, bool, error) {
	switch rule.WaiverType {
	case model.WaiverTypeRigid:
		// 刚性年费：条件值必须为空，减免永远不成立
		return decimal.Zero, false, nil

	case model.WaiverTypeSpendingAmount:
		if !rule.ConditionValue.Valid {
			return decimal.Zero, false, fmt.Errorf("%w: %s 缺少阈值", ErrMalformedRule, rule.WaiverType)
		}
		progress := decimal.Zero
		for _, tx := range transactions {
			if !win.Contains(tx.OccurredAt) {
				continue
			}
			switch tx.Type {
			case model.TransactionTypeExpense:
				progress = progress.Add(tx.Amount)
			case model.TransactionTypeRefund:
				progress = progress.Sub(tx.Amount)
			}
		}
		return progress, progress.GreaterThanOrEqual(rule.Threshold()), nil

	case model.WaiverTypeTransactionCount:
		if !rule.ConditionValue.Valid {
			return decimal.Zero, false, fmt.Errorf("%w: %s 缺少阈值", ErrMalformedRule, rule.WaiverType)
		}
		var count int64
		for _, tx := range transactions {
			if !win.Contains(tx.OccurredAt) {
				continue
			}
			if tx.Type == model.TransactionTypeExpense {
				count++
			}
		}
		progress := decimal.NewFromInt(count)
		return progress, progress.GreaterThanOrEqual(rule.Threshold()), nil

	case model.WaiverTypePointsRedemption:
		if !rule.ConditionValue.Valid {
			return decimal.Zero, false, fmt.Errorf("%w: %s 缺少阈值", ErrMalformedRule, rule.WaiverType)
		}
		// 进度是积分台账的实时余额，不从交易流水推导
		return pointsBalance, pointsBalance.GreaterThanOrEqual(rule.Threshold()), nil

	default:
		return decimal.Zero, false, fmt.Errorf("%w: 未知类型 %q", ErrMalformedRule, rule.WaiverType)
	}
}
