package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestThreshold(t *testing.T) {
	rule := &WaiverRule{WaiverType: WaiverTypeSpendingAmount}
	assert.True(t, rule.Threshold().IsZero(), "阈值为空时返回零值")

	rule.ConditionValue = decimal.NewNullDecimal(decimal.RequireFromString("50000.00"))
	assert.True(t, rule.Threshold().Equal(decimal.RequireFromString("50000.00")))
}

func TestPointsYuanValue(t *testing.T) {
	rule := &WaiverRule{WaiverType: WaiverTypePointsRedemption}

	// 兑换比率缺失时不做换算
	assert.True(t, rule.PointsYuanValue(decimal.NewFromInt(10000)).IsZero())

	// 每元 5 积分，10000 积分等值 2000 元
	rule.PointsPerYuan = decimal.NewNullDecimal(decimal.RequireFromString("5"))
	got := rule.PointsYuanValue(decimal.NewFromInt(10000))
	assert.True(t, got.Equal(decimal.NewFromInt(2000)), "got %s", got)
}
