package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from string
		to   string
		want bool
	}{
		{FeeStatusPending, FeeStatusWaived, true},
		{FeeStatusPending, FeeStatusPaid, true},
		{FeeStatusPending, FeeStatusOverdue, true},
		{FeeStatusOverdue, FeeStatusWaived, true},
		{FeeStatusOverdue, FeeStatusPaid, true},
		{FeeStatusOverdue, FeeStatusPending, false},
		{FeeStatusWaived, FeeStatusPending, false},
		{FeeStatusWaived, FeeStatusOverdue, false},
		{FeeStatusWaived, FeeStatusPaid, false},
		{FeeStatusPaid, FeeStatusWaived, false},
		{FeeStatusPaid, FeeStatusOverdue, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionTo(tt.from, tt.to))
		})
	}
}

func TestIsTerminalFeeStatus(t *testing.T) {
	assert.True(t, IsTerminalFeeStatus(FeeStatusWaived))
	assert.True(t, IsTerminalFeeStatus(FeeStatusPaid))
	assert.False(t, IsTerminalFeeStatus(FeeStatusPending))
	assert.False(t, IsTerminalFeeStatus(FeeStatusOverdue))
}

func TestNextFeeStatus(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.Local)
	futureDue := now.AddDate(0, 1, 0)
	pastDue := now.AddDate(0, -1, 0)

	tests := []struct {
		name    string
		current string
		met     bool
		dueDate time.Time
		want    string
	}{
		{"达标即减免", FeeStatusPending, true, futureDue, FeeStatusWaived},
		{"过期未达标转逾期", FeeStatusPending, false, pastDue, FeeStatusOverdue},
		{"未到期未达标维持待处理", FeeStatusPending, false, futureDue, FeeStatusPending},
		{"逾期后补达标仍可减免", FeeStatusOverdue, true, pastDue, FeeStatusWaived},
		{"逾期未达标维持逾期", FeeStatusOverdue, false, pastDue, FeeStatusOverdue},
		{"过期当天达标优先减免", FeeStatusPending, true, pastDue, FeeStatusWaived},
		// 终态冻结：重算推导不出任何状态变化
		{"已减免不回退", FeeStatusWaived, false, pastDue, FeeStatusWaived},
		{"已缴费不回退", FeeStatusPaid, false, pastDue, FeeStatusPaid},
		{"已减免不受再次达标影响", FeeStatusWaived, true, futureDue, FeeStatusWaived},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextFeeStatus(tt.current, tt.met, tt.dueDate, now))
		})
	}
}

func TestNextFeeStatus_Idempotent(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.Local)
	pastDue := now.AddDate(0, -1, 0)

	// 同一输入反复推导，结果固定不动
	first := NextFeeStatus(FeeStatusPending, false, pastDue, now)
	second := NextFeeStatus(first, false, pastDue, now)
	third := NextFeeStatus(second, false, pastDue, now)

	assert.Equal(t, FeeStatusOverdue, first)
	assert.Equal(t, first, second)
	assert.Equal(t, second, third)
}
