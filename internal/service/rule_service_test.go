package service

import (
	"testing"

	"github.com/leoyfm/credt-card-manage-sub002/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestValidateRuleParams(t *testing.T) {
	tests := []struct {
		name    string
		req     *CreateRuleRequest
		wantErr bool
	}{
		{
			name: "valid spending amount rule",
			req: &CreateRuleRequest{
				CardID:         1,
				FeeYear:        2025,
				BaseFee:        decimal.NewFromInt(300),
				WaiverType:     model.WaiverTypeSpendingAmount,
				ConditionValue: decPtr("50000.00"),
			},
		},
		{
			name: "valid rigid rule without threshold",
			req: &CreateRuleRequest{
				CardID:     1,
				FeeYear:    2025,
				BaseFee:    decimal.NewFromInt(3600),
				WaiverType: model.WaiverTypeRigid,
			},
		},
		{
			name: "valid points redemption rule",
			req: &CreateRuleRequest{
				CardID:         1,
				FeeYear:        2025,
				BaseFee:        decimal.NewFromInt(300),
				WaiverType:     model.WaiverTypePointsRedemption,
				ConditionValue: decPtr("20000"),
				PointsPerYuan:  decPtr("1.00"),
			},
		},
		{
			name: "unknown waiver type",
			req: &CreateRuleRequest{
				CardID:     1,
				FeeYear:    2025,
				BaseFee:    decimal.NewFromInt(300),
				WaiverType: "CASHBACK",
			},
			wantErr: true,
		},
		{
			name: "rigid rule with threshold rejected",
			req: &CreateRuleRequest{
				CardID:         1,
				FeeYear:        2025,
				BaseFee:        decimal.NewFromInt(300),
				WaiverType:     model.WaiverTypeRigid,
				ConditionValue: decPtr("1"),
			},
			wantErr: true,
		},
		{
			name: "spending amount missing threshold",
			req: &CreateRuleRequest{
				CardID:     1,
				FeeYear:    2025,
				BaseFee:    decimal.NewFromInt(300),
				WaiverType: model.WaiverTypeSpendingAmount,
			},
			wantErr: true,
		},
		{
			name: "negative threshold rejected",
			req: &CreateRuleRequest{
				CardID:         1,
				FeeYear:        2025,
				BaseFee:        decimal.NewFromInt(300),
				WaiverType:     model.WaiverTypeTransactionCount,
				ConditionValue: decPtr("-1"),
			},
			wantErr: true,
		},
		{
			name: "points redemption missing rate",
			req: &CreateRuleRequest{
				CardID:         1,
				FeeYear:        2025,
				BaseFee:        decimal.NewFromInt(300),
				WaiverType:     model.WaiverTypePointsRedemption,
				ConditionValue: decPtr("20000"),
			},
			wantErr: true,
		},
		{
			name: "points redemption zero rate rejected",
			req: &CreateRuleRequest{
				CardID:         1,
				FeeYear:        2025,
				BaseFee:        decimal.NewFromInt(300),
				WaiverType:     model.WaiverTypePointsRedemption,
				ConditionValue: decPtr("20000"),
				PointsPerYuan:  decPtr("0"),
			},
			wantErr: true,
		},
		{
			name: "negative base fee rejected",
			req: &CreateRuleRequest{
				CardID:         1,
				FeeYear:        2025,
				BaseFee:        decimal.NewFromInt(-1),
				WaiverType:     model.WaiverTypeSpendingAmount,
				ConditionValue: decPtr("50000"),
			},
			wantErr: true,
		},
		{
			name: "zero threshold allowed",
			req: &CreateRuleRequest{
				CardID:         1,
				FeeYear:        2025,
				BaseFee:        decimal.NewFromInt(300),
				WaiverType:     model.WaiverTypeSpendingAmount,
				ConditionValue: decPtr("0"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRuleParams(tt.req)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRuleConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConditionUnitFor(t *testing.T) {
	assert.Equal(t, model.ConditionUnitYuan, model.ConditionUnitFor(model.WaiverTypeSpendingAmount))
	assert.Equal(t, model.ConditionUnitCount, model.ConditionUnitFor(model.WaiverTypeTransactionCount))
	assert.Equal(t, model.ConditionUnitPoints, model.ConditionUnitFor(model.WaiverTypePointsRedemption))
	assert.Equal(t, model.ConditionUnitNone, model.ConditionUnitFor(model.WaiverTypeRigid))
}
