package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsQualifyingType(t *testing.T) {
	assert.True(t, IsQualifyingType(TransactionTypeExpense))
	assert.True(t, IsQualifyingType(TransactionTypeRefund))
	assert.False(t, IsQualifyingType(TransactionTypePayment))
	assert.False(t, IsQualifyingType(TransactionTypeFee))
	assert.False(t, IsQualifyingType("TRANSFER"))
}
