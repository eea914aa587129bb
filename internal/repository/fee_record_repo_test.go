package repository

import (
	"context"
	"testing"
	"time"

	"github.com/leoyfm/credt-card-manage-sub002/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func feeRecordRow(status string, version int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "record_no", "card_id", "fee_year", "rule_id",
		"due_date", "status", "condition_met", "version",
	}).AddRow(
		1, "FEE20250310120000001", 10, 2025, 7,
		time.Date(2025, time.March, 10, 0, 0, 0, 0, time.Local), status, false, version,
	)
}

func TestMarkPaid(t *testing.T) {
	paymentDate := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.Local)

	t.Run("pending to paid", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewFeeRecordRepository(db)

		mock.ExpectExec("UPDATE `annual_fee_record` SET").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT \\* FROM `annual_fee_record`").
			WillReturnRows(feeRecordRow(model.FeeStatusPaid, 2))

		record, err := repo.MarkPaid(context.Background(), nil, 10, 2025, paymentDate)
		require.NoError(t, err)
		assert.Equal(t, model.FeeStatusPaid, record.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second call already terminal", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewFeeRecordRepository(db)

		// 条件更新落空后再查一次：记录已是 PAID，拒绝而不是静默成功
		mock.ExpectExec("UPDATE `annual_fee_record` SET").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT \\* FROM `annual_fee_record`").
			WillReturnRows(feeRecordRow(model.FeeStatusPaid, 2))

		_, err := repo.MarkPaid(context.Background(), nil, 10, 2025, paymentDate)
		assert.ErrorIs(t, err, ErrAlreadyTerminal)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("waived record rejects payment", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewFeeRecordRepository(db)

		mock.ExpectExec("UPDATE `annual_fee_record` SET").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT \\* FROM `annual_fee_record`").
			WillReturnRows(feeRecordRow(model.FeeStatusWaived, 2))

		_, err := repo.MarkPaid(context.Background(), nil, 10, 2025, paymentDate)
		assert.ErrorIs(t, err, ErrAlreadyTerminal)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("record not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewFeeRecordRepository(db)

		mock.ExpectExec("UPDATE `annual_fee_record` SET").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT \\* FROM `annual_fee_record`").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.MarkPaid(context.Background(), nil, 10, 2025, paymentDate)
		assert.ErrorIs(t, err, ErrFeeRecordNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateEvaluation_StaleVersion(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeeRecordRepository(db)

	record := &model.AnnualFeeRecord{
		ID:      1,
		CardID:  10,
		FeeYear: 2025,
		Status:  model.FeeStatusPending,
		Version: 3,
	}

	// 版本号不匹配导致 0 行更新，记录仍在 -> 并发冲突而非记录丢失
	mock.ExpectExec("UPDATE `annual_fee_record` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT \\* FROM `annual_fee_record`").
		WillReturnRows(feeRecordRow(model.FeeStatusPending, 4))

	err := repo.UpdateEvaluation(context.Background(), nil, record, record.CurrentProgress, false, model.FeeStatusOverdue)
	assert.ErrorIs(t, err, ErrStaleEvaluation)
	assert.NoError(t, mock.ExpectationsWereMet())
}
