package service

import (
	"context"
	"testing"
	"time"

	"github.com/leoyfm/credt-card-manage-sub002/internal/config"
	"github.com/leoyfm/credt-card-manage-sub002/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newRecalcServiceWithMockDB(t *testing.T) (*RecalcService, sqlmock.Sqlmock) {
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

	cfg := &config.Config{}
	cfg.Kafka.Topic.FeeEvent = "annual-fee-event"
	return NewRecalcService(db, nil, cfg, nil), mock
}

func mockCardRow(activation time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "card_no", "user_id", "activation_date", "status"}).
		AddRow(10, "6222000011112222", 1, activation, model.CardStatusActive)
}

func mockFeeRecordRow(status string, dueDate time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "record_no", "card_id", "fee_year", "rule_id",
		"due_date", "status", "condition_met", "version",
	}).AddRow(
		1, "FEE20250310120000001", 10, 2025, 7,
		dueDate, status, false, 3,
	)
}

// 规则被整年停用后，逾期推进不能跟着停摆：
// 过期未达标的 PENDING 记录在没有任何生效规则的情况下也要落 OVERDUE
func TestRecalculateOnce_NoActiveRule(t *testing.T) {
	activation := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.Local)

	t.Run("past due pending becomes overdue", func(t *testing.T) {
		svc, mock := newRecalcServiceWithMockDB(t)

		mock.ExpectQuery("SELECT \\* FROM `credit_card`").
			WillReturnRows(mockCardRow(activation))
		mock.ExpectQuery("SELECT \\* FROM `waiver_rule`").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery("SELECT \\* FROM `annual_fee_record`").
			WillReturnRows(mockFeeRecordRow(model.FeeStatusPending, time.Now().AddDate(0, 0, -30)))

		// 状态推进与发件箱事件同事务提交
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE `annual_fee_record` SET").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO `outbox_message`").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := svc.recalculateOnce(context.Background(), 10, 2025)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not yet due pending untouched", func(t *testing.T) {
		svc, mock := newRecalcServiceWithMockDB(t)

		mock.ExpectQuery("SELECT \\* FROM `credit_card`").
			WillReturnRows(mockCardRow(activation))
		mock.ExpectQuery("SELECT \\* FROM `waiver_rule`").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery("SELECT \\* FROM `annual_fee_record`").
			WillReturnRows(mockFeeRecordRow(model.FeeStatusPending, time.Now().AddDate(0, 0, 30)))

		err := svc.recalculateOnce(context.Background(), 10, 2025)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("terminal record untouched", func(t *testing.T) {
		svc, mock := newRecalcServiceWithMockDB(t)

		mock.ExpectQuery("SELECT \\* FROM `credit_card`").
			WillReturnRows(mockCardRow(activation))
		mock.ExpectQuery("SELECT \\* FROM `waiver_rule`").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery("SELECT \\* FROM `annual_fee_record`").
			WillReturnRows(mockFeeRecordRow(model.FeeStatusWaived, time.Now().AddDate(0, 0, -30)))

		err := svc.recalculateOnce(context.Background(), 10, 2025)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no record is a no-op", func(t *testing.T) {
		svc, mock := newRecalcServiceWithMockDB(t)

		mock.ExpectQuery("SELECT \\* FROM `credit_card`").
			WillReturnRows(mockCardRow(activation))
		mock.ExpectQuery("SELECT \\* FROM `waiver_rule`").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery("SELECT \\* FROM `annual_fee_record`").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		err := svc.recalculateOnce(context.Background(), 10, 2025)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
