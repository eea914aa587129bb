package repository

import (
	"context"
	"errors"
	"time"

	"github.com/leoyfm/credt-card-manage-sub002/internal/model"

	"gorm.io/gorm"
)

var (
	ErrCardNotFound = errors.New("卡片不存在")
)

type CardRepository struct {
	db *gorm.DB
}

func NewCardRepository(db *gorm.DB) *CardRepository {
	return &CardRepository{db: db}
}

func (r *CardRepository) Create(ctx context.Context, tx *gorm.DB, card *model.CreditCard) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(card).Error
}

func (r *CardRepository) GetByID(ctx context.Context, cardID int64) (*model.CreditCard, error) {
	var card model.CreditCard
	err := r.db.WithContext(ctx).Where("id = ?", cardID).First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &card, nil
}

func (r *CardRepository) GetByCardNo(ctx context.Context, cardNo string) (*model.CreditCard, error) {
	var card model.CreditCard
	err := r.db.WithContext(ctx).Where("card_no = ?", cardNo).First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &card, nil
}

// ListActive 分批列出活跃卡片，供周年滚动任务扫描
func (r *CardRepository) ListActive(ctx context.Context, lastID int64, limit int) ([]*model.CreditCard, error) {
	var cards []*model.CreditCard
	err := r.db.WithContext(ctx).
		Where("status = ? AND id > ?", model.CardStatusActive, lastID).
		Order("id ASC").
		Limit(limit).
		Find(&cards).Error
	return cards, err
}

func (r *CardRepository) UpdateActivation(ctx context.Context, cardID int64, activationDate time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.CreditCard{}).
		Where("id = ?", cardID).
		Update("activation_date", activationDate)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCardNotFound
	}
	return nil
}

// Delete 删除卡片本身，年费记录和规则的级联清理由服务层在同一事务内完成
func (r *CardRepository) Delete(ctx context.Context, tx *gorm.DB, cardID int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Where("id = ?", cardID).Delete(&model.CreditCard{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCardNotFound
	}
	return nil
}
