package service

import (
	"context"
	"time"

	"github.com/leoyfm/credt-card-manage-sub002/internal/model"
	"github.com/leoyfm/credt-card-manage-sub002/internal/repository"

	"gorm.io/gorm"
)

// CardService 卡片生命周期的薄封装
// 开卡信息管理不是本服务的职责，这里只保留年费引擎依赖的三件事：
// 建卡、激活（锚定年费窗口）、删卡（级联清理）
type CardService struct {
	db       *gorm.DB
	cardRepo *repository.CardRepository
	recalc   *RecalcService
}

func NewCardService(db *gorm.DB, recalc *RecalcService) *CardService {
	return &CardService{
		db:       db,
		cardRepo: repository.NewCardRepository(db),
		recalc:   recalc,
	}
}

type CreateCardRequest struct {
	CardNo   string `json:"card_no" binding:"required"`
	UserID   int64  `json:"user_id" binding:"required"`
	BankName string `json:"bank_name"`
	CardName string `json:"card_name"`
}

func (s *CardService) CreateCard(ctx context.Context, req *CreateCardRequest) (*model.CreditCard, error) {
	card := &model.CreditCard{
		CardNo:   req.CardNo,
		UserID:   req.UserID,
		BankName: req.BankName,
		CardName: req.CardName,
		Status:   model.CardStatusActive,
	}
	if err := s.cardRepo.Create(ctx, nil, card); err != nil {
		return nil, err
	}
	return card, nil
}

func (s *CardService) GetCard(ctx context.Context, cardID int64) (*model.CreditCard, error) {
	return s.cardRepo.GetByID(ctx, cardID)
}

// ActivateCard 记录激活日期并创建第一条年费记录
func (s *CardService) ActivateCard(ctx context.Context, cardID int64, activationDate time.Time) error {
	return s.recalc.OnCardActivated(ctx, cardID, activationDate)
}

// DeleteCard 删除卡片及其全部年费记录、规则、交易
func (s *CardService) DeleteCard(ctx context.Context, cardID int64) error {
	return s.recalc.OnCardDeleted(ctx, cardID)
}
