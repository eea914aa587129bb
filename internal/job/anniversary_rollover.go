package job

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/leoyfm/credt-card-manage-sub002/internal/config"
	"github.com/leoyfm/credt-card-manage-sub002/internal/repository"
	"github.com/leoyfm/credt-card-manage-sub002/internal/service"
	"github.com/leoyfm/credt-card-manage-sub002/pkg/feeyear"

	"gorm.io/gorm"
)

// AnniversaryRolloverJob 周年滚动任务
// 定期扫描活跃卡片，为"当前窗口"对应的年费年度补建年费记录。
// 创建走 GetOrCreate，记录已存在时是空操作，重复扫描安全
type AnniversaryRolloverJob struct {
	db        *gorm.DB
	cardRepo  *repository.CardRepository
	recalc    *service.RecalcService
	cfg       *config.Config
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewAnniversaryRolloverJob(db *gorm.DB, recalc *service.RecalcService, cfg *config.Config) *AnniversaryRolloverJob {
	interval := time.Duration(cfg.Business.RolloverScanMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	return &AnniversaryRolloverJob{
		db:        db,
		cardRepo:  repository.NewCardRepository(db),
		recalc:    recalc,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		interval:  interval,
		batchSize: 200,
	}
}

func (j *AnniversaryRolloverJob) Start(ctx context.Context) {
	log.Println("[AnniversaryRolloverJob] 周年滚动任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[AnniversaryRolloverJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[AnniversaryRolloverJob] 任务停止")
			return
		case <-ticker.C:
			j.rolloverAllCards(ctx)
		}
	}
}

func (j *AnniversaryRolloverJob) Stop() {
	close(j.stopCh)
}

func (j *AnniversaryRolloverJob) rolloverAllCards(ctx context.Context) {
	now := time.Now()
	created := 0
	var lastID int64

	for {
		cards, err := j.cardRepo.ListActive(ctx, lastID, j.batchSize)
		if err != nil {
			log.Printf("[AnniversaryRolloverJob] 扫描卡片失败: %v", err)
			return
		}
		if len(cards) == 0 {
			break
		}

		for _, card := range cards {
			lastID = card.ID

			feeYear := feeyear.YearContaining(card.ActivationDate, now)
			_, err := j.recalc.EnsureRecord(ctx, card.ID, feeYear)
			if err != nil {
				if errors.Is(err, repository.ErrNoActiveRule) {
					// 该年度没有配置规则，等规则激活时再建
					continue
				}
				log.Printf("[AnniversaryRolloverJob] 补建年费记录失败: cardID=%d, feeYear=%d, err=%v",
					card.ID, feeYear, err)
				continue
			}
			created++
		}
	}

	if created > 0 {
		log.Printf("[AnniversaryRolloverJob] 本次确认/补建 %d 条年费记录", created)
	}
}
