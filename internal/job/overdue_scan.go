package job

import (
	"context"
	"log"
	"time"

	"github.com/leoyfm/credt-card-manage-sub002/internal/config"
	"github.com/leoyfm/credt-card-manage-sub002/internal/repository"
	"github.com/leoyfm/credt-card-manage-sub002/internal/service"

	"gorm.io/gorm"
)

// OverdueScanJob 逾期扫描任务
// 定期找出已过到期日仍处于 PENDING 的年费记录，逐条触发重算：
// 达标的落 WAIVED，未达标的落 OVERDUE。重算是幂等的，扫描重复执行无副作用。
// 这同时是交易钩子/规则钩子重算失败后的兜底补算通道
type OverdueScanJob struct {
	db        *gorm.DB
	feeRepo   *repository.FeeRecordRepository
	recalc    *service.RecalcService
	cfg       *config.Config
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewOverdueScanJob(db *gorm.DB, recalc *service.RecalcService, cfg *config.Config) *OverdueScanJob {
	interval := time.Duration(cfg.Business.OverdueScanMinutes) * time.Minute
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &OverdueScanJob{
		db:        db,
		feeRepo:   repository.NewFeeRecordRepository(db),
		recalc:    recalc,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		interval:  interval,
		batchSize: 100,
	}
}

func (j *OverdueScanJob) Start(ctx context.Context) {
	log.Println("[OverdueScanJob] 逾期扫描任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OverdueScanJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[OverdueScanJob] 任务停止")
			return
		case <-ticker.C:
			j.scanDueRecords(ctx)
		}
	}
}

func (j *OverdueScanJob) Stop() {
	close(j.stopCh)
}

func (j *OverdueScanJob) scanDueRecords(ctx context.Context) {
	records, err := j.feeRepo.GetDuePending(ctx, time.Now(), j.batchSize)
	if err != nil {
		log.Printf("[OverdueScanJob] 查询到期记录失败: %v", err)
		return
	}

	if len(records) == 0 {
		return
	}

	log.Printf("[OverdueScanJob] 发现 %d 条到期未处理的年费记录", len(records))

	processed := 0
	for _, record := range records {
		if err := j.recalc.Recalculate(ctx, record.CardID, record.FeeYear); err != nil {
			log.Printf("[OverdueScanJob] 重算失败: cardID=%d, feeYear=%d, err=%v",
				record.CardID, record.FeeYear, err)
			continue
		}
		processed++
	}

	log.Printf("[OverdueScanJob] 本次处理 %d 条到期记录", processed)
}
