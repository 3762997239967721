package service

import (
	"context"
	"fmt"

	"github.com/dujiao-next/orderflow/internal/constants"
	"github.com/dujiao-next/orderflow/internal/logger"
	"github.com/dujiao-next/orderflow/internal/models"
	"github.com/dujiao-next/orderflow/internal/queue"

	"gorm.io/gorm"
)

// scheduleStockCompensation 持久化补偿记录并投递重试任务
func (s *OrderService) scheduleStockCompensation(ctx context.Context, orderNo string, deduction stockDeduction, cause error) {
	log := logger.FromContext(ctx)
	if s.compensationRepo == nil {
		log.Errorw("stock_compensation_repo_missing", "partial_failure", true, "order_no", orderNo, "sku_id", deduction.SKUID)
		return
	}
	row := &models.StockCompensation{
		SKUID:    deduction.SKUID,
		Quantity: deduction.Quantity,
		Source:   constants.StockCompensationSourceBuild,
		OrderNo:  orderNo,
		Status:   constants.StockCompensationStatusPending,
	}
	if cause != nil {
		row.LastError = cause.Error()
	}
	if err := s.compensationRepo.Create(row); err != nil {
		log.Errorw("stock_compensation_persist_failed",
			"partial_failure", true,
			"order_no", orderNo,
			"sku_id", deduction.SKUID,
			"quantity", deduction.Quantity,
			"error", err,
		)
		return
	}
	if err := s.queueClient.EnqueueStockCompensate(queue.StockCompensatePayload{
		CompensationID: row.ID,
	}, s.options.CompensationRetryDelay, s.options.CompensationMaxAttempts); err != nil {
		log.Errorw("stock_compensation_enqueue_failed",
			"compensation_id", row.ID,
			"order_no", orderNo,
			"error", err,
		)
	}
}

// RetryStockCompensation 重试一条库存补偿；标记完成与回补在同一事务内，重复执行不会重复回补
func (s *OrderService) RetryStockCompensation(ctx context.Context, compensationID uint) error {
	if compensationID == 0 {
		return fmt.Errorf("%w: invalid compensation id", ErrValidation)
	}
	log := logger.FromContext(ctx)
	row, err := s.compensationRepo.GetByID(compensationID)
	if err != nil {
		return err
	}
	if row == nil {
		log.Warnw("stock_compensation_not_found", "compensation_id", compensationID)
		return nil
	}
	if row.Status == constants.StockCompensationStatusDone {
		return nil
	}

	applied := false
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		affected, err := s.compensationRepo.WithTx(tx).MarkDone(row.ID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		applied = true
		return s.ledger.WithTx(tx).Restore(row.SKUID, row.Quantity)
	})
	if err != nil {
		if recordErr := s.compensationRepo.RecordAttempt(row.ID, err.Error()); recordErr != nil {
			log.Warnw("stock_compensation_record_attempt_failed", "compensation_id", row.ID, "error", recordErr)
		}
		log.Errorw("stock_compensation_retry_failed",
			"partial_failure", true,
			"compensation_id", row.ID,
			"sku_id", row.SKUID,
			"quantity", row.Quantity,
			"attempts", row.Attempts+1,
			"error", err,
		)
		return err
	}
	if applied {
		log.Infow("stock_compensation_done",
			"compensation_id", row.ID,
			"sku_id", row.SKUID,
			"quantity", row.Quantity,
			"order_no", row.OrderNo,
		)
	}
	return nil
}

// RequeuePendingCompensations 重新投递未完成的补偿记录（worker 启动时调用）
func (s *OrderService) RequeuePendingCompensations(ctx context.Context, limit int) (int, error) {
	if s.compensationRepo == nil || !s.queueClient.Enabled() {
		return 0, nil
	}
	rows, err := s.compensationRepo.ListPending(limit)
	if err != nil {
		return 0, err
	}
	queued := 0
	for i := range rows {
		if err := s.queueClient.EnqueueStockCompensate(queue.StockCompensatePayload{
			CompensationID: rows[i].ID,
		}, 0, s.options.CompensationMaxAttempts); err != nil {
			logger.FromContext(ctx).Warnw("stock_compensation_requeue_failed", "compensation_id", rows[i].ID, "error", err)
			continue
		}
		queued++
	}
	return queued, nil
}
