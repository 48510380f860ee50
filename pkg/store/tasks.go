package store

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/marmos91/tasklease/internal/telemetry"
	"github.com/marmos91/tasklease/pkg/models"
)

// ============================================
// TASK OPERATIONS
// ============================================

func (s *GORMStore) CreateTask(ctx context.Context, taskData json.RawMessage, scheduledAt *time.Time) (*models.Task, error) {
	ctx, span := telemetry.StartTaskSpan(ctx, "create", 0)
	defer span.End()

	var task *models.Task

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now, err := s.now(tx)
		if err != nil {
			return err
		}

		sched := now
		if scheduledAt != nil {
			sched = scheduledAt.UTC()
		}

		task = &models.Task{
			TaskData:    taskData,
			ScheduledAt: sched,
		}
		return tx.Create(task).Error
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	telemetry.SetAttributes(ctx, telemetry.TaskID(task.ID), telemetry.ScheduledAt(task.ScheduledAt))
	return task, nil
}

func (s *GORMStore) GetTask(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrTaskNotFound)
	}
	return &task, nil
}

func (s *GORMStore) ListTasks(ctx context.Context) ([]*models.Task, error) {
	var tasks []*models.Task
	if err := s.db.WithContext(ctx).Order("id").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *GORMStore) ListStartedTasks(ctx context.Context) ([]*models.Task, error) {
	var tasks []*models.Task
	if err := s.db.WithContext(ctx).
		Where("started_at IS NOT NULL AND processed_at IS NULL").
		Order("id").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *GORMStore) ListProcessedTasks(ctx context.Context) ([]*models.Task, error) {
	var tasks []*models.Task
	if err := s.db.WithContext(ctx).
		Where("processed_at IS NOT NULL").
		Order("id").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *GORMStore) ClaimNextTask(ctx context.Context, processor string, ttl time.Duration, acquire AcquireFunc) (*models.Task, error) {
	ctx, span := telemetry.StartTaskSpan(ctx, "claim", 0, telemetry.Processor(processor))
	defer span.End()

	var claimed *models.Task

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now, err := s.now(tx)
		if err != nil {
			return err
		}

		// Lock every unfinished row, then pick the lowest-id claimable one
		// in Go. Concurrent claimers serialize on the row locks, so the
		// loser sees the winner's committed claim and moves on.
		var rows []models.Task
		if err := s.locking(tx).
			Where("processed_at IS NULL").
			Order("id").
			Find(&rows).Error; err != nil {
			return err
		}

		var task *models.Task
		for i := range rows {
			if rows[i].ClaimableAt(now) {
				task = &rows[i]
				break
			}
		}
		if task == nil {
			return nil
		}

		// Tentative claim. A reclaim overwrites the previous processor's
		// fields wholesale; the old values have no further meaning.
		startedAt := now
		heartbeatAt := now
		deadline := now.Add(ttl)
		proc := processor

		task.StartedAt = &startedAt
		task.LastHeartbeatAt = &heartbeatAt
		task.MustHeartbeatBefore = &deadline
		task.Processor = &proc

		if err := tx.Model(task).Updates(map[string]any{
			"started_at":            task.StartedAt,
			"last_heartbeat_at":     task.LastHeartbeatAt,
			"must_heartbeat_before": task.MustHeartbeatBefore,
			"processor":             task.Processor,
		}).Error; err != nil {
			return err
		}

		// The lease is taken while the claim is still uncommitted. If it
		// fails, the rollback leaves the task unclaimed for the next poll;
		// if the commit fails afterwards, the orphaned lease simply expires.
		if err := acquire(ctx, task.ID, processor); err != nil {
			return err
		}

		claimed = task
		return nil
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	if claimed != nil {
		telemetry.SetAttributes(ctx, telemetry.TaskID(claimed.ID))
	}
	return claimed, nil
}

func (s *GORMStore) HeartbeatTask(ctx context.Context, id uint, processor string, ttl time.Duration, renew RenewFunc) (*models.Task, error) {
	ctx, span := telemetry.StartTaskSpan(ctx, "heartbeat", id, telemetry.Processor(processor))
	defer span.End()

	var task *models.Task

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now, err := s.now(tx)
		if err != nil {
			return err
		}

		var row models.Task
		if err := s.locking(tx).Where("id = ?", id).First(&row).Error; err != nil {
			return convertNotFoundError(err, models.ErrTaskNotFound)
		}

		if err := checkLiveness(&row, processor, now); err != nil {
			return err
		}

		if err := renew(ctx, id, processor); err != nil {
			return err
		}

		heartbeatAt := now
		deadline := now.Add(ttl)
		row.LastHeartbeatAt = &heartbeatAt
		row.MustHeartbeatBefore = &deadline

		if err := tx.Model(&row).Updates(map[string]any{
			"last_heartbeat_at":     row.LastHeartbeatAt,
			"must_heartbeat_before": row.MustHeartbeatBefore,
		}).Error; err != nil {
			return err
		}

		task = &row
		return nil
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	return task, nil
}

func (s *GORMStore) CompleteTask(ctx context.Context, id uint, processor string, output json.RawMessage) (*models.Task, error) {
	ctx, span := telemetry.StartTaskSpan(ctx, "complete", id, telemetry.Processor(processor))
	defer span.End()

	var task *models.Task

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now, err := s.now(tx)
		if err != nil {
			return err
		}

		var row models.Task
		if err := s.locking(tx).Where("id = ?", id).First(&row).Error; err != nil {
			return convertNotFoundError(err, models.ErrTaskNotFound)
		}

		// Same liveness bar as heartbeat: output from a processor that can
		// no longer prove ownership is discarded, because the task may be
		// running elsewhere by now.
		if err := checkLiveness(&row, processor, now); err != nil {
			return err
		}

		processedAt := now
		row.ProcessedAt = &processedAt
		row.TaskOutput = output

		if err := tx.Model(&row).Updates(map[string]any{
			"processed_at": row.ProcessedAt,
			"task_output":  row.TaskOutput,
		}).Error; err != nil {
			return err
		}

		task = &row
		return nil
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	return task, nil
}

func (s *GORMStore) AbandonTask(ctx context.Context, id uint, processor string) (*models.Task, error) {
	ctx, span := telemetry.StartTaskSpan(ctx, "abandon", id, telemetry.Processor(processor))
	defer span.End()

	var task *models.Task

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now, err := s.now(tx)
		if err != nil {
			return err
		}

		var row models.Task
		if err := s.locking(tx).Where("id = ?", id).First(&row).Error; err != nil {
			return convertNotFoundError(err, models.ErrTaskNotFound)
		}

		if row.ProcessedAt != nil {
			return models.ErrTaskAlreadyProcessed
		}
		if !row.OwnedBy(processor) {
			return models.ErrTaskNotOwned
		}

		// Clear the assignment and force the deadline into the past so the
		// row is immediately claimable. started_at and last_heartbeat_at
		// stay in place for diagnostics.
		deadline := now
		row.Processor = nil
		row.MustHeartbeatBefore = &deadline

		if err := tx.Model(&row).Updates(map[string]any{
			"processor":             nil,
			"must_heartbeat_before": row.MustHeartbeatBefore,
		}).Error; err != nil {
			return err
		}

		task = &row
		return nil
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	return task, nil
}

// checkLiveness verifies that processor still holds the task at the given
// instant, returning the most specific domain error when it does not.
func checkLiveness(task *models.Task, processor string, now time.Time) error {
	if task.ProcessedAt != nil {
		return models.ErrTaskAlreadyProcessed
	}
	if !task.OwnedBy(processor) {
		return models.ErrTaskNotOwned
	}
	if task.MustHeartbeatBefore == nil || !task.MustHeartbeatBefore.After(now) {
		return models.ErrHeartbeatExpired
	}
	return nil
}
