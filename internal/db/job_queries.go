package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm/clause"
)

// EnqueueTranslationJob inserts a pending job that is due immediately.
func (s *Store) EnqueueTranslationJob(ctx context.Context, ref EntityRef, fields []string) (*TranslationJob, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("translation job for %s has no fields", ref)
	}
	now := s.db.NowFunc()
	job := &TranslationJob{
		EntityKind:    string(ref.Kind),
		EntityID:      ref.ID,
		Fields:        strings.Join(fields, ","),
		Status:        JobStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.conn(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("insert translation job for %s: %w", ref, err)
	}
	return job, nil
}

// ClaimDueJobs marks up to limit due jobs as running and returns them. Pending jobs are due once
// next_attempt_at has passed; running jobs are reclaimed when their lease expired.
func (s *Store) ClaimDueJobs(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]TranslationJob, error) {
	if limit <= 0 {
		limit = 1
	}

	var claimed []TranslationJob
	err := s.WithTx(ctx, func(tx *Tx) error {
		q := tx.conn(ctx).
			Where("(status = ? AND next_attempt_at <= ?) OR (status = ? AND locked_at < ?)",
				JobStatusPending, now, JobStatusRunning, now.Add(-lease)).
			Order("job_id ASC").
			Limit(limit)
		if tx.db.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.Find(&claimed).Error; err != nil {
			return fmt.Errorf("query due translation jobs: %w", err)
		}
		if len(claimed) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(claimed))
		for i := range claimed {
			ids = append(ids, claimed[i].JobID)
			claimed[i].Status = JobStatusRunning
			claimed[i].LockedAt = &now
		}
		err := tx.conn(ctx).Model(&TranslationJob{}).
			Where("job_id IN ?", ids).
			Updates(map[string]any{
				"status":     JobStatusRunning,
				"locked_at":  now,
				"updated_at": now,
			}).Error
		if err != nil {
			return fmt.Errorf("mark translation jobs running: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *Store) CompleteJob(ctx context.Context, jobID int64, attempts int) error {
	return s.updateJob(ctx, jobID, map[string]any{
		"status":     JobStatusDone,
		"attempts":   attempts,
		"locked_at":  nil,
		"last_error": nil,
	})
}

// RetryJob puts a failed job back to pending until nextAttemptAt.
func (s *Store) RetryJob(ctx context.Context, jobID int64, attempts int, nextAttemptAt time.Time, cause string) error {
	return s.updateJob(ctx, jobID, map[string]any{
		"status":          JobStatusPending,
		"attempts":        attempts,
		"next_attempt_at": nextAttemptAt,
		"locked_at":       nil,
		"last_error":      cause,
	})
}

// KillJob dead-letters a job; it is never claimed again.
func (s *Store) KillJob(ctx context.Context, jobID int64, attempts int, cause string) error {
	return s.updateJob(ctx, jobID, map[string]any{
		"status":     JobStatusDead,
		"attempts":   attempts,
		"locked_at":  nil,
		"last_error": cause,
	})
}

func (s *Store) GetJob(ctx context.Context, jobID int64) (*TranslationJob, error) {
	var job TranslationJob
	if err := s.conn(ctx).Where("job_id = ?", jobID).Take(&job).Error; err != nil {
		if translateError(err) == ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query translation job: %w", err)
	}
	return &job, nil
}

func (s *Store) ListJobsForEntity(ctx context.Context, ref EntityRef) ([]TranslationJob, error) {
	var jobs []TranslationJob
	err := s.conn(ctx).
		Where("entity_kind = ? AND entity_id = ?", string(ref.Kind), ref.ID).
		Order("job_id ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("query translation jobs for %s: %w", ref, err)
	}
	return jobs, nil
}

func (s *Store) DeleteJobsForEntity(ctx context.Context, ref EntityRef) error {
	err := s.conn(ctx).
		Where("entity_kind = ? AND entity_id = ?", string(ref.Kind), ref.ID).
		Delete(&TranslationJob{}).Error
	if err != nil {
		return fmt.Errorf("delete translation jobs for %s: %w", ref, err)
	}
	return nil
}

// JobCounts returns the number of jobs per status.
func (s *Store) JobCounts(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := s.conn(ctx).Model(&TranslationJob{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count translation jobs: %w", err)
	}

	counts := map[string]int64{
		JobStatusPending: 0,
		JobStatusRunning: 0,
		JobStatusDone:    0,
		JobStatusDead:    0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

func (s *Store) updateJob(ctx context.Context, jobID int64, values map[string]any) error {
	values["updated_at"] = s.db.NowFunc()
	res := s.conn(ctx).Model(&TranslationJob{}).Where("job_id = ?", jobID).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("update translation job %d: %w", jobID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
